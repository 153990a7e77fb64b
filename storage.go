package hll

// storage is the interface that sets up the interaction between the Hll and
// its backing payload. It is implemented by each in-memory representation:
// explicitStorage and denseStorage. SPARSE is deliberately not a storage
// implementation -- it exists only as a wire encoding that sparse.go
// produces from, and decodes into, a denseStorage.
type storage interface {

	// overCapacity returns true when this storage has grown beyond the
	// target limits in the settings. The Hll should then promote it to the
	// next storage type. Promotion details are left to the Hll because they
	// involve knowing how to convert between storage types, which is
	// beyond the scope of this interface.
	overCapacity(settings *settings) bool

	// sizeInBytes returns the number of bytes required to serialize this
	// storage under the given config (which governs the sparse/compressed
	// choice for denseStorage). It is used to size the destination buffer
	// before writeBytes is called, and must agree with writeBytes on which
	// wire encoding will be produced -- see chooseSparse.
	sizeInBytes(cfg *Config, settings *settings) int

	// writeBytes serializes the storage into the provided byte slice. The
	// slice is guaranteed to have at least as many bytes as sizeInBytes
	// reported for the same config and settings.
	writeBytes(cfg *Config, settings *settings, bytes []byte)

	// copy returns a deep copy of this storage.
	copy() storage
}

// registers is an add-on interface to storage implemented by denseStorage,
// the sole probabilistic in-memory representation.
type registers interface {

	// setIfGreater sets the register value of register regnum to the
	// provided value if and only if it's greater than the current value.
	setIfGreater(settings *settings, regnum int, value byte)

	// indicator computes the "indicator function" (Z in the HLL paper). It
	// additionally returns the number of registers whose value is zero (V
	// in the paper). The returned values drive cardinality calculations.
	//
	// For reference, Z = sum over j of 2^(-M[j]) for all j from 0 to the
	// register count, where M[j] is the register value.
	indicator(settings *settings) (float64, int)
}
