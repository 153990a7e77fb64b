package hll

import (
	"fmt"
	"math/bits"
	"strconv"

	"github.com/pkg/errors"
)

// storageType is an enum whose values match the type tag nibble in the wire
// format's first header byte. "dense" is called "full" in some descriptions
// of the format; dense is used here because it's more descriptive of what
// the in-memory representation actually is. SPARSE is a wire tag only: no
// in-memory storage implementation carries it, since a decoded SPARSE
// payload is unpacked straight into a denseStorage.
type storageType int

const (
	undefined storageType = iota
	empty
	explicit
	sparse
	dense
)

// MaxPayloadBytes bounds the body of a serialized sketch (header excluded).
// A declared payload larger than this is rejected as malformed rather than
// trusted to allocate an arbitrarily large buffer while decoding untrusted
// input; so is a SPARSE payload whose unpacked register array would be
// larger than this.
const MaxPayloadBytes = 128 * 1024

// undefinedStorage is the sentinel in-memory representation of the
// UNDEFINED state. Unlike a nil storage (the EMPTY state, whose
// cardinality is a well-defined zero), UNDEFINED has no cardinality at all
// and poisons any union it takes part in: once an Hll's storage is
// undefinedStorage, every subsequent add is a no-op and every union with it
// leaves the result undefined.
type undefinedStorage struct{}

func (undefinedStorage) overCapacity(settings *settings) bool { return false }

func (undefinedStorage) sizeInBytes(cfg *Config, settings *settings) int { return 0 }

func (undefinedStorage) writeBytes(cfg *Config, settings *settings, bytes []byte) {}

func (undefinedStorage) copy() storage { return undefinedStorage{} }

// Hll is a probabilistic set of hashed elements. It supports add and union
// operations in addition to estimating the cardinality. The zero value is an
// empty set, provided that Defaults (or DefaultConfig.SetDefaults) has been invoked
// with default settings. Otherwise, operations on the zero value will cause
// a panic, as it would be a coding error to attempt operations without first
// configuring the library.
type Hll struct {
	settings *settings
	storage  storage
}

// NewHll creates a new Hll with the provided settings. It will return an
// error if the settings are invalid. Since an application usually deals with
// homogeneous Hlls, it's preferable to install default settings and use the
// zero value. This function is provided in case an application must juggle
// different configurations.
func NewHll(s Settings) (Hll, error) {
	settings, err := s.toInternal()
	if err != nil {
		return Hll{}, err
	}

	return Hll{settings: settings}, nil
}

// FromBytes deserializes the provided byte slice into an Hll. It returns
// ErrInsufficientBytes if the slice is shorter than the 3 byte header,
// ErrMalformedInput if the header or payload violate the wire format, or an
// ErrInvalidParameter wrapped error if the header decodes to an invalid
// configuration.
func FromBytes(bytes []byte) (Hll, error) {
	version, typeTag, settings, err := parseHeader(bytes)
	if err != nil {
		return Hll{}, err
	}

	if version != OutputVersion {
		return Hll{}, wrapMalformed("unsupported wire version: %d", version)
	}

	internalSettings, err := settings.toInternal()
	if err != nil {
		return Hll{}, err
	}

	payload := bytes[3:]

	if typeTag == undefined || typeTag == empty {
		if len(payload) != 0 {
			return Hll{}, wrapMalformed("%s payload must be empty, got %d bytes", typeTag, len(payload))
		}
		h := Hll{settings: internalSettings}
		if typeTag == undefined {
			h.storage = undefinedStorage{}
		}
		return h, nil
	}

	if len(payload) > MaxPayloadBytes {
		return Hll{}, wrapMalformed("payload of %d bytes exceeds the %d byte limit", len(payload), MaxPayloadBytes)
	}

	h := Hll{settings: internalSettings}

	switch typeTag {
	case explicit:
		h.storage, err = explicitFromBytes(payload)
	case sparse:
		if compressedSizeBytes(internalSettings) > MaxPayloadBytes {
			return Hll{}, wrapMalformed("sparse payload would unpack to %d bytes, over the %d byte limit", compressedSizeBytes(internalSettings), MaxPayloadBytes)
		}
		h.storage, err = sparseFromBytes(internalSettings, payload)
	case dense:
		h.storage, err = denseFromBytes(internalSettings, payload)
	}

	if err != nil {
		return Hll{}, err
	}

	return h, nil
}

func (t storageType) String() string {
	switch t {
	case undefined:
		return "undefined"
	case empty:
		return "empty"
	case explicit:
		return "explicit"
	case sparse:
		return "sparse"
	case dense:
		return "dense"
	default:
		return "invalid"
	}
}

// Settings returns the declared Settings for this Hll: ExplicitThreshold is
// AutoExplicitThreshold when the threshold was set to auto, even though a
// concrete threshold was resolved internally. See EffectiveExplicitThreshold
// for the resolved value.
func (h *Hll) Settings() Settings {
	h.initOrPanic()
	return h.settings.toExternal()
}

// EffectiveExplicitThreshold returns the explicit-to-dense promotion
// threshold actually in force for this Hll: the auto-calculated value when
// ExplicitThreshold was AutoExplicitThreshold, or the declared value
// otherwise.
func (h *Hll) EffectiveExplicitThreshold() int {
	h.initOrPanic()
	return h.settings.explicitThreshold
}

// String implements fmt.Stringer, printing the sketch's type and parameters
// in the style of the database extension's hll_print: "TYPE, log2m=N,
// regwidth=N, expthresh=N[(effective)], sparseon=bool". The reported type
// reflects in-memory storage (EMPTY/EXPLICIT/DENSE/UNDEFINED); SPARSE is a
// wire-only encoding and never describes a live sketch's type.
func (h *Hll) String() string {
	h.initOrPanic()
	s := h.settings.toExternal()

	var typeName string
	switch h.storage.(type) {
	case undefinedStorage:
		typeName = undefined.String()
	case explicitStorage:
		typeName = explicit.String()
	case denseStorage:
		typeName = dense.String()
	default:
		typeName = empty.String()
	}

	expDesc := strconv.Itoa(s.ExplicitThreshold)
	if s.ExplicitThreshold == AutoExplicitThreshold {
		expDesc = fmt.Sprintf("%d(%d)", s.ExplicitThreshold, h.settings.explicitThreshold)
	}

	return fmt.Sprintf("%s, log2m=%d, regwidth=%d, expthresh=%s, sparseon=%t",
		typeName, s.Log2m, s.Regwidth, expDesc, s.SparseEnabled)
}

// Debug is an explicit alias for String, matching the wire operation's
// `print` name.
func (h *Hll) Debug() string {
	return h.String()
}

// IsUndefined reports whether this Hll is in the UNDEFINED state: the result
// of decoding an explicit UNDEFINED wire payload, or of a union that
// involved an undefined operand. An undefined Hll accepts AddRaw calls as
// no-ops and reports no cardinality.
func (h *Hll) IsUndefined() bool {
	h.initOrPanic()
	_, ok := h.storage.(undefinedStorage)
	return ok
}

// AddRaw adds the observed value into the Hll. The value is expected to have
// been hashed with a good hash function such as Murmur3 or xxHash (see
// NewHasher). If the value does not have sufficient entropy, then the
// resulting cardinality estimations will not be accurate.
//
// There is an edge case where the raw value of 0 is not added to the Hll. In
// the probabilistic representation, a zero value would not affect the
// cardinality calculations because there are no set bits to observe. In
// order to be consistent, the explicit representation also ignores a 0
// value.
//
// AddRaw on an undefined Hll is a no-op: UNDEFINED poisons every operation
// except Clear.
func (h *Hll) AddRaw(value uint64) {
	h.initOrPanic()

	if value == 0 {
		return
	}

	if h.IsUndefined() {
		return
	}

	// bootstrap case...if this is an empty Hll, it needs storage so we can
	// add to it. SPARSE is wire-only, so the probabilistic bootstrap always
	// goes straight to dense.
	if h.storage == nil {
		if h.settings.explicitThreshold > 0 {
			h.storage = newExplicitStorage()
		} else {
			h.storage = newDenseStorage(h.settings)
		}
	}

	switch s := h.storage.(type) {
	case explicitStorage:
		h.storage = s.insert(int64(value))
	case registers:
		// following documentation courtesy of the java implementation:
		//
		// p(w): position of the least significant set bit (one-indexed)
		// By contract: p(w) <= 2^(registerValueInBits) - 1 (the max register
		// value)
		//
		// By construction of pwMaxMask,
		//      lsb(pwMaxMask) = 2^(registerValueInBits) - 2,
		// thus lsb(any_long | pwMaxMask) <= 2^(registerValueInBits) - 2,
		// thus 1 + lsb(any_long | pwMaxMask) <= 2^(registerValueInBits) -1.
		substreamValue := value >> uint(h.settings.log2m)
		if substreamValue == 0 {
			// The paper does not cover p(0x0), so the special value 0 is
			// used. 0 is the original initialization value of the
			// registers, so by doing this the multiset simply ignores it.
			// This is acceptable because the probability is
			// 1/(2^(2^registerSizeInBits)).
			return
		}

		pW := byte(1 + bits.TrailingZeros64(substreamValue|h.settings.pwMaxMask))
		i := int(value & h.settings.mBitsMask)

		s.setIfGreater(h.settings, i, pW)
	}

	if h.storage.overCapacity(h.settings) {
		h.upgrade()
	}
}

// Cardinality estimates the number of distinct values that have been added
// to this Hll.
//
// The second return value reports whether the estimate is meaningful: it is
// false only when the Hll is UNDEFINED, in which case the cardinality is
// null (there is nothing to estimate). An empty Hll has a well-defined
// cardinality of zero and returns true.
//
// Cardinality returns ErrEstimatorDomain if the Hll's register count is too
// small (m <= 8) for the correction formulas to be meaningful; this can only
// happen for a probabilistic (non-explicit) Hll, since explicit cardinality
// is an exact count.
func (h *Hll) Cardinality() (float64, bool, error) {
	h.initOrPanic()

	switch s := h.storage.(type) {
	case undefinedStorage:
		return 0, false, nil
	case explicitStorage:
		return float64(len(s)), true, nil
	case registers:
		if h.settings.log2m <= 3 {
			return 0, false, ErrEstimatorDomain
		}
		sum, numberOfZeros := s.indicator(h.settings)
		estimate, err := estimateCardinality(h.settings, sum, numberOfZeros)
		if err != nil {
			return 0, false, err
		}
		return estimate, true, nil
	default:
		// nil storage: empty.
		return 0, true, nil
	}
}

// Union calculates the union of this Hll and the other Hll and stores the
// result into the receiver.
//
// Unlike StrictUnion, it allows unions between Hlls with different settings
// to be combined, though doing so is not recommended because it will result
// in a loss of accuracy.
//
// If either operand is UNDEFINED, the result is UNDEFINED: UNDEFINED
// poisons a union the same way it poisons AddRaw and Cardinality.
//
// As long as your application uses a single group of settings, it is safe to
// use this function. If there is a possibility that you may union two Hlls
// with incompatible settings, then it's safer to use StrictUnion and check
// for errors.
func (h *Hll) Union(other Hll) {
	if err := h.union(other, false); err != nil {
		// since the above union call passes false to strict, the only way
		// an error could pop up would be due to a bug in code. handling
		// explicitly nonetheless b/c it was flagged by gosec.
		panic(err)
	}
}

// StrictUnion calculates the union of this Hll and the other Hll and stores
// the result into the receiver. It returns ErrIncompatibleMetadata if the
// two Hlls are not compatible, where compatibility is defined as having the
// same log2m, register width, explicit threshold and sparse setting.
func (h *Hll) StrictUnion(other Hll) error {
	return h.union(other, true)
}

func (h *Hll) union(other Hll, strict bool) error {
	// this is kind of an ugly method...this is where the abstraction of
	// storage breaks down because something needs to know how to convert
	// between and union the different storage types.

	h.initOrPanic()
	other.initOrPanic()

	sameSettings := h.settings.regwidth == other.settings.regwidth && h.settings.log2m == other.settings.log2m

	if strict && !sameSettings {
		return errors.Wrapf(ErrIncompatibleMetadata, "log2m/regwidth mismatch: (%d,%d) vs (%d,%d)",
			h.settings.log2m, h.settings.regwidth, other.settings.log2m, other.settings.regwidth)
	}

	if strict && (h.settings.explicitAuto != other.settings.explicitAuto ||
		h.settings.explicitThreshold != other.settings.explicitThreshold ||
		h.settings.sparseEnabled != other.settings.sparseEnabled) {
		return errors.Wrapf(ErrIncompatibleMetadata, "expthresh/sparseon mismatch: (%d,%t) vs (%d,%t)",
			h.settings.toExternal().ExplicitThreshold, h.settings.sparseEnabled,
			other.settings.toExternal().ExplicitThreshold, other.settings.sparseEnabled)
	}

	// UNDEFINED poisons the union regardless of which side it's on.
	if h.IsUndefined() {
		return nil
	}
	if other.IsUndefined() {
		h.storage = undefinedStorage{}
		return nil
	}

	// other is empty...there's nothing to do.
	if other.storage == nil {
		return nil
	}

	// if this one is empty, deep copy the other's storage.
	if h.storage == nil {
		h.storage = other.storage.copy()
		return nil
	}

	// otherwise, the union operation depends on which types we're
	// union-ing.
	switch otherStorage := other.storage.(type) {
	case explicitStorage:
		if thisStorage, ok := h.storage.(explicitStorage); ok {
			// both sides are explicit: merge directly instead of adding one
			// value at a time, promoting to dense mid-merge if the combined
			// set would exceed the threshold.
			merged, remainder := thisStorage.mergeUpTo(otherStorage, h.settings.explicitThreshold)
			h.storage = merged
			if len(remainder) > 0 {
				h.upgrade()
				h.addFromExplicit(remainder)
			}
		} else {
			// this hll is already dense; add the other's identifiers into it.
			h.addFromExplicit(otherStorage)
		}
	case denseStorage:
		switch thisStorage := h.storage.(type) {
		case explicitStorage:
			// if this hll is explicit, then make a deep copy of the dense
			// storage and then add all the values from the explicit set.
			h.storage = otherStorage.copy()
			h.addFromExplicit(thisStorage)
		case denseStorage:
			denseUnion(thisStorage, otherStorage, h.settings, other.settings)
		}
	}

	// once union is complete, upgrade the storage type if we've gone over
	// capacity.
	if h.storage.overCapacity(h.settings) {
		h.upgrade()
	}

	return nil
}

// ToBytes serializes the Hll using the package-level DefaultConfig to decide
// between the SPARSE and COMPRESSED wire encodings. See ToBytesWithConfig to
// use a specific Config instead.
func (h *Hll) ToBytes() []byte {
	return h.ToBytesWithConfig(DefaultConfig)
}

// typeTag reports the wire type tag this Hll would serialize as under cfg:
// EMPTY/EXPLICIT/UNDEFINED map directly from the in-memory storage, while a
// dense sketch resolves to SPARSE or COMPRESSED per cfg's MaxSparse setting.
func (h *Hll) typeTag(cfg *Config) storageType {
	switch h.storage.(type) {
	case undefinedStorage:
		return undefined
	case explicitStorage:
		return explicit
	case denseStorage:
		if chooseSparse(cfg, h.settings, h.storage.(denseStorage)) {
			return sparse
		}
		return dense
	default:
		return empty
	}
}

// ToBytesWithConfig serializes the Hll per the wire format, using cfg's
// OutputVersion and MaxSparse settings to pick the header version and the
// SPARSE/COMPRESSED encoding for a probabilistic Hll.
func (h *Hll) ToBytesWithConfig(cfg *Config) []byte {
	h.initOrPanic()

	typeTag := h.typeTag(cfg)

	bytesNeeded := 0
	if h.storage != nil {
		bytesNeeded = h.storage.sizeInBytes(cfg, h.settings)
	}

	bytes := make([]byte, 3 /*header bytes*/ +bytesNeeded)

	version := OutputVersion
	if cfg != nil {
		version = cfg.OutputVersion()
	}

	bytes[0] = byte(version<<4) | byte(typeTag)
	bytes[1] = byte(((h.settings.regwidth - 1) << 5) | h.settings.log2m)
	bytes[2] = packCutoffByte(h.settings)

	if h.storage != nil {
		h.storage.writeBytes(cfg, h.settings, bytes[3:])
	}

	return bytes
}

// Clear resets this Hll to the EMPTY, zero value. Unlike other
// implementations that leave the backing storage in place, this discards it
// entirely. Clear is the one operation that recovers an Hll from UNDEFINED.
func (h *Hll) Clear() {
	h.initOrPanic()
	h.storage = nil
}

// initOrPanic lazily initializes a zero value to an empty Hll (in the
// presence of default settings) or panics if there are no default settings
// installed. It does not touch an already-initialized Hll, UNDEFINED or
// otherwise.
func (h *Hll) initOrPanic() {
	// h is initialized if it has non-nil settings. That will either happen
	// by lazy initialization or via explicit instantiation with NewHll.
	if h.settings != nil {
		return
	}

	defaults := getDefaults()
	if defaults == nil {
		panic("attempted operation on empty Hll without default settings")
	}

	h.settings = defaults
}

// upgrade bumps the storage up to the next tier depending on the configured
// settings. It's assumed that the current storage has already been verified
// to be over capacity. The only upgrade path left once SPARSE moved to
// being wire-only is explicit -> dense.
func (h *Hll) upgrade() {
	s, ok := h.storage.(explicitStorage)
	if !ok {
		return
	}

	h.storage = newDenseStorage(h.settings)
	for _, value := range s {
		h.AddRaw(uint64(value))
	}
}

// addFromExplicit loops over all values in the provided storage and adds
// them to this Hll.
func (h *Hll) addFromExplicit(values explicitStorage) {
	for _, v := range values {
		h.AddRaw(uint64(v))
	}
}

// denseUnion handles union-ing two denseStorage instances. If the two
// settings have compatible regwidth and log2m settings, the efficient
// single-pass dense union is used. If they differ, register values are
// compared one-by-one, taking the largest value for each.
func denseUnion(thisStorage, otherStorage denseStorage, thisSettings, otherSettings *settings) {
	if thisSettings.log2m == otherSettings.log2m && thisSettings.regwidth == otherSettings.regwidth {
		thisStorage.union(thisSettings, otherStorage)
		return
	}

	for i := 0; i < 1<<uint(thisSettings.log2m); i++ {
		// mask the other's register value with our mBits setting to ensure
		// an accurate comparison.
		regVal := otherStorage.get(i, otherSettings.regwidth) & byte(thisSettings.mBitsMask)
		thisStorage.setIfGreater(thisSettings, i, regVal)
	}
}

// packCutoffByte serializes the byte that contains the explicit and sparse
// settings.
func packCutoffByte(settings *settings) byte {
	var threshold byte
	if settings.explicitAuto {
		// auto-threshold is encoded as all 6 bits set.
		threshold = 63
	} else if settings.explicitThreshold == 0 {
		threshold = 0
	} else {
		// pack as an exponent of 2: unpackCutoffByte recovers the
		// threshold as 1 << (e-1), so e itself is k+1 for threshold == 2^k.
		// note that this can be a destructive transformation if the
		// threshold is not a power of 2. settings.validate rejects that
		// case, so this is exact in practice.
		threshold = byte(bits.Len64(uint64(settings.explicitThreshold)))
	}

	cutoff := threshold
	if settings.sparseEnabled {
		cutoff |= 1 << 6
	}

	return cutoff
}

// unpackCutoffByte deserializes the byte that contains the explicit and
// sparse settings.
func unpackCutoffByte(b byte) (bool, int) {
	sparseEnabled := b>>6 == 1
	expThreshold := b & 0x3f

	if expThreshold == 0 {
		return sparseEnabled, 0
	}

	if expThreshold == 63 {
		return sparseEnabled, -1
	}

	return sparseEnabled, 1 << (expThreshold - 1)
}

// parseHeader extracts the three-byte header's fields without touching the
// payload, for the read-only accessors below that need only the header.
func parseHeader(bytes []byte) (version int, typeTag storageType, settings Settings, err error) {
	if len(bytes) < 3 {
		return 0, 0, Settings{}, ErrInsufficientBytes
	}

	version, typeTag = int(bytes[0]>>4), storageType(bytes[0]&0xf)
	if typeTag < undefined || typeTag > dense {
		return 0, 0, Settings{}, wrapMalformed("unknown storage type tag: %d", typeTag)
	}

	regwidth, log2m := (bytes[1]>>5)+1, bytes[1]&0x1f
	sparseEnabled, explicitThreshold := unpackCutoffByte(bytes[2])

	settings = Settings{
		Log2m:             int(log2m),
		Regwidth:          int(regwidth),
		SparseEnabled:     sparseEnabled,
		ExplicitThreshold: explicitThreshold,
	}

	return version, typeTag, settings, nil
}

// SchemaVersion returns the wire schema version recorded in a serialized
// sketch's header.
func SchemaVersion(bytes []byte) (int, error) {
	version, _, _, err := parseHeader(bytes)
	return version, err
}

// Type returns the storage type tag recorded in a serialized sketch's
// header: 0=undefined, 1=empty, 2=explicit, 3=sparse, 4=dense.
func Type(bytes []byte) (int, error) {
	_, typeTag, _, err := parseHeader(bytes)
	return int(typeTag), err
}

// Log2m returns the log2m parameter recorded in a serialized sketch's
// header.
func Log2m(bytes []byte) (int, error) {
	_, _, settings, err := parseHeader(bytes)
	return settings.Log2m, err
}

// Regwidth returns the regwidth parameter recorded in a serialized sketch's
// header.
func Regwidth(bytes []byte) (int, error) {
	_, _, settings, err := parseHeader(bytes)
	return settings.Regwidth, err
}

// SparseOn reports whether the sparse encoding is permitted for a serialized
// sketch, per its header.
func SparseOn(bytes []byte) (bool, error) {
	_, _, settings, err := parseHeader(bytes)
	return settings.SparseEnabled, err
}

// ExplicitThreshold returns both the declared expthresh recorded in a
// serialized sketch's header (AutoExplicitThreshold for auto, 0 for
// never-explicit, or the configured power of two) and the effective
// threshold actually in force once auto is resolved against log2m and
// regwidth.
func ExplicitThreshold(bytes []byte) (declared int, effective int, err error) {
	_, _, settings, err := parseHeader(bytes)
	if err != nil {
		return 0, 0, err
	}

	internal, err := settings.toInternal()
	if err != nil {
		return 0, 0, err
	}

	return settings.ExplicitThreshold, internal.explicitThreshold, nil
}

// Equal reports whether two serialized sketches are byte-identical. This is
// the wire-level `eq` operation: it does not decode either payload or
// compare cardinalities, matching the database extension's memcmp-based
// hll_eq.
func Equal(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// NotEqual is the complement of Equal, the wire-level `ne` operation.
func NotEqual(a, b []byte) bool {
	return !Equal(a, b)
}
