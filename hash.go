package hll

import "github.com/twmb/murmur3"

// DefaultHashSeed is the seed the reference implementation uses when a
// caller doesn't supply their own.
const DefaultHashSeed = 0

// Hasher produces the raw hash values AddRaw expects: the low 64 bits of a
// MurmurHash3 x64 128-bit digest, matching the value every hll_hash_*byte
// helper in the original extension returns.
type Hasher struct {
	seed uint64
}

// NewHasher returns a Hasher using the given seed. A negative seed is
// accepted -- the reference implementation only warns about it, it doesn't
// refuse to hash -- but is logged once at warn level, since a negative seed
// can't be reproduced bit-for-bit across every client library.
func NewHasher(seed int64) Hasher {
	if seed < 0 {
		logger.Warn("negative seed values not compatible across implementations", "seed", seed)
	}
	return Hasher{seed: uint64(seed)}
}

// Sum64 hashes data and returns the low 64 bits of the 128-bit digest, the
// value to pass to Hll.AddRaw.
func (h Hasher) Sum64(data []byte) uint64 {
	lo, _ := murmur3.SeedSum128(h.seed, h.seed, data)
	return lo
}

// HashBytes hashes data with the default seed. It's a convenience for the
// common case of a single global seed across an application.
func HashBytes(data []byte) uint64 {
	return NewHasher(DefaultHashSeed).Sum64(data)
}
