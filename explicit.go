package hll

import (
	"encoding/binary"
	"sort"
)

// explicitStorage is the observed set of raw hash values, kept sorted
// ascending under signed 64-bit comparison with no duplicates at all times,
// exactly as the wire format requires. Preserving sort order in memory --
// rather than the map the original storage-spec implementations sometimes
// use -- means writeBytes never has to re-sort and contains/insert can use
// binary search.
type explicitStorage []int64

func newExplicitStorage(values ...int64) explicitStorage {
	s := make(explicitStorage, 0, len(values))
	for _, v := range values {
		s = s.insert(v)
	}
	return s
}

// search returns the index at which v is present, or the index at which it
// would need to be inserted to keep the slice sorted, plus whether it was
// found.
func (s explicitStorage) search(v int64) (int, bool) {
	idx := sort.Search(len(s), func(i int) bool { return s[i] >= v })
	return idx, idx < len(s) && s[idx] == v
}

// insert adds v if it isn't already present, keeping the slice sorted. It
// returns the (possibly reallocated) slice.
func (s explicitStorage) insert(v int64) explicitStorage {
	idx, found := s.search(v)
	if found {
		return s
	}
	s = append(s, 0)
	copy(s[idx+1:], s[idx:])
	s[idx] = v
	return s
}

// contains reports whether v is already present.
func (s explicitStorage) contains(v int64) bool {
	_, found := s.search(v)
	return found
}

// mergeUpTo merges other into s, keeping every element already in s and
// adding other's elements (skipping ones s already has) until doing so would
// push the result past limit. It reports the suffix of other left unmerged
// once that happens, mirroring the database extension's explicit_union,
// which never turns away an element already present in the target and only
// caps additions coming from the union's other operand.
func (s explicitStorage) mergeUpTo(other explicitStorage, limit int) (merged explicitStorage, remainder explicitStorage) {
	merged = s
	for i, v := range other {
		if merged.contains(v) {
			continue
		}
		if len(merged) >= limit {
			return merged, other[i:]
		}
		merged = merged.insert(v)
	}
	return merged, nil
}

func (s explicitStorage) overCapacity(settings *settings) bool {
	return len(s) > settings.explicitThreshold
}

func (s explicitStorage) sizeInBytes(cfg *Config, settings *settings) int {
	return 8 * len(s)
}

// writeBytes writes the observed values as big-endian 8 byte words. The
// receiver is already kept sorted ascending under signed comparison, which
// is exactly the order the storage spec requires.
func (s explicitStorage) writeBytes(cfg *Config, settings *settings, bytes []byte) {
	for i, value := range s {
		pos := i * 8
		binary.BigEndian.PutUint64(bytes[pos:pos+8], uint64(value))
	}
}

// explicitFromBytes parses a sequence of big-endian 8 byte words, rejecting
// an empty payload, a length that isn't a multiple of 8, or a sequence that
// isn't strictly ascending under signed comparison (invariant 2).
func explicitFromBytes(bytes []byte) (explicitStorage, error) {
	if len(bytes) == 0 || len(bytes)%8 != 0 {
		return nil, wrapMalformed("explicit payload length %d is not a positive multiple of 8", len(bytes))
	}

	out := make(explicitStorage, 0, len(bytes)/8)
	var prev int64
	for i := 0; i < len(bytes); i += 8 {
		value := int64(binary.BigEndian.Uint64(bytes[i : i+8]))
		if i > 0 && value <= prev {
			return nil, wrapMalformed("explicit values must be strictly ascending: %d does not follow %d", value, prev)
		}
		out = append(out, value)
		prev = value
	}

	return out, nil
}

func (s explicitStorage) copy() storage {
	o := make(explicitStorage, len(s))
	copy(o, s)
	return o
}
