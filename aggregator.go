package hll

import (
	"math"

	"github.com/pkg/errors"
)

// Aggregator is the Go analogue of the database extension's aggregate
// transition state: the accumulator a SUM()-style aggregate carries
// from row to row. A zero-value Aggregator is ready to use once default
// settings have been installed with Defaults (without them, Add panics);
// its first Add call adopts those settings for every subsequent call, mirroring
// MST_UNINIT becoming MST_EMPTY on the first non-null input in
// hll_add_trans0..4.
//
// Aggregator is not safe for concurrent use; each aggregation group owns
// its own instance, just as each PostgreSQL aggregate context owns its own
// multiset_t.
type Aggregator struct {
	hll       Hll
	init      bool
	finalized bool
}

// NewAggregator returns an Aggregator that will use s for its first Add,
// the equivalent of hll_add_trans4's explicit (log2m, regwidth, expthresh,
// sparseon) arguments. The zero Settings fail validation and return an
// error; NewDefaultAggregator is the all-default form corresponding to
// hll_add_trans0.
func NewAggregator(s Settings) (*Aggregator, error) {
	h, err := NewHll(s)
	if err != nil {
		return nil, err
	}
	return &Aggregator{hll: h}, nil
}

// NewDefaultAggregator returns an Aggregator that lazily adopts the
// package-level default settings on its first Add, the equivalent of
// hll_add_trans0.
func NewDefaultAggregator() *Aggregator {
	return &Aggregator{}
}

// Add is the add-aggregate transition function: it hashes nothing itself
// (the caller is expected to have already produced a well-distributed raw
// value, e.g. via a Hasher) and adds value to the accumulator. Add after a
// finalize call (Pack, Cardinality, FloorCardinality, CeilCardinality)
// returns ErrContextMisuse: the reference implementation's transition
// functions are never invoked again once the aggregate's final function has
// run for a group.
func (a *Aggregator) Add(value uint64) error {
	if a.finalized {
		return errors.Wrap(ErrContextMisuse, "Add called after the aggregator was finalized")
	}
	a.hll.AddRaw(value)
	a.init = true
	return nil
}

// UnionAggregator accumulates the union of a stream of already-serialized
// sketches, the equivalent of hll_union_trans.
type UnionAggregator struct {
	hll       Hll
	init      bool
	finalized bool
}

// NewUnionAggregator returns a ready-to-use, uninitialized UnionAggregator.
func NewUnionAggregator() *UnionAggregator {
	return &UnionAggregator{}
}

// Add unions the sketch encoded in bytes into the accumulator. The first
// call adopts bytes' metadata (mirroring hll_union_trans cloning the
// metadata of the first non-null input); every subsequent call is checked
// against it with StrictUnion, so a metadata mismatch across the grouped
// rows surfaces as ErrIncompatibleMetadata instead of silently degrading
// accuracy.
func (a *UnionAggregator) Add(bytes []byte) error {
	if a.finalized {
		return errors.Wrap(ErrContextMisuse, "Add called after the aggregator was finalized")
	}

	other, err := FromBytes(bytes)
	if err != nil {
		return err
	}

	if !a.init {
		a.hll = other
		a.init = true
		return nil
	}

	return a.hll.StrictUnion(other)
}

// Pack finalizes the accumulator into its serialized wire form, the
// equivalent of hll_pack. It returns (nil, false) if no row has been added,
// matching the NULL-in-NULL-out behavior of an aggregate over an empty
// group.
func (a *Aggregator) Pack() ([]byte, bool) {
	a.finalized = true
	if !a.init {
		return nil, false
	}
	return a.hll.ToBytes(), true
}

// Pack finalizes the union accumulator into its serialized wire form.
func (a *UnionAggregator) Pack() ([]byte, bool) {
	a.finalized = true
	if !a.init {
		return nil, false
	}
	return a.hll.ToBytes(), true
}

// Cardinality finalizes the accumulator into a cardinality estimate, the
// equivalent of hll_card_unpacked. It returns (0, false, nil) for an empty
// group (NULL in, NULL out) rather than using the reference implementation's
// -1.0 in-band sentinel, since Go can express "no value" directly.
func (a *Aggregator) Cardinality() (float64, bool, error) {
	a.finalized = true
	if !a.init {
		return 0, false, nil
	}
	return a.hll.Cardinality()
}

// FloorCardinality is Cardinality rounded down, the equivalent of
// hll_floor_card_unpacked.
func (a *Aggregator) FloorCardinality() (int64, bool, error) {
	estimate, ok, err := a.Cardinality()
	if err != nil || !ok {
		return 0, ok, err
	}
	return int64(math.Floor(estimate)), true, nil
}

// CeilCardinality is Cardinality rounded up, the equivalent of
// hll_ceil_card_unpacked.
func (a *Aggregator) CeilCardinality() (int64, bool, error) {
	estimate, ok, err := a.Cardinality()
	if err != nil || !ok {
		return 0, ok, err
	}
	return int64(math.Ceil(estimate)), true, nil
}

// Cardinality finalizes the union accumulator into a cardinality estimate.
func (a *UnionAggregator) Cardinality() (float64, bool, error) {
	a.finalized = true
	if !a.init {
		return 0, false, nil
	}
	return a.hll.Cardinality()
}

// FloorCardinality is Cardinality rounded down.
func (a *UnionAggregator) FloorCardinality() (int64, bool, error) {
	estimate, ok, err := a.Cardinality()
	if err != nil || !ok {
		return 0, ok, err
	}
	return int64(math.Floor(estimate)), true, nil
}

// CeilCardinality is Cardinality rounded up.
func (a *UnionAggregator) CeilCardinality() (int64, bool, error) {
	estimate, ok, err := a.Cardinality()
	if err != nil || !ok {
		return 0, ok, err
	}
	return int64(math.Ceil(estimate)), true, nil
}
