package hll

import (
	"fmt"

	"github.com/pkg/errors"
)

// The sketch engine raises exactly one of these error kinds for every
// operation that can fail. Callers that need to distinguish a validation
// mistake from a decoding problem should compare against these sentinels with
// errors.Is (or errors.Cause, for the few call sites that still wrap with
// github.com/pkg/errors context).
var (
	// ErrInvalidParameter is returned when log2m, regwidth, expthresh or
	// sparseon fall outside their legal domain, or when a type modifier
	// unpacks to an invalid combination.
	ErrInvalidParameter = errors.New("hll: invalid parameter")

	// ErrIncompatibleMetadata is returned by StrictUnion (and by the
	// metadata-sensitive operations built on it) when two sketches do not
	// share (log2m, regwidth, expthresh, sparseon).
	ErrIncompatibleMetadata = errors.New("hll: incompatible metadata")

	// ErrMalformedInput is returned while decoding a serialized sketch whose
	// header or payload does not satisfy the wire format: unknown version,
	// unknown type tag, inconsistent payload length, a trailing pad of 8 or
	// more bits, an explicit list that isn't strictly ascending, or a payload
	// that exceeds MaxPayloadBytes.
	ErrMalformedInput = errors.New("hll: malformed input")

	// ErrEstimatorDomain is returned by Cardinality when the sketch's
	// register count is too small (m <= 8) for the estimator's correction
	// formulas to be meaningful.
	ErrEstimatorDomain = errors.New("hll: estimator domain error")

	// ErrContextMisuse is returned when an aggregator's Add is called after
	// one of its finalize methods (Pack, Cardinality, FloorCardinality,
	// CeilCardinality), and by Config.SetDefaults when different default
	// settings are already installed. Finalize methods may be called more
	// than once without error.
	ErrContextMisuse = errors.New("hll: aggregate context misuse")

	// ErrInsufficientBytes is returned by FromBytes when the provided byte
	// slice is shorter than the 3 byte header. A payload shorter than its
	// header declares is reported as ErrMalformedInput instead.
	ErrInsufficientBytes = errors.New("hll: insufficient bytes to deserialize sketch")
)

// ErrIncompatible is retained as an alias of ErrIncompatibleMetadata for
// callers ported from the StrictUnion-only API.
var ErrIncompatible = ErrIncompatibleMetadata

// wrapMalformed wraps ErrMalformedInput with a formatted message, the
// pattern used throughout the wire codec for context-specific decode
// failures.
func wrapMalformed(format string, args ...interface{}) error {
	return errors.Wrap(ErrMalformedInput, fmt.Sprintf(format, args...))
}
