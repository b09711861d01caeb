// Package tags implements the provenance attribution core: fixed-point tag
// weights, the per-output TagVector, entropy over attributed mass, and the
// propagation of tags from spent inputs to new outputs.
//
// Everything in this package is integer arithmetic on a fixed scale. The
// results must be bit-identical across independently compiled validators, so
// no floating point is used on any consensus path.
package tags

import (
	"errors"
	"math/bits"

	"github.com/bothonetwork/go-clustertax/common/types"
)

const (
	// Scale is the fixed-point denominator for weights: Scale = 100%.
	Scale uint32 = types.TagWeightScale

	// MaxClusters caps the number of entries a vector may hold.
	MaxClusters = types.MaxClusterTags

	// PruneThreshold is the smallest weight kept in a vector. Entries that
	// decay or dilute below it are folded into background.
	PruneThreshold uint32 = 100
)

var (
	// ErrWeightOverflow is returned when an operation would push a weight or
	// a weight sum above Scale. Overflow is a validation failure of the
	// offending transaction, never a panic.
	ErrWeightOverflow = errors.New("tag weight overflow")
	// ErrZeroDenominator is returned by fraction scaling with a zero divisor.
	ErrZeroDenominator = errors.New("zero denominator")
	// ErrValueOverflow is returned when combined input values exceed the
	// representable range.
	ErrValueOverflow = errors.New("value overflow")
)

// AddWeight returns a+b, or ErrWeightOverflow when the sum exceeds Scale.
func AddWeight(a, b uint32) (uint32, error) {
	sum := uint64(a) + uint64(b)
	if sum > uint64(Scale) {
		return 0, ErrWeightOverflow
	}
	return uint32(sum), nil
}

// SaturatingSub returns a-b, clamped at zero.
func SaturatingSub(a, b uint32) uint32 {
	if b >= a {
		return 0
	}
	return a - b
}

// ScaleByFraction computes w*num/den with truncation, using a 128-bit
// intermediate so the product never overflows. Truncation always rounds
// toward zero; lost mass becomes background, attribution is never fabricated.
func ScaleByFraction(w uint64, num, den uint64) (uint64, error) {
	if den == 0 {
		return 0, ErrZeroDenominator
	}
	hi, lo := bits.Mul64(w, num)
	if hi >= den {
		return 0, ErrWeightOverflow
	}
	quo, _ := bits.Div64(hi, lo, den)
	return quo, nil
}

// mulAdd128 accumulates w*v into the 128-bit pair (hi, lo).
func mulAdd128(hi, lo, w, v uint64) (uint64, uint64) {
	phi, plo := bits.Mul64(w, v)
	var carry uint64
	lo, carry = bits.Add64(lo, plo, 0)
	hi, _ = bits.Add64(hi, phi, carry)
	return hi, lo
}

// div128 divides the 128-bit numerator (hi, lo) by den. The caller must
// guarantee the quotient fits in 64 bits (hi < den).
func div128(hi, lo, den uint64) uint64 {
	quo, _ := bits.Div64(hi, lo, den)
	return quo
}
