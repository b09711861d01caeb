package tags

import (
	"math/bits"

	"github.com/bothonetwork/go-clustertax/common/types"
)

// Portion pairs an input's (post-decay) tag vector with the slice of its
// value flowing into the output under construction.
type Portion struct {
	Vector TagVector
	Value  uint64
}

// Propagate computes an output's tag vector as the value-weighted average of
// the contributing inputs. For an output receiving value v_i from input i,
// the weight of cluster c is sum(v_i * w_i[c]) / sum(v_i), truncated.
// Truncation remainders become background. When the union of input clusters
// exceeds MaxClusters the heaviest entries win, ties to the lower cluster id.
//
// The result is a pure function of the multiset of portions: permuting the
// input list cannot change it.
func Propagate(portions []Portion) (TagVector, error) {
	var total uint64
	for _, p := range portions {
		sum, carry := bits.Add64(total, p.Value, 0)
		if carry != 0 {
			return TagVector{}, ErrValueOverflow
		}
		total = sum
	}
	if total == 0 {
		return New(), nil
	}

	union := make(map[types.ClusterId]struct{})
	for _, p := range portions {
		for c := range p.Vector.weights {
			union[c] = struct{}{}
		}
	}

	out := New()
	for c := range union {
		var hi, lo uint64
		for _, p := range portions {
			if w := p.Vector.weights[c]; w != 0 && p.Value != 0 {
				hi, lo = mulAdd128(hi, lo, uint64(w), p.Value)
			}
		}
		// numerator <= Scale*total, quotient fits in uint32
		w := uint32(div128(hi, lo, total))
		if w >= PruneThreshold {
			out.weights[c] = w
		}
	}
	out.Prune()
	return out, nil
}

// WeightedEntropy returns the value-weighted average cluster entropy of the
// portions, in milli-bits. Zero-value portions contribute nothing.
func WeightedEntropy(portions []Portion) (uint64, error) {
	var total uint64
	for _, p := range portions {
		sum, carry := bits.Add64(total, p.Value, 0)
		if carry != 0 {
			return 0, ErrValueOverflow
		}
		total = sum
	}
	if total == 0 {
		return 0, nil
	}
	var hi, lo uint64
	for _, p := range portions {
		if p.Value == 0 {
			continue
		}
		hi, lo = mulAdd128(hi, lo, p.Vector.ClusterEntropy(), p.Value)
	}
	// entropy is bounded by log2(MaxClusters) milli-bits scaled, far below
	// 2^64/total, so the quotient fits
	return div128(hi, lo, total), nil
}
