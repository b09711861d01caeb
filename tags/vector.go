package tags

import (
	"fmt"
	"math/bits"
	"slices"

	"github.com/bothonetwork/go-clustertax/common/types"
)

// Pair is one (cluster, weight) entry of a TagVector.
type Pair struct {
	Cluster types.ClusterId
	Weight  uint32
}

// TagVector records what fraction of an output's value traces back to which
// minting cluster. Stored weights always sum to at most Scale; the remainder
// is implicit background (fully decayed, unattributed) mass. An empty vector
// is 100% background.
//
// TagVector is not safe for concurrent mutation; validation code treats
// vectors as immutable once an output is finalized.
type TagVector struct {
	weights map[types.ClusterId]uint32
}

// New returns an all-background vector.
func New() TagVector {
	return TagVector{weights: make(map[types.ClusterId]uint32)}
}

// Single returns a vector fully attributed to one cluster, as created at mint.
func Single(cluster types.ClusterId) TagVector {
	v := New()
	v.weights[cluster] = Scale
	return v
}

// FromPairs builds a vector from explicit entries, rejecting duplicates,
// overflow and oversized vectors. This is the boundary constructor for
// untrusted input; malformed data never reaches the arithmetic below.
func FromPairs(pairs []Pair) (TagVector, error) {
	if len(pairs) > MaxClusters {
		return TagVector{}, fmt.Errorf("%w: %d entries", types.ErrTooManyTags, len(pairs))
	}
	v := New()
	var sum uint64
	for _, p := range pairs {
		if _, ok := v.weights[p.Cluster]; ok {
			return TagVector{}, fmt.Errorf("%w: %s", types.ErrDuplicateCluster, p.Cluster)
		}
		sum += uint64(p.Weight)
		if sum > uint64(Scale) {
			return TagVector{}, fmt.Errorf("%w: sum %d", ErrWeightOverflow, sum)
		}
		if p.Weight > 0 {
			v.weights[p.Cluster] = p.Weight
		}
	}
	return v, nil
}

// FromWire converts a validated wire vector.
func FromWire(w *types.WireTagVector) (TagVector, error) {
	if err := w.Validate(); err != nil {
		return TagVector{}, err
	}
	pairs := make([]Pair, len(w.Entries))
	for i, e := range w.Entries {
		pairs[i] = Pair{Cluster: e.Cluster, Weight: e.Weight}
	}
	return FromPairs(pairs)
}

// ToWire returns the canonical wire form: entries sorted by weight
// descending, cluster id ascending on ties, sub-threshold entries folded
// into background.
func (v TagVector) ToWire() *types.WireTagVector {
	entries := make([]types.TagEntry, 0, len(v.weights))
	for c, w := range v.weights {
		if w < types.MinStoredWeight {
			continue
		}
		entries = append(entries, types.TagEntry{Cluster: c, Weight: w})
	}
	slices.SortFunc(entries, func(a, b types.TagEntry) int {
		if a.Weight != b.Weight {
			if a.Weight > b.Weight {
				return -1
			}
			return 1
		}
		if a.Cluster < b.Cluster {
			return -1
		}
		if a.Cluster > b.Cluster {
			return 1
		}
		return 0
	})
	return &types.WireTagVector{Entries: entries}
}

// Get returns the weight attributed to the cluster, zero if absent.
func (v TagVector) Get(cluster types.ClusterId) uint32 {
	return v.weights[cluster]
}

// Len returns the number of stored entries.
func (v TagVector) Len() int {
	return len(v.weights)
}

// TotalAttributed returns the sum of stored weights.
func (v TagVector) TotalAttributed() uint32 {
	var sum uint32
	for _, w := range v.weights {
		sum += w
	}
	return sum
}

// Background returns the unattributed remainder, Scale - TotalAttributed.
func (v TagVector) Background() uint32 {
	return Scale - v.TotalAttributed()
}

// Clusters returns the stored cluster ids in ascending order. Iteration over
// vectors always goes through this to keep results independent of map order.
func (v TagVector) Clusters() []types.ClusterId {
	ids := make([]types.ClusterId, 0, len(v.weights))
	for c := range v.weights {
		ids = append(ids, c)
	}
	slices.Sort(ids)
	return ids
}

// Pairs returns the entries in ascending cluster order.
func (v TagVector) Pairs() []Pair {
	pairs := make([]Pair, 0, len(v.weights))
	for _, c := range v.Clusters() {
		pairs = append(pairs, Pair{Cluster: c, Weight: v.weights[c]})
	}
	return pairs
}

// Clone returns a deep copy.
func (v TagVector) Clone() TagVector {
	out := TagVector{weights: make(map[types.ClusterId]uint32, len(v.weights))}
	for c, w := range v.weights {
		out.weights[c] = w
	}
	return out
}

// Equal reports whether two vectors carry identical attribution.
func (v TagVector) Equal(other TagVector) bool {
	if len(v.weights) != len(other.weights) {
		return false
	}
	for c, w := range v.weights {
		if other.weights[c] != w {
			return false
		}
	}
	return true
}

// ApplyDecay scales every stored weight by (Scale-ratePpm)/Scale with
// truncation and prunes sub-threshold remainders into background. Decay never
// increases attributed weight.
func (v *TagVector) ApplyDecay(ratePpm uint32) {
	if ratePpm == 0 || len(v.weights) == 0 {
		return
	}
	if ratePpm >= Scale {
		v.weights = make(map[types.ClusterId]uint32)
		return
	}
	retained := uint64(Scale - ratePpm)
	for c, w := range v.weights {
		// w*retained bounded by Scale^2, fits in uint64
		nw := uint32(uint64(w) * retained / uint64(Scale))
		if nw < PruneThreshold {
			delete(v.weights, c)
		} else {
			v.weights[c] = nw
		}
	}
}

// Prune drops sub-threshold entries and, when more than MaxClusters remain,
// keeps the heaviest entries. Ties go to the lower cluster id so every
// validator drops the same entries. Dropped mass becomes background.
func (v *TagVector) Prune() {
	for c, w := range v.weights {
		if w < PruneThreshold {
			delete(v.weights, c)
		}
	}
	if len(v.weights) <= MaxClusters {
		return
	}
	pairs := v.Pairs()
	slices.SortFunc(pairs, func(a, b Pair) int {
		if a.Weight != b.Weight {
			if a.Weight > b.Weight {
				return -1
			}
			return 1
		}
		if a.Cluster < b.Cluster {
			return -1
		}
		return 1
	})
	for _, p := range pairs[MaxClusters:] {
		delete(v.weights, p.Cluster)
	}
}

// Mix folds an incoming vector into this one as a value-weighted average:
// the receiver holds ownValue at its current attribution and absorbs
// incomingValue at the incoming attribution. Rounding remainders become
// background. Used when a transfer lands on an existing balance.
func (v *TagVector) Mix(ownValue uint64, incoming TagVector, incomingValue uint64) error {
	total, carry := bits.Add64(ownValue, incomingValue, 0)
	if carry != 0 {
		return ErrValueOverflow
	}
	if total == 0 {
		return nil
	}
	if incomingValue == 0 {
		return nil
	}
	if ownValue == 0 {
		v.weights = incoming.Clone().weights
		return nil
	}

	union := make(map[types.ClusterId]struct{}, len(v.weights)+len(incoming.weights))
	for c := range v.weights {
		union[c] = struct{}{}
	}
	for c := range incoming.weights {
		union[c] = struct{}{}
	}

	mixed := make(map[types.ClusterId]uint32, len(union))
	for c := range union {
		var hi, lo uint64
		hi, lo = mulAdd128(hi, lo, uint64(v.weights[c]), ownValue)
		hi, lo = mulAdd128(hi, lo, uint64(incoming.weights[c]), incomingValue)
		// numerator <= Scale*total, so the quotient fits in uint32
		w := uint32(div128(hi, lo, total))
		if w >= PruneThreshold {
			mixed[c] = w
		}
	}
	v.weights = mixed
	v.Prune()
	return nil
}
