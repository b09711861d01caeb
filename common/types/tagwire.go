package types

import (
	"errors"
	"fmt"

	"github.com/spacemeshos/go-scale"
)

const (
	// TagWeightScale is the fixed-point denominator for tag weights.
	// A weight of TagWeightScale means 100% of the output's value.
	TagWeightScale = 1_000_000

	// MaxClusterTags caps the number of stored entries per output.
	MaxClusterTags = 32

	// MinStoredWeight is the smallest weight worth persisting; anything
	// below it is background on the wire (0.1% of value).
	MinStoredWeight = 1000
)

var (
	// ErrTooManyTags is returned when a wire vector exceeds MaxClusterTags.
	ErrTooManyTags = errors.New("tag vector exceeds maximum cluster count")
	// ErrDuplicateCluster is returned when a ClusterId appears twice.
	ErrDuplicateCluster = errors.New("duplicate cluster id in tag vector")
	// ErrWeightOutOfRange is returned for weights below the stored minimum
	// or above the scale.
	ErrWeightOutOfRange = errors.New("tag weight out of range")
	// ErrWeightSumOverflow is returned when stored weights sum above the scale.
	ErrWeightSumOverflow = errors.New("tag weights sum above scale")
	// ErrUnsortedTags is returned when entries are not in canonical order.
	ErrUnsortedTags = errors.New("tag entries not in canonical order")
	// ErrEmptyCluster is returned when an entry carries the reserved zero id.
	ErrEmptyCluster = errors.New("tag entry with empty cluster id")
)

// TagEntry is one stored (cluster, weight) pair of a wire tag vector.
type TagEntry struct {
	Cluster ClusterId
	Weight  uint32
}

// EncodeScale implements scale.Encodable.
func (t *TagEntry) EncodeScale(enc *scale.Encoder) (total int, err error) {
	{
		n, err := scale.EncodeCompact64(enc, uint64(t.Cluster))
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		n, err := scale.EncodeCompact32(enc, t.Weight)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

// DecodeScale implements scale.Decodable.
func (t *TagEntry) DecodeScale(dec *scale.Decoder) (total int, err error) {
	{
		v, n, err := scale.DecodeCompact64(dec)
		if err != nil {
			return total, err
		}
		total += n
		t.Cluster = ClusterId(v)
	}
	{
		v, n, err := scale.DecodeCompact32(dec)
		if err != nil {
			return total, err
		}
		total += n
		t.Weight = v
	}
	return total, nil
}

// WireTagVector is the persisted form of an output's tag vector: at most
// MaxClusterTags entries in canonical order (weight descending, cluster id
// ascending on ties). The difference between TagWeightScale and the sum of
// stored weights is implicit background mass.
type WireTagVector struct {
	Entries []TagEntry `scale:"max=32"`
}

// EncodeScale implements scale.Encodable.
func (v *WireTagVector) EncodeScale(enc *scale.Encoder) (total int, err error) {
	{
		n, err := scale.EncodeStructSliceWithLimit(enc, v.Entries, MaxClusterTags)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

// DecodeScale implements scale.Decodable.
func (v *WireTagVector) DecodeScale(dec *scale.Decoder) (total int, err error) {
	{
		field, n, err := scale.DecodeStructSliceWithLimit[TagEntry](dec, MaxClusterTags)
		if err != nil {
			return total, err
		}
		total += n
		v.Entries = field
	}
	return total, nil
}

// TotalStored returns the sum of stored weights. The result fits in uint64
// even for malformed vectors.
func (v *WireTagVector) TotalStored() uint64 {
	var sum uint64
	for i := range v.Entries {
		sum += uint64(v.Entries[i].Weight)
	}
	return sum
}

// Validate rejects malformed vectors before any arithmetic runs. Negligible
// weights are a construction-time concern; on the wire they are a hard error
// so that nodes never disagree on canonical bytes.
func (v *WireTagVector) Validate() error {
	if len(v.Entries) > MaxClusterTags {
		return fmt.Errorf("%w: %d entries", ErrTooManyTags, len(v.Entries))
	}
	seen := make(map[ClusterId]struct{}, len(v.Entries))
	var sum uint64
	for i := range v.Entries {
		e := &v.Entries[i]
		if e.Cluster == EmptyClusterId {
			return ErrEmptyCluster
		}
		if _, ok := seen[e.Cluster]; ok {
			return fmt.Errorf("%w: %s", ErrDuplicateCluster, e.Cluster)
		}
		seen[e.Cluster] = struct{}{}
		if e.Weight < MinStoredWeight || e.Weight > TagWeightScale {
			return fmt.Errorf("%w: %s weight %d", ErrWeightOutOfRange, e.Cluster, e.Weight)
		}
		if i > 0 {
			prev := &v.Entries[i-1]
			if e.Weight > prev.Weight ||
				(e.Weight == prev.Weight && e.Cluster <= prev.Cluster) {
				return ErrUnsortedTags
			}
		}
		sum += uint64(e.Weight)
	}
	if sum > TagWeightScale {
		return fmt.Errorf("%w: %d", ErrWeightSumOverflow, sum)
	}
	return nil
}
