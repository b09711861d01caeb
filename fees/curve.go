// Package fees maps provenance to progressive transaction fees: a tag
// vector's value-weighted source wealth is pushed through a bounded sigmoid
// to produce a cluster factor (structural 1x-6x multiplier) or a fee rate in
// basis points. All evaluation is pure integer arithmetic over a read-only
// wealth snapshot.
package fees

import (
	"errors"
	"fmt"
	"math"
	"math/bits"

	"github.com/bothonetwork/go-clustertax/cluster"
	"github.com/bothonetwork/go-clustertax/tags"
)

const (
	// FactorScale is the fixed-point denominator for cluster factors:
	// 1000 = 1x.
	FactorScale uint64 = 1000
	// sigmoidScale is the fixed-point denominator of the sigmoid table.
	sigmoidScale uint64 = 65536
)

// ErrCurveBounds is returned when a curve minimum exceeds its maximum.
var ErrCurveBounds = errors.New("curve minimum above maximum")

// sigmoidLUT maps x*1000 to sigmoid(x)*sigmoidScale. Interpolated linearly
// in between and clamped outside.
var sigmoidLUT = [7]struct {
	x int64
	y uint64
}{
	{-6000, 131},
	{-4000, 1180},
	{-2000, 7798},
	{0, 32768},
	{2000, 57738},
	{4000, 64356},
	{6000, 65405},
}

// FactorCurve maps cluster wealth to a bounded multiplier:
//
//	factor(W) = min + (max-min) x sigmoid((W - mid) / steepness)
//
// Small clusters pay roughly the base fee, the wealthiest pay MaxFactor
// times it, with a smooth transition around WMid.
type FactorCurve struct {
	// MinFactor is the multiplier floor, whole units (1 = 1x).
	MinFactor uint32 `mapstructure:"min-factor"`
	// MaxFactor is the multiplier ceiling, whole units (6 = 6x).
	MaxFactor uint32 `mapstructure:"max-factor"`
	// WMid is the wealth at the sigmoid inflection point.
	WMid uint64 `mapstructure:"w-mid"`
	// Steepness controls the transition width; larger is more gradual.
	// Zero degenerates to a step at WMid.
	Steepness uint64 `mapstructure:"steepness"`
}

// DefaultFactorCurve returns the documented starting parameters: 1x to 6x
// with the inflection at 10M.
func DefaultFactorCurve() FactorCurve {
	return FactorCurve{
		MinFactor: 1,
		MaxFactor: 6,
		WMid:      10_000_000,
		Steepness: 5_000_000,
	}
}

// FlatFactorCurve disables progressivity, mostly for tests.
func FlatFactorCurve(factor uint32) FactorCurve {
	return FactorCurve{MinFactor: factor, MaxFactor: factor, WMid: 0, Steepness: 1}
}

// Validate rejects inverted bounds.
func (c FactorCurve) Validate() error {
	if c.MinFactor > c.MaxFactor {
		return fmt.Errorf("%w: %d > %d", ErrCurveBounds, c.MinFactor, c.MaxFactor)
	}
	return nil
}

// Factor returns the multiplier for the given wealth on FactorScale units
// (1000 = 1x). Pure and deterministic.
func (c FactorCurve) Factor(wealth uint64) uint64 {
	s := c.sigmoid(wealth)
	span := uint64(c.MaxFactor - c.MinFactor)
	adjustment := span * s / sigmoidScale
	return (uint64(c.MinFactor) + adjustment) * FactorScale
}

// sigmoid approximates the logistic function on sigmoidScale via table
// lookup with linear interpolation.
func (c FactorCurve) sigmoid(wealth uint64) uint64 {
	if c.Steepness == 0 {
		if wealth >= c.WMid {
			return sigmoidScale
		}
		return 0
	}

	// x*1000, saturating far outside the table range
	var x int64
	if wealth >= c.WMid {
		d := wide1000(wealth - c.WMid, c.Steepness)
		x = d
	} else {
		x = -wide1000(c.WMid-wealth, c.Steepness)
	}

	first, last := sigmoidLUT[0], sigmoidLUT[len(sigmoidLUT)-1]
	if x <= first.x {
		return first.y
	}
	if x >= last.x {
		return last.y
	}
	for i := 0; i < len(sigmoidLUT)-1; i++ {
		lo, hi := sigmoidLUT[i], sigmoidLUT[i+1]
		if x >= lo.x && x < hi.x {
			t := uint64(x - lo.x)
			dx := uint64(hi.x - lo.x)
			return lo.y + (hi.y-lo.y)*t/dx
		}
	}
	return sigmoidScale / 2
}

// wide1000 computes diff*1000/steepness, saturating at the table edge so the
// intermediate never overflows int64.
func wide1000(diff, steepness uint64) int64 {
	const edge = 6000
	q := diff / steepness
	if q >= edge/1000 {
		return edge
	}
	r := diff % steepness
	v := q*1000 + r*1000/steepness
	if v > edge {
		return edge
	}
	return int64(v)
}

// ClusterFactor evaluates the value-weighted average source wealth of a tag
// vector against the oracle and maps it through the curve. Background mass
// contributes wealth zero, diluting the average; a pure-background vector
// lands at the curve floor. Returns FactorScale units.
func ClusterFactor(v tags.TagVector, oracle cluster.Oracle, curve FactorCurve) uint64 {
	return curve.Factor(AverageSourceWealth(v, oracle))
}

// AverageSourceWealth returns sum(weight_c * wealth_c) / scale: the average
// wealth behind one unit of the output's value, with background contributing
// zero.
func AverageSourceWealth(v tags.TagVector, oracle cluster.Oracle) uint64 {
	var hi, lo uint64
	for _, p := range v.Pairs() {
		phi, plo := bits.Mul64(uint64(p.Weight), oracle.Wealth(p.Cluster))
		var carry uint64
		lo, carry = bits.Add64(lo, plo, 0)
		hi, _ = bits.Add64(hi, phi, carry)
	}
	if hi >= uint64(tags.Scale) {
		return math.MaxUint64
	}
	quo, _ := bits.Div64(hi, lo, uint64(tags.Scale))
	return quo
}
