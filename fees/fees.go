package fees

import (
	"fmt"

	"github.com/bothonetwork/go-clustertax/cluster"
	"github.com/bothonetwork/go-clustertax/tags"
)

// RateBps is a fee rate in basis points (1 bps = 0.01%).
type RateBps = uint32

// TxType selects the base fee rate.
type TxType uint8

const (
	// TxPlain is a standard transfer with visible amounts.
	TxPlain TxType = iota
	// TxHidden is a ring-signature transfer with committed amounts.
	TxHidden
	// TxMint is a minting reward claim, exempt from fees.
	TxMint
)

// String implements fmt.Stringer.
func (t TxType) String() string {
	switch t {
	case TxPlain:
		return "plain"
	case TxHidden:
		return "hidden"
	case TxMint:
		return "mint"
	default:
		return fmt.Sprintf("txtype(%d)", uint8(t))
	}
}

// RateCurve maps cluster wealth to a fee rate in basis points, sigmoid-shaped
// between MinRateBps and MaxRateBps with the same table as FactorCurve.
type RateCurve struct {
	// MinRateBps is the rate floor for poor provenance (0.05%).
	MinRateBps RateBps `mapstructure:"min-rate-bps"`
	// MaxRateBps is the rate ceiling for the wealthiest provenance (30%).
	MaxRateBps RateBps `mapstructure:"max-rate-bps"`
	// WMid is the wealth at the sigmoid inflection point.
	WMid uint64 `mapstructure:"w-mid"`
	// Steepness controls the transition width.
	Steepness uint64 `mapstructure:"steepness"`
	// BackgroundRateBps is charged on the unattributed share of value.
	BackgroundRateBps RateBps `mapstructure:"background-rate-bps"`
}

// DefaultRateCurve returns the documented starting parameters.
func DefaultRateCurve() RateCurve {
	return RateCurve{
		MinRateBps:        5,
		MaxRateBps:        3000,
		WMid:              10_000_000,
		Steepness:         5_000_000,
		BackgroundRateBps: 10,
	}
}

// FlatRateCurve returns a non-progressive curve, mostly for tests.
func FlatRateCurve(rate RateBps) RateCurve {
	return RateCurve{
		MinRateBps:        rate,
		MaxRateBps:        rate,
		WMid:              0,
		Steepness:         1,
		BackgroundRateBps: rate,
	}
}

// Validate rejects inverted bounds.
func (c RateCurve) Validate() error {
	if c.MinRateBps > c.MaxRateBps {
		return fmt.Errorf("%w: %d > %d", ErrCurveBounds, c.MinRateBps, c.MaxRateBps)
	}
	return nil
}

// RateBps returns the fee rate for the given cluster wealth. The sigmoid
// interpolation reuses the factor-curve table, so the two surfaces stay
// consistent.
func (c RateCurve) RateBps(wealth uint64) RateBps {
	inner := FactorCurve{
		MinFactor: c.MinRateBps,
		MaxFactor: c.MaxRateBps,
		WMid:      c.WMid,
		Steepness: c.Steepness,
	}
	return RateBps(inner.Factor(wealth) / FactorScale)
}

// Config is the full fee surface: per-type base rates plus the progressive
// curves.
type Config struct {
	// PlainRateBps is the base rate for plain transfers.
	PlainRateBps RateBps `mapstructure:"plain-rate-bps"`
	// HiddenRateBps is the base rate for ring-signature transfers.
	HiddenRateBps RateBps `mapstructure:"hidden-rate-bps"`
	// Factor is the structural multiplier curve (1x-6x).
	Factor FactorCurve `mapstructure:"factor"`
	// Rate is the direct rate curve in basis points.
	Rate RateCurve `mapstructure:"rate"`
}

// DefaultConfig returns the documented defaults: 5 bps plain, 20 bps hidden.
func DefaultConfig() Config {
	return Config{
		PlainRateBps:  5,
		HiddenRateBps: 20,
		Factor:        DefaultFactorCurve(),
		Rate:          DefaultRateCurve(),
	}
}

// Validate checks both curves.
func (c Config) Validate() error {
	if err := c.Factor.Validate(); err != nil {
		return fmt.Errorf("factor curve: %w", err)
	}
	if err := c.Rate.Validate(); err != nil {
		return fmt.Errorf("rate curve: %w", err)
	}
	return nil
}

// BaseRateBps returns the pre-multiplier rate for a transaction type.
func (c Config) BaseRateBps(t TxType) RateBps {
	switch t {
	case TxPlain:
		return c.PlainRateBps
	case TxHidden:
		return c.HiddenRateBps
	default:
		return 0
	}
}

// EffectiveRateBps returns the weight-averaged per-cluster rate of a tag
// vector, with the background share charged at BackgroundRateBps. This is the
// account-level rate used by the transfer flow.
func EffectiveRateBps(v tags.TagVector, oracle cluster.Oracle, curve RateCurve) RateBps {
	var weightedRate, totalWeight uint64
	for _, p := range v.Pairs() {
		rate := uint64(curve.RateBps(oracle.Wealth(p.Cluster)))
		weightedRate += rate * uint64(p.Weight)
		totalWeight += uint64(p.Weight)
	}
	bg := uint64(v.Background())
	weightedRate += uint64(curve.BackgroundRateBps) * bg
	totalWeight += bg
	if totalWeight == 0 {
		return curve.BackgroundRateBps
	}
	return RateBps(weightedRate / totalWeight)
}
