// Package decay implements the two-layer decay policy applied to input tag
// vectors at spend time: a mandatory age gate and an entropy-weighted credit
// that rewards genuine mixing over wash trading.
package decay

import (
	"errors"
	"fmt"

	"github.com/bothonetwork/go-clustertax/tags"
)

var (
	// ErrBadMinFactor is returned when the credit floor exceeds full credit.
	ErrBadMinFactor = errors.New("min factor above scale")
	// ErrBadDeltaRange is returned when the full-credit delta does not
	// exceed the minimum delta threshold.
	ErrBadDeltaRange = errors.New("full credit delta must exceed min delta")
	// ErrBadRate is returned for a base decay rate above the scale.
	ErrBadRate = errors.New("decay rate above scale")
	// ErrUnknownScaling is returned for an unrecognized scaling name.
	ErrUnknownScaling = errors.New("unknown entropy scaling")
)

// Scaling selects the interpolation shape between the minimum entropy delta
// and full decay credit. The shape is a tuning knob; linear is the default
// pending simulation results.
type Scaling uint8

const (
	// ScalingLinear interpolates credit linearly in the entropy delta.
	ScalingLinear Scaling = iota
	// ScalingSqrt grants credit on the square root of the progress, giving
	// more credit early.
	ScalingSqrt
	// ScalingBinary grants full credit to any delta above the threshold.
	ScalingBinary
)

// String implements fmt.Stringer.
func (s Scaling) String() string {
	switch s {
	case ScalingLinear:
		return "linear"
	case ScalingSqrt:
		return "sqrt"
	case ScalingBinary:
		return "binary"
	default:
		return fmt.Sprintf("scaling(%d)", uint8(s))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s Scaling) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler, letting the scaling be
// named in config files.
func (s *Scaling) UnmarshalText(text []byte) error {
	switch string(text) {
	case "linear", "":
		*s = ScalingLinear
	case "sqrt":
		*s = ScalingSqrt
	case "binary":
		*s = ScalingBinary
	default:
		return fmt.Errorf("%w: %q", ErrUnknownScaling, text)
	}
	return nil
}

// AgeConfig gates decay on output age. An input younger than MinAgeBlocks
// passes through undecayed, which bounds the decay throughput a patient
// attacker can achieve without any extra mutable state.
type AgeConfig struct {
	// MinAgeBlocks is the minimum age before an input is decay-eligible.
	MinAgeBlocks uint64 `mapstructure:"min-age-blocks"`
	// RatePpm is the base per-spend decay rate in parts per million.
	RatePpm uint32 `mapstructure:"rate-ppm"`
}

// DefaultAgeConfig returns the documented defaults: one day of blocks and 5%
// decay per eligible spend.
func DefaultAgeConfig() AgeConfig {
	return AgeConfig{
		MinAgeBlocks: 720,
		RatePpm:      50_000,
	}
}

// Validate rejects rates above 100%.
func (c AgeConfig) Validate() error {
	if c.RatePpm > tags.Scale {
		return fmt.Errorf("%w: %d", ErrBadRate, c.RatePpm)
	}
	return nil
}

// EntropyConfig tunes the entropy-weighted decay credit. Deltas are measured
// in milli-bits of cluster entropy (background excluded).
type EntropyConfig struct {
	// MinDeltaMillibits is the entropy gain below which only the floor
	// credit is granted.
	MinDeltaMillibits uint64 `mapstructure:"min-delta-millibits"`
	// FullCreditDeltaMillibits is the entropy gain at which decay credit
	// reaches 100%.
	FullCreditDeltaMillibits uint64 `mapstructure:"full-credit-delta-millibits"`
	// MinFactorPpm is the hard credit floor applied to low-entropy spends,
	// in parts per million of the base rate.
	MinFactorPpm uint32 `mapstructure:"min-factor-ppm"`
	// Scaling selects the interpolation shape between floor and full credit.
	Scaling Scaling `mapstructure:"scaling"`
}

// DefaultEntropyConfig returns the documented defaults: 0.1 bit threshold,
// 1.0 bit for full credit, 10% floor, linear shape.
func DefaultEntropyConfig() EntropyConfig {
	return EntropyConfig{
		MinDeltaMillibits:        100,
		FullCreditDeltaMillibits: 1000,
		MinFactorPpm:             100_000,
		Scaling:                  ScalingLinear,
	}
}

// Validate rejects economically nonsensical parameters at load time.
func (c EntropyConfig) Validate() error {
	if c.MinFactorPpm > tags.Scale {
		return fmt.Errorf("%w: %d", ErrBadMinFactor, c.MinFactorPpm)
	}
	if c.FullCreditDeltaMillibits <= c.MinDeltaMillibits {
		return fmt.Errorf("%w: min %d full %d",
			ErrBadDeltaRange, c.MinDeltaMillibits, c.FullCreditDeltaMillibits)
	}
	return nil
}

// Config aggregates both decay layers.
type Config struct {
	Age     AgeConfig     `mapstructure:"age"`
	Entropy EntropyConfig `mapstructure:"entropy"`
}

// DefaultConfig returns the documented defaults for both layers.
func DefaultConfig() Config {
	return Config{
		Age:     DefaultAgeConfig(),
		Entropy: DefaultEntropyConfig(),
	}
}

// Validate checks both layers.
func (c Config) Validate() error {
	if err := c.Age.Validate(); err != nil {
		return err
	}
	return c.Entropy.Validate()
}
