package decay

import (
	"fmt"
	"math/bits"

	"github.com/bothonetwork/go-clustertax/common/types"
	"github.com/bothonetwork/go-clustertax/tags"
)

// Reason explains why an input did or did not decay.
type Reason uint8

const (
	// ReasonApplied: the input was eligible and decayed at the effective rate.
	ReasonApplied Reason = iota
	// ReasonTooYoung: the input has not reached the minimum age.
	ReasonTooYoung
	// ReasonNoAttribution: the input is pure background, nothing to decay.
	ReasonNoAttribution
)

// String implements fmt.Stringer.
func (r Reason) String() string {
	switch r {
	case ReasonApplied:
		return "applied"
	case ReasonTooYoung:
		return "too-young"
	case ReasonNoAttribution:
		return "no-attribution"
	default:
		return fmt.Sprintf("reason(%d)", uint8(r))
	}
}

// Eligible reports whether an output has reached decay age.
func Eligible(cfg AgeConfig, activity types.UtxoActivityState, current types.BlockHeight) bool {
	return activity.Age(current) >= cfg.MinAgeBlocks
}

// SpendInput is one real input of a transaction under decay evaluation.
type SpendInput struct {
	Portion  tags.Portion
	Activity types.UtxoActivityState
}

// InputResult is the decay outcome for a single input.
type InputResult struct {
	// Vector is the post-decay tag vector (unchanged when not applied).
	Vector  tags.TagVector
	Applied bool
	Reason  Reason
}

// SpendResult is the decay outcome for a whole spend.
type SpendResult struct {
	Inputs []InputResult
	// EntropyBefore is the value-weighted average input entropy, milli-bits.
	EntropyBefore uint64
	// EntropyAfter is the entropy of the combined mix before decay.
	EntropyAfter uint64
	// DeltaMillibits is max(0, after-before).
	DeltaMillibits uint64
	// FactorPpm is the entropy credit granted, in [min factor, scale].
	FactorPpm uint32
	// EffectiveRatePpm is the decay rate actually applied to eligible inputs.
	EffectiveRatePpm uint32
}

// Engine evaluates decay for spends. It is stateless and safe for concurrent
// use from any number of validation workers.
type Engine struct {
	cfg Config
}

// NewEngine validates the configuration and returns an engine.
func NewEngine(cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("decay config: %w", err)
	}
	return &Engine{cfg: cfg}, nil
}

// CreditFactor maps an entropy delta (milli-bits) to a decay credit in parts
// per million, clamped to [MinFactorPpm, scale]. Spends that gain no entropy
// (wash trades) receive only the floor; genuine mixing earns full credit once
// the delta reaches FullCreditDeltaMillibits.
func (c EntropyConfig) CreditFactor(deltaMillibits uint64) uint32 {
	if deltaMillibits <= c.MinDeltaMillibits {
		return c.MinFactorPpm
	}
	if deltaMillibits >= c.FullCreditDeltaMillibits {
		return tags.Scale
	}
	if c.Scaling == ScalingBinary {
		return tags.Scale
	}
	// progress through (min, full) on the weight scale
	span := c.FullCreditDeltaMillibits - c.MinDeltaMillibits
	progress := (deltaMillibits - c.MinDeltaMillibits) * uint64(tags.Scale) / span
	if c.Scaling == ScalingSqrt {
		progress = isqrt(progress * uint64(tags.Scale))
	}
	credit := uint64(c.MinFactorPpm) +
		uint64(tags.Scale-c.MinFactorPpm)*progress/uint64(tags.Scale)
	if credit > uint64(tags.Scale) {
		credit = uint64(tags.Scale)
	}
	return uint32(credit)
}

// EvaluateSpend computes the entropy delta of the whole spend and applies the
// resulting effective decay rate to every age-eligible input. Entropy after
// is measured on the combined mix before decay, so decay itself can never
// manufacture entropy gain.
func (e *Engine) EvaluateSpend(inputs []SpendInput, current types.BlockHeight) (SpendResult, error) {
	portions := make([]tags.Portion, len(inputs))
	for i, in := range inputs {
		portions[i] = in.Portion
	}

	before, err := tags.WeightedEntropy(portions)
	if err != nil {
		return SpendResult{}, fmt.Errorf("input entropy: %w", err)
	}
	mix, err := tags.Propagate(portions)
	if err != nil {
		return SpendResult{}, fmt.Errorf("pre-decay mix: %w", err)
	}
	after := mix.ClusterEntropy()

	var delta uint64
	if after > before {
		delta = after - before
	}
	factor := e.cfg.Entropy.CreditFactor(delta)
	// base rate and factor are both bounded by the scale
	effective := uint32(uint64(e.cfg.Age.RatePpm) * uint64(factor) / uint64(tags.Scale))

	result := SpendResult{
		Inputs:           make([]InputResult, len(inputs)),
		EntropyBefore:    before,
		EntropyAfter:     after,
		DeltaMillibits:   delta,
		FactorPpm:        factor,
		EffectiveRatePpm: effective,
	}
	for i, in := range inputs {
		result.Inputs[i] = e.applyOne(in, current, effective)
	}
	return result, nil
}

// ApplyOne decays a single input at a precomputed effective rate. Exposed for
// callers that evaluate entropy credit elsewhere (e.g. single-input spends).
func (e *Engine) ApplyOne(in SpendInput, current types.BlockHeight, effectiveRatePpm uint32) InputResult {
	return e.applyOne(in, current, effectiveRatePpm)
}

func (e *Engine) applyOne(in SpendInput, current types.BlockHeight, effectiveRatePpm uint32) InputResult {
	if in.Portion.Vector.TotalAttributed() == 0 {
		return InputResult{Vector: in.Portion.Vector.Clone(), Reason: ReasonNoAttribution}
	}
	if !Eligible(e.cfg.Age, in.Activity, current) {
		return InputResult{Vector: in.Portion.Vector.Clone(), Reason: ReasonTooYoung}
	}
	decayed := in.Portion.Vector.Clone()
	decayed.ApplyDecay(effectiveRatePpm)
	return InputResult{Vector: decayed, Applied: true, Reason: ReasonApplied}
}

// isqrt returns the integer square root.
func isqrt(n uint64) uint64 {
	if n == 0 {
		return 0
	}
	x := uint64(1) << ((bits.Len64(n) + 1) / 2)
	for {
		y := (x + n/x) / 2
		if y >= x {
			return x
		}
		x = y
	}
}
