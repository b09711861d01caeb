// Package ring implements the conservative tag estimator used to validate
// fees under ring signatures. The verifier sees N candidate inputs, exactly
// one of which is real, and must price the spend without learning which.
// Safety comes from an asymmetry: the estimate is the maximum cluster factor
// across the ring, so decoy selection can only ever raise the fee, never
// lower it below what the true input would pay.
package ring

import (
	"errors"
	"fmt"
	"math/bits"

	"github.com/bothonetwork/go-clustertax/cluster"
	"github.com/bothonetwork/go-clustertax/common/types"
	"github.com/bothonetwork/go-clustertax/decay"
	"github.com/bothonetwork/go-clustertax/fees"
	"github.com/bothonetwork/go-clustertax/tags"
)

// ErrEmptyRing is returned when an estimate is requested over no members.
var ErrEmptyRing = errors.New("empty ring")

// Member is one candidate input of a ring: its public tag vector and its
// public activity metadata.
type Member struct {
	Tags     tags.TagVector
	Activity types.UtxoActivityState
}

// EligibilityKind classifies decay eligibility across a ring.
type EligibilityKind uint8

const (
	// EligibilityAll: every member has reached decay age.
	EligibilityAll EligibilityKind = iota
	// EligibilityNone: no member has reached decay age.
	EligibilityNone
	// EligibilityMixed: some members are eligible, some are not.
	EligibilityMixed
)

// String implements fmt.Stringer.
func (k EligibilityKind) String() string {
	switch k {
	case EligibilityAll:
		return "all"
	case EligibilityNone:
		return "none"
	case EligibilityMixed:
		return "mixed"
	default:
		return fmt.Sprintf("eligibility(%d)", uint8(k))
	}
}

// Eligibility is the tagged decay-eligibility state of a ring. The per-member
// view is carried only for the mixed case; consumers branch on Kind instead
// of scattering boolean flags.
type Eligibility struct {
	Kind    EligibilityKind
	Members []bool
}

// EligibilityOf classifies every member against the age gate at the given
// height.
func EligibilityOf(members []Member, current types.BlockHeight, cfg decay.AgeConfig) Eligibility {
	per := make([]bool, len(members))
	eligible := 0
	for i, m := range members {
		if decay.Eligible(cfg, m.Activity, current) {
			per[i] = true
			eligible++
		}
	}
	switch eligible {
	case len(members):
		return Eligibility{Kind: EligibilityAll}
	case 0:
		return Eligibility{Kind: EligibilityNone}
	default:
		return Eligibility{Kind: EligibilityMixed, Members: per}
	}
}

// ConservativeDecayEligible reports whether a validator may assume the real
// input decays. Only an all-eligible ring qualifies: if any member might be
// too young, assuming decay could understate attribution.
func (e Eligibility) ConservativeDecayEligible() bool {
	return e.Kind == EligibilityAll
}

// Estimate is the result of the conservative ring evaluation.
type Estimate struct {
	// FactorPpt is the maximum cluster factor across the ring, in
	// fees.FactorScale units (1000 = 1x).
	FactorPpt uint64
	// ArgMax is the index of the member that set the maximum (lowest index
	// on ties, for a deterministic witness).
	ArgMax int
	// Eligibility is the ring's decay classification.
	Eligibility Eligibility
}

// EstimateFactor computes the conservative fee basis for a ring: the maximum
// cluster factor over all members. It is a pure function of public data and
// never understates the factor of the (hidden) real input.
//
// Factors are always evaluated on the members' pre-decay tag vectors, even
// when the whole ring is decay-eligible. Decay only removes attributed
// weight, and removing weight can only lower the average source wealth and
// with it the cluster factor, so the pre-decay factor is an upper bound on
// every post-decay factor. Pricing on a post-decay estimate would instead
// bet on an entropy credit the verifier cannot confirm for the hidden real
// input. The Eligibility classification is still computed and returned so
// callers that evaluate spend-time decay separately know whether the
// assumption "the real input decays" is safe for the whole ring.
func EstimateFactor(
	members []Member,
	oracle cluster.Oracle,
	curve fees.FactorCurve,
	current types.BlockHeight,
	age decay.AgeConfig,
) (Estimate, error) {
	if len(members) == 0 {
		return Estimate{}, ErrEmptyRing
	}
	est := Estimate{Eligibility: EligibilityOf(members, current, age)}
	for i, m := range members {
		f := fees.ClusterFactor(m.Tags, oracle, curve)
		if i == 0 || f > est.FactorPpt {
			est.FactorPpt = f
			est.ArgMax = i
		}
	}
	return est, nil
}

// DecoyGuidance is the wallet-side selection advice: decoys should sit within
// a bounded age and factor ratio of the real input so the conservative
// estimate stays close to the true fee. Violations never invalidate a
// transaction, the sender just overpays.
type DecoyGuidance struct {
	// MaxAgeRatio bounds decoy age to real age (times 1000).
	MaxAgeRatio uint64 `mapstructure:"max-age-ratio"`
	// MaxFactorRatio bounds decoy factor to real factor (times 1000).
	MaxFactorRatio uint64 `mapstructure:"max-factor-ratio"`
}

// DefaultDecoyGuidance allows a 4x age spread and a 2x factor spread.
func DefaultDecoyGuidance() DecoyGuidance {
	return DecoyGuidance{MaxAgeRatio: 4000, MaxFactorRatio: 2000}
}

// Validate rejects ratios below 1x, which would exclude the real input
// itself.
func (g DecoyGuidance) Validate() error {
	if g.MaxAgeRatio < 1000 || g.MaxFactorRatio < 1000 {
		return errors.New("decoy ratios must be at least 1000 (1x)")
	}
	return nil
}

// WithinGuidance reports whether a candidate decoy fits the advisory bounds
// relative to the real input. Used at transaction construction, never at
// validation.
func (g DecoyGuidance) WithinGuidance(
	real, candidate Member,
	oracle cluster.Oracle,
	curve fees.FactorCurve,
	current types.BlockHeight,
) bool {
	realAge := real.Activity.Age(current)
	candAge := candidate.Activity.Age(current)
	if !withinRatio(realAge, candAge, g.MaxAgeRatio) {
		return false
	}
	realFactor := fees.ClusterFactor(real.Tags, oracle, curve)
	candFactor := fees.ClusterFactor(candidate.Tags, oracle, curve)
	return withinRatio(realFactor, candFactor, g.MaxFactorRatio)
}

// withinRatio reports whether the larger of a and b is at most ratioPpt/1000
// times the smaller.
func withinRatio(a, b, ratioPpt uint64) bool {
	lo, hi := a, b
	if lo > hi {
		lo, hi = hi, lo
	}
	if lo == hi {
		return true
	}
	if lo == 0 {
		return false
	}
	// hi*1000 <= lo*ratioPpt, with 128-bit intermediates
	hh, hl := bits.Mul64(hi, 1000)
	lh, ll := bits.Mul64(lo, ratioPpt)
	if hh != lh {
		return hh < lh
	}
	return hl <= ll
}
