package decay

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bothonetwork/go-clustertax/common/types"
	"github.com/bothonetwork/go-clustertax/tags"
)

func newEngine(t *testing.T) *Engine {
	t.Helper()
	engine, err := NewEngine(DefaultConfig())
	require.NoError(t, err)
	return engine
}

func TestEligibleAgeGate(t *testing.T) {
	t.Parallel()
	cfg := DefaultAgeConfig()
	created := types.NewUtxoActivityState(1000)

	require.False(t, Eligible(cfg, created, 1000))
	require.False(t, Eligible(cfg, created, 1719))
	require.True(t, Eligible(cfg, created, 1720))
	require.True(t, Eligible(cfg, created, 5000))
	// reorg edge: current before creation counts as age zero
	require.False(t, Eligible(cfg, created, 500))
}

func TestCreditFactorInterpolation(t *testing.T) {
	t.Parallel()
	cfg := DefaultEntropyConfig()

	require.Equal(t, cfg.MinFactorPpm, cfg.CreditFactor(0))
	require.Equal(t, cfg.MinFactorPpm, cfg.CreditFactor(cfg.MinDeltaMillibits))
	require.Equal(t, tags.Scale, cfg.CreditFactor(cfg.FullCreditDeltaMillibits))
	require.Equal(t, tags.Scale, cfg.CreditFactor(10*cfg.FullCreditDeltaMillibits))

	// halfway through (min=100, full=1000 -> delta 550) under linear scaling
	mid := cfg.CreditFactor(550)
	require.Equal(t, uint32(550_000), mid)

	// monotone between the clamps
	prev := uint32(0)
	for delta := uint64(0); delta <= cfg.FullCreditDeltaMillibits; delta += 50 {
		f := cfg.CreditFactor(delta)
		require.GreaterOrEqual(t, f, prev, "delta %d", delta)
		prev = f
	}
}

func TestCreditFactorShapes(t *testing.T) {
	t.Parallel()
	cfg := DefaultEntropyConfig()
	delta := uint64(550) // halfway

	cfg.Scaling = ScalingBinary
	require.Equal(t, tags.Scale, cfg.CreditFactor(delta))
	require.Equal(t, cfg.MinFactorPpm, cfg.CreditFactor(cfg.MinDeltaMillibits))

	cfg.Scaling = ScalingSqrt
	sqrtMid := cfg.CreditFactor(delta)
	cfg.Scaling = ScalingLinear
	linearMid := cfg.CreditFactor(delta)
	// sqrt grants more credit before full progress
	require.Greater(t, sqrtMid, linearMid)
	require.LessOrEqual(t, sqrtMid, tags.Scale)
}

func TestEvaluateSpendFreshMintAtEligibilityAge(t *testing.T) {
	t.Parallel()
	// mint at block 0, spend exactly at the age gate: fresh counterparty mix
	// earns full credit and the 5% rate applies
	engine := newEngine(t)
	mintHeight := types.BlockHeight(0)
	spendHeight := types.BlockHeight(720)

	result, err := engine.EvaluateSpend([]SpendInput{
		{
			Portion:  tags.Portion{Vector: tags.Single(1), Value: 500},
			Activity: types.NewUtxoActivityState(mintHeight),
		},
		{
			Portion:  tags.Portion{Vector: tags.Single(2), Value: 500},
			Activity: types.NewUtxoActivityState(mintHeight),
		},
	}, spendHeight)
	require.NoError(t, err)

	// two equal fresh clusters mix to one full bit of entropy
	require.Equal(t, uint64(0), result.EntropyBefore)
	require.Equal(t, uint64(1000), result.EntropyAfter)
	require.Equal(t, tags.Scale, result.FactorPpm)
	require.Equal(t, uint32(50_000), result.EffectiveRatePpm)

	for _, in := range result.Inputs {
		require.True(t, in.Applied)
		require.Equal(t, ReasonApplied, in.Reason)
		require.Equal(t, uint32(950_000), in.Vector.TotalAttributed())
	}
}

func TestEvaluateSpendTooYoungPassesThrough(t *testing.T) {
	t.Parallel()
	engine := newEngine(t)
	v := tags.Single(1)

	result, err := engine.EvaluateSpend([]SpendInput{{
		Portion:  tags.Portion{Vector: v, Value: 100},
		Activity: types.NewUtxoActivityState(1000),
	}}, 1100)
	require.NoError(t, err)
	require.False(t, result.Inputs[0].Applied)
	require.Equal(t, ReasonTooYoung, result.Inputs[0].Reason)
	require.True(t, result.Inputs[0].Vector.Equal(v))
}

func TestEvaluateSpendPureBackgroundNeverDecays(t *testing.T) {
	t.Parallel()
	engine := newEngine(t)

	result, err := engine.EvaluateSpend([]SpendInput{{
		Portion:  tags.Portion{Vector: tags.New(), Value: 100},
		Activity: types.NewUtxoActivityState(0),
	}}, 10_000)
	require.NoError(t, err)
	require.False(t, result.Inputs[0].Applied)
	require.Equal(t, ReasonNoAttribution, result.Inputs[0].Reason)
	require.Equal(t, uint64(0), result.EntropyBefore)
	require.Equal(t, uint64(0), result.EntropyAfter)
}

func TestSelfTransferChainStaysAtFloor(t *testing.T) {
	t.Parallel()
	// ten age-eligible self-transfers of a fully attributed UTXO: entropy
	// stays exactly zero, credit stays at the floor, and cumulative decay is
	// far below ten full-rate rounds
	engine := newEngine(t)
	cfg := DefaultConfig()

	v := tags.Single(1)
	height := types.BlockHeight(0)
	for hop := 0; hop < 10; hop++ {
		height += 720
		result, err := engine.EvaluateSpend([]SpendInput{{
			Portion:  tags.Portion{Vector: v, Value: 1000},
			Activity: types.NewUtxoActivityState(height - 720),
		}}, height)
		require.NoError(t, err)
		require.Equal(t, uint64(0), result.EntropyAfter, "hop %d", hop)
		require.Equal(t, cfg.Entropy.MinFactorPpm, result.FactorPpm, "hop %d", hop)
		require.True(t, result.Inputs[0].Applied)
		v = result.Inputs[0].Vector
	}

	// floor credit of 10% on a 5% rate is 0.5% per hop: ~0.995^10
	require.Greater(t, v.TotalAttributed(), uint32(950_000))
	require.Less(t, v.TotalAttributed(), uint32(960_000))
}

func TestDecayMonotonicity(t *testing.T) {
	t.Parallel()
	engine := newEngine(t)
	v, err := tags.FromPairs([]tags.Pair{
		{Cluster: 1, Weight: 400_000},
		{Cluster: 2, Weight: 400_000},
	})
	require.NoError(t, err)

	for _, rate := range []uint32{1, 1000, 50_000, 999_999, tags.Scale} {
		out := engine.ApplyOne(SpendInput{
			Portion:  tags.Portion{Vector: v, Value: 100},
			Activity: types.NewUtxoActivityState(0),
		}, 10_000, rate)
		require.True(t, out.Applied)
		require.Less(t, out.Vector.TotalAttributed(), v.TotalAttributed(), "rate %d", rate)
	}
}

func TestConfigValidation(t *testing.T) {
	t.Parallel()
	t.Run("defaults are valid", func(t *testing.T) {
		t.Parallel()
		require.NoError(t, DefaultConfig().Validate())
	})
	t.Run("min factor above scale", func(t *testing.T) {
		t.Parallel()
		cfg := DefaultConfig()
		cfg.Entropy.MinFactorPpm = tags.Scale + 1
		require.ErrorIs(t, cfg.Validate(), ErrBadMinFactor)
		_, err := NewEngine(cfg)
		require.Error(t, err)
	})
	t.Run("inverted delta range", func(t *testing.T) {
		t.Parallel()
		cfg := DefaultConfig()
		cfg.Entropy.FullCreditDeltaMillibits = cfg.Entropy.MinDeltaMillibits
		require.ErrorIs(t, cfg.Validate(), ErrBadDeltaRange)
	})
	t.Run("rate above scale", func(t *testing.T) {
		t.Parallel()
		cfg := DefaultConfig()
		cfg.Age.RatePpm = tags.Scale + 1
		require.ErrorIs(t, cfg.Validate(), ErrBadRate)
	})
}

func TestScalingText(t *testing.T) {
	t.Parallel()
	for _, tc := range []struct {
		text string
		want Scaling
	}{
		{"linear", ScalingLinear},
		{"sqrt", ScalingSqrt},
		{"binary", ScalingBinary},
	} {
		var s Scaling
		require.NoError(t, s.UnmarshalText([]byte(tc.text)))
		require.Equal(t, tc.want, s)
		require.Equal(t, tc.text, s.String())
	}
	var s Scaling
	require.ErrorIs(t, s.UnmarshalText([]byte("exp")), ErrUnknownScaling)
}
