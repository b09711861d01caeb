package transfer

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bothonetwork/go-clustertax/cluster"
	"github.com/bothonetwork/go-clustertax/common/types"
	"github.com/bothonetwork/go-clustertax/tags"
)

func newExecutor(t *testing.T) (*Executor, *cluster.Wealth) {
	t.Helper()
	wealth := cluster.NewWealth()
	exec, err := NewExecutor(DefaultConfig(), wealth)
	require.NoError(t, err)
	return exec, wealth
}

func TestMintCreditsFreshCluster(t *testing.T) {
	t.Parallel()
	exec, wealth := newExecutor(t)
	account := NewAccount(1)
	id := types.ClusterId(7)

	require.NoError(t, exec.Mint(account, 1_000_000, id, 100))
	require.Equal(t, uint64(1_000_000), account.Balance)
	require.Equal(t, tags.Scale, account.Tags.Get(id))
	require.Equal(t, uint64(1_000_000), wealth.Wealth(id))
	require.Equal(t, types.BlockHeight(100), account.Activity.CreationBlock)
}

func TestMintIntoFundedAccountMixes(t *testing.T) {
	t.Parallel()
	exec, _ := newExecutor(t)
	account := NewAccount(1)
	require.NoError(t, exec.Mint(account, 1000, types.ClusterId(1), 100))
	require.NoError(t, exec.Mint(account, 1000, types.ClusterId(2), 200))

	require.Equal(t, uint64(2000), account.Balance)
	require.Equal(t, uint32(500_000), account.Tags.Get(types.ClusterId(1)))
	require.Equal(t, uint32(500_000), account.Tags.Get(types.ClusterId(2)))
}

func TestExecuteChargesFeeAndConservesValue(t *testing.T) {
	t.Parallel()
	exec, _ := newExecutor(t)
	sender := NewAccount(1)
	receiver := NewAccount(2)
	require.NoError(t, exec.Mint(sender, 1_000_000, types.ClusterId(1), 0))

	const amount = 500_000
	res, err := exec.Execute(sender, receiver, amount, 720)
	require.NoError(t, err)

	require.Equal(t, uint64(amount), res.Fee+res.NetAmount)
	require.Equal(t, uint64(amount)*uint64(res.RateBps)/10_000, res.Fee)
	require.Equal(t, uint64(1_000_000-amount), sender.Balance)
	require.Equal(t, res.NetAmount, receiver.Balance)
	require.GreaterOrEqual(t, res.RateBps, exec.cfg.Fees.Rate.MinRateBps)
	require.LessOrEqual(t, res.RateBps, exec.cfg.Fees.Rate.MaxRateBps)
}

func TestExecuteInsufficientBalance(t *testing.T) {
	t.Parallel()
	exec, _ := newExecutor(t)
	sender := NewAccount(1)
	receiver := NewAccount(2)
	require.NoError(t, exec.Mint(sender, 100, types.ClusterId(1), 0))

	_, err := exec.Execute(sender, receiver, 200, 720)
	require.ErrorIs(t, err, ErrInsufficientBalance)
	require.Equal(t, uint64(100), sender.Balance)
	require.Equal(t, uint64(0), receiver.Balance)
}

func TestExecuteDecaysInheritedTags(t *testing.T) {
	t.Parallel()
	exec, _ := newExecutor(t)
	sender := NewAccount(1)
	receiver := NewAccount(2)
	require.NoError(t, exec.Mint(sender, 1_000_000, types.ClusterId(1), 0))

	// eligible single-cluster spend into an empty account: no entropy gain, so
	// only the floor credit applies
	res, err := exec.Execute(sender, receiver, 500_000, 720)
	require.NoError(t, err)
	require.True(t, res.Decay.Inputs[0].Applied)
	require.Equal(t, uint32(100_000), res.Decay.FactorPpm)
	require.Equal(t, uint32(995_000), receiver.Tags.Get(types.ClusterId(1)))
	require.Less(t, receiver.Tags.TotalAttributed(), tags.Scale)
}

func TestExecuteYoungInputKeepsFullAttribution(t *testing.T) {
	t.Parallel()
	exec, _ := newExecutor(t)
	sender := NewAccount(1)
	receiver := NewAccount(2)
	require.NoError(t, exec.Mint(sender, 1_000_000, types.ClusterId(1), 0))

	_, err := exec.Execute(sender, receiver, 500_000, 100)
	require.NoError(t, err)
	require.Equal(t, tags.Scale, receiver.Tags.Get(types.ClusterId(1)))
}

func TestExecuteProgressiveRate(t *testing.T) {
	t.Parallel()
	wealth := cluster.NewWealth()
	wealth.Set(1, 100_000_000) // rich cluster
	wealth.Set(2, 1_000)       // poor cluster
	exec, err := NewExecutor(DefaultConfig(), wealth)
	require.NoError(t, err)

	rich := &Account{ID: 1, Balance: 1_000_000, Tags: tags.Single(types.ClusterId(1))}
	poor := &Account{ID: 2, Balance: 1_000_000, Tags: tags.Single(types.ClusterId(2))}

	richRes, err := exec.Execute(rich, NewAccount(3), 100_000, 720)
	require.NoError(t, err)
	poorRes, err := exec.Execute(poor, NewAccount(4), 100_000, 720)
	require.NoError(t, err)

	require.Greater(t, richRes.RateBps, poorRes.RateBps)
	require.Greater(t, richRes.Fee, poorRes.Fee)
}

func TestExecuteShiftsClusterWealth(t *testing.T) {
	t.Parallel()
	exec, wealth := newExecutor(t)
	sender := NewAccount(1)
	receiver := NewAccount(2)
	id := types.ClusterId(1)
	require.NoError(t, exec.Mint(sender, 1_000_000, id, 0))
	before := wealth.Wealth(id)

	res, err := exec.Execute(sender, receiver, 500_000, 720)
	require.NoError(t, err)

	// the fee and the decayed share of attribution both leave the cluster
	after := wealth.Wealth(id)
	require.Less(t, after, before)
	expected := before - 500_000 + res.NetAmount*uint64(receiver.Tags.Get(id))/uint64(tags.Scale)
	require.Equal(t, expected, after)
}

func TestExecuteRecordsSpendActivity(t *testing.T) {
	t.Parallel()
	exec, _ := newExecutor(t)
	sender := NewAccount(1)
	require.NoError(t, exec.Mint(sender, 1000, types.ClusterId(1), 0))

	_, err := exec.Execute(sender, NewAccount(2), 500, 720)
	require.NoError(t, err)
	require.Equal(t, types.BlockHeight(720), sender.Activity.LastActivityBlock)
	// creation block is sticky across spends
	require.Equal(t, types.BlockHeight(0), sender.Activity.CreationBlock)
}
