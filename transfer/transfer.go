// Package transfer is the ledger-boundary flow tying the provenance core
// together: it charges the progressive fee, decays and mixes tags, and
// maintains the cluster wealth estimate. The core packages stay pure; all
// mutable state lives here, owned by the caller.
package transfer

import (
	"errors"
	"fmt"
	"math/bits"

	"go.uber.org/zap"

	"github.com/bothonetwork/go-clustertax/cluster"
	"github.com/bothonetwork/go-clustertax/common/types"
	"github.com/bothonetwork/go-clustertax/decay"
	"github.com/bothonetwork/go-clustertax/fees"
	"github.com/bothonetwork/go-clustertax/tags"
)

// ErrInsufficientBalance is returned when a sender cannot cover a transfer.
var ErrInsufficientBalance = errors.New("insufficient balance")

// Account is a simulation-level aggregate of a wallet's outputs: a balance
// and the tag vector attributing it.
type Account struct {
	ID       uint64
	Balance  uint64
	Tags     tags.TagVector
	Activity types.UtxoActivityState
}

// NewAccount returns an empty, all-background account.
func NewAccount(id uint64) *Account {
	return &Account{ID: id, Tags: tags.New()}
}

// Config ties the fee surface to the decay policy for the transfer flow.
type Config struct {
	Fees  fees.Config  `mapstructure:"fees"`
	Decay decay.Config `mapstructure:"decay"`
}

// DefaultConfig returns the documented defaults of both subsystems.
func DefaultConfig() Config {
	return Config{
		Fees:  fees.DefaultConfig(),
		Decay: decay.DefaultConfig(),
	}
}

// Validate checks both subsystems.
func (c Config) Validate() error {
	if err := c.Fees.Validate(); err != nil {
		return err
	}
	return c.Decay.Validate()
}

// Result reports what a transfer did.
type Result struct {
	// Fee is the amount burned.
	Fee uint64
	// NetAmount is what the receiver gained.
	NetAmount uint64
	// RateBps is the effective fee rate that was applied.
	RateBps fees.RateBps
	// Decay is the decay evaluation for the spend.
	Decay decay.SpendResult
}

// Executor runs transfers against a mutable wealth store. Not safe for
// concurrent use; the surrounding ledger layer serializes state application.
type Executor struct {
	cfg    Config
	engine *decay.Engine
	wealth *cluster.Wealth
	logger *zap.Logger
}

// Opt configures an Executor.
type Opt func(*Executor)

// WithLogger sets the executor's logger.
func WithLogger(logger *zap.Logger) Opt {
	return func(e *Executor) {
		e.logger = logger
	}
}

// NewExecutor validates the config and builds the transfer flow around the
// given wealth store.
func NewExecutor(cfg Config, wealth *cluster.Wealth, opts ...Opt) (*Executor, error) {
	engine, err := decay.NewEngine(cfg.Decay)
	if err != nil {
		return nil, err
	}
	if err := cfg.Fees.Validate(); err != nil {
		return nil, fmt.Errorf("fee config: %w", err)
	}
	e := &Executor{
		cfg:    cfg,
		engine: engine,
		wealth: wealth,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Wealth exposes the underlying store, read-only by convention.
func (e *Executor) Wealth() cluster.Oracle {
	return e.wealth
}

// Mint credits newly created coins to an account under a fresh cluster and
// registers the cluster's wealth. Mints pay no fee and never decay.
func (e *Executor) Mint(account *Account, amount uint64, id types.ClusterId, current types.BlockHeight) error {
	minted := tags.Single(id)
	if err := account.Tags.Mix(account.Balance, minted, amount); err != nil {
		return fmt.Errorf("mint mix: %w", err)
	}
	account.Balance += amount
	if account.Balance == amount {
		account.Activity = types.NewUtxoActivityState(current)
	}
	e.wealth.ApplyDelta(id, int64(amount))
	e.logger.Debug("minted",
		zap.Uint64("account", account.ID),
		zap.Uint64("amount", amount),
		zap.Stringer("cluster", id),
	)
	return nil
}

// Execute moves amount from sender to receiver at the given height:
//
//  1. charge the sender's effective progressive fee
//  2. decay the moved tags (age-gated, entropy-weighted against the
//     receiver's existing attribution)
//  3. shift cluster wealth for the mass that left and the mass that arrived
//  4. mix the decayed tags into the receiver
func (e *Executor) Execute(sender, receiver *Account, amount uint64, current types.BlockHeight) (Result, error) {
	if sender.Balance < amount {
		return Result{}, fmt.Errorf("%w: have %d, need %d",
			ErrInsufficientBalance, sender.Balance, amount)
	}

	snapshot := e.wealth.Snapshot()
	rate := fees.EffectiveRateBps(sender.Tags, snapshot, e.cfg.Fees.Rate)
	fee := mulDivU64(amount, uint64(rate), 10_000)
	net := amount - fee

	spend := []decay.SpendInput{
		{
			Portion:  tags.Portion{Vector: sender.Tags, Value: net},
			Activity: sender.Activity,
		},
		{
			Portion:  tags.Portion{Vector: receiver.Tags, Value: receiver.Balance},
			Activity: receiver.Activity,
		},
	}
	decayResult, err := e.engine.EvaluateSpend(spend, current)
	if err != nil {
		return Result{}, fmt.Errorf("decay: %w", err)
	}
	moved := decayResult.Inputs[0].Vector

	// wealth leaves at the pre-decay attribution and arrives post-decay;
	// the gap is mass returning to background
	for _, p := range sender.Tags.Pairs() {
		leaving := mulDivU64(amount, uint64(p.Weight), uint64(tags.Scale))
		e.wealth.ApplyDelta(p.Cluster, -int64(leaving))
	}
	for _, p := range moved.Pairs() {
		arriving := mulDivU64(net, uint64(p.Weight), uint64(tags.Scale))
		e.wealth.ApplyDelta(p.Cluster, int64(arriving))
	}

	sender.Balance -= amount
	sender.Activity = sender.Activity.RecordSpend(current)
	if err := receiver.Tags.Mix(receiver.Balance, moved, net); err != nil {
		return Result{}, fmt.Errorf("receiver mix: %w", err)
	}
	receiver.Balance += net

	e.logger.Debug("transfer executed",
		zap.Uint64("from", sender.ID),
		zap.Uint64("to", receiver.ID),
		zap.Uint64("amount", amount),
		zap.Uint64("fee", fee),
		zap.Uint32("rate_bps", rate),
		zap.Uint32("decay_factor_ppm", decayResult.FactorPpm),
	)
	return Result{
		Fee:       fee,
		NetAmount: net,
		RateBps:   rate,
		Decay:     decayResult,
	}, nil
}

// mulDivU64 computes a*b/den with a 128-bit intermediate. The callers all
// guarantee the quotient fits (b <= den scale bounds).
func mulDivU64(a, b, den uint64) uint64 {
	hi, lo := bits.Mul64(a, b)
	quo, _ := bits.Div64(hi, lo, den)
	return quo
}
