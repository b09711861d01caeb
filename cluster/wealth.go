// Package cluster tracks per-cluster aggregate wealth. The provenance core
// consumes wealth read-only through the Oracle interface; the mutable store
// belongs to the surrounding ledger layer.
package cluster

import (
	"slices"

	"github.com/bothonetwork/go-clustertax/common/types"
)

// Oracle is the read-only view the fee evaluator and ring estimator consume.
// Implementations must be snapshots: the same oracle must answer identically
// for the duration of one validation pass.
type Oracle interface {
	Wealth(types.ClusterId) uint64
}

// Wealth is an in-memory wealth store, used as the oracle snapshot in tests
// and simulation and as the mutable ledger-side accumulator.
type Wealth struct {
	wealth map[types.ClusterId]uint64
}

var _ Oracle = (*Wealth)(nil)

// NewWealth returns an empty store.
func NewWealth() *Wealth {
	return &Wealth{wealth: make(map[types.ClusterId]uint64)}
}

// Wealth implements Oracle, returning zero for unknown clusters.
func (w *Wealth) Wealth(cluster types.ClusterId) uint64 {
	return w.wealth[cluster]
}

// Set overwrites a cluster's wealth estimate.
func (w *Wealth) Set(cluster types.ClusterId, amount uint64) {
	if amount == 0 {
		delete(w.wealth, cluster)
		return
	}
	w.wealth[cluster] = amount
}

// ApplyDelta adjusts a cluster's wealth, clamping at zero. Decay and rounding
// can make outflow deltas slightly exceed tracked wealth; the clamp keeps the
// estimate well-defined.
func (w *Wealth) ApplyDelta(cluster types.ClusterId, delta int64) {
	current := w.wealth[cluster]
	if delta >= 0 {
		w.Set(cluster, current+uint64(delta))
		return
	}
	dec := uint64(-delta)
	if dec >= current {
		delete(w.wealth, cluster)
		return
	}
	w.wealth[cluster] = current - dec
}

// Total returns the summed wealth across all clusters.
func (w *Wealth) Total() uint64 {
	var total uint64
	for _, amount := range w.wealth {
		total += amount
	}
	return total
}

// Clusters returns the tracked cluster ids in ascending order.
func (w *Wealth) Clusters() []types.ClusterId {
	ids := make([]types.ClusterId, 0, len(w.wealth))
	for c := range w.wealth {
		ids = append(ids, c)
	}
	slices.Sort(ids)
	return ids
}

// Snapshot returns an independent copy to serve as a read-only oracle while
// the original keeps accumulating deltas.
func (w *Wealth) Snapshot() *Wealth {
	out := NewWealth()
	for c, amount := range w.wealth {
		out.wealth[c] = amount
	}
	return out
}
