// Package engine defines the stable operation surface a strategy driver uses
// to run a backtest. Implementations live in versioned subpackages.
package engine

import (
	"time"

	"github.com/marelab/backsim/internal/types"
	"github.com/moznion/go-optional"
)

// Engine is the single entry point a strategy driver calls. The engine is
// strictly sequential: StepTo is the only place time moves forward, and no
// bar may begin before the previous bar's account state is committed.
// Callers only ever receive read-only copies of internal state.
type Engine interface {
	// SubmitSignal validates a signal and creates an order for it. Returns
	// the new order's ID, or an empty string if the guard rejected the
	// signal. Rejections are never fatal.
	SubmitSignal(signal types.Signal) string
	// GetOrder returns a copy of the order with the given ID.
	GetOrder(orderID string) optional.Option[types.Order]
	// CancelOrder cancels a live order. Returns false if the order does not
	// exist or is already terminal. Filled portions remain in the account.
	CancelOrder(orderID string) bool
	// StepTo advances the engine by exactly one bar: resolves fills for live
	// orders against the bar data, applies them to the account, and commits
	// an account snapshot. The timestamp must be strictly after the previous
	// bar. An error from StepTo means an invariant was violated and the run
	// must halt.
	StepTo(t time.Time, bars map[string]types.Bar) error
	// GetAccountSnapshot returns the snapshot committed at the end of the
	// most recent bar.
	GetAccountSnapshot() types.AccountSnapshot
	// GetEquityCurve returns the ordered sequence of committed snapshots.
	GetEquityCurve() []types.AccountSnapshot
	// ExportTrades writes the closed-trade ledger to the given path. The
	// format is chosen by extension: .csv or .json. Re-exporting without new
	// activity produces byte-identical files.
	ExportTrades(path string) error
	// ComputeMetrics computes the performance-metric set from the trade
	// ledger and equity curve.
	ComputeMetrics() types.Metrics
}
