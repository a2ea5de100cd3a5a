package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// TradeRecord is a closed round-trip used only for reporting. The
// authoritative state is always fills plus positions; one record is derived
// per position-reducing fill.
type TradeRecord struct {
	EntryTime time.Time `yaml:"entry_time" json:"entry_time" csv:"entry_time"`
	ExitTime  time.Time `yaml:"exit_time" json:"exit_time" csv:"exit_time"`
	Symbol    string    `yaml:"symbol" json:"symbol" csv:"symbol"`
	// Side is the direction of the position that was closed: BUY for a long
	// round-trip, SELL for a short one.
	Side       Side    `yaml:"side" json:"side" csv:"side"`
	EntryPrice float64 `yaml:"entry_price" json:"entry_price" csv:"entry_price"`
	ExitPrice  float64 `yaml:"exit_price" json:"exit_price" csv:"exit_price"`
	Quantity   float64 `yaml:"quantity" json:"quantity" csv:"quantity"`
	// PnL is the realized profit/loss before commission.
	PnL float64 `yaml:"pnl" json:"pnl" csv:"pnl"`
	// PnLPct is PnL relative to the entry notional.
	PnLPct     float64 `yaml:"pnl_pct" json:"pnl_pct" csv:"pnl_pct"`
	Commission float64 `yaml:"commission" json:"commission" csv:"commission"`
	Slippage   float64 `yaml:"slippage" json:"slippage" csv:"slippage"`
}

// ComputePnL returns the signed realized profit/loss for a round-trip of the
// given direction, using decimal arithmetic to avoid float drift.
func ComputePnL(side Side, entryPrice, exitPrice, quantity float64) float64 {
	diff := decimal.NewFromFloat(exitPrice).Sub(decimal.NewFromFloat(entryPrice))
	if side == SideSell {
		diff = diff.Neg()
	}

	pnl, _ := diff.Mul(decimal.NewFromFloat(quantity)).Float64()

	return pnl
}

// Holding returns how long the round-trip was held.
func (t *TradeRecord) Holding() time.Duration {
	return t.ExitTime.Sub(t.EntryTime)
}
