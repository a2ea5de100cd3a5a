package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// AccountSnapshot is a read-only point-in-time view of the account. One
// snapshot is produced at the end of every bar; the ordered sequence of
// snapshots is the equity curve.
type AccountSnapshot struct {
	Time time.Time `yaml:"time" json:"time" csv:"time"`
	// Cash is the balance excluding open position value.
	Cash float64 `yaml:"cash" json:"cash" csv:"cash"`
	// Equity is cash plus the sum of position market values.
	Equity float64 `yaml:"equity" json:"equity" csv:"equity"`
	// RealizedPnL is the accumulated realized profit/loss across all symbols.
	RealizedPnL float64 `yaml:"realized_pnl" json:"realized_pnl" csv:"realized_pnl"`
	// UnrealizedPnL is the accumulated unrealized profit/loss of open positions.
	UnrealizedPnL float64 `yaml:"unrealized_pnl" json:"unrealized_pnl" csv:"unrealized_pnl"`
	// Positions lists the open (non-flat) positions at snapshot time.
	Positions []Position `yaml:"positions" json:"positions" csv:"-"`
}

// Reconcile checks the snapshot's equity against cash plus position market
// values at the given prices. Returns the absolute mismatch.
func (s *AccountSnapshot) Reconcile(prices map[string]float64) float64 {
	sum := decimal.NewFromFloat(s.Cash)

	for _, position := range s.Positions {
		price, ok := prices[position.Symbol]
		if !ok && position.Quantity != 0 {
			// Symbol missing from this bar: reconstruct the mark price from
			// the entry price and the last unrealized P&L.
			price = position.AvgEntryPrice + position.UnrealizedPnL/position.Quantity
		}

		sum = sum.Add(decimal.NewFromFloat(position.MarketValue(price)))
	}

	mismatch, _ := sum.Sub(decimal.NewFromFloat(s.Equity)).Abs().Float64()

	return mismatch
}
