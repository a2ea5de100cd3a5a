package types

import (
	"math"
	"time"

	"github.com/shopspring/decimal"
)

// Position is the per-symbol aggregate of all fills since the position was
// last flat. Quantity is signed: positive for long, negative for short.
type Position struct {
	Symbol string `yaml:"symbol" json:"symbol" csv:"symbol"`
	// Quantity equals the signed sum of all fills for the symbol since the
	// position was last flat.
	Quantity float64 `yaml:"quantity" json:"quantity" csv:"quantity"`
	// AvgEntryPrice is the volume-weighted average price of same-direction adds.
	AvgEntryPrice float64 `yaml:"avg_entry_price" json:"avg_entry_price" csv:"avg_entry_price"`
	// RealizedPnL accumulates on fills that reduce or flip the position.
	RealizedPnL float64 `yaml:"realized_pnl" json:"realized_pnl" csv:"realized_pnl"`
	// UnrealizedPnL is recomputed each bar from the close price.
	UnrealizedPnL float64   `yaml:"unrealized_pnl" json:"unrealized_pnl" csv:"unrealized_pnl"`
	OpenedAt      time.Time `yaml:"opened_at" json:"opened_at" csv:"opened_at"`
}

// IsFlat reports whether the position holds no quantity.
func (p *Position) IsFlat() bool {
	return p.Quantity == 0
}

// IsLong reports whether the position quantity is positive.
func (p *Position) IsLong() bool {
	return p.Quantity > 0
}

// AbsQuantity returns the unsigned position size.
func (p *Position) AbsQuantity() float64 {
	return math.Abs(p.Quantity)
}

// MarketValue returns the signed market value of the position at the given price.
func (p *Position) MarketValue(price float64) float64 {
	value, _ := decimal.NewFromFloat(p.Quantity).Mul(decimal.NewFromFloat(price)).Float64()

	return value
}

// Exposure returns the unsigned market value at the given price, used for
// leverage checks.
func (p *Position) Exposure(price float64) float64 {
	return math.Abs(p.MarketValue(price))
}

// MarkToMarket recomputes UnrealizedPnL against the given price:
// (price - avg entry) * signed quantity.
func (p *Position) MarkToMarket(price float64) {
	if p.IsFlat() {
		p.UnrealizedPnL = 0

		return
	}

	diff := decimal.NewFromFloat(price).Sub(decimal.NewFromFloat(p.AvgEntryPrice))
	pnl, _ := diff.Mul(decimal.NewFromFloat(p.Quantity)).Float64()
	p.UnrealizedPnL = pnl
}
