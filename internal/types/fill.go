package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// Fill is one discrete execution event applied to an Order. Fills are
// append-only; an Order's FilledQuantity is the sum of its fills' quantities.
type Fill struct {
	ID      string    `yaml:"id" json:"id" csv:"id"`
	OrderID string    `yaml:"order_id" json:"order_id" csv:"order_id"`
	Time    time.Time `yaml:"time" json:"time" csv:"time"`
	Symbol  string    `yaml:"symbol" json:"symbol" csv:"symbol"`
	Side    Side      `yaml:"side" json:"side" csv:"side"`
	// Price is the execution price after slippage.
	Price float64 `yaml:"price" json:"price" csv:"price"`
	// Quantity is always positive; direction derives from Side.
	Quantity   float64 `yaml:"quantity" json:"quantity" csv:"quantity"`
	Commission float64 `yaml:"commission" json:"commission" csv:"commission"`
	// Slippage is the adverse price offset that was applied per unit.
	Slippage float64 `yaml:"slippage" json:"slippage" csv:"slippage"`
}

// SignedQuantity returns the quantity signed by side: positive for buys,
// negative for sells.
func (f *Fill) SignedQuantity() float64 {
	if f.Side == SideSell {
		return -f.Quantity
	}

	return f.Quantity
}

// Notional returns price * quantity, unsigned.
func (f *Fill) Notional() float64 {
	notional, _ := decimal.NewFromFloat(f.Price).Mul(decimal.NewFromFloat(f.Quantity)).Float64()

	return notional
}

// CashDelta returns the change this fill applies to account cash:
// -(signed notional) - commission.
func (f *Fill) CashDelta() float64 {
	notional := decimal.NewFromFloat(f.Price).Mul(decimal.NewFromFloat(f.SignedQuantity()))
	delta, _ := notional.Neg().Sub(decimal.NewFromFloat(f.Commission)).Float64()

	return delta
}
