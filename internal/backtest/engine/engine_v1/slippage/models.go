package slippage

import (
	"github.com/marelab/backsim/internal/types"
)

// None applies no slippage.
type None struct{}

// NewNone creates a no-op slippage model.
func NewNone() Slippage {
	return &None{}
}

func (n *None) Offset(basePrice float64, bar types.Bar) float64 {
	return 0
}

// FixedPct offsets the price by a fixed fraction of the base price.
type FixedPct struct {
	pct float64
}

// NewFixedPct creates a fixed-percentage slippage model.
func NewFixedPct(pct float64) Slippage {
	return &FixedPct{pct: pct}
}

func (f *FixedPct) Offset(basePrice float64, bar types.Bar) float64 {
	if f.pct <= 0 {
		return 0
	}

	return basePrice * f.pct
}

// Volatility offsets the price proportionally to the bar's high-low range.
// The proportionality coefficient is an explicit configuration parameter.
type Volatility struct {
	coeff float64
}

// NewVolatility creates a volatility-based slippage model.
func NewVolatility(coeff float64) Slippage {
	return &Volatility{coeff: coeff}
}

func (v *Volatility) Offset(basePrice float64, bar types.Bar) float64 {
	if v.coeff <= 0 {
		return 0
	}

	return v.coeff * bar.Range()
}

// Spread offsets the price by half a configured bid/ask spread, expressed as
// a fraction of the base price.
type Spread struct {
	spreadPct float64
}

// NewSpread creates a spread-based slippage model.
func NewSpread(spreadPct float64) Slippage {
	return &Spread{spreadPct: spreadPct}
}

func (s *Spread) Offset(basePrice float64, bar types.Bar) float64 {
	if s.spreadPct <= 0 {
		return 0
	}

	return basePrice * s.spreadPct / 2
}
