// Package slippage provides the closed set of slippage models the execution
// simulator selects from at construction. Every model is a pure function of
// its inputs; there is no randomness anywhere in fill pricing.
package slippage

import (
	"github.com/marelab/backsim/internal/types"
)

// Model selects a slippage model in the engine configuration.
type Model string

const (
	// ModelNone applies no slippage.
	ModelNone Model = "none"
	// ModelFixedPct offsets the price by a fixed percentage. This is the
	// normative baseline model.
	ModelFixedPct Model = "fixed_pct"
	// ModelVolatility offsets the price proportionally to the bar's range.
	ModelVolatility Model = "volatility"
	// ModelSpread offsets the price by half a configured bid/ask spread.
	ModelSpread Model = "spread"
)

var AllModels = []any{
	ModelNone,
	ModelFixedPct,
	ModelVolatility,
	ModelSpread,
}

// Slippage computes the adverse per-unit price offset for a fill.
type Slippage interface {
	// Offset returns the non-negative price offset to apply at the given
	// base price on the given bar.
	Offset(basePrice float64, bar types.Bar) float64
}

// Adjusted applies an offset to a base price in the adverse direction for
// the order's side: buys pay more, sells receive less.
func Adjusted(side types.Side, basePrice, offset float64) float64 {
	if side == types.SideSell {
		return basePrice - offset
	}

	return basePrice + offset
}

// GetSlippageHandler returns the slippage model for the given selector.
// Unknown selectors fall back to no slippage; configuration validation
// rejects them before a run starts.
func GetSlippageHandler(model Model, pct, volatilityCoeff, spreadPct float64) Slippage {
	switch model {
	case ModelFixedPct:
		return NewFixedPct(pct)
	case ModelVolatility:
		return NewVolatility(volatilityCoeff)
	case ModelSpread:
		return NewSpread(spreadPct)
	case ModelNone:
		return NewNone()
	default:
		return NewNone()
	}
}
