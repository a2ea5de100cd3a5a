package engine

import (
	"math"

	"github.com/marelab/backsim/internal/backtest/engine/engine_v1/commission_fee"
	"github.com/marelab/backsim/internal/backtest/engine/engine_v1/slippage"
	"github.com/marelab/backsim/internal/types"
	"github.com/moznion/go-optional"
	"github.com/shopspring/decimal"
)

// fillQuote is a computed execution for one order on one bar, before it is
// turned into a Fill and applied to the order and account.
type fillQuote struct {
	Quantity   float64
	Price      float64 // post-slippage execution price
	Slippage   float64 // per-unit adverse offset applied
	Commission float64
}

// ExecutionSimulator computes fills for live orders against bar data. All
// computations are pure functions of (order, bar, config): no randomness,
// no hidden state, so identical inputs always produce identical fills.
type ExecutionSimulator struct {
	slip              slippage.Slippage
	fee               commission_fee.CommissionFee
	liquidityLimitPct float64
}

// NewExecutionSimulator builds a simulator from the run configuration.
func NewExecutionSimulator(config Config) *ExecutionSimulator {
	return &ExecutionSimulator{
		slip:              slippage.GetSlippageHandler(config.SlippageModel, config.SlippagePct, config.VolatilityCoeff, config.SpreadPct),
		fee:               commission_fee.GetCommissionFeeHandler(config.FeeModel, config.FeeFlat, config.FeePct),
		liquidityLimitPct: config.LiquidityLimitPct,
	}
}

// Simulate resolves one live order against one bar. It returns the fill to
// apply, if any, and whether the order's stop trigger latched on this bar.
// A latched trigger without a fill (stop-limit crossed its stop but not its
// limit) still mutates the order via OrderManager.MarkTriggered.
func (s *ExecutionSimulator) Simulate(order types.Order, bar types.Bar) (optional.Option[fillQuote], bool) {
	triggeredNow := false

	if order.Type == types.OrderTypeStop || order.Type == types.OrderTypeStopLimit {
		if !order.Triggered {
			if !stopCrossed(order.Side, order.StopPrice.Unwrap(), bar) {
				return optional.None[fillQuote](), false
			}

			triggeredNow = true
		}
	}

	quantity := s.cappedQuantity(order.Remaining(), bar)
	if quantity <= 0 {
		return optional.None[fillQuote](), triggeredNow
	}

	switch order.Type {
	case types.OrderTypeMarket:
		return optional.Some(s.marketFill(order.Side, bar.Open, quantity, bar)), triggeredNow

	case types.OrderTypeLimit:
		base, ok := limitBase(order.Side, order.LimitPrice.Unwrap(), bar)
		if !ok {
			return optional.None[fillQuote](), triggeredNow
		}

		return optional.Some(s.limitFill(base, quantity)), triggeredNow

	case types.OrderTypeStop:
		// Market logic from the trigger point: on the triggering bar the
		// stop price bounds the base price, afterwards it is a plain market
		// order at the open.
		base := bar.Open
		if triggeredNow {
			stop := order.StopPrice.Unwrap()
			if order.Side == types.SideBuy {
				base = math.Max(bar.Open, stop)
			} else {
				base = math.Min(bar.Open, stop)
			}
		}

		return optional.Some(s.marketFill(order.Side, base, quantity, bar)), triggeredNow

	case types.OrderTypeStopLimit:
		limit := order.LimitPrice.Unwrap()

		if triggeredNow {
			// Same-bar trigger: only the limit price itself is a safe fill
			// price, the pre-trigger part of the range is not available.
			if !bar.Crosses(limit) {
				return optional.None[fillQuote](), triggeredNow
			}

			return optional.Some(s.limitFill(limit, quantity)), triggeredNow
		}

		base, ok := limitBase(order.Side, limit, bar)
		if !ok {
			return optional.None[fillQuote](), triggeredNow
		}

		return optional.Some(s.limitFill(base, quantity)), triggeredNow
	}

	return optional.None[fillQuote](), triggeredNow
}

// cappedQuantity applies the liquidity cap: a single fill may not exceed
// liquidityLimitPct of the bar's volume. A non-positive limit disables the
// cap.
func (s *ExecutionSimulator) cappedQuantity(remaining float64, bar types.Bar) float64 {
	if s.liquidityLimitPct <= 0 {
		return remaining
	}

	maxQuantity, _ := decimal.NewFromFloat(bar.Volume).Mul(decimal.NewFromFloat(s.liquidityLimitPct)).Float64()

	return math.Min(remaining, maxQuantity)
}

// marketFill prices a market-style execution: slippage in the adverse
// direction, commission on the resulting notional.
func (s *ExecutionSimulator) marketFill(side types.Side, base, quantity float64, bar types.Bar) fillQuote {
	offset := s.slip.Offset(base, bar)
	price := slippage.Adjusted(side, base, offset)
	notional, _ := decimal.NewFromFloat(price).Mul(decimal.NewFromFloat(quantity)).Float64()

	return fillQuote{
		Quantity:   quantity,
		Price:      price,
		Slippage:   offset,
		Commission: s.fee.Calculate(notional),
	}
}

// limitFill prices a limit-style execution. Limit fills are never worse than
// the limit price, so no slippage is applied.
func (s *ExecutionSimulator) limitFill(base, quantity float64) fillQuote {
	notional, _ := decimal.NewFromFloat(base).Mul(decimal.NewFromFloat(quantity)).Float64()

	return fillQuote{
		Quantity:   quantity,
		Price:      base,
		Slippage:   0,
		Commission: s.fee.Calculate(notional),
	}
}

// limitBase returns the execution price for a limit order on the bar, or
// false when the bar never crosses the limit. A bar that gaps through the
// limit fills at the open, which is better than the limit for that side.
func limitBase(side types.Side, limit float64, bar types.Bar) (float64, bool) {
	if side == types.SideBuy {
		if bar.Low > limit {
			return 0, false
		}

		return math.Min(bar.Open, limit), true
	}

	if bar.High < limit {
		return 0, false
	}

	return math.Max(bar.Open, limit), true
}

// stopCrossed reports whether the bar's range reached the stop price for the
// order's side: buys trigger at or above the stop, sells at or below.
func stopCrossed(side types.Side, stop float64, bar types.Bar) bool {
	if side == types.SideBuy {
		return bar.High >= stop
	}

	return bar.Low <= stop
}
