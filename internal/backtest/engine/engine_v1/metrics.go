package engine

import (
	"math"

	"github.com/marelab/backsim/internal/types"
)

// MetricsInput is everything the metrics computation consumes. All fields
// come from the finished run; nothing here mutates engine state.
type MetricsInput struct {
	StartingCash   float64
	PeriodsPerYear float64
	Trades         []types.TradeRecord
	EquityCurve    []types.AccountSnapshot
	Commission     float64
}

// ComputeMetrics derives the summary statistics for a completed run from
// its closed trades and equity curve. Ratios with degenerate inputs (no
// losing trades, zero variance, empty curve) report 0 rather than NaN or
// Inf so exported reports stay machine-readable.
func ComputeMetrics(input MetricsInput) types.Metrics {
	metrics := types.Metrics{
		StartingCash:    input.StartingCash,
		FinalEquity:     input.StartingCash,
		TotalCommission: input.Commission,
	}

	if len(input.EquityCurve) > 0 {
		metrics.FinalEquity = input.EquityCurve[len(input.EquityCurve)-1].Equity
	}

	metrics.NetProfit = metrics.FinalEquity - metrics.StartingCash

	applyTradeMetrics(&metrics, input.Trades)
	applyCurveMetrics(&metrics, input)

	return metrics
}

func applyTradeMetrics(metrics *types.Metrics, trades []types.TradeRecord) {
	metrics.TotalTrades = len(trades)

	for _, trade := range trades {
		switch {
		case trade.PnL > 0:
			metrics.WinningTrades++
			metrics.GrossProfit += trade.PnL
		case trade.PnL < 0:
			metrics.LosingTrades++
			metrics.GrossLoss += -trade.PnL
		}

		if trade.PnL > metrics.MaxTradeProfit {
			metrics.MaxTradeProfit = trade.PnL
		}

		if trade.PnL < metrics.MaxTradeLoss {
			metrics.MaxTradeLoss = trade.PnL
		}
	}

	if metrics.TotalTrades > 0 {
		metrics.WinRate = float64(metrics.WinningTrades) / float64(metrics.TotalTrades)
	}

	if metrics.GrossLoss > 0 {
		metrics.ProfitFactor = metrics.GrossProfit / metrics.GrossLoss
	}
}

func applyCurveMetrics(metrics *types.Metrics, input MetricsInput) {
	curve := input.EquityCurve
	if len(curve) == 0 {
		return
	}

	metrics.MaxDrawdownPct = maxDrawdown(curve, input.StartingCash)

	returns := periodReturns(curve, input.StartingCash)
	mean := meanOf(returns)

	if stdev := sampleStdev(returns, mean); stdev > 0 {
		metrics.Sharpe = mean / stdev * math.Sqrt(input.PeriodsPerYear)
	}

	if downside := downsideDeviation(returns); downside > 0 {
		metrics.Sortino = mean / downside * math.Sqrt(input.PeriodsPerYear)
	}

	metrics.CAGR = annualizedGrowth(curve, input.StartingCash, metrics.FinalEquity)

	if metrics.MaxDrawdownPct > 0 {
		metrics.Calmar = metrics.CAGR / metrics.MaxDrawdownPct
	}
}

// maxDrawdown is the largest peak-to-trough equity decline as a fraction of
// the peak, with the starting cash seeding the first peak.
func maxDrawdown(curve []types.AccountSnapshot, startingCash float64) float64 {
	peak := startingCash
	worst := 0.0

	for _, snapshot := range curve {
		if snapshot.Equity > peak {
			peak = snapshot.Equity
		}

		if peak <= 0 {
			continue
		}

		if drawdown := (peak - snapshot.Equity) / peak; drawdown > worst {
			worst = drawdown
		}
	}

	return worst
}

// periodReturns are the bar-to-bar simple returns of the equity curve, with
// the starting cash as the period-zero equity.
func periodReturns(curve []types.AccountSnapshot, startingCash float64) []float64 {
	returns := make([]float64, 0, len(curve))
	prev := startingCash

	for _, snapshot := range curve {
		if prev > 0 {
			returns = append(returns, snapshot.Equity/prev-1)
		}

		prev = snapshot.Equity
	}

	return returns
}

func meanOf(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}

	sum := 0.0
	for _, v := range values {
		sum += v
	}

	return sum / float64(len(values))
}

func sampleStdev(values []float64, mean float64) float64 {
	if len(values) < 2 {
		return 0
	}

	sum := 0.0

	for _, v := range values {
		diff := v - mean
		sum += diff * diff
	}

	return math.Sqrt(sum / float64(len(values)-1))
}

// downsideDeviation is the root mean square of negative returns, measured
// over all periods.
func downsideDeviation(returns []float64) float64 {
	if len(returns) == 0 {
		return 0
	}

	sum := 0.0

	for _, r := range returns {
		if r < 0 {
			sum += r * r
		}
	}

	return math.Sqrt(sum / float64(len(returns)))
}

// annualizedGrowth converts the total return into a compound annual rate
// using the calendar span of the equity curve. Runs shorter than a day are
// treated as one day so the exponent stays bounded.
func annualizedGrowth(curve []types.AccountSnapshot, startingCash, finalEquity float64) float64 {
	if startingCash <= 0 || finalEquity <= 0 {
		return 0
	}

	start := curve[0].Time
	end := curve[len(curve)-1].Time

	days := end.Sub(start).Hours() / 24
	if days < 1 {
		days = 1
	}

	return math.Pow(finalEquity/startingCash, 365/days) - 1
}
