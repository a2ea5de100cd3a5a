package engine

import (
	"math"
	"testing"
	"time"

	"github.com/marelab/backsim/internal/types"
	"github.com/stretchr/testify/suite"
)

type MetricsTestSuite struct {
	suite.Suite
}

func TestMetricsSuite(t *testing.T) {
	suite.Run(t, new(MetricsTestSuite))
}

func day(n int) time.Time {
	return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, n)
}

func curveOf(equities ...float64) []types.AccountSnapshot {
	curve := make([]types.AccountSnapshot, len(equities))
	for i, equity := range equities {
		curve[i] = types.AccountSnapshot{Time: day(i + 1), Equity: equity, Cash: equity}
	}

	return curve
}

func (suite *MetricsTestSuite) TestWinRateProfitFactorNetProfit() {
	input := MetricsInput{
		StartingCash:   100_000,
		PeriodsPerYear: 252,
		Trades: []types.TradeRecord{
			{Symbol: "AAPL", PnL: 500},
			{Symbol: "AAPL", PnL: -200},
		},
		EquityCurve: curveOf(100_000, 100_500, 100_300),
	}

	metrics := ComputeMetrics(input)

	suite.Equal(2, metrics.TotalTrades)
	suite.Equal(1, metrics.WinningTrades)
	suite.Equal(1, metrics.LosingTrades)
	suite.InDelta(0.5, metrics.WinRate, 1e-9)
	suite.InDelta(2.5, metrics.ProfitFactor, 1e-9)
	suite.InDelta(300.0, metrics.NetProfit, 1e-9)
	suite.InDelta(500.0, metrics.GrossProfit, 1e-9)
	suite.InDelta(200.0, metrics.GrossLoss, 1e-9)
	suite.InDelta(500.0, metrics.MaxTradeProfit, 1e-9)
	suite.InDelta(-200.0, metrics.MaxTradeLoss, 1e-9)
}

func (suite *MetricsTestSuite) TestMaxDrawdown() {
	metrics := ComputeMetrics(MetricsInput{
		StartingCash:   100_000,
		PeriodsPerYear: 252,
		EquityCurve:    curveOf(110_000, 99_000, 104_500),
	})

	suite.InDelta(0.1, metrics.MaxDrawdownPct, 1e-9)
}

func (suite *MetricsTestSuite) TestDegenerateInputsReportZero() {
	metrics := ComputeMetrics(MetricsInput{StartingCash: 100_000, PeriodsPerYear: 252})

	suite.Equal(0.0, metrics.WinRate)
	suite.Equal(0.0, metrics.ProfitFactor)
	suite.Equal(0.0, metrics.Sharpe)
	suite.Equal(0.0, metrics.Sortino)
	suite.Equal(0.0, metrics.Calmar)
	suite.Equal(0.0, metrics.MaxDrawdownPct)
	suite.Equal(100_000.0, metrics.FinalEquity)
	suite.False(math.IsNaN(metrics.CAGR))
}

func (suite *MetricsTestSuite) TestNoLosingTradesProfitFactorZeroSentinel() {
	metrics := ComputeMetrics(MetricsInput{
		StartingCash:   100_000,
		PeriodsPerYear: 252,
		Trades:         []types.TradeRecord{{PnL: 100}, {PnL: 50}},
		EquityCurve:    curveOf(100_100, 100_150),
	})

	suite.Equal(0.0, metrics.ProfitFactor)
	suite.Equal(1.0, metrics.WinRate)
}

func (suite *MetricsTestSuite) TestFlatCurveHasZeroRatios() {
	metrics := ComputeMetrics(MetricsInput{
		StartingCash:   100_000,
		PeriodsPerYear: 252,
		EquityCurve:    curveOf(100_000, 100_000, 100_000),
	})

	// Zero variance leaves every ratio at its sentinel.
	suite.Equal(0.0, metrics.Sharpe)
	suite.Equal(0.0, metrics.Sortino)
	suite.Equal(0.0, metrics.CAGR)
}

func (suite *MetricsTestSuite) TestSharpeOnKnownReturns() {
	// Returns: +1%, then -1/101 (back to start), over three periods.
	metrics := ComputeMetrics(MetricsInput{
		StartingCash:   100,
		PeriodsPerYear: 252,
		EquityCurve:    curveOf(101, 100, 102),
	})

	returns := []float64{0.01, -1.0 / 101.0, 0.02}
	mean := (returns[0] + returns[1] + returns[2]) / 3

	variance := 0.0
	for _, r := range returns {
		variance += (r - mean) * (r - mean)
	}

	stdev := math.Sqrt(variance / 2)
	expected := mean / stdev * math.Sqrt(252)

	suite.InDelta(expected, metrics.Sharpe, 1e-9)
	suite.Greater(metrics.Sortino, 0.0)
}

func (suite *MetricsTestSuite) TestCAGRUsesCalendarSpan() {
	// 10% over one year.
	curve := []types.AccountSnapshot{
		{Time: day(0), Equity: 100_000},
		{Time: day(365), Equity: 110_000},
	}

	metrics := ComputeMetrics(MetricsInput{StartingCash: 100_000, PeriodsPerYear: 252, EquityCurve: curve})
	suite.InDelta(0.1, metrics.CAGR, 1e-6)
}
