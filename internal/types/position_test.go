package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

type PositionTestSuite struct {
	suite.Suite
}

func TestPositionSuite(t *testing.T) {
	suite.Run(t, new(PositionTestSuite))
}

func (suite *PositionTestSuite) TestMarkToMarket() {
	tests := []struct {
		name     string
		quantity float64
		entry    float64
		price    float64
		expected float64
	}{
		{"long gain", 100, 150, 155, 500},
		{"long loss", 100, 150, 148, -200},
		{"short gain", -50, 160, 150, 500},
		{"short loss", -50, 160, 165, -250},
	}

	for _, tc := range tests {
		suite.Run(tc.name, func() {
			position := Position{Symbol: "AAPL", Quantity: tc.quantity, AvgEntryPrice: tc.entry}
			position.MarkToMarket(tc.price)
			suite.InDelta(tc.expected, position.UnrealizedPnL, 1e-9)
		})
	}
}

func (suite *PositionTestSuite) TestMarkToMarketFlat() {
	position := Position{Symbol: "AAPL", Quantity: 0, UnrealizedPnL: 42}
	position.MarkToMarket(150)
	suite.Equal(0.0, position.UnrealizedPnL)
}

func (suite *PositionTestSuite) TestExposureIsUnsigned() {
	long := Position{Quantity: 100}
	short := Position{Quantity: -100}
	suite.Equal(15000.0, long.Exposure(150))
	suite.Equal(15000.0, short.Exposure(150))
	suite.Equal(-15000.0, short.MarketValue(150))
}

func (suite *PositionTestSuite) TestFillCashDelta() {
	buy := Fill{Side: SideBuy, Price: 150, Quantity: 100, Commission: 5}
	suite.InDelta(-15005.0, buy.CashDelta(), 1e-9)

	sell := Fill{Side: SideSell, Price: 160, Quantity: 100, Commission: 5}
	suite.InDelta(15995.0, sell.CashDelta(), 1e-9)
}

func (suite *PositionTestSuite) TestComputePnL() {
	suite.InDelta(1000.0, ComputePnL(SideBuy, 150, 160, 100), 1e-9)
	suite.InDelta(-200.0, ComputePnL(SideBuy, 150, 148, 100), 1e-9)
	suite.InDelta(1000.0, ComputePnL(SideSell, 160, 150, 100), 1e-9)
}

func (suite *PositionTestSuite) TestSnapshotReconcile() {
	snapshot := AccountSnapshot{
		Time:   time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
		Cash:   85000,
		Equity: 100000,
		Positions: []Position{
			{Symbol: "AAPL", Quantity: 100, AvgEntryPrice: 150},
		},
	}

	suite.InDelta(0.0, snapshot.Reconcile(map[string]float64{"AAPL": 150}), 1e-9)
	suite.InDelta(100.0, snapshot.Reconcile(map[string]float64{"AAPL": 151}), 1e-9)
}
