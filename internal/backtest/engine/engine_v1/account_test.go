package engine

import (
	"testing"
	"time"

	"github.com/marelab/backsim/internal/logger"
	"github.com/marelab/backsim/internal/types"
	"github.com/stretchr/testify/suite"
)

type AccountManagerTestSuite struct {
	suite.Suite
	account *AccountManager
	now     time.Time
}

func TestAccountManagerSuite(t *testing.T) {
	suite.Run(t, new(AccountManagerTestSuite))
}

func (suite *AccountManagerTestSuite) SetupTest() {
	suite.account = NewAccountManager(100_000, logger.NewNopLogger())
	suite.now = time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
}

func (suite *AccountManagerTestSuite) applyFill(side types.Side, price, quantity, commission float64) []types.TradeRecord {
	fill := types.Fill{
		ID:         "fill-" + string(side) + "-" + time.Now().Format("150405.000000000"),
		OrderID:    "order-1",
		Time:       suite.now,
		Symbol:     "AAPL",
		Side:       side,
		Price:      price,
		Quantity:   quantity,
		Commission: commission,
	}

	trades, err := suite.account.Apply(fill)
	suite.Require().NoError(err)

	return trades
}

func (suite *AccountManagerTestSuite) TestBuyMovesCashAndOpensPosition() {
	trades := suite.applyFill(types.SideBuy, 150, 100, 0)
	suite.Empty(trades)

	snapshot, err := suite.account.EndOfBar(suite.now, map[string]types.Bar{
		"AAPL": {Time: suite.now, Symbol: "AAPL", Open: 150, High: 150, Low: 150, Close: 150, Volume: 10_000},
	})
	suite.Require().NoError(err)

	suite.InDelta(85_000, snapshot.Cash, 1e-9)
	suite.InDelta(100_000, snapshot.Equity, 1e-9)
	suite.Require().Len(snapshot.Positions, 1)
	suite.Equal(100.0, snapshot.Positions[0].Quantity)
	suite.InDelta(150.0, snapshot.Positions[0].AvgEntryPrice, 1e-9)
}

func (suite *AccountManagerTestSuite) TestVWAPOnAdds() {
	suite.applyFill(types.SideBuy, 150, 100, 0)
	suite.applyFill(types.SideBuy, 156, 50, 0)

	view := suite.account.View()
	suite.InDelta(100_000-15_000-7_800, view.Cash, 1e-9)

	snapshot, err := suite.account.EndOfBar(suite.now, map[string]types.Bar{
		"AAPL": {Time: suite.now, Symbol: "AAPL", Open: 152, High: 152, Low: 152, Close: 152, Volume: 10_000},
	})
	suite.Require().NoError(err)
	suite.InDelta(152.0, snapshot.Positions[0].AvgEntryPrice, 1e-9)
}

func (suite *AccountManagerTestSuite) TestReduceRealizesPnL() {
	suite.applyFill(types.SideBuy, 150, 100, 0)

	suite.now = suite.now.Add(24 * time.Hour)
	trades := suite.applyFill(types.SideSell, 160, 100, 0)

	suite.Require().Len(trades, 1)
	trade := trades[0]
	suite.Equal(types.SideBuy, trade.Side)
	suite.InDelta(1000.0, trade.PnL, 1e-9)
	suite.InDelta(150.0, trade.EntryPrice, 1e-9)
	suite.InDelta(160.0, trade.ExitPrice, 1e-9)
	suite.InDelta(1000.0/15_000.0, trade.PnLPct, 1e-9)

	view := suite.account.View()
	suite.InDelta(101_000, view.Cash, 1e-9)
	suite.InDelta(101_000, view.Equity, 1e-9)
}

func (suite *AccountManagerTestSuite) TestCommissionAttribution() {
	suite.applyFill(types.SideBuy, 150, 100, 10)
	trades := suite.applyFill(types.SideSell, 160, 50, 4)

	suite.Require().Len(trades, 1)
	// Half the entry commission plus the full exit commission.
	suite.InDelta(9.0, trades[0].Commission, 1e-9)

	trades = suite.applyFill(types.SideSell, 160, 50, 4)
	suite.Require().Len(trades, 1)
	suite.InDelta(9.0, trades[0].Commission, 1e-9)
}

func (suite *AccountManagerTestSuite) TestShortRoundTrip() {
	suite.applyFill(types.SideSell, 160, 50, 0)

	view := suite.account.View()
	suite.InDelta(108_000, view.Cash, 1e-9)

	trades := suite.applyFill(types.SideBuy, 150, 50, 0)
	suite.Require().Len(trades, 1)
	suite.Equal(types.SideSell, trades[0].Side)
	suite.InDelta(500.0, trades[0].PnL, 1e-9)
}

func (suite *AccountManagerTestSuite) TestFlipClosesThenReopens() {
	suite.applyFill(types.SideBuy, 150, 100, 0)
	trades := suite.applyFill(types.SideSell, 155, 150, 0)

	// The first 100 close the long, the remaining 50 open a short.
	suite.Require().Len(trades, 1)
	suite.InDelta(500.0, trades[0].PnL, 1e-9)
	suite.InDelta(100.0, trades[0].Quantity, 1e-9)

	snapshot, err := suite.account.EndOfBar(suite.now, map[string]types.Bar{
		"AAPL": {Time: suite.now, Symbol: "AAPL", Open: 155, High: 155, Low: 155, Close: 155, Volume: 10_000},
	})
	suite.Require().NoError(err)
	suite.Require().Len(snapshot.Positions, 1)
	suite.Equal(-50.0, snapshot.Positions[0].Quantity)
	suite.InDelta(155.0, snapshot.Positions[0].AvgEntryPrice, 1e-9)
}

func (suite *AccountManagerTestSuite) TestEndOfBarMarksToMarket() {
	suite.applyFill(types.SideBuy, 150, 100, 0)

	snapshot, err := suite.account.EndOfBar(suite.now, map[string]types.Bar{
		"AAPL": {Time: suite.now, Symbol: "AAPL", Open: 150, High: 156, Low: 149, Close: 155, Volume: 10_000},
	})
	suite.Require().NoError(err)

	suite.InDelta(500.0, snapshot.UnrealizedPnL, 1e-9)
	suite.InDelta(100_500, snapshot.Equity, 1e-9)
	suite.Len(suite.account.EquityCurve(), 1)
}

func (suite *AccountManagerTestSuite) TestDrawdownTracking() {
	suite.applyFill(types.SideBuy, 100, 100, 0)

	mark := func(price float64) {
		suite.now = suite.now.Add(24 * time.Hour)
		_, err := suite.account.EndOfBar(suite.now, map[string]types.Bar{
			"AAPL": {Time: suite.now, Symbol: "AAPL", Open: price, High: price, Low: price, Close: price, Volume: 10_000},
		})
		suite.Require().NoError(err)
	}

	mark(110) // equity 101,000, new peak
	mark(88)  // equity 98,800

	view := suite.account.View()
	suite.InDelta((101_000.0-98_800.0)/101_000.0, view.RunningDrawdown, 1e-9)
}

func (suite *AccountManagerTestSuite) TestSnapshotBeforeAnyBar() {
	snapshot := suite.account.Snapshot()
	suite.Equal(100_000.0, snapshot.Cash)
	suite.Equal(100_000.0, snapshot.Equity)
	suite.Empty(snapshot.Positions)
}
