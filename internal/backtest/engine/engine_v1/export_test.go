package engine

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/marelab/backsim/internal/types"
	"github.com/marelab/backsim/pkg/errors"
	"github.com/stretchr/testify/suite"
)

type ExportTestSuite struct {
	suite.Suite
	trades []types.TradeRecord
}

func TestExportSuite(t *testing.T) {
	suite.Run(t, new(ExportTestSuite))
}

func (suite *ExportTestSuite) SetupTest() {
	entry := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	suite.trades = []types.TradeRecord{
		{
			EntryTime:  entry,
			ExitTime:   entry.Add(24 * time.Hour),
			Symbol:     "AAPL",
			Side:       types.SideBuy,
			EntryPrice: 150,
			ExitPrice:  160,
			Quantity:   100,
			PnL:        1000,
			PnLPct:     1000.0 / 15000.0,
			Commission: 2,
			Slippage:   0.5,
		},
	}
}

func (suite *ExportTestSuite) TestWriteCSV() {
	path := filepath.Join(suite.T().TempDir(), "trades.csv")
	suite.Require().NoError(WriteTrades(path, suite.trades))

	data, err := os.ReadFile(path)
	suite.Require().NoError(err)

	content := string(data)
	suite.Contains(content, "entry_time,exit_time,symbol,side,entry_price,exit_price,quantity,pnl,pnl_pct,commission,slippage")
	suite.Contains(content, "2024-01-02T00:00:00Z,2024-01-03T00:00:00Z,AAPL,BUY,150,160,100,1000,")
}

func (suite *ExportTestSuite) TestWriteJSONEmpty() {
	path := filepath.Join(suite.T().TempDir(), "trades.json")
	suite.Require().NoError(WriteTrades(path, nil))

	data, err := os.ReadFile(path)
	suite.Require().NoError(err)
	suite.Equal("[]\n", string(data))
}

func (suite *ExportTestSuite) TestUnknownExtension() {
	path := filepath.Join(suite.T().TempDir(), "trades.parquet")

	err := WriteTrades(path, suite.trades)
	suite.Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidParameter))
}
