package slippage

import (
	"testing"
	"time"

	"github.com/marelab/backsim/internal/types"
	"github.com/stretchr/testify/suite"
)

type SlippageTestSuite struct {
	suite.Suite
	bar types.Bar
}

func TestSlippageSuite(t *testing.T) {
	suite.Run(t, new(SlippageTestSuite))
}

func (suite *SlippageTestSuite) SetupTest() {
	suite.bar = types.Bar{
		Time:   time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
		Symbol: "AAPL",
		Open:   150,
		High:   152,
		Low:    149,
		Close:  151,
		Volume: 10000,
	}
}

func (suite *SlippageTestSuite) TestNone() {
	model := NewNone()
	suite.Equal(0.0, model.Offset(150, suite.bar))
}

func (suite *SlippageTestSuite) TestFixedPct() {
	tests := []struct {
		name     string
		pct      float64
		base     float64
		expected float64
	}{
		{"one tenth of a percent", 0.001, 150, 0.15},
		{"one percent", 0.01, 200, 2.0},
		{"zero pct disables", 0, 150, 0},
	}

	for _, tc := range tests {
		suite.Run(tc.name, func() {
			model := NewFixedPct(tc.pct)
			suite.InDelta(tc.expected, model.Offset(tc.base, suite.bar), 1e-9)
		})
	}
}

func (suite *SlippageTestSuite) TestVolatility() {
	// Bar range is 152 - 149 = 3.
	model := NewVolatility(0.1)
	suite.InDelta(0.3, model.Offset(150, suite.bar), 1e-9)

	disabled := NewVolatility(0)
	suite.Equal(0.0, disabled.Offset(150, suite.bar))
}

func (suite *SlippageTestSuite) TestSpread() {
	// Half the spread on each side.
	model := NewSpread(0.002)
	suite.InDelta(0.15, model.Offset(150, suite.bar), 1e-9)
}

func (suite *SlippageTestSuite) TestAdjusted() {
	tests := []struct {
		name     string
		side     types.Side
		base     float64
		offset   float64
		expected float64
	}{
		{"buys pay more", types.SideBuy, 150, 0.5, 150.5},
		{"sells receive less", types.SideSell, 150, 0.5, 149.5},
		{"zero offset unchanged", types.SideBuy, 150, 0, 150},
	}

	for _, tc := range tests {
		suite.Run(tc.name, func() {
			suite.Equal(tc.expected, Adjusted(tc.side, tc.base, tc.offset))
		})
	}
}

func (suite *SlippageTestSuite) TestGetSlippageHandler() {
	tests := []struct {
		name     string
		model    Model
		expected float64
	}{
		{"fixed pct", ModelFixedPct, 0.15},
		{"volatility", ModelVolatility, 0.3},
		{"spread", ModelSpread, 0.075},
		{"none", ModelNone, 0},
		{"unknown model defaults to none", Model("unknown"), 0},
	}

	for _, tc := range tests {
		suite.Run(tc.name, func() {
			handler := GetSlippageHandler(tc.model, 0.001, 0.1, 0.001)
			suite.NotNil(handler)
			suite.InDelta(tc.expected, handler.Offset(150, suite.bar), 1e-9)
		})
	}
}
