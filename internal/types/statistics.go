package types

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Metrics is the canonical performance-metric set computed from the trade
// ledger and equity curve at the end of a run. Degenerate inputs (zero
// trades, zero variance, zero duration) yield zero values, never NaN or Inf.
type Metrics struct {
	StartingCash float64 `yaml:"starting_cash" json:"starting_cash"`
	FinalEquity  float64 `yaml:"final_equity" json:"final_equity"`
	// NetProfit is final equity minus starting cash.
	NetProfit float64 `yaml:"net_profit" json:"net_profit"`

	TotalTrades   int `yaml:"total_trades" json:"total_trades"`
	WinningTrades int `yaml:"winning_trades" json:"winning_trades"`
	LosingTrades  int `yaml:"losing_trades" json:"losing_trades"`
	// WinRate is winning trades over total trades.
	WinRate float64 `yaml:"win_rate" json:"win_rate"`

	GrossProfit float64 `yaml:"gross_profit" json:"gross_profit"`
	GrossLoss   float64 `yaml:"gross_loss" json:"gross_loss"`
	// ProfitFactor is gross profit over absolute gross loss.
	ProfitFactor float64 `yaml:"profit_factor" json:"profit_factor"`

	// MaxDrawdownPct is the largest peak-to-trough equity decline, as a fraction.
	MaxDrawdownPct float64 `yaml:"max_drawdown_pct" json:"max_drawdown_pct"`
	Sharpe         float64 `yaml:"sharpe" json:"sharpe"`
	Sortino        float64 `yaml:"sortino" json:"sortino"`
	Calmar         float64 `yaml:"calmar" json:"calmar"`
	CAGR           float64 `yaml:"cagr" json:"cagr"`

	TotalCommission float64 `yaml:"total_commission" json:"total_commission"`
	MaxTradeProfit  float64 `yaml:"max_trade_profit" json:"max_trade_profit"`
	MaxTradeLoss    float64 `yaml:"max_trade_loss" json:"max_trade_loss"`
}

// WriteMetrics writes metrics to a YAML file.
func WriteMetrics(path string, metrics Metrics) error {
	data, err := yaml.Marshal(metrics)
	if err != nil {
		return fmt.Errorf("failed to marshal metrics to YAML: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write metrics to file: %w", err)
	}

	return nil
}
