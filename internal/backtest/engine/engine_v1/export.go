package engine

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/marelab/backsim/internal/types"
	"github.com/marelab/backsim/pkg/errors"
)

// tradeCSVHeader is the column order of exported trade files. Kept fixed so
// exporting the same run twice produces byte-identical output.
var tradeCSVHeader = []string{
	"entry_time", "exit_time", "symbol", "side",
	"entry_price", "exit_price", "quantity",
	"pnl", "pnl_pct", "commission", "slippage",
}

// WriteTrades writes the closed-trade log to path, choosing the format from
// the file extension (.csv or .json). Trades are written in the order given;
// callers pass them in execution order.
func WriteTrades(path string, trades []types.TradeRecord) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.Wrap(errors.ErrCodeExportFailed, "failed to create output directory", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return writeTradesCSV(path, trades)
	case ".json":
		return writeTradesJSON(path, trades)
	default:
		return errors.Newf(errors.ErrCodeInvalidParameter, "unsupported trade export format: %s", filepath.Ext(path))
	}
}

func writeTradesCSV(path string, trades []types.TradeRecord) error {
	file, err := os.Create(path)
	if err != nil {
		return errors.Wrap(errors.ErrCodeExportFailed, "failed to create trades file", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)

	if err := writer.Write(tradeCSVHeader); err != nil {
		return errors.Wrap(errors.ErrCodeExportFailed, "failed to write header", err)
	}

	for _, trade := range trades {
		record := []string{
			trade.EntryTime.UTC().Format("2006-01-02T15:04:05Z"),
			trade.ExitTime.UTC().Format("2006-01-02T15:04:05Z"),
			trade.Symbol,
			string(trade.Side),
			formatFloat(trade.EntryPrice),
			formatFloat(trade.ExitPrice),
			formatFloat(trade.Quantity),
			formatFloat(trade.PnL),
			formatFloat(trade.PnLPct),
			formatFloat(trade.Commission),
			formatFloat(trade.Slippage),
		}

		if err := writer.Write(record); err != nil {
			return errors.Wrap(errors.ErrCodeExportFailed, "failed to write trade row", err)
		}
	}

	writer.Flush()

	if err := writer.Error(); err != nil {
		return errors.Wrap(errors.ErrCodeExportFailed, "failed to flush trades file", err)
	}

	return nil
}

func writeTradesJSON(path string, trades []types.TradeRecord) error {
	// A nil slice must still export as [], not null.
	if trades == nil {
		trades = []types.TradeRecord{}
	}

	data, err := json.MarshalIndent(trades, "", "  ")
	if err != nil {
		return errors.Wrap(errors.ErrCodeExportFailed, "failed to marshal trades", err)
	}

	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return errors.Wrap(errors.ErrCodeExportFailed, "failed to write trades file", err)
	}

	return nil
}

// formatFloat renders a float with the shortest exact decimal representation
// so repeated exports of the same run are byte-identical.
func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
