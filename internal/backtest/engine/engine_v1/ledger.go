package engine

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Masterminds/squirrel"
	_ "github.com/marcboeker/go-duckdb"
	"github.com/marelab/backsim/internal/logger"
	"github.com/marelab/backsim/internal/types"
	"github.com/marelab/backsim/pkg/errors"
	"go.uber.org/zap"
)

// RunLedger is the audit store for a single run. Every order transition,
// fill, and closed trade is recorded in an in-memory DuckDB database so a
// finished run can be queried with SQL or dumped to Parquet.
type RunLedger struct {
	db  *sql.DB
	log *logger.Logger
	sq  squirrel.StatementBuilderType
}

// NewRunLedger opens an in-memory ledger database.
func NewRunLedger(log *logger.Logger) (*RunLedger, error) {
	db, err := sql.Open("duckdb", ":memory:")
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInitFailed, "failed to open ledger database", err)
	}

	return &RunLedger{
		db:  db,
		log: log,
		sq:  squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question),
	}, nil
}

// Initialize creates the orders, fills, and trades tables.
func (l *RunLedger) Initialize() error {
	_, err := l.db.Exec(`
		CREATE TABLE IF NOT EXISTS orders (
			order_id TEXT PRIMARY KEY,
			signal_id TEXT,
			symbol TEXT,
			side TEXT,
			action TEXT,
			order_type TEXT,
			quantity DOUBLE,
			limit_price DOUBLE,
			stop_price DOUBLE,
			filled_quantity DOUBLE,
			avg_fill_price DOUBLE,
			status TEXT,
			reject_reason TEXT,
			strategy_name TEXT,
			created_at TIMESTAMP,
			updated_at TIMESTAMP
		)
	`)
	if err != nil {
		return errors.Wrap(errors.ErrCodeLedgerWriteFailed, "failed to create orders table", err)
	}

	_, err = l.db.Exec(`
		CREATE TABLE IF NOT EXISTS fills (
			fill_id TEXT PRIMARY KEY,
			order_id TEXT,
			timestamp TIMESTAMP,
			symbol TEXT,
			side TEXT,
			price DOUBLE,
			quantity DOUBLE,
			commission DOUBLE,
			slippage DOUBLE
		)
	`)
	if err != nil {
		return errors.Wrap(errors.ErrCodeLedgerWriteFailed, "failed to create fills table", err)
	}

	_, err = l.db.Exec(`
		CREATE TABLE IF NOT EXISTS trades (
			entry_time TIMESTAMP,
			exit_time TIMESTAMP,
			symbol TEXT,
			side TEXT,
			entry_price DOUBLE,
			exit_price DOUBLE,
			quantity DOUBLE,
			pnl DOUBLE,
			pnl_pct DOUBLE,
			commission DOUBLE,
			slippage DOUBLE
		)
	`)
	if err != nil {
		return errors.Wrap(errors.ErrCodeLedgerWriteFailed, "failed to create trades table", err)
	}

	return nil
}

// RecordOrder upserts the order row, so repeated calls across status
// transitions keep exactly one row per order at its latest state.
func (l *RunLedger) RecordOrder(order types.Order) error {
	_, err := l.db.Exec(`
		INSERT OR REPLACE INTO orders (
			order_id, signal_id, symbol, side, action, order_type,
			quantity, limit_price, stop_price, filled_quantity, avg_fill_price,
			status, reject_reason, strategy_name, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		order.ID, order.SignalID, order.Symbol, order.Side, order.Action, order.Type,
		order.Quantity, order.LimitPrice.TakeOr(0), order.StopPrice.TakeOr(0),
		order.FilledQuantity, order.AvgFillPrice,
		order.Status, order.RejectReason, order.StrategyName, order.CreatedAt, order.UpdatedAt,
	)
	if err != nil {
		return errors.Wrap(errors.ErrCodeLedgerWriteFailed, "failed to record order", err)
	}

	return nil
}

// RecordFill appends one fill row.
func (l *RunLedger) RecordFill(fill types.Fill) error {
	query := l.sq.
		Insert("fills").
		Columns("fill_id", "order_id", "timestamp", "symbol", "side", "price", "quantity", "commission", "slippage").
		Values(fill.ID, fill.OrderID, fill.Time, fill.Symbol, fill.Side, fill.Price, fill.Quantity, fill.Commission, fill.Slippage).
		RunWith(l.db)

	if _, err := query.Exec(); err != nil {
		return errors.Wrap(errors.ErrCodeLedgerWriteFailed, "failed to record fill", err)
	}

	return nil
}

// RecordTrade appends one closed round-trip row.
func (l *RunLedger) RecordTrade(trade types.TradeRecord) error {
	query := l.sq.
		Insert("trades").
		Columns("entry_time", "exit_time", "symbol", "side", "entry_price", "exit_price",
			"quantity", "pnl", "pnl_pct", "commission", "slippage").
		Values(trade.EntryTime, trade.ExitTime, trade.Symbol, trade.Side, trade.EntryPrice, trade.ExitPrice,
			trade.Quantity, trade.PnL, trade.PnLPct, trade.Commission, trade.Slippage).
		RunWith(l.db)

	if _, err := query.Exec(); err != nil {
		return errors.Wrap(errors.ErrCodeLedgerWriteFailed, "failed to record trade", err)
	}

	return nil
}

// GetAllTrades returns the recorded trades ordered by exit time, then entry
// time, so reads are stable across runs.
func (l *RunLedger) GetAllTrades() ([]types.TradeRecord, error) {
	query := l.sq.
		Select("entry_time", "exit_time", "symbol", "side", "entry_price", "exit_price",
			"quantity", "pnl", "pnl_pct", "commission", "slippage").
		From("trades").
		OrderBy("exit_time ASC", "entry_time ASC").
		RunWith(l.db)

	rows, err := query.Query()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to query trades", err)
	}
	defer rows.Close()

	var trades []types.TradeRecord

	for rows.Next() {
		var trade types.TradeRecord

		err := rows.Scan(
			&trade.EntryTime,
			&trade.ExitTime,
			&trade.Symbol,
			&trade.Side,
			&trade.EntryPrice,
			&trade.ExitPrice,
			&trade.Quantity,
			&trade.PnL,
			&trade.PnLPct,
			&trade.Commission,
			&trade.Slippage,
		)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to scan trade", err)
		}

		trades = append(trades, trade)
	}

	if err = rows.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "error iterating trades", err)
	}

	return trades, nil
}

// CountFills returns the number of fills recorded for an order.
func (l *RunLedger) CountFills(orderID string) (int, error) {
	query := l.sq.
		Select("COUNT(*)").
		From("fills").
		Where(squirrel.Eq{"order_id": orderID}).
		RunWith(l.db)

	var count int
	if err := query.QueryRow().Scan(&count); err != nil {
		return 0, errors.Wrap(errors.ErrCodeQueryFailed, "failed to count fills", err)
	}

	return count, nil
}

// Write dumps the ledger tables to Parquet files under the given directory.
func (l *RunLedger) Write(path string) error {
	if err := os.MkdirAll(path, 0755); err != nil {
		return errors.Wrap(errors.ErrCodeExportFailed, "failed to create output directory", err)
	}

	for _, table := range []string{"orders", "fills", "trades"} {
		target := filepath.Join(path, table+".parquet")

		// COPY has no placeholder support.
		_, err := l.db.Exec(fmt.Sprintf(`COPY %s TO '%s' (FORMAT PARQUET)`, table, target))
		if err != nil {
			return errors.Wrapf(errors.ErrCodeExportFailed, err, "failed to export %s to Parquet", table)
		}
	}

	l.log.Info("exported run ledger", zap.String("path", path))

	return nil
}

// Cleanup drops and recreates all ledger tables.
func (l *RunLedger) Cleanup() error {
	_, err := l.db.Exec(`
		DROP TABLE IF EXISTS trades;
		DROP TABLE IF EXISTS fills;
		DROP TABLE IF EXISTS orders;
	`)
	if err != nil {
		return errors.Wrap(errors.ErrCodeLedgerWriteFailed, "failed to drop ledger tables", err)
	}

	return l.Initialize()
}

// Close releases the underlying database.
func (l *RunLedger) Close() error {
	return l.db.Close()
}
