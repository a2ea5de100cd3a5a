package engine

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/marelab/backsim/internal/backtest/engine"
	"github.com/marelab/backsim/internal/logger"
	"github.com/marelab/backsim/internal/types"
	"github.com/marelab/backsim/pkg/errors"
	"github.com/moznion/go-optional"
	"go.uber.org/zap"
)

// idNamespace seeds the deterministic order and fill IDs. Two runs over the
// same inputs produce identical ID sequences.
var idNamespace = uuid.NewSHA1(uuid.NameSpaceOID, []byte("github.com/marelab/backsim"))

// BacktestEngineV1 wires the guard, order manager, execution simulator,
// account manager, and run ledger into the engine.Engine surface. All state
// transitions happen inside SubmitSignal, CancelOrder, and StepTo; every
// read returns a copy.
type BacktestEngineV1 struct {
	config  Config
	log     *logger.Logger
	orders  *OrderManager
	account *AccountManager
	guard   *Guard
	sim     *ExecutionSimulator
	ledger  *RunLedger

	sequence    uint64
	currentTime time.Time
	barSeen     bool
	haltErr     error
}

// NewBacktestEngineV1 creates an engine from a validated configuration.
func NewBacktestEngineV1(config Config, log *logger.Logger) (*BacktestEngineV1, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	ledger, err := NewRunLedger(log)
	if err != nil {
		return nil, err
	}

	if err := ledger.Initialize(); err != nil {
		return nil, err
	}

	return &BacktestEngineV1{
		config:      config,
		log:         log,
		orders:      NewOrderManager(log),
		account:     NewAccountManager(config.InitialCapital, log),
		guard:       NewGuard(config),
		sim:         NewExecutionSimulator(config),
		ledger:      ledger,
		sequence:    0,
		currentTime: time.Time{},
		barSeen:     false,
		haltErr:     nil,
	}, nil
}

var _ engine.Engine = (*BacktestEngineV1)(nil)

// nextID derives the next deterministic ID from the run-wide sequence.
func (b *BacktestEngineV1) nextID(kind string) string {
	b.sequence++

	return uuid.NewSHA1(idNamespace, []byte(fmt.Sprintf("%s-%d", kind, b.sequence))).String()
}

// SubmitSignal runs the signal through the guard and, when accepted, books
// an order for it. CANCEL and MODIFY signals mutate their target order and
// never create a new one, so they always return an empty string. Rejected
// signals are kept as terminal orders for the audit trail, but their IDs are
// not handed out.
func (b *BacktestEngineV1) SubmitSignal(signal types.Signal) string {
	if b.haltErr != nil {
		b.log.Warn("signal ignored, engine halted", zap.String("signal_id", signal.ID))

		return ""
	}

	result := b.guard.Check(signal, b.account.View(), b.account.LastPrice(signal.Symbol))
	if !result.Accepted {
		order := b.orders.Reject(signal, b.nextID("order"), result.Reason, signal.Time)

		if err := b.ledger.RecordOrder(order); err != nil {
			b.log.Error("failed to record rejected order", zap.Error(err))
		}

		b.log.Warn("signal rejected",
			zap.String("signal_id", signal.ID),
			zap.String("symbol", signal.Symbol),
			zap.String("reason", result.Reason),
		)

		return ""
	}

	switch signal.Action {
	case types.SignalActionCancel:
		b.CancelOrder(signal.TargetOrderID)

		return ""
	case types.SignalActionModify:
		if b.orders.Modify(signal.TargetOrderID, signal.LimitPrice, signal.StopPrice, signal.Time) {
			b.recordOrderState(signal.TargetOrderID)
		}

		return ""
	}

	order := b.orders.Submit(signal, b.nextID("order"), signal.Time)

	if err := b.ledger.RecordOrder(order); err != nil {
		b.log.Error("failed to record order", zap.Error(err))
	}

	return order.ID
}

// GetOrder returns a copy of the order with the given ID.
func (b *BacktestEngineV1) GetOrder(orderID string) optional.Option[types.Order] {
	return b.orders.Get(orderID)
}

// CancelOrder cancels a live order. The filled portion of a partially
// filled order stays in the account.
func (b *BacktestEngineV1) CancelOrder(orderID string) bool {
	if b.haltErr != nil {
		return false
	}

	ok := b.orders.Cancel(orderID, b.currentTime)
	if ok {
		b.recordOrderState(orderID)
	}

	return ok
}

// StepTo advances the engine by one bar. Live orders are evaluated in
// submission order against their symbol's bar, fills are applied to orders
// and the account, unfilled market orders are expired, and one account
// snapshot is committed. Any invariant violation halts the engine; later
// calls keep returning the original error.
func (b *BacktestEngineV1) StepTo(t time.Time, bars map[string]types.Bar) error {
	if b.haltErr != nil {
		return b.haltErr
	}

	if b.barSeen && !t.After(b.currentTime) {
		return errors.Newf(errors.ErrCodeNonMonotonicBar,
			"bar at %s does not advance past %s", t.Format(time.RFC3339), b.currentTime.Format(time.RFC3339))
	}

	if err := validateBars(t, bars); err != nil {
		return err
	}

	b.currentTime = t
	b.barSeen = true

	for _, order := range b.orders.LiveOrders() {
		bar, ok := bars[order.Symbol]
		if !ok {
			continue
		}

		if err := b.processOrder(order, bar, t); err != nil {
			return b.halt(err)
		}
	}

	// Market orders never persist past the bar that saw them: whatever
	// liquidity left them unfilled or partial is gone.
	for _, order := range b.orders.LiveOrders() {
		if order.Type != types.OrderTypeMarket {
			continue
		}

		if _, ok := bars[order.Symbol]; !ok {
			continue
		}

		if b.orders.Cancel(order.ID, t) {
			b.recordOrderState(order.ID)
		}
	}

	if _, err := b.account.EndOfBar(t, bars); err != nil {
		return b.halt(err)
	}

	return nil
}

func (b *BacktestEngineV1) processOrder(order types.Order, bar types.Bar, t time.Time) error {
	quote, triggeredNow := b.sim.Simulate(order, bar)

	if triggeredNow {
		b.orders.MarkTriggered(order.ID, t)
		b.recordOrderState(order.ID)
	}

	if quote.IsNone() {
		return nil
	}

	q := quote.Unwrap()
	if q.Quantity <= quantityEpsilon {
		return nil
	}

	fill := types.Fill{
		ID:         b.nextID("fill"),
		OrderID:    order.ID,
		Time:       t,
		Symbol:     order.Symbol,
		Side:       order.Side,
		Price:      q.Price,
		Quantity:   q.Quantity,
		Commission: q.Commission,
		Slippage:   q.Slippage,
	}

	if err := b.orders.ApplyFill(fill); err != nil {
		return err
	}

	trades, err := b.account.Apply(fill)
	if err != nil {
		return err
	}

	if err := b.ledger.RecordFill(fill); err != nil {
		b.log.Error("failed to record fill", zap.Error(err))
	}

	b.recordOrderState(order.ID)

	for _, trade := range trades {
		if err := b.ledger.RecordTrade(trade); err != nil {
			b.log.Error("failed to record trade", zap.Error(err))
		}
	}

	return nil
}

func (b *BacktestEngineV1) recordOrderState(orderID string) {
	b.orders.Get(orderID).IfSome(func(order types.Order) {
		if err := b.ledger.RecordOrder(order); err != nil {
			b.log.Error("failed to record order state", zap.Error(err))
		}
	})
}

func (b *BacktestEngineV1) halt(err error) error {
	b.haltErr = err
	b.log.Error("engine halted", zap.Error(err))

	return err
}

// validateBars checks every bar in deterministic symbol order.
func validateBars(t time.Time, bars map[string]types.Bar) error {
	symbols := make([]string, 0, len(bars))
	for symbol := range bars {
		symbols = append(symbols, symbol)
	}

	sort.Strings(symbols)

	for _, symbol := range symbols {
		bar := bars[symbol]
		if bar.Symbol != "" && bar.Symbol != symbol {
			return errors.Newf(errors.ErrCodeBadBarData, "bar keyed %s carries symbol %s", symbol, bar.Symbol)
		}

		if err := bar.Validate(); err != nil {
			return errors.Wrapf(errors.ErrCodeBadBarData, err, "invalid bar for %s at %s", symbol, t.Format(time.RFC3339))
		}
	}

	return nil
}

// GetAccountSnapshot returns the snapshot committed at the end of the most
// recent bar.
func (b *BacktestEngineV1) GetAccountSnapshot() types.AccountSnapshot {
	return b.account.Snapshot()
}

// GetEquityCurve returns the ordered sequence of committed snapshots.
func (b *BacktestEngineV1) GetEquityCurve() []types.AccountSnapshot {
	return b.account.EquityCurve()
}

// ExportTrades writes the closed-trade log to path, format chosen by
// extension.
func (b *BacktestEngineV1) ExportTrades(path string) error {
	return WriteTrades(path, b.account.Trades())
}

// ComputeMetrics computes the summary statistics for the run so far.
func (b *BacktestEngineV1) ComputeMetrics() types.Metrics {
	return ComputeMetrics(MetricsInput{
		StartingCash:   b.config.InitialCapital,
		PeriodsPerYear: float64(b.config.PeriodsPerYear),
		Trades:         b.account.Trades(),
		EquityCurve:    b.account.EquityCurve(),
		Commission:     b.account.TotalCommission(),
	})
}

// WriteLedger dumps the audit ledger to Parquet files under dir.
func (b *BacktestEngineV1) WriteLedger(dir string) error {
	return b.ledger.Write(dir)
}

// Close releases the ledger database.
func (b *BacktestEngineV1) Close() error {
	return b.ledger.Close()
}
