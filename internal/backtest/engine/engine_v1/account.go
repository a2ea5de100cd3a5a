package engine

import (
	"math"
	"time"

	"github.com/marelab/backsim/internal/logger"
	"github.com/marelab/backsim/internal/types"
	"github.com/marelab/backsim/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// equityTolerance is the floating-point tolerance for the end-of-bar equity
// reconciliation invariant.
const equityTolerance = 1e-6

// AccountManager applies fills to cash and positions, maintains the equity
// curve, and books realized/unrealized P&L. It owns all mutable account
// state; callers only ever receive copies.
type AccountManager struct {
	cash       float64
	positions  map[string]*types.Position
	symbols    []string // insertion order, for deterministic iteration
	lastPrices map[string]float64

	realized          float64
	totalCommission   float64
	totalSlippageCost float64

	// Cost accumulators for the open position per symbol, consumed pro-rata
	// when the position is reduced, so trade records carry their share of
	// entry costs.
	entryCommission map[string]float64
	entrySlippage   map[string]float64

	equityCurve []types.AccountSnapshot
	trades      []types.TradeRecord

	peakEquity float64
	drawdown   float64

	log *logger.Logger
}

// NewAccountManager creates an account manager with the given starting cash.
func NewAccountManager(initialCapital float64, log *logger.Logger) *AccountManager {
	return &AccountManager{
		cash:              initialCapital,
		positions:         make(map[string]*types.Position),
		symbols:           nil,
		lastPrices:        make(map[string]float64),
		realized:          0,
		totalCommission:   0,
		totalSlippageCost: 0,
		entryCommission:   make(map[string]float64),
		entrySlippage:     make(map[string]float64),
		equityCurve:       nil,
		trades:            nil,
		peakEquity:        initialCapital,
		drawdown:          0,
		log:               log,
	}
}

func (a *AccountManager) position(symbol string) *types.Position {
	if pos, ok := a.positions[symbol]; ok {
		return pos
	}

	pos := &types.Position{
		Symbol:        symbol,
		Quantity:      0,
		AvgEntryPrice: 0,
		RealizedPnL:   0,
		UnrealizedPnL: 0,
		OpenedAt:      time.Time{},
	}
	a.positions[symbol] = pos
	a.symbols = append(a.symbols, symbol)

	return pos
}

// Apply books one fill: cash moves by -(signed notional) - commission, the
// symbol's position is adjusted (VWAP entry on same-direction adds, realized
// P&L on reducing fills), and a trade record is emitted for any closed
// round-trip quantity. A fill that flips the position closes it first and
// reopens the remainder at the fill price.
func (a *AccountManager) Apply(fill types.Fill) ([]types.TradeRecord, error) {
	pos := a.position(fill.Symbol)
	signed := fill.SignedQuantity()

	newCash, _ := decimal.NewFromFloat(a.cash).Add(decimal.NewFromFloat(fill.CashDelta())).Float64()
	a.cash = newCash
	a.totalCommission += fill.Commission
	a.totalSlippageCost += fill.Slippage * fill.Quantity

	if pos.IsFlat() || sameDirection(pos.Quantity, signed) {
		a.addToPosition(pos, fill)

		return nil, nil
	}

	trade, err := a.reducePosition(pos, fill)
	if err != nil {
		return nil, err
	}

	return []types.TradeRecord{trade}, nil
}

func sameDirection(a, b float64) bool {
	return (a > 0 && b > 0) || (a < 0 && b < 0)
}

func (a *AccountManager) addToPosition(pos *types.Position, fill types.Fill) {
	signed := fill.SignedQuantity()

	if pos.IsFlat() {
		pos.Quantity = signed
		pos.AvgEntryPrice = fill.Price
		pos.OpenedAt = fill.Time
	} else {
		prev := decimal.NewFromFloat(pos.AvgEntryPrice).Mul(decimal.NewFromFloat(pos.AbsQuantity()))
		add := decimal.NewFromFloat(fill.Price).Mul(decimal.NewFromFloat(fill.Quantity))
		total := pos.AbsQuantity() + fill.Quantity
		avg, _ := prev.Add(add).Div(decimal.NewFromFloat(total)).Float64()

		pos.AvgEntryPrice = avg
		pos.Quantity += signed
	}

	a.entryCommission[pos.Symbol] += fill.Commission
	a.entrySlippage[pos.Symbol] += fill.Slippage * fill.Quantity
}

func (a *AccountManager) reducePosition(pos *types.Position, fill types.Fill) (types.TradeRecord, error) {
	closeQty := math.Min(pos.AbsQuantity(), fill.Quantity)
	if closeQty <= 0 {
		return types.TradeRecord{}, errors.Wrap(errors.ErrCodeInvariantViolation, "reducing fill against empty position",
			errors.NewInvariantViolationErrorf(fill.Time, fill.OrderID, "position %s is flat", fill.Symbol))
	}

	posSide := types.SideBuy
	if !pos.IsLong() {
		posSide = types.SideSell
	}

	pnl := types.ComputePnL(posSide, pos.AvgEntryPrice, fill.Price, closeQty)

	entryShare := closeQty / pos.AbsQuantity()
	exitShare := closeQty / fill.Quantity
	commission := fill.Commission*exitShare + a.entryCommission[pos.Symbol]*entryShare
	slippageCost := fill.Slippage*closeQty + a.entrySlippage[pos.Symbol]*entryShare
	a.entryCommission[pos.Symbol] *= 1 - entryShare
	a.entrySlippage[pos.Symbol] *= 1 - entryShare

	entryNotional := pos.AvgEntryPrice * closeQty

	pnlPct := 0.0
	if entryNotional > 0 {
		pnlPct = pnl / entryNotional
	}

	trade := types.TradeRecord{
		EntryTime:  pos.OpenedAt,
		ExitTime:   fill.Time,
		Symbol:     fill.Symbol,
		Side:       posSide,
		EntryPrice: pos.AvgEntryPrice,
		ExitPrice:  fill.Price,
		Quantity:   closeQty,
		PnL:        pnl,
		PnLPct:     pnlPct,
		Commission: commission,
		Slippage:   slippageCost,
	}
	a.trades = append(a.trades, trade)

	pos.RealizedPnL += pnl
	a.realized += pnl

	if pos.IsLong() {
		pos.Quantity -= closeQty
	} else {
		pos.Quantity += closeQty
	}

	if math.Abs(pos.Quantity) < quantityEpsilon {
		pos.Quantity = 0
		pos.AvgEntryPrice = 0
		pos.UnrealizedPnL = 0
		a.entryCommission[pos.Symbol] = 0
		a.entrySlippage[pos.Symbol] = 0

		// A fill larger than the position flips it: the remainder opens a
		// fresh position in the fill's direction.
		remainder := fill.Quantity - closeQty
		if remainder > quantityEpsilon {
			pos.Quantity = remainder
			if fill.Side == types.SideSell {
				pos.Quantity = -remainder
			}

			pos.AvgEntryPrice = fill.Price
			pos.OpenedAt = fill.Time
			a.entryCommission[pos.Symbol] = fill.Commission * (remainder / fill.Quantity)
			a.entrySlippage[pos.Symbol] = fill.Slippage * remainder
		}
	}

	return trade, nil
}

// EndOfBar marks all open positions to the bar closes, commits one account
// snapshot, and verifies the equity reconciliation invariant:
// equity == cash + sum of position market values, within tolerance. A
// mismatch is a programming-contract failure that halts the run.
func (a *AccountManager) EndOfBar(t time.Time, bars map[string]types.Bar) (types.AccountSnapshot, error) {
	for symbol, bar := range bars {
		a.lastPrices[symbol] = bar.Close
	}

	equity := decimal.NewFromFloat(a.cash)
	unrealized := decimal.Zero

	var open []types.Position

	for _, symbol := range a.symbols {
		pos := a.positions[symbol]
		if pos.IsFlat() {
			continue
		}

		price, ok := a.lastPrices[symbol]
		if !ok {
			price = pos.AvgEntryPrice
		}

		pos.MarkToMarket(price)

		// Equity derived from entry value plus unrealized P&L; the snapshot
		// reconciliation below recomputes it from market values, so the two
		// paths cross-check each other.
		entryValue := decimal.NewFromFloat(pos.AvgEntryPrice).Mul(decimal.NewFromFloat(pos.Quantity))
		equity = equity.Add(entryValue).Add(decimal.NewFromFloat(pos.UnrealizedPnL))
		unrealized = unrealized.Add(decimal.NewFromFloat(pos.UnrealizedPnL))

		open = append(open, *pos)
	}

	equityValue, _ := equity.Float64()
	unrealizedValue, _ := unrealized.Float64()

	snapshot := types.AccountSnapshot{
		Time:          t,
		Cash:          a.cash,
		Equity:        equityValue,
		RealizedPnL:   a.realized,
		UnrealizedPnL: unrealizedValue,
		Positions:     open,
	}

	if mismatch := snapshot.Reconcile(a.lastPrices); mismatch > equityTolerance {
		return types.AccountSnapshot{}, errors.Wrap(errors.ErrCodeInvariantViolation, "equity reconciliation failed",
			errors.NewInvariantViolationErrorf(t, "", "equity %f off by %f from cash + position values", equityValue, mismatch))
	}

	a.equityCurve = append(a.equityCurve, snapshot)

	if equityValue > a.peakEquity {
		a.peakEquity = equityValue
	}

	if a.peakEquity > 0 {
		a.drawdown = (a.peakEquity - equityValue) / a.peakEquity
	}

	a.log.Debug("bar committed",
		zap.Time("time", t),
		zap.Float64("cash", a.cash),
		zap.Float64("equity", equityValue),
		zap.Float64("drawdown", a.drawdown),
	)

	return snapshot, nil
}

// View returns the read-only account state the guard checks against, marked
// at the last known prices.
func (a *AccountManager) View() AccountView {
	equity := decimal.NewFromFloat(a.cash)
	gross := decimal.Zero

	for _, symbol := range a.symbols {
		pos := a.positions[symbol]
		if pos.IsFlat() {
			continue
		}

		price, ok := a.lastPrices[symbol]
		if !ok {
			price = pos.AvgEntryPrice
		}

		value := decimal.NewFromFloat(pos.MarketValue(price))
		equity = equity.Add(value)
		gross = gross.Add(value.Abs())
	}

	equityValue, _ := equity.Float64()
	grossValue, _ := gross.Float64()

	return AccountView{
		Cash:            a.cash,
		Equity:          equityValue,
		GrossExposure:   grossValue,
		RunningDrawdown: a.drawdown,
	}
}

// LastPrice returns the last close seen for the symbol, or 0 when no bar
// has been processed for it yet.
func (a *AccountManager) LastPrice(symbol string) float64 {
	return a.lastPrices[symbol]
}

// Snapshot returns the snapshot committed at the end of the latest bar, or
// a synthetic pre-run snapshot when no bar has been processed.
func (a *AccountManager) Snapshot() types.AccountSnapshot {
	if len(a.equityCurve) == 0 {
		return types.AccountSnapshot{
			Time:          time.Time{},
			Cash:          a.cash,
			Equity:        a.cash,
			RealizedPnL:   0,
			UnrealizedPnL: 0,
			Positions:     nil,
		}
	}

	return a.equityCurve[len(a.equityCurve)-1]
}

// EquityCurve returns a copy of the committed snapshot sequence.
func (a *AccountManager) EquityCurve() []types.AccountSnapshot {
	curve := make([]types.AccountSnapshot, len(a.equityCurve))
	copy(curve, a.equityCurve)

	return curve
}

// Trades returns a copy of the closed-trade ledger in execution order.
func (a *AccountManager) Trades() []types.TradeRecord {
	trades := make([]types.TradeRecord, len(a.trades))
	copy(trades, a.trades)

	return trades
}

// TotalCommission returns the commissions paid across all fills.
func (a *AccountManager) TotalCommission() float64 {
	return a.totalCommission
}
