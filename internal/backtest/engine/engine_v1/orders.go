package engine

import (
	"math"
	"time"

	"github.com/marelab/backsim/internal/logger"
	"github.com/marelab/backsim/internal/types"
	"github.com/marelab/backsim/pkg/errors"
	"github.com/moznion/go-optional"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// quantityEpsilon absorbs float noise when comparing fill quantities.
const quantityEpsilon = 1e-9

// OrderManager owns the order lifecycle. Orders live in an arena slice with
// stable indices; an ID map provides lookup and nothing is ever deleted.
// Cancellation and rejection are terminal statuses, not removals.
type OrderManager struct {
	orders    []types.Order
	index     map[string]int
	fillsSeen map[string]bool
	log       *logger.Logger
}

// NewOrderManager creates an empty order manager.
func NewOrderManager(log *logger.Logger) *OrderManager {
	return &OrderManager{
		orders:    make([]types.Order, 0),
		index:     make(map[string]int),
		fillsSeen: make(map[string]bool),
		log:       log,
	}
}

// Submit creates a PENDING order from an accepted signal. One order per
// accepted signal; an order is never reused across signals.
func (m *OrderManager) Submit(signal types.Signal, orderID string, now time.Time) types.Order {
	order := types.Order{
		ID:             orderID,
		SignalID:       signal.ID,
		Symbol:         signal.Symbol,
		Side:           signal.Side,
		Action:         signal.Action,
		Type:           signal.OrderType,
		Quantity:       signal.Quantity,
		StrategyName:   signal.StrategyName,
		LimitPrice:     signal.LimitPrice,
		StopPrice:      signal.StopPrice,
		FilledQuantity: 0,
		AvgFillPrice:   0,
		Status:         types.OrderStatusPending,
		Triggered:      false,
		RejectReason:   "",
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	m.append(order)

	return order
}

// Reject records a rejected signal as a terminal REJECTED order for the
// audit trail. Rejected orders are never eligible for fills and their IDs
// are not returned to the caller.
func (m *OrderManager) Reject(signal types.Signal, orderID, reason string, now time.Time) types.Order {
	order := types.Order{
		ID:             orderID,
		SignalID:       signal.ID,
		Symbol:         signal.Symbol,
		Side:           signal.Side,
		Action:         signal.Action,
		Type:           signal.OrderType,
		Quantity:       signal.Quantity,
		StrategyName:   signal.StrategyName,
		LimitPrice:     signal.LimitPrice,
		StopPrice:      signal.StopPrice,
		FilledQuantity: 0,
		AvgFillPrice:   0,
		Status:         types.OrderStatusRejected,
		Triggered:      false,
		RejectReason:   reason,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	m.append(order)

	return order
}

func (m *OrderManager) append(order types.Order) {
	m.index[order.ID] = len(m.orders)
	m.orders = append(m.orders, order)
}

// Get returns a copy of the order with the given ID.
func (m *OrderManager) Get(orderID string) optional.Option[types.Order] {
	i, ok := m.index[orderID]
	if !ok {
		return optional.None[types.Order]()
	}

	return optional.Some(m.orders[i])
}

// Cancel moves a live order to CANCELLED. Returns false if the order does
// not exist or is already terminal. Already-filled portions remain in the
// account.
func (m *OrderManager) Cancel(orderID string, now time.Time) bool {
	i, ok := m.index[orderID]
	if !ok {
		return false
	}

	order := &m.orders[i]
	if !order.CanTransition(types.OrderStatusCancelled) {
		return false
	}

	order.Status = types.OrderStatusCancelled
	order.UpdatedAt = now

	return true
}

// Modify updates the limit/stop prices of a live order. Returns false if
// the order does not exist or is terminal. Prices left None are unchanged.
func (m *OrderManager) Modify(orderID string, limitPrice, stopPrice optional.Option[float64], now time.Time) bool {
	i, ok := m.index[orderID]
	if !ok {
		return false
	}

	order := &m.orders[i]
	if !order.IsLive() {
		return false
	}

	if limitPrice.IsSome() {
		order.LimitPrice = limitPrice
	}

	if stopPrice.IsSome() {
		order.StopPrice = stopPrice
	}

	order.UpdatedAt = now

	return true
}

// MarkTriggered latches the stop trigger on a live STOP/STOP_LIMIT order.
func (m *OrderManager) MarkTriggered(orderID string, now time.Time) {
	i, ok := m.index[orderID]
	if !ok {
		return
	}

	order := &m.orders[i]
	if !order.IsLive() {
		return
	}

	order.Triggered = true
	order.UpdatedAt = now
}

// ApplyFill applies one fill to its order, advancing the state machine.
// Duplicate fills, unknown orders, fills against terminal orders, and fills
// exceeding the remaining quantity are invariant violations: they indicate a
// simulator bug, not bad input.
func (m *OrderManager) ApplyFill(fill types.Fill) error {
	if m.fillsSeen[fill.ID] {
		return errors.Wrap(errors.ErrCodeInvariantViolation, "duplicate fill application",
			errors.NewInvariantViolationErrorf(fill.Time, fill.OrderID, "fill %s applied twice", fill.ID))
	}

	i, ok := m.index[fill.OrderID]
	if !ok {
		return errors.Wrap(errors.ErrCodeInvariantViolation, "fill for unknown order",
			errors.NewInvariantViolationErrorf(fill.Time, fill.OrderID, "fill %s references unknown order", fill.ID))
	}

	order := &m.orders[i]
	if !order.IsLive() {
		return errors.Wrap(errors.ErrCodeInvariantViolation, "fill against terminal order",
			errors.NewInvariantViolationErrorf(fill.Time, fill.OrderID, "order is %s", order.Status))
	}

	if fill.Quantity <= 0 {
		return errors.Wrap(errors.ErrCodeInvariantViolation, "non-positive fill quantity",
			errors.NewInvariantViolationErrorf(fill.Time, fill.OrderID, "fill quantity %f", fill.Quantity))
	}

	remaining := order.Remaining()
	if fill.Quantity > remaining+quantityEpsilon {
		return errors.Wrap(errors.ErrCodeInvariantViolation, "fill exceeds remaining quantity",
			errors.NewInvariantViolationErrorf(fill.Time, fill.OrderID, "fill %f > remaining %f", fill.Quantity, remaining))
	}

	// Volume-weighted average across this order's fills.
	prevNotional := decimal.NewFromFloat(order.AvgFillPrice).Mul(decimal.NewFromFloat(order.FilledQuantity))
	fillNotional := decimal.NewFromFloat(fill.Price).Mul(decimal.NewFromFloat(fill.Quantity))
	newFilled := order.FilledQuantity + fill.Quantity
	avg, _ := prevNotional.Add(fillNotional).Div(decimal.NewFromFloat(newFilled)).Float64()

	order.FilledQuantity = newFilled
	order.AvgFillPrice = avg
	order.UpdatedAt = fill.Time
	m.fillsSeen[fill.ID] = true

	next := types.OrderStatusPartial
	if math.Abs(order.Remaining()) <= quantityEpsilon {
		order.FilledQuantity = order.Quantity
		next = types.OrderStatusFilled
	}

	if order.Status != next {
		if !order.CanTransition(next) {
			return errors.Wrap(errors.ErrCodeInvariantViolation, "illegal order transition",
				errors.NewInvariantViolationErrorf(fill.Time, fill.OrderID, "%s -> %s", order.Status, next))
		}

		order.Status = next
	}

	m.log.Debug("fill applied",
		zap.String("order_id", order.ID),
		zap.Float64("quantity", fill.Quantity),
		zap.Float64("price", fill.Price),
		zap.String("status", string(order.Status)),
	)

	return nil
}

// LiveOrders returns copies of all PENDING/PARTIAL orders in submission
// order. Submission order is part of the deterministic contract.
func (m *OrderManager) LiveOrders() []types.Order {
	var live []types.Order

	for i := range m.orders {
		if m.orders[i].IsLive() {
			live = append(live, m.orders[i])
		}
	}

	return live
}

// All returns copies of every order ever submitted, in submission order.
func (m *OrderManager) All() []types.Order {
	out := make([]types.Order, len(m.orders))
	copy(out, m.orders)

	return out
}
