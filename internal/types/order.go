package types

import (
	"time"

	"github.com/moznion/go-optional"
)

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "PENDING"
	OrderStatusPartial   OrderStatus = "PARTIAL"
	OrderStatusFilled    OrderStatus = "FILLED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
	OrderStatusRejected  OrderStatus = "REJECTED"
)

// IsTerminal reports whether no further transitions are allowed from the status.
func (s OrderStatus) IsTerminal() bool {
	switch s {
	case OrderStatusFilled, OrderStatusCancelled, OrderStatusRejected:
		return true
	case OrderStatusPending, OrderStatusPartial:
		return false
	}

	return false
}

// Order is the tracked lifecycle object derived 1:1 from an accepted Signal.
// An Order is never reused across signals and never deleted; cancellation and
// rejection are terminal statuses, not removals.
type Order struct {
	ID           string       `yaml:"id" json:"id" csv:"id"`
	SignalID     string       `yaml:"signal_id" json:"signal_id" csv:"signal_id"`
	Symbol       string       `yaml:"symbol" json:"symbol" csv:"symbol"`
	Side         Side         `yaml:"side" json:"side" csv:"side"`
	Action       SignalAction `yaml:"action" json:"action" csv:"action"`
	Type         OrderType    `yaml:"order_type" json:"order_type" csv:"order_type"`
	Quantity     float64      `yaml:"quantity" json:"quantity" csv:"quantity"`
	StrategyName string       `yaml:"strategy_name" json:"strategy_name" csv:"strategy_name"`

	LimitPrice optional.Option[float64] `yaml:"limit_price" json:"limit_price" csv:"limit_price"`
	StopPrice  optional.Option[float64] `yaml:"stop_price" json:"stop_price" csv:"stop_price"`

	// FilledQuantity is the sum of this order's fill sizes.
	// Invariant: 0 <= FilledQuantity <= Quantity.
	FilledQuantity float64 `yaml:"filled_quantity" json:"filled_quantity" csv:"filled_quantity"`
	// AvgFillPrice is the volume-weighted average price across fills.
	AvgFillPrice float64     `yaml:"avg_fill_price" json:"avg_fill_price" csv:"avg_fill_price"`
	Status       OrderStatus `yaml:"status" json:"status" csv:"status"`
	// Triggered latches once a STOP or STOP_LIMIT order's stop price has been
	// crossed; from then on the order behaves as MARKET or LIMIT respectively.
	Triggered bool `yaml:"triggered" json:"triggered" csv:"triggered"`
	// RejectReason is set only for REJECTED orders.
	RejectReason string `yaml:"reject_reason" json:"reject_reason" csv:"reject_reason"`

	CreatedAt time.Time `yaml:"created_at" json:"created_at" csv:"created_at"`
	UpdatedAt time.Time `yaml:"updated_at" json:"updated_at" csv:"updated_at"`
}

// Remaining returns the unfilled quantity.
func (o *Order) Remaining() float64 {
	return o.Quantity - o.FilledQuantity
}

// IsLive reports whether the order is still eligible for fills.
func (o *Order) IsLive() bool {
	return !o.Status.IsTerminal()
}

// CanTransition reports whether the order state machine permits moving to
// the target status. Terminal statuses allow no transitions.
func (o *Order) CanTransition(to OrderStatus) bool {
	if o.Status.IsTerminal() {
		return false
	}

	switch o.Status {
	case OrderStatusPending:
		switch to {
		case OrderStatusPartial, OrderStatusFilled, OrderStatusCancelled, OrderStatusRejected:
			return true
		case OrderStatusPending:
			return false
		}
	case OrderStatusPartial:
		switch to {
		case OrderStatusPartial, OrderStatusFilled, OrderStatusCancelled:
			return true
		case OrderStatusPending, OrderStatusRejected:
			return false
		}
	case OrderStatusFilled, OrderStatusCancelled, OrderStatusRejected:
		return false
	}

	return false
}
