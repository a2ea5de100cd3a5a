package types

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/marelab/backsim/pkg/errors"
	"github.com/moznion/go-optional"
)

type Side string

type SignalAction string

type OrderType string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

const (
	// SignalActionEntry opens or adds to a position.
	SignalActionEntry SignalAction = "ENTRY"
	// SignalActionExit reduces or closes a position.
	SignalActionExit SignalAction = "EXIT"
	// SignalActionModify updates the limit/stop prices of a live order.
	SignalActionModify SignalAction = "MODIFY"
	// SignalActionCancel cancels a live order.
	SignalActionCancel SignalAction = "CANCEL"
)

const (
	OrderTypeMarket    OrderType = "MARKET"
	OrderTypeLimit     OrderType = "LIMIT"
	OrderTypeStop      OrderType = "STOP"
	OrderTypeStopLimit OrderType = "STOP_LIMIT"
)

// Signal is a strategy's expressed trading intent, not yet validated or
// executed. Signals are immutable once accepted; the engine never mutates
// them after Submit.
type Signal struct {
	ID           string       `yaml:"id" json:"id" csv:"id" validate:"required"`
	Time         time.Time    `yaml:"time" json:"time" csv:"time" validate:"required"`
	Symbol       string       `yaml:"symbol" json:"symbol" csv:"symbol"`
	Side         Side         `yaml:"side" json:"side" csv:"side" validate:"required,oneof=BUY SELL"`
	Action       SignalAction `yaml:"action" json:"action" csv:"action" validate:"required,oneof=ENTRY EXIT MODIFY CANCEL"`
	OrderType    OrderType    `yaml:"order_type" json:"order_type" csv:"order_type" validate:"required,oneof=MARKET LIMIT STOP STOP_LIMIT"`
	Quantity     float64      `yaml:"quantity" json:"quantity" csv:"quantity" validate:"gte=0"`
	StrategyName string       `yaml:"strategy_name" json:"strategy_name" csv:"strategy_name"`
	// LimitPrice is required for LIMIT and STOP_LIMIT orders.
	LimitPrice optional.Option[float64] `yaml:"limit_price" json:"limit_price" csv:"limit_price"`
	// StopPrice is required for STOP and STOP_LIMIT orders.
	StopPrice optional.Option[float64] `yaml:"stop_price" json:"stop_price" csv:"stop_price"`
	// StopLoss and TakeProfit are optional protective levels carried for reporting.
	StopLoss   optional.Option[float64] `yaml:"stop_loss" json:"stop_loss" csv:"stop_loss"`
	TakeProfit optional.Option[float64] `yaml:"take_profit" json:"take_profit" csv:"take_profit"`
	// TargetOrderID names the live order a MODIFY or CANCEL signal applies to.
	TargetOrderID string `yaml:"target_order_id" json:"target_order_id" csv:"target_order_id"`
	// Metadata carries free-form strategy context, never interpreted by the engine.
	Metadata map[string]string `yaml:"metadata" json:"metadata" csv:"-"`
}

// Validate checks schema completeness: required fields, positive size, and
// the price fields each order type demands.
func (s *Signal) Validate() error {
	validate := validator.New()
	if err := validate.Struct(s); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidSignal, "invalid signal", err)
	}

	switch s.Action {
	case SignalActionModify, SignalActionCancel:
		if s.TargetOrderID == "" {
			return errors.Newf(errors.ErrCodeInvalidSignal, "%s signal requires target_order_id", s.Action)
		}

		return nil
	case SignalActionEntry, SignalActionExit:
		// fall through to order checks
	}

	if s.Symbol == "" {
		return errors.New(errors.ErrCodeInvalidSignal, "signal symbol is empty")
	}

	if s.Quantity <= 0 {
		return errors.Newf(errors.ErrCodeInvalidQuantity, "signal quantity must be positive, got %f", s.Quantity)
	}

	switch s.OrderType {
	case OrderTypeLimit:
		if s.LimitPrice.IsNone() {
			return errors.New(errors.ErrCodeMissingLimitPrice, "limit order requires a limit price")
		}
	case OrderTypeStop:
		if s.StopPrice.IsNone() {
			return errors.New(errors.ErrCodeMissingStopPrice, "stop order requires a stop price")
		}
	case OrderTypeStopLimit:
		if s.LimitPrice.IsNone() {
			return errors.New(errors.ErrCodeMissingLimitPrice, "stop-limit order requires a limit price")
		}

		if s.StopPrice.IsNone() {
			return errors.New(errors.ErrCodeMissingStopPrice, "stop-limit order requires a stop price")
		}
	case OrderTypeMarket:
	}

	for _, price := range []optional.Option[float64]{s.LimitPrice, s.StopPrice, s.StopLoss, s.TakeProfit} {
		if price.IsSome() && price.Unwrap() <= 0 {
			return errors.New(errors.ErrCodeInvalidSignal, "signal price levels must be positive")
		}
	}

	return nil
}
