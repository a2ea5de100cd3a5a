package engine

import (
	"fmt"

	"github.com/marelab/backsim/internal/types"
	"github.com/marelab/backsim/pkg/errors"
	"github.com/shopspring/decimal"
)

// AccountView is the read-only account state the guard checks against.
type AccountView struct {
	Cash            float64
	Equity          float64
	GrossExposure   float64
	RunningDrawdown float64
}

// GuardResult is the outcome of a pre-trade check. Rejections are reported
// values, never errors: the engine keeps processing subsequent signals.
type GuardResult struct {
	Accepted bool
	Code     errors.ErrorCode
	Reason   string
}

func accept() GuardResult {
	return GuardResult{Accepted: true, Code: 0, Reason: ""}
}

func reject(code errors.ErrorCode, reason string) GuardResult {
	return GuardResult{Accepted: false, Code: code, Reason: reason}
}

// Guard runs pre-trade risk checks in a fixed order, short-circuiting on the
// first failure: schema completeness, position-size limit, leverage limit,
// drawdown halt.
type Guard struct {
	config Config
}

// NewGuard creates a guard bound to the run configuration.
func NewGuard(config Config) *Guard {
	return &Guard{config: config}
}

// Check validates a signal against the account state. refPrice is the price
// used to estimate the order's notional: the limit price when present,
// otherwise the symbol's last known close. A zero refPrice (no market data
// seen yet) skips the notional-based checks, since no exposure estimate is
// possible before the first bar.
func (g *Guard) Check(signal types.Signal, account AccountView, refPrice float64) GuardResult {
	// (a) schema completeness
	if err := signal.Validate(); err != nil {
		return reject(errors.GetCode(err), err.Error())
	}

	// MODIFY and CANCEL never add exposure.
	if signal.Action == types.SignalActionModify || signal.Action == types.SignalActionCancel {
		return accept()
	}

	// (d) is checked for entries even when no reference price exists yet.
	if signal.Action == types.SignalActionEntry && account.RunningDrawdown >= g.config.MaxDrawdownStop {
		return reject(errors.ErrCodeInvalidSignal,
			fmt.Sprintf("drawdown halt active: running drawdown %.4f >= %.4f", account.RunningDrawdown, g.config.MaxDrawdownStop))
	}

	// EXIT signals reduce exposure; size and leverage limits apply to entries.
	if signal.Action != types.SignalActionEntry {
		return accept()
	}

	price := refPrice
	if signal.LimitPrice.IsSome() {
		price = signal.LimitPrice.Unwrap()
	}

	if price <= 0 {
		return accept()
	}

	notional, _ := decimal.NewFromFloat(price).Mul(decimal.NewFromFloat(signal.Quantity)).Float64()

	// (b) position-size limit
	if notional > g.config.MaxPositionPct*account.Equity {
		return reject(errors.ErrCodeInvalidSignal,
			fmt.Sprintf("requested notional %.2f exceeds %.0f%% of equity %.2f", notional, g.config.MaxPositionPct*100, account.Equity))
	}

	// (c) leverage limit on post-fill gross exposure
	if account.GrossExposure+notional > g.config.MaxLeverage*account.Equity {
		return reject(errors.ErrCodeInvalidSignal,
			fmt.Sprintf("post-fill exposure %.2f exceeds %.1fx leverage on equity %.2f", account.GrossExposure+notional, g.config.MaxLeverage, account.Equity))
	}

	return accept()
}
