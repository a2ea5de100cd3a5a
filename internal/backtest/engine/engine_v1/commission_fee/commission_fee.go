package commission_fee

// Model selects a commission model in the engine configuration.
type Model string

const (
	// ModelZero charges nothing. Normative for the engine's scenario tests.
	ModelZero Model = "zero"
	// ModelFlatPct charges fee_flat + fee_pct * notional per fill.
	ModelFlatPct Model = "flat_pct"
)

var AllModels = []any{
	ModelZero,
	ModelFlatPct,
}

// CommissionFee computes the fee charged at fill time.
type CommissionFee interface {
	// Calculate returns the fee in account currency for a fill of the given
	// notional value (price * quantity).
	Calculate(notional float64) float64
}

// GetCommissionFeeHandler returns the commission model for the given
// selector. Unknown selectors fall back to zero commission; configuration
// validation rejects them before a run starts.
func GetCommissionFeeHandler(model Model, feeFlat, feePct float64) CommissionFee {
	switch model {
	case ModelFlatPct:
		return NewFlatPctCommissionFee(feeFlat, feePct)
	case ModelZero:
		return NewZeroCommissionFee()
	default:
		return NewZeroCommissionFee()
	}
}
