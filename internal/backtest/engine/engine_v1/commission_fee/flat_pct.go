package commission_fee

import "github.com/shopspring/decimal"

// FlatPctCommissionFee charges a flat fee plus a percentage of the fill
// notional: fee_flat + fee_pct * notional.
type FlatPctCommissionFee struct {
	feeFlat float64
	feePct  float64
}

// NewFlatPctCommissionFee creates a flat-plus-percentage commission fee.
func NewFlatPctCommissionFee(feeFlat, feePct float64) CommissionFee {
	return &FlatPctCommissionFee{
		feeFlat: feeFlat,
		feePct:  feePct,
	}
}

func (c *FlatPctCommissionFee) Calculate(notional float64) float64 {
	if notional <= 0 {
		return c.feeFlat
	}

	pct := decimal.NewFromFloat(c.feePct).Mul(decimal.NewFromFloat(notional))
	fee, _ := decimal.NewFromFloat(c.feeFlat).Add(pct).Float64()

	return fee
}
