package rates

import "github.com/shopspring/decimal"

// InsurancePolicy computes the insurance premium for a declared shipment value.
type InsurancePolicy interface {
	Premium(declaredValue decimal.Decimal) decimal.Decimal
}

// FixedRatePolicy charges a flat percentage of declared value with an
// optional minimum premium. The rate comes from the platform's insurance
// partner configuration.
type FixedRatePolicy struct {
	RatePercent    decimal.Decimal
	MinimumPremium decimal.Decimal
}

// Premium applies the policy to a declared value. Zero or negative declared
// value carries no premium.
func (p FixedRatePolicy) Premium(declaredValue decimal.Decimal) decimal.Decimal {
	if !declaredValue.IsPositive() {
		return decimal.Zero
	}
	premium := declaredValue.Mul(p.RatePercent).Div(decimal.NewFromInt(100)).Round(2)
	if premium.LessThan(p.MinimumPremium) {
		return p.MinimumPremium
	}
	return premium
}
