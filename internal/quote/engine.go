package quote

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-pasal/internal/classification"
	"github.com/noah-isme/backend-pasal/internal/currency"
	"github.com/noah-isme/backend-pasal/internal/gateway"
	"github.com/noah-isme/backend-pasal/internal/rates"
	"github.com/noah-isme/backend-pasal/internal/tax"
)

var hundred = decimal.NewFromInt(100)

// Engine orchestrates a full quote calculation: per-item duty/tax, shipping
// legs, handling, insurance, discounts, gateway fee and the display-currency
// conversion. It is stateless between calls; every calculation pins one
// exchange-rate and one registry snapshot for its whole duration.
type Engine struct {
	Rates     *currency.Store
	Registry  *classification.Store
	Fallback  classification.FallbackPolicy
	Shipping  *rates.Table
	Insurance rates.InsurancePolicy
	Gateways  *gateway.Schedule
}

// Calculate computes the QuoteBreakdown for one request. Any fatal condition
// aborts the whole call; the engine never returns a partial breakdown.
func (e *Engine) Calculate(ctx context.Context, req Request) (Breakdown, error) {
	if e == nil || e.Rates == nil || e.Registry == nil || e.Shipping == nil {
		return Breakdown{}, errors.New("quote: engine not configured")
	}
	if err := validateRequest(req); err != nil {
		return Breakdown{}, err
	}

	// One snapshot per calculation. A refresh that lands mid-calculation
	// must not change rates under our feet.
	rateSnap, err := e.Rates.Current()
	if err != nil {
		return Breakdown{}, err
	}
	registrySnap, err := e.Registry.Current()
	if err != nil {
		return Breakdown{}, err
	}
	converter, err := currency.NewConverter(rateSnap)
	if err != nil {
		return Breakdown{}, err
	}

	originRate, ok := rateSnap.Rate(req.Route.OriginCountry)
	if !ok {
		return Breakdown{}, &currency.RateNotFoundError{CountryCode: req.Route.OriginCountry}
	}
	displayRate, ok := rateSnap.Rate(req.Route.DisplayCountry)
	if !ok {
		return Breakdown{}, &currency.RateNotFoundError{CountryCode: req.Route.DisplayCountry}
	}

	calc := tax.Calculator{Registry: registrySnap, Converter: converter, Fallback: e.Fallback}

	breakdown := Breakdown{
		Items:                   make([]tax.TaxedLineItem, 0, len(req.Items)),
		OriginCurrency:          originRate.CurrencyCode,
		CustomerDisplayCurrency: displayRate.CurrencyCode,
		ExchangeRateUsed:        displayRate.RateFromUSD,
		RateSnapshotAt:          rateSnap.LoadedAt(),
	}

	totalWeight := decimal.Zero
	for _, item := range req.Items {
		taxed, err := calc.Calculate(item, req.Route.OriginCountry)
		if err != nil {
			return Breakdown{}, err
		}
		breakdown.Items = append(breakdown.Items, taxed)
		breakdown.ItemsSubtotal = breakdown.ItemsSubtotal.Add(taxed.DeclaredTotal())
		breakdown.TotalDuty = breakdown.TotalDuty.Add(taxed.DutyAmount)
		breakdown.TotalTax = breakdown.TotalTax.Add(taxed.TaxAmount)
		totalWeight = totalWeight.Add(taxed.WeightKg.Mul(decimal.NewFromInt(int64(taxed.Quantity))))
	}

	legs, handling, err := e.Shipping.Resolve(ctx, req.Route.OriginCountry, req.Route.DestinationCountry, totalWeight)
	if err != nil {
		return Breakdown{}, err
	}
	// Free shipping zeroes the components themselves; duty and tax above
	// are already settled and remain untouched.
	if hasFreeShipping(req.Discounts) {
		legs = rates.ShippingLegs{
			Merchant:      decimal.Zero,
			International: decimal.Zero,
			Domestic:      decimal.Zero,
		}
	}
	breakdown.Shipping = legs
	breakdown.HandlingCharge = handling

	if req.Options.InsuranceEnabled && e.Insurance != nil {
		breakdown.InsuranceAmount = e.Insurance.Premium(breakdown.ItemsSubtotal)
	}

	breakdown.Subtotal = breakdown.ItemsSubtotal.
		Add(breakdown.TotalDuty).
		Add(breakdown.TotalTax).
		Add(legs.Total()).
		Add(breakdown.HandlingCharge).
		Add(breakdown.InsuranceAmount)

	discount := applyDiscounts(req.Discounts, breakdown.Subtotal, legs.Total())
	breakdown.DiscountAmount = discount.Neg()

	postDiscount := breakdown.Subtotal.Sub(discount)
	if req.Options.Gateway != "" {
		if e.Gateways == nil {
			return Breakdown{}, &CalculationError{Reason: "no gateway schedule configured"}
		}
		fee, err := e.Gateways.Fee(req.Options.Gateway, postDiscount)
		if err != nil {
			return Breakdown{}, &CalculationError{Reason: fmt.Sprintf("gateway %q", req.Options.Gateway), Err: err}
		}
		breakdown.PaymentGatewayFee = fee
	}

	breakdown.FinalTotal = postDiscount.Add(breakdown.PaymentGatewayFee)
	if breakdown.FinalTotal.IsNegative() {
		return Breakdown{}, &CalculationError{Reason: fmt.Sprintf("negative final total %s", breakdown.FinalTotal)}
	}

	// Display conversion crosses through the USD reference using the same
	// snapshot that priced the minimum valuations.
	breakdown.DisplayTotal = breakdown.FinalTotal.
		Div(originRate.RateFromUSD).
		Mul(displayRate.RateFromUSD).
		Round(2)

	return breakdown, nil
}

func hasFreeShipping(discounts []DiscountSpec) bool {
	for _, d := range discounts {
		if d.Scope == ScopeShipping && d.Kind == KindFree {
			return true
		}
	}
	return false
}

// applyDiscounts computes the total discount amount. Shipping-scope
// discounts can only consume the shipping total; order-scope discounts
// consume what remains of the subtotal. Nothing ever discounts below zero.
func applyDiscounts(discounts []DiscountSpec, subtotal, shippingTotal decimal.Decimal) decimal.Decimal {
	shippingLeft := shippingTotal
	orderLeft := subtotal
	total := decimal.Zero

	for _, d := range discounts {
		var amount decimal.Decimal
		switch d.Scope {
		case ScopeShipping:
			if d.Kind == KindFree {
				// Already applied by zeroing the components.
				continue
			}
			amount = discountAmount(d, shippingLeft)
			shippingLeft = shippingLeft.Sub(amount)
		case ScopeOrder:
			amount = discountAmount(d, orderLeft)
		default:
			continue
		}
		orderLeft = orderLeft.Sub(amount)
		total = total.Add(amount)
	}
	if total.GreaterThan(subtotal) {
		total = subtotal
	}
	return total
}

func discountAmount(d DiscountSpec, base decimal.Decimal) decimal.Decimal {
	if base.IsNegative() {
		return decimal.Zero
	}
	switch d.Kind {
	case KindPercentage:
		pct := d.Value
		if pct.IsNegative() {
			pct = decimal.Zero
		}
		if pct.GreaterThan(hundred) {
			pct = hundred
		}
		return base.Mul(pct).Div(hundred).Round(2)
	case KindFixed:
		amount := d.Value
		if amount.IsNegative() {
			return decimal.Zero
		}
		if amount.GreaterThan(base) {
			return base
		}
		return amount
	default:
		return decimal.Zero
	}
}

func validateRequest(req Request) error {
	var violations []FieldViolation
	if len(req.Items) == 0 {
		violations = append(violations, FieldViolation{Field: "items", Reason: "at least one line item is required"})
	}
	for i, item := range req.Items {
		if item.WeightKg.IsNegative() {
			violations = append(violations, FieldViolation{
				Field:  fmt.Sprintf("items[%d].weightKg", i),
				Reason: "weight must not be negative",
			})
		}
	}
	routeFields := []struct {
		field string
		code  string
	}{
		{field: "route.originCountry", code: req.Route.OriginCountry},
		{field: "route.destinationCountry", code: req.Route.DestinationCountry},
		{field: "route.displayCountry", code: req.Route.DisplayCountry},
	}
	for _, rf := range routeFields {
		if !validCountryCode(rf.code) {
			violations = append(violations, FieldViolation{Field: rf.field, Reason: "must be a two-letter country code"})
		}
	}
	for i, d := range req.Discounts {
		switch d.Scope {
		case ScopeOrder, ScopeShipping:
		default:
			violations = append(violations, FieldViolation{
				Field:  fmt.Sprintf("discounts[%d].scope", i),
				Reason: fmt.Sprintf("unknown scope %q", d.Scope),
			})
		}
		switch d.Kind {
		case KindPercentage, KindFixed:
		case KindFree:
			if d.Scope == ScopeOrder {
				violations = append(violations, FieldViolation{
					Field:  fmt.Sprintf("discounts[%d].kind", i),
					Reason: "free discounts only apply to shipping",
				})
			}
		default:
			violations = append(violations, FieldViolation{
				Field:  fmt.Sprintf("discounts[%d].kind", i),
				Reason: fmt.Sprintf("unknown kind %q", d.Kind),
			})
		}
	}
	if len(violations) == 0 {
		return nil
	}
	return &ValidationError{Violations: violations}
}

func validCountryCode(code string) bool {
	if len(code) != 2 {
		return false
	}
	for _, r := range code {
		if (r < 'A' || r > 'Z') && (r < 'a' || r > 'z') {
			return false
		}
	}
	return true
}
