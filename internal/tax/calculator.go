package tax

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-pasal/internal/classification"
	"github.com/noah-isme/backend-pasal/internal/currency"
)

// BasisMethod labels how the taxable basis of a line item was resolved,
// so callers can render "minimum valuation applied" notices.
type BasisMethod string

const (
	// BasisOriginalPrice means the declared price was used without a floor.
	BasisOriginalPrice BasisMethod = "original_price"
	// BasisMinimumValuation means the converted customs floor exceeded the declared price.
	BasisMinimumValuation BasisMethod = "minimum_valuation"
	// BasisHigherOfBoth means the declared price met or beat the converted floor.
	// Ties resolve here: the declared price is the verifiable figure.
	BasisHigherOfBoth BasisMethod = "higher_of_both"
)

// LineItem is one purchased product line as submitted by the caller.
// Prices are in the origin currency of the route.
type LineItem struct {
	ID                 string          `json:"id"`
	Name               string          `json:"name"`
	ClassificationCode string          `json:"classificationCode"`
	DeclaredUnitPrice  decimal.Decimal `json:"declaredUnitPrice"`
	Quantity           int             `json:"quantity"`
	WeightKg           decimal.Decimal `json:"weightKg"`
}

// DeclaredTotal is the declared unit price multiplied by quantity.
func (it LineItem) DeclaredTotal() decimal.Decimal {
	return it.DeclaredUnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity)))
}

// TaxedLineItem is a LineItem with its resolved basis and computed duty/tax,
// all in origin currency.
type TaxedLineItem struct {
	LineItem
	TaxableBasis          decimal.Decimal `json:"taxableBasis"`
	BasisMethod           BasisMethod     `json:"basisMethod"`
	DutyRatePercent       decimal.Decimal `json:"dutyRatePercent"`
	TaxRatePercent        decimal.Decimal `json:"taxRatePercent"`
	DutyAmount            decimal.Decimal `json:"dutyAmount"`
	TaxAmount             decimal.Decimal `json:"taxAmount"`
	ClassificationMissing bool            `json:"classificationMissing"`
	FallbackPolicy        string          `json:"fallbackPolicy,omitempty"`
}

// InvalidLineItemError marks a line item that violates domain constraints.
// It aborts the whole quote; dropping the item would silently skew totals.
type InvalidLineItemError struct {
	ItemID string
	Reason string
}

func (e *InvalidLineItemError) Error() string {
	return fmt.Sprintf("tax: invalid line item %q: %s", e.ItemID, e.Reason)
}

// IsInvalidLineItem reports whether err wraps a line-item constraint failure.
func IsInvalidLineItem(err error) bool {
	var target *InvalidLineItemError
	return errors.As(err, &target)
}

// Registry resolves classification codes to their tax metadata.
type Registry interface {
	Lookup(code string) (classification.Entry, error)
}

// Converter converts USD minimum valuations into the origin currency.
type Converter interface {
	ConvertMinimumValuation(amountUSD decimal.Decimal, countryCode string) (currency.Converted, error)
}

// Calculator computes duty and tax for a single line item.
type Calculator struct {
	Registry  Registry
	Converter Converter
	Fallback  classification.FallbackPolicy
}

// Calculate resolves the taxable basis for one item and computes duty/tax.
// Monetary rounding happens once, on the final duty and tax amounts;
// intermediate basis values are never rounded.
func (c Calculator) Calculate(item LineItem, originCountry string) (TaxedLineItem, error) {
	if c.Registry == nil || c.Converter == nil {
		return TaxedLineItem{}, errors.New("tax: calculator not configured")
	}
	if item.Quantity < 1 {
		return TaxedLineItem{}, &InvalidLineItemError{ItemID: item.ID, Reason: fmt.Sprintf("quantity must be at least 1, got %d", item.Quantity)}
	}
	if item.DeclaredUnitPrice.IsNegative() {
		return TaxedLineItem{}, &InvalidLineItemError{ItemID: item.ID, Reason: fmt.Sprintf("declared unit price must not be negative, got %s", item.DeclaredUnitPrice)}
	}
	if item.WeightKg.IsNegative() {
		return TaxedLineItem{}, &InvalidLineItemError{ItemID: item.ID, Reason: fmt.Sprintf("weight must not be negative, got %s", item.WeightKg)}
	}

	declaredTotal := item.DeclaredTotal()
	result := TaxedLineItem{
		LineItem:     item,
		TaxableBasis: declaredTotal,
		BasisMethod:  BasisOriginalPrice,
	}

	entry, err := c.Registry.Lookup(item.ClassificationCode)
	switch {
	case err == nil:
		result.DutyRatePercent = entry.DutyRatePercent
		result.TaxRatePercent = entry.TaxRatePercent
	case classification.IsNotFound(err):
		// A registry gap is common and must not block quoting. The item
		// proceeds under the named fallback policy and is flagged for review.
		result.ClassificationMissing = true
		result.FallbackPolicy = c.Fallback.Name
		result.DutyRatePercent = c.Fallback.DutyRatePercent
		result.TaxRatePercent = c.Fallback.TaxRatePercent
	default:
		return TaxedLineItem{}, err
	}

	if !result.ClassificationMissing && entry.HasMinimumValuation() && entry.RequiresConversion {
		converted, err := c.Converter.ConvertMinimumValuation(entry.MinimumValuationUSD.Decimal, originCountry)
		if err != nil {
			return TaxedLineItem{}, err
		}
		if declaredTotal.GreaterThanOrEqual(converted.Amount) {
			result.TaxableBasis = declaredTotal
			result.BasisMethod = BasisHigherOfBoth
		} else {
			result.TaxableBasis = converted.Amount
			result.BasisMethod = BasisMinimumValuation
		}
	}

	result.DutyAmount = Round2(result.TaxableBasis.Mul(result.DutyRatePercent).Div(decimal.NewFromInt(100)))
	result.TaxAmount = Round2(result.TaxableBasis.Mul(result.TaxRatePercent).Div(decimal.NewFromInt(100)))
	return result, nil
}

// Round2 applies monetary rounding to two decimal places, half away from zero.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// Describe renders a short human-readable label for a basis method.
func (m BasisMethod) Describe() string {
	switch m {
	case BasisMinimumValuation:
		return "minimum valuation applied"
	case BasisHigherOfBoth:
		return "declared price met customs floor"
	case BasisOriginalPrice:
		return "declared price"
	default:
		return strings.ReplaceAll(string(m), "_", " ")
	}
}
