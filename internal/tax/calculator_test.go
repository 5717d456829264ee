package tax

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-pasal/internal/classification"
	"github.com/noah-isme/backend-pasal/internal/currency"
)

func newCalculator(t *testing.T, entries []classification.Entry) Calculator {
	t.Helper()
	registry, err := classification.NewSnapshot(entries, time.Now())
	if err != nil {
		t.Fatalf("build registry: %v", err)
	}
	rates, err := currency.NewSnapshot([]currency.ExchangeRate{
		{CountryCode: "NP", CurrencyCode: "NPR", RateFromUSD: decimal.RequireFromString("133.0")},
	}, time.Now())
	if err != nil {
		t.Fatalf("build rates: %v", err)
	}
	converter, err := currency.NewConverter(rates)
	if err != nil {
		t.Fatalf("build converter: %v", err)
	}
	return Calculator{
		Registry:  registry,
		Converter: converter,
		Fallback: classification.FallbackPolicy{
			Name:            "vat-regime-default",
			DutyRatePercent: decimal.NewFromInt(10),
			TaxRatePercent:  decimal.NewFromInt(13),
			ReviewBy:        time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC),
		},
	}
}

func kurtaEntry() classification.Entry {
	return classification.Entry{
		Code:                "6204",
		Description:         "Kurtas and similar apparel",
		Category:            "apparel",
		MinimumValuationUSD: decimal.NewNullDecimal(decimal.NewFromInt(10)),
		RequiresConversion:  true,
		DutyRatePercent:     decimal.NewFromInt(12),
		TaxRatePercent:      decimal.NewFromInt(13),
		Confidence:          0.9,
	}
}

func bookEntry() classification.Entry {
	return classification.Entry{
		Code:            "4901",
		Description:     "Printed books",
		Category:        "books",
		DutyRatePercent: decimal.Zero,
		TaxRatePercent:  decimal.Zero,
		Confidence:      1,
	}
}

func TestLowPriceKurtaUsesMinimumValuation(t *testing.T) {
	calc := newCalculator(t, []classification.Entry{kurtaEntry()})
	item := LineItem{ID: "i1", Name: "kurta", ClassificationCode: "6204", DeclaredUnitPrice: decimal.NewFromInt(500), Quantity: 1}
	taxed, err := calc.Calculate(item, "NP")
	if err != nil {
		t.Fatalf("calculate: %v", err)
	}
	// $10 at 133.0 converts to 1330, above the declared 500.
	if taxed.TaxableBasis.String() != "1330" {
		t.Fatalf("expected basis 1330, got %s", taxed.TaxableBasis)
	}
	if taxed.BasisMethod != BasisMinimumValuation {
		t.Fatalf("expected minimum_valuation, got %s", taxed.BasisMethod)
	}
	if taxed.DutyAmount.String() != "159.6" {
		t.Fatalf("expected duty 159.6, got %s", taxed.DutyAmount)
	}
}

func TestHighPriceKurtaUsesDeclaredPrice(t *testing.T) {
	calc := newCalculator(t, []classification.Entry{kurtaEntry()})
	item := LineItem{ID: "i1", Name: "kurta", ClassificationCode: "6204", DeclaredUnitPrice: decimal.NewFromInt(2000), Quantity: 1}
	taxed, err := calc.Calculate(item, "NP")
	if err != nil {
		t.Fatalf("calculate: %v", err)
	}
	if taxed.TaxableBasis.String() != "2000" {
		t.Fatalf("expected basis 2000, got %s", taxed.TaxableBasis)
	}
	if taxed.BasisMethod != BasisHigherOfBoth {
		t.Fatalf("expected higher_of_both, got %s", taxed.BasisMethod)
	}
	if taxed.DutyAmount.String() != "240" {
		t.Fatalf("expected duty 240, got %s", taxed.DutyAmount)
	}
}

func TestTieResolvesToHigherOfBoth(t *testing.T) {
	calc := newCalculator(t, []classification.Entry{kurtaEntry()})
	// Declared total exactly equals the converted minimum of 1330.
	item := LineItem{ID: "i1", ClassificationCode: "6204", DeclaredUnitPrice: decimal.NewFromInt(1330), Quantity: 1}
	taxed, err := calc.Calculate(item, "NP")
	if err != nil {
		t.Fatalf("calculate: %v", err)
	}
	if taxed.BasisMethod != BasisHigherOfBoth {
		t.Fatalf("tie must resolve to higher_of_both, got %s", taxed.BasisMethod)
	}
}

func TestQuantityScalesDeclaredTotal(t *testing.T) {
	calc := newCalculator(t, []classification.Entry{kurtaEntry()})
	// Three units at 500 beat the converted floor of 1330.
	item := LineItem{ID: "i1", ClassificationCode: "6204", DeclaredUnitPrice: decimal.NewFromInt(500), Quantity: 3}
	taxed, err := calc.Calculate(item, "NP")
	if err != nil {
		t.Fatalf("calculate: %v", err)
	}
	if taxed.TaxableBasis.String() != "1500" {
		t.Fatalf("expected basis 1500, got %s", taxed.TaxableBasis)
	}
	if taxed.BasisMethod != BasisHigherOfBoth {
		t.Fatalf("expected higher_of_both, got %s", taxed.BasisMethod)
	}
}

func TestBookWithoutMinimumIsPassthrough(t *testing.T) {
	calc := newCalculator(t, []classification.Entry{bookEntry()})
	item := LineItem{ID: "i1", Name: "novel", ClassificationCode: "4901", DeclaredUnitPrice: decimal.NewFromInt(3), Quantity: 1}
	taxed, err := calc.Calculate(item, "NP")
	if err != nil {
		t.Fatalf("calculate: %v", err)
	}
	if taxed.BasisMethod != BasisOriginalPrice {
		t.Fatalf("expected original_price, got %s", taxed.BasisMethod)
	}
	if taxed.TaxableBasis.String() != "3" {
		t.Fatalf("expected basis 3, got %s", taxed.TaxableBasis)
	}
	if !taxed.DutyAmount.IsZero() || !taxed.TaxAmount.IsZero() {
		t.Fatalf("expected zero duty and tax, got %s / %s", taxed.DutyAmount, taxed.TaxAmount)
	}
}

func TestConversionNotRequiredSkipsFloor(t *testing.T) {
	entry := kurtaEntry()
	entry.RequiresConversion = false
	calc := newCalculator(t, []classification.Entry{entry})
	item := LineItem{ID: "i1", ClassificationCode: "6204", DeclaredUnitPrice: decimal.NewFromInt(500), Quantity: 1}
	taxed, err := calc.Calculate(item, "NP")
	if err != nil {
		t.Fatalf("calculate: %v", err)
	}
	if taxed.BasisMethod != BasisOriginalPrice {
		t.Fatalf("expected original_price, got %s", taxed.BasisMethod)
	}
	if taxed.TaxableBasis.String() != "500" {
		t.Fatalf("expected basis 500, got %s", taxed.TaxableBasis)
	}
}

func TestMissingClassificationUsesFallback(t *testing.T) {
	calc := newCalculator(t, []classification.Entry{kurtaEntry()})
	item := LineItem{ID: "i1", ClassificationCode: "0000", DeclaredUnitPrice: decimal.NewFromInt(100), Quantity: 2}
	taxed, err := calc.Calculate(item, "NP")
	if err != nil {
		t.Fatalf("missing classification must not abort: %v", err)
	}
	if !taxed.ClassificationMissing {
		t.Fatal("expected classificationMissing flag")
	}
	if taxed.FallbackPolicy != "vat-regime-default" {
		t.Fatalf("expected fallback policy name, got %q", taxed.FallbackPolicy)
	}
	if taxed.DutyAmount.String() != "20" {
		t.Fatalf("expected fallback duty 20, got %s", taxed.DutyAmount)
	}
	if taxed.TaxAmount.String() != "26" {
		t.Fatalf("expected fallback tax 26, got %s", taxed.TaxAmount)
	}
}

func TestInvalidItemsAbort(t *testing.T) {
	calc := newCalculator(t, []classification.Entry{kurtaEntry()})
	cases := []LineItem{
		{ID: "neg-price", ClassificationCode: "6204", DeclaredUnitPrice: decimal.NewFromInt(-1), Quantity: 1},
		{ID: "zero-qty", ClassificationCode: "6204", DeclaredUnitPrice: decimal.NewFromInt(10), Quantity: 0},
		{ID: "neg-weight", ClassificationCode: "6204", DeclaredUnitPrice: decimal.NewFromInt(10), Quantity: 1, WeightKg: decimal.NewFromInt(-2)},
	}
	for _, item := range cases {
		if _, err := calc.Calculate(item, "NP"); !IsInvalidLineItem(err) {
			t.Fatalf("item %s: expected InvalidLineItemError, got %v", item.ID, err)
		}
	}
}

func TestMissingRatePropagatesAsFatal(t *testing.T) {
	calc := newCalculator(t, []classification.Entry{kurtaEntry()})
	item := LineItem{ID: "i1", ClassificationCode: "6204", DeclaredUnitPrice: decimal.NewFromInt(500), Quantity: 1}
	if _, err := calc.Calculate(item, "ZZ"); !currency.IsRateNotFound(err) {
		t.Fatalf("expected RateNotFoundError, got %v", err)
	}
}

func TestRoundingIsHalfUpAtTwoPlaces(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "8.875", want: "8.88"},
		{in: "8.874", want: "8.87"},
		{in: "19.998", want: "20"},
		{in: "159.605", want: "159.61"},
	}
	for _, tc := range tests {
		got := Round2(decimal.RequireFromString(tc.in))
		if got.String() != tc.want {
			t.Fatalf("round2(%s): expected %s, got %s", tc.in, tc.want, got)
		}
	}
}
