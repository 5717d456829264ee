package quote

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-pasal/internal/rates"
	"github.com/noah-isme/backend-pasal/internal/tax"
)

// DiscountScope selects what part of the quote a discount applies to.
type DiscountScope string

// DiscountKind selects how a discount value is interpreted.
type DiscountKind string

const (
	// ScopeOrder applies the discount to the pre-fee subtotal.
	ScopeOrder DiscountScope = "order"
	// ScopeShipping applies the discount to the shipping components only.
	ScopeShipping DiscountScope = "shipping"

	// KindPercentage interprets Value as a percentage, clamped to [0,100].
	KindPercentage DiscountKind = "percentage"
	// KindFixed interprets Value as a fixed amount, clamped to what it discounts.
	KindFixed DiscountKind = "fixed"
	// KindFree zeroes the discounted amount entirely (shipping scope only).
	KindFree DiscountKind = "free"
)

// DiscountSpec is one discount applied once per quote, never per item.
// Discounts granted by the platform do not reduce dutiable value, so they
// are always applied after duty and tax have been computed.
type DiscountSpec struct {
	Scope DiscountScope   `json:"scope"`
	Kind  DiscountKind    `json:"kind"`
	Value decimal.Decimal `json:"value"`
	Code  string          `json:"code,omitempty"`
}

// RouteParams carries the countries that select rates for a calculation.
type RouteParams struct {
	OriginCountry      string `json:"originCountry" validate:"required,len=2,alpha"`
	DestinationCountry string `json:"destinationCountry" validate:"required,len=2,alpha"`
	DisplayCountry     string `json:"displayCountry" validate:"required,len=2,alpha"`
}

// Options toggles optional cost components of a quote.
type Options struct {
	InsuranceEnabled bool   `json:"insuranceEnabled"`
	Gateway          string `json:"gateway,omitempty"`
}

// Request is the full input of one quote calculation.
type Request struct {
	Items     []tax.LineItem `json:"items" validate:"required,min=1"`
	Route     RouteParams    `json:"route"`
	Discounts []DiscountSpec `json:"discounts,omitempty"`
	Options   Options        `json:"options"`
}

// Breakdown is the complete priced result of a quote calculation. It is a
// pure function of the request plus the rate/registry snapshots; recomputing
// with identical inputs yields an identical breakdown.
type Breakdown struct {
	Items []tax.TaxedLineItem `json:"items"`

	ItemsSubtotal   decimal.Decimal    `json:"itemsSubtotal"`
	TotalDuty       decimal.Decimal    `json:"totalDuty"`
	TotalTax        decimal.Decimal    `json:"totalTax"`
	Shipping        rates.ShippingLegs `json:"shipping"`
	HandlingCharge  decimal.Decimal    `json:"handlingCharge"`
	InsuranceAmount decimal.Decimal    `json:"insuranceAmount"`

	Subtotal          decimal.Decimal `json:"subtotal"`
	DiscountAmount    decimal.Decimal `json:"discountAmount"`
	PaymentGatewayFee decimal.Decimal `json:"paymentGatewayFee"`
	FinalTotal        decimal.Decimal `json:"finalTotal"`

	OriginCurrency          string          `json:"originCurrency"`
	CustomerDisplayCurrency string          `json:"customerDisplayCurrency"`
	ExchangeRateUsed        decimal.Decimal `json:"exchangeRateUsed"`
	DisplayTotal            decimal.Decimal `json:"displayTotal"`

	RateSnapshotAt time.Time `json:"rateSnapshotAt"`
}

// MissingClassifications lists the codes of items priced under the fallback
// policy, for review enqueueing and caller-side notices.
func (b Breakdown) MissingClassifications() []string {
	var codes []string
	for _, item := range b.Items {
		if item.ClassificationMissing {
			codes = append(codes, item.ClassificationCode)
		}
	}
	return codes
}
