package classification

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Entry is the tax metadata attached to one customs classification code.
// Rows are validated when a snapshot is built; a malformed row rejects the
// whole load instead of propagating unset fields into calculations.
type Entry struct {
	Code                string              `json:"code"`
	Description         string              `json:"description"`
	Category            string              `json:"category"`
	MinimumValuationUSD decimal.NullDecimal `json:"minimumValuationUsd"`
	RequiresConversion  bool                `json:"requiresConversion"`
	DutyRatePercent     decimal.Decimal     `json:"dutyRatePercent"`
	TaxRatePercent      decimal.Decimal     `json:"taxRatePercent"`
	Confidence          float64             `json:"classificationConfidence"`
}

// Validate rejects malformed registry rows.
func (e Entry) Validate() error {
	if strings.TrimSpace(e.Code) == "" {
		return errors.New("classification code is required")
	}
	if e.DutyRatePercent.IsNegative() {
		return fmt.Errorf("duty rate for %q must not be negative, got %s", e.Code, e.DutyRatePercent)
	}
	if e.TaxRatePercent.IsNegative() {
		return fmt.Errorf("tax rate for %q must not be negative, got %s", e.Code, e.TaxRatePercent)
	}
	if e.MinimumValuationUSD.Valid && e.MinimumValuationUSD.Decimal.IsNegative() {
		return fmt.Errorf("minimum valuation for %q must not be negative, got %s", e.Code, e.MinimumValuationUSD.Decimal)
	}
	if e.Confidence < 0 || e.Confidence > 1 {
		return fmt.Errorf("confidence for %q must be within [0,1], got %f", e.Code, e.Confidence)
	}
	return nil
}

// HasMinimumValuation reports whether an anti-undervaluation floor applies.
func (e Entry) HasMinimumValuation() bool {
	return e.MinimumValuationUSD.Valid
}
