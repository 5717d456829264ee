package classification

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// FallbackPolicy is the named rate set applied to items whose classification
// code is missing from the registry. It replaces silently hard-coded
// "temporary" defaults: the policy carries a name and a review date so that
// an override left in place past its review window is visible and countable.
type FallbackPolicy struct {
	Name            string
	DutyRatePercent decimal.Decimal
	TaxRatePercent  decimal.Decimal
	ReviewBy        time.Time
}

// Validate rejects unusable fallback configuration at startup.
func (p FallbackPolicy) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return errors.New("fallback policy name is required")
	}
	if p.DutyRatePercent.IsNegative() {
		return fmt.Errorf("fallback duty rate must not be negative, got %s", p.DutyRatePercent)
	}
	if p.TaxRatePercent.IsNegative() {
		return fmt.Errorf("fallback tax rate must not be negative, got %s", p.TaxRatePercent)
	}
	if p.ReviewBy.IsZero() {
		return errors.New("fallback policy review date is required")
	}
	return nil
}

// Expired reports whether the policy is past its review date. Expired
// policies still apply, because quoting must not stop on a stale override,
// but callers log and count their use.
func (p FallbackPolicy) Expired(now time.Time) bool {
	return now.After(p.ReviewBy)
}
