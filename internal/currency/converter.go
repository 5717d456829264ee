package currency

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Converted is the result of converting a USD amount into a local currency.
type Converted struct {
	Amount       decimal.Decimal
	CurrencyCode string
}

// Converter converts USD-denominated minimum valuations into a country's
// local currency against one fixed rate snapshot. It is side-effect free
// with respect to shared state; construct one per calculation request.
type Converter struct {
	snapshot *Snapshot
	memo     map[string]Converted
}

// NewConverter builds a converter bound to the given snapshot.
func NewConverter(snapshot *Snapshot) (*Converter, error) {
	if snapshot == nil {
		return nil, ErrNoSnapshot
	}
	return &Converter{snapshot: snapshot, memo: map[string]Converted{}}, nil
}

// ConvertMinimumValuation converts amountUSD into the local currency of the
// given country. Rounding is always upward to the next whole unit: a minimum
// valuation that rounded down would defeat its anti-undervaluation purpose.
func (c *Converter) ConvertMinimumValuation(amountUSD decimal.Decimal, countryCode string) (Converted, error) {
	if c == nil || c.snapshot == nil {
		return Converted{}, ErrNoSnapshot
	}
	if amountUSD.IsNegative() {
		return Converted{}, fmt.Errorf("currency: amount must not be negative, got %s", amountUSD)
	}
	key := amountUSD.String() + "|" + normalizeCountry(countryCode)
	if cached, ok := c.memo[key]; ok {
		return cached, nil
	}
	rate, ok := c.snapshot.Rate(countryCode)
	if !ok {
		return Converted{}, &RateNotFoundError{CountryCode: countryCode}
	}
	result := Converted{
		Amount:       amountUSD.Mul(rate.RateFromUSD).Ceil(),
		CurrencyCode: rate.CurrencyCode,
	}
	c.memo[key] = result
	return result, nil
}

// IsRateNotFound reports whether err wraps a missing-rate failure.
func IsRateNotFound(err error) bool {
	var target *RateNotFoundError
	return errors.As(err, &target)
}
