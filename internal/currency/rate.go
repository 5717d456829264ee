package currency

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// ErrNoSnapshot is returned when no exchange-rate snapshot has been loaded yet.
	ErrNoSnapshot = errors.New("currency: no exchange rate snapshot loaded")
)

// RateNotFoundError indicates that no exchange rate exists for a country.
// It is fatal to a calculation; callers must not substitute a default rate.
type RateNotFoundError struct {
	CountryCode string
}

func (e *RateNotFoundError) Error() string {
	return fmt.Sprintf("currency: no exchange rate for country %q", e.CountryCode)
}

// ExchangeRate is an immutable USD-to-local conversion rate for one country.
type ExchangeRate struct {
	CountryCode  string          `json:"countryCode"`
	CurrencyCode string          `json:"currencyCode"`
	RateFromUSD  decimal.Decimal `json:"rateFromUsd"`
}

// Validate rejects malformed rate rows before they can enter a snapshot.
func (r ExchangeRate) Validate() error {
	if strings.TrimSpace(r.CountryCode) == "" {
		return errors.New("country code is required")
	}
	if strings.TrimSpace(r.CurrencyCode) == "" {
		return fmt.Errorf("currency code is required for country %q", r.CountryCode)
	}
	if !r.RateFromUSD.IsPositive() {
		return fmt.Errorf("rate for country %q must be positive, got %s", r.CountryCode, r.RateFromUSD)
	}
	return nil
}

// Snapshot is an immutable set of exchange rates captured at one instant.
// A calculation holds a single snapshot for its whole duration so that a
// concurrent refresh can never serve it partially updated rates.
type Snapshot struct {
	loadedAt time.Time
	rates    map[string]ExchangeRate
}

// NewSnapshot validates every rate and builds an immutable snapshot.
func NewSnapshot(rates []ExchangeRate, loadedAt time.Time) (*Snapshot, error) {
	byCountry := make(map[string]ExchangeRate, len(rates))
	for _, rate := range rates {
		if err := rate.Validate(); err != nil {
			return nil, fmt.Errorf("currency: invalid exchange rate: %w", err)
		}
		key := normalizeCountry(rate.CountryCode)
		if _, exists := byCountry[key]; exists {
			return nil, fmt.Errorf("currency: duplicate exchange rate for country %q", rate.CountryCode)
		}
		byCountry[key] = rate
	}
	return &Snapshot{loadedAt: loadedAt, rates: byCountry}, nil
}

// Rate returns the exchange rate for a country, if present.
func (s *Snapshot) Rate(countryCode string) (ExchangeRate, bool) {
	if s == nil {
		return ExchangeRate{}, false
	}
	rate, ok := s.rates[normalizeCountry(countryCode)]
	return rate, ok
}

// LoadedAt reports when the snapshot was captured.
func (s *Snapshot) LoadedAt() time.Time {
	if s == nil {
		return time.Time{}
	}
	return s.loadedAt
}

// Len returns the number of rates in the snapshot.
func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.rates)
}

// Store holds the active snapshot. Refreshes swap in a complete new
// snapshot atomically; readers never observe intermediate state.
type Store struct {
	current atomic.Pointer[Snapshot]
}

// Swap installs a new snapshot as the active one.
func (st *Store) Swap(s *Snapshot) {
	st.current.Store(s)
}

// Current returns the active snapshot or ErrNoSnapshot before the first load.
func (st *Store) Current() (*Snapshot, error) {
	s := st.current.Load()
	if s == nil {
		return nil, ErrNoSnapshot
	}
	return s, nil
}

// Source loads exchange rates from an external system (database or feed).
type Source interface {
	LoadRates(ctx context.Context) ([]ExchangeRate, error)
}

func normalizeCountry(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
