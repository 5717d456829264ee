package gateway

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	// ErrNotConfigured is returned when a fee is requested for a gateway
	// absent from the schedule. Unconfigured gateways are not assumed
	// available; the old behaviour of silently treating them as configured
	// hid broken fee setups from operators.
	ErrNotConfigured = errors.New("gateway: not configured")
	// ErrDisabled is returned when the gateway exists but is switched off.
	ErrDisabled = errors.New("gateway: disabled")
)

// Config describes one payment gateway's fee terms.
type Config struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	FeePercent decimal.Decimal `json:"feePercent"`
	FeeFixed   decimal.Decimal `json:"feeFixed"`
	Enabled    bool            `json:"enabled"`
}

// Validate rejects unusable gateway configuration at load time.
func (c Config) Validate() error {
	if strings.TrimSpace(c.ID) == "" {
		return errors.New("gateway id is required")
	}
	if c.FeePercent.IsNegative() || c.FeePercent.GreaterThan(decimal.NewFromInt(100)) {
		return fmt.Errorf("gateway %q fee percent must be within [0,100], got %s", c.ID, c.FeePercent)
	}
	if c.FeeFixed.IsNegative() {
		return fmt.Errorf("gateway %q fixed fee must not be negative, got %s", c.ID, c.FeeFixed)
	}
	return nil
}

// Schedule is a validated, immutable fee schedule keyed by gateway id.
type Schedule struct {
	byID map[string]Config
}

// NewSchedule validates every gateway config and builds the schedule.
func NewSchedule(configs []Config) (*Schedule, error) {
	byID := make(map[string]Config, len(configs))
	for _, cfg := range configs {
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("gateway: invalid config: %w", err)
		}
		key := normalizeID(cfg.ID)
		if _, exists := byID[key]; exists {
			return nil, fmt.Errorf("gateway: duplicate config for %q", cfg.ID)
		}
		byID[key] = cfg
	}
	return &Schedule{byID: byID}, nil
}

// Lookup returns the configuration for a gateway id.
func (s *Schedule) Lookup(id string) (Config, error) {
	if s == nil {
		return Config{}, ErrNotConfigured
	}
	cfg, ok := s.byID[normalizeID(id)]
	if !ok {
		return Config{}, fmt.Errorf("%w: %q", ErrNotConfigured, id)
	}
	if !cfg.Enabled {
		return Config{}, fmt.Errorf("%w: %q", ErrDisabled, id)
	}
	return cfg, nil
}

// Fee computes the gateway charge for the given post-discount amount,
// rounded to two decimal places.
func (s *Schedule) Fee(id string, amount decimal.Decimal) (decimal.Decimal, error) {
	cfg, err := s.Lookup(id)
	if err != nil {
		return decimal.Zero, err
	}
	if amount.IsNegative() {
		return decimal.Zero, fmt.Errorf("gateway: fee amount must not be negative, got %s", amount)
	}
	fee := amount.Mul(cfg.FeePercent).Div(decimal.NewFromInt(100)).Add(cfg.FeeFixed)
	return fee.Round(2), nil
}

func normalizeID(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}
