package repo

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/noah-isme/backend-pasal/internal/currency"
	"github.com/noah-isme/backend-pasal/internal/gateway"
	"github.com/noah-isme/backend-pasal/internal/rates"
)

// LoadRates implements currency.Source against the exchange_rates table.
func (s *Store) LoadRates(ctx context.Context) ([]currency.ExchangeRate, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT country_code, currency_code, rate_from_usd::text
		FROM exchange_rates
		ORDER BY country_code`)
	if err != nil {
		return nil, fmt.Errorf("repo: load exchange rates: %w", err)
	}
	defer rows.Close()

	var out []currency.ExchangeRate
	for rows.Next() {
		var (
			rate    currency.ExchangeRate
			rateRaw string
		)
		if err := rows.Scan(&rate.CountryCode, &rate.CurrencyCode, &rateRaw); err != nil {
			return nil, fmt.Errorf("repo: scan exchange rate: %w", err)
		}
		if rate.RateFromUSD, err = parseDecimal("rate_from_usd", rateRaw); err != nil {
			return nil, err
		}
		out = append(out, rate)
	}
	return out, rows.Err()
}

// UpsertExchangeRate inserts or updates one exchange rate row.
func (s *Store) UpsertExchangeRate(ctx context.Context, rate currency.ExchangeRate) error {
	if err := rate.Validate(); err != nil {
		return err
	}
	_, err := s.Pool.Exec(ctx, `
		INSERT INTO exchange_rates (country_code, currency_code, rate_from_usd, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (country_code) DO UPDATE
		SET currency_code = EXCLUDED.currency_code,
		    rate_from_usd = EXCLUDED.rate_from_usd,
		    updated_at = now()`,
		strings.ToUpper(strings.TrimSpace(rate.CountryCode)),
		strings.ToUpper(strings.TrimSpace(rate.CurrencyCode)),
		rate.RateFromUSD.String(),
	)
	if err != nil {
		return fmt.Errorf("repo: upsert exchange rate %s: %w", rate.CountryCode, err)
	}
	return nil
}

// GetRouteRates implements rates.RouteSource against the shipping_routes table.
func (s *Store) GetRouteRates(ctx context.Context, originCountry, destinationCountry string) (rates.RouteRates, error) {
	row := s.Pool.QueryRow(ctx, `
		SELECT origin_country, destination_country,
		       merchant_amount::text, international_base::text, international_per_kg::text,
		       domestic_amount::text, handling_amount::text
		FROM shipping_routes
		WHERE origin_country = $1 AND destination_country = $2`,
		strings.ToUpper(strings.TrimSpace(originCountry)),
		strings.ToUpper(strings.TrimSpace(destinationCountry)),
	)
	var (
		out                                            rates.RouteRates
		merchant, intlBase, intlPerKg, domestic, handl string
	)
	err := row.Scan(&out.OriginCountry, &out.DestinationCountry, &merchant, &intlBase, &intlPerKg, &domestic, &handl)
	if errors.Is(err, pgx.ErrNoRows) {
		return rates.RouteRates{}, rates.ErrRouteNotFound
	}
	if err != nil {
		return rates.RouteRates{}, fmt.Errorf("repo: get route rates %s->%s: %w", originCountry, destinationCountry, err)
	}
	if out.MerchantAmount, err = parseDecimal("merchant_amount", merchant); err != nil {
		return rates.RouteRates{}, err
	}
	if out.InternationalBase, err = parseDecimal("international_base", intlBase); err != nil {
		return rates.RouteRates{}, err
	}
	if out.InternationalPerKg, err = parseDecimal("international_per_kg", intlPerKg); err != nil {
		return rates.RouteRates{}, err
	}
	if out.DomesticAmount, err = parseDecimal("domestic_amount", domestic); err != nil {
		return rates.RouteRates{}, err
	}
	if out.HandlingAmount, err = parseDecimal("handling_amount", handl); err != nil {
		return rates.RouteRates{}, err
	}
	return out, nil
}

// UpsertRouteRates inserts or updates one shipping route row.
func (s *Store) UpsertRouteRates(ctx context.Context, row rates.RouteRates) error {
	_, err := s.Pool.Exec(ctx, `
		INSERT INTO shipping_routes (origin_country, destination_country, merchant_amount,
		                             international_base, international_per_kg, domestic_amount,
		                             handling_amount, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now())
		ON CONFLICT (origin_country, destination_country) DO UPDATE
		SET merchant_amount = EXCLUDED.merchant_amount,
		    international_base = EXCLUDED.international_base,
		    international_per_kg = EXCLUDED.international_per_kg,
		    domestic_amount = EXCLUDED.domestic_amount,
		    handling_amount = EXCLUDED.handling_amount,
		    updated_at = now()`,
		strings.ToUpper(strings.TrimSpace(row.OriginCountry)),
		strings.ToUpper(strings.TrimSpace(row.DestinationCountry)),
		row.MerchantAmount.String(),
		row.InternationalBase.String(),
		row.InternationalPerKg.String(),
		row.DomesticAmount.String(),
		row.HandlingAmount.String(),
	)
	if err != nil {
		return fmt.Errorf("repo: upsert route %s->%s: %w", row.OriginCountry, row.DestinationCountry, err)
	}
	return nil
}

// ListGateways loads the payment gateway fee schedule.
func (s *Store) ListGateways(ctx context.Context) ([]gateway.Config, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT id, name, fee_percent::text, fee_fixed::text, enabled
		FROM payment_gateways
		ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("repo: list gateways: %w", err)
	}
	defer rows.Close()

	var out []gateway.Config
	for rows.Next() {
		var (
			cfg            gateway.Config
			percent, fixed string
		)
		if err := rows.Scan(&cfg.ID, &cfg.Name, &percent, &fixed, &cfg.Enabled); err != nil {
			return nil, fmt.Errorf("repo: scan gateway: %w", err)
		}
		if cfg.FeePercent, err = parseDecimal("fee_percent", percent); err != nil {
			return nil, err
		}
		if cfg.FeeFixed, err = parseDecimal("fee_fixed", fixed); err != nil {
			return nil, err
		}
		out = append(out, cfg)
	}
	return out, rows.Err()
}
