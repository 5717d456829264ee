package repo

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-pasal/internal/classification"
)

// LoadClassifications implements classification.Source against the
// classification_entries table.
func (s *Store) LoadClassifications(ctx context.Context) ([]classification.Entry, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT code, description, category,
		       minimum_valuation_usd::text, requires_conversion,
		       duty_rate_percent::text, tax_rate_percent::text, confidence
		FROM classification_entries
		ORDER BY code`)
	if err != nil {
		return nil, fmt.Errorf("repo: load classifications: %w", err)
	}
	defer rows.Close()

	var out []classification.Entry
	for rows.Next() {
		var (
			entry   classification.Entry
			minRaw  *string
			dutyRaw string
			taxRaw  string
		)
		if err := rows.Scan(&entry.Code, &entry.Description, &entry.Category,
			&minRaw, &entry.RequiresConversion, &dutyRaw, &taxRaw, &entry.Confidence); err != nil {
			return nil, fmt.Errorf("repo: scan classification: %w", err)
		}
		if entry.DutyRatePercent, err = parseDecimal("duty_rate_percent", dutyRaw); err != nil {
			return nil, err
		}
		if entry.TaxRatePercent, err = parseDecimal("tax_rate_percent", taxRaw); err != nil {
			return nil, err
		}
		if minRaw != nil {
			min, err := parseDecimal("minimum_valuation_usd", *minRaw)
			if err != nil {
				return nil, err
			}
			entry.MinimumValuationUSD = decimal.NewNullDecimal(min)
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}

// UpsertClassification inserts or updates one classification entry.
func (s *Store) UpsertClassification(ctx context.Context, entry classification.Entry) error {
	if err := entry.Validate(); err != nil {
		return err
	}
	var min *string
	if entry.MinimumValuationUSD.Valid {
		v := entry.MinimumValuationUSD.Decimal.String()
		min = &v
	}
	_, err := s.Pool.Exec(ctx, `
		INSERT INTO classification_entries (code, description, category, minimum_valuation_usd,
		                                    requires_conversion, duty_rate_percent, tax_rate_percent,
		                                    confidence, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now())
		ON CONFLICT (code) DO UPDATE
		SET description = EXCLUDED.description,
		    category = EXCLUDED.category,
		    minimum_valuation_usd = EXCLUDED.minimum_valuation_usd,
		    requires_conversion = EXCLUDED.requires_conversion,
		    duty_rate_percent = EXCLUDED.duty_rate_percent,
		    tax_rate_percent = EXCLUDED.tax_rate_percent,
		    confidence = EXCLUDED.confidence,
		    updated_at = now()`,
		strings.ToUpper(strings.TrimSpace(entry.Code)),
		entry.Description,
		entry.Category,
		min,
		entry.RequiresConversion,
		entry.DutyRatePercent.String(),
		entry.TaxRatePercent.String(),
		entry.Confidence,
	)
	if err != nil {
		return fmt.Errorf("repo: upsert classification %s: %w", entry.Code, err)
	}
	return nil
}
