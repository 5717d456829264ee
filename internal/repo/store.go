package repo

import (
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// Store bundles all Postgres-backed repositories over one connection pool.
type Store struct {
	Pool *pgxpool.Pool
}

// NewStore constructs a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{Pool: pool}
}

// parseDecimal converts a numeric column scanned as text.
func parseDecimal(column, raw string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("repo: parse %s %q: %w", column, raw, err)
	}
	return d, nil
}
