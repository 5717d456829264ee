package repo

import (
	"context"
	"fmt"
	"time"
)

// QuoteDailyRow aggregates quote activity for one day.
type QuoteDailyRow struct {
	Day                    time.Time `json:"day"`
	Quotes                 int64     `json:"quotes"`
	MissingClassifications int64     `json:"missingClassifications"`
}

// QuoteDailyRange aggregates emitted quote events per day, inclusive of from
// and exclusive of to.
func (s *Store) QuoteDailyRange(ctx context.Context, from, to time.Time) ([]QuoteDailyRow, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT date_trunc('day', occurred_at) AS day,
		       count(*) FILTER (WHERE topic = 'quote.calculated') AS quotes,
		       count(*) FILTER (WHERE topic = 'classification.missing') AS missing
		FROM domain_events
		WHERE occurred_at >= $1 AND occurred_at < $2
		GROUP BY 1
		ORDER BY 1`,
		from, to)
	if err != nil {
		return nil, fmt.Errorf("repo: quote daily range: %w", err)
	}
	defer rows.Close()

	var out []QuoteDailyRow
	for rows.Next() {
		var row QuoteDailyRow
		if err := rows.Scan(&row.Day, &row.Quotes, &row.MissingClassifications); err != nil {
			return nil, fmt.Errorf("repo: scan quote daily row: %w", err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
