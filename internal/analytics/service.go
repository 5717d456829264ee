package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/backend-pasal/internal/events"
	"github.com/noah-isme/backend-pasal/internal/repo"
)

// Querier defines the database access required for analytics operations.
type Querier interface {
	QuoteDailyRange(ctx context.Context, from, to time.Time) ([]repo.QuoteDailyRow, error)
	CountEventsByTopic(ctx context.Context, topic string, sinceHours int) (int64, error)
	CountPendingReviews(ctx context.Context) (int64, error)
}

// Overview summarises recent quote activity for dashboards.
type Overview struct {
	QuotesLast24h          int64 `json:"quotesLast24h"`
	QuotesLast7d           int64 `json:"quotesLast7d"`
	MissingClassifications int64 `json:"missingClassificationsLast7d"`
	PendingReviews         int64 `json:"pendingReviews"`
}

// Service provides cached access to quote analytics.
type Service struct {
	Q            Querier
	R            *redis.Client
	TTL          time.Duration
	DefaultRange int
	Now          func() time.Time
}

func (s *Service) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func cacheKey(parts ...any) string {
	formatted := make([]string, 0, len(parts))
	for _, part := range parts {
		formatted = append(formatted, fmt.Sprint(part))
	}
	return strings.Join(formatted, ":")
}

// QuoteDaily returns per-day quote counts between the provided bounds,
// inclusive of from and exclusive of to.
func (s *Service) QuoteDaily(ctx context.Context, from, to time.Time) ([]repo.QuoteDailyRow, error) {
	if s == nil || s.Q == nil {
		return nil, fmt.Errorf("analytics service not configured")
	}
	key := cacheKey("an", "quotes", from.Format("2006-01-02"), to.Format("2006-01-02"))
	if rows, ok := s.getDailyFromCache(ctx, key); ok {
		return rows, nil
	}
	rows, err := s.Q.QuoteDailyRange(ctx, from, to)
	if err != nil {
		return nil, err
	}
	s.store(ctx, key, rows)
	return rows, nil
}

// BuildOverview aggregates headline numbers for the dashboard endpoint.
func (s *Service) BuildOverview(ctx context.Context) (Overview, error) {
	if s == nil || s.Q == nil {
		return Overview{}, fmt.Errorf("analytics service not configured")
	}
	key := cacheKey("an", "overview")
	if s.R != nil && s.TTL > 0 {
		if data, err := s.R.Get(ctx, key).Bytes(); err == nil {
			var cached Overview
			if json.Unmarshal(data, &cached) == nil {
				return cached, nil
			}
		}
	}

	var (
		overview Overview
		err      error
	)
	if overview.QuotesLast24h, err = s.Q.CountEventsByTopic(ctx, events.TopicQuoteCalculated, 24); err != nil {
		return Overview{}, err
	}
	if overview.QuotesLast7d, err = s.Q.CountEventsByTopic(ctx, events.TopicQuoteCalculated, 24*7); err != nil {
		return Overview{}, err
	}
	if overview.MissingClassifications, err = s.Q.CountEventsByTopic(ctx, events.TopicClassificationMissing, 24*7); err != nil {
		return Overview{}, err
	}
	if overview.PendingReviews, err = s.Q.CountPendingReviews(ctx); err != nil {
		return Overview{}, err
	}
	s.store(ctx, key, overview)
	return overview, nil
}

func (s *Service) getDailyFromCache(ctx context.Context, key string) ([]repo.QuoteDailyRow, bool) {
	if s.R == nil || s.TTL <= 0 {
		return nil, false
	}
	data, err := s.R.Get(ctx, key).Bytes()
	if err != nil {
		return nil, false
	}
	var rows []repo.QuoteDailyRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, false
	}
	return rows, true
}

func (s *Service) store(ctx context.Context, key string, value any) {
	if s.R == nil || s.TTL <= 0 {
		return
	}
	data, err := json.Marshal(value)
	if err != nil {
		return
	}
	_ = s.R.Set(ctx, key, data, s.TTL).Err()
}
