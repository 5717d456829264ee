package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ErrReviewNotFound is returned when a review row does not exist.
var ErrReviewNotFound = errors.New("repo: classification review not found")

// Review statuses.
const (
	ReviewStatusPending  = "pending"
	ReviewStatusResolved = "resolved"
)

// ClassificationReview is one pending or resolved operator review of a code
// that was priced under the fallback policy.
type ClassificationReview struct {
	ID         uuid.UUID  `json:"id"`
	QuoteID    uuid.UUID  `json:"quoteId"`
	Code       string     `json:"code"`
	Status     string     `json:"status"`
	CreatedAt  time.Time  `json:"createdAt"`
	ResolvedAt *time.Time `json:"resolvedAt,omitempty"`
}

// InsertReview records a classification code for operator review. Repeat
// sightings of the same code on the same quote collapse into one row.
func (s *Store) InsertReview(ctx context.Context, quoteID uuid.UUID, code string) (ClassificationReview, error) {
	row := s.Pool.QueryRow(ctx, `
		INSERT INTO classification_reviews (quote_id, code)
		VALUES ($1, $2)
		ON CONFLICT (quote_id, code) DO UPDATE SET code = EXCLUDED.code
		RETURNING id, quote_id, code, status, created_at, resolved_at`,
		quoteID, code)
	return scanReview(row)
}

// ListPendingReviews returns pending reviews, newest first.
func (s *Store) ListPendingReviews(ctx context.Context, limit, offset int32) ([]ClassificationReview, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT id, quote_id, code, status, created_at, resolved_at
		FROM classification_reviews
		WHERE status = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`,
		ReviewStatusPending, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("repo: list pending reviews: %w", err)
	}
	defer rows.Close()

	var out []ClassificationReview
	for rows.Next() {
		review, err := scanReview(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, review)
	}
	return out, rows.Err()
}

// CountPendingReviews returns the number of open reviews.
func (s *Store) CountPendingReviews(ctx context.Context) (int64, error) {
	var n int64
	err := s.Pool.QueryRow(ctx, `
		SELECT count(*) FROM classification_reviews WHERE status = $1`,
		ReviewStatusPending).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("repo: count pending reviews: %w", err)
	}
	return n, nil
}

// ResolveReview marks one review as resolved.
func (s *Store) ResolveReview(ctx context.Context, id uuid.UUID) (ClassificationReview, error) {
	row := s.Pool.QueryRow(ctx, `
		UPDATE classification_reviews
		SET status = $2, resolved_at = now()
		WHERE id = $1
		RETURNING id, quote_id, code, status, created_at, resolved_at`,
		id, ReviewStatusResolved)
	review, err := scanReview(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return ClassificationReview{}, ErrReviewNotFound
	}
	return review, err
}

func scanReview(row pgx.Row) (ClassificationReview, error) {
	var review ClassificationReview
	err := row.Scan(&review.ID, &review.QuoteID, &review.Code, &review.Status,
		&review.CreatedAt, &review.ResolvedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ClassificationReview{}, err
	}
	if err != nil {
		return ClassificationReview{}, fmt.Errorf("repo: scan review: %w", err)
	}
	return review, nil
}
