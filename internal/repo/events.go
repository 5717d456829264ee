package repo

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/noah-isme/backend-pasal/internal/events"
)

// InsertEvent implements events.EventStore against the domain_events table.
func (s *Store) InsertEvent(ctx context.Context, topic string, aggregateID uuid.UUID, payload []byte) (events.Event, error) {
	row := s.Pool.QueryRow(ctx, `
		INSERT INTO domain_events (topic, aggregate_id, payload)
		VALUES ($1, $2, $3)
		RETURNING id, topic, aggregate_id, payload, occurred_at`,
		topic, aggregateID, payload)

	var ev events.Event
	if err := row.Scan(&ev.ID, &ev.Topic, &ev.AggregateID, &ev.Payload, &ev.OccurredAt); err != nil {
		return events.Event{}, fmt.Errorf("repo: insert domain event: %w", err)
	}
	return ev, nil
}

// CountEventsByTopic returns how many events of a topic occurred in a window,
// for the analytics endpoints.
func (s *Store) CountEventsByTopic(ctx context.Context, topic string, sinceHours int) (int64, error) {
	row := s.Pool.QueryRow(ctx, `
		SELECT count(*) FROM domain_events
		WHERE topic = $1 AND occurred_at >= now() - make_interval(hours => $2)`,
		topic, sinceHours)
	var n int64
	if err := row.Scan(&n); err != nil {
		return 0, fmt.Errorf("repo: count events %s: %w", topic, err)
	}
	return n, nil
}
