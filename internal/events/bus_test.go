package events_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-pasal/internal/events"
)

type stubStore struct {
	lastTopic   string
	lastPayload []byte
}

func (s *stubStore) InsertEvent(_ context.Context, topic string, aggregateID uuid.UUID, payload []byte) (events.Event, error) {
	s.lastTopic = topic
	s.lastPayload = payload
	return events.Event{
		ID:          uuid.New(),
		Topic:       topic,
		AggregateID: aggregateID,
		Payload:     payload,
		OccurredAt:  time.Now(),
	}, nil
}

type captureNotifier struct {
	events []events.Event
}

func (c *captureNotifier) Notify(_ context.Context, event events.Event) error {
	c.events = append(c.events, event)
	return nil
}

func TestEmitPersistsEvent(t *testing.T) {
	store := &stubStore{}
	notifier := &captureNotifier{}
	bus := events.Bus{
		Store:     store,
		Notifiers: []events.Notifier{notifier},
	}

	aggregate := uuid.New()
	payload := map[string]any{"quoteId": "123"}
	event, err := bus.Emit(context.Background(), events.TopicQuoteCalculated, aggregate, payload)
	require.NoError(t, err)
	require.Equal(t, events.TopicQuoteCalculated, store.lastTopic)
	require.JSONEq(t, `{"quoteId":"123"}`, string(store.lastPayload))
	require.Len(t, notifier.events, 1)
	require.Equal(t, event.ID, notifier.events[0].ID)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(event.Payload, &decoded))
	require.Equal(t, "123", decoded["quoteId"])
}

func TestEmitRejectsBadInput(t *testing.T) {
	bus := events.Bus{Store: &stubStore{}}

	_, err := bus.Emit(context.Background(), "", uuid.New(), nil)
	require.Error(t, err)

	_, err = bus.Emit(context.Background(), events.TopicQuoteCalculated, uuid.Nil, nil)
	require.Error(t, err)

	_, err = bus.Emit(context.Background(), events.TopicQuoteCalculated, uuid.New(), json.RawMessage(`{broken`))
	require.Error(t, err)
}

func TestEmitDefaultsEmptyPayload(t *testing.T) {
	store := &stubStore{}
	bus := events.Bus{Store: store}

	_, err := bus.Emit(context.Background(), events.TopicRatesRefreshed, uuid.New(), nil)
	require.NoError(t, err)
	require.JSONEq(t, `{}`, string(store.lastPayload))
}
