package quote

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	validator "github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-pasal/internal/currency"
	"github.com/noah-isme/backend-pasal/internal/events"
	"github.com/noah-isme/backend-pasal/internal/obs"
)

type memoryEventStore struct {
	topics []string
}

func (s *memoryEventStore) InsertEvent(_ context.Context, topic string, aggregateID uuid.UUID, payload []byte) (events.Event, error) {
	s.topics = append(s.topics, topic)
	return events.Event{
		ID:          uuid.New(),
		Topic:       topic,
		AggregateID: aggregateID,
		Payload:     payload,
		OccurredAt:  time.Now(),
	}, nil
}

type captureEnqueuer struct {
	quoteID uuid.UUID
	codes   []string
	calls   int
}

func (c *captureEnqueuer) EnqueueMissing(_ context.Context, quoteID uuid.UUID, codes []string) error {
	c.calls++
	c.quoteID = quoteID
	c.codes = append([]string(nil), codes...)
	return nil
}

func testHandler(t *testing.T) (*Handler, *memoryEventStore, *captureEnqueuer) {
	t.Helper()
	store := &memoryEventStore{}
	enqueuer := &captureEnqueuer{}
	handler := NewHandler(HandlerConfig{
		Engine:    testEngine(t),
		Validator: validator.New(),
		Bus:       &events.Bus{Store: store},
		Reviews:   enqueuer,
		Logger:    zerolog.Nop(),
	})
	return handler, store, enqueuer
}

func postQuote(t *testing.T, handler *Handler, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/quotes", bytes.NewReader(raw))
	rec := httptest.NewRecorder()
	handler.Calculate(rec, req)
	return rec
}

type errorResponse struct {
	Error struct {
		Code    string          `json:"code"`
		Message string          `json:"message"`
		Details json.RawMessage `json:"details"`
	} `json:"error"`
}

func TestHandlerCalculate(t *testing.T) {
	handler, store, enqueuer := testHandler(t)

	rec := postQuote(t, handler, kurtaRequest())
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data struct {
			QuoteID   uuid.UUID `json:"quoteId"`
			Breakdown struct {
				FinalTotal   string `json:"finalTotal"`
				DisplayTotal string `json:"displayTotal"`
			} `json:"breakdown"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEqual(t, uuid.Nil, resp.Data.QuoteID)
	require.Equal(t, "1543.88", resp.Data.Breakdown.FinalTotal)
	require.Equal(t, "11.61", resp.Data.Breakdown.DisplayTotal)

	require.Equal(t, []string{events.TopicQuoteCalculated}, store.topics)
	require.Zero(t, enqueuer.calls)
}

func TestHandlerRejectsInvalidJSON(t *testing.T) {
	handler, _, _ := testHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/quotes", bytes.NewReader([]byte("{broken")))
	rec := httptest.NewRecorder()
	handler.Calculate(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "BAD_REQUEST", resp.Error.Code)
}

func TestHandlerValidationErrorListsFields(t *testing.T) {
	handler, _, _ := testHandler(t)

	req := kurtaRequest()
	req.Route.OriginCountry = "NPL"
	req.Route.DisplayCountry = ""
	rec := postQuote(t, handler, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "VALIDATION_ERROR", resp.Error.Code)

	var details []FieldViolation
	require.NoError(t, json.Unmarshal(resp.Error.Details, &details))
	require.Len(t, details, 2)
}

func TestHandlerMissingClassificationSchedulesReview(t *testing.T) {
	handler, store, enqueuer := testHandler(t)

	req := kurtaRequest()
	req.Items[0].ClassificationCode = "9999"
	rec := postQuote(t, handler, req)
	require.Equal(t, http.StatusOK, rec.Code)

	require.Equal(t, []string{events.TopicQuoteCalculated, events.TopicClassificationMissing}, store.topics)
	require.Equal(t, 1, enqueuer.calls)
	require.Equal(t, []string{"9999"}, enqueuer.codes)
	require.NotEqual(t, uuid.Nil, enqueuer.quoteID)
}

func TestHandlerCountsExpiredFallbackUse(t *testing.T) {
	obs.MustRegisterDomainMetrics("pasaltest", prometheus.NewRegistry())
	handler, _, _ := testHandler(t)
	handler.engine.Fallback.ReviewBy = time.Now().Add(-24 * time.Hour)

	before := testutil.ToFloat64(obs.ExpiredFallbackPolicyTotal)

	req := kurtaRequest()
	req.Items[0].ClassificationCode = "9999"
	rec := postQuote(t, handler, req)
	require.Equal(t, http.StatusOK, rec.Code)

	require.Equal(t, before+1, testutil.ToFloat64(obs.ExpiredFallbackPolicyTotal))
}

func TestHandlerFreshFallbackPolicyNotCountedAsExpired(t *testing.T) {
	obs.MustRegisterDomainMetrics("pasaltest", prometheus.NewRegistry())
	handler, _, _ := testHandler(t)
	handler.engine.Fallback.ReviewBy = time.Now().Add(24 * time.Hour)

	before := testutil.ToFloat64(obs.ExpiredFallbackPolicyTotal)

	req := kurtaRequest()
	req.Items[0].ClassificationCode = "9999"
	rec := postQuote(t, handler, req)
	require.Equal(t, http.StatusOK, rec.Code)

	require.Equal(t, before, testutil.ToFloat64(obs.ExpiredFallbackPolicyTotal))
}

func TestHandlerReportsGatewayFailure(t *testing.T) {
	handler, _, _ := testHandler(t)

	req := kurtaRequest()
	req.Options.Gateway = "khalti"
	rec := postQuote(t, handler, req)

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "CALCULATION_ERROR", resp.Error.Code)
}

func TestHandlerUnavailableBeforeFirstSnapshot(t *testing.T) {
	engine := testEngine(t)
	engine.Rates = &currency.Store{}
	handler := NewHandler(HandlerConfig{
		Engine:    engine,
		Validator: validator.New(),
		Logger:    zerolog.Nop(),
	})

	rec := postQuote(t, handler, kurtaRequest())
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "SNAPSHOT_UNAVAILABLE", resp.Error.Code)
}
