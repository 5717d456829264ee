package review

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-pasal/internal/repo"
)

// TypeClassificationReview is the asynq task type for classification reviews.
const TypeClassificationReview = "classification:review"

// QueueName is the asynq queue reviews are routed to.
const QueueName = "reviews"

// Payload carries the codes of one quote that were priced under the
// fallback policy.
type Payload struct {
	QuoteID uuid.UUID `json:"quoteId"`
	Codes   []string  `json:"codes"`
}

// NewTask builds the asynq task for a review payload.
func NewTask(quoteID uuid.UUID, codes []string) (*asynq.Task, error) {
	if quoteID == uuid.Nil {
		return nil, errors.New("review: quote id is required")
	}
	if len(codes) == 0 {
		return nil, errors.New("review: at least one code is required")
	}
	raw, err := json.Marshal(Payload{QuoteID: quoteID, Codes: codes})
	if err != nil {
		return nil, fmt.Errorf("review: encode payload: %w", err)
	}
	return asynq.NewTask(TypeClassificationReview, raw), nil
}

// Enqueuer schedules review tasks on the shared asynq client.
type Enqueuer struct {
	Client *asynq.Client
}

// EnqueueMissing schedules one review task covering every missing code of a quote.
func (e Enqueuer) EnqueueMissing(ctx context.Context, quoteID uuid.UUID, codes []string) error {
	if e.Client == nil {
		return errors.New("review: asynq client not configured")
	}
	task, err := NewTask(quoteID, codes)
	if err != nil {
		return err
	}
	_, err = e.Client.EnqueueContext(ctx, task, asynq.Queue(QueueName), asynq.MaxRetry(5))
	if err != nil {
		return fmt.Errorf("review: enqueue task: %w", err)
	}
	return nil
}

// ReviewStore persists review rows; implemented by repo.Store.
type ReviewStore interface {
	InsertReview(ctx context.Context, quoteID uuid.UUID, code string) (repo.ClassificationReview, error)
}

// Processor handles review tasks on the worker side.
type Processor struct {
	Store  ReviewStore
	Logger zerolog.Logger
}

// ProcessTask records one review row per code. Re-deliveries are safe: the
// insert collapses duplicates of the same quote and code.
func (h Processor) ProcessTask(ctx context.Context, task *asynq.Task) error {
	if h.Store == nil {
		return errors.New("review: store not configured")
	}
	var payload Payload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("review: decode payload: %w", err)
	}
	if payload.QuoteID == uuid.Nil || len(payload.Codes) == 0 {
		return errors.New("review: malformed payload")
	}
	for _, code := range payload.Codes {
		if _, err := h.Store.InsertReview(ctx, payload.QuoteID, code); err != nil {
			return err
		}
	}
	h.Logger.Info().
		Str("quote_id", payload.QuoteID.String()).
		Int("codes", len(payload.Codes)).
		Msg("classification review recorded")
	return nil
}
