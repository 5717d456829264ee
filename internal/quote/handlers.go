package quote

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	validator "github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-pasal/internal/classification"
	"github.com/noah-isme/backend-pasal/internal/common"
	"github.com/noah-isme/backend-pasal/internal/currency"
	"github.com/noah-isme/backend-pasal/internal/events"
	"github.com/noah-isme/backend-pasal/internal/obs"
	"github.com/noah-isme/backend-pasal/internal/rates"
	"github.com/noah-isme/backend-pasal/internal/tax"
)

// ReviewEnqueuer schedules operator review of classification codes that were
// priced under the fallback policy.
type ReviewEnqueuer interface {
	EnqueueMissing(ctx context.Context, quoteID uuid.UUID, codes []string) error
}

// Handler exposes the quote calculation endpoint.
type Handler struct {
	engine   *Engine
	validate *validator.Validate
	bus      *events.Bus
	reviews  ReviewEnqueuer
	logger   zerolog.Logger
}

// HandlerConfig configures the Handler dependencies.
type HandlerConfig struct {
	Engine    *Engine
	Validator *validator.Validate
	Bus       *events.Bus
	Reviews   ReviewEnqueuer
	Logger    zerolog.Logger
}

// NewHandler constructs a Handler.
func NewHandler(cfg HandlerConfig) *Handler {
	return &Handler{
		engine:   cfg.Engine,
		validate: cfg.Validator,
		bus:      cfg.Bus,
		reviews:  cfg.Reviews,
		logger:   cfg.Logger,
	}
}

// Calculate handles POST /api/v1/quotes.
func (h *Handler) Calculate(w http.ResponseWriter, r *http.Request) {
	if h.engine == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "quote engine not configured", nil)
		return
	}

	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid JSON body", nil)
		return
	}
	if h.validate != nil {
		if err := h.validate.Struct(req); err != nil {
			h.writeError(w, structViolations(err))
			recordOutcome("validation_error", 0)
			return
		}
	}

	quoteID := uuid.New()
	start := time.Now()
	breakdown, err := h.engine.Calculate(r.Context(), req)
	elapsed := time.Since(start)
	if err != nil {
		recordOutcome(outcomeLabel(err), elapsed)
		h.writeError(w, err)
		return
	}
	recordOutcome("ok", elapsed)
	h.recordBreakdown(breakdown)

	h.publish(r, quoteID, req, breakdown)

	common.JSON(w, http.StatusOK, map[string]any{
		"data": map[string]any{
			"quoteId":   quoteID,
			"breakdown": breakdown,
		},
	})
}

// publish emits domain events and schedules classification reviews. Failures
// here never fail the quote itself.
func (h *Handler) publish(r *http.Request, quoteID uuid.UUID, req Request, breakdown Breakdown) {
	ctx := r.Context()
	if h.bus != nil {
		payload := map[string]any{
			"quoteId":        quoteID,
			"origin":         req.Route.OriginCountry,
			"destination":    req.Route.DestinationCountry,
			"finalTotal":     breakdown.FinalTotal,
			"rateSnapshotAt": breakdown.RateSnapshotAt,
		}
		if _, err := h.bus.Emit(ctx, events.TopicQuoteCalculated, quoteID, payload); err != nil {
			h.logger.Warn().Err(err).Str("quote_id", quoteID.String()).Msg("emit quote.calculated failed")
		}
	}

	codes := breakdown.MissingClassifications()
	if len(codes) == 0 {
		return
	}
	if h.bus != nil {
		payload := map[string]any{"quoteId": quoteID, "codes": codes}
		if _, err := h.bus.Emit(ctx, events.TopicClassificationMissing, quoteID, payload); err != nil {
			h.logger.Warn().Err(err).Str("quote_id", quoteID.String()).Msg("emit classification.missing failed")
		}
	}
	if h.reviews != nil {
		if err := h.reviews.EnqueueMissing(ctx, quoteID, codes); err != nil {
			h.logger.Warn().Err(err).Str("quote_id", quoteID.String()).Msg("enqueue classification review failed")
		} else if obs.ReviewTasksEnqueued != nil {
			obs.ReviewTasksEnqueued.Inc()
		}
	}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var verr *ValidationError
	if errors.As(err, &verr) {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", "request validation failed", verr.Violations)
		return
	}
	var ilerr *tax.InvalidLineItemError
	if errors.As(err, &ilerr) {
		common.JSONError(w, http.StatusBadRequest, "INVALID_LINE_ITEM", ilerr.Error(), map[string]any{
			"itemId": ilerr.ItemID,
			"reason": ilerr.Reason,
		})
		return
	}
	var rnf *currency.RateNotFoundError
	if errors.As(err, &rnf) {
		common.JSONError(w, http.StatusUnprocessableEntity, "RATE_NOT_FOUND", rnf.Error(), map[string]any{
			"countryCode": rnf.CountryCode,
		})
		return
	}
	if errors.Is(err, rates.ErrRouteNotFound) {
		common.JSONError(w, http.StatusUnprocessableEntity, "ROUTE_NOT_FOUND", "no shipping rates for route", nil)
		return
	}
	var cerr *CalculationError
	if errors.As(err, &cerr) {
		common.JSONError(w, http.StatusUnprocessableEntity, "CALCULATION_ERROR", cerr.Error(), nil)
		return
	}
	if errors.Is(err, currency.ErrNoSnapshot) || errors.Is(err, classification.ErrNoSnapshot) {
		common.JSONError(w, http.StatusServiceUnavailable, "SNAPSHOT_UNAVAILABLE", "reference data not loaded yet", nil)
		return
	}
	h.logger.Error().Err(err).Msg("quote calculation failed")
	common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "internal error", nil)
}

func outcomeLabel(err error) string {
	var (
		verr  *ValidationError
		ilerr *tax.InvalidLineItemError
		rnf   *currency.RateNotFoundError
	)
	switch {
	case errors.As(err, &verr):
		return "validation_error"
	case errors.As(err, &ilerr):
		return "invalid_line_item"
	case errors.As(err, &rnf):
		return "rate_not_found"
	case errors.Is(err, rates.ErrRouteNotFound):
		return "route_not_found"
	case IsCalculationError(err):
		return "calculation_error"
	case errors.Is(err, currency.ErrNoSnapshot), errors.Is(err, classification.ErrNoSnapshot):
		return "snapshot_unavailable"
	default:
		return "internal_error"
	}
}

func recordOutcome(result string, elapsed time.Duration) {
	if obs.QuoteCalcTotal != nil {
		obs.QuoteCalcTotal.WithLabelValues(result).Inc()
	}
	if obs.QuoteCalcLatency != nil && elapsed > 0 {
		obs.QuoteCalcLatency.WithLabelValues(result).Observe(obs.DurationMillis(elapsed))
	}
}

func (h *Handler) recordBreakdown(b Breakdown) {
	expired := h.engine.Fallback.Expired(time.Now())
	for _, item := range b.Items {
		if obs.QuoteBasisMethodTotal != nil {
			obs.QuoteBasisMethodTotal.WithLabelValues(string(item.BasisMethod)).Inc()
		}
		if !item.ClassificationMissing {
			continue
		}
		if obs.ClassificationFallbackTotal != nil {
			obs.ClassificationFallbackTotal.Inc()
		}
		if expired {
			if obs.ExpiredFallbackPolicyTotal != nil {
				obs.ExpiredFallbackPolicyTotal.Inc()
			}
			h.logger.Warn().
				Str("policy", h.engine.Fallback.Name).
				Str("code", item.ClassificationCode).
				Time("review_by", h.engine.Fallback.ReviewBy).
				Msg("item priced under expired fallback policy")
		}
	}
}

// structViolations converts validator tag failures into the same collect-all
// shape the engine produces, so clients see one error format.
func structViolations(err error) error {
	var tagErrs validator.ValidationErrors
	if !errors.As(err, &tagErrs) {
		return &ValidationError{Violations: []FieldViolation{{Field: "request", Reason: err.Error()}}}
	}
	violations := make([]FieldViolation, 0, len(tagErrs))
	for _, fe := range tagErrs {
		violations = append(violations, FieldViolation{
			Field:  fe.Namespace(),
			Reason: "failed validation rule " + fe.Tag(),
		})
	}
	return &ValidationError{Violations: violations}
}
