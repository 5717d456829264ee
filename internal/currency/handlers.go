package currency

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-pasal/internal/common"
)

// Writer persists exchange rate rows; implemented by the repo store.
type Writer interface {
	UpsertExchangeRate(ctx context.Context, rate ExchangeRate) error
}

// Handler exposes the exchange-rate admin endpoints.
type Handler struct {
	Store  *Store
	Writer Writer
	Source Source
	Logger zerolog.Logger
}

// Upsert handles PUT /api/v1/admin/exchange-rates. It validates and persists
// the submitted rates, then swaps in a freshly loaded snapshot so subsequent
// quotes see the change.
func (h *Handler) Upsert(w http.ResponseWriter, r *http.Request) {
	if h.Writer == nil || h.Source == nil || h.Store == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "exchange rate admin not configured", nil)
		return
	}
	var payload []ExchangeRate
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid JSON body", nil)
		return
	}
	if len(payload) == 0 {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", "at least one rate is required", nil)
		return
	}
	for _, rate := range payload {
		if err := rate.Validate(); err != nil {
			common.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
			return
		}
	}
	ctx := r.Context()
	for _, rate := range payload {
		if err := h.Writer.UpsertExchangeRate(ctx, rate); err != nil {
			h.Logger.Error().Err(err).Str("country", rate.CountryCode).Msg("upsert exchange rate failed")
			common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "persist exchange rate failed", nil)
			return
		}
	}

	rows, err := h.Source.LoadRates(ctx)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "reload exchange rates failed", nil)
		return
	}
	snapshot, err := NewSnapshot(rows, time.Now().UTC())
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", err.Error(), nil)
		return
	}
	h.Store.Swap(snapshot)

	common.JSON(w, http.StatusOK, map[string]any{
		"data": map[string]any{
			"updated":    len(payload),
			"rateCount":  snapshot.Len(),
			"snapshotAt": snapshot.LoadedAt(),
		},
	})
}

// SnapshotInfo handles GET /api/v1/admin/exchange-rates.
func (h *Handler) SnapshotInfo(w http.ResponseWriter, r *http.Request) {
	if h.Store == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "exchange rate admin not configured", nil)
		return
	}
	snapshot, err := h.Store.Current()
	if err != nil {
		common.JSONError(w, http.StatusServiceUnavailable, "SNAPSHOT_UNAVAILABLE", "no snapshot loaded yet", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"data": map[string]any{
			"rateCount":  snapshot.Len(),
			"snapshotAt": snapshot.LoadedAt(),
		},
	})
}
