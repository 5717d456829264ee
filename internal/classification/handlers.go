package classification

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-pasal/internal/common"
)

// Writer persists classification entries; implemented by the repo store.
type Writer interface {
	UpsertClassification(ctx context.Context, entry Entry) error
}

// Handler exposes the classification registry admin endpoints.
type Handler struct {
	Store  *Store
	Writer Writer
	Source Source
	Logger zerolog.Logger
}

// Upsert handles PUT /api/v1/admin/classifications. Malformed entries reject
// the whole batch; nothing is swapped in partially.
func (h *Handler) Upsert(w http.ResponseWriter, r *http.Request) {
	if h.Writer == nil || h.Source == nil || h.Store == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "classification admin not configured", nil)
		return
	}
	var payload []Entry
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid JSON body", nil)
		return
	}
	if len(payload) == 0 {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", "at least one entry is required", nil)
		return
	}
	for _, entry := range payload {
		if err := entry.Validate(); err != nil {
			common.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
			return
		}
	}
	ctx := r.Context()
	for _, entry := range payload {
		if err := h.Writer.UpsertClassification(ctx, entry); err != nil {
			h.Logger.Error().Err(err).Str("code", entry.Code).Msg("upsert classification failed")
			common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "persist classification failed", nil)
			return
		}
	}

	rows, err := h.Source.LoadClassifications(ctx)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "reload classifications failed", nil)
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
			"entryCount": snapshot.Len(),
			"snapshotAt": snapshot.LoadedAt(),
		},
	})
}

// Lookup handles GET /api/v1/admin/classifications/{code}.
func (h *Handler) Lookup(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	if h.Store == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "classification admin not configured", nil)
		return
	}
	snapshot, err := h.Store.Current()
	if err != nil {
		common.JSONError(w, http.StatusServiceUnavailable, "SNAPSHOT_UNAVAILABLE", "no snapshot loaded yet", nil)
		return
	}
	entry, err := snapshot.Lookup(code)
	if IsNotFound(err) {
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", err.Error(), nil)
		return
	}
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", err.Error(), nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": entry})
}
