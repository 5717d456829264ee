package analytics

import (
	"net/http"
	"time"

	"github.com/noah-isme/backend-pasal/internal/common"
)

// Handler exposes analytics read endpoints.
type Handler struct {
	Svc *Service
}

// QuoteDaily returns per-day quote volume for the requested range.
func (h *Handler) QuoteDaily(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "ANALYTICS_NOT_CONFIGURED", "analytics service not configured", nil)
		return
	}
	query := r.URL.Query()
	fromStr := query.Get("from")
	toStr := query.Get("to")
	now := h.Svc.now()
	var (
		from time.Time
		to   time.Time
		err  error
	)
	if fromStr != "" && toStr != "" {
		from, err = time.Parse(time.RFC3339, fromStr)
		if err != nil {
			common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid from date", nil)
			return
		}
		to, err = time.Parse(time.RFC3339, toStr)
		if err != nil {
			common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid to date", nil)
			return
		}
	} else {
		days := h.Svc.DefaultRange
		if days <= 0 {
			days = 30
		}
		if raw := query.Get("days"); raw != "" {
			parsed := common.AtoiDefault(raw, days)
			if parsed > 0 {
				days = parsed
			}
		}
		to = now
		from = to.AddDate(0, 0, -days)
	}
	if !from.Before(to) {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "from must be before to", nil)
		return
	}
	rows, err := h.Svc.QuoteDaily(r.Context(), from, to)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "ANALYTICS_ERROR", err.Error(), nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": rows})
}

// Overview aggregates key quote metrics for dashboards.
func (h *Handler) Overview(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "ANALYTICS_NOT_CONFIGURED", "analytics service not configured", nil)
		return
	}
	overview, err := h.Svc.BuildOverview(r.Context())
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "ANALYTICS_ERROR", err.Error(), nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": overview})
}
