package review

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/noah-isme/backend-pasal/internal/common"
	"github.com/noah-isme/backend-pasal/internal/repo"
)

// ListStore exposes the read and resolve operations behind the review API.
type ListStore interface {
	ListPendingReviews(ctx context.Context, limit, offset int32) ([]repo.ClassificationReview, error)
	CountPendingReviews(ctx context.Context) (int64, error)
	ResolveReview(ctx context.Context, id uuid.UUID) (repo.ClassificationReview, error)
}

// Handler exposes the classification review endpoints for operators.
type Handler struct {
	Store ListStore
}

// ListPending handles GET /api/v1/admin/reviews.
func (h *Handler) ListPending(w http.ResponseWriter, r *http.Request) {
	if h.Store == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "review store not configured", nil)
		return
	}
	page, perPage := common.ParsePagination(r, 20)
	if perPage > 100 {
		perPage = 100
	}
	offset := (page - 1) * perPage
	rows, err := h.Store.ListPendingReviews(r.Context(), int32(perPage), int32(offset))
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", err.Error(), nil)
		return
	}
	total, err := h.Store.CountPendingReviews(r.Context())
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", err.Error(), nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"data": rows,
		"meta": common.Pagination{Page: page, PerPage: perPage, TotalItems: int(total)},
	})
}

// Resolve handles POST /api/v1/admin/reviews/{id}/resolve.
func (h *Handler) Resolve(w http.ResponseWriter, r *http.Request) {
	if h.Store == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "review store not configured", nil)
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid review id", nil)
		return
	}
	row, err := h.Store.ResolveReview(r.Context(), id)
	if errors.Is(err, repo.ErrReviewNotFound) {
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "review not found", nil)
		return
	}
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", err.Error(), nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": row})
}
