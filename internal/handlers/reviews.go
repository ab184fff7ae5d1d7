package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/greenmart/api/internal/platform/auth"
	"github.com/greenmart/api/internal/platform/httpx"
	"github.com/greenmart/api/internal/services"
)

const (
	maxReviewBodySize     = 32 * 1024
	defaultReviewPageSize = 20
	maxReviewPageSize     = 50
)

type createReviewRequest struct {
	Rating  int    `json:"rating" validate:"required,min=1,max=5"`
	Comment string `json:"comment" validate:"max=2000"`
}

func (h *ProductHandlers) listReviews(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.reviews == nil {
		httpx.WriteError(ctx, w, httpx.NewError("review_service_unavailable", "review service unavailable", http.StatusServiceUnavailable))
		return
	}

	productID := strings.TrimSpace(chi.URLParam(r, "productID"))
	if productID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "product id is required", http.StatusBadRequest))
		return
	}

	pageSize, err := parsePageSize(r.URL.Query().Get("page_size"), defaultReviewPageSize, maxReviewPageSize)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	page, err := h.reviews.ListByProduct(ctx, productID, services.Pagination{
		PageSize:  pageSize,
		PageToken: strings.TrimSpace(r.URL.Query().Get("page_token")),
	})
	if err != nil {
		writeReviewError(ctx, w, err)
		return
	}

	items := make([]reviewPayload, 0, len(page.Items))
	for _, review := range page.Items {
		items = append(items, buildReviewPayload(review))
	}

	httpx.WriteSuccess(w, http.StatusOK, "reviews retrieved", reviewListPayload{
		Items:         items,
		NextPageToken: page.NextPageToken,
	})
}

func (h *ProductHandlers) createReview(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.reviews == nil {
		httpx.WriteError(ctx, w, httpx.NewError("review_service_unavailable", "review service unavailable", http.StatusServiceUnavailable))
		return
	}

	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	productID := strings.TrimSpace(chi.URLParam(r, "productID"))
	if productID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "product id is required", http.StatusBadRequest))
		return
	}

	body, err := readLimitedBody(r, maxReviewBodySize)
	if err != nil {
		writeBodyError(w, r, err)
		return
	}
	var req createReviewRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON body", http.StatusBadRequest))
		return
	}
	if err := validate.Struct(req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", validationError(err), http.StatusBadRequest))
		return
	}

	review, err := h.reviews.Create(ctx, services.CreateReviewCommand{
		ProductID: productID,
		UserID:    strings.TrimSpace(identity.UID),
		UserName:  strings.TrimSpace(identity.Name),
		Rating:    req.Rating,
		Comment:   req.Comment,
	})
	if err != nil {
		writeReviewError(ctx, w, err)
		return
	}

	httpx.WriteSuccess(w, http.StatusCreated, "review created", buildReviewPayload(review))
}

func (h *ProductHandlers) deleteReview(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.reviews == nil {
		httpx.WriteError(ctx, w, httpx.NewError("review_service_unavailable", "review service unavailable", http.StatusServiceUnavailable))
		return
	}

	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	reviewID := strings.TrimSpace(chi.URLParam(r, "reviewID"))
	if reviewID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "review id is required", http.StatusBadRequest))
		return
	}

	role := auth.RoleUser
	if identity.IsAdmin() {
		role = auth.RoleAdmin
	}

	err := h.reviews.Delete(ctx, services.DeleteReviewCommand{
		ReviewID:  reviewID,
		ActorID:   strings.TrimSpace(identity.UID),
		ActorRole: role,
	})
	if err != nil {
		writeReviewError(ctx, w, err)
		return
	}

	httpx.WriteSuccess(w, http.StatusOK, "review deleted", nil)
}

type reviewListPayload struct {
	Items         []reviewPayload `json:"items"`
	NextPageToken string          `json:"next_page_token,omitempty"`
}

type reviewPayload struct {
	ID        string `json:"id"`
	ProductID string `json:"product_id"`
	UserID    string `json:"user_id"`
	UserName  string `json:"user_name"`
	Rating    int    `json:"rating"`
	Comment   string `json:"comment,omitempty"`
	CreatedAt string `json:"created_at"`
}

func buildReviewPayload(review services.Review) reviewPayload {
	return reviewPayload{
		ID:        review.ID,
		ProductID: review.ProductID,
		UserID:    review.UserID,
		UserName:  review.UserName,
		Rating:    review.Rating,
		Comment:   review.Comment,
		CreatedAt: formatTime(review.CreatedAt),
	}
}

func writeReviewError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrReviewInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrReviewNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("review_not_found", "review not found", http.StatusNotFound))
	case errors.Is(err, services.ErrProductNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("product_not_found", "product not found", http.StatusNotFound))
	case errors.Is(err, services.ErrReviewExists):
		httpx.WriteError(ctx, w, httpx.NewError("review_exists", "product already reviewed", http.StatusConflict))
	case errors.Is(err, services.ErrReviewForbidden):
		httpx.WriteError(ctx, w, httpx.NewError("forbidden", "not allowed to modify this review", http.StatusForbidden))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("review_error", "failed to process review request", http.StatusInternalServerError))
	}
}
