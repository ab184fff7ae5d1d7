package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/greenmart/api/internal/platform/httpx"
	"github.com/greenmart/api/internal/services"
)

const (
	defaultCategoryPageSize = 50
	maxCategoryPageSize     = 100
)

// CategoryHandlers exposes the public taxonomy surface.
type CategoryHandlers struct {
	categories services.CategoryService
}

// NewCategoryHandlers constructs public category handlers.
func NewCategoryHandlers(categories services.CategoryService) *CategoryHandlers {
	return &CategoryHandlers{categories: categories}
}

// Routes registers the /categories endpoints.
func (h *CategoryHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/", h.listCategories)
	r.Get("/{slug}", h.getCategory)
}

func (h *CategoryHandlers) listCategories(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.categories == nil {
		httpx.WriteError(ctx, w, httpx.NewError("category_service_unavailable", "category service unavailable", http.StatusServiceUnavailable))
		return
	}

	pageSize, err := parsePageSize(r.URL.Query().Get("page_size"), defaultCategoryPageSize, maxCategoryPageSize)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	page, err := h.categories.List(ctx, services.CategoryListFilter{
		ActiveOnly: true,
		Pagination: services.Pagination{
			PageSize:  pageSize,
			PageToken: strings.TrimSpace(r.URL.Query().Get("page_token")),
		},
	})
	if err != nil {
		writeCategoryError(ctx, w, err)
		return
	}

	items := make([]categoryPayload, 0, len(page.Items))
	for _, category := range page.Items {
		items = append(items, buildCategoryPayload(category))
	}

	httpx.WriteSuccess(w, http.StatusOK, "categories retrieved", categoryListPayload{
		Items:         items,
		NextPageToken: page.NextPageToken,
	})
}

func (h *CategoryHandlers) getCategory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.categories == nil {
		httpx.WriteError(ctx, w, httpx.NewError("category_service_unavailable", "category service unavailable", http.StatusServiceUnavailable))
		return
	}

	slug := strings.TrimSpace(chi.URLParam(r, "slug"))
	if slug == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "category slug is required", http.StatusBadRequest))
		return
	}

	category, err := h.categories.GetBySlug(ctx, slug)
	if err != nil {
		writeCategoryError(ctx, w, err)
		return
	}
	if !category.IsActive {
		httpx.WriteError(ctx, w, httpx.NewError("category_not_found", "category not found", http.StatusNotFound))
		return
	}

	httpx.WriteSuccess(w, http.StatusOK, "category retrieved", buildCategoryPayload(category))
}

type categoryListPayload struct {
	Items         []categoryPayload `json:"items"`
	NextPageToken string            `json:"next_page_token,omitempty"`
}

type categoryPayload struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Slug        string        `json:"slug"`
	Description string        `json:"description,omitempty"`
	Image       *mediaPayload `json:"image,omitempty"`
	IsActive    bool          `json:"is_active"`
	CreatedAt   string        `json:"created_at"`
	UpdatedAt   string        `json:"updated_at,omitempty"`
}

func buildCategoryPayload(category services.Category) categoryPayload {
	payload := categoryPayload{
		ID:          category.ID,
		Name:        category.Name,
		Slug:        category.Slug,
		Description: category.Description,
		IsActive:    category.IsActive,
		CreatedAt:   formatTime(category.CreatedAt),
		UpdatedAt:   formatTime(category.UpdatedAt),
	}
	if category.Image != nil {
		payload.Image = &mediaPayload{ID: category.Image.ID, URL: category.Image.URL}
	}
	return payload
}

func writeCategoryError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrCategoryInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrCategoryNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("category_not_found", "category not found", http.StatusNotFound))
	case errors.Is(err, services.ErrCategoryConflict):
		httpx.WriteError(ctx, w, httpx.NewError("category_conflict", err.Error(), http.StatusConflict))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("category_error", "failed to process category request", http.StatusInternalServerError))
	}
}
