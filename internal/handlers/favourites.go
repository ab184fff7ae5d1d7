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
	maxFavouriteBodySize     = 4 * 1024
	defaultFavouritePageSize = 20
	maxFavouritePageSize     = 100
)

// FavouriteHandlers exposes the per-user favourites list.
type FavouriteHandlers struct {
	authn      *auth.Authenticator
	favourites services.FavouriteService
}

// NewFavouriteHandlers constructs favourite endpoint handlers.
func NewFavouriteHandlers(authn *auth.Authenticator, favourites services.FavouriteService) *FavouriteHandlers {
	return &FavouriteHandlers{authn: authn, favourites: favourites}
}

// Routes registers the /favourites endpoints.
func (h *FavouriteHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireUser())
	}
	r.Get("/", h.listFavourites)
	r.Post("/", h.addFavourite)
	r.Delete("/{productID}", h.removeFavourite)
}

type addFavouriteRequest struct {
	ProductID string `json:"product_id" validate:"required"`
}

func (h *FavouriteHandlers) listFavourites(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.favourites == nil {
		httpx.WriteError(ctx, w, httpx.NewError("favourite_service_unavailable", "favourite service unavailable", http.StatusServiceUnavailable))
		return
	}
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	pageSize, err := parsePageSize(r.URL.Query().Get("page_size"), defaultFavouritePageSize, maxFavouritePageSize)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	page, err := h.favourites.List(ctx, strings.TrimSpace(identity.UID), services.Pagination{
		PageSize:  pageSize,
		PageToken: strings.TrimSpace(r.URL.Query().Get("page_token")),
	})
	if err != nil {
		writeFavouriteError(ctx, w, err)
		return
	}

	items := make([]favouritePayload, 0, len(page.Items))
	for _, favourite := range page.Items {
		items = append(items, favouritePayload{
			ProductID: favourite.ProductID,
			CreatedAt: formatTime(favourite.CreatedAt),
		})
	}

	httpx.WriteSuccess(w, http.StatusOK, "favourites retrieved", favouriteListPayload{
		Items:         items,
		NextPageToken: page.NextPageToken,
	})
}

func (h *FavouriteHandlers) addFavourite(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.favourites == nil {
		httpx.WriteError(ctx, w, httpx.NewError("favourite_service_unavailable", "favourite service unavailable", http.StatusServiceUnavailable))
		return
	}
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	body, err := readLimitedBody(r, maxFavouriteBodySize)
	if err != nil {
		writeBodyError(w, r, err)
		return
	}
	var req addFavouriteRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON body", http.StatusBadRequest))
		return
	}
	if err := validate.Struct(req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", validationError(err), http.StatusBadRequest))
		return
	}

	if err := h.favourites.Add(ctx, strings.TrimSpace(identity.UID), strings.TrimSpace(req.ProductID)); err != nil {
		writeFavouriteError(ctx, w, err)
		return
	}

	httpx.WriteSuccess(w, http.StatusCreated, "favourite added", nil)
}

func (h *FavouriteHandlers) removeFavourite(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.favourites == nil {
		httpx.WriteError(ctx, w, httpx.NewError("favourite_service_unavailable", "favourite service unavailable", http.StatusServiceUnavailable))
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

	if err := h.favourites.Remove(ctx, strings.TrimSpace(identity.UID), productID); err != nil {
		writeFavouriteError(ctx, w, err)
		return
	}

	httpx.WriteSuccess(w, http.StatusOK, "favourite removed", nil)
}

type favouriteListPayload struct {
	Items         []favouritePayload `json:"items"`
	NextPageToken string             `json:"next_page_token,omitempty"`
}

type favouritePayload struct {
	ProductID string `json:"product_id"`
	CreatedAt string `json:"created_at"`
}

func writeFavouriteError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrFavouriteInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrFavouriteNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("favourite_not_found", "favourite not found", http.StatusNotFound))
	case errors.Is(err, services.ErrProductNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("product_not_found", "product not found", http.StatusNotFound))
	case errors.Is(err, services.ErrProductUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("product_unavailable", "product is not available", http.StatusConflict))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("favourite_error", "failed to process favourite request", http.StatusInternalServerError))
	}
}
