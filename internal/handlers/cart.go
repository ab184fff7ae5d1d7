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

const maxCartBodySize = 8 * 1024

// CartHandlers exposes authenticated cart endpoints for the current user.
type CartHandlers struct {
	authn *auth.Authenticator
	carts services.CartService
}

// NewCartHandlers constructs cart endpoint handlers.
func NewCartHandlers(authn *auth.Authenticator, carts services.CartService) *CartHandlers {
	return &CartHandlers{authn: authn, carts: carts}
}

// Routes registers the /cart endpoints.
func (h *CartHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireUser())
	}
	r.Get("/", h.getCart)
	r.Delete("/", h.clearCart)
	r.Post("/items", h.addItem)
	r.Patch("/items/{productID}", h.updateItem)
	r.Delete("/items/{productID}", h.removeItem)
}

type cartItemRequest struct {
	ProductID string `json:"product_id" validate:"required"`
	Quantity  int64  `json:"quantity" validate:"required,min=1,max=99"`
}

type cartQuantityRequest struct {
	Quantity int64 `json:"quantity" validate:"required,min=1,max=99"`
}

func (h *CartHandlers) getCart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.carts == nil {
		httpx.WriteError(ctx, w, httpx.NewError("cart_service_unavailable", "cart service unavailable", http.StatusServiceUnavailable))
		return
	}
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	cart, err := h.carts.GetCart(ctx, strings.TrimSpace(identity.UID))
	if err != nil {
		writeCartError(ctx, w, err)
		return
	}

	httpx.WriteSuccess(w, http.StatusOK, "cart retrieved", buildCartPayload(cart))
}

func (h *CartHandlers) addItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.carts == nil {
		httpx.WriteError(ctx, w, httpx.NewError("cart_service_unavailable", "cart service unavailable", http.StatusServiceUnavailable))
		return
	}
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	body, err := readLimitedBody(r, maxCartBodySize)
	if err != nil {
		writeBodyError(w, r, err)
		return
	}
	var req cartItemRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON body", http.StatusBadRequest))
		return
	}
	if err := validate.Struct(req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", validationError(err), http.StatusBadRequest))
		return
	}

	cart, err := h.carts.AddItem(ctx, services.UpsertCartItemCommand{
		UserID:    strings.TrimSpace(identity.UID),
		ProductID: strings.TrimSpace(req.ProductID),
		Quantity:  req.Quantity,
	})
	if err != nil {
		writeCartError(ctx, w, err)
		return
	}

	httpx.WriteSuccess(w, http.StatusOK, "item added to cart", buildCartPayload(cart))
}

func (h *CartHandlers) updateItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.carts == nil {
		httpx.WriteError(ctx, w, httpx.NewError("cart_service_unavailable", "cart service unavailable", http.StatusServiceUnavailable))
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

	body, err := readLimitedBody(r, maxCartBodySize)
	if err != nil {
		writeBodyError(w, r, err)
		return
	}
	var req cartQuantityRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON body", http.StatusBadRequest))
		return
	}
	if err := validate.Struct(req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", validationError(err), http.StatusBadRequest))
		return
	}

	cart, err := h.carts.UpdateItemQuantity(ctx, services.UpsertCartItemCommand{
		UserID:    strings.TrimSpace(identity.UID),
		ProductID: productID,
		Quantity:  req.Quantity,
	})
	if err != nil {
		writeCartError(ctx, w, err)
		return
	}

	httpx.WriteSuccess(w, http.StatusOK, "cart item updated", buildCartPayload(cart))
}

func (h *CartHandlers) removeItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.carts == nil {
		httpx.WriteError(ctx, w, httpx.NewError("cart_service_unavailable", "cart service unavailable", http.StatusServiceUnavailable))
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

	cart, err := h.carts.RemoveItem(ctx, strings.TrimSpace(identity.UID), productID)
	if err != nil {
		writeCartError(ctx, w, err)
		return
	}

	httpx.WriteSuccess(w, http.StatusOK, "cart item removed", buildCartPayload(cart))
}

func (h *CartHandlers) clearCart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.carts == nil {
		httpx.WriteError(ctx, w, httpx.NewError("cart_service_unavailable", "cart service unavailable", http.StatusServiceUnavailable))
		return
	}
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	if err := h.carts.ClearCart(ctx, strings.TrimSpace(identity.UID)); err != nil {
		writeCartError(ctx, w, err)
		return
	}

	httpx.WriteSuccess(w, http.StatusOK, "cart cleared", nil)
}

type cartPayload struct {
	UserID    string            `json:"user_id"`
	Items     []cartItemPayload `json:"items"`
	UpdatedAt string            `json:"updated_at,omitempty"`
}

type cartItemPayload struct {
	ProductID string `json:"product_id"`
	Quantity  int64  `json:"quantity"`
	AddedAt   string `json:"added_at,omitempty"`
}

func buildCartPayload(cart services.Cart) cartPayload {
	items := make([]cartItemPayload, 0, len(cart.Items))
	for _, item := range cart.Items {
		items = append(items, cartItemPayload{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			AddedAt:   formatTime(item.AddedAt),
		})
	}
	return cartPayload{
		UserID:    cart.UserID,
		Items:     items,
		UpdatedAt: formatTime(cart.UpdatedAt),
	}
}

func writeCartError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrCartInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrCartItemNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("cart_item_not_found", "item not in cart", http.StatusNotFound))
	case errors.Is(err, services.ErrProductNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("product_not_found", "product not found", http.StatusNotFound))
	case errors.Is(err, services.ErrProductUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("product_unavailable", "product is not available", http.StatusConflict))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("cart_error", "failed to process cart request", http.StatusInternalServerError))
	}
}
