package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/greenmart/api/internal/platform/auth"
	"github.com/greenmart/api/internal/services"
)

func TestCartHandlersGetCartSuccess(t *testing.T) {
	added := time.Date(2025, 4, 2, 11, 0, 0, 0, time.UTC)
	service := &stubCartService{
		getFunc: func(ctx context.Context, userID string) (services.Cart, error) {
			if userID != "user-7" {
				t.Fatalf("unexpected user id %q", userID)
			}
			return services.Cart{
				UserID: userID,
				Items: []services.CartItem{
					{ProductID: "prd-1", Quantity: 2, AddedAt: added},
				},
				UpdatedAt: added.Add(time.Minute),
			}, nil
		},
	}

	handler := NewCartHandlers(nil, service)
	router := chi.NewRouter()
	router.Route("/cart", handler.Routes)

	req := httptest.NewRequest(http.MethodGet, "/cart", nil)
	req = req.WithContext(auth.WithIdentity(req.Context(), &auth.Identity{UID: "user-7"}))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	env := decodeEnvelope(t, rr)
	var payload cartPayload
	decodeData(t, env, &payload)
	if payload.UserID != "user-7" || len(payload.Items) != 1 {
		t.Fatalf("unexpected payload %#v", payload)
	}
	if payload.Items[0].ProductID != "prd-1" || payload.Items[0].Quantity != 2 {
		t.Fatalf("unexpected item %#v", payload.Items[0])
	}
}

func TestCartHandlersGetCartUnauthenticated(t *testing.T) {
	handler := NewCartHandlers(nil, &stubCartService{})
	req := httptest.NewRequest(http.MethodGet, "/cart", nil)
	rr := httptest.NewRecorder()
	handler.getCart(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", rr.Code)
	}
}

func TestCartHandlersAddItemSuccess(t *testing.T) {
	var captured services.UpsertCartItemCommand
	service := &stubCartService{
		addFunc: func(ctx context.Context, cmd services.UpsertCartItemCommand) (services.Cart, error) {
			captured = cmd
			return services.Cart{
				UserID: cmd.UserID,
				Items:  []services.CartItem{{ProductID: cmd.ProductID, Quantity: cmd.Quantity}},
			}, nil
		},
	}

	handler := NewCartHandlers(nil, service)
	router := chi.NewRouter()
	router.Route("/cart", handler.Routes)

	req := httptest.NewRequest(http.MethodPost, "/cart/items", strings.NewReader(`{"product_id":"prd-1","quantity":3}`))
	req.Header.Set("Content-Type", "application/json")
	req = req.WithContext(auth.WithIdentity(req.Context(), &auth.Identity{UID: "user-7"}))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if captured.UserID != "user-7" || captured.ProductID != "prd-1" || captured.Quantity != 3 {
		t.Fatalf("unexpected command %#v", captured)
	}
}

func TestCartHandlersAddItemQuantityTooHigh(t *testing.T) {
	handler := NewCartHandlers(nil, &stubCartService{})
	router := chi.NewRouter()
	router.Route("/cart", handler.Routes)

	req := httptest.NewRequest(http.MethodPost, "/cart/items", strings.NewReader(`{"product_id":"prd-1","quantity":100}`))
	req = req.WithContext(auth.WithIdentity(req.Context(), &auth.Identity{UID: "user-7"}))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
}

func TestCartHandlersAddItemProductUnavailable(t *testing.T) {
	service := &stubCartService{
		addFunc: func(ctx context.Context, cmd services.UpsertCartItemCommand) (services.Cart, error) {
			return services.Cart{}, services.ErrProductUnavailable
		},
	}

	handler := NewCartHandlers(nil, service)
	router := chi.NewRouter()
	router.Route("/cart", handler.Routes)

	req := httptest.NewRequest(http.MethodPost, "/cart/items", strings.NewReader(`{"product_id":"prd-1","quantity":1}`))
	req = req.WithContext(auth.WithIdentity(req.Context(), &auth.Identity{UID: "user-7"}))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusConflict {
		t.Fatalf("expected status 409, got %d", rr.Code)
	}
	if env := decodeEnvelope(t, rr); env.Error != "product_unavailable" {
		t.Fatalf("expected product_unavailable, got %q", env.Error)
	}
}

func TestCartHandlersUpdateItemSuccess(t *testing.T) {
	var captured services.UpsertCartItemCommand
	service := &stubCartService{
		updateFunc: func(ctx context.Context, cmd services.UpsertCartItemCommand) (services.Cart, error) {
			captured = cmd
			return services.Cart{UserID: cmd.UserID}, nil
		},
	}

	handler := NewCartHandlers(nil, service)
	router := chi.NewRouter()
	router.Route("/cart", handler.Routes)

	req := httptest.NewRequest(http.MethodPatch, "/cart/items/prd-4", strings.NewReader(`{"quantity":5}`))
	req = req.WithContext(auth.WithIdentity(req.Context(), &auth.Identity{UID: "user-7"}))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if captured.ProductID != "prd-4" || captured.Quantity != 5 {
		t.Fatalf("unexpected command %#v", captured)
	}
}

func TestCartHandlersUpdateItemNotInCart(t *testing.T) {
	service := &stubCartService{
		updateFunc: func(ctx context.Context, cmd services.UpsertCartItemCommand) (services.Cart, error) {
			return services.Cart{}, services.ErrCartItemNotFound
		},
	}

	handler := NewCartHandlers(nil, service)
	router := chi.NewRouter()
	router.Route("/cart", handler.Routes)

	req := httptest.NewRequest(http.MethodPatch, "/cart/items/prd-4", strings.NewReader(`{"quantity":2}`))
	req = req.WithContext(auth.WithIdentity(req.Context(), &auth.Identity{UID: "user-7"}))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rr.Code)
	}
}

func TestCartHandlersRemoveItemSuccess(t *testing.T) {
	removed := false
	service := &stubCartService{
		removeFunc: func(ctx context.Context, userID, productID string) (services.Cart, error) {
			removed = true
			if userID != "user-3" || productID != "prd-2" {
				t.Fatalf("unexpected args %q %q", userID, productID)
			}
			return services.Cart{UserID: userID, Items: []services.CartItem{}}, nil
		},
	}

	handler := NewCartHandlers(nil, service)
	router := chi.NewRouter()
	router.Route("/cart", handler.Routes)

	req := httptest.NewRequest(http.MethodDelete, "/cart/items/prd-2", nil)
	req = req.WithContext(auth.WithIdentity(req.Context(), &auth.Identity{UID: "user-3"}))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if !removed {
		t.Fatalf("expected remove to be called")
	}
}

func TestCartHandlersClearCartSuccess(t *testing.T) {
	cleared := false
	service := &stubCartService{
		clearFunc: func(ctx context.Context, userID string) error {
			cleared = true
			return nil
		},
	}

	handler := NewCartHandlers(nil, service)
	router := chi.NewRouter()
	router.Route("/cart", handler.Routes)

	req := httptest.NewRequest(http.MethodDelete, "/cart", nil)
	req = req.WithContext(auth.WithIdentity(req.Context(), &auth.Identity{UID: "user-3"}))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if !cleared {
		t.Fatalf("expected clear to be called")
	}
}

type stubCartService struct {
	getFunc    func(ctx context.Context, userID string) (services.Cart, error)
	addFunc    func(ctx context.Context, cmd services.UpsertCartItemCommand) (services.Cart, error)
	updateFunc func(ctx context.Context, cmd services.UpsertCartItemCommand) (services.Cart, error)
	removeFunc func(ctx context.Context, userID, productID string) (services.Cart, error)
	clearFunc  func(ctx context.Context, userID string) error
}

func (s *stubCartService) GetCart(ctx context.Context, userID string) (services.Cart, error) {
	if s.getFunc != nil {
		return s.getFunc(ctx, userID)
	}
	return services.Cart{}, errors.New("not implemented")
}

func (s *stubCartService) AddItem(ctx context.Context, cmd services.UpsertCartItemCommand) (services.Cart, error) {
	if s.addFunc != nil {
		return s.addFunc(ctx, cmd)
	}
	return services.Cart{}, errors.New("not implemented")
}

func (s *stubCartService) UpdateItemQuantity(ctx context.Context, cmd services.UpsertCartItemCommand) (services.Cart, error) {
	if s.updateFunc != nil {
		return s.updateFunc(ctx, cmd)
	}
	return services.Cart{}, errors.New("not implemented")
}

func (s *stubCartService) RemoveItem(ctx context.Context, userID, productID string) (services.Cart, error) {
	if s.removeFunc != nil {
		return s.removeFunc(ctx, userID, productID)
	}
	return services.Cart{}, errors.New("not implemented")
}

func (s *stubCartService) ClearCart(ctx context.Context, userID string) error {
	if s.clearFunc != nil {
		return s.clearFunc(ctx, userID)
	}
	return errors.New("not implemented")
}
