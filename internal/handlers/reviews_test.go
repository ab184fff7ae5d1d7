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

	domain "github.com/greenmart/api/internal/domain"
	"github.com/greenmart/api/internal/platform/auth"
	"github.com/greenmart/api/internal/services"
)

func TestProductHandlersListReviewsSuccess(t *testing.T) {
	created := time.Date(2025, 3, 2, 14, 0, 0, 0, time.UTC)
	service := &stubReviewService{
		listFunc: func(ctx context.Context, productID string, pager services.Pagination) (domain.CursorPage[services.Review], error) {
			if productID != "prd-1" {
				t.Fatalf("unexpected product id %q", productID)
			}
			return domain.CursorPage[services.Review]{
				Items: []services.Review{
					{ID: "rev-1", ProductID: productID, UserID: "user-4", UserName: "Amina", Rating: 5, Comment: "fresh", CreatedAt: created},
				},
			}, nil
		},
	}

	handler := NewProductHandlers(nil, &stubCatalogService{}, service)
	router := chi.NewRouter()
	router.Route("/products", handler.Routes)

	req := httptest.NewRequest(http.MethodGet, "/products/prd-1/reviews", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	env := decodeEnvelope(t, rr)
	var payload reviewListPayload
	decodeData(t, env, &payload)
	if len(payload.Items) != 1 || payload.Items[0].ID != "rev-1" {
		t.Fatalf("unexpected payload %#v", payload)
	}
	if payload.Items[0].Rating != 5 {
		t.Fatalf("expected rating 5, got %d", payload.Items[0].Rating)
	}
}

func TestProductHandlersCreateReviewSuccess(t *testing.T) {
	var captured services.CreateReviewCommand
	service := &stubReviewService{
		createFunc: func(ctx context.Context, cmd services.CreateReviewCommand) (services.Review, error) {
			captured = cmd
			return services.Review{
				ID:        "rev-9",
				ProductID: cmd.ProductID,
				UserID:    cmd.UserID,
				UserName:  cmd.UserName,
				Rating:    cmd.Rating,
				Comment:   cmd.Comment,
			}, nil
		},
	}

	handler := NewProductHandlers(nil, &stubCatalogService{}, service)
	router := chi.NewRouter()
	router.Route("/products", handler.Routes)

	req := httptest.NewRequest(http.MethodPost, "/products/prd-1/reviews", strings.NewReader(`{"rating":4,"comment":"good value"}`))
	req.Header.Set("Content-Type", "application/json")
	req = req.WithContext(auth.WithIdentity(req.Context(), &auth.Identity{UID: "user-4", Name: "Amina"}))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rr.Code, rr.Body.String())
	}
	if captured.ProductID != "prd-1" || captured.UserID != "user-4" || captured.UserName != "Amina" {
		t.Fatalf("unexpected command %#v", captured)
	}
	if captured.Rating != 4 || captured.Comment != "good value" {
		t.Fatalf("unexpected rating or comment %#v", captured)
	}
}

func TestProductHandlersCreateReviewRatingOutOfRange(t *testing.T) {
	handler := NewProductHandlers(nil, &stubCatalogService{}, &stubReviewService{})
	router := chi.NewRouter()
	router.Route("/products", handler.Routes)

	req := httptest.NewRequest(http.MethodPost, "/products/prd-1/reviews", strings.NewReader(`{"rating":6}`))
	req = req.WithContext(auth.WithIdentity(req.Context(), &auth.Identity{UID: "user-4"}))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
}

func TestProductHandlersCreateReviewDuplicate(t *testing.T) {
	service := &stubReviewService{
		createFunc: func(ctx context.Context, cmd services.CreateReviewCommand) (services.Review, error) {
			return services.Review{}, services.ErrReviewExists
		},
	}

	handler := NewProductHandlers(nil, &stubCatalogService{}, service)
	router := chi.NewRouter()
	router.Route("/products", handler.Routes)

	req := httptest.NewRequest(http.MethodPost, "/products/prd-1/reviews", strings.NewReader(`{"rating":3}`))
	req = req.WithContext(auth.WithIdentity(req.Context(), &auth.Identity{UID: "user-4"}))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusConflict {
		t.Fatalf("expected status 409, got %d", rr.Code)
	}
	if env := decodeEnvelope(t, rr); env.Error != "review_exists" {
		t.Fatalf("expected review_exists, got %q", env.Error)
	}
}

func TestProductHandlersCreateReviewUnauthenticated(t *testing.T) {
	handler := NewProductHandlers(nil, &stubCatalogService{}, &stubReviewService{})
	router := chi.NewRouter()
	router.Route("/products", handler.Routes)

	req := httptest.NewRequest(http.MethodPost, "/products/prd-1/reviews", strings.NewReader(`{"rating":4}`))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", rr.Code)
	}
}

func TestProductHandlersDeleteReviewRoleSelection(t *testing.T) {
	cases := []struct {
		name     string
		identity *auth.Identity
		wantRole string
	}{
		{name: "regular user", identity: &auth.Identity{UID: "user-4"}, wantRole: auth.RoleUser},
		{name: "admin", identity: &auth.Identity{UID: "adm-1", Roles: []string{auth.RoleAdmin}}, wantRole: auth.RoleAdmin},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var captured services.DeleteReviewCommand
			service := &stubReviewService{
				deleteFunc: func(ctx context.Context, cmd services.DeleteReviewCommand) error {
					captured = cmd
					return nil
				},
			}

			handler := NewProductHandlers(nil, &stubCatalogService{}, service)
			router := chi.NewRouter()
			router.Route("/products", handler.Routes)

			req := httptest.NewRequest(http.MethodDelete, "/products/prd-1/reviews/rev-1", nil)
			req = req.WithContext(auth.WithIdentity(req.Context(), tc.identity))
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, req)

			if rr.Code != http.StatusOK {
				t.Fatalf("expected status 200, got %d", rr.Code)
			}
			if captured.ReviewID != "rev-1" {
				t.Fatalf("expected review id captured, got %q", captured.ReviewID)
			}
			if captured.ActorRole != tc.wantRole {
				t.Fatalf("expected role %q, got %q", tc.wantRole, captured.ActorRole)
			}
		})
	}
}

func TestProductHandlersDeleteReviewForbidden(t *testing.T) {
	service := &stubReviewService{
		deleteFunc: func(ctx context.Context, cmd services.DeleteReviewCommand) error {
			return services.ErrReviewForbidden
		},
	}

	handler := NewProductHandlers(nil, &stubCatalogService{}, service)
	router := chi.NewRouter()
	router.Route("/products", handler.Routes)

	req := httptest.NewRequest(http.MethodDelete, "/products/prd-1/reviews/rev-1", nil)
	req = req.WithContext(auth.WithIdentity(req.Context(), &auth.Identity{UID: "user-5"}))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected status 403, got %d", rr.Code)
	}
}

type stubReviewService struct {
	createFunc func(ctx context.Context, cmd services.CreateReviewCommand) (services.Review, error)
	listFunc   func(ctx context.Context, productID string, pager services.Pagination) (domain.CursorPage[services.Review], error)
	deleteFunc func(ctx context.Context, cmd services.DeleteReviewCommand) error
}

func (s *stubReviewService) Create(ctx context.Context, cmd services.CreateReviewCommand) (services.Review, error) {
	if s.createFunc != nil {
		return s.createFunc(ctx, cmd)
	}
	return services.Review{}, errors.New("not implemented")
}

func (s *stubReviewService) ListByProduct(ctx context.Context, productID string, pager services.Pagination) (domain.CursorPage[services.Review], error) {
	if s.listFunc != nil {
		return s.listFunc(ctx, productID, pager)
	}
	return domain.CursorPage[services.Review]{}, errors.New("not implemented")
}

func (s *stubReviewService) Delete(ctx context.Context, cmd services.DeleteReviewCommand) error {
	if s.deleteFunc != nil {
		return s.deleteFunc(ctx, cmd)
	}
	return errors.New("not implemented")
}
