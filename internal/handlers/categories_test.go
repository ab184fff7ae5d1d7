package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/greenmart/api/internal/domain"
	"github.com/greenmart/api/internal/services"
)

func TestCategoryHandlersListCategoriesSuccess(t *testing.T) {
	created := time.Date(2025, 1, 5, 8, 0, 0, 0, time.UTC)
	var captured services.CategoryListFilter
	service := &stubCategoryService{
		listFunc: func(ctx context.Context, filter services.CategoryListFilter) (domain.CursorPage[services.Category], error) {
			captured = filter
			return domain.CursorPage[services.Category]{
				Items: []services.Category{
					{
						ID:        "cat-1",
						Name:      "Fresh Vegetables",
						Slug:      "fresh-vegetables",
						Image:     &services.MediaObject{ID: "img-1", URL: "https://cdn.example.com/cat-1.jpg"},
						IsActive:  true,
						CreatedAt: created,
					},
				},
			}, nil
		},
	}

	handler := NewCategoryHandlers(service)
	router := chi.NewRouter()
	router.Route("/categories", handler.Routes)

	req := httptest.NewRequest(http.MethodGet, "/categories", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if !captured.ActiveOnly {
		t.Fatalf("public listing must be active only")
	}

	env := decodeEnvelope(t, rr)
	var payload categoryListPayload
	decodeData(t, env, &payload)
	if len(payload.Items) != 1 {
		t.Fatalf("expected 1 category, got %d", len(payload.Items))
	}
	if payload.Items[0].Slug != "fresh-vegetables" {
		t.Fatalf("unexpected slug %q", payload.Items[0].Slug)
	}
	if payload.Items[0].Image == nil || payload.Items[0].Image.URL != "https://cdn.example.com/cat-1.jpg" {
		t.Fatalf("expected image payload, got %#v", payload.Items[0].Image)
	}
}

func TestCategoryHandlersGetCategorySuccess(t *testing.T) {
	service := &stubCategoryService{
		getBySlugFunc: func(ctx context.Context, slug string) (services.Category, error) {
			return services.Category{ID: "cat-1", Name: "Fruits", Slug: slug, IsActive: true}, nil
		},
	}

	handler := NewCategoryHandlers(service)
	router := chi.NewRouter()
	router.Route("/categories", handler.Routes)

	req := httptest.NewRequest(http.MethodGet, "/categories/fruits", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
}

func TestCategoryHandlersGetCategoryHidesInactive(t *testing.T) {
	service := &stubCategoryService{
		getBySlugFunc: func(ctx context.Context, slug string) (services.Category, error) {
			return services.Category{ID: "cat-9", Slug: slug, IsActive: false}, nil
		},
	}

	handler := NewCategoryHandlers(service)
	router := chi.NewRouter()
	router.Route("/categories", handler.Routes)

	req := httptest.NewRequest(http.MethodGet, "/categories/retired", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rr.Code)
	}
	if env := decodeEnvelope(t, rr); env.Error != "category_not_found" {
		t.Fatalf("expected category_not_found, got %q", env.Error)
	}
}

func TestCategoryHandlersGetCategoryNotFound(t *testing.T) {
	service := &stubCategoryService{
		getBySlugFunc: func(ctx context.Context, slug string) (services.Category, error) {
			return services.Category{}, services.ErrCategoryNotFound
		},
	}

	handler := NewCategoryHandlers(service)
	router := chi.NewRouter()
	router.Route("/categories", handler.Routes)

	req := httptest.NewRequest(http.MethodGet, "/categories/missing", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rr.Code)
	}
}

type stubCategoryService struct {
	createFunc    func(ctx context.Context, cmd services.CreateCategoryCommand) (services.Category, error)
	updateFunc    func(ctx context.Context, cmd services.UpdateCategoryCommand) (services.Category, error)
	deleteFunc    func(ctx context.Context, categoryID string) error
	getFunc       func(ctx context.Context, categoryID string) (services.Category, error)
	getBySlugFunc func(ctx context.Context, slug string) (services.Category, error)
	listFunc      func(ctx context.Context, filter services.CategoryListFilter) (domain.CursorPage[services.Category], error)
}

func (s *stubCategoryService) Create(ctx context.Context, cmd services.CreateCategoryCommand) (services.Category, error) {
	if s.createFunc != nil {
		return s.createFunc(ctx, cmd)
	}
	return services.Category{}, errors.New("not implemented")
}

func (s *stubCategoryService) Update(ctx context.Context, cmd services.UpdateCategoryCommand) (services.Category, error) {
	if s.updateFunc != nil {
		return s.updateFunc(ctx, cmd)
	}
	return services.Category{}, errors.New("not implemented")
}

func (s *stubCategoryService) Delete(ctx context.Context, categoryID string) error {
	if s.deleteFunc != nil {
		return s.deleteFunc(ctx, categoryID)
	}
	return errors.New("not implemented")
}

func (s *stubCategoryService) Get(ctx context.Context, categoryID string) (services.Category, error) {
	if s.getFunc != nil {
		return s.getFunc(ctx, categoryID)
	}
	return services.Category{}, errors.New("not implemented")
}

func (s *stubCategoryService) GetBySlug(ctx context.Context, slug string) (services.Category, error) {
	if s.getBySlugFunc != nil {
		return s.getBySlugFunc(ctx, slug)
	}
	return services.Category{}, errors.New("not implemented")
}

func (s *stubCategoryService) List(ctx context.Context, filter services.CategoryListFilter) (domain.CursorPage[services.Category], error) {
	if s.listFunc != nil {
		return s.listFunc(ctx, filter)
	}
	return domain.CursorPage[services.Category]{}, errors.New("not implemented")
}
