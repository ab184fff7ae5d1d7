package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	domain "github.com/greenmart/api/internal/domain"
	"github.com/greenmart/api/internal/platform/auth"
	"github.com/greenmart/api/internal/platform/httpx"
	"github.com/greenmart/api/internal/repositories"
	"github.com/greenmart/api/internal/services"
)

const (
	defaultProductPageSize = 20
	maxProductPageSize     = 100
)

var productSorts = map[string]repositories.ProductSort{
	"newest":       repositories.ProductSortNewest,
	"price_asc":    repositories.ProductSortPriceAsc,
	"price_desc":   repositories.ProductSortPriceDesc,
	"best_selling": repositories.ProductSortBestSelling,
	"top_rated":    repositories.ProductSortTopRated,
}

// ProductHandlers exposes the public catalog surface: product listing, detail
// by slug, and product reviews.
type ProductHandlers struct {
	authn   *auth.Authenticator
	catalog services.CatalogService
	reviews services.ReviewService
}

// NewProductHandlers constructs public catalog handlers. The authenticator
// guards review writes only; all reads are anonymous.
func NewProductHandlers(authn *auth.Authenticator, catalog services.CatalogService, reviews services.ReviewService) *ProductHandlers {
	return &ProductHandlers{
		authn:   authn,
		catalog: catalog,
		reviews: reviews,
	}
}

// Routes registers the /products endpoints.
func (h *ProductHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/", h.listProducts)
	r.Get("/{slug}", h.getProduct)
	r.Get("/{productID}/reviews", h.listReviews)

	r.Group(func(g chi.Router) {
		if h.authn != nil {
			g.Use(h.authn.RequireUser())
		}
		g.Post("/{productID}/reviews", h.createReview)
		g.Delete("/{productID}/reviews/{reviewID}", h.deleteReview)
	})
}

func (h *ProductHandlers) listProducts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_service_unavailable", "catalog service unavailable", http.StatusServiceUnavailable))
		return
	}

	query := r.URL.Query()

	pageSize, err := parsePageSize(query.Get("page_size"), defaultProductPageSize, maxProductPageSize)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	filter := services.ProductListFilter{
		CategoryID:    strings.TrimSpace(query.Get("category")),
		Search:        strings.TrimSpace(query.Get("search")),
		PublishedOnly: true,
		Pagination: services.Pagination{
			PageSize:  pageSize,
			PageToken: strings.TrimSpace(query.Get("page_token")),
		},
	}

	if raw := strings.TrimSpace(query.Get("featured")); raw != "" {
		featured, err := strconv.ParseBool(raw)
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "featured must be a boolean", http.StatusBadRequest))
			return
		}
		filter.Featured = &featured
	}

	var priceRange domain.RangeQuery[int64]
	if raw := strings.TrimSpace(query.Get("price_min")); raw != "" {
		min, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || min < 0 {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "price_min must be a non-negative integer", http.StatusBadRequest))
			return
		}
		priceRange.From = &min
	}
	if raw := strings.TrimSpace(query.Get("price_max")); raw != "" {
		max, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || max < 0 {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "price_max must be a non-negative integer", http.StatusBadRequest))
			return
		}
		priceRange.To = &max
	}
	filter.PriceRange = priceRange

	if raw := strings.TrimSpace(query.Get("sort")); raw != "" {
		sort, ok := productSorts[strings.ToLower(raw)]
		if !ok {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "sort must be one of newest, price_asc, price_desc, best_selling, top_rated", http.StatusBadRequest))
			return
		}
		filter.Sort = sort
	}

	page, err := h.catalog.ListProducts(ctx, filter)
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}

	items := make([]productPayload, 0, len(page.Items))
	for _, product := range page.Items {
		items = append(items, buildProductPayload(product))
	}

	httpx.WriteSuccess(w, http.StatusOK, "products retrieved", productListPayload{
		Items:         items,
		NextPageToken: page.NextPageToken,
	})
}

func (h *ProductHandlers) getProduct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_service_unavailable", "catalog service unavailable", http.StatusServiceUnavailable))
		return
	}

	slug := strings.TrimSpace(chi.URLParam(r, "slug"))
	if slug == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "product slug is required", http.StatusBadRequest))
		return
	}

	product, err := h.catalog.GetProductBySlug(ctx, slug)
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}
	if !product.Purchasable() {
		httpx.WriteError(ctx, w, httpx.NewError("product_not_found", "product not found", http.StatusNotFound))
		return
	}

	httpx.WriteSuccess(w, http.StatusOK, "product retrieved", buildProductPayload(product))
}

type productListPayload struct {
	Items         []productPayload `json:"items"`
	NextPageToken string           `json:"next_page_token,omitempty"`
}

type productPayload struct {
	ID            string         `json:"id"`
	Name          string         `json:"name"`
	Slug          string         `json:"slug"`
	Description   string         `json:"description,omitempty"`
	Price         int64          `json:"price"`
	DiscountPrice *int64         `json:"discount_price,omitempty"`
	Stock         int64          `json:"stock"`
	TotalSold     int64          `json:"total_sold"`
	IsPublished   bool           `json:"is_published"`
	IsFeatured    bool           `json:"is_featured"`
	RatingAvg     float64        `json:"rating_avg"`
	RatingCount   int64          `json:"rating_count"`
	CategoryID    string         `json:"category_id,omitempty"`
	Images        []mediaPayload `json:"images"`
	SEO           seoPayload     `json:"seo"`
	CreatedAt     string         `json:"created_at"`
	UpdatedAt     string         `json:"updated_at,omitempty"`
}

type seoPayload struct {
	MetaTitle       string   `json:"meta_title,omitempty"`
	MetaDescription string   `json:"meta_description,omitempty"`
	Keywords        []string `json:"keywords,omitempty"`
}

func buildProductPayload(product services.Product) productPayload {
	return productPayload{
		ID:            product.ID,
		Name:          product.Name,
		Slug:          product.Slug,
		Description:   product.Description,
		Price:         product.Price,
		DiscountPrice: product.DiscountPrice,
		Stock:         product.Stock,
		TotalSold:     product.TotalSold,
		IsPublished:   product.IsPublished,
		IsFeatured:    product.IsFeatured,
		RatingAvg:     product.RatingAvg,
		RatingCount:   product.RatingCount,
		CategoryID:    product.CategoryID,
		Images:        buildMediaPayloads(product.Images),
		SEO: seoPayload{
			MetaTitle:       product.SEO.MetaTitle,
			MetaDescription: product.SEO.MetaDescription,
			Keywords:        product.SEO.Keywords,
		},
		CreatedAt: formatTime(product.CreatedAt),
		UpdatedAt: formatTime(product.UpdatedAt),
	}
}

func writeCatalogError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrCatalogInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrProductNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("product_not_found", "product not found", http.StatusNotFound))
	case errors.Is(err, services.ErrCategoryNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("category_not_found", "category not found", http.StatusNotFound))
	case errors.Is(err, services.ErrCatalogConflict):
		httpx.WriteError(ctx, w, httpx.NewError("catalog_conflict", err.Error(), http.StatusConflict))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("catalog_error", "failed to process catalog request", http.StatusInternalServerError))
	}
}
