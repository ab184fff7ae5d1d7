package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/greenmart/api/internal/platform/auth"
	"github.com/greenmart/api/internal/platform/httpx"
	"github.com/greenmart/api/internal/services"
)

const (
	maxCatalogBodySize   = 64 * 1024
	maxImageBodySize     = 5 * 1024 * 1024
	defaultLowStockLimit = 20
	maxLowStockLimit     = 100
)

// AdminCatalogHandlers exposes back-office product and category management.
type AdminCatalogHandlers struct {
	catalog    services.CatalogService
	categories services.CategoryService
	audit      services.AuditLogService
}

// NewAdminCatalogHandlers constructs admin catalog handlers. The audit
// service may be nil; mutations are then not recorded.
func NewAdminCatalogHandlers(catalog services.CatalogService, categories services.CategoryService, audit services.AuditLogService) *AdminCatalogHandlers {
	return &AdminCatalogHandlers{catalog: catalog, categories: categories, audit: audit}
}

// Routes registers product and category management endpoints. Callers mount
// this inside a group already guarded by the admin authenticator.
func (h *AdminCatalogHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/products", h.listProducts)
	r.Post("/products", h.createProduct)
	r.Get("/products/low-stock", h.listLowStock)
	r.Get("/products/{productID}", h.getProduct)
	r.Patch("/products/{productID}", h.updateProduct)
	r.Delete("/products/{productID}", h.deleteProduct)
	r.Post("/products/{productID}/images", h.uploadImage)
	r.Delete("/products/{productID}/images/{imageID}", h.deleteImage)

	r.Post("/categories", h.createCategory)
	r.Patch("/categories/{categoryID}", h.updateCategory)
	r.Delete("/categories/{categoryID}", h.deleteCategory)
}

type createProductRequest struct {
	Name          string `json:"name" validate:"required,min=2,max=200"`
	Description   string `json:"description" validate:"max=20000"`
	Price         int64  `json:"price" validate:"required,min=1"`
	DiscountPrice *int64 `json:"discount_price" validate:"omitempty,min=1"`
	Stock         int64  `json:"stock" validate:"min=0"`
	LowStockAlert int64  `json:"low_stock_alert" validate:"min=0"`
	CategoryID    string `json:"category_id" validate:"required"`
	IsPublished   bool   `json:"is_published"`
	IsFeatured    bool   `json:"is_featured"`
}

type updateProductRequest struct {
	Name          *string `json:"name" validate:"omitempty,min=2,max=200"`
	Description   *string `json:"description" validate:"omitempty,max=20000"`
	Price         *int64  `json:"price" validate:"omitempty,min=1"`
	DiscountPrice *int64  `json:"discount_price" validate:"omitempty,min=1"`
	Stock         *int64  `json:"stock" validate:"omitempty,min=0"`
	LowStockAlert *int64  `json:"low_stock_alert" validate:"omitempty,min=0"`
	CategoryID    *string `json:"category_id"`
	IsPublished   *bool   `json:"is_published"`
	IsFeatured    *bool   `json:"is_featured"`
}

type createCategoryRequest struct {
	Name        string `json:"name" validate:"required,min=2,max=120"`
	Description string `json:"description" validate:"max=2000"`
	IsActive    bool   `json:"is_active"`
}

type updateCategoryRequest struct {
	Name        *string `json:"name" validate:"omitempty,min=2,max=120"`
	Description *string `json:"description" validate:"omitempty,max=2000"`
	IsActive    *bool   `json:"is_active"`
}

func (h *AdminCatalogHandlers) listProducts(w http.ResponseWriter, r *http.Request) {
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

	// Admin listing sees unpublished products; deleted ones only on request.
	filter := services.ProductListFilter{
		CategoryID:     strings.TrimSpace(query.Get("category")),
		Search:         strings.TrimSpace(query.Get("search")),
		IncludeDeleted: strings.EqualFold(strings.TrimSpace(query.Get("include_deleted")), "true"),
		Pagination: services.Pagination{
			PageSize:  pageSize,
			PageToken: strings.TrimSpace(query.Get("page_token")),
		},
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

func (h *AdminCatalogHandlers) getProduct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_service_unavailable", "catalog service unavailable", http.StatusServiceUnavailable))
		return
	}

	productID := strings.TrimSpace(chi.URLParam(r, "productID"))
	if productID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "product id is required", http.StatusBadRequest))
		return
	}

	product, err := h.catalog.GetProduct(ctx, productID)
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}

	httpx.WriteSuccess(w, http.StatusOK, "product retrieved", buildProductPayload(product))
}

func (h *AdminCatalogHandlers) createProduct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_service_unavailable", "catalog service unavailable", http.StatusServiceUnavailable))
		return
	}
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	body, err := readLimitedBody(r, maxCatalogBodySize)
	if err != nil {
		writeBodyError(w, r, err)
		return
	}
	var req createProductRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON body", http.StatusBadRequest))
		return
	}
	if err := validate.Struct(req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", validationError(err), http.StatusBadRequest))
		return
	}

	product, err := h.catalog.CreateProduct(ctx, services.CreateProductCommand{
		Name:          strings.TrimSpace(req.Name),
		Description:   req.Description,
		Price:         req.Price,
		DiscountPrice: req.DiscountPrice,
		Stock:         req.Stock,
		LowStockAlert: req.LowStockAlert,
		CategoryID:    strings.TrimSpace(req.CategoryID),
		IsPublished:   req.IsPublished,
		IsFeatured:    req.IsFeatured,
		ActorID:       strings.TrimSpace(identity.UID),
	})
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}

	h.recordAudit(r, identity, "product.create", "product", product.ID, map[string]any{
		"name":  product.Name,
		"price": product.Price,
	})

	httpx.WriteSuccess(w, http.StatusCreated, "product created", buildProductPayload(product))
}

func (h *AdminCatalogHandlers) updateProduct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_service_unavailable", "catalog service unavailable", http.StatusServiceUnavailable))
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

	body, err := readLimitedBody(r, maxCatalogBodySize)
	if err != nil {
		writeBodyError(w, r, err)
		return
	}
	var req updateProductRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON body", http.StatusBadRequest))
		return
	}
	if err := validate.Struct(req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", validationError(err), http.StatusBadRequest))
		return
	}

	// "discount_price": null clears the discount; an absent key leaves it.
	var rawFields map[string]json.RawMessage
	clearDiscount := false
	if err := json.Unmarshal(body, &rawFields); err == nil {
		if raw, present := rawFields["discount_price"]; present && string(raw) == "null" {
			clearDiscount = true
		}
	}

	product, err := h.catalog.UpdateProduct(ctx, services.UpdateProductCommand{
		ProductID:     productID,
		Name:          req.Name,
		Description:   req.Description,
		Price:         req.Price,
		DiscountPrice: req.DiscountPrice,
		ClearDiscount: clearDiscount,
		Stock:         req.Stock,
		LowStockAlert: req.LowStockAlert,
		CategoryID:    req.CategoryID,
		IsPublished:   req.IsPublished,
		IsFeatured:    req.IsFeatured,
		ActorID:       strings.TrimSpace(identity.UID),
	})
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}

	h.recordAudit(r, identity, "product.update", "product", product.ID, map[string]any{
		"price":        product.Price,
		"is_published": product.IsPublished,
	})

	httpx.WriteSuccess(w, http.StatusOK, "product updated", buildProductPayload(product))
}

func (h *AdminCatalogHandlers) deleteProduct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_service_unavailable", "catalog service unavailable", http.StatusServiceUnavailable))
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

	if err := h.catalog.DeleteProduct(ctx, productID); err != nil {
		writeCatalogError(ctx, w, err)
		return
	}

	h.recordAudit(r, identity, "product.delete", "product", productID, nil)

	httpx.WriteSuccess(w, http.StatusOK, "product deleted", nil)
}

func (h *AdminCatalogHandlers) listLowStock(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_service_unavailable", "catalog service unavailable", http.StatusServiceUnavailable))
		return
	}

	limit, err := parsePageSize(r.URL.Query().Get("limit"), defaultLowStockLimit, maxLowStockLimit)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "limit must be an integer", http.StatusBadRequest))
		return
	}

	products, err := h.catalog.ListLowStock(ctx, limit)
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}

	items := make([]productPayload, 0, len(products))
	for _, product := range products {
		items = append(items, buildProductPayload(product))
	}

	httpx.WriteSuccess(w, http.StatusOK, "low stock products retrieved", productListPayload{Items: items})
}

func (h *AdminCatalogHandlers) uploadImage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_service_unavailable", "catalog service unavailable", http.StatusServiceUnavailable))
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

	contentType := strings.TrimSpace(r.Header.Get("Content-Type"))
	if !strings.HasPrefix(contentType, "image/") {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "content type must be an image", http.StatusBadRequest))
		return
	}

	data, err := readLimitedBody(r, maxImageBodySize)
	if err != nil {
		writeBodyError(w, r, err)
		return
	}

	product, err := h.catalog.AttachImage(ctx, services.AttachProductImageCommand{
		ProductID:   productID,
		Data:        data,
		ContentType: contentType,
	})
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}

	h.recordAudit(r, identity, "product.image.attach", "product", productID, map[string]any{
		"images": len(product.Images),
	})

	httpx.WriteSuccess(w, http.StatusCreated, "image uploaded", buildProductPayload(product))
}

func (h *AdminCatalogHandlers) deleteImage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_service_unavailable", "catalog service unavailable", http.StatusServiceUnavailable))
		return
	}
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	productID := strings.TrimSpace(chi.URLParam(r, "productID"))
	imageID := strings.TrimSpace(chi.URLParam(r, "imageID"))
	if productID == "" || imageID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "product id and image id are required", http.StatusBadRequest))
		return
	}

	product, err := h.catalog.RemoveImage(ctx, services.RemoveProductImageCommand{
		ProductID: productID,
		ImageID:   imageID,
	})
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}

	h.recordAudit(r, identity, "product.image.remove", "product", productID, map[string]any{
		"image_id": imageID,
	})

	httpx.WriteSuccess(w, http.StatusOK, "image removed", buildProductPayload(product))
}

func (h *AdminCatalogHandlers) createCategory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.categories == nil {
		httpx.WriteError(ctx, w, httpx.NewError("category_service_unavailable", "category service unavailable", http.StatusServiceUnavailable))
		return
	}
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	body, err := readLimitedBody(r, maxCatalogBodySize)
	if err != nil {
		writeBodyError(w, r, err)
		return
	}
	var req createCategoryRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON body", http.StatusBadRequest))
		return
	}
	if err := validate.Struct(req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", validationError(err), http.StatusBadRequest))
		return
	}

	category, err := h.categories.Create(ctx, services.CreateCategoryCommand{
		Name:        strings.TrimSpace(req.Name),
		Description: req.Description,
		IsActive:    req.IsActive,
	})
	if err != nil {
		writeCategoryError(ctx, w, err)
		return
	}

	h.recordAudit(r, identity, "category.create", "category", category.ID, map[string]any{
		"name": category.Name,
	})

	httpx.WriteSuccess(w, http.StatusCreated, "category created", buildCategoryPayload(category))
}

func (h *AdminCatalogHandlers) updateCategory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.categories == nil {
		httpx.WriteError(ctx, w, httpx.NewError("category_service_unavailable", "category service unavailable", http.StatusServiceUnavailable))
		return
	}
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	categoryID := strings.TrimSpace(chi.URLParam(r, "categoryID"))
	if categoryID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "category id is required", http.StatusBadRequest))
		return
	}

	body, err := readLimitedBody(r, maxCatalogBodySize)
	if err != nil {
		writeBodyError(w, r, err)
		return
	}
	var req updateCategoryRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON body", http.StatusBadRequest))
		return
	}
	if err := validate.Struct(req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", validationError(err), http.StatusBadRequest))
		return
	}

	category, err := h.categories.Update(ctx, services.UpdateCategoryCommand{
		CategoryID:  categoryID,
		Name:        req.Name,
		Description: req.Description,
		IsActive:    req.IsActive,
	})
	if err != nil {
		writeCategoryError(ctx, w, err)
		return
	}

	h.recordAudit(r, identity, "category.update", "category", category.ID, map[string]any{
		"is_active": category.IsActive,
	})

	httpx.WriteSuccess(w, http.StatusOK, "category updated", buildCategoryPayload(category))
}

func (h *AdminCatalogHandlers) deleteCategory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.categories == nil {
		httpx.WriteError(ctx, w, httpx.NewError("category_service_unavailable", "category service unavailable", http.StatusServiceUnavailable))
		return
	}
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	categoryID := strings.TrimSpace(chi.URLParam(r, "categoryID"))
	if categoryID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "category id is required", http.StatusBadRequest))
		return
	}

	if err := h.categories.Delete(ctx, categoryID); err != nil {
		writeCategoryError(ctx, w, err)
		return
	}

	h.recordAudit(r, identity, "category.delete", "category", categoryID, nil)

	httpx.WriteSuccess(w, http.StatusOK, "category deleted", nil)
}

func (h *AdminCatalogHandlers) recordAudit(r *http.Request, identity *auth.Identity, action, entityType, entityID string, changes map[string]any) {
	if h.audit == nil {
		return
	}
	h.audit.Record(r.Context(), services.AuditLogRecord{
		ActorID:    strings.TrimSpace(identity.UID),
		ActorRole:  auth.RoleAdmin,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Changes:    changes,
		IPAddress:  clientIP(r),
		OccurredAt: time.Now().UTC(),
	})
}
