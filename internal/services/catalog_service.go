package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/oklog/ulid/v2"

	domain "github.com/greenmart/api/internal/domain"
	"github.com/greenmart/api/internal/platform/textutil"
	"github.com/greenmart/api/internal/repositories"
)

const (
	productIDPrefix = "prd_"

	maxMetaTitleLen       = 60
	maxMetaDescriptionLen = 160
	maxSEOKeywords        = 10
	slugSuffixAttempts    = 4
	productImageFolder    = "products"
)

var (
	// ErrCatalogInvalidInput signals the caller provided invalid product data.
	ErrCatalogInvalidInput = errors.New("catalog: invalid input")
	// ErrProductNotFound indicates the product could not be located.
	ErrProductNotFound = errors.New("catalog: product not found")
	// ErrCatalogConflict indicates slug collisions or concurrent modification.
	ErrCatalogConflict = errors.New("catalog: conflict")
)

// MediaStore is the blob-storage collaborator used for catalog images.
type MediaStore interface {
	Upload(ctx context.Context, data []byte, folder, contentType string) (domain.MediaObject, error)
	Delete(ctx context.Context, objectID string) error
}

// CatalogServiceDeps bundles collaborators required to construct the catalog service.
type CatalogServiceDeps struct {
	Products    repositories.ProductRepository
	Categories  repositories.CategoryRepository
	Media       MediaStore
	Clock       func() time.Time
	IDGenerator func() string
}

type catalogService struct {
	products   repositories.ProductRepository
	categories repositories.CategoryRepository
	media      MediaStore
	clock      func() time.Time
	newID      func() string

	richText  *bluemonday.Policy
	plainText *bluemonday.Policy
}

// NewCatalogService wires dependencies into a concrete CatalogService implementation.
func NewCatalogService(deps CatalogServiceDeps) (CatalogService, error) {
	if deps.Products == nil {
		return nil, errors.New("catalog service: product repository is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string { return ulid.Make().String() }
	}

	return &catalogService{
		products:   deps.Products,
		categories: deps.Categories,
		media:      deps.Media,
		clock:      func() time.Time { return clock().UTC() },
		newID:      idGen,
		richText:   bluemonday.UGCPolicy(),
		plainText:  bluemonday.StrictPolicy(),
	}, nil
}

func (s *catalogService) CreateProduct(ctx context.Context, cmd CreateProductCommand) (Product, error) {
	name := strings.TrimSpace(cmd.Name)
	if name == "" {
		return Product{}, fmt.Errorf("%w: name is required", ErrCatalogInvalidInput)
	}
	if cmd.Price <= 0 {
		return Product{}, fmt.Errorf("%w: price must be positive", ErrCatalogInvalidInput)
	}
	if cmd.DiscountPrice != nil && (*cmd.DiscountPrice <= 0 || *cmd.DiscountPrice >= cmd.Price) {
		return Product{}, fmt.Errorf("%w: discount price must be positive and below the list price", ErrCatalogInvalidInput)
	}
	if cmd.Stock < 0 || cmd.LowStockAlert < 0 {
		return Product{}, fmt.Errorf("%w: stock values must not be negative", ErrCatalogInvalidInput)
	}

	if categoryID := strings.TrimSpace(cmd.CategoryID); categoryID != "" && s.categories != nil {
		if _, err := s.categories.FindByID(ctx, categoryID); err != nil {
			return Product{}, fmt.Errorf("%w: category %s: %v", ErrCatalogInvalidInput, categoryID, err)
		}
	}

	slug, err := s.uniqueProductSlug(ctx, name, "")
	if err != nil {
		return Product{}, err
	}

	now := s.clock()
	description := s.richText.Sanitize(cmd.Description)
	product := domain.Product{
		ID:            productIDPrefix + s.newID(),
		Name:          name,
		Slug:          slug,
		Description:   description,
		Price:         cmd.Price,
		DiscountPrice: cmd.DiscountPrice,
		Stock:         cmd.Stock,
		LowStockAlert: cmd.LowStockAlert,
		IsPublished:   cmd.IsPublished,
		IsFeatured:    cmd.IsFeatured,
		CategoryID:    strings.TrimSpace(cmd.CategoryID),
		SEO:           s.deriveSEO(name, description),
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.products.Insert(ctx, product); err != nil {
		return Product{}, s.mapRepositoryError(err)
	}
	return product, nil
}

func (s *catalogService) UpdateProduct(ctx context.Context, cmd UpdateProductCommand) (Product, error) {
	productID := strings.TrimSpace(cmd.ProductID)
	if productID == "" {
		return Product{}, fmt.Errorf("%w: product id is required", ErrCatalogInvalidInput)
	}

	product, err := s.products.FindByID(ctx, productID)
	if err != nil {
		return Product{}, s.mapRepositoryError(err)
	}

	if cmd.Name != nil {
		name := strings.TrimSpace(*cmd.Name)
		if name == "" {
			return Product{}, fmt.Errorf("%w: name must not be empty", ErrCatalogInvalidInput)
		}
		if name != product.Name {
			slug, err := s.uniqueProductSlug(ctx, name, product.ID)
			if err != nil {
				return Product{}, err
			}
			product.Slug = slug
		}
		product.Name = name
	}
	if cmd.Description != nil {
		product.Description = s.richText.Sanitize(*cmd.Description)
	}
	if cmd.Price != nil {
		if *cmd.Price <= 0 {
			return Product{}, fmt.Errorf("%w: price must be positive", ErrCatalogInvalidInput)
		}
		product.Price = *cmd.Price
	}
	if cmd.ClearDiscount {
		product.DiscountPrice = nil
	} else if cmd.DiscountPrice != nil {
		product.DiscountPrice = cmd.DiscountPrice
	}
	if product.DiscountPrice != nil && (*product.DiscountPrice <= 0 || *product.DiscountPrice >= product.Price) {
		return Product{}, fmt.Errorf("%w: discount price must be positive and below the list price", ErrCatalogInvalidInput)
	}
	if cmd.Stock != nil {
		if *cmd.Stock < 0 {
			return Product{}, fmt.Errorf("%w: stock must not be negative", ErrCatalogInvalidInput)
		}
		product.Stock = *cmd.Stock
	}
	if cmd.LowStockAlert != nil {
		if *cmd.LowStockAlert < 0 {
			return Product{}, fmt.Errorf("%w: low stock alert must not be negative", ErrCatalogInvalidInput)
		}
		product.LowStockAlert = *cmd.LowStockAlert
	}
	if cmd.CategoryID != nil {
		categoryID := strings.TrimSpace(*cmd.CategoryID)
		if categoryID != "" && s.categories != nil {
			if _, err := s.categories.FindByID(ctx, categoryID); err != nil {
				return Product{}, fmt.Errorf("%w: category %s: %v", ErrCatalogInvalidInput, categoryID, err)
			}
		}
		product.CategoryID = categoryID
	}
	if cmd.IsPublished != nil {
		product.IsPublished = *cmd.IsPublished
	}
	if cmd.IsFeatured != nil {
		product.IsFeatured = *cmd.IsFeatured
	}

	product.SEO = s.deriveSEO(product.Name, product.Description)
	product.UpdatedAt = s.clock()

	if err := s.products.Update(ctx, product); err != nil {
		return Product{}, s.mapRepositoryError(err)
	}
	return product, nil
}

func (s *catalogService) DeleteProduct(ctx context.Context, productID string) error {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return fmt.Errorf("%w: product id is required", ErrCatalogInvalidInput)
	}
	if err := s.products.SoftDelete(ctx, productID, s.clock()); err != nil {
		return s.mapRepositoryError(err)
	}
	return nil
}

func (s *catalogService) GetProduct(ctx context.Context, productID string) (Product, error) {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return Product{}, fmt.Errorf("%w: product id is required", ErrCatalogInvalidInput)
	}
	product, err := s.products.FindByID(ctx, productID)
	if err != nil {
		return Product{}, s.mapRepositoryError(err)
	}
	return product, nil
}

func (s *catalogService) GetProductBySlug(ctx context.Context, slug string) (Product, error) {
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return Product{}, fmt.Errorf("%w: slug is required", ErrCatalogInvalidInput)
	}
	product, err := s.products.FindBySlug(ctx, slug)
	if err != nil {
		return Product{}, s.mapRepositoryError(err)
	}
	return product, nil
}

func (s *catalogService) ListProducts(ctx context.Context, filter ProductListFilter) (domain.CursorPage[Product], error) {
	page, err := s.products.List(ctx, filter)
	if err != nil {
		return domain.CursorPage[Product]{}, s.mapRepositoryError(err)
	}
	return page, nil
}

func (s *catalogService) ListLowStock(ctx context.Context, limit int) ([]Product, error) {
	if limit <= 0 {
		limit = 20
	}
	products, err := s.products.ListLowStock(ctx, limit)
	if err != nil {
		return nil, s.mapRepositoryError(err)
	}
	return products, nil
}

func (s *catalogService) AttachImage(ctx context.Context, cmd AttachProductImageCommand) (Product, error) {
	if s.media == nil {
		return Product{}, errors.New("catalog service: media store not configured")
	}
	productID := strings.TrimSpace(cmd.ProductID)
	if productID == "" {
		return Product{}, fmt.Errorf("%w: product id is required", ErrCatalogInvalidInput)
	}
	if len(cmd.Data) == 0 {
		return Product{}, fmt.Errorf("%w: image payload is required", ErrCatalogInvalidInput)
	}

	product, err := s.products.FindByID(ctx, productID)
	if err != nil {
		return Product{}, s.mapRepositoryError(err)
	}

	media, err := s.media.Upload(ctx, cmd.Data, productImageFolder, cmd.ContentType)
	if err != nil {
		return Product{}, fmt.Errorf("catalog: upload image: %w", err)
	}

	product.Images = append(product.Images, media)
	product.UpdatedAt = s.clock()
	if err := s.products.Update(ctx, product); err != nil {
		// Best effort rollback of the orphaned object.
		_ = s.media.Delete(ctx, media.ID)
		return Product{}, s.mapRepositoryError(err)
	}
	return product, nil
}

func (s *catalogService) RemoveImage(ctx context.Context, cmd RemoveProductImageCommand) (Product, error) {
	if s.media == nil {
		return Product{}, errors.New("catalog service: media store not configured")
	}
	productID := strings.TrimSpace(cmd.ProductID)
	imageID := strings.TrimSpace(cmd.ImageID)
	if productID == "" || imageID == "" {
		return Product{}, fmt.Errorf("%w: product id and image id are required", ErrCatalogInvalidInput)
	}

	product, err := s.products.FindByID(ctx, productID)
	if err != nil {
		return Product{}, s.mapRepositoryError(err)
	}

	kept := product.Images[:0]
	found := false
	for _, img := range product.Images {
		if img.ID == imageID {
			found = true
			continue
		}
		kept = append(kept, img)
	}
	if !found {
		return Product{}, fmt.Errorf("%w: image %s", ErrProductNotFound, imageID)
	}
	product.Images = kept
	product.UpdatedAt = s.clock()

	if err := s.products.Update(ctx, product); err != nil {
		return Product{}, s.mapRepositoryError(err)
	}
	if err := s.media.Delete(ctx, imageID); err != nil {
		return Product{}, fmt.Errorf("catalog: delete image: %w", err)
	}
	return product, nil
}

// uniqueProductSlug derives the slug from the name and appends a short random
// suffix when another product already owns it.
func (s *catalogService) uniqueProductSlug(ctx context.Context, name, selfID string) (string, error) {
	base := textutil.Slugify(name)
	if base == "" {
		return "", fmt.Errorf("%w: name yields an empty slug", ErrCatalogInvalidInput)
	}

	candidate := base
	for attempt := 0; attempt < slugSuffixAttempts; attempt++ {
		existing, err := s.products.FindBySlug(ctx, candidate)
		if err != nil {
			var repoErr repositories.RepositoryError
			if errors.As(err, &repoErr) && repoErr.IsNotFound() {
				return candidate, nil
			}
			return "", s.mapRepositoryError(err)
		}
		if selfID != "" && existing.ID == selfID {
			return candidate, nil
		}
		id := strings.ToLower(s.newID())
		if len(id) > 6 {
			id = id[len(id)-6:]
		}
		candidate = base + "-" + id
	}
	return "", fmt.Errorf("%w: could not derive a unique slug for %q", ErrCatalogConflict, name)
}

func (s *catalogService) deriveSEO(name, description string) domain.SEOMetadata {
	title := name
	if len(title) > maxMetaTitleLen {
		title = strings.TrimSpace(title[:maxMetaTitleLen])
	}

	plain := strings.Join(strings.Fields(s.plainText.Sanitize(description)), " ")
	if len(plain) > maxMetaDescriptionLen {
		plain = strings.TrimSpace(plain[:maxMetaDescriptionLen])
	}

	var keywords []string
	for _, word := range strings.Fields(strings.ToLower(name)) {
		if len(word) < 3 {
			continue
		}
		keywords = append(keywords, word)
		if len(keywords) == maxSEOKeywords {
			break
		}
	}

	return domain.SEOMetadata{
		MetaTitle:       title,
		MetaDescription: plain,
		Keywords:        keywords,
	}
}

func (s *catalogService) mapRepositoryError(err error) error {
	if err == nil {
		return nil
	}
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %v", ErrProductNotFound, err)
		case repoErr.IsConflict():
			return fmt.Errorf("%w: %v", ErrCatalogConflict, err)
		case repoErr.IsUnavailable():
			return fmt.Errorf("catalog: repository unavailable: %w", err)
		}
	}
	return err
}
