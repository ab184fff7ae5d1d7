package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"

	domain "github.com/greenmart/api/internal/domain"
	pfirestore "github.com/greenmart/api/internal/platform/firestore"
	"github.com/greenmart/api/internal/platform/pagination"
	"github.com/greenmart/api/internal/repositories"
)

const productCollection = "products"

// ProductRepository persists catalog products. The stock and totalSold
// counters on product documents are written exclusively by the StockLedger;
// this repository copies them through unchanged on full-document saves.
type ProductRepository struct {
	provider *pfirestore.Provider
	base     *pfirestore.BaseRepository[productDocument]
}

// NewProductRepository constructs a Firestore-backed product repository.
func NewProductRepository(provider *pfirestore.Provider) (*ProductRepository, error) {
	if provider == nil {
		return nil, errors.New("product repository requires firestore provider")
	}
	base := pfirestore.NewBaseRepository[productDocument](provider, productCollection, nil, nil)
	return &ProductRepository{provider: provider, base: base}, nil
}

func (r *ProductRepository) Insert(ctx context.Context, product domain.Product) error {
	ref, err := r.base.DocumentRef(ctx, product.ID)
	if err != nil {
		return err
	}
	if err := createDocument(ctx, ref, fromDomainProduct(product)); err != nil {
		return pfirestore.WrapError("products.insert", err)
	}
	return nil
}

func (r *ProductRepository) Update(ctx context.Context, product domain.Product) error {
	ref, err := r.base.DocumentRef(ctx, product.ID)
	if err != nil {
		return err
	}
	snap, err := getSnapshot(ctx, ref)
	if err != nil {
		return pfirestore.WrapError("products.update", err)
	}
	var current productDocument
	if err := snap.DataTo(&current); err != nil {
		return fmt.Errorf("decode product %s: %w", product.ID, err)
	}

	doc := fromDomainProduct(product)
	// Counters stay under ledger ownership.
	doc.Stock = current.Stock
	doc.TotalSold = current.TotalSold
	doc.recalculate()

	if err := setDocument(ctx, ref, doc); err != nil {
		return pfirestore.WrapError("products.update", err)
	}
	return nil
}

func (r *ProductRepository) SoftDelete(ctx context.Context, productID string, deletedAt time.Time) error {
	ref, err := r.base.DocumentRef(ctx, productID)
	if err != nil {
		return err
	}
	updates := []firestore.Update{
		{Path: "isDeleted", Value: true},
		{Path: "isPublished", Value: false},
		{Path: "updatedAt", Value: deletedAt.UTC()},
	}
	if err := updateDocument(ctx, ref, updates, firestore.Exists); err != nil {
		return pfirestore.WrapError("products.softDelete", err)
	}
	return nil
}

func (r *ProductRepository) FindByID(ctx context.Context, productID string) (domain.Product, error) {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return domain.Product{}, errors.New("product repository: product id is required")
	}
	ref, err := r.base.DocumentRef(ctx, productID)
	if err != nil {
		return domain.Product{}, err
	}
	snap, err := getSnapshot(ctx, ref)
	if err != nil {
		return domain.Product{}, pfirestore.WrapError("products.get", err)
	}
	return decodeProductSnapshot(snap)
}

func (r *ProductRepository) FindBySlug(ctx context.Context, slug string) (domain.Product, error) {
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return domain.Product{}, errors.New("product repository: slug is required")
	}
	client, err := r.provider.Client(ctx)
	if err != nil {
		return domain.Product{}, err
	}

	query := client.Collection(productCollection).
		Where("slug", "==", slug).
		Where("isDeleted", "==", false).
		Limit(1)

	iter := queryDocuments(ctx, query)
	defer iter.Stop()

	snap, err := iter.Next()
	if errors.Is(err, iterator.Done) {
		return domain.Product{}, pfirestore.WrapError("products.findBySlug",
			notFoundStatus(fmt.Sprintf("product slug %s not found", slug)))
	}
	if err != nil {
		return domain.Product{}, pfirestore.WrapError("products.findBySlug", err)
	}
	return decodeProductSnapshot(snap)
}

func (r *ProductRepository) List(ctx context.Context, filter repositories.ProductFilter) (domain.CursorPage[domain.Product], error) {
	client, err := r.provider.Client(ctx)
	if err != nil {
		return domain.CursorPage[domain.Product]{}, err
	}

	query := client.Collection(productCollection).Query
	if !filter.IncludeDeleted {
		query = query.Where("isDeleted", "==", false)
	}
	if filter.PublishedOnly {
		query = query.Where("isPublished", "==", true)
	}
	if categoryID := strings.TrimSpace(filter.CategoryID); categoryID != "" {
		query = query.Where("categoryId", "==", categoryID)
	}
	if filter.Featured != nil {
		query = query.Where("isFeatured", "==", *filter.Featured)
	}
	if filter.PriceRange.From != nil {
		query = query.Where("price", ">=", *filter.PriceRange.From)
	}
	if filter.PriceRange.To != nil {
		query = query.Where("price", "<=", *filter.PriceRange.To)
	}
	if search := strings.ToLower(strings.TrimSpace(filter.Search)); search != "" {
		// Prefix match over the lowercased name copy.
		query = query.Where("nameLower", ">=", search).
			Where("nameLower", "<", search+"\uf8ff").
			OrderBy("nameLower", firestore.Asc)
	}

	sortField, sortDir := productSortClause(filter.Sort)
	query = query.OrderBy(sortField, sortDir).OrderBy(firestore.DocumentID, firestore.Asc)

	limit := filter.Pagination.PageSize
	if limit <= 0 {
		limit = 50
	}
	query = query.Limit(limit + 1)

	if token := strings.TrimSpace(filter.Pagination.PageToken); token != "" {
		sortValue, docID, err := pagination.DecodeCursor(token)
		if err != nil {
			return domain.CursorPage[domain.Product]{}, fmt.Errorf("products.list: invalid page token: %w", err)
		}
		query = query.StartAfter(sortValue, docID)
	}

	iter := queryDocuments(ctx, query)
	defer iter.Stop()

	var products []domain.Product
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return domain.CursorPage[domain.Product]{}, pfirestore.WrapError("products.list", err)
		}
		product, err := decodeProductSnapshot(snap)
		if err != nil {
			return domain.CursorPage[domain.Product]{}, err
		}
		products = append(products, product)
	}

	nextToken := ""
	if len(products) > limit {
		products = products[:limit]
		last := products[len(products)-1]
		nextToken = pagination.EncodeCursor(productSortValue(last, filter.Sort), last.ID)
	}

	return domain.CursorPage[domain.Product]{Items: products, NextPageToken: nextToken}, nil
}

func (r *ProductRepository) ListLowStock(ctx context.Context, limit int) ([]domain.Product, error) {
	client, err := r.provider.Client(ctx)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 50
	}

	// lowStock is recomputed on every write so the comparison against the
	// per-product alert threshold stays queryable.
	query := client.Collection(productCollection).
		Where("lowStock", "==", true).
		Where("isDeleted", "==", false).
		OrderBy("stock", firestore.Asc).
		Limit(limit)

	iter := queryDocuments(ctx, query)
	defer iter.Stop()

	var products []domain.Product
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, pfirestore.WrapError("products.lowStock", err)
		}
		product, err := decodeProductSnapshot(snap)
		if err != nil {
			return nil, err
		}
		products = append(products, product)
	}
	return products, nil
}

func (r *ProductRepository) UpdateRating(ctx context.Context, productID string, ratingAvg float64, ratingCount int64) error {
	ref, err := r.base.DocumentRef(ctx, productID)
	if err != nil {
		return err
	}
	updates := []firestore.Update{
		{Path: "ratingAvg", Value: ratingAvg},
		{Path: "ratingCount", Value: ratingCount},
	}
	if err := updateDocument(ctx, ref, updates, firestore.Exists); err != nil {
		return pfirestore.WrapError("products.updateRating", err)
	}
	return nil
}

func productSortClause(sort repositories.ProductSort) (string, firestore.Direction) {
	switch sort {
	case repositories.ProductSortPriceAsc:
		return "price", firestore.Asc
	case repositories.ProductSortPriceDesc:
		return "price", firestore.Desc
	case repositories.ProductSortBestSelling:
		return "totalSold", firestore.Desc
	case repositories.ProductSortTopRated:
		return "ratingAvg", firestore.Desc
	default:
		return "createdAt", firestore.Desc
	}
}

func productSortValue(p domain.Product, sort repositories.ProductSort) any {
	switch sort {
	case repositories.ProductSortPriceAsc, repositories.ProductSortPriceDesc:
		return p.Price
	case repositories.ProductSortBestSelling:
		return p.TotalSold
	case repositories.ProductSortTopRated:
		return p.RatingAvg
	default:
		return p.CreatedAt
	}
}

// Document mapping ------------------------------------------------------------

type productDocument struct {
	Name          string          `firestore:"name"`
	NameLower     string          `firestore:"nameLower"`
	Slug          string          `firestore:"slug"`
	Description   string          `firestore:"description"`
	Price         int64           `firestore:"price"`
	DiscountPrice *int64          `firestore:"discountPrice,omitempty"`
	Stock         int64           `firestore:"stock"`
	LowStockAlert int64           `firestore:"lowStockAlert"`
	LowStock      bool            `firestore:"lowStock"`
	TotalSold     int64           `firestore:"totalSold"`
	IsPublished   bool            `firestore:"isPublished"`
	IsFeatured    bool            `firestore:"isFeatured"`
	IsDeleted     bool            `firestore:"isDeleted"`
	RatingAvg     float64         `firestore:"ratingAvg"`
	RatingCount   int64           `firestore:"ratingCount"`
	CategoryID    string          `firestore:"categoryId"`
	Images        []mediaDocument `firestore:"images"`
	SEO           seoDocument     `firestore:"seo"`
	CreatedAt     time.Time       `firestore:"createdAt"`
	UpdatedAt     time.Time       `firestore:"updatedAt"`
}

func (d *productDocument) recalculate() {
	d.LowStock = d.LowStockAlert > 0 && d.Stock <= d.LowStockAlert
}

type mediaDocument struct {
	ID  string `firestore:"id"`
	URL string `firestore:"url"`
}

type seoDocument struct {
	MetaTitle       string   `firestore:"metaTitle"`
	MetaDescription string   `firestore:"metaDescription"`
	Keywords        []string `firestore:"keywords"`
}

func fromDomainProduct(p domain.Product) productDocument {
	images := make([]mediaDocument, 0, len(p.Images))
	for _, img := range p.Images {
		images = append(images, mediaDocument{ID: img.ID, URL: img.URL})
	}
	doc := productDocument{
		Name:          strings.TrimSpace(p.Name),
		NameLower:     strings.ToLower(strings.TrimSpace(p.Name)),
		Slug:          strings.TrimSpace(p.Slug),
		Description:   p.Description,
		Price:         p.Price,
		DiscountPrice: p.DiscountPrice,
		Stock:         p.Stock,
		LowStockAlert: p.LowStockAlert,
		TotalSold:     p.TotalSold,
		IsPublished:   p.IsPublished,
		IsFeatured:    p.IsFeatured,
		IsDeleted:     p.IsDeleted,
		RatingAvg:     p.RatingAvg,
		RatingCount:   p.RatingCount,
		CategoryID:    strings.TrimSpace(p.CategoryID),
		Images:        images,
		SEO: seoDocument{
			MetaTitle:       p.SEO.MetaTitle,
			MetaDescription: p.SEO.MetaDescription,
			Keywords:        p.SEO.Keywords,
		},
		CreatedAt: p.CreatedAt.UTC(),
		UpdatedAt: p.UpdatedAt.UTC(),
	}
	doc.recalculate()
	return doc
}

func (d productDocument) toDomain(id string) domain.Product {
	images := make([]domain.MediaObject, 0, len(d.Images))
	for _, img := range d.Images {
		images = append(images, domain.MediaObject{ID: img.ID, URL: img.URL})
	}
	return domain.Product{
		ID:            id,
		Name:          d.Name,
		Slug:          d.Slug,
		Description:   d.Description,
		Price:         d.Price,
		DiscountPrice: d.DiscountPrice,
		Stock:         d.Stock,
		LowStockAlert: d.LowStockAlert,
		TotalSold:     d.TotalSold,
		IsPublished:   d.IsPublished,
		IsFeatured:    d.IsFeatured,
		IsDeleted:     d.IsDeleted,
		RatingAvg:     d.RatingAvg,
		RatingCount:   d.RatingCount,
		CategoryID:    d.CategoryID,
		Images:        images,
		SEO: domain.SEOMetadata{
			MetaTitle:       d.SEO.MetaTitle,
			MetaDescription: d.SEO.MetaDescription,
			Keywords:        d.SEO.Keywords,
		},
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
}

func decodeProductSnapshot(snap *firestore.DocumentSnapshot) (domain.Product, error) {
	var doc productDocument
	if err := snap.DataTo(&doc); err != nil {
		return domain.Product{}, fmt.Errorf("decode product %s: %w", snap.Ref.ID, err)
	}
	return doc.toDomain(snap.Ref.ID), nil
}

var _ repositories.ProductRepository = (*ProductRepository)(nil)
