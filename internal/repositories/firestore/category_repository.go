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

const categoryCollection = "categories"

// CategoryRepository persists taxonomy nodes.
type CategoryRepository struct {
	provider *pfirestore.Provider
	base     *pfirestore.BaseRepository[categoryDocument]
}

// NewCategoryRepository constructs a Firestore-backed category repository.
func NewCategoryRepository(provider *pfirestore.Provider) (*CategoryRepository, error) {
	if provider == nil {
		return nil, errors.New("category repository requires firestore provider")
	}
	base := pfirestore.NewBaseRepository[categoryDocument](provider, categoryCollection, nil, nil)
	return &CategoryRepository{provider: provider, base: base}, nil
}

func (r *CategoryRepository) Insert(ctx context.Context, category domain.Category) error {
	ref, err := r.base.DocumentRef(ctx, category.ID)
	if err != nil {
		return err
	}
	if err := createDocument(ctx, ref, fromDomainCategory(category)); err != nil {
		return pfirestore.WrapError("categories.insert", err)
	}
	return nil
}

func (r *CategoryRepository) Update(ctx context.Context, category domain.Category) error {
	ref, err := r.base.DocumentRef(ctx, category.ID)
	if err != nil {
		return err
	}
	if _, err := getSnapshot(ctx, ref); err != nil {
		return pfirestore.WrapError("categories.update", err)
	}
	if err := setDocument(ctx, ref, fromDomainCategory(category)); err != nil {
		return pfirestore.WrapError("categories.update", err)
	}
	return nil
}

func (r *CategoryRepository) Delete(ctx context.Context, categoryID string) error {
	categoryID = strings.TrimSpace(categoryID)
	if categoryID == "" {
		return errors.New("category repository: category id is required")
	}
	ref, err := r.base.DocumentRef(ctx, categoryID)
	if err != nil {
		return err
	}
	if err := deleteDocument(ctx, ref, firestore.Exists); err != nil {
		return pfirestore.WrapError("categories.delete", err)
	}
	return nil
}

func (r *CategoryRepository) FindByID(ctx context.Context, categoryID string) (domain.Category, error) {
	categoryID = strings.TrimSpace(categoryID)
	if categoryID == "" {
		return domain.Category{}, errors.New("category repository: category id is required")
	}
	ref, err := r.base.DocumentRef(ctx, categoryID)
	if err != nil {
		return domain.Category{}, err
	}
	snap, err := getSnapshot(ctx, ref)
	if err != nil {
		return domain.Category{}, pfirestore.WrapError("categories.get", err)
	}
	var doc categoryDocument
	if err := snap.DataTo(&doc); err != nil {
		return domain.Category{}, fmt.Errorf("decode category %s: %w", snap.Ref.ID, err)
	}
	return doc.toDomain(snap.Ref.ID), nil
}

func (r *CategoryRepository) FindBySlug(ctx context.Context, slug string) (domain.Category, error) {
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return domain.Category{}, errors.New("category repository: slug is required")
	}
	client, err := r.provider.Client(ctx)
	if err != nil {
		return domain.Category{}, err
	}

	query := client.Collection(categoryCollection).Where("slug", "==", slug).Limit(1)
	iter := queryDocuments(ctx, query)
	defer iter.Stop()

	snap, err := iter.Next()
	if errors.Is(err, iterator.Done) {
		return domain.Category{}, pfirestore.WrapError("categories.findBySlug",
			notFoundStatus(fmt.Sprintf("category slug %s not found", slug)))
	}
	if err != nil {
		return domain.Category{}, pfirestore.WrapError("categories.findBySlug", err)
	}
	var doc categoryDocument
	if err := snap.DataTo(&doc); err != nil {
		return domain.Category{}, fmt.Errorf("decode category %s: %w", snap.Ref.ID, err)
	}
	return doc.toDomain(snap.Ref.ID), nil
}

func (r *CategoryRepository) List(ctx context.Context, filter repositories.CategoryFilter) (domain.CursorPage[domain.Category], error) {
	client, err := r.provider.Client(ctx)
	if err != nil {
		return domain.CursorPage[domain.Category]{}, err
	}

	query := client.Collection(categoryCollection).Query
	if filter.ActiveOnly {
		query = query.Where("isActive", "==", true)
	}
	query = query.OrderBy("name", firestore.Asc).OrderBy(firestore.DocumentID, firestore.Asc)

	limit := filter.Pagination.PageSize
	if limit <= 0 {
		limit = 100
	}
	query = query.Limit(limit + 1)

	if token := strings.TrimSpace(filter.Pagination.PageToken); token != "" {
		sortValue, docID, err := pagination.DecodeCursor(token)
		if err != nil {
			return domain.CursorPage[domain.Category]{}, fmt.Errorf("categories.list: invalid page token: %w", err)
		}
		query = query.StartAfter(sortValue, docID)
	}

	iter := queryDocuments(ctx, query)
	defer iter.Stop()

	var categories []domain.Category
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return domain.CursorPage[domain.Category]{}, pfirestore.WrapError("categories.list", err)
		}
		var doc categoryDocument
		if err := snap.DataTo(&doc); err != nil {
			return domain.CursorPage[domain.Category]{}, fmt.Errorf("decode category %s: %w", snap.Ref.ID, err)
		}
		categories = append(categories, doc.toDomain(snap.Ref.ID))
	}

	nextToken := ""
	if len(categories) > limit {
		categories = categories[:limit]
		last := categories[len(categories)-1]
		nextToken = pagination.EncodeCursor(last.Name, last.ID)
	}

	return domain.CursorPage[domain.Category]{Items: categories, NextPageToken: nextToken}, nil
}

type categoryDocument struct {
	Name        string         `firestore:"name"`
	Slug        string         `firestore:"slug"`
	Description string         `firestore:"description,omitempty"`
	Image       *mediaDocument `firestore:"image,omitempty"`
	IsActive    bool           `firestore:"isActive"`
	CreatedAt   time.Time      `firestore:"createdAt"`
	UpdatedAt   time.Time      `firestore:"updatedAt"`
}

func fromDomainCategory(c domain.Category) categoryDocument {
	doc := categoryDocument{
		Name:        strings.TrimSpace(c.Name),
		Slug:        strings.TrimSpace(c.Slug),
		Description: strings.TrimSpace(c.Description),
		IsActive:    c.IsActive,
		CreatedAt:   c.CreatedAt.UTC(),
		UpdatedAt:   c.UpdatedAt.UTC(),
	}
	if c.Image != nil {
		doc.Image = &mediaDocument{ID: c.Image.ID, URL: c.Image.URL}
	}
	return doc
}

func (d categoryDocument) toDomain(id string) domain.Category {
	category := domain.Category{
		ID:          id,
		Name:        d.Name,
		Slug:        d.Slug,
		Description: d.Description,
		IsActive:    d.IsActive,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
	if d.Image != nil {
		category.Image = &domain.MediaObject{ID: d.Image.ID, URL: d.Image.URL}
	}
	return category
}

var _ repositories.CategoryRepository = (*CategoryRepository)(nil)
