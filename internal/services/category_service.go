package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/greenmart/api/internal/domain"
	"github.com/greenmart/api/internal/platform/textutil"
	"github.com/greenmart/api/internal/repositories"
)

const categoryIDPrefix = "cat_"

var (
	// ErrCategoryInvalidInput signals the caller provided invalid category data.
	ErrCategoryInvalidInput = errors.New("category: invalid input")
	// ErrCategoryNotFound indicates the category could not be located.
	ErrCategoryNotFound = errors.New("category: not found")
	// ErrCategoryConflict indicates slug collisions or concurrent modification.
	ErrCategoryConflict = errors.New("category: conflict")
)

// CategoryServiceDeps bundles collaborators required to construct the category service.
type CategoryServiceDeps struct {
	Categories  repositories.CategoryRepository
	Clock       func() time.Time
	IDGenerator func() string
}

type categoryService struct {
	categories repositories.CategoryRepository
	clock      func() time.Time
	newID      func() string
}

// NewCategoryService wires dependencies into a concrete CategoryService implementation.
func NewCategoryService(deps CategoryServiceDeps) (CategoryService, error) {
	if deps.Categories == nil {
		return nil, errors.New("category service: category repository is required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string { return ulid.Make().String() }
	}
	return &categoryService{
		categories: deps.Categories,
		clock:      func() time.Time { return clock().UTC() },
		newID:      idGen,
	}, nil
}

func (s *categoryService) Create(ctx context.Context, cmd CreateCategoryCommand) (Category, error) {
	name := strings.TrimSpace(cmd.Name)
	if name == "" {
		return Category{}, fmt.Errorf("%w: name is required", ErrCategoryInvalidInput)
	}

	slug := textutil.Slugify(name)
	if slug == "" {
		return Category{}, fmt.Errorf("%w: name yields an empty slug", ErrCategoryInvalidInput)
	}
	if _, err := s.categories.FindBySlug(ctx, slug); err == nil {
		return Category{}, fmt.Errorf("%w: slug %q already in use", ErrCategoryConflict, slug)
	} else if mapped := s.mapRepositoryError(err); !errors.Is(mapped, ErrCategoryNotFound) {
		return Category{}, mapped
	}

	now := s.clock()
	category := domain.Category{
		ID:          categoryIDPrefix + s.newID(),
		Name:        name,
		Slug:        slug,
		Description: strings.TrimSpace(cmd.Description),
		IsActive:    cmd.IsActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.categories.Insert(ctx, category); err != nil {
		return Category{}, s.mapRepositoryError(err)
	}
	return category, nil
}

func (s *categoryService) Update(ctx context.Context, cmd UpdateCategoryCommand) (Category, error) {
	categoryID := strings.TrimSpace(cmd.CategoryID)
	if categoryID == "" {
		return Category{}, fmt.Errorf("%w: category id is required", ErrCategoryInvalidInput)
	}

	category, err := s.categories.FindByID(ctx, categoryID)
	if err != nil {
		return Category{}, s.mapRepositoryError(err)
	}

	if cmd.Name != nil {
		name := strings.TrimSpace(*cmd.Name)
		if name == "" {
			return Category{}, fmt.Errorf("%w: name must not be empty", ErrCategoryInvalidInput)
		}
		if name != category.Name {
			slug := textutil.Slugify(name)
			if existing, err := s.categories.FindBySlug(ctx, slug); err == nil && existing.ID != category.ID {
				return Category{}, fmt.Errorf("%w: slug %q already in use", ErrCategoryConflict, slug)
			}
			category.Slug = slug
		}
		category.Name = name
	}
	if cmd.Description != nil {
		category.Description = strings.TrimSpace(*cmd.Description)
	}
	if cmd.IsActive != nil {
		category.IsActive = *cmd.IsActive
	}
	category.UpdatedAt = s.clock()

	if err := s.categories.Update(ctx, category); err != nil {
		return Category{}, s.mapRepositoryError(err)
	}
	return category, nil
}

func (s *categoryService) Delete(ctx context.Context, categoryID string) error {
	categoryID = strings.TrimSpace(categoryID)
	if categoryID == "" {
		return fmt.Errorf("%w: category id is required", ErrCategoryInvalidInput)
	}
	if err := s.categories.Delete(ctx, categoryID); err != nil {
		return s.mapRepositoryError(err)
	}
	return nil
}

func (s *categoryService) Get(ctx context.Context, categoryID string) (Category, error) {
	categoryID = strings.TrimSpace(categoryID)
	if categoryID == "" {
		return Category{}, fmt.Errorf("%w: category id is required", ErrCategoryInvalidInput)
	}
	category, err := s.categories.FindByID(ctx, categoryID)
	if err != nil {
		return Category{}, s.mapRepositoryError(err)
	}
	return category, nil
}

func (s *categoryService) GetBySlug(ctx context.Context, slug string) (Category, error) {
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return Category{}, fmt.Errorf("%w: slug is required", ErrCategoryInvalidInput)
	}
	category, err := s.categories.FindBySlug(ctx, slug)
	if err != nil {
		return Category{}, s.mapRepositoryError(err)
	}
	return category, nil
}

func (s *categoryService) List(ctx context.Context, filter CategoryListFilter) (domain.CursorPage[Category], error) {
	page, err := s.categories.List(ctx, filter)
	if err != nil {
		return domain.CursorPage[Category]{}, s.mapRepositoryError(err)
	}
	return page, nil
}

func (s *categoryService) mapRepositoryError(err error) error {
	if err == nil {
		return nil
	}
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %v", ErrCategoryNotFound, err)
		case repoErr.IsConflict():
			return fmt.Errorf("%w: %v", ErrCategoryConflict, err)
		case repoErr.IsUnavailable():
			return fmt.Errorf("category: repository unavailable: %w", err)
		}
	}
	return err
}
