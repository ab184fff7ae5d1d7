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
	"github.com/greenmart/api/internal/repositories"
)

const reviewIDPrefix = "rev_"

var (
	// ErrReviewInvalidInput signals the caller provided invalid review data.
	ErrReviewInvalidInput = errors.New("review: invalid input")
	// ErrReviewNotFound indicates the review could not be located.
	ErrReviewNotFound = errors.New("review: not found")
	// ErrReviewExists indicates the user already reviewed the product.
	ErrReviewExists = errors.New("review: already reviewed")
	// ErrReviewForbidden indicates the caller may not delete the review.
	ErrReviewForbidden = errors.New("review: forbidden")
)

// ReviewServiceDeps bundles collaborators required to construct the review service.
type ReviewServiceDeps struct {
	Reviews     repositories.ReviewRepository
	Products    repositories.ProductRepository
	UnitOfWork  repositories.UnitOfWork
	Clock       func() time.Time
	IDGenerator func() string
}

type reviewService struct {
	reviews    repositories.ReviewRepository
	products   repositories.ProductRepository
	unitOfWork repositories.UnitOfWork
	clock      func() time.Time
	newID      func() string
	sanitizer  *bluemonday.Policy
}

// NewReviewService wires dependencies into a concrete ReviewService implementation.
func NewReviewService(deps ReviewServiceDeps) (ReviewService, error) {
	if deps.Reviews == nil {
		return nil, errors.New("review service: review repository is required")
	}
	if deps.Products == nil {
		return nil, errors.New("review service: product repository is required")
	}

	unit := deps.UnitOfWork
	if unit == nil {
		unit = noopUnitOfWork{}
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string { return ulid.Make().String() }
	}

	return &reviewService{
		reviews:    deps.Reviews,
		products:   deps.Products,
		unitOfWork: unit,
		clock:      func() time.Time { return clock().UTC() },
		newID:      idGen,
		sanitizer:  bluemonday.StrictPolicy(),
	}, nil
}

// Create inserts the review and folds the rating into the product aggregates
// in the same transaction, so ratingAvg/ratingCount never drift from the
// review collection.
func (s *reviewService) Create(ctx context.Context, cmd CreateReviewCommand) (Review, error) {
	productID := strings.TrimSpace(cmd.ProductID)
	userID := strings.TrimSpace(cmd.UserID)
	if productID == "" || userID == "" {
		return Review{}, fmt.Errorf("%w: product id and user id are required", ErrReviewInvalidInput)
	}
	if cmd.Rating < 1 || cmd.Rating > 5 {
		return Review{}, fmt.Errorf("%w: rating must be between 1 and 5", ErrReviewInvalidInput)
	}

	now := s.clock()
	review := domain.Review{
		ID:        reviewIDPrefix + s.newID(),
		ProductID: productID,
		UserID:    userID,
		UserName:  strings.TrimSpace(cmd.UserName),
		Rating:    cmd.Rating,
		Comment:   strings.TrimSpace(s.sanitizer.Sanitize(cmd.Comment)),
		CreatedAt: now,
	}

	err := s.unitOfWork.RunInTx(ctx, func(txCtx context.Context) error {
		product, err := s.products.FindByID(txCtx, productID)
		if err != nil {
			return s.mapProductError(err)
		}
		if product.IsDeleted {
			return fmt.Errorf("%w: %s", ErrProductUnavailable, productID)
		}

		if _, err := s.reviews.FindByProductAndUser(txCtx, productID, userID); err == nil {
			return fmt.Errorf("%w: product %s", ErrReviewExists, productID)
		} else if mapped := s.mapRepositoryError(err); !errors.Is(mapped, ErrReviewNotFound) {
			return mapped
		}

		if err := s.reviews.Insert(txCtx, review); err != nil {
			return s.mapRepositoryError(err)
		}

		count := product.RatingCount + 1
		avg := (product.RatingAvg*float64(product.RatingCount) + float64(cmd.Rating)) / float64(count)
		return s.mapRepositoryError(s.products.UpdateRating(txCtx, productID, avg, count))
	})
	if err != nil {
		return Review{}, err
	}
	return review, nil
}

func (s *reviewService) ListByProduct(ctx context.Context, productID string, pager Pagination) (domain.CursorPage[Review], error) {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return domain.CursorPage[Review]{}, fmt.Errorf("%w: product id is required", ErrReviewInvalidInput)
	}
	page, err := s.reviews.ListByProduct(ctx, productID, pager)
	if err != nil {
		return domain.CursorPage[Review]{}, s.mapRepositoryError(err)
	}
	return page, nil
}

// Delete removes the review (owner or admin only) and subtracts its rating
// from the product aggregates transactionally.
func (s *reviewService) Delete(ctx context.Context, cmd DeleteReviewCommand) error {
	reviewID := strings.TrimSpace(cmd.ReviewID)
	if reviewID == "" {
		return fmt.Errorf("%w: review id is required", ErrReviewInvalidInput)
	}

	return s.unitOfWork.RunInTx(ctx, func(txCtx context.Context) error {
		review, err := s.reviews.FindByID(txCtx, reviewID)
		if err != nil {
			return s.mapRepositoryError(err)
		}

		isAdmin := cmd.ActorRole == "admin" || cmd.ActorRole == "staff"
		if !isAdmin && review.UserID != strings.TrimSpace(cmd.ActorID) {
			return fmt.Errorf("%w: review %s", ErrReviewForbidden, reviewID)
		}

		product, err := s.products.FindByID(txCtx, review.ProductID)
		if err != nil {
			return s.mapProductError(err)
		}

		if err := s.reviews.Delete(txCtx, reviewID); err != nil {
			return s.mapRepositoryError(err)
		}

		count := product.RatingCount - 1
		avg := 0.0
		if count > 0 {
			avg = (product.RatingAvg*float64(product.RatingCount) - float64(review.Rating)) / float64(count)
		} else {
			count = 0
		}
		return s.mapRepositoryError(s.products.UpdateRating(txCtx, review.ProductID, avg, count))
	})
}

func (s *reviewService) mapProductError(err error) error {
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) && repoErr.IsNotFound() {
		return fmt.Errorf("%w: %v", ErrProductNotFound, err)
	}
	return s.mapRepositoryError(err)
}

func (s *reviewService) mapRepositoryError(err error) error {
	if err == nil {
		return nil
	}
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %v", ErrReviewNotFound, err)
		case repoErr.IsConflict():
			return fmt.Errorf("%w: %v", ErrReviewExists, err)
		case repoErr.IsUnavailable():
			return fmt.Errorf("review: repository unavailable: %w", err)
		}
	}
	return err
}
