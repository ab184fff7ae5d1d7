package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	domain "github.com/greenmart/api/internal/domain"
	"github.com/greenmart/api/internal/repositories"
)

var (
	// ErrFavouriteInvalidInput signals the caller provided invalid data.
	ErrFavouriteInvalidInput = errors.New("favourite: invalid input")
	// ErrFavouriteNotFound indicates the pair is not on the user's list.
	ErrFavouriteNotFound = errors.New("favourite: not found")
)

// FavouriteServiceDeps bundles collaborators required to construct the favourite service.
type FavouriteServiceDeps struct {
	Favourites repositories.FavouriteRepository
	Products   repositories.ProductRepository
	Clock      func() time.Time
}

type favouriteService struct {
	favourites repositories.FavouriteRepository
	products   repositories.ProductRepository
	clock      func() time.Time
}

// NewFavouriteService wires dependencies into a concrete FavouriteService implementation.
func NewFavouriteService(deps FavouriteServiceDeps) (FavouriteService, error) {
	if deps.Favourites == nil {
		return nil, errors.New("favourite service: favourite repository is required")
	}
	if deps.Products == nil {
		return nil, errors.New("favourite service: product repository is required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	return &favouriteService{
		favourites: deps.Favourites,
		products:   deps.Products,
		clock:      func() time.Time { return clock().UTC() },
	}, nil
}

// Add is idempotent: favouriting an already-favourited product succeeds.
func (s *favouriteService) Add(ctx context.Context, userID, productID string) error {
	userID = strings.TrimSpace(userID)
	productID = strings.TrimSpace(productID)
	if userID == "" || productID == "" {
		return fmt.Errorf("%w: user id and product id are required", ErrFavouriteInvalidInput)
	}

	product, err := s.products.FindByID(ctx, productID)
	if err != nil {
		var repoErr repositories.RepositoryError
		if errors.As(err, &repoErr) && repoErr.IsNotFound() {
			return fmt.Errorf("%w: %v", ErrProductNotFound, err)
		}
		return err
	}
	if product.IsDeleted {
		return fmt.Errorf("%w: %s", ErrProductUnavailable, productID)
	}

	return s.favourites.Put(ctx, domain.Favourite{
		UserID:    userID,
		ProductID: productID,
		CreatedAt: s.clock(),
	})
}

func (s *favouriteService) Remove(ctx context.Context, userID, productID string) error {
	userID = strings.TrimSpace(userID)
	productID = strings.TrimSpace(productID)
	if userID == "" || productID == "" {
		return fmt.Errorf("%w: user id and product id are required", ErrFavouriteInvalidInput)
	}

	exists, err := s.favourites.Exists(ctx, userID, productID)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%w: %s", ErrFavouriteNotFound, productID)
	}
	return s.favourites.Delete(ctx, userID, productID)
}

func (s *favouriteService) List(ctx context.Context, userID string, pager Pagination) (domain.CursorPage[Favourite], error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return domain.CursorPage[Favourite]{}, fmt.Errorf("%w: user id is required", ErrFavouriteInvalidInput)
	}
	return s.favourites.List(ctx, userID, pager)
}
