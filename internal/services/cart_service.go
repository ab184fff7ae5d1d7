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

const maxCartItemQty = 99

var (
	// ErrCartInvalidInput signals the caller provided invalid cart data.
	ErrCartInvalidInput = errors.New("cart: invalid input")
	// ErrCartItemNotFound indicates the product is not present in the cart.
	ErrCartItemNotFound = errors.New("cart: item not found")
)

// CartServiceDeps bundles collaborators required to construct the cart service.
type CartServiceDeps struct {
	Carts    repositories.CartRepository
	Products repositories.ProductRepository
	Clock    func() time.Time
}

type cartService struct {
	carts    repositories.CartRepository
	products repositories.ProductRepository
	clock    func() time.Time
}

// NewCartService wires dependencies into a concrete CartService implementation.
func NewCartService(deps CartServiceDeps) (CartService, error) {
	if deps.Carts == nil {
		return nil, errors.New("cart service: cart repository is required")
	}
	if deps.Products == nil {
		return nil, errors.New("cart service: product repository is required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	return &cartService{
		carts:    deps.Carts,
		products: deps.Products,
		clock:    func() time.Time { return clock().UTC() },
	}, nil
}

// GetCart returns the user's cart, or an empty one when none has been saved yet.
func (s *cartService) GetCart(ctx context.Context, userID string) (Cart, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return Cart{}, fmt.Errorf("%w: user id is required", ErrCartInvalidInput)
	}

	cart, err := s.carts.Get(ctx, userID)
	if err != nil {
		var repoErr repositories.RepositoryError
		if errors.As(err, &repoErr) && repoErr.IsNotFound() {
			return domain.Cart{UserID: userID}, nil
		}
		return Cart{}, err
	}
	return cart, nil
}

// AddItem merges the quantity into an existing line, capping at the per-line
// maximum. A product appears at most once per cart.
func (s *cartService) AddItem(ctx context.Context, cmd UpsertCartItemCommand) (Cart, error) {
	if err := s.validate(cmd); err != nil {
		return Cart{}, err
	}
	if err := s.requirePurchasable(ctx, cmd.ProductID); err != nil {
		return Cart{}, err
	}

	cart, err := s.GetCart(ctx, cmd.UserID)
	if err != nil {
		return Cart{}, err
	}

	now := s.clock()
	merged := false
	for i := range cart.Items {
		if cart.Items[i].ProductID == cmd.ProductID {
			qty := cart.Items[i].Quantity + cmd.Quantity
			if qty > maxCartItemQty {
				qty = maxCartItemQty
			}
			cart.Items[i].Quantity = qty
			merged = true
			break
		}
	}
	if !merged {
		cart.Items = append(cart.Items, domain.CartItem{
			ProductID: cmd.ProductID,
			Quantity:  cmd.Quantity,
			AddedAt:   now,
		})
	}
	cart.UpdatedAt = now

	if err := s.carts.Save(ctx, cart); err != nil {
		return Cart{}, err
	}
	return cart, nil
}

// UpdateItemQuantity sets the line quantity; the line must already exist.
func (s *cartService) UpdateItemQuantity(ctx context.Context, cmd UpsertCartItemCommand) (Cart, error) {
	if err := s.validate(cmd); err != nil {
		return Cart{}, err
	}

	cart, err := s.GetCart(ctx, cmd.UserID)
	if err != nil {
		return Cart{}, err
	}

	found := false
	for i := range cart.Items {
		if cart.Items[i].ProductID == cmd.ProductID {
			cart.Items[i].Quantity = cmd.Quantity
			found = true
			break
		}
	}
	if !found {
		return Cart{}, fmt.Errorf("%w: %s", ErrCartItemNotFound, cmd.ProductID)
	}
	cart.UpdatedAt = s.clock()

	if err := s.carts.Save(ctx, cart); err != nil {
		return Cart{}, err
	}
	return cart, nil
}

func (s *cartService) RemoveItem(ctx context.Context, userID, productID string) (Cart, error) {
	userID = strings.TrimSpace(userID)
	productID = strings.TrimSpace(productID)
	if userID == "" || productID == "" {
		return Cart{}, fmt.Errorf("%w: user id and product id are required", ErrCartInvalidInput)
	}

	cart, err := s.GetCart(ctx, userID)
	if err != nil {
		return Cart{}, err
	}

	kept := cart.Items[:0]
	found := false
	for _, item := range cart.Items {
		if item.ProductID == productID {
			found = true
			continue
		}
		kept = append(kept, item)
	}
	if !found {
		return Cart{}, fmt.Errorf("%w: %s", ErrCartItemNotFound, productID)
	}
	cart.Items = kept
	cart.UpdatedAt = s.clock()

	if err := s.carts.Save(ctx, cart); err != nil {
		return Cart{}, err
	}
	return cart, nil
}

func (s *cartService) ClearCart(ctx context.Context, userID string) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return fmt.Errorf("%w: user id is required", ErrCartInvalidInput)
	}
	return s.carts.Clear(ctx, userID)
}

func (s *cartService) validate(cmd UpsertCartItemCommand) error {
	if strings.TrimSpace(cmd.UserID) == "" {
		return fmt.Errorf("%w: user id is required", ErrCartInvalidInput)
	}
	if strings.TrimSpace(cmd.ProductID) == "" {
		return fmt.Errorf("%w: product id is required", ErrCartInvalidInput)
	}
	if cmd.Quantity < 1 || cmd.Quantity > maxCartItemQty {
		return fmt.Errorf("%w: quantity must be between 1 and %d", ErrCartInvalidInput, maxCartItemQty)
	}
	return nil
}

func (s *cartService) requirePurchasable(ctx context.Context, productID string) error {
	product, err := s.products.FindByID(ctx, productID)
	if err != nil {
		var repoErr repositories.RepositoryError
		if errors.As(err, &repoErr) && repoErr.IsNotFound() {
			return fmt.Errorf("%w: %v", ErrProductNotFound, err)
		}
		return err
	}
	if !product.Purchasable() {
		return fmt.Errorf("%w: %s", ErrProductUnavailable, productID)
	}
	return nil
}
