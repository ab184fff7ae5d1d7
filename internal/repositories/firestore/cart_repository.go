package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	domain "github.com/greenmart/api/internal/domain"
	pfirestore "github.com/greenmart/api/internal/platform/firestore"
	"github.com/greenmart/api/internal/repositories"
)

const cartCollection = "carts"

// CartRepository stores one cart document per user, keyed by the user id.
type CartRepository struct {
	base *pfirestore.BaseRepository[cartDocument]
}

// NewCartRepository constructs a Firestore-backed cart repository.
func NewCartRepository(provider *pfirestore.Provider) (*CartRepository, error) {
	if provider == nil {
		return nil, errors.New("cart repository requires firestore provider")
	}
	base := pfirestore.NewBaseRepository[cartDocument](provider, cartCollection, nil, nil)
	return &CartRepository{base: base}, nil
}

func (r *CartRepository) Get(ctx context.Context, userID string) (domain.Cart, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return domain.Cart{}, errors.New("cart repository: user id is required")
	}
	ref, err := r.base.DocumentRef(ctx, userID)
	if err != nil {
		return domain.Cart{}, err
	}
	snap, err := getSnapshot(ctx, ref)
	if err != nil {
		return domain.Cart{}, pfirestore.WrapError("carts.get", err)
	}
	var doc cartDocument
	if err := snap.DataTo(&doc); err != nil {
		return domain.Cart{}, fmt.Errorf("decode cart %s: %w", snap.Ref.ID, err)
	}
	return doc.toDomain(snap.Ref.ID), nil
}

func (r *CartRepository) Save(ctx context.Context, cart domain.Cart) error {
	ref, err := r.base.DocumentRef(ctx, cart.UserID)
	if err != nil {
		return err
	}
	if err := setDocument(ctx, ref, fromDomainCart(cart)); err != nil {
		return pfirestore.WrapError("carts.save", err)
	}
	return nil
}

// Clear removes the cart document. Clearing an absent cart is a no-op.
func (r *CartRepository) Clear(ctx context.Context, userID string) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return errors.New("cart repository: user id is required")
	}
	ref, err := r.base.DocumentRef(ctx, userID)
	if err != nil {
		return err
	}
	if err := deleteDocument(ctx, ref); err != nil {
		return pfirestore.WrapError("carts.clear", err)
	}
	return nil
}

type cartDocument struct {
	Items     []cartItemDocument `firestore:"items"`
	UpdatedAt time.Time          `firestore:"updatedAt"`
}

type cartItemDocument struct {
	ProductID string    `firestore:"productId"`
	Quantity  int64     `firestore:"qty"`
	AddedAt   time.Time `firestore:"addedAt"`
}

func fromDomainCart(c domain.Cart) cartDocument {
	items := make([]cartItemDocument, 0, len(c.Items))
	for _, item := range c.Items {
		items = append(items, cartItemDocument{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			AddedAt:   item.AddedAt.UTC(),
		})
	}
	return cartDocument{Items: items, UpdatedAt: c.UpdatedAt.UTC()}
}

func (d cartDocument) toDomain(userID string) domain.Cart {
	items := make([]domain.CartItem, 0, len(d.Items))
	for _, item := range d.Items {
		items = append(items, domain.CartItem{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			AddedAt:   item.AddedAt,
		})
	}
	return domain.Cart{UserID: userID, Items: items, UpdatedAt: d.UpdatedAt}
}

var _ repositories.CartRepository = (*CartRepository)(nil)
