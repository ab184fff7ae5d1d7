package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	domain "github.com/greenmart/api/internal/domain"
	pfirestore "github.com/greenmart/api/internal/platform/firestore"
	"github.com/greenmart/api/internal/platform/pagination"
	"github.com/greenmart/api/internal/repositories"
)

const favouriteCollectionPattern = "users/%s/favourites"

// FavouriteRepository stores (user, product) pairs as per-user subcollection
// documents keyed by the product id, making Put naturally idempotent.
type FavouriteRepository struct {
	provider *pfirestore.Provider
}

// NewFavouriteRepository constructs a Firestore-backed favourite repository.
func NewFavouriteRepository(provider *pfirestore.Provider) (*FavouriteRepository, error) {
	if provider == nil {
		return nil, errors.New("favourite repository requires firestore provider")
	}
	return &FavouriteRepository{provider: provider}, nil
}

func (r *FavouriteRepository) Put(ctx context.Context, favourite domain.Favourite) error {
	coll, err := r.collection(ctx, favourite.UserID)
	if err != nil {
		return err
	}
	productID := strings.TrimSpace(favourite.ProductID)
	if productID == "" {
		return errors.New("favourite repository: product id is required")
	}
	doc := favouriteDocument{
		ProductID: productID,
		CreatedAt: favourite.CreatedAt.UTC(),
	}
	if err := setDocument(ctx, coll.Doc(productID), doc); err != nil {
		return pfirestore.WrapError("favourites.put", err)
	}
	return nil
}

func (r *FavouriteRepository) Delete(ctx context.Context, userID, productID string) error {
	coll, err := r.collection(ctx, userID)
	if err != nil {
		return err
	}
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return errors.New("favourite repository: product id is required")
	}
	if err := deleteDocument(ctx, coll.Doc(productID)); err != nil {
		return pfirestore.WrapError("favourites.delete", err)
	}
	return nil
}

func (r *FavouriteRepository) Exists(ctx context.Context, userID, productID string) (bool, error) {
	coll, err := r.collection(ctx, userID)
	if err != nil {
		return false, err
	}
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return false, errors.New("favourite repository: product id is required")
	}
	_, err = getSnapshot(ctx, coll.Doc(productID))
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return false, nil
		}
		return false, pfirestore.WrapError("favourites.exists", err)
	}
	return true, nil
}

// List returns favourites ordered by most recent addition.
func (r *FavouriteRepository) List(ctx context.Context, userID string, pager domain.Pagination) (domain.CursorPage[domain.Favourite], error) {
	coll, err := r.collection(ctx, userID)
	if err != nil {
		return domain.CursorPage[domain.Favourite]{}, err
	}

	limit := pager.PageSize
	if limit <= 0 {
		limit = 50
	}

	query := coll.OrderBy("createdAt", firestore.Desc).
		OrderBy(firestore.DocumentID, firestore.Desc).
		Limit(limit + 1)

	if token := strings.TrimSpace(pager.PageToken); token != "" {
		sortValue, docID, err := pagination.DecodeCursor(token)
		if err != nil {
			return domain.CursorPage[domain.Favourite]{}, fmt.Errorf("favourites.list: invalid page token: %w", err)
		}
		query = query.StartAfter(sortValue, docID)
	}

	iter := queryDocuments(ctx, query)
	defer iter.Stop()

	var favourites []domain.Favourite
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return domain.CursorPage[domain.Favourite]{}, pfirestore.WrapError("favourites.list", err)
		}
		var doc favouriteDocument
		if err := snap.DataTo(&doc); err != nil {
			return domain.CursorPage[domain.Favourite]{}, fmt.Errorf("decode favourite %s: %w", snap.Ref.ID, err)
		}
		favourites = append(favourites, domain.Favourite{
			UserID:    strings.TrimSpace(userID),
			ProductID: snap.Ref.ID,
			CreatedAt: doc.CreatedAt,
		})
	}

	nextToken := ""
	if len(favourites) > limit {
		favourites = favourites[:limit]
		last := favourites[len(favourites)-1]
		nextToken = pagination.EncodeCursor(last.CreatedAt, last.ProductID)
	}

	return domain.CursorPage[domain.Favourite]{Items: favourites, NextPageToken: nextToken}, nil
}

func (r *FavouriteRepository) collection(ctx context.Context, userID string) (*firestore.CollectionRef, error) {
	if r == nil || r.provider == nil {
		return nil, errors.New("favourite repository not initialised")
	}
	uid := strings.TrimSpace(userID)
	if uid == "" {
		return nil, errors.New("favourite repository: user id is required")
	}
	client, err := r.provider.Client(ctx)
	if err != nil {
		return nil, err
	}
	return client.Collection(fmt.Sprintf(favouriteCollectionPattern, uid)), nil
}

type favouriteDocument struct {
	ProductID string    `firestore:"productId"`
	CreatedAt time.Time `firestore:"createdAt"`
}

var _ repositories.FavouriteRepository = (*FavouriteRepository)(nil)
