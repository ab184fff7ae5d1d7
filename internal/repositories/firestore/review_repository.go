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

const reviewCollection = "reviews"

// ReviewRepository stores product reviews. Review writes happen inside the
// same unit of work that refreshes product rating aggregates, so every
// operation here is transaction-aware.
type ReviewRepository struct {
	provider *pfirestore.Provider
	base     *pfirestore.BaseRepository[reviewDocument]
}

// NewReviewRepository constructs a Firestore-backed review repository.
func NewReviewRepository(provider *pfirestore.Provider) (*ReviewRepository, error) {
	if provider == nil {
		return nil, errors.New("review repository requires firestore provider")
	}
	base := pfirestore.NewBaseRepository[reviewDocument](provider, reviewCollection, nil, nil)
	return &ReviewRepository{provider: provider, base: base}, nil
}

func (r *ReviewRepository) Insert(ctx context.Context, review domain.Review) error {
	ref, err := r.base.DocumentRef(ctx, review.ID)
	if err != nil {
		return err
	}
	if err := createDocument(ctx, ref, fromDomainReview(review)); err != nil {
		return pfirestore.WrapError("reviews.insert", err)
	}
	return nil
}

func (r *ReviewRepository) Delete(ctx context.Context, reviewID string) error {
	reviewID = strings.TrimSpace(reviewID)
	if reviewID == "" {
		return errors.New("review repository: review id is required")
	}
	ref, err := r.base.DocumentRef(ctx, reviewID)
	if err != nil {
		return err
	}
	if err := deleteDocument(ctx, ref, firestore.Exists); err != nil {
		return pfirestore.WrapError("reviews.delete", err)
	}
	return nil
}

func (r *ReviewRepository) FindByID(ctx context.Context, reviewID string) (domain.Review, error) {
	reviewID = strings.TrimSpace(reviewID)
	if reviewID == "" {
		return domain.Review{}, errors.New("review repository: review id is required")
	}
	ref, err := r.base.DocumentRef(ctx, reviewID)
	if err != nil {
		return domain.Review{}, err
	}
	snap, err := getSnapshot(ctx, ref)
	if err != nil {
		return domain.Review{}, pfirestore.WrapError("reviews.get", err)
	}
	return decodeReviewSnapshot(snap)
}

func (r *ReviewRepository) FindByProductAndUser(ctx context.Context, productID, userID string) (domain.Review, error) {
	productID = strings.TrimSpace(productID)
	userID = strings.TrimSpace(userID)
	if productID == "" || userID == "" {
		return domain.Review{}, errors.New("review repository: product id and user id are required")
	}
	client, err := r.provider.Client(ctx)
	if err != nil {
		return domain.Review{}, err
	}

	query := client.Collection(reviewCollection).
		Where("productId", "==", productID).
		Where("userId", "==", userID).
		Limit(1)

	iter := queryDocuments(ctx, query)
	defer iter.Stop()

	snap, err := iter.Next()
	if errors.Is(err, iterator.Done) {
		return domain.Review{}, pfirestore.WrapError("reviews.findByProductAndUser",
			notFoundStatus(fmt.Sprintf("no review by %s for %s", userID, productID)))
	}
	if err != nil {
		return domain.Review{}, pfirestore.WrapError("reviews.findByProductAndUser", err)
	}
	return decodeReviewSnapshot(snap)
}

func (r *ReviewRepository) ListByProduct(ctx context.Context, productID string, pager domain.Pagination) (domain.CursorPage[domain.Review], error) {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return domain.CursorPage[domain.Review]{}, errors.New("review repository: product id is required")
	}
	client, err := r.provider.Client(ctx)
	if err != nil {
		return domain.CursorPage[domain.Review]{}, err
	}

	limit := pager.PageSize
	if limit <= 0 {
		limit = 20
	}

	query := client.Collection(reviewCollection).
		Where("productId", "==", productID).
		OrderBy("createdAt", firestore.Desc).
		OrderBy(firestore.DocumentID, firestore.Desc).
		Limit(limit + 1)

	if token := strings.TrimSpace(pager.PageToken); token != "" {
		sortValue, docID, err := pagination.DecodeCursor(token)
		if err != nil {
			return domain.CursorPage[domain.Review]{}, fmt.Errorf("reviews.list: invalid page token: %w", err)
		}
		query = query.StartAfter(sortValue, docID)
	}

	iter := queryDocuments(ctx, query)
	defer iter.Stop()

	var reviews []domain.Review
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return domain.CursorPage[domain.Review]{}, pfirestore.WrapError("reviews.list", err)
		}
		review, err := decodeReviewSnapshot(snap)
		if err != nil {
			return domain.CursorPage[domain.Review]{}, err
		}
		reviews = append(reviews, review)
	}

	nextToken := ""
	if len(reviews) > limit {
		reviews = reviews[:limit]
		last := reviews[len(reviews)-1]
		nextToken = pagination.EncodeCursor(last.CreatedAt, last.ID)
	}

	return domain.CursorPage[domain.Review]{Items: reviews, NextPageToken: nextToken}, nil
}

type reviewDocument struct {
	ProductID string    `firestore:"productId"`
	UserID    string    `firestore:"userId"`
	UserName  string    `firestore:"userName"`
	Rating    int       `firestore:"rating"`
	Comment   string    `firestore:"comment,omitempty"`
	CreatedAt time.Time `firestore:"createdAt"`
}

func fromDomainReview(rv domain.Review) reviewDocument {
	return reviewDocument{
		ProductID: strings.TrimSpace(rv.ProductID),
		UserID:    strings.TrimSpace(rv.UserID),
		UserName:  strings.TrimSpace(rv.UserName),
		Rating:    rv.Rating,
		Comment:   rv.Comment,
		CreatedAt: rv.CreatedAt.UTC(),
	}
}

func decodeReviewSnapshot(snap *firestore.DocumentSnapshot) (domain.Review, error) {
	var doc reviewDocument
	if err := snap.DataTo(&doc); err != nil {
		return domain.Review{}, fmt.Errorf("decode review %s: %w", snap.Ref.ID, err)
	}
	return domain.Review{
		ID:        snap.Ref.ID,
		ProductID: doc.ProductID,
		UserID:    doc.UserID,
		UserName:  doc.UserName,
		Rating:    doc.Rating,
		Comment:   doc.Comment,
		CreatedAt: doc.CreatedAt,
	}, nil
}

var _ repositories.ReviewRepository = (*ReviewRepository)(nil)
