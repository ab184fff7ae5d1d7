package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"google.golang.org/api/iterator"

	domain "github.com/greenmart/api/internal/domain"
	pfirestore "github.com/greenmart/api/internal/platform/firestore"
	"github.com/greenmart/api/internal/repositories"
)

const userCollection = "users"

// UserRepository stores customer accounts. Email uniqueness is enforced at
// the service layer by a lookup before insert; the lowercased email copy
// keeps that lookup an exact-match query.
type UserRepository struct {
	provider *pfirestore.Provider
	base     *pfirestore.BaseRepository[userDocument]
}

// NewUserRepository constructs a Firestore-backed user repository.
func NewUserRepository(provider *pfirestore.Provider) (*UserRepository, error) {
	if provider == nil {
		return nil, errors.New("user repository requires firestore provider")
	}
	base := pfirestore.NewBaseRepository[userDocument](provider, userCollection, nil, nil)
	return &UserRepository{provider: provider, base: base}, nil
}

func (r *UserRepository) Insert(ctx context.Context, user domain.User) error {
	ref, err := r.base.DocumentRef(ctx, user.ID)
	if err != nil {
		return err
	}
	if err := createDocument(ctx, ref, fromDomainUser(user)); err != nil {
		return pfirestore.WrapError("users.insert", err)
	}
	return nil
}

func (r *UserRepository) Update(ctx context.Context, user domain.User) error {
	ref, err := r.base.DocumentRef(ctx, user.ID)
	if err != nil {
		return err
	}
	if _, err := getSnapshot(ctx, ref); err != nil {
		return pfirestore.WrapError("users.update", err)
	}
	if err := setDocument(ctx, ref, fromDomainUser(user)); err != nil {
		return pfirestore.WrapError("users.update", err)
	}
	return nil
}

func (r *UserRepository) FindByID(ctx context.Context, userID string) (domain.User, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return domain.User{}, errors.New("user repository: user id is required")
	}
	ref, err := r.base.DocumentRef(ctx, userID)
	if err != nil {
		return domain.User{}, err
	}
	snap, err := getSnapshot(ctx, ref)
	if err != nil {
		return domain.User{}, pfirestore.WrapError("users.get", err)
	}
	var doc userDocument
	if err := snap.DataTo(&doc); err != nil {
		return domain.User{}, fmt.Errorf("decode user %s: %w", snap.Ref.ID, err)
	}
	return doc.toDomain(snap.Ref.ID), nil
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (domain.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return domain.User{}, errors.New("user repository: email is required")
	}
	client, err := r.provider.Client(ctx)
	if err != nil {
		return domain.User{}, err
	}

	query := client.Collection(userCollection).Where("email", "==", email).Limit(1)
	iter := queryDocuments(ctx, query)
	defer iter.Stop()

	snap, err := iter.Next()
	if errors.Is(err, iterator.Done) {
		return domain.User{}, pfirestore.WrapError("users.findByEmail",
			notFoundStatus(fmt.Sprintf("user %s not found", email)))
	}
	if err != nil {
		return domain.User{}, pfirestore.WrapError("users.findByEmail", err)
	}
	var doc userDocument
	if err := snap.DataTo(&doc); err != nil {
		return domain.User{}, fmt.Errorf("decode user %s: %w", snap.Ref.ID, err)
	}
	return doc.toDomain(snap.Ref.ID), nil
}

// Count returns the total number of customer accounts via a count aggregation.
func (r *UserRepository) Count(ctx context.Context) (int64, error) {
	client, err := r.provider.Client(ctx)
	if err != nil {
		return 0, err
	}
	results, err := client.Collection(userCollection).Query.NewAggregationQuery().WithCount("count").Get(ctx)
	if err != nil {
		return 0, pfirestore.WrapError("users.count", err)
	}
	count, err := aggregationInt(results, "count")
	if err != nil {
		return 0, fmt.Errorf("users.count: %w", err)
	}
	return count, nil
}

type userDocument struct {
	Name         string           `firestore:"name"`
	Email        string           `firestore:"email"`
	PasswordHash string           `firestore:"passwordHash"`
	Phone        string           `firestore:"phone,omitempty"`
	Address      *addressDocument `firestore:"address,omitempty"`
	IsBlocked    bool             `firestore:"isBlocked"`
	CreatedAt    time.Time        `firestore:"createdAt"`
	UpdatedAt    time.Time        `firestore:"updatedAt"`
}

func fromDomainUser(u domain.User) userDocument {
	doc := userDocument{
		Name:         strings.TrimSpace(u.Name),
		Email:        strings.ToLower(strings.TrimSpace(u.Email)),
		PasswordHash: u.PasswordHash,
		Phone:        strings.TrimSpace(u.Phone),
		IsBlocked:    u.IsBlocked,
		CreatedAt:    u.CreatedAt.UTC(),
		UpdatedAt:    u.UpdatedAt.UTC(),
	}
	if u.Address != nil {
		addr := fromDomainAddress(*u.Address)
		doc.Address = &addr
	}
	return doc
}

func (d userDocument) toDomain(id string) domain.User {
	user := domain.User{
		ID:           id,
		Name:         d.Name,
		Email:        d.Email,
		PasswordHash: d.PasswordHash,
		Phone:        d.Phone,
		IsBlocked:    d.IsBlocked,
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}
	if d.Address != nil {
		addr := d.Address.toDomain()
		user.Address = &addr
	}
	return user
}

var _ repositories.UserRepository = (*UserRepository)(nil)
