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

const adminCollection = "admins"

// AdminRepository stores back-office accounts.
type AdminRepository struct {
	provider *pfirestore.Provider
	base     *pfirestore.BaseRepository[adminDocument]
}

// NewAdminRepository constructs a Firestore-backed admin repository.
func NewAdminRepository(provider *pfirestore.Provider) (*AdminRepository, error) {
	if provider == nil {
		return nil, errors.New("admin repository requires firestore provider")
	}
	base := pfirestore.NewBaseRepository[adminDocument](provider, adminCollection, nil, nil)
	return &AdminRepository{provider: provider, base: base}, nil
}

func (r *AdminRepository) Insert(ctx context.Context, admin domain.Admin) error {
	ref, err := r.base.DocumentRef(ctx, admin.ID)
	if err != nil {
		return err
	}
	if err := createDocument(ctx, ref, fromDomainAdmin(admin)); err != nil {
		return pfirestore.WrapError("admins.insert", err)
	}
	return nil
}

func (r *AdminRepository) Update(ctx context.Context, admin domain.Admin) error {
	ref, err := r.base.DocumentRef(ctx, admin.ID)
	if err != nil {
		return err
	}
	if _, err := getSnapshot(ctx, ref); err != nil {
		return pfirestore.WrapError("admins.update", err)
	}
	if err := setDocument(ctx, ref, fromDomainAdmin(admin)); err != nil {
		return pfirestore.WrapError("admins.update", err)
	}
	return nil
}

func (r *AdminRepository) FindByID(ctx context.Context, adminID string) (domain.Admin, error) {
	adminID = strings.TrimSpace(adminID)
	if adminID == "" {
		return domain.Admin{}, errors.New("admin repository: admin id is required")
	}
	ref, err := r.base.DocumentRef(ctx, adminID)
	if err != nil {
		return domain.Admin{}, err
	}
	snap, err := getSnapshot(ctx, ref)
	if err != nil {
		return domain.Admin{}, pfirestore.WrapError("admins.get", err)
	}
	var doc adminDocument
	if err := snap.DataTo(&doc); err != nil {
		return domain.Admin{}, fmt.Errorf("decode admin %s: %w", snap.Ref.ID, err)
	}
	return doc.toDomain(snap.Ref.ID), nil
}

func (r *AdminRepository) FindByEmail(ctx context.Context, email string) (domain.Admin, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return domain.Admin{}, errors.New("admin repository: email is required")
	}
	client, err := r.provider.Client(ctx)
	if err != nil {
		return domain.Admin{}, err
	}

	query := client.Collection(adminCollection).Where("email", "==", email).Limit(1)
	iter := queryDocuments(ctx, query)
	defer iter.Stop()

	snap, err := iter.Next()
	if errors.Is(err, iterator.Done) {
		return domain.Admin{}, pfirestore.WrapError("admins.findByEmail",
			notFoundStatus(fmt.Sprintf("admin %s not found", email)))
	}
	if err != nil {
		return domain.Admin{}, pfirestore.WrapError("admins.findByEmail", err)
	}
	var doc adminDocument
	if err := snap.DataTo(&doc); err != nil {
		return domain.Admin{}, fmt.Errorf("decode admin %s: %w", snap.Ref.ID, err)
	}
	return doc.toDomain(snap.Ref.ID), nil
}

type adminDocument struct {
	Name         string    `firestore:"name"`
	Email        string    `firestore:"email"`
	PasswordHash string    `firestore:"passwordHash"`
	Role         string    `firestore:"role"`
	IsActive     bool      `firestore:"isActive"`
	CreatedAt    time.Time `firestore:"createdAt"`
	UpdatedAt    time.Time `firestore:"updatedAt"`
}

func fromDomainAdmin(a domain.Admin) adminDocument {
	return adminDocument{
		Name:         strings.TrimSpace(a.Name),
		Email:        strings.ToLower(strings.TrimSpace(a.Email)),
		PasswordHash: a.PasswordHash,
		Role:         strings.TrimSpace(a.Role),
		IsActive:     a.IsActive,
		CreatedAt:    a.CreatedAt.UTC(),
		UpdatedAt:    a.UpdatedAt.UTC(),
	}
}

func (d adminDocument) toDomain(id string) domain.Admin {
	return domain.Admin{
		ID:           id,
		Name:         d.Name,
		Email:        d.Email,
		PasswordHash: d.PasswordHash,
		Role:         d.Role,
		IsActive:     d.IsActive,
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}
}

var _ repositories.AdminRepository = (*AdminRepository)(nil)
