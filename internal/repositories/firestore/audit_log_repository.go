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

const activityLogCollection = "activityLogs"

// AuditLogRepository persists immutable audit entries. Documents are only
// ever created, never updated or deleted.
type AuditLogRepository struct {
	provider *pfirestore.Provider
	base     *pfirestore.BaseRepository[activityLogDocument]
}

// NewAuditLogRepository constructs a Firestore-backed audit log repository.
func NewAuditLogRepository(provider *pfirestore.Provider) (*AuditLogRepository, error) {
	if provider == nil {
		return nil, errors.New("audit log repository requires firestore provider")
	}
	base := pfirestore.NewBaseRepository[activityLogDocument](provider, activityLogCollection, nil, nil)
	return &AuditLogRepository{provider: provider, base: base}, nil
}

func (r *AuditLogRepository) Append(ctx context.Context, entry domain.ActivityLog) error {
	ref, err := r.base.DocumentRef(ctx, entry.ID)
	if err != nil {
		return err
	}
	if err := createDocument(ctx, ref, fromDomainActivityLog(entry)); err != nil {
		return pfirestore.WrapError("activityLogs.append", err)
	}
	return nil
}

func (r *AuditLogRepository) List(ctx context.Context, filter repositories.AuditLogFilter) (domain.CursorPage[domain.ActivityLog], error) {
	client, err := r.provider.Client(ctx)
	if err != nil {
		return domain.CursorPage[domain.ActivityLog]{}, err
	}

	query := client.Collection(activityLogCollection).Query
	if actorID := strings.TrimSpace(filter.ActorID); actorID != "" {
		query = query.Where("actorId", "==", actorID)
	}
	if action := strings.TrimSpace(filter.Action); action != "" {
		query = query.Where("action", "==", action)
	}
	if entityType := strings.TrimSpace(filter.EntityType); entityType != "" {
		query = query.Where("entityType", "==", entityType)
	}
	if entityID := strings.TrimSpace(filter.EntityID); entityID != "" {
		query = query.Where("entityId", "==", entityID)
	}
	if filter.DateRange.From != nil {
		query = query.Where("createdAt", ">=", filter.DateRange.From.UTC())
	}
	if filter.DateRange.To != nil {
		query = query.Where("createdAt", "<=", filter.DateRange.To.UTC())
	}

	query = query.OrderBy("createdAt", firestore.Desc).OrderBy(firestore.DocumentID, firestore.Desc)

	limit := filter.Pagination.PageSize
	if limit <= 0 {
		limit = 50
	}
	query = query.Limit(limit + 1)

	if token := strings.TrimSpace(filter.Pagination.PageToken); token != "" {
		sortValue, docID, err := pagination.DecodeCursor(token)
		if err != nil {
			return domain.CursorPage[domain.ActivityLog]{}, fmt.Errorf("activityLogs.list: invalid page token: %w", err)
		}
		query = query.StartAfter(sortValue, docID)
	}

	iter := queryDocuments(ctx, query)
	defer iter.Stop()

	var entries []domain.ActivityLog
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return domain.CursorPage[domain.ActivityLog]{}, pfirestore.WrapError("activityLogs.list", err)
		}
		var doc activityLogDocument
		if err := snap.DataTo(&doc); err != nil {
			return domain.CursorPage[domain.ActivityLog]{}, fmt.Errorf("decode activity log %s: %w", snap.Ref.ID, err)
		}
		entries = append(entries, doc.toDomain(snap.Ref.ID))
	}

	nextToken := ""
	if len(entries) > limit {
		entries = entries[:limit]
		last := entries[len(entries)-1]
		nextToken = pagination.EncodeCursor(last.CreatedAt, last.ID)
	}

	return domain.CursorPage[domain.ActivityLog]{Items: entries, NextPageToken: nextToken}, nil
}

type activityLogDocument struct {
	ActorID    string         `firestore:"actorId"`
	ActorRole  string         `firestore:"actorRole"`
	Action     string         `firestore:"action"`
	EntityType string         `firestore:"entityType,omitempty"`
	EntityID   string         `firestore:"entityId,omitempty"`
	Changes    map[string]any `firestore:"changes,omitempty"`
	IPHash     string         `firestore:"ipHash,omitempty"`
	CreatedAt  time.Time      `firestore:"createdAt"`
}

func fromDomainActivityLog(e domain.ActivityLog) activityLogDocument {
	return activityLogDocument{
		ActorID:    e.ActorID,
		ActorRole:  e.ActorRole,
		Action:     e.Action,
		EntityType: e.EntityType,
		EntityID:   e.EntityID,
		Changes:    e.Changes,
		IPHash:     e.IPHash,
		CreatedAt:  e.CreatedAt.UTC(),
	}
}

func (d activityLogDocument) toDomain(id string) domain.ActivityLog {
	return domain.ActivityLog{
		ID:         id,
		ActorID:    d.ActorID,
		ActorRole:  d.ActorRole,
		Action:     d.Action,
		EntityType: d.EntityType,
		EntityID:   d.EntityID,
		Changes:    d.Changes,
		IPHash:     d.IPHash,
		CreatedAt:  d.CreatedAt,
	}
}

var _ repositories.AuditLogRepository = (*AuditLogRepository)(nil)
