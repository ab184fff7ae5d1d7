package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/greenmart/api/internal/domain"
	"github.com/greenmart/api/internal/repositories"
)

const (
	activityLogIDPrefix = "log_"
	ipHashPrefix        = "sha256:"
)

// AuditLogger defines the logging contract used by the audit writer service.
type AuditLogger interface {
	Warnf(format string, args ...any)
}

// AuditLogServiceDeps bundles constructor inputs for the audit writer service.
type AuditLogServiceDeps struct {
	Repository  repositories.AuditLogRepository
	Clock       func() time.Time
	IDGenerator func() string
	Logger      AuditLogger
	HashSalt    string
}

type auditLogService struct {
	repo     repositories.AuditLogRepository
	clock    func() time.Time
	newID    func() string
	logger   AuditLogger
	hashSalt string
}

// NewAuditLogService creates an audit log writer backed by the supplied repository.
func NewAuditLogService(deps AuditLogServiceDeps) (AuditLogService, error) {
	if deps.Repository == nil {
		return nil, errors.New("audit log service: repository is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string { return ulid.Make().String() }
	}
	logger := deps.Logger
	if logger == nil {
		logger = noopAuditLogger{}
	}

	return &auditLogService{
		repo:     deps.Repository,
		clock:    func() time.Time { return clock().UTC() },
		newID:    idGen,
		logger:   logger,
		hashSalt: deps.HashSalt,
	}, nil
}

// Record persists an audit trail entry. Repository failures are logged but do
// not bubble up, so the primary mutation flow is never interrupted.
func (s *auditLogService) Record(ctx context.Context, record AuditLogRecord) {
	occurred := record.OccurredAt
	if occurred.IsZero() {
		occurred = s.clock()
	} else {
		occurred = occurred.UTC()
	}

	entry := domain.ActivityLog{
		ID:         activityLogIDPrefix + s.newID(),
		ActorID:    strings.TrimSpace(record.ActorID),
		ActorRole:  strings.TrimSpace(record.ActorRole),
		Action:     strings.TrimSpace(record.Action),
		EntityType: strings.TrimSpace(record.EntityType),
		EntityID:   strings.TrimSpace(record.EntityID),
		Changes:    record.Changes,
		CreatedAt:  occurred,
	}
	if ip := strings.TrimSpace(record.IPAddress); ip != "" {
		entry.IPHash = ipHashPrefix + s.hashString(ip)
	}

	if err := s.repo.Append(ctx, entry); err != nil {
		s.logger.Warnf("audit log append failed: %v", err)
	}
}

// List delegates to the repository to retrieve paginated audit entries.
func (s *auditLogService) List(ctx context.Context, filter AuditLogFilter) (domain.CursorPage[ActivityLog], error) {
	page, err := s.repo.List(ctx, filter)
	if err != nil {
		return domain.CursorPage[ActivityLog]{}, err
	}
	return page, nil
}

func (s *auditLogService) hashString(value string) string {
	sum := sha256.Sum256([]byte(s.hashSalt + strings.TrimSpace(value)))
	return hex.EncodeToString(sum[:])
}

type noopAuditLogger struct{}

func (noopAuditLogger) Warnf(string, ...any) {}
