package services

import (
	"context"
	"time"

	"github.com/betlink/governance-api/internal/models"
	"github.com/betlink/governance-api/internal/repository"
)

// AuditService writes and reads the hash-chained governance audit log.
type AuditService struct {
	repo repository.AuditRepository
}

// NewAuditService creates a new audit service
func NewAuditService(repo repository.AuditRepository) *AuditService {
	return &AuditService{repo: repo}
}

// Append records one governance or security event at the tail of the chain.
// Sequence, prev_hash and hash are assigned by the repository under strict
// serialization; the returned entry carries them.
func (s *AuditService) Append(ctx context.Context, eventType, severity, actorID string, affectedModules []string, reason, ip string) (*models.AuditEntry, error) {
	entry := &models.AuditEntry{
		EventType:       eventType,
		Severity:        severity,
		ActorID:         actorID,
		AffectedModules: affectedModules,
		Reason:          reason,
		IPAddress:       ip,
		// Truncated so the stored timestamptz reproduces the hashed value.
		CreatedAt: time.Now().UTC().Truncate(time.Microsecond),
	}
	if err := s.repo.Append(ctx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// List retrieves audit entries with filters and pagination
func (s *AuditService) List(ctx context.Context, query *repository.AuditQuery) ([]models.AuditEntry, int64, error) {
	if query == nil {
		query = repository.NewAuditQuery()
	}
	if query.Page < 1 {
		query.Page = 1
	}
	if query.PerPage < 1 || query.PerPage > 500 {
		query.PerPage = 50
	}
	return s.repo.List(ctx, query)
}

// LastSequence returns the tail sequence of the chain, or -1 when empty.
func (s *AuditService) LastSequence(ctx context.Context) (int64, error) {
	return s.repo.LastSequence(ctx)
}
