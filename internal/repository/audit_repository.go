package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/betlink/governance-api/internal/models"
)

// auditChainLockID keys the Postgres advisory lock that serializes appends.
const auditChainLockID = 815002

// AuditQuery holds filters and pagination for audit listings
type AuditQuery struct {
	EventType string
	Severity  string
	ActorID   string
	From      *time.Time
	To        *time.Time
	Page      int
	PerPage   int
}

// NewAuditQuery creates an AuditQuery with defaults
func NewAuditQuery() *AuditQuery {
	return &AuditQuery{
		Page:    1,
		PerPage: 50,
	}
}

// AuditRepository defines the interface for audit chain access
type AuditRepository interface {
	// Append assigns the next sequence and prev_hash, computes the entry hash
	// and persists it. Sequence reservation is serialized across processes.
	Append(ctx context.Context, entry *models.AuditEntry) error
	List(ctx context.Context, query *AuditQuery) ([]models.AuditEntry, int64, error)
	// FindRange returns entries with sequence in [start, end], ascending.
	FindRange(ctx context.Context, start, end int64) ([]models.AuditEntry, error)
	LastSequence(ctx context.Context) (int64, error)
}

type auditRepository struct {
	db *gorm.DB
}

// NewAuditRepository creates a new audit repository
func NewAuditRepository(db *gorm.DB) AuditRepository {
	return &auditRepository{db: db}
}

func (r *auditRepository) Append(ctx context.Context, entry *models.AuditEntry) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Transaction-scoped advisory lock: the one place the chain needs
		// strict mutual exclusion. Released automatically on commit/rollback.
		if err := tx.Exec("SELECT pg_advisory_xact_lock(?)", auditChainLockID).Error; err != nil {
			return err
		}

		var tail models.AuditEntry
		err := tx.Order("sequence DESC").First(&tail).Error
		switch {
		case err == nil:
			entry.Sequence = tail.Sequence + 1
			entry.PrevHash = tail.Hash
		case errors.Is(err, gorm.ErrRecordNotFound):
			entry.Sequence = 0
			entry.PrevHash = models.GenesisHash
		default:
			return err
		}

		entry.Hash = entry.ComputeHash()
		return tx.Create(entry).Error
	})
}

func (r *auditRepository) List(ctx context.Context, query *AuditQuery) ([]models.AuditEntry, int64, error) {
	var entries []models.AuditEntry
	var total int64

	db := r.db.WithContext(ctx).Model(&models.AuditEntry{})
	if query.EventType != "" {
		db = db.Where("event_type = ?", query.EventType)
	}
	if query.Severity != "" {
		db = db.Where("severity = ?", query.Severity)
	}
	if query.ActorID != "" {
		db = db.Where("actor_id = ?", query.ActorID)
	}
	if query.From != nil {
		db = db.Where("created_at >= ?", *query.From)
	}
	if query.To != nil {
		db = db.Where("created_at <= ?", *query.To)
	}

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (query.Page - 1) * query.PerPage
	err := db.Order("sequence DESC").Limit(query.PerPage).Offset(offset).Find(&entries).Error
	return entries, total, err
}

func (r *auditRepository) FindRange(ctx context.Context, start, end int64) ([]models.AuditEntry, error) {
	var entries []models.AuditEntry
	err := r.db.WithContext(ctx).
		Where("sequence BETWEEN ? AND ?", start, end).
		Order("sequence ASC").
		Find(&entries).Error
	return entries, err
}

func (r *auditRepository) LastSequence(ctx context.Context) (int64, error) {
	var tail models.AuditEntry
	err := r.db.WithContext(ctx).Order("sequence DESC").First(&tail).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return -1, nil
	}
	if err != nil {
		return -1, err
	}
	return tail.Sequence, nil
}
