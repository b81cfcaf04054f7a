package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"github.com/betlink/governance-api/internal/models"
)

// ModuleRepository defines the interface for governable module state access
type ModuleRepository interface {
	FindByName(ctx context.Context, moduleName string) (*models.GovernableModule, error)
	FindAll(ctx context.Context) ([]models.GovernableModule, error)
	// UpsertIfMissing creates the module with status running if absent.
	// Idempotent; safe on every process start. Returns true when created.
	UpsertIfMissing(ctx context.Context, moduleName string) (*models.GovernableModule, bool, error)
	// CompareAndSwap persists the module only if its lock_version is unchanged
	// since it was read. Returns ErrVersionConflict otherwise.
	CompareAndSwap(ctx context.Context, module *models.GovernableModule) error
}

type moduleRepository struct {
	db *gorm.DB
}

// NewModuleRepository creates a new module repository
func NewModuleRepository(db *gorm.DB) ModuleRepository {
	return &moduleRepository{db: db}
}

func (r *moduleRepository) FindByName(ctx context.Context, moduleName string) (*models.GovernableModule, error) {
	var module models.GovernableModule
	err := r.db.WithContext(ctx).
		Where("module_name = ?", moduleName).
		First(&module).Error
	if err != nil {
		return nil, err
	}
	return &module, nil
}

func (r *moduleRepository) FindAll(ctx context.Context) ([]models.GovernableModule, error) {
	var modules []models.GovernableModule
	err := r.db.WithContext(ctx).
		Order("module_name ASC").
		Find(&modules).Error
	return modules, err
}

func (r *moduleRepository) UpsertIfMissing(ctx context.Context, moduleName string) (*models.GovernableModule, bool, error) {
	module := &models.GovernableModule{
		ModuleName: moduleName,
		Status:     models.ModuleStatusRunning,
	}
	err := r.db.WithContext(ctx).Create(module).Error
	if err == nil {
		return module, true, nil
	}
	// Concurrent bootstrap from another process instance is expected; fall
	// back to the existing row on unique violation.
	if !isUniqueViolation(err) {
		return nil, false, err
	}
	existing, ferr := r.FindByName(ctx, moduleName)
	if ferr != nil {
		return nil, false, ferr
	}
	return existing, false, nil
}

func (r *moduleRepository) CompareAndSwap(ctx context.Context, module *models.GovernableModule) error {
	res := r.db.WithContext(ctx).
		Model(&models.GovernableModule{}).
		Where("module_name = ? AND lock_version = ?", module.ModuleName, module.LockVersion).
		Updates(map[string]interface{}{
			"status":          module.Status,
			"pending_action":  module.PendingAction,
			"last_changed_by": module.LastChangedBy,
			"last_reason":     module.LastReason,
			"last_changed_at": module.LastChangedAt,
			"lock_version":    module.LockVersion + 1,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrVersionConflict
	}
	module.LockVersion++
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
