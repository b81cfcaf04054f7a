package repository

import (
	"errors"

	"gorm.io/gorm"
)

// ErrVersionConflict signals a lost optimistic-concurrency race; the caller
// should re-read and retry.
var ErrVersionConflict = errors.New("version conflict")

// Repositories holds all repository instances
type Repositories struct {
	Module ModuleRepository
	Audit  AuditRepository
}

// NewRepositories creates all repository instances
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		Module: NewModuleRepository(db),
		Audit:  NewAuditRepository(db),
	}
}
