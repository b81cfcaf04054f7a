package services

import "errors"

// Common service errors
var (
	ErrNotFound           = errors.New("module not found")
	ErrInvalidRequest     = errors.New("invalid request")
	ErrInvalidState       = errors.New("invalid state transition")
	ErrTransientConflict  = errors.New("concurrent update conflict, retry the request")
	ErrIntegrityViolation = errors.New("audit chain integrity violation")
)
