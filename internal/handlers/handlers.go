package handlers

import (
	"github.com/betlink/governance-api/internal/jobs"
	"github.com/betlink/governance-api/internal/services"
)

// Handlers holds all handler instances
type Handlers struct {
	Health     *HealthHandler
	Governance *GovernanceHandler
	Audit      *AuditHandler
}

// NewHandlers creates all handler instances
func NewHandlers(svcs *services.Services, worker *jobs.Worker) *Handlers {
	return &Handlers{
		Health:     NewHealthHandler(worker),
		Governance: NewGovernanceHandler(svcs.Governance),
		Audit:      NewAuditHandler(svcs.Audit, svcs.Integrity),
	}
}
