package services

import (
	"github.com/betlink/governance-api/internal/config"
	"github.com/betlink/governance-api/internal/jobs"
	"github.com/betlink/governance-api/internal/repository"
)

// Services holds all service instances
type Services struct {
	Approval   *ApprovalService
	Audit      *AuditService
	Governance *GovernanceService
	Integrity  *IntegrityService
}

// NewServices creates all service instances
func NewServices(repos *repository.Repositories, worker *jobs.Worker, publisher StatusPublisher, cfg *config.Config) *Services {
	auditSvc := NewAuditService(repos.Audit)
	approvalSvc := NewApprovalService(repos.Module, cfg.QuorumSize)

	return &Services{
		Approval:   approvalSvc,
		Audit:      auditSvc,
		Governance: NewGovernanceService(repos.Module, approvalSvc, auditSvc, publisher, worker, cfg.GovernedModules),
		Integrity:  NewIntegrityService(repos.Audit),
	}
}
