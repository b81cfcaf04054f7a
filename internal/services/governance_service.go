package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/betlink/governance-api/internal/jobs"
	"github.com/betlink/governance-api/internal/models"
	"github.com/betlink/governance-api/internal/repository"
	"github.com/betlink/governance-api/pkg/logger"
)

// Per-module result codes reported back to the administrator. Batch requests
// succeed partially: every module gets its own verdict.
const (
	ResultNotFound = "not_found"
	ResultConflict = "conflict"
)

// ModuleActionResult is one module's verdict within a batch request.
type ModuleActionResult struct {
	ModuleName        string `json:"module_name"`
	Result            string `json:"result"`
	Status            string `json:"status,omitempty"`
	ApprovalCount     int    `json:"approval_count,omitempty"`
	RequiredApprovals int    `json:"required_approvals,omitempty"`
}

// GovernanceService is the boundary component: it validates requests, drives
// the approval engine, writes the audit trail and republishes module state.
type GovernanceService struct {
	moduleRepo  repository.ModuleRepository
	approvalSvc *ApprovalService
	auditSvc    *AuditService
	publisher   StatusPublisher
	worker      *jobs.Worker
	moduleNames []string
}

// NewGovernanceService creates a new governance service
func NewGovernanceService(
	moduleRepo repository.ModuleRepository,
	approvalSvc *ApprovalService,
	auditSvc *AuditService,
	publisher StatusPublisher,
	worker *jobs.Worker,
	moduleNames []string,
) *GovernanceService {
	return &GovernanceService{
		moduleRepo:  moduleRepo,
		approvalSvc: approvalSvc,
		auditSvc:    auditSvc,
		publisher:   publisher,
		worker:      worker,
		moduleNames: moduleNames,
	}
}

// Bootstrap upserts every configured governable module with status running.
// Idempotent; runs on every process start. Newly registered modules are
// audited once.
func (s *GovernanceService) Bootstrap(ctx context.Context) error {
	for _, name := range s.moduleNames {
		module, created, err := s.moduleRepo.UpsertIfMissing(ctx, name)
		if err != nil {
			return fmt.Errorf("bootstrap module %s: %w", name, err)
		}
		if created {
			if _, err := s.auditSvc.Append(ctx, models.EventModuleRegistered, models.SeverityInfo,
				"system", []string{name}, "module registered at bootstrap", ""); err != nil {
				return fmt.Errorf("audit bootstrap of %s: %w", name, err)
			}
			logger.Info("Registered governable module", "module", module.ModuleName)
		}
	}
	return nil
}

// RequestPause proposes pausing each named module on behalf of one admin.
func (s *GovernanceService) RequestPause(ctx context.Context, moduleNames []string, adminID, reason, ip string) ([]ModuleActionResult, error) {
	return s.request(ctx, models.ActionPause, moduleNames, adminID, reason, ip)
}

// RequestResume proposes resuming each named module on behalf of one admin.
func (s *GovernanceService) RequestResume(ctx context.Context, moduleNames []string, adminID, reason, ip string) ([]ModuleActionResult, error) {
	return s.request(ctx, models.ActionResume, moduleNames, adminID, reason, ip)
}

func (s *GovernanceService) request(ctx context.Context, action string, moduleNames []string, adminID, reason, ip string) ([]ModuleActionResult, error) {
	if len(moduleNames) == 0 || adminID == "" {
		return nil, ErrInvalidRequest
	}

	results := make([]ModuleActionResult, 0, len(moduleNames))
	touched := make([]string, 0, len(moduleNames))

	for _, name := range moduleNames {
		outcome, err := s.approvalSvc.Propose(ctx, name, action, adminID, reason)
		switch {
		case errors.Is(err, ErrNotFound):
			// Unknown names are skipped, not fatal to the batch.
			results = append(results, ModuleActionResult{ModuleName: name, Result: ResultNotFound})
			continue
		case errors.Is(err, ErrTransientConflict):
			results = append(results, ModuleActionResult{ModuleName: name, Result: ResultConflict})
			continue
		case err != nil:
			return nil, err
		}

		s.audit(ctx, action, name, adminID, reason, ip, outcome)
		if outcome.Result != OutcomeAlreadyInState {
			touched = append(touched, name)
		}

		results = append(results, ModuleActionResult{
			ModuleName:        name,
			Result:            string(outcome.Result),
			Status:            outcome.Status,
			ApprovalCount:     outcome.ApprovalCount,
			RequiredApprovals: outcome.RequiredApprovals,
		})
	}

	if len(touched) > 0 {
		s.publishSnapshots(touched)
	}
	return results, nil
}

// audit maps an approval outcome to its durable audit entry. Redundant
// requests against an already-satisfied state leave only a log trace.
func (s *GovernanceService) audit(ctx context.Context, action, moduleName, adminID, reason, ip string, outcome *Outcome) {
	var eventType, severity string
	auditReason := reason

	switch outcome.Result {
	case OutcomeAlreadyInState:
		logger.Debug("Redundant governance request",
			"module", moduleName, "action", action, "admin", adminID)
		return
	case OutcomeActivated:
		if action == models.ActionPause {
			eventType, severity = models.EventPauseActivated, models.SeverityCritical
		} else {
			eventType, severity = models.EventResumeActivated, models.SeverityWarning
		}
	case OutcomeSupersededPending:
		auditReason = fmt.Sprintf("%s (superseded pending %s)", reason, oppositeAction(action))
		if action == models.ActionPause {
			eventType, severity = models.EventPauseRequested, models.SeverityWarning
		} else {
			eventType, severity = models.EventResumeRequested, models.SeverityWarning
		}
	default:
		if action == models.ActionPause {
			eventType, severity = models.EventPauseRequested, models.SeverityWarning
		} else {
			eventType, severity = models.EventResumeRequested, models.SeverityInfo
		}
	}

	if _, err := s.auditSvc.Append(ctx, eventType, severity, adminID, []string{moduleName}, auditReason, ip); err != nil {
		logger.Error("Failed to append audit entry",
			"event_type", eventType, "module", moduleName, "error", err)
	}
}

// publishSnapshots pushes the current state of the touched modules to the
// real-time layer, off the request path.
func (s *GovernanceService) publishSnapshots(moduleNames []string) {
	names := make([]string, len(moduleNames))
	copy(names, moduleNames)

	s.worker.EnqueueAsync(func(ctx context.Context) error {
		for _, name := range names {
			module, err := s.moduleRepo.FindByName(ctx, name)
			if err != nil {
				logger.Error("Failed to load module for publication", "module", name, "error", err)
				continue
			}
			if err := s.publisher.PublishStatus(ctx, snapshotEvent(module)); err != nil {
				logger.Error("Failed to publish module status", "module", name, "error", err)
			}
		}
		return nil
	})
}

// GetStatus returns one module's current state and in-flight proposal.
// Consulted by every financial module before executing a monetary operation.
func (s *GovernanceService) GetStatus(ctx context.Context, moduleName string) (*models.GovernableModule, error) {
	module, err := s.moduleRepo.FindByName(ctx, moduleName)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return module, nil
}

// ListStatus returns every governable module's state.
func (s *GovernanceService) ListStatus(ctx context.Context) ([]models.GovernableModule, error) {
	return s.moduleRepo.FindAll(ctx)
}

// BroadcastStatuses republishes every module's current state. Driven by the
// periodic scheduler so late subscribers converge without a state change.
func (s *GovernanceService) BroadcastStatuses(ctx context.Context) error {
	modules, err := s.moduleRepo.FindAll(ctx)
	if err != nil {
		return err
	}
	for i := range modules {
		if err := s.publisher.PublishStatus(ctx, snapshotEvent(&modules[i])); err != nil {
			logger.Error("Failed to broadcast module status", "module", modules[i].ModuleName, "error", err)
		}
	}
	return nil
}

func snapshotEvent(module *models.GovernableModule) *models.ModuleStatusEvent {
	return &models.ModuleStatusEvent{
		EventID:       uuid.NewString(),
		ModuleName:    module.ModuleName,
		Status:        module.Status,
		PendingAction: module.PendingAction,
		LastChangedBy: module.LastChangedBy,
		LastReason:    module.LastReason,
		Timestamp:     time.Now().UTC(),
	}
}

func oppositeAction(action string) string {
	if action == models.ActionPause {
		return models.ActionResume
	}
	return models.ActionPause
}
