package services

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/betlink/governance-api/internal/models"
	"github.com/betlink/governance-api/internal/repository"
	"github.com/betlink/governance-api/internal/statemachine"
	"github.com/betlink/governance-api/pkg/logger"
)

// OutcomeResult classifies what a proposal call achieved.
type OutcomeResult string

const (
	// OutcomeAlreadyInState means the module already is in the requested
	// state; idempotent no-op.
	OutcomeAlreadyInState OutcomeResult = "already_in_state"
	// OutcomeApprovalRecorded means the endorsement was counted but quorum
	// is not yet satisfied.
	OutcomeApprovalRecorded OutcomeResult = "approval_recorded"
	// OutcomeSupersededPending means a pending proposal for the opposite
	// action was discarded and this call started a fresh one. Last request
	// wins; callers are told explicitly so in-flight approvals are not
	// silently lost.
	OutcomeSupersededPending OutcomeResult = "superseded_pending"
	// OutcomeActivated means quorum was reached and the module changed state.
	OutcomeActivated OutcomeResult = "activated"
)

// Outcome reports the result of a single proposal against one module.
type Outcome struct {
	Result            OutcomeResult
	Status            string
	ApprovalCount     int
	RequiredApprovals int
}

const (
	maxCASRetries   = 3
	casRetryBackoff = 25 * time.Millisecond
)

// ApprovalService is the quorum state machine: it records administrator
// endorsements and flips a module's status once enough distinct admins agree.
type ApprovalService struct {
	moduleRepo repository.ModuleRepository
	quorum     int
}

// NewApprovalService creates a new approval service
func NewApprovalService(moduleRepo repository.ModuleRepository, quorum int) *ApprovalService {
	return &ApprovalService{moduleRepo: moduleRepo, quorum: quorum}
}

// Propose records one administrator's pause/resume intent for a module.
// The proposer's own request counts as the first approval. The whole
// read-decide-write cycle runs under optimistic concurrency: on a version
// conflict it is retried from the top, so two simultaneous endorsements can
// never both believe they are the quorum-completing one.
func (s *ApprovalService) Propose(ctx context.Context, moduleName, action, adminID, reason string) (*Outcome, error) {
	if action != models.ActionPause && action != models.ActionResume {
		return nil, ErrInvalidRequest
	}
	if moduleName == "" || adminID == "" {
		return nil, ErrInvalidRequest
	}

	for attempt := 0; attempt < maxCASRetries; attempt++ {
		module, err := s.moduleRepo.FindByName(ctx, moduleName)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		if err != nil {
			return nil, err
		}

		outcome, dirty, err := s.decide(ctx, module, action, adminID, reason)
		if err != nil {
			return nil, err
		}
		if !dirty {
			return outcome, nil
		}

		err = s.moduleRepo.CompareAndSwap(ctx, module)
		if errors.Is(err, repository.ErrVersionConflict) {
			logger.Debug("Approval write lost optimistic race, retrying",
				"module", moduleName, "admin", adminID, "attempt", attempt+1)
			time.Sleep(casRetryBackoff * time.Duration(attempt+1))
			continue
		}
		if err != nil {
			return nil, err
		}
		return outcome, nil
	}

	return nil, ErrTransientConflict
}

// decide mutates the in-memory module per the proposal and returns the
// outcome plus whether a write is required.
//
// The supersede check runs before the already-in-state check on purpose: a
// pending action only exists while the status differs from its target, so an
// opposite-direction proposal always targets the state the module already
// holds. Checking status first would make superseding unreachable and leave
// no way to withdraw an in-flight proposal.
func (s *ApprovalService) decide(ctx context.Context, module *models.GovernableModule, action, adminID, reason string) (*Outcome, bool, error) {
	target := models.ModuleStatusPaused
	if action == models.ActionResume {
		target = models.ModuleStatusRunning
	}

	now := time.Now().UTC()
	superseded := false
	pending := module.PendingAction

	switch {
	case pending != nil && pending.Action != action:
		// Opposite-direction proposal: discard the pending action and its
		// partial approvals, last request wins.
		superseded = true
		pending = s.freshPending(action, adminID, reason, now)
	case pending != nil:
		if pending.HasApproval(adminID) {
			// Duplicate endorsement is a no-op, not an error.
			return &Outcome{
				Result:            OutcomeApprovalRecorded,
				Status:            module.Status,
				ApprovalCount:     len(pending.Approvals),
				RequiredApprovals: pending.RequiredApprovals,
			}, false, nil
		}
		pending.Approvals = append(pending.Approvals, models.Approval{AdminID: adminID, ApprovedAt: now})
	default:
		if module.Status == target {
			return &Outcome{Result: OutcomeAlreadyInState, Status: module.Status}, false, nil
		}
		pending = s.freshPending(action, adminID, reason, now)
	}
	module.PendingAction = pending

	if pending.QuorumReached() {
		if module.Status == pending.TargetStatus() {
			// A proposal toward the state the module already holds can only
			// arise from a supersede chain; quorum here just settles it.
			module.PendingAction = nil
			return &Outcome{Result: OutcomeAlreadyInState, Status: module.Status}, true, nil
		}
		machine := statemachine.NewModuleFSM(module)
		if err := machine.Apply(ctx, action); err != nil {
			return nil, false, ErrInvalidState
		}
		changedAt := now
		module.LastChangedBy = pending.RequestedBy
		module.LastReason = pending.Reason
		module.LastChangedAt = &changedAt
		module.PendingAction = nil
		return &Outcome{
			Result:            OutcomeActivated,
			Status:            module.Status,
			ApprovalCount:     len(pending.Approvals),
			RequiredApprovals: pending.RequiredApprovals,
		}, true, nil
	}

	result := OutcomeApprovalRecorded
	if superseded {
		result = OutcomeSupersededPending
	}
	return &Outcome{
		Result:            result,
		Status:            module.Status,
		ApprovalCount:     len(pending.Approvals),
		RequiredApprovals: pending.RequiredApprovals,
	}, true, nil
}

// freshPending starts a new proposal; the proposer's own request counts as
// the first approval.
func (s *ApprovalService) freshPending(action, adminID, reason string, now time.Time) *models.PendingAction {
	return &models.PendingAction{
		Action:            action,
		RequestedBy:       adminID,
		RequestedAt:       now,
		Approvals:         []models.Approval{{AdminID: adminID, ApprovedAt: now}},
		RequiredApprovals: s.quorum,
		Reason:            reason,
	}
}
