package services

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/betlink/governance-api/internal/models"
)

func TestPropose_QuorumPauseActivatesOnSecondApproval(t *testing.T) {
	repo := newMockModuleRepo()
	repo.seed("settlement", models.ModuleStatusRunning)
	svc := NewApprovalService(repo, 2)

	outcome, err := svc.Propose(context.Background(), "settlement", models.ActionPause, "adm1", "suspected exploit")
	require.NoError(t, err)
	assert.Equal(t, OutcomeApprovalRecorded, outcome.Result)
	assert.Equal(t, 1, outcome.ApprovalCount)
	assert.Equal(t, 2, outcome.RequiredApprovals)
	assert.Equal(t, models.ModuleStatusRunning, outcome.Status)

	outcome, err = svc.Propose(context.Background(), "settlement", models.ActionPause, "adm2", "confirmed exploit")
	require.NoError(t, err)
	assert.Equal(t, OutcomeActivated, outcome.Result)
	assert.Equal(t, models.ModuleStatusPaused, outcome.Status)
	assert.Equal(t, 2, outcome.ApprovalCount)

	module, err := repo.FindByName(context.Background(), "settlement")
	require.NoError(t, err)
	assert.Equal(t, models.ModuleStatusPaused, module.Status)
	assert.Nil(t, module.PendingAction)
	assert.Equal(t, "adm1", module.LastChangedBy)
	assert.Equal(t, "suspected exploit", module.LastReason)
	require.NotNil(t, module.LastChangedAt)
}

func TestPropose_DuplicateApprovalIsNoOp(t *testing.T) {
	repo := newMockModuleRepo()
	repo.seed("draw_engine", models.ModuleStatusRunning)
	svc := NewApprovalService(repo, 2)

	first, err := svc.Propose(context.Background(), "draw_engine", models.ActionPause, "adm1", "maintenance")
	require.NoError(t, err)
	second, err := svc.Propose(context.Background(), "draw_engine", models.ActionPause, "adm1", "maintenance")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, OutcomeApprovalRecorded, second.Result)
	assert.Equal(t, 1, second.ApprovalCount)

	module, _ := repo.FindByName(context.Background(), "draw_engine")
	require.NotNil(t, module.PendingAction)
	assert.Len(t, module.PendingAction.Approvals, 1)
	assert.Equal(t, models.ModuleStatusRunning, module.Status)
}

func TestPropose_AlreadyInState(t *testing.T) {
	repo := newMockModuleRepo()
	repo.seed("settlement", models.ModuleStatusRunning)
	svc := NewApprovalService(repo, 2)

	outcome, err := svc.Propose(context.Background(), "settlement", models.ActionResume, "adm1", "just checking")
	require.NoError(t, err)
	assert.Equal(t, OutcomeAlreadyInState, outcome.Result)
	assert.Equal(t, models.ModuleStatusRunning, outcome.Status)

	module, _ := repo.FindByName(context.Background(), "settlement")
	assert.Nil(t, module.PendingAction)
	assert.Equal(t, int64(0), module.LockVersion)
}

func TestPropose_UnknownModule(t *testing.T) {
	svc := NewApprovalService(newMockModuleRepo(), 2)

	_, err := svc.Propose(context.Background(), "ghost", models.ActionPause, "adm1", "x")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPropose_InvalidInput(t *testing.T) {
	svc := NewApprovalService(newMockModuleRepo(), 2)

	_, err := svc.Propose(context.Background(), "settlement", "explode", "adm1", "x")
	assert.ErrorIs(t, err, ErrInvalidRequest)

	_, err = svc.Propose(context.Background(), "settlement", models.ActionPause, "", "x")
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestPropose_QuorumOfOneActivatesImmediately(t *testing.T) {
	repo := newMockModuleRepo()
	repo.seed("pool_payout", models.ModuleStatusRunning)
	svc := NewApprovalService(repo, 1)

	outcome, err := svc.Propose(context.Background(), "pool_payout", models.ActionPause, "adm1", "solo quorum")
	require.NoError(t, err)
	assert.Equal(t, OutcomeActivated, outcome.Result)
	assert.Equal(t, models.ModuleStatusPaused, outcome.Status)
}

func TestPropose_OppositeActionSupersedesPending(t *testing.T) {
	repo := newMockModuleRepo()
	repo.seed("reward_distribution", models.ModuleStatusRunning)
	svc := NewApprovalService(repo, 2)

	_, err := svc.Propose(context.Background(), "reward_distribution", models.ActionPause, "adm1", "emergency")
	require.NoError(t, err)

	// adm2 withdraws the in-flight pause; adm1's partial approval is gone.
	outcome, err := svc.Propose(context.Background(), "reward_distribution", models.ActionResume, "adm2", "false alarm")
	require.NoError(t, err)
	assert.Equal(t, OutcomeSupersededPending, outcome.Result)
	assert.Equal(t, 1, outcome.ApprovalCount)
	assert.Equal(t, models.ModuleStatusRunning, outcome.Status)

	module, _ := repo.FindByName(context.Background(), "reward_distribution")
	require.NotNil(t, module.PendingAction)
	assert.Equal(t, models.ActionResume, module.PendingAction.Action)
	assert.Len(t, module.PendingAction.Approvals, 1)
	assert.Equal(t, "adm2", module.PendingAction.Approvals[0].AdminID)
	assert.Equal(t, models.ModuleStatusRunning, module.Status)

	// A new pause proposal supersedes right back, starting from one approval.
	outcome, err = svc.Propose(context.Background(), "reward_distribution", models.ActionPause, "adm3", "real this time")
	require.NoError(t, err)
	assert.Equal(t, OutcomeSupersededPending, outcome.Result)
	assert.Equal(t, 1, outcome.ApprovalCount)
}

func TestPropose_SupersededResumeSettlesWithoutTransition(t *testing.T) {
	repo := newMockModuleRepo()
	repo.seed("round_resolution", models.ModuleStatusRunning)
	svc := NewApprovalService(repo, 2)

	_, err := svc.Propose(context.Background(), "round_resolution", models.ActionPause, "adm1", "incident")
	require.NoError(t, err)
	_, err = svc.Propose(context.Background(), "round_resolution", models.ActionResume, "adm2", "resolved")
	require.NoError(t, err)

	// Second distinct endorsement of a resume on a running module reaches
	// quorum but has nothing to transition; the pending action just settles.
	outcome, err := svc.Propose(context.Background(), "round_resolution", models.ActionResume, "adm3", "resolved")
	require.NoError(t, err)
	assert.Equal(t, OutcomeAlreadyInState, outcome.Result)

	module, _ := repo.FindByName(context.Background(), "round_resolution")
	assert.Nil(t, module.PendingAction)
	assert.Equal(t, models.ModuleStatusRunning, module.Status)
}

func TestPropose_ExhaustedRetriesSurfaceConflict(t *testing.T) {
	inner := newMockModuleRepo()
	inner.seed("settlement", models.ModuleStatusRunning)
	repo := &conflictingModuleRepo{mockModuleRepo: inner}
	svc := NewApprovalService(repo, 2)

	_, err := svc.Propose(context.Background(), "settlement", models.ActionPause, "adm1", "contended")
	assert.ErrorIs(t, err, ErrTransientConflict)
	assert.Equal(t, maxCASRetries, repo.attempts)

	// The losing writes left no trace on the module.
	module, _ := inner.FindByName(context.Background(), "settlement")
	assert.Nil(t, module.PendingAction)
	assert.Equal(t, models.ModuleStatusRunning, module.Status)
}

func TestPropose_ConcurrentApprovalsActivateExactlyOnce(t *testing.T) {
	repo := newMockModuleRepo()
	repo.seed("settlement", models.ModuleStatusRunning)
	svc := NewApprovalService(repo, 2)

	var wg sync.WaitGroup
	outcomes := make([]*Outcome, 2)
	errs := make([]error, 2)
	admins := []string{"adm1", "adm2"}

	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			outcomes[i], errs[i] = svc.Propose(context.Background(), "settlement", models.ActionPause, admins[i], "race")
		}(i)
	}
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])

	activated := 0
	for _, outcome := range outcomes {
		if outcome.Result == OutcomeActivated {
			activated++
		}
	}
	assert.Equal(t, 1, activated, "exactly one caller must complete the quorum")

	module, _ := repo.FindByName(context.Background(), "settlement")
	assert.Equal(t, models.ModuleStatusPaused, module.Status)
	assert.Nil(t, module.PendingAction)
}
