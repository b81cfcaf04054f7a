package statemachine

import (
	"context"
	"fmt"

	"github.com/looplab/fsm"

	"github.com/betlink/governance-api/internal/models"
)

// ModuleFSM wraps a governable module with its run-state machine. It is the
// only code path that writes GovernableModule.Status.
type ModuleFSM struct {
	module *models.GovernableModule
	fsm    *fsm.FSM
}

// NewModuleFSM creates a state machine seeded from the module's current status
func NewModuleFSM(module *models.GovernableModule) *ModuleFSM {
	m := &ModuleFSM{
		module: module,
	}

	m.fsm = fsm.NewFSM(
		module.Status,
		fsm.Events{
			// running → paused
			{Name: "pause", Src: []string{models.ModuleStatusRunning}, Dst: models.ModuleStatusPaused},

			// paused → running
			{Name: "resume", Src: []string{models.ModuleStatusPaused}, Dst: models.ModuleStatusRunning},
		},
		fsm.Callbacks{},
	)

	return m
}

// Pause transitions the module to paused state
func (m *ModuleFSM) Pause(ctx context.Context) error {
	if !m.module.MayPause() {
		return fmt.Errorf("module cannot be paused in current state: %s", m.module.Status)
	}

	if err := m.fsm.Event(ctx, "pause"); err != nil {
		return fmt.Errorf("failed to pause module: %w", err)
	}

	m.module.Status = m.fsm.Current()
	return nil
}

// Resume transitions the module back to running state
func (m *ModuleFSM) Resume(ctx context.Context) error {
	if !m.module.MayResume() {
		return fmt.Errorf("module cannot be resumed in current state: %s", m.module.Status)
	}

	if err := m.fsm.Event(ctx, "resume"); err != nil {
		return fmt.Errorf("failed to resume module: %w", err)
	}

	m.module.Status = m.fsm.Current()
	return nil
}

// Apply fires the transition matching a governance action
func (m *ModuleFSM) Apply(ctx context.Context, action string) error {
	switch action {
	case models.ActionPause:
		return m.Pause(ctx)
	case models.ActionResume:
		return m.Resume(ctx)
	default:
		return fmt.Errorf("unknown governance action: %s", action)
	}
}

// Current returns the current state
func (m *ModuleFSM) Current() string {
	return m.fsm.Current()
}

// Can checks if a transition is possible
func (m *ModuleFSM) Can(event string) bool {
	return m.fsm.Can(event)
}
