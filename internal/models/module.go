package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Module status constants
const (
	ModuleStatusRunning = "running"
	ModuleStatusPaused  = "paused"
)

// Governance action constants
const (
	ActionPause  = "pause"
	ActionResume = "resume"
)

// Approval is one administrator's endorsement of a pending action.
type Approval struct {
	AdminID    string    `json:"admin_id"`
	ApprovedAt time.Time `json:"approved_at"`
}

// PendingAction is an in-flight pause/resume proposal waiting for quorum.
// At most one exists per module; it is stored inline in the module row so the
// optimistic lock on the row covers proposal and approvals together.
type PendingAction struct {
	Action            string     `json:"action"`
	RequestedBy       string     `json:"requested_by"`
	RequestedAt       time.Time  `json:"requested_at"`
	Approvals         []Approval `json:"approvals"`
	RequiredApprovals int        `json:"required_approvals"`
	Reason            string     `json:"reason"`
}

// HasApproval reports whether the admin already endorsed this action.
func (p *PendingAction) HasApproval(adminID string) bool {
	for _, a := range p.Approvals {
		if a.AdminID == adminID {
			return true
		}
	}
	return false
}

// QuorumReached reports whether enough distinct admins have endorsed.
func (p *PendingAction) QuorumReached() bool {
	return len(p.Approvals) >= p.RequiredApprovals
}

// TargetStatus returns the module status this action produces when activated.
func (p *PendingAction) TargetStatus() string {
	if p.Action == ActionPause {
		return ModuleStatusPaused
	}
	return ModuleStatusRunning
}

// Value implements driver.Valuer so PendingAction persists as JSONB.
func (p *PendingAction) Value() (driver.Value, error) {
	if p == nil {
		return nil, nil
	}
	return json.Marshal(p)
}

// Scan implements sql.Scanner for the JSONB column.
func (p *PendingAction) Scan(value interface{}) error {
	if value == nil {
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into PendingAction", value)
	}
	return json.Unmarshal(data, p)
}

// GovernableModule is the durable run-state record of one pausable financial
// subsystem (settlement, reward distribution, round resolution, draw engine,
// pool payout). Status never changes directly; it flips only when a pending
// action collects quorum.
type GovernableModule struct {
	ID            uint           `gorm:"primaryKey" json:"id"`
	ModuleName    string         `gorm:"size:100;uniqueIndex;not null" json:"module_name"`
	Status        string         `gorm:"size:20;not null;default:running" json:"status"`
	PendingAction *PendingAction `gorm:"type:jsonb" json:"pending_action"`
	LastChangedBy string         `gorm:"size:100" json:"last_changed_by"`
	LastReason    string         `gorm:"type:text" json:"last_reason"`
	LastChangedAt *time.Time     `json:"last_changed_at"`

	// LockVersion backs the compare-and-swap update; bumped on every write.
	LockVersion int64 `gorm:"not null;default:0" json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies the table name for GovernableModule
func (GovernableModule) TableName() string {
	return "governable_modules"
}

// IsRunning returns true when the module may execute monetary operations.
func (m *GovernableModule) IsRunning() bool {
	return m.Status == ModuleStatusRunning
}

// MayPause checks if a pause transition is possible
func (m *GovernableModule) MayPause() bool {
	return m.Status == ModuleStatusRunning
}

// MayResume checks if a resume transition is possible
func (m *GovernableModule) MayResume() bool {
	return m.Status == ModuleStatusPaused
}

// ModuleStatusEvent is the payload published to the real-time layer on every
// recorded approval or state change.
type ModuleStatusEvent struct {
	EventID       string         `json:"event_id"`
	ModuleName    string         `json:"module_name"`
	Status        string         `json:"status"`
	PendingAction *PendingAction `json:"pending_action"`
	LastChangedBy string         `json:"last_changed_by"`
	LastReason    string         `json:"last_reason"`
	Timestamp     time.Time      `json:"timestamp"`
}
