package models

import (
	"crypto/sha256"
	"database/sql/driver"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Severity levels for audit entries
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// Audit event types
const (
	EventPauseRequested   = "PAUSE_REQUESTED"
	EventPauseActivated   = "PAUSE_ACTIVATED"
	EventResumeRequested  = "RESUME_REQUESTED"
	EventResumeActivated  = "RESUME_ACTIVATED"
	EventModuleRegistered = "MODULE_REGISTERED"
)

// GenesisHash is the prev_hash of the first entry in the chain.
const GenesisHash = "0000000000000000000000000000000000000000000000000000000000000000"

// StringList persists a []string as a JSONB column.
type StringList []string

// Value implements driver.Valuer
func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return json.Marshal([]string{})
	}
	return json.Marshal([]string(l))
}

// Scan implements sql.Scanner
func (l *StringList) Scan(value interface{}) error {
	if value == nil {
		*l = nil
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into StringList", value)
	}
	return json.Unmarshal(data, (*[]string)(l))
}

// AuditEntry is one immutable line in the hash-chained governance audit log.
// Sequence is gapless and global; each entry carries the hash of its
// predecessor so any retroactive edit, reorder or deletion breaks the chain.
type AuditEntry struct {
	Sequence        int64      `gorm:"primaryKey;autoIncrement:false" json:"sequence"`
	EventType       string     `gorm:"size:50;not null;index" json:"event_type"`
	Severity        string     `gorm:"size:20;not null;index" json:"severity"`
	ActorID         string     `gorm:"size:100;not null;index" json:"actor_id"`
	AffectedModules StringList `gorm:"type:jsonb" json:"affected_modules"`
	Reason          string     `gorm:"type:text" json:"reason"`
	IPAddress       string     `gorm:"size:45" json:"ip_address"`
	CreatedAt       time.Time  `gorm:"not null" json:"created_at"`
	PrevHash        string     `gorm:"size:64;not null" json:"prev_hash"`
	Hash            string     `gorm:"size:64;not null" json:"hash"`
}

// TableName specifies the table name for AuditEntry
func (AuditEntry) TableName() string {
	return "audit_entries"
}

// ComputeHash digests every stored field including prev_hash. The encoding is
// an explicit field list rather than JSON so the digest does not depend on
// marshaller field ordering. Each field is length-prefixed and the module list
// carries its count, so field boundaries are unambiguous: content cannot be
// moved between adjacent fields (or between module names) without changing
// the digest. CreatedAt must already be truncated to microseconds: Postgres
// timestamptz stores microsecond precision, and a nanosecond-precision input
// would not round-trip to the same digest.
func (e *AuditEntry) ComputeHash() string {
	fields := make([]string, 0, 9+len(e.AffectedModules))
	fields = append(fields,
		strconv.FormatInt(e.Sequence, 10),
		e.EventType,
		e.Severity,
		e.ActorID,
		strconv.Itoa(len(e.AffectedModules)),
	)
	fields = append(fields, e.AffectedModules...)
	fields = append(fields,
		e.Reason,
		e.IPAddress,
		e.CreatedAt.UTC().Format(time.RFC3339Nano),
		e.PrevHash,
	)

	var payload strings.Builder
	for _, f := range fields {
		payload.WriteString(strconv.Itoa(len(f)))
		payload.WriteByte(':')
		payload.WriteString(f)
	}
	sum := sha256.Sum256([]byte(payload.String()))
	return hex.EncodeToString(sum[:])
}
