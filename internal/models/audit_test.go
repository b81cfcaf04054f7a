package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func sampleEntry() AuditEntry {
	return AuditEntry{
		Sequence:        3,
		EventType:       EventPauseRequested,
		Severity:        SeverityWarning,
		ActorID:         "adm1",
		AffectedModules: StringList{"settlement", "pool_payout"},
		Reason:          "suspected exploit",
		IPAddress:       "10.0.0.1",
		CreatedAt:       time.Date(2026, 3, 14, 9, 26, 53, 589793000, time.UTC),
		PrevHash:        GenesisHash,
	}
}

func TestComputeHash_Deterministic(t *testing.T) {
	a := sampleEntry()
	b := sampleEntry()
	assert.Equal(t, a.ComputeHash(), b.ComputeHash())
	assert.Len(t, a.ComputeHash(), 64)
}

func TestComputeHash_SensitiveToEveryField(t *testing.T) {
	baseEntry := sampleEntry()
	base := baseEntry.ComputeHash()

	mutations := []func(e *AuditEntry){
		func(e *AuditEntry) { e.Sequence = 4 },
		func(e *AuditEntry) { e.EventType = EventResumeRequested },
		func(e *AuditEntry) { e.Severity = SeverityInfo },
		func(e *AuditEntry) { e.ActorID = "adm2" },
		func(e *AuditEntry) { e.AffectedModules = StringList{"settlement"} },
		func(e *AuditEntry) { e.Reason = "something else" },
		func(e *AuditEntry) { e.IPAddress = "10.0.0.2" },
		func(e *AuditEntry) { e.CreatedAt = e.CreatedAt.Add(time.Microsecond) },
		func(e *AuditEntry) {
			prev := sampleEntry()
			e.PrevHash = prev.ComputeHash()
		},
	}

	for i, mutate := range mutations {
		entry := sampleEntry()
		mutate(&entry)
		assert.NotEqual(t, base, entry.ComputeHash(), "mutation %d must change the digest", i)
	}
}

func TestComputeHash_FieldBoundariesUnambiguous(t *testing.T) {
	// Coordinated cross-field edits must not cancel out: moving content
	// between adjacent fields has to change the digest.
	a := sampleEntry()
	a.Reason = "edited"
	a.IPAddress = "10.0.0.1"
	b := sampleEntry()
	b.Reason = "edited10.0.0.1"
	b.IPAddress = ""
	assert.NotEqual(t, a.ComputeHash(), b.ComputeHash())

	c := sampleEntry()
	c.Reason = "edited|10.0.0.1"
	c.IPAddress = ""
	assert.NotEqual(t, a.ComputeHash(), c.ComputeHash())

	// Splitting or merging module names must change the digest too.
	d := sampleEntry()
	d.AffectedModules = StringList{"settlement", "pool_payout"}
	e := sampleEntry()
	e.AffectedModules = StringList{"settlement,pool_payout"}
	assert.NotEqual(t, d.ComputeHash(), e.ComputeHash())

	// Shifting the last module name into the reason field likewise.
	f := sampleEntry()
	f.AffectedModules = StringList{"settlement"}
	f.Reason = "pool_payout" + sampleEntry().Reason
	assert.NotEqual(t, d.ComputeHash(), f.ComputeHash())
}

func TestComputeHash_TimezoneNormalized(t *testing.T) {
	utc := sampleEntry()
	local := sampleEntry()
	local.CreatedAt = local.CreatedAt.In(time.FixedZone("UTC+5", 5*3600))
	assert.Equal(t, utc.ComputeHash(), local.ComputeHash())
}
