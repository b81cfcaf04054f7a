package services

import (
	"context"
	"os"
	"sort"
	"sync"
	"testing"

	"gorm.io/gorm"

	"github.com/betlink/governance-api/internal/models"
	"github.com/betlink/governance-api/internal/repository"
	"github.com/betlink/governance-api/pkg/logger"
)

func TestMain(m *testing.M) {
	logger.Setup("test")
	os.Exit(m.Run())
}

// mockModuleRepo is an in-memory ModuleRepository with real
// compare-and-swap semantics so concurrency behavior can be exercised.
type mockModuleRepo struct {
	mu      sync.Mutex
	modules map[string]*models.GovernableModule
}

func newMockModuleRepo() *mockModuleRepo {
	return &mockModuleRepo{modules: make(map[string]*models.GovernableModule)}
}

func (m *mockModuleRepo) seed(name, status string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.modules[name] = &models.GovernableModule{ModuleName: name, Status: status}
}

func cloneModule(src *models.GovernableModule) *models.GovernableModule {
	dup := *src
	if src.PendingAction != nil {
		pa := *src.PendingAction
		pa.Approvals = append([]models.Approval(nil), src.PendingAction.Approvals...)
		dup.PendingAction = &pa
	}
	if src.LastChangedAt != nil {
		t := *src.LastChangedAt
		dup.LastChangedAt = &t
	}
	return &dup
}

func (m *mockModuleRepo) FindByName(ctx context.Context, name string) (*models.GovernableModule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.modules[name]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return cloneModule(stored), nil
}

func (m *mockModuleRepo) FindAll(ctx context.Context) ([]models.GovernableModule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.modules))
	for name := range m.modules {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]models.GovernableModule, 0, len(names))
	for _, name := range names {
		out = append(out, *cloneModule(m.modules[name]))
	}
	return out, nil
}

func (m *mockModuleRepo) UpsertIfMissing(ctx context.Context, name string) (*models.GovernableModule, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if stored, ok := m.modules[name]; ok {
		return cloneModule(stored), false, nil
	}
	m.modules[name] = &models.GovernableModule{ModuleName: name, Status: models.ModuleStatusRunning}
	return cloneModule(m.modules[name]), true, nil
}

func (m *mockModuleRepo) CompareAndSwap(ctx context.Context, module *models.GovernableModule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.modules[module.ModuleName]
	if !ok || stored.LockVersion != module.LockVersion {
		return repository.ErrVersionConflict
	}
	dup := cloneModule(module)
	dup.LockVersion++
	m.modules[module.ModuleName] = dup
	module.LockVersion++
	return nil
}

// conflictingModuleRepo loses every optimistic write, simulating a module row
// under constant contention.
type conflictingModuleRepo struct {
	*mockModuleRepo
	attempts int
}

func (m *conflictingModuleRepo) CompareAndSwap(ctx context.Context, module *models.GovernableModule) error {
	m.attempts++
	return repository.ErrVersionConflict
}

// selectiveConflictRepo loses optimistic writes for one module only.
type selectiveConflictRepo struct {
	*mockModuleRepo
	conflictOn string
}

func (m *selectiveConflictRepo) CompareAndSwap(ctx context.Context, module *models.GovernableModule) error {
	if module.ModuleName == m.conflictOn {
		return repository.ErrVersionConflict
	}
	return m.mockModuleRepo.CompareAndSwap(ctx, module)
}

// mockAuditRepo is an in-memory AuditRepository that chains entries exactly
// like the Postgres-backed one; tests tamper with entries directly.
type mockAuditRepo struct {
	mu      sync.Mutex
	entries []models.AuditEntry
}

func newMockAuditRepo() *mockAuditRepo {
	return &mockAuditRepo{}
}

func (m *mockAuditRepo) Append(ctx context.Context, entry *models.AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.entries) == 0 {
		entry.Sequence = 0
		entry.PrevHash = models.GenesisHash
	} else {
		tail := m.entries[len(m.entries)-1]
		entry.Sequence = tail.Sequence + 1
		entry.PrevHash = tail.Hash
	}
	entry.Hash = entry.ComputeHash()
	m.entries = append(m.entries, *entry)
	return nil
}

func (m *mockAuditRepo) List(ctx context.Context, query *repository.AuditQuery) ([]models.AuditEntry, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	filtered := make([]models.AuditEntry, 0, len(m.entries))
	for i := len(m.entries) - 1; i >= 0; i-- {
		e := m.entries[i]
		if query.EventType != "" && e.EventType != query.EventType {
			continue
		}
		if query.Severity != "" && e.Severity != query.Severity {
			continue
		}
		if query.ActorID != "" && e.ActorID != query.ActorID {
			continue
		}
		filtered = append(filtered, e)
	}
	total := int64(len(filtered))
	offset := (query.Page - 1) * query.PerPage
	if offset >= len(filtered) {
		return nil, total, nil
	}
	end := offset + query.PerPage
	if end > len(filtered) {
		end = len(filtered)
	}
	return filtered[offset:end], total, nil
}

func (m *mockAuditRepo) FindRange(ctx context.Context, start, end int64) ([]models.AuditEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.AuditEntry, 0)
	for _, e := range m.entries {
		if e.Sequence >= start && e.Sequence <= end {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *mockAuditRepo) LastSequence(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.entries) == 0 {
		return -1, nil
	}
	return m.entries[len(m.entries)-1].Sequence, nil
}

// capturePublisher records published status events.
type capturePublisher struct {
	mu     sync.Mutex
	events []models.ModuleStatusEvent
}

func (p *capturePublisher) PublishStatus(ctx context.Context, event *models.ModuleStatusEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, *event)
	return nil
}

func (p *capturePublisher) published() []models.ModuleStatusEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]models.ModuleStatusEvent(nil), p.events...)
}
