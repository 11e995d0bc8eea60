package statement

import (
	"context"
	"slices"
	"sync"
	"time"
)

// Store holds statements by id.
type Store interface {
	// Create stores a new statement.
	Create(ctx context.Context, s *Statement) error

	// Get returns a statement. Returns nil, nil if not found or expired.
	Get(ctx context.Context, id string) (*Statement, error)

	// List returns all retained statements, oldest first.
	List(ctx context.Context) ([]*Statement, error)

	// Cleanup removes terminal statements past retention.
	Cleanup(ctx context.Context) error

	// Close releases resources.
	Close() error
}

// MemoryOption configures a MemoryStore.
type MemoryOption func(*MemoryStore)

// WithStoreClock sets the clock retention is measured against. Defaults to
// time.Now.
func WithStoreClock(now func() time.Time) MemoryOption {
	return func(m *MemoryStore) { m.now = now }
}

// MemoryStore implements Store with an in-memory map. Terminal statements
// are retained for the configured window after their terminal transition.
type MemoryStore struct {
	mu         sync.RWMutex
	statements map[string]*Statement
	retention  time.Duration
	now        func() time.Time
}

// NewMemoryStore creates a store with the given retention window.
func NewMemoryStore(retention time.Duration, opts ...MemoryOption) *MemoryStore {
	m := &MemoryStore{
		statements: make(map[string]*Statement),
		retention:  retention,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Create stores a new statement.
func (m *MemoryStore) Create(_ context.Context, s *Statement) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.statements[s.ID] = s
	return nil
}

// Get returns a statement. Returns nil, nil if not found or expired.
func (m *MemoryStore) Get(_ context.Context, id string) (*Statement, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.statements[id]
	if !ok || s.expired(m.now(), m.retention) {
		return nil, nil //nolint:nilnil // Store interface specifies nil,nil for not-found
	}
	return s, nil
}

// List returns all retained statements, oldest first.
func (m *MemoryStore) List(_ context.Context) ([]*Statement, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	now := m.now()
	result := make([]*Statement, 0, len(m.statements))
	for _, s := range m.statements {
		if !s.expired(now, m.retention) {
			result = append(result, s)
		}
	}
	slices.SortFunc(result, func(a, b *Statement) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return result, nil
}

// Cleanup removes expired statements.
func (m *MemoryStore) Cleanup(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	for id, s := range m.statements {
		if s.expired(now, m.retention) {
			delete(m.statements, id)
		}
	}
	return nil
}

// Close is a no-op; the Manager drives Cleanup.
func (*MemoryStore) Close() error {
	return nil
}

func (m *MemoryStore) size() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.statements)
}

// Verify interface compliance.
var _ Store = (*MemoryStore)(nil)
