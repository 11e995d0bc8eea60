package history

import (
	"context"
	"sync"
)

// DefaultMaxEntries bounds a MemoryStore created with a non-positive size.
const DefaultMaxEntries = 1000

// MemoryStore keeps the most recent entries in a ring.
type MemoryStore struct {
	mu      sync.RWMutex
	entries []Entry
	max     int
}

// NewMemoryStore creates a store holding at most maxEntries entries.
func NewMemoryStore(maxEntries int) *MemoryStore {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	return &MemoryStore{max: maxEntries}
}

// Record appends an entry, evicting the oldest when full.
func (s *MemoryStore) Record(_ context.Context, entry Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = append(s.entries, entry)
	if over := len(s.entries) - s.max; over > 0 {
		s.entries = append(s.entries[:0:0], s.entries[over:]...)
	}
	return nil
}

// List returns matching entries, newest first.
func (s *MemoryStore) List(_ context.Context, filter Filter) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]Entry, 0)
	skipped := 0
	for i := len(s.entries) - 1; i >= 0; i-- {
		e := s.entries[i]
		if !matches(e, filter) {
			continue
		}
		if skipped < filter.Offset {
			skipped++
			continue
		}
		result = append(result, e)
		if filter.Limit > 0 && len(result) >= filter.Limit {
			break
		}
	}
	return result, nil
}

// Count returns the number of matching entries.
func (s *MemoryStore) Count(_ context.Context, filter Filter) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, e := range s.entries {
		if matches(e, filter) {
			n++
		}
	}
	return n, nil
}

// Close is a no-op.
func (*MemoryStore) Close() error {
	return nil
}

func matches(e Entry, f Filter) bool {
	if f.User != "" && e.User != f.User {
		return false
	}
	if f.State != "" && e.State != f.State {
		return false
	}
	if f.Since != nil && e.CompletedAt.Before(*f.Since) {
		return false
	}
	return true
}

// Verify interface compliance.
var _ Store = (*MemoryStore)(nil)
