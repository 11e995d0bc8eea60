// Package history records statements that reached a terminal state.
package history

import (
	"context"
	"time"
)

// Store persists and queries statement history.
type Store interface {
	// Record stores one finished statement.
	Record(ctx context.Context, entry Entry) error

	// List returns entries matching the filter, newest first.
	List(ctx context.Context, filter Filter) ([]Entry, error)

	// Count returns the number of entries matching the filter, ignoring
	// Limit and Offset.
	Count(ctx context.Context, filter Filter) (int, error)

	// Close releases resources.
	Close() error
}

// Entry is one terminal statement.
type Entry struct {
	ID          string    `json:"id"`
	Query       string    `json:"query"`
	User        string    `json:"user,omitempty"`
	Schema      string    `json:"schema,omitempty"`
	State       string    `json:"state"`
	Error       string    `json:"error,omitempty"`
	Rows        int64     `json:"rows"`
	CreatedAt   time.Time `json:"created_at"`
	CompletedAt time.Time `json:"completed_at"`
}

// DurationMS returns the elapsed time between submit and completion.
func (e Entry) DurationMS() int64 {
	return e.CompletedAt.Sub(e.CreatedAt).Milliseconds()
}

// Filter defines criteria for listing history.
type Filter struct {
	User   string
	State  string
	Since  *time.Time
	Limit  int
	Offset int
}

// Config configures history recording.
type Config struct {
	Enabled       bool          `yaml:"enabled"`
	MaxEntries    int           `yaml:"max_entries"`
	RetentionDays int           `yaml:"retention_days"`
	CleanupEvery  time.Duration `yaml:"cleanup_interval"`
}
