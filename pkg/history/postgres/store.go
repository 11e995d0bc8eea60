// Package postgres provides PostgreSQL storage for statement history.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/txn2/sqlgate/pkg/history"
)

const (
	defaultRetentionDays = 30
	defaultQueryCapacity = 100
	maxQueryCapacity     = 10000
)

// psq is the PostgreSQL statement builder with dollar placeholders.
var psq = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// historyColumns lists columns returned by history SELECT queries.
var historyColumns = []string{
	"id", "query", "user_id", "schema_name", "state",
	"error_message", "row_count", "created_at", "completed_at",
}

// Store implements history.Store using PostgreSQL.
type Store struct {
	db            *sql.DB
	retentionDays int
	cancel        context.CancelFunc
	done          chan struct{}
}

// Config configures the PostgreSQL history store.
type Config struct {
	RetentionDays int
}

// New creates a new PostgreSQL history store.
func New(db *sql.DB, cfg Config) *Store {
	if cfg.RetentionDays == 0 {
		cfg.RetentionDays = defaultRetentionDays
	}
	return &Store{
		db:            db,
		retentionDays: cfg.RetentionDays,
	}
}

// Record inserts one terminal statement. Re-recording an id is a no-op.
func (s *Store) Record(ctx context.Context, e history.Entry) error {
	query := `
		INSERT INTO statement_history
		(id, query, user_id, schema_name, state, error_message, row_count, duration_ms, created_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO NOTHING
	`
	_, err := s.db.ExecContext(ctx, query,
		e.ID,
		e.Query,
		e.User,
		e.Schema,
		e.State,
		e.Error,
		e.Rows,
		e.DurationMS(),
		e.CreatedAt,
		e.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting statement history: %w", err)
	}
	return nil
}

func applyFilter(qb sq.SelectBuilder, filter history.Filter) sq.SelectBuilder {
	if filter.User != "" {
		qb = qb.Where(sq.Eq{"user_id": filter.User})
	}
	if filter.State != "" {
		qb = qb.Where(sq.Eq{"state": filter.State})
	}
	if filter.Since != nil {
		qb = qb.Where(sq.GtOrEq{"completed_at": *filter.Since})
	}
	return qb
}

// List returns entries matching the filter, newest first.
func (s *Store) List(ctx context.Context, filter history.Filter) ([]history.Entry, error) {
	qb := applyFilter(psq.Select(historyColumns...).From("statement_history"), filter)
	qb = qb.OrderBy("completed_at DESC")
	if filter.Limit > 0 {
		qb = qb.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		qb = qb.Offset(uint64(filter.Offset))
	}

	query, args, err := qb.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building history query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying statement history: %w", err)
	}
	defer func() { _ = rows.Close() }()

	allocCap := defaultQueryCapacity
	if filter.Limit > 0 && filter.Limit <= maxQueryCapacity {
		allocCap = filter.Limit
	}
	entries := make([]history.Entry, 0, allocCap)
	for rows.Next() {
		var e history.Entry
		if err := rows.Scan(
			&e.ID, &e.Query, &e.User, &e.Schema, &e.State,
			&e.Error, &e.Rows, &e.CreatedAt, &e.CompletedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning statement history row: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating statement history rows: %w", err)
	}
	return entries, nil
}

// Count returns the number of entries matching the filter.
func (s *Store) Count(ctx context.Context, filter history.Filter) (int, error) {
	qb := applyFilter(psq.Select("COUNT(*)").From("statement_history"), filter)
	query, args, err := qb.ToSql()
	if err != nil {
		return 0, fmt.Errorf("building count query: %w", err)
	}

	var count int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting statement history: %w", err)
	}
	return count, nil
}

// Cleanup removes entries older than the retention period.
func (s *Store) Cleanup(ctx context.Context) error {
	cutoff := time.Now().AddDate(0, 0, -s.retentionDays)
	query := `DELETE FROM statement_history WHERE completed_at < $1`
	if _, err := s.db.ExecContext(ctx, query, cutoff); err != nil {
		return fmt.Errorf("cleaning up statement history: %w", err)
	}
	return nil
}

// StartCleanupRoutine periodically deletes expired history until Close.
func (s *Store) StartCleanupRoutine(interval time.Duration) {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				_ = s.Cleanup(ctx)
			}
		}
	}()
}

// Close stops the cleanup goroutine. Safe without StartCleanupRoutine.
func (s *Store) Close() error {
	if s.cancel != nil {
		s.cancel()
		<-s.done
	}
	return nil
}

// Verify interface compliance.
var _ history.Store = (*Store)(nil)
