// Package statement runs SQL asynchronously and pages results to pollers.
// Submit returns at once; compilation and execution run on a bounded worker
// pool and produce immutable pages ahead of the client.
package statement

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"

	"github.com/txn2/sqlgate/pkg/compiler"
	"github.com/txn2/sqlgate/pkg/engine"
	"github.com/txn2/sqlgate/pkg/frame"
	"github.com/txn2/sqlgate/pkg/history"
	"github.com/txn2/sqlgate/pkg/metrics"
	"github.com/txn2/sqlgate/pkg/types"
)

const (
	DefaultPageSize        = 1000
	DefaultMaxConcurrent   = 16
	DefaultMaxQueued       = 1000
	DefaultPrefetchPages   = 2
	DefaultRetention       = 15 * time.Minute
	DefaultAbandonTimeout  = 5 * time.Minute
	DefaultCleanupInterval = time.Minute

	releaseTimeout = 3 * time.Second
)

// Config configures a Manager.
type Config struct {
	// PageSize is the maximum number of rows per page.
	PageSize int `yaml:"page_size"`

	// MaxConcurrent bounds statements executing at once. Excess statements
	// stay QUEUED.
	MaxConcurrent int `yaml:"max_concurrent"`

	// MaxQueued bounds statements waiting for a worker. Submit fails with
	// ErrQueueFull beyond it.
	MaxQueued int `yaml:"max_queued"`

	// PrefetchPages bounds unread pages buffered per statement.
	PrefetchPages int `yaml:"prefetch_pages"`

	// Retention is how long a terminal statement stays pollable.
	Retention time.Duration `yaml:"retention"`

	// AbandonTimeout fails live statements not polled for this long.
	// Zero disables it.
	AbandonTimeout time.Duration `yaml:"abandon_timeout"`

	// CleanupInterval is the period of the retention and abandon sweeps.
	CleanupInterval time.Duration `yaml:"cleanup_interval"`
}

func (c *Config) applyDefaults() {
	if c.PageSize <= 0 {
		c.PageSize = DefaultPageSize
	}
	if c.MaxConcurrent <= 0 {
		c.MaxConcurrent = DefaultMaxConcurrent
	}
	if c.MaxQueued <= 0 {
		c.MaxQueued = DefaultMaxQueued
	}
	if c.PrefetchPages <= 0 {
		c.PrefetchPages = DefaultPrefetchPages
	}
	if c.Retention <= 0 {
		c.Retention = DefaultRetention
	}
	if c.CleanupInterval <= 0 {
		c.CleanupInterval = DefaultCleanupInterval
	}
}

// Compiler compiles SQL without executing it.
type Compiler interface {
	Compile(ctx context.Context, sql string, opts compiler.Options) (*compiler.Computation, error)
}

// SubmitOptions carry per-statement session settings.
type SubmitOptions struct {
	User   string
	Schema string
}

// Option configures a Manager.
type Option func(*Manager)

// WithStore replaces the default MemoryStore.
func WithStore(s Store) Option {
	return func(m *Manager) { m.store = s }
}

// WithHistory records terminal statements to h.
func WithHistory(h history.Store) Option {
	return func(m *Manager) { m.history = h }
}

// WithMetrics records statement metrics.
func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Manager) { m.metrics = mt }
}

// WithClock sets the clock for statement timestamps, abandonment and the
// default store's retention. Defaults to time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// Manager owns statements from submit to garbage collection.
type Manager struct {
	compiler Compiler
	engine   engine.Engine
	cfg      Config
	store    Store
	history  history.Store
	metrics  *metrics.Metrics
	logger   *slog.Logger
	pool     *ants.Pool
	now      func() time.Time

	// waiting counts submissions not yet handed to a worker.
	waiting atomic.Int64

	baseCtx    context.Context
	baseCancel context.CancelFunc
	wg         sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

// NewManager creates a Manager and starts its sweeper.
func NewManager(c Compiler, e engine.Engine, cfg Config, opts ...Option) (*Manager, error) {
	cfg.applyDefaults()
	m := &Manager{
		compiler: c,
		engine:   e,
		cfg:      cfg,
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.store == nil {
		m.store = NewMemoryStore(cfg.Retention, WithStoreClock(m.now))
	}

	pool, err := ants.NewPool(cfg.MaxConcurrent,
		ants.WithMaxBlockingTasks(cfg.MaxQueued),
		ants.WithPanicHandler(func(v any) {
			m.logger.Error("statement worker panic", "panic", v)
		}))
	if err != nil {
		return nil, fmt.Errorf("creating worker pool: %w", err)
	}
	m.pool = pool
	m.baseCtx, m.baseCancel = context.WithCancel(context.Background())

	m.wg.Add(1)
	go m.sweep()
	return m, nil
}

// Config returns the effective configuration.
func (m *Manager) Config() Config {
	return m.cfg
}

// Submit creates a QUEUED statement and schedules it. It does not wait for
// compilation or execution. When MaxQueued statements already wait for a
// worker it fails with ErrQueueFull.
func (m *Manager) Submit(ctx context.Context, sql string, opts SubmitOptions) (*Statement, error) {
	if strings.TrimSpace(sql) == "" {
		return nil, ErrEmptyStatement
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrClosed
	}
	if m.waiting.Load() >= int64(m.cfg.MaxQueued) {
		m.metrics.Rejected()
		return nil, ErrQueueFull
	}

	runCtx, cancel := context.WithCancel(m.baseCtx)
	s := newStatement(uuid.NewString(), sql, opts, cancel, m.now())
	if err := m.store.Create(ctx, s); err != nil {
		cancel()
		return nil, fmt.Errorf("storing statement: %w", err)
	}
	m.metrics.Submitted()
	m.logger.Debug("statement submitted", "statement_id", s.ID, "user", s.User)

	// ants blocks Submit while every worker is busy; the statement stays
	// QUEUED until a worker frees up. At most MaxQueued handoffs wait.
	m.waiting.Add(1)
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		err := m.pool.Submit(func() { m.run(runCtx, s) })
		m.waiting.Add(-1)
		if errors.Is(err, ants.ErrPoolOverload) {
			err = ErrQueueFull
		}
		if err != nil {
			m.end(s, EventFail, fmt.Errorf("%w: scheduling statement: %w", ErrInternal, err))
		}
	}()
	return s, nil
}

// Poll returns the page after token, or the current state if it is not
// produced yet. Polling the same token again returns the same page.
func (m *Manager) Poll(ctx context.Context, id string, token int64) (*Result, error) {
	s, err := m.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	m.metrics.Polled()
	return s.poll(token, m.now())
}

// Get returns a retained statement.
func (m *Manager) Get(ctx context.Context, id string) (*Statement, error) {
	s, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("loading statement: %w", err)
	}
	if s == nil {
		return nil, ErrNotFound
	}
	return s, nil
}

// Cancel moves a live statement to CANCELLED and stops its computation.
// A terminal statement yields ErrAlreadyTerminal.
func (m *Manager) Cancel(ctx context.Context, id string) error {
	s, err := m.Get(ctx, id)
	if err != nil {
		return err
	}
	return m.end(s, EventCancel, ErrCancelled)
}

// List returns snapshots of all retained statements, oldest first.
func (m *Manager) List(ctx context.Context) ([]Info, error) {
	all, err := m.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing statements: %w", err)
	}
	infos := make([]Info, len(all))
	for i, s := range all {
		infos[i] = s.Info()
	}
	return infos, nil
}

// Close cancels live statements, drains the pool and stops the sweeper.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	if all, err := m.store.List(context.Background()); err == nil {
		for _, s := range all {
			_ = m.end(s, EventCancel, ErrCancelled)
		}
	}
	m.baseCancel()
	err := m.pool.ReleaseTimeout(releaseTimeout)
	m.wg.Wait()
	if cerr := m.store.Close(); cerr != nil && err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("closing statement manager: %w", err)
	}
	return nil
}

func (m *Manager) run(ctx context.Context, s *Statement) {
	defer func() {
		if r := recover(); r != nil {
			m.end(s, EventFail, fmt.Errorf("%w: %v", ErrInternal, r))
		}
	}()

	if err := s.apply(EventStart, nil, m.now()); err != nil {
		return
	}

	comp, err := m.compiler.Compile(ctx, s.SQL, compiler.Options{Schema: s.Schema})
	if err != nil {
		m.end(s, EventFail, err)
		return
	}
	cur, err := m.engine.Execute(ctx, comp.Plan)
	if err != nil {
		m.end(s, EventFail, fmt.Errorf("executing statement: %w", err))
		return
	}
	defer func() { _ = cur.Close() }()

	if err := m.produce(ctx, s, comp.Columns, cur); err != nil {
		if errors.Is(err, ErrAlreadyTerminal) {
			return
		}
		m.end(s, EventFail, err)
		return
	}
	m.recordEnd(s)
}

// produce pages the cursor. One batch of lookahead tells whether a page is
// the last one, so the final page is marked before it is served.
func (m *Manager) produce(ctx context.Context, s *Statement, columns []types.Column, cur engine.Cursor) error {
	batch, done, err := m.fetch(ctx, columns, cur)
	for {
		if err != nil {
			return err
		}
		if done {
			return s.addPage(ctx, columns, batch, true, m.cfg.PrefetchPages, m.now)
		}
		next, nextDone, nextErr := m.fetch(ctx, columns, cur)
		if nextErr == nil && nextDone && len(next) == 0 {
			return s.addPage(ctx, columns, batch, true, m.cfg.PrefetchPages, m.now)
		}
		if err := s.addPage(ctx, columns, batch, false, m.cfg.PrefetchPages, m.now); err != nil {
			return err
		}
		batch, done, err = next, nextDone, nextErr
	}
}

// fetch pulls one page worth of rows and encodes them for the wire.
func (m *Manager) fetch(ctx context.Context, columns []types.Column, cur engine.Cursor) ([][]any, bool, error) {
	rows, err := cur.Fetch(ctx, m.cfg.PageSize)
	done := errors.Is(err, io.EOF)
	if err != nil && !done {
		return nil, false, fmt.Errorf("fetching rows: %w", err)
	}
	data, err := encode(columns, rows)
	if err != nil {
		return nil, false, err
	}
	m.metrics.Rows(len(rows))
	return data, done, nil
}

func encode(columns []types.Column, rows []frame.Row) ([][]any, error) {
	data := make([][]any, len(rows))
	for i, row := range rows {
		out := make([]any, len(row))
		for j, v := range row {
			w, err := types.EncodeWire(columns[j].Type, v)
			if err != nil {
				return nil, fmt.Errorf("encoding column %q: %w", columns[j].Name, err)
			}
			out[j] = w
		}
		data[i] = out
	}
	return data, nil
}

// end applies a terminal event and records the outcome once.
func (m *Manager) end(s *Statement, e Event, cause error) error {
	if err := s.apply(e, cause, m.now()); err != nil {
		return err
	}
	m.recordEnd(s)
	return nil
}

func (m *Manager) recordEnd(s *Statement) {
	info := s.Info()
	m.metrics.Completed(info.State, info.EndedAt.Sub(info.CreatedAt))

	if info.Error != "" {
		m.logger.Info("statement ended", "statement_id", s.ID, "state", info.State, "error", info.Error)
	} else {
		m.logger.Debug("statement ended", "statement_id", s.ID, "state", info.State, "rows", info.Rows)
	}

	if m.history == nil {
		return
	}
	entry := history.Entry{
		ID:          info.ID,
		Query:       info.Query,
		User:        info.User,
		Schema:      info.Schema,
		State:       info.State,
		Error:       info.Error,
		Rows:        info.Rows,
		CreatedAt:   info.CreatedAt,
		CompletedAt: info.EndedAt,
	}
	if err := m.history.Record(context.Background(), entry); err != nil {
		m.logger.Warn("recording statement history failed", "statement_id", s.ID, "error", err)
	}
}

func (m *Manager) sweep() {
	defer m.wg.Done()

	ticker := time.NewTicker(m.cfg.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.baseCtx.Done():
			return
		case <-ticker.C:
			m.sweepOnce(m.baseCtx)
		}
	}
}

// sweepOnce fails abandoned statements and drops expired ones.
func (m *Manager) sweepOnce(ctx context.Context) {
	if m.cfg.AbandonTimeout > 0 {
		all, err := m.store.List(ctx)
		if err != nil {
			m.logger.Warn("listing statements failed", "error", err)
			return
		}
		now := m.now()
		for _, s := range all {
			if s.idle(now, m.cfg.AbandonTimeout) {
				if m.end(s, EventFail, ErrAbandoned) == nil {
					m.logger.Info("statement abandoned", "statement_id", s.ID)
				}
			}
		}
	}
	if err := m.store.Cleanup(ctx); err != nil {
		m.logger.Warn("statement cleanup failed", "error", err)
	}
}
