package statement

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/txn2/sqlgate/pkg/catalog"
	"github.com/txn2/sqlgate/pkg/compiler"
	"github.com/txn2/sqlgate/pkg/engine"
	"github.com/txn2/sqlgate/pkg/frame"
	"github.com/txn2/sqlgate/pkg/history"
	"github.com/txn2/sqlgate/pkg/metrics"
	"github.com/txn2/sqlgate/pkg/types"
)

const (
	testSchema = "a_schema"
	testTable  = "a_table"
	testQuery  = "SELECT * FROM a_schema.a_table"

	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

var tableColumns = []types.Column{
	{Name: "A_STR", Type: types.NullableOf(types.Varchar)},
	{Name: "AN_INT", Type: types.Of(types.BigInt)},
	{Name: "A_FLOAT", Type: types.NullableOf(types.Double)},
}

func newCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	c := catalog.New()
	require.NoError(t, c.CreateSchema(testSchema))
	_, err := c.CreateTable(testSchema, testTable, frame.MustMemory(tableColumns, []frame.Row{{"any", int64(1), 1.1}}), nil, false)
	require.NoError(t, err)
	return c
}

func addNumbers(t *testing.T, c *catalog.Catalog, n int) {
	t.Helper()
	cols := []types.Column{{Name: "n", Type: types.Of(types.BigInt)}}
	rows := make([]frame.Row, n)
	for i := range rows {
		rows[i] = frame.Row{int64(i)}
	}
	_, err := c.CreateTable(testSchema, "numbers", frame.MustMemory(cols, rows), nil, false)
	require.NoError(t, err)
}

func newManager(t *testing.T, c Compiler, cfg Config, opts ...Option) *Manager {
	t.Helper()
	m, err := NewManager(c, engine.NewLocal(), cfg, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })
	return m
}

// drain polls from token 0 until no next token remains and returns every
// result observed.
func drain(t *testing.T, m *Manager, id string) []*Result {
	t.Helper()
	var out []*Result
	token := int64(0)
	deadline := time.Now().Add(waitFor)
	for time.Now().Before(deadline) {
		r, err := m.Poll(context.Background(), id, token)
		require.NoError(t, err)
		out = append(out, r)
		if !r.HasNext {
			return out
		}
		if r.NextToken == token {
			time.Sleep(tick)
		}
		token = r.NextToken
	}
	t.Fatalf("statement %s did not finish", id)
	return nil
}

// gatedCompiler blocks compilation until release is closed.
type gatedCompiler struct {
	inner   Compiler
	release chan struct{}
}

func (g *gatedCompiler) Compile(ctx context.Context, sql string, opts compiler.Options) (*compiler.Computation, error) {
	select {
	case <-g.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return g.inner.Compile(ctx, sql, opts)
}

// fakeClock is a settable clock safe for use from worker goroutines.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type panicCompiler struct{}

func (panicCompiler) Compile(context.Context, string, compiler.Options) (*compiler.Computation, error) {
	panic("boom")
}

func TestEndToEnd_SelectTable(t *testing.T) {
	gate := &gatedCompiler{inner: compiler.New(newCatalog(t)), release: make(chan struct{})}
	m := newManager(t, gate, Config{})

	s, err := m.Submit(context.Background(), testQuery, SubmitOptions{User: "alice"})
	require.NoError(t, err)
	assert.Equal(t, Queued, s.State())

	first, err := m.Poll(context.Background(), s.ID, 0)
	require.NoError(t, err)
	assert.Contains(t, []State{Queued, Running}, first.State)
	assert.Nil(t, first.Columns)
	assert.Nil(t, first.Data)
	assert.True(t, first.HasNext)
	assert.Equal(t, int64(0), first.NextToken)

	close(gate.release)
	results := drain(t, m, s.ID)
	final := results[len(results)-1]

	assert.Equal(t, Finished, final.State)
	assert.False(t, final.HasNext)
	assert.Equal(t, tableColumns, final.Columns)
	assert.Equal(t, [][]any{{"any", int64(1), 1.1}}, final.Data)
	assert.NoError(t, final.Err)

	for i := 1; i < len(results); i++ {
		assert.GreaterOrEqual(t, results[i].State.Rank(), results[i-1].State.Rank())
	}
}

func TestEndToEnd_Introspection(t *testing.T) {
	m := newManager(t, compiler.New(newCatalog(t)), Config{})

	s, err := m.Submit(context.Background(), "SELECT * FROM system_jdbc.columns WHERE TABLE_NAME = 'a_table'", SubmitOptions{})
	require.NoError(t, err)

	results := drain(t, m, s.ID)
	final := results[len(results)-1]
	require.Equal(t, Finished, final.State)
	require.Len(t, final.Data, len(tableColumns))
	for i, row := range final.Data {
		assert.Equal(t, tableColumns[i].Name, row[3])
	}
}

func TestPoll_Idempotent(t *testing.T) {
	cat := newCatalog(t)
	addNumbers(t, cat, 10)
	m := newManager(t, compiler.New(cat), Config{PageSize: 3, PrefetchPages: 4})

	s, err := m.Submit(context.Background(), "SELECT n FROM numbers ORDER BY n", SubmitOptions{Schema: testSchema})
	require.NoError(t, err)

	var first *Result
	require.Eventually(t, func() bool {
		first, err = m.Poll(context.Background(), s.ID, 0)
		return err == nil && first.Columns != nil
	}, waitFor, tick)

	again, err := m.Poll(context.Background(), s.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, first, again)
	assert.Equal(t, [][]any{{int64(0)}, {int64(1)}, {int64(2)}}, first.Data)
	assert.Equal(t, Running, first.State)
	assert.Equal(t, int64(1), first.NextToken)

	var rows int
	token := int64(0)
	for {
		r, err := m.Poll(context.Background(), s.ID, token)
		require.NoError(t, err)
		if r.Columns == nil {
			time.Sleep(tick)
			continue
		}
		rows += len(r.Data)
		if !r.HasNext {
			assert.Equal(t, Finished, r.State)
			assert.Equal(t, int64(4), r.NextToken)
			break
		}
		token = r.NextToken
	}
	assert.Equal(t, 10, rows)

	// Pages before the last polled token are released.
	_, err = m.Poll(context.Background(), s.ID, 0)
	require.ErrorIs(t, err, ErrInvalidToken)
	_, err = m.Poll(context.Background(), s.ID, 99)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestEmptyResult_SingleLastPage(t *testing.T) {
	m := newManager(t, compiler.New(newCatalog(t)), Config{})

	s, err := m.Submit(context.Background(), "SELECT * FROM a_schema.a_table WHERE AN_INT > 5", SubmitOptions{})
	require.NoError(t, err)

	results := drain(t, m, s.ID)
	final := results[len(results)-1]
	assert.Equal(t, Finished, final.State)
	assert.Equal(t, tableColumns, final.Columns)
	assert.Empty(t, final.Data)
	assert.Equal(t, int64(1), final.NextToken)
}

func TestCompileError_Fails(t *testing.T) {
	tests := []struct {
		sql  string
		kind compiler.Kind
	}{
		{"SELEC 1", compiler.ParseError},
		{"SELECT * FROM nowhere.nothing", compiler.UnresolvedReference},
		{"SELECT A_STR + 1 FROM a_schema.a_table", compiler.TypeError},
	}
	m := newManager(t, compiler.New(newCatalog(t)), Config{})
	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			s, err := m.Submit(context.Background(), tt.sql, SubmitOptions{})
			require.NoError(t, err)

			results := drain(t, m, s.ID)
			final := results[len(results)-1]
			assert.Equal(t, Failed, final.State)
			assert.Nil(t, final.Data)
			kind, ok := compiler.KindOf(final.Err)
			require.True(t, ok)
			assert.Equal(t, tt.kind, kind)
		})
	}
}

func TestCancel(t *testing.T) {
	gate := &gatedCompiler{inner: compiler.New(newCatalog(t)), release: make(chan struct{})}
	defer close(gate.release)
	m := newManager(t, gate, Config{})

	s, err := m.Submit(context.Background(), testQuery, SubmitOptions{})
	require.NoError(t, err)

	require.NoError(t, m.Cancel(context.Background(), s.ID))
	r, err := m.Poll(context.Background(), s.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, Cancelled, r.State)
	assert.ErrorIs(t, r.Err, ErrCancelled)
	assert.False(t, r.HasNext)

	require.ErrorIs(t, m.Cancel(context.Background(), s.ID), ErrAlreadyTerminal)
	require.ErrorIs(t, m.Cancel(context.Background(), "missing"), ErrNotFound)
}

func TestCancel_AfterFinishIsTerminal(t *testing.T) {
	m := newManager(t, compiler.New(newCatalog(t)), Config{})
	s, err := m.Submit(context.Background(), testQuery, SubmitOptions{})
	require.NoError(t, err)
	drain(t, m, s.ID)

	require.ErrorIs(t, m.Cancel(context.Background(), s.ID), ErrAlreadyTerminal)
	assert.Equal(t, Finished, s.State())
}

func TestRetentionExpiry_NotFound(t *testing.T) {
	m := newManager(t, compiler.New(newCatalog(t)), Config{Retention: 20 * time.Millisecond})
	s, err := m.Submit(context.Background(), testQuery, SubmitOptions{})
	require.NoError(t, err)
	drain(t, m, s.ID)

	require.Eventually(t, func() bool {
		_, err := m.Poll(context.Background(), s.ID, 0)
		return errors.Is(err, ErrNotFound)
	}, waitFor, tick)

	_, err = m.Poll(context.Background(), "never-existed", 0)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestBackpressure(t *testing.T) {
	cat := newCatalog(t)
	addNumbers(t, cat, 20)
	m := newManager(t, compiler.New(cat), Config{PageSize: 2, PrefetchPages: 1})

	s, err := m.Submit(context.Background(), "SELECT n FROM a_schema.numbers", SubmitOptions{})
	require.NoError(t, err)

	require.Eventually(t, func() bool { return s.Info().Pages == 1 }, waitFor, tick)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int64(1), s.Info().Pages)
	assert.Equal(t, Running, s.State())

	r, err := m.Poll(context.Background(), s.ID, 0)
	require.NoError(t, err)
	require.Len(t, r.Data, 2)
	require.Eventually(t, func() bool { return s.Info().Pages == 2 }, waitFor, tick)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int64(2), s.Info().Pages)
}

func TestAbandon(t *testing.T) {
	cat := newCatalog(t)
	addNumbers(t, cat, 20)
	m := newManager(t, compiler.New(cat), Config{
		PageSize:        2,
		PrefetchPages:   1,
		AbandonTimeout:  30 * time.Millisecond,
		CleanupInterval: 10 * time.Millisecond,
	})

	s, err := m.Submit(context.Background(), "SELECT n FROM a_schema.numbers", SubmitOptions{})
	require.NoError(t, err)

	require.Eventually(t, func() bool { return s.State() == Failed }, waitFor, tick)
	assert.ErrorIs(t, s.Err(), ErrAbandoned)
}

func TestSubmit_Validation(t *testing.T) {
	m := newManager(t, compiler.New(newCatalog(t)), Config{})
	_, err := m.Submit(context.Background(), "   ", SubmitOptions{})
	require.ErrorIs(t, err, ErrEmptyStatement)

	require.NoError(t, m.Close())
	_, err = m.Submit(context.Background(), testQuery, SubmitOptions{})
	require.ErrorIs(t, err, ErrClosed)
}

func TestWorkerPanic_Fails(t *testing.T) {
	m := newManager(t, panicCompiler{}, Config{})
	s, err := m.Submit(context.Background(), testQuery, SubmitOptions{})
	require.NoError(t, err)

	require.Eventually(t, func() bool { return s.State() == Failed }, waitFor, tick)
	assert.ErrorIs(t, s.Err(), ErrInternal)
}

func TestMaxConcurrent_Queues(t *testing.T) {
	gate := &gatedCompiler{inner: compiler.New(newCatalog(t)), release: make(chan struct{})}
	m := newManager(t, gate, Config{MaxConcurrent: 1})

	a, err := m.Submit(context.Background(), testQuery, SubmitOptions{})
	require.NoError(t, err)
	b, err := m.Submit(context.Background(), testQuery, SubmitOptions{})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return a.State() == Running || b.State() == Running
	}, waitFor, tick)
	time.Sleep(30 * time.Millisecond)
	states := []State{a.State(), b.State()}
	assert.ElementsMatch(t, []State{Running, Queued}, states)

	close(gate.release)
	drain(t, m, a.ID)
	drain(t, m, b.ID)
}

func TestSubmit_QueueFull(t *testing.T) {
	gate := &gatedCompiler{inner: compiler.New(newCatalog(t)), release: make(chan struct{})}
	mt := metrics.New()
	m := newManager(t, gate, Config{MaxConcurrent: 1, MaxQueued: 1}, WithMetrics(mt))

	running, err := m.Submit(context.Background(), testQuery, SubmitOptions{})
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return running.State() == Running && m.waiting.Load() == 0
	}, waitFor, tick)

	queued, err := m.Submit(context.Background(), testQuery, SubmitOptions{})
	require.NoError(t, err)
	assert.Equal(t, Queued, queued.State())

	_, err = m.Submit(context.Background(), testQuery, SubmitOptions{})
	require.ErrorIs(t, err, ErrQueueFull)
	assert.InDelta(t, 1, testutil.ToFloat64(mt.StatementsRejected), 0)

	all, err := m.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, all, 2, "a rejected statement is never stored")

	close(gate.release)
	drain(t, m, running.ID)
	drain(t, m, queued.ID)
	require.Eventually(t, func() bool { return m.waiting.Load() == 0 }, waitFor, tick)

	_, err = m.Submit(context.Background(), testQuery, SubmitOptions{})
	assert.NoError(t, err)
}

func TestWithClock_DrivesRetention(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	m := newManager(t, compiler.New(newCatalog(t)), Config{Retention: time.Minute}, WithClock(clock.Now))

	s, err := m.Submit(context.Background(), testQuery, SubmitOptions{})
	require.NoError(t, err)
	drain(t, m, s.ID)
	require.Eventually(t, func() bool { return s.State().IsTerminal() }, waitFor, tick)
	assert.Equal(t, clock.Now(), s.Info().CreatedAt)

	clock.Advance(59 * time.Second)
	_, err = m.Get(context.Background(), s.ID)
	require.NoError(t, err, "retained until the manager clock passes retention")

	clock.Advance(time.Second)
	_, err = m.Get(context.Background(), s.ID)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestHistoryAndMetrics(t *testing.T) {
	h := history.NewMemoryStore(10)
	mt := metrics.New()
	m := newManager(t, compiler.New(newCatalog(t)), Config{}, WithHistory(h), WithMetrics(mt))

	ok, err := m.Submit(context.Background(), testQuery, SubmitOptions{User: "alice", Schema: testSchema})
	require.NoError(t, err)
	drain(t, m, ok.ID)
	bad, err := m.Submit(context.Background(), "SELECT nope FROM a_schema.a_table", SubmitOptions{User: "bob"})
	require.NoError(t, err)
	drain(t, m, bad.ID)

	var entries []history.Entry
	require.Eventually(t, func() bool {
		entries, err = h.List(context.Background(), history.Filter{})
		return err == nil && len(entries) == 2
	}, waitFor, tick)
	assert.Equal(t, bad.ID, entries[0].ID)
	assert.Equal(t, "FAILED", entries[0].State)
	assert.NotEmpty(t, entries[0].Error)
	assert.Equal(t, ok.ID, entries[1].ID)
	assert.Equal(t, "FINISHED", entries[1].State)
	assert.Equal(t, int64(1), entries[1].Rows)
	assert.Equal(t, "alice", entries[1].User)

	assert.InDelta(t, 2, testutil.ToFloat64(mt.StatementsSubmitted), 0)
	assert.InDelta(t, 0, testutil.ToFloat64(mt.StatementsActive), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(mt.StatementsCompleted.WithLabelValues("FAILED")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(mt.RowsReturned), 0)
}

func TestList(t *testing.T) {
	m := newManager(t, compiler.New(newCatalog(t)), Config{})
	var ids []string
	for i := range 3 {
		s, err := m.Submit(context.Background(), fmt.Sprintf("SELECT %d", i), SubmitOptions{})
		require.NoError(t, err)
		ids = append(ids, s.ID)
		drain(t, m, s.ID)
	}

	infos, err := m.List(context.Background())
	require.NoError(t, err)
	require.Len(t, infos, 3)
	for i, info := range infos {
		assert.Equal(t, ids[i], info.ID)
		assert.Equal(t, "FINISHED", info.State)
		assert.Equal(t, int64(1), info.Rows)
	}
}
