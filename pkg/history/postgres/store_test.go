package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/txn2/sqlgate/pkg/history"
)

const (
	testYear        = 2025
	testMonth       = 6
	testRows        = 3
	testFilterLimit = 10
	testCountResult = 42
)

func newTestEntry() history.Entry {
	created := time.Date(testYear, testMonth, 15, 10, 30, 0, 0, time.UTC)
	return history.Entry{
		ID:          "20250615_103000_00001_abcde",
		Query:       "SELECT * FROM a_schema.a_table",
		User:        "alice",
		Schema:      "a_schema",
		State:       "FINISHED",
		Rows:        testRows,
		CreatedAt:   created,
		CompletedAt: created.Add(250 * time.Millisecond),
	}
}

func testRowsFor(entries ...history.Entry) *sqlmock.Rows {
	rows := sqlmock.NewRows(historyColumns)
	for _, e := range entries {
		rows.AddRow(e.ID, e.Query, e.User, e.Schema, e.State, e.Error, e.Rows, e.CreatedAt, e.CompletedAt)
	}
	return rows
}

func TestNew(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	t.Run("custom retention", func(t *testing.T) {
		store := New(db, Config{RetentionDays: 7})
		assert.Equal(t, 7, store.retentionDays)
	})

	t.Run("default retention when zero", func(t *testing.T) {
		store := New(db, Config{})
		assert.Equal(t, defaultRetentionDays, store.retentionDays)
	})
}

func TestRecord(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	store := New(db, Config{})
	e := newTestEntry()

	mock.ExpectExec("INSERT INTO statement_history").WithArgs(
		e.ID, e.Query, e.User, e.Schema, e.State, e.Error,
		e.Rows, int64(250), e.CreatedAt, e.CompletedAt,
	).WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.Record(context.Background(), e))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecord_DBError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	store := New(db, Config{})
	mock.ExpectExec("INSERT INTO statement_history").WillReturnError(errors.New("connection refused"))

	err = store.Record(context.Background(), newTestEntry())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "inserting statement history")
}

func TestList(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	store := New(db, Config{})
	e := newTestEntry()

	mock.ExpectQuery("SELECT .+ FROM statement_history ORDER BY completed_at DESC").
		WillReturnRows(testRowsFor(e))

	got, err := store.List(context.Background(), history.Filter{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, e, got[0])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestList_Filtered(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	store := New(db, Config{})
	since := time.Date(testYear, testMonth, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT .+ FROM statement_history WHERE user_id = \$1 AND state = \$2 AND completed_at >= \$3 ORDER BY completed_at DESC LIMIT 10 OFFSET 5`).
		WithArgs("alice", "FAILED", since).
		WillReturnRows(testRowsFor())

	got, err := store.List(context.Background(), history.Filter{
		User: "alice", State: "FAILED", Since: &since, Limit: testFilterLimit, Offset: 5,
	})
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestList_ScanError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	store := New(db, Config{})
	rows := sqlmock.NewRows([]string{"id"}).AddRow("only-one-column")
	mock.ExpectQuery("SELECT .+ FROM statement_history").WillReturnRows(rows)

	_, err = store.List(context.Background(), history.Filter{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scanning statement history row")
}

func TestList_QueryError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	store := New(db, Config{})
	mock.ExpectQuery("SELECT .+ FROM statement_history").WillReturnError(errors.New("boom"))

	_, err = store.List(context.Background(), history.Filter{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "querying statement history")
}

func TestCount(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	store := New(db, Config{})
	mock.ExpectQuery("SELECT COUNT").WithArgs("alice").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(testCountResult))

	n, err := store.Count(context.Background(), history.Filter{User: "alice"})
	require.NoError(t, err)
	assert.Equal(t, testCountResult, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCleanup(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	store := New(db, Config{RetentionDays: 1})

	t.Run("success", func(t *testing.T) {
		mock.ExpectExec("DELETE FROM statement_history WHERE completed_at").
			WithArgs(sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 4))
		assert.NoError(t, store.Cleanup(context.Background()))
	})

	t.Run("error", func(t *testing.T) {
		mock.ExpectExec("DELETE FROM statement_history WHERE completed_at").
			WillReturnError(errors.New("locked"))
		err := store.Cleanup(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "cleaning up statement history")
	})
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStartCleanupRoutine(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.MatchExpectationsInOrder(false)
	for range 50 {
		mock.ExpectExec("DELETE FROM statement_history").WillReturnResult(sqlmock.NewResult(0, 0))
	}

	store := New(db, Config{})
	store.StartCleanupRoutine(5 * time.Millisecond)
	time.Sleep(30 * time.Millisecond)
	require.NoError(t, store.Close())
}

func TestClose_WithoutRoutine(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	assert.NoError(t, New(db, Config{}).Close())
}
