package sqlsource

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/txn2/sqlgate/pkg/frame"
	"github.com/txn2/sqlgate/pkg/types"
)

func openSQLite(t *testing.T) *sql.DB {
	t.Helper()
	db, err := Open(context.Background(), Config{Driver: DriverSQLite, DSN: ":memory:", MaxOpenConns: 1})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`CREATE TABLE orders (id INTEGER NOT NULL, customer TEXT, amount REAL)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO orders VALUES (1, 'acme', 10.5), (2, 'globex', 20.25), (3, NULL, NULL)`)
	require.NoError(t, err)
	return db
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"postgres", Config{Driver: DriverPostgres, DSN: "postgres://x"}, false},
		{"mysql", Config{Driver: DriverMySQL, DSN: "u:p@/db"}, false},
		{"sqlite", Config{Driver: DriverSQLite, DSN: ":memory:"}, false},
		{"missing driver", Config{DSN: "x"}, true},
		{"unknown driver", Config{Driver: "oracle", DSN: "x"}, true},
		{"missing dsn", Config{Driver: DriverSQLite}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestTable_SQLiteDiscoverAndScan(t *testing.T) {
	ctx := context.Background()
	db := openSQLite(t)

	tbl, err := NewTable(ctx, db, DriverSQLite, "orders")
	require.NoError(t, err)

	cols := tbl.Columns()
	require.Len(t, cols, 3)
	assert.Equal(t, []string{"id", "customer", "amount"}, types.ColumnNames(cols))
	assert.Equal(t, types.Integer, cols[0].Type.Name)
	assert.Equal(t, types.Varchar, cols[1].Type.Name)
	assert.Equal(t, types.Real, cols[2].Type.Name)

	it, err := tbl.Scan(ctx)
	require.NoError(t, err)
	rows, err := frame.Collect(ctx, it)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, int32(1), rows[0][0])
	assert.Equal(t, "acme", rows[0][1])
	assert.Equal(t, float32(10.5), rows[0][2])
	assert.Equal(t, float32(20.25), rows[1][2])
	assert.True(t, types.IsNull(rows[2][1]))
	assert.True(t, types.IsNull(rows[2][2]))
}

func TestTable_SQLiteWhere(t *testing.T) {
	ctx := context.Background()
	db := openSQLite(t)

	tbl, err := NewTable(ctx, db, DriverSQLite, "orders", WithWhere("customer IS NOT NULL"))
	require.NoError(t, err)

	it, err := tbl.Scan(ctx)
	require.NoError(t, err)
	rows, err := frame.Collect(ctx, it)
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestTable_ScansAreIndependent(t *testing.T) {
	ctx := context.Background()
	db := openSQLite(t)
	tbl, err := NewTable(ctx, db, DriverSQLite, "orders")
	require.NoError(t, err)

	first, err := tbl.Scan(ctx)
	require.NoError(t, err)
	_, err = first.Next(ctx)
	require.NoError(t, err)
	require.NoError(t, first.Close())

	_, err = first.Next(ctx)
	require.ErrorIs(t, err, io.EOF)

	second, err := tbl.Scan(ctx)
	require.NoError(t, err)
	rows, err := frame.Collect(ctx, second)
	require.NoError(t, err)
	assert.Len(t, rows, 3)
}

func TestTable_MissingTable(t *testing.T) {
	db := openSQLite(t)
	_, err := NewTable(context.Background(), db, DriverSQLite, "nope")
	require.Error(t, err)
}

func TestNewTable_Validation(t *testing.T) {
	_, err := NewTable(context.Background(), nil, DriverSQLite, "t")
	require.Error(t, err)

	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()
	_, err = NewTable(context.Background(), db, DriverSQLite, " ")
	require.Error(t, err)
}

func TestTable_PostgresQueryWithColumns(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	cols := []types.Column{
		{Name: "id", Type: types.Of(types.BigInt)},
		{Name: "name", Type: types.NullableOf(types.Varchar)},
	}
	tbl, err := NewTable(context.Background(), db, DriverPostgres, "public.users",
		WithColumns(cols), WithWhere("active = true"))
	require.NoError(t, err)

	q, args, err := tbl.Query()
	require.NoError(t, err)
	assert.Equal(t, `SELECT "id", "name" FROM "public"."users" WHERE active = true`, q)
	assert.Empty(t, args)

	mock.ExpectQuery(q).WillReturnRows(
		sqlmock.NewRows([]string{"id", "name"}).
			AddRow(int64(7), []byte("ada")).
			AddRow([]byte("8"), nil),
	)

	it, err := tbl.Scan(context.Background())
	require.NoError(t, err)
	rows, err := frame.Collect(context.Background(), it)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, int64(7), rows[0][0])
	assert.Equal(t, "ada", rows[0][1])
	assert.Equal(t, int64(8), rows[1][0])
	assert.True(t, types.IsNull(rows[1][1]))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTable_ScanError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	tbl, err := NewTable(context.Background(), db, DriverMySQL, "t",
		WithColumns([]types.Column{{Name: "a", Type: types.NullableOf(types.Integer)}}))
	require.NoError(t, err)

	mock.ExpectQuery("SELECT `a` FROM `t`").WillReturnError(errors.New("boom"))
	_, err = tbl.Scan(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}

func TestRowIterator_ConversionError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	tbl, err := NewTable(context.Background(), db, DriverMySQL, "t",
		WithColumns([]types.Column{{Name: "a", Type: types.Of(types.TinyInt)}}))
	require.NoError(t, err)

	mock.ExpectQuery("SELECT").WillReturnRows(sqlmock.NewRows([]string{"a"}).AddRow(int64(1000)))
	it, err := tbl.Scan(context.Background())
	require.NoError(t, err)
	defer func() { _ = it.Close() }()

	_, err = it.Next(context.Background())
	require.Error(t, err)
	assert.True(t, types.IsKind(err, types.ValueConversion))
}

func TestRowIterator_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	db := openSQLite(t)
	tbl, err := NewTable(ctx, db, DriverSQLite, "orders")
	require.NoError(t, err)
	it, err := tbl.Scan(ctx)
	require.NoError(t, err)
	defer func() { _ = it.Close() }()

	cancel()
	_, err = it.Next(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestDialectQuote(t *testing.T) {
	assert.Equal(t, `"we""ird"`, dialectFor(DriverPostgres).quote(`we"ird`))
	assert.Equal(t, "`a`.`b`", dialectFor(DriverMySQL).quoteTable("a.b"))
	assert.Equal(t, `"t"`, dialectFor(DriverSQLite).quoteTable("t"))
}

func TestTable_DiscoverNumericKeepsScale(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	columns := []*sqlmock.Column{
		mock.NewColumn("id").OfType("INT8", int64(0)).Nullable(false),
		mock.NewColumn("price").OfType("NUMERIC", "").Nullable(true).WithPrecisionAndScale(10, 2),
		mock.NewColumn("ratio").OfType("NUMERIC", "").Nullable(true),
	}
	mock.ExpectQuery(`SELECT \* FROM "ledger" LIMIT 0`).
		WillReturnRows(mock.NewRowsWithColumnDefinition(columns...))

	tbl, err := NewTable(context.Background(), db, DriverPostgres, "ledger")
	require.NoError(t, err)

	cols := tbl.Columns()
	require.Len(t, cols, 3)
	assert.Equal(t, types.DecimalOf(10, 2), cols[1].Type)
	assert.Equal(t, types.Decimal, cols[2].Type.Name)
	assert.Zero(t, cols[2].Type.Precision)

	mock.ExpectQuery(`SELECT "id", "price", "ratio" FROM "ledger"`).WillReturnRows(
		sqlmock.NewRows([]string{"id", "price", "ratio"}).
			AddRow(int64(1), []byte("12.30"), []byte("0.125")),
	)
	it, err := tbl.Scan(context.Background())
	require.NoError(t, err)
	defer func() { _ = it.Close() }()

	row, err := it.Next(context.Background())
	require.NoError(t, err)

	price, err := types.EncodeWire(cols[1].Type, row[1])
	require.NoError(t, err)
	assert.Equal(t, "12.30", price)

	ratio, err := types.EncodeWire(cols[2].Type, row[2])
	require.NoError(t, err)
	assert.Equal(t, "0.125", ratio)
	require.NoError(t, mock.ExpectationsWereMet())
}
