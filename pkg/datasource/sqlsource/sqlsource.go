// Package sqlsource binds catalog tables to tables in external databases
// reached through database/sql. Rows are pulled lazily from the driver as the
// engine asks for them.
package sqlsource

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/go-sql-driver/mysql" // registers the "mysql" driver
	_ "github.com/lib/pq"              // registers the "postgres" driver
	_ "modernc.org/sqlite"             // registers the "sqlite" driver

	"github.com/txn2/sqlgate/pkg/frame"
	"github.com/txn2/sqlgate/pkg/types"
)

// Supported driver names.
const (
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
	DriverSQLite   = "sqlite"
)

const (
	defaultMaxOpenConns = 10
	defaultMaxIdleConns = 5
	defaultConnLifetime = 30 * time.Minute
	pingTimeout         = 5 * time.Second
)

// Config describes one named database connection.
type Config struct {
	Driver       string `yaml:"driver"`
	DSN          string `yaml:"dsn"`
	MaxOpenConns int    `yaml:"max_open_conns"`
}

// Validate reports configuration problems.
func (c Config) Validate() error {
	switch c.Driver {
	case DriverPostgres, DriverMySQL, DriverSQLite:
	case "":
		return errors.New("driver is required")
	default:
		return fmt.Errorf("unsupported driver %q", c.Driver)
	}
	if c.DSN == "" {
		return errors.New("dsn is required")
	}
	return nil
}

// Open opens and pings a connection pool.
func Open(ctx context.Context, cfg Config) (*sql.DB, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	db, err := sql.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("opening %s source: %w", cfg.Driver, err)
	}

	maxOpen := cfg.MaxOpenConns
	if maxOpen <= 0 {
		maxOpen = defaultMaxOpenConns
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(min(defaultMaxIdleConns, maxOpen))
	db.SetConnMaxLifetime(defaultConnLifetime)

	pctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := db.PingContext(pctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pinging %s source: %w", cfg.Driver, err)
	}
	return db, nil
}

// Table is a frame.Source reading one table or view.
type Table struct {
	db      *sql.DB
	dialect dialect
	table   string
	where   string
	columns []types.Column
	names   []string
}

// Option configures a Table.
type Option func(*Table)

// WithWhere restricts the rows the table exposes with a raw SQL predicate.
func WithWhere(predicate string) Option {
	return func(t *Table) { t.where = predicate }
}

// WithColumns binds the table to an explicit column list instead of
// discovering it from the driver.
func WithColumns(cols []types.Column) Option {
	return func(t *Table) {
		t.columns = append([]types.Column(nil), cols...)
	}
}

// NewTable binds a Table. Without WithColumns the column names and types are
// read from the driver by running a zero-row query.
func NewTable(ctx context.Context, db *sql.DB, driver, table string, opts ...Option) (*Table, error) {
	if db == nil {
		return nil, errors.New("sqlsource: nil database")
	}
	if strings.TrimSpace(table) == "" {
		return nil, errors.New("sqlsource: table name is required")
	}
	t := &Table{db: db, dialect: dialectFor(driver), table: table}
	for _, opt := range opts {
		opt(t)
	}

	if len(t.columns) == 0 {
		cols, err := t.discover(ctx)
		if err != nil {
			return nil, err
		}
		t.columns = cols
	}
	t.names = types.ColumnNames(t.columns)
	return t, nil
}

func (t *Table) discover(ctx context.Context) ([]types.Column, error) {
	query, args, err := t.dialect.builder().
		Select("*").
		From(t.dialect.quoteTable(t.table)).
		Limit(0).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building discovery query: %w", err)
	}

	rows, err := t.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("discovering columns of %s: %w", t.table, err)
	}
	defer func() { _ = rows.Close() }()

	cts, err := rows.ColumnTypes()
	if err != nil {
		return nil, fmt.Errorf("reading column types of %s: %w", t.table, err)
	}
	cols := make([]types.Column, len(cts))
	for i, ct := range cts {
		st := types.FromDatabaseType(ct.DatabaseTypeName())
		if st.Name == types.Decimal && st.Precision == 0 {
			if p, s, ok := ct.DecimalSize(); ok && p > 0 {
				st.Precision, st.Scale = int(p), int(s)
			}
		}
		if nullable, ok := ct.Nullable(); ok {
			st = st.WithNullable(nullable)
		}
		cols[i] = types.Column{Name: ct.Name(), Type: st}
	}
	return cols, rows.Err()
}

// Columns returns the bound column schema.
func (t *Table) Columns() []types.Column {
	return append([]types.Column(nil), t.columns...)
}

// Query returns the SELECT statement a scan runs.
func (t *Table) Query() (string, []any, error) {
	quoted := make([]string, len(t.names))
	for i, n := range t.names {
		quoted[i] = t.dialect.quote(n)
	}
	b := t.dialect.builder().Select(quoted...).From(t.dialect.quoteTable(t.table))
	if t.where != "" {
		b = b.Where(sq.Expr(t.where))
	}
	q, args, err := b.ToSql()
	if err != nil {
		return "", nil, fmt.Errorf("building scan query: %w", err)
	}
	return q, args, nil
}

// Scan runs the SELECT and returns an iterator over its rows. The iterator
// holds a connection until it is exhausted or closed.
func (t *Table) Scan(ctx context.Context) (frame.Iterator, error) {
	q, args, err := t.Query()
	if err != nil {
		return nil, err
	}
	rows, err := t.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", t.table, err)
	}
	return &rowIterator{rows: rows, columns: t.columns}, nil
}

type rowIterator struct {
	rows    *sql.Rows
	columns []types.Column
	done    bool
}

func (it *rowIterator) Next(ctx context.Context) (frame.Row, error) {
	if it.done {
		return nil, io.EOF
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !it.rows.Next() {
		it.done = true
		if err := it.rows.Err(); err != nil {
			return nil, fmt.Errorf("reading rows: %w", err)
		}
		return nil, io.EOF
	}

	raw := make([]any, len(it.columns))
	ptrs := make([]any, len(raw))
	for i := range raw {
		ptrs[i] = &raw[i]
	}
	if err := it.rows.Scan(ptrs...); err != nil {
		return nil, fmt.Errorf("scanning row: %w", err)
	}

	row := make(frame.Row, len(raw))
	for i, v := range raw {
		nv, err := types.ToNativeValue(it.columns[i].Type, driverValue(it.columns[i].Type, v))
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", it.columns[i].Name, err)
		}
		row[i] = nv
	}
	return row, nil
}

func (it *rowIterator) Close() error {
	it.done = true
	return it.rows.Close()
}

// driverValue normalizes what drivers hand back: text protocols return
// []byte for every non-binary column.
func driverValue(t types.SQLType, v any) any {
	b, ok := v.([]byte)
	if !ok || t.Name == types.Varbinary || t.Name == types.Any {
		return v
	}
	return string(b)
}

// Verify interface compliance.
var _ frame.Source = (*Table)(nil)
