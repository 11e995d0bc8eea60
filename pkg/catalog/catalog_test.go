package catalog

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/txn2/sqlgate/pkg/frame"
	"github.com/txn2/sqlgate/pkg/types"
)

const (
	testSchema = "a_schema"
	testTable  = "a_table"
)

var testColumns = []types.Column{
	{Name: "A_STR", Type: types.NullableOf(types.Varchar)},
	{Name: "AN_INT", Type: types.Of(types.BigInt)},
	{Name: "A_FLOAT", Type: types.NullableOf(types.Double)},
}

func newSource(t *testing.T, rows ...frame.Row) *frame.Memory {
	t.Helper()
	m, err := frame.NewMemory(testColumns, rows)
	require.NoError(t, err)
	return m
}

func TestNew_DefaultSchemaIsCurrent(t *testing.T) {
	c := New()
	assert.Equal(t, DefaultSchemaName, c.CurrentSchema())
	assert.Equal(t, []string{DefaultSchemaName}, c.Schemas())

	c2 := New(WithDefaultSchema("Main"))
	assert.Equal(t, "main", c2.CurrentSchema())
}

func TestCatalogs_AreIndependent(t *testing.T) {
	a, b := New(), New()
	require.NoError(t, a.CreateSchema(testSchema))
	assert.True(t, a.HasSchema(testSchema))
	assert.False(t, b.HasSchema(testSchema))
}

func TestCreateTable_ColumnOrderPreserved(t *testing.T) {
	c := New()
	require.NoError(t, c.CreateSchema(testSchema))

	reversed := []types.Column{testColumns[2], testColumns[0], testColumns[1]}
	_, err := c.CreateTable(testSchema, testTable, newSource(t), reversed, false)
	require.NoError(t, err)

	got, err := c.Resolve(testSchema + "." + testTable)
	require.NoError(t, err)
	assert.Equal(t, reversed, got.Columns())
}

func TestCreateTable_DefaultsToSourceColumns(t *testing.T) {
	c := New()
	tbl, err := c.CreateTable("", testTable, newSource(t), nil, false)
	require.NoError(t, err)
	assert.Equal(t, DefaultSchemaName, tbl.Schema)
	assert.Equal(t, testColumns, tbl.Columns())
}

func TestCreateTable_AlreadyExists(t *testing.T) {
	c := New()
	_, err := c.CreateTable("", testTable, newSource(t), nil, false)
	require.NoError(t, err)

	_, err = c.CreateTable("", "A_TABLE", newSource(t), nil, false)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAlreadyExists)

	var ce *Error
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "table", ce.Object)
}

func TestCreateTable_OverwriteKeepsOldSnapshot(t *testing.T) {
	c := New()
	old, err := c.CreateTable("", testTable, newSource(t, frame.Row{"old", 1, 1.0}), nil, false)
	require.NoError(t, err)

	replacement := newSource(t, frame.Row{"new", 2, 2.0})
	_, err = c.CreateTable("", testTable, replacement, nil, true)
	require.NoError(t, err)

	resolved, err := c.Resolve(testTable)
	require.NoError(t, err)
	assert.Same(t, replacement, resolved.Source)

	rows, err := frame.Collect(context.Background(), mustScan(t, old.Source))
	require.NoError(t, err)
	assert.Equal(t, "old", rows[0][0], "readers of the old binding keep their snapshot")
}

func TestCreateTable_Validation(t *testing.T) {
	c := New()

	_, err := c.CreateTable("", "", newSource(t), nil, false)
	assert.ErrorIs(t, err, ErrInvalidName)

	_, err = c.CreateTable("missing", testTable, newSource(t), nil, false)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = c.CreateTable(SystemSchema, testTable, newSource(t), nil, false)
	assert.ErrorIs(t, err, ErrReserved)

	_, err = c.CreateTable("", testTable, newSource(t), testColumns[:2], false)
	assert.ErrorIs(t, err, ErrInvalidName)

	dup := []types.Column{testColumns[0], testColumns[1], {Name: "a_str", Type: types.Of(types.Varchar)}}
	_, err = c.CreateTable("", testTable, newSource(t), dup, false)
	assert.ErrorIs(t, err, ErrInvalidName)
}

func TestResolve_CaseInsensitive(t *testing.T) {
	c := New()
	require.NoError(t, c.CreateSchema("A_Schema"))
	_, err := c.CreateTable("a_schema", "A_Table", newSource(t), nil, false)
	require.NoError(t, err)

	for _, name := range []string{"a_schema.a_table", "A_SCHEMA.A_TABLE", `"a_schema"."A_table"`, "anything.a_schema.a_table"} {
		tbl, err := c.Resolve(name)
		require.NoError(t, err, name)
		assert.Equal(t, "a_table", tbl.Name)
		assert.Equal(t, "a_schema", tbl.Schema)
	}
}

func TestResolve_CurrentSchemaFallback(t *testing.T) {
	c := New()
	require.NoError(t, c.CreateSchema(testSchema))
	_, err := c.CreateTable(testSchema, testTable, newSource(t), nil, false)
	require.NoError(t, err)

	_, err = c.Resolve(testTable)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, c.SetCurrentSchema(testSchema))
	tbl, err := c.Resolve(testTable)
	require.NoError(t, err)
	assert.Equal(t, testSchema, tbl.Schema)

	tbl, err = c.Lookup(Name{Table: testTable}, testSchema)
	require.NoError(t, err)
	assert.Equal(t, testTable, tbl.Name)
}

func TestDropSchema(t *testing.T) {
	t.Run("current schema fails", func(t *testing.T) {
		c := New()
		err := c.DropSchema(DefaultSchemaName)
		assert.ErrorIs(t, err, ErrCurrentSchema)

		require.NoError(t, c.CreateSchema(testSchema))
		require.NoError(t, c.SetCurrentSchema(testSchema))
		assert.ErrorIs(t, c.DropSchema(testSchema), ErrCurrentSchema)
		assert.ErrorIs(t, c.DropSchema(DefaultSchemaName), ErrDefaultSchema)
	})

	t.Run("empty schema succeeds and resolve fails afterwards", func(t *testing.T) {
		c := New()
		require.NoError(t, c.CreateSchema(testSchema))
		require.NoError(t, c.DropSchema(testSchema))

		_, err := c.Resolve(testSchema + "." + testTable)
		assert.ErrorIs(t, err, ErrNotFound)
		assert.ErrorIs(t, c.DropSchema(testSchema), ErrNotFound)
	})

	t.Run("restrict refuses non-empty", func(t *testing.T) {
		c := New()
		require.NoError(t, c.CreateSchema(testSchema))
		_, err := c.CreateTable(testSchema, testTable, newSource(t), nil, false)
		require.NoError(t, err)
		assert.ErrorIs(t, c.DropSchema(testSchema), ErrNonEmptySchema)
	})

	t.Run("cascade drops tables", func(t *testing.T) {
		c := New(WithDropPolicy(DropCascade))
		require.NoError(t, c.CreateSchema(testSchema))
		_, err := c.CreateTable(testSchema, testTable, newSource(t), nil, false)
		require.NoError(t, err)
		require.NoError(t, c.DropSchema(testSchema))
		assert.False(t, c.HasSchema(testSchema))
	})

	t.Run("system schema is reserved", func(t *testing.T) {
		c := New()
		assert.ErrorIs(t, c.CreateSchema(SystemSchema), ErrReserved)
		assert.ErrorIs(t, c.DropSchema(SystemSchema), ErrReserved)
	})
}

func TestCreateSchema_AlreadyExists(t *testing.T) {
	c := New()
	require.NoError(t, c.CreateSchema(testSchema))
	assert.ErrorIs(t, c.CreateSchema("A_SCHEMA"), ErrAlreadyExists)
	assert.ErrorIs(t, c.CreateSchema(" "), ErrInvalidName)
}

func TestDropTable(t *testing.T) {
	c := New()
	_, err := c.CreateTable("", testTable, newSource(t), nil, false)
	require.NoError(t, err)

	require.NoError(t, c.DropTable("", "A_TABLE"))
	_, err = c.Resolve(testTable)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, c.DropTable("", testTable), ErrNotFound)
	assert.ErrorIs(t, c.DropTable("nope", testTable), ErrNotFound)
}

func TestListings_CreationOrder(t *testing.T) {
	c := New()
	require.NoError(t, c.CreateSchema("zeta"))
	require.NoError(t, c.CreateSchema(testSchema))
	assert.Equal(t, []string{DefaultSchemaName, "zeta", testSchema}, c.Schemas())

	for _, n := range []string{"zeta", "alpha", "mid"} {
		_, err := c.CreateTable("", n, newSource(t), nil, false)
		require.NoError(t, err)
	}
	_, err := c.CreateTable("", "zeta", newSource(t), nil, true)
	require.NoError(t, err)
	require.NoError(t, c.DropTable("", "alpha"))

	tables, err := c.Tables("")
	require.NoError(t, err)
	require.Len(t, tables, 2)
	assert.Equal(t, "zeta", tables[0].Name)
	assert.Equal(t, "mid", tables[1].Name)

	require.NoError(t, c.DropSchema("zeta"))
	assert.Equal(t, []string{DefaultSchemaName, testSchema}, c.Schemas())
}

func TestCatalog_ConcurrentAccess(t *testing.T) {
	c := New()
	src := newSource(t)
	var wg sync.WaitGroup
	for i := range 10 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _ = c.CreateTable("", fmt.Sprintf("t%d", i), src, nil, true)
		}()
		go func() {
			defer wg.Done()
			_, _ = c.Resolve(fmt.Sprintf("t%d", i))
			_ = c.Schemas()
		}()
	}
	wg.Wait()

	tables, err := c.Tables("")
	require.NoError(t, err)
	assert.Len(t, tables, 10)
}

func TestParseName(t *testing.T) {
	tests := []struct {
		in   string
		want Name
	}{
		{"a_table", Name{Table: "a_table"}},
		{"A_Schema.A_Table", Name{Schema: "a_schema", Table: "a_table"}},
		{"system.jdbc.columns", Name{Schema: "system_jdbc", Table: "columns"}},
		{"other.s.t", Name{Schema: "s", Table: "t"}},
		{`"dotted.name".t`, Name{Schema: "dotted.name", Table: "t"}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseName(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	for _, bad := range []string{"", "a..b", `"open`, "a.b.c.d"} {
		_, err := ParseName(bad)
		assert.ErrorIs(t, err, ErrInvalidName, bad)
	}
}

func TestParseDropPolicy(t *testing.T) {
	p, err := ParseDropPolicy("CASCADE")
	require.NoError(t, err)
	assert.Equal(t, DropCascade, p)

	p, err = ParseDropPolicy("")
	require.NoError(t, err)
	assert.Equal(t, DropRestrict, p)

	_, err = ParseDropPolicy("sometimes")
	assert.Error(t, err)
}

func mustScan(t *testing.T, s frame.Source) frame.Iterator {
	t.Helper()
	it, err := s.Scan(context.Background())
	require.NoError(t, err)
	return it
}
