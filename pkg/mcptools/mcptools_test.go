package mcptools

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/txn2/sqlgate/pkg/catalog"
	"github.com/txn2/sqlgate/pkg/compiler"
	"github.com/txn2/sqlgate/pkg/engine"
	"github.com/txn2/sqlgate/pkg/frame"
	"github.com/txn2/sqlgate/pkg/statement"
	"github.com/txn2/sqlgate/pkg/types"
)

const testSchema = "sales"

func newCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	c := catalog.New()
	require.NoError(t, c.CreateSchema(testSchema))

	cols := []types.Column{
		{Name: "region", Type: types.NullableOf(types.Varchar)},
		{Name: "amount", Type: types.Of(types.BigInt)},
	}
	_, err := c.CreateTable(testSchema, "orders", frame.MustMemory(cols, []frame.Row{{"north", int64(10)}}), nil, false)
	require.NoError(t, err)

	numCols := []types.Column{{Name: "n", Type: types.Of(types.BigInt)}}
	rows := make([]frame.Row, 10)
	for i := range rows {
		rows[i] = frame.Row{int64(i)}
	}
	_, err = c.CreateTable(testSchema, "numbers", frame.MustMemory(numCols, rows), nil, false)
	require.NoError(t, err)
	return c
}

// connect registers the toolkit on a fresh server and returns a connected
// in-memory client session.
func connect(t *testing.T, maxRows int) *mcp.ClientSession {
	t.Helper()
	ctx := context.Background()
	cat := newCatalog(t)

	m, err := statement.NewManager(compiler.New(cat), engine.NewLocal(), statement.Config{PageSize: 4})
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })

	server := mcp.NewServer(&mcp.Implementation{Name: "sqlgate-test", Version: "0.0.1"}, nil)
	New(m, cat, maxRows).RegisterTools(server)

	t1, t2 := mcp.NewInMemoryTransports()
	serverSession, err := server.Connect(ctx, t1, nil)
	require.NoError(t, err)

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "1.0"}, nil)
	session, err := client.Connect(ctx, t2, nil)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = session.Close()
		_ = serverSession.Close()
	})
	return session
}

func call(t *testing.T, s *mcp.ClientSession, name string, args map[string]any) (*mcp.CallToolResult, string) {
	t.Helper()
	res, err := s.CallTool(context.Background(), &mcp.CallToolParams{Name: name, Arguments: args})
	require.NoError(t, err)
	require.NotEmpty(t, res.Content)
	text, ok := res.Content[0].(*mcp.TextContent)
	require.True(t, ok)
	return res, text.Text
}

func TestTools(t *testing.T) {
	tk := New(nil, nil, 0)
	assert.Equal(t, []string{"execute_sql", "list_tables", "describe_table"}, tk.Tools())
	assert.Equal(t, defaultMaxRows, tk.maxRows)
}

func TestExecuteSQL(t *testing.T) {
	s := connect(t, 0)

	res, text := call(t, s, "execute_sql", map[string]any{"sql": "SELECT region, amount FROM orders", "schema": testSchema})
	require.False(t, res.IsError, text)

	var out executeSQLOutput
	require.NoError(t, json.Unmarshal([]byte(text), &out))
	assert.Equal(t, "FINISHED", out.State)
	assert.NotEmpty(t, out.QueryID)
	assert.Equal(t, []columnOutput{
		{Name: "region", Type: "varchar", Nullable: true},
		{Name: "amount", Type: "bigint", Nullable: false},
	}, out.Columns)
	require.Equal(t, 1, out.RowCount)
	assert.Equal(t, "north", out.Rows[0][0])
	assert.InDelta(t, 10, out.Rows[0][1], 0)
	assert.False(t, out.Truncated)
}

func TestExecuteSQL_AcrossPages(t *testing.T) {
	s := connect(t, 0)

	_, text := call(t, s, "execute_sql", map[string]any{"sql": "SELECT n FROM sales.numbers"})
	var out executeSQLOutput
	require.NoError(t, json.Unmarshal([]byte(text), &out))
	assert.Equal(t, "FINISHED", out.State)
	assert.Equal(t, 10, out.RowCount)
	assert.False(t, out.Truncated)
}

func TestExecuteSQL_MaxRows(t *testing.T) {
	s := connect(t, 5)

	tests := []struct {
		name    string
		maxRows int
		want    int
	}{
		{"server cap", 0, 5},
		{"caller asks for fewer", 3, 3},
		{"caller cannot exceed cap", 50, 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := map[string]any{"sql": "SELECT n FROM sales.numbers"}
			if tt.maxRows > 0 {
				args["max_rows"] = tt.maxRows
			}
			_, text := call(t, s, "execute_sql", args)
			var out executeSQLOutput
			require.NoError(t, json.Unmarshal([]byte(text), &out))
			assert.Equal(t, tt.want, out.RowCount)
			assert.True(t, out.Truncated)
		})
	}
}

func TestExecuteSQL_Failures(t *testing.T) {
	s := connect(t, 0)

	res, text := call(t, s, "execute_sql", map[string]any{"sql": "SELECT * FROM nowhere"})
	assert.True(t, res.IsError)
	var out executeSQLOutput
	require.NoError(t, json.Unmarshal([]byte(text), &out))
	assert.Equal(t, "FAILED", out.State)
	assert.NotEmpty(t, out.Error)

	res, text = call(t, s, "execute_sql", map[string]any{"sql": "   "})
	assert.True(t, res.IsError)
	assert.Contains(t, text, "Error:")
}

func TestListTables(t *testing.T) {
	s := connect(t, 0)

	_, text := call(t, s, "list_tables", map[string]any{})
	var schemas listTablesOutput
	require.NoError(t, json.Unmarshal([]byte(text), &schemas))
	assert.Contains(t, schemas.Schemas, testSchema)
	assert.Contains(t, schemas.Schemas, "root")

	_, text = call(t, s, "list_tables", map[string]any{"schema": "SALES"})
	var tables listTablesOutput
	require.NoError(t, json.Unmarshal([]byte(text), &tables))
	assert.Equal(t, testSchema, tables.Schema)
	assert.ElementsMatch(t, []string{"orders", "numbers"}, tables.Tables)

	res, _ := call(t, s, "list_tables", map[string]any{"schema": "missing"})
	assert.True(t, res.IsError)
}

func TestDescribeTable(t *testing.T) {
	s := connect(t, 0)

	res, text := call(t, s, "describe_table", map[string]any{"table": "Sales.Orders"})
	require.False(t, res.IsError, text)
	var out describeTableOutput
	require.NoError(t, json.Unmarshal([]byte(text), &out))
	assert.Equal(t, "sales.orders", out.Table)
	require.Len(t, out.Columns, 2)
	assert.Equal(t, "region", out.Columns[0].Name)

	res, _ = call(t, s, "describe_table", map[string]any{"table": "sales.nope"})
	assert.True(t, res.IsError)
}
