// Package mcptools exposes the gateway to MCP clients as tools that run SQL
// and browse the catalog.
package mcptools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/txn2/sqlgate/pkg/auth"
	"github.com/txn2/sqlgate/pkg/catalog"
	"github.com/txn2/sqlgate/pkg/statement"
	"github.com/txn2/sqlgate/pkg/types"
)

const (
	executeSQLTool    = "execute_sql"
	listTablesTool    = "list_tables"
	describeTableTool = "describe_table"

	defaultMaxRows = 1000
	pollInterval   = 20 * time.Millisecond
	mcpUser        = "mcp"
)

// Runner submits and polls statements.
type Runner interface {
	Submit(ctx context.Context, sql string, opts statement.SubmitOptions) (*statement.Statement, error)
	Poll(ctx context.Context, id string, token int64) (*statement.Result, error)
	Cancel(ctx context.Context, id string) error
}

// Toolkit provides the SQL tools.
type Toolkit struct {
	runner  Runner
	catalog *catalog.Catalog
	maxRows int
}

// New creates a toolkit. maxRows caps execute_sql results when the caller
// does not ask for fewer.
func New(r Runner, c *catalog.Catalog, maxRows int) *Toolkit {
	if maxRows <= 0 {
		maxRows = defaultMaxRows
	}
	return &Toolkit{runner: r, catalog: c, maxRows: maxRows}
}

// Tools returns the list of tool names provided by this toolkit.
func (*Toolkit) Tools() []string {
	return []string{executeSQLTool, listTablesTool, describeTableTool}
}

// RegisterTools registers the tools with the MCP server.
func (t *Toolkit) RegisterTools(s *mcp.Server) {
	mcp.AddTool(s, &mcp.Tool{
		Name: executeSQLTool,
		Description: "Runs a SQL SELECT statement against the gateway catalog and returns the columns and rows. " +
			"Results are capped at max_rows; the statement is cancelled once the cap is reached.",
	}, t.handleExecuteSQL)

	mcp.AddTool(s, &mcp.Tool{
		Name:        listTablesTool,
		Description: "Lists the schemas of the catalog, or the tables of one schema.",
	}, t.handleListTables)

	mcp.AddTool(s, &mcp.Tool{
		Name:        describeTableTool,
		Description: "Returns the columns of a table with their SQL types and nullability.",
	}, t.handleDescribeTable)
}

type executeSQLInput struct {
	SQL     string `json:"sql" jsonschema:"the SQL statement to run"`
	Schema  string `json:"schema,omitempty" jsonschema:"default schema for unqualified table names"`
	MaxRows int    `json:"max_rows,omitempty" jsonschema:"maximum rows to return"`
}

type executeSQLOutput struct {
	QueryID   string         `json:"query_id"`
	State     string         `json:"state"`
	Columns   []columnOutput `json:"columns,omitempty"`
	Rows      [][]any        `json:"rows"`
	RowCount  int            `json:"row_count"`
	Truncated bool           `json:"truncated,omitempty"`
	Error     string         `json:"error,omitempty"`
}

type columnOutput struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Nullable bool   `json:"nullable"`
}

func (t *Toolkit) handleExecuteSQL(ctx context.Context, _ *mcp.CallToolRequest, in executeSQLInput) (*mcp.CallToolResult, any, error) {
	limit := t.maxRows
	if in.MaxRows > 0 && in.MaxRows < limit {
		limit = in.MaxRows
	}

	user := auth.UserName(ctx)
	if user == "" {
		user = mcpUser
	}
	st, err := t.runner.Submit(ctx, in.SQL, statement.SubmitOptions{User: user, Schema: in.Schema})
	if err != nil {
		return errorResult(err.Error()), nil, nil //nolint:nilerr // MCP protocol: tool errors are returned in CallToolResult.IsError
	}

	out, err := t.collect(ctx, st.ID, limit)
	if err != nil {
		return errorResult(err.Error()), nil, nil //nolint:nilerr // MCP protocol: tool errors are returned in CallToolResult.IsError
	}
	res := jsonResult(out)
	res.IsError = out.Error != ""
	return res, nil, nil
}

// collect polls id until it is terminal or limit rows have arrived.
func (t *Toolkit) collect(ctx context.Context, id string, limit int) (executeSQLOutput, error) {
	out := executeSQLOutput{QueryID: id, Rows: [][]any{}}
	var token int64

	for {
		res, err := t.runner.Poll(ctx, id, token)
		if err != nil {
			return out, fmt.Errorf("polling %s: %w", id, err)
		}
		out.State = res.State.String()
		if res.Err != nil {
			out.Error = res.Err.Error()
			return out, nil
		}
		if out.Columns == nil && res.Columns != nil {
			out.Columns = columnsOf(res.Columns)
		}

		for _, row := range res.Data {
			if len(out.Rows) >= limit {
				out.Truncated = true
				break
			}
			out.Rows = append(out.Rows, row)
		}
		out.RowCount = len(out.Rows)

		if out.Truncated {
			if err := t.runner.Cancel(ctx, id); err != nil && !errors.Is(err, statement.ErrAlreadyTerminal) {
				return out, fmt.Errorf("cancelling %s: %w", id, err)
			}
			return out, nil
		}
		if !res.HasNext {
			return out, nil
		}

		if res.NextToken == token {
			select {
			case <-ctx.Done():
				_ = t.runner.Cancel(context.WithoutCancel(ctx), id)
				return out, ctx.Err()
			case <-time.After(pollInterval):
			}
		}
		token = res.NextToken
	}
}

type listTablesInput struct {
	Schema string `json:"schema,omitempty" jsonschema:"schema to list; omit to list schemas"`
}

type listTablesOutput struct {
	Schemas []string `json:"schemas,omitempty"`
	Schema  string   `json:"schema,omitempty"`
	Tables  []string `json:"tables,omitempty"`
}

func (t *Toolkit) handleListTables(_ context.Context, _ *mcp.CallToolRequest, in listTablesInput) (*mcp.CallToolResult, any, error) {
	if in.Schema == "" {
		return jsonResult(listTablesOutput{Schemas: t.catalog.Schemas()}), nil, nil
	}
	tables, err := t.catalog.Tables(in.Schema)
	if err != nil {
		return errorResult(err.Error()), nil, nil //nolint:nilerr // MCP protocol: tool errors are returned in CallToolResult.IsError
	}
	out := listTablesOutput{Schema: catalog.Canonical(in.Schema), Tables: make([]string, len(tables))}
	for i, tbl := range tables {
		out.Tables[i] = tbl.Name
	}
	return jsonResult(out), nil, nil
}

type describeTableInput struct {
	Table string `json:"table" jsonschema:"table name, optionally schema-qualified"`
}

type describeTableOutput struct {
	Table   string         `json:"table"`
	Columns []columnOutput `json:"columns"`
}

func (t *Toolkit) handleDescribeTable(_ context.Context, _ *mcp.CallToolRequest, in describeTableInput) (*mcp.CallToolResult, any, error) {
	tbl, err := t.catalog.Resolve(in.Table)
	if err != nil {
		return errorResult(err.Error()), nil, nil //nolint:nilerr // MCP protocol: tool errors are returned in CallToolResult.IsError
	}
	return jsonResult(describeTableOutput{
		Table:   tbl.QualifiedName(),
		Columns: columnsOf(tbl.Columns()),
	}), nil, nil
}

func columnsOf(cols []types.Column) []columnOutput {
	out := make([]columnOutput, len(cols))
	for i, c := range cols {
		out[i] = columnOutput{Name: c.Name, Type: types.WireType(c.Type), Nullable: c.Nullable()}
	}
	return out
}

func jsonResult(v any) *mcp.CallToolResult {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errorResult("encoding result: " + err.Error())
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
	}
}

func errorResult(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: "Error: " + msg}},
		IsError: true,
	}
}
