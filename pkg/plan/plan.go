// Package plan defines the logical plan a planner produces and the engine
// executes. Plans are inert trees: building one never touches data.
package plan

import (
	"fmt"
	"strings"

	"github.com/txn2/sqlgate/pkg/frame"
	"github.com/txn2/sqlgate/pkg/types"
)

// Node is a relational operator.
type Node interface {
	// Columns returns the output schema of the node.
	Columns() []types.Column

	// Inputs returns the child nodes.
	Inputs() []Node

	// String describes the node on one line.
	String() string
}

// Plan is a complete logical plan.
type Plan struct {
	Root Node
}

// Columns returns the output schema of the plan.
func (p *Plan) Columns() []types.Column {
	return p.Root.Columns()
}

// Explain renders the plan tree, one node per line, children indented.
func (p *Plan) Explain() string {
	var b strings.Builder
	explain(&b, p.Root, 0)
	return strings.TrimRight(b.String(), "\n")
}

func explain(b *strings.Builder, n Node, depth int) {
	b.WriteString(strings.Repeat("  ", depth))
	b.WriteString(n.String())
	b.WriteByte('\n')
	for _, in := range n.Inputs() {
		explain(b, in, depth+1)
	}
}

// Scan reads a table's data source.
type Scan struct {
	Table  string
	Source frame.Source
	Cols   []types.Column
}

func (s *Scan) Columns() []types.Column { return s.Cols }
func (s *Scan) Inputs() []Node          { return nil }
func (s *Scan) String() string {
	return fmt.Sprintf("Scan[%s](%s)", s.Table, strings.Join(types.ColumnNames(s.Cols), ", "))
}

// Values produces a fixed set of rows. A SELECT without FROM scans a single
// empty row.
type Values struct {
	Cols []types.Column
	Rows []frame.Row
}

func (v *Values) Columns() []types.Column { return v.Cols }
func (v *Values) Inputs() []Node          { return nil }
func (v *Values) String() string          { return fmt.Sprintf("Values[%d rows]", len(v.Rows)) }

// Filter keeps rows for which Predicate evaluates to true. NULL and false
// both drop the row.
type Filter struct {
	Input     Node
	Predicate Expr
}

func (f *Filter) Columns() []types.Column { return f.Input.Columns() }
func (f *Filter) Inputs() []Node          { return []Node{f.Input} }
func (f *Filter) String() string          { return "Filter[" + f.Predicate.String() + "]" }

// Project computes one output column per expression.
type Project struct {
	Input Node
	Exprs []Expr
	Names []string
}

func (p *Project) Columns() []types.Column {
	cols := make([]types.Column, len(p.Exprs))
	for i, e := range p.Exprs {
		cols[i] = types.Column{Name: p.Names[i], Type: e.Type()}
	}
	return cols
}

func (p *Project) Inputs() []Node { return []Node{p.Input} }
func (p *Project) String() string {
	items := make([]string, len(p.Exprs))
	for i, e := range p.Exprs {
		items[i] = e.String() + " AS " + p.Names[i]
	}
	return "Project[" + strings.Join(items, ", ") + "]"
}

// SortKey is one ORDER BY term.
type SortKey struct {
	Expr Expr
	Desc bool
}

// Sort orders rows by its keys. NULLs sort last regardless of direction.
type Sort struct {
	Input Node
	Keys  []SortKey
}

func (s *Sort) Columns() []types.Column { return s.Input.Columns() }
func (s *Sort) Inputs() []Node          { return []Node{s.Input} }
func (s *Sort) String() string {
	keys := make([]string, len(s.Keys))
	for i, k := range s.Keys {
		dir := "ASC"
		if k.Desc {
			dir = "DESC"
		}
		keys[i] = k.Expr.String() + " " + dir
	}
	return "Sort[" + strings.Join(keys, ", ") + "]"
}

// Limit passes through at most Count rows.
type Limit struct {
	Input Node
	Count int64
}

func (l *Limit) Columns() []types.Column { return l.Input.Columns() }
func (l *Limit) Inputs() []Node          { return []Node{l.Input} }
func (l *Limit) String() string          { return fmt.Sprintf("Limit[%d]", l.Count) }

// Distinct drops duplicate rows, keeping the first occurrence.
type Distinct struct {
	Input Node
}

func (d *Distinct) Columns() []types.Column { return d.Input.Columns() }
func (d *Distinct) Inputs() []Node          { return []Node{d.Input} }
func (d *Distinct) String() string          { return "Distinct" }
