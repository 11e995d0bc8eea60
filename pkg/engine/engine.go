// Package engine executes logical plans. The Local engine evaluates the plan
// tree in-process with pull-based operators: nothing is read from a data
// source until a cursor is fetched.
package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/txn2/sqlgate/pkg/frame"
	"github.com/txn2/sqlgate/pkg/plan"
	"github.com/txn2/sqlgate/pkg/types"
)

// Engine executes plans.
type Engine interface {
	Execute(ctx context.Context, p *plan.Plan) (Cursor, error)
}

// Cursor is a lazily evaluated result stream.
type Cursor interface {
	// Columns returns the result schema.
	Columns() []types.Column

	// Fetch pulls at most n rows. When the result is exhausted it returns
	// the remaining rows, possibly none, together with io.EOF.
	Fetch(ctx context.Context, n int) ([]frame.Row, error)

	// Close releases the underlying iterators. It is safe to call more
	// than once.
	Close() error
}

// Local evaluates plans in the calling goroutine.
type Local struct{}

// NewLocal returns a Local engine.
func NewLocal() *Local {
	return &Local{}
}

// Execute builds the operator tree for p. Data sources are opened here but
// no rows are read.
func (l *Local) Execute(ctx context.Context, p *plan.Plan) (Cursor, error) {
	if p == nil || p.Root == nil {
		return nil, errors.New("engine: empty plan")
	}
	it, err := build(ctx, p.Root)
	if err != nil {
		return nil, err
	}
	return &cursor{columns: p.Columns(), it: it}, nil
}

type cursor struct {
	mu      sync.Mutex
	columns []types.Column
	it      frame.Iterator
	done    bool
	closed  bool
}

func (c *cursor) Columns() []types.Column {
	cols := make([]types.Column, len(c.columns))
	copy(cols, c.columns)
	return cols
}

func (c *cursor) Fetch(ctx context.Context, n int) ([]frame.Row, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, errors.New("engine: cursor closed")
	}
	if c.done {
		return nil, io.EOF
	}
	if n <= 0 {
		return nil, fmt.Errorf("engine: fetch size must be positive, got %d", n)
	}

	rows := make([]frame.Row, 0, n)
	for len(rows) < n {
		r, err := c.it.Next(ctx)
		if errors.Is(err, io.EOF) {
			c.done = true
			return rows, io.EOF
		}
		if err != nil {
			return nil, err
		}
		rows = append(rows, r)
	}
	return rows, nil
}

func (c *cursor) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.it.Close()
}

func build(ctx context.Context, n plan.Node) (frame.Iterator, error) {
	switch node := n.(type) {
	case *plan.Scan:
		it, err := node.Source.Scan(ctx)
		if err != nil {
			return nil, fmt.Errorf("scanning %s: %w", node.Table, err)
		}
		return it, nil
	case *plan.Values:
		return &valuesOp{rows: node.Rows}, nil
	case *plan.Filter:
		in, err := build(ctx, node.Input)
		if err != nil {
			return nil, err
		}
		return &filterOp{in: in, pred: node.Predicate}, nil
	case *plan.Project:
		in, err := build(ctx, node.Input)
		if err != nil {
			return nil, err
		}
		return &projectOp{in: in, exprs: node.Exprs}, nil
	case *plan.Sort:
		in, err := build(ctx, node.Input)
		if err != nil {
			return nil, err
		}
		return &sortOp{in: in, keys: node.Keys}, nil
	case *plan.Limit:
		in, err := build(ctx, node.Input)
		if err != nil {
			return nil, err
		}
		return &limitOp{in: in, remaining: node.Count}, nil
	case *plan.Distinct:
		in, err := build(ctx, node.Input)
		if err != nil {
			return nil, err
		}
		return &distinctOp{in: in, seen: make(map[string]struct{})}, nil
	default:
		return nil, fmt.Errorf("engine: unsupported plan node %T", n)
	}
}
