// Package frame defines the lazily evaluated tabular data sources that
// catalog tables bind to, and an in-memory implementation.
//
// A Source is owned by whoever created it (a data loader, a SQL connection
// pool, the introspection synthesizer). Catalog tables only hold a reference;
// scanning never copies the full source up front.
package frame

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/txn2/sqlgate/pkg/types"
)

// Row is one record. Values are native values as produced by the type bridge.
type Row []any

// Source is a lazily evaluated table.
type Source interface {
	// Columns returns the column schema in order.
	Columns() []types.Column

	// Scan starts a new pass over the data. Each call returns an independent
	// iterator.
	Scan(ctx context.Context) (Iterator, error)
}

// Iterator pulls rows one at a time. Next returns io.EOF after the last row.
type Iterator interface {
	Next(ctx context.Context) (Row, error)
	Close() error
}

// Memory is an immutable in-memory Source.
type Memory struct {
	columns []types.Column
	rows    []Row
}

// NewMemory builds a Memory source. Every row must have one value per column;
// values are converted to the native representation of their column type.
func NewMemory(columns []types.Column, rows []Row) (*Memory, error) {
	cols := make([]types.Column, len(columns))
	copy(cols, columns)

	converted := make([]Row, len(rows))
	for i, r := range rows {
		if len(r) != len(cols) {
			return nil, fmt.Errorf("row %d has %d values, want %d", i, len(r), len(cols))
		}
		out := make(Row, len(r))
		for j, v := range r {
			nv, err := types.ToNativeValue(cols[j].Type, v)
			if err != nil {
				return nil, fmt.Errorf("row %d column %q: %w", i, cols[j].Name, err)
			}
			out[j] = nv
		}
		converted[i] = out
	}
	return &Memory{columns: cols, rows: converted}, nil
}

// MustMemory is NewMemory that panics on error. Intended for fixtures.
func MustMemory(columns []types.Column, rows []Row) *Memory {
	m, err := NewMemory(columns, rows)
	if err != nil {
		panic(err)
	}
	return m
}

// Columns returns a copy of the column schema.
func (m *Memory) Columns() []types.Column {
	cols := make([]types.Column, len(m.columns))
	copy(cols, m.columns)
	return cols
}

// Len returns the number of rows.
func (m *Memory) Len() int {
	return len(m.rows)
}

// Scan returns an iterator over the rows.
func (m *Memory) Scan(_ context.Context) (Iterator, error) {
	return &sliceIterator{rows: m.rows}, nil
}

type sliceIterator struct {
	rows []Row
	pos  int
}

func (it *sliceIterator) Next(ctx context.Context) (Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if it.pos >= len(it.rows) {
		return nil, io.EOF
	}
	r := it.rows[it.pos]
	it.pos++
	return r, nil
}

func (it *sliceIterator) Close() error {
	it.rows = nil
	return nil
}

// Collect drains an iterator into a slice. It is meant for small results
// such as introspection relations and tests.
func Collect(ctx context.Context, it Iterator) ([]Row, error) {
	defer func() { _ = it.Close() }()
	var rows []Row
	for {
		r, err := it.Next(ctx)
		if errors.Is(err, io.EOF) {
			return rows, nil
		}
		if err != nil {
			return nil, err
		}
		rows = append(rows, r)
	}
}
