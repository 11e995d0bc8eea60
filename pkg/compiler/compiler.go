// Package compiler turns SQL text into an unexecuted Computation. It resolves
// table references through the catalog and the introspection synthesizer and
// delegates grammar and plan construction to a plan.Planner.
package compiler

import (
	"context"
	"errors"
	"fmt"

	"github.com/txn2/sqlgate/pkg/catalog"
	"github.com/txn2/sqlgate/pkg/introspect"
	"github.com/txn2/sqlgate/pkg/plan"
	"github.com/txn2/sqlgate/pkg/planner"
	"github.com/txn2/sqlgate/pkg/types"
)

// Computation is a compiled, not yet executed query.
type Computation struct {
	SQL     string
	Plan    *plan.Plan
	Columns []types.Column
}

// Options are per-statement compile settings.
type Options struct {
	// Schema is the session default schema for bare table names. Empty
	// means the catalog's current schema.
	Schema string
}

// Compiler compiles SQL against one catalog. It never mutates the catalog
// and never executes anything.
type Compiler struct {
	cat     *catalog.Catalog
	intro   *introspect.Synthesizer
	planner plan.Planner
}

// Option configures a Compiler.
type Option func(*Compiler)

// WithPlanner replaces the default planner.
func WithPlanner(p plan.Planner) Option {
	return func(c *Compiler) { c.planner = p }
}

// New returns a Compiler for cat using the default planner.
func New(cat *catalog.Catalog, opts ...Option) *Compiler {
	c := &Compiler{
		cat:     cat,
		intro:   introspect.New(cat),
		planner: planner.New(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Compile parses, resolves and type-checks sql. Failures are *Error.
func (c *Compiler) Compile(ctx context.Context, sql string, opts Options) (*Computation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, err := c.planner.Plan(ctx, sql, &resolver{c: c, schema: opts.Schema})
	if err != nil {
		return nil, classify(err)
	}
	return &Computation{SQL: sql, Plan: p, Columns: p.Columns()}, nil
}

type resolver struct {
	c      *Compiler
	schema string
}

func (r *resolver) ResolveTable(_ context.Context, parts []string) (*plan.Relation, error) {
	n, err := catalog.NameFromParts(parts)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", plan.ErrUnresolved, err)
	}

	schema := n.Schema
	if schema == "" {
		schema = catalog.Canonical(r.schema)
	}
	if schema == catalog.SystemSchema {
		src, ok := r.c.intro.Lookup(n.Table)
		if !ok {
			return nil, fmt.Errorf("%w: table %s.%s", plan.ErrUnresolved, catalog.SystemSchema, n.Table)
		}
		return &plan.Relation{
			Name:    catalog.SystemSchema + "." + n.Table,
			Source:  src,
			Columns: src.Columns(),
		}, nil
	}

	t, err := r.c.cat.Lookup(n, r.schema)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", plan.ErrUnresolved, err)
	}
	return &plan.Relation{Name: t.QualifiedName(), Source: t.Source, Columns: t.Columns()}, nil
}

func classify(err error) error {
	switch {
	case errors.Is(err, plan.ErrSyntax):
		return &Error{Kind: ParseError, Err: err}
	case errors.Is(err, plan.ErrUnresolved):
		return &Error{Kind: UnresolvedReference, Err: err}
	case errors.Is(err, plan.ErrTypeMismatch):
		return &Error{Kind: TypeError, Err: err}
	default:
		return err
	}
}
