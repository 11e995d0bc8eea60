package plan

import (
	"context"

	"github.com/txn2/sqlgate/pkg/frame"
	"github.com/txn2/sqlgate/pkg/types"
)

// Relation is a resolved table reference handed to a planner.
type Relation struct {
	// Name is the canonical "schema.table" name.
	Name    string
	Source  frame.Source
	Columns []types.Column
}

// Resolver looks up table references for a planner. parts holds the dotted
// identifier components as written. Failures wrap ErrUnresolved.
type Resolver interface {
	ResolveTable(ctx context.Context, parts []string) (*Relation, error)
}

// Planner turns SQL text into a logical plan. Implementations must not
// execute anything.
type Planner interface {
	Plan(ctx context.Context, sql string, r Resolver) (*Plan, error)
}
