// Package planner is the default plan.Planner: a participle grammar for a
// small SELECT subset and a binder that resolves names and checks operand
// types with types.SimilarType.
package planner

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/txn2/sqlgate/pkg/frame"
	"github.com/txn2/sqlgate/pkg/plan"
	"github.com/txn2/sqlgate/pkg/types"
)

// ExplainColumn is the single column returned by EXPLAIN.
const ExplainColumn = "Query Plan"

// Planner implements plan.Planner.
type Planner struct{}

// New returns the default planner.
func New() *Planner {
	return &Planner{}
}

// Plan parses sql and binds it against r.
func (p *Planner) Plan(ctx context.Context, sql string, r plan.Resolver) (*plan.Plan, error) {
	stmt, err := Parse(sql)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", plan.ErrSyntax, err.Error())
	}

	root, err := bindSelect(ctx, stmt.Select, r)
	if err != nil {
		return nil, err
	}
	out := &plan.Plan{Root: root}

	if stmt.Explain {
		return &plan.Plan{Root: &plan.Values{
			Cols: []types.Column{{Name: ExplainColumn, Type: types.Of(types.Varchar)}},
			Rows: []frame.Row{{out.Explain()}},
		}}, nil
	}
	return out, nil
}

// scope is the set of columns visible to expressions of one SELECT.
type scope struct {
	qualifiers [][]string
	columns    []types.Column
}

func (s *scope) matches(qualifier []string) bool {
	for _, q := range s.qualifiers {
		if len(qualifier) > len(q) {
			continue
		}
		tail := q[len(q)-len(qualifier):]
		ok := true
		for i := range qualifier {
			if !strings.EqualFold(tail[i], qualifier[i]) {
				ok = false
				break
			}
		}
		if ok {
			return true
		}
	}
	return false
}

func (s *scope) resolve(parts []string) (*plan.ColumnRef, error) {
	name := parts[len(parts)-1]
	full := strings.Join(parts, ".")
	if len(parts) > 1 && !s.matches(parts[:len(parts)-1]) {
		return nil, fmt.Errorf("%w: column %s", plan.ErrUnresolved, full)
	}
	for i, c := range s.columns {
		if strings.EqualFold(c.Name, name) {
			return &plan.ColumnRef{Index: i, Name: c.Name, ColType: c.Type}, nil
		}
	}
	return nil, fmt.Errorf("%w: column %s", plan.ErrUnresolved, full)
}

func bindSelect(ctx context.Context, sel *Select, r plan.Resolver) (plan.Node, error) {
	var (
		input plan.Node
		sc    = &scope{}
	)

	if sel.From != nil {
		parts := make([]string, len(sel.From.Parts))
		for i, p := range sel.From.Parts {
			parts[i] = unquoteIdent(p)
		}
		rel, err := r.ResolveTable(ctx, parts)
		if err != nil {
			return nil, err
		}
		input = &plan.Scan{Table: rel.Name, Source: rel.Source, Cols: rel.Columns}
		sc.columns = rel.Columns
		sc.qualifiers = [][]string{parts, strings.Split(rel.Name, ".")}
		if sel.From.Alias != nil {
			sc.qualifiers = append(sc.qualifiers, []string{unquoteIdent(*sel.From.Alias)})
		}
	} else {
		input = &plan.Values{Rows: []frame.Row{{}}}
	}

	if sel.Where != nil {
		pred, err := bindOr(sel.Where, sc)
		if err != nil {
			return nil, err
		}
		if t := pred.Type().Name; t != types.Boolean && t != types.Null {
			return nil, fmt.Errorf("%w: WHERE clause must be BOOLEAN, got %s", plan.ErrTypeMismatch, pred.Type())
		}
		input = &plan.Filter{Input: input, Predicate: pred}
	}

	exprs, names, err := bindItems(sel.Items, sc)
	if err != nil {
		return nil, err
	}

	if len(sel.OrderBy) > 0 {
		keys, err := bindOrder(sel.OrderBy, sc, exprs, names)
		if err != nil {
			return nil, err
		}
		input = &plan.Sort{Input: input, Keys: keys}
	}

	var root plan.Node = &plan.Project{Input: input, Exprs: exprs, Names: names}
	if sel.Distinct {
		root = &plan.Distinct{Input: root}
	}
	if sel.Limit != nil {
		if *sel.Limit < 0 {
			return nil, fmt.Errorf("%w: negative LIMIT", plan.ErrSyntax)
		}
		root = &plan.Limit{Input: root, Count: *sel.Limit}
	}
	return root, nil
}

func bindItems(items []*SelectItem, sc *scope) ([]plan.Expr, []string, error) {
	var (
		exprs []plan.Expr
		names []string
	)
	for _, item := range items {
		if item.Star {
			if len(sc.columns) == 0 {
				return nil, nil, fmt.Errorf("%w: SELECT * requires a FROM clause", plan.ErrUnresolved)
			}
			for i, c := range sc.columns {
				exprs = append(exprs, &plan.ColumnRef{Index: i, Name: c.Name, ColType: c.Type})
				names = append(names, c.Name)
			}
			continue
		}
		e, err := bindOr(item.Expr, sc)
		if err != nil {
			return nil, nil, err
		}
		name := "_col" + strconv.Itoa(len(exprs))
		switch {
		case item.Alias != nil:
			name = unquoteIdent(*item.Alias)
		default:
			if ref, ok := e.(*plan.ColumnRef); ok {
				name = ref.Name
			}
		}
		exprs = append(exprs, e)
		names = append(names, name)
	}
	return exprs, names, nil
}

// bindOrder binds ORDER BY terms against the input. A bare name matching an
// output alias and an integer ordinal both refer to a select item.
func bindOrder(items []*OrderItem, sc *scope, exprs []plan.Expr, names []string) ([]plan.SortKey, error) {
	keys := make([]plan.SortKey, 0, len(items))
	for _, item := range items {
		e, err := bindOrderExpr(item.Expr, sc, exprs, names)
		if err != nil {
			return nil, err
		}
		keys = append(keys, plan.SortKey{Expr: e, Desc: item.Desc})
	}
	return keys, nil
}

func bindOrderExpr(x *OrExpr, sc *scope, exprs []plan.Expr, names []string) (plan.Expr, error) {
	if prim := primaryOf(x); prim != nil {
		switch {
		case prim.Int != nil:
			n := *prim.Int
			if n < 1 || n > int64(len(exprs)) {
				return nil, fmt.Errorf("%w: ORDER BY position %d is not in select list", plan.ErrUnresolved, n)
			}
			return exprs[n-1], nil
		case len(prim.Column) == 1:
			name := unquoteIdent(prim.Column[0])
			for i, n := range names {
				if strings.EqualFold(n, name) {
					return exprs[i], nil
				}
			}
		}
	}
	return bindOr(x, sc)
}

// primaryOf returns the primary of an expression that is nothing but a
// primary, or nil.
func primaryOf(x *OrExpr) *Primary {
	if len(x.Right) > 0 || len(x.Left.Right) > 0 {
		return nil
	}
	n := x.Left.Left
	if n.Predicate == nil || n.Predicate.Cmp != nil || n.Predicate.IsNull != nil {
		return nil
	}
	add := n.Predicate.Left
	if len(add.Right) > 0 || len(add.Left.Right) > 0 {
		return nil
	}
	return add.Left.Left.Primary
}

func bindOr(x *OrExpr, sc *scope) (plan.Expr, error) {
	left, err := bindAnd(x.Left, sc)
	if err != nil {
		return nil, err
	}
	for _, r := range x.Right {
		right, err := bindAnd(r, sc)
		if err != nil {
			return nil, err
		}
		if left, err = plan.NewBinary(plan.OpOr, left, right); err != nil {
			return nil, err
		}
	}
	return left, nil
}

func bindAnd(x *AndExpr, sc *scope) (plan.Expr, error) {
	left, err := bindNot(x.Left, sc)
	if err != nil {
		return nil, err
	}
	for _, r := range x.Right {
		right, err := bindNot(r, sc)
		if err != nil {
			return nil, err
		}
		if left, err = plan.NewBinary(plan.OpAnd, left, right); err != nil {
			return nil, err
		}
	}
	return left, nil
}

func bindNot(x *NotExpr, sc *scope) (plan.Expr, error) {
	if x.Not != nil {
		inner, err := bindNot(x.Not, sc)
		if err != nil {
			return nil, err
		}
		return plan.NewUnary(plan.OpNot, inner)
	}
	return bindPredicate(x.Predicate, sc)
}

var comparisonOps = map[string]plan.Op{
	"=": plan.OpEq, "<>": plan.OpNe, "!=": plan.OpNe,
	"<": plan.OpLt, "<=": plan.OpLe, ">": plan.OpGt, ">=": plan.OpGe,
}

func bindPredicate(x *Predicate, sc *scope) (plan.Expr, error) {
	left, err := bindAdditive(x.Left, sc)
	if err != nil {
		return nil, err
	}
	switch {
	case x.Cmp != nil:
		right, err := bindAdditive(x.Cmp.Right, sc)
		if err != nil {
			return nil, err
		}
		return plan.NewBinary(comparisonOps[x.Cmp.Op], left, right)
	case x.IsNull != nil:
		return &plan.IsNull{X: left, Not: x.IsNull.Not}, nil
	default:
		return left, nil
	}
}

func bindAdditive(x *Additive, sc *scope) (plan.Expr, error) {
	left, err := bindMultiplicative(x.Left, sc)
	if err != nil {
		return nil, err
	}
	for _, term := range x.Right {
		right, err := bindMultiplicative(term.Right, sc)
		if err != nil {
			return nil, err
		}
		op := plan.OpAdd
		if term.Op == "-" {
			op = plan.OpSub
		}
		if left, err = plan.NewBinary(op, left, right); err != nil {
			return nil, err
		}
	}
	return left, nil
}

func bindMultiplicative(x *Multiplicative, sc *scope) (plan.Expr, error) {
	left, err := bindUnary(x.Left, sc)
	if err != nil {
		return nil, err
	}
	for _, factor := range x.Right {
		right, err := bindUnary(factor.Right, sc)
		if err != nil {
			return nil, err
		}
		op := plan.OpMul
		if factor.Op == "/" {
			op = plan.OpDiv
		}
		if left, err = plan.NewBinary(op, left, right); err != nil {
			return nil, err
		}
	}
	return left, nil
}

func bindUnary(x *Unary, sc *scope) (plan.Expr, error) {
	if x.Neg != nil {
		inner, err := bindUnary(x.Neg, sc)
		if err != nil {
			return nil, err
		}
		return plan.NewUnary(plan.OpNeg, inner)
	}
	return bindPrimary(x.Primary, sc)
}

func bindPrimary(x *Primary, sc *scope) (plan.Expr, error) {
	switch {
	case x.Float != nil:
		return plan.NewLiteral(*x.Float)
	case x.Int != nil:
		return plan.NewLiteral(*x.Int)
	case x.String != nil:
		return plan.NewLiteral(unquoteString(*x.String))
	case x.True:
		return plan.NewLiteral(true)
	case x.False:
		return plan.NewLiteral(false)
	case x.Null:
		return plan.NewLiteral(nil)
	case len(x.Column) > 0:
		parts := make([]string, len(x.Column))
		for i, p := range x.Column {
			parts[i] = unquoteIdent(p)
		}
		return sc.resolve(parts)
	case x.Sub != nil:
		return bindOr(x.Sub, sc)
	default:
		return nil, fmt.Errorf("%w: empty expression", plan.ErrSyntax)
	}
}
