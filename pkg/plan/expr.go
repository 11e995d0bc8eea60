package plan

import (
	"fmt"
	"math"
	"strconv"

	"github.com/txn2/sqlgate/pkg/frame"
	"github.com/txn2/sqlgate/pkg/types"
)

// Expr is a scalar expression evaluated against one input row. Eval returns
// native values: integers as int64, floats as float64, booleans as bool and
// NULL as the canonical sentinel of the expression type. Column references
// return the stored value unchanged.
type Expr interface {
	Type() types.SQLType
	Eval(row frame.Row) (any, error)
	String() string
}

// Op is a binary or unary operator.
type Op int

// Operators.
const (
	OpAdd Op = iota
	OpSub
	OpMul
	OpDiv
	OpEq
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe
	OpAnd
	OpOr
	OpNot
	OpNeg
)

var opSymbols = map[Op]string{
	OpAdd: "+", OpSub: "-", OpMul: "*", OpDiv: "/",
	OpEq: "=", OpNe: "<>", OpLt: "<", OpLe: "<=", OpGt: ">", OpGe: ">=",
	OpAnd: "AND", OpOr: "OR", OpNot: "NOT", OpNeg: "-",
}

func (o Op) String() string {
	if s, ok := opSymbols[o]; ok {
		return s
	}
	return "op(" + strconv.Itoa(int(o)) + ")"
}

// IsArithmetic reports whether o is + - * or /.
func (o Op) IsArithmetic() bool { return o <= OpDiv }

// IsComparison reports whether o compares two values.
func (o Op) IsComparison() bool { return o >= OpEq && o <= OpGe }

// ColumnRef reads one column of the input row.
type ColumnRef struct {
	Index   int
	Name    string
	ColType types.SQLType
}

func (c *ColumnRef) Type() types.SQLType { return c.ColType }
func (c *ColumnRef) String() string      { return c.Name }

func (c *ColumnRef) Eval(row frame.Row) (any, error) {
	if c.Index < 0 || c.Index >= len(row) {
		return nil, fmt.Errorf("column %s: index %d out of range for row of width %d", c.Name, c.Index, len(row))
	}
	return row[c.Index], nil
}

// Literal is a constant.
type Literal struct {
	Value   any
	LitType types.SQLType
}

// NewLiteral infers the SQL type of v. Supported values are nil, bool,
// int64, float64 and string.
func NewLiteral(v any) (*Literal, error) {
	switch x := v.(type) {
	case nil:
		return &Literal{Value: types.Missing, LitType: types.NullableOf(types.Null)}, nil
	case bool:
		return &Literal{Value: x, LitType: types.Of(types.Boolean)}, nil
	case int64:
		return &Literal{Value: x, LitType: types.Of(types.BigInt)}, nil
	case float64:
		return &Literal{Value: x, LitType: types.Of(types.Double)}, nil
	case string:
		return &Literal{Value: x, LitType: types.Of(types.Varchar)}, nil
	default:
		return nil, fmt.Errorf("%w: unsupported literal %T", ErrTypeMismatch, v)
	}
}

func (l *Literal) Type() types.SQLType         { return l.LitType }
func (l *Literal) Eval(frame.Row) (any, error) { return l.Value, nil }

func (l *Literal) String() string {
	switch x := l.Value.(type) {
	case string:
		return strconv.Quote(x)
	default:
		if types.IsNull(x) {
			return "NULL"
		}
		return fmt.Sprint(x)
	}
}

// Unary applies NOT or arithmetic negation.
type Unary struct {
	Op Op
	X  Expr
}

// NewUnary type-checks a unary expression.
func NewUnary(op Op, x Expr) (*Unary, error) {
	t := x.Type()
	switch op {
	case OpNot:
		if t.Name != types.Boolean && t.Name != types.Null {
			return nil, fmt.Errorf("%w: NOT requires BOOLEAN, got %s", ErrTypeMismatch, t)
		}
	case OpNeg:
		if !t.Name.IsNumeric() && t.Name != types.Null {
			return nil, fmt.Errorf("%w: cannot negate %s", ErrTypeMismatch, t)
		}
	default:
		return nil, fmt.Errorf("%w: %s is not a unary operator", ErrTypeMismatch, op)
	}
	return &Unary{Op: op, X: x}, nil
}

func (u *Unary) Type() types.SQLType {
	t := u.X.Type()
	if u.Op == OpNot {
		return types.SQLType{Name: types.Boolean, Nullable: t.Nullable || t.Name == types.Null}
	}
	if t.Name.IsInteger() {
		return types.SQLType{Name: types.BigInt, Nullable: t.Nullable}
	}
	if t.Name == types.Null {
		return types.NullableOf(types.BigInt)
	}
	return types.SQLType{Name: types.Double, Nullable: t.Nullable}
}

func (u *Unary) String() string {
	if u.Op == OpNot {
		return "(NOT " + u.X.String() + ")"
	}
	return "(-" + u.X.String() + ")"
}

func (u *Unary) Eval(row frame.Row) (any, error) {
	v, err := u.X.Eval(row)
	if err != nil {
		return nil, err
	}
	if types.IsNull(v) {
		return nullOf(u.Type()), nil
	}
	if u.Op == OpNot {
		b, ok := v.(bool)
		if !ok {
			return nil, fmt.Errorf("%w: NOT applied to %T", ErrTypeMismatch, v)
		}
		return !b, nil
	}
	n, ok := toNumber(v)
	if !ok {
		return nil, fmt.Errorf("%w: cannot negate %T", ErrTypeMismatch, v)
	}
	if n.isInt {
		if n.i == math.MinInt64 {
			return nil, fmt.Errorf("%w: -(%d)", ErrOverflow, n.i)
		}
		return -n.i, nil
	}
	return -n.f, nil
}

// Binary applies an arithmetic, comparison or logical operator.
type Binary struct {
	Op          Op
	Left, Right Expr

	resultType types.SQLType
}

// NewBinary type-checks a binary expression. Operands of arithmetic and
// comparison operators must be similar types; logical operators require
// BOOLEAN operands.
func NewBinary(op Op, left, right Expr) (*Binary, error) {
	lt, rt := left.Type(), right.Type()
	nullable := lt.Nullable || rt.Nullable || lt.Name == types.Null || rt.Name == types.Null

	var result types.SQLType
	switch {
	case op.IsArithmetic():
		if !numericOrNull(lt) || !numericOrNull(rt) {
			return nil, fmt.Errorf("%w: cannot apply %s to %s and %s", ErrTypeMismatch, op, lt, rt)
		}
		if !similar(left, right) {
			return nil, fmt.Errorf("%w: %s and %s are not compatible for %s", ErrTypeMismatch, lt, rt, op)
		}
		name := types.Double
		if integerOrNull(lt) && integerOrNull(rt) {
			name = types.BigInt
		}
		result = types.SQLType{Name: name, Nullable: nullable}
	case op.IsComparison():
		if !similar(left, right) {
			return nil, fmt.Errorf("%w: cannot compare %s with %s", ErrTypeMismatch, lt, rt)
		}
		result = types.SQLType{Name: types.Boolean, Nullable: nullable}
	case op == OpAnd || op == OpOr:
		if !boolOrNull(lt) || !boolOrNull(rt) {
			return nil, fmt.Errorf("%w: %s requires BOOLEAN operands, got %s and %s", ErrTypeMismatch, op, lt, rt)
		}
		result = types.SQLType{Name: types.Boolean, Nullable: nullable}
	default:
		return nil, fmt.Errorf("%w: %s is not a binary operator", ErrTypeMismatch, op)
	}
	return &Binary{Op: op, Left: left, Right: right, resultType: result}, nil
}

func (b *Binary) Type() types.SQLType { return b.resultType }

func (b *Binary) String() string {
	return "(" + b.Left.String() + " " + b.Op.String() + " " + b.Right.String() + ")"
}

func (b *Binary) Eval(row frame.Row) (any, error) {
	l, err := b.Left.Eval(row)
	if err != nil {
		return nil, err
	}

	if b.Op == OpAnd || b.Op == OpOr {
		return b.evalLogical(row, l)
	}

	r, err := b.Right.Eval(row)
	if err != nil {
		return nil, err
	}
	if types.IsNull(l) || types.IsNull(r) {
		return nullOf(b.resultType), nil
	}

	if b.Op.IsComparison() {
		c, err := Compare(l, r)
		if err != nil {
			return nil, err
		}
		switch b.Op {
		case OpEq:
			return c == 0, nil
		case OpNe:
			return c != 0, nil
		case OpLt:
			return c < 0, nil
		case OpLe:
			return c <= 0, nil
		case OpGt:
			return c > 0, nil
		default:
			return c >= 0, nil
		}
	}
	return arithmetic(b.Op, l, r, b.resultType.Name == types.BigInt)
}

// evalLogical implements three-valued AND/OR with short circuit.
func (b *Binary) evalLogical(row frame.Row, l any) (any, error) {
	lb, lnull, err := asBool(l)
	if err != nil {
		return nil, err
	}
	if !lnull && ((b.Op == OpAnd && !lb) || (b.Op == OpOr && lb)) {
		return lb, nil
	}
	r, err := b.Right.Eval(row)
	if err != nil {
		return nil, err
	}
	rb, rnull, err := asBool(r)
	if err != nil {
		return nil, err
	}
	if !rnull && ((b.Op == OpAnd && !rb) || (b.Op == OpOr && rb)) {
		return rb, nil
	}
	if lnull || rnull {
		return types.NA, nil
	}
	return rb, nil
}

// IsNull tests for NULL. It never returns NULL itself.
type IsNull struct {
	X   Expr
	Not bool
}

func (n *IsNull) Type() types.SQLType { return types.Of(types.Boolean) }

func (n *IsNull) String() string {
	if n.Not {
		return "(" + n.X.String() + " IS NOT NULL)"
	}
	return "(" + n.X.String() + " IS NULL)"
}

func (n *IsNull) Eval(row frame.Row) (any, error) {
	v, err := n.X.Eval(row)
	if err != nil {
		return nil, err
	}
	return types.IsNull(v) != n.Not, nil
}

// Truthy reports whether a predicate result keeps a row.
func Truthy(v any) bool {
	b, ok := v.(bool)
	return ok && b
}

func nullOf(t types.SQLType) any {
	n, err := types.ToNativeType(t)
	if err != nil {
		return types.Missing
	}
	return types.NullFor(n)
}

func asBool(v any) (b, isNull bool, err error) {
	if types.IsNull(v) {
		return false, true, nil
	}
	b, ok := v.(bool)
	if !ok {
		return false, false, fmt.Errorf("%w: expected BOOLEAN, got %T", ErrTypeMismatch, v)
	}
	return b, false, nil
}

func numericOrNull(t types.SQLType) bool { return t.Name.IsNumeric() || t.Name == types.Null }
func integerOrNull(t types.SQLType) bool { return t.Name.IsInteger() || t.Name == types.Null }
func boolOrNull(t types.SQLType) bool    { return t.Name == types.Boolean || t.Name == types.Null }

// similar extends types.SimilarSQLType with untyped integer literals, which
// may be compared with unsigned columns.
func similar(l, r Expr) bool {
	lt, rt := l.Type(), r.Type()
	if (isIntLiteral(l) && rt.Name.IsInteger()) || (isIntLiteral(r) && lt.Name.IsInteger()) {
		return true
	}
	return types.SimilarSQLType(lt, rt)
}

func isIntLiteral(e Expr) bool {
	lit, ok := e.(*Literal)
	if !ok {
		return false
	}
	i, ok := lit.Value.(int64)
	return ok && i >= 0
}

func arithmetic(op Op, l, r any, integer bool) (any, error) {
	ln, lok := toNumber(l)
	rn, rok := toNumber(r)
	if !lok || !rok {
		return nil, fmt.Errorf("%w: cannot apply %s to %T and %T", ErrTypeMismatch, op, l, r)
	}
	if integer && ln.isInt && rn.isInt {
		return intArithmetic(op, ln.i, rn.i)
	}
	a, b := ln.float(), rn.float()
	switch op {
	case OpAdd:
		return a + b, nil
	case OpSub:
		return a - b, nil
	case OpMul:
		return a * b, nil
	default:
		if b == 0 {
			return nil, ErrDivisionByZero
		}
		res := a / b
		if math.IsNaN(res) {
			return nil, fmt.Errorf("%w: %v / %v", ErrTypeMismatch, a, b)
		}
		return res, nil
	}
}

// intArithmetic applies op to two BIGINT values, failing instead of wrapping.
func intArithmetic(op Op, a, b int64) (any, error) {
	var overflow bool
	var res int64
	switch op {
	case OpAdd:
		res = a + b
		overflow = (b > 0 && a > math.MaxInt64-b) || (b < 0 && a < math.MinInt64-b)
	case OpSub:
		res = a - b
		overflow = (b < 0 && a > math.MaxInt64+b) || (b > 0 && a < math.MinInt64+b)
	case OpMul:
		res = a * b
		overflow = a != 0 && (res/a != b || (a == -1 && b == math.MinInt64) || (b == -1 && a == math.MinInt64))
	default:
		if b == 0 {
			return nil, ErrDivisionByZero
		}
		if a == math.MinInt64 && b == -1 {
			overflow = true
			break
		}
		res = a / b
	}
	if overflow {
		return nil, fmt.Errorf("%w: %d %s %d", ErrOverflow, a, op, b)
	}
	return res, nil
}
