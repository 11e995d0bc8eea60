package planner

import (
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

// sqlLexer tokenizes the supported SELECT subset. Keywords are matched
// case-insensitively and take precedence over identifiers.
var sqlLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Comment", Pattern: `--[^\n]*`},
	{Name: "Whitespace", Pattern: `\s+`},

	{Name: "Keyword", Pattern: `(?i:\b(?:SELECT|DISTINCT|ALL|FROM|AS|WHERE|ORDER|BY|ASC|DESC|LIMIT|AND|OR|NOT|IS|NULL|TRUE|FALSE|EXPLAIN)\b)`},

	{Name: "QuotedIdent", Pattern: `"(?:""|[^"])*"`},
	{Name: "String", Pattern: `'(?:''|[^'])*'`},
	{Name: "Float", Pattern: `\d+\.\d*(?:[eE][+-]?\d+)?|\.\d+(?:[eE][+-]?\d+)?|\d+[eE][+-]?\d+`},
	{Name: "Int", Pattern: `\d+`},
	{Name: "Ident", Pattern: `[a-zA-Z_][a-zA-Z0-9_$]*`},

	{Name: "Operator", Pattern: `<>|!=|<=|>=|[-+*/=<>(),.;]`},
})

// Statement is the root of the parse tree.
type Statement struct {
	Explain bool    `@"EXPLAIN"?`
	Select  *Select `@@ ";"?`
}

// Select is a single SELECT query.
type Select struct {
	Distinct bool          `"SELECT" ( @"DISTINCT" | "ALL" )?`
	Items    []*SelectItem `@@ ( "," @@ )*`
	From     *TableRef     `( "FROM" @@ )?`
	Where    *OrExpr       `( "WHERE" @@ )?`
	OrderBy  []*OrderItem  `( "ORDER" "BY" @@ ( "," @@ )* )?`
	Limit    *int64        `( "LIMIT" @Int )?`
}

// SelectItem is "*" or an expression with an optional alias.
type SelectItem struct {
	Star  bool    `(  @"*"`
	Expr  *OrExpr ` | @@ )`
	Alias *string `( "AS"? @( Ident | QuotedIdent ) )?`
}

// TableRef is a possibly qualified table name with an optional alias.
type TableRef struct {
	Parts []string `@( Ident | QuotedIdent ) ( "." @( Ident | QuotedIdent ) )*`
	Alias *string  `( "AS"? @( Ident | QuotedIdent ) )?`
}

// OrderItem is one ORDER BY term.
type OrderItem struct {
	Expr *OrExpr `@@`
	Desc bool    `( @"DESC" | "ASC" )?`
}

// OrExpr is the lowest precedence level.
type OrExpr struct {
	Left  *AndExpr   `@@`
	Right []*AndExpr `( "OR" @@ )*`
}

// AndExpr binds tighter than OR.
type AndExpr struct {
	Left  *NotExpr   `@@`
	Right []*NotExpr `( "AND" @@ )*`
}

// NotExpr is an optional NOT prefix.
type NotExpr struct {
	Not       *NotExpr   `  "NOT" @@`
	Predicate *Predicate `| @@`
}

// Predicate is a comparison or a NULL test.
type Predicate struct {
	Left   *Additive   `@@`
	Cmp    *Comparison `( @@`
	IsNull *NullTest   `| @@ )?`
}

// Comparison is the right-hand side of a comparison.
type Comparison struct {
	Op    string    `@( "<>" | "!=" | "<=" | ">=" | "=" | "<" | ">" )`
	Right *Additive `@@`
}

// NullTest is IS [NOT] NULL.
type NullTest struct {
	Not bool `"IS" @"NOT"? "NULL"`
}

// Additive is a chain of + and -.
type Additive struct {
	Left  *Multiplicative `@@`
	Right []*AddOp        `@@*`
}

// AddOp is one + or - term.
type AddOp struct {
	Op    string          `@( "+" | "-" )`
	Right *Multiplicative `@@`
}

// Multiplicative is a chain of * and /.
type Multiplicative struct {
	Left  *Unary   `@@`
	Right []*MulOp `@@*`
}

// MulOp is one * or / factor.
type MulOp struct {
	Op    string `@( "*" | "/" )`
	Right *Unary `@@`
}

// Unary is an optional arithmetic negation.
type Unary struct {
	Neg     *Unary   `  "-" @@`
	Primary *Primary `| @@`
}

// Primary is a literal, a column reference or a parenthesized expression.
type Primary struct {
	Float  *float64 `  @Float`
	Int    *int64   `| @Int`
	String *string  `| @String`
	True   bool     `| @"TRUE"`
	False  bool     `| @"FALSE"`
	Null   bool     `| @"NULL"`
	Column []string `| @( Ident | QuotedIdent ) ( "." @( Ident | QuotedIdent ) )*`
	Sub    *OrExpr  `| "(" @@ ")"`
}

var parser = participle.MustBuild[Statement](
	participle.Lexer(sqlLexer),
	participle.Elide("Whitespace", "Comment"),
	participle.CaseInsensitive("Keyword"),
	participle.UseLookahead(4),
)

// Parse parses one SQL statement.
func Parse(sql string) (*Statement, error) {
	return parser.ParseString("", sql)
}

// unquoteIdent strips double quotes and collapses doubled quotes.
func unquoteIdent(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return strings.ReplaceAll(s[1:len(s)-1], `""`, `"`)
	}
	return s
}

// unquoteString strips single quotes and collapses doubled quotes.
func unquoteString(s string) string {
	if len(s) >= 2 && s[0] == '\'' && s[len(s)-1] == '\'' {
		return strings.ReplaceAll(s[1:len(s)-1], `''`, `'`)
	}
	return s
}
