// Package types bridges the SQL type taxonomy and the native value system used
// by data sources and the execution engine.
//
// SQL types form a closed enumeration (TypeName). Every conversion function
// switches exhaustively over it, so adding a type is a compile-checked change
// to this package rather than a runtime lookup table.
package types

import (
	"fmt"
	"strings"
)

// TypeName is the closed set of SQL types understood by the gateway.
type TypeName int

// SQL type names.
const (
	Null TypeName = iota
	Boolean
	TinyInt
	SmallInt
	Integer
	BigInt
	Real
	Double
	Decimal
	Varchar
	Char
	Varbinary
	Date
	Time
	Timestamp
	TimestampLocalTZ
	TimestampTZ
	IntervalDayTime
	IntervalYearMonth
	Any

	typeNameCount
)

var typeNames = [typeNameCount]string{
	Null:              "NULL",
	Boolean:           "BOOLEAN",
	TinyInt:           "TINYINT",
	SmallInt:          "SMALLINT",
	Integer:           "INTEGER",
	BigInt:            "BIGINT",
	Real:              "FLOAT",
	Double:            "DOUBLE",
	Decimal:           "DECIMAL",
	Varchar:           "VARCHAR",
	Char:              "CHAR",
	Varbinary:         "VARBINARY",
	Date:              "DATE",
	Time:              "TIME",
	Timestamp:         "TIMESTAMP",
	TimestampLocalTZ:  "TIMESTAMP_WITH_LOCAL_TIME_ZONE",
	TimestampTZ:       "TIMESTAMP_WITH_TIME_ZONE",
	IntervalDayTime:   "INTERVAL_DAY_TIME",
	IntervalYearMonth: "INTERVAL_YEAR_MONTH",
	Any:               "ANY",
}

// String returns the canonical upper-case SQL name.
func (n TypeName) String() string {
	if n < 0 || n >= typeNameCount {
		return fmt.Sprintf("TypeName(%d)", int(n))
	}
	return typeNames[n]
}

// Valid reports whether n is a member of the enumeration.
func (n TypeName) Valid() bool {
	return n >= 0 && n < typeNameCount
}

// IsInteger reports whether n is one of the exact integer types.
func (n TypeName) IsInteger() bool {
	switch n {
	case TinyInt, SmallInt, Integer, BigInt:
		return true
	default:
		return false
	}
}

// IsNumeric reports whether n is an integer, floating or decimal type.
func (n TypeName) IsNumeric() bool {
	return n.IsInteger() || n == Real || n == Double || n == Decimal
}

// SQLType is a fully described SQL type.
type SQLType struct {
	Name TypeName

	// Nullable is true when values of this type may be SQL NULL.
	Nullable bool

	// Unsigned marks integer types backed by an unsigned native type. The SQL
	// taxonomy has no unsigned integers; the flag only feeds SimilarType.
	Unsigned bool

	// Precision and Scale apply to DECIMAL.
	Precision int
	Scale     int

	// Zone is the IANA zone of a TIMESTAMP_WITH_TIME_ZONE.
	Zone string
}

// Of returns a non-nullable SQLType with the given name.
func Of(name TypeName) SQLType {
	return SQLType{Name: name}
}

// NullableOf returns a nullable SQLType with the given name.
func NullableOf(name TypeName) SQLType {
	return SQLType{Name: name, Nullable: true}
}

// DecimalOf returns a DECIMAL(precision, scale) type.
func DecimalOf(precision, scale int) SQLType {
	return SQLType{Name: Decimal, Nullable: true, Precision: precision, Scale: scale}
}

// WithNullable returns a copy of t with the nullable flag set.
func (t SQLType) WithNullable(nullable bool) SQLType {
	t.Nullable = nullable
	return t
}

// String renders the type the way the planner and catalog report it.
func (t SQLType) String() string {
	if t.Name == Decimal && t.Precision > 0 {
		return fmt.Sprintf("DECIMAL(%d,%d)", t.Precision, t.Scale)
	}
	return t.Name.String()
}

// Equal compares two types ignoring nullability.
func (t SQLType) Equal(o SQLType) bool {
	return t.Name == o.Name && t.Unsigned == o.Unsigned &&
		t.Precision == o.Precision && t.Scale == o.Scale &&
		strings.EqualFold(t.Zone, o.Zone)
}

// Column describes one column of a table or a result set.
type Column struct {
	Name string
	Type SQLType
}

// Nullable reports whether the column accepts NULL.
func (c Column) Nullable() bool {
	return c.Type.Nullable
}

// ColumnNames returns the names of cols in order.
func ColumnNames(cols []Column) []string {
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}
	return names
}
