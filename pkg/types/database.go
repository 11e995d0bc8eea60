package types

import "strings"

// FromDatabaseType maps a database/sql driver's DatabaseTypeName (for
// example "INT4", "UNSIGNED BIGINT", "TIMESTAMPTZ", "NVARCHAR") to an SQL
// type. Unknown or empty names map to a nullable ANY so values pass through
// unchanged.
func FromDatabaseType(name string) SQLType {
	n := strings.ToLower(strings.TrimSpace(name))
	unsigned := false
	if rest, ok := strings.CutPrefix(n, "unsigned "); ok {
		n, unsigned = rest, true
	}
	if n == "" {
		return NullableOf(Any)
	}
	t, err := ParseTypeName(n)
	if err != nil {
		return NullableOf(Any)
	}
	if unsigned && t.Name.IsInteger() {
		t.Unsigned = true
	}
	return t
}
