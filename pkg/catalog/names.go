package catalog

import (
	"fmt"
	"strings"
)

// Name is a parsed table reference.
type Name struct {
	// Schema is empty for bare names; the resolver substitutes the current
	// schema.
	Schema string
	Table  string
}

// String renders the name in canonical form.
func (n Name) String() string {
	if n.Schema == "" {
		return n.Table
	}
	return n.Schema + "." + n.Table
}

// Canonical folds an identifier to the single case used for storage and
// lookup.
func Canonical(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// ParseName parses a bare, schema-qualified or catalog-qualified table
// reference. Double-quoted identifiers may contain dots. The three-part form
// "system.<x>.<table>" addresses the built-in "system_<x>" schema; any other
// leading catalog component is ignored because a gateway serves one catalog.
func ParseName(s string) (Name, error) {
	parts, err := splitIdentifier(s)
	if err != nil {
		return Name{}, err
	}
	return NameFromParts(parts)
}

// NameFromParts builds a Name from already split identifier parts.
func NameFromParts(parts []string) (Name, error) {
	for _, p := range parts {
		if strings.TrimSpace(p) == "" {
			return Name{}, fmt.Errorf("%w: empty identifier in %q", ErrInvalidName, strings.Join(parts, "."))
		}
	}
	switch len(parts) {
	case 1:
		return Name{Table: Canonical(parts[0])}, nil
	case 2:
		return Name{Schema: Canonical(parts[0]), Table: Canonical(parts[1])}, nil
	case 3:
		schema := Canonical(parts[1])
		if Canonical(parts[0]) == "system" {
			schema = "system_" + schema
		}
		return Name{Schema: schema, Table: Canonical(parts[2])}, nil
	default:
		return Name{}, fmt.Errorf("%w: %q has %d parts", ErrInvalidName, strings.Join(parts, "."), len(parts))
	}
}

func splitIdentifier(s string) ([]string, error) {
	var (
		parts  []string
		cur    strings.Builder
		quoted bool
	)
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '"' && quoted && i+1 < len(s) && s[i+1] == '"':
			cur.WriteByte('"')
			i++
		case c == '"':
			quoted = !quoted
		case c == '.' && !quoted:
			parts = append(parts, cur.String())
			cur.Reset()
		default:
			cur.WriteByte(c)
		}
	}
	if quoted {
		return nil, fmt.Errorf("%w: unterminated quote in %q", ErrInvalidName, s)
	}
	return append(parts, cur.String()), nil
}
