package sqlsource

import (
	"strings"

	sq "github.com/Masterminds/squirrel"
)

type dialect struct {
	quoteChar   string
	placeholder sq.PlaceholderFormat
}

func dialectFor(driver string) dialect {
	switch driver {
	case DriverMySQL:
		return dialect{quoteChar: "`", placeholder: sq.Question}
	case DriverPostgres:
		return dialect{quoteChar: `"`, placeholder: sq.Dollar}
	default:
		return dialect{quoteChar: `"`, placeholder: sq.Question}
	}
}

func (d dialect) builder() sq.StatementBuilderType {
	return sq.StatementBuilder.PlaceholderFormat(d.placeholder)
}

// quote quotes one identifier, doubling embedded quote characters.
func (d dialect) quote(ident string) string {
	return d.quoteChar + strings.ReplaceAll(ident, d.quoteChar, d.quoteChar+d.quoteChar) + d.quoteChar
}

// quoteTable quotes each dot-separated part of a table name.
func (d dialect) quoteTable(name string) string {
	parts := strings.Split(name, ".")
	for i, p := range parts {
		parts[i] = d.quote(p)
	}
	return strings.Join(parts, ".")
}
