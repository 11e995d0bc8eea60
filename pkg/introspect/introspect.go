// Package introspect synthesizes the JDBC metadata relations of the
// reserved system_jdbc schema from live catalog state.
//
// Relations are rebuilt on every scan and never cached, so a query always
// observes the catalog as of the moment its scan started.
package introspect

import (
	"context"

	"github.com/txn2/sqlgate/pkg/catalog"
	"github.com/txn2/sqlgate/pkg/frame"
	"github.com/txn2/sqlgate/pkg/types"
)

// Relation names inside catalog.SystemSchema.
const (
	SchemasTable = "schemas"
	TablesTable  = "tables"
	ColumnsTable = "columns"
)

// Relations lists the virtual tables in the order they are reported.
var Relations = []string{SchemasTable, TablesTable, ColumnsTable}

func varchar(name string) types.Column {
	return types.Column{Name: name, Type: types.NullableOf(types.Varchar)}
}

func integer(name string) types.Column {
	return types.Column{Name: name, Type: types.NullableOf(types.BigInt)}
}

// SchemasColumns is the shape of system_jdbc.schemas.
var SchemasColumns = []types.Column{
	varchar("TABLE_CATALOG"),
	varchar("TABLE_SCHEM"),
}

// TablesColumns is the shape of system_jdbc.tables.
var TablesColumns = []types.Column{
	varchar("TABLE_CAT"),
	varchar("TABLE_SCHEM"),
	varchar("TABLE_NAME"),
	varchar("TABLE_TYPE"),
	varchar("REMARKS"),
	varchar("TYPE_CAT"),
	varchar("TYPE_SCHEM"),
	varchar("TYPE_NAME"),
	varchar("SELF_REFERENCING_COL_NAME"),
	varchar("REF_GENERATION"),
}

// ColumnsColumns is the shape of system_jdbc.columns, the 24 columns of
// JDBC DatabaseMetaData.getColumns.
var ColumnsColumns = []types.Column{
	varchar("TABLE_CAT"),
	varchar("TABLE_SCHEM"),
	varchar("TABLE_NAME"),
	varchar("COLUMN_NAME"),
	integer("DATA_TYPE"),
	varchar("TYPE_NAME"),
	integer("COLUMN_SIZE"),
	integer("BUFFER_LENGTH"),
	integer("DECIMAL_DIGITS"),
	integer("NUM_PREC_RADIX"),
	integer("NULLABLE"),
	varchar("REMARKS"),
	varchar("COLUMN_DEF"),
	integer("SQL_DATA_TYPE"),
	integer("SQL_DATETIME_SUB"),
	integer("CHAR_OCTET_LENGTH"),
	integer("ORDINAL_POSITION"),
	varchar("IS_NULLABLE"),
	varchar("SCOPE_CATALOG"),
	varchar("SCOPE_SCHEMA"),
	varchar("SCOPE_TABLE"),
	integer("SOURCE_DATA_TYPE"),
	varchar("IS_AUTOINCREMENT"),
	varchar("IS_GENERATEDCOLUMN"),
}

// JDBC nullability codes.
const (
	columnNoNulls  = 0
	columnNullable = 1
)

// Synthesizer builds the introspection relations of one catalog.
type Synthesizer struct {
	cat *catalog.Catalog
}

// New returns a Synthesizer reading from cat.
func New(cat *catalog.Catalog) *Synthesizer {
	return &Synthesizer{cat: cat}
}

// Lookup returns the virtual relation with the given name, matched
// case-insensitively.
func (s *Synthesizer) Lookup(table string) (frame.Source, bool) {
	switch catalog.Canonical(table) {
	case SchemasTable:
		return &relation{columns: SchemasColumns, rows: s.schemaRows}, true
	case TablesTable:
		return &relation{columns: TablesColumns, rows: s.tableRows}, true
	case ColumnsTable:
		return &relation{columns: ColumnsColumns, rows: s.columnRows}, true
	default:
		return nil, false
	}
}

func (s *Synthesizer) schemaRows() []frame.Row {
	schemas := append(s.cat.Schemas(), catalog.SystemSchema)
	rows := make([]frame.Row, len(schemas))
	for i, name := range schemas {
		rows[i] = frame.Row{s.cat.Name(), name}
	}
	return rows
}

func (s *Synthesizer) tableRows() []frame.Row {
	var rows []frame.Row
	emit := func(schema, table string) {
		rows = append(rows, frame.Row{s.cat.Name(), schema, table, "", "", "", "", "", "", ""})
	}
	for _, schema := range s.cat.Schemas() {
		tables, err := s.cat.Tables(schema)
		if err != nil {
			// dropped between listing and reading
			continue
		}
		for _, t := range tables {
			emit(t.Schema, t.Name)
		}
	}
	for _, name := range Relations {
		emit(catalog.SystemSchema, name)
	}
	return rows
}

func (s *Synthesizer) columnRows() []frame.Row {
	var rows []frame.Row
	emit := func(schema, table string, cols []types.Column) {
		for i, c := range cols {
			rows = append(rows, s.columnRow(schema, table, i, c))
		}
	}
	for _, schema := range s.cat.Schemas() {
		tables, err := s.cat.Tables(schema)
		if err != nil {
			continue
		}
		for _, t := range tables {
			emit(t.Schema, t.Name, t.Columns())
		}
	}
	emit(catalog.SystemSchema, SchemasTable, SchemasColumns)
	emit(catalog.SystemSchema, TablesTable, TablesColumns)
	emit(catalog.SystemSchema, ColumnsTable, ColumnsColumns)
	return rows
}

func (s *Synthesizer) columnRow(schema, table string, idx int, c types.Column) frame.Row {
	nullable, isNullable := int64(columnNoNulls), "NO"
	if c.Nullable() {
		nullable, isNullable = columnNullable, "YES"
	}

	var digits, radix any
	switch {
	case c.Type.Name == types.Decimal:
		digits, radix = int64(c.Type.Scale), int64(10)
	case c.Type.Name.IsNumeric():
		radix = int64(10)
	}

	var octets any
	if c.Type.Name == types.Varchar || c.Type.Name == types.Char {
		octets = int64(types.ColumnSize(c.Type))
	}

	jdbc := int64(types.JDBCType(c.Type))
	return frame.Row{
		s.cat.Name(),
		schema,
		table,
		c.Name,
		jdbc,
		c.Type.String(),
		int64(types.ColumnSize(c.Type)),
		nil,
		digits,
		radix,
		nullable,
		"",
		nil,
		jdbc,
		nil,
		octets,
		int64(idx + 1),
		isNullable,
		nil,
		nil,
		nil,
		nil,
		"NO",
		"NO",
	}
}

// relation is a frame.Source whose rows are produced at scan time.
type relation struct {
	columns []types.Column
	rows    func() []frame.Row
}

func (r *relation) Columns() []types.Column {
	cols := make([]types.Column, len(r.columns))
	copy(cols, r.columns)
	return cols
}

func (r *relation) Scan(ctx context.Context) (frame.Iterator, error) {
	m, err := frame.NewMemory(r.columns, r.rows())
	if err != nil {
		return nil, err
	}
	return m.Scan(ctx)
}
