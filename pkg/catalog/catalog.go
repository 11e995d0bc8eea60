// Package catalog is the registry of schemas and tables and their bindings
// to externally owned data sources.
//
// Names are case-insensitive: they are folded with Canonical on every write
// and every lookup. Structural changes take the write lock; Resolve and the
// listing functions share the read lock. Tables are immutable snapshots, so
// replacing a table never disturbs readers holding the previous *Table.
package catalog

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/txn2/sqlgate/pkg/frame"
	"github.com/txn2/sqlgate/pkg/types"
)

const (
	// DefaultSchemaName is the schema that exists in every new catalog.
	DefaultSchemaName = "root"

	// SystemSchema holds the virtual introspection relations. It is never
	// stored in the catalog and cannot be created by users.
	SystemSchema = "system_jdbc"
)

// DropPolicy decides what DropSchema does with a schema that still has tables.
type DropPolicy int

// Drop policies.
const (
	// DropRestrict refuses to drop non-empty schemas.
	DropRestrict DropPolicy = iota
	// DropCascade drops the schema together with its tables.
	DropCascade
)

// ParseDropPolicy parses "restrict" or "cascade".
func ParseDropPolicy(s string) (DropPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "restrict":
		return DropRestrict, nil
	case "cascade":
		return DropCascade, nil
	default:
		return DropRestrict, fmt.Errorf("unknown drop policy %q", s)
	}
}

// Table is an immutable binding of a name to a data source.
type Table struct {
	Name   string
	Schema string
	Source frame.Source

	columns []types.Column
}

// Columns returns the column schema in creation order.
func (t *Table) Columns() []types.Column {
	cols := make([]types.Column, len(t.columns))
	copy(cols, t.columns)
	return cols
}

// QualifiedName returns "schema.table".
func (t *Table) QualifiedName() string {
	return t.Schema + "." + t.Name
}

type schema struct {
	tables map[string]*Table
	order  []string
}

func newSchema() *schema {
	return &schema{tables: make(map[string]*Table)}
}

func (s *schema) put(t *Table) {
	if _, ok := s.tables[t.Name]; !ok {
		s.order = append(s.order, t.Name)
	}
	s.tables[t.Name] = t
}

func (s *schema) remove(name string) {
	delete(s.tables, name)
	s.order = slices.DeleteFunc(s.order, func(n string) bool { return n == name })
}

// Catalog holds schemas and tables. The zero value is not usable; call New.
type Catalog struct {
	mu      sync.RWMutex
	name    string
	schemas map[string]*schema
	order   []string
	deflt   string
	current string
	policy  DropPolicy
}

// Option configures a Catalog.
type Option func(*Catalog)

// WithName sets the catalog name reported by introspection.
func WithName(name string) Option {
	return func(c *Catalog) { c.name = name }
}

// WithDefaultSchema overrides the default schema name.
func WithDefaultSchema(name string) Option {
	return func(c *Catalog) {
		if n := Canonical(name); n != "" {
			c.deflt = n
		}
	}
}

// WithDropPolicy sets the policy for dropping non-empty schemas.
func WithDropPolicy(p DropPolicy) Option {
	return func(c *Catalog) { c.policy = p }
}

// New creates a catalog containing only the default schema, which is also
// the current schema.
func New(opts ...Option) *Catalog {
	c := &Catalog{
		schemas: make(map[string]*schema),
		deflt:   DefaultSchemaName,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.schemas[c.deflt] = newSchema()
	c.order = []string{c.deflt}
	c.current = c.deflt
	return c
}

// Name returns the catalog name.
func (c *Catalog) Name() string {
	return c.name
}

// DefaultSchema returns the name of the default schema.
func (c *Catalog) DefaultSchema() string {
	return c.deflt
}

// CreateSchema adds an empty schema.
func (c *Catalog) CreateSchema(name string) error {
	n := Canonical(name)
	if n == "" {
		return schemaErr(name, ErrInvalidName)
	}
	if n == SystemSchema {
		return schemaErr(n, ErrReserved)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.schemas[n]; ok {
		return schemaErr(n, ErrAlreadyExists)
	}
	c.schemas[n] = newSchema()
	c.order = append(c.order, n)
	slog.Debug("schema created", "schema", n)
	return nil
}

// DropSchema removes a schema. The current and the default schema cannot be
// dropped; non-empty schemas are refused under DropRestrict.
func (c *Catalog) DropSchema(name string) error {
	n := Canonical(name)
	if n == SystemSchema {
		return schemaErr(n, ErrReserved)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	s, ok := c.schemas[n]
	if !ok {
		return schemaErr(n, ErrNotFound)
	}
	if n == c.current {
		return schemaErr(n, ErrCurrentSchema)
	}
	if n == c.deflt {
		return schemaErr(n, ErrDefaultSchema)
	}
	if len(s.tables) > 0 && c.policy == DropRestrict {
		return schemaErr(n, ErrNonEmptySchema)
	}
	delete(c.schemas, n)
	c.order = slices.DeleteFunc(c.order, func(s string) bool { return s == n })
	slog.Debug("schema dropped", "schema", n, "tables", len(s.tables))
	return nil
}

// HasSchema reports whether a schema exists.
func (c *Catalog) HasSchema(name string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.schemas[Canonical(name)]
	return ok
}

// CurrentSchema returns the schema used for unqualified names.
func (c *Catalog) CurrentSchema() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current
}

// SetCurrentSchema switches the schema used for unqualified names.
func (c *Catalog) SetCurrentSchema(name string) error {
	n := Canonical(name)

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.schemas[n]; !ok {
		return schemaErr(n, ErrNotFound)
	}
	c.current = n
	return nil
}

// Schemas returns the schema names in creation order.
func (c *Catalog) Schemas() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.order)
}

// CreateTable binds name in schemaName to src. When columns is nil the
// source's own column schema is used. An empty schemaName means the current
// schema. With overwrite the existing binding is replaced atomically;
// without it an existing name yields ErrAlreadyExists.
func (c *Catalog) CreateTable(schemaName, name string, src frame.Source, columns []types.Column, overwrite bool) (*Table, error) {
	tn := Canonical(name)
	if tn == "" || src == nil {
		return nil, tableErr(schemaName, name, ErrInvalidName)
	}
	if columns == nil {
		columns = src.Columns()
	}
	if err := checkColumns(src, columns); err != nil {
		return nil, tableErr(schemaName, tn, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	sn := c.schemaOrCurrent(schemaName)
	if sn == SystemSchema {
		return nil, tableErr(sn, tn, ErrReserved)
	}
	s, ok := c.schemas[sn]
	if !ok {
		return nil, schemaErr(sn, ErrNotFound)
	}
	if _, exists := s.tables[tn]; exists && !overwrite {
		return nil, tableErr(sn, tn, ErrAlreadyExists)
	}

	cols := make([]types.Column, len(columns))
	copy(cols, columns)
	t := &Table{Name: tn, Schema: sn, Source: src, columns: cols}
	s.put(t)
	slog.Debug("table registered", "schema", sn, "table", tn, "columns", len(cols), "overwrite", overwrite)
	return t, nil
}

// DropTable removes a table binding. The data source itself is untouched.
func (c *Catalog) DropTable(schemaName, name string) error {
	tn := Canonical(name)

	c.mu.Lock()
	defer c.mu.Unlock()

	sn := c.schemaOrCurrent(schemaName)
	s, ok := c.schemas[sn]
	if !ok {
		return schemaErr(sn, ErrNotFound)
	}
	if _, ok := s.tables[tn]; !ok {
		return tableErr(sn, tn, ErrNotFound)
	}
	s.remove(tn)
	return nil
}

// Resolve looks up a bare or qualified table name, falling back to the
// current schema for bare names.
func (c *Catalog) Resolve(name string) (*Table, error) {
	n, err := ParseName(name)
	if err != nil {
		return nil, err
	}
	return c.Lookup(n, "")
}

// ResolveIn is Resolve with bare names looked up in defaultSchema instead of
// the catalog's current schema.
func (c *Catalog) ResolveIn(defaultSchema, name string) (*Table, error) {
	n, err := ParseName(name)
	if err != nil {
		return nil, err
	}
	return c.Lookup(n, defaultSchema)
}

// Lookup resolves a parsed name. Bare names use defaultSchema, or the
// current schema when defaultSchema is empty.
func (c *Catalog) Lookup(n Name, defaultSchema string) (*Table, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	sn := n.Schema
	if sn == "" {
		sn = c.schemaOrCurrent(defaultSchema)
	}
	s, ok := c.schemas[sn]
	if !ok {
		return nil, schemaErr(sn, ErrNotFound)
	}
	t, ok := s.tables[Canonical(n.Table)]
	if !ok {
		return nil, tableErr(sn, Canonical(n.Table), ErrNotFound)
	}
	return t, nil
}

// Tables returns the tables of a schema in creation order. Replacing a table
// keeps its position.
func (c *Catalog) Tables(schemaName string) ([]*Table, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	sn := c.schemaOrCurrent(schemaName)
	s, ok := c.schemas[sn]
	if !ok {
		return nil, schemaErr(sn, ErrNotFound)
	}
	tables := make([]*Table, 0, len(s.order))
	for _, n := range s.order {
		tables = append(tables, s.tables[n])
	}
	return tables, nil
}

// schemaOrCurrent must be called with the lock held.
func (c *Catalog) schemaOrCurrent(name string) string {
	if n := Canonical(name); n != "" {
		return n
	}
	return c.current
}

func checkColumns(src frame.Source, columns []types.Column) error {
	if len(columns) == 0 {
		return fmt.Errorf("%w: table has no columns", ErrInvalidName)
	}
	if got := len(src.Columns()); got != len(columns) {
		return fmt.Errorf("%w: source has %d columns, binding declares %d", ErrInvalidName, got, len(columns))
	}
	seen := make(map[string]bool, len(columns))
	for _, col := range columns {
		key := Canonical(col.Name)
		if key == "" {
			return fmt.Errorf("%w: empty column name", ErrInvalidName)
		}
		if seen[key] {
			return fmt.Errorf("%w: duplicate column %q", ErrInvalidName, col.Name)
		}
		seen[key] = true
	}
	return nil
}
