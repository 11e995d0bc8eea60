// Package config loads the gateway's YAML configuration.
package config

import (
	"time"

	"github.com/txn2/sqlgate/pkg/auth"
	"github.com/txn2/sqlgate/pkg/datasource/sqlsource"
	"github.com/txn2/sqlgate/pkg/history"
	sqlhttp "github.com/txn2/sqlgate/pkg/http"
	"github.com/txn2/sqlgate/pkg/statement"
)

// Config holds the complete gateway configuration.
type Config struct {
	Server     ServerConfig                `yaml:"server"`
	Log        LogConfig                   `yaml:"log"`
	Statements statement.Config            `yaml:"statements"`
	Catalog    CatalogConfig               `yaml:"catalog"`
	Auth       AuthConfig                  `yaml:"auth"`
	RateLimit  sqlhttp.RateLimitConfig     `yaml:"rate_limit"`
	Database   DatabaseConfig              `yaml:"database"`
	History    history.Config              `yaml:"history"`
	Sources    map[string]sqlsource.Config `yaml:"sources"`
	Schemas    []SchemaConfig              `yaml:"schemas"`
	MCP        MCPConfig                   `yaml:"mcp"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Address string `yaml:"address"`

	// BaseURL overrides the scheme and host used in nextUri links, for
	// deployments behind a proxy.
	BaseURL string `yaml:"base_url"`

	Environment string         `yaml:"environment"`
	TLS         TLSConfig      `yaml:"tls"`
	Shutdown    ShutdownConfig `yaml:"shutdown"`
}

// TLSConfig configures TLS.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// ShutdownConfig configures graceful shutdown.
type ShutdownConfig struct {
	GracePeriod time.Duration `yaml:"grace_period"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
}

// CatalogConfig configures the table catalog.
type CatalogConfig struct {
	Name          string `yaml:"name"`
	DefaultSchema string `yaml:"default_schema"`
	DropPolicy    string `yaml:"drop_policy"` // restrict, cascade
}

// AuthConfig configures client authentication. When disabled every request
// is anonymous and the protocol user headers name the user.
type AuthConfig struct {
	Enabled        bool             `yaml:"enabled"`
	AllowAnonymous bool             `yaml:"allow_anonymous"`
	APIKeys        []auth.APIKey    `yaml:"api_keys"`
	JWT            JWTConfig        `yaml:"jwt"`
	Basic          []auth.BasicUser `yaml:"basic"`
}

// JWTConfig configures HS256 bearer tokens.
type JWTConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Issuer     string `yaml:"issuer"`
	SigningKey string `yaml:"signing_key"`
	RolesClaim string `yaml:"roles_claim"`
}

// DatabaseConfig configures the PostgreSQL history database.
type DatabaseConfig struct {
	DSN          string `yaml:"dsn"`
	MaxOpenConns int    `yaml:"max_open_conns"`
}

// SchemaConfig declares a schema and the tables bound into it at startup.
type SchemaConfig struct {
	Name   string        `yaml:"name"`
	Tables []TableConfig `yaml:"tables"`
}

// TableConfig binds one table. Either Source names an entry of
// Config.Sources, or Columns and Rows define an inline table.
type TableConfig struct {
	Name string `yaml:"name"`

	Source string `yaml:"source"`
	Table  string `yaml:"table"` // remote table, defaults to Name
	Where  string `yaml:"where"`

	Columns []ColumnConfig `yaml:"columns"`
	Rows    [][]any        `yaml:"rows"`
}

// ColumnConfig declares one column.
type ColumnConfig struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"`
}

// MCPConfig configures the MCP tool surface.
type MCPConfig struct {
	Enabled bool   `yaml:"enabled"`
	Name    string `yaml:"name"`
	MaxRows int    `yaml:"max_rows"`
}
