package config

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/txn2/sqlgate/pkg/catalog"
	"github.com/txn2/sqlgate/pkg/types"
)

// Validate validates the configuration, reporting every problem at once.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.TLS.Enabled && (c.Server.TLS.CertFile == "" || c.Server.TLS.KeyFile == "") {
		errs = append(errs, "server.tls.cert_file and server.tls.key_file are required when TLS is enabled")
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, "log.level: "+err.Error())
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		errs = append(errs, fmt.Sprintf("log.format must be text or json, got %q", c.Log.Format))
	}
	if _, err := catalog.ParseDropPolicy(c.Catalog.DropPolicy); err != nil {
		errs = append(errs, "catalog.drop_policy: "+err.Error())
	}
	if c.Statements.PageSize < 0 || c.Statements.MaxConcurrent < 0 || c.Statements.MaxQueued < 0 || c.Statements.PrefetchPages < 0 {
		errs = append(errs, "statements.page_size, max_concurrent, max_queued and prefetch_pages must not be negative")
	}

	errs = append(errs, c.validateAuth()...)

	if c.RateLimit.Enabled && c.RateLimit.Rate <= 0 {
		errs = append(errs, "rate_limit.requests_per_second must be positive")
	}

	for name, src := range c.Sources {
		if err := src.Validate(); err != nil {
			errs = append(errs, fmt.Sprintf("sources.%s: %v", name, err))
		}
	}

	for i, s := range c.Schemas {
		errs = append(errs, c.validateSchema(i, s)...)
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (c *Config) validateAuth() []string {
	if !c.Auth.Enabled {
		return nil
	}
	var errs []string
	if c.Auth.JWT.Enabled && c.Auth.JWT.SigningKey == "" {
		errs = append(errs, "auth.jwt.signing_key is required when JWT is enabled")
	}
	for i, k := range c.Auth.APIKeys {
		if k.Key == "" || k.Name == "" {
			errs = append(errs, fmt.Sprintf("auth.api_keys[%d]: key and name are required", i))
		}
	}
	for i, u := range c.Auth.Basic {
		if u.Name == "" || u.PasswordHash == "" {
			errs = append(errs, fmt.Sprintf("auth.basic[%d]: name and password_hash are required", i))
		}
	}
	if len(c.Auth.APIKeys) == 0 && len(c.Auth.Basic) == 0 && !c.Auth.JWT.Enabled && !c.Auth.AllowAnonymous {
		errs = append(errs, "auth is enabled but no authenticator is configured and allow_anonymous is false")
	}
	return errs
}

func (c *Config) validateSchema(i int, s SchemaConfig) []string {
	var errs []string
	prefix := fmt.Sprintf("schemas[%d]", i)
	if strings.TrimSpace(s.Name) == "" {
		errs = append(errs, prefix+": name is required")
	}
	if catalog.Canonical(s.Name) == catalog.SystemSchema {
		errs = append(errs, fmt.Sprintf("%s: %q is reserved", prefix, s.Name))
	}

	for j, t := range s.Tables {
		tp := fmt.Sprintf("%s.tables[%d]", prefix, j)
		if strings.TrimSpace(t.Name) == "" {
			errs = append(errs, tp+": name is required")
		}
		if t.Source != "" {
			if _, ok := c.Sources[t.Source]; !ok {
				errs = append(errs, fmt.Sprintf("%s: unknown source %q", tp, t.Source))
			}
			if len(t.Rows) > 0 {
				errs = append(errs, tp+": rows cannot be combined with source")
			}
		} else if len(t.Columns) == 0 {
			errs = append(errs, tp+": either source or columns is required")
		}
		for _, col := range t.Columns {
			if _, err := types.ParseTypeName(col.Type); err != nil {
				errs = append(errs, fmt.Sprintf("%s: column %q: %v", tp, col.Name, err))
			}
		}
		for k, row := range t.Rows {
			if len(row) != len(t.Columns) {
				errs = append(errs, fmt.Sprintf("%s: row %d has %d values, want %d", tp, k, len(row), len(t.Columns)))
			}
		}
	}
	return errs
}

// SQLColumns converts the declared columns to SQL columns.
func (t TableConfig) SQLColumns() ([]types.Column, error) {
	cols := make([]types.Column, len(t.Columns))
	for i, c := range t.Columns {
		st, err := types.ParseTypeName(c.Type)
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", c.Name, err)
		}
		cols[i] = types.Column{Name: c.Name, Type: st}
	}
	return cols, nil
}

// ParseLevel maps a level name to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, fmt.Errorf("unknown level %q", s)
	}
	return l, nil
}
