package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/txn2/sqlgate/pkg/history"
	"github.com/txn2/sqlgate/pkg/statement"
)

const (
	defaultAddress        = ":8080"
	defaultEnvironment    = "sqlgate"
	defaultCatalogName    = "sqlgate"
	defaultSchema         = "root"
	defaultLogLevel       = "info"
	defaultLogFormat      = "text"
	defaultGracePeriod    = 25 * time.Second
	defaultMaxOpenConns   = 25
	defaultRateLimitRPS   = 10
	defaultRateLimitBurst = 20
	defaultRetentionDays  = 30
	defaultHistoryCleanup = time.Hour
	defaultMCPName        = "sqlgate"
	defaultMCPMaxRows     = 1000
)

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// Loader reads configuration through an afero filesystem.
type Loader struct {
	fs afero.Fs
}

// NewLoader creates a loader over fs.
func NewLoader(fs afero.Fs) *Loader {
	return &Loader{fs: fs}
}

// Load reads the OS filesystem.
func Load(path string) (*Config, error) {
	return NewLoader(afero.NewOsFs()).Load(path)
}

// Load reads, expands and parses a config file, then applies defaults.
func (l *Loader) Load(path string) (*Config, error) {
	data, err := afero.ReadFile(l.fs, path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	data = []byte(expandEnvVars(string(data)))

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

// LoadEnvFile reads KEY=value pairs from a dotenv file into the process
// environment. Variables that are already set win.
func (l *Loader) LoadEnvFile(path string) error {
	f, err := l.fs.Open(path)
	if err != nil {
		return fmt.Errorf("opening env file: %w", err)
	}
	defer func() { _ = f.Close() }()

	vars, err := godotenv.Parse(f)
	if err != nil {
		return fmt.Errorf("parsing env file: %w", err)
	}
	for k, v := range vars {
		if _, set := os.LookupEnv(k); set {
			continue
		}
		if err := os.Setenv(k, v); err != nil {
			return fmt.Errorf("setting %s: %w", k, err)
		}
	}
	return nil
}

// expandEnvVars expands ${VAR} patterns in the string.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		return os.Getenv(match[2 : len(match)-1])
	})
}

// applyDefaults applies default values to the config.
func applyDefaults(cfg *Config) {
	if cfg.Server.Address == "" {
		cfg.Server.Address = defaultAddress
	}
	if cfg.Server.Environment == "" {
		cfg.Server.Environment = defaultEnvironment
	}
	if cfg.Server.Shutdown.GracePeriod == 0 {
		cfg.Server.Shutdown.GracePeriod = defaultGracePeriod
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = defaultLogLevel
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = defaultLogFormat
	}
	if cfg.Catalog.Name == "" {
		cfg.Catalog.Name = defaultCatalogName
	}
	if cfg.Catalog.DefaultSchema == "" {
		cfg.Catalog.DefaultSchema = defaultSchema
	}
	if cfg.Catalog.DropPolicy == "" {
		cfg.Catalog.DropPolicy = "restrict"
	}
	applyStatementDefaults(&cfg.Statements)
	if cfg.RateLimit.Rate == 0 {
		cfg.RateLimit.Rate = defaultRateLimitRPS
	}
	if cfg.RateLimit.Burst == 0 {
		cfg.RateLimit.Burst = defaultRateLimitBurst
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = defaultMaxOpenConns
	}
	if cfg.History.MaxEntries == 0 {
		cfg.History.MaxEntries = history.DefaultMaxEntries
	}
	if cfg.History.RetentionDays == 0 {
		cfg.History.RetentionDays = defaultRetentionDays
	}
	if cfg.History.CleanupEvery == 0 {
		cfg.History.CleanupEvery = defaultHistoryCleanup
	}
	if cfg.MCP.Name == "" {
		cfg.MCP.Name = defaultMCPName
	}
	if cfg.MCP.MaxRows == 0 {
		cfg.MCP.MaxRows = defaultMCPMaxRows
	}
}

// applyStatementDefaults fills zero values. A negative abandon_timeout
// disables abandonment.
func applyStatementDefaults(s *statement.Config) {
	if s.PageSize == 0 {
		s.PageSize = statement.DefaultPageSize
	}
	if s.MaxConcurrent == 0 {
		s.MaxConcurrent = statement.DefaultMaxConcurrent
	}
	if s.MaxQueued == 0 {
		s.MaxQueued = statement.DefaultMaxQueued
	}
	if s.PrefetchPages == 0 {
		s.PrefetchPages = statement.DefaultPrefetchPages
	}
	if s.Retention == 0 {
		s.Retention = statement.DefaultRetention
	}
	if s.AbandonTimeout == 0 {
		s.AbandonTimeout = statement.DefaultAbandonTimeout
	}
	if s.CleanupInterval == 0 {
		s.CleanupInterval = statement.DefaultCleanupInterval
	}
}
