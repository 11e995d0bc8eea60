// Package server assembles the gateway from configuration: catalog, data
// sources, statement manager, history, protocol handler and MCP tools.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	_ "github.com/txn2/sqlgate/internal/apidocs" // registers the swagger spec
	"github.com/txn2/sqlgate/pkg/auth"
	"github.com/txn2/sqlgate/pkg/catalog"
	"github.com/txn2/sqlgate/pkg/compiler"
	"github.com/txn2/sqlgate/pkg/config"
	"github.com/txn2/sqlgate/pkg/database/migrate"
	"github.com/txn2/sqlgate/pkg/datasource/sqlsource"
	"github.com/txn2/sqlgate/pkg/engine"
	"github.com/txn2/sqlgate/pkg/frame"
	"github.com/txn2/sqlgate/pkg/health"
	"github.com/txn2/sqlgate/pkg/history"
	historypg "github.com/txn2/sqlgate/pkg/history/postgres"
	sqlhttp "github.com/txn2/sqlgate/pkg/http"
	"github.com/txn2/sqlgate/pkg/mcptools"
	"github.com/txn2/sqlgate/pkg/metrics"
	"github.com/txn2/sqlgate/pkg/protocol"
	"github.com/txn2/sqlgate/pkg/statement"
	"github.com/txn2/sqlgate/pkg/types"
)

// Version is set at build time.
var Version = "dev"

const (
	readHeaderTimeout = 10 * time.Second
	historyDriver     = "postgres"
)

// Server is an assembled gateway.
type Server struct {
	cfg     *config.Config
	catalog *catalog.Catalog
	manager *statement.Manager
	history history.Store
	metrics *metrics.Metrics
	health  *health.Checker
	handler http.Handler
	life    lifecycle
}

// New builds a gateway from cfg. Resources opened here are released by
// Close, also when New fails part way.
func New(ctx context.Context, cfg *config.Config) (s *Server, err error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s = &Server{
		cfg:     cfg,
		metrics: metrics.New(),
		health:  health.NewChecker(),
	}
	defer func() {
		if err != nil {
			_ = s.life.stop(context.WithoutCancel(ctx))
		}
	}()

	if s.catalog, err = newCatalog(cfg.Catalog); err != nil {
		return nil, err
	}

	sources, err := s.openSources(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.bindSchemas(ctx, sources); err != nil {
		return nil, err
	}

	if err := s.openHistory(); err != nil {
		return nil, err
	}

	opts := []statement.Option{statement.WithMetrics(s.metrics)}
	if s.history != nil {
		opts = append(opts, statement.WithHistory(s.history))
	}
	s.manager, err = statement.NewManager(compiler.New(s.catalog), engine.NewLocal(), cfg.Statements, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating statement manager: %w", err)
	}
	s.life.addCloser("statement manager", s.manager)

	s.handler, err = s.routes()
	if err != nil {
		return nil, err
	}
	return s, nil
}

func newCatalog(cfg config.CatalogConfig) (*catalog.Catalog, error) {
	policy, err := catalog.ParseDropPolicy(cfg.DropPolicy)
	if err != nil {
		return nil, err
	}
	return catalog.New(
		catalog.WithName(cfg.Name),
		catalog.WithDefaultSchema(cfg.DefaultSchema),
		catalog.WithDropPolicy(policy),
	), nil
}

type openSource struct {
	db     *sql.DB
	driver string
}

func (s *Server) openSources(ctx context.Context) (map[string]openSource, error) {
	out := make(map[string]openSource, len(s.cfg.Sources))
	for name, sc := range s.cfg.Sources {
		db, err := sqlsource.Open(ctx, sc)
		if err != nil {
			return nil, fmt.Errorf("source %s: %w", name, err)
		}
		s.life.addCloser("source "+name, db)
		s.health.AddCheck("source_"+name, db.PingContext)
		out[name] = openSource{db: db, driver: sc.Driver}
		slog.Info("opened data source", "source", name, "driver", sc.Driver)
	}
	return out, nil
}

func (s *Server) bindSchemas(ctx context.Context, sources map[string]openSource) error {
	for _, sc := range s.cfg.Schemas {
		if !s.catalog.HasSchema(sc.Name) {
			if err := s.catalog.CreateSchema(sc.Name); err != nil {
				return fmt.Errorf("creating schema: %w", err)
			}
		}
		for _, tc := range sc.Tables {
			src, cols, err := s.tableSource(ctx, tc, sources)
			if err != nil {
				return fmt.Errorf("table %s.%s: %w", sc.Name, tc.Name, err)
			}
			if _, err := s.catalog.CreateTable(sc.Name, tc.Name, src, cols, false); err != nil {
				return fmt.Errorf("binding table: %w", err)
			}
			slog.Debug("bound table", "schema", sc.Name, "table", tc.Name, "source", tc.Source)
		}
	}
	return nil
}

func (*Server) tableSource(ctx context.Context, tc config.TableConfig, sources map[string]openSource) (frame.Source, []types.Column, error) {
	var cols []types.Column
	if len(tc.Columns) > 0 {
		c, err := tc.SQLColumns()
		if err != nil {
			return nil, nil, err
		}
		cols = c
	}

	if tc.Source == "" {
		rows := make([]frame.Row, len(tc.Rows))
		for i, r := range tc.Rows {
			rows[i] = frame.Row(r)
		}
		m, err := frame.NewMemory(cols, rows)
		if err != nil {
			return nil, nil, err
		}
		slog.Debug("loaded inline table", "table", tc.Name, "rows", m.Len())
		return m, cols, nil
	}

	src, ok := sources[tc.Source]
	if !ok {
		return nil, nil, fmt.Errorf("unknown source %q", tc.Source)
	}
	remote := tc.Table
	if remote == "" {
		remote = tc.Name
	}
	opts := []sqlsource.Option{sqlsource.WithWhere(tc.Where)}
	if cols != nil {
		opts = append(opts, sqlsource.WithColumns(cols))
	}
	t, err := sqlsource.NewTable(ctx, src.db, src.driver, remote, opts...)
	if err != nil {
		return nil, nil, err
	}
	return t, cols, nil
}

// openHistory selects the history store: PostgreSQL when a database DSN is
// configured, otherwise a bounded in-memory store.
func (s *Server) openHistory() error {
	hc := s.cfg.History
	if !hc.Enabled {
		return nil
	}
	if s.cfg.Database.DSN == "" {
		s.history = history.NewMemoryStore(hc.MaxEntries)
		s.life.addCloser("history", s.history)
		return nil
	}

	db, err := sql.Open(historyDriver, s.cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("opening history database: %w", err)
	}
	db.SetMaxOpenConns(s.cfg.Database.MaxOpenConns)
	s.life.addCloser("history database", db)

	if err := migrate.Run(db); err != nil {
		return fmt.Errorf("migrating history database: %w", err)
	}

	store := historypg.New(db, historypg.Config{RetentionDays: hc.RetentionDays})
	s.life.add(func(context.Context) error {
		store.StartCleanupRoutine(hc.CleanupEvery)
		return nil
	}, func(context.Context) error {
		return store.Close()
	})
	s.health.AddCheck("history_db", db.PingContext)
	s.history = store
	return nil
}

func (s *Server) authenticator() (auth.Authenticator, error) {
	ac := s.cfg.Auth
	var chain []auth.Authenticator
	if len(ac.APIKeys) > 0 {
		chain = append(chain, auth.NewAPIKeyAuthenticator(ac.APIKeys))
	}
	if ac.JWT.Enabled {
		j, err := auth.NewJWTAuthenticator(auth.JWTConfig{
			Issuer:     ac.JWT.Issuer,
			SigningKey: []byte(ac.JWT.SigningKey),
			RolesClaim: ac.JWT.RolesClaim,
		})
		if err != nil {
			return nil, err
		}
		chain = append(chain, j)
	}
	if len(ac.Basic) > 0 {
		chain = append(chain, auth.NewBasicAuthenticator(ac.Basic))
	}
	return auth.NewChainedAuthenticator(ac.AllowAnonymous, chain...), nil
}

func (s *Server) routes() (http.Handler, error) {
	var api []func(http.Handler) http.Handler
	if s.cfg.Auth.Enabled {
		a, err := s.authenticator()
		if err != nil {
			return nil, fmt.Errorf("configuring auth: %w", err)
		}
		api = append(api, sqlhttp.Authenticate(a))
	}

	popts := []protocol.Option{
		protocol.WithBaseURL(s.cfg.Server.BaseURL),
		protocol.WithUserResolver(sqlhttp.AuthenticatedUser),
		protocol.WithVersion(Version, s.cfg.Server.Environment),
	}
	if s.history != nil {
		popts = append(popts, protocol.WithHistory(s.history))
	}
	proto := protocol.NewHandler(s.manager, popts...)

	submit := api
	if s.cfg.RateLimit.Enabled {
		rl := sqlhttp.NewRateLimiter(s.cfg.RateLimit.Rate, s.cfg.RateLimit.Burst)
		submit = append(append([]func(http.Handler) http.Handler{}, api...), sqlhttp.RateLimit(rl))
	}

	mux := http.NewServeMux()
	mux.Handle("/v1/", sqlhttp.Chain(proto, api...))
	mux.Handle("POST /v1/statement", sqlhttp.Chain(proto, submit...))
	mux.Handle("GET /healthz", s.health.LivenessHandler())
	mux.Handle("GET /readyz", s.health.ReadinessHandler())
	mux.Handle("GET /metrics", s.metrics.Handler())
	mux.Handle("GET /swagger/", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))

	if s.cfg.MCP.Enabled {
		mcpServer := s.newMCPServer()
		stream := mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server { return mcpServer }, nil)
		mux.Handle("/mcp", sqlhttp.Chain(stream, api...))
	}

	return sqlhttp.RequestLogger(s.metrics)(mux), nil
}

func (s *Server) newMCPServer() *mcp.Server {
	mcpServer := mcp.NewServer(&mcp.Implementation{Name: s.cfg.MCP.Name, Version: Version}, nil)
	mcptools.New(s.manager, s.catalog, s.cfg.MCP.MaxRows).RegisterTools(mcpServer)
	return mcpServer
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Catalog returns the catalog.
func (s *Server) Catalog() *catalog.Catalog {
	return s.catalog
}

// Manager returns the statement manager.
func (s *Server) Manager() *statement.Manager {
	return s.manager
}

// Health returns the readiness checker.
func (s *Server) Health() *health.Checker {
	return s.health
}

// Run serves HTTP until ctx is cancelled, then drains and shuts down within
// the configured grace period.
func (s *Server) Run(ctx context.Context) error {
	if err := s.life.start(ctx); err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              s.cfg.Server.Address,
		Handler:           s.handler,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		var err error
		if tls := s.cfg.Server.TLS; tls.Enabled {
			err = srv.ListenAndServeTLS(tls.CertFile, tls.KeyFile)
		} else {
			err = srv.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		errCh <- err
	}()

	s.health.SetReady()
	slog.Info("sqlgate listening", "address", s.cfg.Server.Address, "version", Version)

	select {
	case err := <-errCh:
		s.health.SetDraining()
		if err != nil {
			return fmt.Errorf("serving http: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.health.SetDraining()
	slog.Info("shutting down", "grace_period", s.cfg.Server.Shutdown.GracePeriod)
	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.Server.Shutdown.GracePeriod)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		return fmt.Errorf("shutting down http: %w", err)
	}
	return <-errCh
}

// Close releases every resource in reverse order of acquisition.
func (s *Server) Close() error {
	return s.life.stop(context.Background())
}

// ServeStdio serves the MCP tools over stdin/stdout until ctx is cancelled
// or the client disconnects. The HTTP listener is not started.
func (s *Server) ServeStdio(ctx context.Context) error {
	return s.serveMCP(ctx, &mcp.StdioTransport{})
}

func (s *Server) serveMCP(ctx context.Context, t mcp.Transport) error {
	if err := s.life.start(ctx); err != nil {
		return err
	}
	slog.Info("serving mcp", "name", s.cfg.MCP.Name, "version", Version)
	if err := s.newMCPServer().Run(ctx, t); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("serving mcp: %w", err)
	}
	return nil
}
