// Package main is the sqlgate command: an HTTP SQL gateway speaking the
// Trino client protocol, with MCP tools for the same catalog.
//
//	@title						sqlgate API
//	@version					1.0
//	@description				SQL gateway speaking the Trino/Presto client protocol.
//	@BasePath					/
//	@securityDefinitions.apikey	ApiKeyAuth
//	@in							header
//	@name						X-API-Key
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/txn2/sqlgate/internal/server"
	"github.com/txn2/sqlgate/pkg/config"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return newRootCmd(afero.NewOsFs()).ExecuteContext(ctx)
}

type globalOptions struct {
	fs         afero.Fs
	configPath string
	envFile    string
}

func newRootCmd(fs afero.Fs) *cobra.Command {
	opts := &globalOptions{fs: fs}

	root := &cobra.Command{
		Use:           "sqlgate",
		Short:         "SQL gateway for Trino and Presto clients",
		Version:       server.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "sqlgate.yaml", "Path to configuration file")
	root.PersistentFlags().StringVar(&opts.envFile, "env-file", "", "Optional .env file loaded before the configuration")

	root.AddCommand(
		newServeCmd(opts),
		newMCPCmd(opts),
		newValidateCmd(opts),
		newVersionCmd(),
	)
	return root
}

func newServeCmd(opts *globalOptions) *cobra.Command {
	var address string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP gateway",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			if address != "" {
				cfg.Server.Address = address
			}
			return serve(cmd.Context(), cfg, cmd.ErrOrStderr())
		},
	}
	cmd.Flags().StringVar(&address, "address", "", "Listen address, overrides server.address")
	return cmd
}

func newMCPCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the MCP tools over stdio",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			setupLogging(cmd.ErrOrStderr(), cfg.Log)
			s, err := server.New(cmd.Context(), cfg)
			if err != nil {
				return fmt.Errorf("creating server: %w", err)
			}
			defer closeServer(s)
			return s.ServeStdio(cmd.Context())
		},
	}
}

func newValidateCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check a configuration file without starting the gateway",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			tables := 0
			for _, s := range cfg.Schemas {
				tables += len(s.Tables)
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s is valid: %d sources, %d schemas, %d tables\n",
				opts.configPath, len(cfg.Sources), len(cfg.Schemas), tables)
			return nil
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, _ []string) {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "sqlgate version %s\n", server.Version)
		},
	}
}

func (o *globalOptions) load() (*config.Config, error) {
	loader := config.NewLoader(o.fs)
	if o.envFile != "" {
		if err := loader.LoadEnvFile(o.envFile); err != nil {
			return nil, err
		}
	}
	cfg, err := loader.Load(o.configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

func serve(ctx context.Context, cfg *config.Config, logOut io.Writer) error {
	setupLogging(logOut, cfg.Log)

	s, err := server.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}
	defer closeServer(s)

	return s.Run(ctx)
}

func closeServer(s *server.Server) {
	if err := s.Close(); err != nil {
		slog.Warn("closing server", "error", err)
	}
}

// setupLogging installs the default slog logger. Output goes to w so stdout
// stays free for the stdio MCP transport.
func setupLogging(w io.Writer, lc config.LogConfig) {
	level, err := config.ParseLevel(lc.Level)
	if err != nil {
		level = slog.LevelInfo
	}
	hopts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if lc.Format == "json" {
		handler = slog.NewJSONHandler(w, hopts)
	} else {
		handler = slog.NewTextHandler(w, hopts)
	}
	slog.SetDefault(slog.New(handler))
}
