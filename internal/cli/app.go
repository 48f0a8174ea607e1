package cli

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/registry/internal/config"
	"github.com/roach88/registry/internal/domain"
	"github.com/roach88/registry/internal/metrics"
	"github.com/roach88/registry/internal/service"
	"github.com/roach88/registry/internal/store"
)

// app is the opened environment shared by every command that touches the
// store.
type app struct {
	cfg     config.Config
	store   *store.Store
	svc     *service.Service
	user    string
	logger  *slog.Logger
	dbPath  string
	metrics *metrics.Metrics
}

// openApp loads configuration, resolves the store path and username, and
// opens the primary store. m may be nil.
func openApp(opts *RootOptions, cmd *cobra.Command, m *metrics.Metrics) (*app, error) {
	logger := newLogger(opts, cmd)

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load config", err)
	}

	dbPath, err := cfg.ResolveDBPath(opts.Database)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to prepare database path", err)
	}

	logger.Debug("opening database", "path", dbPath)
	st, err := store.Open(dbPath)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}

	return &app{
		cfg:     cfg,
		store:   st,
		svc:     service.New(st, service.WithLogger(logger), service.WithMetrics(m)),
		user:    cfg.ResolveUsername(opts.User),
		logger:  logger,
		dbPath:  dbPath,
		metrics: m,
	}, nil
}

// ctx returns the command context carrying the acting username.
func (a *app) ctx(cmd *cobra.Command) context.Context {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	return domain.WithUsername(parent, a.user)
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		a.logger.Error("error closing database", "error", err)
	}
}

// newLogger writes structured logs to stderr: warnings by default, debug
// with --verbose.
func newLogger(opts *RootOptions, cmd *cobra.Command) *slog.Logger {
	level := slog.LevelWarn
	if opts.Verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
}

func newFormatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}
}
