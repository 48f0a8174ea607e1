package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/browser"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/registry/internal/httpapi"
	"github.com/roach88/registry/internal/metrics"
	"github.com/roach88/registry/internal/schema"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Addr string
	Open bool

	// OnListening is called with the base URL once the listener is bound
	// (for testing).
	OnListening func(url string)
}

const shutdownTimeout = 10 * time.Second

// openURL launches the default browser. Replaced in tests.
var openURL = browser.OpenURL

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the registry HTTP API",
		Long: `Serve the registry HTTP API and Prometheus metrics until interrupted.

The listen address comes from --addr, then listen_addr in the config file,
then 127.0.0.1:8733. With --open the default browser is pointed at the server
once /health answers.

Examples:
  registry serve
  registry serve --addr 127.0.0.1:9000 --open --user clerk`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Addr, "addr", "", "listen address host:port")
	cmd.Flags().BoolVar(&opts.Open, "open", false, "open the browser once the server is ready")

	return cmd
}

func runServe(opts *ServeOptions, cmd *cobra.Command) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := metrics.New(reg)
	a, err := openApp(opts.RootOptions, cmd, m)
	if err != nil {
		return err
	}
	defer a.Close()
	slog.SetDefault(a.logger)

	validator, err := schema.NewValidator()
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load payload schema", err)
	}

	addr := opts.Addr
	if addr == "" {
		addr = a.cfg.ListenAddr
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to listen", err)
	}

	handler := httpapi.New(a.svc, validator, a.logger, a.cfg, a.user, m, reg)
	srv := &http.Server{
		Handler:           handler.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	// Use command's context if available (for testing), otherwise create one
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, stop := signal.NotifyContext(parentCtx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		a.logger.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	url := "http://" + ln.Addr().String()
	a.logger.Info("server listening", "url", url, "db", a.dbPath, "user", a.user)
	fmt.Fprintf(cmd.OutOrStdout(), "Serving registry on %s\n", url)
	fmt.Fprintln(cmd.OutOrStdout(), "Press Ctrl-C to stop.")
	if opts.OnListening != nil {
		opts.OnListening(url)
	}

	if opts.Open {
		g.Go(func() error {
			if err := waitForServer(gctx, url, 10*time.Second); err != nil {
				a.logger.Warn("server not ready, skipping browser launch", "error", err)
				return nil
			}
			if err := openURL(url); err != nil {
				a.logger.Warn("could not open browser", "error", err)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return WrapExitError(ExitCommandError, "server error", err)
	}

	a.logger.Info("server stopped gracefully")
	return nil
}

// waitForServer polls the health endpoint until the server is ready or timeout.
func waitForServer(ctx context.Context, url string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client := &http.Client{Timeout: time.Second}
	healthURL := url + "/health"
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("timeout waiting for server to start")

		case <-ticker.C:
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, healthURL, nil)
			if err != nil {
				return err
			}
			resp, err := client.Do(req)
			if err == nil {
				resp.Body.Close()
				if resp.StatusCode == http.StatusOK {
					return nil
				}
			}
		}
	}
}
