package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/pmscope/internal/engine"
	"github.com/roach88/pmscope/internal/server"
	"github.com/roach88/pmscope/internal/store"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Database string
	Listen   string

	// Ready is called with the bound address once the server listens
	// (for testing).
	Ready func(net.Addr)
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	return newServeCommand(&ServeOptions{RootOptions: rootOpts})
}

func newServeCommand(opts *ServeOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the ingest and inspection API",
		Long: `Start the engine behind an HTTP API.

Captured events are posted to /v1/events and /v1/topology; resolved records,
frames and documents are queried under /v1, and /v1/watch streams a
record's resolution over a websocket each time it changes. Every accepted
event is appended to the capture log.

Example:
  pmscope serve --db ./pmscope.db --listen 127.0.0.1:7420`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite capture log (default from config)")
	cmd.Flags().StringVar(&opts.Listen, "listen", "", "listen address (default from config)")

	return cmd
}

func runServe(opts *ServeOptions, cmd *cobra.Command) error {
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	logger := opts.logger(cfg, cmd.ErrOrStderr())

	dbPath := databasePath(opts.Database, cfg)
	logger.Info("opening database", "path", dbPath)
	st, err := store.Open(dbPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			logger.Error("error closing database", "error", closeErr)
		}
	}()

	eng, err := engine.New(append(engineOptions(cfg, logger), engine.WithLog(st))...)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to create engine", err)
	}

	ctx, cancel := signalContext(commandContext(cmd), logger)
	defer cancel()

	listen := opts.Listen
	if listen == "" {
		listen = cfg.Server.Listen
	}
	ready := func(addr net.Addr) {
		fmt.Fprintf(cmd.OutOrStdout(), "Listening on http://%s\n", addr)
		fmt.Fprintln(cmd.OutOrStdout(), "Press Ctrl-C to stop.")
		if opts.Ready != nil {
			opts.Ready(addr)
		}
	}

	if err := serveEngine(ctx, eng, cfg.Server.WriteTimeout, listen, logger, ready); err != nil {
		return WrapExitError(ExitFailure, "server error", err)
	}
	logger.Info("server stopped gracefully")
	return nil
}

// serveEngine runs the engine loop and the HTTP server until ctx ends or
// either fails.
func serveEngine(ctx context.Context, eng *engine.Engine, writeTimeout time.Duration, listen string, logger *slog.Logger, ready func(net.Addr)) error {
	srv, err := server.New(eng, server.WithLogger(logger), server.WithWriteTimeout(writeTimeout))
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := eng.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		defer eng.Stop()
		return srv.ListenAndServe(ctx, listen, ready)
	})
	return g.Wait()
}

// signalContext is cancelled on SIGINT or SIGTERM, or when parent ends.
func signalContext(parent context.Context, logger *slog.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigChan) // Prevent signal handler leak
		select {
		case sig := <-sigChan:
			logger.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
			// Parent context cancelled (e.g., from test)
		}
	}()
	return ctx, cancel
}
