package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/pmscope/internal/capture"
	"github.com/roach88/pmscope/internal/config"
	"github.com/roach88/pmscope/internal/engine"
	"github.com/roach88/pmscope/internal/identity"
	"github.com/roach88/pmscope/internal/server"
	"github.com/roach88/pmscope/internal/store"
)

// CaptureOptions holds flags for the capture command.
type CaptureOptions struct {
	*RootOptions
	Database string
	Listen   string
	Remote   string
	Settle   time.Duration
	Headful  bool
}

// CaptureResult summarises a finished capture run.
type CaptureResult struct {
	Session  string   `json:"session,omitempty"`
	Pages    []string `json:"pages"`
	Records  int      `json:"records"`
	Resolved int      `json:"resolved_sources"`
	Frames   int      `json:"frames"`
}

func (r CaptureResult) String() string {
	s := fmt.Sprintf("Captured %d message(s) across %d page(s), %d frame(s)\n", r.Records, len(r.Pages), r.Frames)
	s += fmt.Sprintf("Resolved sources: %d of %d\n", r.Resolved, r.Records)
	if r.Session != "" {
		s += fmt.Sprintf("Session: %s\n", r.Session)
	}
	return s
}

// NewCaptureCommand creates the capture command.
func NewCaptureCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CaptureOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "capture [url...]",
		Short: "Capture live messages from Chrome",
		Long: `Open each page in Chrome, hook every document's message listener and
feed the captured events to the engine, logging them to the database.

Pages default to the config file's pages list. Without --listen the
command keeps listening for --settle after the last page loads, takes a
final frame tree snapshot and exits. With --listen it serves the HTTP API
until interrupted.

Examples:
  pmscope capture --db ./pmscope.db https://example.test/embeds
  pmscope capture --settle 10s https://a.example/ https://b.example/
  pmscope capture --listen 127.0.0.1:7420 https://example.test/`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCapture(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite capture log (default from config)")
	cmd.Flags().StringVar(&opts.Listen, "listen", "", "also serve the HTTP API on this address")
	cmd.Flags().StringVar(&opts.Remote, "remote", "", "DevTools WebSocket URL of a running Chrome")
	cmd.Flags().DurationVar(&opts.Settle, "settle", 0, "time to keep listening after the pages load (default from config)")
	cmd.Flags().BoolVar(&opts.Headful, "headful", false, "show the browser window")

	return cmd
}

// capturePages resolves the pages to open: arguments first, then config.
func capturePages(args []string, cfg *config.Config) []string {
	if len(args) > 0 {
		return args
	}
	pages := make([]string, 0, len(cfg.Pages))
	for _, p := range cfg.Pages {
		pages = append(pages, p.URL)
	}
	return pages
}

func (o *CaptureOptions) browserConfig(cfg *config.Config) capture.Config {
	bc := capture.Config{
		Remote:            cfg.Browser.Remote,
		Headless:          cfg.Browser.Headless && !o.Headful,
		Stealth:           cfg.Browser.Stealth,
		NavigationTimeout: cfg.Browser.NavigationTimeout,
		Registration:      cfg.Registration.Enabled,
		Marker:            cfg.Registration.Marker,
	}
	if o.Remote != "" {
		bc.Remote = o.Remote
	}
	return bc
}

func runCapture(opts *CaptureOptions, args []string, cmd *cobra.Command) error {
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	pages := capturePages(args, cfg)
	if len(pages) == 0 {
		return NewExitError(ExitCommandError, "no pages to capture: pass URLs or set pages in the config file")
	}
	settle := opts.Settle
	if settle <= 0 {
		settle = cfg.Browser.Settle
	}

	logger := opts.logger(cfg, cmd.ErrOrStderr())

	st, err := store.Open(databasePath(opts.Database, cfg))
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

	bc := opts.browserConfig(cfg)
	bc.Logger = logger
	capturer := capture.New(bc, eng)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := eng.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	if opts.Listen != "" {
		srv, err := server.New(eng, server.WithLogger(logger), server.WithWriteTimeout(cfg.Server.WriteTimeout))
		if err != nil {
			cancel()
			_ = g.Wait()
			return WrapExitError(ExitCommandError, "failed to create server", err)
		}
		g.Go(func() error {
			return srv.ListenAndServe(gctx, opts.Listen, func(addr net.Addr) {
				fmt.Fprintf(cmd.OutOrStdout(), "Listening on http://%s\n", addr)
			})
		})
	}

	g.Go(func() error {
		defer eng.Stop()
		defer func() {
			if err := capturer.Close(); err != nil {
				logger.Warn("closing browser", "error", err)
			}
		}()
		return drive(gctx, capturer, pages, settle, opts.Listen != "")
	})

	if err := g.Wait(); err != nil {
		return WrapExitError(ExitFailure, "capture failed", err)
	}

	result := CaptureResult{Pages: pages, Session: eng.Session()}
	eng.View(func(ids *identity.Store, h *engine.History) {
		result.Frames = len(ids.Frames())
		for _, rec := range h.Records() {
			result.Records++
			if _, ok := rec.SourceFrameID(); ok {
				result.Resolved++
			}
		}
	})

	f := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
	return f.Success(result.Session, result)
}

// drive opens every page, then either waits for ctx (serving) or for the
// settle period, and finally snapshots every tab's frame tree.
func drive(ctx context.Context, c *capture.Capturer, pages []string, settle time.Duration, serving bool) error {
	if err := c.Start(ctx); err != nil {
		return err
	}
	for _, u := range pages {
		if _, err := c.Open(ctx, u); err != nil {
			return fmt.Errorf("open %s: %w", u, err)
		}
	}

	if serving {
		<-ctx.Done()
		return nil
	}

	select {
	case <-ctx.Done():
		return nil
	case <-time.After(settle):
	}
	return c.SnapshotAll(ctx)
}
