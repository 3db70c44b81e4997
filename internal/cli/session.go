package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/pmscope/internal/config"
	"github.com/roach88/pmscope/internal/engine"
	"github.com/roach88/pmscope/internal/store"
)

// logOptions are the flags shared by commands that read a capture log.
type logOptions struct {
	Database string
	Session  string // optional - defaults to the latest session
}

func (o *logOptions) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.Database, "db", "", "path to SQLite capture log (default from config)")
	cmd.Flags().StringVar(&o.Session, "session", "", "session id (default: latest)")
}

// loadedSession is one logged session read back for inspection.
type loadedSession struct {
	Session store.Session
	Events  []store.StoredEvent
}

// databasePath resolves --db against the config.
func databasePath(flag string, cfg *config.Config) string {
	if flag != "" {
		return flag
	}
	return cfg.Database.Path
}

// readSession opens an existing log and reads one session. Reading never
// creates the database file.
func readSession(ctx context.Context, dbPath, sessionID string) (*loadedSession, error) {
	if _, err := os.Stat(dbPath); err != nil {
		return nil, WrapExitError(ExitCommandError, "database not found", err)
	}
	st, err := store.Open(dbPath)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	var sess store.Session
	if sessionID != "" {
		sess, err = st.Session(ctx, sessionID)
	} else {
		sess, err = st.LatestSession(ctx)
	}
	if errors.Is(err, store.ErrNoSession) {
		if sessionID != "" {
			return nil, NewExitError(ExitCommandError, fmt.Sprintf("session not found: %s", sessionID))
		}
		return &loadedSession{Events: []store.StoredEvent{}}, nil
	}
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to look up session", err)
	}

	events, err := st.ReadSession(ctx, sess.ID)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to read session", err)
	}
	return &loadedSession{Session: sess, Events: events}, nil
}

// engineOptions are the correlation settings every engine the CLI builds
// shares.
func engineOptions(cfg *config.Config, logger *slog.Logger) []engine.Option {
	return []engine.Option{
		engine.WithRegistration(cfg.Registration.Enabled),
		engine.WithRegistrationMarker(cfg.Registration.Marker),
		engine.WithLogger(logger),
	}
}

// rebuild replays a loaded session into a fresh engine.
func rebuild(ctx context.Context, ls *loadedSession, cfg *config.Config, logger *slog.Logger) (*engine.Engine, error) {
	eng, err := engine.Replay(ctx, ls.Events, engineOptions(cfg, logger)...)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to replay session", err)
	}
	return eng, nil
}

// commandContext returns the command's context, or Background when the
// command runs outside Execute (tests).
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
