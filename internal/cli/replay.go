package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/pmscope/internal/config"
	"github.com/roach88/pmscope/internal/engine"
	"github.com/roach88/pmscope/internal/identity"
	"github.com/roach88/pmscope/internal/store"
	"github.com/roach88/pmscope/internal/wire"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	logOptions
}

// ReplayResult holds the replay verification result.
type ReplayResult struct {
	Session       string `json:"session"`
	Events        int    `json:"events"`
	Records       int    `json:"records"`
	Fingerprint   string `json:"fingerprint"`
	Deterministic bool   `json:"deterministic"`
	Commutes      bool   `json:"commutes"`

	// Diverged lists record ids whose resolved identity differs in the
	// reordered replay.
	Diverged []string `json:"diverged,omitempty"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Replay a capture session and verify determinism",
		Long: `Replay a logged session and verify that identity resolution is
deterministic and independent of cross-context delivery order.

The session is replayed twice in log order and once with each capturing
context's events delivered in reverse order of first appearance. All three
identity graphs must have the same fingerprint, and every record must
resolve to the same frame and document.

Exit codes:
  0 - Replays agree
  1 - Replays diverged
  2 - Command error (database not found, etc.)

Examples:
  pmscope replay --db ./pmscope.db
  pmscope replay --db ./pmscope.db --session 0192f1c2-...
  pmscope replay --db ./pmscope.db --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, cmd)
		},
	}

	opts.bind(cmd)

	return cmd
}

func runReplay(opts *ReplayOptions, cmd *cobra.Command) error {
	ctx := commandContext(cmd)

	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	ls, err := readSession(ctx, databasePath(opts.Database, cfg), opts.Session)
	if err != nil {
		return err
	}

	f := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
	if len(ls.Events) == 0 {
		if f.JSON() {
			return f.Success("", ReplayResult{Deterministic: true, Commutes: true})
		}
		fmt.Fprintln(cmd.OutOrStdout(), "No sessions found in database.")
		return nil
	}

	result, err := verifyReplay(ctx, ls, cfg, opts.quietLogger(cmd.ErrOrStderr()))
	if err != nil {
		return err
	}

	if f.JSON() {
		if result.Deterministic && result.Commutes {
			return f.Success(result.Session, result)
		}
		if err := f.Failure(result.Session, result, "E_REPLAY_DIVERGED", "replay diverged"); err != nil {
			return err
		}
		return NewExitError(ExitFailure, "replay diverged")
	}

	return outputReplayText(cmd, result)
}

// verifyReplay replays ls twice in order and once reordered.
func verifyReplay(ctx context.Context, ls *loadedSession, cfg *config.Config, logger *slog.Logger) (ReplayResult, error) {
	result := ReplayResult{Session: ls.Session.ID, Events: len(ls.Events)}

	first, err := rebuild(ctx, ls, cfg, logger)
	if err != nil {
		return result, err
	}
	second, err := rebuild(ctx, ls, cfg, logger)
	if err != nil {
		return result, err
	}
	reordered, err := rebuild(ctx, &loadedSession{Session: ls.Session, Events: reverseSources(ls.Events)}, cfg, logger)
	if err != nil {
		return result, err
	}

	fp1, err := first.Fingerprint()
	if err != nil {
		return result, WrapExitError(ExitCommandError, "failed to fingerprint", err)
	}
	fp2, err := second.Fingerprint()
	if err != nil {
		return result, WrapExitError(ExitCommandError, "failed to fingerprint", err)
	}
	fp3, err := reordered.Fingerprint()
	if err != nil {
		return result, WrapExitError(ExitCommandError, "failed to fingerprint", err)
	}

	result.Fingerprint = fp1.String()
	result.Deterministic = fp1 == fp2
	result.Diverged = divergedRecords(first, reordered)
	result.Commutes = fp1 == fp3 && len(result.Diverged) == 0

	first.View(func(_ *identity.Store, h *engine.History) {
		result.Records = h.Len()
	})
	return result, nil
}

// reverseSources reorders logged events with engine.ReversedSourceOrder.
func reverseSources(events []store.StoredEvent) []store.StoredEvent {
	wireEvents := make([]wire.Event, len(events))
	for i, se := range events {
		wireEvents[i] = se.Event
	}
	out := make([]store.StoredEvent, 0, len(events))
	for _, i := range engine.ReversedSourceOrder(wireEvents) {
		out = append(out, events[i])
	}
	return out
}

// divergedRecords compares the frame and document every record resolves
// to. Arrival stamps and owner-element snapshots depend on delivery order
// and are ignored.
func divergedRecords(a, b *engine.Engine) []string {
	want := map[string]identity.Resolution{}
	a.View(func(_ *identity.Store, h *engine.History) {
		for _, rec := range h.Records() {
			want[rec.ID] = orderFree(rec.Resolve())
		}
	})

	var diverged []string
	b.View(func(_ *identity.Store, h *engine.History) {
		for _, rec := range h.Records() {
			if w, ok := want[rec.ID]; ok && !w.Equal(orderFree(rec.Resolve())) {
				diverged = append(diverged, rec.ID)
			}
		}
	})
	return diverged
}

func orderFree(r identity.Resolution) identity.Resolution {
	r.Seq = 0
	r.Target.OwnerElement = nil
	r.Source.OwnerElement = nil
	return r
}

// outputReplayText outputs the replay result as text.
func outputReplayText(cmd *cobra.Command, result ReplayResult) error {
	w := cmd.OutOrStdout()

	fmt.Fprintf(w, "Session: %s\n", result.Session)
	fmt.Fprintf(w, "Events: %d, records: %d\n", result.Events, result.Records)
	fmt.Fprintf(w, "Fingerprint: %s\n", result.Fingerprint)
	fmt.Fprintln(w)

	if result.Deterministic {
		fmt.Fprintln(w, "✓ Deterministic")
	} else {
		fmt.Fprintln(w, "✗ Non-deterministic (repeated replays differ)")
	}
	if result.Commutes {
		fmt.Fprintln(w, "✓ Order independent")
	} else {
		fmt.Fprintln(w, "✗ Order dependent (reversed-source replay differs)")
		for _, id := range result.Diverged {
			fmt.Fprintf(w, "  %s\n", id)
		}
	}

	if !result.Deterministic || !result.Commutes {
		return NewExitError(ExitFailure, "replay diverged")
	}
	return nil
}
