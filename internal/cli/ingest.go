package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/pmscope/internal/engine"
	"github.com/roach88/pmscope/internal/identity"
	"github.com/roach88/pmscope/internal/store"
	"github.com/roach88/pmscope/internal/wire"
)

// IngestOptions holds flags for the ingest command.
type IngestOptions struct {
	*RootOptions
	Database string
}

// IngestRejection is one stream entry that was not applied.
type IngestRejection struct {
	Line  int    `json:"line,omitempty"`
	Error string `json:"error"`
}

// IngestResult summarises one ingested stream.
type IngestResult struct {
	Session    string            `json:"session,omitempty"`
	Messages   int               `json:"messages"`
	Topologies int               `json:"topologies"`
	Clears     int               `json:"clears"`
	Records    int               `json:"records"`
	Resolved   int               `json:"resolved_sources"`
	Rejected   []IngestRejection `json:"rejected"`
}

func (r IngestResult) String() string {
	s := fmt.Sprintf("Ingested %d message(s), %d topology snapshot(s), %d clear(s)\n", r.Messages, r.Topologies, r.Clears)
	s += fmt.Sprintf("Records: %d (%d with a resolved source frame)\n", r.Records, r.Resolved)
	if r.Session != "" {
		s += fmt.Sprintf("Session: %s\n", r.Session)
	}
	if len(r.Rejected) > 0 {
		s += fmt.Sprintf("Rejected: %d\n", len(r.Rejected))
		for _, rej := range r.Rejected {
			s += fmt.Sprintf("  line %d: %s\n", rej.Line, rej.Error)
		}
	}
	return s
}

// NewIngestCommand creates the ingest command.
func NewIngestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &IngestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "ingest [file|-]",
		Short: "Process a captured event stream into the log",
		Long: `Process a JSON Lines stream of captured messages, topology snapshots
and clears, resolving identities as they arrive and appending every
accepted event to the capture log.

Malformed lines are reported and skipped; they never change state.

Examples:
  pmscope ingest --db ./pmscope.db capture.jsonl
  cat capture.jsonl | pmscope ingest --db ./pmscope.db -`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			input := "-"
			if len(args) == 1 {
				input = args[0]
			}
			return runIngest(opts, input, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite capture log (default from config)")

	return cmd
}

func runIngest(opts *IngestOptions, input string, cmd *cobra.Command) error {
	ctx := commandContext(cmd)

	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}

	var r io.Reader = cmd.InOrStdin()
	if input != "-" {
		f, err := os.Open(input)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open input", err)
		}
		defer f.Close()
		r = f
	}

	st, err := store.Open(databasePath(opts.Database, cfg))
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	logger := opts.quietLogger(cmd.ErrOrStderr())
	eng, err := engine.New(append(engineOptions(cfg, logger), engine.WithLog(st))...)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to create engine", err)
	}

	validator, err := wire.NewValidator()
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to create validator", err)
	}

	result := IngestResult{Rejected: []IngestRejection{}}
	reader := wire.NewReader(r, validator)
	for {
		ev, err := reader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		var lineErr *wire.LineError
		if errors.As(err, &lineErr) {
			logger.Warn("skipping malformed line", "line", lineErr.Line, "error", lineErr.Err)
			result.Rejected = append(result.Rejected, IngestRejection{Line: lineErr.Line, Error: lineErr.Err.Error()})
			continue
		}
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read input", err)
		}

		if _, err := eng.Process(ctx, engine.FromWire(ev)); err != nil {
			if engine.IsMalformedError(err) {
				result.Rejected = append(result.Rejected, IngestRejection{Error: err.Error()})
				continue
			}
			return WrapExitError(ExitCommandError, "failed to process event", err)
		}

		switch ev.Kind {
		case wire.KindMessage:
			result.Messages++
		case wire.KindTopology:
			result.Topologies++
		case wire.KindClear:
			result.Clears++
		}
	}

	eng.View(func(_ *identity.Store, h *engine.History) {
		for _, rec := range h.Records() {
			result.Records++
			if _, ok := rec.SourceFrameID(); ok {
				result.Resolved++
			}
		}
	})
	result.Session = eng.Session()

	f := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
	return f.Success(result.Session, result)
}
