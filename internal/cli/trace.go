package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/roach88/pmscope/internal/engine"
	"github.com/roach88/pmscope/internal/identity"
	"github.com/roach88/pmscope/internal/wire"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	logOptions

	Frame            int // -1 matches every frame
	SourceType       string
	Origin           string
	Query            string
	HideRegistration bool
}

// TraceResult holds the resolved records of a session.
type TraceResult struct {
	Session string                `json:"session"`
	Records []identity.Resolution `json:"records"`
	Total   int                   `json:"total"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "List captured messages with resolved senders",
		Long: `List the messages of a logged session with their target and source
resolved against the final identity graph.

Senders that were never identified are shown blank; nothing is guessed.

Examples:
  pmscope trace --db ./pmscope.db
  pmscope trace --db ./pmscope.db --frame 2 --type child
  pmscope trace --db ./pmscope.db --q ready --hide-registration
  pmscope trace --db ./pmscope.db --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	opts.bind(cmd)
	cmd.Flags().IntVar(&opts.Frame, "frame", -1, "only messages to or from this frame id")
	cmd.Flags().StringVar(&opts.SourceType, "type", "", "only this source type (self|parent|child|top|opener|unknown)")
	cmd.Flags().StringVar(&opts.Origin, "origin", "", "only messages to or from this origin")
	cmd.Flags().StringVar(&opts.Query, "q", "", "case-insensitive text in message type or preview")
	cmd.Flags().BoolVar(&opts.HideRegistration, "hide-registration", false, "hide handshake messages")

	return cmd
}

func (o *TraceOptions) filter() (engine.Filter, error) {
	f := engine.Filter{
		Origin:           o.Origin,
		Text:             o.Query,
		HideRegistration: o.HideRegistration,
	}
	if o.Frame >= 0 {
		frame := o.Frame
		f.FrameID = &frame
	}
	if o.SourceType != "" {
		st := wire.SourceType(o.SourceType)
		if !st.Valid() {
			return f, NewExitError(ExitCommandError, fmt.Sprintf("invalid --type %q", o.SourceType))
		}
		f.SourceType = st
	}
	return f, nil
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	ctx := commandContext(cmd)

	filter, err := opts.filter()
	if err != nil {
		return err
	}
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	ls, err := readSession(ctx, databasePath(opts.Database, cfg), opts.Session)
	if err != nil {
		return err
	}
	eng, err := rebuild(ctx, ls, cfg, opts.quietLogger(cmd.ErrOrStderr()))
	if err != nil {
		return err
	}

	result := TraceResult{Session: ls.Session.ID, Records: []identity.Resolution{}}
	eng.View(func(_ *identity.Store, h *engine.History) {
		result.Total = h.Len()
		for _, rec := range h.Filter(filter) {
			result.Records = append(result.Records, rec.Resolve())
		}
	})

	f := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
	if f.JSON() {
		return f.Success(result.Session, result)
	}
	return outputTraceText(cmd, result)
}

// outputTraceText outputs the records as a table.
func outputTraceText(cmd *cobra.Command, result TraceResult) error {
	w := cmd.OutOrStdout()

	if len(result.Records) == 0 {
		fmt.Fprintf(w, "No messages found (%d in session).\n", result.Total)
		return nil
	}

	header := []string{"SEQ", "ID", "TYPE", "TARGET", "SOURCE", "SOURCE ORIGIN", "DATA"}
	rows := make([][]string, 0, len(result.Records))
	for _, r := range result.Records {
		data := r.DataPreview
		if r.Registration {
			data = "[registration] " + data
		}
		rows = append(rows, []string{
			strconv.FormatInt(r.Seq, 10),
			r.ID,
			string(r.SourceType),
			endLabel(r.Target),
			endLabel(r.Source),
			r.Source.Origin,
			data,
		})
	}

	fmt.Fprint(w, renderTable(header, rows))
	fmt.Fprintln(w)
	fmt.Fprintln(w, dimStyle.Render(fmt.Sprintf("%d of %d message(s)", len(result.Records), result.Total)))
	return nil
}

// endLabel renders a resolved end as "frame N doc" or blank when nothing
// is known.
func endLabel(e identity.ResolvedEnd) string {
	switch {
	case e.FrameID != nil && e.DocumentID != "":
		return fmt.Sprintf("frame %d %s", *e.FrameID, e.DocumentID)
	case e.FrameID != nil:
		return fmt.Sprintf("frame %d", *e.FrameID)
	default:
		return e.DocumentID
	}
}
