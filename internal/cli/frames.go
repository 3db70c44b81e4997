package cli

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/pmscope/internal/engine"
)

// FramesOptions holds flags for the frames command.
type FramesOptions struct {
	*RootOptions
	logOptions
}

// FramesResult is the identity graph of a session.
type FramesResult struct {
	Session string       `json:"session"`
	State   engine.State `json:"state"`
}

// NewFramesCommand creates the frames command.
func NewFramesCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &FramesOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "frames",
		Short: "Show the frame tree of a session",
		Long: `Show every known frame of a logged session as a tree per tab, with
the document currently loaded in it and the element that embeds it.

Documents seen only through a window token, with no frame yet, are
listed separately.

Examples:
  pmscope frames --db ./pmscope.db
  pmscope frames --db ./pmscope.db --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFrames(opts, cmd)
		},
	}

	opts.bind(cmd)

	return cmd
}

func runFrames(opts *FramesOptions, cmd *cobra.Command) error {
	ctx := commandContext(cmd)

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

	result := FramesResult{Session: ls.Session.ID, State: eng.State()}

	f := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
	if f.JSON() {
		return f.Success(result.Session, result)
	}
	writeFrameTree(cmd.OutOrStdout(), result.State)
	return nil
}

// writeFrameTree prints each tab's frames nested under their parents.
// Frames whose parent is unknown are printed at the top level.
func writeFrameTree(w io.Writer, st engine.State) {
	if len(st.Frames) == 0 && len(st.Documents) == 0 {
		fmt.Fprintln(w, "No frames found.")
		return
	}

	docs := map[string]engine.DocumentState{}
	for _, d := range st.Documents {
		if d.DocumentID != "" {
			docs[d.DocumentID] = d
		}
	}

	type slot struct{ tab, frame int }
	known := map[slot]bool{}
	children := map[slot][]engine.FrameState{}
	tabs := map[int][]engine.FrameState{}
	for _, fs := range st.Frames {
		known[slot{fs.TabID, fs.FrameID}] = true
	}
	for _, fs := range st.Frames {
		parent := slot{fs.TabID, fs.ParentFrameID}
		if fs.ParentFrameID >= 0 && known[parent] {
			children[parent] = append(children[parent], fs)
		} else {
			tabs[fs.TabID] = append(tabs[fs.TabID], fs)
		}
	}

	tabIDs := make([]int, 0, len(tabs))
	for id := range tabs {
		tabIDs = append(tabIDs, id)
	}
	sort.Ints(tabIDs)

	var walk func(fs engine.FrameState, depth int)
	walk = func(fs engine.FrameState, depth int) {
		fmt.Fprintf(w, "%s%s\n", strings.Repeat("  ", depth+1), frameLine(fs, docs))
		for _, child := range children[slot{fs.TabID, fs.FrameID}] {
			walk(child, depth+1)
		}
	}

	for _, id := range tabIDs {
		fmt.Fprintln(w, headerStyle.Render(fmt.Sprintf("Tab %d", id)))
		for _, fs := range tabs[id] {
			walk(fs, 0)
		}
	}

	var floating []engine.DocumentState
	for _, d := range st.Documents {
		if d.Frame == "" {
			floating = append(floating, d)
		}
	}
	if len(floating) > 0 {
		fmt.Fprintln(w, headerStyle.Render("Unplaced documents"))
		for _, d := range floating {
			fmt.Fprintf(w, "  %s\n", documentLabel(d))
		}
	}
}

func frameLine(fs engine.FrameState, docs map[string]engine.DocumentState) string {
	parts := []string{fmt.Sprintf("frame %d", fs.FrameID)}
	if fs.CurrentDocument != "" {
		if d, ok := docs[fs.CurrentDocument]; ok {
			parts = append(parts, documentLabel(d))
		} else {
			parts = append(parts, fs.CurrentDocument)
		}
	}
	if fs.OwnerElement != nil && fs.OwnerElement.DOMPath != "" {
		parts = append(parts, dimStyle.Render("<"+fs.OwnerElement.DOMPath+">"))
	}
	return strings.Join(parts, "  ")
}

func documentLabel(d engine.DocumentState) string {
	parts := []string{}
	if d.DocumentID != "" {
		parts = append(parts, d.DocumentID)
	}
	if len(d.WindowIDs) > 0 {
		parts = append(parts, "win "+strings.Join(d.WindowIDs, ","))
	}
	switch {
	case d.URL != "":
		parts = append(parts, truncate(d.URL, maxCellWidth))
	case d.Origin != "":
		parts = append(parts, d.Origin)
	}
	return strings.Join(parts, " ")
}
