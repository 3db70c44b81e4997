package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/pmscope/internal/identity"
	"github.com/roach88/pmscope/internal/testutil"
	"github.com/roach88/pmscope/internal/wire"
)

// fixtureEvents is a child message whose sender is only known by window
// token, the sender's handshake, and a parent message back.
func fixtureEvents() []wire.Event {
	child := testutil.ChildSource("w-B@A", "b", "body > iframe")
	return []wire.Event{
		wire.MessageEvent(testutil.Message("m-1", 1, testutil.Target(0, "doc-A", "a"), child)),
		wire.MessageEvent(testutil.Handshake("m-2", 1, testutil.Target(0, "doc-A", "a"), child, 1, 1, "doc-B")),
		wire.MessageEvent(testutil.Message("m-3", 1, testutil.Target(1, "doc-B", "b"), testutil.ParentSource("doc-A", 0, "w-A@B", "a"))),
	}
}

// writeStream writes events as a JSON Lines file.
func writeStream(t *testing.T, events []wire.Event, extra ...string) string {
	t.Helper()
	var lines []string
	for _, ev := range events {
		line, err := wire.MarshalEvent(ev)
		require.NoError(t, err)
		lines = append(lines, string(line))
	}
	lines = append(lines, extra...)

	path := filepath.Join(t.TempDir(), "capture.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0644))
	return path
}

// execute runs the root command with args and an isolated config.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(append([]string{"--config", filepath.Join(t.TempDir(), "none.yaml")}, args...))
	err := cmd.Execute()
	return buf.String(), err
}

// ingestFixture logs fixtureEvents into a fresh database.
func ingestFixture(t *testing.T) string {
	t.Helper()
	db := filepath.Join(t.TempDir(), "pmscope.db")
	_, err := execute(t, "ingest", "--db", db, writeStream(t, fixtureEvents()))
	require.NoError(t, err)
	return db
}

func resolvedEnd(frame *int, documentID string) identity.ResolvedEnd {
	return identity.ResolvedEnd{FrameID: frame, DocumentID: documentID}
}
