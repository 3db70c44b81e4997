package engine

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/pmscope/internal/testutil"
	"github.com/roach88/pmscope/internal/wire"
)

// Tab 1: A is the top frame, B is embedded in A at frame 2.
const (
	tab        = 1
	frameA     = 0
	frameB     = 2
	documentA  = "doc-A"
	documentB  = "doc-B"
	windowBatA = "w-B@A"
	windowAatB = "w-A@B"
	embedPathB = "body > iframe"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestEngine(t *testing.T, opts ...Option) *Engine {
	t.Helper()
	opts = append([]Option{WithLogger(discardLogger())}, opts...)
	e, err := New(opts...)
	require.NoError(t, err)
	return e
}

// msgBtoA is delivered to A from its child B, which A knows only by token.
func msgBtoA(id string) wire.Message {
	return testutil.Message(id, tab,
		testutil.Target(frameA, documentA, "a"),
		testutil.ChildSource(windowBatA, "b", embedPathB))
}

// msgAtoB is delivered to B from its parent A, resolved by B's host.
func msgAtoB(id string) wire.Message {
	return testutil.Message(id, tab,
		testutil.Target(frameB, documentB, "b"),
		testutil.ParentSource(documentA, frameA, windowAatB, "a"))
}

// handshakeB is B announcing itself to A.
func handshakeB(id string) wire.Message {
	return testutil.Handshake(id, tab,
		testutil.Target(frameA, documentA, "a"),
		testutil.ChildSource(windowBatA, "b", embedPathB),
		tab, frameB, documentB)
}

func process(t *testing.T, e *Engine, msgs ...wire.Message) {
	t.Helper()
	for _, m := range msgs {
		_, err := e.Process(context.Background(), MessageEvent(m))
		require.NoError(t, err, m.ID)
	}
}
