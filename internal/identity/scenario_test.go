package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/pmscope/internal/testutil"
	"github.com/roach88/pmscope/internal/wire"
)

// A (tab 1, frame 0) posts to B (frame 1, doc-B). B's observer knows A only
// by the token it assigned.
func msgAtoB(id string) wire.Message {
	return testutil.Message(id, tab, testutil.Target(frameB, documentB, "b"), testutil.WindowSource(wire.SourceParent, windowAatB, "a"))
}

func TestScenario_SourceUnresolvedWithoutRegistration(t *testing.T) {
	s := NewStore()
	rec := s.ProcessMessage(msgAtoB("m-1"))

	assert.Nil(t, rec.SourceFrame())
	require.NotNil(t, rec.SourceDocument())
	assert.Equal(t, testutil.Origin("a"), rec.SourceDocument().Origin)
	assert.Equal(t, "", rec.SourceDocument().DocumentID)

	res := rec.Resolve()
	assert.Nil(t, res.Source.FrameID)
	assert.Equal(t, "", res.Source.DocumentID)
	require.NotNil(t, res.Target.FrameID)
	assert.Equal(t, frameB, *res.Target.FrameID)
}

func TestScenario_HandshakeNamesItsSender(t *testing.T) {
	s := NewStore()
	observe(s, msgAtoB("m-1"))
	observe(s, handshakeB("h-1"))

	doc := requireSameDocument(t, s, windowBatA, documentB)
	require.NotNil(t, doc.Frame)
	assert.Equal(t, frameB, doc.Frame.FrameID)
}

func TestScenario_ChainCollapsesSplitIdentity(t *testing.T) {
	s := NewStore()

	// 1. B posts to A: at A, B is a window token.
	rec1 := observe(s, msgBtoA("m-1"))
	assert.Nil(t, rec1.SourceFrame())

	// 2. C posts to B: B becomes a target with its real document id.
	observe(s, msgCtoB("m-2"))
	require.NotSame(t, s.DocumentByWindowID(windowBatA), s.DocumentByID(documentB), "split before the handshake")
	assert.Nil(t, rec1.SourceFrame(), "still split")

	// 3. B's handshake.
	observe(s, handshakeB("h-3"))

	requireSameDocument(t, s, windowBatA, documentB)
	f := rec1.SourceFrame()
	require.NotNil(t, f)
	assert.Equal(t, frameB, f.FrameID)

	id, ok := rec1.SourceFrameID()
	require.True(t, ok)
	assert.Equal(t, frameB, id)

	res := rec1.Resolve()
	assert.Equal(t, documentB, res.Source.DocumentID)
	assert.Equal(t, testutil.Origin("b")+"/", res.Source.URL, "fields learned as a target now show on the source side")
}

func TestScenario_ChainWithResolvedParentSource(t *testing.T) {
	s := NewStore()

	// B posts down to C; C's host resolves B's document and frame.
	down := testutil.Message("m-1", tab, testutil.Target(frameC, documentC, "c"), testutil.ParentSource(documentB, frameB, windowBatC, "b"))
	rec1 := observe(s, down)

	id, ok := rec1.SourceFrameID()
	require.True(t, ok)
	assert.Equal(t, frameB, id)
	assert.Nil(t, rec1.SourceFrame(), "raw id known, frame link not yet")

	observe(s, msgCtoB("m-2"))
	observe(s, handshakeB("h-3"))

	requireSameDocument(t, s, windowBatA, documentB)
	requireSameDocument(t, s, windowBatC, documentB)
	require.NotNil(t, rec1.SourceFrame())
	assert.Equal(t, frameB, rec1.SourceFrame().FrameID)
}

func TestScenario_ClearForgetsEverything(t *testing.T) {
	s := NewStore()
	rec1 := observe(s, msgBtoA("m-1"))
	observe(s, msgCtoB("m-2"))
	observe(s, handshakeB("h-3"))

	s.Clear()

	for _, fk := range []FrameKey{{tab, frameA}, {tab, frameB}, {tab, frameC}} {
		assert.Nil(t, s.Frame(fk.TabID, fk.FrameID), fk.String())
	}
	for _, id := range []string{documentA, documentB} {
		assert.Nil(t, s.DocumentByID(id), id)
	}
	for _, w := range []string{windowBatA, windowCatB} {
		assert.Nil(t, s.DocumentByWindowID(w), w)
	}
	assert.Nil(t, rec1.SourceDocument(), "records resolve against the cleared store")
	assert.Nil(t, rec1.TargetDocument())
}
