package identity

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/pmscope/internal/reactive"
	"github.com/roach88/pmscope/internal/testutil"
	"github.com/roach88/pmscope/internal/wire"
)

// recordingNotifier captures every published batch.
type recordingNotifier struct {
	batches [][]reactive.Key
}

func (n *recordingNotifier) Publish(keys ...reactive.Key) {
	n.batches = append(n.batches, keys)
}

type docSummary struct {
	DocumentID string
	WindowIDs  []string
	URL        string
	Origin     string
	Title      string
	Frame      string
}

type frameSummary struct {
	Key             string
	ParentFrameID   int
	CurrentDocument string
	Owner           *OwnerElement
}

// summarize flattens everything reachable from the indices into values
// that can be compared across stores.
func summarize(s *Store) ([]docSummary, []frameSummary) {
	var docs []docSummary
	for _, d := range s.Documents() {
		ds := docSummary{
			DocumentID: d.DocumentID,
			WindowIDs:  s.WindowIDsOf(d),
			URL:        d.URL,
			Origin:     d.Origin,
			Title:      d.Title,
		}
		if d.Frame != nil {
			ds.Frame = d.Frame.Key().String()
		}
		docs = append(docs, ds)
	}

	var frames []frameSummary
	for _, f := range s.Frames() {
		fs := frameSummary{Key: f.Key().String(), ParentFrameID: f.ParentFrameID, Owner: f.CurrentOwnerElement}
		if f.CurrentDocument != nil {
			fs.CurrentDocument = f.CurrentDocument.DocumentID
		}
		frames = append(frames, fs)
	}
	return docs, frames
}

// observe routes m the way the engine does: handshakes go through the
// merge step as well.
func observe(s *Store, m wire.Message) *Record {
	if reg, ok := wire.ParseRegistration(m, ""); ok {
		return s.Observe(m, &reg)
	}
	return s.Observe(m, nil)
}

// Frames used across tests: A is the top frame of tab 1, B is embedded in
// A, C is embedded in B.
const (
	tab         = 1
	embedPathB  = "body > iframe:nth-of-type(1)"
	embedPathB2 = "body > div > iframe"
	embedPathC  = "body > iframe#c"
	windowAatB  = "w-A@B"
	windowBatA  = "w-B@A"
	windowBatC  = "w-B@C"
	windowCatB  = "w-C@B"
	documentA   = "doc-A"
	documentB   = "doc-B"
	documentC   = "doc-C"
	frameA      = 0
	frameB      = 1
	frameC      = 2
)

// msgBtoA is B posting to its parent A; A knows B only by token.
func msgBtoA(id string) wire.Message {
	return testutil.Message(id, tab, testutil.Target(frameA, documentA, "a"), testutil.ChildSource(windowBatA, "b", embedPathB))
}

// msgCtoB is C posting to B, which makes B a target.
func msgCtoB(id string) wire.Message {
	return testutil.Message(id, tab, testutil.Target(frameB, documentB, "b"), testutil.ChildSource(windowCatB, "c", embedPathC))
}

// handshakeB is B announcing itself to A.
func handshakeB(id string) wire.Message {
	return testutil.Handshake(id, tab, testutil.Target(frameA, documentA, "a"), testutil.ChildSource(windowBatA, "b", embedPathB), tab, frameB, documentB)
}

func requireSameDocument(t *testing.T, s *Store, windowID, documentID string) *Document {
	t.Helper()
	byWindow := s.DocumentByWindowID(windowID)
	byID := s.DocumentByID(documentID)
	require.NotNil(t, byWindow)
	require.NotNil(t, byID)
	require.Same(t, byID, byWindow)
	return byID
}
