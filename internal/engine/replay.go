package engine

import (
	"context"
	"fmt"

	"github.com/roach88/pmscope/internal/canon"
	"github.com/roach88/pmscope/internal/identity"
	"github.com/roach88/pmscope/internal/store"
)

// Replay rebuilds engine state from a logged session.
//
// The same code path handles live capture and replay: each stored event
// goes through Process on a fresh engine with no log attached. A stored
// event that fails validation is skipped and logged, exactly as it would
// have been live.
func Replay(ctx context.Context, events []store.StoredEvent, opts ...Option) (*Engine, error) {
	e, err := New(opts...)
	if err != nil {
		return nil, err
	}
	e.log = nil

	for _, se := range events {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		ev := FromWire(se.Event)
		if _, err := e.Process(ctx, ev); err != nil {
			if IsMalformedError(err) {
				e.logger.Warn("replay skipped malformed event", "seq", se.Seq, "error", err)
				continue
			}
			return nil, fmt.Errorf("replay event %d: %w", se.Seq, err)
		}
	}
	return e, nil
}

// FrameState is the resolved state of one frame slot.
type FrameState struct {
	TabID           int                    `json:"tabId"`
	FrameID         int                    `json:"frameId"`
	ParentFrameID   int                    `json:"parentFrameId"`
	CurrentDocument string                 `json:"currentDocument,omitempty"`
	OwnerElement    *identity.OwnerElement `json:"ownerElement,omitempty"`
}

// DocumentState is the resolved state of one document.
type DocumentState struct {
	DocumentID string   `json:"documentId,omitempty"`
	WindowIDs  []string `json:"windowIds,omitempty"`
	URL        string   `json:"url,omitempty"`
	Origin     string   `json:"origin,omitempty"`
	Title      string   `json:"title,omitempty"`
	Frame      string   `json:"frame,omitempty"`
}

// State is an order-independent summary of the identity graph. Two engines
// that saw the same events in any order produce equal States.
type State struct {
	Frames    []FrameState    `json:"frames"`
	Documents []DocumentState `json:"documents"`
}

// Snapshot summarises ids. Caller must hold read access (see View).
func Snapshot(ids *identity.Store) State {
	st := State{Frames: []FrameState{}, Documents: []DocumentState{}}
	for _, f := range ids.Frames() {
		fs := FrameState{
			TabID:         f.TabID,
			FrameID:       f.FrameID,
			ParentFrameID: f.ParentFrameID,
			OwnerElement:  f.CurrentOwnerElement,
		}
		if f.CurrentDocument != nil {
			fs.CurrentDocument = f.CurrentDocument.DocumentID
		}
		st.Frames = append(st.Frames, fs)
	}
	for _, d := range ids.Documents() {
		st.Documents = append(st.Documents, DocumentStateOf(ids, d))
	}
	return st
}

// DocumentStateOf summarises one document. Caller must hold read access.
func DocumentStateOf(ids *identity.Store, d *identity.Document) DocumentState {
	ds := DocumentState{
		DocumentID: d.DocumentID,
		WindowIDs:  ids.WindowIDsOf(d),
		URL:        d.URL,
		Origin:     d.Origin,
		Title:      d.Title,
	}
	if d.Frame != nil {
		ds.Frame = d.Frame.Key().String()
	}
	return ds
}

// State summarises the current identity graph.
func (e *Engine) State() State {
	var st State
	e.View(func(ids *identity.Store, _ *History) {
		st = Snapshot(ids)
	})
	return st
}

// Fingerprint is the BLAKE3 digest of the canonical State.
func (e *Engine) Fingerprint() (canon.Digest, error) {
	return canon.FingerprintDigest(e.State())
}
