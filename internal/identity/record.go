package identity

import (
	"encoding/json"

	"github.com/roach88/pmscope/internal/wire"
)

// Resolver is the read side of the identity graph that a Record resolves
// through. *Store implements it directly; Store.Tracked returns one that
// also records the keys each read depends on.
type Resolver interface {
	DocumentByID(documentID string) *Document
	DocumentByWindowID(windowID string) *Document
	FrameOf(d *Document) *Frame
}

// Record is one captured message. It stores the raw identity hints exactly
// as captured plus the owner-element snapshots taken at arrival; every
// resolved field is recomputed through the Resolver on each call.
//
// Calls must be serialised with Store mutation (the engine does this).
type Record struct {
	ID          string
	Seq         int64
	TabID       int
	Timestamp   float64
	MessageType string

	TargetDocumentID string
	TargetFrameID    int

	SourceType       wire.SourceType
	SourceOrigin     string
	SourceWindowID   string
	SourceDocumentID string
	// RawSourceFrameID is the frame id carried on the message itself,
	// only present when the receiver resolved the sender independently.
	RawSourceFrameID *int

	Data        json.RawMessage
	DataPreview string
	DataSize    int

	// Snapshots at arrival. Later owner-element changes on the frame do
	// not affect them.
	TargetOwnerElement *OwnerElement
	SourceOwnerElement *OwnerElement

	// Registration is set when the message carried a handshake that was
	// applied.
	Registration bool

	resolver Resolver
}

func newRecord(m wire.Message, targetOwner, sourceOwner *OwnerElement, r Resolver) *Record {
	return &Record{
		ID:                 m.ID,
		TabID:              m.TabID,
		Timestamp:          m.Timestamp,
		MessageType:        m.MessageType,
		TargetDocumentID:   m.Target.DocumentID,
		TargetFrameID:      m.Target.FrameID,
		SourceType:         m.Source.Type,
		SourceOrigin:       m.Source.Origin,
		SourceWindowID:     m.Source.WindowID,
		SourceDocumentID:   m.Source.DocumentID,
		RawSourceFrameID:   copyInt(m.Source.FrameID),
		Data:               m.Data,
		DataPreview:        m.DataPreview,
		DataSize:           m.DataSize,
		TargetOwnerElement: targetOwner,
		SourceOwnerElement: sourceOwner,
		resolver:           r,
	}
}

// With returns a shallow copy of the record that resolves through r.
func (rec *Record) With(r Resolver) *Record {
	cp := *rec
	cp.resolver = r
	return &cp
}

// TargetDocument resolves the receiving document.
func (rec *Record) TargetDocument() *Document {
	return rec.resolver.DocumentByID(rec.TargetDocumentID)
}

// SourceDocument resolves the sender: by document id first, then by window
// token. Once an id-keyed document exists it is the authoritative one.
func (rec *Record) SourceDocument() *Document {
	if rec.SourceDocumentID != "" {
		if d := rec.resolver.DocumentByID(rec.SourceDocumentID); d != nil {
			return d
		}
	}
	return rec.resolver.DocumentByWindowID(rec.SourceWindowID)
}

// TargetFrame is the target document's frame, or nil.
func (rec *Record) TargetFrame() *Frame {
	return rec.resolver.FrameOf(rec.TargetDocument())
}

// SourceFrame is the source document's frame, or nil.
func (rec *Record) SourceFrame() *Frame {
	return rec.resolver.FrameOf(rec.SourceDocument())
}

// SourceFrameID is the sender's frame id for filtering and display. The id
// carried on the message wins over the resolved frame; ok is false when
// neither is known.
func (rec *Record) SourceFrameID() (id int, ok bool) {
	if rec.RawSourceFrameID != nil {
		return *rec.RawSourceFrameID, true
	}
	if f := rec.SourceFrame(); f != nil {
		return f.FrameID, true
	}
	return 0, false
}

func copyInt(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
