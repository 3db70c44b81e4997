package engine

import (
	"strings"

	"github.com/roach88/pmscope/internal/identity"
	"github.com/roach88/pmscope/internal/wire"
)

// History is the ordered list of captured Records.
//
// History is not safe for concurrent use on its own; the engine mutates it
// under its write lock and hands it to View callbacks under the read lock.
type History struct {
	records []*identity.Record
	byID    map[string]*identity.Record
}

// NewHistory creates an empty history.
func NewHistory() *History {
	return &History{byID: make(map[string]*identity.Record)}
}

// Append adds rec at the end. The engine never appends two records with
// the same id.
func (h *History) Append(rec *identity.Record) {
	h.records = append(h.records, rec)
	if rec.ID != "" {
		h.byID[rec.ID] = rec
	}
}

// Records returns the records in arrival order. The slice is a copy.
func (h *History) Records() []*identity.Record {
	return append([]*identity.Record(nil), h.records...)
}

// Find returns the record with the given id, or nil.
func (h *History) Find(id string) *identity.Record {
	return h.byID[id]
}

// Len returns the number of records.
func (h *History) Len() int {
	return len(h.records)
}

// Clear removes every record.
func (h *History) Clear() {
	h.records = nil
	h.byID = make(map[string]*identity.Record)
}

// Filter selects records. Zero-valued fields match everything.
type Filter struct {
	// FrameID matches records whose target frame or resolved source
	// frame has this id.
	FrameID *int

	SourceType wire.SourceType

	// Origin matches the target or source origin exactly.
	Origin string

	// Text matches case-insensitively against the message type and the
	// data preview.
	Text string

	// HideRegistration drops handshake records.
	HideRegistration bool
}

// Filter returns the records matching f in arrival order. Source frame ids
// and origins are resolved at call time, so a record can start matching
// once a later handshake resolves its sender.
func (h *History) Filter(f Filter) []*identity.Record {
	text := strings.ToLower(f.Text)
	out := []*identity.Record{}
	for _, rec := range h.records {
		if f.matches(rec, text) {
			out = append(out, rec)
		}
	}
	return out
}

func (f Filter) matches(rec *identity.Record, lowerText string) bool {
	if f.HideRegistration && rec.Registration {
		return false
	}
	if f.SourceType != "" && rec.SourceType != f.SourceType {
		return false
	}
	if f.FrameID != nil {
		sourceID, ok := rec.SourceFrameID()
		if rec.TargetFrameID != *f.FrameID && (!ok || sourceID != *f.FrameID) {
			return false
		}
	}
	if f.Origin != "" {
		res := rec.Resolve()
		if res.Target.Origin != f.Origin && res.Source.Origin != f.Origin {
			return false
		}
	}
	if lowerText != "" {
		if !strings.Contains(strings.ToLower(rec.MessageType), lowerText) &&
			!strings.Contains(strings.ToLower(rec.DataPreview), lowerText) {
			return false
		}
	}
	return true
}
