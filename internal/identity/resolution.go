package identity

import (
	"reflect"

	"github.com/roach88/pmscope/internal/wire"
)

// Resolution is a point-in-time value of everything a Record resolves to.
// Unknown fields are empty; nothing is filled with placeholder text.
type Resolution struct {
	ID          string          `json:"id"`
	Seq         int64           `json:"seq"`
	TabID       int             `json:"tabId"`
	Timestamp   float64         `json:"timestamp,omitempty"`
	MessageType string          `json:"messageType,omitempty"`
	SourceType  wire.SourceType `json:"sourceType"`

	Target ResolvedEnd `json:"target"`
	Source ResolvedEnd `json:"source"`

	DataPreview  string `json:"dataPreview,omitempty"`
	DataSize     int    `json:"dataSize,omitempty"`
	Registration bool   `json:"registration,omitempty"`
}

// ResolvedEnd is one side of a resolved message. WindowID is only set on
// the source side and is the token carried by the message itself.
type ResolvedEnd struct {
	DocumentID string `json:"documentId,omitempty"`
	WindowID   string `json:"windowId,omitempty"`
	URL        string `json:"url,omitempty"`
	Origin     string `json:"origin,omitempty"`
	Title      string `json:"title,omitempty"`

	// FrameID is nil while the frame is unresolved.
	FrameID *int `json:"frameId,omitempty"`

	OwnerElement *OwnerElement `json:"ownerElement,omitempty"`
}

// Resolve evaluates every computed field of the record now.
func (rec *Record) Resolve() Resolution {
	res := Resolution{
		ID:           rec.ID,
		Seq:          rec.Seq,
		TabID:        rec.TabID,
		Timestamp:    rec.Timestamp,
		MessageType:  rec.MessageType,
		SourceType:   rec.SourceType,
		DataPreview:  rec.DataPreview,
		DataSize:     rec.DataSize,
		Registration: rec.Registration,
	}

	res.Target = resolveEnd(rec.TargetDocument(), rec.TargetFrame())
	res.Target.OwnerElement = rec.TargetOwnerElement

	res.Source = resolveEnd(rec.SourceDocument(), nil)
	res.Source.WindowID = rec.SourceWindowID
	if res.Source.Origin == "" {
		res.Source.Origin = rec.SourceOrigin
	}
	if id, ok := rec.SourceFrameID(); ok {
		res.Source.FrameID = &id
	}
	res.Source.OwnerElement = rec.SourceOwnerElement

	return res
}

func resolveEnd(d *Document, f *Frame) ResolvedEnd {
	var end ResolvedEnd
	if d != nil {
		end.DocumentID = d.DocumentID
		end.URL = d.URL
		end.Origin = d.Origin
		end.Title = d.Title
	}
	if f != nil {
		id := f.FrameID
		end.FrameID = &id
	}
	return end
}

// Equal compares two resolutions by value.
func (r Resolution) Equal(other Resolution) bool {
	return reflect.DeepEqual(r, other)
}
