package identity

import "fmt"

// FrameKey identifies a browsing-context slot.
type FrameKey struct {
	TabID   int
	FrameID int
}

func (k FrameKey) String() string {
	return fmt.Sprintf("%d/%d", k.TabID, k.FrameID)
}

// Frame is a browsing-context slot. It survives navigation: each load
// produces a new Document while the Frame stays.
//
// Fields are mutated only by Store.
type Frame struct {
	TabID   int
	FrameID int

	// ParentFrameID is -1 for a top-level frame and for frames whose parent
	// has not been observed.
	ParentFrameID int

	CurrentDocument     *Document
	CurrentOwnerElement *OwnerElement
}

// Key returns the frame's index key.
func (f *Frame) Key() FrameKey {
	return FrameKey{TabID: f.TabID, FrameID: f.FrameID}
}

// Document is one loaded document inside one browsing context.
//
// Before correlation the same real document may exist twice: once keyed by
// window token and once keyed by document id. Empty strings mean "not yet
// known". Fields are mutated only by Store.
type Document struct {
	DocumentID string
	WindowID   string
	URL        string
	Origin     string
	Title      string

	Frame *Frame
}

// OwnerElement is an immutable snapshot of how a child context is embedded.
// Instances are never mutated; a changed embedding produces a new value.
type OwnerElement struct {
	DOMPath string `json:"domPath"`
	Src     string `json:"src,omitempty"`
	ID      string `json:"id,omitempty"`
}

// Equal compares by value. A nil element equals only another nil.
func (o *OwnerElement) Equal(other *OwnerElement) bool {
	if o == nil || other == nil {
		return o == nil && other == nil
	}
	return o.DOMPath == other.DOMPath && o.Src == other.Src && o.ID == other.ID
}
