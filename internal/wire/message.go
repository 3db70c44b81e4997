package wire

import "encoding/json"

// SourceType classifies the sender relative to the receiving context.
type SourceType string

const (
	SourceSelf    SourceType = "self"
	SourceParent  SourceType = "parent"
	SourceChild   SourceType = "child"
	SourceTop     SourceType = "top"
	SourceOpener  SourceType = "opener"
	SourceUnknown SourceType = "unknown"
)

// SourceTypes lists every valid SourceType in display order.
var SourceTypes = []SourceType{SourceSelf, SourceParent, SourceChild, SourceTop, SourceOpener, SourceUnknown}

// Valid reports whether t is one of the known source types.
func (t SourceType) Valid() bool {
	for _, known := range SourceTypes {
		if t == known {
			return true
		}
	}
	return false
}

// Target is the receiving side of a captured message. It is observed from
// the receiver's own execution context and is always trustworthy.
type Target struct {
	URL           string `json:"url,omitempty"`
	Origin        string `json:"origin,omitempty"`
	DocumentTitle string `json:"documentTitle,omitempty"`
	FrameID       int    `json:"frameId"`
	DocumentID    string `json:"documentId"`
}

// Source is the sending side of a captured message. Which fields are set
// depends on the direction of the message.
type Source struct {
	Type   SourceType `json:"type"`
	Origin string     `json:"origin,omitempty"`

	// WindowID is the observer-assigned token for the sender window.
	// A JSON null decodes to "".
	WindowID string `json:"windowId,omitempty"`

	// DocumentID and FrameID are only known when the receiver's host can
	// resolve the sender independently.
	DocumentID string `json:"documentId,omitempty"`
	FrameID    *int   `json:"frameId,omitempty"`

	// Embedding snapshot, set for child senders.
	IframeSrc     string `json:"iframeSrc,omitempty"`
	IframeID      string `json:"iframeId,omitempty"`
	IframeDomPath string `json:"iframeDomPath,omitempty"`
}

// HasEmbedding reports whether any embedding snapshot field is set.
func (s Source) HasEmbedding() bool {
	return s.IframeDomPath != "" || s.IframeSrc != "" || s.IframeID != ""
}

// Message is one captured cross-document message.
//
// TabID is stamped by the transport with the tab of the capturing context.
// ID may be empty, in which case the engine assigns one.
type Message struct {
	ID          string          `json:"id,omitempty"`
	TabID       int             `json:"tabId"`
	Timestamp   float64         `json:"timestamp,omitempty"`
	MessageType string          `json:"messageType,omitempty"`
	Target      Target          `json:"target"`
	Source      Source          `json:"source"`
	Data        json.RawMessage `json:"data,omitempty"`
	DataPreview string          `json:"dataPreview,omitempty"`
	DataSize    int             `json:"dataSize,omitempty"`
}

// IntPtr returns a pointer to v, for building optional frame ids.
func IntPtr(v int) *int {
	return &v
}
