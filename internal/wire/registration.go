package wire

import (
	"bytes"
	"encoding/json"
)

// DefaultRegistrationMarker is the data.type value that marks a captured
// message as a correlation handshake.
const DefaultRegistrationMarker = "__pmscope_register__"

// Registration is a correlation handshake: a context announcing its own
// identifiers to the context it ascends to.
//
// FrameID, TabID and DocumentID come from the payload. WindowID and the
// embedding fields come from the carrying message's source, because the
// receiving observer is the one that assigned the token and saw the
// embedding element.
type Registration struct {
	FrameID    int
	TabID      int
	DocumentID string
	WindowID   string

	IframeSrc     string
	IframeID      string
	IframeDomPath string
}

// HasEmbedding reports whether the handshake carries an embedding snapshot.
func (r Registration) HasEmbedding() bool {
	return r.IframeDomPath != "" || r.IframeSrc != "" || r.IframeID != ""
}

type registrationPayload struct {
	Type       string `json:"type"`
	FrameID    *int   `json:"frameId"`
	TabID      *int   `json:"tabId"`
	DocumentID string `json:"documentId"`
}

// ParseRegistration recognises a handshake purely by data.type == marker.
// A payload carrying the marker but missing frameId, tabId or documentId is
// not a usable handshake and reports false.
func ParseRegistration(m Message, marker string) (Registration, bool) {
	if marker == "" {
		marker = DefaultRegistrationMarker
	}
	data := bytes.TrimSpace(m.Data)
	if len(data) == 0 || data[0] != '{' {
		return Registration{}, false
	}

	var p registrationPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return Registration{}, false
	}
	if p.Type != marker || p.FrameID == nil || p.TabID == nil || p.DocumentID == "" {
		return Registration{}, false
	}

	return Registration{
		FrameID:       *p.FrameID,
		TabID:         *p.TabID,
		DocumentID:    p.DocumentID,
		WindowID:      m.Source.WindowID,
		IframeSrc:     m.Source.IframeSrc,
		IframeID:      m.Source.IframeID,
		IframeDomPath: m.Source.IframeDomPath,
	}, true
}

// RegistrationData builds the handshake payload for a context.
func RegistrationData(marker string, tabID, frameID int, documentID string) json.RawMessage {
	if marker == "" {
		marker = DefaultRegistrationMarker
	}
	b, _ := json.Marshal(registrationPayload{
		Type:       marker,
		FrameID:    &frameID,
		TabID:      &tabID,
		DocumentID: documentID,
	})
	return b
}
