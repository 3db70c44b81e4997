package capture

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/pmscope/internal/wire"
)

// hookPayload is what hook.js reports through the binding for each
// message event. Identifiers the page cannot know are filled in by the
// tab from CDP state.
type hookPayload struct {
	MessageType   string          `json:"messageType"`
	Timestamp     float64         `json:"timestamp"`
	URL           string          `json:"url"`
	Origin        string          `json:"origin"`
	DocumentTitle string          `json:"documentTitle"`
	SourceType    wire.SourceType `json:"sourceType"`
	SourceOrigin  string          `json:"sourceOrigin"`
	WindowID      string          `json:"windowId"`
	IframeSrc     string          `json:"iframeSrc"`
	IframeID      string          `json:"iframeId"`
	IframeDomPath string          `json:"iframeDomPath"`
	Data          string          `json:"data"`
	DataPreview   string          `json:"dataPreview"`
	DataSize      int             `json:"dataSize"`
}

func decodeHookPayload(raw string) (hookPayload, error) {
	var p hookPayload
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return hookPayload{}, fmt.Errorf("capture: decode hook payload: %w", err)
	}
	return p, nil
}

// senders holds the resolvable relatives of the receiving frame. A nil
// entry means that relative is unknown.
type senders struct {
	Parent *frameRef
	Top    *frameRef
}

// message builds the captured message for a payload received in target.
// Parent and top senders are resolved from the frame tree, so their
// document ids are trustworthy; every other sender is known only by its
// window token.
func (p hookPayload) message(tabID int, target frameRef, rel senders) wire.Message {
	src := wire.Source{
		Type:          p.SourceType,
		Origin:        p.SourceOrigin,
		WindowID:      p.WindowID,
		IframeSrc:     p.IframeSrc,
		IframeID:      p.IframeID,
		IframeDomPath: p.IframeDomPath,
	}
	if !src.Type.Valid() {
		src.Type = wire.SourceUnknown
	}

	var sender *frameRef
	switch src.Type {
	case wire.SourceParent:
		sender = rel.Parent
	case wire.SourceTop:
		sender = rel.Top
	}
	if sender != nil && sender.DocumentID != "" {
		src.DocumentID = sender.DocumentID
		src.FrameID = wire.IntPtr(sender.FrameID)
	}

	return wire.Message{
		TabID:       tabID,
		Timestamp:   p.Timestamp,
		MessageType: p.MessageType,
		Target: wire.Target{
			URL:           p.URL,
			Origin:        p.Origin,
			DocumentTitle: p.DocumentTitle,
			FrameID:       target.FrameID,
			DocumentID:    target.DocumentID,
		},
		Source:      src,
		Data:        payloadData(p.Data),
		DataPreview: p.DataPreview,
		DataSize:    p.DataSize,
	}
}

// payloadData keeps the page's serialisation when it is valid JSON and
// wraps it as a JSON string otherwise.
func payloadData(s string) json.RawMessage {
	if s == "" {
		return nil
	}
	if json.Valid([]byte(s)) {
		return json.RawMessage(s)
	}
	b, _ := json.Marshal(s)
	return b
}

// registrationScript is evaluated in a frame's default context to announce
// the frame to its parent and opener.
func registrationScript(marker string, tabID, frameID int, documentID string) string {
	data := wire.RegistrationData(marker, tabID, frameID, documentID)
	return "window.__pmscopeRegister && window.__pmscopeRegister(" + string(data) + ")"
}
