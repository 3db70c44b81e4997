package testutil

import (
	"strings"

	"github.com/roach88/pmscope/internal/wire"
)

// Builders for captured messages. Origins are derived from a short host
// label: "a" becomes https://a.example.

// Origin returns the test origin for label.
func Origin(label string) string {
	return "https://" + strings.ToLower(label) + ".example"
}

// Target builds a fully populated target for a document in frameID.
func Target(frameID int, documentID, label string) wire.Target {
	return wire.Target{
		URL:           Origin(label) + "/",
		Origin:        Origin(label),
		DocumentTitle: strings.ToUpper(label),
		FrameID:       frameID,
		DocumentID:    documentID,
	}
}

// WindowSource builds a sender known only by its window token.
func WindowSource(t wire.SourceType, windowID, label string) wire.Source {
	return wire.Source{Type: t, Origin: Origin(label), WindowID: windowID}
}

// ChildSource builds a child sender with an embedding snapshot.
func ChildSource(windowID, label, domPath string) wire.Source {
	return wire.Source{
		Type:          wire.SourceChild,
		Origin:        Origin(label),
		WindowID:      windowID,
		IframeDomPath: domPath,
		IframeSrc:     Origin(label) + "/",
	}
}

// ParentSource builds a parent sender resolved independently by the
// receiver's host.
func ParentSource(documentID string, frameID int, windowID, label string) wire.Source {
	return wire.Source{
		Type:       wire.SourceParent,
		Origin:     Origin(label),
		WindowID:   windowID,
		DocumentID: documentID,
		FrameID:    wire.IntPtr(frameID),
	}
}

// Message assembles a captured message in tab.
func Message(id string, tab int, target wire.Target, source wire.Source) wire.Message {
	return wire.Message{
		ID:          id,
		TabID:       tab,
		MessageType: "message",
		Target:      target,
		Source:      source,
		Data:        []byte(`{"id":"` + id + `"}`),
		DataPreview: `{id: "` + id + `"}`,
		DataSize:    len(id) + 9,
	}
}

// Handshake builds the message a context sends to announce itself: it is
// delivered to target and carries the sender's own tab, frame and
// document. source is the sender as the receiver observes it.
func Handshake(id string, tab int, target wire.Target, source wire.Source, selfTab, selfFrame int, selfDocumentID string) wire.Message {
	m := Message(id, tab, target, source)
	m.Data = wire.RegistrationData("", selfTab, selfFrame, selfDocumentID)
	m.DataPreview = "registration"
	m.DataSize = len(m.Data)
	return m
}

// Registration parses the handshake carried by m, panicking if m is not one.
func Registration(m wire.Message) wire.Registration {
	reg, ok := wire.ParseRegistration(m, "")
	if !ok {
		panic("testutil: message " + m.ID + " is not a handshake")
	}
	return reg
}
