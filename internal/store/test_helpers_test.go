package store

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/roach88/pmscope/internal/wire"
)

// createTestStore opens a fresh store in a temp directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testMessage(id string) wire.Message {
	return wire.Message{
		ID:          id,
		TabID:       7,
		Timestamp:   1712.5,
		MessageType: "ping",
		Target: wire.Target{
			URL:        "https://a.example/",
			Origin:     "https://a.example",
			FrameID:    0,
			DocumentID: "doc-a",
		},
		Source: wire.Source{
			Type:          wire.SourceChild,
			Origin:        "https://b.example",
			WindowID:      "w-b",
			IframeDomPath: "body > iframe",
		},
		Data:        json.RawMessage(`{"hello":"world"}`),
		DataPreview: `{"hello":"world"}`,
		DataSize:    17,
	}
}

func testTopology() wire.Topology {
	return wire.Topology{
		TabID: 7,
		Frames: []wire.FrameInfo{
			{FrameID: 0, DocumentID: "doc-a", URL: "https://a.example/", ParentFrameID: -1},
			{FrameID: 3, DocumentID: "doc-b", URL: "https://b.example/", ParentFrameID: 0},
		},
	}
}
