package reactive

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeys_Format(t *testing.T) {
	assert.Equal(t, Key("doc:doc-B"), DocumentKey("doc-B"))
	assert.Equal(t, Key("win:w-1"), WindowKey("w-1"))
	assert.Equal(t, Key("frame:1/2"), FrameKey(1, 2))
}

func TestKeySet_DedupesAndDrainsSorted(t *testing.T) {
	var s KeySet
	s.Add("b")
	s.Add("a")
	s.Add("b")

	assert.Equal(t, 2, s.Len())
	assert.True(t, s.Has("a"))
	assert.Equal(t, []Key{"a", "b"}, s.Drain())
	assert.Equal(t, 0, s.Len())
	assert.False(t, s.Has("a"))
}

func TestHub_DeliversOnlyIntersectingKeys(t *testing.T) {
	h := NewHub()

	var gotA, gotB [][]Key
	h.Subscribe([]Key{"doc:a"}, func(changed []Key) { gotA = append(gotA, changed) })
	h.Subscribe([]Key{"doc:b", "win:b"}, func(changed []Key) { gotB = append(gotB, changed) })

	h.Publish("doc:a")
	h.Publish("win:b", "doc:b", "frame:1/0")
	h.Publish("frame:1/0")

	require.Len(t, gotA, 1)
	assert.Equal(t, []Key{"doc:a"}, gotA[0])
	require.Len(t, gotB, 1, "one callback per publish batch")
	assert.Equal(t, []Key{"doc:b", "win:b"}, gotB[0])
}

func TestHub_CancelStopsDelivery(t *testing.T) {
	h := NewHub()
	calls := 0
	cancel := h.Subscribe([]Key{"doc:a"}, func([]Key) { calls++ })

	h.Publish("doc:a")
	cancel()
	cancel()
	h.Publish("doc:a")

	assert.Equal(t, 1, calls)
	assert.Equal(t, 0, h.Subscribers())
}

func TestHub_EmptyPublishKeepsVersion(t *testing.T) {
	h := NewHub()
	h.Publish()
	assert.Equal(t, uint64(0), h.Version())
	h.Publish("x")
	assert.Equal(t, uint64(1), h.Version())
}

func TestHub_SubscribeFromCallback(t *testing.T) {
	h := NewHub()
	inner := 0
	h.Subscribe([]Key{"a"}, func([]Key) {
		h.Subscribe([]Key{"b"}, func([]Key) { inner++ })
	})

	h.Publish("a")
	h.Publish("b")
	assert.Equal(t, 1, inner)
}

func TestTracker_NilIsNoop(t *testing.T) {
	var tr *Tracker
	tr.Touch("a")
	assert.Nil(t, tr.Keys())
}

func TestTracker_RecordsSortedUnique(t *testing.T) {
	tr := NewTracker()
	tr.Touch("win:x")
	tr.Touch("doc:y")
	tr.Touch("win:x")
	assert.Equal(t, []Key{"doc:y", "win:x"}, tr.Keys())
}
