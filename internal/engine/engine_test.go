package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/pmscope/internal/identity"
	"github.com/roach88/pmscope/internal/wire"
)

func TestProcess_StampsSeqInArrivalOrder(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	r1, err := e.Process(ctx, MessageEvent(msgBtoA("m-1")))
	require.NoError(t, err)
	r2, err := e.Process(ctx, MessageEvent(msgAtoB("m-2")))
	require.NoError(t, err)

	assert.Equal(t, int64(1), r1.Seq)
	assert.Equal(t, int64(2), r2.Seq)

	e.View(func(_ *identity.Store, h *History) {
		require.Equal(t, 2, h.Len())
		assert.Same(t, r1, h.Records()[0])
		assert.Same(t, r2, h.Find("m-2"))
	})
}

func TestProcess_HandshakeResolvesEarlierRecord(t *testing.T) {
	e := newTestEngine(t)
	process(t, e, msgBtoA("m-1"))

	e.View(func(_ *identity.Store, h *History) {
		_, ok := h.Find("m-1").SourceFrameID()
		assert.False(t, ok, "sender is unknown before the handshake")
	})

	process(t, e, handshakeB("h-2"))

	e.View(func(_ *identity.Store, h *History) {
		rec := h.Find("m-1")
		id, ok := rec.SourceFrameID()
		require.True(t, ok)
		assert.Equal(t, frameB, id)
		assert.Equal(t, documentB, rec.SourceDocument().DocumentID)
		assert.True(t, h.Find("h-2").Registration)
		assert.False(t, rec.Registration)
	})
}

func TestProcess_RegistrationDisabled(t *testing.T) {
	e := newTestEngine(t, WithRegistration(false))
	process(t, e, msgBtoA("m-1"), handshakeB("h-2"))

	e.View(func(ids *identity.Store, h *History) {
		_, ok := h.Find("m-1").SourceFrameID()
		assert.False(t, ok)
		assert.False(t, h.Find("h-2").Registration)
		assert.Nil(t, ids.DocumentByID(documentB))
	})
}

func TestProcess_CustomRegistrationMarker(t *testing.T) {
	e := newTestEngine(t, WithRegistrationMarker("custom"))
	h := handshakeB("h-1")
	process(t, e, h)

	e.View(func(_ *identity.Store, hist *History) {
		assert.False(t, hist.Find("h-1").Registration, "default marker is not recognised")
	})

	h2 := handshakeB("h-2")
	h2.Data = wire.RegistrationData("custom", tab, frameB, documentB)
	process(t, e, h2)

	e.View(func(_ *identity.Store, hist *History) {
		assert.True(t, hist.Find("h-2").Registration)
	})
}

func TestProcess_MalformedMessageChangesNothing(t *testing.T) {
	e := newTestEngine(t)
	before := e.Hub().Version()

	bad := msgBtoA("m-1")
	bad.Target.DocumentID = ""

	rec, err := e.Process(context.Background(), MessageEvent(bad))
	require.Error(t, err)
	assert.Nil(t, rec)
	assert.True(t, IsMalformedError(err))

	var verr *wire.ValidationError
	assert.ErrorAs(t, err, &verr)

	assert.Equal(t, before, e.Hub().Version())
	e.View(func(ids *identity.Store, h *History) {
		assert.Zero(t, h.Len())
		frames, byID, byWindow := ids.Len()
		assert.Zero(t, frames+byID+byWindow)
	})
}

func TestProcess_NilPayloads(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	_, err := e.Process(ctx, Event{Type: EventMessage})
	assert.True(t, IsMalformedError(err))
	_, err = e.Process(ctx, Event{Type: EventTopology})
	assert.True(t, IsMalformedError(err))
}

func TestProcess_UnknownEvent(t *testing.T) {
	e := newTestEngine(t)

	_, err := e.Process(context.Background(), Event{Type: EventType(42)})
	var re *RuntimeError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, ErrCodeUnknownEvent, re.Code)
}

func TestProcess_AssignsMissingID(t *testing.T) {
	e := newTestEngine(t, WithIDGenerator(NewFixedGenerator("gen-1")))

	m := msgBtoA("")
	rec, err := e.Process(context.Background(), MessageEvent(m))
	require.NoError(t, err)
	assert.Equal(t, "gen-1", rec.ID)
}

func TestProcess_DuplicateIDIgnored(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	first, err := e.Process(ctx, MessageEvent(msgBtoA("m-1")))
	require.NoError(t, err)
	version := e.Hub().Version()

	again, err := e.Process(ctx, MessageEvent(msgBtoA("m-1")))
	require.NoError(t, err)

	assert.Same(t, first, again)
	assert.Equal(t, version, e.Hub().Version())
	e.View(func(_ *identity.Store, h *History) {
		assert.Equal(t, 1, h.Len())
	})
}

func TestProcess_Topology(t *testing.T) {
	e := newTestEngine(t)

	_, err := e.Process(context.Background(), TopologyEvent(wire.Topology{
		TabID: tab,
		Frames: []wire.FrameInfo{
			{FrameID: frameA, DocumentID: documentA, URL: "https://a.example/", ParentFrameID: -1},
			{FrameID: frameB, DocumentID: documentB, URL: "https://b.example/", ParentFrameID: frameA},
		},
	}))
	require.NoError(t, err)

	st := e.State()
	require.Len(t, st.Frames, 2)
	assert.Equal(t, FrameState{TabID: tab, FrameID: frameB, ParentFrameID: frameA, CurrentDocument: documentB}, st.Frames[1])

	e.View(func(_ *identity.Store, h *History) {
		assert.Zero(t, h.Len(), "topology does not create records")
	})
}

func TestProcess_Clear(t *testing.T) {
	e := newTestEngine(t)
	process(t, e, msgBtoA("m-1"), handshakeB("h-2"))

	_, err := e.Process(context.Background(), ClearEvent())
	require.NoError(t, err)

	e.View(func(ids *identity.Store, h *History) {
		assert.Zero(t, h.Len())
		assert.Nil(t, h.Find("m-1"))
		frames, byID, byWindow := ids.Len()
		assert.Zero(t, frames+byID+byWindow)
	})
}

func TestRun_DrainsQueueThenStops(t *testing.T) {
	e := newTestEngine(t)

	require.True(t, e.Enqueue(MessageEvent(msgBtoA("m-1"))))
	require.True(t, e.Enqueue(MessageEvent(wire.Message{ID: "bad"})))
	require.True(t, e.Enqueue(MessageEvent(handshakeB("h-2"))))
	e.Stop()

	require.NoError(t, e.Run(context.Background()))

	e.View(func(_ *identity.Store, h *History) {
		assert.Equal(t, 2, h.Len(), "the malformed event is logged and skipped")
	})
	assert.True(t, IsStoppedError(e.Submit(ClearEvent())))
	assert.False(t, e.Enqueue(ClearEvent()))
}

func TestRun_ContextCancel(t *testing.T) {
	e := newTestEngine(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()

	require.NoError(t, e.Submit(MessageEvent(msgBtoA("m-1"))))
	require.Eventually(t, func() bool {
		var n int
		e.View(func(_ *identity.Store, h *History) { n = h.Len() })
		return n == 1
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestProcess_ConcurrentCallersSerialised(t *testing.T) {
	e := newTestEngine(t)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			m := msgBtoA("")
			m.ID = "m-" + string(rune('a'+i))
			_, err := e.Process(context.Background(), MessageEvent(m))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	e.View(func(_ *identity.Store, h *History) {
		require.Equal(t, 20, h.Len())
		for i, rec := range h.Records() {
			assert.Equal(t, int64(i+1), rec.Seq)
		}
	})
}
