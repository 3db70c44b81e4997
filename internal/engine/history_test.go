package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/pmscope/internal/identity"
	"github.com/roach88/pmscope/internal/wire"
)

func ids(recs []*identity.Record) []string {
	out := []string{}
	for _, r := range recs {
		out = append(out, r.ID)
	}
	return out
}

func frameFilter(id int) Filter {
	return Filter{FrameID: &id}
}

func TestHistory_Filter(t *testing.T) {
	e := newTestEngine(t)
	process(t, e, msgBtoA("m-1"), msgAtoB("m-2"), handshakeB("h-3"))

	tests := []struct {
		name   string
		filter Filter
		want   []string
	}{
		{"zero filter matches all", Filter{}, []string{"m-1", "m-2", "h-3"}},
		{"source type", Filter{SourceType: wire.SourceChild}, []string{"m-1", "h-3"}},
		{"hide registration", Filter{HideRegistration: true}, []string{"m-1", "m-2"}},
		{"text is case-insensitive", Filter{Text: "M-2"}, []string{"m-2"}},
		{"text matches message type", Filter{Text: "message"}, []string{"m-1", "m-2", "h-3"}},
		{"origin", Filter{Origin: "https://b.example"}, []string{"m-1", "m-2", "h-3"}},
		{"unknown origin", Filter{Origin: "https://z.example"}, []string{}},
		{"frame matches target or source", frameFilter(frameB), []string{"m-1", "m-2", "h-3"}},
		{"unknown frame", frameFilter(9), []string{}},
		{"combined", Filter{SourceType: wire.SourceChild, HideRegistration: true}, []string{"m-1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e.View(func(_ *identity.Store, h *History) {
				assert.Equal(t, tt.want, ids(h.Filter(tt.filter)))
			})
		})
	}
}

func TestHistory_FrameFilterFollowsResolution(t *testing.T) {
	e := newTestEngine(t)
	process(t, e, msgBtoA("m-1"), msgAtoB("m-2"))

	e.View(func(_ *identity.Store, h *History) {
		assert.Equal(t, []string{"m-2"}, ids(h.Filter(frameFilter(frameB))),
			"m-1's sender is not yet known to be frame B")
	})

	process(t, e, handshakeB("h-3"))

	e.View(func(_ *identity.Store, h *History) {
		assert.Equal(t, []string{"m-1", "m-2", "h-3"}, ids(h.Filter(frameFilter(frameB))))
	})
}

func TestHistory_Basics(t *testing.T) {
	h := NewHistory()
	assert.Zero(t, h.Len())
	assert.Nil(t, h.Find("x"))

	rec := &identity.Record{ID: "x"}
	h.Append(rec)
	assert.Equal(t, 1, h.Len())
	assert.Same(t, rec, h.Find("x"))

	recs := h.Records()
	recs[0] = nil
	assert.Same(t, rec, h.Records()[0], "Records returns a copy")

	h.Clear()
	assert.Zero(t, h.Len())
	assert.Nil(t, h.Find("x"))
}
