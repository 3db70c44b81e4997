package reactive

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// cell is a tiny observable store used to drive watches in tests.
type cell struct {
	hub    *Hub
	values map[Key]string
}

func newCell(h *Hub) *cell {
	return &cell{hub: h, values: make(map[Key]string)}
}

func (c *cell) get(t *Tracker, k Key) string {
	t.Touch(k)
	return c.values[k]
}

func (c *cell) set(k Key, v string) {
	if c.values[k] == v {
		return
	}
	c.values[k] = v
	c.hub.Publish(k)
}

func TestWatch_FiresOnlyOnValueChange(t *testing.T) {
	h := NewHub()
	c := newCell(h)
	c.values["doc:a"] = "one"

	var seen []string
	w := NewWatch(h, func(t *Tracker) string { return c.get(t, "doc:a") }, nil, func(v string) {
		seen = append(seen, v)
	})
	defer w.Close()

	assert.Equal(t, "one", w.Value())
	assert.Equal(t, []Key{"doc:a"}, w.Keys())

	c.set("doc:a", "two")
	h.Publish("doc:a") // same value, re-evaluated but unchanged
	c.set("doc:b", "ignored")

	assert.Equal(t, []string{"two"}, seen)
	assert.Equal(t, "two", w.Value())
}

func TestWatch_FollowsNewDependencies(t *testing.T) {
	h := NewHub()
	c := newCell(h)

	// Resolve by id first, fall back to the window token.
	eval := func(t *Tracker) string {
		if v := c.get(t, "doc:x"); v != "" {
			return v
		}
		return c.get(t, "win:x")
	}

	var seen []string
	w := NewWatch(h, eval, nil, func(v string) { seen = append(seen, v) })
	defer w.Close()

	assert.Equal(t, "", w.Value())
	assert.Equal(t, []Key{"doc:x", "win:x"}, w.Keys())

	c.set("win:x", "partial")
	c.set("doc:x", "merged")

	assert.Equal(t, []string{"partial", "merged"}, seen)
	assert.Equal(t, []Key{"doc:x"}, w.Keys(), "once the id resolves the token is no longer read")

	c.set("win:x", "stale")
	assert.Equal(t, []string{"partial", "merged"}, seen)
}

func TestWatch_CloseUnsubscribes(t *testing.T) {
	h := NewHub()
	c := newCell(h)

	calls := 0
	w := NewWatch(h, func(t *Tracker) string { return c.get(t, "k") }, nil, func(string) { calls++ })
	require.Equal(t, 1, h.Subscribers())

	w.Close()
	w.Close()
	c.set("k", "v")

	assert.Equal(t, 0, calls)
	assert.Equal(t, 0, h.Subscribers())
}

func TestWatch_CustomEquality(t *testing.T) {
	h := NewHub()
	c := newCell(h)
	c.values["k"] = "A"

	calls := 0
	sameLength := func(a, b string) bool { return len(a) == len(b) }
	w := NewWatch(h, func(t *Tracker) string { return c.get(t, "k") }, sameLength, func(string) { calls++ })
	defer w.Close()

	c.set("k", "B")
	assert.Equal(t, 0, calls)
	assert.Equal(t, "A", w.Value(), "equal values keep the previous value")

	c.set("k", "CC")
	assert.Equal(t, 1, calls)
}
