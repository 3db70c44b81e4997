package reactive

import (
	"sort"
	"sync"
)

// Hub delivers change notifications to subscribers keyed by Key.
//
// A subscriber is called at most once per Publish call, and only when the
// published batch intersects its key set. Callbacks run on the publishing
// goroutine, after the hub lock is released, in subscription order.
//
// Thread-safety: all methods are safe for concurrent use.
type Hub struct {
	mu      sync.Mutex
	nextID  uint64
	version uint64
	subs    map[uint64]*subscription
	byKey   map[Key]map[uint64]struct{}
}

type subscription struct {
	keys []Key
	fn   func(changed []Key)
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		subs:  make(map[uint64]*subscription),
		byKey: make(map[Key]map[uint64]struct{}),
	}
}

// Subscribe registers fn for the given keys and returns a function that
// removes the subscription. Calling cancel more than once is a no-op.
func (h *Hub) Subscribe(keys []Key, fn func(changed []Key)) (cancel func()) {
	h.mu.Lock()
	h.nextID++
	id := h.nextID
	sub := &subscription{keys: append([]Key(nil), keys...), fn: fn}
	h.subs[id] = sub
	for _, k := range sub.keys {
		set, ok := h.byKey[k]
		if !ok {
			set = make(map[uint64]struct{})
			h.byKey[k] = set
		}
		set[id] = struct{}{}
	}
	h.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { h.unsubscribe(id) })
	}
}

func (h *Hub) unsubscribe(id uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	sub, ok := h.subs[id]
	if !ok {
		return
	}
	delete(h.subs, id)
	for _, k := range sub.keys {
		set := h.byKey[k]
		delete(set, id)
		if len(set) == 0 {
			delete(h.byKey, k)
		}
	}
}

// Publish notifies every subscriber whose key set intersects keys.
// Each subscriber receives the subset of keys it subscribed to.
// Publishing an empty batch does nothing and does not advance Version.
func (h *Hub) Publish(keys ...Key) {
	if len(keys) == 0 {
		return
	}

	h.mu.Lock()
	h.version++
	hits := make(map[uint64][]Key)
	for _, k := range keys {
		for id := range h.byKey[k] {
			if !containsKey(hits[id], k) {
				hits[id] = append(hits[id], k)
			}
		}
	}
	ids := make([]uint64, 0, len(hits))
	for id := range hits {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	calls := make([]func(), 0, len(ids))
	for _, id := range ids {
		fn := h.subs[id].fn
		changed := SortKeys(hits[id])
		calls = append(calls, func() { fn(changed) })
	}
	h.mu.Unlock()

	for _, call := range calls {
		call()
	}
}

// Version returns a counter that advances on every non-empty Publish.
// Watch uses it to detect a publish racing with an evaluation.
func (h *Hub) Version() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.version
}

// Subscribers returns the number of live subscriptions.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

func containsKey(keys []Key, k Key) bool {
	for _, existing := range keys {
		if existing == k {
			return true
		}
	}
	return false
}
