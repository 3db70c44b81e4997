package reactive

import "sync"

// Tracker records the keys read during one evaluation.
//
// A nil *Tracker is valid and records nothing, so read paths can call Touch
// unconditionally.
type Tracker struct {
	mu   sync.Mutex
	keys KeySet
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{}
}

// Touch records that k was read.
func (t *Tracker) Touch(k Key) {
	if t == nil {
		return
	}
	t.mu.Lock()
	t.keys.Add(k)
	t.mu.Unlock()
}

// Keys returns the recorded keys in sorted order.
func (t *Tracker) Keys() []Key {
	if t == nil {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	keys := append([]Key(nil), t.keys.order...)
	return SortKeys(keys)
}
