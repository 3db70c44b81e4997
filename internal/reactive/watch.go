package reactive

import (
	"reflect"
	"sync"
)

// Watch keeps a computed value current.
//
// The computation runs once at construction and again each time a key it
// read on its previous run is published. After every run the subscription
// is replaced by one covering exactly the keys of that run, so the watch
// follows dependencies that appear as identity information arrives.
// onChange fires only when the new value differs from the previous one.
type Watch[T any] struct {
	hub      *Hub
	eval     func(*Tracker) T
	eq       func(a, b T) bool
	onChange func(T)

	mu     sync.Mutex
	value  T
	keys   []Key
	cancel func()
	closed bool
}

// NewWatch evaluates eval and subscribes to the keys it read.
// A nil eq compares values with reflect.DeepEqual. onChange may be nil.
func NewWatch[T any](hub *Hub, eval func(*Tracker) T, eq func(a, b T) bool, onChange func(T)) *Watch[T] {
	if eq == nil {
		eq = func(a, b T) bool { return reflect.DeepEqual(a, b) }
	}
	w := &Watch[T]{
		hub:      hub,
		eval:     eval,
		eq:       eq,
		onChange: onChange,
	}

	w.mu.Lock()
	w.value = w.refreshLocked()
	w.mu.Unlock()
	return w
}

// refreshLocked evaluates and re-subscribes until no publish raced with the
// evaluation. Caller holds w.mu.
func (w *Watch[T]) refreshLocked() T {
	for {
		before := w.hub.Version()
		t := NewTracker()
		v := w.eval(t)

		if w.cancel != nil {
			w.cancel()
		}
		w.keys = t.Keys()
		w.cancel = w.hub.Subscribe(w.keys, w.notify)

		if w.hub.Version() == before {
			return v
		}
	}
}

func (w *Watch[T]) notify([]Key) {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	next := w.refreshLocked()
	changed := !w.eq(w.value, next)
	if changed {
		w.value = next
	}
	onChange := w.onChange
	w.mu.Unlock()

	if changed && onChange != nil {
		onChange(next)
	}
}

// Value returns the most recently computed value.
func (w *Watch[T]) Value() T {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.value
}

// Keys returns the keys the last evaluation depended on.
func (w *Watch[T]) Keys() []Key {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]Key(nil), w.keys...)
}

// Close cancels the subscription. No callbacks fire after Close returns,
// except one already running.
func (w *Watch[T]) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	w.closed = true
	if w.cancel != nil {
		w.cancel()
		w.cancel = nil
	}
}
