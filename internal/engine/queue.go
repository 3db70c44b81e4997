package engine

import (
	"fmt"
	"sync"

	"github.com/roach88/pmscope/internal/wire"
)

// EventType distinguishes between event kinds.
type EventType int

const (
	// EventMessage is one captured cross-document message.
	EventMessage EventType = iota + 1
	// EventTopology is a one-shot snapshot of a tab's live contexts.
	EventTopology
	// EventClear resets identity state and history.
	EventClear
)

func (t EventType) String() string {
	switch t {
	case EventMessage:
		return "message"
	case EventTopology:
		return "topology"
	case EventClear:
		return "clear"
	default:
		return fmt.Sprintf("EventType(%d)", int(t))
	}
}

// Event is the unit of work for the engine.
type Event struct {
	Type     EventType
	Message  *wire.Message
	Topology *wire.Topology
}

// MessageEvent wraps a captured message.
func MessageEvent(m wire.Message) Event {
	return Event{Type: EventMessage, Message: &m}
}

// TopologyEvent wraps a topology snapshot.
func TopologyEvent(t wire.Topology) Event {
	return Event{Type: EventTopology, Topology: &t}
}

// ClearEvent is the full reset.
func ClearEvent() Event {
	return Event{Type: EventClear}
}

// FromWire converts a decoded capture-stream entry. Unknown kinds map to
// the zero EventType, which the engine rejects.
func FromWire(ev wire.Event) Event {
	switch ev.Kind {
	case wire.KindMessage:
		return Event{Type: EventMessage, Message: ev.Message}
	case wire.KindTopology:
		return Event{Type: EventTopology, Topology: ev.Topology}
	case wire.KindClear:
		return Event{Type: EventClear}
	default:
		return Event{}
	}
}

// Wire converts the event back to its capture-stream form.
func (e Event) Wire() wire.Event {
	switch e.Type {
	case EventMessage:
		return wire.Event{Kind: wire.KindMessage, Message: e.Message}
	case EventTopology:
		return wire.Event{Kind: wire.KindTopology, Topology: e.Topology}
	default:
		return wire.Event{Kind: wire.KindClear}
	}
}

// eventQueue is a thread-safe FIFO queue for events.
//
// The queue is unbounded so a capture transport never blocks on a slow
// consumer. The channel signal enables context-aware waiting in Run.
type eventQueue struct {
	mu     sync.Mutex
	events []Event
	closed bool
	signal chan struct{} // Signals event availability (buffered, size 1)
}

func newEventQueue() *eventQueue {
	return &eventQueue{
		events: make([]Event, 0, 64),
		signal: make(chan struct{}, 1),
	}
}

// Enqueue adds an event to the back of the queue.
// Returns false if the queue is closed.
func (q *eventQueue) Enqueue(e Event) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	q.events = append(q.events, e)

	// Non-blocking: the buffer of 1 coalesces multiple signals.
	select {
	case q.signal <- struct{}{}:
	default:
	}

	return true
}

// TryDequeue attempts to dequeue without blocking.
// Returns (Event{}, false) if queue is empty.
func (q *eventQueue) TryDequeue() (Event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.events) == 0 {
		return Event{}, false
	}

	e := q.events[0]

	// Nil out the slot so the backing array does not pin the payloads.
	q.events[0] = Event{}

	if len(q.events) == 1 {
		q.events = q.events[:0]
	} else {
		q.events = q.events[1:]
	}

	return e, true
}

// Wait returns a channel that signals when events may be available.
// The channel is closed when the queue is closed.
func (q *eventQueue) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the current queue length.
func (q *eventQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events)
}

// Closed reports whether Close has been called.
func (q *eventQueue) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// Close signals that no more events will be enqueued.
// Wakes any blocked waiters by closing the signal channel.
func (q *eventQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}

	q.closed = true
	close(q.signal)
}
