package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/roach88/pmscope/internal/identity"
	"github.com/roach88/pmscope/internal/reactive"
	"github.com/roach88/pmscope/internal/store"
	"github.com/roach88/pmscope/internal/wire"
)

// Log is the durable capture log the engine appends accepted events to.
// *store.Store implements it.
type Log interface {
	NewSession(ctx context.Context, label string) (store.Session, error)
	AppendEvent(ctx context.Context, sessionID string, ev wire.Event) (seq int64, inserted bool, err error)
}

// Engine is the single-writer identity engine.
//
// Thread-safety model:
//   - Enqueue(): safe from any goroutine
//   - Run(): must be called from exactly one goroutine
//   - Process(): safe from any goroutine; calls are serialised
//   - View(): safe from any goroutine; runs under the read lock
type Engine struct {
	mu       sync.RWMutex
	identity *identity.Store
	history  *History
	session  string

	hub       *reactive.Hub
	validator *wire.Validator
	queue     *eventQueue
	clock     *Clock
	ids       IDGenerator
	log       Log
	logger    *slog.Logger

	registration bool
	marker       string
}

// Option configures an Engine.
type Option func(*Engine)

// WithRegistration enables or disables handshake correlation. When
// disabled, handshake messages are recorded as ordinary messages and
// descending senders stay unresolved. Default: enabled.
func WithRegistration(enabled bool) Option {
	return func(e *Engine) {
		e.registration = enabled
	}
}

// WithRegistrationMarker overrides the data.type value that marks a
// handshake. Default: wire.DefaultRegistrationMarker.
func WithRegistrationMarker(marker string) Option {
	return func(e *Engine) {
		e.marker = marker
	}
}

// WithLog appends every accepted event to l. A session is started on the
// first event and again after every clear.
func WithLog(l Log) Option {
	return func(e *Engine) {
		e.log = l
	}
}

// WithIDGenerator sets the generator for messages captured without an id.
func WithIDGenerator(g IDGenerator) Option {
	return func(e *Engine) {
		e.ids = g
	}
}

// WithClock sets the logical clock that stamps Records.
func WithClock(c *Clock) Option {
	return func(e *Engine) {
		e.clock = c
	}
}

// WithLogger sets the engine's logger. The identity store logs through it
// as well.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// New creates an idle engine.
func New(opts ...Option) (*Engine, error) {
	validator, err := wire.NewValidator()
	if err != nil {
		return nil, fmt.Errorf("create validator: %w", err)
	}

	e := &Engine{
		history:      NewHistory(),
		hub:          reactive.NewHub(),
		validator:    validator,
		queue:        newEventQueue(),
		clock:        NewClock(),
		ids:          UUIDv7Generator{},
		logger:       slog.Default(),
		registration: true,
		marker:       wire.DefaultRegistrationMarker,
	}
	for _, opt := range opts {
		opt(e)
	}

	// Changes are drained with TakeChanges and published after unlock.
	e.identity = identity.NewStore(identity.WithLogger(e.logger))
	return e, nil
}

// Hub returns the change hub records are watched through.
func (e *Engine) Hub() *reactive.Hub {
	return e.hub
}

// Session returns the current log session id, or "" before the first
// logged event.
func (e *Engine) Session() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.session
}

// View runs fn with read access to the identity graph and history.
// Records resolved inside fn see a consistent state. fn must not retain
// the store or history past its return, and must not call Process.
func (e *Engine) View(fn func(ids *identity.Store, h *History)) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	fn(e.identity, e.history)
}

// Enqueue submits an event for processing by the Run loop.
// Returns false if the engine has been stopped.
func (e *Engine) Enqueue(ev Event) bool {
	return e.queue.Enqueue(ev)
}

// Run starts the single-writer event loop.
// Blocks until ctx is cancelled or Stop() is called; events already queued
// when Stop is called are drained first.
//
// On event failure the error is logged with the event context and
// processing continues. An event rejected by validation changes nothing.
func (e *Engine) Run(ctx context.Context) error {
	e.logger.Info("engine starting")

	for {
		ev, ok := e.queue.TryDequeue()
		if ok {
			if _, err := e.Process(ctx, ev); err != nil {
				e.logEventError(ev, err)
			}
			continue
		}

		select {
		case <-ctx.Done():
			e.logger.Info("engine stopping: context cancelled")
			e.queue.Close()
			return ctx.Err()

		case <-e.queue.Wait():
			// The signal is buffered, so it may be stale; only a closed
			// and drained queue ends the loop.
			if e.queue.Closed() && e.queue.Len() == 0 {
				e.logger.Info("engine stopping: queue closed")
				return nil
			}
		}
	}
}

// Submit is Enqueue for callers that propagate errors.
func (e *Engine) Submit(ev Event) error {
	if !e.queue.Enqueue(ev) {
		return errStopped
	}
	return nil
}

// Stop closes the event queue, which will cause Run() to return once the
// queued events are processed.
func (e *Engine) Stop() {
	e.queue.Close()
}

// Process applies one event synchronously and returns the Record created
// for a message event (nil for other events).
//
// Changed keys are published after the write lock is released, on the
// calling goroutine.
func (e *Engine) Process(ctx context.Context, ev Event) (*identity.Record, error) {
	e.mu.Lock()
	rec, changed, err := e.apply(ctx, ev)
	e.mu.Unlock()

	e.hub.Publish(changed...)
	return rec, err
}

// apply is one transaction. Caller holds e.mu.
func (e *Engine) apply(ctx context.Context, ev Event) (*identity.Record, []reactive.Key, error) {
	switch ev.Type {
	case EventMessage:
		return e.applyMessage(ctx, ev.Message)
	case EventTopology:
		changed, err := e.applyTopology(ctx, ev.Topology)
		return nil, changed, err
	case EventClear:
		changed, err := e.applyClear()
		return nil, changed, err
	default:
		return nil, nil, newUnknownEventError(ev.Type)
	}
}

func (e *Engine) applyMessage(ctx context.Context, msg *wire.Message) (*identity.Record, []reactive.Key, error) {
	if msg == nil {
		return nil, nil, newMalformedError("", fmt.Errorf("message event without message"))
	}
	m := *msg
	if err := e.validator.ValidateMessage(m); err != nil {
		return nil, nil, newMalformedError(m.ID, err)
	}
	if m.ID == "" {
		m.ID = e.ids.Generate()
	} else if existing := e.history.Find(m.ID); existing != nil {
		e.logger.Debug("duplicate message ignored", "id", m.ID)
		return existing, nil, nil
	}

	var reg *wire.Registration
	if e.registration {
		if r, ok := wire.ParseRegistration(m, e.marker); ok {
			reg = &r
		}
	}

	rec := e.identity.Observe(m, reg)
	rec.Seq = e.clock.Next()
	e.history.Append(rec)

	changed := append(e.identity.TakeChanges(), reactive.HistoryKey)

	e.logger.Debug("message applied",
		"id", rec.ID,
		"seq", rec.Seq,
		"tab", m.TabID,
		"source_type", m.Source.Type,
		"registration", rec.Registration,
	)

	if err := e.appendLog(ctx, wire.MessageEvent(m)); err != nil {
		return rec, changed, err
	}
	return rec, changed, nil
}

func (e *Engine) applyTopology(ctx context.Context, t *wire.Topology) ([]reactive.Key, error) {
	if t == nil {
		return nil, newMalformedError("", fmt.Errorf("topology event without topology"))
	}
	if err := e.validator.ValidateTopology(*t); err != nil {
		return nil, newMalformedError("", err)
	}

	e.identity.ApplyTopology(*t)
	changed := e.identity.TakeChanges()

	e.logger.Debug("topology applied",
		"tab", t.TabID,
		"frames", len(t.Frames),
		"changed_keys", len(changed),
	)

	if err := e.appendLog(ctx, wire.TopologyEvent(*t)); err != nil {
		return changed, err
	}
	return changed, nil
}

func (e *Engine) applyClear() ([]reactive.Key, error) {
	e.identity.Clear()
	e.history.Clear()
	changed := append(e.identity.TakeChanges(), reactive.HistoryKey)

	e.logger.Info("history cleared", "previous_session", e.session)

	// The next logged event opens a new session.
	e.session = ""
	return changed, nil
}

// appendLog writes ev to the capture log. Caller holds e.mu.
func (e *Engine) appendLog(ctx context.Context, ev wire.Event) error {
	if e.log == nil {
		return nil
	}
	if e.session == "" {
		sess, err := e.log.NewSession(ctx, "")
		if err != nil {
			return fmt.Errorf("start log session: %w", err)
		}
		e.session = sess.ID
		e.logger.Info("log session started", "session", sess.ID)
	}
	if _, _, err := e.log.AppendEvent(ctx, e.session, ev); err != nil {
		return fmt.Errorf("append to log: %w", err)
	}
	return nil
}

// logEventError logs a failed event with enough context to find it in the
// capture stream.
func (e *Engine) logEventError(ev Event, err error) {
	attrs := []any{"type", ev.Type, "error", err}
	switch {
	case ev.Message != nil:
		attrs = append(attrs, "id", ev.Message.ID, "tab", ev.Message.TabID)
	case ev.Topology != nil:
		attrs = append(attrs, "tab", ev.Topology.TabID)
	}
	e.logger.Error("event processing failed", attrs...)
}
