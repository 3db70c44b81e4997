package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/pmscope/internal/engine"
	"github.com/roach88/pmscope/internal/identity"
	"github.com/roach88/pmscope/internal/testutil"
	"github.com/roach88/pmscope/internal/wire"
)

// Harness runs one scenario on a fresh engine.
type Harness struct {
	scenario *Scenario
	engine   *engine.Engine
	events   []wire.Event
	logger   *slog.Logger
}

// Run executes a test scenario and returns the result.
//
// Execution flow:
//  1. Create a fresh engine with deterministic record ids and no log
//  2. Process every event in order, checking reject expectations
//  3. Resolve every record and summarise the identity graph
//  4. Evaluate assertions
//
// An error is returned only when the scenario itself cannot be run.
func Run(scenario *Scenario) (*Result, error) {
	ctx := context.Background()

	events := make([]wire.Event, len(scenario.Events))
	for i, step := range scenario.Events {
		ev, err := step.Event()
		if err != nil {
			return nil, fmt.Errorf("events[%d]: %w", i, err)
		}
		events[i] = ev
	}

	eng, err := newEngine(scenario)
	if err != nil {
		return nil, err
	}

	h := &Harness{
		scenario: scenario,
		engine:   eng,
		events:   events,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	result := NewResult()
	if err := h.process(ctx, result); err != nil {
		return nil, err
	}
	collect(eng, result)

	actx := &AssertionContext{
		Scenario: scenario,
		Engine:   eng,
		Events:   events,
		Ctx:      ctx,
	}
	for _, errMsg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(errMsg)
	}

	return result, nil
}

// newEngine builds the engine a scenario runs on.
func newEngine(s *Scenario, opts ...engine.Option) (*engine.Engine, error) {
	base := []engine.Option{
		engine.WithRegistration(s.RegistrationEnabled()),
		engine.WithIDGenerator(testutil.NewSequentialIDs("rec")),
		engine.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	}
	if s.Marker != "" {
		base = append(base, engine.WithRegistrationMarker(s.Marker))
	}
	return engine.New(append(base, opts...)...)
}

// process feeds the stream to the engine. A rejected event is a failure
// unless the step expects it, and an accepted event is a failure when the
// step expects a rejection.
func (h *Harness) process(ctx context.Context, result *Result) error {
	for i, ev := range h.events {
		_, err := h.engine.Process(ctx, engine.FromWire(ev))
		expectReject := h.scenario.Events[i].Reject

		switch {
		case err != nil && !engine.IsMalformedError(err):
			return fmt.Errorf("events[%d]: %w", i, err)
		case err != nil:
			result.Rejected = append(result.Rejected, Rejection{Index: i, Error: err.Error()})
			if !expectReject {
				result.AddError(fmt.Sprintf("events[%d]: unexpected rejection: %v", i, err))
			}
		case expectReject:
			result.AddError(fmt.Sprintf("events[%d]: expected rejection, event was accepted", i))
		}

		h.logger.Debug("scenario event processed", "index", i, "kind", ev.Kind, "error", err)
	}
	return nil
}

// collect resolves every record and snapshots the identity graph.
func collect(eng *engine.Engine, result *Result) {
	eng.View(func(ids *identity.Store, h *engine.History) {
		for _, rec := range h.Records() {
			result.Records = append(result.Records, rec.Resolve())
		}
		result.State = engine.Snapshot(ids)
	})
}
