package capture

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"github.com/roach88/pmscope/internal/engine"
	"github.com/roach88/pmscope/internal/wire"
)

// Tab is one captured page. It tracks the tab's frames and execution
// contexts from CDP events so each report can be stamped with engine
// identifiers.
type Tab struct {
	ID  int
	URL string

	page   *rod.Page
	sink   Sink
	logger *slog.Logger

	registration bool
	marker       string

	mu       sync.Mutex
	alloc    *frameAllocator
	frames   map[proto.PageFrameID]*frameState
	contexts map[proto.RuntimeExecutionContextID]proto.PageFrameID
	top      proto.PageFrameID

	cancel context.CancelFunc
	done   chan struct{}
}

func newTab(id int, pageURL string, cfg Config, sink Sink) *Tab {
	return &Tab{
		ID:           id,
		URL:          pageURL,
		sink:         sink,
		logger:       cfg.Logger.With("tab", id),
		registration: cfg.Registration,
		marker:       cfg.Marker,
		alloc:        newFrameAllocator(),
		frames:       make(map[proto.PageFrameID]*frameState),
		contexts:     make(map[proto.RuntimeExecutionContextID]proto.PageFrameID),
		done:         make(chan struct{}),
	}
}

// openTab creates the page, subscribes to the events capture needs and
// only then enables the Runtime domain, so no context creation is missed.
func openTab(ctx context.Context, b *rod.Browser, id int, pageURL string, cfg Config, sink Sink) (*Tab, error) {
	var page *rod.Page
	var err error
	if cfg.Stealth {
		page, err = stealth.Page(b)
	} else {
		page, err = b.Page(proto.TargetCreateTarget{URL: ""})
	}
	if err != nil {
		return nil, fmt.Errorf("capture: create tab: %w", err)
	}

	t := newTab(id, pageURL, cfg, sink)
	t.page = page

	if err := t.install(); err != nil {
		_ = page.Close()
		return nil, err
	}

	navCtx, cancel := context.WithTimeout(ctx, cfg.NavigationTimeout)
	defer cancel()

	if err := page.Context(navCtx).Navigate(pageURL); err != nil {
		_ = t.Close()
		return nil, fmt.Errorf("capture: navigate %s: %w", pageURL, err)
	}
	if err := page.Context(navCtx).WaitLoad(); err != nil {
		t.logger.Warn("capture: wait load", "url", pageURL, "error", err)
	}

	topo, err := t.Snapshot(ctx)
	if err != nil {
		t.logger.Warn("capture: initial snapshot", "error", err)
		return t, nil
	}
	if err := sink.Submit(engine.TopologyEvent(topo)); err != nil {
		t.logger.Warn("capture: submit topology", "error", err)
	}

	t.logger.Info("capture: tab open", "url", pageURL, "frames", len(topo.Frames))
	return t, nil
}

func (t *Tab) install() error {
	page := t.page

	if err := (proto.PageEnable{}).Call(page); err != nil {
		return fmt.Errorf("capture: Page.enable: %w", err)
	}
	if err := (proto.RuntimeAddBinding{Name: bindingName}).Call(page); err != nil {
		return fmt.Errorf("capture: Runtime.addBinding: %w", err)
	}
	if _, err := page.EvalOnNewDocument(hookScript()); err != nil {
		return fmt.Errorf("capture: install hook: %w", err)
	}

	listenCtx, cancel := context.WithCancel(context.Background())
	t.cancel = cancel
	wait := page.Context(listenCtx).EachEvent(
		t.onFrameNavigated,
		t.onFrameDetached,
		t.onContextCreated,
		t.onContextDestroyed,
		t.onContextsCleared,
		t.onBindingCalled,
	)
	go func() {
		wait()
		close(t.done)
	}()

	if err := (proto.RuntimeEnable{}).Call(page); err != nil {
		return fmt.Errorf("capture: Runtime.enable: %w", err)
	}
	return nil
}

// Snapshot reads the tab's current frame tree.
func (t *Tab) Snapshot(ctx context.Context) (wire.Topology, error) {
	page := t.page.Context(ctx)
	res, err := proto.PageGetFrameTree{}.Call(page)
	if err != nil {
		return wire.Topology{}, fmt.Errorf("capture: Page.getFrameTree: %w", err)
	}

	title := ""
	if info, err := page.Info(); err == nil {
		title = info.Title
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.seed(res.FrameTree)
	return topologyFromTree(t.ID, t.alloc, res.FrameTree, title), nil
}

// Close stops event delivery and closes the page.
func (t *Tab) Close() error {
	if t.cancel != nil {
		t.cancel()
	}
	if t.page == nil {
		return nil
	}
	return t.page.Close()
}

// seed records frames from a frame tree that events may not have
// reported yet. Caller holds t.mu.
func (t *Tab) seed(tree *proto.PageFrameTree) {
	if tree == nil || tree.Frame == nil {
		return
	}
	if _, ok := t.frames[tree.Frame.ID]; !ok {
		t.trackFrame(tree.Frame)
	}
	for _, child := range tree.ChildFrames {
		t.seed(child)
	}
}

// trackFrame records a frame's current document. Caller holds t.mu.
func (t *Tab) trackFrame(f *proto.PageFrame) *frameState {
	top := f.ParentID == ""
	if top {
		t.top = f.ID
	}
	fs := &frameState{
		ID:       t.alloc.id(f.ID, top),
		Parent:   f.ParentID,
		LoaderID: f.LoaderID,
		URL:      frameURL(f),
		Origin:   f.SecurityOrigin,
	}
	t.frames[f.ID] = fs
	return fs
}

func (t *Tab) onFrameNavigated(e *proto.PageFrameNavigated) {
	if e.Frame == nil {
		return
	}
	t.mu.Lock()
	fs := t.trackFrame(e.Frame)
	t.mu.Unlock()
	t.logger.Debug("capture: frame navigated", "frame", fs.ID, "document", fs.LoaderID, "url", fs.URL)
}

func (t *Tab) onFrameDetached(e *proto.PageFrameDetached) {
	t.mu.Lock()
	delete(t.frames, e.FrameID)
	t.mu.Unlock()
}

func (t *Tab) onContextCreated(e *proto.RuntimeExecutionContextCreated) {
	if e.Context == nil {
		return
	}
	aux, ok := decodeAuxData(e.Context.AuxData)
	if !ok || !aux.IsDefault || aux.FrameID == "" {
		return
	}

	t.mu.Lock()
	t.contexts[e.Context.ID] = aux.FrameID
	fs := t.frames[aux.FrameID]
	var ref frameRef
	announce := false
	if fs != nil && fs.Parent != "" && fs.LoaderID != "" {
		ref = fs.ref()
		announce = t.registration
	}
	t.mu.Unlock()

	if announce {
		go t.register(e.Context.ID, ref)
	}
}

func (t *Tab) onContextDestroyed(e *proto.RuntimeExecutionContextDestroyed) {
	t.mu.Lock()
	delete(t.contexts, e.ExecutionContextID)
	t.mu.Unlock()
}

func (t *Tab) onContextsCleared(*proto.RuntimeExecutionContextsCleared) {
	t.mu.Lock()
	clear(t.contexts)
	t.mu.Unlock()
}

func (t *Tab) onBindingCalled(e *proto.RuntimeBindingCalled) {
	if e.Name != bindingName {
		return
	}
	p, err := decodeHookPayload(e.Payload)
	if err != nil {
		t.logger.Warn("capture: bad hook payload", "error", err)
		return
	}

	msg, ok := t.stamp(e.ExecutionContextID, p)
	if !ok {
		t.logger.Debug("capture: report from unknown context", "context", e.ExecutionContextID)
		return
	}
	if err := t.sink.Submit(engine.MessageEvent(msg)); err != nil {
		t.logger.Warn("capture: submit message", "error", err)
	}
}

// stamp resolves the reporting context to its frame and builds the
// message.
func (t *Tab) stamp(ctxID proto.RuntimeExecutionContextID, p hookPayload) (wire.Message, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	frame, ok := t.contexts[ctxID]
	if !ok {
		return wire.Message{}, false
	}
	fs := t.frames[frame]
	if fs == nil || fs.LoaderID == "" {
		return wire.Message{}, false
	}

	var rel senders
	if parent := t.frames[fs.Parent]; fs.Parent != "" && parent != nil {
		r := parent.ref()
		rel.Parent = &r
	}
	if top := t.frames[t.top]; top != nil && t.top != frame {
		r := top.ref()
		rel.Top = &r
	}
	return p.message(t.ID, fs.ref(), rel), true
}

func (t *Tab) register(ctxID proto.RuntimeExecutionContextID, ref frameRef) {
	script := registrationScript(t.marker, t.ID, ref.FrameID, ref.DocumentID)
	res, err := proto.RuntimeEvaluate{Expression: script, ContextID: ctxID}.Call(t.page)
	if err != nil {
		t.logger.Debug("capture: registration", "frame", ref.FrameID, "error", err)
		return
	}
	if res.ExceptionDetails != nil {
		t.logger.Debug("capture: registration threw", "frame", ref.FrameID, "error", res.ExceptionDetails.Text)
		return
	}
	t.logger.Debug("capture: registered", "frame", ref.FrameID, "document", ref.DocumentID)
}

type auxData struct {
	FrameID   proto.PageFrameID `json:"frameId"`
	IsDefault bool              `json:"isDefault"`
}

// decodeAuxData reads the frame id and default flag CDP attaches to an
// execution context description.
func decodeAuxData(aux any) (auxData, bool) {
	if aux == nil {
		return auxData{}, false
	}
	b, err := json.Marshal(aux)
	if err != nil {
		return auxData{}, false
	}
	var d auxData
	if err := json.Unmarshal(b, &d); err != nil {
		return auxData{}, false
	}
	return d, true
}
