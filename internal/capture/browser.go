package capture

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"

	"github.com/roach88/pmscope/internal/engine"
	"github.com/roach88/pmscope/internal/wire"
)

//go:embed hook.js
var hookJS string

// bindingName is the CDP binding hook.js reports through.
const bindingName = "__pmscope_capture"

// hookScript is the hook source as installed in every new document.
func hookScript() string {
	name, _ := json.Marshal(bindingName)
	return "(" + hookJS + ")(" + string(name) + ");"
}

// Sink receives captured events. *engine.Engine satisfies it.
type Sink interface {
	Submit(ev engine.Event) error
}

// Config configures a Capturer.
type Config struct {
	// Remote is the DevTools WebSocket URL of a running Chrome.
	// Empty launches a local Chrome.
	Remote   string
	Headless bool
	Stealth  bool

	// NavigationTimeout bounds each page load. Default: 30s.
	NavigationTimeout time.Duration

	// Registration makes every non-top document announce itself to its
	// parent and opener once its default context exists.
	Registration bool
	Marker       string

	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.NavigationTimeout <= 0 {
		c.NavigationTimeout = 30 * time.Second
	}
	if c.Marker == "" {
		c.Marker = wire.DefaultRegistrationMarker
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Capturer owns one Chrome instance and the tabs opened in it.
type Capturer struct {
	cfg  Config
	sink Sink

	mu      sync.Mutex
	browser *rod.Browser
	lnch    *launcher.Launcher
	tabs    []*Tab
	nextTab int
	closed  bool
}

// New creates a Capturer. Call Start to launch or attach to Chrome.
func New(cfg Config, sink Sink) *Capturer {
	cfg.defaults()
	return &Capturer{cfg: cfg, sink: sink, nextTab: 1}
}

// Start launches Chrome, or connects to the remote instance when one is
// configured.
func (c *Capturer) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return fmt.Errorf("capture: capturer is closed")
	}
	if c.browser != nil {
		return nil
	}

	log := c.cfg.Logger
	wsURL := c.cfg.Remote
	if wsURL != "" {
		log.Info("capture: connecting to remote chrome", "url", wsURL)
	} else {
		l := launcher.New().
			Headless(c.cfg.Headless).
			Set("disable-blink-features", "AutomationControlled")
		u, err := l.Context(ctx).Launch()
		if err != nil {
			return fmt.Errorf("capture: launch: %w", err)
		}
		wsURL = u
		c.lnch = l
		log.Info("capture: launched local chrome", "url", wsURL, "headless", c.cfg.Headless)
	}

	b := rod.New().ControlURL(wsURL)
	if err := b.Connect(); err != nil {
		c.cleanupLauncher()
		return fmt.Errorf("capture: connect: %w", err)
	}
	if err := b.IgnoreCertErrors(true); err != nil {
		log.Warn("capture: ignore cert errors failed", "error", err)
	}
	c.browser = b
	return nil
}

// Open creates a tab, installs the hook and navigates it to pageURL.
// Tabs are numbered from 1 in the order they are opened.
func (c *Capturer) Open(ctx context.Context, pageURL string) (*Tab, error) {
	c.mu.Lock()
	if c.closed || c.browser == nil {
		c.mu.Unlock()
		return nil, fmt.Errorf("capture: browser not started")
	}
	b := c.browser
	id := c.nextTab
	c.nextTab++
	c.mu.Unlock()

	t, err := openTab(ctx, b, id, pageURL, c.cfg, c.sink)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.tabs = append(c.tabs, t)
	c.mu.Unlock()
	return t, nil
}

// Tabs returns the open tabs in opening order.
func (c *Capturer) Tabs() []*Tab {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*Tab, len(c.tabs))
	copy(out, c.tabs)
	return out
}

// SnapshotAll submits a fresh topology for every open tab.
func (c *Capturer) SnapshotAll(ctx context.Context) error {
	for _, t := range c.Tabs() {
		topo, err := t.Snapshot(ctx)
		if err != nil {
			return err
		}
		if err := c.sink.Submit(engine.TopologyEvent(topo)); err != nil {
			return fmt.Errorf("capture: submit topology: %w", err)
		}
	}
	return nil
}

// Close closes every tab and shuts Chrome down, remote instances
// included.
func (c *Capturer) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true

	for _, t := range c.tabs {
		if err := t.Close(); err != nil {
			c.cfg.Logger.Debug("capture: close tab", "tab", t.ID, "error", err)
		}
	}
	c.tabs = nil

	var err error
	if c.browser != nil {
		err = c.browser.Close()
		c.browser = nil
	}
	c.cleanupLauncher()
	return err
}

func (c *Capturer) cleanupLauncher() {
	if c.lnch != nil {
		c.lnch.Kill()
		c.lnch.Cleanup()
		c.lnch = nil
	}
}
