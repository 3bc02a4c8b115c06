// internal/autocapture/pageview.go
package autocapture

import (
	"sync"

	"go.uber.org/zap"

	"github.com/xkilldash9x/beacon/internal/dom"
	"github.com/xkilldash9x/beacon/internal/env"
	"github.com/xkilldash9x/beacon/internal/rules"
)

// PageviewState is the lifecycle of the pageview controller.
type PageviewState int

const (
	StateIdle PageviewState = iota
	StateNavigated
)

func (s PageviewState) String() string {
	if s == StateNavigated {
		return "navigated"
	}
	return "idle"
}

// PageviewController reports the automatic pageview: once when the page
// becomes visible, then again on every hash navigation.
type PageviewController struct {
	reporter Reporter
	env      env.Environment
	window   EventSource
	document EventSource
	logger   *zap.Logger

	mu       sync.Mutex
	state    PageviewState
	lastPath string
	fired    int
}

// NewPageviewController creates a controller. window receives hashchange and
// document receives visibilitychange.
func NewPageviewController(r Reporter, e env.Environment, window, document EventSource, logger *zap.Logger) *PageviewController {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PageviewController{
		reporter: r,
		env:      e,
		window:   window,
		document: document,
		logger:   logger.Named("pageviews"),
	}
}

// Start attaches the listeners and fires the initial pageview, unless the
// document is still being prerendered.
func (c *PageviewController) Start() {
	c.window.AddEventListener("hashchange", func(*dom.Event) { c.fire() })

	if c.env.VisibilityState() != env.VisibilityPrerender {
		c.fire()
		return
	}

	c.logger.Debug("Document is prerendering, deferring pageview")
	c.document.AddEventListener("visibilitychange", func(*dom.Event) {
		c.mu.Lock()
		pending := c.lastPath == ""
		c.mu.Unlock()
		if pending && c.env.VisibilityState() == env.VisibilityVisible {
			c.fire()
		}
	})
}

// fire reports a pageview. Every hash change fires, even to the same path.
func (c *PageviewController) fire() {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("Recovered from panic in pageview handler", zap.Any("panic", r))
		}
	}()

	c.mu.Lock()
	c.lastPath = c.env.Location().EscapedPath()
	if c.lastPath == "" {
		c.lastPath = "/"
	}
	c.state = StateNavigated
	c.fired++
	c.mu.Unlock()

	c.reporter.Report(rules.PageviewEvent, nil)
}

// State returns the controller's current state.
func (c *PageviewController) State() PageviewState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// LastPath returns the pathname seen by the most recent pageview.
func (c *PageviewController) LastPath() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastPath
}

// Fired returns how many pageviews the controller has reported.
func (c *PageviewController) Fired() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fired
}
