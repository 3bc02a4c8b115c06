// internal/pagehost/session.go
package pagehost

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/dop251/goja"
	"go.uber.org/zap"

	"github.com/xkilldash9x/beacon/internal/beacon"
	"github.com/xkilldash9x/beacon/internal/dom"
	"github.com/xkilldash9x/beacon/internal/env"
	"github.com/xkilldash9x/beacon/internal/hostconfig"
	"github.com/xkilldash9x/beacon/internal/jsbind"
	"github.com/xkilldash9x/beacon/internal/transport"
)

// PageSpec describes the page a Session hosts.
type PageSpec struct {
	URL            string
	HTML           string
	Referrer       string
	Width          int
	Visibility     string
	Storage        map[string]string
	StorageBlocked bool
	Globals        []string
}

// SenderFactory builds the transport for a session once the endpoint is
// known. post schedules completion callbacks on the session's loop.
type SenderFactory func(host *hostconfig.Config, post transport.Poster) transport.Sender

// Modifiers are the keys held during a click.
type Modifiers struct {
	Ctrl  bool
	Meta  bool
	Shift bool
}

// Session hosts one page load: a parsed document, its environment, a
// JavaScript runtime on an event loop, and the beacon running inside it.
type Session struct {
	loop    *Loop
	page    *env.Page
	storage *env.MemoryStorage
	host    *hostconfig.Config
	sender  transport.Sender
	entry   *beacon.EntryPoint
	logger  *zap.Logger

	running *Beacon
}

// NewSession parses the page and resolves the beacon's host configuration.
// Nothing runs until Start.
func NewSession(spec PageSpec, newSender SenderFactory, logger *zap.Logger) (*Session, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if newSender == nil {
		return nil, fmt.Errorf("session requires a sender factory")
	}

	location, err := url.Parse(spec.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid page url %q: %w", spec.URL, err)
	}
	doc, err := dom.ParseString(spec.HTML)
	if err != nil {
		return nil, err
	}
	host, err := hostconfig.Resolve(doc.ElementByID(hostconfig.ScriptID), location)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve beacon configuration: %w", err)
	}

	opts := []env.PageOption{
		env.WithReferrer(spec.Referrer),
		env.WithGlobals(spec.Globals...),
	}
	if spec.Width > 0 {
		opts = append(opts, env.WithInnerWidth(spec.Width))
	}
	if spec.Visibility != "" {
		opts = append(opts, env.WithVisibility(spec.Visibility))
	}
	storage := env.NewMemoryStorage(spec.Storage)
	if spec.StorageBlocked {
		storage = env.NewBlockedStorage()
	}
	opts = append(opts, env.WithStorage(storage))

	s := &Session{
		loop:    NewLoop(),
		page:    env.NewPage(location, doc, opts...),
		storage: storage,
		host:    host,
		entry:   beacon.NewEntryPoint(),
		logger:  logger.Named("session"),
	}
	s.sender = newSender(host, s.loop.Post)
	return s, nil
}

// Start runs the page's preload script, which may queue calls on the
// placeholder global, then binds the global and bootstraps the beacon.
// Globals and localStorage the page sets from script are visible to the
// beacon's automation and opt-out checks.
func (s *Session) Start(ctx context.Context, preload string) error {
	return s.loop.Do(ctx, func(vm *goja.Runtime) error {
		lookup, err := installWindow(vm, s.storage)
		if err != nil {
			return fmt.Errorf("failed to expose window: %w", err)
		}
		s.page.SetGlobalLookup(lookup)
		if preload != "" {
			if _, err := vm.RunString(preload); err != nil {
				return fmt.Errorf("preload script failed: %w", err)
			}
		}

		if _, queued, err := jsbind.Bind(vm, s.entry, s.logger); err != nil {
			return err
		} else if queued > 0 {
			s.logger.Debug("Found queued calls on placeholder", zap.Int("queued", queued))
		}

		b, err := Bootstrap(Deps{
			Env:       s.page,
			Window:    s.page.Window,
			Document:  s.page.Document,
			Host:      s.host,
			Sender:    s.sender,
			Scheduler: s.loop,
			Entry:     s.entry,
			Logger:    s.logger,
		})
		if err != nil {
			return err
		}
		s.running = b
		return nil
	})
}

// Eval runs a script in the page, the way inline host code would.
func (s *Session) Eval(ctx context.Context, script string) error {
	return s.loop.Do(ctx, func(vm *goja.Runtime) error {
		if _, err := vm.RunString(script); err != nil {
			return fmt.Errorf("script failed: %w", err)
		}
		return nil
	})
}

// Click dispatches a click (which = dom.WhichLeft) or auxclick (any other
// button) on the element matched by xpath. It reports whether the page
// would still perform its default navigation.
func (s *Session) Click(ctx context.Context, xpath string, which int, mods Modifiers) (bool, error) {
	var proceed bool
	err := s.loop.Do(ctx, func(*goja.Runtime) error {
		target, err := s.page.Document.Query(xpath)
		if err != nil {
			return err
		}
		typ := "click"
		if which != dom.WhichLeft {
			typ = "auxclick"
		}
		proceed = s.page.Document.DispatchEvent(&dom.Event{
			Type:     typ,
			Target:   target,
			Which:    which,
			CtrlKey:  mods.Ctrl,
			MetaKey:  mods.Meta,
			ShiftKey: mods.Shift,
		})
		return nil
	})
	return proceed, err
}

// HashChange navigates to a fragment within the page.
func (s *Session) HashChange(ctx context.Context, fragment string) error {
	return s.loop.Do(ctx, func(*goja.Runtime) error {
		s.page.SetHash(fragment)
		return nil
	})
}

// SetVisibility changes the document's visibility state.
func (s *Session) SetVisibility(ctx context.Context, state string) error {
	return s.loop.Do(ctx, func(*goja.Runtime) error {
		s.page.SetVisibility(state)
		return nil
	})
}

// Settle waits d for timers such as deferred navigations, then for the
// transport's in-flight sends, then for their callbacks to run.
func (s *Session) Settle(ctx context.Context, d time.Duration) error {
	select {
	case <-time.After(d):
	case <-ctx.Done():
		return ctx.Err()
	}
	if w, ok := s.sender.(interface{ Wait() }); ok {
		w.Wait()
	}
	return s.loop.Do(ctx, func(*goja.Runtime) error { return nil })
}

// Close abandons in-flight sends and stops the loop.
func (s *Session) Close() {
	if c, ok := s.sender.(interface{ Close() }); ok {
		c.Close()
	}
	s.loop.Stop()
}

// Page returns the hosted page.
func (s *Session) Page() *env.Page { return s.page }

// Host returns the resolved host configuration.
func (s *Session) Host() *hostconfig.Config { return s.host }

// Sender returns the session's transport.
func (s *Session) Sender() transport.Sender { return s.sender }

// Beacon returns the running beacon, or nil before Start.
func (s *Session) Beacon() *Beacon { return s.running }
