// internal/env/env.go
package env

import (
	"errors"
	"net/url"
	"sync"

	"github.com/xkilldash9x/beacon/internal/dom"
)

// Visibility states of a document.
const (
	VisibilityVisible   = "visible"
	VisibilityHidden    = "hidden"
	VisibilityPrerender = "prerender"
)

// ErrStorageUnavailable is returned by storage that the page may not access,
// for example when third-party storage is blocked.
var ErrStorageUnavailable = errors.New("persistent storage is unavailable")

// Storage is the page's persistent key/value store.
type Storage interface {
	GetItem(key string) (value string, ok bool, err error)
}

// Environment is everything the beacon reads from, or does to, the page it
// runs in. Implementations are injected so the engine never touches globals.
type Environment interface {
	// Location returns a copy of the current page URL.
	Location() *url.URL
	Referrer() string
	InnerWidth() int
	// Global reports whether the named global is present and truthy.
	// Dotted names address nested properties, e.g. "navigator.webdriver".
	Global(name string) bool
	Storage() Storage
	VisibilityState() string
	// Navigate sends the page to href.
	Navigate(href string)
}

// Page is an in-memory Environment backed by a parsed document.
type Page struct {
	mu sync.RWMutex

	location   *url.URL
	referrer   string
	width      int
	globals    map[string]bool
	lookup     func(name string) bool
	storage    Storage
	visibility string

	navigations []string

	// Window receives hashchange events, Document receives the rest.
	Window   *dom.EventTarget
	Document *dom.Document
}

// PageOption configures a Page.
type PageOption func(*Page)

func WithReferrer(r string) PageOption { return func(p *Page) { p.referrer = r } }

func WithInnerWidth(w int) PageOption { return func(p *Page) { p.width = w } }

func WithVisibility(state string) PageOption { return func(p *Page) { p.visibility = state } }

func WithStorage(s Storage) PageOption { return func(p *Page) { p.storage = s } }

// WithGlobals marks the named globals as present and truthy.
func WithGlobals(names ...string) PageOption {
	return func(p *Page) {
		for _, n := range names {
			p.globals[n] = true
		}
	}
}

// NewPage creates a page at location. The document may be nil for pages
// without markup.
func NewPage(location *url.URL, doc *dom.Document, opts ...PageOption) *Page {
	p := &Page{
		location:   cloneURL(location),
		width:      1280,
		globals:    make(map[string]bool),
		storage:    NewMemoryStorage(),
		visibility: VisibilityVisible,
		Window:     &dom.EventTarget{},
		Document:   doc,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Page) Location() *url.URL {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return cloneURL(p.location)
}

func (p *Page) Referrer() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.referrer
}

func (p *Page) InnerWidth() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.width
}

// Global reports globals marked with WithGlobals, then asks the lookup set
// by SetGlobalLookup. The lookup runs without the page lock held.
func (p *Page) Global(name string) bool {
	p.mu.RLock()
	set, lookup := p.globals[name], p.lookup
	p.mu.RUnlock()
	if set {
		return true
	}
	return lookup != nil && lookup(name)
}

// SetGlobalLookup resolves globals the page defines itself, such as those a
// script assigns on window. It must be safe to call wherever the beacon runs.
func (p *Page) SetGlobalLookup(fn func(name string) bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lookup = fn
}

func (p *Page) Storage() Storage {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.storage
}

func (p *Page) VisibilityState() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.visibility
}

// Navigate records the navigation and moves the page to href when it
// resolves against the current location.
func (p *Page) Navigate(href string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.navigations = append(p.navigations, href)
	if next, err := p.location.Parse(href); err == nil {
		p.location = next
	}
}

// Navigations returns every href passed to Navigate, oldest first.
func (p *Page) Navigations() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]string(nil), p.navigations...)
}

// SetHash moves to a new fragment and fires hashchange on the window.
func (p *Page) SetHash(fragment string) {
	p.mu.Lock()
	next := cloneURL(p.location)
	next.Fragment = trimHash(fragment)
	next.RawFragment = ""
	p.location = next
	p.mu.Unlock()

	p.Window.DispatchEvent(&dom.Event{Type: "hashchange"})
}

// SetVisibility changes the visibility state and fires visibilitychange on
// the document.
func (p *Page) SetVisibility(state string) {
	p.mu.Lock()
	p.visibility = state
	p.mu.Unlock()

	if p.Document != nil {
		p.Document.DispatchEvent(&dom.Event{Type: "visibilitychange"})
	}
}

// PathAndHash is the string include and exclude rules are tested against:
// the pathname followed by the hash, "#" included when present.
func PathAndHash(u *url.URL) string {
	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	if u.Fragment != "" {
		return path + "#" + u.EscapedFragment()
	}
	return path
}

func trimHash(fragment string) string {
	if len(fragment) > 0 && fragment[0] == '#' {
		return fragment[1:]
	}
	return fragment
}

func cloneURL(u *url.URL) *url.URL {
	if u == nil {
		return &url.URL{}
	}
	c := *u
	if u.User != nil {
		user := *u.User
		c.User = &user
	}
	return &c
}
