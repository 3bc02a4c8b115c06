// internal/dom/events.go
package dom

import "sync"

// Mouse buttons as reported by the legacy "which" property.
const (
	WhichNone   = 0
	WhichLeft   = 1
	WhichMiddle = 2
	WhichRight  = 3
)

// Event is a DOM event delivered to registered handlers.
type Event struct {
	Type   string
	Target Element
	Which  int

	CtrlKey  bool
	MetaKey  bool
	ShiftKey bool

	defaultPrevented bool
}

// PreventDefault cancels the browser's default action for the event.
func (e *Event) PreventDefault() { e.defaultPrevented = true }

// DefaultPrevented reports whether a handler called PreventDefault.
func (e *Event) DefaultPrevented() bool { return e.defaultPrevented }

// Handler receives dispatched events.
type Handler func(*Event)

// EventTarget keeps listeners per event type in registration order.
type EventTarget struct {
	mu       sync.Mutex
	handlers map[string][]Handler
}

// AddEventListener registers h for events of type typ.
func (t *EventTarget) AddEventListener(typ string, h Handler) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.handlers == nil {
		t.handlers = make(map[string][]Handler)
	}
	t.handlers[typ] = append(t.handlers[typ], h)
}

// DispatchEvent runs every handler registered for ev.Type and reports
// whether the default action should still happen.
func (t *EventTarget) DispatchEvent(ev *Event) bool {
	t.mu.Lock()
	hs := append([]Handler(nil), t.handlers[ev.Type]...)
	t.mu.Unlock()

	for _, h := range hs {
		h(ev)
	}
	return !ev.defaultPrevented
}

// ListenerCount returns the number of handlers registered for typ.
func (t *EventTarget) ListenerCount(typ string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.handlers[typ])
}
