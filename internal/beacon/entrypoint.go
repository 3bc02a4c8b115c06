// internal/beacon/entrypoint.go
package beacon

import (
	"errors"
	"sync"
)

// ErrAlreadyInstalled is returned when a reporter is installed twice.
var ErrAlreadyInstalled = errors.New("entry point already has a reporter installed")

// Call is a Report invocation captured before a reporter was installed.
type Call struct {
	Name    string
	Options *Options
}

type entryState interface{ isEntryState() }

// uninitialized holds the calls made before the beacon loaded.
type uninitialized struct {
	queued []Call
}

// ready forwards calls to the installed reporter.
type ready struct {
	reporter Reporter
}

func (*uninitialized) isEntryState() {}
func (*ready) isEntryState()         {}

// EntryPoint is the page-facing report function. Until Install it only
// queues; Install drains the queue in arrival order, exactly once.
type EntryPoint struct {
	mu    sync.Mutex
	state entryState

	// backlog holds the calls still to replay during Install, including
	// any made while the replay is running.
	backlog   []Call
	replaying bool
}

// NewEntryPoint returns an entry point in the uninitialized state.
func NewEntryPoint() *EntryPoint {
	return &EntryPoint{state: &uninitialized{}}
}

// Report queues the call or forwards it to the installed reporter.
func (e *EntryPoint) Report(name string, opts *Options) {
	e.mu.Lock()
	switch s := e.state.(type) {
	case *uninitialized:
		s.queued = append(s.queued, Call{Name: name, Options: opts})
		e.mu.Unlock()
	case *ready:
		if e.replaying {
			e.backlog = append(e.backlog, Call{Name: name, Options: opts})
			e.mu.Unlock()
			return
		}
		r := s.reporter
		e.mu.Unlock()
		r.Report(name, opts)
	default:
		e.mu.Unlock()
	}
}

// Install moves the entry point to the ready state and replays every queued
// call through r before returning. It returns the number of calls replayed.
func (e *EntryPoint) Install(r Reporter) (int, error) {
	e.mu.Lock()
	s, ok := e.state.(*uninitialized)
	if !ok {
		e.mu.Unlock()
		return 0, ErrAlreadyInstalled
	}
	e.state = &ready{reporter: r}
	e.backlog = s.queued
	e.replaying = true
	e.mu.Unlock()

	replayed := 0
	for {
		e.mu.Lock()
		if len(e.backlog) == 0 {
			e.backlog = nil
			e.replaying = false
			e.mu.Unlock()
			return replayed, nil
		}
		c := e.backlog[0]
		e.backlog = e.backlog[1:]
		e.mu.Unlock()

		r.Report(c.Name, c.Options)
		replayed++
	}
}

// Ready reports whether a reporter has been installed.
func (e *EntryPoint) Ready() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.state.(*ready)
	return ok
}

// Pending returns the number of calls waiting for a reporter.
func (e *EntryPoint) Pending() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	if s, ok := e.state.(*uninitialized); ok {
		return len(s.queued)
	}
	return len(e.backlog)
}
