// internal/pagehost/loop.go
package pagehost

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dop251/goja"
	"github.com/dop251/goja_nodejs/eventloop"
)

// ErrLoopStopped is returned by Do once the loop has been stopped.
var ErrLoopStopped = errors.New("event loop stopped")

// Loop is the single goroutine a page runs on. Engine code, JavaScript,
// timers and transport completions all execute there, one at a time.
type Loop struct {
	loop     *eventloop.EventLoop
	stopped  chan struct{}
	stopOnce sync.Once
}

// NewLoop creates and starts an event loop.
func NewLoop() *Loop {
	l := &Loop{
		loop:    eventloop.NewEventLoop(),
		stopped: make(chan struct{}),
	}
	l.loop.Start()
	return l
}

// AfterFunc runs fn on the loop once d has elapsed. The timer cannot be
// cancelled.
func (l *Loop) AfterFunc(d time.Duration, fn func()) {
	l.loop.SetTimeout(func(*goja.Runtime) { fn() }, d)
}

// Post runs fn on the loop as soon as possible. After Stop, fn is dropped.
func (l *Loop) Post(fn func()) {
	l.loop.RunOnLoop(func(*goja.Runtime) { fn() })
}

// Do runs fn on the loop with the loop's JavaScript runtime and waits for it
// to return. It fails with ErrLoopStopped instead of waiting on a loop that
// will never run fn.
func (l *Loop) Do(ctx context.Context, fn func(vm *goja.Runtime) error) error {
	select {
	case <-l.stopped:
		return ErrLoopStopped
	default:
	}

	errCh := make(chan error, 1)
	l.loop.RunOnLoop(func(vm *goja.Runtime) {
		defer func() {
			if r := recover(); r != nil {
				errCh <- fmt.Errorf("panic on event loop: %v", r)
			}
		}()
		errCh <- fn(vm)
	})

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-l.stopped:
		// fn may have finished just before the loop went down.
		select {
		case err := <-errCh:
			return err
		default:
			return ErrLoopStopped
		}
	}
}

// Stop terminates the loop. Timers that have not fired are dropped. Calling
// Stop more than once is safe.
func (l *Loop) Stop() {
	l.stopOnce.Do(func() {
		l.loop.Stop()
		close(l.stopped)
	})
}
