package pagehost

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dop251/goja"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestLoop_DoRunsOnLoop(t *testing.T) {
	defer goleak.VerifyNone(t)
	l := NewLoop()
	defer l.Stop()

	var got int64
	err := l.Do(context.Background(), func(vm *goja.Runtime) error {
		v, err := vm.RunString("6 * 7")
		if err != nil {
			return err
		}
		got = v.ToInteger()
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, int64(42), got)
}

func TestLoop_DoReturnsErrorsAndPanics(t *testing.T) {
	l := NewLoop()
	defer l.Stop()
	ctx := context.Background()

	boom := errors.New("boom")
	assert.ErrorIs(t, l.Do(ctx, func(*goja.Runtime) error { return boom }), boom)

	err := l.Do(ctx, func(*goja.Runtime) error { panic("kaboom") })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "kaboom")

	assert.NoError(t, l.Do(ctx, func(*goja.Runtime) error { return nil }), "loop survives a panic")
}

func TestLoop_PostAndAfterFuncOrdering(t *testing.T) {
	l := NewLoop()
	defer l.Stop()
	ctx := context.Background()

	var order []string
	require.NoError(t, l.Do(ctx, func(*goja.Runtime) error {
		l.AfterFunc(20*time.Millisecond, func() { order = append(order, "timer") })
		l.Post(func() { order = append(order, "posted") })
		order = append(order, "inline")
		return nil
	}))

	time.Sleep(60 * time.Millisecond)
	var snapshot []string
	require.NoError(t, l.Do(ctx, func(*goja.Runtime) error {
		snapshot = append(snapshot, order...)
		return nil
	}))
	assert.Equal(t, []string{"inline", "posted", "timer"}, snapshot)
}

func TestLoop_DoHonoursContext(t *testing.T) {
	l := NewLoop()
	defer l.Stop()

	release := make(chan struct{})
	l.Post(func() { <-release })
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := l.Do(ctx, func(*goja.Runtime) error { return nil })
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestLoop_DoAfterStopFailsFast(t *testing.T) {
	defer goleak.VerifyNone(t)
	l := NewLoop()
	l.Stop()
	l.Stop()

	done := make(chan error, 1)
	go func() { done <- l.Do(context.Background(), func(*goja.Runtime) error { return nil }) }()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrLoopStopped)
	case <-time.After(2 * time.Second):
		t.Fatal("Do blocked on a stopped loop")
	}
}
