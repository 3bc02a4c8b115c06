// internal/jsbind/binding.go
package jsbind

import (
	"fmt"
	"strconv"

	"github.com/dop251/goja"
	"go.uber.org/zap"

	"github.com/xkilldash9x/beacon/internal/beacon"
)

// GlobalName is the global through which host pages report events.
const GlobalName = "plausible"

// Binding connects the page's JavaScript global to the beacon entry point.
// Every method must run on the goroutine that owns vm.
type Binding struct {
	vm     *goja.Runtime
	entry  *beacon.EntryPoint
	logger *zap.Logger
}

// Bind moves calls queued on a placeholder global into entry, then replaces
// the global with a function that forwards to entry. It returns the number
// of queued calls it found.
//
// Host pages queue calls with the usual snippet:
//
//	window.plausible = window.plausible || function() {
//	  (window.plausible.q = window.plausible.q || []).push(arguments)
//	}
func Bind(vm *goja.Runtime, entry *beacon.EntryPoint, logger *zap.Logger) (*Binding, int, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	b := &Binding{vm: vm, entry: entry, logger: logger.Named("jsbind")}

	queued, err := b.drainPlaceholder()
	if err != nil {
		return nil, 0, err
	}
	if err := vm.Set(GlobalName, b.report); err != nil {
		return nil, queued, fmt.Errorf("failed to install %s global: %w", GlobalName, err)
	}
	return b, queued, nil
}

// drainPlaceholder copies the q array of an existing placeholder into the
// entry point, in order.
func (b *Binding) drainPlaceholder() (int, error) {
	var calls []beacon.Call
	if ex := b.vm.Try(func() { calls = b.readQueue() }); ex != nil {
		return 0, fmt.Errorf("failed to read queued %s calls: %w", GlobalName, ex)
	}
	for _, c := range calls {
		b.entry.Report(c.Name, c.Options)
	}
	return len(calls), nil
}

func (b *Binding) readQueue() []beacon.Call {
	placeholder, ok := b.vm.Get(GlobalName).(*goja.Object)
	if !ok {
		return nil
	}
	q := placeholder.Get("q")
	if absent(q) {
		return nil
	}

	queue := q.ToObject(b.vm)
	length := queue.Get("length")
	if absent(length) {
		return nil
	}

	var calls []beacon.Call
	for i := int64(0); i < length.ToInteger(); i++ {
		item := queue.Get(strconv.FormatInt(i, 10))
		if absent(item) {
			continue
		}
		args := item.ToObject(b.vm)
		name, opts := b.convert(args.Get("0"), args.Get("1"))
		calls = append(calls, beacon.Call{Name: name, Options: opts})
	}
	return calls
}

// report is the JavaScript-facing plausible(name, options) function. It
// never throws into the calling script.
func (b *Binding) report(call goja.FunctionCall) goja.Value {
	var (
		name string
		opts *beacon.Options
	)
	if ex := b.vm.Try(func() { name, opts = b.convert(call.Argument(0), call.Argument(1)) }); ex != nil {
		b.logger.Warn("Ignoring malformed report call", zap.Error(ex))
		return goja.Undefined()
	}
	b.entry.Report(name, opts)
	return goja.Undefined()
}

// convert turns JavaScript arguments into a report call.
func (b *Binding) convert(nameVal, optsVal goja.Value) (string, *beacon.Options) {
	name := "undefined"
	if nameVal != nil {
		name = nameVal.String()
	}
	if absent(optsVal) {
		return name, nil
	}

	obj := optsVal.ToObject(b.vm)
	opts := &beacon.Options{
		Meta:  exportMap(obj.Get("meta")),
		Props: exportMap(obj.Get("props")),
	}
	if fn, ok := goja.AssertFunction(obj.Get("callback")); ok {
		opts.Callback = func() {
			if _, err := fn(goja.Undefined()); err != nil {
				b.logger.Warn("Event callback threw", zap.String("event", name), zap.Error(err))
			}
		}
	}
	return name, opts
}

func exportMap(v goja.Value) map[string]any {
	if absent(v) {
		return nil
	}
	m, ok := v.Export().(map[string]any)
	if !ok {
		return nil
	}
	return m
}

func absent(v goja.Value) bool {
	return v == nil || goja.IsUndefined(v) || goja.IsNull(v)
}
