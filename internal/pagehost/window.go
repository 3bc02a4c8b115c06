// internal/pagehost/window.go
package pagehost

import (
	"strings"

	"github.com/dop251/goja"

	"github.com/xkilldash9x/beacon/internal/env"
)

// installWindow exposes the page environment to scripts: window as the
// global object and localStorage backed by store. The returned lookup
// resolves dotted global names against the runtime and must be called on
// the loop.
func installWindow(vm *goja.Runtime, store *env.MemoryStorage) (func(name string) bool, error) {
	global := vm.GlobalObject()
	if err := global.Set("window", global); err != nil {
		return nil, err
	}

	if store.Blocked() {
		deny := vm.ToValue(func(goja.FunctionCall) goja.Value {
			panic(vm.NewGoError(env.ErrStorageUnavailable))
		})
		if err := global.DefineAccessorProperty("localStorage", deny, nil, goja.FLAG_FALSE, goja.FLAG_TRUE); err != nil {
			return nil, err
		}
	} else if err := global.Set("localStorage", newStorageObject(vm, store)); err != nil {
		return nil, err
	}

	return func(name string) bool { return lookupGlobal(vm, name) }, nil
}

// lookupGlobal reports whether a dotted path such as "navigator.webdriver"
// names a truthy value. Getters that throw count as absent.
func lookupGlobal(vm *goja.Runtime, name string) bool {
	var truthy bool
	ex := vm.Try(func() {
		var v goja.Value = vm.GlobalObject()
		for _, part := range strings.Split(name, ".") {
			if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
				return
			}
			v = v.ToObject(vm).Get(part)
		}
		truthy = v != nil && v.ToBoolean()
	})
	return ex == nil && truthy
}

// storageObject is localStorage as scripts see it. Property access and the
// getItem family both read and write the same MemoryStorage the beacon
// consults for its opt-out flag.
type storageObject struct {
	vm      *goja.Runtime
	store   *env.MemoryStorage
	methods map[string]goja.Value
}

func newStorageObject(vm *goja.Runtime, store *env.MemoryStorage) *goja.Object {
	s := &storageObject{vm: vm, store: store}
	s.methods = map[string]goja.Value{
		"getItem": vm.ToValue(func(call goja.FunctionCall) goja.Value {
			if v, ok, _ := store.GetItem(call.Argument(0).String()); ok {
				return vm.ToValue(v)
			}
			return goja.Null()
		}),
		"setItem": vm.ToValue(func(call goja.FunctionCall) goja.Value {
			store.SetItem(call.Argument(0).String(), call.Argument(1).String())
			return goja.Undefined()
		}),
		"removeItem": vm.ToValue(func(call goja.FunctionCall) goja.Value {
			store.RemoveItem(call.Argument(0).String())
			return goja.Undefined()
		}),
		"clear": vm.ToValue(func(goja.FunctionCall) goja.Value {
			store.Clear()
			return goja.Undefined()
		}),
	}
	return vm.NewDynamicObject(s)
}

func (s *storageObject) Get(key string) goja.Value {
	if m, ok := s.methods[key]; ok {
		return m
	}
	if key == "length" {
		return s.vm.ToValue(len(s.store.Keys()))
	}
	if v, ok, _ := s.store.GetItem(key); ok {
		return s.vm.ToValue(v)
	}
	return nil
}

func (s *storageObject) Set(key string, val goja.Value) bool {
	if _, ok := s.methods[key]; ok || key == "length" {
		return false
	}
	s.store.SetItem(key, val.String())
	return true
}

func (s *storageObject) Has(key string) bool {
	if _, ok := s.methods[key]; ok || key == "length" {
		return true
	}
	_, ok, _ := s.store.GetItem(key)
	return ok
}

func (s *storageObject) Delete(key string) bool {
	s.store.RemoveItem(key)
	return true
}

func (s *storageObject) Keys() []string {
	return s.store.Keys()
}
