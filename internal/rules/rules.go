// internal/rules/rules.go
package rules

import (
	"github.com/xkilldash9x/beacon/internal/pattern"
)

// PageviewEvent is the only event subject to include/exclude filtering.
const PageviewEvent = "pageview"

// Engine decides whether the automatic pageview for the current location may
// be reported. It is immutable once built.
type Engine struct {
	include []*pattern.Pattern
	exclude []*pattern.Pattern
}

// NewEngine compiles the include and exclude lists in order. An empty include
// list allows every path; an empty exclude list excludes none.
func NewEngine(include, exclude []string) *Engine {
	inc, _ := pattern.CompileList(include)
	exc, _ := pattern.CompileList(exclude)
	return &Engine{include: inc, exclude: exc}
}

// Allowed reports whether eventName may be sent while the page is at
// pathAndHash. Custom events are never filtered.
func (e *Engine) Allowed(eventName, pathAndHash string) bool {
	if e == nil || eventName != PageviewEvent {
		return true
	}
	included := len(e.include) == 0 || pattern.Any(e.include, pathAndHash)
	excluded := pattern.Any(e.exclude, pathAndHash)
	return included && !excluded
}

// Empty reports whether the engine has no rules at all.
func (e *Engine) Empty() bool {
	return e == nil || (len(e.include) == 0 && len(e.exclude) == 0)
}
