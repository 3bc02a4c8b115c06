// internal/pattern/pattern.go
package pattern

import (
	"fmt"
	"regexp"
	"strings"
)

const (
	// anyRun matches across path separators ("**").
	anyRun = ".*"
	// segmentRun matches within a single path segment ("*").
	segmentRun = `[^\s/]*`
)

// Pattern is a compiled glob that is tested against a page's path and hash.
type Pattern struct {
	raw string
	re  *regexp.Regexp
}

// Compile translates a glob into an anchored regular expression.
//
// The glob is trimmed and quoted for literal use first, so only the
// wildcards carry meaning: "**" matches any run of characters and a
// remaining "*" matches any run of characters other than whitespace and
// "/". The expression is anchored to the start of the input and tolerates
// a single trailing slash at the end.
func Compile(glob string) (*Pattern, error) {
	raw := strings.TrimSpace(glob)

	expr := regexp.QuoteMeta(raw)
	expr = strings.ReplaceAll(expr, `\*\*`, anyRun)
	expr = strings.ReplaceAll(expr, `\*`, segmentRun)

	re, err := regexp.Compile("^" + expr + "/?$")
	if err != nil {
		return nil, fmt.Errorf("invalid pattern %q: %w", raw, err)
	}
	return &Pattern{raw: raw, re: re}, nil
}

// MustCompile is like Compile but panics if the glob cannot be compiled.
func MustCompile(glob string) *Pattern {
	p, err := Compile(glob)
	if err != nil {
		panic(err)
	}
	return p
}

// Match reports whether pathAndHash is matched by the pattern.
func (p *Pattern) Match(pathAndHash string) bool {
	if p == nil || p.re == nil {
		return false
	}
	return p.re.MatchString(pathAndHash)
}

// String returns the trimmed glob the pattern was compiled from.
func (p *Pattern) String() string {
	return p.raw
}

// Match compiles glob and tests it against pathAndHash. A glob that does not
// compile matches nothing.
func Match(glob, pathAndHash string) bool {
	p, err := Compile(glob)
	if err != nil {
		return false
	}
	return p.Match(pathAndHash)
}

// CompileList compiles every glob in order. Globs that fail to compile are
// returned as errors alongside the patterns that did compile.
func CompileList(globs []string) ([]*Pattern, []error) {
	patterns := make([]*Pattern, 0, len(globs))
	var errs []error
	for _, g := range globs {
		p, err := Compile(g)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		patterns = append(patterns, p)
	}
	return patterns, errs
}

// Any reports whether at least one of the patterns matches pathAndHash.
func Any(patterns []*Pattern, pathAndHash string) bool {
	for _, p := range patterns {
		if p.Match(pathAndHash) {
			return true
		}
	}
	return false
}
