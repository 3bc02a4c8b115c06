// internal/hostconfig/extensions.go
package hostconfig

import (
	"sort"
	"strings"
)

// DefaultFileTypes are the extensions treated as downloads when the host
// does not say otherwise.
var DefaultFileTypes = []string{
	"pdf", "xlsx", "docx", "txt", "rtf", "csv", "exe", "key", "pps", "ppt", "pptx",
	"7z", "pkg", "rar", "gz", "zip", "avi", "mov", "mp4", "mpeg", "wmv", "midi",
	"mp3", "wav", "wma",
}

// ExtensionSet is an immutable set of lowercase file extensions.
type ExtensionSet struct {
	set map[string]struct{}
}

// NewExtensionSet builds a set from exts. Entries are trimmed, stripped of a
// leading dot and lowercased; empty entries are dropped.
func NewExtensionSet(exts ...string) ExtensionSet {
	s := ExtensionSet{set: make(map[string]struct{}, len(exts))}
	for _, e := range exts {
		e = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(e), "."))
		if e == "" {
			continue
		}
		s.set[e] = struct{}{}
	}
	return s
}

// ResolveExtensions picks the download extensions: a non-empty custom list
// replaces the defaults, otherwise additions extend them.
func ResolveExtensions(custom, additions []string) ExtensionSet {
	if len(custom) > 0 {
		return NewExtensionSet(custom...)
	}
	return NewExtensionSet(append(append([]string(nil), additions...), DefaultFileTypes...)...)
}

// Has reports whether ext belongs to the set, ignoring case.
func (s ExtensionSet) Has(ext string) bool {
	_, ok := s.set[strings.ToLower(ext)]
	return ok
}

// Len returns the number of extensions.
func (s ExtensionSet) Len() int { return len(s.set) }

// Sorted returns the extensions in lexical order.
func (s ExtensionSet) Sorted() []string {
	out := make([]string, 0, len(s.set))
	for e := range s.set {
		out = append(out, e)
	}
	sort.Strings(out)
	return out
}
