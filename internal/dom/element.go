// internal/dom/element.go
package dom

import (
	"strings"

	"golang.org/x/net/html"
)

// MaxAncestorDepth bounds every upward traversal through the element tree.
const MaxAncestorDepth = 512

// Element is the read-only view of a DOM element the beacon needs: its tag,
// its attributes and its parent. Parent returns nil at the document root.
type Element interface {
	TagName() string
	Attr(name string) (string, bool)
	AttrNames() []string
	Parent() Element
}

// Node adapts an *html.Node of type ElementNode to Element.
type Node struct {
	n *html.Node
}

// Wrap returns an Element for n, or nil when n is not an element node.
func Wrap(n *html.Node) Element {
	if n == nil || n.Type != html.ElementNode {
		return nil
	}
	return &Node{n: n}
}

// HTMLNode exposes the underlying parse tree node.
func (e *Node) HTMLNode() *html.Node { return e.n }

func (e *Node) TagName() string { return strings.ToLower(e.n.Data) }

func (e *Node) Attr(name string) (string, bool) {
	for _, a := range e.n.Attr {
		if strings.EqualFold(a.Key, name) {
			return a.Val, true
		}
	}
	return "", false
}

func (e *Node) AttrNames() []string {
	names := make([]string, 0, len(e.n.Attr))
	for _, a := range e.n.Attr {
		names = append(names, strings.ToLower(a.Key))
	}
	return names
}

func (e *Node) Parent() Element {
	return Wrap(e.n.Parent)
}

// ClosestAnchor walks from el through its ancestors and returns the first
// <a> element carrying a non-empty href. It stops at the document root or
// after MaxAncestorDepth steps and returns nil when nothing qualifies.
func ClosestAnchor(el Element) Element {
	for depth := 0; el != nil && depth < MaxAncestorDepth; depth++ {
		if el.TagName() == "a" {
			if href, ok := el.Attr("href"); ok && href != "" {
				return el
			}
		}
		el = el.Parent()
	}
	return nil
}

// SameNode reports whether a and b wrap the same parse tree node.
func SameNode(a, b Element) bool {
	na, okA := a.(*Node)
	nb, okB := b.(*Node)
	return okA && okB && na.n == nb.n
}
