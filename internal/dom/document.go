// internal/dom/document.go
package dom

import (
	"fmt"
	"io"
	"strings"

	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"
)

// Document is a parsed page. Listeners registered on it receive the events
// injected by the page host, which is how delegated handlers see every click.
type Document struct {
	EventTarget
	root *html.Node
}

// Parse reads an HTML document.
func Parse(r io.Reader) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse document: %w", err)
	}
	return &Document{root: root}, nil
}

// ParseString is a convenience wrapper around Parse.
func ParseString(s string) (*Document, error) {
	return Parse(strings.NewReader(s))
}

// Root returns the document node.
func (d *Document) Root() *html.Node { return d.root }

// ElementByID returns the first element whose id attribute equals id.
func (d *Document) ElementByID(id string) Element {
	if strings.ContainsAny(id, `'"`) {
		return d.findByID(d.root, id)
	}
	n, err := htmlquery.Query(d.root, fmt.Sprintf("//*[@id='%s']", id))
	if err != nil {
		return nil
	}
	return Wrap(n)
}

// findByID is the fallback for ids that cannot be quoted inside XPath.
func (d *Document) findByID(n *html.Node, id string) Element {
	if n.Type == html.ElementNode && htmlquery.SelectAttr(n, "id") == id {
		return Wrap(n)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if el := d.findByID(c, id); el != nil {
			return el
		}
	}
	return nil
}

// Query returns the first element matching the XPath expression.
func (d *Document) Query(xpath string) (Element, error) {
	n, err := htmlquery.Query(d.root, xpath)
	if err != nil {
		return nil, fmt.Errorf("invalid selector %q: %w", xpath, err)
	}
	el := Wrap(n)
	if el == nil {
		return nil, &ElementNotFoundError{Selector: xpath}
	}
	return el, nil
}

// ElementNotFoundError is returned when a selector matches no element.
type ElementNotFoundError struct {
	Selector string
}

func (e *ElementNotFoundError) Error() string {
	return fmt.Sprintf("element not found matching selector '%s'", e.Selector)
}
