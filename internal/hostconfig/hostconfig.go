// internal/hostconfig/hostconfig.go
package hostconfig

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/xkilldash9x/beacon/internal/dom"
)

// ScriptID is the id of the element that carries the beacon's configuration.
const ScriptID = "plausible"

// DefaultEventPath is appended to the script origin when no explicit
// endpoint is configured.
const DefaultEventPath = "/api/event"

// Attribute names read from the configuration element.
const (
	AttrAPI          = "data-api"
	AttrDomain       = "data-domain"
	AttrInclude      = "data-include"
	AttrExclude      = "data-exclude"
	AttrFileTypes    = "file-types"
	AttrAddFileTypes = "add-file-types"
)

// Declarative event property prefixes. The longer prefix is checked first.
var eventPropPrefixes = []string{"data-event-", "event-"}

// ErrScriptNotFound is returned when the page has no configuration element.
var ErrScriptNotFound = errors.New("beacon configuration element not found")

// Property is a declarative event property in document order.
type Property struct {
	Key   string
	Value string
}

// Config is the host configuration, resolved once when the beacon loads.
type Config struct {
	Endpoint   string
	Domain     string
	Include    []string
	Exclude    []string
	FileTypes  ExtensionSet
	EventProps []Property
}

// Resolve reads the configuration element. base is the page URL, used to
// resolve a relative script src.
func Resolve(el dom.Element, base *url.URL) (*Config, error) {
	if el == nil {
		return nil, ErrScriptNotFound
	}

	endpoint, err := resolveEndpoint(el, base)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Endpoint: endpoint,
		Domain:   attr(el, AttrDomain),
		Include:  splitList(attr(el, AttrInclude)),
		Exclude:  splitList(attr(el, AttrExclude)),
		FileTypes: ResolveExtensions(
			splitList(attr(el, AttrFileTypes)),
			splitList(attr(el, AttrAddFileTypes)),
		),
		EventProps: eventProps(el),
	}
	return cfg, nil
}

// resolveEndpoint prefers the explicit endpoint attribute and otherwise
// derives one from the origin of the script's own source.
func resolveEndpoint(el dom.Element, base *url.URL) (string, error) {
	if api := attr(el, AttrAPI); api != "" {
		return api, nil
	}

	src := attr(el, "src")
	if src == "" {
		return "", fmt.Errorf("configuration element has neither %s nor src", AttrAPI)
	}
	u, err := url.Parse(src)
	if err != nil {
		return "", fmt.Errorf("invalid script src %q: %w", src, err)
	}
	if base != nil {
		u = base.ResolveReference(u)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("cannot derive an endpoint from script src %q", src)
	}
	return u.Scheme + "://" + u.Host + DefaultEventPath, nil
}

func eventProps(el dom.Element) []Property {
	var props []Property
	for _, name := range el.AttrNames() {
		for _, prefix := range eventPropPrefixes {
			if !strings.HasPrefix(name, prefix) {
				continue
			}
			key := strings.ToLower(strings.TrimPrefix(name, prefix))
			if key != "" {
				props = append(props, Property{Key: key, Value: attr(el, name)})
			}
			break
		}
	}
	return props
}

func attr(el dom.Element, name string) string {
	v, _ := el.Attr(name)
	return v
}

// splitList splits a comma separated attribute. An empty attribute yields
// no entries; entries are kept as written apart from surrounding spaces.
func splitList(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	for i, p := range parts {
		parts[i] = strings.TrimSpace(p)
	}
	return parts
}
