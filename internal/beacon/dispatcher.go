// internal/beacon/dispatcher.go
package beacon

import (
	"regexp"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/beacon/internal/env"
	"github.com/xkilldash9x/beacon/internal/hostconfig"
	"github.com/xkilldash9x/beacon/internal/rules"
	"github.com/xkilldash9x/beacon/internal/transport"
)

// OptOutKey is the storage key a visitor sets to "true" to stop reporting.
const OptOutKey = "plausible_ignore"

// Reasons given when an event is ignored.
const (
	ReasonLocalhost     = "localhost"
	ReasonAutomation    = "automation"
	ReasonStorageFlag   = "localStorage flag"
	ReasonExclusionRule = "exclusion rule"
)

// AutomationMarkers are globals that headless browsers and end-to-end test
// runners leave on the page.
var AutomationMarkers = []string{"_phantom", "__nightmare", "navigator.webdriver", "Cypress"}

// loopbackHost matches localhost, 127.0.0.0/8 in its short dotted forms
// and IPv6 loopback (url.Hostname strips the brackets).
var loopbackHost = regexp.MustCompile(`^localhost$|^127(\.[0-9]+){0,2}\.[0-9]+$|^::1?$`)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Options are the optional per-call arguments of Report. They are read
// during the call and not retained.
type Options struct {
	Meta     map[string]any
	Props    map[string]any
	Callback func()
}

// Reporter is anything events can be reported to.
type Reporter interface {
	Report(name string, opts *Options)
}

// Dispatcher decides whether an event qualifies and hands qualifying events
// to the transport.
type Dispatcher struct {
	env    env.Environment
	host   *hostconfig.Config
	rules  *rules.Engine
	sender transport.Sender
	logger *zap.Logger
}

// NewDispatcher wires a Dispatcher. The rule engine is built from the host
// configuration's include and exclude lists.
func NewDispatcher(e env.Environment, host *hostconfig.Config, sender transport.Sender, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if host == nil {
		host = &hostconfig.Config{}
	}
	return &Dispatcher{
		env:    e,
		host:   host,
		rules:  rules.NewEngine(host.Include, host.Exclude),
		sender: sender,
		logger: logger.Named("dispatcher"),
	}
}

// Report qualifies and sends one event. It never panics; every guard that
// fails ends the call quietly.
func (d *Dispatcher) Report(name string, opts *Options) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("Recovered from panic while reporting event",
				zap.String("event", name), zap.Any("panic", r))
		}
	}()

	if opts == nil {
		opts = &Options{}
	}

	loc := d.env.Location()
	if loopbackHost.MatchString(loc.Hostname()) || loc.Scheme == "file" {
		d.ignore(name, ReasonLocalhost)
		return
	}

	for _, marker := range AutomationMarkers {
		if d.env.Global(marker) {
			d.logger.Debug("Ignoring event", zap.String("event", name),
				zap.String("reason", ReasonAutomation), zap.String("marker", marker))
			return
		}
	}

	if d.optedOut() {
		d.ignore(name, ReasonStorageFlag)
		return
	}

	if !d.rules.Allowed(name, env.PathAndHash(loc)) {
		d.ignore(name, ReasonExclusionRule)
		return
	}

	payload := d.buildPayload(name, loc.String(), opts)
	d.sender.Send(payload, opts.Callback)
}

// optedOut reads the opt-out flag. Storage that cannot be read counts as
// the flag being absent.
func (d *Dispatcher) optedOut() bool {
	storage := d.env.Storage()
	if storage == nil {
		return false
	}
	v, ok, err := storage.GetItem(OptOutKey)
	if err != nil {
		d.logger.Debug("Storage unavailable, treating opt-out flag as unset", zap.Error(err))
		return false
	}
	return ok && v == "true"
}

func (d *Dispatcher) buildPayload(name, href string, opts *Options) *transport.Payload {
	p := &transport.Payload{
		Name:   name,
		URL:    href,
		Domain: d.host.Domain,
		Width:  d.env.InnerWidth(),
		Hash:   1,
		Custom: name != rules.PageviewEvent,
	}
	if ref := d.env.Referrer(); ref != "" {
		p.Referrer = &ref
	}

	if opts.Meta != nil {
		meta, err := json.MarshalToString(opts.Meta)
		if err != nil {
			d.logger.Warn("Dropping unencodable event meta", zap.String("event", name), zap.Error(err))
		} else {
			p.Meta = meta
		}
	}

	p.Props = mergeProps(opts.Props, d.host.EventProps)
	return p
}

// mergeProps copies the caller's props and fills in declarative properties
// only for keys the caller did not set.
func mergeProps(explicit map[string]any, declared []hostconfig.Property) map[string]any {
	if len(explicit) == 0 && len(declared) == 0 {
		return nil
	}
	props := make(map[string]any, len(explicit)+len(declared))
	for k, v := range explicit {
		props[k] = v
	}
	for _, prop := range declared {
		if _, set := props[prop.Key]; !set {
			props[prop.Key] = prop.Value
		}
	}
	return props
}

func (d *Dispatcher) ignore(name, reason string) {
	d.logger.Warn("Ignoring event", zap.String("event", name), zap.String("reason", reason))
}
