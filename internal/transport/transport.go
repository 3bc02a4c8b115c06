// internal/transport/transport.go
package transport

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"sync"

	"go.uber.org/zap"
)

// Sender delivers payloads. Send never blocks on the network and never
// reports failure; done, when non-nil, runs at most once after the request
// settles with a response.
type Sender interface {
	Send(p *Payload, done func())
}

// Poster schedules fn on the goroutine that owns the page. Completion
// callbacks go through it so host code only ever runs on that goroutine.
type Poster func(fn func())

// Immediate runs fn on the calling goroutine.
func Immediate(fn func()) { fn() }

// once wraps done so it can run at most one time.
func once(done func()) func() {
	if done == nil {
		return nil
	}
	var o sync.Once
	return func() { o.Do(done) }
}

// HTTPTransport posts each payload to the collection endpoint on its own
// goroutine, fire and forget.
type HTTPTransport struct {
	endpoint string
	client   *http.Client
	post     Poster
	observe  func(*Payload)
	logger   *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Option configures an HTTPTransport.
type Option func(*HTTPTransport)

// WithClient overrides the HTTP client.
func WithClient(c *http.Client) Option { return func(t *HTTPTransport) { t.client = c } }

// WithPoster sets where completion callbacks run. The default runs them on
// the send goroutine.
func WithPoster(p Poster) Option { return func(t *HTTPTransport) { t.post = p } }

// WithObserver registers fn to see every payload before it is posted.
func WithObserver(fn func(*Payload)) Option { return func(t *HTTPTransport) { t.observe = fn } }

// WithLogger sets the transport's logger.
func WithLogger(l *zap.Logger) Option { return func(t *HTTPTransport) { t.logger = l } }

// New creates a transport that posts to endpoint.
func New(endpoint string, opts ...Option) *HTTPTransport {
	ctx, cancel := context.WithCancel(context.Background())
	t := &HTTPTransport{
		endpoint: endpoint,
		post:     Immediate,
		logger:   zap.NewNop(),
		ctx:      ctx,
		cancel:   cancel,
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.client == nil {
		t.client = NewClient(nil, t.logger)
	}
	t.logger = t.logger.Named("transport")
	return t
}

// Endpoint returns the collection URL requests are posted to.
func (t *HTTPTransport) Endpoint() string { return t.endpoint }

// Send encodes p and posts it in the background.
func (t *HTTPTransport) Send(p *Payload, done func()) {
	body, err := Encode(p)
	if err != nil {
		t.logger.Debug("Dropping unencodable payload", zap.String("event", p.Name), zap.Error(err))
		return
	}
	if t.observe != nil {
		t.observe(p)
	}

	done = once(done)
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		if t.deliver(body) && done != nil {
			t.post(done)
		}
	}()
}

// deliver performs the request and reports whether it reached a response.
func (t *HTTPTransport) deliver(body []byte) bool {
	req, err := http.NewRequestWithContext(t.ctx, http.MethodPost, t.endpoint, bytes.NewReader(body))
	if err != nil {
		return false
	}
	req.Header.Set("Content-Type", ContentType)

	resp, err := t.client.Do(req)
	if err != nil {
		t.logger.Debug("Event request failed", zap.Error(err))
		return false
	}
	t.logger.Debug("Event request settled", zap.Int("status", resp.StatusCode))
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
	return true
}

// Wait blocks until every send issued so far has settled.
func (t *HTTPTransport) Wait() {
	t.wg.Wait()
}

// Close abandons in-flight sends, as a page unload would, and waits for
// their goroutines to exit.
func (t *HTTPTransport) Close() {
	t.cancel()
	t.wg.Wait()
	t.client.CloseIdleConnections()
}
