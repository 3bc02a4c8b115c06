package transport

import (
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"
)

type capturedRequest struct {
	method      string
	contentType string
	body        []byte
}

func newCollector(t *testing.T, status int) (*httptest.Server, chan capturedRequest) {
	t.Helper()
	requests := make(chan capturedRequest, 8)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		requests <- capturedRequest{method: r.Method, contentType: r.Header.Get("Content-Type"), body: body}
		w.WriteHeader(status)
		_, _ = w.Write([]byte("ignored"))
	}))
	return srv, requests
}

func samplePayload() *Payload {
	ref := "https://search.example/"
	return &Payload{
		Name:     "Signup",
		URL:      "https://example.com/join",
		Domain:   "example.com",
		Referrer: &ref,
		Width:    1024,
		Meta:     `{"plan":"pro"}`,
		Props:    map[string]any{"tier": "gold"},
		Hash:     1,
		Custom:   true,
	}
}

func TestEncode_WireKeys(t *testing.T) {
	body, err := Encode(&Payload{Name: "pageview", URL: "https://example.com/", Domain: "example.com", Width: 800, Hash: 1})
	require.NoError(t, err)

	assert.JSONEq(t, `{"n":"pageview","u":"https://example.com/","d":"example.com","r":null,"w":800,"h":1}`, string(body))
}

func TestEncode_MetaAndProps(t *testing.T) {
	body, err := Encode(samplePayload())
	require.NoError(t, err)

	assert.JSONEq(t, `{
		"n":"Signup","u":"https://example.com/join","d":"example.com",
		"r":"https://search.example/","w":1024,
		"m":"{\"plan\":\"pro\"}","p":{"tier":"gold"},"h":1
	}`, string(body))
}

func TestHTTPTransport_PostsPlainTextAndCallsBack(t *testing.T) {
	defer goleak.VerifyNone(t)

	srv, requests := newCollector(t, http.StatusAccepted)
	defer srv.Close()

	tr := New(srv.URL+"/api/event", WithLogger(zaptest.NewLogger(t)))
	defer tr.Close()

	var calls atomic.Int32
	done := make(chan struct{})
	tr.Send(samplePayload(), func() {
		calls.Add(1)
		close(done)
	})

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("completion callback was not invoked")
	}
	tr.Wait()

	req := <-requests
	assert.Equal(t, http.MethodPost, req.method)
	assert.Equal(t, ContentType, req.contentType)

	got, err := Decode(req.body)
	require.NoError(t, err)
	want := samplePayload()
	want.Custom = false
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("payload mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, int32(1), calls.Load())
}

func TestHTTPTransport_AnyStatusCountsAsSent(t *testing.T) {
	defer goleak.VerifyNone(t)

	srv, _ := newCollector(t, http.StatusInternalServerError)
	defer srv.Close()

	tr := New(srv.URL)
	defer tr.Close()

	var wg sync.WaitGroup
	wg.Add(1)
	tr.Send(samplePayload(), wg.Done)
	tr.Wait()
	wg.Wait()
}

func TestHTTPTransport_FailureIsSwallowedWithoutCallback(t *testing.T) {
	defer goleak.VerifyNone(t)

	srv, _ := newCollector(t, http.StatusOK)
	endpoint := srv.URL
	srv.Close()

	tr := New(endpoint)
	defer tr.Close()

	var called atomic.Bool
	assert.NotPanics(t, func() {
		tr.Send(samplePayload(), func() { called.Store(true) })
	})
	tr.Wait()
	assert.False(t, called.Load())
}

func TestHTTPTransport_NilCallback(t *testing.T) {
	defer goleak.VerifyNone(t)

	srv, requests := newCollector(t, http.StatusOK)
	defer srv.Close()

	tr := New(srv.URL)
	defer tr.Close()

	tr.Send(samplePayload(), nil)
	tr.Wait()
	assert.Len(t, requests, 1)
}

func TestHTTPTransport_CallbackRunsThroughPoster(t *testing.T) {
	defer goleak.VerifyNone(t)

	srv, _ := newCollector(t, http.StatusOK)
	defer srv.Close()

	var posted atomic.Int32
	poster := func(fn func()) {
		posted.Add(1)
		fn()
	}
	tr := New(srv.URL, WithPoster(poster))
	defer tr.Close()

	var calls atomic.Int32
	tr.Send(samplePayload(), func() { calls.Add(1) })
	tr.Wait()

	assert.Equal(t, int32(1), posted.Load())
	assert.Equal(t, int32(1), calls.Load())
}

func TestRecorder(t *testing.T) {
	rec := NewRecorder(nil)
	var hooked []string
	rec.OnSend(func(p *Payload) { hooked = append(hooked, p.Name) })

	calls := 0
	rec.Send(&Payload{Name: "pageview"}, func() { calls++ })
	rec.Send(&Payload{Name: "Signup"}, nil)

	assert.Equal(t, []string{"pageview", "Signup"}, rec.Names())
	assert.Equal(t, []string{"pageview", "Signup"}, hooked)
	assert.Len(t, rec.Payloads(), 2)
	assert.Equal(t, 1, calls)
}

func TestOnceWrapper(t *testing.T) {
	assert.Nil(t, once(nil))

	n := 0
	f := once(func() { n++ })
	f()
	f()
	assert.Equal(t, 1, n)
}

func TestHTTPTransport_ObserverSeesPayloadBeforeDelivery(t *testing.T) {
	defer goleak.VerifyNone(t)

	srv, requests := newCollector(t, http.StatusOK)
	defer srv.Close()

	var seen []string
	tr := New(srv.URL, WithObserver(func(p *Payload) { seen = append(seen, p.Name) }), WithLogger(zaptest.NewLogger(t)))
	defer tr.Close()

	tr.Send(samplePayload(), nil)
	assert.Equal(t, []string{"Signup"}, seen, "observer runs synchronously inside Send")
	tr.Wait()
	assert.Len(t, requests, 1)
}
