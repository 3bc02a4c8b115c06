package pagehost

import (
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/beacon/internal/beacon"
	"github.com/xkilldash9x/beacon/internal/dom"
	"github.com/xkilldash9x/beacon/internal/env"
	"github.com/xkilldash9x/beacon/internal/hostconfig"
	"github.com/xkilldash9x/beacon/internal/transport"
)

type immediateScheduler struct{ delays []time.Duration }

func (s *immediateScheduler) AfterFunc(d time.Duration, fn func()) {
	s.delays = append(s.delays, d)
	fn()
}

func newTestPage(t *testing.T, rawURL string, opts ...env.PageOption) *env.Page {
	t.Helper()
	u, err := url.Parse(rawURL)
	require.NoError(t, err)
	doc, err := dom.ParseString(`<html><body><a id="dl" href="/report.pdf">r</a></body></html>`)
	require.NoError(t, err)
	return env.NewPage(u, doc, opts...)
}

func TestBootstrap_ReplaysQueueBeforeInitialPageview(t *testing.T) {
	page := newTestPage(t, "https://example.com/")
	rec := transport.NewRecorder(nil)

	entry := beacon.NewEntryPoint()
	entry.Report("Signup", nil)
	entry.Report("Purchase", nil)

	b, err := Bootstrap(Deps{
		Env:       page,
		Window:    page.Window,
		Document:  page.Document,
		Host:      &hostconfig.Config{Domain: "example.com", FileTypes: hostconfig.ResolveExtensions(nil, nil)},
		Sender:    rec,
		Scheduler: &immediateScheduler{},
		Entry:     entry,
		Logger:    zaptest.NewLogger(t),
	})
	require.NoError(t, err)

	assert.NotEmpty(t, b.ID)
	assert.Equal(t, 2, b.Replayed)
	assert.Equal(t, []string{"Signup", "Purchase", "pageview"}, rec.Names())

	entry.Report("Later", nil)
	assert.Equal(t, []string{"Signup", "Purchase", "pageview", "Later"}, rec.Names())
}

func TestBootstrap_WiresDownloadsAndHashChanges(t *testing.T) {
	page := newTestPage(t, "https://example.com/docs")
	rec := transport.NewRecorder(nil)
	sched := &immediateScheduler{}

	_, err := Bootstrap(Deps{
		Env:       page,
		Window:    page.Window,
		Document:  page.Document,
		Sender:    rec,
		Scheduler: sched,
	})
	require.NoError(t, err)

	page.SetHash("#faq")
	page.Document.DispatchEvent(&dom.Event{Type: "click", Which: dom.WhichLeft, Target: page.Document.ElementByID("dl")})

	assert.Equal(t, []string{"pageview", "pageview", "File Download"}, rec.Names())
	assert.Equal(t, []time.Duration{150 * time.Millisecond}, sched.delays)
	assert.Equal(t, []string{"https://example.com/report.pdf"}, page.Navigations())
}

func TestBootstrap_LocalhostSendsNothing(t *testing.T) {
	page := newTestPage(t, "http://localhost:8080/")
	rec := transport.NewRecorder(nil)

	entry := beacon.NewEntryPoint()
	entry.Report("Signup", nil)

	_, err := Bootstrap(Deps{Env: page, Window: page.Window, Document: page.Document, Sender: rec, Scheduler: &immediateScheduler{}, Entry: entry})
	require.NoError(t, err)

	assert.Empty(t, rec.Payloads())
}

func TestBootstrap_RequiresDependencies(t *testing.T) {
	page := newTestPage(t, "https://example.com/")
	rec := transport.NewRecorder(nil)

	_, err := Bootstrap(Deps{Window: page.Window, Document: page.Document, Sender: rec, Scheduler: &immediateScheduler{}})
	assert.Error(t, err)
	_, err = Bootstrap(Deps{Env: page, Window: page.Window, Document: page.Document, Scheduler: &immediateScheduler{}})
	assert.Error(t, err)
	_, err = Bootstrap(Deps{Env: page, Window: page.Window, Document: page.Document, Sender: rec})
	assert.Error(t, err)
	_, err = Bootstrap(Deps{Env: page, Sender: rec, Scheduler: &immediateScheduler{}})
	assert.Error(t, err)
}

func TestBootstrap_SecondInstallFails(t *testing.T) {
	page := newTestPage(t, "https://example.com/")
	entry := beacon.NewEntryPoint()
	deps := Deps{Env: page, Window: page.Window, Document: page.Document, Sender: transport.NewRecorder(nil), Scheduler: &immediateScheduler{}, Entry: entry}

	_, err := Bootstrap(deps)
	require.NoError(t, err)
	_, err = Bootstrap(deps)
	assert.ErrorIs(t, err, beacon.ErrAlreadyInstalled)
}
