// internal/pagehost/bootstrap.go
package pagehost

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/beacon/internal/autocapture"
	"github.com/xkilldash9x/beacon/internal/beacon"
	"github.com/xkilldash9x/beacon/internal/env"
	"github.com/xkilldash9x/beacon/internal/hostconfig"
	"github.com/xkilldash9x/beacon/internal/transport"
)

// Deps are the collaborators Bootstrap wires together.
type Deps struct {
	Env       env.Environment
	Window    autocapture.EventSource
	Document  autocapture.EventSource
	Host      *hostconfig.Config
	Sender    transport.Sender
	Scheduler autocapture.Scheduler
	// Entry may already hold calls queued by the page.
	Entry  *beacon.EntryPoint
	Logger *zap.Logger
}

// Beacon is a running beacon instance.
type Beacon struct {
	ID         string
	Entry      *beacon.EntryPoint
	Dispatcher *beacon.Dispatcher
	Pageviews  *autocapture.PageviewController
	Downloads  *autocapture.DownloadController
	Replayed   int
}

// Bootstrap starts a beacon: click listeners first, then the dispatcher is
// installed and the queued calls replayed, then the initial pageview.
func Bootstrap(d Deps) (*Beacon, error) {
	switch {
	case d.Env == nil:
		return nil, errors.New("bootstrap requires an environment")
	case d.Sender == nil:
		return nil, errors.New("bootstrap requires a sender")
	case d.Scheduler == nil:
		return nil, errors.New("bootstrap requires a scheduler")
	case d.Window == nil || d.Document == nil:
		return nil, errors.New("bootstrap requires window and document event sources")
	}
	if d.Host == nil {
		d.Host = &hostconfig.Config{FileTypes: hostconfig.ResolveExtensions(nil, nil)}
	}
	if d.Entry == nil {
		d.Entry = beacon.NewEntryPoint()
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}

	id := uuid.NewString()
	logger := d.Logger.With(zap.String("beacon_id", id))

	b := &Beacon{
		ID:         id,
		Entry:      d.Entry,
		Dispatcher: beacon.NewDispatcher(d.Env, d.Host, d.Sender, logger),
	}

	b.Downloads = autocapture.NewDownloadController(d.Entry, d.Env, d.Host.FileTypes, d.Scheduler, logger)
	b.Downloads.Attach(d.Document)

	replayed, err := d.Entry.Install(b.Dispatcher)
	if err != nil {
		return nil, fmt.Errorf("failed to install dispatcher: %w", err)
	}
	b.Replayed = replayed

	b.Pageviews = autocapture.NewPageviewController(d.Entry, d.Env, d.Window, d.Document, logger)
	b.Pageviews.Start()

	logger.Debug("Beacon started",
		zap.String("domain", d.Host.Domain),
		zap.Int("replayed", replayed),
		zap.Int("file_types", d.Host.FileTypes.Len()),
	)
	return b, nil
}
