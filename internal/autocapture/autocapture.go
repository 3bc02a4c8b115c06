// Package autocapture attaches the beacon's automatic listeners to a page:
// pageviews on load and hash navigation, and outbound file downloads on
// clicks anywhere in the document.
package autocapture

import (
	"time"

	"github.com/xkilldash9x/beacon/internal/beacon"
	"github.com/xkilldash9x/beacon/internal/dom"
)

// EventSource is a target handlers can be attached to.
type EventSource interface {
	AddEventListener(typ string, h dom.Handler)
}

// Scheduler runs fn once after d on the page's goroutine.
type Scheduler interface {
	AfterFunc(d time.Duration, fn func())
}

// Reporter is where captured events go.
type Reporter = beacon.Reporter
