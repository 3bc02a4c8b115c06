// internal/autocapture/downloads.go
package autocapture

import (
	"net/url"
	"path"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/beacon/internal/beacon"
	"github.com/xkilldash9x/beacon/internal/dom"
	"github.com/xkilldash9x/beacon/internal/env"
	"github.com/xkilldash9x/beacon/internal/hostconfig"
)

// FileDownloadEvent is the custom event reported for download links.
const FileDownloadEvent = "File Download"

// NavigationDelay is how long a deferred navigation waits so the beacon
// request can leave before the page unloads.
const NavigationDelay = 150 * time.Millisecond

var sameDocumentTarget = regexp.MustCompile(`(?i)^_(self|parent|top)$`)

// DownloadController reports clicks on links to downloadable files.
type DownloadController struct {
	reporter   Reporter
	env        env.Environment
	extensions hostconfig.ExtensionSet
	scheduler  Scheduler
	logger     *zap.Logger
}

// NewDownloadController creates a controller that treats links whose path
// ends in one of extensions as downloads.
func NewDownloadController(r Reporter, e env.Environment, extensions hostconfig.ExtensionSet, s Scheduler, logger *zap.Logger) *DownloadController {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DownloadController{
		reporter:   r,
		env:        e,
		extensions: extensions,
		scheduler:  s,
		logger:     logger.Named("downloads"),
	}
}

// Attach registers one delegated handler per click type on the document.
func (c *DownloadController) Attach(document EventSource) {
	document.AddEventListener("click", c.HandleClick)
	document.AddEventListener("auxclick", c.HandleClick)
}

// HandleClick inspects a click or auxclick and reports it when it lands on
// a download link. Same-document left clicks are held back briefly.
func (c *DownloadController) HandleClick(ev *dom.Event) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("Recovered from panic in click handler", zap.Any("panic", r))
		}
	}()

	middle := ev.Type == "auxclick" && ev.Which == dom.WhichMiddle
	click := ev.Type == "click"

	anchor := dom.ClosestAnchor(ev.Target)
	if anchor == nil {
		return
	}
	rawHref, _ := anchor.Attr("href")
	href := c.resolve(rawHref)
	if !c.isDownload(href) {
		return
	}
	clean, _, _ := strings.Cut(href, "?")

	if middle || click {
		c.reporter.Report(FileDownloadEvent, &beacon.Options{
			Props: map[string]any{"url": clean},
		})
	}

	target, _ := anchor.Attr("target")
	if target != "" && !sameDocumentTarget.MatchString(target) {
		return
	}
	if ev.CtrlKey || ev.MetaKey || ev.ShiftKey || !click || ev.Which > dom.WhichLeft {
		return
	}

	ev.PreventDefault()
	c.scheduler.AfterFunc(NavigationDelay, func() {
		c.env.Navigate(href)
	})
}

// resolve turns an href attribute into the absolute URL a browser exposes.
func (c *DownloadController) resolve(raw string) string {
	ref, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return raw
	}
	return c.env.Location().ResolveReference(ref).String()
}

func (c *DownloadController) isDownload(href string) bool {
	u, err := url.Parse(href)
	if err != nil {
		return false
	}
	ext := strings.TrimPrefix(path.Ext(u.Path), ".")
	return ext != "" && c.extensions.Has(ext)
}
