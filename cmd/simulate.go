// File: cmd/simulate.go
package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/beacon/internal/dom"
	"github.com/xkilldash9x/beacon/internal/hostconfig"
	"github.com/xkilldash9x/beacon/internal/observability"
	"github.com/xkilldash9x/beacon/internal/pagehost"
	"github.com/xkilldash9x/beacon/internal/transport"
)

type simulateOptions struct {
	url            string
	preload        string
	referrer       string
	visibility     string
	width          int
	settle         time.Duration
	insecure       bool
	dryRun         bool
	storageBlocked bool
	clicks         []string
	middleClicks   []string
	hashes         []string
	storage        []string
	globals        []string
}

func newSimulateCmd() *cobra.Command {
	opts := &simulateOptions{}
	cmd := &cobra.Command{
		Use:   "simulate PAGE.html",
		Short: "Loads a page with the beacon installed and replays interactions against it",
		Long: `Hosts PAGE.html at --url with the beacon script configured from its
<script id="plausible"> tag, runs the optional preload script, performs the
requested clicks and hash changes in order, and prints every dispatched
payload as a JSON line. With --dry-run nothing is sent over the network.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSimulate(cmd, args[0], opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.url, "url", "", "URL the page is loaded at (required)")
	f.StringVar(&opts.preload, "preload", "", "JavaScript file run before the beacon loads")
	f.StringVar(&opts.referrer, "referrer", "", "document referrer")
	f.StringVar(&opts.visibility, "visibility", "", "initial visibility state (visible, hidden, prerender)")
	f.IntVar(&opts.width, "width", 0, "viewport width in pixels")
	f.DurationVar(&opts.settle, "settle", 0, "time to wait for timers and sends after the last interaction")
	f.BoolVar(&opts.insecure, "insecure", false, "skip TLS verification of the collection endpoint")
	f.BoolVar(&opts.dryRun, "dry-run", false, "record payloads instead of sending them")
	f.BoolVar(&opts.storageBlocked, "storage-blocked", false, "make persistent storage reads fail")
	f.StringArrayVar(&opts.clicks, "click", nil, "XPath of an element to left-click (repeatable)")
	f.StringArrayVar(&opts.middleClicks, "middle-click", nil, "XPath of an element to middle-click (repeatable)")
	f.StringArrayVar(&opts.hashes, "hash", nil, "fragment to navigate to (repeatable)")
	f.StringArrayVar(&opts.storage, "storage", nil, "persistent storage entry as key=value (repeatable)")
	f.StringArrayVar(&opts.globals, "global", nil, "global property defined on the page, e.g. navigator.webdriver (repeatable)")
	_ = cmd.MarkFlagRequired("url")
	return cmd
}

func runSimulate(cmd *cobra.Command, pagePath string, opts *simulateOptions) error {
	ctx := cmd.Context()
	logger := observability.GetLogger().Named("simulate")
	cfg := configFromContext(ctx)

	if cmd.Flags().Changed("width") {
		cfg.SetPageViewportWidth(opts.width)
	}
	if cmd.Flags().Changed("settle") {
		cfg.SetPageSettle(opts.settle)
	}
	if opts.insecure {
		cfg.SetTransportInsecureSkipVerify(true)
	}

	html, err := os.ReadFile(pagePath)
	if err != nil {
		return fmt.Errorf("failed to read page: %w", err)
	}
	var preload string
	if opts.preload != "" {
		b, err := os.ReadFile(opts.preload)
		if err != nil {
			return fmt.Errorf("failed to read preload script: %w", err)
		}
		preload = string(b)
	}
	storage, err := parseStorage(opts.storage)
	if err != nil {
		return err
	}

	page := cfg.Page()
	spec := pagehost.PageSpec{
		URL:            opts.url,
		HTML:           string(html),
		Referrer:       firstNonEmpty(opts.referrer, page.Referrer),
		Width:          page.ViewportWidth,
		Visibility:     firstNonEmpty(opts.visibility, page.Visibility),
		Storage:        storage,
		StorageBlocked: opts.storageBlocked,
		Globals:        opts.globals,
	}

	printer := newPayloadPrinter(cmd.OutOrStdout(), logger)
	factory := func(host *hostconfig.Config, post transport.Poster) transport.Sender {
		if opts.dryRun {
			rec := transport.NewRecorder(post)
			rec.OnSend(printer.print)
			return rec
		}
		client := transport.NewClient(cfg.Transport().ClientConfig(), logger)
		return transport.New(host.Endpoint,
			transport.WithClient(client),
			transport.WithPoster(post),
			transport.WithObserver(printer.print),
			transport.WithLogger(logger),
		)
	}

	session, err := pagehost.NewSession(spec, factory, logger)
	if err != nil {
		return err
	}
	defer session.Close()

	logger.Info("Loading page",
		zap.String("url", opts.url),
		zap.String("endpoint", session.Host().Endpoint),
		zap.Bool("dry_run", opts.dryRun),
	)
	if err := session.Start(ctx, preload); err != nil {
		return err
	}

	for _, xpath := range opts.clicks {
		if _, err := session.Click(ctx, xpath, dom.WhichLeft, pagehost.Modifiers{}); err != nil {
			return fmt.Errorf("click %q: %w", xpath, err)
		}
	}
	for _, xpath := range opts.middleClicks {
		if _, err := session.Click(ctx, xpath, dom.WhichMiddle, pagehost.Modifiers{}); err != nil {
			return fmt.Errorf("middle-click %q: %w", xpath, err)
		}
	}
	for _, fragment := range opts.hashes {
		if err := session.HashChange(ctx, fragment); err != nil {
			return err
		}
	}

	if err := session.Settle(ctx, page.Settle); err != nil {
		return err
	}
	if navs := session.Page().Navigations(); len(navs) > 0 {
		logger.Info("Page navigated", zap.Strings("hrefs", navs))
	}
	logger.Info("Simulation finished", zap.Int("events", printer.count()))
	return nil
}

// payloadPrinter writes payloads as JSON lines. Sends can come from several
// goroutines, so writes are serialized.
type payloadPrinter struct {
	mu     sync.Mutex
	out    io.Writer
	n      int
	logger *zap.Logger
}

func newPayloadPrinter(out io.Writer, logger *zap.Logger) *payloadPrinter {
	return &payloadPrinter{out: out, logger: logger}
}

func (p *payloadPrinter) print(payload *transport.Payload) {
	line, err := transport.Encode(payload)
	if err != nil {
		p.logger.Warn("Could not render payload", zap.String("event", payload.Name), zap.Error(err))
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.n++
	fmt.Fprintln(p.out, string(line))
}

func (p *payloadPrinter) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.n
}

func parseStorage(entries []string) (map[string]string, error) {
	items := make(map[string]string, len(entries))
	for _, e := range entries {
		k, v, ok := strings.Cut(e, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid storage entry %q, want key=value", e)
		}
		items[k] = v
	}
	return items, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
