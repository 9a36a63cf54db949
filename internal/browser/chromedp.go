// Package browser implements the browser-automation collaborator with
// chromedp. One Browser owns a headless Chrome process; each crawl job holds
// its own Browser and opens short-lived pages from it.
package browser

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/shelfscan/shelfscan/internal/crawler"
)

// blockedURLPatterns keeps font and media payloads from loading; product
// crawling only needs the document, scripts, and XHR traffic.
var blockedURLPatterns = []string{
	"*.woff", "*.woff2", "*.ttf", "*.otf", "*.eot",
	"*.mp4", "*.webm", "*.avi", "*.mov", "*.mp3", "*.wav",
}

// Config controls the Chrome allocator.
type Config struct {
	Headless   bool
	UserAgent  string
	NavTimeout time.Duration
}

// Chromedp implements crawler.Browser using a warmed-up Chrome process.
type Chromedp struct {
	allocatorCancel context.CancelFunc
	browserCtx      context.Context
	browserCancel   context.CancelFunc
	logger          *zap.Logger
	cfg             Config
}

// New launches Chrome and verifies it responds. Failures here are the
// fatal-init path of a crawl job.
func New(cfg Config, logger *zap.Logger) (*Chromedp, error) {
	opts := chromedp.DefaultExecAllocatorOptions[:]
	opts = append(opts,
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("disable-gpu", true),
	)
	if cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
	}

	allocatorCtx, allocatorCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocatorCtx)
	if err := chromedp.Run(browserCtx); err != nil {
		allocatorCancel()
		browserCancel()
		return nil, fmt.Errorf("chromedp warmup: %w", err)
	}

	return &Chromedp{
		allocatorCancel: allocatorCancel,
		browserCtx:      browserCtx,
		browserCancel:   browserCancel,
		logger:          logger,
		cfg:             cfg,
	}, nil
}

// NewPage opens one tab with network interception enabled.
func (b *Chromedp) NewPage(_ context.Context) (crawler.Page, error) {
	tabCtx, cancelTab := chromedp.NewContext(b.browserCtx)

	p := &page{
		tabCtx:    tabCtx,
		cancelTab: cancelTab,
		logger:    b.logger,
	}

	if err := chromedp.Run(tabCtx,
		network.Enable(),
		network.SetBlockedURLs(blockedURLPatterns),
	); err != nil {
		cancelTab()
		return nil, fmt.Errorf("prepare tab: %w", err)
	}

	p.listenForJSON()
	return p, nil
}

// Close tears down the chromedp allocator and browser contexts.
func (b *Chromedp) Close(ctx context.Context) error {
	if b == nil {
		return nil
	}
	b.browserCancel()
	b.allocatorCancel()
	select {
	case <-ctx.Done():
	default:
	}
	return nil
}

type page struct {
	tabCtx    context.Context
	cancelTab context.CancelFunc
	logger    *zap.Logger

	mu          sync.Mutex
	intercepted [][]byte
}

// listenForJSON records the bodies of JSON XHR/fetch responses observed on
// this tab. Bodies are read asynchronously; by the settle delay after a
// navigation they are in place.
func (p *page) listenForJSON() {
	chromedp.ListenTarget(p.tabCtx, func(ev interface{}) {
		resp, ok := ev.(*network.EventResponseReceived)
		if !ok {
			return
		}
		if resp.Type != network.ResourceTypeXHR && resp.Type != network.ResourceTypeFetch {
			return
		}
		if !strings.Contains(strings.ToLower(resp.Response.MimeType), "json") {
			return
		}
		requestID := resp.RequestID
		go func() {
			c := chromedp.FromContext(p.tabCtx)
			body, err := network.GetResponseBody(requestID).Do(cdp.WithExecutor(p.tabCtx, c.Target))
			if err != nil || len(body) == 0 {
				return
			}
			p.mu.Lock()
			p.intercepted = append(p.intercepted, body)
			p.mu.Unlock()
		}()
	})
}

// Navigate loads rawURL and waits for the body to be ready. Previously
// intercepted responses are discarded.
func (p *page) Navigate(ctx context.Context, rawURL string, timeout time.Duration) error {
	p.mu.Lock()
	p.intercepted = nil
	p.mu.Unlock()

	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	taskCtx, cancel := context.WithTimeout(p.tabCtx, timeout)
	defer cancel()
	stop := forwardCancel(ctx, cancel)
	defer stop()

	err := chromedp.Run(taskCtx,
		chromedp.Navigate(rawURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
	if err != nil {
		return &crawler.TransientFetchError{URL: rawURL, Err: err}
	}
	return nil
}

// HTML returns the current DOM snapshot.
func (p *page) HTML(ctx context.Context) (string, error) {
	taskCtx, cancel := context.WithCancel(p.tabCtx)
	defer cancel()
	stop := forwardCancel(ctx, cancel)
	defer stop()

	var html string
	if err := chromedp.Run(taskCtx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("outer html: %w", err)
	}
	return html, nil
}

// Evaluate runs script in the page and unmarshals its result into out.
func (p *page) Evaluate(ctx context.Context, script string, out any) error {
	taskCtx, cancel := context.WithCancel(p.tabCtx)
	defer cancel()
	stop := forwardCancel(ctx, cancel)
	defer stop()

	if err := chromedp.Run(taskCtx, chromedp.Evaluate(script, out)); err != nil {
		return fmt.Errorf("evaluate: %w", err)
	}
	return nil
}

// ScrollToBottom scrolls the window to the document end.
func (p *page) ScrollToBottom(ctx context.Context) error {
	return p.Evaluate(ctx, `window.scrollTo(0, document.body.scrollHeight)`, nil)
}

// ScrollHeight reports the current document height.
func (p *page) ScrollHeight(ctx context.Context) (int, error) {
	var height int
	if err := p.Evaluate(ctx, `document.body.scrollHeight`, &height); err != nil {
		return 0, err
	}
	return height, nil
}

// InterceptedJSON returns the JSON response bodies observed since the last
// Navigate.
func (p *page) InterceptedJSON() [][]byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([][]byte, len(p.intercepted))
	copy(out, p.intercepted)
	return out
}

// Close releases the tab.
func (p *page) Close() error {
	p.cancelTab()
	return nil
}

func forwardCancel(parent context.Context, cancel context.CancelFunc) func() {
	if parent == nil {
		return func() {}
	}
	done := make(chan struct{})
	go func() {
		select {
		case <-parent.Done():
			cancel()
		case <-done:
		}
	}()
	return func() { close(done) }
}
