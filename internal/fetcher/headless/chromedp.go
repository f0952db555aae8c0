// Package headless loads blog and source pages in headless Chrome for sites whose article
// text only appears after client-side rendering.
package headless

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"github.com/JakeFAU/article-rewriter/internal/article"
	"github.com/JakeFAU/article-rewriter/internal/metrics"
)

const (
	defaultTabTimeout = 45 * time.Second
	// settleDelay lets late scripts finish filling the article body.
	settleDelay = 500 * time.Millisecond
)

// Config sizes the browser pool. MaxParallel 0 means unbounded tabs.
type Config struct {
	MaxParallel       int
	UserAgent         string
	NavigationTimeout time.Duration
}

// Fetcher is the rendered fetch strategy. Each Fetch opens one tab in a shared browser.
type Fetcher struct {
	cfg      Config
	tabs     chan struct{}
	browser  context.Context
	shutdown context.CancelFunc
}

// NewChromedp starts the browser allocator. Chrome itself launches on the first Fetch.
func NewChromedp(cfg Config) (*Fetcher, error) {
	if cfg.MaxParallel < 0 {
		return nil, errors.New("headless.max_parallel must not be negative")
	}
	var tabs chan struct{}
	if cfg.MaxParallel > 0 {
		tabs = make(chan struct{}, cfg.MaxParallel)
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", "new"),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("enable-automation", false),
	)
	browser, shutdown := chromedp.NewExecAllocator(context.Background(), opts...)
	return &Fetcher{cfg: cfg, tabs: tabs, browser: browser, shutdown: shutdown}, nil
}

// Close shuts the browser down.
func (f *Fetcher) Close() {
	f.shutdown()
}

// Fetch renders request.URL and returns the DOM after scripts ran.
func (f *Fetcher) Fetch(ctx context.Context, request article.FetchRequest) (article.FetchResponse, error) {
	if f.tabs != nil {
		select {
		case f.tabs <- struct{}{}:
			defer func() { <-f.tabs }()
		case <-ctx.Done():
			return article.FetchResponse{}, fmt.Errorf("render %s: waiting for a browser tab: %w", request.URL, ctx.Err())
		}
	}

	tab, closeTab := chromedp.NewContext(f.browser)
	defer closeTab()
	tab, cancel := context.WithTimeout(tab, f.tabTimeout(request.Timeout))
	defer cancel()
	// Close the tab when the caller gives up.
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	doc := &documentResponse{}
	chromedp.ListenTarget(tab, doc.observe)

	start := time.Now()
	var html, location string
	err := chromedp.Run(tab,
		f.prepareTab(request.Headers),
		chromedp.Navigate(request.URL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(settleDelay),
		chromedp.Location(&location),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		metrics.ObserveFetch(request.URL, "rendered", "error", 0)
		return article.FetchResponse{}, fmt.Errorf("render %s: %w", request.URL, err)
	}

	status, headers, finalURL := doc.result(request.URL, location)
	metrics.ObserveFetch(request.URL, "rendered", strconv.Itoa(status), len(html))
	return article.FetchResponse{
		URL:        finalURL,
		StatusCode: status,
		Headers:    headers,
		Body:       []byte(html),
		Duration:   time.Since(start),
		Rendered:   true,
	}, nil
}

// tabTimeout is the navigation budget, shortened by a tighter per-request timeout.
func (f *Fetcher) tabTimeout(requested time.Duration) time.Duration {
	limit := f.cfg.NavigationTimeout
	if limit <= 0 {
		limit = defaultTabTimeout
	}
	if requested > 0 && requested < limit {
		return requested
	}
	return limit
}

// prepareTab applies the browser-like request headers the extractor sends on static fetches.
func (f *Fetcher) prepareTab(headers http.Header) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if err := network.Enable().Do(ctx); err != nil {
			return fmt.Errorf("enable network events: %w", err)
		}
		if f.cfg.UserAgent != "" {
			if err := emulation.SetUserAgentOverride(f.cfg.UserAgent).Do(ctx); err != nil {
				return fmt.Errorf("override user agent: %w", err)
			}
		}
		if extra := extraHeaders(headers); len(extra) > 0 {
			if err := network.SetExtraHTTPHeaders(extra).Do(ctx); err != nil {
				return fmt.Errorf("apply request headers: %w", err)
			}
		}
		return nil
	})
}

// extraHeaders converts request headers for CDP. User-Agent is left to the browser.
func extraHeaders(h http.Header) network.Headers {
	out := network.Headers{}
	for key, values := range h {
		if len(values) == 0 || http.CanonicalHeaderKey(key) == "User-Agent" {
			continue
		}
		if len(values) == 1 {
			out[key] = values[0]
			continue
		}
		out[key] = append([]string(nil), values...)
	}
	return out
}

// documentResponse keeps the last top-level document response seen by a tab.
type documentResponse struct {
	mu      sync.Mutex
	status  int
	headers http.Header
	url     string
}

func (d *documentResponse) observe(ev any) {
	resp, ok := ev.(*network.EventResponseReceived)
	if !ok || resp.Type != network.ResourceTypeDocument || resp.Response == nil {
		return
	}
	headers := http.Header{}
	for key, value := range resp.Response.Headers {
		for _, v := range headerValues(value) {
			headers.Add(key, v)
		}
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.status = int(resp.Response.Status)
	d.headers = headers
	d.url = resp.Response.URL
}

// result reports what the tab loaded. Without a captured response it assumes 200 at the
// browser location, or at the requested URL when the location is unknown.
func (d *documentResponse) result(requestURL, location string) (int, http.Header, string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	status, url := d.status, d.url
	if status == 0 {
		status = http.StatusOK
	}
	if url == "" {
		url = location
	}
	if url == "" {
		url = requestURL
	}
	headers := d.headers.Clone()
	if headers == nil {
		headers = http.Header{}
	}
	return status, headers, url
}

func headerValues(value any) []string {
	switch v := value.(type) {
	case string:
		return []string{v}
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, entry := range v {
			out = append(out, fmt.Sprint(entry))
		}
		return out
	default:
		return []string{fmt.Sprint(v)}
	}
}
