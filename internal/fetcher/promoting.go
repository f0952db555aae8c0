// Package fetcher selects how pages are fetched: static HTML, a rendered DOM, or a static
// probe promoted to a rendered fetch when the page looks client-rendered.
package fetcher

import (
	"context"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/article-rewriter/internal/article"
	"github.com/JakeFAU/article-rewriter/internal/config"
	collyfetcher "github.com/JakeFAU/article-rewriter/internal/fetcher/colly"
	"github.com/JakeFAU/article-rewriter/internal/fetcher/headless"
	"github.com/JakeFAU/article-rewriter/internal/headless/detector"
	"github.com/JakeFAU/article-rewriter/internal/logging"
	"github.com/JakeFAU/article-rewriter/internal/policy/ratelimit"
)

// Promoting fetches statically and retries in a browser when the detector asks for it.
type Promoting struct {
	static   article.Fetcher
	rendered article.Fetcher
	detector article.HeadlessDetector
	logger   *zap.Logger
}

// NewPromoting wires the auto strategy.
func NewPromoting(
	static article.Fetcher,
	rendered article.Fetcher,
	detector article.HeadlessDetector,
	logger *zap.Logger,
) *Promoting {
	return &Promoting{
		static:   static,
		rendered: rendered,
		detector: detector,
		logger:   logging.Named(logger, "fetcher"),
	}
}

// Fetch returns the static response unless the detector promotes it. A failed promotion
// falls back to the static response.
func (p *Promoting) Fetch(ctx context.Context, request article.FetchRequest) (article.FetchResponse, error) {
	resp, err := p.static.Fetch(ctx, request)
	if err != nil {
		return resp, err
	}
	if p.rendered == nil || p.detector == nil || !p.detector.ShouldPromote(resp) {
		return resp, nil
	}

	rendered, err := p.rendered.Fetch(ctx, request)
	if err != nil {
		p.logger.Warn("headless promotion failed", zap.String("url", request.URL), zap.Error(err))
		return resp, nil
	}
	p.logger.Info("headless promotion applied", zap.String("url", request.URL))
	rendered.Rendered = true
	return rendered, nil
}

// Build assembles the fetcher named by cfg.Fetch.Strategy. The returned closer releases
// the browser allocator, if one was started.
func Build(cfg config.Config, logger *zap.Logger) (article.Fetcher, io.Closer, error) {
	static := collyfetcher.New(collyfetcher.Config{
		UserAgent:    cfg.HTTP.UserAgent,
		Timeout:      cfg.HTTPTimeout(),
		MaxRedirects: cfg.HTTP.MaxRedirects,
		Pacer: ratelimit.New(ratelimit.Config{
			DefaultRPS:   cfg.HTTP.PerHostRPS,
			DefaultBurst: cfg.HTTP.PerHostBurst,
		}),
	})
	if cfg.Fetch.Strategy == config.StrategyStatic {
		return static, nopCloser{}, nil
	}

	browser, err := headless.NewChromedp(headless.Config{
		MaxParallel:       cfg.Headless.MaxParallel,
		UserAgent:         cfg.HTTP.UserAgent,
		NavigationTimeout: time.Duration(cfg.Headless.NavTimeoutSec) * time.Second,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("build headless fetcher: %w", err)
	}
	closer := closeFunc(browser.Close)

	switch cfg.Fetch.Strategy {
	case config.StrategyRendered:
		return browser, closer, nil
	case config.StrategyAuto:
		return NewPromoting(static, browser, detector.NewHeuristic(cfg.Headless.PromotionThresh), logger), closer, nil
	default:
		browser.Close()
		return nil, nil, fmt.Errorf("unknown fetch strategy %q", cfg.Fetch.Strategy)
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

type closeFunc func()

func (f closeFunc) Close() error {
	f()
	return nil
}
