// Package search finds up to three supporting sources for a topic.
//
// Strategies run in order and the first one returning anything wins. Network strategies
// swallow their own failures so the deterministic heuristic always gets a turn.
package search

import (
	"context"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/article-rewriter/internal/article"
	"github.com/JakeFAU/article-rewriter/internal/logging"
	"github.com/JakeFAU/article-rewriter/internal/metrics"
)

// MaxResults caps every strategy's output.
const MaxResults = 3

// Strategy is one way of finding sources.
type Strategy interface {
	Name() string
	Search(ctx context.Context, topic string) []article.Source
}

// Options configures the default strategy list.
type Options struct {
	UpstreamEnabled bool
	Extended        bool
	Timeout         time.Duration
	UserAgent       string
	ScholarURL      string
	DuckDuckGoURL   string
	NewsURL         string
}

// Finder implements article.SourceFinder.
type Finder struct {
	strategies []Strategy
	logger     *zap.Logger
}

// NewFinder runs the given strategies in order.
func NewFinder(logger *zap.Logger, strategies ...Strategy) *Finder {
	return &Finder{strategies: strategies, logger: logging.Named(logger, "search")}
}

// New builds the default cascade: Scholar, DuckDuckGo Lite and Google News (when enabled),
// then the heuristic list.
func New(fetcher article.Fetcher, opts Options, logger *zap.Logger) *Finder {
	var strategies []Strategy
	if opts.UpstreamEnabled && fetcher != nil {
		strategies = append(strategies, NewScholar(fetcher, opts))
		if opts.Extended {
			strategies = append(strategies, NewDuckDuckGo(fetcher, opts), NewNews(fetcher, opts))
		}
	}
	strategies = append(strategies, Heuristic{})
	return NewFinder(logger, strategies...)
}

// Find returns the first non-empty strategy result, or nil.
func (f *Finder) Find(ctx context.Context, topic string) []article.Source {
	for _, s := range f.strategies {
		if ctx.Err() != nil {
			break
		}
		results := s.Search(ctx, topic)
		if len(results) == 0 {
			f.logger.Debug("strategy returned nothing", zap.String("strategy", s.Name()))
			continue
		}
		if len(results) > MaxResults {
			results = results[:MaxResults]
		}
		f.logger.Info("sources found",
			zap.String("strategy", s.Name()),
			zap.String("topic", topic),
			zap.Int("count", len(results)),
		)
		metrics.ObserveSearch(s.Name())
		return results
	}
	metrics.ObserveSearch("none")
	return nil
}

// componentUnescaper restores the characters encodeURIComponent leaves alone.
var componentUnescaper = strings.NewReplacer(
	"+", "%20",
	"%27", "'",
	"%28", "(",
	"%29", ")",
	"%21", "!",
	"%2A", "*",
)

// encodeComponent escapes like JavaScript's encodeURIComponent: spaces become %20 and
// - _ . ! ~ * ' ( ) stay literal.
func encodeComponent(s string) string {
	return componentUnescaper.Replace(url.QueryEscape(s))
}
