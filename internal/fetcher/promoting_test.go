package fetcher

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/article-rewriter/internal/article"
	"github.com/JakeFAU/article-rewriter/internal/config"
	collyfetcher "github.com/JakeFAU/article-rewriter/internal/fetcher/colly"
)

func TestPromotingKeepsStaticResponse(t *testing.T) {
	t.Parallel()

	static := &fakeFetcher{resp: article.FetchResponse{StatusCode: 200, Body: []byte("<article>hi</article>")}}
	rendered := &fakeFetcher{}
	p := NewPromoting(static, rendered, fakeDetector(false), zap.NewNop())

	resp, err := p.Fetch(context.Background(), article.FetchRequest{URL: "https://example.com"})
	require.NoError(t, err)
	require.False(t, resp.Rendered)
	require.Equal(t, 0, rendered.calls)
}

func TestPromotingUsesRenderedWhenDetectorAsks(t *testing.T) {
	t.Parallel()

	static := &fakeFetcher{resp: article.FetchResponse{StatusCode: 200, Body: []byte(`<div id="__next"></div>`)}}
	rendered := &fakeFetcher{resp: article.FetchResponse{StatusCode: 200, Body: []byte("<article>rendered</article>")}}
	p := NewPromoting(static, rendered, fakeDetector(true), nil)

	resp, err := p.Fetch(context.Background(), article.FetchRequest{URL: "https://example.com"})
	require.NoError(t, err)
	require.True(t, resp.Rendered)
	require.Equal(t, "<article>rendered</article>", string(resp.Body))
}

func TestPromotingFallsBackWhenBrowserFails(t *testing.T) {
	t.Parallel()

	static := &fakeFetcher{resp: article.FetchResponse{StatusCode: 200, Body: []byte("shell")}}
	rendered := &fakeFetcher{err: errors.New("chrome missing")}
	p := NewPromoting(static, rendered, fakeDetector(true), zap.NewNop())

	resp, err := p.Fetch(context.Background(), article.FetchRequest{URL: "https://example.com"})
	require.NoError(t, err)
	require.Equal(t, "shell", string(resp.Body))
}

func TestPromotingPropagatesStaticError(t *testing.T) {
	t.Parallel()

	static := &fakeFetcher{err: errors.New("dial failed")}
	p := NewPromoting(static, &fakeFetcher{}, fakeDetector(true), zap.NewNop())

	_, err := p.Fetch(context.Background(), article.FetchRequest{URL: "https://example.com"})
	require.Error(t, err)
}

func TestBuildStaticStrategy(t *testing.T) {
	t.Parallel()

	cfg := config.Config{
		HTTP:  config.HTTPConfig{TimeoutSeconds: 5, MaxRedirects: 5},
		Fetch: config.FetchConfig{Strategy: config.StrategyStatic},
	}
	f, closer, err := Build(cfg, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, closer.Close())
	require.IsType(t, &collyfetcher.Fetcher{}, f)
}

func TestBuildAutoStrategy(t *testing.T) {
	t.Parallel()

	cfg := config.Config{
		HTTP:     config.HTTPConfig{TimeoutSeconds: 5, MaxRedirects: 5},
		Fetch:    config.FetchConfig{Strategy: config.StrategyAuto},
		Headless: config.HeadlessConfig{MaxParallel: 1, NavTimeoutSec: 5},
	}
	f, closer, err := Build(cfg, zap.NewNop())
	require.NoError(t, err)
	defer closer.Close() //nolint:errcheck // allocator shutdown
	require.IsType(t, &Promoting{}, f)
}

type fakeFetcher struct {
	resp  article.FetchResponse
	err   error
	calls int
}

func (f *fakeFetcher) Fetch(context.Context, article.FetchRequest) (article.FetchResponse, error) {
	f.calls++
	return f.resp, f.err
}

type fakeDetector bool

func (d fakeDetector) ShouldPromote(article.FetchResponse) bool { return bool(d) }
