package listing

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/article-rewriter/internal/article"
	collyfetcher "github.com/JakeFAU/article-rewriter/internal/fetcher/colly"
)

const listingPage = `<html><body>
<a href="/blogs/">Blogs</a>
<a href="/blogs/chatbots-in-healthcare/">Chatbots in healthcare: a primer</a>
<a href="/blogs/chatbots-in-healthcare/">Duplicate anchor with a long title</a>
<a href="/blogs/chatbots-in-healthcare/#comments">Comments on chatbots in healthcare</a>
<a href="/blogs/chatbots-in-healthcare/">Read More about chatbots in healthcare</a>
<a href="https://beyondchats.com/blogs/live-chat-vs-ai/">Live chat versus AI assistants</a>
<a href="/blogs/relative-path-post/">A root relative blog post title</a>
<a href="/pricing/">Pricing plans for every business</a>
<a href="/blogs/short/">Too short</a>
</body></html>`

func TestParseLinks(t *testing.T) {
	t.Parallel()

	links, err := ParseLinks([]byte(listingPage), "https://beyondchats.com", "/blogs/")
	require.NoError(t, err)
	require.Equal(t, []Link{
		{Title: "Chatbots in healthcare: a primer", URL: "https://beyondchats.com/blogs/chatbots-in-healthcare/"},
		{Title: "Live chat versus AI assistants", URL: "https://beyondchats.com/blogs/live-chat-vs-ai/"},
		{Title: "A root relative blog post title", URL: "https://beyondchats.com/blogs/relative-path-post/"},
	}, links)
}

func TestOldest(t *testing.T) {
	t.Parallel()

	var links []Link
	for i := range 8 {
		links = append(links, Link{URL: fmt.Sprintf("u%d", i)})
	}
	got := Oldest(links, 5)
	require.Equal(t, []string{"u7", "u6", "u5", "u4", "u3"}, urls(got))
	require.Len(t, Oldest(links[:2], 5), 2)
	require.Empty(t, Oldest(nil, 5))
}

func TestCrawlExtractsOldestWithPlaceholder(t *testing.T) {
	t.Parallel()

	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/blogs/" {
			var b strings.Builder
			b.WriteString("<html><body>")
			for i := 1; i <= 7; i++ {
				fmt.Fprintf(&b, `<a href="%s/blogs/post-%d/">Blog post number %d with a long title</a>`, srv.URL, i, i)
			}
			b.WriteString("</body></html>")
			_, _ = w.Write([]byte(b.String()))
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	extractor := &fakeExtractor{content: map[string]string{
		srv.URL + "/blogs/post-7/": strings.Repeat("x", 150),
	}}
	sleeper := &recordingSleeper{}
	c := New(collyfetcher.New(collyfetcher.Config{}), extractor, sleeper, Options{
		URL:         srv.URL + "/blogs/",
		Origin:      srv.URL,
		MaxArticles: 5,
		Delay:       time.Second,
	}, zap.NewNop())

	got := c.Crawl(context.Background())
	require.Len(t, got, 5)
	require.Equal(t, srv.URL+"/blogs/post-7/", got[0].OriginalURL)
	require.Equal(t, srv.URL+"/blogs/post-3/", got[4].OriginalURL)
	require.Equal(t, strings.Repeat("x", 150), got[0].OriginalContent)
	require.Equal(t, article.PlaceholderContent, got[1].OriginalContent)
	for _, a := range got {
		require.Equal(t, article.StatusPending, a.Status)
	}
	require.Len(t, sleeper.calls, 4)
	require.Equal(t, time.Second, sleeper.calls[0])
}

func TestCrawlListingFailureIsEmpty(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := New(collyfetcher.New(collyfetcher.Config{}), &fakeExtractor{}, nil, Options{
		URL:         srv.URL + "/blogs/",
		Origin:      srv.URL,
		MaxArticles: 5,
	}, nil)
	require.Empty(t, c.Crawl(context.Background()))
}

func TestCrawlStopsWhenSleepInterrupted(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(listingPage))
	}))
	defer srv.Close()

	c := New(collyfetcher.New(collyfetcher.Config{}), &fakeExtractor{}, interruptedSleeper{}, Options{
		URL:         srv.URL + "/blogs/",
		Origin:      "https://beyondchats.com",
		MaxArticles: 5,
	}, nil)
	got := c.Crawl(context.Background())
	require.Len(t, got, 1)
	require.Equal(t, "https://beyondchats.com/blogs/relative-path-post/", got[0].OriginalURL)
}

func urls(links []Link) []string {
	out := make([]string, len(links))
	for i, l := range links {
		out[i] = l.URL
	}
	return out
}

type fakeExtractor struct {
	content map[string]string
}

func (f *fakeExtractor) Extract(_ context.Context, url string) string {
	return f.content[url]
}

type recordingSleeper struct {
	calls []time.Duration
}

func (s *recordingSleeper) Sleep(_ context.Context, d time.Duration) error {
	s.calls = append(s.calls, d)
	return nil
}

type interruptedSleeper struct{}

func (interruptedSleeper) Sleep(context.Context, time.Duration) error {
	return context.Canceled
}
