// Package listing discovers articles on the source blog and extracts their bodies.
package listing

import (
	"bytes"
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/JakeFAU/article-rewriter/internal/article"
	"github.com/JakeFAU/article-rewriter/internal/logging"
)

const minTitleLength = 20

// Options describes the listing page and crawl limits.
type Options struct {
	URL         string
	Origin      string
	PathSegment string
	MaxArticles int
	Delay       time.Duration
	Timeout     time.Duration
	UserAgent   string
}

// Link is an article anchor found on the listing page.
type Link struct {
	Title string
	URL   string
}

// Crawler walks the listing page and extracts up to MaxArticles articles.
type Crawler struct {
	fetcher   article.Fetcher
	extractor article.Extractor
	sleeper   article.Sleeper
	opts      Options
	logger    *zap.Logger
}

// New builds a Crawler. The extractor should use the listing profile.
func New(
	fetcher article.Fetcher,
	extractor article.Extractor,
	sleeper article.Sleeper,
	opts Options,
	logger *zap.Logger,
) *Crawler {
	if opts.PathSegment == "" {
		opts.PathSegment = "/blogs/"
	}
	return &Crawler{
		fetcher:   fetcher,
		extractor: extractor,
		sleeper:   sleeper,
		opts:      opts,
		logger:    logging.Named(logger, "listing"),
	}
}

// Crawl returns pending articles for the oldest listed links. A listing failure yields nil.
func (c *Crawler) Crawl(ctx context.Context) []article.Article {
	links, err := c.Links(ctx)
	if err != nil {
		c.logger.Error("listing fetch failed", zap.String("url", c.opts.URL), zap.Error(err))
		return nil
	}
	c.logger.Info("listing parsed", zap.Int("unique_links", len(links)))

	picked := Oldest(links, c.opts.MaxArticles)
	articles := make([]article.Article, 0, len(picked))
	for i, link := range picked {
		if i > 0 && c.sleeper != nil {
			if err := c.sleeper.Sleep(ctx, c.opts.Delay); err != nil {
				c.logger.Warn("crawl interrupted", zap.Error(err))
				break
			}
		}

		content := c.extractor.Extract(ctx, link.URL)
		if content == "" {
			c.logger.Info("content unavailable, storing placeholder", zap.String("url", link.URL))
			content = article.PlaceholderContent
		}
		articles = append(articles, article.Article{
			Title:           link.Title,
			OriginalURL:     link.URL,
			OriginalContent: content,
			Status:          article.StatusPending,
			References:      []article.Reference{},
		})
	}
	return articles
}

// Links fetches the listing page and returns unique article links in page order.
func (c *Crawler) Links(ctx context.Context) ([]Link, error) {
	headers := http.Header{}
	headers.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	if c.opts.UserAgent != "" {
		headers.Set("User-Agent", c.opts.UserAgent)
	}
	resp, err := c.fetcher.Fetch(ctx, article.FetchRequest{
		URL:     c.opts.URL,
		Headers: headers,
		Timeout: c.opts.Timeout,
	})
	if err != nil {
		return nil, err
	}
	return ParseLinks(resp.Body, c.opts.Origin, c.opts.PathSegment)
}

// ParseLinks extracts qualifying anchors from a listing document. The first occurrence of
// a URL wins.
func ParseLinks(body []byte, origin, pathSegment string) ([]Link, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	origin = strings.TrimRight(origin, "/")
	seen := make(map[string]struct{})
	var links []Link
	doc.Find("a").Each(func(_ int, a *goquery.Selection) {
		href, ok := a.Attr("href")
		if !ok || !strings.Contains(href, pathSegment) || strings.Contains(href, "#") {
			return
		}
		title := strings.TrimSpace(a.Text())
		if len([]rune(title)) <= minTitleLength || strings.Contains(strings.ToLower(title), "read more") {
			return
		}
		full := resolve(origin, href)
		if _, dup := seen[full]; dup {
			return
		}
		seen[full] = struct{}{}
		links = append(links, Link{Title: title, URL: full})
	})
	return links, nil
}

// Oldest walks links from the end, on the assumption that the page lists newest first.
func Oldest(links []Link, limit int) []Link {
	if limit > len(links) {
		limit = len(links)
	}
	out := make([]Link, 0, limit)
	for i := 0; i < limit; i++ {
		out = append(out, links[len(links)-1-i])
	}
	return out
}

func resolve(origin, href string) string {
	if strings.HasPrefix(href, "http") {
		return href
	}
	if strings.HasPrefix(href, "/") {
		return origin + href
	}
	return origin + "/" + href
}
