package search

import (
	"bytes"
	"context"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/article-rewriter/internal/article"
)

// htmlStrategy fetches a results page and parses it with goquery.
type htmlStrategy struct {
	name    string
	fetcher article.Fetcher
	opts    Options
	target  func(topic string) string
	parse   func(doc *goquery.Document) []article.Source
}

func (s *htmlStrategy) Name() string { return s.name }

func (s *htmlStrategy) Search(ctx context.Context, topic string) []article.Source {
	headers := http.Header{}
	if s.opts.UserAgent != "" {
		headers.Set("User-Agent", s.opts.UserAgent)
	}
	resp, err := s.fetcher.Fetch(ctx, article.FetchRequest{
		URL:     s.target(topic),
		Headers: headers,
		Timeout: s.opts.Timeout,
	})
	if err != nil {
		return nil
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body))
	if err != nil {
		return nil
	}
	results := s.parse(doc)
	if len(results) > MaxResults {
		results = results[:MaxResults]
	}
	return results
}

// NewScholar queries Google Scholar.
func NewScholar(fetcher article.Fetcher, opts Options) Strategy {
	base := strings.TrimRight(opts.ScholarURL, "/")
	return &htmlStrategy{
		name:    "scholar",
		fetcher: fetcher,
		opts:    opts,
		target: func(topic string) string {
			return base + "/scholar?q=" + encodeComponent(topic)
		},
		parse: parseScholar,
	}
}

func parseScholar(doc *goquery.Document) []article.Source {
	var results []article.Source
	doc.Find(".gs_ri").Each(func(_ int, block *goquery.Selection) {
		heading := block.Find(".gs_rt")
		title := strings.TrimSpace(heading.Text())
		link, _ := heading.Find("a").Attr("href")
		if title != "" && strings.HasPrefix(link, "http") {
			results = append(results, article.Source{Title: title, URL: link})
		}
	})
	return results
}

// NewDuckDuckGo queries the DuckDuckGo Lite HTML endpoint.
func NewDuckDuckGo(fetcher article.Fetcher, opts Options) Strategy {
	base := strings.TrimRight(opts.DuckDuckGoURL, "/")
	return &htmlStrategy{
		name:    "duckduckgo",
		fetcher: fetcher,
		opts:    opts,
		target: func(topic string) string {
			return base + "/lite/?q=" + encodeComponent(topic)
		},
		parse: parseDuckDuckGo,
	}
}

func parseDuckDuckGo(doc *goquery.Document) []article.Source {
	var results []article.Source
	doc.Find("a.result-link").Each(func(_ int, a *goquery.Selection) {
		title := strings.TrimSpace(a.Text())
		link, _ := a.Attr("href")
		if title != "" && strings.HasPrefix(link, "http") && !strings.Contains(link, "duckduckgo") {
			results = append(results, article.Source{Title: title, URL: link})
		}
	})
	if len(results) > 0 {
		return results
	}

	// Older lite layouts have no result class; take any outbound row link with a real title.
	doc.Find("tr").Each(func(_ int, row *goquery.Selection) {
		row.Find("a[href^='http']").Each(func(_ int, a *goquery.Selection) {
			title := strings.TrimSpace(a.Text())
			link, _ := a.Attr("href")
			if link != "" && !strings.Contains(link, "duckduckgo.com") && len([]rune(title)) > 10 {
				results = append(results, article.Source{Title: title, URL: link})
			}
		})
	})
	return results
}

// NewNews queries Google News search.
func NewNews(fetcher article.Fetcher, opts Options) Strategy {
	base := strings.TrimRight(opts.NewsURL, "/")
	return &htmlStrategy{
		name:    "news",
		fetcher: fetcher,
		opts:    opts,
		target: func(topic string) string {
			return base + "/search?q=" + encodeComponent(topic)
		},
		parse: func(doc *goquery.Document) []article.Source {
			return parseNews(doc, base)
		},
	}
}

func parseNews(doc *goquery.Document, base string) []article.Source {
	var results []article.Source
	doc.Find("article a[href^='./articles/']").Each(func(_ int, a *goquery.Selection) {
		title := strings.TrimSpace(a.Text())
		link, _ := a.Attr("href")
		if title != "" {
			results = append(results, article.Source{Title: title, URL: base + link[1:]})
		}
	})
	return results
}
