// Package extractor turns a web page into plain article text.
//
// Extraction never fails loudly: fetch errors, non-2xx responses, unparsable markup and
// too-short results all yield the empty string, and the reason is logged.
package extractor

import (
	"bytes"
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
	"go.uber.org/zap"

	"github.com/JakeFAU/article-rewriter/internal/article"
	"github.com/JakeFAU/article-rewriter/internal/logging"
	"github.com/JakeFAU/article-rewriter/internal/metrics"
)

const minParagraphLength = 50

// Options carries the browser-like request settings.
type Options struct {
	UserAgent           string
	AcceptLanguage      string
	Referer             string
	Timeout             time.Duration
	MaxRedirects        int
	ReadabilityFallback bool
}

// Extractor implements article.Extractor for a single profile.
type Extractor struct {
	fetcher article.Fetcher
	profile Profile
	opts    Options
	logger  *zap.Logger
}

// New builds an Extractor.
func New(fetcher article.Fetcher, profile Profile, opts Options, logger *zap.Logger) *Extractor {
	return &Extractor{
		fetcher: fetcher,
		profile: profile,
		opts:    opts,
		logger:  logging.Named(logger, "extractor").With(zap.String("profile", profile.Name)),
	}
}

// Extract fetches pageURL and returns its main text, or "" when nothing usable was found.
func (e *Extractor) Extract(ctx context.Context, pageURL string) string {
	resp, err := e.fetcher.Fetch(ctx, article.FetchRequest{
		URL:          pageURL,
		Headers:      e.headers(),
		Timeout:      e.opts.Timeout,
		MaxRedirects: e.opts.MaxRedirects,
	})
	if err != nil {
		e.logger.Warn("fetch failed", zap.String("url", pageURL), zap.Error(err))
		metrics.ObserveExtraction(e.profile.Name, "fetch_error")
		return ""
	}

	text := e.FromHTML(resp.URL, resp.Body)
	if text == "" {
		metrics.ObserveExtraction(e.profile.Name, "empty")
		return ""
	}
	e.logger.Debug("extracted content", zap.String("url", pageURL), zap.Int("chars", len([]rune(text))))
	metrics.ObserveExtraction(e.profile.Name, "ok")
	return text
}

// FromHTML runs the extraction stages over an already fetched document.
func (e *Extractor) FromHTML(pageURL string, body []byte) string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		e.logger.Warn("parse failed", zap.String("url", pageURL), zap.Error(err))
		return ""
	}
	doc.Find(e.profile.Prune).Remove()

	content := doc.Find("article").Text()

	if runeLen(content) < e.profile.EarlyAccept {
		for _, selector := range e.profile.Candidates {
			sel := doc.Find(selector)
			if sel.Length() == 0 {
				continue
			}
			if text := sel.Text(); runeLen(text) > runeLen(content) {
				content = text
			}
		}
	}

	if runeLen(content) < e.profile.EarlyAccept {
		content = joinParagraphs(doc)
	}

	content = Normalize(content, e.profile.MaxLength)

	if runeLen(content) <= e.profile.MinLength && e.opts.ReadabilityFallback {
		if html, err := doc.Html(); err == nil {
			if fallback := Normalize(readabilityText(html, pageURL), e.profile.MaxLength); runeLen(fallback) > runeLen(content) {
				content = fallback
			}
		}
	}

	if runeLen(content) <= e.profile.MinLength {
		e.logger.Info("content too short", zap.String("url", pageURL), zap.Int("chars", runeLen(content)))
		return ""
	}
	return content
}

func (e *Extractor) headers() http.Header {
	h := http.Header{}
	h.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	if e.opts.UserAgent != "" {
		h.Set("User-Agent", e.opts.UserAgent)
	}
	if e.opts.AcceptLanguage != "" {
		h.Set("Accept-Language", e.opts.AcceptLanguage)
	}
	if e.opts.Referer != "" {
		h.Set("Referer", e.opts.Referer)
	}
	return h
}

func joinParagraphs(doc *goquery.Document) string {
	var paragraphs []string
	doc.Find("p").Each(func(_ int, p *goquery.Selection) {
		if text := strings.TrimSpace(p.Text()); runeLen(text) > minParagraphLength {
			paragraphs = append(paragraphs, text)
		}
	})
	return strings.Join(paragraphs, "\n\n")
}

func readabilityText(html, pageURL string) string {
	parsed, err := url.Parse(pageURL)
	if err != nil {
		return ""
	}
	result, err := readability.FromReader(strings.NewReader(html), parsed)
	if err != nil {
		return ""
	}
	return result.TextContent
}

// Normalize collapses whitespace runs to single spaces, trims, and truncates to maxChars runes.
func Normalize(text string, maxChars int) string {
	text = strings.Join(strings.Fields(text), " ")
	if maxChars > 0 {
		if runes := []rune(text); len(runes) > maxChars {
			text = string(runes[:maxChars])
		}
	}
	return text
}

func runeLen(s string) int {
	return len([]rune(s))
}
