// Package detector decides when a static fetch should be repeated in a headless browser.
package detector

import (
	"bytes"
	"strings"

	"github.com/JakeFAU/article-rewriter/internal/article"
)

// DefaultThreshold is the body size below which script-heavy pages are promoted.
const DefaultThreshold = 2048

// Heuristic implements a handful of rule-based promotions.
type Heuristic struct {
	BodyLengthThreshold int
}

// NewHeuristic creates a new detector.
func NewHeuristic(threshold int) *Heuristic {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Heuristic{BodyLengthThreshold: threshold}
}

var spaMarkers = [][]byte{
	[]byte("__next"),
	[]byte("id=\"__nuxt\""),
	[]byte("id=\"___gatsby\""),
	[]byte("id=\"root\"></div>"),
	[]byte("id=\"app\"></div>"),
	[]byte("data-reactroot"),
}

// ShouldPromote reports whether the static probe looks like an empty client-rendered shell.
func (h *Heuristic) ShouldPromote(probe article.FetchResponse) bool {
	if probe.StatusCode != 200 || probe.Rendered {
		return false
	}
	body := probe.Body
	if len(bytes.TrimSpace(body)) == 0 {
		return true
	}
	lower := bytes.ToLower(body)
	if hasReadableMarkup(lower) {
		return false
	}
	if len(body) < h.BodyLengthThreshold && scriptShare(lower) >= 25 {
		return true
	}
	for _, marker := range spaMarkers {
		if bytes.Contains(lower, marker) {
			return true
		}
	}
	return bytes.Contains(lower, []byte("enable javascript"))
}

// hasReadableMarkup is true when the page already ships article text server-side.
func hasReadableMarkup(lower []byte) bool {
	if bytes.Contains(lower, []byte("<article")) {
		return true
	}
	return bytes.Count(lower, []byte("<p")) >= 3
}

// scriptShare returns the percentage of the document covered by <script> elements.
func scriptShare(lower []byte) int {
	doc := string(lower)
	total := len(doc)
	if total == 0 {
		return 0
	}

	covered := 0
	rest := doc
	for {
		start := strings.Index(rest, "<script")
		if start == -1 {
			break
		}
		end := strings.Index(rest[start:], "</script>")
		if end == -1 {
			// Unterminated script runs to the end of the document.
			covered += len(rest) - start
			break
		}
		end += start + len("</script>")
		covered += end - start
		rest = rest[end:]
	}
	return covered * 100 / total
}
