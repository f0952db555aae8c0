package search

import (
	"context"
	"strings"

	"github.com/JakeFAU/article-rewriter/internal/article"
)

// Heuristic maps topic keywords to well-known publications. It never touches the network.
type Heuristic struct{}

// Name implements Strategy.
func (Heuristic) Name() string { return "heuristic" }

// Search implements Strategy.
func (Heuristic) Search(_ context.Context, topic string) []article.Source {
	lower := strings.ToLower(topic)
	escaped := encodeComponent(topic)

	var results []article.Source
	if strings.Contains(lower, "ai") || strings.Contains(lower, "artificial intelligence") {
		results = append(results,
			article.Source{
				Title: "AI Research - arXiv",
				URL:   "https://arxiv.org/search/?query=" + escaped + "&searchtype=all",
			},
			article.Source{Title: "AI News - VentureBeat", URL: "https://venturebeat.com/ai/"},
			article.Source{
				Title: "AI Technology - MIT Technology Review",
				URL:   "https://www.technologyreview.com/topic/artificial-intelligence/",
			},
		)
	}
	if strings.Contains(lower, "health") || strings.Contains(lower, "medical") {
		results = append(results,
			article.Source{
				Title: "Healthcare Research - PubMed",
				URL:   "https://pubmed.ncbi.nlm.nih.gov/?term=" + escaped,
			},
			article.Source{Title: "Medical News - Healthcare IT News", URL: "https://www.healthcareitnews.com/"},
		)
	}
	if len(results) < MaxResults {
		results = append(results,
			article.Source{Title: "Technology News - TechCrunch", URL: "https://techcrunch.com/"},
			article.Source{Title: "Tech Articles - The Verge", URL: "https://www.theverge.com/tech"},
			article.Source{Title: "Industry Analysis - Forbes Technology", URL: "https://www.forbes.com/technology/"},
		)
	}
	return results[:MaxResults]
}
