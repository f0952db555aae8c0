// Package article defines the domain types and collaborator interfaces shared across the
// scrape and rewrite pipeline.
package article

import (
	"net/http"
	"time"
)

// Status represents the persisted lifecycle state of an article.
type Status string

// Article status values persisted by the store. "processing" is never persisted; it only
// exists while a rewrite call is in flight.
const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Valid reports whether s is one of the persisted statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusCompleted, StatusFailed:
		return true
	default:
		return false
	}
}

// PlaceholderContent is stored when the original article body could not be extracted.
const PlaceholderContent = "Content fetch pending"

// Failure reasons persisted in Article.Error.
const (
	ReasonNoSearchResults  = "No search results found"
	ReasonExtractionFailed = "Content extraction failed"
	ReasonGenerationFailed = "AI generation failed"
)

// Reference is a source actually used when generating updated content.
type Reference struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// Article is the persisted unit of work: a scraped page plus its optional rewrite.
type Article struct {
	ID              string      `json:"id"`
	Title           string      `json:"title"`
	OriginalURL     string      `json:"original_url"`
	OriginalContent string      `json:"original_content"`
	PublishedDate   *time.Time  `json:"published_date,omitempty"`
	Status          Status      `json:"status"`
	UpdatedContent  string      `json:"updated_content,omitempty"`
	References      []Reference `json:"references"`
	Error           string      `json:"error,omitempty"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

// Source is a candidate supporting page found for a topic.
type Source struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// Reference converts the source into a stored reference.
func (s Source) Reference() Reference {
	return Reference(s)
}

// ScrapedSource is a source whose content survived extraction.
type ScrapedSource struct {
	Source
	Content string
}

// Result records how a rewrite finished. Outcome is OutcomeSucceeded or one of the failure
// reasons above.
type Result struct {
	Article Article
	Outcome string
}

// OutcomeSucceeded marks a completed rewrite in Result.Outcome.
const OutcomeSucceeded = "succeeded"

// IngestReport summarizes one listing crawl persisted to the store.
type IngestReport struct {
	Added      int `json:"added"`
	TotalFound int `json:"total_found"`
}

// Update carries the editable fields accepted by the CRUD update endpoint. Nil fields are
// left untouched.
type Update struct {
	Title           *string      `json:"title"`
	OriginalContent *string      `json:"original_content"`
	PublishedDate   *time.Time   `json:"published_date"`
	Status          *Status      `json:"status"`
	UpdatedContent  *string      `json:"updated_content"`
	References      *[]Reference `json:"references"`
	Error           *string      `json:"error"`
}

// Apply copies the set fields of u onto a.
func (u Update) Apply(a *Article) {
	if u.Title != nil {
		a.Title = *u.Title
	}
	if u.OriginalContent != nil {
		a.OriginalContent = *u.OriginalContent
	}
	if u.PublishedDate != nil {
		ts := *u.PublishedDate
		a.PublishedDate = &ts
	}
	if u.Status != nil {
		a.Status = *u.Status
	}
	if u.UpdatedContent != nil {
		a.UpdatedContent = *u.UpdatedContent
	}
	if u.References != nil {
		a.References = append([]Reference(nil), (*u.References)...)
	}
	if u.Error != nil {
		a.Error = *u.Error
	}
}

// FetchRequest captures everything needed to fetch a URL.
type FetchRequest struct {
	URL          string
	Headers      http.Header
	Timeout      time.Duration
	MaxRedirects int
}

// FetchResponse is the result returned by a Fetcher implementation.
type FetchResponse struct {
	URL        string
	StatusCode int
	Headers    http.Header
	Body       []byte
	Duration   time.Duration
	Rendered   bool
}
