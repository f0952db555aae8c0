package article

import (
	"context"
	"errors"
	"io"
	"time"
)

// Sentinel errors surfaced to callers. None of them is persisted as an article failure.
var (
	ErrNotFound         = errors.New("article not found")
	ErrAlreadyCompleted = errors.New("article already processed")
	ErrDuplicateURL     = errors.New("article with this url already exists")
	ErrInProgress       = errors.New("article is already being processed")
	ErrNoPending        = errors.New("no pending articles")
	ErrNoContent        = errors.New("no content generated")
)

// Store persists articles. Implementations enforce OriginalURL uniqueness.
type Store interface {
	Create(ctx context.Context, a Article) (Article, error)
	ExistsByURL(ctx context.Context, url string) (bool, error)
	Get(ctx context.Context, id string) (Article, error)
	List(ctx context.Context) ([]Article, error)
	ListByStatus(ctx context.Context, status Status, limit int) ([]Article, error)
	Update(ctx context.Context, a Article) (Article, error)
	SaveResult(ctx context.Context, a Article) error
	Delete(ctx context.Context, id string) error
	DeleteAll(ctx context.Context) (int64, error)
}

// Fetcher fetches a URL and returns the body plus metadata.
type Fetcher interface {
	Fetch(ctx context.Context, request FetchRequest) (FetchResponse, error)
}

// HeadlessDetector decides whether a static response should be re-fetched with a browser.
type HeadlessDetector interface {
	ShouldPromote(probe FetchResponse) bool
}

// Extractor turns a URL into boilerplate-stripped text. An empty string means extraction
// failed; implementations never return fetch or parse errors.
type Extractor interface {
	Extract(ctx context.Context, url string) string
}

// SourceFinder returns up to three candidate sources for a topic.
type SourceFinder interface {
	Find(ctx context.Context, topic string) []Source
}

// Generator produces text for a prompt or ErrNoContent.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Claimer serializes concurrent processing of the same article.
type Claimer interface {
	Claim(ctx context.Context, id string, ttl time.Duration) (release func(), err error)
}

// BlobStore writes rendered exports and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data io.Reader) (string, error)
}

// Publisher pushes lifecycle events to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces article IDs.
type IDGenerator interface {
	NewID() (string, error)
}

// Sleeper pauses between outbound fetches. It returns early with the context error.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}
