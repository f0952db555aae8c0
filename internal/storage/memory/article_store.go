package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/JakeFAU/article-rewriter/internal/article"
)

// ArticleStore provides an in-memory article.Store for development/testing.
type ArticleStore struct {
	mu       sync.RWMutex
	articles map[string]entry
	byURL    map[string]string
	seq      int64
	now      func() time.Time
}

type entry struct {
	article article.Article
	seq     int64
}

// NewArticleStore constructs an ArticleStore.
func NewArticleStore() *ArticleStore {
	return &ArticleStore{
		articles: make(map[string]entry),
		byURL:    make(map[string]string),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Create stores a new article. The URL must be unique.
func (s *ArticleStore) Create(_ context.Context, a article.Article) (article.Article, error) {
	if a.ID == "" {
		return article.Article{}, errors.New("article id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.articles[a.ID]; exists {
		return article.Article{}, errors.New("article already exists")
	}
	if _, exists := s.byURL[a.OriginalURL]; exists {
		return article.Article{}, article.ErrDuplicateURL
	}
	if a.Status == "" {
		a.Status = article.StatusPending
	}
	now := s.now()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	if a.UpdatedAt.IsZero() {
		a.UpdatedAt = a.CreatedAt
	}
	a = clone(a)
	s.seq++
	s.articles[a.ID] = entry{article: a, seq: s.seq}
	s.byURL[a.OriginalURL] = a.ID
	return clone(a), nil
}

// ExistsByURL reports whether an article with the URL is stored.
func (s *ArticleStore) ExistsByURL(_ context.Context, url string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.byURL[url]
	return ok, nil
}

// Get fetches an article by ID.
func (s *ArticleStore) Get(_ context.Context, id string) (article.Article, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.articles[id]
	if !ok {
		return article.Article{}, article.ErrNotFound
	}
	return clone(e.article), nil
}

// List returns every article, newest first.
func (s *ArticleStore) List(_ context.Context) ([]article.Article, error) {
	entries := s.sorted(func(a, b entry) bool {
		if !a.article.CreatedAt.Equal(b.article.CreatedAt) {
			return a.article.CreatedAt.After(b.article.CreatedAt)
		}
		return a.seq > b.seq
	})
	out := make([]article.Article, 0, len(entries))
	for _, e := range entries {
		out = append(out, clone(e.article))
	}
	return out, nil
}

// ListByStatus returns articles in the status, oldest first. A non-positive limit means all.
func (s *ArticleStore) ListByStatus(_ context.Context, status article.Status, limit int) ([]article.Article, error) {
	entries := s.sorted(func(a, b entry) bool {
		if !a.article.CreatedAt.Equal(b.article.CreatedAt) {
			return a.article.CreatedAt.Before(b.article.CreatedAt)
		}
		return a.seq < b.seq
	})
	var out []article.Article
	for _, e := range entries {
		if e.article.Status != status {
			continue
		}
		out = append(out, clone(e.article))
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// Update replaces the stored article with the same ID.
func (s *ArticleStore) Update(_ context.Context, a article.Article) (article.Article, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.articles[a.ID]
	if !ok {
		return article.Article{}, article.ErrNotFound
	}
	if a.OriginalURL != current.article.OriginalURL {
		if _, taken := s.byURL[a.OriginalURL]; taken {
			return article.Article{}, article.ErrDuplicateURL
		}
		delete(s.byURL, current.article.OriginalURL)
		s.byURL[a.OriginalURL] = a.ID
	}
	a.CreatedAt = current.article.CreatedAt
	a.UpdatedAt = s.now()
	a = clone(a)
	s.articles[a.ID] = entry{article: a, seq: current.seq}
	return clone(a), nil
}

// SaveResult persists the outcome fields of a rewrite.
func (s *ArticleStore) SaveResult(_ context.Context, a article.Article) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.articles[a.ID]
	if !ok {
		return article.ErrNotFound
	}
	stored := current.article
	stored.Status = a.Status
	stored.UpdatedContent = a.UpdatedContent
	stored.References = a.References
	stored.Error = a.Error
	stored.UpdatedAt = s.now()
	current.article = clone(stored)
	s.articles[a.ID] = current
	return nil
}

// Delete removes an article.
func (s *ArticleStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.articles[id]
	if !ok {
		return article.ErrNotFound
	}
	delete(s.articles, id)
	delete(s.byURL, e.article.OriginalURL)
	return nil
}

// DeleteAll removes every article and returns how many were stored.
func (s *ArticleStore) DeleteAll(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := int64(len(s.articles))
	s.articles = make(map[string]entry)
	s.byURL = make(map[string]string)
	return n, nil
}

func (s *ArticleStore) sorted(less func(a, b entry) bool) []entry {
	s.mu.RLock()
	entries := make([]entry, 0, len(s.articles))
	for _, e := range s.articles {
		entries = append(entries, e)
	}
	s.mu.RUnlock()
	sort.Slice(entries, func(i, j int) bool { return less(entries[i], entries[j]) })
	return entries
}

func clone(a article.Article) article.Article {
	if a.References != nil {
		a.References = append([]article.Reference(nil), a.References...)
	} else {
		a.References = []article.Reference{}
	}
	if a.PublishedDate != nil {
		ts := *a.PublishedDate
		a.PublishedDate = &ts
	}
	return a
}
