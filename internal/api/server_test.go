package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/article-rewriter/internal/article"
	"github.com/JakeFAU/article-rewriter/internal/config"
	"github.com/JakeFAU/article-rewriter/internal/storage/memory"
)

type fakeIngester struct {
	report article.IngestReport
	err    error
	calls  int
}

func (f *fakeIngester) Run(context.Context) (article.IngestReport, error) {
	f.calls++
	return f.report, f.err
}

type fakeRewriter struct {
	result article.Result
	err    error
	ids    []string
	next   int
}

func (f *fakeRewriter) Process(_ context.Context, id string) (article.Result, error) {
	f.ids = append(f.ids, id)
	return f.result, f.err
}

func (f *fakeRewriter) ProcessNext(context.Context) (article.Result, error) {
	f.next++
	return f.result, f.err
}

type pingStore struct {
	*memory.ArticleStore
	err error
}

func (p pingStore) Ping(context.Context) error { return p.err }

type fixture struct {
	store    *memory.ArticleStore
	ingester *fakeIngester
	rewriter *fakeRewriter
	server   *Server
}

func newFixture(t *testing.T, mutate func(*config.Config)) *fixture {
	t.Helper()
	cfg := config.Config{
		Server: config.ServerConfig{
			Port:                  5000,
			RequestTimeoutSeconds: 5,
			ProcessTimeoutSeconds: 5,
			CORSOrigins:           []string{"*"},
		},
	}
	if mutate != nil {
		mutate(&cfg)
	}
	f := &fixture{
		store:    memory.NewArticleStore(),
		ingester: &fakeIngester{},
		rewriter: &fakeRewriter{},
	}
	f.server = NewServer(f.store, f.ingester, f.rewriter, cfg, zap.NewNop())
	return f
}

func (f *fixture) seed(t *testing.T, id, url string) article.Article {
	t.Helper()
	a, err := f.store.Create(context.Background(), article.Article{
		ID:              id,
		Title:           "Title " + id,
		OriginalURL:     url,
		OriginalContent: "original",
	})
	require.NoError(t, err)
	return a
}

func (f *fixture) do(method, path string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestBannerAndProbes(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)

	rec := f.do(http.MethodGet, "/", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, Banner, rec.Body.String())
	require.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	require.Equal(t, http.StatusOK, f.do(http.MethodGet, "/healthz", nil).Code)
	require.Equal(t, http.StatusOK, f.do(http.MethodGet, "/readyz", nil).Code)

	metrics := f.do(http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, metrics.Code)
	require.Contains(t, metrics.Body.String(), "http_requests_total")
}

func TestReadyzReportsStoreFailure(t *testing.T) {
	t.Parallel()

	store := pingStore{ArticleStore: memory.NewArticleStore(), err: errors.New("db down")}
	server := NewServer(store, &fakeIngester{}, &fakeRewriter{}, config.Config{}, nil)

	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestListArticlesNewestFirst(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	rec := f.do(http.MethodGet, "/api/articles", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, "[]", rec.Body.String())

	f.seed(t, "old", "https://beyondchats.com/blogs/old/")
	time.Sleep(2 * time.Millisecond)
	f.seed(t, "new", "https://beyondchats.com/blogs/new/")

	rec = f.do(http.MethodGet, "/api/articles/", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list []article.Article
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 2)
	assert.Equal(t, "new", list[0].ID)
	assert.Equal(t, "old", list[1].ID)
}

func TestGetArticle(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	f.seed(t, "a1", "https://beyondchats.com/blogs/a1/")

	rec := f.do(http.MethodGet, "/api/articles/a1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "a1", decode(t, rec)["id"])

	rec = f.do(http.MethodGet, "/api/articles/missing", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Article not found", decode(t, rec)["message"])
}

func TestUpdateArticle(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	f.seed(t, "a1", "https://beyondchats.com/blogs/a1/")

	rec := f.do(http.MethodPut, "/api/articles/a1", []byte(`{"title":"Edited","status":"failed","error":"manual"}`))
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, true, body["success"])
	data := body["data"].(map[string]any)
	assert.Equal(t, "Edited", data["title"])
	assert.Equal(t, "failed", data["status"])
	assert.Equal(t, "original", data["original_content"])

	stored, err := f.store.Get(context.Background(), "a1")
	require.NoError(t, err)
	assert.Equal(t, "manual", stored.Error)
}

func TestUpdateArticleValidation(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	f.seed(t, "a1", "https://beyondchats.com/blogs/a1/")

	require.Equal(t, http.StatusBadRequest, f.do(http.MethodPut, "/api/articles/a1", []byte("{bad")).Code)
	require.Equal(t, http.StatusBadRequest, f.do(http.MethodPut, "/api/articles/a1", []byte(`{"status":"processing"}`)).Code)
	require.Equal(t, http.StatusNotFound, f.do(http.MethodPut, "/api/articles/zzz", []byte(`{"title":"x"}`)).Code)
}

func TestDeleteArticle(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	f.seed(t, "a1", "https://beyondchats.com/blogs/a1/")

	rec := f.do(http.MethodDelete, "/api/articles/a1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Article deleted", decode(t, rec)["message"])

	require.Equal(t, http.StatusNotFound, f.do(http.MethodDelete, "/api/articles/a1", nil).Code)
}

func TestExportArticle(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	f.seed(t, "a1", "https://beyondchats.com/blogs/a1/")
	require.NoError(t, f.store.SaveResult(context.Background(), article.Article{
		ID:             "a1",
		Status:         article.StatusCompleted,
		UpdatedContent: "<h2>New</h2>",
		References:     []article.Reference{{Title: "Ref", URL: "https://example.com/ref"}},
	}))

	rec := f.do(http.MethodGet, "/api/articles/a1/export", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="Title_a1.html"`, rec.Header().Get("Content-Disposition"))
	assert.Contains(t, rec.Body.String(), "<h2>New</h2>")
	assert.Contains(t, rec.Body.String(), "https://example.com/ref")
}

func TestScrape(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	f.ingester.report = article.IngestReport{Added: 2, TotalFound: 5}

	for _, method := range []string{http.MethodGet, http.MethodPost} {
		rec := f.do(method, "/api/articles/scrape", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		body := decode(t, rec)
		assert.Equal(t, "Scraping complete. Added 2 new articles.", body["message"])
		assert.EqualValues(t, 5, body["total_found"])
	}
	assert.Equal(t, 2, f.ingester.calls)

	f.ingester.err = errors.New("listing unreachable")
	rec := f.do(http.MethodGet, "/api/articles/scrape", nil)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "listing unreachable", decode(t, rec)["error"])
}

func TestProcessResponses(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		result  article.Result
		err     error
		status  int
		message string
	}{
		{
			name:    "success",
			result:  article.Result{Article: article.Article{ID: "a1", Status: article.StatusCompleted}, Outcome: article.OutcomeSucceeded},
			status:  http.StatusOK,
			message: "Article processed successfully",
		},
		{name: "not found", err: article.ErrNotFound, status: http.StatusNotFound, message: "Article not found"},
		{name: "completed", err: article.ErrAlreadyCompleted, status: http.StatusBadRequest, message: "Article already processed"},
		{name: "in progress", err: article.ErrInProgress, status: http.StatusConflict, message: "Article is already being processed"},
		{
			name:    "no results",
			result:  article.Result{Outcome: article.ReasonNoSearchResults},
			status:  http.StatusInternalServerError,
			message: "No search results found",
		},
		{
			name:    "extraction",
			result:  article.Result{Outcome: article.ReasonExtractionFailed},
			status:  http.StatusInternalServerError,
			message: "Could not extract content from sources",
		},
		{
			name:    "generation",
			result:  article.Result{Outcome: article.ReasonGenerationFailed},
			status:  http.StatusInternalServerError,
			message: "AI generation failed",
		},
		{name: "unexpected", err: errors.New("db gone"), status: http.StatusInternalServerError, message: "Processing failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f := newFixture(t, nil)
			f.rewriter.result = tt.result
			f.rewriter.err = tt.err

			rec := f.do(http.MethodPost, "/api/articles/process/a1", nil)
			require.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.message, decode(t, rec)["message"])
			assert.Equal(t, []string{"a1"}, f.rewriter.ids)
		})
	}
}

func TestProcessNext(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	f.rewriter.err = article.ErrNoPending

	rec := f.do(http.MethodPost, "/api/articles/process-next", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "No pending articles", decode(t, rec)["message"])
	assert.Equal(t, 1, f.rewriter.next)
}

func TestAPIKeyRequired(t *testing.T) {
	t.Parallel()

	f := newFixture(t, func(c *config.Config) {
		c.Auth = config.AuthConfig{Enabled: true, APIKey: "secret"}
	})

	require.Equal(t, http.StatusForbidden, f.do(http.MethodGet, "/api/articles", nil).Code)
	require.Equal(t, http.StatusOK, f.do(http.MethodGet, "/api/articles?api_key=secret", nil).Code)

	req := httptest.NewRequest(http.MethodGet, "/api/articles", nil)
	req.Header.Set("X-API-Key", "secret")
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	require.Equal(t, http.StatusOK, f.do(http.MethodGet, "/healthz", nil).Code)
}

func TestCORS(t *testing.T) {
	t.Parallel()

	f := newFixture(t, func(c *config.Config) {
		c.Server.CORSOrigins = []string{"https://dashboard.example.com"}
	})

	req := httptest.NewRequest(http.MethodOptions, "/api/articles/a1", nil)
	req.Header.Set("Origin", "https://dashboard.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPut)
	req.Header.Set("Access-Control-Request-Headers", "Content-Type")
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://dashboard.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), "PUT")
	assert.Equal(t, "Content-Type", rec.Header().Get("Access-Control-Allow-Headers"))

	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec = httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRequestIDPropagates(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-ID", "req-123")
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)
	assert.Equal(t, "req-123", rec.Header().Get("X-Request-ID"))
}

func TestRecoverMiddleware(t *testing.T) {
	t.Parallel()

	handler := recoverMiddleware(zap.NewNop())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
}
