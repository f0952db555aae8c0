package cmd

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestCleanOnEmptyStore(t *testing.T) {
	out, err := execute(t, "clean")
	require.NoError(t, err)
	assert.Contains(t, out, "Database empty. Removed 0 articles.")
}

func TestProcessWithoutPendingArticles(t *testing.T) {
	out, err := execute(t, "process")
	require.NoError(t, err)
	assert.Contains(t, out, "No pending articles found.")
}

func TestProcessUnknownID(t *testing.T) {
	_, err := execute(t, "process", "--id", "does-not-exist")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "article not found")
}

func TestScrapeAgainstLocalListing(t *testing.T) {
	body := strings.Repeat("Conversational support keeps customers engaged and informed. ", 12)
	mux := http.NewServeMux()
	mux.HandleFunc("/blogs/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		if r.URL.Path == "/blogs/" {
			fmt.Fprint(w, `<html><body>
				<a href="/blogs/newest-post-about-chatbots/">The newest post about chatbots and support</a>
				<a href="/blogs/older-post-about-ai-agents/">An older post about AI agents in retail</a>
				<a href="/blogs/older-post-about-ai-agents/">Read More</a>
			</body></html>`)
			return
		}
		fmt.Fprintf(w, `<html><body><article><p>%s</p></article></body></html>`, body)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	t.Setenv("REWRITER_LISTING_URL", srv.URL+"/blogs/")
	t.Setenv("REWRITER_LISTING_ORIGIN", srv.URL)
	t.Setenv("REWRITER_LISTING_DELAY_MS", "0")

	out, err := execute(t, "scrape")
	require.NoError(t, err)
	assert.Contains(t, out, "Scraping complete. Added 2 new articles.")
}

func TestUnknownConfigFile(t *testing.T) {
	_, err := execute(t, "--config", "/does/not/exist.yaml", "clean")
	require.Error(t, err)
}
