package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestSanitizeSite(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{"standard http", "http://example.com/path", "example.com"},
		{"standard https", "https://Example.com/path", "example.com"},
		{"no scheme", "beyondchats.com/blogs", "beyondchats.com"},
		{"host with port", "example.com:8080", "example.com"},
		{"ip address", "192.168.1.1", "192.168.1.1"},
		{"invalid url", "http://%", "unknown"},
		{"empty string", "", "unknown"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := SanitizeSite(tc.input); got != tc.expected {
				t.Errorf("SanitizeSite(%q) = %q; want %q", tc.input, got, tc.expected)
			}
		})
	}
}

func TestInitIsIdempotent(t *testing.T) {
	Init()
	Init()

	if fetchPagesTotal == nil || rewritesTotal == nil ||
		httpRequestsTotal == nil || generationAttemptsTotal == nil {
		t.Fatal("Init() did not initialize metrics collectors")
	}
}

func TestDomainCounters(t *testing.T) {
	before := testutil.ToFloat64(rewritesTotalFor("succeeded"))
	ObserveRewrite("succeeded")
	if got := testutil.ToFloat64(rewritesTotalFor("succeeded")); got != before+1 {
		t.Errorf("expected rewrite counter to grow by one, got %f -> %f", before, got)
	}

	ObserveGeneration("gemini", "gemini-2.5-flash", "error")
	if got := testutil.ToFloat64(generationAttemptsTotal.WithLabelValues("gemini", "gemini-2.5-flash", "error")); got < 1 {
		t.Errorf("expected generation attempt to be recorded, got %f", got)
	}

	beforeIngest := testutil.ToFloat64(articlesIngestedTotal)
	AddIngested(0)
	AddIngested(3)
	if got := testutil.ToFloat64(articlesIngestedTotal); got != beforeIngest+3 {
		t.Errorf("expected ingest counter +3, got %f -> %f", beforeIngest, got)
	}

	ObserveFetch("https://Beyondchats.com/blogs/", "static", "200", 512)
	if got := testutil.ToFloat64(fetchBytesTotal.WithLabelValues("beyondchats.com")); got < 512 {
		t.Errorf("expected fetched bytes to be recorded, got %f", got)
	}
}

func rewritesTotalFor(outcome string) prometheus.Counter {
	Init()
	return rewritesTotal.WithLabelValues(outcome)
}

// Fuzz test for SanitizeSite.
func FuzzSanitizeSite(f *testing.F) {
	testcases := []string{"http://example.com", "https://google.com", "ftp://example.com"}
	for _, tc := range testcases {
		f.Add(tc)
	}
	f.Fuzz(func(t *testing.T, orig string) {
		sanitized := SanitizeSite(orig)
		if sanitized == "" {
			t.Errorf("SanitizeSite(%q) returned an empty string", orig)
		}
	})
}
