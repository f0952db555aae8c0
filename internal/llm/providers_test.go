package llm

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/article-rewriter/internal/config"
)

func TestGeminiGenerate(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/gemini-2.5-flash:generateContent", r.URL.Path)
		assert.Equal(t, "gem-key", r.URL.Query().Get("key"))

		var body geminiRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		if assert.Len(t, body.Contents, 1) && assert.Len(t, body.Contents[0].Parts, 1) {
			assert.Equal(t, "write it", body.Contents[0].Parts[0].Text)
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"candidates":[{"content":{"parts":[{"text":"<h1>Hi</h1>"},{"text":"<p>there</p>"}]}}]}`)
	}))
	t.Cleanup(srv.Close)

	g := NewGemini(config.ProviderConfig{
		APIKey:         "gem-key",
		BaseURL:        srv.URL + "/",
		Models:         []string{"gemini-2.5-flash"},
		TimeoutSeconds: 5,
	})
	got, err := g.Generate(context.Background(), "gemini-2.5-flash", "write it")
	require.NoError(t, err)
	assert.Equal(t, "<h1>Hi</h1><p>there</p>", got)
}

func TestGeminiAPIError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = io.WriteString(w, `{"error":{"code":429,"message":"Resource has been exhausted"}}`)
	}))
	t.Cleanup(srv.Close)

	g := NewGemini(config.ProviderConfig{APIKey: "k", BaseURL: srv.URL, TimeoutSeconds: 5})
	_, err := g.Generate(context.Background(), "gemini-1.5-pro", "prompt")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Resource has been exhausted")
}

func TestGeminiNoCandidates(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"candidates":[]}`)
	}))
	t.Cleanup(srv.Close)

	g := NewGemini(config.ProviderConfig{APIKey: "k", BaseURL: srv.URL, TimeoutSeconds: 5})
	_, err := g.Generate(context.Background(), "gemini-1.5-pro", "prompt")
	require.Error(t, err)
}

func TestGroqGenerate(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer groq-key", r.Header.Get("Authorization"))

		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "llama-3.3-70b-versatile", body["model"])
		assert.InDelta(t, 0.7, body["temperature"], 0.001)
		assert.EqualValues(t, 2048, body["max_tokens"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"model": "llama-3.3-70b-versatile",
			"choices": [{"index": 0, "message": {"role": "assistant", "content": "<h2>Groq</h2>"}, "finish_reason": "stop"}]
		}`)
	}))
	t.Cleanup(srv.Close)

	g := NewGroq(config.ProviderConfig{
		APIKey:         "groq-key",
		BaseURL:        srv.URL,
		Models:         []string{"llama-3.3-70b-versatile"},
		TimeoutSeconds: 5,
	}, 0.7, 2048)
	got, err := g.Generate(context.Background(), "llama-3.3-70b-versatile", "prompt")
	require.NoError(t, err)
	assert.Equal(t, "<h2>Groq</h2>", got)
}

func TestGroqErrorStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"error":{"message":"Invalid API Key","type":"invalid_request_error"}}`)
	}))
	t.Cleanup(srv.Close)

	g := NewGroq(config.ProviderConfig{APIKey: "bad", BaseURL: srv.URL, TimeoutSeconds: 5}, 0.7, 2048)
	_, err := g.Generate(context.Background(), "llama", "prompt")
	require.Error(t, err)
}

func TestAnthropicGenerate(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "anthropic-key", r.Header.Get("X-Api-Key"))

		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "claude-test", body["model"])
		assert.EqualValues(t, 1024, body["max_tokens"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
			"id": "msg_1",
			"type": "message",
			"role": "assistant",
			"model": "claude-test",
			"content": [{"type": "text", "text": "<p>from claude</p>"}],
			"stop_reason": "end_turn",
			"usage": {"input_tokens": 3, "output_tokens": 4}
		}`)
	}))
	t.Cleanup(srv.Close)

	a := NewAnthropic(config.ProviderConfig{
		APIKey:         "anthropic-key",
		BaseURL:        srv.URL,
		Models:         []string{"claude-test"},
		TimeoutSeconds: 5,
	}, 0.7, 1024)
	got, err := a.Generate(context.Background(), "claude-test", "prompt")
	require.NoError(t, err)
	assert.Equal(t, "<p>from claude</p>", got)
}
