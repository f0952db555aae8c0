package rewrite

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/JakeFAU/article-rewriter/internal/article"
)

func TestBuildPrompt(t *testing.T) {
	t.Parallel()

	sources := []article.ScrapedSource{
		{Source: article.Source{Title: "First", URL: "https://example.com/1"}, Content: strings.Repeat("a", 2500)},
		{Source: article.Source{Title: "Second", URL: "https://example.com/2"}, Content: "short body"},
	}
	prompt := BuildPrompt("Chatbots in 2024", sources, 2000)

	assert.True(t, strings.HasPrefix(prompt,
		"You are an expert tech journalist. Write a comprehensive article about: \"Chatbots in 2024\"\n\n"+
			"Use these scraped sources for information:\n\n\nSOURCE 1: First\nURL: https://example.com/1\nCONTENT:\n"))
	assert.Contains(t, prompt, strings.Repeat("a", 2000)+"\n\n"+strings.Repeat("=", 80)+"\n\nSOURCE 2: Second\n")
	assert.NotContains(t, prompt, strings.Repeat("a", 2001))
	assert.Contains(t, prompt, "- NO markdown, NO code blocks, NO backticks\n")
	assert.True(t, strings.HasSuffix(prompt, "Output only the HTML:"))
}

func TestBuildPromptCountsRunes(t *testing.T) {
	t.Parallel()

	sources := []article.ScrapedSource{
		{Source: article.Source{Title: "Unicode", URL: "https://example.com/u"}, Content: strings.Repeat("é", 10)},
	}
	prompt := BuildPrompt("t", sources, 4)
	assert.Contains(t, prompt, "CONTENT:\néééé\n")
}

func TestStripFences(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"```html\n<h2>A</h2>\n```":      "<h2>A</h2>",
		"```HTML<p>x</p>```":             "<p>x</p>",
		"  <p>plain</p>  ":               "<p>plain</p>",
		"```\n<ul><li>y</li></ul>\n```\n": "<ul><li>y</li></ul>",
	}
	for in, want := range tests {
		assert.Equal(t, want, StripFences(in), in)
	}
}
