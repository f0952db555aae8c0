package rewrite

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/JakeFAU/article-rewriter/internal/article"
)

var (
	sourceSeparator = "\n" + strings.Repeat("=", 80) + "\n"
	htmlFence       = regexp.MustCompile("(?i)```html")
)

// BuildPrompt composes the generation prompt. Each source's content is cut to excerptChars
// runes.
func BuildPrompt(title string, sources []article.ScrapedSource, excerptChars int) string {
	blocks := make([]string, 0, len(sources))
	for i, s := range sources {
		blocks = append(blocks, fmt.Sprintf("\nSOURCE %d: %s\nURL: %s\nCONTENT:\n%s\n",
			i+1, s.Title, s.URL, excerpt(s.Content, excerptChars)))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "You are an expert tech journalist. Write a comprehensive article about: \"%s\"\n\n", title)
	b.WriteString("Use these scraped sources for information:\n\n")
	b.WriteString(strings.Join(blocks, sourceSeparator))
	b.WriteString(`

Requirements:
- Format in clean HTML: <h2>, <h3>, <p>, <ul>, <li>
- NO markdown, NO code blocks, NO backticks
- 400-600 words minimum
- Include facts and insights from the sources
- Add a "References" section at the end with source links
- Professional and informative tone

Output only the HTML:`)
	return b.String()
}

// StripFences removes Markdown code fence markers a model may wrap around HTML.
func StripFences(text string) string {
	text = htmlFence.ReplaceAllString(text, "")
	text = strings.ReplaceAll(text, "```", "")
	return strings.TrimSpace(text)
}

func excerpt(s string, n int) string {
	if n <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
