// Package export renders an article as a standalone HTML document and archives it to a
// blob store.
package export

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"io"
	"path"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"github.com/JakeFAU/article-rewriter/internal/article"
)

// ContentType is the MIME type of rendered exports.
const ContentType = "text/html; charset=utf-8"

const maxFilenameRunes = 50

//go:embed templates/*.tmpl
var templateFS embed.FS

var (
	documentTmpl = template.Must(template.ParseFS(templateFS, "templates/article.html.tmpl"))
	unsafeName   = regexp.MustCompile(`[^a-zA-Z0-9]`)
	bodyPolicy   = bluemonday.UGCPolicy()
)

type document struct {
	Title       string
	Status      article.Status
	Created     string
	OriginalURL string
	// Body is updated_content after the UGC policy; it may have been edited through the API.
	Body       template.HTML
	Original   string
	References []article.Reference
}

// Render writes the download document for a. Completed articles show their generated body;
// anything else falls back to the escaped original text.
func Render(w io.Writer, a article.Article) error {
	doc := document{
		Title:       a.Title,
		Status:      a.Status,
		Created:     a.CreatedAt.UTC().Format("2006-01-02"),
		OriginalURL: a.OriginalURL,
		Body:        template.HTML(bodyPolicy.Sanitize(a.UpdatedContent)), //nolint:gosec // policy output
		Original:    a.OriginalContent,
		References:  a.References,
	}
	if err := documentTmpl.Execute(w, doc); err != nil {
		return fmt.Errorf("render article %s: %w", a.ID, err)
	}
	return nil
}

// Filename derives the download name from the title: first 50 characters, anything outside
// [A-Za-z0-9] replaced with an underscore.
func Filename(title string) string {
	runes := []rune(title)
	if len(runes) > maxFilenameRunes {
		runes = runes[:maxFilenameRunes]
	}
	name := unsafeName.ReplaceAllString(string(runes), "_")
	if name == "" {
		name = "article"
	}
	return name + ".html"
}

// Exporter archives rendered articles under prefix/{id}.html.
type Exporter struct {
	store  article.BlobStore
	prefix string
}

// NewExporter returns an Exporter writing to store.
func NewExporter(store article.BlobStore, prefix string) *Exporter {
	return &Exporter{store: store, prefix: strings.Trim(prefix, "/")}
}

// ObjectPath returns the blob path used for id.
func (e *Exporter) ObjectPath(id string) string {
	return path.Join(e.prefix, id+".html")
}

// Export renders a and uploads it, returning the blob store URI.
func (e *Exporter) Export(ctx context.Context, a article.Article) (string, error) {
	var buf bytes.Buffer
	if err := Render(&buf, a); err != nil {
		return "", err
	}
	uri, err := e.store.PutObject(ctx, e.ObjectPath(a.ID), ContentType, &buf)
	if err != nil {
		return "", fmt.Errorf("store export %s: %w", a.ID, err)
	}
	return uri, nil
}
