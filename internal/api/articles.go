package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/JakeFAU/article-rewriter/internal/article"
	"github.com/JakeFAU/article-rewriter/internal/export"
)

// Failure messages returned by the process endpoints for each terminal outcome.
var outcomeMessages = map[string]string{
	article.ReasonNoSearchResults:  "No search results found",
	article.ReasonExtractionFailed: "Could not extract content from sources",
	article.ReasonGenerationFailed: "AI generation failed",
}

func (s *Server) listArticles(w http.ResponseWriter, r *http.Request) {
	articles, err := s.store.List(r.Context())
	if err != nil {
		s.internalError(w, "list articles", err)
		return
	}
	if articles == nil {
		articles = []article.Article{}
	}
	writeJSON(w, http.StatusOK, articles)
}

func (s *Server) getArticle(w http.ResponseWriter, r *http.Request) {
	a, ok := s.loadArticle(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (s *Server) updateArticle(w http.ResponseWriter, r *http.Request) {
	var upd article.Update
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(&upd); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if upd.Status != nil && !upd.Status.Valid() {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid status %q", *upd.Status))
		return
	}

	a, ok := s.loadArticle(w, r)
	if !ok {
		return
	}
	upd.Apply(&a)

	updated, err := s.store.Update(r.Context(), a)
	switch {
	case errors.Is(err, article.ErrNotFound):
		writeError(w, http.StatusNotFound, "Article not found")
		return
	case errors.Is(err, article.ErrDuplicateURL):
		writeError(w, http.StatusConflict, err.Error())
		return
	case err != nil:
		s.internalError(w, "update article", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": updated})
}

func (s *Server) deleteArticle(w http.ResponseWriter, r *http.Request) {
	err := s.store.Delete(r.Context(), chi.URLParam(r, "id"))
	switch {
	case errors.Is(err, article.ErrNotFound):
		writeError(w, http.StatusNotFound, "Article not found")
	case err != nil:
		s.internalError(w, "delete article", err)
	default:
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Article deleted"})
	}
}

func (s *Server) exportArticle(w http.ResponseWriter, r *http.Request) {
	a, ok := s.loadArticle(w, r)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := export.Render(&buf, a); err != nil {
		s.internalError(w, "render export", err)
		return
	}
	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.Filename(a.Title)))
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		s.logger.Debug("export write failed", zap.Error(err))
	}
}

func (s *Server) scrape(w http.ResponseWriter, r *http.Request) {
	report, err := s.ingester.Run(r.Context())
	if err != nil {
		s.logger.Error("scrape failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]any{"success": false, "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":     true,
		"message":     fmt.Sprintf("Scraping complete. Added %d new articles.", report.Added),
		"total_found": report.TotalFound,
	})
}

func (s *Server) process(w http.ResponseWriter, r *http.Request) {
	res, err := s.rewriter.Process(r.Context(), chi.URLParam(r, "id"))
	s.writeResult(w, res, err)
}

func (s *Server) processNext(w http.ResponseWriter, r *http.Request) {
	res, err := s.rewriter.ProcessNext(r.Context())
	s.writeResult(w, res, err)
}

func (s *Server) writeResult(w http.ResponseWriter, res article.Result, err error) {
	switch {
	case errors.Is(err, article.ErrNotFound):
		writeError(w, http.StatusNotFound, "Article not found")
	case errors.Is(err, article.ErrNoPending):
		writeError(w, http.StatusNotFound, "No pending articles")
	case errors.Is(err, article.ErrAlreadyCompleted):
		writeError(w, http.StatusBadRequest, "Article already processed")
	case errors.Is(err, article.ErrInProgress):
		writeError(w, http.StatusConflict, "Article is already being processed")
	case err != nil:
		s.logger.Error("processing failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"success": false,
			"message": "Processing failed",
			"error":   err.Error(),
		})
	case res.Outcome != article.OutcomeSucceeded:
		msg, ok := outcomeMessages[res.Outcome]
		if !ok {
			msg = res.Outcome
		}
		writeError(w, http.StatusInternalServerError, msg)
	default:
		writeJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"message": "Article processed successfully",
			"article": res.Article,
		})
	}
}

func (s *Server) loadArticle(w http.ResponseWriter, r *http.Request) (article.Article, bool) {
	a, err := s.store.Get(r.Context(), chi.URLParam(r, "id"))
	switch {
	case errors.Is(err, article.ErrNotFound):
		writeError(w, http.StatusNotFound, "Article not found")
		return article.Article{}, false
	case err != nil:
		s.internalError(w, "get article", err)
		return article.Article{}, false
	}
	return a, true
}

func (s *Server) internalError(w http.ResponseWriter, op string, err error) {
	s.logger.Error(op+" failed", zap.Error(err))
	writeJSON(w, http.StatusInternalServerError, map[string]any{"success": false, "error": err.Error()})
}
