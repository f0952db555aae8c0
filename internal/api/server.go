package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/JakeFAU/article-rewriter/internal/article"
	"github.com/JakeFAU/article-rewriter/internal/config"
	"github.com/JakeFAU/article-rewriter/internal/logging"
	"github.com/JakeFAU/article-rewriter/internal/metrics"
)

// Banner is served on GET /.
const Banner = "BeyondChats Assignment Backend is Running!"

// Ingester runs one listing crawl. *ingest.Service satisfies it.
type Ingester interface {
	Run(ctx context.Context) (article.IngestReport, error)
}

// Rewriter processes articles. *rewrite.Service satisfies it.
type Rewriter interface {
	Process(ctx context.Context, id string) (article.Result, error)
	ProcessNext(ctx context.Context) (article.Result, error)
}

// Pinger is implemented by stores that can report connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server wires HTTP handlers to the article store and pipeline services.
type Server struct {
	router   chi.Router
	store    article.Store
	ingester Ingester
	rewriter Rewriter
	cfg      config.Config
	logger   *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(
	store article.Store,
	ingester Ingester,
	rewriter Rewriter,
	cfg config.Config,
	logger *zap.Logger,
) *Server {
	s := &Server{
		store:    store,
		ingester: ingester,
		rewriter: rewriter,
		cfg:      cfg,
		logger:   logging.Named(logger, "api"),
	}

	requestTimeout := config.Seconds(cfg.Server.RequestTimeoutSeconds)
	if requestTimeout <= 0 {
		requestTimeout = 60 * time.Second
	}
	processTimeout := config.Seconds(cfg.Server.ProcessTimeoutSeconds)
	if processTimeout <= 0 {
		processTimeout = 5 * time.Minute
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(s.logger))
	r.Use(recoverMiddleware(s.logger))
	r.Use(metrics.Middleware)
	r.Use(corsMiddleware(cfg.Server.CORSOrigins))

	r.Get("/", s.banner)
	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/articles", func(r chi.Router) {
		if cfg.Auth.Enabled {
			r.Use(apiKeyMiddleware(cfg.Auth.APIKey))
		}

		r.Group(func(r chi.Router) {
			r.Use(timeoutMiddleware(processTimeout))
			r.Get("/scrape", s.scrape)
			r.Post("/scrape", s.scrape)
			r.Post("/process/{id}", s.process)
			r.Post("/process-next", s.processNext)
		})

		r.Group(func(r chi.Router) {
			r.Use(timeoutMiddleware(requestTimeout))
			r.Get("/", s.listArticles)
			r.Get("/{id}", s.getArticle)
			r.Put("/{id}", s.updateArticle)
			r.Delete("/{id}", s.deleteArticle)
			r.Get("/{id}/export", s.exportArticle)
		})
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) banner(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if _, err := w.Write([]byte(Banner)); err != nil {
		s.logger.Debug("banner write failed", zap.Error(err))
	}
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	if p, ok := s.store.(Pinger); ok {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := p.Ping(ctx); err != nil {
			s.logger.Warn("readiness check failed", zap.Error(err))
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Error("write JSON failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"success": false, "message": msg})
}
