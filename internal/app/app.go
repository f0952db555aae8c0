// Package app initializes and holds long-lived application services, acting as a dependency
// injection container for the CLI commands.
package app

import (
	"context"
	"fmt"
	"io"

	gcsstorage "cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/JakeFAU/article-rewriter/internal/article"
	"github.com/JakeFAU/article-rewriter/internal/clock/system"
	"github.com/JakeFAU/article-rewriter/internal/config"
	"github.com/JakeFAU/article-rewriter/internal/export"
	"github.com/JakeFAU/article-rewriter/internal/extractor"
	"github.com/JakeFAU/article-rewriter/internal/fetcher"
	"github.com/JakeFAU/article-rewriter/internal/id/uuid"
	"github.com/JakeFAU/article-rewriter/internal/ingest"
	"github.com/JakeFAU/article-rewriter/internal/listing"
	"github.com/JakeFAU/article-rewriter/internal/llm"
	"github.com/JakeFAU/article-rewriter/internal/lock"
	pubmemory "github.com/JakeFAU/article-rewriter/internal/publisher/memory"
	"github.com/JakeFAU/article-rewriter/internal/publisher/pubsub"
	"github.com/JakeFAU/article-rewriter/internal/rewrite"
	"github.com/JakeFAU/article-rewriter/internal/search"
	"github.com/JakeFAU/article-rewriter/internal/storage/gcs"
	"github.com/JakeFAU/article-rewriter/internal/storage/local"
	"github.com/JakeFAU/article-rewriter/internal/storage/memory"
	"github.com/JakeFAU/article-rewriter/internal/storage/postgres"
)

// memoryEventLimit bounds the in-process event log used when Pub/Sub is not configured.
const memoryEventLimit = 256

// App holds all the shared, long-lived services for the application.
type App struct {
	cfg     config.Config
	logger  *zap.Logger
	store   article.Store
	ingest  *ingest.Service
	rewrite *rewrite.Service
	closers []namedCloser
}

type namedCloser struct {
	name string
	io.Closer
}

// Config returns the configuration the App was built from.
func (a *App) Config() config.Config { return a.cfg }

// Logger returns the shared zap logger.
func (a *App) Logger() *zap.Logger { return a.logger }

// Store returns the article store.
func (a *App) Store() article.Store { return a.store }

// Ingest returns the listing ingest service.
func (a *App) Ingest() *ingest.Service { return a.ingest }

// Rewrite returns the rewrite orchestrator.
func (a *App) Rewrite() *rewrite.Service { return a.rewrite }

// New builds every service named by cfg. It fails fast if a configured backend cannot be
// reached; anything already opened is closed before returning the error.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (_ *App, err error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{cfg: cfg, logger: logger}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	a.logger.Info("initializing application services")

	if a.store, err = a.buildStore(ctx); err != nil {
		return nil, err
	}

	fetch, fetchCloser, err := fetcher.Build(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("build fetcher: %w", err)
	}
	a.track("fetcher", fetchCloser)

	clock := system.New()
	extractOpts := extractor.Options{
		UserAgent:           cfg.HTTP.UserAgent,
		AcceptLanguage:      cfg.HTTP.AcceptLanguage,
		Referer:             cfg.HTTP.Referer,
		Timeout:             cfg.HTTPTimeout(),
		MaxRedirects:        cfg.HTTP.MaxRedirects,
		ReadabilityFallback: cfg.Extractor.ReadabilityFallback,
	}

	crawler := listing.New(
		fetch,
		extractor.New(fetch, extractor.Listing, extractOpts, logger),
		clock,
		listing.Options{
			URL:         cfg.Listing.URL,
			Origin:      cfg.Listing.Origin,
			PathSegment: cfg.Listing.PathSegment,
			MaxArticles: cfg.Listing.MaxArticles,
			Delay:       config.Millis(cfg.Listing.DelayMs),
			Timeout:     config.Seconds(cfg.Listing.TimeoutSeconds),
			UserAgent:   cfg.HTTP.UserAgent,
		},
		logger,
	)
	a.ingest = ingest.New(crawler, a.store, uuid.New(), clock, logger)

	finder := search.New(fetch, search.Options{
		UpstreamEnabled: cfg.Search.UpstreamEnabled,
		Extended:        cfg.Search.Extended,
		Timeout:         config.Seconds(cfg.Search.TimeoutSeconds),
		UserAgent:       cfg.HTTP.UserAgent,
		ScholarURL:      cfg.Search.ScholarURL,
		DuckDuckGoURL:   cfg.Search.DuckDuckGoURL,
		NewsURL:         cfg.Search.NewsURL,
	}, logger)

	generator := llm.Build(cfg.LLM, logger)
	if !generator.Enabled() {
		a.logger.Warn("no llm provider configured; every rewrite will fail with AI generation failed")
	}

	claimer, err := a.buildClaimer(ctx)
	if err != nil {
		return nil, err
	}
	publisher, err := a.buildPublisher(ctx)
	if err != nil {
		return nil, err
	}
	exporter, err := a.buildExporter(ctx)
	if err != nil {
		return nil, err
	}

	a.rewrite = rewrite.New(
		a.store,
		finder,
		extractor.New(fetch, extractor.Source, extractOpts, logger),
		generator,
		claimer,
		clock,
		clock,
		publisher,
		exporter,
		rewrite.Config{
			SourceDelay:  config.Millis(cfg.Rewrite.SourceDelayMs),
			ExcerptChars: cfg.Rewrite.ExcerptChars,
			SanitizeHTML: cfg.Rewrite.SanitizeHTML,
			ClaimTTL:     cfg.ClaimTTL(),
			Topic:        cfg.PubSub.TopicName,
		},
		logger,
	)

	a.logger.Info("application services initialized")
	return a, nil
}

func (a *App) buildStore(ctx context.Context) (article.Store, error) {
	if a.cfg.DB.DSN == "" {
		a.logger.Info("using in-memory article store")
		return memory.NewArticleStore(), nil
	}
	a.logger.Info("connecting to postgres")
	pg, err := postgres.NewArticleStore(ctx, postgres.Config{
		DSN:      a.cfg.DB.DSN,
		MaxConns: a.cfg.DB.MaxConns,
		MinConns: a.cfg.DB.MinConns,
	})
	if err != nil {
		return nil, fmt.Errorf("init article store: %w", err)
	}
	a.track("postgres", closeFunc(pg.Close))
	if err := pg.Migrate(ctx); err != nil {
		return nil, fmt.Errorf("migrate article store: %w", err)
	}
	return pg, nil
}

// buildClaimer falls back to the in-process lock when no Redis URL is configured.
func (a *App) buildClaimer(ctx context.Context) (article.Claimer, error) {
	if a.cfg.Redis.URL == "" {
		return lock.NewMemory(), nil
	}
	r, err := lock.Dial(ctx, a.cfg.Redis.URL, a.cfg.Redis.KeyPrefix, a.logger)
	if err != nil {
		return nil, fmt.Errorf("init redis claim lock: %w", err)
	}
	a.track("redis", r)
	a.logger.Info("using redis claim lock")
	return r, nil
}

func (a *App) buildPublisher(ctx context.Context) (article.Publisher, error) {
	if a.cfg.PubSub.TopicName == "" {
		return pubmemory.New(memoryEventLimit), nil
	}
	p, err := pubsub.Dial(ctx, a.cfg.PubSub.ProjectID, a.cfg.PubSub.TopicName)
	if err != nil {
		return nil, fmt.Errorf("init pubsub publisher: %w", err)
	}
	a.track("pubsub", p)
	a.logger.Info("publishing events to pubsub", zap.String("topic", a.cfg.PubSub.TopicName))
	return p, nil
}

// buildExporter returns nil when exports are disabled.
func (a *App) buildExporter(ctx context.Context) (rewrite.Exporter, error) {
	if !a.cfg.Export.Enabled {
		return nil, nil
	}
	var (
		blobs article.BlobStore
		err   error
	)
	switch a.cfg.Export.Backend {
	case config.BackendMemory:
		blobs = memory.NewBlobStore()
	case config.BackendLocal:
		blobs, err = local.New(local.Config{BaseDir: a.cfg.Export.LocalDir})
	case config.BackendGCS:
		var client *gcsstorage.Client
		client, err = gcsstorage.NewClient(ctx)
		if err == nil {
			a.track("gcs", client)
			blobs, err = gcs.New(client, gcs.Config{Bucket: a.cfg.Export.GCSBucket})
		}
	default:
		err = fmt.Errorf("unknown export backend %q", a.cfg.Export.Backend)
	}
	if err != nil {
		return nil, fmt.Errorf("init export store: %w", err)
	}
	a.logger.Info("exporting completed articles", zap.String("backend", a.cfg.Export.Backend))
	return export.NewExporter(blobs, a.cfg.Export.Prefix), nil
}

func (a *App) track(name string, c io.Closer) {
	a.closers = append(a.closers, namedCloser{name: name, Closer: c})
}

// Close shuts services down in reverse order of creation.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		c := a.closers[i]
		if err := c.Close(); err != nil {
			a.logger.Warn("error closing service", zap.String("service", c.name), zap.Error(err))
		}
	}
	a.closers = nil
}

type closeFunc func()

func (f closeFunc) Close() error {
	f()
	return nil
}
