// Package rewrite drives one article through search, source extraction, generation and
// persistence.
package rewrite

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"

	"github.com/JakeFAU/article-rewriter/internal/article"
	"github.com/JakeFAU/article-rewriter/internal/logging"
	"github.com/JakeFAU/article-rewriter/internal/metrics"
)

// MinSourceChars is the extracted length a source must exceed to be used.
const MinSourceChars = 300

// Event types published after a rewrite finishes.
const (
	EventCompleted = "article.completed"
	EventFailed    = "article.failed"
)

// Config controls Service behavior.
type Config struct {
	SourceDelay  time.Duration
	ExcerptChars int
	SanitizeHTML bool
	ClaimTTL     time.Duration
	Topic        string
}

// Exporter archives a completed article. *export.Exporter satisfies it.
type Exporter interface {
	Export(ctx context.Context, a article.Article) (string, error)
}

// Event is the payload published for completed and failed rewrites.
type Event struct {
	Type       string              `json:"type"`
	ArticleID  string              `json:"article_id"`
	Title      string              `json:"title"`
	URL        string              `json:"original_url"`
	Status     article.Status      `json:"status"`
	Error      string              `json:"error,omitempty"`
	References []article.Reference `json:"references,omitempty"`
	ExportURI  string              `json:"export_uri,omitempty"`
	OccurredAt time.Time           `json:"occurred_at"`
}

// EventType lets publishers tag the message without decoding it.
func (e Event) EventType() string { return e.Type }

// Service is the rewrite orchestrator.
type Service struct {
	store     article.Store
	finder    article.SourceFinder
	extractor article.Extractor
	generator article.Generator
	claimer   article.Claimer
	sleeper   article.Sleeper
	clock     article.Clock
	publisher article.Publisher
	exporter  Exporter
	policy    *bluemonday.Policy
	cfg       Config
	logger    *zap.Logger
}

// New constructs a Service. publisher and exporter may be nil.
func New(
	store article.Store,
	finder article.SourceFinder,
	extractor article.Extractor,
	generator article.Generator,
	claimer article.Claimer,
	sleeper article.Sleeper,
	clock article.Clock,
	publisher article.Publisher,
	exporter Exporter,
	cfg Config,
	logger *zap.Logger,
) *Service {
	if cfg.ExcerptChars <= 0 {
		cfg.ExcerptChars = 2000
	}
	if cfg.ClaimTTL <= 0 {
		cfg.ClaimTTL = 10 * time.Minute
	}
	s := &Service{
		store:     store,
		finder:    finder,
		extractor: extractor,
		generator: generator,
		claimer:   claimer,
		sleeper:   sleeper,
		clock:     clock,
		publisher: publisher,
		exporter:  exporter,
		cfg:       cfg,
		logger:    logging.Named(logger, "rewrite"),
	}
	if cfg.SanitizeHTML {
		s.policy = bluemonday.UGCPolicy()
	}
	return s
}

// ProcessNext rewrites the oldest pending article.
func (s *Service) ProcessNext(ctx context.Context) (article.Result, error) {
	pending, err := s.store.ListByStatus(ctx, article.StatusPending, 1)
	if err != nil {
		return article.Result{}, fmt.Errorf("list pending articles: %w", err)
	}
	if len(pending) == 0 {
		return article.Result{}, article.ErrNoPending
	}
	return s.Process(ctx, pending[0].ID)
}

// Process rewrites one article. Business rejections come back as ErrNotFound,
// ErrAlreadyCompleted or ErrInProgress with nothing written. Every other terminal condition
// is persisted before Process returns and is reported through Result.Outcome.
func (s *Service) Process(ctx context.Context, id string) (article.Result, error) {
	a, err := s.load(ctx, id)
	if err != nil {
		return article.Result{}, err
	}

	release, err := s.claimer.Claim(ctx, id, s.cfg.ClaimTTL)
	if err != nil {
		if errors.Is(err, article.ErrInProgress) {
			metrics.ObserveRewrite("in_progress")
		}
		return article.Result{}, err
	}
	defer release()

	// Another process may have finished it between the first load and the claim.
	if a, err = s.load(ctx, id); err != nil {
		return article.Result{}, err
	}

	log := s.logger.With(zap.String("article_id", a.ID))
	log.Info("processing article", zap.String("title", a.Title))

	sources := s.finder.Find(ctx, a.Title)
	if ctx.Err() != nil {
		return article.Result{}, fmt.Errorf("rewrite %s: %w", id, ctx.Err())
	}
	if len(sources) == 0 {
		return s.fail(ctx, a, article.ReasonNoSearchResults)
	}
	log.Info("found sources", zap.Int("count", len(sources)))

	scraped, err := s.scrape(ctx, log, sources)
	if err != nil {
		return article.Result{}, fmt.Errorf("rewrite %s: %w", id, err)
	}
	if len(scraped) == 0 {
		return s.fail(ctx, a, article.ReasonExtractionFailed)
	}
	log.Info("scraped sources", zap.Int("count", len(scraped)))

	prompt := BuildPrompt(a.Title, scraped, s.cfg.ExcerptChars)
	generated, err := s.generator.Generate(ctx, prompt)
	if err != nil {
		if ctx.Err() != nil {
			return article.Result{}, fmt.Errorf("rewrite %s: %w", id, ctx.Err())
		}
		log.Warn("generation failed", zap.Error(err))
		return s.fail(ctx, a, article.ReasonGenerationFailed)
	}

	content := StripFences(generated)
	if s.policy != nil {
		content = s.policy.Sanitize(content)
	}
	if content == "" {
		return s.fail(ctx, a, article.ReasonGenerationFailed)
	}

	a.Status = article.StatusCompleted
	a.UpdatedContent = content
	a.Error = ""
	a.References = make([]article.Reference, 0, len(scraped))
	for _, src := range scraped {
		a.References = append(a.References, src.Reference())
	}
	if err := s.store.SaveResult(ctx, a); err != nil {
		return article.Result{}, fmt.Errorf("save result %s: %w", id, err)
	}
	metrics.ObserveRewrite(article.OutcomeSucceeded)
	log.Info("article processed", zap.Int("references", len(a.References)))

	event := s.event(EventCompleted, a)
	if s.exporter != nil {
		uri, err := s.exporter.Export(ctx, a)
		if err != nil {
			log.Warn("export failed", zap.Error(err))
		} else {
			event.ExportURI = uri
		}
	}
	s.publish(ctx, event)

	return article.Result{Article: a, Outcome: article.OutcomeSucceeded}, nil
}

func (s *Service) load(ctx context.Context, id string) (article.Article, error) {
	a, err := s.store.Get(ctx, id)
	if err != nil {
		return article.Article{}, err
	}
	if a.Status == article.StatusCompleted {
		metrics.ObserveRewrite("already_completed")
		return article.Article{}, article.ErrAlreadyCompleted
	}
	return a, nil
}

// scrape extracts every candidate in order, pausing after each one. Only an interrupted
// pause is returned as an error.
func (s *Service) scrape(ctx context.Context, log *zap.Logger, sources []article.Source) ([]article.ScrapedSource, error) {
	var scraped []article.ScrapedSource
	for _, src := range sources {
		content := s.extractor.Extract(ctx, src.URL)
		if utf8.RuneCountInString(content) > MinSourceChars {
			scraped = append(scraped, article.ScrapedSource{Source: src, Content: content})
		} else {
			log.Debug("source skipped", zap.String("url", src.URL), zap.Int("chars", utf8.RuneCountInString(content)))
		}
		if err := s.sleeper.Sleep(ctx, s.cfg.SourceDelay); err != nil {
			return nil, err
		}
	}
	return scraped, nil
}

func (s *Service) fail(ctx context.Context, a article.Article, reason string) (article.Result, error) {
	a.Status = article.StatusFailed
	a.Error = reason
	if err := s.store.SaveResult(ctx, a); err != nil {
		return article.Result{}, fmt.Errorf("save failure %s: %w", a.ID, err)
	}
	metrics.ObserveRewrite(reason)
	s.logger.Warn("article failed", zap.String("article_id", a.ID), zap.String("reason", reason))
	s.publish(ctx, s.event(EventFailed, a))
	return article.Result{Article: a, Outcome: reason}, nil
}

func (s *Service) event(kind string, a article.Article) Event {
	return Event{
		Type:       kind,
		ArticleID:  a.ID,
		Title:      a.Title,
		URL:        a.OriginalURL,
		Status:     a.Status,
		Error:      a.Error,
		References: a.References,
		OccurredAt: s.clock.Now().UTC(),
	}
}

func (s *Service) publish(ctx context.Context, e Event) {
	if s.publisher == nil {
		return
	}
	if _, err := s.publisher.Publish(ctx, s.cfg.Topic, e); err != nil {
		s.logger.Warn("publish event failed", zap.String("article_id", e.ArticleID), zap.String("type", e.Type), zap.Error(err))
	}
}
