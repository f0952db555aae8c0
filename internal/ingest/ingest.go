// Package ingest stores newly discovered listing articles.
package ingest

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/article-rewriter/internal/article"
	"github.com/JakeFAU/article-rewriter/internal/logging"
	"github.com/JakeFAU/article-rewriter/internal/metrics"
)

// Crawler yields candidate articles. *listing.Crawler satisfies it.
type Crawler interface {
	Crawl(ctx context.Context) []article.Article
}

// Service runs one ingest pass.
type Service struct {
	crawler Crawler
	store   article.Store
	ids     article.IDGenerator
	clock   article.Clock
	logger  *zap.Logger
}

// New wires an ingest Service.
func New(
	crawler Crawler,
	store article.Store,
	ids article.IDGenerator,
	clock article.Clock,
	logger *zap.Logger,
) *Service {
	return &Service{
		crawler: crawler,
		store:   store,
		ids:     ids,
		clock:   clock,
		logger:  logging.Named(logger, "ingest"),
	}
}

// Run crawls the listing and creates every candidate whose URL is not stored yet.
func (s *Service) Run(ctx context.Context) (article.IngestReport, error) {
	candidates := s.crawler.Crawl(ctx)
	report := article.IngestReport{TotalFound: len(candidates)}

	for _, candidate := range candidates {
		exists, err := s.store.ExistsByURL(ctx, candidate.OriginalURL)
		if err != nil {
			return report, fmt.Errorf("check %s: %w", candidate.OriginalURL, err)
		}
		if exists {
			s.logger.Debug("already stored", zap.String("url", candidate.OriginalURL))
			continue
		}

		id, err := s.ids.NewID()
		if err != nil {
			return report, fmt.Errorf("generate id: %w", err)
		}
		now := s.clock.Now()
		candidate.ID = id
		candidate.CreatedAt = now
		candidate.UpdatedAt = now

		if _, err := s.store.Create(ctx, candidate); err != nil {
			if errors.Is(err, article.ErrDuplicateURL) {
				continue
			}
			return report, fmt.Errorf("create %s: %w", candidate.OriginalURL, err)
		}
		report.Added++
	}

	metrics.AddIngested(report.Added)
	s.logger.Info("ingest complete", zap.Int("added", report.Added), zap.Int("total_found", report.TotalFound))
	return report, nil
}
