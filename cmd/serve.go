package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/article-rewriter/internal/api"
	"github.com/JakeFAU/article-rewriter/internal/article"
	"github.com/JakeFAU/article-rewriter/internal/schedule"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Runs the HTTP API and any configured cron jobs",
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	appInstance, err := resolveApp(ctx)
	if err != nil {
		return err
	}
	cfg := appInstance.Config()
	logger := appInstance.Logger()

	sched := schedule.New(ctx, logger)
	if err := sched.Add("scrape", cfg.Schedule.ScrapeCron, func(ctx context.Context) error {
		report, err := appInstance.Ingest().Run(ctx)
		if err != nil {
			return err
		}
		logger.Info("scheduled scrape finished", zap.Int("added", report.Added), zap.Int("total_found", report.TotalFound))
		return nil
	}); err != nil {
		return err
	}
	if err := sched.Add("process", cfg.Schedule.ProcessCron, func(ctx context.Context) error {
		res, err := appInstance.Rewrite().ProcessNext(ctx)
		if errors.Is(err, article.ErrNoPending) {
			return nil
		}
		if err != nil {
			return err
		}
		logger.Info("scheduled rewrite finished", zap.String("article_id", res.Article.ID), zap.String("outcome", res.Outcome))
		return nil
	}); err != nil {
		return err
	}

	server := api.NewServer(appInstance.Store(), appInstance.Ingest(), appInstance.Rewrite(), cfg, logger)
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           server.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("http server started", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()
	if sched.Len() > 0 {
		sched.Start()
	}

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("shutdown initiated")
	case err := <-serveErr:
		runErr = fmt.Errorf("http server: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
	select {
	case <-sched.Stop().Done():
	case <-shutdownCtx.Done():
		logger.Warn("scheduled job still running at shutdown")
	}
	logger.Info("shutdown complete")
	return runErr
}
