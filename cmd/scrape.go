package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newScrapeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scrape",
		Short: "Crawls the listing page once and stores new articles",
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			report, err := appInstance.Ingest().Run(cmd.Context())
			if err != nil {
				return fmt.Errorf("scrape: %w", err)
			}
			appInstance.Logger().Info("scrape finished",
				zap.Int("added", report.Added),
				zap.Int("total_found", report.TotalFound),
			)
			fmt.Fprintf(cmd.OutOrStdout(), "Scraping complete. Added %d new articles.\n", report.Added)
			return nil
		},
	}
}
