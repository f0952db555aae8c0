package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/article-rewriter/internal/article"
)

func newProcessCmd() *cobra.Command {
	var id string
	cmd := &cobra.Command{
		Use:   "process",
		Short: "Rewrites one article (the oldest pending one unless --id is given)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			svc := appInstance.Rewrite()

			var res article.Result
			if id != "" {
				res, err = svc.Process(cmd.Context(), id)
			} else {
				res, err = svc.ProcessNext(cmd.Context())
			}
			if errors.Is(err, article.ErrNoPending) {
				fmt.Fprintln(cmd.OutOrStdout(), "No pending articles found.")
				return nil
			}
			if err != nil {
				return fmt.Errorf("process: %w", err)
			}

			appInstance.Logger().Info("process finished",
				zap.String("article_id", res.Article.ID),
				zap.String("outcome", res.Outcome),
			)
			if res.Outcome != article.OutcomeSucceeded {
				return fmt.Errorf("article %s failed: %s", res.Article.ID, res.Outcome)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Article processed successfully: %s (%d references)\n",
				res.Article.Title, len(res.Article.References))
			return nil
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "article id to process")
	return cmd
}
