package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newCleanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clean",
		Short: "Deletes every stored article",
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			n, err := appInstance.Store().DeleteAll(cmd.Context())
			if err != nil {
				return fmt.Errorf("clean: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Database empty. Removed %d articles.\n", n)
			return nil
		},
	}
}
