package main

import (
	"context"

	"github.com/spf13/cobra"
)

func newRecurringCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "recurring",
		Short: "Recurring transaction templates",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "run",
		Short: "Materialise every due recurring transaction now",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withBackend(cmd, func(ctx context.Context, b backend) error {
				summary, err := b.ProcessDue(ctx)
				if err != nil {
					return err
				}
				if c.json {
					return c.printJSON(summary)
				}
				renderTable(c.out, []string{"Templates", "Processed", "Skipped", "Failed"},
					[][]interface{}{{summary.Templates, summary.Processed, summary.Skipped, summary.Failed}})
				return nil
			})
		},
	})
	return cmd
}
