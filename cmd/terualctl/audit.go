package main

import (
	"context"
	"fmt"

	"github.com/mrpayong/terual-accounting/identity"
	"github.com/mrpayong/terual-accounting/models"
	"github.com/mrpayong/terual-accounting/repositories"
	"github.com/mrpayong/terual-accounting/services/audit"
	"github.com/spf13/cobra"
)

func newAuditCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Inspect the audit trail",
	}

	var limit int
	var action string
	tail := &cobra.Command{
		Use:   "tail",
		Short: "Show the most recent audit entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			filter := repositories.AuditFilter{Limit: limit}
			if action != "" {
				a := models.AuditAction(action)
				if !a.Valid() {
					return fmt.Errorf("unknown audit action %q", action)
				}
				filter.Action = &a
			}
			return c.withBackend(cmd, func(ctx context.Context, b backend) error {
				records, err := b.AuditTrail(identity.WithSystemActor(ctx), filter)
				if err != nil {
					return err
				}
				return c.printAudit(records)
			})
		},
	}
	tail.Flags().IntVar(&limit, "limit", 20, "number of entries")
	tail.Flags().StringVar(&action, "action", "", "only show this action, e.g. createTransaction")

	cmd.AddCommand(tail)
	return cmd
}

func (c *cli) printAudit(records []*audit.Record) error {
	if c.json {
		return c.printJSON(records)
	}
	rows := make([][]interface{}, 0, len(records))
	for _, r := range records {
		rows = append(rows, []interface{}{r.LoggedAt, r.ActorName, r.ActionLabel, string(r.Meta)})
	}
	renderTable(c.out, []string{"Logged At", "Actor", "Action", "Details"}, rows)
	return nil
}
