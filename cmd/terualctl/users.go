package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/mrpayong/terual-accounting/identity"
	"github.com/mrpayong/terual-accounting/models"
	"github.com/spf13/cobra"
)

func newUsersCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Manage firm users",
	}

	var limit, offset int
	list := &cobra.Command{
		Use:   "list",
		Short: "List users",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withBackend(cmd, func(ctx context.Context, b backend) error {
				list, err := b.ListUsers(identity.WithSystemActor(ctx), limit, offset)
				if err != nil {
					return err
				}
				return c.printUsers(list)
			})
		},
	}
	list.Flags().IntVar(&limit, "limit", 50, "maximum number of users")
	list.Flags().IntVar(&offset, "offset", 0, "number of users to skip")

	var externalID, email, roleName string
	add := &cobra.Command{
		Use:   "add",
		Short: "Register a user ahead of their first sign-in",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			role, err := parseRole(roleName)
			if err != nil {
				return err
			}
			return c.withBackend(cmd, func(ctx context.Context, b backend) error {
				user, err := b.CreateUser(ctx, externalID, email, role)
				if err != nil {
					return err
				}
				return c.printUsers([]*models.User{user})
			})
		},
	}
	add.Flags().StringVar(&externalID, "external-id", "", "identity provider user id")
	add.Flags().StringVar(&email, "email", "", "primary email address")
	add.Flags().StringVar(&roleName, "role", string(models.RoleStaff), "STAFF, ADMIN or SYSADMIN")
	_ = add.MarkFlagRequired("external-id")
	_ = add.MarkFlagRequired("email")

	setRole := &cobra.Command{
		Use:   "set-role <user-id> <role>",
		Short: "Change a user's role",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid user id %q", args[0])
			}
			role, err := parseRole(args[1])
			if err != nil {
				return err
			}
			return c.withBackend(cmd, func(ctx context.Context, b backend) error {
				user, err := b.UpdateUserRole(identity.WithSystemActor(ctx), userID, role)
				if err != nil {
					return err
				}
				return c.printUsers([]*models.User{user})
			})
		},
	}

	cmd.AddCommand(list, add, setRole)
	return cmd
}

func parseRole(s string) (models.Role, error) {
	role, ok := models.ParseRole(s)
	if !ok {
		names := make([]string, 0, len(models.AllRoles()))
		for _, r := range models.AllRoles() {
			names = append(names, string(r))
		}
		return "", fmt.Errorf("unknown role %q, expected one of %s", s, strings.Join(names, ", "))
	}
	return role, nil
}

func (c *cli) printUsers(list []*models.User) error {
	if c.json {
		return c.printJSON(list)
	}
	rows := make([][]interface{}, 0, len(list))
	for _, u := range list {
		rows = append(rows, []interface{}{u.ID, u.FullName(), u.Email, u.Role.Label(), u.ExternalID})
	}
	renderTable(c.out, []string{"ID", "Name", "Email", "Role", "External ID"}, rows)
	return nil
}
