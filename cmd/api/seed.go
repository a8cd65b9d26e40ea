package main

import (
	"context"
	"fmt"

	"go-inventory-tree/internal/service"
	"go-inventory-tree/internal/ws"

	"github.com/spf13/cobra"
)

var (
	seedTypes bool
	seedAdmin bool
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Insert the builtin entity types and the initial administrator",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		rt, err := bootstrap(ctx, ws.Nop{})
		if err != nil {
			return err
		}
		defer rt.close()

		auth := rt.cfg.Auth
		report, err := rt.container.Seeder.Seed(ctx, service.SeedOptions{
			EntityTypes:   seedTypes,
			Admin:         seedAdmin,
			AdminUsername: auth.AdminUsername,
			AdminEmail:    auth.AdminEmail,
			AdminPassword: auth.AdminPassword,
		})
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "entity types inserted: %d\n", report.EntityTypesInserted)
		if report.AdminCreated {
			fmt.Fprintf(cmd.OutOrStdout(), "admin user created: %s\n", auth.AdminUsername)
		}
		return nil
	},
}

func init() {
	seedCmd.Flags().BoolVar(&seedTypes, "entity-types", true, "Insert missing builtin entity types")
	seedCmd.Flags().BoolVar(&seedAdmin, "admin", true, "Create the administrator if no user has that name")
	rootCmd.AddCommand(seedCmd)
}
