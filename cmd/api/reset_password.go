package main

import (
	"context"
	"fmt"

	"go-inventory-tree/internal/ws"

	"github.com/spf13/cobra"
)

var (
	resetLogin    string
	resetPassword string
)

var resetPasswordCmd = &cobra.Command{
	Use:   "reset-password",
	Short: "Set a user's password and revoke their sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		rt, err := bootstrap(ctx, ws.Nop{})
		if err != nil {
			return err
		}
		defer rt.close()

		login := resetLogin
		if login == "" {
			login = rt.cfg.Auth.AdminUsername
		}
		if err := rt.container.Auth.ResetPassword(ctx, login, resetPassword); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "password for %s has been reset\n", login)
		return nil
	},
}

func init() {
	resetPasswordCmd.Flags().StringVarP(&resetLogin, "user", "u", "", "Username or email (default: the configured admin)")
	resetPasswordCmd.Flags().StringVarP(&resetPassword, "password", "p", "", "New password (required)")
	resetPasswordCmd.MarkFlagRequired("password")
	rootCmd.AddCommand(resetPasswordCmd)
}
