package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"educa/internal/app"
	authmodels "educa/internal/auth/models"
)

func newCreateAdminCmd(flags *globalFlags) *cobra.Command {
	req := &authmodels.RegisterRequest{}
	var permissions []string
	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create or promote an active staff account",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := flags.setup()
			if err != nil {
				return err
			}
			if cfg.Database.URL == "" {
				return errors.New("DATABASE_URL is required")
			}
			if req.Password == "" {
				req.Password = os.Getenv("EDUCA_ADMIN_PASSWORD")
			}

			ctx := cmd.Context()
			a, err := app.New(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer a.Close()

			acct, created, err := a.Auth.CreateAdmin(ctx, req, permissions)
			if err != nil {
				return err
			}
			verb := "promoted"
			if created {
				verb = "created"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s admin %q (id %d)\n", verb, acct.Username, acct.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&req.Username, "username", "admin", "login name")
	cmd.Flags().StringVar(&req.Email, "email", "", "contact email")
	cmd.Flags().StringVar(&req.FirstName, "first-name", "", "first name")
	cmd.Flags().StringVar(&req.LastName, "last-name", "", "last name")
	cmd.Flags().StringVar(&req.Password, "password", "", "password (defaults to $EDUCA_ADMIN_PASSWORD)")
	cmd.Flags().StringSliceVar(&permissions, "permission", nil, "permission codename to grant, repeatable")
	return cmd
}
