package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"educa/internal/platform/postgres"
)

func newMigrateCmd(flags *globalFlags) *cobra.Command {
	var down, status bool
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply, roll back or list database migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := flags.setup()
			if err != nil {
				return err
			}
			if cfg.Database.URL == "" {
				return errors.New("DATABASE_URL is required")
			}
			ctx := cmd.Context()
			pool, err := postgres.Connect(ctx, cfg.Database)
			if err != nil {
				return err
			}
			defer pool.Close()
			m := postgres.NewMigrator(pool)

			switch {
			case status:
				migrations, err := m.Status(ctx)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				for _, mig := range migrations {
					state := "pending"
					if mig.IsApplied {
						state = "applied " + mig.AppliedAt.Format("2006-01-02 15:04:05")
					}
					fmt.Fprintf(out, "%04d %-40s %s\n", mig.Version, mig.Name, state)
				}
				return nil
			case down:
				if err := m.Rollback(ctx); err != nil {
					return err
				}
				log.Info("rolled back last migration")
				return nil
			default:
				if err := m.Migrate(ctx); err != nil {
					return err
				}
				log.Info("migrations applied")
				return nil
			}
		},
	}
	cmd.Flags().BoolVar(&down, "down", false, "roll back the last applied migration")
	cmd.Flags().BoolVar(&status, "status", false, "list migrations and their state")
	cmd.MarkFlagsMutuallyExclusive("down", "status")
	return cmd
}
