package main

import (
	"github.com/spf13/cobra"

	"educa/internal/app"
)

func newServeCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := flags.setup()
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			a, err := app.New(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer a.Close()

			if cfg.Database.URL == "" {
				log.Warn("DATABASE_URL not set, using in-memory stores")
			}
			log.Info("starting educa", "addr", cfg.Server.Addr, "env", cfg.Environment)
			return a.Run(ctx)
		},
	}
}
