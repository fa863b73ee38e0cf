package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"educa/internal/platform/config"
	"educa/internal/platform/logger"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type globalFlags struct {
	envFile string
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}
	root := &cobra.Command{
		Use:           "educa",
		Short:         "School enrollment service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flags.envFile, "env-file", ".env", "optional dotenv file read before the environment")

	serve := newServeCmd(flags)
	root.AddCommand(serve, newMigrateCmd(flags), newCreateAdminCmd(flags))
	root.RunE = serve.RunE
	return root
}

// setup loads configuration and builds the process logger.
func (f *globalFlags) setup() (config.Config, *slog.Logger, error) {
	cfg, err := config.Load(f.envFile)
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, logger.New(cfg.LogLevel), nil
}
