// Package cli implements the trainer command line.
package cli

import (
	"context"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"calibration-engine/internal/config"
	"calibration-engine/internal/logging"
)

const appName = "trainer"

type rootOptions struct {
	logLevel string
	appEnv   string
}

// NewRootCommand builds the trainer command tree. version is reported in logs
// and selects the log format the same way the server does.
func NewRootCommand(version string) *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   appName,
		Short: "Train and inspect calibration models",
		Long: `Offline tooling for the calibration engine.

The trainer compares candidate regressors on a CSV of co-located reference
and low-cost sensor readings, writes the best one as a compressed artifact
the server can load, and optionally records every run in a sqlite ledger.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level, err := config.ParseLogLevel(opts.logLevel)
			if err != nil {
				return err
			}
			logger := logging.NewWithWriter(cmd.ErrOrStderr(), level, opts.appEnv, version, appName)
			slog.SetDefault(logger)
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", envOr("LOG_LEVEL", "info"), "debug, info, warn or error")
	cmd.PersistentFlags().StringVar(&opts.appEnv, "env", envOr("APP_ENV", "dev"), "environment tag for JSON logs")

	cmd.AddCommand(
		newTrainCommand(),
		newInspectCommand(),
		newRunsCommand(),
		newHashPasswordCommand(),
	)
	return cmd
}

// Execute runs the command tree with ctx, after seeding the environment from .env.
func Execute(ctx context.Context, version string) error {
	if err := config.LoadDotEnv(); err != nil {
		return err
	}
	return NewRootCommand(version).ExecuteContext(ctx)
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}
