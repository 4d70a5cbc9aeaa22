package main

import (
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"skillswap/internal/app"
	"skillswap/internal/config"
)

// rootOptions are the flags shared by every command
type rootOptions struct {
	configPath string
	envFile    string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "skillswap",
		Short:         "SkillSwap: teaching requests, class scheduling and call signaling",
		Long:          `HTTP + WebSocket API. Commands: serve, migrate, token, call.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return config.LoadDotEnv(opts.envFile)
		},
		// default: run the server (same as "skillswap serve")
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, opts)
		},
	}

	root.PersistentFlags().StringVar(&opts.configPath, "config", os.Getenv(config.EnvPrefix+"CONFIG_FILE"), "path to a JSON config file")
	root.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "dotenv file loaded before configuration")

	root.AddCommand(newServeCmd(opts))
	root.AddCommand(newMigrateCmd(opts))
	root.AddCommand(newTokenCmd(opts))
	root.AddCommand(newCallCmd(opts))
	return root
}

// loadLogger builds the logger from the log section, falling back to production defaults
func loadLogger(cfg *config.Config) *zap.Logger {
	var logCfg *config.LogConfig
	if cfg != nil {
		logCfg = cfg.Log
	}
	logger, err := app.NewLogger(logCfg)
	if err != nil {
		logger, _ = app.NewLogger(nil)
	}
	return logger
}
