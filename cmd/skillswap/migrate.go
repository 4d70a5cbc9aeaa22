package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"skillswap/internal/config"
	dbconfig "skillswap/pkg/database"
)

func newMigrateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:       "migrate [up|down|status]",
		Short:     "Apply, roll back or inspect database migrations",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{"up", "down", "status"},
		RunE: func(cmd *cobra.Command, args []string) error {
			action := "up"
			if len(args) == 1 {
				action = args[0]
			}
			return runMigrate(cmd, opts, action)
		},
	}
}

func runMigrate(cmd *cobra.Command, opts *rootOptions, action string) error {
	// Only the database section matters here; the JWT secret may be unset
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}
	dbCfg := cfg.DatabaseConfig()

	logger := loadLogger(cfg)
	defer func() { _ = logger.Sync() }()

	db, err := dbconfig.Open(dbCfg)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	migrator, err := dbconfig.NewMigrator(db, dbCfg.Driver, logger)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	switch action {
	case "up":
		if err := migrator.Up(ctx); err != nil {
			return err
		}
	case "down":
		if err := migrator.Down(ctx); err != nil {
			return err
		}
	case "status":
	default:
		return fmt.Errorf("unknown migrate action %q (want up, down or status)", action)
	}

	version, err := migrator.Version(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "schema version %d\n", version)

	if action == "status" && version > 0 {
		if err := dbconfig.NewSchemaValidator(db, dbCfg.Driver).Validate(); err != nil {
			fmt.Fprintf(cmd.OutOrStdout(), "schema check failed: %v\n", err)
			return nil
		}
		fmt.Fprintln(cmd.OutOrStdout(), "schema check ok")
	}
	return nil
}
