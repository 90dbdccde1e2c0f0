package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/garyjia/taskdoc/migrations"
	"github.com/garyjia/taskdoc/pkg/database"
)

func migrateCmd() *cobra.Command {
	var status bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Long: `Apply the embedded SQL migrations to the configured database.

Examples:
  taskdoc migrate
  taskdoc migrate --status`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := bootstrap()
			if err != nil {
				return err
			}
			defer logger.Sync()

			db, err := database.New(database.Config{Path: cfg.Database.Path}, logger)
			if err != nil {
				return err
			}
			defer db.Close()

			migrator := database.NewMigrator(db, logger)
			if status {
				return printStatus(cmd, migrator)
			}

			applied, err := migrator.Run(migrations.FS, ".")
			if err != nil {
				return err
			}
			logger.Info("Migrations complete", zap.Int("applied", applied))
			fmt.Fprintf(cmd.OutOrStdout(), "applied %d migration(s)\n", applied)
			return nil
		},
	}

	cmd.Flags().BoolVar(&status, "status", false, "list migrations and whether each is applied")
	return cmd
}

func printStatus(cmd *cobra.Command, migrator *database.Migrator) error {
	all, err := database.LoadMigrations(migrations.FS, ".")
	if err != nil {
		return err
	}
	applied, err := migrator.AppliedVersions()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, m := range all {
		state := "pending"
		if applied[m.Version] {
			state = "applied"
		}
		fmt.Fprintf(out, "%03d %-32s %s\n", m.Version, m.Name, state)
	}
	return nil
}
