package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonesrussell/content-studio/internal/database"
)

const defaultMigrationsDir = "migrations"

func newMigrateCmd() *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or roll back database migrations",
	}
	cmd.PersistentFlags().StringVar(&dir, "dir", defaultMigrationsDir, "migrations directory")

	up := &cobra.Command{
		Use:   "up",
		Short: "Apply every pending migration",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, log, err := setup("migrate", false)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()
			return database.MigrateUp(cfg.Database, dir, log)
		},
	}

	var steps int
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, log, err := setup("migrate", false)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()
			return database.MigrateDown(cfg.Database, dir, steps, log)
		},
	}
	down.Flags().IntVar(&steps, "steps", 1, "number of migrations to roll back")

	status := &cobra.Command{
		Use:   "status",
		Short: "Print the current migration version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := setup("migrate", false)
			if err != nil {
				return err
			}
			v, dirty, err := database.MigrationVersion(cfg.Database, dir)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "version %d (dirty: %t)\n", v, dirty)
			return nil
		},
	}

	cmd.AddCommand(up, down, status)
	return cmd
}
