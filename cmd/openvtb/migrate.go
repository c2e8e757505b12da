package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/maykinmedia/open-vtb-sub000/internal/database"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Миграции БД",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := loadConfig(cmd, args); err != nil {
			return err
		}
		return cfg.RequireDatabase()
	},
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Применить все миграции",
	RunE: func(_ *cobra.Command, _ []string) error {
		return database.Migrate(cfg, logger)
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down <steps>",
	Short: "Откатить последние миграции",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		var steps int
		if _, err := fmt.Sscan(args[0], &steps); err != nil || steps < 1 {
			return fmt.Errorf("steps: ожидается положительное число, получено %q", args[0])
		}
		return database.MigrateDown(cfg, steps, logger)
	},
}

func init() {
	migrateCmd.AddCommand(migrateUpCmd)
	migrateCmd.AddCommand(migrateDownCmd)
}
