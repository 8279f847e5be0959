package main

import (
	"fmt"
	"slices"
	"strings"

	"github.com/phrazzld/mealplan-api/internal/config"
	"github.com/phrazzld/mealplan-api/internal/platform/database"
	"github.com/phrazzld/mealplan-api/internal/platform/logger"
	"github.com/spf13/cobra"
)

func newMigrateCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:       "migrate <" + strings.Join(database.MigrationCommands, "|") + ">",
		Short:     "Manage the database schema",
		Args:      cobra.ExactArgs(1),
		ValidArgs: database.MigrationCommands,
		RunE: func(cmd *cobra.Command, args []string) error {
			command := args[0]
			if !slices.Contains(database.MigrationCommands, command) {
				return fmt.Errorf("unknown migrate command %q", command)
			}

			cfg, err := config.LoadFile(*configPath)
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}

			log, err := logger.Setup(cfg.Server)
			if err != nil {
				return fmt.Errorf("failed to set up logger: %w", err)
			}

			db, err := database.Open(cmd.Context(), cfg.Database, log)
			if err != nil {
				return err
			}
			defer func() {
				if err := db.Close(); err != nil {
					log.Error("Error closing database connection", "error", err)
				}
			}()

			return database.Migrate(cmd.Context(), db, cfg.Database.Driver, command, log)
		},
	}
}
