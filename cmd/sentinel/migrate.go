package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/phrazzld/sentinel/internal/platform/postgres"
	"github.com/spf13/cobra"
)

// migrateTimeout bounds a single migration command.
const migrateTimeout = 5 * time.Minute

var errNoDatabaseURL = errors.New("registry.database_url is not configured")

func newMigrateCmd(load loadFunc) *cobra.Command {
	return &cobra.Command{
		Use:       "migrate {up|down|reset|status|version}",
		Short:     "Apply or inspect the job registry schema",
		ValidArgs: []string{"up", "down", "reset", "status", "version"},
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup(load)
			if err != nil {
				return err
			}
			if cfg.Registry.DatabaseURL == "" {
				return errNoDatabaseURL
			}

			db, err := sql.Open("pgx", cfg.Registry.DatabaseURL)
			if err != nil {
				return fmt.Errorf("failed to open database: %w", err)
			}
			defer func() {
				if err := db.Close(); err != nil {
					log.Error("failed to close database", "error", err)
				}
			}()

			ctx, cancel := context.WithTimeout(cmd.Context(), migrateTimeout)
			defer cancel()
			return postgres.Migrate(ctx, db, args[0], log)
		},
	}
}
