package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/yokharian/catalog-engine/cmd/catalog-cli/ui"
	"github.com/yokharian/catalog-engine/internal/storage"
)

// newInitDBCmd creates the init-db subcommand.
func newInitDBCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init-db",
		Short: "Create the catalog schema in the configured database",
		Long: `Init-db connects to the database named in the configuration and creates
the vehicles table and its indexes. The statements are idempotent, so
re-running against an initialized database is safe.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
			defer cancel()

			db, err := storage.Open(cfg.Database.Driver, cfg.DatabaseDSN())
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			defer db.Close()

			if err := db.PingContext(ctx); err != nil {
				return fmt.Errorf("ping database: %w", err)
			}
			if err := storage.InitSchema(ctx, db, cfg.Database.Driver); err != nil {
				return fmt.Errorf("init schema: %w", err)
			}

			ui.Success("Schema ready on %s (%s)", cfg.Database.Driver, cfg.DatabaseDSN())
			return nil
		},
	}
}
