package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/yokharian/catalog-engine/cmd/catalog-cli/ui"
	"github.com/yokharian/catalog-engine/internal/monitoring"
)

// newStatsCmd creates the stats subcommand.
func newStatsCmd() *cobra.Command {
	var errorTail int

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show catalog size and recent ingestion failures",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			engine, err := openEngine()
			if err != nil {
				return err
			}
			defer engine.Close()

			count, err := engine.Count(ctx)
			if err != nil {
				return fmt.Errorf("count vehicles: %w", err)
			}
			makes, err := engine.Makes(ctx)
			if err != nil {
				return fmt.Errorf("list makes: %w", err)
			}
			models, err := engine.Models(ctx, "")
			if err != nil {
				return fmt.Errorf("list models: %w", err)
			}

			events := readAuditTail(cfg.Ingest.AuditLogPath, errorTail)

			if outputJSON {
				return printJSON(map[string]any{
					"vehicles":      count,
					"makes":         len(makes),
					"models":        len(models),
					"recent_errors": events,
				})
			}

			ui.Section("Catalog")
			ui.KeyValue("Vehicles", strconv.FormatInt(count, 10))
			ui.KeyValue("Makes", strconv.Itoa(len(makes)))
			ui.KeyValue("Models", strconv.Itoa(len(models)))
			ui.KeyValue("Database", fmt.Sprintf("%s (%s)", cfg.Database.Driver, cfg.DatabaseDSN()))

			ui.Newline()
			ui.Section("Recent ingestion failures")
			if len(events) == 0 {
				ui.Message("none recorded")
				return nil
			}
			rows := make([][]string, 0, len(events))
			for _, event := range events {
				rows = append(rows, []string{
					event.OccurredAt.Format(time.RFC3339),
					string(event.Kind),
					event.Source,
					auditLineRange(event),
					event.Reason,
				})
			}
			ui.Table([]string{"WHEN", "KIND", "SOURCE", "LINES", "REASON"}, rows)
			return nil
		},
	}

	cmd.Flags().IntVar(&errorTail, "errors", 5, "number of recent ingestion failures to show")
	return cmd
}

// readAuditTail returns the newest n events from the audit file. A missing
// file just means nothing has failed yet.
func readAuditTail(path string, n int) []monitoring.AuditEvent {
	if n <= 0 {
		return nil
	}
	events, err := monitoring.ReadAuditLog(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			ui.Warning("read audit log: %v", err)
		}
		return nil
	}
	if len(events) > n {
		events = events[len(events)-n:]
	}
	return events
}

func auditLineRange(event monitoring.AuditEvent) string {
	switch event.Kind {
	case monitoring.AuditKindBatchError:
		return fmt.Sprintf("%d-%d", event.FirstLine, event.LastLine)
	default:
		return strconv.Itoa(event.Line)
	}
}
