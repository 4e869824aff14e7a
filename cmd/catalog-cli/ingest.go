package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/yokharian/catalog-engine/cmd/catalog-cli/ui"
	"github.com/yokharian/catalog-engine/internal/ingest"
	"github.com/yokharian/catalog-engine/pkg/catalog"
)

// newIngestCmd creates the ingest subcommand.
func newIngestCmd() *cobra.Command {
	var batchSize int

	cmd := &cobra.Command{
		Use:   "ingest <feed.csv> [feed.csv...]",
		Short: "Ingest CSV inventory feeds into the catalog",
		Long: `Ingest streams CSV feeds through the normalization pipeline and upserts
them into the catalog in atomic batches. Bad rows are skipped and recorded
in the audit log; a failed batch never blocks the rest of the feed.

Multiple feeds run concurrently, bounded by ingest.max_concurrent_files.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Minute)
			defer cancel()

			if batchSize > 0 {
				cfg.Ingest.BatchSize = batchSize
			}

			engine, err := openEngine()
			if err != nil {
				return err
			}
			defer engine.Close()

			if len(args) == 1 {
				return ingestOne(ctx, engine, args[0])
			}
			return ingestMany(ctx, engine, args)
		},
	}

	cmd.Flags().IntVar(&batchSize, "batch-size", 0, "rows per atomic batch (default from config)")
	return cmd
}

func ingestOne(ctx context.Context, engine *catalog.Engine, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open feed: %w", err)
	}
	defer f.Close()

	var reader io.Reader = f
	var bar *ui.ProgressBar
	if !outputJSON {
		if info, statErr := f.Stat(); statErr == nil {
			bar = ui.NewProgressBar(info.Size(), filepath.Base(path))
			reader = ui.NewProgressReader(f, bar)
		}
	}

	report, err := engine.IngestReader(ctx, reader, filepath.Base(path))
	if bar != nil {
		bar.Finish()
	}
	if err != nil {
		ui.Error("%s: %v", path, err)
		return err
	}

	if outputJSON {
		return printJSON(report)
	}
	printReport(report)
	return nil
}

func ingestMany(ctx context.Context, engine *catalog.Engine, paths []string) error {
	var (
		mu      sync.Mutex
		reports = make([]*ingest.Report, 0, len(paths))
	)

	var spin *ui.Spinner
	if !outputJSON {
		spin = ui.NewSpinner(fmt.Sprintf("Ingesting %d feeds", len(paths)))
		spin.Start()
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(cfg.Ingest.MaxConcurrentFiles)

	for _, path := range paths {
		path := path
		group.Go(func() error {
			report, err := engine.IngestFile(groupCtx, path)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			mu.Lock()
			reports = append(reports, report)
			mu.Unlock()
			return nil
		})
	}

	err := group.Wait()
	if spin != nil {
		spin.Stop()
	}

	if outputJSON {
		if jsonErr := printJSON(reports); jsonErr != nil {
			return jsonErr
		}
		return err
	}

	for _, report := range reports {
		printReport(report)
	}
	if err != nil {
		ui.Error("%v", err)
	}
	return err
}

func printReport(report *ingest.Report) {
	if report.Status == ingest.StatusSucceeded {
		ui.Success("%s: %d of %d rows committed in %d batches (%s)",
			report.Source, report.RowsCommitted, report.RowsSeen,
			report.BatchesCommitted, ui.FormatDuration(report.Duration))
	} else {
		ui.Error("%s: ingestion %s after %d committed rows",
			report.Source, report.Status, report.RowsCommitted)
	}

	if report.RowsUnchanged > 0 {
		ui.Info("%d rows unchanged since the last load", report.RowsUnchanged)
	}
	if report.RowsDeduped > 0 {
		ui.Info("%d duplicate stock ids collapsed within batches", report.RowsDeduped)
	}
	if report.Degradations > 0 {
		ui.Info("%d optional fields degraded to defaults", report.Degradations)
	}
	if len(report.RowsFailed) > 0 {
		ui.Warning("%d rows skipped; see the audit log for details", len(report.RowsFailed))
	}
	if len(report.BatchesFailed) > 0 {
		for _, batch := range report.BatchesFailed {
			ui.Warning("batch covering lines %d-%d failed: %s", batch.FirstLine, batch.LastLine, batch.Reason)
		}
	}
}
