// Package ingest provides the CSV ingestion pipeline for the catalog engine.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/yokharian/catalog-engine/internal/cache"
	"github.com/yokharian/catalog-engine/internal/monitoring"
	"github.com/yokharian/catalog-engine/internal/observability"
	"github.com/yokharian/catalog-engine/internal/storage"
)

// DefaultBatchSize is the number of rows committed per transaction when no
// batch size is configured.
const DefaultBatchSize = 500

// Pipeline orchestrates catalog ingestion runs.
type Pipeline struct {
	logger *observability.Logger
	store  storage.Store
	audit  *monitoring.IngestAuditLog
	cache  cache.Client
	config PipelineConfig
}

// PipelineConfig holds pipeline configuration.
type PipelineConfig struct {
	BatchSize int
}

// NewPipeline creates a new ingestion pipeline. The audit log and cache are
// optional: a nil audit log disables failure persistence and a nil cache
// disables invalidation.
func NewPipeline(
	logger *observability.Logger,
	store storage.Store,
	audit *monitoring.IngestAuditLog,
	cacheClient cache.Client,
	cfg PipelineConfig,
) *Pipeline {
	if logger == nil {
		logger = observability.DefaultLogger()
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}

	return &Pipeline{
		logger: logger,
		store:  store,
		audit:  audit,
		cache:  cacheClient,
		config: cfg,
	}
}

// Run ingests every row from source and returns a report of the run.
//
// Failures are contained at the smallest scope that can absorb them: a bad
// row is skipped, a failed batch commit skips only that batch, and only an
// unavailable store, a broken source or a canceled context aborts the run.
// The returned report is complete up to the point of failure.
func (p *Pipeline) Run(ctx context.Context, source RowSource) (*Report, error) {
	jobID := uuid.New()
	logger := p.logger.WithJob(jobID.String())

	report := &Report{
		JobID:     jobID,
		Source:    source.Name(),
		Status:    StatusRunning,
		StartedAt: time.Now(),
	}

	logger.Info().
		Str("source", source.Name()).
		Int("batch_size", p.config.BatchSize).
		Msg("Starting ingestion run")

	// Step 1: stream rows, mapping and batching as we go
	batch := make([]storage.Vehicle, 0, p.config.BatchSize)
	var firstLine, lastLine int

	for {
		if err := ctx.Err(); err != nil {
			return p.fail(report, logger, err)
		}

		row, err := source.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return p.fail(report, logger, fmt.Errorf("read source: %w", err))
		}
		report.RowsSeen++

		vehicle, degradations, rowErr := MapRow(row)
		if rowErr != nil {
			p.recordRowFailure(ctx, logger, report, jobID, source.Name(), rowErr)
			continue
		}
		report.Degradations += len(degradations)
		for _, d := range degradations {
			logger.Debug().
				Int("line", row.Line).
				Str("field", d.Field).
				Str("reason", d.Reason).
				Msg("Field degraded")
		}

		if len(batch) == 0 {
			firstLine = row.Line
		}
		lastLine = row.Line
		batch = append(batch, vehicle)

		if len(batch) >= p.config.BatchSize {
			if err := p.flushBatch(ctx, logger, report, jobID, source.Name(), batch, firstLine, lastLine); err != nil {
				return p.fail(report, logger, err)
			}
			batch = batch[:0]
		}
	}

	// Step 2: flush the final partial batch
	if len(batch) > 0 {
		if err := p.flushBatch(ctx, logger, report, jobID, source.Name(), batch, firstLine, lastLine); err != nil {
			return p.fail(report, logger, err)
		}
	}

	// Step 3: invalidate cached universes once anything was written
	if p.cache != nil && report.BatchesCommitted > 0 {
		if err := p.cache.DeleteByPrefix(ctx, cache.DistinctValuesPrefix()); err != nil {
			logger.Warn().Err(err).Msg("Failed to invalidate distinct value cache")
		}
	}

	report.Status = StatusSucceeded
	report.CompletedAt = time.Now()
	report.Duration = report.CompletedAt.Sub(report.StartedAt)

	logger.Info().
		Int("rows_seen", report.RowsSeen).
		Int("rows_committed", report.RowsCommitted).
		Int("rows_unchanged", report.RowsUnchanged).
		Int("rows_failed", len(report.RowsFailed)).
		Int("batches_committed", report.BatchesCommitted).
		Int("batches_failed", len(report.BatchesFailed)).
		Dur("duration", report.Duration).
		Msg("Ingestion run completed")

	return report, nil
}

// flushBatch commits one batch. Batch-scoped failures are recorded and
// absorbed; the returned error is reserved for conditions that must abort the
// whole run.
func (p *Pipeline) flushBatch(
	ctx context.Context,
	logger *observability.Logger,
	report *Report,
	jobID uuid.UUID,
	source string,
	batch []storage.Vehicle,
	firstLine, lastLine int,
) error {
	deduped := dedupeByStockID(batch)
	report.RowsDeduped += len(batch) - len(deduped)

	res, err := p.store.UpsertBatch(ctx, deduped)
	if err != nil {
		if errors.Is(err, storage.ErrStoreUnavailable) || ctx.Err() != nil {
			return fmt.Errorf("commit batch: %w", err)
		}

		logger.Error().
			Err(err).
			Int("first_line", firstLine).
			Int("last_line", lastLine).
			Int("rows", len(deduped)).
			Msg("Batch commit failed, skipping batch")
		report.BatchesFailed = append(report.BatchesFailed, BatchFailure{
			FirstLine: firstLine,
			LastLine:  lastLine,
			Rows:      len(deduped),
			Reason:    err.Error(),
		})
		if p.audit != nil {
			if auditErr := p.audit.RecordBatchError(ctx, jobID, source, firstLine, lastLine, err.Error()); auditErr != nil {
				logger.Warn().Err(auditErr).Msg("Failed to record audit event")
			}
		}
		return nil
	}

	report.BatchesCommitted++
	report.RowsCommitted += len(deduped)
	report.RowsUnchanged += res.Unchanged

	logger.Info().
		Int("batch", report.BatchesCommitted).
		Int("rows", len(deduped)).
		Int("unchanged", res.Unchanged).
		Msg("Committed batch")
	return nil
}

// recordRowFailure accounts for a skipped row in the report and audit log.
func (p *Pipeline) recordRowFailure(
	ctx context.Context,
	logger *observability.Logger,
	report *Report,
	jobID uuid.UUID,
	source string,
	rowErr *RowError,
) {
	report.RowsFailed = append(report.RowsFailed, RowFailure{
		Line:   rowErr.Line,
		Field:  rowErr.Field,
		Reason: rowErr.Reason,
	})

	logger.Warn().
		Int("line", rowErr.Line).
		Str("reason", rowErr.Detail()).
		Msg("Skipping row")

	if p.audit != nil {
		if err := p.audit.RecordRowError(ctx, jobID, source, rowErr.Line, rowErr.Detail()); err != nil {
			logger.Warn().Err(err).Msg("Failed to record audit event")
		}
	}
}

// fail marks the report failed and returns the run error.
func (p *Pipeline) fail(report *Report, logger *observability.Logger, err error) (*Report, error) {
	report.Status = StatusFailed
	report.CompletedAt = time.Now()
	report.Duration = report.CompletedAt.Sub(report.StartedAt)

	logger.Error().
		Err(err).
		Int("rows_seen", report.RowsSeen).
		Int("rows_committed", report.RowsCommitted).
		Msg("Ingestion run failed")
	return report, err
}

// dedupeByStockID collapses duplicate stock IDs within one batch so a single
// transaction never writes the same key twice. The last occurrence wins,
// keeping the first occurrence's position.
func dedupeByStockID(batch []storage.Vehicle) []storage.Vehicle {
	seen := make(map[int64]int, len(batch))
	out := make([]storage.Vehicle, 0, len(batch))
	for _, v := range batch {
		if i, ok := seen[v.StockID]; ok {
			out[i] = v
			continue
		}
		seen[v.StockID] = len(out)
		out = append(out, v)
	}
	return out
}
