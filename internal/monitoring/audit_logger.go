// Package monitoring provides audit logging for ingestion jobs.
package monitoring

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/yokharian/catalog-engine/internal/observability"
)

// AuditKind classifies an audit event.
type AuditKind string

const (
	AuditKindRowError   AuditKind = "row_error"
	AuditKindBatchError AuditKind = "batch_error"
)

// AuditEvent represents a recorded ingestion failure.
type AuditEvent struct {
	ID         uuid.UUID `json:"id"`
	JobID      uuid.UUID `json:"job_id"`
	Kind       AuditKind `json:"kind"`
	Source     string    `json:"source,omitempty"`
	Line       int       `json:"line,omitempty"`
	FirstLine  int       `json:"first_line,omitempty"`
	LastLine   int       `json:"last_line,omitempty"`
	Reason     string    `json:"reason"`
	OccurredAt time.Time `json:"occurred_at"`
}

// IngestAuditLog appends ingestion failures to a JSON-lines file so that
// skipped rows and batches survive the process and can be replayed or
// inspected later. Writes are serialized; a failed write is reported to the
// caller but never stops an ingestion run.
type IngestAuditLog struct {
	logger *observability.Logger
	path   string

	mu   sync.Mutex
	file *os.File
}

// NewIngestAuditLog opens (creating if needed) the audit file at path.
func NewIngestAuditLog(logger *observability.Logger, path string) (*IngestAuditLog, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create audit dir: %w", err)
		}
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open audit file: %w", err)
	}

	return &IngestAuditLog{
		logger: logger,
		path:   path,
		file:   file,
	}, nil
}

// Path returns the audit file location.
func (a *IngestAuditLog) Path() string {
	return a.path
}

// RecordRowError records a row that was skipped during ingestion.
func (a *IngestAuditLog) RecordRowError(ctx context.Context, jobID uuid.UUID, source string, line int, reason string) error {
	return a.record(ctx, AuditEvent{
		JobID:  jobID,
		Kind:   AuditKindRowError,
		Source: source,
		Line:   line,
		Reason: reason,
	})
}

// RecordBatchError records a batch whose commit failed and was skipped.
func (a *IngestAuditLog) RecordBatchError(ctx context.Context, jobID uuid.UUID, source string, firstLine, lastLine int, reason string) error {
	return a.record(ctx, AuditEvent{
		JobID:     jobID,
		Kind:      AuditKindBatchError,
		Source:    source,
		FirstLine: firstLine,
		LastLine:  lastLine,
		Reason:    reason,
	})
}

// record fills defaults, logs the event and appends it to the file.
func (a *IngestAuditLog) record(ctx context.Context, event AuditEvent) error {
	// Set defaults
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	if a.logger != nil {
		a.logger.WithContext(ctx).Warn().
			Str("event_id", event.ID.String()).
			Str("job_id", event.JobID.String()).
			Str("kind", string(event.Kind)).
			Str("source", event.Source).
			Int("line", event.Line).
			Str("reason", event.Reason).
			Msg("Audit event")
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.file == nil {
		return fmt.Errorf("audit log %s is closed", a.path)
	}
	if _, err := a.file.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("append audit event: %w", err)
	}
	return nil
}

// Close flushes and closes the audit file.
func (a *IngestAuditLog) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.file == nil {
		return nil
	}
	err := a.file.Close()
	a.file = nil
	return err
}

// ReadAuditLog reads all events from an audit file. Blank lines are skipped;
// a malformed line aborts the read so corruption is not silently ignored.
func ReadAuditLog(path string) ([]AuditEvent, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open audit file: %w", err)
	}
	defer file.Close()

	var events []AuditEvent
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var event AuditEvent
		if err := json.Unmarshal(line, &event); err != nil {
			return nil, fmt.Errorf("parse audit line %d: %w", lineNo, err)
		}
		events = append(events, event)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read audit file: %w", err)
	}
	return events, nil
}
