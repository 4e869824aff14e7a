package ingest

import (
	"time"

	"github.com/google/uuid"
)

// Status describes the outcome of an ingestion run.
type Status string

const (
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// RowFailure records a row that was rejected and skipped.
type RowFailure struct {
	Line   int    `json:"line"`
	Field  string `json:"field,omitempty"`
	Reason string `json:"reason"`
}

// BatchFailure records a batch whose commit failed. Rows in the line range
// were skipped; rows in other batches were unaffected.
type BatchFailure struct {
	FirstLine int    `json:"first_line"`
	LastLine  int    `json:"last_line"`
	Rows      int    `json:"rows"`
	Reason    string `json:"reason"`
}

// Report summarizes an ingestion run. RowsCommitted counts rows that reached
// a committed batch; RowsUnchanged is the subset the store skipped as no-op
// rewrites. A failed run still carries every count accumulated up to the
// failure.
type Report struct {
	JobID            uuid.UUID      `json:"job_id"`
	Source           string         `json:"source"`
	Status           Status         `json:"status"`
	RowsSeen         int            `json:"rows_seen"`
	RowsCommitted    int            `json:"rows_committed"`
	RowsUnchanged    int            `json:"rows_unchanged"`
	RowsDeduped      int            `json:"rows_deduped"`
	RowsFailed       []RowFailure   `json:"rows_failed,omitempty"`
	BatchesCommitted int            `json:"batches_committed"`
	BatchesFailed    []BatchFailure `json:"batches_failed,omitempty"`
	Degradations     int            `json:"degradations"`
	StartedAt        time.Time      `json:"started_at"`
	CompletedAt      time.Time      `json:"completed_at"`
	Duration         time.Duration  `json:"duration"`
}
