package monitoring

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIngestAuditLog_RecordsRowAndBatchErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ingestion_errors.log")
	audit, err := NewIngestAuditLog(nil, path)
	require.NoError(t, err)

	jobID := uuid.New()
	ctx := context.Background()

	require.NoError(t, audit.RecordRowError(ctx, jobID, "inventory.csv", 42, "missing stock_id"))
	require.NoError(t, audit.RecordBatchError(ctx, jobID, "inventory.csv", 101, 200, "store unavailable"))
	require.NoError(t, audit.Close())

	events, err := ReadAuditLog(path)
	require.NoError(t, err)
	require.Len(t, events, 2)

	row := events[0]
	assert.Equal(t, AuditKindRowError, row.Kind)
	assert.Equal(t, jobID, row.JobID)
	assert.Equal(t, "inventory.csv", row.Source)
	assert.Equal(t, 42, row.Line)
	assert.Equal(t, "missing stock_id", row.Reason)
	assert.NotEqual(t, uuid.Nil, row.ID)
	assert.False(t, row.OccurredAt.IsZero())

	batch := events[1]
	assert.Equal(t, AuditKindBatchError, batch.Kind)
	assert.Equal(t, 101, batch.FirstLine)
	assert.Equal(t, 200, batch.LastLine)
	assert.Equal(t, "store unavailable", batch.Reason)
}

func TestIngestAuditLog_AppendsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.log")
	ctx := context.Background()
	jobID := uuid.New()

	audit, err := NewIngestAuditLog(nil, path)
	require.NoError(t, err)
	require.NoError(t, audit.RecordRowError(ctx, jobID, "a.csv", 1, "first run"))
	require.NoError(t, audit.Close())

	audit, err = NewIngestAuditLog(nil, path)
	require.NoError(t, err)
	require.NoError(t, audit.RecordRowError(ctx, jobID, "a.csv", 2, "second run"))
	require.NoError(t, audit.Close())

	events, err := ReadAuditLog(path)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "first run", events[0].Reason)
	assert.Equal(t, "second run", events[1].Reason)
}

func TestIngestAuditLog_WriteAfterCloseFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.log")
	audit, err := NewIngestAuditLog(nil, path)
	require.NoError(t, err)
	require.NoError(t, audit.Close())

	err = audit.RecordRowError(context.Background(), uuid.New(), "a.csv", 1, "late")
	assert.Error(t, err)
}

func TestReadAuditLog_MalformedLineFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.log")
	require.NoError(t, os.WriteFile(path, []byte("{\"kind\":\"row_error\"}\nnot json\n"), 0o644))

	_, err := ReadAuditLog(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse audit line 2")
}
