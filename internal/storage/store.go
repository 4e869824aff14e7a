package storage

import (
	"context"
	"errors"
)

var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrStoreUnavailable indicates the store connection itself is unusable,
	// as opposed to a single batch or query failing. Ingestion treats it as
	// fatal.
	ErrStoreUnavailable = errors.New("catalog store unavailable")
)

// DistinctField names a column whose distinct values can be listed.
type DistinctField string

const (
	DistinctMake  DistinctField = "make"
	DistinctModel DistinctField = "model"
)

// Filter is the predicate set a catalog query supports natively. Nil bounds
// are omitted from the query. Feature requirements are not part of the filter;
// they are post-applied in memory by the caller.
type Filter struct {
	Make     *string
	Model    *string
	MinYear  *int
	MaxYear  *int
	MinPrice *float64
	MaxPrice *float64
	MaxKM    *int
	Limit    int
}

// UpsertResult reports what one atomic batch write did.
type UpsertResult struct {
	// Written counts rows inserted or rewritten.
	Written int
	// Unchanged counts rows skipped because their fingerprint matched the
	// stored record.
	Unchanged int
}

// Store is the catalog persistence contract. Implementations must make
// UpsertBatch atomic: either every vehicle in the slice persists or none does.
type Store interface {
	// UpsertBatch writes the batch in one transaction, keyed by stock id with
	// latest-wins replace semantics.
	UpsertBatch(ctx context.Context, vehicles []Vehicle) (UpsertResult, error)

	// DistinctValues lists the distinct normalized values of a field, sorted
	// ascending. A non-empty scopeMake restricts model listing to one make.
	DistinctValues(ctx context.Context, field DistinctField, scopeMake string) ([]string, error)

	// Query returns vehicles matching the filter. Result order is the store's
	// stable return order; absence of matches is an empty slice, not an error.
	Query(ctx context.Context, f Filter) ([]Vehicle, error)

	// GetByStockID returns one vehicle or ErrNotFound.
	GetByStockID(ctx context.Context, stockID int64) (*Vehicle, error)

	// Count returns the total number of catalog entries.
	Count(ctx context.Context) (int64, error)
}
