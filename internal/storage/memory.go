package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store used by tests and the demo binary. It
// mirrors the SQL store's observable behavior, including stock-id return
// order and fingerprint-based unchanged detection.
type MemoryStore struct {
	mu   sync.RWMutex
	byID map[int64]Vehicle
}

// NewMemoryStore creates an empty in-memory catalog.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byID: make(map[int64]Vehicle)}
}

// UpsertBatch replaces or inserts every vehicle in the batch. The write is
// atomic under the store lock; context cancellation is honored before any
// mutation.
func (m *MemoryStore) UpsertBatch(ctx context.Context, vehicles []Vehicle) (UpsertResult, error) {
	if err := ctx.Err(); err != nil {
		return UpsertResult{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var res UpsertResult
	for i := range vehicles {
		v := vehicles[i]
		if v.Fingerprint == "" {
			v.Fingerprint = v.ComputeFingerprint()
		}
		if existing, ok := m.byID[v.StockID]; ok && existing.Fingerprint == v.Fingerprint {
			res.Unchanged++
			continue
		}
		v.IngestedAt = time.Now()
		m.byID[v.StockID] = cloneVehicle(v)
		res.Written++
	}
	return res, nil
}

// DistinctValues lists distinct makes or models, sorted ascending.
func (m *MemoryStore) DistinctValues(ctx context.Context, field DistinctField, scopeMake string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	seen := make(map[string]struct{})
	for _, v := range m.byID {
		var value string
		switch field {
		case DistinctMake:
			value = v.Make
		case DistinctModel:
			if scopeMake != "" && v.Make != scopeMake {
				continue
			}
			value = v.Model
		default:
			return nil, fmt.Errorf("unknown distinct field %q", field)
		}
		if value != "" {
			seen[value] = struct{}{}
		}
	}

	values := make([]string, 0, len(seen))
	for v := range seen {
		values = append(values, v)
	}
	sort.Strings(values)
	if len(values) > distinctLimit {
		values = values[:distinctLimit]
	}
	return values, nil
}

// Query returns matching vehicles ordered by stock id ascending.
func (m *MemoryStore) Query(ctx context.Context, f Filter) ([]Vehicle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]int64, 0, len(m.byID))
	for id := range m.byID {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var vehicles []Vehicle
	for _, id := range ids {
		v := m.byID[id]
		if !matchesFilter(&v, f) {
			continue
		}
		vehicles = append(vehicles, cloneVehicle(v))
		if f.Limit > 0 && len(vehicles) >= f.Limit {
			break
		}
	}
	return vehicles, nil
}

// GetByStockID returns one vehicle or ErrNotFound.
func (m *MemoryStore) GetByStockID(ctx context.Context, stockID int64) (*Vehicle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.byID[stockID]
	if !ok {
		return nil, ErrNotFound
	}
	out := cloneVehicle(v)
	return &out, nil
}

// Count returns the number of catalog entries.
func (m *MemoryStore) Count(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.byID)), nil
}

// Ping always succeeds for the in-memory store.
func (m *MemoryStore) Ping(context.Context) error { return nil }

func matchesFilter(v *Vehicle, f Filter) bool {
	if f.Make != nil && v.Make != *f.Make {
		return false
	}
	if f.Model != nil && v.Model != *f.Model {
		return false
	}
	if f.MinYear != nil && v.Year < *f.MinYear {
		return false
	}
	if f.MaxYear != nil && v.Year > *f.MaxYear {
		return false
	}
	if f.MinPrice != nil && v.Price < *f.MinPrice {
		return false
	}
	if f.MaxPrice != nil && v.Price > *f.MaxPrice {
		return false
	}
	if f.MaxKM != nil && v.KM > *f.MaxKM {
		return false
	}
	return true
}

func cloneVehicle(v Vehicle) Vehicle {
	out := v
	if v.Features != nil {
		out.Features = make(map[string]bool, len(v.Features))
		for k, val := range v.Features {
			out.Features[k] = val
		}
	}
	if v.Dims != nil {
		dims := *v.Dims
		out.Dims = &dims
	}
	if v.RawRow != nil {
		out.RawRow = make(map[string]string, len(v.RawRow))
		for k, val := range v.RawRow {
			out.RawRow[k] = val
		}
	}
	return out
}

