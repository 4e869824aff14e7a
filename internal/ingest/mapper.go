package ingest

import (
	"fmt"
	"math"
	"strings"

	"github.com/yokharian/catalog-engine/internal/normalize"
	"github.com/yokharian/catalog-engine/internal/storage"
)

// FieldDegradation records a soft field failure: the row was kept but the
// field fell back to its default.
type FieldDegradation struct {
	Field  string `json:"field"`
	Value  string `json:"value"`
	Reason string `json:"reason"`
}

// RowError marks a row that cannot be ingested.
type RowError struct {
	Line   int
	Field  string
	Reason string
}

func (e *RowError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("row %d: %s: %s", e.Line, e.Field, e.Reason)
	}
	return fmt.Sprintf("row %d: %s", e.Line, e.Reason)
}

// Detail is the failure description without the line prefix, for records that
// carry the line separately.
func (e *RowError) Detail() string {
	if e.Field != "" {
		return e.Field + ": " + e.Reason
	}
	return e.Reason
}

// MapRow converts a raw record into a catalog vehicle.
//
// Identity fields must be usable or the row is rejected: stock_id, year and
// price have to parse, make and model have to be non-empty after
// normalization, and the km column has to exist. Soft fields degrade instead
// of rejecting: a present but unparseable km falls back to 0 and unusable
// dimensions are dropped, each recorded as a FieldDegradation. Feature flags
// follow the truthy token set and are only carried for columns the feed has.
func MapRow(row RawRow) (storage.Vehicle, []FieldDegradation, *RowError) {
	if row.Malformed != "" {
		return storage.Vehicle{}, nil, &RowError{Line: row.Line, Reason: row.Malformed}
	}

	fail := func(field, reason string) (storage.Vehicle, []FieldDegradation, *RowError) {
		return storage.Vehicle{}, nil, &RowError{Line: row.Line, Field: field, Reason: reason}
	}

	stockID, ok := normalize.TryInt(row.Fields["stock_id"])
	if !ok {
		return fail("stock_id", "missing or non-numeric")
	}

	mk := normalize.Text(row.Fields["make"])
	if mk == "" {
		return fail("make", "missing")
	}
	model := normalize.Text(row.Fields["model"])
	if model == "" {
		return fail("model", "missing")
	}

	year, ok := normalize.TryInt(row.Fields["year"])
	if !ok {
		return fail("year", "missing or non-numeric")
	}

	price, ok := normalize.TryFloat(row.Fields["price"])
	if !ok || math.IsNaN(price) || math.IsInf(price, 0) {
		return fail("price", "missing or non-numeric")
	}

	var degradations []FieldDegradation

	kmRaw, kmPresent := row.Fields["km"]
	if !kmPresent {
		return fail("km", "column missing")
	}
	km, ok := normalize.TryInt(kmRaw)
	if !ok {
		km = 0
		degradations = append(degradations, FieldDegradation{
			Field:  "km",
			Value:  kmRaw,
			Reason: "non-numeric, defaulted to 0",
		})
	}

	features := make(map[string]bool)
	for _, name := range storage.FeatureColumns {
		raw, present := row.Fields[name]
		if !present {
			continue
		}
		features[name] = normalize.Bool(raw)
	}

	var dims *normalize.Dimensions
	if raw, present := row.Fields["dims"]; present && strings.TrimSpace(raw) != "" {
		if d, parsed := normalize.ParseDimensions(raw); parsed {
			dims = &d
		} else {
			degradations = append(degradations, FieldDegradation{
				Field:  "dims",
				Value:  raw,
				Reason: "unparseable dimensions, dropped",
			})
		}
	}

	rawRow := make(map[string]string, len(row.Fields))
	for k, v := range row.Fields {
		rawRow[k] = v
	}

	vehicle := storage.Vehicle{
		StockID:  int64(stockID),
		Make:     mk,
		Model:    model,
		Year:     year,
		Version:  normalize.Text(row.Fields["version"]),
		KM:       km,
		Price:    price,
		Features: features,
		Dims:     dims,
		RawRow:   rawRow,
	}
	return vehicle, degradations, nil
}
