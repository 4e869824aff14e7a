// Package storage provides the vehicle catalog persistence layer: the Store
// contract consumed by the ingestion pipeline and the query planner, a SQL
// implementation for postgres and sqlite, and an in-memory implementation.
package storage

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/zeebo/xxh3"

	"github.com/yokharian/catalog-engine/internal/normalize"
)

// FeatureColumns are the optional boolean columns recognized in feed files.
// A column that is present normalizes through the truthy set; a column that is
// absent leaves the feature key unset, which reads as false.
var FeatureColumns = []string{
	"bluetooth",
	"car_play",
	"air_conditioning",
	"power_steering",
	"power_windows",
	"central_locking",
	"alarm",
	"radio",
}

// Vehicle is one catalog entry, keyed by stock id. Make and model are always
// lowercase with diacritics stripped; re-ingesting a stock id replaces the
// whole record.
type Vehicle struct {
	StockID     int64                 `json:"stock_id"`
	Make        string                `json:"make"`
	Model       string                `json:"model"`
	Year        int                   `json:"year"`
	Version     string                `json:"version,omitempty"`
	KM          int                   `json:"km"`
	Price       float64               `json:"price"`
	Features    map[string]bool       `json:"features,omitempty"`
	Dims        *normalize.Dimensions `json:"dims,omitempty"`
	RawRow      map[string]string     `json:"raw_row,omitempty"`
	Fingerprint string                `json:"-"`
	IngestedAt  time.Time             `json:"ingested_at"`
}

// HasFeature reports whether the named feature is present and true. An absent
// key is false.
func (v *Vehicle) HasFeature(name string) bool {
	return v.Features[name]
}

// ComputeFingerprint hashes the normalized content of the vehicle. Two
// vehicles with identical field values produce identical fingerprints, so the
// store can skip rewriting rows that a repeated feed load did not change.
func (v *Vehicle) ComputeFingerprint() string {
	var b strings.Builder
	b.WriteString(strconv.FormatInt(v.StockID, 10))
	b.WriteByte('|')
	b.WriteString(v.Make)
	b.WriteByte('|')
	b.WriteString(v.Model)
	b.WriteByte('|')
	b.WriteString(strconv.Itoa(v.Year))
	b.WriteByte('|')
	b.WriteString(v.Version)
	b.WriteByte('|')
	b.WriteString(strconv.Itoa(v.KM))
	b.WriteByte('|')
	b.WriteString(strconv.FormatFloat(v.Price, 'g', -1, 64))
	b.WriteByte('|')
	for _, name := range sortedFeatureNames(v.Features) {
		b.WriteString(name)
		b.WriteByte('=')
		b.WriteString(strconv.FormatBool(v.Features[name]))
		b.WriteByte(';')
	}
	if v.Dims != nil {
		b.WriteByte('|')
		b.WriteString(strconv.FormatFloat(v.Dims.Length, 'g', -1, 64))
		b.WriteByte('x')
		b.WriteString(strconv.FormatFloat(v.Dims.Width, 'g', -1, 64))
		b.WriteByte('x')
		b.WriteString(strconv.FormatFloat(v.Dims.Height, 'g', -1, 64))
	}
	return strconv.FormatUint(xxh3.HashString(b.String()), 16)
}

func sortedFeatureNames(features map[string]bool) []string {
	if len(features) == 0 {
		return nil
	}
	names := make([]string, 0, len(features))
	for name := range features {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
