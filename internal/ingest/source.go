package ingest

import "io"

// RawRow is one record pulled from a row source. Fields is keyed by the
// normalized header name. A non-empty Malformed marks a record that could not
// be mapped onto the header and carries the reason; such rows have no fields.
type RawRow struct {
	Line      int
	Fields    map[string]string
	Malformed string
}

// RowSource yields raw rows one at a time. Next returns io.EOF after the last
// row. Sources are not safe for concurrent use.
type RowSource interface {
	// Name identifies the source in logs and audit records.
	Name() string
	Next() (RawRow, error)
}

// SliceSource replays pre-built rows, for programmatic ingestion and tests.
type SliceSource struct {
	name string
	rows []RawRow
	pos  int
}

// NewSliceSource creates a source that yields rows in order.
func NewSliceSource(name string, rows []RawRow) *SliceSource {
	return &SliceSource{name: name, rows: rows}
}

// Name identifies the source.
func (s *SliceSource) Name() string { return s.name }

// Next returns the next row or io.EOF.
func (s *SliceSource) Next() (RawRow, error) {
	if s.pos >= len(s.rows) {
		return RawRow{}, io.EOF
	}
	row := s.rows[s.pos]
	s.pos++
	return row, nil
}
