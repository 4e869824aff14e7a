package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"

	"github.com/yokharian/catalog-engine/internal/normalize"
)

// CSVSource reads vehicle rows from a CSV stream. The first record is the
// header; header names are normalized so "Stock_ID", "stock_id" and
// " STOCK_ID " all address the same column. Line numbers count records, with
// the header as line 1, matching how feed suppliers reference their files.
type CSVSource struct {
	name    string
	reader  *csv.Reader
	headers []string
	line    int
}

// NewCSVSource wraps r as a row source named name. The header record is read
// eagerly; an empty stream yields a source that is exhausted immediately.
func NewCSVSource(r io.Reader, name string) (*CSVSource, error) {
	cr := csv.NewReader(r)
	// Column count is validated against the header per record, so record
	// mismatches surface as malformed rows instead of read errors.
	cr.FieldsPerRecord = -1

	src := &CSVSource{name: name, reader: cr, line: 1}

	headers, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return src, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}

	src.headers = make([]string, len(headers))
	for i, h := range headers {
		src.headers[i] = normalize.Text(h)
	}
	return src, nil
}

// Name identifies the source.
func (s *CSVSource) Name() string { return s.name }

// Next returns the next record. Structurally broken records (bad quoting,
// column count mismatch) come back as malformed rows rather than errors so
// the caller can account for them and keep reading. Only a failure of the
// underlying reader is returned as an error.
func (s *CSVSource) Next() (RawRow, error) {
	if s.headers == nil {
		return RawRow{}, io.EOF
	}

	record, err := s.reader.Read()
	if errors.Is(err, io.EOF) {
		return RawRow{}, io.EOF
	}
	s.line++
	if err != nil {
		var parseErr *csv.ParseError
		if errors.As(err, &parseErr) {
			return RawRow{Line: s.line, Malformed: fmt.Sprintf("malformed csv record: %v", parseErr.Err)}, nil
		}
		return RawRow{}, fmt.Errorf("read csv record: %w", err)
	}

	if len(record) != len(s.headers) {
		return RawRow{
			Line:      s.line,
			Malformed: fmt.Sprintf("expected %d columns, got %d", len(s.headers), len(record)),
		}, nil
	}

	fields := make(map[string]string, len(s.headers))
	for i, header := range s.headers {
		if header == "" {
			continue
		}
		// Duplicate headers keep the last occurrence.
		fields[header] = record[i]
	}
	return RawRow{Line: s.line, Fields: fields}, nil
}
