// Package tabular defines the external collaborator the dynamic graph
// builder reads entity sources from, and supplies its one concrete
// implementation. Per spec §6, the core treats the reader as a black box
// exposing only an iterator over {column -> cell string} records and the
// ordered column names; nothing about file format, buffering, or streaming
// strategy leaks into the builder.
package tabular

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
)

// Record is one row: column name to raw cell text. Empty cells are present
// in the map with an empty string, not absent — "missing" (spec §4.3's
// MissingField) means the column itself is not in Columns(), not that a
// particular row left it blank.
type Record map[string]string

// Source is the external collaborator interface. Implementations open a
// path, expose its ordered column names, and yield records one at a time.
type Source interface {
	// Open reads the full source at path and returns its records, in file
	// row order. The core fully reads and closes the underlying handle
	// before returning (spec §5: "no file handle outlives loading").
	Open(path string) ([]Record, error)
	// Columns returns the column names in header order, valid only after
	// a successful Open.
	Columns() []string
}

// CSVSource reads delimiter-separated tabular files with a header row.
// Delimiter defaults to ',' (CSV); set it to '\t' for TSV sources, matching
// the schema's optional source.format field (spec §6).
type CSVSource struct {
	Delimiter rune
	columns   []string
}

// NewCSVSource returns a comma-delimited Source.
func NewCSVSource() *CSVSource {
	return &CSVSource{Delimiter: ','}
}

// NewTSVSource returns a tab-delimited Source.
func NewTSVSource() *CSVSource {
	return &CSVSource{Delimiter: '\t'}
}

func (s *CSVSource) Open(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	if s.Delimiter != 0 {
		r.Comma = s.Delimiter
	}
	r.FieldsPerRecord = -1 // tolerate ragged rows; missing trailing cells become ""

	header, err := r.Read()
	if err != nil {
		if err == io.EOF {
			return nil, fmt.Errorf("%s: empty file, expected a header row", path)
		}
		return nil, fmt.Errorf("%s: reading header: %w", path, err)
	}
	s.columns = header

	var records []Record
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		rec := make(Record, len(header))
		for i, col := range header {
			if i < len(row) {
				rec[col] = row[i]
			} else {
				rec[col] = ""
			}
		}
		records = append(records, rec)
	}
	return records, nil
}

func (s *CSVSource) Columns() []string {
	out := make([]string, len(s.columns))
	copy(out, s.columns)
	return out
}

// ForFormat resolves a schema source.format string to a Source
// implementation. Empty/"csv" defaults to comma-delimited.
func ForFormat(format string) (Source, error) {
	switch format {
	case "", "csv":
		return NewCSVSource(), nil
	case "tsv":
		return NewTSVSource(), nil
	default:
		return nil, fmt.Errorf("unsupported source format: %q", format)
	}
}
