// Package table reads and writes CSV as a header and string rows.
//
// Cell text is kept as read; no value conversion takes place.
package table

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
)

var (
	ErrEmpty        = errors.New("csv has no header")
	ErrMalformed    = errors.New("malformed csv")
	ErrNoSuchColumn = errors.New("no such column")
)

type Table struct {
	header []string
	rows   [][]string
}

// New creates a Table. Every row should have as many cells as header.
func New(header []string, rows [][]string) (*Table, error) {
	for i, r := range rows {
		if len(r) != len(header) {
			return nil, fmt.Errorf(
				"%w: row %d has %d fields, header has %d",
				ErrMalformed, i, len(r), len(header),
			)
		}
	}
	return &Table{header: header, rows: rows}, nil
}

// Read parses CSV from r. The first record is the header.
//
// # Returns
//
// - *Table
//
// - error: ErrEmpty if r has no record at all,
// ErrMalformed if a record is broken or has different number of fields from the header.
func Read(r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = 0

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrEmpty
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}

	rows := [][]string{}
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
		}
		rows = append(rows, rec)
	}
	return &Table{header: header, rows: rows}, nil
}

// ReadFile parses the CSV file at path.
func ReadFile(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Read(f)
}

func (t *Table) Header() []string {
	return append([]string{}, t.header...)
}

// Len is the number of rows, not counting the header.
func (t *Table) Len() int {
	return len(t.rows)
}

func (t *Table) Row(i int) []string {
	return append([]string{}, t.rows[i]...)
}

// Column returns cells of the column in row order.
func (t *Table) Column(name string) ([]string, error) {
	idx := -1
	for i, h := range t.header {
		if h == name {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, fmt.Errorf("%w: %q", ErrNoSuchColumn, name)
	}

	col := make([]string, len(t.rows))
	for i, r := range t.rows {
		col[i] = r[idx]
	}
	return col, nil
}

// Take creates a Table having the rows at indices, in the given order.
//
// Rows are shared with t.
func (t *Table) Take(indices []int) *Table {
	rows := make([][]string, len(indices))
	for i, idx := range indices {
		rows[i] = t.rows[idx]
	}
	return &Table{header: t.header, rows: rows}
}

// Write serializes the header and rows as CSV.
func (t *Table) Write(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.header); err != nil {
		return err
	}
	if err := cw.WriteAll(t.rows); err != nil {
		return err
	}
	return cw.Error()
}
