// Package reader extracts tabular data from uploaded bank statements.
// It supports CSV (with delimiter and encoding detection), XLSX/XLS via
// excelize, and text-based PDF statements.
package reader

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrEmptyFile         = errors.New("file contains no data rows")
	ErrNoContent         = errors.New("no extractable content found")
	ErrUnsupportedFormat = errors.New("unsupported file format")
)

// Table is the raw tabular content of a statement. Rows hold string cells
// positionally aligned with Headers; short rows are tolerated and read as
// empty cells.
type Table struct {
	Headers []string
	Rows    [][]string

	index map[string]int
}

// NewTable builds a table and its header lookup index. Header matching is
// case-insensitive; the first occurrence of a duplicate header wins.
func NewTable(headers []string, rows [][]string) *Table {
	index := make(map[string]int, len(headers))
	for i, h := range headers {
		key := strings.ToLower(strings.TrimSpace(h))
		if _, ok := index[key]; !ok {
			index[key] = i
		}
	}
	return &Table{Headers: headers, Rows: rows, index: index}
}

// Cell returns the trimmed value of the named column in the given row, or
// an empty string when the column is unknown or the row is short.
func (t *Table) Cell(row []string, header string) string {
	idx, ok := t.index[strings.ToLower(strings.TrimSpace(header))]
	if !ok || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

// Result is the outcome of reading a statement file. For PDFs without a
// recognizable table, Table is nil and Text carries the first page's plain
// text so the caller can still show the user something.
type Result struct {
	Table *Table
	Text  string
}

// Read parses file contents according to the file extension. The extension
// may be passed with or without the leading dot, in any case.
func Read(data []byte, ext string) (*Result, error) {
	switch strings.ToLower(strings.TrimPrefix(ext, ".")) {
	case "csv":
		t, err := readCSV(data)
		if err != nil {
			return nil, err
		}
		return &Result{Table: t}, nil
	case "xlsx", "xls":
		t, err := readExcel(data)
		if err != nil {
			return nil, err
		}
		return &Result{Table: t}, nil
	case "pdf":
		return readPDF(data)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
}
