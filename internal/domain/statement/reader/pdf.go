package reader

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// cellGap is the horizontal distance, in PDF points, that separates two
// text fragments into different table cells.
const cellGap = 12.0

// readPDF extracts tabular data from the first page of a text-based PDF.
// Statement PDFs lay out each transaction as one visual line, so text
// fragments are grouped by line and split into cells on horizontal gaps.
// When no table emerges the first page's plain text is returned instead.
func readPDF(data []byte) (res *Result, err error) {
	// The pdf package panics on some malformed files.
	defer func() {
		if r := recover(); r != nil {
			res, err = nil, fmt.Errorf("pdf extraction failed: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	if r.NumPage() < 1 {
		return nil, ErrNoContent
	}

	page := r.Page(1)
	if page.V.IsNull() {
		return nil, ErrNoContent
	}

	rows, err := page.GetTextByRow()
	if err != nil {
		return nil, fmt.Errorf("extract pdf text: %w", err)
	}

	lines := make([][]string, 0, len(rows))
	var plain strings.Builder
	for _, row := range rows {
		cells := splitRowIntoCells(row.Content)
		if len(cells) == 0 {
			continue
		}
		lines = append(lines, cells)
		plain.WriteString(strings.Join(cells, " "))
		plain.WriteByte('\n')
	}

	if t := tableFromLines(lines); t != nil {
		return &Result{Table: t}, nil
	}

	text := strings.TrimSpace(plain.String())
	if text == "" {
		return nil, ErrNoContent
	}
	return &Result{Text: text}, nil
}

// splitRowIntoCells merges horizontally adjacent text fragments and starts
// a new cell whenever the gap to the previous fragment exceeds cellGap.
// Fragments arrive sorted by X position.
func splitRowIntoCells(texts []pdf.Text) []string {
	var cells []string
	var current strings.Builder
	prevEnd := 0.0

	flush := func() {
		if s := strings.TrimSpace(current.String()); s != "" {
			cells = append(cells, s)
		}
		current.Reset()
	}

	for i, t := range texts {
		if t.S == "" {
			continue
		}
		if i > 0 && t.X-prevEnd > cellGap {
			flush()
		}
		current.WriteString(t.S)
		prevEnd = t.X + t.W
	}
	flush()
	return cells
}

// tableFromLines looks for a run of lines sharing the modal column count.
// The first such line becomes the header. Statements need at least two
// columns and one data row to count as a table.
func tableFromLines(lines [][]string) *Table {
	counts := make(map[int]int)
	for _, line := range lines {
		counts[len(line)]++
	}

	modal, modalFreq := 0, 0
	for width, freq := range counts {
		if width >= 2 && freq > modalFreq {
			modal, modalFreq = width, freq
		}
	}
	if modal < 2 || modalFreq < 2 {
		return nil
	}

	var headers []string
	var rows [][]string
	for _, line := range lines {
		if len(line) != modal {
			continue
		}
		if headers == nil {
			headers = line
			continue
		}
		rows = append(rows, line)
	}
	if headers == nil || len(rows) == 0 {
		return nil
	}
	return NewTable(headers, rows)
}
