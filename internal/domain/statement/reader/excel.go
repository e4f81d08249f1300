package reader

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

// readExcel parses the first sheet of an XLSX/XLS workbook. The first row
// is taken as the header row.
func readExcel(data []byte) (*Table, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrEmptyFile
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheets[0], err)
	}
	if len(rows) < 2 {
		return nil, ErrEmptyFile
	}

	headers := rows[0]
	for i, h := range headers {
		headers[i] = strings.TrimSpace(h)
	}

	var dataRows [][]string
	for _, row := range rows[1:] {
		if isBlankRecord(row) {
			continue
		}
		dataRows = append(dataRows, row)
	}
	if len(dataRows) == 0 {
		return nil, ErrEmptyFile
	}
	return NewTable(headers, dataRows), nil
}
