package reader

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"
)

// readCSV parses CSV bytes into a table. The first record is taken as the
// header row. Encoding is normalized up front (BOM strip, Latin-1 fallback)
// and the delimiter is detected from the header line.
func readCSV(data []byte) (*Table, error) {
	data = normalizeCSVBytes(data)
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, ErrEmptyFile
	}

	r := csv.NewReader(bytes.NewReader(data))
	r.Comma = detectDelimiter(firstLine(data))
	r.LazyQuotes = true
	r.TrimLeadingSpace = true
	r.FieldsPerRecord = -1

	headers, err := r.Read()
	if err == io.EOF {
		return nil, ErrEmptyFile
	}
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	for i, h := range headers {
		headers[i] = strings.TrimSpace(h)
	}

	var rows [][]string
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv row: %w", err)
		}
		if isBlankRecord(record) {
			continue
		}
		rows = append(rows, record)
	}

	if len(rows) == 0 {
		return nil, ErrEmptyFile
	}
	return NewTable(headers, rows), nil
}

// normalizeCSVBytes strips a UTF-8 BOM and re-encodes Latin-1 input so the
// csv reader always sees valid UTF-8.
func normalizeCSVBytes(data []byte) []byte {
	data = stripUTF8BOM(data)
	if utf8.Valid(data) {
		return data
	}
	return decodeLatin1(data)
}

func stripUTF8BOM(data []byte) []byte {
	if len(data) >= 3 && data[0] == 0xEF && data[1] == 0xBB && data[2] == 0xBF {
		return data[3:]
	}
	return data
}

func decodeLatin1(data []byte) []byte {
	runes := make([]rune, len(data))
	for i, b := range data {
		runes[i] = rune(b)
	}
	return []byte(string(runes))
}

func firstLine(data []byte) string {
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		data = data[:i]
	}
	return strings.TrimRight(string(data), "\r")
}

// detectDelimiter picks the delimiter that occurs most often in the header
// line. Comma wins ties because it is checked after the rarer candidates.
func detectDelimiter(line string) rune {
	best := ','
	bestCount := 0
	for _, d := range []rune{';', '\t', '|', ','} {
		if count := strings.Count(line, string(d)); count > bestCount {
			bestCount = count
			best = d
		}
	}
	return best
}

func isBlankRecord(record []string) bool {
	for _, cell := range record {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
