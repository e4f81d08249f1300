// Package normalizer converts raw statement cells into typed transaction
// fields: dates across common bank formats, signed decimal amounts, and
// cleaned display text.
package normalizer

import (
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/araddon/dateparse"
	"github.com/shopspring/decimal"

	"github.com/paisaledger/paisaledger/internal/domain/statement/mapper"
	"github.com/paisaledger/paisaledger/internal/domain/statement/reader"
)

// Row is a normalized statement row. A nil Date means the cell could not be
// parsed; a zero Amount means the same for the amount cell. Both sentinels
// are resolved downstream rather than dropping the row here.
type Row struct {
	Date        *time.Time
	Description string
	Merchant    string
	Account     string
	Category    string
	Amount      decimal.Decimal
	Line        int // 1-based data row number in the source file
}

// dateLayouts are tried in fixed order. Day-first formats come before
// month-first ones, matching the Indian bank statements this pipeline
// mostly sees.
var dateLayouts = []string{
	"02/01/2006", // DD/MM/YYYY
	"01/02/2006", // MM/DD/YYYY
	"2006-01-02", // ISO
	"02-01-2006", // DD-MM-YYYY
	"2006/01/02", // YYYY/MM/DD
	"02.01.2006", // DD.MM.YYYY
	"01-02-2006", // MM-DD-YYYY
	"2 Jan 2006",
	"2 January 2006",
}

// ParseDate parses a statement date cell. Explicit layouts are tried first,
// then a permissive fallback. Returns nil when nothing matches.
func ParseDate(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}

	if t, err := dateparse.ParseAny(s); err == nil {
		return &t
	}
	return nil
}

// currencySymbols are stripped before numeric parsing.
var currencySymbols = []string{"₹", "$", "€", "£", "¥"}

// ParseAmount parses a statement amount cell into a signed decimal.
// Currency symbols, commas, and whitespace are stripped; parentheses mean
// negative; a CR/CREDIT marker anywhere in the cell forces a positive
// magnitude and DR/DEBIT a negative one. Unparseable input yields exactly
// zero, which the importer treats as a skip sentinel.
func ParseAmount(s string) decimal.Decimal {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero
	}

	forceSign := 0
	upper := strings.ToUpper(s)
	// CREDIT before CR: CR is a substring of CREDIT.
	switch {
	case strings.Contains(upper, "CREDIT"):
		forceSign, s = 1, stripMarker(s, "CREDIT")
	case strings.Contains(upper, "CR"):
		forceSign, s = 1, stripMarker(s, "CR")
	case strings.Contains(upper, "DEBIT"):
		forceSign, s = -1, stripMarker(s, "DEBIT")
	case strings.Contains(upper, "DR"):
		forceSign, s = -1, stripMarker(s, "DR")
	}

	for _, sym := range currencySymbols {
		s = strings.ReplaceAll(s, sym, "")
	}
	s = strings.ReplaceAll(s, ",", "")
	s = strings.Join(strings.Fields(s), "")

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = s[1 : len(s)-1]
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	if negative {
		d = d.Neg()
	}

	switch forceSign {
	case 1:
		return d.Abs()
	case -1:
		return d.Abs().Neg()
	}
	return d
}

// stripMarker removes the first case-insensitive occurrence of marker.
// Callers have already checked that it is present.
func stripMarker(s, marker string) string {
	i := strings.Index(strings.ToUpper(s), marker)
	return s[:i] + s[i+len(marker):]
}

// CleanText trims, collapses whitespace runs, and title-cases a text cell.
func CleanText(s string) string {
	return titleCase(strings.Join(strings.Fields(s), " "))
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, word := range words {
		r, size := utf8.DecodeRuneInString(word)
		words[i] = string(unicode.ToUpper(r)) + strings.ToLower(word[size:])
	}
	return strings.Join(words, " ")
}

// NormalizeTable converts every table row into a normalized Row, in order.
// Rows are never dropped here; unparseable dates and amounts carry their
// sentinel values through.
func NormalizeTable(t *reader.Table, m mapper.Mapping) []Row {
	rows := make([]Row, 0, len(t.Rows))
	for i, raw := range t.Rows {
		rows = append(rows, Row{
			Date:        ParseDate(t.Cell(raw, m.Header(mapper.FieldDate))),
			Description: CleanText(t.Cell(raw, m.Header(mapper.FieldDescription))),
			Merchant:    CleanText(t.Cell(raw, m.Header(mapper.FieldMerchant))),
			Account:     strings.TrimSpace(t.Cell(raw, m.Header(mapper.FieldAccount))),
			Category:    CleanText(t.Cell(raw, m.Header(mapper.FieldCategory))),
			Amount:      ParseAmount(t.Cell(raw, m.Header(mapper.FieldAmount))),
			Line:        i + 1,
		})
	}
	return rows
}
