// Package mapper suggests and validates the mapping from statement column
// headers to canonical transaction fields.
package mapper

import (
	"errors"
	"fmt"
	"strings"
)

// Field is a canonical transaction field a statement column can map to.
type Field string

const (
	FieldDate        Field = "date"
	FieldDescription Field = "description"
	FieldAmount      Field = "amount"
	FieldMerchant    Field = "merchant"
	FieldAccount     Field = "account"
	FieldCategory    Field = "category"
)

// ErrMappingIncomplete is returned when a required field has no column.
var ErrMappingIncomplete = errors.New("column mapping incomplete")

// requiredFields must all resolve before an import can proceed.
var requiredFields = []Field{FieldDate, FieldDescription, FieldAmount}

// fieldOrder fixes the priority in which fields claim headers. Earlier
// fields win contested headers, e.g. a lone "merchant" column maps to
// description before the merchant field gets a chance.
var fieldOrder = []Field{
	FieldDate,
	FieldDescription,
	FieldAmount,
	FieldMerchant,
	FieldAccount,
	FieldCategory,
}

// fieldPatterns are matched as substrings against lowercased headers.
var fieldPatterns = map[Field][]string{
	FieldDate: {
		"date", "transaction_date", "txn_date", "posting_date",
		"value_date", "trans_date", "dt", "datetime",
	},
	FieldDescription: {
		"description", "merchant", "narration", "details", "particulars",
		"party", "payee", "memo", "reference", "ref", "remark", "note",
	},
	FieldAmount: {
		"amount", "value", "debit", "credit", "transaction_amount",
		"txn_amount", "amt", "sum", "total", "withdrawal", "deposit",
	},
	FieldMerchant: {
		"merchant", "vendor", "shop", "store", "supplier", "party_name",
		"merchant_name", "brand", "company", "business",
	},
	FieldAccount: {
		"account", "account_no", "account_number", "acc_no", "acc_number",
		"bank_account", "account_name", "acct",
	},
	FieldCategory: {
		"category", "type", "class", "group", "tag", "classification",
		"expense_type", "income_type", "cat",
	},
}

// Mapping associates canonical fields with the statement's header names.
type Mapping map[Field]string

// Suggest auto-detects a column mapping from the header row. Each header is
// claimed by at most one field; fields claim in fixed priority order, and
// within a field the first header in table order matching any pattern wins.
func Suggest(headers []string) Mapping {
	m := make(Mapping, len(fieldOrder))
	claimed := make(map[string]bool, len(headers))

	for _, field := range fieldOrder {
		header := matchHeader(headers, fieldPatterns[field], claimed)
		if header == "" {
			continue
		}
		m[field] = header
		claimed[header] = true
	}
	return m
}

// matchHeader finds the first unclaimed header, in table order, whose
// lowercased form contains any of the field's patterns.
func matchHeader(headers []string, patterns []string, claimed map[string]bool) string {
	for _, header := range headers {
		if claimed[header] {
			continue
		}
		h := strings.ToLower(strings.TrimSpace(header))
		if h == "" {
			continue
		}
		for _, pattern := range patterns {
			if strings.Contains(h, pattern) {
				return header
			}
		}
	}
	return ""
}

// Validate checks that the mapping resolves every required field to a
// header actually present in the table.
func (m Mapping) Validate(headers []string) error {
	present := make(map[string]bool, len(headers))
	for _, h := range headers {
		present[strings.ToLower(strings.TrimSpace(h))] = true
	}

	var missing []string
	for _, field := range requiredFields {
		header, ok := m[field]
		if !ok || !present[strings.ToLower(strings.TrimSpace(header))] {
			missing = append(missing, string(field))
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrMappingIncomplete, strings.Join(missing, ", "))
	}
	return nil
}

// Header returns the header mapped to the field, or "" when unmapped.
func (m Mapping) Header(f Field) string {
	return m[f]
}
