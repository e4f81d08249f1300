// Package money formats monetary amounts for display. Indian Rupee amounts
// use the Indian digit grouping system (lakh and crore), everything else
// falls back to the currency's standard rendering.
package money

import (
	"strings"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

const (
	INR = "INR"
	USD = "USD"
)

// FromDecimal converts a decimal amount into minor units for the currency.
func FromDecimal(amount decimal.Decimal, currencyCode string) *money.Money {
	currency := money.GetCurrency(currencyCode)
	if currency == nil {
		currency = money.GetCurrency(USD)
	}
	minor := amount.Mul(decimal.New(1, int32(currency.Fraction))).Round(0).IntPart()
	return money.New(minor, currency.Code)
}

// Format renders an amount with its currency symbol. INR gets Indian digit
// grouping; other currencies use go-money's locale rules.
func Format(amount decimal.Decimal, currencyCode string) string {
	if strings.EqualFold(currencyCode, INR) {
		return FormatINR(amount)
	}
	return FromDecimal(amount, currencyCode).Display()
}

// FormatINR renders an amount as Indian Rupees with lakh/crore grouping:
// the last three integer digits form one group, every two digits after
// that form another, e.g. 12345678.50 becomes ₹1,23,45,678.50.
func FormatINR(amount decimal.Decimal) string {
	neg := amount.IsNegative()
	fixed := amount.Abs().StringFixed(2)

	intPart, fracPart, _ := strings.Cut(fixed, ".")
	grouped := groupIndian(intPart)

	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	b.WriteString("₹")
	b.WriteString(grouped)
	b.WriteByte('.')
	b.WriteString(fracPart)
	return b.String()
}

// groupIndian inserts commas per the Indian numbering system.
func groupIndian(digits string) string {
	if len(digits) <= 3 {
		return digits
	}

	head := digits[:len(digits)-3]
	tail := digits[len(digits)-3:]

	var groups []string
	for len(head) > 2 {
		groups = append([]string{head[len(head)-2:]}, groups...)
		head = head[:len(head)-2]
	}
	if head != "" {
		groups = append([]string{head}, groups...)
	}
	groups = append(groups, tail)
	return strings.Join(groups, ",")
}
