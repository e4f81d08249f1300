// Package dedup flags statement rows that probably duplicate an already
// stored transaction.
package dedup

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/paisaledger/paisaledger/internal/store"
)

// prefixLen is how many leading characters of the description take part in
// the match. Shorter descriptions never match.
const prefixLen = 10

var (
	// amountTolerance is the relative amount tolerance, 1% of the stored
	// record's amount, inclusive.
	amountTolerance = decimal.NewFromFloat(0.01)
	// windowTolerance widens the candidate query so every record the
	// precise check could accept is fetched.
	windowTolerance = decimal.NewFromFloat(0.02)
)

// Detector matches candidate rows against recent transactions. Queries run
// on the caller's storage transaction so rows staged earlier in the same
// batch also count as duplicates.
type Detector struct{}

// New creates a detector.
func New() *Detector {
	return &Detector{}
}

// IsProbableDuplicate reports whether a transaction with the given date,
// amount, and description probably already exists for the owner. A match
// needs all three: date within one calendar day, absolute amount within 1%
// of the stored amount, and an equal lowercased 10-character description
// prefix (both descriptions longer than 10 characters).
func (d *Detector) IsProbableDuplicate(ctx context.Context, tx store.Tx, ownerID uuid.UUID, date time.Time, amount decimal.Decimal, description string) (bool, error) {
	prefix := descriptionPrefix(description)
	if prefix == "" {
		return false, nil
	}

	// The window is symmetric around zero: stored amounts may carry either
	// sign, the precise check below compares absolute values.
	abs := amount.Abs()
	bound := abs.Add(abs.Mul(windowTolerance))
	candidates, err := tx.FindRecentTransactions(ctx, store.RecentFilter{
		OwnerID:   ownerID,
		DateFrom:  date.AddDate(0, 0, -1),
		DateTo:    date.AddDate(0, 0, 1),
		AmountMin: bound.Neg(),
		AmountMax: bound,
	})
	if err != nil {
		return false, fmt.Errorf("find duplicate candidates: %w", err)
	}

	for _, cand := range candidates {
		if !amountsClose(abs, cand.Amount.Abs()) {
			continue
		}
		if descriptionPrefix(cand.Description) == prefix {
			return true, nil
		}
	}
	return false, nil
}

// amountsClose reports whether the candidate amount is within 1% of the
// stored amount, inclusive.
func amountsClose(candidate, existing decimal.Decimal) bool {
	diff := candidate.Sub(existing).Abs()
	return diff.LessThanOrEqual(existing.Mul(amountTolerance))
}

// descriptionPrefix returns the lowercased 10-rune prefix, or "" when the
// description is too short to match reliably.
func descriptionPrefix(s string) string {
	runes := []rune(strings.ToLower(strings.TrimSpace(s)))
	if len(runes) <= prefixLen {
		return ""
	}
	return string(runes[:prefixLen])
}
