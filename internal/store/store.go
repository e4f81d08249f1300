// Package store defines the persistence contract for the statement import
// pipeline. The core is agnostic to the backing engine: implementations exist
// for Postgres, an Excel workbook, and an in-process map.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CategoryType classifies a category as expense, income, or investment.
type CategoryType string

const (
	CategoryExpense    CategoryType = "expense"
	CategoryIncome     CategoryType = "income"
	CategoryInvestment CategoryType = "investment"
)

// TransactionSource records how a transaction entered the system.
type TransactionSource string

const (
	SourceManual   TransactionSource = "manual"
	SourceImported TransactionSource = "imported"
)

// ErrTxClosed is returned when an operation is attempted on a transaction
// that has already been committed or rolled back.
var ErrTxClosed = errors.New("store: transaction already closed")

// Category is a shared many-to-one reference for transactions. Names are
// unique per owner at creation time; resolution is look-up-or-create.
type Category struct {
	ID        uuid.UUID
	OwnerID   uuid.UUID
	Name      string
	Type      CategoryType
	CreatedAt time.Time
}

// Tag is a free-form label attached to transactions during import edits.
type Tag struct {
	ID        uuid.UUID
	Label     string
	CreatedAt time.Time
}

// Transaction is the persisted ledger entry. Records are never physically
// deleted; the Deleted flag marks them as removed.
type Transaction struct {
	ID          uuid.UUID
	OwnerID     uuid.UUID
	Date        time.Time
	Amount      decimal.Decimal // positive = inflow, negative = outflow
	Description string
	Merchant    string
	AccountName string
	CategoryID  *uuid.UUID
	Source      TransactionSource
	Edited      bool
	Deleted     bool
	CreatedAt   time.Time
}

// RecentFilter narrows a transaction lookup to a date window and an amount
// window for one owner. Both windows are inclusive.
type RecentFilter struct {
	OwnerID   uuid.UUID
	DateFrom  time.Time
	DateTo    time.Time
	AmountMin decimal.Decimal
	AmountMax decimal.Decimal
}

// Tx is a single storage transaction. Rows staged through it become visible
// to queries on the same Tx but are durable only after Commit.
type Tx interface {
	// FindCategoryByName returns the category with the given name for the
	// owner, or (nil, nil) when absent. Matching is case-insensitive.
	FindCategoryByName(ctx context.Context, ownerID uuid.UUID, name string) (*Category, error)
	CreateCategory(ctx context.Context, c *Category) error
	ListCategoryNames(ctx context.Context, ownerID uuid.UUID) ([]string, error)

	// FindTagByLabel returns the tag with the given label, or (nil, nil).
	FindTagByLabel(ctx context.Context, label string) (*Tag, error)
	CreateTag(ctx context.Context, t *Tag) error

	// FindRecentTransactions returns non-deleted transactions matching the
	// filter, including rows staged earlier on this Tx.
	FindRecentTransactions(ctx context.Context, f RecentFilter) ([]Transaction, error)
	StageTransaction(ctx context.Context, t *Transaction) error

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Store opens storage transactions.
type Store interface {
	Begin(ctx context.Context) (Tx, error)
}
