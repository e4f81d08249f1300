// Package postgres implements the store contract on PostgreSQL via pgx.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/paisaledger/paisaledger/internal/store"
)

// DB is the subset of pgxpool.Pool the store needs. pgxmock satisfies it
// in tests.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Store is a PostgreSQL-backed store.
type Store struct {
	db DB
}

// New creates a store over an open pool.
func New(db DB) *Store {
	return &Store{db: db}
}

// Begin opens a database transaction. Rows staged on it are visible to
// queries on the same transaction, which the duplicate detector relies on.
func (s *Store) Begin(ctx context.Context) (store.Tx, error) {
	pgtx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	return &tx{pgtx: pgtx}, nil
}

type tx struct {
	pgtx   pgx.Tx
	closed bool
}

const findCategorySQL = `
SELECT id, owner_id, name, type, created_at
FROM categories
WHERE owner_id = $1 AND lower(name) = lower($2)`

func (t *tx) FindCategoryByName(ctx context.Context, ownerID uuid.UUID, name string) (*store.Category, error) {
	if t.closed {
		return nil, store.ErrTxClosed
	}
	var c store.Category
	err := t.pgtx.QueryRow(ctx, findCategorySQL, ownerID, name).
		Scan(&c.ID, &c.OwnerID, &c.Name, &c.Type, &c.CreatedAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find category: %w", err)
	}
	return &c, nil
}

const createCategorySQL = `
INSERT INTO categories (id, owner_id, name, type, created_at)
VALUES ($1, $2, $3, $4, $5)`

func (t *tx) CreateCategory(ctx context.Context, c *store.Category) error {
	if t.closed {
		return store.ErrTxClosed
	}
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	if _, err := t.pgtx.Exec(ctx, createCategorySQL, c.ID, c.OwnerID, c.Name, c.Type, c.CreatedAt); err != nil {
		return fmt.Errorf("create category: %w", err)
	}
	return nil
}

const listCategoryNamesSQL = `
SELECT name FROM categories WHERE owner_id = $1 ORDER BY name`

func (t *tx) ListCategoryNames(ctx context.Context, ownerID uuid.UUID) ([]string, error) {
	if t.closed {
		return nil, store.ErrTxClosed
	}
	rows, err := t.pgtx.Query(ctx, listCategoryNamesSQL, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan category name: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

const findTagSQL = `
SELECT id, label, created_at FROM tags WHERE lower(label) = lower($1)`

func (t *tx) FindTagByLabel(ctx context.Context, label string) (*store.Tag, error) {
	if t.closed {
		return nil, store.ErrTxClosed
	}
	var tag store.Tag
	err := t.pgtx.QueryRow(ctx, findTagSQL, label).Scan(&tag.ID, &tag.Label, &tag.CreatedAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find tag: %w", err)
	}
	return &tag, nil
}

const createTagSQL = `
INSERT INTO tags (id, label, created_at) VALUES ($1, $2, $3)`

func (t *tx) CreateTag(ctx context.Context, tag *store.Tag) error {
	if t.closed {
		return store.ErrTxClosed
	}
	if tag.ID == uuid.Nil {
		tag.ID = uuid.New()
	}
	if tag.CreatedAt.IsZero() {
		tag.CreatedAt = time.Now().UTC()
	}
	if _, err := t.pgtx.Exec(ctx, createTagSQL, tag.ID, tag.Label, tag.CreatedAt); err != nil {
		return fmt.Errorf("create tag: %w", err)
	}
	return nil
}

// Amounts are selected as text so decimal values survive the round trip
// without float conversion.
const findRecentSQL = `
SELECT id, owner_id, date, amount::text, description, merchant, account_name,
       category_id, source, edited, deleted, created_at
FROM transactions
WHERE owner_id = $1
  AND deleted = false
  AND date BETWEEN $2 AND $3
  AND amount BETWEEN $4::numeric AND $5::numeric`

func (t *tx) FindRecentTransactions(ctx context.Context, f store.RecentFilter) ([]store.Transaction, error) {
	if t.closed {
		return nil, store.ErrTxClosed
	}
	rows, err := t.pgtx.Query(ctx, findRecentSQL,
		f.OwnerID, f.DateFrom, f.DateTo, f.AmountMin.String(), f.AmountMax.String())
	if err != nil {
		return nil, fmt.Errorf("find recent transactions: %w", err)
	}
	defer rows.Close()

	var out []store.Transaction
	for rows.Next() {
		var txn store.Transaction
		var amount string
		err := rows.Scan(&txn.ID, &txn.OwnerID, &txn.Date, &amount, &txn.Description,
			&txn.Merchant, &txn.AccountName, &txn.CategoryID, &txn.Source,
			&txn.Edited, &txn.Deleted, &txn.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		txn.Amount, err = decimal.NewFromString(amount)
		if err != nil {
			return nil, fmt.Errorf("parse stored amount %q: %w", amount, err)
		}
		out = append(out, txn)
	}
	return out, rows.Err()
}

const stageTransactionSQL = `
INSERT INTO transactions
  (id, owner_id, date, amount, description, merchant, account_name,
   category_id, source, edited, deleted, created_at)
VALUES ($1, $2, $3, $4::numeric, $5, $6, $7, $8, $9, $10, $11, $12)`

func (t *tx) StageTransaction(ctx context.Context, txn *store.Transaction) error {
	if t.closed {
		return store.ErrTxClosed
	}
	if txn.ID == uuid.Nil {
		txn.ID = uuid.New()
	}
	if txn.CreatedAt.IsZero() {
		txn.CreatedAt = time.Now().UTC()
	}
	_, err := t.pgtx.Exec(ctx, stageTransactionSQL,
		txn.ID, txn.OwnerID, txn.Date, txn.Amount.String(), txn.Description,
		txn.Merchant, txn.AccountName, txn.CategoryID, txn.Source,
		txn.Edited, txn.Deleted, txn.CreatedAt)
	if err != nil {
		return fmt.Errorf("stage transaction: %w", err)
	}
	return nil
}

func (t *tx) Commit(ctx context.Context) error {
	if t.closed {
		return store.ErrTxClosed
	}
	t.closed = true
	if err := t.pgtx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (t *tx) Rollback(ctx context.Context) error {
	if t.closed {
		return nil
	}
	t.closed = true
	if err := t.pgtx.Rollback(ctx); err != nil && err != pgx.ErrTxClosed {
		return fmt.Errorf("rollback: %w", err)
	}
	return nil
}
