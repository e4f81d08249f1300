// Package workbook implements the store contract on an Excel workbook.
// Each entity lives on its own sheet with a header row. It suits personal
// single-file setups where a database is overkill; writes are buffered per
// transaction and flushed to disk on Commit.
package workbook

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/paisaledger/paisaledger/internal/store"
)

const (
	sheetTransactions = "Transactions"
	sheetCategories   = "Categories"
	sheetTags         = "Tags"

	dateLayout = "2006-01-02"
)

var transactionHeaders = []interface{}{
	"id", "owner_id", "date", "amount", "description", "merchant",
	"account_name", "category_id", "source", "edited", "deleted", "created_at",
}

var categoryHeaders = []interface{}{"id", "owner_id", "name", "type", "created_at"}

var tagHeaders = []interface{}{"id", "label", "created_at"}

// Store is a workbook-backed store. All access is serialized; the workbook
// format has no notion of concurrent writers.
type Store struct {
	mu   sync.Mutex
	path string
	f    *excelize.File
}

// Open loads the workbook at path, creating it with empty sheets when it
// does not exist yet.
func Open(path string) (*Store, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		f := excelize.NewFile()
		for i, sheet := range []string{sheetTransactions, sheetCategories, sheetTags} {
			if i == 0 {
				if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
					return nil, fmt.Errorf("init sheet %s: %w", sheet, err)
				}
			} else if _, err := f.NewSheet(sheet); err != nil {
				return nil, fmt.Errorf("init sheet %s: %w", sheet, err)
			}
		}
		if err := f.SetSheetRow(sheetTransactions, "A1", &transactionHeaders); err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(sheetCategories, "A1", &categoryHeaders); err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(sheetTags, "A1", &tagHeaders); err != nil {
			return nil, err
		}
		if err := f.SaveAs(path); err != nil {
			return nil, fmt.Errorf("create workbook: %w", err)
		}
		return &Store{path: path, f: f}, nil
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	return &Store{path: path, f: f}, nil
}

// Close releases the underlying workbook handle.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.f.Close()
}

// Begin opens a transaction. The store lock is held until Commit or
// Rollback so a batch sees a stable workbook.
func (s *Store) Begin(ctx context.Context) (store.Tx, error) {
	s.mu.Lock()
	return &tx{parent: s}, nil
}

type tx struct {
	parent *Store
	closed bool

	stagedCategories   []store.Category
	stagedTags         []store.Tag
	stagedTransactions []store.Transaction
}

func (t *tx) FindCategoryByName(ctx context.Context, ownerID uuid.UUID, name string) (*store.Category, error) {
	if t.closed {
		return nil, store.ErrTxClosed
	}
	cats, err := t.allCategories()
	if err != nil {
		return nil, err
	}
	for i := range cats {
		if cats[i].OwnerID == ownerID && strings.EqualFold(cats[i].Name, name) {
			out := cats[i]
			return &out, nil
		}
	}
	return nil, nil
}

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
	t.stagedCategories = append(t.stagedCategories, *c)
	return nil
}

func (t *tx) ListCategoryNames(ctx context.Context, ownerID uuid.UUID) ([]string, error) {
	if t.closed {
		return nil, store.ErrTxClosed
	}
	cats, err := t.allCategories()
	if err != nil {
		return nil, err
	}
	var names []string
	for _, c := range cats {
		if c.OwnerID == ownerID {
			names = append(names, c.Name)
		}
	}
	return names, nil
}

func (t *tx) FindTagByLabel(ctx context.Context, label string) (*store.Tag, error) {
	if t.closed {
		return nil, store.ErrTxClosed
	}
	rows, err := t.parent.f.GetRows(sheetTags)
	if err != nil {
		return nil, fmt.Errorf("read tags sheet: %w", err)
	}
	for _, row := range dataRows(rows) {
		tag, err := tagFromRow(row)
		if err != nil {
			continue
		}
		if strings.EqualFold(tag.Label, label) {
			return tag, nil
		}
	}
	for i := range t.stagedTags {
		if strings.EqualFold(t.stagedTags[i].Label, label) {
			out := t.stagedTags[i]
			return &out, nil
		}
	}
	return nil, nil
}

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
	t.stagedTags = append(t.stagedTags, *tag)
	return nil
}

func (t *tx) FindRecentTransactions(ctx context.Context, f store.RecentFilter) ([]store.Transaction, error) {
	if t.closed {
		return nil, store.ErrTxClosed
	}
	rows, err := t.parent.f.GetRows(sheetTransactions)
	if err != nil {
		return nil, fmt.Errorf("read transactions sheet: %w", err)
	}

	var all []store.Transaction
	for _, row := range dataRows(rows) {
		txn, err := transactionFromRow(row)
		if err != nil {
			return nil, err
		}
		all = append(all, *txn)
	}
	all = append(all, t.stagedTransactions...)

	var out []store.Transaction
	for _, txn := range all {
		if txn.OwnerID != f.OwnerID || txn.Deleted {
			continue
		}
		if txn.Date.Before(f.DateFrom) || txn.Date.After(f.DateTo) {
			continue
		}
		if txn.Amount.LessThan(f.AmountMin) || txn.Amount.GreaterThan(f.AmountMax) {
			continue
		}
		out = append(out, txn)
	}
	return out, nil
}

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
	t.stagedTransactions = append(t.stagedTransactions, *txn)
	return nil
}

// Commit appends the staged rows to a copy of the workbook reloaded from
// disk and swaps it in once the save succeeds. The open workbook is never
// touched on failure, so a failed commit leaves no phantom rows behind.
func (t *tx) Commit(ctx context.Context) error {
	if t.closed {
		return store.ErrTxClosed
	}
	t.closed = true
	defer t.parent.mu.Unlock()

	f, err := excelize.OpenFile(t.parent.path)
	if err != nil {
		return fmt.Errorf("reopen workbook: %w", err)
	}

	for _, c := range t.stagedCategories {
		if err := appendRow(f, sheetCategories, categoryToRow(c)); err != nil {
			_ = f.Close()
			return err
		}
	}
	for _, tag := range t.stagedTags {
		if err := appendRow(f, sheetTags, tagToRow(tag)); err != nil {
			_ = f.Close()
			return err
		}
	}
	for _, txn := range t.stagedTransactions {
		if err := appendRow(f, sheetTransactions, transactionToRow(txn)); err != nil {
			_ = f.Close()
			return err
		}
	}

	if err := f.SaveAs(t.parent.path); err != nil {
		_ = f.Close()
		return fmt.Errorf("save workbook: %w", err)
	}

	_ = t.parent.f.Close()
	t.parent.f = f
	return nil
}

func (t *tx) Rollback(ctx context.Context) error {
	if t.closed {
		return nil
	}
	t.closed = true
	t.parent.mu.Unlock()
	return nil
}

func (t *tx) allCategories() ([]store.Category, error) {
	rows, err := t.parent.f.GetRows(sheetCategories)
	if err != nil {
		return nil, fmt.Errorf("read categories sheet: %w", err)
	}
	var out []store.Category
	for _, row := range dataRows(rows) {
		c, err := categoryFromRow(row)
		if err != nil {
			continue
		}
		out = append(out, *c)
	}
	return append(out, t.stagedCategories...), nil
}

func dataRows(rows [][]string) [][]string {
	if len(rows) <= 1 {
		return nil
	}
	return rows[1:]
}

func appendRow(f *excelize.File, sheet string, values []interface{}) error {
	rows, err := f.GetRows(sheet)
	if err != nil {
		return fmt.Errorf("read %s sheet: %w", sheet, err)
	}
	cell, err := excelize.CoordinatesToCellName(1, len(rows)+1)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("append to %s sheet: %w", sheet, err)
	}
	return nil
}

func cellAt(row []string, i int) string {
	if i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func categoryToRow(c store.Category) []interface{} {
	return []interface{}{
		c.ID.String(), c.OwnerID.String(), c.Name, string(c.Type),
		c.CreatedAt.Format(time.RFC3339),
	}
}

func categoryFromRow(row []string) (*store.Category, error) {
	id, err := uuid.Parse(cellAt(row, 0))
	if err != nil {
		return nil, fmt.Errorf("category id: %w", err)
	}
	owner, err := uuid.Parse(cellAt(row, 1))
	if err != nil {
		return nil, fmt.Errorf("category owner: %w", err)
	}
	created, _ := time.Parse(time.RFC3339, cellAt(row, 4))
	return &store.Category{
		ID:        id,
		OwnerID:   owner,
		Name:      cellAt(row, 2),
		Type:      store.CategoryType(cellAt(row, 3)),
		CreatedAt: created,
	}, nil
}

func tagToRow(t store.Tag) []interface{} {
	return []interface{}{t.ID.String(), t.Label, t.CreatedAt.Format(time.RFC3339)}
}

func tagFromRow(row []string) (*store.Tag, error) {
	id, err := uuid.Parse(cellAt(row, 0))
	if err != nil {
		return nil, fmt.Errorf("tag id: %w", err)
	}
	created, _ := time.Parse(time.RFC3339, cellAt(row, 2))
	return &store.Tag{ID: id, Label: cellAt(row, 1), CreatedAt: created}, nil
}

func transactionToRow(t store.Transaction) []interface{} {
	categoryID := ""
	if t.CategoryID != nil {
		categoryID = t.CategoryID.String()
	}
	return []interface{}{
		t.ID.String(), t.OwnerID.String(), t.Date.Format(dateLayout),
		t.Amount.String(), t.Description, t.Merchant, t.AccountName,
		categoryID, string(t.Source), strconv.FormatBool(t.Edited),
		strconv.FormatBool(t.Deleted), t.CreatedAt.Format(time.RFC3339),
	}
}

func transactionFromRow(row []string) (*store.Transaction, error) {
	id, err := uuid.Parse(cellAt(row, 0))
	if err != nil {
		return nil, fmt.Errorf("transaction id: %w", err)
	}
	owner, err := uuid.Parse(cellAt(row, 1))
	if err != nil {
		return nil, fmt.Errorf("transaction owner: %w", err)
	}
	date, err := time.Parse(dateLayout, cellAt(row, 2))
	if err != nil {
		return nil, fmt.Errorf("transaction date: %w", err)
	}
	amount, err := decimal.NewFromString(cellAt(row, 3))
	if err != nil {
		return nil, fmt.Errorf("transaction amount: %w", err)
	}

	txn := &store.Transaction{
		ID:          id,
		OwnerID:     owner,
		Date:        date,
		Amount:      amount,
		Description: cellAt(row, 4),
		Merchant:    cellAt(row, 5),
		AccountName: cellAt(row, 6),
		Source:      store.TransactionSource(cellAt(row, 8)),
	}
	if raw := cellAt(row, 7); raw != "" {
		if catID, err := uuid.Parse(raw); err == nil {
			txn.CategoryID = &catID
		}
	}
	txn.Edited, _ = strconv.ParseBool(cellAt(row, 9))
	txn.Deleted, _ = strconv.ParseBool(cellAt(row, 10))
	txn.CreatedAt, _ = time.Parse(time.RFC3339, cellAt(row, 11))
	return txn, nil
}
