// Package memory provides an in-process store implementation. It backs unit
// tests and small single-user deployments that do not want a database.
package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/paisaledger/paisaledger/internal/store"
)

// Store keeps all records in process memory.
type Store struct {
	mu           sync.Mutex
	categories   []store.Category
	tags         []store.Tag
	transactions []store.Transaction
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{}
}

// Begin opens a transaction. Staged writes are buffered and applied to the
// parent store on Commit.
func (s *Store) Begin(ctx context.Context) (store.Tx, error) {
	return &tx{parent: s}, nil
}

// Transactions returns a copy of all committed transactions, for tests.
func (s *Store) Transactions() []store.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]store.Transaction, len(s.transactions))
	copy(out, s.transactions)
	return out
}

// Categories returns a copy of all committed categories, for tests.
func (s *Store) Categories() []store.Category {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]store.Category, len(s.categories))
	copy(out, s.categories)
	return out
}

// Seed inserts records directly, bypassing the transaction machinery.
func (s *Store) Seed(txns []store.Transaction, cats []store.Category) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transactions = append(s.transactions, txns...)
	s.categories = append(s.categories, cats...)
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
	t.parent.mu.Lock()
	defer t.parent.mu.Unlock()

	for _, pool := range [][]store.Category{t.parent.categories, t.stagedCategories} {
		for i := range pool {
			c := pool[i]
			if c.OwnerID == ownerID && strings.EqualFold(c.Name, name) {
				out := c
				return &out, nil
			}
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
	t.parent.mu.Lock()
	defer t.parent.mu.Unlock()

	var names []string
	for _, pool := range [][]store.Category{t.parent.categories, t.stagedCategories} {
		for _, c := range pool {
			if c.OwnerID == ownerID {
				names = append(names, c.Name)
			}
		}
	}
	return names, nil
}

func (t *tx) FindTagByLabel(ctx context.Context, label string) (*store.Tag, error) {
	if t.closed {
		return nil, store.ErrTxClosed
	}
	t.parent.mu.Lock()
	defer t.parent.mu.Unlock()

	for _, pool := range [][]store.Tag{t.parent.tags, t.stagedTags} {
		for i := range pool {
			tag := pool[i]
			if strings.EqualFold(tag.Label, label) {
				out := tag
				return &out, nil
			}
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
	t.parent.mu.Lock()
	defer t.parent.mu.Unlock()

	var out []store.Transaction
	for _, pool := range [][]store.Transaction{t.parent.transactions, t.stagedTransactions} {
		for _, txn := range pool {
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

func (t *tx) Commit(ctx context.Context) error {
	if t.closed {
		return store.ErrTxClosed
	}
	t.closed = true

	t.parent.mu.Lock()
	defer t.parent.mu.Unlock()
	t.parent.categories = append(t.parent.categories, t.stagedCategories...)
	t.parent.tags = append(t.parent.tags, t.stagedTags...)
	t.parent.transactions = append(t.parent.transactions, t.stagedTransactions...)
	return nil
}

func (t *tx) Rollback(ctx context.Context) error {
	if t.closed {
		return nil
	}
	t.closed = true
	t.stagedCategories = nil
	t.stagedTags = nil
	t.stagedTransactions = nil
	return nil
}
