package memory

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paisaledger/paisaledger/internal/store"
)

func TestTx_CommitAndRollback(t *testing.T) {
	ctx := context.Background()
	ownerID := uuid.New()

	t.Run("commit makes staged rows durable", func(t *testing.T) {
		st := New()
		tx, err := st.Begin(ctx)
		require.NoError(t, err)

		require.NoError(t, tx.StageTransaction(ctx, &store.Transaction{
			OwnerID: ownerID, Date: time.Now(), Amount: decimal.NewFromInt(5), Description: "x",
		}))
		assert.Empty(t, st.Transactions())

		require.NoError(t, tx.Commit(ctx))
		assert.Len(t, st.Transactions(), 1)
	})

	t.Run("rollback discards staged rows", func(t *testing.T) {
		st := New()
		tx, err := st.Begin(ctx)
		require.NoError(t, err)

		require.NoError(t, tx.StageTransaction(ctx, &store.Transaction{OwnerID: ownerID}))
		require.NoError(t, tx.Rollback(ctx))
		assert.Empty(t, st.Transactions())
	})

	t.Run("closed tx rejects further work", func(t *testing.T) {
		st := New()
		tx, err := st.Begin(ctx)
		require.NoError(t, err)
		require.NoError(t, tx.Commit(ctx))

		assert.ErrorIs(t, tx.StageTransaction(ctx, &store.Transaction{}), store.ErrTxClosed)
		assert.ErrorIs(t, tx.Commit(ctx), store.ErrTxClosed)
		assert.NoError(t, tx.Rollback(ctx))
	})
}

func TestTx_FindRecentTransactions(t *testing.T) {
	ctx := context.Background()
	ownerID := uuid.New()
	date := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)

	st := New()
	st.Seed([]store.Transaction{
		{ID: uuid.New(), OwnerID: ownerID, Date: date, Amount: decimal.NewFromInt(100), Description: "in window"},
		{ID: uuid.New(), OwnerID: ownerID, Date: date.AddDate(0, 0, 5), Amount: decimal.NewFromInt(100), Description: "outside dates"},
		{ID: uuid.New(), OwnerID: ownerID, Date: date, Amount: decimal.NewFromInt(500), Description: "outside amounts"},
		{ID: uuid.New(), OwnerID: uuid.New(), Date: date, Amount: decimal.NewFromInt(100), Description: "other owner"},
	}, nil)

	tx, err := st.Begin(ctx)
	require.NoError(t, err)
	defer tx.Rollback(ctx)

	// Staged row inside the window must be visible.
	require.NoError(t, tx.StageTransaction(ctx, &store.Transaction{
		OwnerID: ownerID, Date: date, Amount: decimal.NewFromInt(101), Description: "staged",
	}))

	got, err := tx.FindRecentTransactions(ctx, store.RecentFilter{
		OwnerID:   ownerID,
		DateFrom:  date.AddDate(0, 0, -1),
		DateTo:    date.AddDate(0, 0, 1),
		AmountMin: decimal.NewFromInt(0),
		AmountMax: decimal.NewFromInt(200),
	})
	require.NoError(t, err)

	var descs []string
	for _, txn := range got {
		descs = append(descs, txn.Description)
	}
	assert.ElementsMatch(t, []string{"in window", "staged"}, descs)
}

func TestTx_Categories(t *testing.T) {
	ctx := context.Background()
	ownerID := uuid.New()

	st := New()
	tx, err := st.Begin(ctx)
	require.NoError(t, err)

	cat := &store.Category{OwnerID: ownerID, Name: "Food", Type: store.CategoryExpense}
	require.NoError(t, tx.CreateCategory(ctx, cat))
	assert.NotEqual(t, uuid.Nil, cat.ID)

	t.Run("staged category is findable case-insensitively", func(t *testing.T) {
		found, err := tx.FindCategoryByName(ctx, ownerID, "fOOd")
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, cat.ID, found.ID)
	})

	t.Run("other owner does not see it", func(t *testing.T) {
		found, err := tx.FindCategoryByName(ctx, uuid.New(), "Food")
		require.NoError(t, err)
		assert.Nil(t, found)
	})

	t.Run("list includes staged names", func(t *testing.T) {
		names, err := tx.ListCategoryNames(ctx, ownerID)
		require.NoError(t, err)
		assert.Equal(t, []string{"Food"}, names)
	})
}

func TestTx_Tags(t *testing.T) {
	ctx := context.Background()
	st := New()
	tx, err := st.Begin(ctx)
	require.NoError(t, err)

	missing, err := tx.FindTagByLabel(ctx, "online")
	require.NoError(t, err)
	assert.Nil(t, missing)

	require.NoError(t, tx.CreateTag(ctx, &store.Tag{Label: "online"}))

	found, err := tx.FindTagByLabel(ctx, "ONLINE")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "online", found.Label)
}
