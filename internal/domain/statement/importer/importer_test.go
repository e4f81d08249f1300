package importer

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paisaledger/paisaledger/internal/domain/statement/dedup"
	"github.com/paisaledger/paisaledger/internal/domain/statement/normalizer"
	"github.com/paisaledger/paisaledger/internal/store"
	"github.com/paisaledger/paisaledger/internal/store/memory"
)

func testImporter(st store.Store) *Importer {
	return New(st, dedup.New(), slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func ptr[T any](v T) *T { return &v }

func testDate(day int) *time.Time {
	d := time.Date(2024, 3, day, 0, 0, 0, 0, time.UTC)
	return &d
}

func row(day int, desc, amount string) normalizer.Row {
	return normalizer.Row{
		Date:        testDate(day),
		Description: desc,
		Amount:      decimal.RequireFromString(amount),
	}
}

func TestImport(t *testing.T) {
	ctx := context.Background()
	ownerID := uuid.New()

	t.Run("clean batch commits every row", func(t *testing.T) {
		st := memory.New()
		rows := []normalizer.Row{
			row(5, "Coffee Shop Connaught", "-120.50"),
			row(6, "Salary March Credited", "50000"),
		}
		rows[0].Line, rows[1].Line = 1, 2

		summary, err := testImporter(st).Import(ctx, ownerID, rows, nil)
		require.NoError(t, err)

		assert.Equal(t, 2, summary.TotalProcessed)
		assert.Equal(t, 2, summary.SuccessCount)
		assert.Zero(t, summary.ErrorCount)
		assert.Zero(t, summary.DuplicateCount)
		assert.True(t, summary.NetAmount.Equal(decimal.RequireFromString("49879.50")))
		assert.Len(t, st.Transactions(), 2)

		for _, r := range summary.Rows {
			assert.Equal(t, StatusCommitted, r.Status)
		}
	})

	t.Run("zero amounts are skipped silently", func(t *testing.T) {
		st := memory.New()
		rows := []normalizer.Row{
			row(5, "Coffee Shop Connaught", "-120.50"),
			{Date: testDate(5), Description: "Broken Amount Row", Amount: decimal.Zero, Line: 2},
		}

		summary, err := testImporter(st).Import(ctx, ownerID, rows, nil)
		require.NoError(t, err)

		assert.Equal(t, 1, summary.SuccessCount)
		assert.Zero(t, summary.ErrorCount)
		assert.Equal(t, StatusSkippedZero, summary.Rows[1].Status)
		assert.Len(t, st.Transactions(), 1)
	})

	t.Run("nil dates count as errors", func(t *testing.T) {
		st := memory.New()
		rows := []normalizer.Row{
			{Description: "No Date Here Sadly", Amount: decimal.RequireFromString("10"), Line: 1},
		}

		summary, err := testImporter(st).Import(ctx, ownerID, rows, nil)
		require.NoError(t, err)

		assert.Zero(t, summary.SuccessCount)
		assert.Equal(t, 1, summary.ErrorCount)
		assert.Equal(t, StatusFailed, summary.Rows[0].Status)
		assert.Contains(t, summary.Rows[0].Err, "date")
	})

	t.Run("stored duplicates are skipped and counted", func(t *testing.T) {
		st := memory.New()
		st.Seed([]store.Transaction{{
			ID:          uuid.New(),
			OwnerID:     ownerID,
			Date:        *testDate(5),
			Amount:      decimal.RequireFromString("-120.50"),
			Description: "Coffee Shop Connaught",
		}}, nil)

		summary, err := testImporter(st).Import(ctx, ownerID, []normalizer.Row{
			row(5, "Coffee Shop Connaught", "-120.50"),
		}, nil)
		require.NoError(t, err)

		assert.Zero(t, summary.SuccessCount)
		assert.Equal(t, 1, summary.DuplicateCount)
		assert.Equal(t, StatusSkippedDuplicate, summary.Rows[0].Status)
		assert.Len(t, st.Transactions(), 1)
	})

	t.Run("intra-batch duplicates are detected", func(t *testing.T) {
		st := memory.New()
		rows := []normalizer.Row{
			row(5, "Coffee Shop Connaught", "-120.50"),
			row(5, "Coffee Shop Connaught", "-120.50"),
		}

		summary, err := testImporter(st).Import(ctx, ownerID, rows, nil)
		require.NoError(t, err)

		assert.Equal(t, 1, summary.SuccessCount)
		assert.Equal(t, 1, summary.DuplicateCount)
		assert.Len(t, st.Transactions(), 1)
	})

	t.Run("categories are created once and linked", func(t *testing.T) {
		st := memory.New()
		rows := []normalizer.Row{
			row(5, "Coffee Shop Connaught", "-120.50"),
			row(6, "Chai Point Indiranagar", "-40"),
		}
		rows[0].Category = "Food"
		rows[1].Category = "food"

		summary, err := testImporter(st).Import(ctx, ownerID, rows, nil)
		require.NoError(t, err)

		assert.Equal(t, []string{"Food"}, summary.NewCategories)
		require.Len(t, st.Categories(), 1)

		catID := st.Categories()[0].ID
		for _, txn := range st.Transactions() {
			require.NotNil(t, txn.CategoryID)
			assert.Equal(t, catID, *txn.CategoryID)
		}
	})

	t.Run("existing categories are reused", func(t *testing.T) {
		st := memory.New()
		st.Seed(nil, []store.Category{{
			ID: uuid.New(), OwnerID: ownerID, Name: "Food", Type: store.CategoryExpense,
		}})

		rows := []normalizer.Row{row(5, "Coffee Shop Connaught", "-120.50")}
		rows[0].Category = "FOOD"

		summary, err := testImporter(st).Import(ctx, ownerID, rows, nil)
		require.NoError(t, err)

		assert.Empty(t, summary.NewCategories)
		assert.Len(t, st.Categories(), 1)
	})

	t.Run("similar category names produce a warning", func(t *testing.T) {
		st := memory.New()
		st.Seed(nil, []store.Category{{
			ID: uuid.New(), OwnerID: ownerID, Name: "Groceries", Type: store.CategoryExpense,
		}})

		rows := []normalizer.Row{row(5, "Big Bazaar Mumbai West", "-450")}
		rows[0].Category = "Grocery"

		summary, err := testImporter(st).Import(ctx, ownerID, rows, nil)
		require.NoError(t, err)

		require.Len(t, summary.Warnings, 1)
		assert.Contains(t, summary.Warnings[0], "Groceries")
	})

	t.Run("overlays override parsed values", func(t *testing.T) {
		st := memory.New()
		rows := []normalizer.Row{row(5, "Upi-Blinkit-9876@ybl", "-300")}

		overlays := map[int]Overlay{
			0: {
				Merchant: ptr("Blinkit"),
				Category: ptr("Groceries"),
				Amount:   ptr(decimal.RequireFromString("-299")),
				Date:     testDate(7),
				Tags:     []string{"online"},
			},
		}

		summary, err := testImporter(st).Import(ctx, ownerID, rows, overlays)
		require.NoError(t, err)
		assert.Equal(t, 1, summary.SuccessCount)
		assert.Equal(t, []string{"online"}, summary.NewTags)
		assert.Equal(t, []string{"Groceries"}, summary.NewCategories)

		txn := st.Transactions()[0]
		assert.Equal(t, "Blinkit", txn.Description)
		assert.Equal(t, "Blinkit", txn.Merchant)
		assert.True(t, txn.Amount.Equal(decimal.RequireFromString("-299")))
		assert.Equal(t, testDate(7).Unix(), txn.Date.Unix())
		assert.True(t, txn.Edited)
	})

	t.Run("overlay amount of zero skips the row", func(t *testing.T) {
		st := memory.New()
		rows := []normalizer.Row{row(5, "Coffee Shop Connaught", "-120.50")}
		overlays := map[int]Overlay{0: {Amount: ptr(decimal.Zero)}}

		summary, err := testImporter(st).Import(ctx, ownerID, rows, overlays)
		require.NoError(t, err)
		assert.Equal(t, StatusSkippedZero, summary.Rows[0].Status)
		assert.Empty(t, st.Transactions())
	})

	t.Run("new merchants are reported", func(t *testing.T) {
		st := memory.New()
		rows := []normalizer.Row{row(5, "Desc Only No Merchant", "-10")}
		rows[0].Merchant = "Chai Point"

		summary, err := testImporter(st).Import(ctx, ownerID, rows, nil)
		require.NoError(t, err)
		assert.Equal(t, []string{"Chai Point"}, summary.NewMerchants)
	})

	t.Run("empty batch", func(t *testing.T) {
		summary, err := testImporter(memory.New()).Import(ctx, ownerID, nil, nil)
		require.NoError(t, err)
		assert.Zero(t, summary.TotalProcessed)
	})
}

// failingCommitStore wraps a working store but fails every Commit.
type failingCommitStore struct {
	inner store.Store
}

type failingCommitTx struct {
	store.Tx
}

func (s *failingCommitStore) Begin(ctx context.Context) (store.Tx, error) {
	tx, err := s.inner.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return &failingCommitTx{Tx: tx}, nil
}

func (t *failingCommitTx) Commit(ctx context.Context) error {
	return errors.New("connection lost")
}

func TestImport_CommitFailure(t *testing.T) {
	ctx := context.Background()
	ownerID := uuid.New()
	inner := memory.New()
	st := &failingCommitStore{inner: inner}

	rows := []normalizer.Row{
		row(5, "Coffee Shop Connaught", "-120.50"),
		row(6, "Salary March Credited", "50000"),
		{Date: testDate(7), Description: "Zero Amount Row Here", Amount: decimal.Zero, Line: 3},
	}

	summary, err := testImporter(st).Import(ctx, ownerID, rows, nil)
	require.ErrorIs(t, err, ErrCommitFailed)
	require.NotNil(t, summary)

	assert.Equal(t, 3, summary.TotalProcessed)
	assert.Zero(t, summary.SuccessCount)
	assert.Equal(t, 3, summary.ErrorCount)
	assert.Zero(t, summary.DuplicateCount)
	assert.True(t, summary.NetAmount.IsZero())
	assert.Empty(t, inner.Transactions())

	for _, r := range summary.Rows {
		assert.Equal(t, StatusFailed, r.Status)
	}
}
