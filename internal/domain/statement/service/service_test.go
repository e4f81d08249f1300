package service

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paisaledger/paisaledger/internal/domain/statement/dedup"
	"github.com/paisaledger/paisaledger/internal/domain/statement/importer"
	"github.com/paisaledger/paisaledger/internal/domain/statement/mapper"
	"github.com/paisaledger/paisaledger/internal/domain/statement/normalizer"
	"github.com/paisaledger/paisaledger/internal/domain/statement/reader"
	"github.com/paisaledger/paisaledger/internal/store/memory"
)

func testService(st *memory.Store) *Service {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(importer.New(st, dedup.New(), logger), logger)
}

const sampleCSV = `Date,Narration,Amount,Category
05/03/2024,COFFEE SHOP CONNAUGHT,-120.50,Food
06/03/2024,SALARY MARCH CREDITED,"50,000.00",
07/03/2024,BIG BAZAAR MUMBAI WEST,(450.00),Shopping
`

func TestService_Analyze(t *testing.T) {
	ctx := context.Background()
	svc := testService(memory.New())

	t.Run("suggests mapping and previews rows", func(t *testing.T) {
		analysis, err := svc.Analyze(ctx, []byte(sampleCSV), "statement.csv")
		require.NoError(t, err)

		assert.Equal(t, []string{"Date", "Narration", "Amount", "Category"}, analysis.Headers)
		assert.Equal(t, "Date", analysis.Mapping.Header(mapper.FieldDate))
		assert.Equal(t, "Narration", analysis.Mapping.Header(mapper.FieldDescription))
		assert.Equal(t, "Amount", analysis.Mapping.Header(mapper.FieldAmount))

		require.Len(t, analysis.Preview, 3)
		assert.Equal(t, 3, analysis.TotalRows)
		assert.Equal(t, "Coffee Shop Connaught", analysis.Preview[0].Description)
		assert.True(t, analysis.Preview[2].Amount.Equal(decimal.RequireFromString("-450")))
	})

	t.Run("caps the preview", func(t *testing.T) {
		csv := "Date,Narration,Amount\n"
		for i := 0; i < 25; i++ {
			csv += "05/03/2024,Some Merchant Name,-10\n"
		}

		analysis, err := svc.Analyze(ctx, []byte(csv), "big.csv")
		require.NoError(t, err)
		assert.Len(t, analysis.Preview, previewRows)
		assert.Equal(t, 25, analysis.TotalRows)
	})

	t.Run("propagates reader errors", func(t *testing.T) {
		_, err := svc.Analyze(ctx, nil, "statement.csv")
		assert.ErrorIs(t, err, reader.ErrEmptyFile)

		_, err = svc.Analyze(ctx, []byte("x"), "statement.txt")
		assert.ErrorIs(t, err, reader.ErrUnsupportedFormat)
	})
}

func TestService_Import(t *testing.T) {
	ctx := context.Background()
	ownerID := uuid.New()

	t.Run("end to end with auto mapping", func(t *testing.T) {
		st := memory.New()
		svc := testService(st)

		summary, err := svc.Import(ctx, ownerID, []byte(sampleCSV), "statement.csv", nil, nil)
		require.NoError(t, err)

		assert.Equal(t, 3, summary.TotalProcessed)
		assert.Equal(t, 3, summary.SuccessCount)
		assert.ElementsMatch(t, []string{"Food", "Shopping"}, summary.NewCategories)
		assert.Len(t, st.Transactions(), 3)
	})

	t.Run("re-import skips duplicates", func(t *testing.T) {
		st := memory.New()
		svc := testService(st)

		_, err := svc.Import(ctx, ownerID, []byte(sampleCSV), "statement.csv", nil, nil)
		require.NoError(t, err)

		summary, err := svc.Import(ctx, ownerID, []byte(sampleCSV), "statement.csv", nil, nil)
		require.NoError(t, err)

		assert.Zero(t, summary.SuccessCount)
		assert.Equal(t, 3, summary.DuplicateCount)
		assert.Len(t, st.Transactions(), 3)
	})

	t.Run("explicit mapping overrides detection", func(t *testing.T) {
		st := memory.New()
		svc := testService(st)
		csv := "When,What,HowMuch\n05/03/2024,Coffee Shop Connaught,-12\n"

		m := mapper.Mapping{
			mapper.FieldDate:        "When",
			mapper.FieldDescription: "What",
			mapper.FieldAmount:      "HowMuch",
		}

		summary, err := svc.Import(ctx, ownerID, []byte(csv), "odd.csv", m, nil)
		require.NoError(t, err)
		assert.Equal(t, 1, summary.SuccessCount)
	})

	t.Run("incomplete mapping is rejected before storage", func(t *testing.T) {
		st := memory.New()
		svc := testService(st)
		csv := "ColA,ColB\nfoo,bar\n"

		_, err := svc.Import(ctx, ownerID, []byte(csv), "odd.csv", nil, nil)
		assert.ErrorIs(t, err, mapper.ErrMappingIncomplete)
		assert.Empty(t, st.Transactions())
	})

	t.Run("unsupported format", func(t *testing.T) {
		svc := testService(memory.New())
		_, err := svc.Import(ctx, ownerID, []byte("data"), "statement.json", nil, nil)
		assert.ErrorIs(t, err, reader.ErrUnsupportedFormat)
	})
}

func TestService_ExportCSV(t *testing.T) {
	svc := testService(memory.New())
	date := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)

	rows := []normalizer.Row{
		{Date: &date, Description: "Coffee Shop", Category: "Food", Amount: decimal.RequireFromString("-120.5"), Line: 1},
		{Description: "No Date Row", Amount: decimal.RequireFromString("10"), Line: 2},
	}

	out, err := svc.ExportCSV(rows)
	require.NoError(t, err)

	s := string(out)
	assert.Contains(t, s, "date,description,merchant,account,category,amount")
	assert.Contains(t, s, "2024-03-05,Coffee Shop,,,Food,-120.5")
	assert.Contains(t, s, ",No Date Row,,,,10")
}
