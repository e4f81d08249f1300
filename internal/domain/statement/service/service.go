// Package service orchestrates the statement import pipeline: read the
// file, resolve the column mapping, normalize rows, and hand the batch to
// the importer.
package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/google/uuid"

	"github.com/paisaledger/paisaledger/internal/domain/statement/importer"
	"github.com/paisaledger/paisaledger/internal/domain/statement/mapper"
	"github.com/paisaledger/paisaledger/internal/domain/statement/normalizer"
	"github.com/paisaledger/paisaledger/internal/domain/statement/reader"
)

// previewRows caps how many normalized rows Analyze returns.
const previewRows = 10

// Analysis is the result of inspecting an uploaded statement before import.
type Analysis struct {
	Headers   []string
	Mapping   mapper.Mapping
	Preview   []normalizer.Row
	TotalRows int
	// Text carries the first page's plain text for PDFs where no table
	// could be reconstructed. Headers and Preview are empty then.
	Text string
}

// Service wires the pipeline stages together.
type Service struct {
	importer *importer.Importer
	logger   *slog.Logger
}

// New creates a statement service.
func New(imp *importer.Importer, logger *slog.Logger) *Service {
	return &Service{importer: imp, logger: logger}
}

// Analyze reads the uploaded file, suggests a column mapping, and returns a
// normalized preview. The suggested mapping is not validated; the caller
// decides whether to accept, fix, or reject it.
func (s *Service) Analyze(ctx context.Context, data []byte, filename string) (*Analysis, error) {
	ext := fileExt(filename)
	analyzeTotal.WithLabelValues(ext).Inc()

	res, err := reader.Read(data, ext)
	if err != nil {
		s.logger.Warn("statement analyze failed", "filename", filename, "error", err)
		return nil, err
	}
	if res.Table == nil {
		return &Analysis{Text: res.Text}, nil
	}

	m := mapper.Suggest(res.Table.Headers)
	rows := normalizer.NormalizeTable(res.Table, m)

	preview := rows
	if len(preview) > previewRows {
		preview = preview[:previewRows]
	}

	return &Analysis{
		Headers:   res.Table.Headers,
		Mapping:   m,
		Preview:   preview,
		TotalRows: len(rows),
	}, nil
}

// Import runs the full pipeline and persists the batch. A nil or empty
// mapping falls back to auto-detection; either way the mapping must resolve
// date, description, and amount or the import is rejected before any
// storage work happens.
func (s *Service) Import(ctx context.Context, ownerID uuid.UUID, data []byte, filename string, m mapper.Mapping, overlays map[int]importer.Overlay) (*importer.Summary, error) {
	start := time.Now()

	res, err := reader.Read(data, fileExt(filename))
	if err != nil {
		importsTotal.WithLabelValues("read_error").Inc()
		return nil, err
	}
	if res.Table == nil {
		importsTotal.WithLabelValues("no_table").Inc()
		return nil, fmt.Errorf("%w: statement has no tabular data", reader.ErrNoContent)
	}

	if len(m) == 0 {
		m = mapper.Suggest(res.Table.Headers)
	}
	if err := m.Validate(res.Table.Headers); err != nil {
		importsTotal.WithLabelValues("mapping_error").Inc()
		return nil, err
	}

	rows := normalizer.NormalizeTable(res.Table, m)

	summary, err := s.importer.Import(ctx, ownerID, rows, overlays)
	if err != nil {
		if errors.Is(err, importer.ErrCommitFailed) {
			importsTotal.WithLabelValues("commit_failed").Inc()
			// The summary still describes the voided batch.
			return summary, err
		}
		importsTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	importsTotal.WithLabelValues("ok").Inc()
	for _, row := range summary.Rows {
		importRowsTotal.WithLabelValues(string(row.Status)).Inc()
	}

	s.logger.Info("statement imported",
		"owner_id", ownerID,
		"filename", filename,
		"rows", summary.TotalProcessed,
		"success", summary.SuccessCount,
		"duration", time.Since(start),
	)
	return summary, nil
}

// exportRow is the CSV shape of a normalized row.
type exportRow struct {
	Date        string `csv:"date"`
	Description string `csv:"description"`
	Merchant    string `csv:"merchant"`
	Account     string `csv:"account"`
	Category    string `csv:"category"`
	Amount      string `csv:"amount"`
}

// ExportCSV renders normalized rows as a downloadable CSV. Unparseable
// dates export as empty cells.
func (s *Service) ExportCSV(rows []normalizer.Row) ([]byte, error) {
	out := make([]exportRow, 0, len(rows))
	for _, row := range rows {
		var date string
		if row.Date != nil {
			date = row.Date.Format("2006-01-02")
		}
		out = append(out, exportRow{
			Date:        date,
			Description: row.Description,
			Merchant:    row.Merchant,
			Account:     row.Account,
			Category:    row.Category,
			Amount:      row.Amount.String(),
		})
	}

	var buf bytes.Buffer
	if err := gocsv.Marshal(out, &buf); err != nil {
		return nil, fmt.Errorf("marshal csv: %w", err)
	}
	return buf.Bytes(), nil
}

func fileExt(filename string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
}
