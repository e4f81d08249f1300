// Package importer persists a batch of normalized statement rows in a
// single storage transaction and reports a per-row outcome summary.
package importer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lithammer/fuzzysearch/fuzzy"
	"github.com/shopspring/decimal"

	"github.com/paisaledger/paisaledger/internal/domain/statement/dedup"
	"github.com/paisaledger/paisaledger/internal/domain/statement/normalizer"
	"github.com/paisaledger/paisaledger/internal/store"
)

// ErrCommitFailed wraps a failed batch commit. Nothing from the batch is
// persisted when it occurs.
var ErrCommitFailed = errors.New("import commit failed")

// Overlay carries the user's per-row edits made on the preview screen.
// Nil fields keep the parsed value. Overlays are applied at staging time
// and discarded afterwards.
type Overlay struct {
	Merchant *string
	Category *string
	Date     *time.Time
	Amount   *decimal.Decimal
	Tags     []string
}

// RowStatus is the outcome of one row in the batch.
type RowStatus string

const (
	StatusCommitted        RowStatus = "committed"
	StatusSkippedZero      RowStatus = "skipped_zero"
	StatusSkippedDuplicate RowStatus = "skipped_duplicate"
	StatusFailed           RowStatus = "failed"
)

// RowResult records what happened to a single row. Err is set only for
// StatusFailed.
type RowResult struct {
	Line   int
	Status RowStatus
	Err    string
}

// Summary aggregates the batch outcome. NetAmount is the signed sum of the
// committed rows' amounts.
type Summary struct {
	TotalProcessed int
	SuccessCount   int
	ErrorCount     int
	DuplicateCount int
	NetAmount      decimal.Decimal
	NewMerchants   []string
	NewTags        []string
	NewCategories  []string
	Warnings       []string
	Rows           []RowResult
}

// Importer stages normalized rows and commits them atomically.
type Importer struct {
	store    store.Store
	detector *dedup.Detector
	logger   *slog.Logger
}

// New creates an importer.
func New(st store.Store, detector *dedup.Detector, logger *slog.Logger) *Importer {
	return &Importer{store: st, detector: detector, logger: logger}
}

// similarityThreshold is the Levenshtein rank below which two category
// names are warned about as near-duplicates.
const similarityThreshold = 3

// Import persists the batch inside one storage transaction. Category and
// tag names are resolved or created up front, then each row is staged:
// zero amounts are skipped silently, probable duplicates are skipped and
// counted, and staging errors are counted without aborting the batch.
// A failed commit voids the whole batch: zero successes, all rows errored.
func (imp *Importer) Import(ctx context.Context, ownerID uuid.UUID, rows []normalizer.Row, overlays map[int]Overlay) (*Summary, error) {
	summary := &Summary{
		TotalProcessed: len(rows),
		Rows:           make([]RowResult, 0, len(rows)),
	}
	if len(rows) == 0 {
		return summary, nil
	}

	tx, err := imp.store.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin import transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	categories, err := imp.resolveCategories(ctx, tx, ownerID, rows, overlays, summary)
	if err != nil {
		return nil, err
	}
	if err := imp.resolveTags(ctx, tx, overlays, summary); err != nil {
		return nil, err
	}

	newMerchants := make(map[string]bool)

	for i, row := range rows {
		overlay := overlays[i]
		result, amount := imp.stageRow(ctx, tx, ownerID, row, overlay, categories)
		summary.Rows = append(summary.Rows, result)

		switch result.Status {
		case StatusCommitted:
			summary.SuccessCount++
			summary.NetAmount = summary.NetAmount.Add(amount)
			if m := resolveMerchant(row, overlay); m != "" {
				newMerchants[m] = true
			}
		case StatusSkippedDuplicate:
			summary.DuplicateCount++
		case StatusFailed:
			summary.ErrorCount++
		}
	}

	if err := tx.Commit(ctx); err != nil {
		imp.logger.Error("import commit failed", "owner_id", ownerID, "rows", len(rows), "error", err)
		summary.SuccessCount = 0
		summary.ErrorCount = summary.TotalProcessed
		summary.DuplicateCount = 0
		summary.NetAmount = decimal.Zero
		summary.NewCategories = nil
		summary.NewTags = nil
		for i := range summary.Rows {
			summary.Rows[i].Status = StatusFailed
			summary.Rows[i].Err = "commit failed"
		}
		return summary, fmt.Errorf("%w: %v", ErrCommitFailed, err)
	}

	for m := range newMerchants {
		summary.NewMerchants = append(summary.NewMerchants, m)
	}

	imp.logger.Info("import committed",
		"owner_id", ownerID,
		"total", summary.TotalProcessed,
		"success", summary.SuccessCount,
		"duplicates", summary.DuplicateCount,
		"errors", summary.ErrorCount,
	)
	return summary, nil
}

// stageRow applies the overlay and stages one transaction, returning the
// row result and the staged amount. It never returns an error; failures
// become the row's result.
func (imp *Importer) stageRow(ctx context.Context, tx store.Tx, ownerID uuid.UUID, row normalizer.Row, overlay Overlay, categories map[string]uuid.UUID) (RowResult, decimal.Decimal) {
	date := row.Date
	if overlay.Date != nil {
		date = overlay.Date
	}
	amount := row.Amount
	if overlay.Amount != nil {
		amount = *overlay.Amount
	}

	if amount.IsZero() {
		return RowResult{Line: row.Line, Status: StatusSkippedZero}, decimal.Zero
	}
	if date == nil {
		return RowResult{Line: row.Line, Status: StatusFailed, Err: "unparseable date"}, decimal.Zero
	}

	description := resolveDescription(row, overlay)
	if description == "" {
		return RowResult{Line: row.Line, Status: StatusFailed, Err: "empty description"}, decimal.Zero
	}

	isDup, err := imp.detector.IsProbableDuplicate(ctx, tx, ownerID, *date, amount, description)
	if err != nil {
		return RowResult{Line: row.Line, Status: StatusFailed, Err: err.Error()}, decimal.Zero
	}
	if isDup {
		return RowResult{Line: row.Line, Status: StatusSkippedDuplicate}, decimal.Zero
	}

	var categoryID *uuid.UUID
	if name := resolveCategory(row, overlay); name != "" {
		if id, ok := categories[strings.ToLower(name)]; ok {
			categoryID = &id
		}
	}

	txn := &store.Transaction{
		OwnerID:     ownerID,
		Date:        *date,
		Amount:      amount,
		Description: description,
		Merchant:    resolveMerchant(row, overlay),
		AccountName: row.Account,
		CategoryID:  categoryID,
		Source:      store.SourceImported,
		Edited:      overlayEdits(overlay),
	}
	if err := tx.StageTransaction(ctx, txn); err != nil {
		return RowResult{Line: row.Line, Status: StatusFailed, Err: err.Error()}, decimal.Zero
	}
	return RowResult{Line: row.Line, Status: StatusCommitted}, amount
}

// resolveCategories collects the distinct category names the batch needs
// and looks each up, creating the missing ones. Lookups run against the
// import transaction so a name created for one row is reused by the rest.
func (imp *Importer) resolveCategories(ctx context.Context, tx store.Tx, ownerID uuid.UUID, rows []normalizer.Row, overlays map[int]Overlay, summary *Summary) (map[string]uuid.UUID, error) {
	names := make(map[string]string) // lowercase -> first-seen display form
	for i, row := range rows {
		if name := resolveCategory(row, overlays[i]); name != "" {
			if _, ok := names[strings.ToLower(name)]; !ok {
				names[strings.ToLower(name)] = name
			}
		}
	}
	if len(names) == 0 {
		return nil, nil
	}

	existing, err := tx.ListCategoryNames(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}

	resolved := make(map[string]uuid.UUID, len(names))
	for key, display := range names {
		cat, err := tx.FindCategoryByName(ctx, ownerID, display)
		if err != nil {
			return nil, fmt.Errorf("find category %q: %w", display, err)
		}
		if cat == nil {
			if similar := findSimilarCategory(display, existing); similar != "" {
				summary.Warnings = append(summary.Warnings,
					fmt.Sprintf("category %q is close to existing %q", display, similar))
			}
			cat = &store.Category{OwnerID: ownerID, Name: display, Type: store.CategoryExpense}
			if err := tx.CreateCategory(ctx, cat); err != nil {
				return nil, fmt.Errorf("create category %q: %w", display, err)
			}
			summary.NewCategories = append(summary.NewCategories, display)
		}
		resolved[key] = cat.ID
	}
	return resolved, nil
}

// resolveTags look-up-or-creates every tag named in the overlays.
func (imp *Importer) resolveTags(ctx context.Context, tx store.Tx, overlays map[int]Overlay, summary *Summary) error {
	seen := make(map[string]bool)
	for _, overlay := range overlays {
		for _, label := range overlay.Tags {
			label = strings.TrimSpace(label)
			if label == "" || seen[strings.ToLower(label)] {
				continue
			}
			seen[strings.ToLower(label)] = true

			tag, err := tx.FindTagByLabel(ctx, label)
			if err != nil {
				return fmt.Errorf("find tag %q: %w", label, err)
			}
			if tag == nil {
				if err := tx.CreateTag(ctx, &store.Tag{Label: label}); err != nil {
					return fmt.Errorf("create tag %q: %w", label, err)
				}
				summary.NewTags = append(summary.NewTags, label)
			}
		}
	}
	return nil
}

// findSimilarCategory returns an existing category name that is a likely
// misspelling of the candidate, or "". The length guard keeps short names
// like Food/Fuel from warning on each other.
func findSimilarCategory(candidate string, existing []string) string {
	lower := strings.ToLower(candidate)
	for _, name := range existing {
		if strings.EqualFold(name, candidate) {
			continue
		}
		dist := fuzzy.LevenshteinDistance(lower, strings.ToLower(name))
		if dist <= similarityThreshold && dist < len(lower)/2+1 {
			return name
		}
	}
	return ""
}

// resolveDescription picks the display description: overlay merchant wins,
// then the parsed merchant, then the parsed description.
func resolveDescription(row normalizer.Row, overlay Overlay) string {
	if overlay.Merchant != nil && strings.TrimSpace(*overlay.Merchant) != "" {
		return strings.TrimSpace(*overlay.Merchant)
	}
	if row.Merchant != "" {
		return row.Merchant
	}
	return row.Description
}

func resolveMerchant(row normalizer.Row, overlay Overlay) string {
	return resolveDescription(row, overlay)
}

func resolveCategory(row normalizer.Row, overlay Overlay) string {
	if overlay.Category != nil && strings.TrimSpace(*overlay.Category) != "" {
		return strings.TrimSpace(*overlay.Category)
	}
	return row.Category
}

func overlayEdits(o Overlay) bool {
	return o.Merchant != nil || o.Category != nil || o.Date != nil || o.Amount != nil || len(o.Tags) > 0
}
