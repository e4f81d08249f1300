// Package handler exposes the statement pipeline over HTTP.
package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/paisaledger/paisaledger/internal/domain/statement/importer"
	"github.com/paisaledger/paisaledger/internal/domain/statement/mapper"
	"github.com/paisaledger/paisaledger/internal/domain/statement/normalizer"
	"github.com/paisaledger/paisaledger/internal/domain/statement/reader"
	"github.com/paisaledger/paisaledger/internal/domain/statement/service"
	"github.com/paisaledger/paisaledger/pkg/money"
)

// maxUploadBytes caps statement uploads at 10 MiB.
const maxUploadBytes = 10 << 20

// Handler serves the statement endpoints.
type Handler struct {
	svc    *service.Service
	logger *slog.Logger
}

// New creates a handler.
func New(svc *service.Service, logger *slog.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// Register mounts the statement routes on the router.
func (h *Handler) Register(r gin.IRouter) {
	v1 := r.Group("/v1/statements")
	v1.POST("/analyze", h.Analyze)
	v1.POST("/import", h.Import)
}

// errorResponse is the uniform error body.
type errorResponse struct {
	Error string `json:"error"`
}

// rowJSON is the wire shape of a normalized preview row.
type rowJSON struct {
	Line        int    `json:"line"`
	Date        string `json:"date,omitempty"`
	Description string `json:"description"`
	Merchant    string `json:"merchant,omitempty"`
	Account     string `json:"account,omitempty"`
	Category    string `json:"category,omitempty"`
	Amount      string `json:"amount"`
}

func toRowJSON(rows []normalizer.Row) []rowJSON {
	out := make([]rowJSON, 0, len(rows))
	for _, r := range rows {
		row := rowJSON{
			Line:        r.Line,
			Description: r.Description,
			Merchant:    r.Merchant,
			Account:     r.Account,
			Category:    r.Category,
			Amount:      r.Amount.String(),
		}
		if r.Date != nil {
			row.Date = r.Date.Format("2006-01-02")
		}
		out = append(out, row)
	}
	return out
}

// analyzeResponse is the body of a successful analyze call.
type analyzeResponse struct {
	Headers   []string          `json:"headers,omitempty"`
	Mapping   map[string]string `json:"mapping,omitempty"`
	Preview   []rowJSON         `json:"preview,omitempty"`
	TotalRows int               `json:"total_rows"`
	Text      string            `json:"text,omitempty"`
}

// Analyze handles POST /v1/statements/analyze. The statement file arrives
// as the multipart field "file".
func (h *Handler) Analyze(c *gin.Context) {
	data, filename, ok := h.readUpload(c)
	if !ok {
		return
	}

	analysis, err := h.svc.Analyze(c.Request.Context(), data, filename)
	if err != nil {
		h.writeError(c, err)
		return
	}

	mapping := make(map[string]string, len(analysis.Mapping))
	for field, header := range analysis.Mapping {
		mapping[string(field)] = header
	}

	c.JSON(http.StatusOK, analyzeResponse{
		Headers:   analysis.Headers,
		Mapping:   mapping,
		Preview:   toRowJSON(analysis.Preview),
		TotalRows: analysis.TotalRows,
		Text:      analysis.Text,
	})
}

// overlayJSON is the wire shape of a per-row edit. All fields optional.
type overlayJSON struct {
	Merchant *string  `json:"merchant"`
	Category *string  `json:"category"`
	Date     *string  `json:"date"` // 2006-01-02
	Amount   *string  `json:"amount"`
	Tags     []string `json:"tags"`
}

// importRequest is the JSON carried in the multipart field "request".
type importRequest struct {
	OwnerID  uuid.UUID           `json:"owner_id"`
	Mapping  map[string]string   `json:"mapping"`
	Overlays map[int]overlayJSON `json:"overlays"`
}

// summaryResponse is the body of an import call.
type summaryResponse struct {
	TotalProcessed int             `json:"total_processed"`
	SuccessCount   int             `json:"success_count"`
	ErrorCount     int             `json:"error_count"`
	DuplicateCount int             `json:"duplicate_count"`
	NetAmount      string          `json:"net_amount"`
	NetDisplay     string          `json:"net_display"`
	NewMerchants   []string        `json:"new_merchants,omitempty"`
	NewTags        []string        `json:"new_tags,omitempty"`
	NewCategories  []string        `json:"new_categories,omitempty"`
	Warnings       []string        `json:"warnings,omitempty"`
	Rows           []rowResultJSON `json:"rows"`
}

type rowResultJSON struct {
	Line   int    `json:"line"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

func toSummaryResponse(s *importer.Summary) summaryResponse {
	rows := make([]rowResultJSON, 0, len(s.Rows))
	for _, r := range s.Rows {
		rows = append(rows, rowResultJSON{Line: r.Line, Status: string(r.Status), Error: r.Err})
	}
	return summaryResponse{
		TotalProcessed: s.TotalProcessed,
		SuccessCount:   s.SuccessCount,
		ErrorCount:     s.ErrorCount,
		DuplicateCount: s.DuplicateCount,
		NetAmount:      s.NetAmount.String(),
		NetDisplay:     money.FormatINR(s.NetAmount),
		NewMerchants:   s.NewMerchants,
		NewTags:        s.NewTags,
		NewCategories:  s.NewCategories,
		Warnings:       s.Warnings,
		Rows:           rows,
	}
}

// Import handles POST /v1/statements/import: multipart field "file" plus a
// JSON "request" field with owner, mapping, and per-row overlays.
func (h *Handler) Import(c *gin.Context) {
	data, filename, ok := h.readUpload(c)
	if !ok {
		return
	}

	var req importRequest
	if raw := c.PostForm("request"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &req); err != nil {
			c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request field: " + err.Error()})
			return
		}
	}
	if req.OwnerID == uuid.Nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "owner_id is required"})
		return
	}

	mapping := make(mapper.Mapping, len(req.Mapping))
	for field, header := range req.Mapping {
		mapping[mapper.Field(field)] = header
	}

	overlays, err := toOverlays(req.Overlays)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	summary, err := h.svc.Import(c.Request.Context(), req.OwnerID, data, filename, mapping, overlays)
	if err != nil {
		if errors.Is(err, importer.ErrCommitFailed) {
			c.JSON(http.StatusInternalServerError, toSummaryResponse(summary))
			return
		}
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, toSummaryResponse(summary))
}

func toOverlays(in map[int]overlayJSON) (map[int]importer.Overlay, error) {
	if len(in) == 0 {
		return nil, nil
	}
	out := make(map[int]importer.Overlay, len(in))
	for idx, o := range in {
		overlay := importer.Overlay{
			Merchant: o.Merchant,
			Category: o.Category,
			Tags:     o.Tags,
		}
		if o.Date != nil {
			t, err := time.Parse("2006-01-02", *o.Date)
			if err != nil {
				return nil, errors.New("invalid overlay date, want YYYY-MM-DD")
			}
			overlay.Date = &t
		}
		if o.Amount != nil {
			d, err := decimal.NewFromString(*o.Amount)
			if err != nil {
				return nil, errors.New("invalid overlay amount")
			}
			overlay.Amount = &d
		}
		out[idx] = overlay
	}
	return out, nil
}

// readUpload pulls the multipart "file" field. On failure it writes the
// error response and returns ok=false.
func (h *Handler) readUpload(c *gin.Context) (data []byte, filename string, ok bool) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "missing file upload"})
		return nil, "", false
	}
	if fileHeader.Size > maxUploadBytes {
		c.JSON(http.StatusRequestEntityTooLarge, errorResponse{Error: "file too large"})
		return nil, "", false
	}

	f, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "unreadable file upload"})
		return nil, "", false
	}
	defer f.Close()

	data, err = io.ReadAll(io.LimitReader(f, maxUploadBytes+1))
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "unreadable file upload"})
		return nil, "", false
	}
	return data, fileHeader.Filename, true
}

// writeError maps pipeline errors onto HTTP statuses. Unknown errors are
// logged and surfaced as opaque 500s.
func (h *Handler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, reader.ErrUnsupportedFormat):
		c.JSON(http.StatusUnsupportedMediaType, errorResponse{Error: err.Error()})
	case errors.Is(err, reader.ErrEmptyFile),
		errors.Is(err, reader.ErrNoContent),
		errors.Is(err, mapper.ErrMappingIncomplete):
		c.JSON(http.StatusUnprocessableEntity, errorResponse{Error: err.Error()})
	default:
		h.logger.Error("statement request failed", "error", err)
		c.JSON(http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}
