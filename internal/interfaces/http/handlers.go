package http

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/site-invoices/internal/application/service"
	"github.com/garyjia/site-invoices/internal/domain/entity"
)

// Handlers contains all HTTP request handlers
type Handlers struct {
	deps      Dependencies
	maxUpload int64
	logger    Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(deps Dependencies, maxUpload int64, logger Logger) *Handlers {
	return &Handlers{
		deps:      deps,
		maxUpload: maxUpload,
		logger:    logger,
	}
}

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Field   string      `json:"field,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status     string      `json:"status"`
	Timestamp  string      `json:"timestamp"`
	Components interface{} `json:"components,omitempty"`
}

// DraftResponse represents a working draft in API responses
type DraftResponse struct {
	Handle    string               `json:"handle"`
	Mode      string               `json:"mode"`
	Fields    entity.InvoiceFields `json:"fields"`
	PriorID   entity.Identity      `json:"prior_id"`
	Prefilled []string             `json:"prefilled,omitempty"`
}

// SubmitResponse represents a completed synchronization
type SubmitResponse struct {
	Invoice  *entity.Invoice `json:"invoice"`
	Decision string          `json:"decision"`
	Uploaded bool            `json:"uploaded"`
	Created  bool            `json:"created"`
}

// OpenDraftRequest opens a draft, optionally from an existing ledger entry,
// with initial field values
type OpenDraftRequest struct {
	FromID string `json:"from_id"`
	service.DraftEdit
}

// SetStatusRequest changes an invoice's status
type SetStatusRequest struct {
	Status entity.Status `json:"status" binding:"required"`
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	healthy, details := true, interface{}(nil)
	if h.deps.Health != nil {
		healthy, details = h.deps.Health()
	}

	response := HealthResponse{
		Status:     "healthy",
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
		Components: details,
	}
	status := http.StatusOK
	if !healthy {
		response.Status = "unhealthy"
		status = http.StatusServiceUnavailable
	}

	c.JSON(status, Response{
		Success: healthy,
		Data:    response,
	})
}

// OpenDraft handles POST /api/drafts
func (h *Handlers) OpenDraft(c *gin.Context) {
	var req OpenDraftRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			h.badRequest(c, "invalid request body", err)
			return
		}
	}

	var from entity.Identity
	if strings.TrimSpace(req.FromID) != "" {
		from = parseIdentity(req.FromID)
	}

	handle, d, err := h.deps.Drafts.Open(from)
	if err != nil {
		h.writeError(c, err)
		return
	}

	if hasEdits(req.DraftEdit) {
		d, err = h.deps.Drafts.Edit(handle, req.DraftEdit)
		if err != nil {
			h.writeError(c, err)
			return
		}
	}

	c.JSON(http.StatusCreated, Response{
		Success: true,
		Data:    toDraftResponse(handle, d, nil),
	})
}

// GetDraft handles GET /api/drafts/:handle
func (h *Handlers) GetDraft(c *gin.Context) {
	handle := c.Param("handle")

	d, err := h.deps.Drafts.Get(handle)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    toDraftResponse(handle, d, nil),
	})
}

// EditDraft handles PATCH /api/drafts/:handle
func (h *Handlers) EditDraft(c *gin.Context) {
	handle := c.Param("handle")

	var edit service.DraftEdit
	if err := c.ShouldBindJSON(&edit); err != nil {
		h.badRequest(c, "invalid request body", err)
		return
	}

	d, err := h.deps.Drafts.Edit(handle, edit)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    toDraftResponse(handle, d, nil),
	})
}

// DiscardDraft handles DELETE /api/drafts/:handle
func (h *Handlers) DiscardDraft(c *gin.Context) {
	if err := h.deps.Drafts.Discard(c.Param("handle")); err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true})
}

// AttachDocument handles POST /api/drafts/:handle/attachment
func (h *Handlers) AttachDocument(c *gin.Context) {
	handle := c.Param("handle")
	ctx := c.Request.Context()

	// Refuse before staging anything for an unknown draft
	if _, err := h.deps.Drafts.Get(handle); err != nil {
		h.writeError(c, err)
		return
	}

	if h.maxUpload > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUpload)
	}

	fh, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, Response{
				Success: false,
				Error:   fmt.Sprintf("attachment exceeds %d bytes", h.maxUpload),
			})
			return
		}
		h.badRequest(c, "multipart field \"file\" is required", err)
		return
	}

	f, err := fh.Open()
	if err != nil {
		h.badRequest(c, "unreadable attachment", err)
		return
	}
	defer f.Close()

	content, err := io.ReadAll(f)
	if err != nil {
		h.badRequest(c, "unreadable attachment", err)
		return
	}

	uri, err := h.deps.Capture.Stage(ctx, fh.Filename, content)
	if err != nil {
		h.writeError(c, err)
		return
	}

	d, err := h.deps.Drafts.Attach(handle, uri, "")
	if err != nil {
		h.writeError(c, err)
		return
	}

	d, prefilled := h.prefill(ctx, handle, uri, d)

	h.logger.Info("Attachment staged", "handle", handle, "uri", uri, "size", len(content))
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    toDraftResponse(handle, d, prefilled),
	})
}

// SubmitDraft handles POST /api/drafts/:handle/submit
func (h *Handlers) SubmitDraft(c *gin.Context) {
	handle := c.Param("handle")

	result, err := h.deps.Drafts.Submit(c.Request.Context(), handle)
	if err != nil {
		h.writeError(c, err)
		return
	}

	status := http.StatusOK
	if result.Decision.Kind == service.DecisionCreate {
		status = http.StatusCreated
	}

	c.JSON(status, Response{
		Success: true,
		Data: SubmitResponse{
			Invoice:  result.Invoice,
			Decision: result.Decision.Kind.String(),
			Uploaded: result.Decision.WithUpload,
			Created:  result.Created,
		},
	})
}

// ListInvoices handles GET /api/invoices
func (h *Handlers) ListInvoices(c *gin.Context) {
	ctx := c.Request.Context()
	invoices := h.deps.Ledger.List(ctx)

	if status := c.Query("status"); status != "" {
		filtered := invoices[:0]
		for _, inv := range invoices {
			if string(inv.Status) == status {
				filtered = append(filtered, inv)
			}
		}
		invoices = filtered
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    invoices,
	})
}

// GetInvoice handles GET /api/invoices/:id
func (h *Handlers) GetInvoice(c *gin.Context) {
	id := parseIdentity(c.Param("id"))

	inv, ok := h.deps.Ledger.Get(c.Request.Context(), id)
	if !ok {
		h.writeError(c, entity.ErrInvoiceNotFound)
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    inv,
	})
}

// SetStatus handles PUT /api/invoices/:id/status
func (h *Handlers) SetStatus(c *gin.Context) {
	id := parseIdentity(c.Param("id"))

	var req SetStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "status is required", err)
		return
	}

	inv, err := h.deps.Ledger.SetStatus(c.Request.Context(), id, req.Status)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    inv,
	})
}

// RemoveInvoice handles DELETE /api/invoices/:id
func (h *Handlers) RemoveInvoice(c *gin.Context) {
	id := parseIdentity(c.Param("id"))

	if !h.deps.Ledger.Remove(c.Request.Context(), id) {
		h.writeError(c, entity.ErrInvoiceNotFound)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true})
}

// Totals handles GET /api/invoices/totals
func (h *Handlers) Totals(c *gin.Context) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    h.deps.Ledger.Totals(c.Request.Context()),
	})
}

// Refresh handles POST /api/invoices/refresh
func (h *Handlers) Refresh(c *gin.Context) {
	ctx := c.Request.Context()
	if err := h.deps.Ledger.Refresh(ctx); err != nil {
		h.logger.Error("Failed to refresh ledger", "error", err)
		c.JSON(http.StatusBadGateway, Response{
			Success: false,
			Error:   "failed to reload invoices from the store",
		})
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    h.deps.Ledger.Totals(ctx),
	})
}

// Export handles GET /api/invoices/export
func (h *Handlers) Export(c *gin.Context) {
	var buf bytes.Buffer
	if err := h.deps.Ledger.Export(c.Request.Context(), &buf); err != nil {
		h.logger.Error("Ledger export failed", "error", err)
		c.JSON(http.StatusInternalServerError, Response{
			Success: false,
			Error:   "export failed",
		})
		return
	}

	fileName := fmt.Sprintf("invoices-%s.xlsx", time.Now().UTC().Format("20060102"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", fileName))
	c.Data(http.StatusOK, h.deps.Ledger.ExportContentType(), buf.Bytes())
}

// GetAttachment handles GET /api/attachments?uri=...
func (h *Handlers) GetAttachment(c *gin.Context) {
	uri := strings.TrimSpace(c.Query("uri"))
	if uri == "" {
		c.JSON(http.StatusBadRequest, Response{
			Success: false,
			Error:   "uri is required",
		})
		return
	}

	file, err := h.deps.Attachments.OpenAttachment(c.Request.Context(), uri)
	if err != nil {
		h.logger.Error("Failed to open attachment", "uri", uri, "error", err)
		c.JSON(http.StatusNotFound, Response{
			Success: false,
			Error:   "attachment not found",
		})
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("inline; filename=%q", file.FileName))
	c.Data(http.StatusOK, file.MimeType, file.Content)
}

// prefill reads the freshly staged document and fills empty draft fields.
// Extraction failures never fail the attachment.
func (h *Handlers) prefill(ctx context.Context, handle, uri string, d *service.Draft) (*service.Draft, []string) {
	if h.deps.Extractor == nil {
		return d, nil
	}

	file, err := h.deps.Capture.Resolve(ctx, uri)
	if err != nil {
		h.logger.Error("Failed to read staged attachment for prefill", "uri", uri, "error", err)
		return d, nil
	}

	fields, err := h.deps.Extractor.Extract(ctx, file)
	if err != nil {
		h.logger.Error("Prefill extraction failed", "handle", handle, "error", err)
		return d, nil
	}

	updated, applied, err := h.deps.Drafts.Prefill(handle, fields)
	if err != nil {
		h.logger.Error("Failed to apply prefill", "handle", handle, "error", err)
		return d, nil
	}
	return updated, applied
}

// writeError maps domain and service errors to HTTP responses
func (h *Handlers) writeError(c *gin.Context, err error) {
	var syncErr *entity.SyncError
	var validationErr *entity.ValidationError

	switch {
	case errors.As(err, &syncErr):
		h.logger.Error("Synchronization failed", "path", c.Request.URL.Path, "error", err)
		c.JSON(http.StatusBadGateway, Response{Success: false, Error: err.Error()})
	case errors.As(err, &validationErr):
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: err.Error(), Field: validationErr.Field})
	case errors.Is(err, service.ErrSubmissionInProgress):
		c.JSON(http.StatusConflict, Response{Success: false, Error: err.Error()})
	case errors.Is(err, service.ErrDraftNotFound), errors.Is(err, entity.ErrInvoiceNotFound):
		c.JSON(http.StatusNotFound, Response{Success: false, Error: err.Error()})
	case errors.Is(err, entity.ErrCaptureCancelled):
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "no document was provided"})
	default:
		h.logger.Error("Request failed", "path", c.Request.URL.Path, "error", err)
		c.JSON(http.StatusInternalServerError, Response{Success: false, Error: "internal error"})
	}
}

func (h *Handlers) badRequest(c *gin.Context, msg string, err error) {
	h.logger.Error("Invalid request", "path", c.Request.URL.Path, "error", err)
	c.JSON(http.StatusBadRequest, Response{
		Success: false,
		Error:   msg,
	})
}

// parseIdentity accepts the "kind:value" form produced by Identity.String
// or a bare value, which names a confirmed record
func parseIdentity(raw string) entity.Identity {
	raw = strings.TrimSpace(raw)
	if v, ok := strings.CutPrefix(raw, entity.IdentityDraft.String()+":"); ok {
		return entity.DraftID(v)
	}
	if v, ok := strings.CutPrefix(raw, entity.IdentityConfirmed.String()+":"); ok {
		return entity.ConfirmedID(v)
	}
	return entity.ConfirmedID(raw)
}

func hasEdits(e service.DraftEdit) bool {
	return e.VendorName != nil || e.InvoiceNumber != nil || e.Amount != nil ||
		e.TaxAmount != nil || e.IssueDate != nil || e.DueDate != nil || e.ClearDueDate ||
		e.ProjectID != nil || e.ProjectName != nil || e.Category != nil ||
		e.Status != nil || e.Notes != nil
}

func toDraftResponse(handle string, d *service.Draft, prefilled []string) DraftResponse {
	resp := DraftResponse{
		Handle:    handle,
		Mode:      "create",
		Fields:    d.Fields,
		Prefilled: prefilled,
	}
	if d.Prior != nil {
		resp.Mode = "edit"
		resp.PriorID = d.Prior.ID
	}
	return resp
}
