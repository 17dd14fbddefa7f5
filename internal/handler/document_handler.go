package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/thesis-workflow-api/internal/dto"
	"github.com/noah-isme/thesis-workflow-api/internal/middleware"
	"github.com/noah-isme/thesis-workflow-api/internal/models"
	"github.com/noah-isme/thesis-workflow-api/internal/service"
	appErrors "github.com/noah-isme/thesis-workflow-api/pkg/errors"
	"github.com/noah-isme/thesis-workflow-api/pkg/response"
)

type documentService interface {
	CreateDocument(ctx context.Context, req dto.CreateDocumentRequest, creator models.Viewer) (*models.Document, error)
	GetDocument(ctx context.Context, id string, viewer models.Viewer) (*dto.DocumentDetail, error)
	ListDocuments(ctx context.Context, scope service.DocumentScope, query dto.DocumentQuery, viewer models.Viewer) ([]models.Document, *models.Pagination, error)
	ApplyTransition(ctx context.Context, documentID string, requested models.DocumentStatus, callerEmail string, actor models.Actor) (*models.Document, *models.Version, error)
	SaveVersion(ctx context.Context, documentID string, fields json.RawMessage, comment, callerEmail string, actor models.Actor) (*models.Version, error)
	ListVersions(ctx context.Context, documentID string, viewer models.Viewer) ([]models.Version, error)
	LatestVersion(ctx context.Context, documentID string, viewer models.Viewer) (*models.Version, error)
}

type historyExporter interface {
	ExportHistory(ctx context.Context, documentID string, format service.ExportFormat, viewer models.Viewer) (*dto.HistoryExport, error)
}

// DocumentHandler exposes assignments and topic registrations.
type DocumentHandler struct {
	service  documentService
	exporter historyExporter
}

// NewDocumentHandler constructs the handler.
func NewDocumentHandler(service documentService, exporter historyExporter) *DocumentHandler {
	return &DocumentHandler{service: service, exporter: exporter}
}

// Create godoc
// @Summary Open a new document draft
// @Tags Documents
// @Accept json
// @Produce json
// @Param payload body dto.CreateDocumentRequest true "Document payload"
// @Success 201 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /documents [post]
func (h *DocumentHandler) Create(c *gin.Context) {
	viewer, ok := viewerFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrAuthenticationRequired)
		return
	}
	var req dto.CreateDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid document payload"))
		return
	}
	doc, err := h.service.CreateDocument(c.Request.Context(), req, viewer)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, doc)
}

// List godoc
// @Summary List the caller's documents
// @Tags Documents
// @Produce json
// @Param kind query string false "assignment or topic_registration"
// @Param status query string false "Comma separated statuses"
// @Param page query int false "Page"
// @Param pageSize query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /documents [get]
func (h *DocumentHandler) List(c *gin.Context) {
	h.list(c, service.ScopeOwn)
}

// ListSupervised godoc
// @Summary List documents supervised by the caller
// @Tags Areas
// @Produce json
// @Param status query string false "Comma separated statuses"
// @Success 200 {object} response.Envelope
// @Router /teacher/documents [get]
func (h *DocumentHandler) ListSupervised(c *gin.Context) {
	h.list(c, service.ScopeSupervised)
}

// ListReviewing godoc
// @Summary List documents assigned to the caller for review
// @Tags Areas
// @Produce json
// @Param status query string false "Comma separated statuses"
// @Success 200 {object} response.Envelope
// @Router /reviewer/documents [get]
func (h *DocumentHandler) ListReviewing(c *gin.Context) {
	h.list(c, service.ScopeReviewing)
}

// ListDepartment godoc
// @Summary List documents of the departments the caller heads
// @Tags Areas
// @Produce json
// @Param status query string false "Comma separated statuses"
// @Success 200 {object} response.Envelope
// @Router /department/documents [get]
func (h *DocumentHandler) ListDepartment(c *gin.Context) {
	h.list(c, service.ScopeDepartment)
}

// ListCommission godoc
// @Summary List documents visible to the commission
// @Tags Areas
// @Produce json
// @Param code query string false "Temporary access code"
// @Param status query string false "Comma separated statuses"
// @Success 200 {object} response.Envelope
// @Router /commission/documents [get]
func (h *DocumentHandler) ListCommission(c *gin.Context) {
	h.list(c, service.ScopeCommission)
}

func (h *DocumentHandler) list(c *gin.Context, scope service.DocumentScope) {
	viewer, ok := viewerFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrAuthenticationRequired)
		return
	}
	page, size := parsePaging(c)
	query := dto.DocumentQuery{
		Kind:     models.DocumentKind(strings.TrimSpace(c.Query("kind"))),
		Status:   parseStatuses(c.Query("status")),
		Page:     page,
		PageSize: size,
	}
	docs, pagination, err := h.service.ListDocuments(c.Request.Context(), scope, query, viewer)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetMeta(c, "scope", string(scope))
	response.JSON(c, http.StatusOK, docs, pagination, middleware.ExtractMeta(c))
}

// Get godoc
// @Summary Get a document
// @Tags Documents
// @Produce json
// @Param id path string true "Document ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /documents/{id} [get]
func (h *DocumentHandler) Get(c *gin.Context) {
	viewer, ok := viewerFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrAuthenticationRequired)
		return
	}
	detail, err := h.service.GetDocument(c.Request.Context(), c.Param("id"), viewer)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// Transition godoc
// @Summary Change the status of a document
// @Tags Documents
// @Accept json
// @Produce json
// @Param id path string true "Document ID"
// @Param payload body dto.TransitionRequest true "Requested status and capacity"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /documents/{id}/transitions [post]
func (h *DocumentHandler) Transition(c *gin.Context) {
	viewer, ok := viewerFromContext(c)
	if !ok || viewer.Email == "" {
		response.Error(c, appErrors.ErrAuthenticationRequired)
		return
	}
	var req dto.TransitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid transition payload"))
		return
	}
	status := models.DocumentStatus(strings.ToLower(strings.TrimSpace(string(req.Status))))
	doc, version, err := h.service.ApplyTransition(c.Request.Context(), c.Param("id"), status, viewer.Email, req.Actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.TransitionResult{Document: *doc, Version: *version}, nil)
}

// SaveVersion godoc
// @Summary Save the document fields as a new version
// @Tags Documents
// @Accept json
// @Produce json
// @Param id path string true "Document ID"
// @Param payload body dto.SaveVersionRequest true "Fields snapshot"
// @Success 201 {object} response.Envelope
// @Router /documents/{id}/versions [post]
func (h *DocumentHandler) SaveVersion(c *gin.Context) {
	viewer, ok := viewerFromContext(c)
	if !ok || viewer.Email == "" {
		response.Error(c, appErrors.ErrAuthenticationRequired)
		return
	}
	var req dto.SaveVersionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid version payload"))
		return
	}
	version, err := h.service.SaveVersion(c.Request.Context(), c.Param("id"), req.Fields, req.Comment, viewer.Email, req.Actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, version)
}

// ListVersions godoc
// @Summary List the version history of a document
// @Tags Documents
// @Produce json
// @Param id path string true "Document ID"
// @Success 200 {object} response.Envelope
// @Router /documents/{id}/versions [get]
func (h *DocumentHandler) ListVersions(c *gin.Context) {
	viewer, ok := viewerFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrAuthenticationRequired)
		return
	}
	versions, err := h.service.ListVersions(c.Request.Context(), c.Param("id"), viewer)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, versions, nil)
}

// LatestVersion godoc
// @Summary Get the latest version of a document
// @Tags Documents
// @Produce json
// @Param id path string true "Document ID"
// @Success 200 {object} response.Envelope
// @Router /documents/{id}/versions/latest [get]
func (h *DocumentHandler) LatestVersion(c *gin.Context) {
	viewer, ok := viewerFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrAuthenticationRequired)
		return
	}
	version, err := h.service.LatestVersion(c.Request.Context(), c.Param("id"), viewer)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, version, nil)
}

// ExportCSV godoc
// @Summary Download the version history as CSV
// @Tags Documents
// @Produce text/csv
// @Param id path string true "Document ID"
// @Success 200 {file} file
// @Router /documents/{id}/history.csv [get]
func (h *DocumentHandler) ExportCSV(c *gin.Context) {
	h.export(c, service.ExportFormatCSV)
}

// ExportPDF godoc
// @Summary Download the version history as PDF
// @Tags Documents
// @Produce application/pdf
// @Param id path string true "Document ID"
// @Success 200 {file} file
// @Router /documents/{id}/history.pdf [get]
func (h *DocumentHandler) ExportPDF(c *gin.Context) {
	h.export(c, service.ExportFormatPDF)
}

func (h *DocumentHandler) export(c *gin.Context, format service.ExportFormat) {
	if h.exporter == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "history export not configured"))
		return
	}
	viewer, ok := viewerFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrAuthenticationRequired)
		return
	}
	result, err := h.exporter.ExportHistory(c.Request.Context(), c.Param("id"), format, viewer)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, result.Filename, result.ContentType, result.Content)
}
