package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/thesis-workflow-api/internal/dto"
	"github.com/noah-isme/thesis-workflow-api/internal/models"
	appErrors "github.com/noah-isme/thesis-workflow-api/pkg/errors"
	"github.com/noah-isme/thesis-workflow-api/pkg/response"
)

type accessCodeService interface {
	Create(ctx context.Context, req dto.CreateAccessCodeRequest, createdBy string) (*dto.IssuedAccessCode, error)
	List(ctx context.Context, query dto.AccessCodeQuery) ([]models.TemporaryAccess, *models.Pagination, error)
	Deactivate(ctx context.Context, id, actor string) error
}

// AccessCodeHandler lets administrators manage commission access codes.
type AccessCodeHandler struct {
	service accessCodeService
}

// NewAccessCodeHandler constructs the handler.
func NewAccessCodeHandler(service accessCodeService) *AccessCodeHandler {
	return &AccessCodeHandler{service: service}
}

// Create godoc
// @Summary Issue a temporary access code
// @Tags Admin
// @Accept json
// @Produce json
// @Param payload body dto.CreateAccessCodeRequest true "Department and optional expiry"
// @Success 201 {object} response.Envelope
// @Router /admin/access-codes [post]
func (h *AccessCodeHandler) Create(c *gin.Context) {
	viewer, ok := viewerFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrAuthenticationRequired)
		return
	}
	var req dto.CreateAccessCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid access code payload"))
		return
	}
	issued, err := h.service.Create(c.Request.Context(), req, viewer.Email)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, issued)
}

// List godoc
// @Summary List temporary access codes
// @Tags Admin
// @Produce json
// @Param department query string false "Department code"
// @Param active query bool false "Only usable codes"
// @Success 200 {object} response.Envelope
// @Router /admin/access-codes [get]
func (h *AccessCodeHandler) List(c *gin.Context) {
	page, size := parsePaging(c)
	grants, pagination, err := h.service.List(c.Request.Context(), dto.AccessCodeQuery{
		Department: strings.TrimSpace(c.Query("department")),
		ActiveOnly: c.Query("active") == "true",
		Page:       page,
		PageSize:   size,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, grants, pagination)
}

// Deactivate godoc
// @Summary Revoke a temporary access code
// @Tags Admin
// @Param id path string true "Access code ID"
// @Success 204
// @Router /admin/access-codes/{id} [delete]
func (h *AccessCodeHandler) Deactivate(c *gin.Context) {
	viewer, ok := viewerFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrAuthenticationRequired)
		return
	}
	if err := h.service.Deactivate(c.Request.Context(), c.Param("id"), viewer.Email); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
