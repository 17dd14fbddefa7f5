package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/thesis-workflow-api/internal/dto"
	"github.com/noah-isme/thesis-workflow-api/internal/models"
	appErrors "github.com/noah-isme/thesis-workflow-api/pkg/errors"
	"github.com/noah-isme/thesis-workflow-api/pkg/response"
)

type roleAssigner interface {
	Assign(ctx context.Context, req dto.AssignRoleRequest, assignedBy string) (*models.RoleAssignment, error)
}

type auditLister interface {
	List(ctx context.Context, query dto.AuditLogQuery) ([]models.AuditLog, *models.Pagination, error)
}

// AdminHandler covers role assignments and the audit trail.
type AdminHandler struct {
	roles roleAssigner
	audit auditLister
}

// NewAdminHandler constructs the handler.
func NewAdminHandler(roles roleAssigner, audit auditLister) *AdminHandler {
	return &AdminHandler{roles: roles, audit: audit}
}

// AssignRole godoc
// @Summary Assign or clear the role of an address
// @Tags Admin
// @Accept json
// @Produce json
// @Param payload body dto.AssignRoleRequest true "Address and role; an empty role clears the assignment"
// @Success 200 {object} response.Envelope
// @Router /admin/role-assignments [put]
func (h *AdminHandler) AssignRole(c *gin.Context) {
	viewer, ok := viewerFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrAuthenticationRequired)
		return
	}
	var req dto.AssignRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid role assignment payload"))
		return
	}
	assignment, err := h.roles.Assign(c.Request.Context(), req, viewer.Email)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, assignment, nil)
}

// AuditLogs godoc
// @Summary List audit log entries
// @Tags Admin
// @Produce json
// @Param actor query string false "Actor e-mail"
// @Param action query string false "Action"
// @Param resource query string false "Resource"
// @Param since query string false "RFC3339 timestamp"
// @Success 200 {object} response.Envelope
// @Router /admin/audit-logs [get]
func (h *AdminHandler) AuditLogs(c *gin.Context) {
	page, size := parsePaging(c)
	query := dto.AuditLogQuery{
		Actor:    strings.TrimSpace(c.Query("actor")),
		Action:   strings.ToUpper(strings.TrimSpace(c.Query("action"))),
		Resource: strings.TrimSpace(c.Query("resource")),
		Page:     page,
		PageSize: size,
	}
	if raw := c.Query("since"); raw != "" {
		since, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "since must be an RFC3339 timestamp"))
			return
		}
		query.Since = &since
	}
	logs, pagination, err := h.audit.List(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, logs, pagination)
}
