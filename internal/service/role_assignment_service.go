package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/thesis-workflow-api/internal/dto"
	"github.com/noah-isme/thesis-workflow-api/internal/models"
	appErrors "github.com/noah-isme/thesis-workflow-api/pkg/errors"
)

type roleAssignmentStore interface {
	FindByEmail(ctx context.Context, email string) (*models.RoleAssignment, error)
	Upsert(ctx context.Context, assignment models.RoleAssignment) error
	Delete(ctx context.Context, email string) error
}

// RoleAssignmentService manages administrator-assigned roles. An assigned
// role replaces the one derived from the e-mail address.
type RoleAssignmentService struct {
	repo      roleAssignmentStore
	audit     auditLogger
	validator *validator.Validate
	logger    *zap.Logger
}

// NewRoleAssignmentService constructs the service.
func NewRoleAssignmentService(repo roleAssignmentStore, audit auditLogger, validate *validator.Validate, logger *zap.Logger) *RoleAssignmentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &RoleAssignmentService{repo: repo, audit: audit, validator: validate, logger: logger}
}

// AssignedRole returns the assigned role for email, or "" when there is none.
func (s *RoleAssignmentService) AssignedRole(ctx context.Context, email string) (models.Role, error) {
	assignment, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", appErrors.Wrap(err, appErrors.ErrUpstreamUnavailable.Code, appErrors.ErrUpstreamUnavailable.Status, "role assignment store unavailable")
	}
	if !assignment.Role.Valid() {
		return "", nil
	}
	return assignment.Role, nil
}

// Assign sets the role of an address. An empty role removes the assignment.
func (s *RoleAssignmentService) Assign(ctx context.Context, req dto.AssignRoleRequest, assignedBy string) (*models.RoleAssignment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid role assignment payload")
	}
	assignment := models.RoleAssignment{
		Email:      models.NormalizeEmail(req.Email),
		Role:       req.Role,
		AssignedBy: models.NormalizeEmail(assignedBy),
	}

	if req.Role == "" {
		if err := s.repo.Delete(ctx, assignment.Email); err != nil && !errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to remove role assignment")
		}
	} else if err := s.repo.Upsert(ctx, assignment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save role assignment")
	}

	emitAudit(ctx, s.audit, s.logger, &models.AuditLog{
		Actor:      assignment.AssignedBy,
		Action:     models.AuditActionRoleAssign,
		Resource:   "role_assignment",
		ResourceID: &assignment.Email,
		NewValues:  marshalAudit(map[string]interface{}{"role": assignment.Role}),
	})
	return &assignment, nil
}
