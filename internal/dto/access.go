package dto

import (
	"time"

	"github.com/noah-isme/thesis-workflow-api/internal/models"
)

// CreateAccessCodeRequest asks for a new commission access code.
type CreateAccessCodeRequest struct {
	Department string     `json:"department" validate:"required,alphanum,min=2,max=16"`
	ExpiresAt  *time.Time `json:"expiresAt"`
}

// IssuedAccessCode carries the plain code exactly once, at creation time.
type IssuedAccessCode struct {
	Code  string                 `json:"code"`
	Grant models.TemporaryAccess `json:"grant"`
}

// AccessCodeQuery mirrors admin listing filters.
type AccessCodeQuery struct {
	Department string
	ActiveOnly bool
	Page       int
	PageSize   int
}

// AssignRoleRequest sets or clears an administrator-maintained role.
type AssignRoleRequest struct {
	Email string      `json:"email" validate:"required,email"`
	Role  models.Role `json:"role" validate:"omitempty,oneof=student teacher department-head reviewer commission admin"`
}

// AuditLogQuery mirrors admin audit listing filters.
type AuditLogQuery struct {
	Actor    string
	Action   string
	Resource string
	Since    *time.Time
	Page     int
	PageSize int
}
