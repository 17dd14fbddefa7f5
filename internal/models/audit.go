package models

import "time"

// AuditAction constants represent actions to be logged.
const (
	AuditActionLogout             = "LOGOUT"
	AuditActionDocumentCreate     = "DOCUMENT_CREATE"
	AuditActionDocumentTransition = "DOCUMENT_TRANSITION"
	AuditActionVersionSave        = "VERSION_SAVE"
	AuditActionAccessCodeCreate   = "ACCESS_CODE_CREATE"
	AuditActionAccessCodeRevoke   = "ACCESS_CODE_REVOKE"
	AuditActionRoleAssign         = "ROLE_ASSIGN"
)

// AuditLog represents an audit trail record. Actor is an e-mail address or,
// for access-code sessions, "access-code:<department>".
type AuditLog struct {
	ID         string    `db:"id" json:"id"`
	Actor      string    `db:"actor" json:"actor"`
	Action     string    `db:"action" json:"action"`
	Resource   string    `db:"resource" json:"resource"`
	ResourceID *string   `db:"resource_id" json:"resourceId,omitempty"`
	OldValues  []byte    `db:"old_values" json:"oldValues,omitempty"`
	NewValues  []byte    `db:"new_values" json:"newValues,omitempty"`
	IPAddress  string    `db:"ip_address" json:"ipAddress"`
	UserAgent  string    `db:"user_agent" json:"userAgent"`
	RequestID  string    `db:"request_id" json:"requestId,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"createdAt"`
}

// AuditLogFilter constrains admin listings of the audit trail.
type AuditLogFilter struct {
	Actor    string
	Action   string
	Resource string
	Since    *time.Time
	Page     int
	PageSize int
}
