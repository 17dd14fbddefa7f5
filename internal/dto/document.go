package dto

import (
	"encoding/json"
	"time"

	"github.com/noah-isme/thesis-workflow-api/internal/models"
)

// CreateDocumentRequest opens a new draft for a student.
type CreateDocumentRequest struct {
	Kind            models.DocumentKind `json:"kind" validate:"required,oneof=assignment topic_registration"`
	StudentRecordID string              `json:"studentRecordId" validate:"required"`
	StudentEmail    string              `json:"studentEmail" validate:"required,email"`
	SupervisorEmail string              `json:"supervisorEmail" validate:"required,email"`
	ReviewerEmail   string              `json:"reviewerEmail" validate:"omitempty,email"`
	Department      string              `json:"department" validate:"required,max=16"`
	Fields          json.RawMessage     `json:"fields"`
}

// TransitionRequest asks for a status change in a given capacity.
type TransitionRequest struct {
	Status models.DocumentStatus `json:"status" validate:"required"`
	Actor  models.Actor          `json:"actor" validate:"required,oneof=student supervisor reviewer department_head commission"`
}

// SaveVersionRequest appends a snapshot of the editable fields.
type SaveVersionRequest struct {
	Fields  json.RawMessage `json:"fields"`
	Comment string          `json:"comment"`
	Actor   models.Actor    `json:"actor" validate:"required,oneof=student supervisor reviewer department_head commission"`
}

// AddCommentRequest posts a discussion entry, optionally scoped to a field or replying to another comment.
type AddCommentRequest struct {
	FieldName       string       `json:"fieldName"`
	ParentCommentID string       `json:"parentCommentId"`
	Text            string       `json:"text" validate:"required"`
	Actor           models.Actor `json:"actor" validate:"required,oneof=student supervisor reviewer department_head commission"`
}

// DocumentQuery mirrors supported listing filters.
type DocumentQuery struct {
	Kind     models.DocumentKind
	Status   []models.DocumentStatus
	Page     int
	PageSize int
}

// DocumentDetail is a document together with its unread comment count.
type DocumentDetail struct {
	models.Document
	UnreadComments int `json:"unreadComments"`
}

// TransitionResult is returned after a successful status change.
type TransitionResult struct {
	Document models.Document `json:"document"`
	Version  models.Version  `json:"version"`
}

// HistoryExport is a rendered version history ready to be streamed.
type HistoryExport struct {
	Filename    string
	ContentType string
	Content     []byte
	GeneratedAt time.Time
}
