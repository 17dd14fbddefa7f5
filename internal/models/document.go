package models

import (
	"time"

	"github.com/jmoiron/sqlx/types"
)

// DocumentKind tags which versioned business record a document is.
type DocumentKind string

const (
	DocumentKindAssignment        DocumentKind = "assignment"
	DocumentKindTopicRegistration DocumentKind = "topic_registration"
)

// DocumentStatus is a workflow state. The legal set depends on the kind.
type DocumentStatus string

const (
	StatusDraft             DocumentStatus = "draft"
	StatusSubmitted         DocumentStatus = "submitted"
	StatusApproved          DocumentStatus = "approved"
	StatusRevisionRequested DocumentStatus = "revision_requested"
	StatusNeedsRevision     DocumentStatus = "needs_revision"
	StatusHeadApproved      DocumentStatus = "head_approved"
	StatusRejected          DocumentStatus = "rejected"
)

// Actor is the capacity in which a caller acts on a document.
type Actor string

const (
	ActorStudent        Actor = "student"
	ActorSupervisor     Actor = "supervisor"
	ActorReviewer       Actor = "reviewer"
	ActorDepartmentHead Actor = "department_head"
	ActorCommission     Actor = "commission"
)

// Document is the shared shape of project assignments and topic registrations.
type Document struct {
	ID              string         `db:"id" json:"id"`
	Kind            DocumentKind   `db:"kind" json:"kind"`
	StudentRecordID string         `db:"student_record_id" json:"studentRecordId"`
	StudentEmail    string         `db:"student_email" json:"studentEmail"`
	SupervisorEmail string         `db:"supervisor_email" json:"supervisorEmail"`
	ReviewerEmail   *string        `db:"reviewer_email" json:"reviewerEmail,omitempty"`
	Department      string         `db:"department" json:"department"`
	Status          DocumentStatus `db:"status" json:"status"`
	CurrentVersion  int            `db:"current_version" json:"currentVersion"`
	Fields          types.JSONText `db:"fields" json:"fields"`
	CreatedAt       time.Time      `db:"created_at" json:"createdAt"`
	UpdatedAt       time.Time      `db:"updated_at" json:"updatedAt"`
	SubmittedAt     *time.Time     `db:"submitted_at" json:"submittedAt,omitempty"`
}

// Version is an immutable snapshot of a document's fields.
type Version struct {
	ID            string         `db:"id" json:"id"`
	DocumentID    string         `db:"document_id" json:"documentId"`
	VersionNumber int            `db:"version_number" json:"versionNumber"`
	Status        DocumentStatus `db:"status" json:"status"`
	Fields        types.JSONText `db:"fields" json:"fields"`
	AuthorRole    Actor          `db:"author_role" json:"authorRole"`
	AuthorEmail   string         `db:"author_email" json:"authorEmail"`
	Comment       string         `db:"comment" json:"comment"`
	CreatedAt     time.Time      `db:"created_at" json:"createdAt"`
}

// Comment is a discussion entry on a document, optionally scoped to a form
// field and optionally replying to another comment on the same document.
type Comment struct {
	ID              string    `db:"id" json:"id"`
	DocumentID      string    `db:"document_id" json:"documentId"`
	FieldName       *string   `db:"field_name" json:"fieldName,omitempty"`
	ParentCommentID *string   `db:"parent_comment_id" json:"parentCommentId,omitempty"`
	AuthorRole      Actor     `db:"author_role" json:"authorRole"`
	AuthorName      string    `db:"author_name" json:"authorName"`
	Text            string    `db:"text" json:"text"`
	Unread          bool      `db:"unread" json:"unread"`
	CreatedAt       time.Time `db:"created_at" json:"createdAt"`
}

// CommentThread is a comment with its replies, oldest first.
type CommentThread struct {
	Comment
	Replies []*CommentThread `json:"replies,omitempty"`
}

// DocumentFilter constrains document listings.
type DocumentFilter struct {
	Kind            DocumentKind
	Status          []DocumentStatus
	StudentEmail    string
	SupervisorEmail string
	ReviewerEmail   string
	Departments     []string
	Limit           int
	Offset          int
}
