package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx/types"
	"go.uber.org/zap"

	"github.com/noah-isme/thesis-workflow-api/internal/dto"
	"github.com/noah-isme/thesis-workflow-api/internal/models"
	"github.com/noah-isme/thesis-workflow-api/internal/repository"
	appErrors "github.com/noah-isme/thesis-workflow-api/pkg/errors"
)

type documentStore interface {
	Create(ctx context.Context, doc *models.Document, initial *models.Version) error
	GetByID(ctx context.Context, id string) (*models.Document, error)
	List(ctx context.Context, filter models.DocumentFilter) ([]models.Document, int, error)
	ApplyChange(ctx context.Context, id string, mutate repository.DocumentMutator) (*models.Document, *models.Version, error)
	ListVersions(ctx context.Context, documentID string) ([]models.Version, error)
	LatestVersion(ctx context.Context, documentID string) (*models.Version, error)
}

type commentStore interface {
	Create(ctx context.Context, comment *models.Comment) error
	GetByID(ctx context.Context, id string) (*models.Comment, error)
	ListByDocument(ctx context.Context, documentID string) ([]models.Comment, error)
	MarkRead(ctx context.Context, id string) error
	CountUnread(ctx context.Context, documentID string, reader models.Actor) (int, error)
}

type departmentHeadDirectory interface {
	HeadsDepartment(ctx context.Context, email, department string) (bool, error)
	DepartmentsHeadedBy(ctx context.Context, email string) ([]string, error)
}

// DocumentScope selects which documents a listing covers.
type DocumentScope string

const (
	ScopeOwn        DocumentScope = "own"
	ScopeSupervised DocumentScope = "supervised"
	ScopeReviewing  DocumentScope = "reviewing"
	ScopeDepartment DocumentScope = "department"
	ScopeCommission DocumentScope = "commission"
)

// CommentInput describes a new comment.
type CommentInput struct {
	DocumentID      string
	FieldName       string
	ParentCommentID string
	Text            string
	AuthorRole      models.Actor
}

// WorkflowService enforces the document state machines and keeps the version
// and comment trail.
type WorkflowService struct {
	documents   documentStore
	comments    commentStore
	departments departmentHeadDirectory
	audit       auditLogger
	metrics     *MetricsService
	validator   *validator.Validate
	logger      *zap.Logger
	now         func() time.Time
}

// WorkflowServiceOption configures the service.
type WorkflowServiceOption func(*WorkflowService)

// WithWorkflowClock overrides the time source.
func WithWorkflowClock(now func() time.Time) WorkflowServiceOption {
	return func(s *WorkflowService) {
		if now != nil {
			s.now = now
		}
	}
}

// WithWorkflowMetrics records transitions and saved versions.
func WithWorkflowMetrics(metrics *MetricsService) WorkflowServiceOption {
	return func(s *WorkflowService) {
		s.metrics = metrics
	}
}

// WithWorkflowAudit enables the audit trail.
func WithWorkflowAudit(audit auditLogger) WorkflowServiceOption {
	return func(s *WorkflowService) {
		s.audit = audit
	}
}

// NewWorkflowService constructs the service with defaults.
func NewWorkflowService(documents documentStore, comments commentStore, departments departmentHeadDirectory, validate *validator.Validate, logger *zap.Logger, opts ...WorkflowServiceOption) *WorkflowService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	svc := &WorkflowService{
		documents:   documents,
		comments:    comments,
		departments: departments,
		validator:   validate,
		logger:      logger,
		now:         time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc
}

// CreateDocument opens a draft together with its first version.
func (s *WorkflowService) CreateDocument(ctx context.Context, req dto.CreateDocumentRequest, creator models.Viewer) (*models.Document, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid document payload")
	}
	wf, ok := models.WorkflowFor(req.Kind)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported document kind")
	}
	fields, err := normalizeFields(req.Fields, true)
	if err != nil {
		return nil, err
	}

	var author models.Actor
	switch {
	case models.SameEmail(creator.Email, req.StudentEmail):
		author = models.ActorStudent
	case models.SameEmail(creator.Email, req.SupervisorEmail) && creator.Capabilities.IsTeacher:
		author = models.ActorSupervisor
	case creator.Capabilities.IsAdmin:
		author = models.ActorSupervisor
	default:
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the student, the supervisor or an administrator may open a document")
	}

	doc := &models.Document{
		Kind:            req.Kind,
		StudentRecordID: strings.TrimSpace(req.StudentRecordID),
		StudentEmail:    models.NormalizeEmail(req.StudentEmail),
		SupervisorEmail: models.NormalizeEmail(req.SupervisorEmail),
		ReviewerEmail:   optionalEmail(req.ReviewerEmail),
		Department:      strings.ToUpper(strings.TrimSpace(req.Department)),
		Status:          wf.Initial,
		Fields:          fields,
		CreatedAt:       s.now().UTC(),
	}
	initial := &models.Version{
		AuthorRole:  author,
		AuthorEmail: creator.AuditName(),
		Comment:     "document created",
	}
	if err := s.documents.Create(ctx, doc, initial); err != nil {
		return nil, s.mapDocumentError(err, "failed to create document")
	}

	emitAudit(ctx, s.audit, s.logger, &models.AuditLog{
		Actor:      creator.AuditName(),
		Action:     models.AuditActionDocumentCreate,
		Resource:   string(doc.Kind),
		ResourceID: &doc.ID,
		NewValues:  marshalAudit(map[string]interface{}{"status": doc.Status, "department": doc.Department}),
	})
	return doc, nil
}

// ApplyTransition moves a document to requested on behalf of callerEmail
// acting as actor. The checks run against the locked row in this order: the
// document exists, the status is known for its kind, the workflow permits the
// edge for actor, and the caller holds that capacity on this document. The
// status change and its version commit together.
func (s *WorkflowService) ApplyTransition(ctx context.Context, documentID string, requested models.DocumentStatus, callerEmail string, actor models.Actor) (*models.Document, *models.Version, error) {
	if err := s.validator.Struct(dto.TransitionRequest{Status: requested, Actor: actor}); err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid transition payload")
	}
	kind := "unknown"
	var previous models.DocumentStatus

	doc, version, err := s.documents.ApplyChange(ctx, documentID, func(ctx context.Context, current models.Document) (*repository.DocumentChange, error) {
		kind = string(current.Kind)
		previous = current.Status

		wf, ok := models.WorkflowFor(current.Kind)
		if !ok {
			return nil, appErrors.Clone(appErrors.ErrInternal, "document has an unknown kind")
		}
		if !wf.HasState(requested) {
			return nil, appErrors.Clone(appErrors.ErrInvalidStatus, fmt.Sprintf("unknown status %q for %s", requested, current.Kind))
		}
		if !wf.Allows(actor, current.Status, requested) {
			return nil, appErrors.Clone(appErrors.ErrForbidden, fmt.Sprintf("%s may not move a document from %s to %s", actor, current.Status, requested))
		}
		holds, err := s.holdsCapacity(ctx, current, models.Viewer{Email: callerEmail}, actor)
		if err != nil {
			return nil, err
		}
		if !holds {
			return nil, appErrors.Clone(appErrors.ErrForbidden, fmt.Sprintf("caller is not the %s of this document", actor))
		}

		now := s.changeTime(current)
		submittedAt := current.SubmittedAt
		if requested == models.StatusSubmitted && submittedAt == nil {
			submittedAt = &now
		}
		return &repository.DocumentChange{
			Status:      requested,
			Fields:      current.Fields,
			UpdatedAt:   now,
			SubmittedAt: submittedAt,
			AuthorRole:  actor,
			AuthorEmail: models.NormalizeEmail(callerEmail),
			Comment:     fmt.Sprintf("status changed to %s", requested),
		}, nil
	})
	if err != nil {
		mapped := s.mapDocumentError(err, "failed to apply transition")
		s.metrics.RecordTransition(kind, string(requested), appErrors.FromError(mapped).Code)
		return nil, nil, mapped
	}

	s.metrics.RecordTransition(kind, string(requested), "applied")
	s.logger.Info("document transition applied",
		zap.String("document_id", doc.ID),
		zap.String("from", string(previous)),
		zap.String("to", string(doc.Status)),
		zap.String("actor", string(actor)),
		zap.Int("version", version.VersionNumber),
	)
	emitAudit(ctx, s.audit, s.logger, &models.AuditLog{
		Actor:      models.NormalizeEmail(callerEmail),
		Action:     models.AuditActionDocumentTransition,
		Resource:   kind,
		ResourceID: &doc.ID,
		OldValues:  marshalAudit(map[string]interface{}{"status": previous}),
		NewValues:  marshalAudit(map[string]interface{}{"status": doc.Status, "version": version.VersionNumber}),
	})
	return doc, version, nil
}

// SaveVersion appends a snapshot of fields without changing the status. It is
// open to the owning student and the assigned supervisor or reviewer in any status.
func (s *WorkflowService) SaveVersion(ctx context.Context, documentID string, fields json.RawMessage, comment, callerEmail string, actor models.Actor) (*models.Version, error) {
	if err := s.validator.Struct(dto.SaveVersionRequest{Fields: fields, Comment: comment, Actor: actor}); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid version payload")
	}
	switch actor {
	case models.ActorStudent, models.ActorSupervisor, models.ActorReviewer:
	default:
		return nil, appErrors.Clone(appErrors.ErrForbidden, fmt.Sprintf("%s may not edit document fields", actor))
	}
	normalized, err := normalizeFields(fields, false)
	if err != nil {
		return nil, err
	}
	comment = strings.TrimSpace(comment)
	if comment == "" {
		comment = "fields updated"
	}

	kind := ""
	_, version, err := s.documents.ApplyChange(ctx, documentID, func(ctx context.Context, current models.Document) (*repository.DocumentChange, error) {
		kind = string(current.Kind)
		holds, err := s.holdsCapacity(ctx, current, models.Viewer{Email: callerEmail}, actor)
		if err != nil {
			return nil, err
		}
		if !holds {
			return nil, appErrors.Clone(appErrors.ErrForbidden, fmt.Sprintf("caller is not the %s of this document", actor))
		}
		return &repository.DocumentChange{
			Status:      current.Status,
			Fields:      normalized,
			UpdatedAt:   s.changeTime(current),
			SubmittedAt: current.SubmittedAt,
			AuthorRole:  actor,
			AuthorEmail: models.NormalizeEmail(callerEmail),
			Comment:     comment,
		}, nil
	})
	if err != nil {
		return nil, s.mapDocumentError(err, "failed to save version")
	}

	s.metrics.RecordVersionSaved(kind)
	emitAudit(ctx, s.audit, s.logger, &models.AuditLog{
		Actor:      models.NormalizeEmail(callerEmail),
		Action:     models.AuditActionVersionSave,
		Resource:   kind,
		ResourceID: &version.DocumentID,
		NewValues:  marshalAudit(map[string]interface{}{"version": version.VersionNumber}),
	})
	return version, nil
}

// GetDocument returns a document the viewer may see, with the viewer's unread count.
func (s *WorkflowService) GetDocument(ctx context.Context, id string, viewer models.Viewer) (*dto.DocumentDetail, error) {
	doc, err := s.visibleDocument(ctx, id, viewer)
	if err != nil {
		return nil, err
	}
	detail := &dto.DocumentDetail{Document: *doc}
	if reader, ok := s.capacityOf(ctx, *doc, viewer); ok {
		unread, err := s.comments.CountUnread(ctx, doc.ID, reader)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count unread comments")
		}
		detail.UnreadComments = unread
	}
	return detail, nil
}

// ListDocuments returns the documents of one area for the viewer.
func (s *WorkflowService) ListDocuments(ctx context.Context, scope DocumentScope, query dto.DocumentQuery, viewer models.Viewer) ([]models.Document, *models.Pagination, error) {
	page, size := normalizePage(query.Page, query.PageSize)
	filter := models.DocumentFilter{
		Kind:   query.Kind,
		Status: query.Status,
		Limit:  size,
		Offset: (page - 1) * size,
	}
	caps := viewer.Capabilities

	switch scope {
	case ScopeOwn:
		switch {
		case caps.IsAdmin:
		case caps.IsStudent:
			filter.StudentEmail = viewer.Email
		case caps.IsTeacher:
			filter.SupervisorEmail = viewer.Email
		case caps.IsReviewer:
			filter.ReviewerEmail = viewer.Email
		default:
			return nil, nil, appErrors.ErrForbidden
		}
	case ScopeSupervised:
		filter.SupervisorEmail = viewer.Email
	case ScopeReviewing:
		filter.ReviewerEmail = viewer.Email
	case ScopeDepartment:
		departments, err := s.departments.DepartmentsHeadedBy(ctx, viewer.Email)
		if err != nil {
			return nil, nil, err
		}
		if len(departments) == 0 {
			return []models.Document{}, &models.Pagination{Page: page, PageSize: size}, nil
		}
		filter.Departments = departments
	case ScopeCommission:
		if viewer.GrantDepartment != "" {
			filter.Departments = []string{viewer.GrantDepartment}
		} else if !caps.IsCommission && !caps.IsAdmin {
			return nil, nil, appErrors.ErrForbidden
		}
	default:
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "unknown document scope")
	}
	if scope != ScopeCommission && scope != ScopeOwn && viewer.Email == "" {
		return nil, nil, appErrors.ErrAuthenticationRequired
	}

	docs, total, err := s.documents.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list documents")
	}
	return docs, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// ListVersions returns the history of a document, latest first.
func (s *WorkflowService) ListVersions(ctx context.Context, documentID string, viewer models.Viewer) ([]models.Version, error) {
	if _, err := s.visibleDocument(ctx, documentID, viewer); err != nil {
		return nil, err
	}
	versions, err := s.documents.ListVersions(ctx, documentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list versions")
	}
	return versions, nil
}

// LatestVersion returns the most recent version of a document.
func (s *WorkflowService) LatestVersion(ctx context.Context, documentID string, viewer models.Viewer) (*models.Version, error) {
	if _, err := s.visibleDocument(ctx, documentID, viewer); err != nil {
		return nil, err
	}
	version, err := s.documents.LatestVersion(ctx, documentID)
	if err != nil {
		return nil, s.mapDocumentError(err, "failed to load latest version")
	}
	return version, nil
}

// AddComment posts a comment. A parent must exist on the same document. New
// comments start unread for everybody but their author.
func (s *WorkflowService) AddComment(ctx context.Context, input CommentInput, viewer models.Viewer) (*models.Comment, error) {
	text := strings.TrimSpace(input.Text)
	req := dto.AddCommentRequest{FieldName: input.FieldName, ParentCommentID: input.ParentCommentID, Text: text, Actor: input.AuthorRole}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid comment payload")
	}
	doc, err := s.loadDocument(ctx, input.DocumentID)
	if err != nil {
		return nil, err
	}
	holds, err := s.holdsCapacity(ctx, *doc, viewer, input.AuthorRole)
	if err != nil {
		return nil, err
	}
	if !holds {
		return nil, appErrors.Clone(appErrors.ErrForbidden, fmt.Sprintf("caller may not comment as %s", input.AuthorRole))
	}

	comment := &models.Comment{
		DocumentID: doc.ID,
		AuthorRole: input.AuthorRole,
		AuthorName: authorName(viewer),
		Text:       text,
		Unread:     true,
		CreatedAt:  s.now().UTC(),
	}
	if field := strings.TrimSpace(input.FieldName); field != "" {
		comment.FieldName = &field
	}
	if parentID := strings.TrimSpace(input.ParentCommentID); parentID != "" {
		parent, err := s.comments.GetByID(ctx, parentID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "parent comment not found")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load parent comment")
		}
		if parent.DocumentID != doc.ID {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "parent comment not found on this document")
		}
		comment.ParentCommentID = &parent.ID
	}

	if err := s.comments.Create(ctx, comment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create comment")
	}
	return comment, nil
}

// ListComments returns the discussion of a document as threads, oldest first.
func (s *WorkflowService) ListComments(ctx context.Context, documentID string, viewer models.Viewer) ([]*models.CommentThread, error) {
	if _, err := s.visibleDocument(ctx, documentID, viewer); err != nil {
		return nil, err
	}
	comments, err := s.comments.ListByDocument(ctx, documentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list comments")
	}
	return BuildCommentThreads(comments), nil
}

// MarkCommentRead clears the unread flag. Repeating the call is harmless.
func (s *WorkflowService) MarkCommentRead(ctx context.Context, commentID string, viewer models.Viewer) error {
	comment, err := s.comments.GetByID(ctx, commentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "comment not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load comment")
	}
	if _, err := s.visibleDocument(ctx, comment.DocumentID, viewer); err != nil {
		return err
	}
	if !comment.Unread {
		return nil
	}
	if err := s.comments.MarkRead(ctx, commentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "comment not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark comment read")
	}
	return nil
}

// BuildCommentThreads nests replies under their parents. Replies whose parent
// is missing are kept as top-level threads.
func BuildCommentThreads(comments []models.Comment) []*models.CommentThread {
	nodes := make(map[string]*models.CommentThread, len(comments))
	for i := range comments {
		nodes[comments[i].ID] = &models.CommentThread{Comment: comments[i]}
	}
	roots := make([]*models.CommentThread, 0, len(comments))
	for i := range comments {
		node := nodes[comments[i].ID]
		if comments[i].ParentCommentID != nil {
			if parent, ok := nodes[*comments[i].ParentCommentID]; ok && parent != node {
				parent.Replies = append(parent.Replies, node)
				continue
			}
		}
		roots = append(roots, node)
	}
	return roots
}

func (s *WorkflowService) loadDocument(ctx context.Context, id string) (*models.Document, error) {
	doc, err := s.documents.GetByID(ctx, id)
	if err != nil {
		return nil, s.mapDocumentError(err, "failed to load document")
	}
	return doc, nil
}

func (s *WorkflowService) visibleDocument(ctx context.Context, id string, viewer models.Viewer) (*models.Document, error) {
	doc, err := s.loadDocument(ctx, id)
	if err != nil {
		return nil, err
	}
	if viewer.Capabilities.IsAdmin || viewer.Capabilities.IsCommission {
		return doc, nil
	}
	if _, ok := s.capacityOf(ctx, *doc, viewer); !ok {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "document is not accessible")
	}
	return doc, nil
}

// capacityOf returns the first capacity in which viewer participates in doc.
func (s *WorkflowService) capacityOf(ctx context.Context, doc models.Document, viewer models.Viewer) (models.Actor, bool) {
	for _, actor := range []models.Actor{
		models.ActorStudent,
		models.ActorSupervisor,
		models.ActorReviewer,
		models.ActorDepartmentHead,
		models.ActorCommission,
	} {
		holds, err := s.holdsCapacity(ctx, doc, viewer, actor)
		if err != nil {
			s.logger.Warn("capacity check failed", zap.String("document_id", doc.ID), zap.String("actor", string(actor)), zap.Error(err))
			continue
		}
		if holds {
			return actor, true
		}
	}
	return "", false
}

// holdsCapacity reports whether viewer is the student, supervisor, reviewer,
// department head or commission member of doc.
func (s *WorkflowService) holdsCapacity(ctx context.Context, doc models.Document, viewer models.Viewer, actor models.Actor) (bool, error) {
	switch actor {
	case models.ActorStudent:
		return models.SameEmail(viewer.Email, doc.StudentEmail), nil
	case models.ActorSupervisor:
		return models.SameEmail(viewer.Email, doc.SupervisorEmail), nil
	case models.ActorReviewer:
		return doc.ReviewerEmail != nil && models.SameEmail(viewer.Email, *doc.ReviewerEmail), nil
	case models.ActorDepartmentHead:
		if viewer.Email == "" || s.departments == nil {
			return false, nil
		}
		return s.departments.HeadsDepartment(ctx, viewer.Email, doc.Department)
	case models.ActorCommission:
		if viewer.GrantDepartment != "" {
			return strings.EqualFold(viewer.GrantDepartment, doc.Department), nil
		}
		return viewer.Capabilities.IsCommission, nil
	default:
		return false, nil
	}
}

// changeTime keeps version timestamps non-decreasing even if the clock steps back.
func (s *WorkflowService) changeTime(current models.Document) time.Time {
	now := s.now().UTC()
	if now.Before(current.UpdatedAt) {
		return current.UpdatedAt
	}
	return now
}

func (s *WorkflowService) mapDocumentError(err error, message string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sql.ErrNoRows):
		return appErrors.Clone(appErrors.ErrNotFound, "document not found")
	case errors.Is(err, repository.ErrVersionConflict):
		return appErrors.Wrap(err, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, "document was changed concurrently, retry")
	}
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		return appErr
	}
	s.logger.Error(message, zap.Error(err))
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
}

func normalizeFields(raw json.RawMessage, allowEmpty bool) (types.JSONText, error) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		if allowEmpty {
			return types.JSONText(`{}`), nil
		}
		return nil, appErrors.Clone(appErrors.ErrValidation, "fields are required")
	}
	var object map[string]interface{}
	if err := json.Unmarshal([]byte(trimmed), &object); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "fields must be a JSON object")
	}
	return types.JSONText(trimmed), nil
}

func optionalEmail(email string) *string {
	email = models.NormalizeEmail(email)
	if email == "" {
		return nil
	}
	return &email
}

func authorName(viewer models.Viewer) string {
	if name := strings.TrimSpace(viewer.DisplayName); name != "" {
		return name
	}
	if viewer.Email != "" {
		return viewer.Email
	}
	if viewer.GrantDepartment != "" {
		return "Commission (" + viewer.GrantDepartment + ")"
	}
	return "unknown"
}
