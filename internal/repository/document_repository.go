package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"

	"github.com/noah-isme/thesis-workflow-api/internal/models"
	"github.com/noah-isme/thesis-workflow-api/pkg/database"
)

// ErrVersionConflict is returned when another writer advanced the document
// between the lock and the write, or a version number was taken twice.
var ErrVersionConflict = errors.New("document version conflict")

const documentColumns = `id, kind, student_record_id, student_email, supervisor_email, reviewer_email, department,
       status, current_version, fields, created_at, updated_at, submitted_at`

const versionColumns = `id, document_id, version_number, status, fields, author_role, author_email, comment, created_at`

// DocumentChange is the outcome of a mutator: the new document state and the
// version row that records it.
type DocumentChange struct {
	Status      models.DocumentStatus
	Fields      types.JSONText
	UpdatedAt   time.Time
	SubmittedAt *time.Time
	AuthorRole  models.Actor
	AuthorEmail string
	Comment     string
}

// DocumentMutator inspects the locked document and decides the change. Any
// error aborts and rolls back the transaction.
type DocumentMutator func(ctx context.Context, current models.Document) (*DocumentChange, error)

// DocumentRepository persists documents and their append-only version history.
type DocumentRepository struct {
	db *sqlx.DB
}

// NewDocumentRepository constructs the repository.
func NewDocumentRepository(db *sqlx.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

// Create inserts a document together with its first version.
func (r *DocumentRepository) Create(ctx context.Context, doc *models.Document, initial *models.Version) (err error) {
	if doc == nil || initial == nil {
		return fmt.Errorf("document and initial version are required")
	}
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	doc.UpdatedAt = doc.CreatedAt
	if len(doc.Fields) == 0 {
		doc.Fields = types.JSONText(`{}`)
	}
	doc.CurrentVersion = 1

	initial.ID = uuid.NewString()
	initial.DocumentID = doc.ID
	initial.VersionNumber = 1
	initial.Status = doc.Status
	initial.Fields = doc.Fields
	initial.CreatedAt = doc.CreatedAt

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create document: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const insertDocument = `INSERT INTO documents
	(id, kind, student_record_id, student_email, supervisor_email, reviewer_email, department, status, current_version, fields, created_at, updated_at, submitted_at)
	VALUES (:id, :kind, :student_record_id, :student_email, :supervisor_email, :reviewer_email, :department, :status, :current_version, :fields, :created_at, :updated_at, :submitted_at)`
	if _, err = tx.NamedExecContext(ctx, insertDocument, doc); err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	if err = insertVersion(ctx, tx, initial); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit create document: %w", err)
	}
	return nil
}

// GetByID fetches a document by identifier.
func (r *DocumentRepository) GetByID(ctx context.Context, id string) (*models.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE id = $1`
	var doc models.Document
	if err := r.db.GetContext(ctx, &doc, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("get document: %w", err)
	}
	return &doc, nil
}

// List returns documents matching the filter, most recently updated first, and the total count.
func (r *DocumentRepository) List(ctx context.Context, filter models.DocumentFilter) ([]models.Document, int, error) {
	args := make([]interface{}, 0, 8)
	conditions := make([]string, 0, 6)

	if filter.Kind != "" {
		args = append(args, filter.Kind)
		conditions = append(conditions, fmt.Sprintf("kind = $%d", len(args)))
	}
	if len(filter.Status) > 0 {
		placeholders := make([]string, len(filter.Status))
		for i, status := range filter.Status {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		conditions = append(conditions, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.StudentEmail != "" {
		args = append(args, models.NormalizeEmail(filter.StudentEmail))
		conditions = append(conditions, fmt.Sprintf("LOWER(student_email) = $%d", len(args)))
	}
	if filter.SupervisorEmail != "" {
		args = append(args, models.NormalizeEmail(filter.SupervisorEmail))
		conditions = append(conditions, fmt.Sprintf("LOWER(supervisor_email) = $%d", len(args)))
	}
	if filter.ReviewerEmail != "" {
		args = append(args, models.NormalizeEmail(filter.ReviewerEmail))
		conditions = append(conditions, fmt.Sprintf("LOWER(reviewer_email) = $%d", len(args)))
	}
	if len(filter.Departments) > 0 {
		placeholders := make([]string, len(filter.Departments))
		for i, department := range filter.Departments {
			args = append(args, department)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		conditions = append(conditions, fmt.Sprintf("department IN (%s)", strings.Join(placeholders, ",")))
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	listQuery := fmt.Sprintf("SELECT %s FROM documents%s ORDER BY updated_at DESC LIMIT %d OFFSET %d", documentColumns, where, limit, offset)
	var docs []models.Document
	if err := r.db.SelectContext(ctx, &docs, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list documents: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM documents"+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count documents: %w", err)
	}
	return docs, total, nil
}

// ApplyChange locks the document row, lets mutate decide the change, then
// updates the document and appends the next version in one transaction.
func (r *DocumentRepository) ApplyChange(ctx context.Context, id string, mutate DocumentMutator) (doc *models.Document, version *models.Version, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("begin document change: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var current models.Document
	lockQuery := `SELECT ` + documentColumns + ` FROM documents WHERE id = $1 FOR UPDATE`
	if err = tx.GetContext(ctx, &current, lockQuery, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, err
		}
		return nil, nil, fmt.Errorf("lock document: %w", err)
	}

	change, err := mutate(ctx, current)
	if err != nil {
		return nil, nil, err
	}
	if change == nil {
		err = fmt.Errorf("document mutator returned no change")
		return nil, nil, err
	}

	next := current
	next.Status = change.Status
	if len(change.Fields) > 0 {
		next.Fields = change.Fields
	}
	next.UpdatedAt = change.UpdatedAt
	next.SubmittedAt = change.SubmittedAt
	next.CurrentVersion = current.CurrentVersion + 1

	const updateQuery = `UPDATE documents
	SET status = $1, fields = $2, current_version = $3, updated_at = $4, submitted_at = $5
	WHERE id = $6 AND current_version = $7`
	result, err := tx.ExecContext(ctx, updateQuery,
		next.Status, next.Fields, next.CurrentVersion, next.UpdatedAt, next.SubmittedAt, current.ID, current.CurrentVersion)
	if err != nil {
		return nil, nil, fmt.Errorf("update document: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return nil, nil, fmt.Errorf("check document update rows: %w", err)
	}
	if rows == 0 {
		err = ErrVersionConflict
		return nil, nil, err
	}

	version = &models.Version{
		ID:            uuid.NewString(),
		DocumentID:    current.ID,
		VersionNumber: next.CurrentVersion,
		Status:        next.Status,
		Fields:        next.Fields,
		AuthorRole:    change.AuthorRole,
		AuthorEmail:   change.AuthorEmail,
		Comment:       change.Comment,
		CreatedAt:     change.UpdatedAt,
	}
	if err = insertVersion(ctx, tx, version); err != nil {
		return nil, nil, err
	}

	if err = tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("commit document change: %w", err)
	}
	return &next, version, nil
}

// ListVersions returns the version history of a document, latest first.
func (r *DocumentRepository) ListVersions(ctx context.Context, documentID string) ([]models.Version, error) {
	query := `SELECT ` + versionColumns + ` FROM document_versions WHERE document_id = $1 ORDER BY created_at DESC, version_number DESC`
	var versions []models.Version
	if err := r.db.SelectContext(ctx, &versions, query, documentID); err != nil {
		return nil, fmt.Errorf("list document versions: %w", err)
	}
	return versions, nil
}

// LatestVersion returns the most recent version of a document.
func (r *DocumentRepository) LatestVersion(ctx context.Context, documentID string) (*models.Version, error) {
	query := `SELECT ` + versionColumns + ` FROM document_versions WHERE document_id = $1 ORDER BY created_at DESC, version_number DESC LIMIT 1`
	var version models.Version
	if err := r.db.GetContext(ctx, &version, query, documentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("latest document version: %w", err)
	}
	return &version, nil
}

func insertVersion(ctx context.Context, tx *sqlx.Tx, version *models.Version) error {
	const query = `INSERT INTO document_versions
	(id, document_id, version_number, status, fields, author_role, author_email, comment, created_at)
	VALUES (:id, :document_id, :version_number, :status, :fields, :author_role, :author_email, :comment, :created_at)`
	if _, err := tx.NamedExecContext(ctx, query, version); err != nil {
		if database.IsUniqueViolation(err) {
			return ErrVersionConflict
		}
		return fmt.Errorf("insert document version: %w", err)
	}
	return nil
}
