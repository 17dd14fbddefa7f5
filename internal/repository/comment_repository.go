package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/thesis-workflow-api/internal/models"
)

const commentColumns = `id, document_id, field_name, parent_comment_id, author_role, author_name, text, unread, created_at`

// CommentRepository persists document discussion threads.
type CommentRepository struct {
	db *sqlx.DB
}

// NewCommentRepository constructs the repository.
func NewCommentRepository(db *sqlx.DB) *CommentRepository {
	return &CommentRepository{db: db}
}

// Create inserts a comment.
func (r *CommentRepository) Create(ctx context.Context, comment *models.Comment) error {
	if comment.ID == "" {
		comment.ID = uuid.NewString()
	}
	if comment.CreatedAt.IsZero() {
		comment.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO document_comments
	(id, document_id, field_name, parent_comment_id, author_role, author_name, text, unread, created_at)
	VALUES (:id, :document_id, :field_name, :parent_comment_id, :author_role, :author_name, :text, :unread, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, comment); err != nil {
		return fmt.Errorf("create comment: %w", err)
	}
	return nil
}

// GetByID fetches a comment by identifier.
func (r *CommentRepository) GetByID(ctx context.Context, id string) (*models.Comment, error) {
	query := `SELECT ` + commentColumns + ` FROM document_comments WHERE id = $1`
	var comment models.Comment
	if err := r.db.GetContext(ctx, &comment, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("get comment: %w", err)
	}
	return &comment, nil
}

// ListByDocument returns all comments of a document, oldest first.
func (r *CommentRepository) ListByDocument(ctx context.Context, documentID string) ([]models.Comment, error) {
	query := `SELECT ` + commentColumns + ` FROM document_comments WHERE document_id = $1 ORDER BY created_at ASC`
	var comments []models.Comment
	if err := r.db.SelectContext(ctx, &comments, query, documentID); err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	return comments, nil
}

// MarkRead clears the unread flag. Marking an already read comment succeeds;
// a missing comment yields sql.ErrNoRows.
func (r *CommentRepository) MarkRead(ctx context.Context, id string) error {
	const query = `UPDATE document_comments SET unread = FALSE WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("mark comment read: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check comment update rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// CountUnread counts unread comments on a document that were not written in
// the given capacity.
func (r *CommentRepository) CountUnread(ctx context.Context, documentID string, reader models.Actor) (int, error) {
	const query = `SELECT COUNT(*) FROM document_comments WHERE document_id = $1 AND unread = TRUE AND author_role <> $2`
	var count int
	if err := r.db.GetContext(ctx, &count, query, documentID, reader); err != nil {
		return 0, fmt.Errorf("count unread comments: %w", err)
	}
	return count, nil
}
