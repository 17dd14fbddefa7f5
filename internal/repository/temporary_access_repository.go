package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/thesis-workflow-api/internal/models"
)

const temporaryAccessColumns = `id, code_prefix, code_hash, department, is_active, expires_at, created_by, created_at`

// TemporaryAccessRepository persists commission access codes.
type TemporaryAccessRepository struct {
	db *sqlx.DB
}

// NewTemporaryAccessRepository constructs the repository.
func NewTemporaryAccessRepository(db *sqlx.DB) *TemporaryAccessRepository {
	return &TemporaryAccessRepository{db: db}
}

// Create stores a new grant.
func (r *TemporaryAccessRepository) Create(ctx context.Context, grant *models.TemporaryAccess) error {
	if grant.ID == "" {
		grant.ID = uuid.NewString()
	}
	if grant.CreatedAt.IsZero() {
		grant.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO temporary_access (` + temporaryAccessColumns + `)
	VALUES (:id, :code_prefix, :code_hash, :department, :is_active, :expires_at, :created_by, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, grant); err != nil {
		return fmt.Errorf("create temporary access: %w", err)
	}
	return nil
}

// ListUsableByPrefix returns active, unexpired grants whose code starts with prefix.
func (r *TemporaryAccessRepository) ListUsableByPrefix(ctx context.Context, prefix string, now time.Time) ([]models.TemporaryAccess, error) {
	const query = `SELECT ` + temporaryAccessColumns + ` FROM temporary_access
	WHERE code_prefix = $1 AND is_active = TRUE AND expires_at > $2 ORDER BY created_at DESC`
	var grants []models.TemporaryAccess
	if err := r.db.SelectContext(ctx, &grants, query, strings.ToUpper(prefix), now); err != nil {
		return nil, fmt.Errorf("list temporary access by prefix: %w", err)
	}
	return grants, nil
}

// List returns grants for the admin console.
func (r *TemporaryAccessRepository) List(ctx context.Context, filter models.TemporaryAccessFilter) ([]models.TemporaryAccess, error) {
	var (
		conditions []string
		args       []interface{}
	)
	if filter.Department != "" {
		args = append(args, filter.Department)
		conditions = append(conditions, fmt.Sprintf("department = $%d", len(args)))
	}
	if filter.ActiveOnly {
		conditions = append(conditions, "is_active = TRUE")
	}
	query := `SELECT ` + temporaryAccessColumns + ` FROM temporary_access`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT %d OFFSET %d", limit, offset)

	var grants []models.TemporaryAccess
	if err := r.db.SelectContext(ctx, &grants, query, args...); err != nil {
		return nil, fmt.Errorf("list temporary access: %w", err)
	}
	return grants, nil
}

// Deactivate switches a grant off. A missing grant yields sql.ErrNoRows.
func (r *TemporaryAccessRepository) Deactivate(ctx context.Context, id string) error {
	const query = `UPDATE temporary_access SET is_active = FALSE WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("deactivate temporary access: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check temporary access rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}
