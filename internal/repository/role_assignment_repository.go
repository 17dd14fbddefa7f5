package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/thesis-workflow-api/internal/models"
)

// RoleAssignmentRepository stores roles assigned by administrators.
type RoleAssignmentRepository struct {
	db *sqlx.DB
}

// NewRoleAssignmentRepository constructs the repository.
func NewRoleAssignmentRepository(db *sqlx.DB) *RoleAssignmentRepository {
	return &RoleAssignmentRepository{db: db}
}

// FindByEmail returns the assigned role for email, or sql.ErrNoRows.
func (r *RoleAssignmentRepository) FindByEmail(ctx context.Context, email string) (*models.RoleAssignment, error) {
	const query = `SELECT email, role, assigned_by FROM role_assignments WHERE email = $1`
	var assignment models.RoleAssignment
	if err := r.db.GetContext(ctx, &assignment, query, models.NormalizeEmail(email)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find role assignment: %w", err)
	}
	return &assignment, nil
}

// Upsert creates or replaces the assignment for an address.
func (r *RoleAssignmentRepository) Upsert(ctx context.Context, assignment models.RoleAssignment) error {
	const query = `INSERT INTO role_assignments (email, role, assigned_by, updated_at)
	VALUES ($1, $2, $3, NOW())
	ON CONFLICT (email) DO UPDATE SET role = EXCLUDED.role, assigned_by = EXCLUDED.assigned_by, updated_at = NOW()`
	if _, err := r.db.ExecContext(ctx, query, models.NormalizeEmail(assignment.Email), assignment.Role, assignment.AssignedBy); err != nil {
		return fmt.Errorf("upsert role assignment: %w", err)
	}
	return nil
}

// Delete removes an assignment so the address falls back to e-mail classification.
func (r *RoleAssignmentRepository) Delete(ctx context.Context, email string) error {
	const query = `DELETE FROM role_assignments WHERE email = $1`
	result, err := r.db.ExecContext(ctx, query, models.NormalizeEmail(email))
	if err != nil {
		return fmt.Errorf("delete role assignment: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check role assignment rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}
