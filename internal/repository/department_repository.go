package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/thesis-workflow-api/internal/models"
)

// DepartmentRepository answers department-head questions from the
// authoritative departments table.
type DepartmentRepository struct {
	db *sqlx.DB
}

// NewDepartmentRepository constructs the repository.
func NewDepartmentRepository(db *sqlx.DB) *DepartmentRepository {
	return &DepartmentRepository{db: db}
}

// IsDepartmentHead reports whether email heads any department.
func (r *DepartmentRepository) IsDepartmentHead(ctx context.Context, email string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM departments WHERE LOWER(head_email) = $1)`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, models.NormalizeEmail(email)); err != nil {
		return false, fmt.Errorf("check department head: %w", err)
	}
	return exists, nil
}

// HeadsDepartment reports whether email heads the given department. Codes
// compare case-insensitively; documents carry them upper-cased.
func (r *DepartmentRepository) HeadsDepartment(ctx context.Context, email, department string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM departments WHERE UPPER(code) = $1 AND LOWER(head_email) = $2)`
	var exists bool
	code := strings.ToUpper(strings.TrimSpace(department))
	if err := r.db.GetContext(ctx, &exists, query, code, models.NormalizeEmail(email)); err != nil {
		return false, fmt.Errorf("check department head of %s: %w", department, err)
	}
	return exists, nil
}

// DepartmentsHeadedBy lists the upper-cased codes of departments headed by email.
func (r *DepartmentRepository) DepartmentsHeadedBy(ctx context.Context, email string) ([]string, error) {
	const query = `SELECT UPPER(code) AS code FROM departments WHERE LOWER(head_email) = $1 ORDER BY 1`
	var codes []string
	if err := r.db.SelectContext(ctx, &codes, query, models.NormalizeEmail(email)); err != nil {
		return nil, fmt.Errorf("list departments headed by: %w", err)
	}
	return codes, nil
}
