package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/thesis-workflow-api/internal/models"
)

var documentRowColumns = []string{"id", "kind", "student_record_id", "student_email", "supervisor_email", "reviewer_email", "department",
	"status", "current_version", "fields", "created_at", "updated_at", "submitted_at"}

func newDocumentRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func documentRow(status models.DocumentStatus, version int) *sqlmock.Rows {
	created := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	return sqlmock.NewRows(documentRowColumns).
		AddRow("doc-1", "assignment", "S-1001", "a@stud.example.lt", "b@teach.example.lt", nil, "ELE",
			string(status), version, []byte(`{"title":"x"}`), created, created, nil)
}

func TestDocumentRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newDocumentRepoMock(t)
	defer cleanup()
	repo := NewDocumentRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO documents").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO document_versions").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	doc := &models.Document{Kind: models.DocumentKindAssignment, StudentRecordID: "S-1001", Department: "ELE", Status: models.StatusDraft}
	initial := &models.Version{AuthorRole: models.ActorStudent, AuthorEmail: "a@stud.example.lt"}
	require.NoError(t, repo.Create(context.Background(), doc, initial))

	assert.NotEmpty(t, doc.ID)
	assert.Equal(t, 1, doc.CurrentVersion)
	assert.Equal(t, types.JSONText(`{}`), doc.Fields)
	assert.Equal(t, doc.ID, initial.DocumentID)
	assert.Equal(t, 1, initial.VersionNumber)
	assert.Equal(t, models.StatusDraft, initial.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDocumentRepositoryCreateRollsBack(t *testing.T) {
	db, mock, cleanup := newDocumentRepoMock(t)
	defer cleanup()
	repo := NewDocumentRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO documents").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO document_versions").WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err := repo.Create(context.Background(), &models.Document{Status: models.StatusDraft}, &models.Version{})
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDocumentRepositoryApplyChange(t *testing.T) {
	db, mock, cleanup := newDocumentRepoMock(t)
	defer cleanup()
	repo := NewDocumentRepository(db)
	changedAt := time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT (.+) FROM documents WHERE id = \$1 FOR UPDATE`).
		WithArgs("doc-1").
		WillReturnRows(documentRow(models.StatusDraft, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE documents")).
		WithArgs(models.StatusSubmitted, sqlmock.AnyArg(), 2, changedAt, sqlmock.AnyArg(), "doc-1", 1).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO document_versions").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	var seen models.Document
	doc, version, err := repo.ApplyChange(context.Background(), "doc-1", func(ctx context.Context, current models.Document) (*DocumentChange, error) {
		seen = current
		return &DocumentChange{
			Status:      models.StatusSubmitted,
			UpdatedAt:   changedAt,
			SubmittedAt: &changedAt,
			AuthorRole:  models.ActorStudent,
			AuthorEmail: "a@stud.example.lt",
		}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusDraft, seen.Status)
	assert.Equal(t, models.StatusSubmitted, doc.Status)
	assert.Equal(t, 2, doc.CurrentVersion)
	assert.Equal(t, types.JSONText(`{"title":"x"}`), doc.Fields)
	assert.Equal(t, 2, version.VersionNumber)
	assert.Equal(t, models.StatusSubmitted, version.Status)
	assert.Equal(t, changedAt, version.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDocumentRepositoryApplyChangeFailures(t *testing.T) {
	now := time.Now().UTC()
	change := func(ctx context.Context, current models.Document) (*DocumentChange, error) {
		return &DocumentChange{Status: models.StatusApproved, UpdatedAt: now}, nil
	}

	t.Run("missing document", func(t *testing.T) {
		db, mock, cleanup := newDocumentRepoMock(t)
		defer cleanup()
		mock.ExpectBegin()
		mock.ExpectQuery("FOR UPDATE").WillReturnError(sql.ErrNoRows)
		mock.ExpectRollback()

		_, _, err := NewDocumentRepository(db).ApplyChange(context.Background(), "missing", change)
		assert.ErrorIs(t, err, sql.ErrNoRows)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("mutator refuses", func(t *testing.T) {
		db, mock, cleanup := newDocumentRepoMock(t)
		defer cleanup()
		mock.ExpectBegin()
		mock.ExpectQuery("FOR UPDATE").WillReturnRows(documentRow(models.StatusDraft, 1))
		mock.ExpectRollback()

		refused := errors.New("not allowed")
		_, _, err := NewDocumentRepository(db).ApplyChange(context.Background(), "doc-1", func(ctx context.Context, current models.Document) (*DocumentChange, error) {
			return nil, refused
		})
		assert.ErrorIs(t, err, refused)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("stale version", func(t *testing.T) {
		db, mock, cleanup := newDocumentRepoMock(t)
		defer cleanup()
		mock.ExpectBegin()
		mock.ExpectQuery("FOR UPDATE").WillReturnRows(documentRow(models.StatusSubmitted, 3))
		mock.ExpectExec("UPDATE documents").WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectRollback()

		_, _, err := NewDocumentRepository(db).ApplyChange(context.Background(), "doc-1", change)
		assert.ErrorIs(t, err, ErrVersionConflict)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("duplicate version number", func(t *testing.T) {
		db, mock, cleanup := newDocumentRepoMock(t)
		defer cleanup()
		mock.ExpectBegin()
		mock.ExpectQuery("FOR UPDATE").WillReturnRows(documentRow(models.StatusSubmitted, 3))
		mock.ExpectExec("UPDATE documents").WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("INSERT INTO document_versions").WillReturnError(&pq.Error{Code: "23505"})
		mock.ExpectRollback()

		_, _, err := NewDocumentRepository(db).ApplyChange(context.Background(), "doc-1", change)
		assert.ErrorIs(t, err, ErrVersionConflict)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestDocumentRepositoryList(t *testing.T) {
	db, mock, cleanup := newDocumentRepoMock(t)
	defer cleanup()
	repo := NewDocumentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM documents WHERE kind = $1 AND status IN ($2,$3) AND LOWER(supervisor_email) = $4 ORDER BY updated_at DESC LIMIT 10 OFFSET 10")).
		WithArgs(models.DocumentKindAssignment, models.StatusSubmitted, models.StatusApproved, "b@teach.example.lt").
		WillReturnRows(documentRow(models.StatusSubmitted, 2))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM documents WHERE kind = $1")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(11))

	docs, total, err := repo.List(context.Background(), models.DocumentFilter{
		Kind:            models.DocumentKindAssignment,
		Status:          []models.DocumentStatus{models.StatusSubmitted, models.StatusApproved},
		SupervisorEmail: "B@Teach.Example.lt",
		Limit:           10,
		Offset:          10,
	})
	require.NoError(t, err)
	assert.Len(t, docs, 1)
	assert.Equal(t, 11, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDocumentRepositoryLatestVersion(t *testing.T) {
	db, mock, cleanup := newDocumentRepoMock(t)
	defer cleanup()
	repo := NewDocumentRepository(db)

	created := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("FROM document_versions WHERE document_id = $1 ORDER BY created_at DESC, version_number DESC LIMIT 1")).
		WithArgs("doc-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "document_id", "version_number", "status", "fields", "author_role", "author_email", "comment", "created_at"}).
			AddRow("v-2", "doc-1", 2, "submitted", []byte(`{}`), "student", "a@stud.example.lt", "", created))

	version, err := repo.LatestVersion(context.Background(), "doc-1")
	require.NoError(t, err)
	assert.Equal(t, 2, version.VersionNumber)
	assert.Equal(t, models.ActorStudent, version.AuthorRole)

	mock.ExpectQuery("FROM document_versions").WillReturnError(sql.ErrNoRows)
	_, err = repo.LatestVersion(context.Background(), "doc-2")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}
