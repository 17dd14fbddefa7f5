package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/thesis-workflow-api/internal/dto"
	"github.com/noah-isme/thesis-workflow-api/internal/models"
	"github.com/noah-isme/thesis-workflow-api/internal/repository"
	appErrors "github.com/noah-isme/thesis-workflow-api/pkg/errors"
)

// memoryDocumentStore serializes ApplyChange the way the row lock does.
type memoryDocumentStore struct {
	mu       sync.Mutex
	docs     map[string]models.Document
	versions map[string][]models.Version
	filters  []models.DocumentFilter
}

func newMemoryDocumentStore() *memoryDocumentStore {
	return &memoryDocumentStore{docs: map[string]models.Document{}, versions: map[string][]models.Version{}}
}

func (m *memoryDocumentStore) seed(doc models.Document) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if doc.CurrentVersion == 0 {
		doc.CurrentVersion = 1
	}
	m.docs[doc.ID] = doc
	m.versions[doc.ID] = []models.Version{{
		ID: doc.ID + "-v1", DocumentID: doc.ID, VersionNumber: 1, Status: doc.Status, Fields: doc.Fields,
		AuthorRole: models.ActorStudent, AuthorEmail: doc.StudentEmail, Comment: "document created",
	}}
}

func (m *memoryDocumentStore) Create(ctx context.Context, doc *models.Document, initial *models.Version) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc.ID = fmt.Sprintf("doc-%d", len(m.docs)+1)
	doc.CurrentVersion = 1
	doc.UpdatedAt = doc.CreatedAt
	initial.DocumentID = doc.ID
	initial.VersionNumber = 1
	initial.Status = doc.Status
	initial.Fields = doc.Fields
	m.docs[doc.ID] = *doc
	m.versions[doc.ID] = []models.Version{*initial}
	return nil
}

func (m *memoryDocumentStore) GetByID(ctx context.Context, id string) (*models.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &doc, nil
}

func (m *memoryDocumentStore) List(ctx context.Context, filter models.DocumentFilter) ([]models.Document, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.filters = append(m.filters, filter)
	var out []models.Document
	for _, doc := range m.docs {
		if filter.StudentEmail != "" && doc.StudentEmail != filter.StudentEmail {
			continue
		}
		if filter.SupervisorEmail != "" && doc.SupervisorEmail != filter.SupervisorEmail {
			continue
		}
		if len(filter.Departments) > 0 && !containsString(filter.Departments, doc.Department) {
			continue
		}
		out = append(out, doc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, len(out), nil
}

func (m *memoryDocumentStore) ApplyChange(ctx context.Context, id string, mutate repository.DocumentMutator) (*models.Document, *models.Version, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.docs[id]
	if !ok {
		return nil, nil, sql.ErrNoRows
	}
	change, err := mutate(ctx, current)
	if err != nil {
		return nil, nil, err
	}
	current.Status = change.Status
	current.Fields = change.Fields
	current.UpdatedAt = change.UpdatedAt
	current.SubmittedAt = change.SubmittedAt
	current.CurrentVersion++
	version := models.Version{
		ID:            fmt.Sprintf("%s-v%d", id, current.CurrentVersion),
		DocumentID:    id,
		VersionNumber: current.CurrentVersion,
		Status:        change.Status,
		Fields:        change.Fields,
		AuthorRole:    change.AuthorRole,
		AuthorEmail:   change.AuthorEmail,
		Comment:       change.Comment,
		CreatedAt:     change.UpdatedAt,
	}
	m.docs[id] = current
	m.versions[id] = append(m.versions[id], version)
	return &current, &version, nil
}

func (m *memoryDocumentStore) ListVersions(ctx context.Context, documentID string) ([]models.Version, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	versions := m.versions[documentID]
	out := make([]models.Version, len(versions))
	for i := range versions {
		out[len(versions)-1-i] = versions[i]
	}
	return out, nil
}

func (m *memoryDocumentStore) LatestVersion(ctx context.Context, documentID string) (*models.Version, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	versions := m.versions[documentID]
	if len(versions) == 0 {
		return nil, sql.ErrNoRows
	}
	v := versions[len(versions)-1]
	return &v, nil
}

func (m *memoryDocumentStore) versionCount(id string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.versions[id])
}

type memoryCommentStore struct {
	mu        sync.Mutex
	comments  map[string]models.Comment
	order     []string
	markCalls int
}

func newMemoryCommentStore() *memoryCommentStore {
	return &memoryCommentStore{comments: map[string]models.Comment{}}
}

func (m *memoryCommentStore) Create(ctx context.Context, comment *models.Comment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	comment.ID = fmt.Sprintf("c%d", len(m.order)+1)
	m.comments[comment.ID] = *comment
	m.order = append(m.order, comment.ID)
	return nil
}

func (m *memoryCommentStore) GetByID(ctx context.Context, id string) (*models.Comment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.comments[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &c, nil
}

func (m *memoryCommentStore) ListByDocument(ctx context.Context, documentID string) ([]models.Comment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Comment
	for _, id := range m.order {
		if c := m.comments[id]; c.DocumentID == documentID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *memoryCommentStore) MarkRead(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.markCalls++
	c, ok := m.comments[id]
	if !ok {
		return sql.ErrNoRows
	}
	c.Unread = false
	m.comments[id] = c
	return nil
}

func (m *memoryCommentStore) CountUnread(ctx context.Context, documentID string, reader models.Actor) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, c := range m.comments {
		if c.DocumentID == documentID && c.Unread && c.AuthorRole != reader {
			count++
		}
	}
	return count, nil
}

func containsString(values []string, v string) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}

type workflowFixture struct {
	svc       *WorkflowService
	documents *memoryDocumentStore
	comments  *memoryCommentStore
	directory *stubDirectory
	audit     *recordingAudit
	metrics   *MetricsService
	now       time.Time
}

func newWorkflowFixture(t *testing.T) *workflowFixture {
	t.Helper()
	f := &workflowFixture{
		documents: newMemoryDocumentStore(),
		comments:  newMemoryCommentStore(),
		directory: &stubDirectory{heads: map[string][]string{"head@teach.example.lt": {"ELE"}}},
		audit:     &recordingAudit{},
		metrics:   NewMetricsService(),
		now:       time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC),
	}
	f.svc = NewWorkflowService(f.documents, f.comments, f.directory, nil, zap.NewNop(),
		WithWorkflowClock(func() time.Time { return f.now }),
		WithWorkflowMetrics(f.metrics),
		WithWorkflowAudit(f.audit),
	)
	return f
}

func assignmentDoc(status models.DocumentStatus) models.Document {
	return models.Document{
		ID:              "1",
		Kind:            models.DocumentKindAssignment,
		StudentRecordID: "S-1001",
		StudentEmail:    "a@stud.example.lt",
		SupervisorEmail: "b@teach.example.lt",
		Department:      "ELE",
		Status:          status,
		Fields:          []byte(`{"title":"Grid storage"}`),
		CreatedAt:       time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC),
		UpdatedAt:       time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC),
	}
}

func topicDoc(status models.DocumentStatus) models.Document {
	doc := assignmentDoc(status)
	doc.ID = "2"
	doc.Kind = models.DocumentKindTopicRegistration
	return doc
}

func TestWorkflowStudentSubmitsDraft(t *testing.T) {
	f := newWorkflowFixture(t)
	f.documents.seed(assignmentDoc(models.StatusDraft))

	doc, version, err := f.svc.ApplyTransition(context.Background(), "1", models.StatusSubmitted, "a@stud.example.lt", models.ActorStudent)
	require.NoError(t, err)
	assert.Equal(t, models.StatusSubmitted, doc.Status)
	require.NotNil(t, doc.SubmittedAt)
	assert.Equal(t, f.now, *doc.SubmittedAt)
	assert.Equal(t, 2, version.VersionNumber)
	assert.Equal(t, models.StatusSubmitted, version.Status)
	assert.Equal(t, "status changed to submitted", version.Comment)
	assert.Equal(t, 2, f.documents.versionCount("1"))
	assert.Equal(t, []string{models.AuditActionDocumentTransition}, f.audit.actions())
}

func TestWorkflowSupervisorRequestsRevision(t *testing.T) {
	f := newWorkflowFixture(t)
	f.documents.seed(assignmentDoc(models.StatusDraft))
	_, _, err := f.svc.ApplyTransition(context.Background(), "1", models.StatusSubmitted, "a@stud.example.lt", models.ActorStudent)
	require.NoError(t, err)

	f.now = f.now.Add(time.Hour)
	doc, version, err := f.svc.ApplyTransition(context.Background(), "1", models.StatusRevisionRequested, "B@Teach.Example.lt", models.ActorSupervisor)
	require.NoError(t, err)
	assert.Equal(t, models.StatusRevisionRequested, doc.Status)
	assert.Contains(t, version.Comment, "revision_requested")
	assert.Equal(t, "b@teach.example.lt", version.AuthorEmail)
	assert.Equal(t, 3, f.documents.versionCount("1"))

	// Resubmission keeps the first submission time.
	f.now = f.now.Add(time.Hour)
	doc, _, err = f.svc.ApplyTransition(context.Background(), "1", models.StatusSubmitted, "a@stud.example.lt", models.ActorStudent)
	require.NoError(t, err)
	assert.Equal(t, f.now.Add(-2*time.Hour), *doc.SubmittedAt)
}

func TestWorkflowUnassignedTeacherIsForbidden(t *testing.T) {
	f := newWorkflowFixture(t)
	f.documents.seed(assignmentDoc(models.StatusSubmitted))

	_, _, err := f.svc.ApplyTransition(context.Background(), "1", models.StatusRevisionRequested, "c@teach.example.lt", models.ActorSupervisor)
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))

	doc, _ := f.documents.GetByID(context.Background(), "1")
	assert.Equal(t, models.StatusSubmitted, doc.Status)
	assert.Equal(t, 1, f.documents.versionCount("1"))
	assert.Empty(t, f.audit.actions())
}

func TestWorkflowStudentCannotApprove(t *testing.T) {
	f := newWorkflowFixture(t)
	f.documents.seed(assignmentDoc(models.StatusSubmitted))

	_, _, err := f.svc.ApplyTransition(context.Background(), "1", models.StatusApproved, "a@stud.example.lt", models.ActorStudent)
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))
	assert.Equal(t, 1, f.documents.versionCount("1"))
}

func TestWorkflowDraftToApprovedAlwaysForbidden(t *testing.T) {
	callers := map[models.Actor]string{
		models.ActorStudent:        "a@stud.example.lt",
		models.ActorSupervisor:     "b@teach.example.lt",
		models.ActorReviewer:       "r@guest.onmicrosoft.com",
		models.ActorDepartmentHead: "head@teach.example.lt",
		models.ActorCommission:     "commission@example.lt",
	}
	for _, seed := range []models.Document{assignmentDoc(models.StatusDraft), topicDoc(models.StatusDraft)} {
		for actor, email := range callers {
			t.Run(string(seed.Kind)+"/"+string(actor), func(t *testing.T) {
				f := newWorkflowFixture(t)
				f.documents.seed(seed)
				_, _, err := f.svc.ApplyTransition(context.Background(), seed.ID, models.StatusApproved, email, actor)
				assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))
				assert.Equal(t, 1, f.documents.versionCount(seed.ID))
			})
		}
	}
}

func TestWorkflowErrorOrdering(t *testing.T) {
	f := newWorkflowFixture(t)
	f.documents.seed(assignmentDoc(models.StatusDraft))

	_, _, err := f.svc.ApplyTransition(context.Background(), "missing", "bogus", "x@example.lt", models.ActorStudent)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))

	_, _, err = f.svc.ApplyTransition(context.Background(), "1", "bogus", "x@example.lt", models.ActorStudent)
	assert.True(t, appErrors.Is(err, appErrors.ErrInvalidStatus))

	// needs_revision belongs to topic registrations only.
	_, _, err = f.svc.ApplyTransition(context.Background(), "1", models.StatusNeedsRevision, "b@teach.example.lt", models.ActorSupervisor)
	assert.True(t, appErrors.Is(err, appErrors.ErrInvalidStatus))

	_, _, err = f.svc.ApplyTransition(context.Background(), "1", models.StatusSubmitted, "x@example.lt", models.ActorStudent)
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))
}

func TestWorkflowRejectsMalformedRequests(t *testing.T) {
	f := newWorkflowFixture(t)
	f.documents.seed(assignmentDoc(models.StatusDraft))
	ctx := context.Background()

	_, _, err := f.svc.ApplyTransition(ctx, "1", models.StatusSubmitted, "a@stud.example.lt", "admin")
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
	_, _, err = f.svc.ApplyTransition(ctx, "1", "", "a@stud.example.lt", models.ActorStudent)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
	_, _, err = f.svc.ApplyTransition(ctx, "1", models.StatusSubmitted, "a@stud.example.lt", "")
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))

	_, err = f.svc.SaveVersion(ctx, "1", json.RawMessage(`{"title":"x"}`), "", "a@stud.example.lt", "Student")
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))

	_, err = f.svc.AddComment(ctx, CommentInput{DocumentID: "1", Text: "Looks fine", AuthorRole: "guest"}, models.Viewer{Email: "a@stud.example.lt"})
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))

	assert.Equal(t, 1, f.documents.versionCount("1"))
	assert.Empty(t, f.comments.comments)
}

func TestWorkflowTopicRegistrationHeadApproval(t *testing.T) {
	f := newWorkflowFixture(t)
	f.documents.seed(topicDoc(models.StatusApproved))

	_, _, err := f.svc.ApplyTransition(context.Background(), "2", models.StatusHeadApproved, "b@teach.example.lt", models.ActorDepartmentHead)
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))

	doc, _, err := f.svc.ApplyTransition(context.Background(), "2", models.StatusHeadApproved, "head@teach.example.lt", models.ActorDepartmentHead)
	require.NoError(t, err)
	assert.Equal(t, models.StatusHeadApproved, doc.Status)

	_, _, err = f.svc.ApplyTransition(context.Background(), "2", models.StatusRejected, "head@teach.example.lt", models.ActorDepartmentHead)
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))
}

func TestWorkflowDirectoryFailureDuringTransition(t *testing.T) {
	f := newWorkflowFixture(t)
	f.documents.seed(topicDoc(models.StatusApproved))
	f.directory.err = fmt.Errorf("directory down")

	_, _, err := f.svc.ApplyTransition(context.Background(), "2", models.StatusHeadApproved, "head@teach.example.lt", models.ActorDepartmentHead)
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrInternal))
	assert.Equal(t, 1, f.documents.versionCount("2"))
}

func TestWorkflowClockNeverGoesBackwards(t *testing.T) {
	f := newWorkflowFixture(t)
	seed := assignmentDoc(models.StatusDraft)
	seed.UpdatedAt = f.now.Add(time.Hour)
	f.documents.seed(seed)

	doc, version, err := f.svc.ApplyTransition(context.Background(), "1", models.StatusSubmitted, "a@stud.example.lt", models.ActorStudent)
	require.NoError(t, err)
	assert.Equal(t, seed.UpdatedAt, doc.UpdatedAt)
	assert.Equal(t, seed.UpdatedAt, version.CreatedAt)
}

func TestWorkflowSaveVersion(t *testing.T) {
	f := newWorkflowFixture(t)
	f.documents.seed(assignmentDoc(models.StatusSubmitted))

	version, err := f.svc.SaveVersion(context.Background(), "1", json.RawMessage(`{"title":"Grid storage v2"}`), "", "b@teach.example.lt", models.ActorSupervisor)
	require.NoError(t, err)
	assert.Equal(t, 2, version.VersionNumber)
	assert.Equal(t, models.StatusSubmitted, version.Status)
	assert.Equal(t, "fields updated", version.Comment)
	assert.JSONEq(t, `{"title":"Grid storage v2"}`, string(version.Fields))

	_, err = f.svc.SaveVersion(context.Background(), "1", json.RawMessage(`["not","object"]`), "", "a@stud.example.lt", models.ActorStudent)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))

	_, err = f.svc.SaveVersion(context.Background(), "1", json.RawMessage(`{}`), "", "head@teach.example.lt", models.ActorDepartmentHead)
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))

	_, err = f.svc.SaveVersion(context.Background(), "1", json.RawMessage(`{}`), "", "c@teach.example.lt", models.ActorSupervisor)
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))

	_, err = f.svc.SaveVersion(context.Background(), "missing", json.RawMessage(`{}`), "", "a@stud.example.lt", models.ActorStudent)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}

func TestWorkflowConcurrentSaveVersionLosesNothing(t *testing.T) {
	f := newWorkflowFixture(t)
	f.documents.seed(assignmentDoc(models.StatusDraft))

	const writers = 20
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			fields := json.RawMessage(fmt.Sprintf(`{"title":"draft %d"}`, i))
			_, err := f.svc.SaveVersion(context.Background(), "1", fields, "", "a@stud.example.lt", models.ActorStudent)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	versions, err := f.documents.ListVersions(context.Background(), "1")
	require.NoError(t, err)
	require.Len(t, versions, writers+1)
	seen := make(map[int]bool, len(versions))
	for _, v := range versions {
		assert.False(t, seen[v.VersionNumber], "duplicate version %d", v.VersionNumber)
		seen[v.VersionNumber] = true
	}
	for n := 1; n <= writers+1; n++ {
		assert.True(t, seen[n], "missing version %d", n)
	}
	doc, _ := f.documents.GetByID(context.Background(), "1")
	assert.Equal(t, writers+1, doc.CurrentVersion)
}

func TestWorkflowCreateDocument(t *testing.T) {
	f := newWorkflowFixture(t)
	req := dto.CreateDocumentRequest{
		Kind:            models.DocumentKindTopicRegistration,
		StudentRecordID: "S-2002",
		StudentEmail:    "A@stud.example.lt",
		SupervisorEmail: "b@teach.example.lt",
		Department:      "ele",
	}

	doc, err := f.svc.CreateDocument(context.Background(), req, models.Viewer{Email: "a@stud.example.lt", Capabilities: models.Capabilities{IsStudent: true}})
	require.NoError(t, err)
	assert.Equal(t, models.StatusDraft, doc.Status)
	assert.Equal(t, "ELE", doc.Department)
	assert.Equal(t, "a@stud.example.lt", doc.StudentEmail)
	assert.JSONEq(t, `{}`, string(doc.Fields))

	latest, err := f.svc.LatestVersion(context.Background(), doc.ID, models.Viewer{Email: "b@teach.example.lt"})
	require.NoError(t, err)
	assert.Equal(t, 1, latest.VersionNumber)
	assert.Equal(t, "document created", latest.Comment)

	_, err = f.svc.CreateDocument(context.Background(), req, models.Viewer{Email: "c@teach.example.lt", Capabilities: models.Capabilities{IsTeacher: true}})
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))

	req.Kind = "thesis"
	_, err = f.svc.CreateDocument(context.Background(), req, models.Viewer{Email: "a@stud.example.lt"})
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}

func TestWorkflowDocumentVisibility(t *testing.T) {
	f := newWorkflowFixture(t)
	f.documents.seed(assignmentDoc(models.StatusSubmitted))

	_, err := f.svc.GetDocument(context.Background(), "1", models.Viewer{Email: "c@teach.example.lt"})
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))

	_, err = f.svc.GetDocument(context.Background(), "1", models.Viewer{GrantDepartment: "INF"})
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))

	detail, err := f.svc.GetDocument(context.Background(), "1", models.Viewer{GrantDepartment: "ele"})
	require.NoError(t, err)
	assert.Equal(t, "1", detail.ID)

	detail, err = f.svc.GetDocument(context.Background(), "1", models.Viewer{Email: "head@teach.example.lt"})
	require.NoError(t, err)
	assert.Equal(t, "1", detail.ID)

	_, err = f.svc.GetDocument(context.Background(), "1", models.Viewer{Email: "admin@example.lt", Capabilities: models.Capabilities{IsAdmin: true}})
	require.NoError(t, err)
}

func TestWorkflowListDocumentsScopes(t *testing.T) {
	f := newWorkflowFixture(t)
	f.documents.seed(assignmentDoc(models.StatusSubmitted))
	other := topicDoc(models.StatusDraft)
	other.Department = "INF"
	f.documents.seed(other)

	docs, pagination, err := f.svc.ListDocuments(context.Background(), ScopeDepartment, dto.DocumentQuery{}, models.Viewer{Email: "head@teach.example.lt"})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "1", docs[0].ID)
	assert.Equal(t, 1, pagination.TotalCount)

	docs, _, err = f.svc.ListDocuments(context.Background(), ScopeDepartment, dto.DocumentQuery{}, models.Viewer{Email: "b@teach.example.lt"})
	require.NoError(t, err)
	assert.Empty(t, docs)

	docs, _, err = f.svc.ListDocuments(context.Background(), ScopeCommission, dto.DocumentQuery{}, models.Viewer{GrantDepartment: "INF"})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "2", docs[0].ID)

	_, _, err = f.svc.ListDocuments(context.Background(), ScopeCommission, dto.DocumentQuery{}, models.Viewer{Email: "a@stud.example.lt", Capabilities: models.Capabilities{IsStudent: true}})
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))

	docs, _, err = f.svc.ListDocuments(context.Background(), ScopeOwn, dto.DocumentQuery{PageSize: 5}, models.Viewer{Email: "a@stud.example.lt", Capabilities: models.Capabilities{IsStudent: true}})
	require.NoError(t, err)
	assert.Len(t, docs, 2)
	last := f.documents.filters[len(f.documents.filters)-1]
	assert.Equal(t, "a@stud.example.lt", last.StudentEmail)
	assert.Equal(t, 5, last.Limit)

	_, _, err = f.svc.ListDocuments(context.Background(), ScopeOwn, dto.DocumentQuery{}, models.Viewer{GrantDepartment: "INF"})
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))
}

func TestWorkflowComments(t *testing.T) {
	f := newWorkflowFixture(t)
	f.documents.seed(assignmentDoc(models.StatusSubmitted))
	f.documents.seed(topicDoc(models.StatusSubmitted))
	supervisor := models.Viewer{Email: "b@teach.example.lt", DisplayName: "Dr. B"}
	student := models.Viewer{Email: "a@stud.example.lt"}

	root, err := f.svc.AddComment(context.Background(), CommentInput{DocumentID: "1", FieldName: "title", Text: "Narrow the scope", AuthorRole: models.ActorSupervisor}, supervisor)
	require.NoError(t, err)
	assert.True(t, root.Unread)
	assert.Equal(t, "Dr. B", root.AuthorName)
	require.NotNil(t, root.FieldName)

	reply, err := f.svc.AddComment(context.Background(), CommentInput{DocumentID: "1", ParentCommentID: root.ID, Text: "Done", AuthorRole: models.ActorStudent}, student)
	require.NoError(t, err)
	require.NotNil(t, reply.ParentCommentID)
	assert.Equal(t, root.ID, *reply.ParentCommentID)

	_, err = f.svc.AddComment(context.Background(), CommentInput{DocumentID: "2", ParentCommentID: root.ID, Text: "Wrong thread", AuthorRole: models.ActorStudent}, student)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))

	_, err = f.svc.AddComment(context.Background(), CommentInput{DocumentID: "1", ParentCommentID: "missing", Text: "?", AuthorRole: models.ActorStudent}, student)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))

	_, err = f.svc.AddComment(context.Background(), CommentInput{DocumentID: "1", Text: "  ", AuthorRole: models.ActorStudent}, student)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))

	_, err = f.svc.AddComment(context.Background(), CommentInput{DocumentID: "1", Text: "Approved!", AuthorRole: models.ActorSupervisor}, student)
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))

	threads, err := f.svc.ListComments(context.Background(), "1", student)
	require.NoError(t, err)
	require.Len(t, threads, 1)
	require.Len(t, threads[0].Replies, 1)
	assert.Equal(t, "Done", threads[0].Replies[0].Text)

	detail, err := f.svc.GetDocument(context.Background(), "1", student)
	require.NoError(t, err)
	assert.Equal(t, 1, detail.UnreadComments)
}

func TestWorkflowMarkCommentReadIsIdempotent(t *testing.T) {
	f := newWorkflowFixture(t)
	f.documents.seed(assignmentDoc(models.StatusSubmitted))
	student := models.Viewer{Email: "a@stud.example.lt"}
	comment, err := f.svc.AddComment(context.Background(), CommentInput{DocumentID: "1", Text: "Please check", AuthorRole: models.ActorSupervisor}, models.Viewer{Email: "b@teach.example.lt"})
	require.NoError(t, err)

	require.NoError(t, f.svc.MarkCommentRead(context.Background(), comment.ID, student))
	require.NoError(t, f.svc.MarkCommentRead(context.Background(), comment.ID, student))

	stored, _ := f.comments.GetByID(context.Background(), comment.ID)
	assert.False(t, stored.Unread)
	assert.Equal(t, 1, f.comments.markCalls)

	err = f.svc.MarkCommentRead(context.Background(), "missing", student)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))

	err = f.svc.MarkCommentRead(context.Background(), comment.ID, models.Viewer{Email: "c@teach.example.lt"})
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))
}

func TestBuildCommentThreadsKeepsOrphans(t *testing.T) {
	missing := "gone"
	parent := "c1"
	threads := BuildCommentThreads([]models.Comment{
		{ID: "c1", Text: "root"},
		{ID: "c2", Text: "reply", ParentCommentID: &parent},
		{ID: "c3", Text: "orphan", ParentCommentID: &missing},
	})
	require.Len(t, threads, 2)
	assert.Equal(t, "c1", threads[0].ID)
	require.Len(t, threads[0].Replies, 1)
	assert.Equal(t, "c3", threads[1].ID)
}
