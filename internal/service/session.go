package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/noah-isme/thesis-workflow-api/internal/models"
	appErrors "github.com/noah-isme/thesis-workflow-api/pkg/errors"
)

// IdentitySource is the external session a request session hydrates from.
// Identify returns nil without error when no identity is present.
type IdentitySource interface {
	Identify(ctx context.Context) (*models.Identity, error)
	End(ctx context.Context) error
}

type roleAssignmentLookup interface {
	AssignedRole(ctx context.Context, email string) (models.Role, error)
}

type departmentHeadLookup interface {
	IsDepartmentHead(ctx context.Context, email string) (bool, error)
}

type accessCodeValidator interface {
	Validate(ctx context.Context, code string) (*models.TemporaryGrant, error)
}

// SessionManager holds the shared collaborators and creates request sessions.
type SessionManager struct {
	resolver    *RoleResolver
	assignments roleAssignmentLookup
	heads       departmentHeadLookup
	accessCodes accessCodeValidator
	metrics     *MetricsService
	logger      *zap.Logger
	initTimeout time.Duration
}

// SessionManagerOption configures the manager.
type SessionManagerOption func(*SessionManager)

// WithRoleAssignments enables administrator-assigned roles.
func WithRoleAssignments(lookup roleAssignmentLookup) SessionManagerOption {
	return func(m *SessionManager) {
		m.assignments = lookup
	}
}

// WithSessionMetrics records resolutions.
func WithSessionMetrics(metrics *MetricsService) SessionManagerOption {
	return func(m *SessionManager) {
		m.metrics = metrics
	}
}

// WithInitTimeout bounds how long readers wait for a session to initialize.
func WithInitTimeout(timeout time.Duration) SessionManagerOption {
	return func(m *SessionManager) {
		if timeout > 0 {
			m.initTimeout = timeout
		}
	}
}

// NewSessionManager constructs the manager.
func NewSessionManager(resolver *RoleResolver, heads departmentHeadLookup, accessCodes accessCodeValidator, logger *zap.Logger, opts ...SessionManagerOption) *SessionManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &SessionManager{
		resolver:    resolver,
		heads:       heads,
		accessCodes: accessCodes,
		logger:      logger,
		initTimeout: 5 * time.Second,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	return m
}

// New returns an uninitialized session bound to source. source may be nil for
// requests that carry no credential.
func (m *SessionManager) New(source IdentitySource) *Session {
	return &Session{manager: m, source: source, ready: make(chan struct{})}
}

// Access is an immutable view of an initialized session.
type Access struct {
	Principal *models.Principal
	Grant     *models.TemporaryGrant
}

// HasIdentity reports whether a standing user is present.
func (a Access) HasIdentity() bool { return a.Principal != nil }

func (a Access) HasTeacherAccess() bool {
	return a.Principal != nil && a.Principal.Capabilities.IsTeacher
}

func (a Access) HasDepartmentHeadAccess() bool {
	return a.Principal != nil && a.Principal.Capabilities.IsDepartmentHead
}

// HasCommissionAccess is also true for a cached temporary grant, whatever the role.
func (a Access) HasCommissionAccess() bool {
	if a.Grant != nil {
		return true
	}
	return a.Principal != nil && a.Principal.Capabilities.IsCommission
}

func (a Access) HasStudentAccess() bool {
	return a.Principal != nil && a.Principal.Capabilities.IsStudent
}

func (a Access) HasReviewerAccess() bool {
	return a.Principal != nil && a.Principal.Capabilities.IsReviewer
}

func (a Access) HasAdminAccess() bool {
	return a.Principal != nil && a.Principal.Capabilities.IsAdmin
}

// Session is the per-request cache of identity, role flags and temporary grant.
// Only its own methods mutate it; readers go through Access, which waits for
// initialization.
type Session struct {
	manager *SessionManager
	source  IdentitySource
	flight  singleflight.Group

	// mu serializes the operations that rebuild the session.
	mu sync.Mutex

	stateMu     sync.Mutex
	initialized bool
	ready       chan struct{}
	principal   *models.Principal
	grant       *models.TemporaryGrant
}

// InitFromExternalSession hydrates the session from its identity source.
// Concurrent callers share one resolution. A failing identity source leaves
// the session without identity. The session is marked initialized when this
// returns, whether or not it succeeded.
func (s *Session) InitFromExternalSession(ctx context.Context) error {
	_, err, _ := s.flight.Do("init", func() (interface{}, error) {
		return nil, s.initFromSource(ctx)
	})
	return err
}

func (s *Session) initFromSource(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.markInitialized()

	if s.resolved() || s.source == nil {
		return nil
	}
	identity, err := s.source.Identify(ctx)
	if err != nil {
		s.manager.logger.Warn("session identity lookup failed, continuing without identity", zap.Error(err))
		return nil
	}
	if identity == nil {
		return nil
	}
	return s.setUserLocked(ctx, *identity)
}

// SetUser resolves and publishes the principal for identity, dropping any temporary grant.
func (s *Session) SetUser(ctx context.Context, identity models.Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setUserLocked(ctx, identity)
}

func (s *Session) setUserLocked(ctx context.Context, identity models.Identity) error {
	s.markUninitialized()

	email := identity.NormalizedEmail()
	if email == "" {
		s.publish(nil, nil)
		return appErrors.Clone(appErrors.ErrAuthenticationRequired, "identity has no e-mail address")
	}
	identity.Email = email

	m := s.manager
	role, rule := m.resolver.resolve(email)
	if m.assignments != nil {
		assigned, err := m.assignments.AssignedRole(ctx, email)
		if err != nil {
			m.logger.Warn("role assignment lookup failed, using derived role", zap.String("email", email), zap.Error(err))
		} else if assigned != "" {
			role, rule = assigned, "assignment"
		}
	}

	isHead := false
	if m.heads != nil {
		var err error
		isHead, err = m.heads.IsDepartmentHead(ctx, email)
		if err != nil {
			m.logger.Warn("department head lookup failed, treating as not head", zap.String("email", email), zap.Error(err))
			isHead = false
		}
	}

	principal := &models.Principal{
		Identity:     identity,
		Role:         role,
		Capabilities: m.resolver.Capabilities(role, identity.JobTitle, isHead),
	}
	s.publish(principal, nil)

	m.metrics.RecordSessionResolution(string(role))
	m.logger.Debug("session resolved", zap.String("email", email), zap.String("role", string(role)), zap.String("rule", rule))
	return nil
}

// SetTemporaryAccess drops the current user and validates code. On success
// only the department of the grant is kept.
func (s *Session) SetTemporaryAccess(ctx context.Context, code string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.markUninitialized()
	if s.manager.accessCodes == nil {
		s.publish(nil, nil)
		return false, nil
	}
	grant, err := s.manager.accessCodes.Validate(ctx, code)
	if err != nil {
		s.publish(nil, nil)
		return false, err
	}
	if grant == nil {
		s.publish(nil, nil)
		return false, nil
	}
	s.publish(nil, &models.TemporaryGrant{Department: grant.Department})
	return true, nil
}

// ClearUser wipes the session and ends the underlying external session.
func (s *Session) ClearUser(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.publish(nil, nil)
	if s.source == nil {
		return nil
	}
	return s.source.End(ctx)
}

// Access waits for initialization and returns the current view.
func (s *Session) Access(ctx context.Context) (Access, error) {
	if err := s.Wait(ctx); err != nil {
		return Access{}, err
	}
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return Access{Principal: s.principal, Grant: s.grant}, nil
}

// Initialized reports whether the session may be read.
func (s *Session) Initialized() bool {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.initialized
}

// Wait blocks until the session is initialized, ctx is done or the manager's
// init timeout passes.
func (s *Session) Wait(ctx context.Context) error {
	s.stateMu.Lock()
	if s.initialized {
		s.stateMu.Unlock()
		return nil
	}
	ready := s.ready
	s.stateMu.Unlock()

	timer := time.NewTimer(s.manager.initTimeout)
	defer timer.Stop()
	select {
	case <-ready:
		return nil
	case <-ctx.Done():
		return appErrors.Wrap(ctx.Err(), appErrors.ErrUpstreamUnavailable.Code, appErrors.ErrUpstreamUnavailable.Status, "session initialization interrupted")
	case <-timer.C:
		return appErrors.Clone(appErrors.ErrUpstreamUnavailable, "session initialization timed out")
	}
}

func (s *Session) resolved() bool {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.initialized && (s.principal != nil || s.grant != nil)
}

func (s *Session) markUninitialized() {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	if s.initialized {
		s.initialized = false
		s.ready = make(chan struct{})
	}
}

func (s *Session) markInitialized() {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	if !s.initialized {
		s.initialized = true
		close(s.ready)
	}
}

// publish replaces principal and grant together and marks the session initialized.
func (s *Session) publish(principal *models.Principal, grant *models.TemporaryGrant) {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	s.principal = principal
	s.grant = grant
	if !s.initialized {
		s.initialized = true
		close(s.ready)
	}
}

// TokenIdentitySource reads the identity from a session token.
type TokenIdentitySource struct {
	auth   *AuthService
	token  string
	claims *models.SessionClaims
}

// NewTokenIdentitySource binds a raw session token to the auth service.
func NewTokenIdentitySource(auth *AuthService, token string) *TokenIdentitySource {
	return &TokenIdentitySource{auth: auth, token: token}
}

// Identify validates the token. An invalid or revoked token yields no identity;
// a failing revocation store is reported as an error, which the session
// treats as no identity.
func (t *TokenIdentitySource) Identify(ctx context.Context) (*models.Identity, error) {
	if t.token == "" || t.auth == nil {
		return nil, nil
	}
	claims, err := t.auth.ValidateToken(ctx, t.token)
	if err != nil {
		if appErrors.Is(err, appErrors.ErrAuthenticationRequired) {
			return nil, nil
		}
		return nil, err
	}
	t.claims = claims
	identity := claims.Identity()
	return &identity, nil
}

// End revokes the token.
func (t *TokenIdentitySource) End(ctx context.Context) error {
	if t.auth == nil {
		return nil
	}
	if t.claims == nil {
		if _, err := t.Identify(ctx); err != nil {
			return err
		}
	}
	return t.auth.Revoke(ctx, t.claims)
}
