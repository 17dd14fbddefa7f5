package service

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"math/big"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/thesis-workflow-api/internal/dto"
	"github.com/noah-isme/thesis-workflow-api/internal/models"
	appErrors "github.com/noah-isme/thesis-workflow-api/pkg/errors"
)

const (
	accessCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ0123456789"
	accessCodeLength   = 6
)

type temporaryAccessStore interface {
	Create(ctx context.Context, grant *models.TemporaryAccess) error
	ListUsableByPrefix(ctx context.Context, prefix string, now time.Time) ([]models.TemporaryAccess, error)
	List(ctx context.Context, filter models.TemporaryAccessFilter) ([]models.TemporaryAccess, error)
	Deactivate(ctx context.Context, id string) error
}

// TemporaryAccessService issues and validates commission access codes.
type TemporaryAccessService struct {
	store      temporaryAccessStore
	audit      auditLogger
	validator  *validator.Validate
	logger     *zap.Logger
	defaultTTL time.Duration
	now        func() time.Time
	generate   func(department string) (string, error)
}

// TemporaryAccessOption configures the service.
type TemporaryAccessOption func(*TemporaryAccessService)

// WithAccessClock overrides the time source.
func WithAccessClock(now func() time.Time) TemporaryAccessOption {
	return func(s *TemporaryAccessService) {
		if now != nil {
			s.now = now
		}
	}
}

// WithAccessCodeGenerator overrides code generation.
func WithAccessCodeGenerator(generate func(department string) (string, error)) TemporaryAccessOption {
	return func(s *TemporaryAccessService) {
		if generate != nil {
			s.generate = generate
		}
	}
}

// NewTemporaryAccessService constructs the service.
func NewTemporaryAccessService(store temporaryAccessStore, audit auditLogger, validate *validator.Validate, logger *zap.Logger, defaultTTL time.Duration, opts ...TemporaryAccessOption) *TemporaryAccessService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if defaultTTL <= 0 {
		defaultTTL = 7 * 24 * time.Hour
	}
	svc := &TemporaryAccessService{
		store:      store,
		audit:      audit,
		validator:  validate,
		logger:     logger,
		defaultTTL: defaultTTL,
		now:        time.Now,
		generate:   GenerateAccessCode,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc
}

// Create issues a new code for a department. The plain code is only ever returned here.
func (s *TemporaryAccessService) Create(ctx context.Context, req dto.CreateAccessCodeRequest, createdBy string) (*dto.IssuedAccessCode, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid access code payload")
	}
	now := s.now().UTC()
	expiresAt := now.Add(s.defaultTTL)
	if req.ExpiresAt != nil {
		if !req.ExpiresAt.After(now) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "expiresAt must be in the future")
		}
		expiresAt = req.ExpiresAt.UTC()
	}

	department := strings.ToUpper(strings.TrimSpace(req.Department))
	code, err := s.generate(department)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to generate access code")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash access code")
	}

	grant := &models.TemporaryAccess{
		CodePrefix: accessCodePrefix(code),
		CodeHash:   string(hash),
		Department: department,
		IsActive:   true,
		ExpiresAt:  expiresAt,
		CreatedBy:  models.NormalizeEmail(createdBy),
		CreatedAt:  now,
	}
	if err := s.store.Create(ctx, grant); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store access code")
	}

	emitAudit(ctx, s.audit, s.logger, &models.AuditLog{
		Actor:      grant.CreatedBy,
		Action:     models.AuditActionAccessCodeCreate,
		Resource:   "temporary_access",
		ResourceID: &grant.ID,
		NewValues:  marshalAudit(map[string]interface{}{"department": grant.Department, "expiresAt": grant.ExpiresAt}),
	})
	return &dto.IssuedAccessCode{Code: code, Grant: *grant}, nil
}

// Validate checks a presented code. Unknown, inactive and expired codes all
// return nil without error.
func (s *TemporaryAccessService) Validate(ctx context.Context, code string) (*models.TemporaryGrant, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	prefix := accessCodePrefix(code)
	if prefix == "" {
		return nil, nil
	}
	now := s.now().UTC()
	candidates, err := s.store.ListUsableByPrefix(ctx, prefix, now)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUpstreamUnavailable.Code, appErrors.ErrUpstreamUnavailable.Status, "access code store unavailable")
	}
	for _, candidate := range candidates {
		if !candidate.ValidAt(now) {
			continue
		}
		if bcrypt.CompareHashAndPassword([]byte(candidate.CodeHash), []byte(code)) == nil {
			return &models.TemporaryGrant{Department: candidate.Department}, nil
		}
	}
	return nil, nil
}

// List returns codes for the admin console. Hashes are never serialized.
func (s *TemporaryAccessService) List(ctx context.Context, query dto.AccessCodeQuery) ([]models.TemporaryAccess, *models.Pagination, error) {
	page, size := normalizePage(query.Page, query.PageSize)
	grants, err := s.store.List(ctx, models.TemporaryAccessFilter{
		Department: strings.ToUpper(strings.TrimSpace(query.Department)),
		ActiveOnly: query.ActiveOnly,
		Limit:      size,
		Offset:     (page - 1) * size,
	})
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list access codes")
	}
	return grants, &models.Pagination{Page: page, PageSize: size, TotalCount: len(grants)}, nil
}

// Deactivate revokes a code immediately.
func (s *TemporaryAccessService) Deactivate(ctx context.Context, id, actor string) error {
	if err := s.store.Deactivate(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "access code not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to deactivate access code")
	}
	emitAudit(ctx, s.audit, s.logger, &models.AuditLog{
		Actor:      models.NormalizeEmail(actor),
		Action:     models.AuditActionAccessCodeRevoke,
		Resource:   "temporary_access",
		ResourceID: &id,
	})
	return nil
}

// GenerateAccessCode returns a random code of the form DEPT-XXXXXX.
func GenerateAccessCode(department string) (string, error) {
	department = strings.ToUpper(strings.TrimSpace(department))
	if department == "" {
		return "", errors.New("department is required")
	}
	var b strings.Builder
	b.WriteString(department)
	b.WriteByte('-')
	max := big.NewInt(int64(len(accessCodeAlphabet)))
	for i := 0; i < accessCodeLength; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b.WriteByte(accessCodeAlphabet[n.Int64()])
	}
	return b.String(), nil
}

// accessCodePrefix is the department segment used to narrow hash comparisons.
func accessCodePrefix(code string) string {
	idx := strings.LastIndex(code, "-")
	if idx <= 0 || idx == len(code)-1 {
		return ""
	}
	return strings.ToUpper(code[:idx])
}
