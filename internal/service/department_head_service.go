package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/thesis-workflow-api/internal/models"
	appErrors "github.com/noah-isme/thesis-workflow-api/pkg/errors"
)

type departmentDirectory interface {
	IsDepartmentHead(ctx context.Context, email string) (bool, error)
	HeadsDepartment(ctx context.Context, email, department string) (bool, error)
	DepartmentsHeadedBy(ctx context.Context, email string) ([]string, error)
}

const departmentHeadCachePrefix = "dept-head:"

// DepartmentHeadService answers whether an address heads a department. The
// plain lookup is cached; the live lookup always asks the directory.
type DepartmentHeadService struct {
	directory departmentDirectory
	cache     *CacheService
	ttl       time.Duration
	logger    *zap.Logger
}

// NewDepartmentHeadService constructs the service. cache may be nil.
func NewDepartmentHeadService(directory departmentDirectory, cache *CacheService, ttl time.Duration, logger *zap.Logger) *DepartmentHeadService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DepartmentHeadService{directory: directory, cache: cache, ttl: ttl, logger: logger}
}

// IsDepartmentHead returns the cached answer when present, otherwise asks the
// directory once for all concurrent callers.
func (s *DepartmentHeadService) IsDepartmentHead(ctx context.Context, email string) (bool, error) {
	email = models.NormalizeEmail(email)
	if email == "" {
		return false, nil
	}
	return Remember(ctx, s.cache, departmentHeadCachePrefix+email, s.ttl, func(ctx context.Context) (bool, error) {
		return s.lookup(ctx, email)
	})
}

// IsDepartmentHeadLive bypasses the cache and refreshes it with the directory's answer.
func (s *DepartmentHeadService) IsDepartmentHeadLive(ctx context.Context, email string) (bool, error) {
	email = models.NormalizeEmail(email)
	if email == "" {
		return false, nil
	}
	isHead, err := s.lookup(ctx, email)
	if err != nil {
		return false, err
	}
	_ = s.cache.Set(ctx, departmentHeadCachePrefix+email, isHead, s.ttl)
	return isHead, nil
}

func (s *DepartmentHeadService) lookup(ctx context.Context, email string) (bool, error) {
	isHead, err := s.directory.IsDepartmentHead(ctx, email)
	if err != nil {
		return false, appErrors.Wrap(err, appErrors.ErrUpstreamUnavailable.Code, appErrors.ErrUpstreamUnavailable.Status, "department directory unavailable")
	}
	return isHead, nil
}

// HeadsDepartment reports whether email heads the given department.
func (s *DepartmentHeadService) HeadsDepartment(ctx context.Context, email, department string) (bool, error) {
	email = models.NormalizeEmail(email)
	if email == "" || department == "" {
		return false, nil
	}
	ok, err := s.directory.HeadsDepartment(ctx, email, department)
	if err != nil {
		return false, appErrors.Wrap(err, appErrors.ErrUpstreamUnavailable.Code, appErrors.ErrUpstreamUnavailable.Status, "department directory unavailable")
	}
	return ok, nil
}

// DepartmentsHeadedBy lists the departments email heads.
func (s *DepartmentHeadService) DepartmentsHeadedBy(ctx context.Context, email string) ([]string, error) {
	email = models.NormalizeEmail(email)
	if email == "" {
		return nil, nil
	}
	codes, err := s.directory.DepartmentsHeadedBy(ctx, email)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUpstreamUnavailable.Code, appErrors.ErrUpstreamUnavailable.Status, "department directory unavailable")
	}
	return codes, nil
}
