package service

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/noah-isme/thesis-workflow-api/internal/dto"
	"github.com/noah-isme/thesis-workflow-api/internal/models"
	appErrors "github.com/noah-isme/thesis-workflow-api/pkg/errors"
)

type auditLogger interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type auditStore interface {
	auditLogger
	List(ctx context.Context, filter models.AuditLogFilter) ([]models.AuditLog, int, error)
}

// AuditService exposes the audit trail to administrators.
type AuditService struct {
	repo   auditStore
	logger *zap.Logger
}

// NewAuditService constructs the service.
func NewAuditService(repo auditStore, logger *zap.Logger) *AuditService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditService{repo: repo, logger: logger}
}

// List returns audit entries newest first.
func (s *AuditService) List(ctx context.Context, query dto.AuditLogQuery) ([]models.AuditLog, *models.Pagination, error) {
	page, size := normalizePage(query.Page, query.PageSize)
	logs, total, err := s.repo.List(ctx, models.AuditLogFilter{
		Actor:    query.Actor,
		Action:   query.Action,
		Resource: query.Resource,
		Since:    query.Since,
		Page:     page,
		PageSize: size,
	})
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list audit logs")
	}
	return logs, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// emitAudit persists an audit entry. Failures are logged and never fail the caller.
func emitAudit(ctx context.Context, audit auditLogger, logger *zap.Logger, log *models.AuditLog) {
	if audit == nil || log == nil {
		return
	}
	if log.IPAddress == "" {
		log.IPAddress = "system"
	}
	if log.UserAgent == "" {
		log.UserAgent = "workflow-service"
	}
	if err := audit.CreateAuditLog(ctx, log); err != nil && logger != nil {
		logger.Warn("failed to persist audit log", zap.String("action", log.Action), zap.Error(err))
	}
}

func marshalAudit(v interface{}) []byte {
	payload, err := json.Marshal(v)
	if err != nil {
		return []byte("{}")
	}
	return payload
}

func normalizePage(page, size int) (int, int) {
	if page < 1 {
		page = 1
	}
	if size <= 0 {
		size = 20
	}
	if size > 100 {
		size = 100
	}
	return page, size
}
