package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/noah-isme/thesis-workflow-api/internal/models"
	"github.com/noah-isme/thesis-workflow-api/pkg/jobs"
	"github.com/noah-isme/thesis-workflow-api/pkg/middleware/requestid"
)

// AuditDispatcher writes audit entries from a background worker pool. It
// satisfies the same interface as the audit repository, so services and the
// audit middleware can use either.
type AuditDispatcher struct {
	store  auditLogger
	queue  *jobs.Queue[*models.AuditLog]
	logger *zap.Logger
}

// NewAuditDispatcher constructs the dispatcher. Call Start before use and
// Stop on shutdown to flush pending entries.
func NewAuditDispatcher(store auditLogger, logger *zap.Logger, cfg jobs.Config) *AuditDispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg.Logger = logger
	d := &AuditDispatcher{store: store, logger: logger}
	d.queue = jobs.New("audit", d.write, cfg)
	return d
}

// Start launches the workers.
func (d *AuditDispatcher) Start(ctx context.Context) { d.queue.Start(ctx) }

// Stop waits for the workers and flushes the buffer.
func (d *AuditDispatcher) Stop() { d.queue.Stop() }

// CreateAuditLog queues the entry, stamped with the request ID of ctx. When
// the queue cannot take it the entry is written inline instead.
func (d *AuditDispatcher) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	if log == nil {
		return nil
	}
	if log.RequestID == "" {
		log.RequestID = requestid.FromContext(ctx)
	}
	err := d.queue.Enqueue(ctx, jobs.Job[*models.AuditLog]{Type: log.Action, Payload: log})
	if err == nil {
		return nil
	}
	d.logger.Warn("audit queue unavailable, writing inline",
		zap.String("action", log.Action), zap.String("request_id", log.RequestID), zap.Error(err))
	return d.store.CreateAuditLog(context.WithoutCancel(ctx), log)
}

func (d *AuditDispatcher) write(ctx context.Context, job jobs.Job[*models.AuditLog]) error {
	return d.store.CreateAuditLog(ctx, job.Payload)
}
