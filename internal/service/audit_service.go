package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vuledev/sams-api/internal/models"
	appErrors "github.com/vuledev/sams-api/pkg/errors"
	"github.com/vuledev/sams-api/pkg/jobs"
)

type auditRepository interface {
	Insert(ctx context.Context, entry *models.AuditLog) error
	List(ctx context.Context, filter models.AuditFilter) ([]models.AuditLog, int, error)
	DeleteOlderThan(ctx context.Context, before time.Time) (int64, error)
}

// AuditService records the audit trail. Writes go through a background
// queue so request latency never depends on the trail; reads hit the
// repository directly.
type AuditService struct {
	repo   auditRepository
	queue  *jobs.Queue
	logger *zap.Logger
}

// NewAuditService constructs an AuditService and its write queue. Call
// Start before recording and Stop on shutdown.
func NewAuditService(repo auditRepository, logger *zap.Logger, cfg jobs.QueueConfig) *AuditService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &AuditService{repo: repo, logger: logger}
	cfg.Logger = logger
	s.queue = jobs.NewQueue("audit", s.handle, cfg)
	return s
}

// Start launches the background writers.
func (s *AuditService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the writers.
func (s *AuditService) Stop() {
	s.queue.Stop()
}

// QueueDepth reports the number of pending audit writes.
func (s *AuditService) QueueDepth() int {
	return s.queue.Depth()
}

// Prune removes audit entries older than the retention window.
func (s *AuditService) Prune(ctx context.Context, retention time.Duration) {
	removed, err := s.repo.DeleteOlderThan(ctx, time.Now().UTC().Add(-retention))
	if err != nil {
		s.logger.Warn("audit prune failed", zap.Error(err))
		return
	}
	if removed > 0 {
		s.logger.Info("audit entries pruned", zap.Int64("removed", removed))
	}
}

func (s *AuditService) handle(ctx context.Context, job jobs.Job) error {
	entry, ok := job.Payload.(*models.AuditLog)
	if !ok {
		return fmt.Errorf("unexpected audit payload %T", job.Payload)
	}
	return s.repo.Insert(ctx, entry)
}

// Record enqueues one audit entry built from the acting account. Payload
// values are serialised to JSON; failures are logged, never surfaced to
// the caller.
func (s *AuditService) Record(actor models.Actor, entry models.AuditLog, payload interface{}) {
	entry.AuthorID = &actor.ID
	entry.AuthorEmail = actor.Email
	entry.AuthorName = actor.FullName
	entry.AuthorRoles = append([]string{}, actor.Roles...)
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			s.logger.Warn("failed to serialise audit payload", zap.Error(err), zap.String("action", entry.Action))
		} else {
			entry.Payload = raw
		}
	}
	if err := s.queue.Enqueue(jobs.Job{ID: uuid.NewString(), Type: entry.Action, Payload: &entry}); err != nil {
		s.logger.Warn("failed to enqueue audit entry", zap.Error(err), zap.String("action", entry.Action))
	}
}

// List browses the audit trail. Restricted to privileged actors.
func (s *AuditService) List(ctx context.Context, actor models.Actor, filter models.AuditFilter) ([]models.AuditLog, *models.Pagination, error) {
	if !actor.IsSuperAdmin() {
		return nil, nil, appErrors.Clone(appErrors.ErrForbidden, "only privileged accounts browse the audit trail")
	}
	entries, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list audit logs")
	}
	return entries, paginate(total, filter.Page, filter.PageSize), nil
}

// paginate derives pagination metadata from a total row count.
func paginate(total, page, size int) *models.Pagination {
	if page < 1 {
		page = 1
	}
	if size <= 0 || size > 100 {
		size = 20
	}
	pages := 0
	if total > 0 {
		pages = (total + size - 1) / size
	}
	return &models.Pagination{Total: total, PageIndex: page, PageSize: size, TotalPages: pages}
}
