package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/slotswapper/slotswapper-api/internal/models"
	appErrors "github.com/slotswapper/slotswapper-api/pkg/errors"
	"github.com/slotswapper/slotswapper-api/pkg/jobs"
)

// NotificationSink accepts fire-and-forget notification creation calls. The
// swap coordinator depends on this capability, never on the concrete service.
type NotificationSink interface {
	Notify(ctx context.Context, notification models.Notification) error
}

type notificationStore interface {
	Create(ctx context.Context, notification *models.Notification) error
	ListByUser(ctx context.Context, userID string, unreadOnly bool) ([]models.Notification, error)
	CountUnread(ctx context.Context, userID string) (int, error)
	MarkRead(ctx context.Context, id, userID string) error
	MarkAllRead(ctx context.Context, userID string) error
}

// NotificationService persists notifications through a background queue and
// serves the per-user notification feed.
type NotificationService struct {
	repo    notificationStore
	queue   *jobs.Queue
	logger  *zap.Logger
	metrics *MetricsService
}

// NewNotificationService constructs the service and its dispatch queue.
func NewNotificationService(repo notificationStore, logger *zap.Logger, metrics *MetricsService, queueCfg jobs.QueueConfig) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &NotificationService{repo: repo, logger: logger, metrics: metrics}
	queueCfg.Logger = logger
	svc.queue = jobs.NewQueue("notifications", svc.handleJob, queueCfg)
	return svc
}

// Start launches the dispatch workers.
func (s *NotificationService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the dispatch workers.
func (s *NotificationService) Stop() {
	s.queue.Stop()
}

// Notify enqueues a notification for asynchronous persistence. Delivery is
// best-effort: a full queue falls back to a synchronous write, and a failure
// there is logged and counted but never returned as a business error by
// callers.
func (s *NotificationService) Notify(ctx context.Context, notification models.Notification) error {
	err := s.queue.Enqueue(jobs.Job{
		ID:      notification.ID,
		Type:    string(notification.Type),
		Payload: notification,
	})
	if err == nil {
		return nil
	}

	s.logger.Warn("notification enqueue failed, writing synchronously", zap.Error(err))
	if err := s.repo.Create(ctx, &notification); err != nil {
		if s.metrics != nil {
			s.metrics.RecordNotificationDropped()
		}
		return fmt.Errorf("deliver notification: %w", err)
	}
	return nil
}

func (s *NotificationService) handleJob(ctx context.Context, job jobs.Job) error {
	notification, ok := job.Payload.(models.Notification)
	if !ok {
		s.logger.Error("unexpected notification payload", zap.String("job_id", job.ID))
		return nil
	}
	return s.repo.Create(ctx, &notification)
}

// List returns the caller's notifications with the unread count.
func (s *NotificationService) List(ctx context.Context, userID string, unreadOnly bool) ([]models.Notification, int, error) {
	notifications, err := s.repo.ListByUser(ctx, userID, unreadOnly)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list notifications")
	}
	unread, err := s.repo.CountUnread(ctx, userID)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count notifications")
	}
	return notifications, unread, nil
}

// MarkRead acknowledges a single notification owned by the caller.
func (s *NotificationService) MarkRead(ctx context.Context, id, userID string) error {
	if err := s.repo.MarkRead(ctx, id, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "notification not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark notification read")
	}
	return nil
}

// MarkAllRead acknowledges every unread notification for the caller.
func (s *NotificationService) MarkAllRead(ctx context.Context, userID string) error {
	if err := s.repo.MarkAllRead(ctx, userID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark notifications read")
	}
	return nil
}
