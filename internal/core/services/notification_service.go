package services

import (
	"context"
	"time"

	"booklend/internal/adapters/persistence/repositories"
	"booklend/internal/core/domain"

	"go.uber.org/zap"
)

// NotificationService emits transition notifications. Delivery failures
// never fail the operation that triggered them: the notification is queued
// in the outbox for the redelivery job.
type NotificationService struct {
	notifier Notifier
	outbox   repositories.OutboxRepository
	backoff  Backoff
	metrics  *Metrics
	log      *zap.Logger
	now      func() time.Time
}

// NewNotificationService creates a new notification service
func NewNotificationService(notifier Notifier, outbox repositories.OutboxRepository, backoff Backoff, metrics *Metrics, log *zap.Logger) *NotificationService {
	return &NotificationService{
		notifier: notifier,
		outbox:   outbox,
		backoff:  backoff,
		metrics:  metrics,
		log:      log,
		now:      time.Now,
	}
}

// Emit delivers n once and queues it for redelivery on failure
func (s *NotificationService) Emit(ctx context.Context, n domain.Notification) {
	if n.RecipientID == "" {
		return
	}

	err := s.notifier.Notify(ctx, n)
	if err == nil {
		s.metrics.notification(notifyDelivered)
		return
	}

	s.log.Warn("notification delivery failed, queueing for redelivery",
		zap.String("transaction_id", n.TransactionID),
		zap.String("recipient_id", n.RecipientID),
		zap.String("kind", string(n.Kind)),
		zap.Error(err),
	)

	entry := &domain.OutboxEntry{
		Notification:  n,
		State:         domain.OutboxPending,
		Attempts:      1,
		NextAttemptAt: s.now().Add(s.backoff.Delay(1)),
		LastError:     err.Error(),
	}
	// the request context may already be done; the entry must still be kept
	if qerr := s.outbox.Enqueue(context.WithoutCancel(ctx), entry); qerr != nil {
		s.metrics.notification(notifyDropped)
		s.log.Error("failed to queue notification",
			zap.String("transaction_id", n.TransactionID),
			zap.String("kind", string(n.Kind)),
			zap.Error(qerr),
		)
		return
	}
	s.metrics.notification(notifyQueued)
}
