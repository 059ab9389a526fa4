package services

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"booklend/internal/adapters/persistence/repositories"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Backoff is an exponential delay: Base doubled per attempt, capped at Max
type Backoff struct {
	Base time.Duration
	Max  time.Duration
}

// DefaultBackoff starts at 30 seconds and caps at one hour
func DefaultBackoff() Backoff {
	return Backoff{Base: 30 * time.Second, Max: time.Hour}
}

// Delay returns the wait before the attempt following attempt number n
func (b Backoff) Delay(n int) time.Duration {
	if b.Base <= 0 {
		return 0
	}
	if n < 1 {
		n = 1
	}
	d := b.Base
	for i := 1; i < n; i++ {
		if d > math.MaxInt64/2 {
			d = math.MaxInt64
			break
		}
		d *= 2
		if b.Max > 0 && d >= b.Max {
			return b.Max
		}
	}
	if b.Max > 0 && d > b.Max {
		return b.Max
	}
	return d
}

// RedeliveryService resends queued notifications on a cron schedule
type RedeliveryService struct {
	cron        *cron.Cron
	outbox      repositories.OutboxRepository
	notifier    Notifier
	backoff     Backoff
	maxAttempts int
	batchSize   int
	metrics     *Metrics
	log         *zap.Logger
	now         func() time.Time
	running     sync.Mutex
}

// NewRedeliveryService creates a new redelivery service
func NewRedeliveryService(outbox repositories.OutboxRepository, notifier Notifier, backoff Backoff, maxAttempts int, metrics *Metrics, log *zap.Logger) *RedeliveryService {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &RedeliveryService{
		cron:        cron.New(),
		outbox:      outbox,
		notifier:    notifier,
		backoff:     backoff,
		maxAttempts: maxAttempts,
		batchSize:   100,
		metrics:     metrics,
		log:         log,
		now:         time.Now,
	}
}

// Start schedules the redelivery job
func (s *RedeliveryService) Start(schedule string) error {
	if _, err := s.cron.AddFunc(schedule, func() { s.RunOnce(context.Background()) }); err != nil {
		return fmt.Errorf("invalid redelivery schedule %q: %w", schedule, err)
	}
	s.cron.Start()
	s.log.Info("notification redelivery started", zap.String("schedule", schedule))
	return nil
}

// Stop stops the scheduler and waits for a running job to finish
func (s *RedeliveryService) Stop() {
	<-s.cron.Stop().Done()
	s.log.Info("notification redelivery stopped")
}

// RunOnce processes every due outbox entry once. Overlapping runs are
// skipped. It returns how many entries were delivered and how many were
// given up on.
func (s *RedeliveryService) RunOnce(ctx context.Context) (delivered, failed int) {
	if !s.running.TryLock() {
		return 0, 0
	}
	defer s.running.Unlock()

	entries, err := s.outbox.ListDue(ctx, s.now(), s.batchSize)
	if err != nil {
		s.log.Error("failed to list due notifications", zap.Error(err))
		return 0, 0
	}

	for _, entry := range entries {
		attempts := entry.Attempts + 1
		log := s.log.With(
			zap.String("outbox_id", entry.ID),
			zap.String("transaction_id", entry.Notification.TransactionID),
			zap.Int("attempt", attempts),
		)

		sendErr := s.notifier.Notify(ctx, entry.Notification)
		switch {
		case sendErr == nil:
			if err := s.outbox.MarkDelivered(ctx, entry.ID, attempts, s.now()); err != nil {
				log.Error("failed to mark notification delivered", zap.Error(err))
				continue
			}
			s.metrics.notification(notifyDelivered)
			delivered++
		case attempts >= s.maxAttempts:
			if err := s.outbox.MarkFailed(ctx, entry.ID, attempts, sendErr.Error()); err != nil {
				log.Error("failed to mark notification failed", zap.Error(err))
				continue
			}
			s.metrics.notification(notifyFailed)
			log.Warn("giving up on notification", zap.Error(sendErr))
			failed++
		default:
			next := s.now().Add(s.backoff.Delay(attempts))
			if err := s.outbox.MarkRetry(ctx, entry.ID, attempts, next, sendErr.Error()); err != nil {
				log.Error("failed to reschedule notification", zap.Error(err))
				continue
			}
			s.metrics.notification(notifyRetried)
			log.Debug("notification redelivery failed, rescheduled", zap.Time("next_attempt_at", next), zap.Error(sendErr))
		}
	}

	if delivered > 0 || failed > 0 {
		s.log.Info("notification redelivery run", zap.Int("delivered", delivered), zap.Int("failed", failed))
	}
	return delivered, failed
}
