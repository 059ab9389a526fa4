package repositories

import (
	"context"
	"time"

	"booklend/internal/adapters/persistence/models"
	"booklend/internal/core/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type outboxRepository struct {
	db *gorm.DB
}

// NewOutboxRepository creates a new notification outbox repository
func NewOutboxRepository(db *gorm.DB) OutboxRepository {
	return &outboxRepository{db: db}
}

// Enqueue stores a notification for later redelivery
func (r *outboxRepository) Enqueue(ctx context.Context, entry *domain.OutboxEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.State == "" {
		entry.State = domain.OutboxPending
	}

	row := &models.NotificationOutbox{
		ID:            entry.ID,
		RecipientID:   entry.Notification.RecipientID,
		TransactionID: entry.Notification.TransactionID,
		Kind:          string(entry.Notification.Kind),
		Status:        string(entry.Notification.Status),
		ActorID:       entry.Notification.ActorID,
		State:         string(entry.State),
		Attempts:      entry.Attempts,
		NextAttemptAt: entry.NextAttemptAt,
		LastError:     entry.LastError,
	}
	return translate(r.db.WithContext(ctx).Create(row).Error, nil)
}

// ListDue returns pending entries whose next attempt is due
func (r *outboxRepository) ListDue(ctx context.Context, now time.Time, limit int) ([]*domain.OutboxEntry, error) {
	var rows []*models.NotificationOutbox
	err := r.db.WithContext(ctx).
		Where("state = ? AND next_attempt_at <= ?", string(domain.OutboxPending), now).
		Order("next_attempt_at ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, translate(err, nil)
	}

	entries := make([]*domain.OutboxEntry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, row.ToDomain())
	}
	return entries, nil
}

// MarkDelivered marks an entry delivered
func (r *outboxRepository) MarkDelivered(ctx context.Context, id string, attempts int, at time.Time) error {
	return r.update(ctx, id, map[string]interface{}{
		"state":      string(domain.OutboxDelivered),
		"attempts":   attempts,
		"last_error": "",
		"updated_at": at,
	})
}

// MarkRetry schedules another attempt
func (r *outboxRepository) MarkRetry(ctx context.Context, id string, attempts int, next time.Time, lastErr string) error {
	return r.update(ctx, id, map[string]interface{}{
		"attempts":        attempts,
		"next_attempt_at": next,
		"last_error":      lastErr,
	})
}

// MarkFailed gives up on an entry
func (r *outboxRepository) MarkFailed(ctx context.Context, id string, attempts int, lastErr string) error {
	return r.update(ctx, id, map[string]interface{}{
		"state":      string(domain.OutboxFailed),
		"attempts":   attempts,
		"last_error": lastErr,
	})
}

func (r *outboxRepository) update(ctx context.Context, id string, updates map[string]interface{}) error {
	err := r.db.WithContext(ctx).
		Model(&models.NotificationOutbox{}).
		Where("id = ?", id).
		Updates(updates).Error
	return translate(err, nil)
}
