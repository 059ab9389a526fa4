package repositories

import (
	"context"

	"booklend/internal/adapters/persistence/models"
	"booklend/internal/core/domain"

	"gorm.io/gorm"
)

type eventRepository struct {
	db *gorm.DB
}

// NewEventRepository creates a new transition history repository
func NewEventRepository(db *gorm.DB) EventRepository {
	return &eventRepository{db: db}
}

// Append records one transition
func (r *eventRepository) Append(ctx context.Context, event *domain.TransitionEvent) error {
	row := &models.TransactionEvent{
		TransactionID: event.TransactionID,
		Operation:     string(event.Operation),
		FromStatus:    string(event.FromStatus),
		ToStatus:      string(event.ToStatus),
		ActorID:       event.ActorID,
		CreatedAt:     event.CreatedAt,
	}
	if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
		return translate(err, nil)
	}
	event.ID = row.ID
	return nil
}

// ListByTransaction returns the history of a transaction, oldest first
func (r *eventRepository) ListByTransaction(ctx context.Context, transactionID string) ([]*domain.TransitionEvent, error) {
	var rows []*models.TransactionEvent
	err := r.db.WithContext(ctx).
		Where("transaction_id = ?", transactionID).
		Order("id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, translate(err, nil)
	}

	events := make([]*domain.TransitionEvent, 0, len(rows))
	for _, row := range rows {
		events = append(events, row.ToDomain())
	}
	return events, nil
}
