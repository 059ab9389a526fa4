package repositories

import (
	"context"
	"time"

	"booklend/internal/core/domain"
)

// TransactionRepository defines lending transaction persistence
type TransactionRepository interface {
	Create(ctx context.Context, tx *domain.Transaction) error
	GetByID(ctx context.Context, id string) (*domain.Transaction, error)
	ListByParty(ctx context.Context, userID string, offset, limit int) ([]*domain.Transaction, int64, error)
	// UpdateIf applies mut to the record only if it still matches pre, in a
	// single atomic write. It reports whether the write was applied.
	UpdateIf(ctx context.Context, id string, pre domain.Precondition, mut domain.Mutation) (bool, error)
}

// ComplaintRepository defines complaint persistence
type ComplaintRepository interface {
	Create(ctx context.Context, complaint *domain.Complaint) error
	GetByID(ctx context.Context, id string) (*domain.Complaint, error)
	// Resolve moves an open complaint to outcome. It reports whether the
	// complaint was still open.
	Resolve(ctx context.Context, id string, outcome domain.ComplaintStatus, resolution, resolvedBy string, at time.Time) (bool, error)
}

// EventRepository defines transition history persistence
type EventRepository interface {
	Append(ctx context.Context, event *domain.TransitionEvent) error
	ListByTransaction(ctx context.Context, transactionID string) ([]*domain.TransitionEvent, error)
}

// OutboxRepository defines the notification redelivery queue
type OutboxRepository interface {
	Enqueue(ctx context.Context, entry *domain.OutboxEntry) error
	ListDue(ctx context.Context, now time.Time, limit int) ([]*domain.OutboxEntry, error)
	MarkDelivered(ctx context.Context, id string, attempts int, at time.Time) error
	MarkRetry(ctx context.Context, id string, attempts int, next time.Time, lastErr string) error
	MarkFailed(ctx context.Context, id string, attempts int, lastErr string) error
}

// Repositories groups the repositories that take part in a unit of work
type Repositories struct {
	Transactions TransactionRepository
	Complaints   ComplaintRepository
	Events       EventRepository
}

// UnitOfWork runs fn against repositories bound to one atomic unit. Every
// write made through them commits together or not at all.
type UnitOfWork interface {
	RunInTx(ctx context.Context, fn func(r Repositories) error) error
}

// Store is a complete persistence backend
type Store interface {
	UnitOfWork
	Repositories() Repositories
	Outbox() OutboxRepository
	Ping(ctx context.Context) error
	Close() error
}
