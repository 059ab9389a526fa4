package services

import (
	"context"

	"booklend/internal/core/domain"

	"github.com/shopspring/decimal"
)

// Notifier delivers one notification to its recipient
type Notifier interface {
	Notify(ctx context.Context, n domain.Notification) error
}

// Input DTOs

// CreateTransactionInput for creating a lending transaction
type CreateTransactionInput struct {
	BookID      string
	LenderID    string
	BorrowerID  string
	RentalPrice decimal.Decimal
}

// OpenDisputeInput for opening a dispute
type OpenDisputeInput struct {
	AgainstID string
	Reason    string
}

// ResolveDisputeInput for resolving a dispute
type ResolveDisputeInput struct {
	Outcome    domain.ComplaintStatus
	Resolution string
}
