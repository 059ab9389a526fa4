package domain

import "time"

// Notification is one event addressed to one party of a transaction
type Notification struct {
	RecipientID   string    `json:"recipient_id"`
	TransactionID string    `json:"transaction_id"`
	Kind          EventKind `json:"kind"`
	Status        Status    `json:"status"`
	ActorID       string    `json:"actor_id"`
}

// OutboxState is the delivery state of a queued notification
type OutboxState string

const (
	OutboxPending   OutboxState = "PENDING"
	OutboxDelivered OutboxState = "DELIVERED"
	OutboxFailed    OutboxState = "FAILED"
)

// OutboxEntry is a notification whose first delivery failed, queued for resend
type OutboxEntry struct {
	ID            string
	Notification  Notification
	State         OutboxState
	Attempts      int
	NextAttemptAt time.Time
	LastError     string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
