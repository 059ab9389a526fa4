package notification

import (
	"context"
	"fmt"
	"time"

	"booklend/internal/adapters/persistence/models"
	"booklend/internal/core/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var messageText = map[domain.EventKind]string{
	domain.EventTermsProposed:     "New terms were proposed for this rental.",
	domain.EventTermsAccepted:     "The rental terms were accepted. Waiting for payment.",
	domain.EventPaymentConfirmed:  "Payment received and held in escrow.",
	domain.EventBookDelivered:     "The lender marked the book as delivered.",
	domain.EventBookReceived:      "The borrower marked the book as received.",
	domain.EventLenderConfirmed:   "The lender confirmed the rental went well.",
	domain.EventBorrowerConfirmed: "The borrower confirmed the rental went well.",
	domain.EventCompleted:         "Both parties confirmed. The rental is complete.",
	domain.EventCancelled:         "The rental was cancelled.",
	domain.EventDisputeOpened:     "A dispute was opened on this rental.",
	domain.EventDisputeResolved:   "The dispute was resolved by an arbiter.",
	domain.EventDisputeRejected:   "The dispute was rejected by an arbiter.",
}

// Text renders the system message body for a notification
func Text(n domain.Notification) string {
	if text, ok := messageText[n.Kind]; ok {
		return text
	}
	return fmt.Sprintf("Rental status changed to %s.", n.Status)
}

// MessageNotifier writes notifications as system messages into the
// conversation of the transaction
type MessageNotifier struct {
	db  *gorm.DB
	now func() time.Time
}

// NewMessageNotifier creates a notifier backed by the messages table
func NewMessageNotifier(db *gorm.DB) *MessageNotifier {
	return &MessageNotifier{db: db, now: time.Now}
}

// Notify inserts one system message addressed to the recipient
func (m *MessageNotifier) Notify(ctx context.Context, n domain.Notification) error {
	msg := models.Message{
		ID:            uuid.New().String(),
		TransactionID: n.TransactionID,
		RecipientID:   n.RecipientID,
		Content:       Text(n),
		IsSystem:      true,
		CreatedAt:     m.now(),
	}
	if err := m.db.WithContext(ctx).Create(&msg).Error; err != nil {
		return fmt.Errorf("%w: message: %v", domain.ErrCollaboratorUnavailable, err)
	}
	return nil
}
