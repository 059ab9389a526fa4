package models

import (
	"time"

	"booklend/internal/core/domain"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ============================================================
// Engine Tables
// ============================================================

// LendingTransaction represents lending_transactions table
type LendingTransaction struct {
	ID                 string          `gorm:"primaryKey;size:36" json:"id"`
	BookID             string          `gorm:"size:36;not null;index" json:"book_id"`
	LenderID           string          `gorm:"size:36;not null;index" json:"lender_id"`
	BorrowerID         string          `gorm:"size:36;not null;index" json:"borrower_id"`
	RentalPrice        decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"rental_price"`
	PlatformCommission decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"platform_commission"`
	CommissionRate     decimal.Decimal `gorm:"type:decimal(6,4);not null" json:"commission_rate"`
	Status             string          `gorm:"size:20;not null;index" json:"status"`
	PaymentConfirmed   bool            `gorm:"not null;default:false" json:"payment_confirmed"`
	LenderConfirmed    bool            `gorm:"not null;default:false" json:"lender_confirmed"`
	BorrowerConfirmed  bool            `gorm:"not null;default:false" json:"borrower_confirmed"`
	ComplaintID        *string         `gorm:"size:36" json:"complaint_id"`
	CreatedAt          time.Time       `gorm:"not null" json:"created_at"`
	UpdatedAt          time.Time       `gorm:"not null" json:"updated_at"`
}

func (LendingTransaction) TableName() string {
	return "lending_transactions"
}

// ToDomain converts the row to the domain aggregate
func (m *LendingTransaction) ToDomain() *domain.Transaction {
	return &domain.Transaction{
		ID:                 m.ID,
		BookID:             m.BookID,
		LenderID:           m.LenderID,
		BorrowerID:         m.BorrowerID,
		RentalPrice:        m.RentalPrice,
		PlatformCommission: m.PlatformCommission,
		CommissionRate:     m.CommissionRate,
		Status:             domain.Status(m.Status),
		PaymentConfirmed:   m.PaymentConfirmed,
		LenderConfirmed:    m.LenderConfirmed,
		BorrowerConfirmed:  m.BorrowerConfirmed,
		ComplaintID:        m.ComplaintID,
		CreatedAt:          m.CreatedAt,
		UpdatedAt:          m.UpdatedAt,
	}
}

// NewLendingTransaction converts the domain aggregate to a row
func NewLendingTransaction(t *domain.Transaction) *LendingTransaction {
	return &LendingTransaction{
		ID:                 t.ID,
		BookID:             t.BookID,
		LenderID:           t.LenderID,
		BorrowerID:         t.BorrowerID,
		RentalPrice:        t.RentalPrice,
		PlatformCommission: t.PlatformCommission,
		CommissionRate:     t.CommissionRate,
		Status:             string(t.Status),
		PaymentConfirmed:   t.PaymentConfirmed,
		LenderConfirmed:    t.LenderConfirmed,
		BorrowerConfirmed:  t.BorrowerConfirmed,
		ComplaintID:        t.ComplaintID,
		CreatedAt:          t.CreatedAt,
		UpdatedAt:          t.UpdatedAt,
	}
}

// Complaint represents complaints table
type Complaint struct {
	ID            string     `gorm:"primaryKey;size:36" json:"id"`
	TransactionID string     `gorm:"size:36;not null;index" json:"transaction_id"`
	ComplainantID string     `gorm:"size:36;not null" json:"complainant_id"`
	AgainstID     string     `gorm:"size:36;not null" json:"against_id"`
	Reason        string     `gorm:"type:text;not null" json:"reason"`
	Status        string     `gorm:"size:20;not null;default:'open'" json:"status"`
	Resolution    string     `gorm:"type:text" json:"resolution"`
	ResolvedBy    *string    `gorm:"size:36" json:"resolved_by"`
	ResolvedAt    *time.Time `json:"resolved_at"`
	CreatedAt     time.Time  `gorm:"not null" json:"created_at"`
	UpdatedAt     time.Time  `gorm:"not null" json:"updated_at"`
}

func (Complaint) TableName() string {
	return "complaints"
}

// ToDomain converts the row to the domain complaint
func (m *Complaint) ToDomain() *domain.Complaint {
	return &domain.Complaint{
		ID:            m.ID,
		TransactionID: m.TransactionID,
		ComplainantID: m.ComplainantID,
		AgainstID:     m.AgainstID,
		Reason:        m.Reason,
		Status:        domain.ComplaintStatus(m.Status),
		Resolution:    m.Resolution,
		ResolvedBy:    m.ResolvedBy,
		ResolvedAt:    m.ResolvedAt,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
}

// NewComplaint converts the domain complaint to a row
func NewComplaint(c *domain.Complaint) *Complaint {
	return &Complaint{
		ID:            c.ID,
		TransactionID: c.TransactionID,
		ComplainantID: c.ComplainantID,
		AgainstID:     c.AgainstID,
		Reason:        c.Reason,
		Status:        string(c.Status),
		Resolution:    c.Resolution,
		ResolvedBy:    c.ResolvedBy,
		ResolvedAt:    c.ResolvedAt,
		CreatedAt:     c.CreatedAt,
		UpdatedAt:     c.UpdatedAt,
	}
}

// TransactionEvent is one entry of a transaction's status history
type TransactionEvent struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	TransactionID string    `gorm:"size:36;not null;index" json:"transaction_id"`
	Operation     string    `gorm:"size:30;not null" json:"operation"`
	FromStatus    string    `gorm:"size:20" json:"from_status"`
	ToStatus      string    `gorm:"size:20;not null" json:"to_status"`
	ActorID       string    `gorm:"size:36" json:"actor_id"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (TransactionEvent) TableName() string {
	return "transaction_events"
}

// ToDomain converts the row to a domain event
func (m *TransactionEvent) ToDomain() *domain.TransitionEvent {
	return &domain.TransitionEvent{
		ID:            m.ID,
		TransactionID: m.TransactionID,
		Operation:     domain.Operation(m.Operation),
		FromStatus:    domain.Status(m.FromStatus),
		ToStatus:      domain.Status(m.ToStatus),
		ActorID:       m.ActorID,
		CreatedAt:     m.CreatedAt,
	}
}

// ============================================================
// Notification Tables
// ============================================================

// Message represents messages table (owned by the chat collaborator; the
// engine only inserts system messages)
type Message struct {
	ID            string    `gorm:"primaryKey;size:36" json:"id"`
	TransactionID string    `gorm:"size:36;not null;index" json:"transaction_id"`
	SenderID      *string   `gorm:"size:36" json:"sender_id"`
	RecipientID   string    `gorm:"size:36;not null;index" json:"recipient_id"`
	Content       string    `gorm:"type:text;not null" json:"content"`
	IsSystem      bool      `gorm:"default:false" json:"is_system"`
	IsRead        bool      `gorm:"default:false" json:"is_read"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (Message) TableName() string {
	return "messages"
}

// NotificationOutbox represents notification_outbox table
type NotificationOutbox struct {
	ID            string    `gorm:"primaryKey;size:36" json:"id"`
	RecipientID   string    `gorm:"size:36;not null" json:"recipient_id"`
	TransactionID string    `gorm:"size:36;not null;index" json:"transaction_id"`
	Kind          string    `gorm:"size:30;not null" json:"kind"`
	Status        string    `gorm:"size:20" json:"status"`
	ActorID       string    `gorm:"size:36" json:"actor_id"`
	State         string    `gorm:"size:20;not null;index:idx_outbox_due,priority:1" json:"state"`
	Attempts      int       `gorm:"not null;default:0" json:"attempts"`
	NextAttemptAt time.Time `gorm:"not null;index:idx_outbox_due,priority:2" json:"next_attempt_at"`
	LastError     string    `gorm:"type:text" json:"last_error"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (NotificationOutbox) TableName() string {
	return "notification_outbox"
}

// ToDomain converts the row to a domain outbox entry
func (m *NotificationOutbox) ToDomain() *domain.OutboxEntry {
	return &domain.OutboxEntry{
		ID: m.ID,
		Notification: domain.Notification{
			RecipientID:   m.RecipientID,
			TransactionID: m.TransactionID,
			Kind:          domain.EventKind(m.Kind),
			Status:        domain.Status(m.Status),
			ActorID:       m.ActorID,
		},
		State:         domain.OutboxState(m.State),
		Attempts:      m.Attempts,
		NextAttemptAt: m.NextAttemptAt,
		LastError:     m.LastError,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
}

// ============================================================
// Auto Migration
// ============================================================

// AutoMigrate runs auto migration for engine tables
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&LendingTransaction{},
		&Complaint{},
		&TransactionEvent{},
		&Message{},
		&NotificationOutbox{},
	)
}
