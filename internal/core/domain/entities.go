package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status is the lifecycle state of a lending transaction
type Status string

const (
	StatusPending        Status = "pending"
	StatusNegotiating    Status = "negotiating"
	StatusPaymentPending Status = "payment_pending"
	StatusEscrow         Status = "escrow"
	StatusBookDelivered  Status = "book_delivered"
	StatusBookReceived   Status = "book_received"
	StatusCompleted      Status = "completed"
	StatusCancelled      Status = "cancelled"
	StatusDisputed       Status = "disputed"
)

// IsTerminal reports whether no further transition can leave the status
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// Valid reports whether s is one of the known statuses
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusNegotiating, StatusPaymentPending, StatusEscrow,
		StatusBookDelivered, StatusBookReceived, StatusCompleted, StatusCancelled, StatusDisputed:
		return true
	}
	return false
}

// Role is the caller's relation to a specific transaction
type Role string

const (
	RoleNone     Role = "none"
	RoleLender   Role = "lender"
	RoleBorrower Role = "borrower"
	RoleArbiter  Role = "arbiter"
)

// IsParty reports whether the role is one of the two transacting parties
func (r Role) IsParty() bool {
	return r == RoleLender || r == RoleBorrower
}

// PlatformRole is the platform-wide role carried in the caller's access token
type PlatformRole string

const (
	PlatformRoleUser    PlatformRole = "USER"
	PlatformRoleArbiter PlatformRole = "ARBITER"
	PlatformRolePayment PlatformRole = "PAYMENT"
)

// Caller identifies who invokes an engine operation
type Caller struct {
	ID   string
	Role PlatformRole
}

// ComplaintStatus is the lifecycle state of a complaint
type ComplaintStatus string

const (
	ComplaintOpen     ComplaintStatus = "open"
	ComplaintResolved ComplaintStatus = "resolved"
	ComplaintRejected ComplaintStatus = "rejected"
)

// IsOutcome reports whether the status is a valid resolution outcome
func (s ComplaintStatus) IsOutcome() bool {
	return s == ComplaintResolved || s == ComplaintRejected
}

// Operation names a triggering operation of the state machine
type Operation string

const (
	OpCreate         Operation = "create"
	OpProposeTerms   Operation = "propose_terms"
	OpAcceptTerms    Operation = "accept_terms"
	OpConfirmPayment Operation = "confirm_payment"
	OpMarkDelivered  Operation = "mark_delivered"
	OpMarkReceived   Operation = "mark_received"
	OpConfirm        Operation = "confirm"
	OpCancel         Operation = "cancel"
	OpOpenDispute    Operation = "open_dispute"
	OpResolveDispute Operation = "resolve_dispute"
)

// EventKind is the kind of notification emitted after a change
type EventKind string

const (
	EventTermsProposed     EventKind = "terms_proposed"
	EventTermsAccepted     EventKind = "terms_accepted"
	EventPaymentConfirmed  EventKind = "payment_confirmed"
	EventBookDelivered     EventKind = "book_delivered"
	EventBookReceived      EventKind = "book_received"
	EventLenderConfirmed   EventKind = "lender_confirmed"
	EventBorrowerConfirmed EventKind = "borrower_confirmed"
	EventCompleted         EventKind = "completed"
	EventCancelled         EventKind = "cancelled"
	EventDisputeOpened     EventKind = "dispute_opened"
	EventDisputeResolved   EventKind = "dispute_resolved"
	EventDisputeRejected   EventKind = "dispute_rejected"
)

// Transaction is a single book lending transaction
type Transaction struct {
	ID                 string
	BookID             string
	LenderID           string
	BorrowerID         string
	RentalPrice        decimal.Decimal
	PlatformCommission decimal.Decimal
	CommissionRate     decimal.Decimal
	Status             Status
	PaymentConfirmed   bool
	LenderConfirmed    bool
	BorrowerConfirmed  bool
	ComplaintID        *string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// RoleOf returns the caller's party role in the transaction
func (t *Transaction) RoleOf(userID string) Role {
	switch userID {
	case "":
		return RoleNone
	case t.LenderID:
		return RoleLender
	case t.BorrowerID:
		return RoleBorrower
	}
	return RoleNone
}

// Counterparty returns the id of the party opposite to role
func (t *Transaction) Counterparty(role Role) string {
	switch role {
	case RoleLender:
		return t.BorrowerID
	case RoleBorrower:
		return t.LenderID
	}
	return ""
}

// ConfirmedBy reports whether the party holding role has confirmed
func (t *Transaction) ConfirmedBy(role Role) bool {
	switch role {
	case RoleLender:
		return t.LenderConfirmed
	case RoleBorrower:
		return t.BorrowerConfirmed
	}
	return false
}

// Complaint is a dispute record attached to a transaction
type Complaint struct {
	ID            string
	TransactionID string
	ComplainantID string
	AgainstID     string
	Reason        string
	Status        ComplaintStatus
	Resolution    string
	ResolvedBy    *string
	ResolvedAt    *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// TransitionEvent is one entry of a transaction's history
type TransitionEvent struct {
	ID            uint
	TransactionID string
	Operation     Operation
	FromStatus    Status
	ToStatus      Status
	ActorID       string
	CreatedAt     time.Time
}
