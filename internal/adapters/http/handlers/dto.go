package handlers

import (
	"time"

	"booklend/internal/core/domain"

	"github.com/shopspring/decimal"
)

// CreateTransactionRequest represents create transaction request
type CreateTransactionRequest struct {
	BookID      string          `json:"book_id" validate:"required,max=36"`
	LenderID    string          `json:"lender_id" validate:"required,max=36"`
	BorrowerID  string          `json:"borrower_id" validate:"required,max=36"`
	RentalPrice decimal.Decimal `json:"rental_price" swaggertype:"string" validate:"positive_decimal"`
}

// OpenDisputeRequest represents open dispute request
type OpenDisputeRequest struct {
	AgainstID string `json:"against_id" validate:"max=36"`
	Reason    string `json:"reason" validate:"required,max=2000"`
}

// ResolveDisputeRequest represents resolve dispute request
type ResolveDisputeRequest struct {
	Outcome    string `json:"outcome" validate:"required,oneof=resolved rejected"`
	Resolution string `json:"resolution" validate:"required,max=2000"`
}

// PaymentCallbackRequest represents the payment service callback
type PaymentCallbackRequest struct {
	TransactionID string `json:"transaction_id" validate:"required,max=36"`
	Reference     string `json:"reference" validate:"max=100"`
}

// CommissionPolicyRequest represents a commission policy replacement
type CommissionPolicyRequest struct {
	Rate    decimal.Decimal `json:"rate" swaggertype:"string" validate:"positive_decimal"`
	Floor   decimal.Decimal `json:"floor" swaggertype:"string" validate:"nonnegative_decimal"`
	Ceiling decimal.Decimal `json:"ceiling" swaggertype:"string" validate:"nonnegative_decimal"`
}

// TransactionResponse is the projection of a transaction returned to callers
type TransactionResponse struct {
	ID                 string          `json:"id"`
	BookID             string          `json:"book_id"`
	LenderID           string          `json:"lender_id"`
	BorrowerID         string          `json:"borrower_id"`
	RentalPrice        decimal.Decimal `json:"rental_price" swaggertype:"string"`
	PlatformCommission decimal.Decimal `json:"platform_commission" swaggertype:"string"`
	CommissionRate     decimal.Decimal `json:"commission_rate" swaggertype:"string"`
	Status             domain.Status   `json:"status"`
	PaymentConfirmed   bool            `json:"payment_confirmed"`
	LenderConfirmed    bool            `json:"lender_confirmed"`
	BorrowerConfirmed  bool            `json:"borrower_confirmed"`
	ComplaintID        *string         `json:"complaint_id"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

func toTransactionResponse(t *domain.Transaction) TransactionResponse {
	return TransactionResponse{
		ID:                 t.ID,
		BookID:             t.BookID,
		LenderID:           t.LenderID,
		BorrowerID:         t.BorrowerID,
		RentalPrice:        t.RentalPrice,
		PlatformCommission: t.PlatformCommission,
		CommissionRate:     t.CommissionRate,
		Status:             t.Status,
		PaymentConfirmed:   t.PaymentConfirmed,
		LenderConfirmed:    t.LenderConfirmed,
		BorrowerConfirmed:  t.BorrowerConfirmed,
		ComplaintID:        t.ComplaintID,
		CreatedAt:          t.CreatedAt,
		UpdatedAt:          t.UpdatedAt,
	}
}

// ComplaintResponse is the projection of a complaint
type ComplaintResponse struct {
	ID            string                 `json:"id"`
	TransactionID string                 `json:"transaction_id"`
	ComplainantID string                 `json:"complainant_id"`
	AgainstID     string                 `json:"against_id"`
	Reason        string                 `json:"reason"`
	Status        domain.ComplaintStatus `json:"status"`
	Resolution    string                 `json:"resolution,omitempty"`
	ResolvedBy    *string                `json:"resolved_by,omitempty"`
	ResolvedAt    *time.Time             `json:"resolved_at,omitempty"`
	CreatedAt     time.Time              `json:"created_at"`
}

func toComplaintResponse(c *domain.Complaint) ComplaintResponse {
	return ComplaintResponse{
		ID:            c.ID,
		TransactionID: c.TransactionID,
		ComplainantID: c.ComplainantID,
		AgainstID:     c.AgainstID,
		Reason:        c.Reason,
		Status:        c.Status,
		Resolution:    c.Resolution,
		ResolvedBy:    c.ResolvedBy,
		ResolvedAt:    c.ResolvedAt,
		CreatedAt:     c.CreatedAt,
	}
}

// EventResponse is one history entry
type EventResponse struct {
	ID         uint             `json:"id"`
	Operation  domain.Operation `json:"operation"`
	FromStatus domain.Status    `json:"from_status"`
	ToStatus   domain.Status    `json:"to_status"`
	ActorID    string           `json:"actor_id"`
	CreatedAt  time.Time        `json:"created_at"`
}

func toEventResponses(events []*domain.TransitionEvent) []EventResponse {
	out := make([]EventResponse, 0, len(events))
	for _, e := range events {
		out = append(out, EventResponse{
			ID:         e.ID,
			Operation:  e.Operation,
			FromStatus: e.FromStatus,
			ToStatus:   e.ToStatus,
			ActorID:    e.ActorID,
			CreatedAt:  e.CreatedAt,
		})
	}
	return out
}

// CommissionPolicyResponse is the commission policy in force
type CommissionPolicyResponse struct {
	Rate    decimal.Decimal `json:"rate" swaggertype:"string"`
	Floor   decimal.Decimal `json:"floor" swaggertype:"string"`
	Ceiling decimal.Decimal `json:"ceiling" swaggertype:"string"`
}
