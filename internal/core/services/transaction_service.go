package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"booklend/internal/adapters/persistence/repositories"
	"booklend/internal/core/domain"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// TransactionService is the entry point for every lending operation. It
// authorizes the caller, delegates the state change and emits the
// notification for it.
type TransactionService struct {
	store      repositories.Store
	calculator *domain.CommissionCalculator
	auth       *Authorizer
	confirm    *ConfirmationCoordinator
	complaints *ComplaintResolver
	notifier   *NotificationService
	metrics    *Metrics
	log        *zap.Logger
	now        func() time.Time
	newID      func() string
}

// NewTransactionService creates a new transaction service
func NewTransactionService(
	store repositories.Store,
	calculator *domain.CommissionCalculator,
	confirm *ConfirmationCoordinator,
	complaints *ComplaintResolver,
	notifier *NotificationService,
	metrics *Metrics,
	log *zap.Logger,
) *TransactionService {
	return &TransactionService{
		store:      store,
		calculator: calculator,
		auth:       NewAuthorizer(),
		confirm:    confirm,
		complaints: complaints,
		notifier:   notifier,
		metrics:    metrics,
		log:        log,
		now:        time.Now,
		newID:      func() string { return uuid.New().String() },
	}
}

// ============================================================
// Queries
// ============================================================

// GetTransaction returns a transaction visible to the caller
func (s *TransactionService) GetTransaction(ctx context.Context, id string, caller domain.Caller) (*domain.Transaction, error) {
	tx, err := s.store.Repositories().Transactions.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !s.auth.CanView(caller, tx) {
		return nil, domain.ErrForbidden
	}
	return tx, nil
}

// ListMine lists the caller's transactions, newest first
func (s *TransactionService) ListMine(ctx context.Context, caller domain.Caller, offset, limit int) ([]*domain.Transaction, int64, error) {
	if caller.ID == "" {
		return nil, 0, domain.ErrUnauthorized
	}
	return s.store.Repositories().Transactions.ListByParty(ctx, caller.ID, offset, limit)
}

// History returns the transition history of a transaction
func (s *TransactionService) History(ctx context.Context, id string, caller domain.Caller) ([]*domain.TransitionEvent, error) {
	if _, err := s.GetTransaction(ctx, id, caller); err != nil {
		return nil, err
	}
	return s.store.Repositories().Events.ListByTransaction(ctx, id)
}

// GetComplaint returns a complaint visible to the caller
func (s *TransactionService) GetComplaint(ctx context.Context, id string, caller domain.Caller) (*domain.Complaint, error) {
	repos := s.store.Repositories()
	complaint, err := repos.Complaints.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.auth.IsArbiter(caller) {
		return complaint, nil
	}
	tx, err := repos.Transactions.GetByID(ctx, complaint.TransactionID)
	if err != nil {
		return nil, err
	}
	if !s.auth.CanView(caller, tx) {
		return nil, domain.ErrForbidden
	}
	return complaint, nil
}

// ============================================================
// Commands
// ============================================================

// CreateTransaction creates a pending transaction and fixes its commission
// under the policy currently in force
func (s *TransactionService) CreateTransaction(ctx context.Context, caller domain.Caller, in CreateTransactionInput) (*domain.Transaction, error) {
	in.BookID = strings.TrimSpace(in.BookID)
	in.LenderID = strings.TrimSpace(in.LenderID)
	in.BorrowerID = strings.TrimSpace(in.BorrowerID)

	if in.BookID == "" || in.LenderID == "" || in.BorrowerID == "" {
		return nil, fmt.Errorf("%w: book, lender and borrower are required", domain.ErrInvalidInput)
	}
	if in.LenderID == in.BorrowerID {
		return nil, fmt.Errorf("%w: lender and borrower must differ", domain.ErrInvalidInput)
	}
	if !in.RentalPrice.IsPositive() {
		return nil, fmt.Errorf("%w: rental price must be positive", domain.ErrInvalidInput)
	}
	if err := domain.ValidateAmount(in.RentalPrice); err != nil {
		return nil, err
	}
	if caller.ID != in.LenderID && caller.ID != in.BorrowerID {
		return nil, domain.ErrForbidden
	}

	commission, policy := s.calculator.Quote(in.RentalPrice)
	if !commission.IsPositive() {
		return nil, fmt.Errorf("%w: rental price %s is too low to carry a commission", domain.ErrInvalidInput, in.RentalPrice)
	}

	now := s.now()
	tx := &domain.Transaction{
		ID:                 s.newID(),
		BookID:             in.BookID,
		LenderID:           in.LenderID,
		BorrowerID:         in.BorrowerID,
		RentalPrice:        in.RentalPrice,
		PlatformCommission: commission,
		CommissionRate:     policy.Rate,
		Status:             domain.StatusPending,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	err := s.store.RunInTx(ctx, func(r repositories.Repositories) error {
		if err := r.Transactions.Create(ctx, tx); err != nil {
			return err
		}
		return r.Events.Append(ctx, &domain.TransitionEvent{
			TransactionID: tx.ID,
			Operation:     domain.OpCreate,
			ToStatus:      domain.StatusPending,
			ActorID:       caller.ID,
			CreatedAt:     now,
		})
	})
	if err != nil {
		return nil, err
	}

	s.metrics.transition(string(domain.OpCreate), resultApplied)
	s.log.Info("transaction created",
		zap.String("transaction_id", tx.ID),
		zap.String("rental_price", tx.RentalPrice.String()),
		zap.String("platform_commission", tx.PlatformCommission.String()),
	)
	return tx, nil
}

// ProposeTerms moves a pending transaction to negotiating
func (s *TransactionService) ProposeTerms(ctx context.Context, id string, caller domain.Caller) (*domain.Transaction, error) {
	return s.partyTransition(ctx, id, caller, domain.OpProposeTerms)
}

// AcceptTerms moves a negotiating transaction to payment_pending
func (s *TransactionService) AcceptTerms(ctx context.Context, id string, caller domain.Caller) (*domain.Transaction, error) {
	return s.partyTransition(ctx, id, caller, domain.OpAcceptTerms)
}

// MarkDelivered records that the lender handed the book over
func (s *TransactionService) MarkDelivered(ctx context.Context, id string, caller domain.Caller) (*domain.Transaction, error) {
	return s.partyTransition(ctx, id, caller, domain.OpMarkDelivered)
}

// MarkReceived records that the borrower received the book
func (s *TransactionService) MarkReceived(ctx context.Context, id string, caller domain.Caller) (*domain.Transaction, error) {
	return s.partyTransition(ctx, id, caller, domain.OpMarkReceived)
}

// Cancel cancels a transaction before payment is held in escrow
func (s *TransactionService) Cancel(ctx context.Context, id string, caller domain.Caller) (*domain.Transaction, error) {
	return s.partyTransition(ctx, id, caller, domain.OpCancel)
}

// ConfirmPayment records the payment collaborator's confirmation and moves
// the transaction to escrow. The lender is notified.
func (s *TransactionService) ConfirmPayment(ctx context.Context, id string) (*domain.Transaction, error) {
	tx, err := s.store.Repositories().Transactions.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	updated, applied, err := s.apply(ctx, tx, domain.OpConfirmPayment, domain.RoleNone, string(domain.PlatformRolePayment))
	if err != nil || !applied {
		return updated, err
	}

	s.notifier.Emit(ctx, domain.Notification{
		RecipientID:   tx.LenderID,
		TransactionID: tx.ID,
		Kind:          domain.EventPaymentConfirmed,
		Status:        updated.Status,
		ActorID:       string(domain.PlatformRolePayment),
	})
	return updated, nil
}

// Confirm records the caller's final confirmation
func (s *TransactionService) Confirm(ctx context.Context, id string, caller domain.Caller) (*domain.Transaction, error) {
	tx, role, err := s.authorize(ctx, id, caller)
	if err != nil {
		return nil, err
	}
	return s.confirm.Confirm(ctx, tx, role, caller.ID)
}

// OpenDispute opens a complaint against the other party
func (s *TransactionService) OpenDispute(ctx context.Context, id string, caller domain.Caller, in OpenDisputeInput) (*domain.Complaint, error) {
	tx, role, err := s.authorize(ctx, id, caller)
	if err != nil {
		return nil, err
	}
	return s.complaints.Open(ctx, tx, role, caller.ID, in)
}

// ResolveDispute closes a complaint. Arbiter only.
func (s *TransactionService) ResolveDispute(ctx context.Context, complaintID string, caller domain.Caller, in ResolveDisputeInput) (*domain.Complaint, error) {
	return s.complaints.Resolve(ctx, complaintID, caller, in)
}

// ============================================================
// Helpers
// ============================================================

// authorize loads the transaction and resolves the caller's role on it.
// Callers with no role get Forbidden without learning anything about it.
func (s *TransactionService) authorize(ctx context.Context, id string, caller domain.Caller) (*domain.Transaction, domain.Role, error) {
	tx, err := s.store.Repositories().Transactions.GetByID(ctx, id)
	if err != nil {
		return nil, domain.RoleNone, err
	}
	role := s.auth.RoleOf(caller, tx)
	if role == domain.RoleNone {
		return nil, domain.RoleNone, domain.ErrForbidden
	}
	return tx, role, nil
}

func (s *TransactionService) partyTransition(ctx context.Context, id string, caller domain.Caller, op domain.Operation) (*domain.Transaction, error) {
	tx, role, err := s.authorize(ctx, id, caller)
	if err != nil {
		return nil, err
	}
	tr, _ := domain.Lookup(op)

	updated, applied, err := s.apply(ctx, tx, op, role, caller.ID)
	if err != nil || !applied {
		return updated, err
	}

	s.notifier.Emit(ctx, domain.Notification{
		RecipientID:   tx.Counterparty(role),
		TransactionID: tx.ID,
		Kind:          tr.Event,
		Status:        updated.Status,
		ActorID:       caller.ID,
	})
	return updated, nil
}

// apply runs the conditional write for op. When the write matches nothing
// the record is re-read: if it already shows the outcome of op the call is
// an idempotent success (applied is false), otherwise the source state was
// wrong and the call fails with InvalidTransition.
func (s *TransactionService) apply(ctx context.Context, tx *domain.Transaction, op domain.Operation, role domain.Role, actorID string) (*domain.Transaction, bool, error) {
	tr, pre, mut, err := domain.Plan(op, role, s.now())
	if err != nil {
		return nil, false, err
	}

	applied := false
	err = s.store.RunInTx(ctx, func(r repositories.Repositories) error {
		ok, err := r.Transactions.UpdateIf(ctx, tx.ID, pre, mut)
		if err != nil || !ok {
			return err
		}
		applied = true
		return r.Events.Append(ctx, &domain.TransitionEvent{
			TransactionID: tx.ID,
			Operation:     op,
			FromStatus:    sourceStatus(tr, tx),
			ToStatus:      tr.To,
			ActorID:       actorID,
			CreatedAt:     mut.UpdatedAt,
		})
	})
	if err != nil {
		return nil, false, err
	}

	if applied {
		s.metrics.transition(string(op), resultApplied)
		return project(tx, pre, mut), true, nil
	}

	current, err := s.store.Repositories().Transactions.GetByID(ctx, tx.ID)
	if err != nil {
		return nil, false, err
	}
	if tr.Reached(current) {
		s.metrics.transition(string(op), resultIdempotent)
		return current, false, nil
	}
	s.metrics.transition(string(op), resultRejected)
	return nil, false, fmt.Errorf("%w: cannot %s from %s", domain.ErrInvalidTransition, op, current.Status)
}

// sourceStatus is the status a transition left. With several valid sources
// it is the one last read.
func sourceStatus(tr domain.Transition, tx *domain.Transaction) domain.Status {
	if len(tr.From) == 1 {
		return tr.From[0]
	}
	return tx.Status
}

// project returns tx as it stands after a conditional write matching pre and
// applying mut
func project(tx *domain.Transaction, pre domain.Precondition, mut domain.Mutation) *domain.Transaction {
	out := *tx
	if tx.ComplaintID != nil {
		id := *tx.ComplaintID
		out.ComplaintID = &id
	}
	if len(pre.Statuses) == 1 {
		out.Status = pre.Statuses[0]
	}
	if pre.LenderConfirmed != nil {
		out.LenderConfirmed = *pre.LenderConfirmed
	}
	if pre.BorrowerConfirmed != nil {
		out.BorrowerConfirmed = *pre.BorrowerConfirmed
	}
	mut.ApplyTo(&out)
	return &out
}
