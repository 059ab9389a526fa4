package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"booklend/internal/adapters/persistence/repositories"
	"booklend/internal/core/domain"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var errNotApplied = errors.New("conditional write not applied")

// ComplaintResolver owns the complaint lifecycle and its coupling to the
// transaction state machine
type ComplaintResolver struct {
	store    repositories.Store
	policy   domain.DisputePolicy
	notifier *NotificationService
	metrics  *Metrics
	log      *zap.Logger
	now      func() time.Time
	newID    func() string
}

// NewComplaintResolver creates a new complaint resolver
func NewComplaintResolver(store repositories.Store, policy domain.DisputePolicy, notifier *NotificationService, metrics *Metrics, log *zap.Logger) (*ComplaintResolver, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	return &ComplaintResolver{
		store:    store,
		policy:   policy,
		notifier: notifier,
		metrics:  metrics,
		log:      log,
		now:      time.Now,
		newID:    func() string { return uuid.New().String() },
	}, nil
}

// Open creates an open complaint against the other party and moves the
// transaction to disputed. Both writes commit together or not at all.
func (r *ComplaintResolver) Open(ctx context.Context, tx *domain.Transaction, role domain.Role, complainantID string, in OpenDisputeInput) (*domain.Complaint, error) {
	op := string(domain.OpOpenDispute)
	now := r.now()

	tr, pre, mut, err := domain.Plan(domain.OpOpenDispute, role, now)
	if err != nil {
		return nil, err
	}

	reason := strings.TrimSpace(in.Reason)
	if reason == "" {
		return nil, fmt.Errorf("%w: reason is required", domain.ErrInvalidInput)
	}
	against := tx.Counterparty(role)
	if in.AgainstID != "" && in.AgainstID != against {
		return nil, fmt.Errorf("%w: complaint must be against the other party", domain.ErrInvalidInput)
	}

	complaint := &domain.Complaint{
		ID:            r.newID(),
		TransactionID: tx.ID,
		ComplainantID: complainantID,
		AgainstID:     against,
		Reason:        reason,
		Status:        domain.ComplaintOpen,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	mut.ComplaintID = &complaint.ID

	err = r.store.RunInTx(ctx, func(repos repositories.Repositories) error {
		if err := repos.Complaints.Create(ctx, complaint); err != nil {
			return err
		}
		ok, err := repos.Transactions.UpdateIf(ctx, tx.ID, pre, mut)
		if err != nil {
			return err
		}
		if !ok {
			return errNotApplied
		}
		return repos.Events.Append(ctx, &domain.TransitionEvent{
			TransactionID: tx.ID,
			Operation:     domain.OpOpenDispute,
			FromStatus:    sourceStatus(tr, tx),
			ToStatus:      domain.StatusDisputed,
			ActorID:       complainantID,
			CreatedAt:     now,
		})
	})
	if errors.Is(err, errNotApplied) {
		r.metrics.transition(op, resultRejected)
		current, gerr := r.store.Repositories().Transactions.GetByID(ctx, tx.ID)
		if gerr != nil {
			return nil, gerr
		}
		if current.ComplaintID != nil {
			return nil, fmt.Errorf("%w: transaction already has a complaint", domain.ErrInvalidTransition)
		}
		return nil, fmt.Errorf("%w: cannot open a dispute from %s", domain.ErrInvalidTransition, current.Status)
	}
	if err != nil {
		return nil, err
	}

	r.metrics.transition(op, resultApplied)
	r.log.Info("dispute opened",
		zap.String("transaction_id", tx.ID),
		zap.String("complaint_id", complaint.ID),
		zap.String("complainant_id", complainantID),
	)
	r.notifier.Emit(ctx, domain.Notification{
		RecipientID:   against,
		TransactionID: tx.ID,
		Kind:          domain.EventDisputeOpened,
		Status:        domain.StatusDisputed,
		ActorID:       complainantID,
	})
	return complaint, nil
}

// Resolve closes an open complaint with outcome and moves its disputed
// transaction to the status the dispute policy maps the outcome to.
func (r *ComplaintResolver) Resolve(ctx context.Context, complaintID string, caller domain.Caller, in ResolveDisputeInput) (*domain.Complaint, error) {
	op := string(domain.OpResolveDispute)

	tr, _ := domain.Lookup(domain.OpResolveDispute)
	if caller.ID == "" || caller.Role != domain.PlatformRoleArbiter || !tr.Allows(domain.RoleArbiter) {
		return nil, domain.ErrForbidden
	}

	target, err := r.policy.TargetFor(in.Outcome)
	if err != nil {
		return nil, err
	}
	resolution := strings.TrimSpace(in.Resolution)
	if resolution == "" {
		return nil, fmt.Errorf("%w: resolution is required", domain.ErrInvalidInput)
	}

	repos := r.store.Repositories()
	complaint, err := repos.Complaints.GetByID(ctx, complaintID)
	if err != nil {
		return nil, err
	}
	tx, err := repos.Transactions.GetByID(ctx, complaint.TransactionID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, r.inconsistent(complaint, "transaction missing", err)
	}
	if err != nil {
		return nil, err
	}

	now := r.now()
	pre, mut, err := domain.ResolutionWrite(target, now)
	if err != nil {
		return nil, err
	}

	err = r.store.RunInTx(ctx, func(repos repositories.Repositories) error {
		ok, err := repos.Complaints.Resolve(ctx, complaint.ID, in.Outcome, resolution, caller.ID, now)
		if err != nil {
			return err
		}
		if !ok {
			return domain.ErrAlreadyResolved
		}
		ok, err = repos.Transactions.UpdateIf(ctx, tx.ID, pre, mut)
		if err != nil {
			return err
		}
		if !ok {
			return errNotApplied
		}
		return repos.Events.Append(ctx, &domain.TransitionEvent{
			TransactionID: tx.ID,
			Operation:     domain.OpResolveDispute,
			FromStatus:    domain.StatusDisputed,
			ToStatus:      target,
			ActorID:       caller.ID,
			CreatedAt:     now,
		})
	})
	switch {
	case errors.Is(err, domain.ErrAlreadyResolved):
		r.metrics.transition(op, resultRejected)
		return nil, err
	case errors.Is(err, errNotApplied):
		r.metrics.transition(op, resultRejected)
		return nil, r.inconsistent(complaint, "transaction is not disputed", nil)
	case err != nil:
		return nil, err
	}

	resolvedBy, resolvedAt := caller.ID, now
	complaint.Status = in.Outcome
	complaint.Resolution = resolution
	complaint.ResolvedBy = &resolvedBy
	complaint.ResolvedAt = &resolvedAt
	complaint.UpdatedAt = now

	r.metrics.transition(op, resultApplied)
	r.log.Info("dispute resolved",
		zap.String("transaction_id", tx.ID),
		zap.String("complaint_id", complaint.ID),
		zap.String("outcome", string(in.Outcome)),
		zap.String("transaction_status", string(target)),
	)

	kind := domain.EventDisputeResolved
	if in.Outcome == domain.ComplaintRejected {
		kind = domain.EventDisputeRejected
	}
	for _, recipient := range []string{tx.LenderID, tx.BorrowerID} {
		r.notifier.Emit(ctx, domain.Notification{
			RecipientID:   recipient,
			TransactionID: tx.ID,
			Kind:          kind,
			Status:        target,
			ActorID:       caller.ID,
		})
	}
	return complaint, nil
}

// inconsistent reports a complaint whose transaction cannot take the
// resolution. It is never retried.
func (r *ComplaintResolver) inconsistent(complaint *domain.Complaint, reason string, cause error) error {
	r.metrics.incInconsistent()
	fields := []zap.Field{
		zap.String("complaint_id", complaint.ID),
		zap.String("transaction_id", complaint.TransactionID),
		zap.String("reason", reason),
	}
	if cause != nil {
		fields = append(fields, zap.Error(cause))
	}
	r.log.Error("complaint and transaction are inconsistent", fields...)
	return fmt.Errorf("%w: complaint %s: %s", domain.ErrInconsistentState, complaint.ID, reason)
}
