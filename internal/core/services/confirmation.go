package services

import (
	"context"
	"fmt"
	"time"

	"booklend/internal/adapters/persistence/repositories"
	"booklend/internal/core/domain"

	"go.uber.org/zap"
)

// confirmAttempts bounds the re-read loop when the other party's confirm
// lands between our two candidate writes
const confirmAttempts = 3

// ConfirmationCoordinator runs the two-party confirmation protocol. Each
// confirm is one of two mutually exclusive conditional writes: a single
// confirmation while the other party has not confirmed, or the completing
// confirmation that also moves the transaction to completed. Exactly one
// concurrent caller can win the completing write.
type ConfirmationCoordinator struct {
	store    repositories.Store
	notifier *NotificationService
	metrics  *Metrics
	log      *zap.Logger
	now      func() time.Time
}

// NewConfirmationCoordinator creates a new confirmation coordinator
func NewConfirmationCoordinator(store repositories.Store, notifier *NotificationService, metrics *Metrics, log *zap.Logger) *ConfirmationCoordinator {
	return &ConfirmationCoordinator{
		store:    store,
		notifier: notifier,
		metrics:  metrics,
		log:      log,
		now:      time.Now,
	}
}

// Confirm records the confirmation of the party holding role on tx
func (c *ConfirmationCoordinator) Confirm(ctx context.Context, tx *domain.Transaction, role domain.Role, actorID string) (*domain.Transaction, error) {
	plan, err := domain.PlanConfirm(role, c.now())
	if err != nil {
		return nil, err
	}
	op := string(domain.OpConfirm)

	for attempt := 0; attempt < confirmAttempts; attempt++ {
		var (
			pre       domain.Precondition
			mut       domain.Mutation
			completed bool
			applied   bool
		)

		err := c.store.RunInTx(ctx, func(r repositories.Repositories) error {
			ok, err := r.Transactions.UpdateIf(ctx, tx.ID, plan.Complete, plan.CompleteMut)
			if err != nil {
				return err
			}
			if ok {
				pre, mut, completed, applied = plan.Complete, plan.CompleteMut, true, true
			} else {
				ok, err = r.Transactions.UpdateIf(ctx, tx.ID, plan.Single, plan.SingleMut)
				if err != nil {
					return err
				}
				if !ok {
					return nil
				}
				pre, mut, applied = plan.Single, plan.SingleMut, true
			}

			to := domain.StatusBookReceived
			if completed {
				to = domain.StatusCompleted
			}
			return r.Events.Append(ctx, &domain.TransitionEvent{
				TransactionID: tx.ID,
				Operation:     domain.OpConfirm,
				FromStatus:    domain.StatusBookReceived,
				ToStatus:      to,
				ActorID:       actorID,
				CreatedAt:     mut.UpdatedAt,
			})
		})
		if err != nil {
			return nil, err
		}

		if applied {
			updated := project(tx, pre, mut)
			n := domain.Notification{
				RecipientID:   tx.Counterparty(role),
				TransactionID: tx.ID,
				Kind:          plan.Event,
				Status:        updated.Status,
				ActorID:       actorID,
			}
			if completed {
				n.Kind = domain.EventCompleted
				c.log.Info("transaction completed",
					zap.String("transaction_id", tx.ID),
					zap.String("confirmed_by", string(role)),
				)
			}
			c.metrics.transition(op, resultApplied)
			c.notifier.Emit(ctx, n)
			return updated, nil
		}

		current, err := c.store.Repositories().Transactions.GetByID(ctx, tx.ID)
		if err != nil {
			return nil, err
		}
		if current.ConfirmedBy(role) {
			c.metrics.transition(op, resultIdempotent)
			return current, nil
		}
		if current.Status != domain.StatusBookReceived {
			c.metrics.transition(op, resultRejected)
			return nil, fmt.Errorf("%w: cannot confirm from %s", domain.ErrInvalidTransition, current.Status)
		}
		// the other party's flag changed between our two writes; plan again
		tx = current
	}

	c.metrics.transition(op, resultRejected)
	return nil, fmt.Errorf("%w: confirmation kept conflicting", domain.ErrInvalidTransition)
}
