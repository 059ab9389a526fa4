package services

import (
	"context"
	"sync"
	"testing"

	"booklend/internal/core/domain"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestLendingHappyPath(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tx := f.create(t, "30")
	assert.Equal(t, domain.StatusPending, tx.Status)
	assert.True(t, decimal.NewFromInt(3).Equal(tx.PlatformCommission))

	f.advance(t, tx.ID, domain.StatusBookReceived)

	got, err := f.svc.Confirm(ctx, tx.ID, lender)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusBookReceived, got.Status)
	assert.True(t, got.LenderConfirmed)
	assert.False(t, got.BorrowerConfirmed)

	got, err = f.svc.Confirm(ctx, tx.ID, borrower)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, got.Status)
	assert.True(t, got.LenderConfirmed)
	assert.True(t, got.BorrowerConfirmed)
	assert.True(t, got.PaymentConfirmed)

	stored, err := f.svc.GetTransaction(ctx, tx.ID, lender)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, stored.Status)
	assert.True(t, decimal.NewFromInt(3).Equal(stored.PlatformCommission))

	sent := f.notifier.all()
	want := []struct {
		kind      domain.EventKind
		recipient string
	}{
		{domain.EventTermsProposed, borrower.ID},
		{domain.EventTermsAccepted, lender.ID},
		{domain.EventPaymentConfirmed, lender.ID},
		{domain.EventBookDelivered, borrower.ID},
		{domain.EventBookReceived, lender.ID},
		{domain.EventLenderConfirmed, borrower.ID},
		{domain.EventCompleted, lender.ID},
	}
	require.Len(t, sent, len(want))
	for i, w := range want {
		assert.Equal(t, w.kind, sent[i].Kind, "notification %d", i)
		assert.Equal(t, w.recipient, sent[i].RecipientID, "notification %d", i)
		assert.NotEqual(t, sent[i].ActorID, sent[i].RecipientID, "caller must not be notified")
	}

	history, err := f.svc.History(ctx, tx.ID, borrower)
	require.NoError(t, err)
	require.Len(t, history, 8)
	assert.Equal(t, domain.OpCreate, history[0].Operation)
	assert.Equal(t, domain.StatusCompleted, history[7].ToStatus)
}

func TestDisputeScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tx := f.create(t, "30")
	f.advance(t, tx.ID, domain.StatusBookDelivered)

	complaint, err := f.svc.OpenDispute(ctx, tx.ID, borrower, OpenDisputeInput{Reason: "book damaged"})
	require.NoError(t, err)
	assert.Equal(t, domain.ComplaintOpen, complaint.Status)
	assert.Equal(t, borrower.ID, complaint.ComplainantID)
	assert.Equal(t, lender.ID, complaint.AgainstID)

	disputed, err := f.svc.GetTransaction(ctx, tx.ID, lender)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDisputed, disputed.Status)
	require.NotNil(t, disputed.ComplaintID)
	assert.Equal(t, complaint.ID, *disputed.ComplaintID)
	assert.Equal(t, 1, f.notifier.count(domain.EventDisputeOpened))

	resolved, err := f.svc.ResolveDispute(ctx, complaint.ID, arbiter, ResolveDisputeInput{
		Outcome:    domain.ComplaintRejected,
		Resolution: "no evidence of damage",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.ComplaintRejected, resolved.Status)
	require.NotNil(t, resolved.ResolvedBy)
	assert.Equal(t, arbiter.ID, *resolved.ResolvedBy)

	final, err := f.svc.GetTransaction(ctx, tx.ID, borrower)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, final.Status)
	assert.Equal(t, 2, f.notifier.count(domain.EventDisputeRejected))

	_, err = f.svc.ResolveDispute(ctx, complaint.ID, arbiter, ResolveDisputeInput{
		Outcome:    domain.ComplaintResolved,
		Resolution: "changed my mind",
	})
	assert.ErrorIs(t, err, domain.ErrAlreadyResolved)

	stored, err := f.svc.GetComplaint(ctx, complaint.ID, lender)
	require.NoError(t, err)
	assert.Equal(t, domain.ComplaintRejected, stored.Status)
	assert.Equal(t, "no evidence of damage", stored.Resolution)

	final, err = f.svc.GetTransaction(ctx, tx.ID, borrower)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, final.Status)
}

func TestResolveMapping(t *testing.T) {
	tests := []struct {
		name    string
		policy  domain.DisputePolicy
		outcome domain.ComplaintStatus
		want    domain.Status
	}{
		{"resolved completes", domain.DefaultDisputePolicy(), domain.ComplaintResolved, domain.StatusCompleted},
		{"rejected cancels", domain.DefaultDisputePolicy(), domain.ComplaintRejected, domain.StatusCancelled},
		{"custom mapping", domain.DisputePolicy{
			domain.ComplaintResolved: domain.StatusCancelled,
			domain.ComplaintRejected: domain.StatusCompleted,
		}, domain.ComplaintResolved, domain.StatusCancelled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixtureWith(t, newMemoryStore(), tt.policy)
			ctx := context.Background()
			tx := f.create(t, "30")
			f.advance(t, tx.ID, domain.StatusEscrow)

			complaint, err := f.svc.OpenDispute(ctx, tx.ID, lender, OpenDisputeInput{Reason: "no show", AgainstID: borrower.ID})
			require.NoError(t, err)

			_, err = f.svc.ResolveDispute(ctx, complaint.ID, arbiter, ResolveDisputeInput{Outcome: tt.outcome, Resolution: "decided"})
			require.NoError(t, err)

			got, err := f.svc.GetTransaction(ctx, tx.ID, lender)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Status)
		})
	}
}

func TestResolveInvalidOutcome(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.ResolveDispute(context.Background(), "c-1", arbiter, ResolveDisputeInput{Outcome: domain.ComplaintOpen, Resolution: "x"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestResolveInconsistentState(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tx := f.create(t, "30")
	f.advance(t, tx.ID, domain.StatusEscrow)

	// a complaint whose transaction never entered disputed
	repos := f.store.Repositories()
	require.NoError(t, repos.Complaints.Create(ctx, &domain.Complaint{
		ID: "orphan", TransactionID: tx.ID, ComplainantID: borrower.ID, AgainstID: lender.ID,
		Reason: "r", Status: domain.ComplaintOpen,
	}))

	_, err := f.svc.ResolveDispute(ctx, "orphan", arbiter, ResolveDisputeInput{Outcome: domain.ComplaintResolved, Resolution: "x"})
	assert.ErrorIs(t, err, domain.ErrInconsistentState)
	assert.Equal(t, 1, f.logs.FilterLevelExact(zapcore.ErrorLevel).Len())

	// the complaint write rolled back with the failed transaction write
	c, err := repos.Complaints.GetByID(ctx, "orphan")
	require.NoError(t, err)
	assert.Equal(t, domain.ComplaintOpen, c.Status)

	got, err := repos.Transactions.GetByID(ctx, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusEscrow, got.Status)
}

func TestOpenDisputeIsAtomic(t *testing.T) {
	mem := newMemoryStore()

	// build a resolver whose conditional writes fail inside the unit of work
	good := newFixtureWith(t, mem, domain.DefaultDisputePolicy())
	tx := good.create(t, "30")
	good.advance(t, tx.ID, domain.StatusBookDelivered)

	broken, err := NewComplaintResolver(&failingUpdates{Store: mem, err: errInjected}, domain.DefaultDisputePolicy(), good.notify, nil, good.svc.log)
	require.NoError(t, err)
	broken.newID = func() string { return "complaint-fixed" }

	current, err := mem.Repositories().Transactions.GetByID(context.Background(), tx.ID)
	require.NoError(t, err)

	_, err = broken.Open(context.Background(), current, domain.RoleBorrower, borrower.ID, OpenDisputeInput{Reason: "torn pages"})
	assert.ErrorIs(t, err, errInjected)

	_, err = mem.Repositories().Complaints.GetByID(context.Background(), "complaint-fixed")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	after, err := mem.Repositories().Transactions.GetByID(context.Background(), tx.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusBookDelivered, after.Status)
	assert.Nil(t, after.ComplaintID)
	assert.Equal(t, 0, good.notifier.count(domain.EventDisputeOpened))
}

func TestSecondDisputeRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tx := f.create(t, "30")
	f.advance(t, tx.ID, domain.StatusEscrow)

	_, err := f.svc.OpenDispute(ctx, tx.ID, borrower, OpenDisputeInput{Reason: "late"})
	require.NoError(t, err)

	_, err = f.svc.OpenDispute(ctx, tx.ID, lender, OpenDisputeInput{Reason: "again"})
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestOpenDisputeValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tx := f.create(t, "30")

	_, err := f.svc.OpenDispute(ctx, tx.ID, borrower, OpenDisputeInput{Reason: "too early"})
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	f.advance(t, tx.ID, domain.StatusEscrow)

	_, err = f.svc.OpenDispute(ctx, tx.ID, borrower, OpenDisputeInput{Reason: "  "})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = f.svc.OpenDispute(ctx, tx.ID, borrower, OpenDisputeInput{Reason: "x", AgainstID: borrower.ID})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = f.svc.OpenDispute(ctx, tx.ID, arbiter, OpenDisputeInput{Reason: "x"})
	assert.ErrorIs(t, err, domain.ErrForbidden)
}

func TestConfirmIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tx := f.create(t, "30")
	f.advance(t, tx.ID, domain.StatusBookReceived)

	_, err := f.svc.Confirm(ctx, tx.ID, lender)
	require.NoError(t, err)
	before := len(f.notifier.all())

	again, err := f.svc.Confirm(ctx, tx.ID, lender)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusBookReceived, again.Status)
	assert.True(t, again.LenderConfirmed)
	assert.False(t, again.BorrowerConfirmed)
	assert.Len(t, f.notifier.all(), before)
}

func TestConfirmOutsideBookReceived(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tx := f.create(t, "30")
	f.advance(t, tx.ID, domain.StatusEscrow)

	_, err := f.svc.Confirm(ctx, tx.ID, lender)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	got, err := f.svc.GetTransaction(ctx, tx.ID, lender)
	require.NoError(t, err)
	assert.False(t, got.LenderConfirmed)
}

func TestConcurrentConfirmCompletesOnce(t *testing.T) {
	for run := 0; run < 20; run++ {
		f := newFixture(t)
		ctx := context.Background()
		tx := f.create(t, "30")
		f.advance(t, tx.ID, domain.StatusBookReceived)

		var wg sync.WaitGroup
		for i := 0; i < 4; i++ {
			for _, caller := range []domain.Caller{lender, borrower} {
				wg.Add(1)
				go func(c domain.Caller) {
					defer wg.Done()
					_, err := f.svc.Confirm(ctx, tx.ID, c)
					assert.NoError(t, err)
				}(caller)
			}
		}
		wg.Wait()

		got, err := f.svc.GetTransaction(ctx, tx.ID, lender)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusCompleted, got.Status)
		assert.Equal(t, 1, f.notifier.count(domain.EventCompleted), "run %d", run)

		history, err := f.svc.History(ctx, tx.ID, lender)
		require.NoError(t, err)
		completions := 0
		for _, e := range history {
			if e.ToStatus == domain.StatusCompleted {
				completions++
			}
		}
		assert.Equal(t, 1, completions)
	}
}

func TestCommissionIsNotRetroactive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first := f.create(t, "30")
	require.NoError(t, f.calc.SetPolicy(domain.CommissionPolicy{Rate: decimal.RequireFromString("0.20")}))
	second := f.create(t, "30")

	a, err := f.svc.GetTransaction(ctx, first.ID, lender)
	require.NoError(t, err)
	b, err := f.svc.GetTransaction(ctx, second.ID, lender)
	require.NoError(t, err)

	assert.True(t, decimal.NewFromInt(3).Equal(a.PlatformCommission))
	assert.True(t, decimal.RequireFromString("0.1").Equal(a.CommissionRate))
	assert.True(t, decimal.NewFromInt(6).Equal(b.PlatformCommission))

	// the stored commission survives the rest of the lifecycle untouched
	f.advance(t, first.ID, domain.StatusBookReceived)
	a, err = f.svc.GetTransaction(ctx, first.ID, lender)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(3).Equal(a.PlatformCommission))
}

func TestCancel(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tx := f.create(t, "30")
	got, err := f.svc.Cancel(ctx, tx.ID, lender)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, got.Status)
	assert.Equal(t, 1, f.notifier.count(domain.EventCancelled))

	// repeated cancel is a no-op
	got, err = f.svc.Cancel(ctx, tx.ID, borrower)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, got.Status)
	assert.Equal(t, 1, f.notifier.count(domain.EventCancelled))

	_, err = f.svc.ProposeTerms(ctx, tx.ID, lender)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestCancelAfterEscrowRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tx := f.create(t, "30")
	f.advance(t, tx.ID, domain.StatusEscrow)

	_, err := f.svc.Cancel(ctx, tx.ID, borrower)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	got, err := f.svc.GetTransaction(ctx, tx.ID, borrower)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusEscrow, got.Status)
}

func TestCancelledByDisputeIsNotCancelSuccess(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tx := f.create(t, "30")
	f.advance(t, tx.ID, domain.StatusEscrow)

	complaint, err := f.svc.OpenDispute(ctx, tx.ID, borrower, OpenDisputeInput{Reason: "x"})
	require.NoError(t, err)
	_, err = f.svc.ResolveDispute(ctx, complaint.ID, arbiter, ResolveDisputeInput{Outcome: domain.ComplaintRejected, Resolution: "y"})
	require.NoError(t, err)

	_, err = f.svc.Cancel(ctx, tx.ID, lender)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestRepeatedTransitionsAreIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tx := f.create(t, "30")

	_, err := f.svc.ProposeTerms(ctx, tx.ID, lender)
	require.NoError(t, err)
	got, err := f.svc.ProposeTerms(ctx, tx.ID, borrower)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusNegotiating, got.Status)
	assert.Equal(t, 1, f.notifier.count(domain.EventTermsProposed))

	f.advance(t, tx.ID, domain.StatusEscrow)
	got, err = f.svc.ConfirmPayment(ctx, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusEscrow, got.Status)
	assert.Equal(t, 1, f.notifier.count(domain.EventPaymentConfirmed))

	// once the lifecycle moved past negotiating, proposing again is an error
	_, err = f.svc.ProposeTerms(ctx, tx.ID, lender)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestForbiddenCallers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tx := f.create(t, "30")

	_, err := f.svc.ProposeTerms(ctx, tx.ID, stranger)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	_, err = f.svc.ProposeTerms(ctx, tx.ID, arbiter)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	_, err = f.svc.GetTransaction(ctx, tx.ID, stranger)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	_, err = f.svc.GetTransaction(ctx, tx.ID, arbiter)
	assert.NoError(t, err)

	_, err = f.svc.History(ctx, tx.ID, stranger)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	f.advance(t, tx.ID, domain.StatusEscrow)

	_, err = f.svc.MarkDelivered(ctx, tx.ID, borrower)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	f.advance(t, tx.ID, domain.StatusBookDelivered)
	_, err = f.svc.MarkReceived(ctx, tx.ID, lender)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	complaint, err := f.svc.OpenDispute(ctx, tx.ID, borrower, OpenDisputeInput{Reason: "x"})
	require.NoError(t, err)

	_, err = f.svc.ResolveDispute(ctx, complaint.ID, lender, ResolveDisputeInput{Outcome: domain.ComplaintResolved, Resolution: "mine"})
	assert.ErrorIs(t, err, domain.ErrForbidden)

	_, err = f.svc.GetComplaint(ctx, complaint.ID, stranger)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	_, err = f.svc.GetComplaint(ctx, complaint.ID, arbiter)
	assert.NoError(t, err)

	// nothing changed hands
	got, err := f.svc.GetTransaction(ctx, tx.ID, lender)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDisputed, got.Status)
}

func TestNotFound(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.ProposeTerms(ctx, "missing", lender)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = f.svc.ConfirmPayment(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = f.svc.ResolveDispute(ctx, "missing", arbiter, ResolveDisputeInput{Outcome: domain.ComplaintResolved, Resolution: "x"})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCreateTransactionValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	price := decimal.NewFromInt(30)

	tests := []struct {
		name   string
		caller domain.Caller
		in     CreateTransactionInput
		err    error
	}{
		{"missing book", borrower, CreateTransactionInput{LenderID: lender.ID, BorrowerID: borrower.ID, RentalPrice: price}, domain.ErrInvalidInput},
		{"same party", lender, CreateTransactionInput{BookID: "b", LenderID: lender.ID, BorrowerID: lender.ID, RentalPrice: price}, domain.ErrInvalidInput},
		{"zero price", borrower, CreateTransactionInput{BookID: "b", LenderID: lender.ID, BorrowerID: borrower.ID}, domain.ErrInvalidInput},
		{"negative price", borrower, CreateTransactionInput{BookID: "b", LenderID: lender.ID, BorrowerID: borrower.ID, RentalPrice: decimal.NewFromInt(-5)}, domain.ErrInvalidInput},
		{"sub-cent price", borrower, CreateTransactionInput{BookID: "b", LenderID: lender.ID, BorrowerID: borrower.ID, RentalPrice: decimal.RequireFromString("1.005")}, domain.ErrInvalidInput},
		{"price beyond column", borrower, CreateTransactionInput{BookID: "b", LenderID: lender.ID, BorrowerID: borrower.ID, RentalPrice: decimal.RequireFromString("123456789012.50")}, domain.ErrInvalidInput},
		{"price too small", borrower, CreateTransactionInput{BookID: "b", LenderID: lender.ID, BorrowerID: borrower.ID, RentalPrice: decimal.RequireFromString("0.01")}, domain.ErrInvalidInput},
		{"not a party", stranger, CreateTransactionInput{BookID: "b", LenderID: lender.ID, BorrowerID: borrower.ID, RentalPrice: price}, domain.ErrForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.CreateTransaction(ctx, tt.caller, tt.in)
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestStoreFailureIsCollaboratorUnavailable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tx := f.create(t, "30")

	f.store.WithError(errInjected)
	_, err := f.svc.ProposeTerms(ctx, tx.ID, lender)
	assert.ErrorIs(t, err, domain.ErrCollaboratorUnavailable)

	f.store.WithError(nil)
	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = f.svc.ProposeTerms(cancelled, tx.ID, lender)
	assert.ErrorIs(t, err, domain.ErrCollaboratorUnavailable)
}

func TestNotificationFailureIsQueued(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tx := f.create(t, "30")

	f.notifier.setFail(errInjected)
	got, err := f.svc.ProposeTerms(ctx, tx.ID, lender)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusNegotiating, got.Status)

	entries := f.store.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, domain.OutboxPending, entries[0].State)
	assert.Equal(t, borrower.ID, entries[0].Notification.RecipientID)
	assert.Equal(t, domain.EventTermsProposed, entries[0].Notification.Kind)
	assert.Equal(t, 1, entries[0].Attempts)
	assert.Equal(t, 1, f.logs.FilterLevelExact(zapcore.WarnLevel).Len())
}

func TestListMine(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.create(t, "10")
	f.create(t, "20")

	txs, total, err := f.svc.ListMine(ctx, lender, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, txs, 2)

	txs, total, err = f.svc.ListMine(ctx, stranger, 0, 10)
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, txs)

	_, _, err = f.svc.ListMine(ctx, domain.Caller{}, 0, 10)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}
