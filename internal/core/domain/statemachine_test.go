package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var allStatuses = []Status{
	StatusPending, StatusNegotiating, StatusPaymentPending, StatusEscrow,
	StatusBookDelivered, StatusBookReceived, StatusCompleted, StatusCancelled, StatusDisputed,
}

func TestTransitionTable(t *testing.T) {
	tests := []struct {
		op   Operation
		from []Status
		to   Status
	}{
		{OpProposeTerms, []Status{StatusPending}, StatusNegotiating},
		{OpAcceptTerms, []Status{StatusNegotiating}, StatusPaymentPending},
		{OpConfirmPayment, []Status{StatusPaymentPending}, StatusEscrow},
		{OpMarkDelivered, []Status{StatusEscrow}, StatusBookDelivered},
		{OpMarkReceived, []Status{StatusBookDelivered}, StatusBookReceived},
		{OpConfirm, []Status{StatusBookReceived}, StatusCompleted},
		{OpCancel, []Status{StatusPending, StatusNegotiating, StatusPaymentPending}, StatusCancelled},
		{OpOpenDispute, []Status{StatusEscrow, StatusBookDelivered, StatusBookReceived}, StatusDisputed},
	}

	for _, tt := range tests {
		t.Run(string(tt.op), func(t *testing.T) {
			tr, ok := Lookup(tt.op)
			require.True(t, ok)
			assert.ElementsMatch(t, tt.from, tr.From)
			assert.Equal(t, tt.to, tr.To)

			for _, s := range allStatuses {
				assert.Equal(t, containsStatus(tt.from, s), tr.ValidFrom(s), "source %s", s)
			}
		})
	}
}

func TestTerminalStatesHaveNoOutgoingEdges(t *testing.T) {
	for _, from := range []Status{StatusCompleted, StatusCancelled} {
		for _, to := range allStatuses {
			assert.False(t, CanTransition(from, to), "%s -> %s", from, to)
		}
	}
}

func TestDisputedLeavesOnlyToTerminalStates(t *testing.T) {
	for _, to := range allStatuses {
		want := to == StatusCompleted || to == StatusCancelled
		assert.Equal(t, want, CanTransition(StatusDisputed, to), "disputed -> %s", to)
	}
}

func TestCancelNotAllowedAfterEscrow(t *testing.T) {
	tr, _ := Lookup(OpCancel)
	for _, s := range []Status{StatusEscrow, StatusBookDelivered, StatusBookReceived, StatusDisputed, StatusCompleted} {
		assert.False(t, tr.ValidFrom(s), s)
	}
}

func TestPlanAuthorizesRoles(t *testing.T) {
	now := time.Now()

	_, _, _, err := Plan(OpMarkDelivered, RoleBorrower, now)
	assert.ErrorIs(t, err, ErrForbidden)

	_, _, _, err = Plan(OpMarkReceived, RoleLender, now)
	assert.ErrorIs(t, err, ErrForbidden)

	_, _, _, err = Plan(OpProposeTerms, RoleNone, now)
	assert.ErrorIs(t, err, ErrForbidden)

	_, _, _, err = Plan(OpCancel, RoleArbiter, now)
	assert.ErrorIs(t, err, ErrForbidden)

	_, _, _, err = Plan(OpConfirm, RoleLender, now)
	assert.ErrorIs(t, err, ErrInvalidInput)

	tr, pre, mut, err := Plan(OpMarkDelivered, RoleLender, now)
	require.NoError(t, err)
	assert.Equal(t, StatusBookDelivered, tr.To)
	assert.Equal(t, []Status{StatusEscrow}, pre.Statuses)
	require.NotNil(t, mut.Status)
	assert.Equal(t, StatusBookDelivered, *mut.Status)
	assert.Equal(t, now, mut.UpdatedAt)
}

func TestPlanConfirmPayment(t *testing.T) {
	_, pre, mut, err := Plan(OpConfirmPayment, RoleNone, time.Now())
	require.NoError(t, err)
	assert.True(t, mut.PaymentConfirmed)

	tx := &Transaction{Status: StatusPaymentPending}
	require.True(t, pre.Matches(tx))
	mut.ApplyTo(tx)
	assert.Equal(t, StatusEscrow, tx.Status)
	assert.True(t, tx.PaymentConfirmed)
}

func TestPlanOpenDisputeRequiresNoComplaint(t *testing.T) {
	_, pre, _, err := Plan(OpOpenDispute, RoleBorrower, time.Now())
	require.NoError(t, err)

	id := "c-1"
	assert.True(t, pre.Matches(&Transaction{Status: StatusEscrow}))
	assert.False(t, pre.Matches(&Transaction{Status: StatusEscrow, ComplaintID: &id}))
	assert.False(t, pre.Matches(&Transaction{Status: StatusPending}))
}

func TestPlanConfirm(t *testing.T) {
	now := time.Now()

	_, err := PlanConfirm(RoleArbiter, now)
	assert.ErrorIs(t, err, ErrForbidden)

	plan, err := PlanConfirm(RoleLender, now)
	require.NoError(t, err)
	assert.Equal(t, EventLenderConfirmed, plan.Event)

	// borrower has not confirmed: only the single write matches
	tx := &Transaction{Status: StatusBookReceived}
	assert.False(t, plan.Complete.Matches(tx))
	require.True(t, plan.Single.Matches(tx))
	plan.SingleMut.ApplyTo(tx)
	assert.True(t, tx.LenderConfirmed)
	assert.Equal(t, StatusBookReceived, tx.Status)

	// a repeated lender confirm matches neither write
	assert.False(t, plan.Complete.Matches(tx))
	assert.False(t, plan.Single.Matches(tx))

	bplan, err := PlanConfirm(RoleBorrower, now)
	require.NoError(t, err)
	require.True(t, bplan.Complete.Matches(tx))
	assert.False(t, bplan.Single.Matches(tx))
	bplan.CompleteMut.ApplyTo(tx)
	assert.True(t, tx.BorrowerConfirmed)
	assert.True(t, tx.LenderConfirmed)
	assert.Equal(t, StatusCompleted, tx.Status)
}

func TestMutationNeverResetsConfirmations(t *testing.T) {
	tx := &Transaction{Status: StatusBookReceived, LenderConfirmed: true, PaymentConfirmed: true}
	cancelled := StatusCancelled
	Mutation{Status: &cancelled}.ApplyTo(tx)

	assert.True(t, tx.LenderConfirmed)
	assert.True(t, tx.PaymentConfirmed)
}

func TestReached(t *testing.T) {
	cancel, _ := Lookup(OpCancel)
	assert.True(t, cancel.Reached(&Transaction{Status: StatusCancelled}))
	assert.False(t, cancel.Reached(&Transaction{Status: StatusCancelled, PaymentConfirmed: true}))

	pay, _ := Lookup(OpConfirmPayment)
	assert.True(t, pay.Reached(&Transaction{Status: StatusBookDelivered, PaymentConfirmed: true}))
	assert.False(t, pay.Reached(&Transaction{Status: StatusPaymentPending}))

	dispute, _ := Lookup(OpOpenDispute)
	assert.False(t, dispute.Reached(&Transaction{Status: StatusDisputed}))
}

func TestResolutionWrite(t *testing.T) {
	_, _, err := ResolutionWrite(StatusEscrow, time.Now())
	assert.ErrorIs(t, err, ErrInvalidInput)

	pre, mut, err := ResolutionWrite(StatusCompleted, time.Now())
	require.NoError(t, err)
	assert.True(t, pre.Matches(&Transaction{Status: StatusDisputed}))
	assert.False(t, pre.Matches(&Transaction{Status: StatusEscrow}))
	assert.Equal(t, StatusCompleted, *mut.Status)
}

func TestTransactionRoles(t *testing.T) {
	tx := &Transaction{LenderID: "L", BorrowerID: "B"}

	assert.Equal(t, RoleLender, tx.RoleOf("L"))
	assert.Equal(t, RoleBorrower, tx.RoleOf("B"))
	assert.Equal(t, RoleNone, tx.RoleOf("X"))
	assert.Equal(t, RoleNone, tx.RoleOf(""))
	assert.Equal(t, "B", tx.Counterparty(RoleLender))
	assert.Equal(t, "L", tx.Counterparty(RoleBorrower))
	assert.Equal(t, "", tx.Counterparty(RoleArbiter))
}
