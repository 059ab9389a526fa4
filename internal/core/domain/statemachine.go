package domain

import (
	"fmt"
	"time"
)

// Precondition is what a stored transaction must match for a conditional
// write to apply. Empty fields are not checked.
type Precondition struct {
	Statuses          []Status
	LenderConfirmed   *bool
	BorrowerConfirmed *bool
	NoComplaint       bool
}

// Matches reports whether t satisfies the precondition
func (p Precondition) Matches(t *Transaction) bool {
	if len(p.Statuses) > 0 && !containsStatus(p.Statuses, t.Status) {
		return false
	}
	if p.LenderConfirmed != nil && t.LenderConfirmed != *p.LenderConfirmed {
		return false
	}
	if p.BorrowerConfirmed != nil && t.BorrowerConfirmed != *p.BorrowerConfirmed {
		return false
	}
	if p.NoComplaint && t.ComplaintID != nil {
		return false
	}
	return true
}

// Mutation is the set of changes applied by a conditional write.
// Confirmation flags are append-only: true sets the flag, false leaves it.
type Mutation struct {
	Status            *Status
	PaymentConfirmed  bool
	LenderConfirmed   bool
	BorrowerConfirmed bool
	ComplaintID       *string
	UpdatedAt         time.Time
}

// ApplyTo applies the mutation to t in place
func (m Mutation) ApplyTo(t *Transaction) {
	if m.Status != nil {
		t.Status = *m.Status
	}
	if m.PaymentConfirmed {
		t.PaymentConfirmed = true
	}
	if m.LenderConfirmed {
		t.LenderConfirmed = true
	}
	if m.BorrowerConfirmed {
		t.BorrowerConfirmed = true
	}
	if m.ComplaintID != nil {
		id := *m.ComplaintID
		t.ComplaintID = &id
	}
	if !m.UpdatedAt.IsZero() {
		t.UpdatedAt = m.UpdatedAt
	}
}

// Transition is one row of the transition table
type Transition struct {
	Operation Operation
	From      []Status
	To        Status
	// Roles allowed to trigger the transition; empty means the operation is
	// authorized outside the party/arbiter model (payment collaborator).
	Roles []Role
	// Event emitted when the transition is applied
	Event EventKind
	// reached reports whether a re-read record already shows the outcome of
	// this operation, so a lost conditional write counts as success.
	reached func(t *Transaction) bool
}

// Reached reports whether t already reflects the outcome of the transition
func (tr Transition) Reached(t *Transaction) bool {
	if tr.reached != nil {
		return tr.reached(t)
	}
	return t.Status == tr.To
}

// Allows reports whether role may trigger the transition
func (tr Transition) Allows(role Role) bool {
	if len(tr.Roles) == 0 {
		return true
	}
	for _, r := range tr.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// ValidFrom reports whether s is a valid source status
func (tr Transition) ValidFrom(s Status) bool {
	return containsStatus(tr.From, s)
}

var parties = []Role{RoleLender, RoleBorrower}

// DisputeEligible lists the statuses from which a dispute can be opened
var DisputeEligible = []Status{StatusEscrow, StatusBookDelivered, StatusBookReceived}

var transitions = map[Operation]Transition{
	OpProposeTerms: {
		Operation: OpProposeTerms,
		From:      []Status{StatusPending},
		To:        StatusNegotiating,
		Roles:     parties,
		Event:     EventTermsProposed,
	},
	OpAcceptTerms: {
		Operation: OpAcceptTerms,
		From:      []Status{StatusNegotiating},
		To:        StatusPaymentPending,
		Roles:     parties,
		Event:     EventTermsAccepted,
	},
	OpConfirmPayment: {
		Operation: OpConfirmPayment,
		From:      []Status{StatusPaymentPending},
		To:        StatusEscrow,
		Event:     EventPaymentConfirmed,
		reached:   func(t *Transaction) bool { return t.PaymentConfirmed },
	},
	OpMarkDelivered: {
		Operation: OpMarkDelivered,
		From:      []Status{StatusEscrow},
		To:        StatusBookDelivered,
		Roles:     []Role{RoleLender},
		Event:     EventBookDelivered,
	},
	OpMarkReceived: {
		Operation: OpMarkReceived,
		From:      []Status{StatusBookDelivered},
		To:        StatusBookReceived,
		Roles:     []Role{RoleBorrower},
		Event:     EventBookReceived,
	},
	OpConfirm: {
		Operation: OpConfirm,
		From:      []Status{StatusBookReceived},
		To:        StatusCompleted,
		Roles:     parties,
		Event:     EventCompleted,
	},
	OpCancel: {
		Operation: OpCancel,
		From:      []Status{StatusPending, StatusNegotiating, StatusPaymentPending},
		To:        StatusCancelled,
		Roles:     parties,
		Event:     EventCancelled,
		// a cancelled record that never saw payment can only have been
		// cancelled through this operation
		reached: func(t *Transaction) bool { return t.Status == StatusCancelled && !t.PaymentConfirmed },
	},
	OpOpenDispute: {
		Operation: OpOpenDispute,
		From:      DisputeEligible,
		To:        StatusDisputed,
		Roles:     parties,
		Event:     EventDisputeOpened,
		reached:   func(*Transaction) bool { return false },
	},
	OpResolveDispute: {
		Operation: OpResolveDispute,
		From:      []Status{StatusDisputed},
		Roles:     []Role{RoleArbiter},
		reached:   func(*Transaction) bool { return false },
	},
}

// Lookup returns the transition triggered by op
func Lookup(op Operation) (Transition, bool) {
	tr, ok := transitions[op]
	return tr, ok
}

// Transitions returns a copy of the transition table
func Transitions() []Transition {
	out := make([]Transition, 0, len(transitions))
	for _, tr := range transitions {
		out = append(out, tr)
	}
	return out
}

// CanTransition reports whether the graph has an edge from -> to
func CanTransition(from, to Status) bool {
	for _, tr := range transitions {
		if !tr.ValidFrom(from) {
			continue
		}
		if tr.Operation == OpResolveDispute {
			if to == StatusCompleted || to == StatusCancelled {
				return true
			}
			continue
		}
		if tr.To == to {
			return true
		}
	}
	return false
}

// Plan authorizes role for op and returns the conditional write that applies
// it. The source status is not checked here: it is part of the precondition
// and enforced by the store at write time.
func Plan(op Operation, role Role, now time.Time) (Transition, Precondition, Mutation, error) {
	tr, ok := transitions[op]
	if !ok || op == OpConfirm || op == OpResolveDispute {
		return Transition{}, Precondition{}, Mutation{}, fmt.Errorf("%w: operation %q has no direct plan", ErrInvalidInput, op)
	}
	if !tr.Allows(role) {
		return Transition{}, Precondition{}, Mutation{}, ErrForbidden
	}

	to := tr.To
	pre := Precondition{Statuses: tr.From}
	mut := Mutation{Status: &to, UpdatedAt: now}

	switch op {
	case OpConfirmPayment:
		mut.PaymentConfirmed = true
	case OpOpenDispute:
		pre.NoComplaint = true
	}

	return tr, pre, mut, nil
}

// ConfirmPlan is the pair of conditional writes a party's confirm may apply.
// Complete applies when the other party has already confirmed and carries
// the status change; Single applies when it has not.
type ConfirmPlan struct {
	Complete    Precondition
	CompleteMut Mutation
	Single      Precondition
	SingleMut   Mutation
	Event       EventKind
}

// PlanConfirm builds the dual-confirmation writes for role
func PlanConfirm(role Role, now time.Time) (ConfirmPlan, error) {
	if !role.IsParty() {
		return ConfirmPlan{}, ErrForbidden
	}

	f, t := false, true
	completed := StatusCompleted
	from := []Status{StatusBookReceived}

	plan := ConfirmPlan{
		Complete:    Precondition{Statuses: from},
		CompleteMut: Mutation{Status: &completed, UpdatedAt: now},
		Single:      Precondition{Statuses: from},
		SingleMut:   Mutation{UpdatedAt: now},
	}

	switch role {
	case RoleLender:
		plan.Complete.LenderConfirmed, plan.Complete.BorrowerConfirmed = &f, &t
		plan.Single.LenderConfirmed, plan.Single.BorrowerConfirmed = &f, &f
		plan.CompleteMut.LenderConfirmed = true
		plan.SingleMut.LenderConfirmed = true
		plan.Event = EventLenderConfirmed
	case RoleBorrower:
		plan.Complete.BorrowerConfirmed, plan.Complete.LenderConfirmed = &f, &t
		plan.Single.BorrowerConfirmed, plan.Single.LenderConfirmed = &f, &f
		plan.CompleteMut.BorrowerConfirmed = true
		plan.SingleMut.BorrowerConfirmed = true
		plan.Event = EventBorrowerConfirmed
	}

	return plan, nil
}

// ResolutionWrite returns the conditional write moving a disputed transaction
// to target
func ResolutionWrite(target Status, now time.Time) (Precondition, Mutation, error) {
	if !target.IsTerminal() {
		return Precondition{}, Mutation{}, fmt.Errorf("%w: dispute cannot end in %q", ErrInvalidInput, target)
	}
	return Precondition{Statuses: []Status{StatusDisputed}}, Mutation{Status: &target, UpdatedAt: now}, nil
}

func containsStatus(list []Status, s Status) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
