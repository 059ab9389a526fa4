package domain

import "fmt"

// DisputePolicy maps a complaint outcome to the status its transaction ends in
type DisputePolicy map[ComplaintStatus]Status

// DefaultDisputePolicy completes the transaction when a complaint is resolved
// and cancels it when the complaint is rejected
func DefaultDisputePolicy() DisputePolicy {
	return DisputePolicy{
		ComplaintResolved: StatusCompleted,
		ComplaintRejected: StatusCancelled,
	}
}

// Validate checks every outcome is mapped to a terminal status
func (p DisputePolicy) Validate() error {
	for _, outcome := range []ComplaintStatus{ComplaintResolved, ComplaintRejected} {
		target, ok := p[outcome]
		if !ok {
			return fmt.Errorf("%w: dispute outcome %q has no target status", ErrInvalidInput, outcome)
		}
		if !target.IsTerminal() {
			return fmt.Errorf("%w: dispute outcome %q maps to non-terminal status %q", ErrInvalidInput, outcome, target)
		}
	}
	return nil
}

// TargetFor returns the transaction status for outcome
func (p DisputePolicy) TargetFor(outcome ComplaintStatus) (Status, error) {
	if !outcome.IsOutcome() {
		return "", fmt.Errorf("%w: outcome must be %q or %q", ErrInvalidInput, ComplaintResolved, ComplaintRejected)
	}
	target, ok := p[outcome]
	if !ok {
		return "", fmt.Errorf("%w: dispute outcome %q has no target status", ErrInvalidInput, outcome)
	}
	return target, nil
}
