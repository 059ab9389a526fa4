package services

import "booklend/internal/core/domain"

// Authorizer resolves a caller's role relative to a transaction
type Authorizer struct{}

// NewAuthorizer creates a new authorizer
func NewAuthorizer() *Authorizer {
	return &Authorizer{}
}

// RoleOf returns lender or borrower when the caller is a party, arbiter when
// the caller holds the platform arbiter role, none otherwise.
func (a *Authorizer) RoleOf(caller domain.Caller, tx *domain.Transaction) domain.Role {
	if role := tx.RoleOf(caller.ID); role.IsParty() {
		return role
	}
	if caller.ID != "" && caller.Role == domain.PlatformRoleArbiter {
		return domain.RoleArbiter
	}
	return domain.RoleNone
}

// CanView reports whether the caller may read the transaction
func (a *Authorizer) CanView(caller domain.Caller, tx *domain.Transaction) bool {
	return a.RoleOf(caller, tx) != domain.RoleNone
}

// IsArbiter reports whether the caller holds the platform arbiter role
func (a *Authorizer) IsArbiter(caller domain.Caller) bool {
	return caller.ID != "" && caller.Role == domain.PlatformRoleArbiter
}
