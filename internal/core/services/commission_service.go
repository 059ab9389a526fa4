package services

import (
	"booklend/internal/core/domain"

	"go.uber.org/zap"
)

// CommissionService exposes the commission policy to arbiters. Replacing the
// policy only affects transactions created afterwards.
type CommissionService struct {
	calculator *domain.CommissionCalculator
	auth       *Authorizer
	log        *zap.Logger
}

// NewCommissionService creates a new commission service
func NewCommissionService(calculator *domain.CommissionCalculator, log *zap.Logger) *CommissionService {
	return &CommissionService{
		calculator: calculator,
		auth:       NewAuthorizer(),
		log:        log,
	}
}

// GetPolicy returns the policy in force
func (s *CommissionService) GetPolicy(caller domain.Caller) (domain.CommissionPolicy, error) {
	if !s.auth.IsArbiter(caller) {
		return domain.CommissionPolicy{}, domain.ErrForbidden
	}
	return s.calculator.Policy(), nil
}

// SetPolicy replaces the policy in force
func (s *CommissionService) SetPolicy(caller domain.Caller, policy domain.CommissionPolicy) (domain.CommissionPolicy, error) {
	if !s.auth.IsArbiter(caller) {
		return domain.CommissionPolicy{}, domain.ErrForbidden
	}
	if err := s.calculator.SetPolicy(policy); err != nil {
		return domain.CommissionPolicy{}, err
	}
	s.log.Info("commission policy updated",
		zap.String("by", caller.ID),
		zap.String("rate", policy.Rate.String()),
		zap.String("floor", policy.Floor.String()),
		zap.String("ceiling", policy.Ceiling.String()),
	)
	return s.calculator.Policy(), nil
}
