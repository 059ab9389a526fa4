package domain

import (
	"fmt"
	"sync/atomic"

	"github.com/shopspring/decimal"
)

// CommissionScale is the number of decimal places commissions are rounded to
const CommissionScale = 2

// MaxAmount is the largest money amount a transaction column holds
var MaxAmount = decimal.RequireFromString("9999999999.99")

// ValidateAmount checks that amount fits a money column exactly
func ValidateAmount(amount decimal.Decimal) error {
	if !amount.Equal(amount.Round(CommissionScale)) {
		return fmt.Errorf("%w: amount %s has more than %d decimal places", ErrInvalidInput, amount, CommissionScale)
	}
	if amount.GreaterThan(MaxAmount) {
		return fmt.Errorf("%w: amount %s exceeds %s", ErrInvalidInput, amount, MaxAmount)
	}
	return nil
}

// CommissionPolicy is a percentage commission with optional bounds.
// A zero Floor or Ceiling means unbounded on that side.
type CommissionPolicy struct {
	Rate    decimal.Decimal `json:"rate"`
	Floor   decimal.Decimal `json:"floor"`
	Ceiling decimal.Decimal `json:"ceiling"`
}

// DefaultCommissionPolicy is a flat 10% commission
func DefaultCommissionPolicy() CommissionPolicy {
	return CommissionPolicy{Rate: decimal.RequireFromString("0.10")}
}

// Validate checks the policy is internally consistent
func (p CommissionPolicy) Validate() error {
	if !p.Rate.IsPositive() || p.Rate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return fmt.Errorf("%w: commission rate must be in (0, 1), got %s", ErrInvalidInput, p.Rate)
	}
	if p.Floor.IsNegative() || p.Ceiling.IsNegative() {
		return fmt.Errorf("%w: commission bounds must not be negative", ErrInvalidInput)
	}
	if p.Floor.IsPositive() && p.Ceiling.IsPositive() && p.Floor.GreaterThan(p.Ceiling) {
		return fmt.Errorf("%w: commission floor %s exceeds ceiling %s", ErrInvalidInput, p.Floor, p.Ceiling)
	}
	return nil
}

// Commission computes the commission on price under the policy
func (p CommissionPolicy) Commission(price decimal.Decimal) decimal.Decimal {
	c := price.Mul(p.Rate)
	if p.Floor.IsPositive() && c.LessThan(p.Floor) {
		c = p.Floor
	}
	if p.Ceiling.IsPositive() && c.GreaterThan(p.Ceiling) {
		c = p.Ceiling
	}
	return c.Round(CommissionScale)
}

// CommissionCalculator computes commissions from the policy currently in
// force. The policy may be replaced at any time; commissions already stored
// on transactions are never recomputed.
type CommissionCalculator struct {
	policy atomic.Pointer[CommissionPolicy]
}

// NewCommissionCalculator creates a calculator with an initial policy
func NewCommissionCalculator(p CommissionPolicy) (*CommissionCalculator, error) {
	c := &CommissionCalculator{}
	if err := c.SetPolicy(p); err != nil {
		return nil, err
	}
	return c, nil
}

// SetPolicy replaces the policy used for future transactions
func (c *CommissionCalculator) SetPolicy(p CommissionPolicy) error {
	if err := p.Validate(); err != nil {
		return err
	}
	c.policy.Store(&p)
	return nil
}

// Policy returns the policy currently in force
func (c *CommissionCalculator) Policy() CommissionPolicy {
	return *c.policy.Load()
}

// Quote returns the commission on price together with the policy that
// produced it, read once so both values belong to the same policy version.
func (c *CommissionCalculator) Quote(price decimal.Decimal) (decimal.Decimal, CommissionPolicy) {
	p := c.Policy()
	return p.Commission(price), p
}
