package config

import (
	"context"
	"fmt"

	"booklend/internal/core/domain"
	"booklend/internal/core/services"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Demo parties seeded in development
const (
	DemoLenderID   = "demo-lender"
	DemoBorrowerID = "demo-borrower"
)

// TransactionSeeder is the part of the transaction service the seeder needs
type TransactionSeeder interface {
	ListMine(ctx context.Context, caller domain.Caller, offset, limit int) ([]*domain.Transaction, int64, error)
	CreateTransaction(ctx context.Context, caller domain.Caller, in services.CreateTransactionInput) (*domain.Transaction, error)
}

// Seeder handles development data seeding
type Seeder struct {
	svc TransactionSeeder
	log *zap.Logger
}

// NewSeeder creates a new seeder instance
func NewSeeder(svc TransactionSeeder, log *zap.Logger) *Seeder {
	return &Seeder{svc: svc, log: log}
}

// Run creates a demo transaction between the demo parties unless one exists.
// This is for development/testing only.
func (s *Seeder) Run(ctx context.Context) error {
	s.log.Info("🌱 Running development seeders...")

	lender := domain.Caller{ID: DemoLenderID, Role: domain.PlatformRoleUser}
	_, total, err := s.svc.ListMine(ctx, lender, 0, 1)
	if err != nil {
		return fmt.Errorf("seed: %w", err)
	}
	if total > 0 {
		s.log.Info("✅ Demo transaction already present")
		return nil
	}

	tx, err := s.svc.CreateTransaction(ctx, lender, services.CreateTransactionInput{
		BookID:      "demo-book",
		LenderID:    DemoLenderID,
		BorrowerID:  DemoBorrowerID,
		RentalPrice: decimal.NewFromInt(100),
	})
	if err != nil {
		return fmt.Errorf("seed: %w", err)
	}

	s.log.Info("✅ Demo transaction created", zap.String("transaction_id", tx.ID))
	return nil
}
