package config

import (
	"context"
	"testing"

	"booklend/internal/core/domain"
	"booklend/internal/core/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeSeeded struct {
	created []services.CreateTransactionInput
}

func (f *fakeSeeded) ListMine(context.Context, domain.Caller, int, int) ([]*domain.Transaction, int64, error) {
	return nil, int64(len(f.created)), nil
}

func (f *fakeSeeded) CreateTransaction(_ context.Context, caller domain.Caller, in services.CreateTransactionInput) (*domain.Transaction, error) {
	f.created = append(f.created, in)
	return &domain.Transaction{ID: "tx-demo", LenderID: in.LenderID, BorrowerID: in.BorrowerID}, nil
}

func TestSeederRunsOnce(t *testing.T) {
	svc := &fakeSeeded{}
	seeder := NewSeeder(svc, zap.NewNop())

	require.NoError(t, seeder.Run(context.Background()))
	require.NoError(t, seeder.Run(context.Background()))

	require.Len(t, svc.created, 1)
	assert.Equal(t, DemoLenderID, svc.created[0].LenderID)
	assert.Equal(t, DemoBorrowerID, svc.created[0].BorrowerID)
}
