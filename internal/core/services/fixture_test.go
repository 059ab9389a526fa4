package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"booklend/internal/adapters/persistence/memory"
	"booklend/internal/adapters/persistence/repositories"
	"booklend/internal/core/domain"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

var (
	lender   = domain.Caller{ID: "lender-1", Role: domain.PlatformRoleUser}
	borrower = domain.Caller{ID: "borrower-1", Role: domain.PlatformRoleUser}
	arbiter  = domain.Caller{ID: "arbiter-1", Role: domain.PlatformRoleArbiter}
	stranger = domain.Caller{ID: "stranger-1", Role: domain.PlatformRoleUser}
)

type recordingNotifier struct {
	mu   sync.Mutex
	sent []domain.Notification
	fail error
}

func (r *recordingNotifier) Notify(_ context.Context, n domain.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail != nil {
		return r.fail
	}
	r.sent = append(r.sent, n)
	return nil
}

func (r *recordingNotifier) setFail(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fail = err
}

func (r *recordingNotifier) all() []domain.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.Notification(nil), r.sent...)
}

func (r *recordingNotifier) count(kind domain.EventKind) int {
	n := 0
	for _, s := range r.all() {
		if s.Kind == kind {
			n++
		}
	}
	return n
}

type fixture struct {
	store    *memory.Store
	notifier *recordingNotifier
	calc     *domain.CommissionCalculator
	notify   *NotificationService
	resolver *ComplaintResolver
	svc      *TransactionService
	logs     *observer.ObservedLogs
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWith(t, memory.NewStore(), domain.DefaultDisputePolicy())
}

func newFixtureWith(t *testing.T, mem *memory.Store, policy domain.DisputePolicy) *fixture {
	t.Helper()

	core, logs := observer.New(zapcore.DebugLevel)
	log := zap.New(core)
	metrics := NewMetrics(prometheus.NewRegistry())
	rec := &recordingNotifier{}

	calc, err := domain.NewCommissionCalculator(domain.DefaultCommissionPolicy())
	require.NoError(t, err)

	notify := NewNotificationService(rec, mem.Outbox(), DefaultBackoff(), metrics, log)
	resolver, err := NewComplaintResolver(mem, policy, notify, metrics, log)
	require.NoError(t, err)
	coordinator := NewConfirmationCoordinator(mem, notify, metrics, log)

	return &fixture{
		store:    mem,
		notifier: rec,
		calc:     calc,
		notify:   notify,
		resolver: resolver,
		svc:      NewTransactionService(mem, calc, coordinator, resolver, notify, metrics, log),
		logs:     logs,
	}
}

// create makes a transaction between lender and borrower priced at price
func (f *fixture) create(t *testing.T, price string) *domain.Transaction {
	t.Helper()
	tx, err := f.svc.CreateTransaction(context.Background(), borrower, CreateTransactionInput{
		BookID:      "book-1",
		LenderID:    lender.ID,
		BorrowerID:  borrower.ID,
		RentalPrice: decimal.RequireFromString(price),
	})
	require.NoError(t, err)
	return tx
}

// advance drives a fresh transaction to status along the happy path
func (f *fixture) advance(t *testing.T, id string, status domain.Status) {
	t.Helper()
	ctx := context.Background()
	steps := []struct {
		to  domain.Status
		run func() (*domain.Transaction, error)
	}{
		{domain.StatusNegotiating, func() (*domain.Transaction, error) { return f.svc.ProposeTerms(ctx, id, lender) }},
		{domain.StatusPaymentPending, func() (*domain.Transaction, error) { return f.svc.AcceptTerms(ctx, id, borrower) }},
		{domain.StatusEscrow, func() (*domain.Transaction, error) { return f.svc.ConfirmPayment(ctx, id) }},
		{domain.StatusBookDelivered, func() (*domain.Transaction, error) { return f.svc.MarkDelivered(ctx, id, lender) }},
		{domain.StatusBookReceived, func() (*domain.Transaction, error) { return f.svc.MarkReceived(ctx, id, borrower) }},
	}
	current, err := f.store.Repositories().Transactions.GetByID(ctx, id)
	require.NoError(t, err)
	skip := current.Status != domain.StatusPending

	for _, step := range steps {
		if skip {
			skip = step.to != current.Status
			continue
		}
		tx, err := step.run()
		require.NoError(t, err)
		require.Equal(t, step.to, tx.Status)
		if step.to == status {
			return
		}
	}
	t.Fatalf("status %s is not on the happy path", status)
}

// failingUpdates wraps a store so that conditional writes inside a unit of
// work fail after the other writes of the unit have been made
type failingUpdates struct {
	repositories.Store
	err error
}

func (f *failingUpdates) RunInTx(ctx context.Context, fn func(r repositories.Repositories) error) error {
	return f.Store.RunInTx(ctx, func(r repositories.Repositories) error {
		r.Transactions = failingTransactions{TransactionRepository: r.Transactions, err: f.err}
		return fn(r)
	})
}

type failingTransactions struct {
	repositories.TransactionRepository
	err error
}

func (f failingTransactions) UpdateIf(context.Context, string, domain.Precondition, domain.Mutation) (bool, error) {
	return false, f.err
}

var errInjected = errors.New("injected failure")

func newMemoryStore() *memory.Store {
	return memory.NewStore()
}
