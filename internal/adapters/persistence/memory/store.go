// Package memory is an in-process Store used when no database is configured
// and by service tests. It honours the same conditional-write and
// unit-of-work contracts as the relational store.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"booklend/internal/adapters/persistence/repositories"
	"booklend/internal/core/domain"

	"github.com/google/uuid"
)

type state struct {
	transactions map[string]*domain.Transaction
	complaints   map[string]*domain.Complaint
	events       []domain.TransitionEvent
	nextEventID  uint
}

func newState() *state {
	return &state{
		transactions: make(map[string]*domain.Transaction),
		complaints:   make(map[string]*domain.Complaint),
	}
}

func (s *state) clone() *state {
	out := &state{
		transactions: make(map[string]*domain.Transaction, len(s.transactions)),
		complaints:   make(map[string]*domain.Complaint, len(s.complaints)),
		events:       append([]domain.TransitionEvent(nil), s.events...),
		nextEventID:  s.nextEventID,
	}
	for id, tx := range s.transactions {
		out.transactions[id] = copyTransaction(tx)
	}
	for id, c := range s.complaints {
		out.complaints[id] = copyComplaint(c)
	}
	return out
}

// Store keeps all records in memory behind a single mutex
type Store struct {
	mu     sync.Mutex
	st     *state
	outbox map[string]*domain.OutboxEntry
	err    error
}

// NewStore creates an empty in-memory store
func NewStore() *Store {
	return &Store{
		st:     newState(),
		outbox: make(map[string]*domain.OutboxEntry),
	}
}

// WithError makes every subsequent call fail as if the store were down.
// Passing nil restores normal operation.
func (s *Store) WithError(err error) *Store {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
	return s
}

// Repositories returns repositories that lock the store per call
func (s *Store) Repositories() repositories.Repositories {
	return s.bind(nil)
}

// Outbox returns the notification outbox repository
func (s *Store) Outbox() repositories.OutboxRepository {
	return &outboxRepo{store: s}
}

// RunInTx runs fn against a staged copy of the state and publishes it only
// if fn succeeds. The store stays locked for the whole unit of work.
func (s *Store) RunInTx(ctx context.Context, fn func(r repositories.Repositories) error) error {
	if err := ctx.Err(); err != nil {
		return unavailable(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return unavailable(s.err)
	}

	staged := s.st.clone()
	if err := fn(s.bind(staged)); err != nil {
		return err
	}
	s.st = staged
	return nil
}

// Ping reports the injected failure, if any
func (s *Store) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return unavailable(err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return unavailable(s.err)
	}
	return nil
}

// Close is a no-op
func (s *Store) Close() error {
	return nil
}

func (s *Store) bind(staged *state) repositories.Repositories {
	return repositories.Repositories{
		Transactions: &transactionRepo{store: s, staged: staged},
		Complaints:   &complaintRepo{store: s, staged: staged},
		Events:       &eventRepo{store: s, staged: staged},
	}
}

// with runs fn on the staged state when inside a unit of work, otherwise on
// the live state under the store lock.
func (s *Store) with(ctx context.Context, staged *state, fn func(st *state) error) error {
	if err := ctx.Err(); err != nil {
		return unavailable(err)
	}
	if staged != nil {
		return fn(staged)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return unavailable(s.err)
	}
	return fn(s.st)
}

func unavailable(err error) error {
	return fmt.Errorf("%w: %v", domain.ErrCollaboratorUnavailable, err)
}

var _ repositories.Store = (*Store)(nil)

// ============================================================
// Transactions
// ============================================================

type transactionRepo struct {
	store  *Store
	staged *state
}

func (r *transactionRepo) Create(ctx context.Context, tx *domain.Transaction) error {
	return r.store.with(ctx, r.staged, func(st *state) error {
		if _, exists := st.transactions[tx.ID]; exists {
			return unavailable(fmt.Errorf("duplicate transaction id %s", tx.ID))
		}
		st.transactions[tx.ID] = copyTransaction(tx)
		return nil
	})
}

func (r *transactionRepo) GetByID(ctx context.Context, id string) (*domain.Transaction, error) {
	var out *domain.Transaction
	err := r.store.with(ctx, r.staged, func(st *state) error {
		tx, ok := st.transactions[id]
		if !ok {
			return domain.ErrTransactionNotFound
		}
		out = copyTransaction(tx)
		return nil
	})
	return out, err
}

func (r *transactionRepo) ListByParty(ctx context.Context, userID string, offset, limit int) ([]*domain.Transaction, int64, error) {
	var out []*domain.Transaction
	var total int64
	err := r.store.with(ctx, r.staged, func(st *state) error {
		var matched []*domain.Transaction
		for _, tx := range st.transactions {
			if tx.LenderID == userID || tx.BorrowerID == userID {
				matched = append(matched, tx)
			}
		}
		sort.Slice(matched, func(i, j int) bool {
			if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
				return matched[i].ID > matched[j].ID
			}
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		})

		total = int64(len(matched))
		for i := offset; i < len(matched) && len(out) < limit; i++ {
			out = append(out, copyTransaction(matched[i]))
		}
		return nil
	})
	return out, total, err
}

func (r *transactionRepo) UpdateIf(ctx context.Context, id string, pre domain.Precondition, mut domain.Mutation) (bool, error) {
	applied := false
	err := r.store.with(ctx, r.staged, func(st *state) error {
		tx, ok := st.transactions[id]
		if !ok || !pre.Matches(tx) {
			return nil
		}
		mut.ApplyTo(tx)
		applied = true
		return nil
	})
	return applied, err
}

// ============================================================
// Complaints
// ============================================================

type complaintRepo struct {
	store  *Store
	staged *state
}

func (r *complaintRepo) Create(ctx context.Context, complaint *domain.Complaint) error {
	return r.store.with(ctx, r.staged, func(st *state) error {
		if _, exists := st.complaints[complaint.ID]; exists {
			return unavailable(fmt.Errorf("duplicate complaint id %s", complaint.ID))
		}
		st.complaints[complaint.ID] = copyComplaint(complaint)
		return nil
	})
}

func (r *complaintRepo) GetByID(ctx context.Context, id string) (*domain.Complaint, error) {
	var out *domain.Complaint
	err := r.store.with(ctx, r.staged, func(st *state) error {
		c, ok := st.complaints[id]
		if !ok {
			return domain.ErrComplaintNotFound
		}
		out = copyComplaint(c)
		return nil
	})
	return out, err
}

func (r *complaintRepo) Resolve(ctx context.Context, id string, outcome domain.ComplaintStatus, resolution, resolvedBy string, at time.Time) (bool, error) {
	applied := false
	err := r.store.with(ctx, r.staged, func(st *state) error {
		c, ok := st.complaints[id]
		if !ok || c.Status != domain.ComplaintOpen {
			return nil
		}
		by, when := resolvedBy, at
		c.Status = outcome
		c.Resolution = resolution
		c.ResolvedBy = &by
		c.ResolvedAt = &when
		c.UpdatedAt = at
		applied = true
		return nil
	})
	return applied, err
}

// ============================================================
// Events
// ============================================================

type eventRepo struct {
	store  *Store
	staged *state
}

func (r *eventRepo) Append(ctx context.Context, event *domain.TransitionEvent) error {
	return r.store.with(ctx, r.staged, func(st *state) error {
		st.nextEventID++
		event.ID = st.nextEventID
		st.events = append(st.events, *event)
		return nil
	})
}

func (r *eventRepo) ListByTransaction(ctx context.Context, transactionID string) ([]*domain.TransitionEvent, error) {
	var out []*domain.TransitionEvent
	err := r.store.with(ctx, r.staged, func(st *state) error {
		for i := range st.events {
			if st.events[i].TransactionID == transactionID {
				e := st.events[i]
				out = append(out, &e)
			}
		}
		return nil
	})
	return out, err
}

// ============================================================
// Outbox
// ============================================================

type outboxRepo struct {
	store *Store
}

func (r *outboxRepo) locked(ctx context.Context, fn func(outbox map[string]*domain.OutboxEntry) error) error {
	if err := ctx.Err(); err != nil {
		return unavailable(err)
	}
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if r.store.err != nil {
		return unavailable(r.store.err)
	}
	return fn(r.store.outbox)
}

func (r *outboxRepo) Enqueue(ctx context.Context, entry *domain.OutboxEntry) error {
	return r.locked(ctx, func(outbox map[string]*domain.OutboxEntry) error {
		if entry.ID == "" {
			entry.ID = uuid.New().String()
		}
		if entry.State == "" {
			entry.State = domain.OutboxPending
		}
		now := time.Now()
		entry.CreatedAt, entry.UpdatedAt = now, now
		e := *entry
		outbox[e.ID] = &e
		return nil
	})
}

func (r *outboxRepo) ListDue(ctx context.Context, now time.Time, limit int) ([]*domain.OutboxEntry, error) {
	var out []*domain.OutboxEntry
	err := r.locked(ctx, func(outbox map[string]*domain.OutboxEntry) error {
		for _, e := range outbox {
			if e.State == domain.OutboxPending && !e.NextAttemptAt.After(now) {
				c := *e
				out = append(out, &c)
			}
		}
		sort.Slice(out, func(i, j int) bool { return out[i].NextAttemptAt.Before(out[j].NextAttemptAt) })
		if len(out) > limit {
			out = out[:limit]
		}
		return nil
	})
	return out, err
}

func (r *outboxRepo) MarkDelivered(ctx context.Context, id string, attempts int, at time.Time) error {
	return r.update(ctx, id, func(e *domain.OutboxEntry) {
		e.State = domain.OutboxDelivered
		e.Attempts = attempts
		e.LastError = ""
		e.UpdatedAt = at
	})
}

func (r *outboxRepo) MarkRetry(ctx context.Context, id string, attempts int, next time.Time, lastErr string) error {
	return r.update(ctx, id, func(e *domain.OutboxEntry) {
		e.Attempts = attempts
		e.NextAttemptAt = next
		e.LastError = lastErr
		e.UpdatedAt = time.Now()
	})
}

func (r *outboxRepo) MarkFailed(ctx context.Context, id string, attempts int, lastErr string) error {
	return r.update(ctx, id, func(e *domain.OutboxEntry) {
		e.State = domain.OutboxFailed
		e.Attempts = attempts
		e.LastError = lastErr
		e.UpdatedAt = time.Now()
	})
}

func (r *outboxRepo) update(ctx context.Context, id string, fn func(e *domain.OutboxEntry)) error {
	return r.locked(ctx, func(outbox map[string]*domain.OutboxEntry) error {
		e, ok := outbox[id]
		if !ok {
			return fmt.Errorf("%w: outbox entry %s", domain.ErrNotFound, id)
		}
		fn(e)
		return nil
	})
}

// Entries returns a snapshot of every outbox entry
func (s *Store) Entries() []domain.OutboxEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.OutboxEntry, 0, len(s.outbox))
	for _, e := range s.outbox {
		out = append(out, *e)
	}
	return out
}

func copyTransaction(tx *domain.Transaction) *domain.Transaction {
	c := *tx
	if tx.ComplaintID != nil {
		id := *tx.ComplaintID
		c.ComplaintID = &id
	}
	return &c
}

func copyComplaint(c *domain.Complaint) *domain.Complaint {
	out := *c
	if c.ResolvedBy != nil {
		by := *c.ResolvedBy
		out.ResolvedBy = &by
	}
	if c.ResolvedAt != nil {
		at := *c.ResolvedAt
		out.ResolvedAt = &at
	}
	return &out
}
