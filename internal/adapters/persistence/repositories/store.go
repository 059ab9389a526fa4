package repositories

import (
	"context"

	"gorm.io/gorm"
)

// GormStore is the relational Store backed by a gorm handle
type GormStore struct {
	db *gorm.DB
}

// NewGormStore creates a store over an open database handle
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func bind(db *gorm.DB) Repositories {
	return Repositories{
		Transactions: NewTransactionRepository(db),
		Complaints:   NewComplaintRepository(db),
		Events:       NewEventRepository(db),
	}
}

// Repositories returns repositories outside any unit of work
func (s *GormStore) Repositories() Repositories {
	return bind(s.db)
}

// Outbox returns the notification outbox repository
func (s *GormStore) Outbox() OutboxRepository {
	return NewOutboxRepository(s.db)
}

// RunInTx runs fn inside a database transaction. An error from fn rolls
// back every write made through the bound repositories.
func (s *GormStore) RunInTx(ctx context.Context, fn func(r Repositories) error) error {
	var fnErr error
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		fnErr = fn(bind(tx))
		return fnErr
	})
	if err != nil && fnErr == nil {
		return translate(err, nil)
	}
	return err
}

// Ping checks the database connection
func (s *GormStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return translate(err, nil)
	}
	return translate(sqlDB.PingContext(ctx), nil)
}

// Close closes the underlying connection pool
func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

var _ Store = (*GormStore)(nil)
