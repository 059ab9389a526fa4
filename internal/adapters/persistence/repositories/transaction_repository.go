package repositories

import (
	"context"

	"booklend/internal/adapters/persistence/models"
	"booklend/internal/core/domain"

	"gorm.io/gorm"
)

// transactionRepository implements TransactionRepository with gorm
type transactionRepository struct {
	db *gorm.DB
}

// NewTransactionRepository creates a new lending transaction repository
func NewTransactionRepository(db *gorm.DB) TransactionRepository {
	return &transactionRepository{db: db}
}

// Create inserts a new transaction
func (r *transactionRepository) Create(ctx context.Context, tx *domain.Transaction) error {
	return translate(r.db.WithContext(ctx).Create(models.NewLendingTransaction(tx)).Error, nil)
}

// GetByID gets a transaction by ID
func (r *transactionRepository) GetByID(ctx context.Context, id string) (*domain.Transaction, error) {
	var row models.LendingTransaction
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&row).Error; err != nil {
		return nil, translate(err, domain.ErrTransactionNotFound)
	}
	return row.ToDomain(), nil
}

// ListByParty lists transactions where the user is lender or borrower
func (r *transactionRepository) ListByParty(ctx context.Context, userID string, offset, limit int) ([]*domain.Transaction, int64, error) {
	var rows []*models.LendingTransaction
	var total int64

	byParty := func(db *gorm.DB) *gorm.DB {
		return db.Where("lender_id = ? OR borrower_id = ?", userID, userID)
	}

	err := r.db.WithContext(ctx).
		Model(&models.LendingTransaction{}).
		Scopes(byParty).
		Count(&total).Error
	if err != nil {
		return nil, 0, translate(err, nil)
	}

	err = r.db.WithContext(ctx).
		Scopes(byParty).
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, 0, translate(err, nil)
	}

	out := make([]*domain.Transaction, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.ToDomain())
	}
	return out, total, nil
}

// UpdateIf runs a single UPDATE whose WHERE clause carries the precondition.
// Zero affected rows means the record no longer matched.
func (r *transactionRepository) UpdateIf(ctx context.Context, id string, pre domain.Precondition, mut domain.Mutation) (bool, error) {
	query := r.db.WithContext(ctx).
		Model(&models.LendingTransaction{}).
		Where("id = ?", id)

	if len(pre.Statuses) > 0 {
		statuses := make([]string, 0, len(pre.Statuses))
		for _, s := range pre.Statuses {
			statuses = append(statuses, string(s))
		}
		query = query.Where("status IN ?", statuses)
	}
	if pre.LenderConfirmed != nil {
		query = query.Where("lender_confirmed = ?", *pre.LenderConfirmed)
	}
	if pre.BorrowerConfirmed != nil {
		query = query.Where("borrower_confirmed = ?", *pre.BorrowerConfirmed)
	}
	if pre.NoComplaint {
		query = query.Where("complaint_id IS NULL")
	}

	result := query.Updates(updatesFor(mut))
	if result.Error != nil {
		return false, translate(result.Error, nil)
	}
	return result.RowsAffected > 0, nil
}

func updatesFor(mut domain.Mutation) map[string]interface{} {
	updates := map[string]interface{}{
		"updated_at": mut.UpdatedAt,
	}
	if mut.Status != nil {
		updates["status"] = string(*mut.Status)
	}
	if mut.PaymentConfirmed {
		updates["payment_confirmed"] = true
	}
	if mut.LenderConfirmed {
		updates["lender_confirmed"] = true
	}
	if mut.BorrowerConfirmed {
		updates["borrower_confirmed"] = true
	}
	if mut.ComplaintID != nil {
		updates["complaint_id"] = *mut.ComplaintID
	}
	return updates
}
