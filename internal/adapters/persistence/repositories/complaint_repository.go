package repositories

import (
	"context"
	"time"

	"booklend/internal/adapters/persistence/models"
	"booklend/internal/core/domain"

	"gorm.io/gorm"
)

// complaintRepository implements ComplaintRepository with gorm
type complaintRepository struct {
	db *gorm.DB
}

// NewComplaintRepository creates a new complaint repository
func NewComplaintRepository(db *gorm.DB) ComplaintRepository {
	return &complaintRepository{db: db}
}

// Create inserts a new complaint
func (r *complaintRepository) Create(ctx context.Context, complaint *domain.Complaint) error {
	return translate(r.db.WithContext(ctx).Create(models.NewComplaint(complaint)).Error, nil)
}

// GetByID gets a complaint by ID
func (r *complaintRepository) GetByID(ctx context.Context, id string) (*domain.Complaint, error) {
	var row models.Complaint
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&row).Error; err != nil {
		return nil, translate(err, domain.ErrComplaintNotFound)
	}
	return row.ToDomain(), nil
}

// Resolve closes the complaint only while it is still open
func (r *complaintRepository) Resolve(ctx context.Context, id string, outcome domain.ComplaintStatus, resolution, resolvedBy string, at time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Complaint{}).
		Where("id = ? AND status = ?", id, string(domain.ComplaintOpen)).
		Updates(map[string]interface{}{
			"status":      string(outcome),
			"resolution":  resolution,
			"resolved_by": resolvedBy,
			"resolved_at": at,
			"updated_at":  at,
		})
	if result.Error != nil {
		return false, translate(result.Error, nil)
	}
	return result.RowsAffected > 0, nil
}
