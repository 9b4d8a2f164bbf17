package repository

import (
	"context"

	"gorm.io/gorm"

	"showroom/internal/model"
)

// ActivityLogRepository defines activity log persistence operations.
type ActivityLogRepository interface {
	CreateBatch(ctx context.Context, logs []model.ActivityLog) error
}

type activityLogRepository struct {
	db *gorm.DB
}

// NewActivityLogRepository creates a new activity log repository.
func NewActivityLogRepository(db *gorm.DB) ActivityLogRepository {
	return &activityLogRepository{db: db}
}

// CreateBatch creates multiple activity log entries in a single transaction.
func (r *activityLogRepository) CreateBatch(ctx context.Context, logs []model.ActivityLog) error {
	if len(logs) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).CreateInBatches(logs, 100).Error
}
