package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"showroom/internal/model"
)

// ProfileRepository defines profile persistence operations.
type ProfileRepository interface {
	Create(ctx context.Context, profile *model.Profile) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Profile, error)
	List(ctx context.Context, status model.ProfileStatus) ([]model.Profile, error)
	UpdateRoleStatus(ctx context.Context, id uuid.UUID, role model.Role, status model.ProfileStatus) error
}

type profileRepository struct {
	db *gorm.DB
}

// NewProfileRepository creates a new profile repository.
func NewProfileRepository(db *gorm.DB) ProfileRepository {
	return &profileRepository{db: db}
}

// Create inserts a profile row.
func (r *profileRepository) Create(ctx context.Context, profile *model.Profile) error {
	return r.db.WithContext(ctx).Create(profile).Error
}

// FindByID loads the profile of an identity.
func (r *profileRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Profile, error) {
	var profile model.Profile
	if err := r.db.WithContext(ctx).Where("id = ?", id).Limit(1).First(&profile).Error; err != nil {
		return nil, err
	}
	return &profile, nil
}

// List returns profiles, newest first. An empty status lists all.
func (r *profileRepository) List(ctx context.Context, status model.ProfileStatus) ([]model.Profile, error) {
	profiles := make([]model.Profile, 0)
	q := r.db.WithContext(ctx).Order("created_at DESC")
	if status != "" {
		q = q.Where("status = ?", status)
	}
	if err := q.Find(&profiles).Error; err != nil {
		return nil, err
	}
	return profiles, nil
}

// UpdateRoleStatus sets role and status of a profile.
func (r *profileRepository) UpdateRoleStatus(ctx context.Context, id uuid.UUID, role model.Role, status model.ProfileStatus) error {
	result := r.db.WithContext(ctx).Model(&model.Profile{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"role": role, "status": status})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
