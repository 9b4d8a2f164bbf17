package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"showroom/internal/model"
)

// IdentityRepository defines identity persistence operations.
type IdentityRepository interface {
	// CreateWithProfile inserts the identity and its pending profile atomically.
	CreateWithProfile(ctx context.Context, identity *model.Identity) (*model.Profile, error)
	FindByID(ctx context.Context, id uuid.UUID) (*model.Identity, error)
	FindByEmail(ctx context.Context, email string) (*model.Identity, error)
	// ConfirmEmail stamps the identity as confirmed and approves a pending profile.
	ConfirmEmail(ctx context.Context, id uuid.UUID, at time.Time) (*model.Profile, error)
	TouchSignIn(ctx context.Context, id uuid.UUID, at time.Time) error
}

type identityRepository struct {
	db *gorm.DB
}

// NewIdentityRepository creates a new identity repository.
func NewIdentityRepository(db *gorm.DB) IdentityRepository {
	return &identityRepository{db: db}
}

func (r *identityRepository) CreateWithProfile(ctx context.Context, identity *model.Identity) (*model.Profile, error) {
	var profile *model.Profile
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(identity).Error; err != nil {
			return err
		}
		profile = model.NewPendingProfile(identity.ID, identity.Email)
		return tx.Create(profile).Error
	})
	if err != nil {
		return nil, err
	}
	return profile, nil
}

func (r *identityRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Identity, error) {
	var identity model.Identity
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&identity).Error; err != nil {
		return nil, err
	}
	return &identity, nil
}

func (r *identityRepository) FindByEmail(ctx context.Context, email string) (*model.Identity, error) {
	var identity model.Identity
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&identity).Error; err != nil {
		return nil, err
	}
	return &identity, nil
}

func (r *identityRepository) ConfirmEmail(ctx context.Context, id uuid.UUID, at time.Time) (*model.Profile, error) {
	var profile model.Profile
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&model.Identity{}).
			Where("id = ? AND email_confirmed_at IS NULL", id).
			Update("email_confirmed_at", at)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		if err := tx.Model(&model.Profile{}).
			Where("id = ? AND status = ?", id, model.StatusPending).
			Update("status", model.StatusApproved).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", id).First(&profile).Error
	})
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

func (r *identityRepository) TouchSignIn(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).Model(&model.Identity{}).
		Where("id = ?", id).
		Update("last_sign_in_at", at).Error
}
