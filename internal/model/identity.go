package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Identity is a credential-bearing account owned by the identity provider.
type Identity struct {
	ID               uuid.UUID      `json:"id" gorm:"type:char(36);primaryKey"`
	Email            string         `json:"email" gorm:"uniqueIndex;size:255;not null"`
	PasswordHash     string         `json:"-" gorm:"size:255;not null"` // Never expose in JSON
	EmailConfirmedAt *time.Time     `json:"email_confirmed_at,omitempty"`
	LastSignInAt     *time.Time     `json:"last_sign_in_at,omitempty"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
	DeletedAt        gorm.DeletedAt `json:"-" gorm:"index"`
}

// BeforeCreate sets UUID before creating the record.
func (i *Identity) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}

// EmailConfirmed reports whether the email address has been verified.
func (i *Identity) EmailConfirmed() bool {
	return i.EmailConfirmedAt != nil
}
