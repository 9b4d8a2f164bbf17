package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ActivityLog is a persisted audit entry.
// Every sign-in attempt, profile change and catalog write is logged regardless of outcome.
type ActivityLog struct {
	ID        uuid.UUID `json:"id" gorm:"type:char(36);primaryKey"`
	Type      string    `json:"type" gorm:"type:varchar(64);not null;index"`
	ActorID   string    `json:"actor_id,omitempty" gorm:"size:64;index"`
	SubjectID string    `json:"subject_id,omitempty" gorm:"size:64;index"`
	Resource  string    `json:"resource,omitempty" gorm:"size:64"`
	Detail    string    `json:"detail,omitempty" gorm:"type:text"`
	CreatedAt time.Time `json:"created_at" gorm:"index"`
}

// BeforeCreate sets UUID before creating the record.
func (a *ActivityLog) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}

// All returns every persisted model, in migration order.
func All() []interface{} {
	return []interface{}{
		&Identity{},
		&Profile{},
		&Brand{},
		&Tag{},
		&Item{},
		&Project{},
		&ActivityLog{},
	}
}
