package model

import (
	"time"

	"github.com/google/uuid"
)

// Role is the console role stored on a profile.
type Role string

const (
	RoleGeneral Role = "general"
	RoleAdmin   Role = "admin"
	RoleMaster  Role = "master"
)

var roleRank = map[Role]int{
	RoleGeneral: 1,
	RoleAdmin:   2,
	RoleMaster:  3,
}

// Rank returns the position of the role in the total order master > admin > general.
// Unknown roles rank 0.
func (r Role) Rank() int {
	return roleRank[r]
}

// IsValid checks if the role is one of the predefined roles.
func (r Role) IsValid() bool {
	_, ok := roleRank[r]
	return ok
}

// IsAtLeast reports whether r ranks at or above min. Unknown roles never qualify.
func (r Role) IsAtLeast(min Role) bool {
	if !r.IsValid() || !min.IsValid() {
		return false
	}
	return r.Rank() >= min.Rank()
}

// Roles returns all roles in ascending order.
func Roles() []Role {
	return []Role{RoleGeneral, RoleAdmin, RoleMaster}
}

// ParseRole parses a string into a Role.
func ParseRole(s string) (Role, bool) {
	role := Role(s)
	return role, role.IsValid()
}

// ProfileStatus is the approval status of a profile.
type ProfileStatus string

const (
	StatusPending  ProfileStatus = "pending"
	StatusApproved ProfileStatus = "approved"
	StatusRejected ProfileStatus = "rejected"
)

// IsValid checks if the status is one of the predefined statuses.
func (s ProfileStatus) IsValid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	default:
		return false
	}
}

// ParseStatus parses a string into a ProfileStatus.
func ParseStatus(s string) (ProfileStatus, bool) {
	status := ProfileStatus(s)
	return status, status.IsValid()
}

// Profile holds the authorization attributes of an identity. One row per identity.
type Profile struct {
	ID        uuid.UUID     `json:"id" gorm:"type:char(36);primaryKey"`
	Email     string        `json:"email" gorm:"size:255;not null;index"`
	Role      Role          `json:"role" gorm:"type:varchar(20);not null;default:'general';index"`
	Status    ProfileStatus `json:"status" gorm:"type:varchar(20);not null;default:'pending';index"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// Clone returns a copy of the profile, nil-safe.
func (p *Profile) Clone() *Profile {
	if p == nil {
		return nil
	}
	cp := *p
	return &cp
}

// NewPendingProfile returns the profile row created alongside a new identity.
func NewPendingProfile(id uuid.UUID, email string) *Profile {
	return &Profile{
		ID:     id,
		Email:  email,
		Role:   RoleGeneral,
		Status: StatusPending,
	}
}
