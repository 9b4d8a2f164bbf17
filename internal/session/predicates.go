package session

import "showroom/internal/model"

// IsLoading reports whether no decision can be made yet.
func (s State) IsLoading() bool {
	return s.Phase == PhaseUninitialized || s.Phase == PhaseLoading
}

// IsAuthenticated reports whether an identity is resolved.
func (s State) IsAuthenticated() bool {
	return s.Phase == PhaseAuthenticated && s.Identity != nil
}

// IsApproved reports whether the identity has an approved profile.
func (s State) IsApproved() bool {
	return s.IsAuthenticated() && s.Profile != nil && s.Profile.Status == model.StatusApproved
}

// HasRole reports whether the profile role is exactly r.
func (s State) HasRole(r model.Role) bool {
	return s.IsAuthenticated() && s.Profile != nil && s.Profile.Role == r
}

// HasRoleOrHigher reports whether the profile role ranks at or above r.
func (s State) HasRoleOrHigher(r model.Role) bool {
	return s.IsAuthenticated() && s.Profile != nil && s.Profile.Role.IsAtLeast(r)
}

// CanEdit reports whether the identity may modify a record owned by ownerID.
// Admins and masters may edit anything; others only what they own. An empty
// ownerID never matches. Profiles that are not approved can edit nothing.
func (s State) CanEdit(ownerID string) bool {
	if !s.IsApproved() {
		return false
	}
	if s.HasRoleOrHigher(model.RoleAdmin) {
		return true
	}
	return ownerID != "" && ownerID == s.Identity.ID
}

// CanDelete follows the same rule as CanEdit.
func (s State) CanDelete(ownerID string) bool {
	return s.CanEdit(ownerID)
}

// CanCreate reports whether the identity may create catalog records.
func (s State) CanCreate() bool {
	return s.IsApproved()
}

// Capabilities is the JSON view of the derived predicates.
type Capabilities struct {
	Phase         Phase          `json:"phase"`
	Identity      *Identity      `json:"identity,omitempty"`
	Profile       *model.Profile `json:"profile,omitempty"`
	Authenticated bool           `json:"authenticated"`
	Approved      bool           `json:"approved"`
	ProfileKnown  bool           `json:"profile_known"`
	Admin         bool           `json:"admin"`
	Master        bool           `json:"master"`
}

// Capabilities snapshots the predicates of s.
func (s State) Capabilities() Capabilities {
	return Capabilities{
		Phase:         s.Phase,
		Identity:      s.Identity,
		Profile:       s.Profile,
		Authenticated: s.IsAuthenticated(),
		Approved:      s.IsApproved(),
		ProfileKnown:  s.Profile != nil,
		Admin:         s.HasRoleOrHigher(model.RoleAdmin),
		Master:        s.HasRole(model.RoleMaster),
	}
}
