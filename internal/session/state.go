// Package session holds the console's authentication and authorization state.
//
// The state is a plain value advanced by a single reducer, Reduce, that maps
// (State, Event) to the next State plus the side effects to run. Machine wraps
// the reducer with an identity provider and a profile fetcher; UI layers
// subscribe to Machine and never own session logic themselves.
package session

import (
	"fmt"
	"time"

	"showroom/internal/model"
)

// Phase is the coarse lifecycle position of the session.
type Phase int

const (
	PhaseUninitialized Phase = iota
	PhaseLoading
	PhaseAuthenticated
	PhaseAnonymous
)

func (p Phase) String() string {
	switch p {
	case PhaseUninitialized:
		return "uninitialized"
	case PhaseLoading:
		return "loading"
	case PhaseAuthenticated:
		return "authenticated"
	case PhaseAnonymous:
		return "anonymous"
	default:
		return "unknown"
	}
}

// MarshalText renders the phase name in JSON payloads.
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText parses a phase name. Unknown names are an error.
func (p *Phase) UnmarshalText(text []byte) error {
	for _, candidate := range []Phase{PhaseUninitialized, PhaseLoading, PhaseAuthenticated, PhaseAnonymous} {
		if candidate.String() == string(text) {
			*p = candidate
			return nil
		}
	}
	return fmt.Errorf("session: unknown phase %q", text)
}

// Identity is the provider-owned account reference. ID is opaque.
type Identity struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// Session is what the identity provider hands out after sign-in.
type Session struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
	Identity     Identity  `json:"identity"`
}

// State is the whole session state. Treat it as an immutable value: the
// reducer copies, never mutates, and Profile is cloned on every change.
type State struct {
	Phase    Phase
	Identity *Identity
	// Profile is nil while loading and when the last fetch failed.
	Profile *model.Profile
	// ProfileErr holds the last swallowed fetch failure.
	ProfileErr error
	// Seq is the sequence number of the last applied session change.
	Seq uint64
	// Rev increases on every externally observable change.
	Rev uint64

	fetchGen uint64
	inFlight uint64
	refetch  bool
}

// Resolved builds an authenticated state for an identity whose profile has
// already been looked up (nil when the lookup failed).
func Resolved(identity Identity, profile *model.Profile) State {
	id := identity
	return State{
		Phase:    PhaseAuthenticated,
		Identity: &id,
		Profile:  profile.Clone(),
	}
}

// Anonymous builds a resolved state without an identity.
func Anonymous() State {
	return State{Phase: PhaseAnonymous}
}

// IdentityID returns the identity id or "" when there is none.
func (s State) IdentityID() string {
	if s.Identity == nil {
		return ""
	}
	return s.Identity.ID
}

// FetchInFlight reports whether a profile fetch is outstanding.
func (s State) FetchInFlight() bool {
	return s.inFlight != 0
}
