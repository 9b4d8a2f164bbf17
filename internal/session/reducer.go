package session

import "showroom/internal/model"

// EventKind enumerates the inputs of the reducer.
type EventKind int

const (
	// EventMount moves an uninitialized state to loading.
	EventMount EventKind = iota
	// EventSessionResolved carries the identity of a session change (nil for none).
	EventSessionResolved
	// EventSignedOut clears the session locally.
	EventSignedOut
	// EventRefreshRequested asks for the profile to be fetched again.
	EventRefreshRequested
	// EventProfileLoaded carries the result of the fetch with generation Gen.
	EventProfileLoaded
	// EventProfileFailed carries the failure of the fetch with generation Gen.
	EventProfileFailed
)

// Event is a reducer input. Seq orders session changes; Gen ties a fetch
// result to the request that produced it.
type Event struct {
	Kind     EventKind
	Seq      uint64
	Gen      uint64
	Identity *Identity
	Profile  *model.Profile
	Err      error
}

// EffectKind enumerates side effects requested by the reducer.
type EffectKind int

const (
	EffectFetchProfile EffectKind = iota
)

// Effect is a side effect the caller of Reduce must run.
type Effect struct {
	Kind       EffectKind
	IdentityID string
	Gen        uint64
}

// Reduce returns the state after applying e to s, plus the effects to run.
// It is pure: the same inputs always give the same outputs.
func Reduce(s State, e Event) (State, []Effect) {
	next, effects := reduce(s, e)
	if changed(s, next) {
		next.Rev = s.Rev + 1
	} else {
		next.Rev = s.Rev
	}
	return next, effects
}

func reduce(s State, e Event) (State, []Effect) {
	switch e.Kind {
	case EventMount:
		if s.Phase != PhaseUninitialized {
			return s, nil
		}
		s.Phase = PhaseLoading
		return s, nil

	case EventSessionResolved:
		if e.Seq != 0 {
			if e.Seq <= s.Seq {
				// Superseded by a change that started later.
				return s, nil
			}
			s.Seq = e.Seq
		}
		if e.Identity == nil {
			return anonymous(s), nil
		}
		if s.Identity != nil && s.Identity.ID == e.Identity.ID &&
			(s.Phase == PhaseAuthenticated || s.inFlight != 0) {
			if s.Identity.Email != e.Identity.Email {
				id := *e.Identity
				s.Identity = &id
			}
			return s, nil
		}
		id := *e.Identity
		s.Phase = PhaseLoading
		s.Identity = &id
		s.Profile = nil
		s.ProfileErr = nil
		s.refetch = false
		return startFetch(s)

	case EventSignedOut:
		if e.Seq > s.Seq {
			s.Seq = e.Seq
		}
		return anonymous(s), nil

	case EventRefreshRequested:
		if s.Identity == nil {
			return s, nil
		}
		if s.inFlight != 0 {
			s.refetch = true
			return s, nil
		}
		return startFetch(s)

	case EventProfileLoaded, EventProfileFailed:
		if e.Gen == 0 || e.Gen != s.inFlight || s.Identity == nil {
			// Result of a fetch nobody is waiting for any more.
			return s, nil
		}
		s.inFlight = 0
		s.Phase = PhaseAuthenticated
		if e.Kind == EventProfileLoaded && e.Profile != nil {
			s.Profile = e.Profile.Clone()
			s.ProfileErr = nil
		} else {
			s.Profile = nil
			s.ProfileErr = asProfileFetchError(s.Identity.ID, e.Err)
		}
		if s.refetch {
			s.refetch = false
			return startFetch(s)
		}
		return s, nil
	}
	return s, nil
}

func startFetch(s State) (State, []Effect) {
	s.fetchGen++
	s.inFlight = s.fetchGen
	return s, []Effect{{Kind: EffectFetchProfile, IdentityID: s.Identity.ID, Gen: s.fetchGen}}
}

func anonymous(s State) State {
	s.Phase = PhaseAnonymous
	s.Identity = nil
	s.Profile = nil
	s.ProfileErr = nil
	s.inFlight = 0
	s.refetch = false
	return s
}

func changed(a, b State) bool {
	if a.Phase != b.Phase || a.Profile != b.Profile || a.ProfileErr != b.ProfileErr {
		return true
	}
	if (a.Identity == nil) != (b.Identity == nil) {
		return true
	}
	return a.Identity != nil && *a.Identity != *b.Identity
}
