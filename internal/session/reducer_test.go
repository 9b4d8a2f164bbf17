package session

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"showroom/internal/model"
)

func approvedProfile(id string, role model.Role) *model.Profile {
	return &model.Profile{
		ID:     uuid.NewSHA1(uuid.NameSpaceOID, []byte(id)),
		Email:  id + "@example.com",
		Role:   role,
		Status: model.StatusApproved,
	}
}

func mounted() State {
	s, _ := Reduce(State{}, Event{Kind: EventMount})
	return s
}

func TestReduce_MountMovesToLoading(t *testing.T) {
	s, effects := Reduce(State{}, Event{Kind: EventMount})
	assert.Equal(t, PhaseLoading, s.Phase)
	assert.Empty(t, effects)
	assert.Equal(t, uint64(1), s.Rev)

	again, _ := Reduce(s, Event{Kind: EventMount})
	assert.Equal(t, s, again)
}

func TestReduce_NoSessionResolvesAnonymous(t *testing.T) {
	s, effects := Reduce(mounted(), Event{Kind: EventSessionResolved, Seq: 1})
	assert.Equal(t, PhaseAnonymous, s.Phase)
	assert.Nil(t, s.Identity)
	assert.Empty(t, effects)
	assert.False(t, s.IsLoading())
}

func TestReduce_SessionFoundFetchesProfile(t *testing.T) {
	s, effects := Reduce(mounted(), Event{Kind: EventSessionResolved, Seq: 1, Identity: &Identity{ID: "u1"}})
	require.Len(t, effects, 1)
	assert.Equal(t, EffectFetchProfile, effects[0].Kind)
	assert.Equal(t, "u1", effects[0].IdentityID)
	assert.Equal(t, PhaseLoading, s.Phase)
	assert.True(t, s.FetchInFlight())

	s, effects = Reduce(s, Event{Kind: EventProfileLoaded, Gen: effects[0].Gen, Profile: approvedProfile("u1", model.RoleGeneral)})
	assert.Empty(t, effects)
	assert.Equal(t, PhaseAuthenticated, s.Phase)
	assert.True(t, s.IsApproved())
	assert.False(t, s.FetchInFlight())
}

func TestReduce_ProfileFailureDegrades(t *testing.T) {
	s, effects := Reduce(mounted(), Event{Kind: EventSessionResolved, Seq: 1, Identity: &Identity{ID: "u1"}})
	boom := errors.New("connection reset")

	s, _ = Reduce(s, Event{Kind: EventProfileFailed, Gen: effects[0].Gen, Err: boom})
	assert.Equal(t, PhaseAuthenticated, s.Phase)
	assert.True(t, s.IsAuthenticated())
	assert.Nil(t, s.Profile)
	assert.False(t, s.IsApproved())
	assert.ErrorIs(t, s.ProfileErr, boom)

	var fetchErr *ProfileFetchError
	require.ErrorAs(t, s.ProfileErr, &fetchErr)
	assert.Equal(t, "u1", fetchErr.IdentityID)
}

func TestReduce_MissingProfileRow(t *testing.T) {
	s, effects := Reduce(mounted(), Event{Kind: EventSessionResolved, Seq: 1, Identity: &Identity{ID: "u1"}})
	s, _ = Reduce(s, Event{Kind: EventProfileFailed, Gen: effects[0].Gen})
	assert.ErrorIs(t, s.ProfileErr, ErrProfileMissing)
}

func TestReduce_DuplicateSignInIsIdempotent(t *testing.T) {
	s, first := Reduce(mounted(), Event{Kind: EventSessionResolved, Seq: 1, Identity: &Identity{ID: "u1"}})
	require.Len(t, first, 1)

	// Same identity again while the first fetch is running.
	s2, second := Reduce(s, Event{Kind: EventSessionResolved, Seq: 2, Identity: &Identity{ID: "u1"}})
	assert.Empty(t, second)
	assert.Equal(t, s.Rev, s2.Rev)

	s3, _ := Reduce(s2, Event{Kind: EventProfileLoaded, Gen: first[0].Gen, Profile: approvedProfile("u1", model.RoleAdmin)})
	_, third := Reduce(s3, Event{Kind: EventSessionResolved, Seq: 3, Identity: &Identity{ID: "u1"}})
	assert.Empty(t, third)
}

func TestReduce_StaleSequenceIsDropped(t *testing.T) {
	// A sign-in notification (seq 2) lands before the initial probe (seq 1).
	s, _ := Reduce(mounted(), Event{Kind: EventSessionResolved, Seq: 2, Identity: &Identity{ID: "u1"}})
	after, effects := Reduce(s, Event{Kind: EventSessionResolved, Seq: 1})

	assert.Empty(t, effects)
	assert.Equal(t, s, after)
	assert.Equal(t, "u1", after.IdentityID())
}

func TestReduce_SupersededFetchResultIsIgnored(t *testing.T) {
	s, first := Reduce(mounted(), Event{Kind: EventSessionResolved, Seq: 1, Identity: &Identity{ID: "u1"}})
	s, second := Reduce(s, Event{Kind: EventSessionResolved, Seq: 2, Identity: &Identity{ID: "u2"}})
	require.Len(t, second, 1)
	assert.NotEqual(t, first[0].Gen, second[0].Gen)

	s, _ = Reduce(s, Event{Kind: EventProfileLoaded, Gen: first[0].Gen, Profile: approvedProfile("u1", model.RoleMaster)})
	assert.Nil(t, s.Profile)
	assert.Equal(t, PhaseLoading, s.Phase)

	s, _ = Reduce(s, Event{Kind: EventProfileLoaded, Gen: second[0].Gen, Profile: approvedProfile("u2", model.RoleGeneral)})
	assert.Equal(t, "u2@example.com", s.Profile.Email)
}

func TestReduce_ResultAfterSignOutIsIgnored(t *testing.T) {
	s, effects := Reduce(mounted(), Event{Kind: EventSessionResolved, Seq: 1, Identity: &Identity{ID: "u1"}})
	s, _ = Reduce(s, Event{Kind: EventSignedOut, Seq: 2})
	s, _ = Reduce(s, Event{Kind: EventProfileLoaded, Gen: effects[0].Gen, Profile: approvedProfile("u1", model.RoleGeneral)})

	assert.Equal(t, PhaseAnonymous, s.Phase)
	assert.Nil(t, s.Profile)
}

func TestReduce_RefreshWhileInFlightQueuesOne(t *testing.T) {
	s, first := Reduce(mounted(), Event{Kind: EventSessionResolved, Seq: 1, Identity: &Identity{ID: "u1"}})

	s, effects := Reduce(s, Event{Kind: EventRefreshRequested})
	assert.Empty(t, effects)
	s, effects = Reduce(s, Event{Kind: EventRefreshRequested})
	assert.Empty(t, effects)

	s, effects = Reduce(s, Event{Kind: EventProfileLoaded, Gen: first[0].Gen, Profile: approvedProfile("u1", model.RoleGeneral)})
	require.Len(t, effects, 1)
	assert.True(t, s.FetchInFlight())

	s, effects = Reduce(s, Event{Kind: EventProfileLoaded, Gen: effects[0].Gen, Profile: approvedProfile("u1", model.RoleAdmin)})
	assert.Empty(t, effects)
	assert.Equal(t, model.RoleAdmin, s.Profile.Role)
}

func TestReduce_RefreshWithoutIdentityIsNoop(t *testing.T) {
	s, effects := Reduce(Anonymous(), Event{Kind: EventRefreshRequested})
	assert.Empty(t, effects)
	assert.Equal(t, Anonymous(), s)
}

func TestReduce_ProfileIsCopied(t *testing.T) {
	s, effects := Reduce(mounted(), Event{Kind: EventSessionResolved, Seq: 1, Identity: &Identity{ID: "u1"}})
	p := approvedProfile("u1", model.RoleGeneral)
	s, _ = Reduce(s, Event{Kind: EventProfileLoaded, Gen: effects[0].Gen, Profile: p})

	p.Role = model.RoleMaster
	assert.Equal(t, model.RoleGeneral, s.Profile.Role)
}
