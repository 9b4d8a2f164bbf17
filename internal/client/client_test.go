package client

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"showroom/internal/errors"
	"showroom/internal/events"
	"showroom/internal/logger"
	"showroom/internal/model"
	"showroom/internal/session"
)

// fakeAPI is a minimal console API.
type fakeAPI struct {
	t          *testing.T
	identityID uuid.UUID
	profile    *model.Profile
	events     chan events.Notification

	// refreshGate, when set, holds every refresh until it is closed.
	refreshGate chan struct{}

	mu        sync.Mutex
	refreshes int
	signOuts  int
	revoked   []string
}

func (f *fakeAPI) refreshCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.refreshes
}

func (f *fakeAPI) revokedTokens() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.revoked...)
}

func newFakeAPI(t *testing.T) *fakeAPI {
	id := uuid.New()
	return &fakeAPI{
		t:          t,
		identityID: id,
		profile:    &model.Profile{ID: id, Email: "ada@example.com", Role: model.RoleAdmin, Status: model.StatusApproved},
		events:     make(chan events.Notification, 4),
	}
}

func (f *fakeAPI) writeError(w http.ResponseWriter, status int, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errors.ErrorResponse{Error: code, Code: code})
}

func (f *fakeAPI) session(token string) session.Session {
	return session.Session{
		AccessToken:  "access-" + token,
		RefreshToken: "refresh-" + token,
		ExpiresAt:    time.Now().Add(time.Minute),
		Identity:     session.Identity{ID: f.identityID.String(), Email: "ada@example.com"},
	}
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/api/auth/sign-in":
		var body map[string]string
		require.NoError(f.t, json.NewDecoder(r.Body).Decode(&body))
		switch {
		case body["email"] == "new@example.com":
			f.writeError(w, http.StatusForbidden, "email_not_confirmed")
		case body["password"] != "password123":
			f.writeError(w, http.StatusUnauthorized, "invalid_credentials")
		default:
			_ = json.NewEncoder(w).Encode(f.session("1"))
		}
	case "/api/auth/refresh":
		var body map[string]string
		require.NoError(f.t, json.NewDecoder(r.Body).Decode(&body))
		f.mu.Lock()
		f.refreshes++
		n := f.refreshes
		f.mu.Unlock()
		if f.refreshGate != nil {
			<-f.refreshGate
		}
		if body["refresh_token"] == "refresh-revoked" {
			f.writeError(w, http.StatusUnauthorized, "invalid_token")
			return
		}
		_ = json.NewEncoder(w).Encode(f.session(fmt.Sprint(n + 1)))
	case "/api/auth/sign-out":
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.mu.Lock()
		f.signOuts++
		f.revoked = append(f.revoked, body["refresh_token"])
		f.mu.Unlock()
		w.WriteHeader(http.StatusOK)
	case "/api/profiles/me":
		if r.Header.Get("Authorization") == "" {
			f.writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		if f.profile == nil {
			f.writeError(w, http.StatusNotFound, "not_found")
			return
		}
		_ = json.NewEncoder(w).Encode(f.profile)
	case "/api/auth/events":
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		flusher := w.(http.Flusher)
		fmt.Fprint(w, ": connected\n\n")
		flusher.Flush()
		for {
			select {
			case <-r.Context().Done():
				return
			case n := <-f.events:
				payload, _ := json.Marshal(n)
				fmt.Fprintf(w, "event: %s\ndata: %s\n\n", n.Kind, payload)
				flusher.Flush()
			}
		}
	default:
		http.NotFound(w, r)
	}
}

// changes collects every change a client emits.
type changes struct {
	mu   sync.Mutex
	seen []session.Change
}

func (c *changes) add(ch session.Change) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seen = append(c.seen, ch)
}

func (c *changes) kinds() []session.ChangeKind {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]session.ChangeKind, 0, len(c.seen))
	for _, ch := range c.seen {
		out = append(out, ch.Kind)
	}
	return out
}

func (c *changes) has(kind session.ChangeKind) bool {
	for _, k := range c.kinds() {
		if k == kind {
			return true
		}
	}
	return false
}

// handlerTransport serves requests in-process without touching the network.
type handlerTransport struct {
	h http.Handler
}

func (t handlerTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	rec := httptest.NewRecorder()
	t.h.ServeHTTP(rec, r)
	return rec.Result(), nil
}

func newClient(t *testing.T, api *fakeAPI, opts ...Option) (*Client, *changes) {
	t.Helper()
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	opts = append([]Option{WithLogger(logger.Discard()), WithRefreshInterval(0)}, opts...)
	c := New(srv.URL, opts...)
	t.Cleanup(c.Close)

	seen := &changes{}
	unsubscribe := c.OnSessionChange(seen.add)
	t.Cleanup(unsubscribe)
	require.Eventually(t, func() bool { return seen.has(session.ChangeInitialSession) }, time.Second, 5*time.Millisecond)
	return c, seen
}

func TestClient_SignInWithPassword(t *testing.T) {
	tests := []struct {
		name     string
		email    string
		password string
		code     session.AuthErrorCode
	}{
		{name: "success", email: "ada@example.com", password: "password123"},
		{name: "wrong password", email: "ada@example.com", password: "nope", code: session.CodeInvalidCredentials},
		{name: "unconfirmed", email: "new@example.com", password: "password123", code: session.CodeEmailNotConfirmed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := newFakeAPI(t)
			c, seen := newClient(t, api, WithoutEvents())

			err := c.SignInWithPassword(context.Background(), tt.email, tt.password)

			sess, _ := c.GetSession(context.Background())
			if tt.code != "" {
				var authErr *session.AuthError
				require.True(t, stderrors.As(err, &authErr))
				assert.Equal(t, tt.code, authErr.Code)
				assert.Nil(t, sess)
				assert.False(t, seen.has(session.ChangeSignedIn))
				return
			}
			require.NoError(t, err)
			require.NotNil(t, sess)
			assert.Equal(t, "access-1", sess.AccessToken)
			assert.Equal(t, api.identityID.String(), sess.Identity.ID)
			assert.True(t, seen.has(session.ChangeSignedIn))
		})
	}
}

func TestClient_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()
	c := New(srv.URL, WithLogger(logger.Discard()), WithRefreshInterval(0), WithoutEvents())

	err := c.SignInWithPassword(context.Background(), "ada@example.com", "password123")

	assert.ErrorIs(t, err, session.ErrNetwork)
}

func TestClient_FetchProfile(t *testing.T) {
	api := newFakeAPI(t)
	c, _ := newClient(t, api, WithoutEvents())
	ctx := context.Background()

	_, err := c.FetchProfile(ctx, api.identityID.String())
	assert.Error(t, err, "no session yet")

	require.NoError(t, c.SignInWithPassword(ctx, "ada@example.com", "password123"))

	profile, err := c.FetchProfile(ctx, api.identityID.String())
	require.NoError(t, err)
	require.NotNil(t, profile)
	assert.Equal(t, model.RoleAdmin, profile.Role)

	_, err = c.FetchProfile(ctx, uuid.NewString())
	assert.Error(t, err, "other identity")

	api.profile = nil
	profile, err = c.FetchProfile(ctx, api.identityID.String())
	assert.NoError(t, err)
	assert.Nil(t, profile)
}

func TestClient_RefreshAndSignOut(t *testing.T) {
	api := newFakeAPI(t)
	c, seen := newClient(t, api, WithoutEvents())
	ctx := context.Background()
	require.NoError(t, c.SignInWithPassword(ctx, "ada@example.com", "password123"))

	require.NoError(t, c.Refresh(ctx))
	sess, _ := c.GetSession(ctx)
	require.NotNil(t, sess)
	assert.Equal(t, "refresh-2", sess.RefreshToken)
	assert.True(t, seen.has(session.ChangeTokenRefreshed))

	require.NoError(t, c.SignOut(ctx))
	sess, _ = c.GetSession(ctx)
	assert.Nil(t, sess)
	assert.Equal(t, 1, api.signOuts)
	assert.Equal(t, []session.ChangeKind{
		session.ChangeInitialSession,
		session.ChangeSignedIn,
		session.ChangeTokenRefreshed,
		session.ChangeSignedOut,
	}, seen.kinds())

	// signing out twice is a no-op
	require.NoError(t, c.SignOut(ctx))
	assert.Equal(t, 1, api.signOuts)
}

func TestClient_RevokedRefreshEndsSession(t *testing.T) {
	api := newFakeAPI(t)
	c, seen := newClient(t, api, WithoutEvents())
	ctx := context.Background()
	c.install(&session.Session{AccessToken: "a", RefreshToken: "refresh-revoked"}, session.ChangeSignedIn)

	err := c.Refresh(ctx)

	assert.Error(t, err)
	sess, _ := c.GetSession(ctx)
	assert.Nil(t, sess)
	assert.True(t, seen.has(session.ChangeSignedOut))
}

func TestClient_FollowsSessionEvents(t *testing.T) {
	api := newFakeAPI(t)
	c, seen := newClient(t, api)
	ctx := context.Background()
	require.NoError(t, c.SignInWithPassword(ctx, "ada@example.com", "password123"))

	api.events <- events.Notification{Kind: session.ChangeSignedIn, IdentityID: api.identityID.String()}
	api.events <- events.Notification{Kind: session.ChangeUserUpdated, IdentityID: api.identityID.String()}
	require.Eventually(t, func() bool { return seen.has(session.ChangeUserUpdated) }, 2*time.Second, 10*time.Millisecond)

	api.events <- events.Notification{Kind: session.ChangeSignedOut, IdentityID: api.identityID.String()}
	require.Eventually(t, func() bool { return seen.has(session.ChangeSignedOut) }, 2*time.Second, 10*time.Millisecond)

	sess, _ := c.GetSession(ctx)
	assert.Nil(t, sess)
	kinds := seen.kinds()
	signedIn := 0
	for _, k := range kinds {
		if k == session.ChangeSignedIn {
			signedIn++
		}
	}
	assert.Equal(t, 1, signedIn, "remote SIGNED_IN is ignored")
}

func TestClient_DrivesMachine(t *testing.T) {
	api := newFakeAPI(t)
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)
	c := New(srv.URL, WithLogger(logger.Discard()), WithRefreshInterval(0), WithoutEvents())
	t.Cleanup(c.Close)

	m := session.NewMachine(c, c, session.WithLogger(logger.Discard()))
	m.Start(context.Background())
	t.Cleanup(m.Stop)

	require.Eventually(t, func() bool { return m.State().Phase == session.PhaseAnonymous }, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, m.SignIn(context.Background(), "ada@example.com", "password123"))
	require.Eventually(t, func() bool { return m.State().IsApproved() }, 2*time.Second, 5*time.Millisecond)
	assert.True(t, m.State().HasRole(model.RoleAdmin))

	require.NoError(t, m.SignOut(context.Background()))
	require.Eventually(t, func() bool { return m.State().Phase == session.PhaseAnonymous }, 2*time.Second, 5*time.Millisecond)
}

func TestClient_RefreshAfterSignOutIsDiscarded(t *testing.T) {
	api := newFakeAPI(t)
	api.refreshGate = make(chan struct{})
	c, seen := newClient(t, api, WithoutEvents())
	ctx := context.Background()
	require.NoError(t, c.SignInWithPassword(ctx, "ada@example.com", "password123"))

	done := make(chan error, 1)
	go func() { done <- c.Refresh(ctx) }()
	require.Eventually(t, func() bool { return api.refreshCount() == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, c.SignOut(ctx))
	close(api.refreshGate)
	require.NoError(t, <-done)

	sess, _ := c.GetSession(ctx)
	assert.Nil(t, sess)
	assert.Equal(t, []session.ChangeKind{
		session.ChangeInitialSession,
		session.ChangeSignedIn,
		session.ChangeSignedOut,
	}, seen.kinds())
	assert.Equal(t, []string{"refresh-1", "refresh-2"}, api.revokedTokens(), "rotated tokens are revoked too")
}

func TestClient_InitialSessionNeverTrailsSignIn(t *testing.T) {
	defer runtime.GOMAXPROCS(runtime.GOMAXPROCS(1))

	for i := 0; i < 20; i++ {
		api := newFakeAPI(t)
		c := New("http://console.test",
			WithHTTPClient(&http.Client{Transport: handlerTransport{h: api}}),
			WithLogger(logger.Discard()),
			WithRefreshInterval(0),
			WithoutEvents(),
		)
		seen := &changes{}
		unsubscribe := c.OnSessionChange(seen.add)

		require.NoError(t, c.SignInWithPassword(context.Background(), "ada@example.com", "password123"))
		require.Eventually(t, func() bool { return seen.has(session.ChangeInitialSession) }, time.Second, time.Millisecond)

		seen.mu.Lock()
		signedIn := false
		for _, ch := range seen.seen {
			if ch.Kind == session.ChangeSignedIn {
				signedIn = true
			}
			if signedIn {
				assert.NotNil(t, ch.Session, "%s after SIGNED_IN", ch.Kind)
			}
		}
		seen.mu.Unlock()

		unsubscribe()
		c.Close()
	}
}

func TestClient_MachineStaysSignedInAfterStartup(t *testing.T) {
	defer runtime.GOMAXPROCS(runtime.GOMAXPROCS(1))

	for i := 0; i < 10; i++ {
		api := newFakeAPI(t)
		c := New("http://console.test",
			WithHTTPClient(&http.Client{Transport: handlerTransport{h: api}}),
			WithLogger(logger.Discard()),
			WithRefreshInterval(0),
			WithoutEvents(),
		)
		m := session.NewMachine(c, c, session.WithLogger(logger.Discard()))
		m.Start(context.Background())

		require.NoError(t, m.SignIn(context.Background(), "ada@example.com", "password123"))
		require.Eventually(t, func() bool { return m.State().IsApproved() }, time.Second, time.Millisecond)
		time.Sleep(20 * time.Millisecond)

		sess, _ := c.GetSession(context.Background())
		require.NotNil(t, sess)
		assert.Equal(t, session.PhaseAuthenticated, m.State().Phase)

		m.Stop()
		c.Close()
	}
}
