package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"showroom/internal/model"
)

// ChangeKind names a session-change notification from the identity provider.
type ChangeKind string

const (
	ChangeInitialSession ChangeKind = "INITIAL_SESSION"
	ChangeSignedIn       ChangeKind = "SIGNED_IN"
	ChangeSignedOut      ChangeKind = "SIGNED_OUT"
	ChangeTokenRefreshed ChangeKind = "TOKEN_REFRESHED"
	ChangeUserUpdated    ChangeKind = "USER_UPDATED"
)

// Change is a session-change notification. Session is nil when there is none.
type Change struct {
	Kind    ChangeKind
	Session *Session
}

// IdentityProvider owns credentials and sessions.
type IdentityProvider interface {
	GetSession(ctx context.Context) (*Session, error)
	// OnSessionChange registers fn and returns a function that removes it.
	OnSessionChange(fn func(Change)) func()
	SignInWithPassword(ctx context.Context, email, password string) error
	SignOut(ctx context.Context) error
}

// ProfileFetcher loads the profile row of an identity. A nil profile with a
// nil error means the row does not exist.
type ProfileFetcher interface {
	FetchProfile(ctx context.Context, identityID string) (*model.Profile, error)
}

// Listener receives every observable state change in order.
type Listener func(State)

const defaultFetchTimeout = 10 * time.Second

// Option configures a Machine.
type Option func(*Machine)

// WithLogger sets the logger for swallowed failures.
func WithLogger(l *slog.Logger) Option {
	return func(m *Machine) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithEffectRunner replaces the goroutine used to run side effects. Tests
// pass a synchronous runner.
func WithEffectRunner(spawn func(func())) Option {
	return func(m *Machine) {
		if spawn != nil {
			m.spawn = spawn
		}
	}
}

// WithFetchTimeout bounds a single profile fetch.
func WithFetchTimeout(d time.Duration) Option {
	return func(m *Machine) {
		if d > 0 {
			m.fetchTimeout = d
		}
	}
}

// Machine drives Reduce with an identity provider and a profile fetcher.
// Listeners run while the machine serializes notifications and must not call
// SignIn, SignOut, RefreshProfile or Start synchronously.
type Machine struct {
	provider     IdentityProvider
	profiles     ProfileFetcher
	logger       *slog.Logger
	spawn        func(func())
	fetchTimeout time.Duration

	// emitMu keeps listener notifications in reducer order.
	emitMu sync.Mutex

	mu          sync.Mutex
	state       State
	listeners   map[int]Listener
	nextID      int
	started     bool
	ctx         context.Context
	cancel      context.CancelFunc
	unsubscribe func()

	seq atomic.Uint64
	// initialSeq orders INITIAL_SESSION with the startup session lookup.
	// Both report the session as it stood at mount.
	initialSeq atomic.Uint64
}

// NewMachine returns a machine in the uninitialized phase.
func NewMachine(provider IdentityProvider, profiles ProfileFetcher, opts ...Option) *Machine {
	m := &Machine{
		provider:     provider,
		profiles:     profiles,
		logger:       slog.Default(),
		spawn:        func(f func()) { go f() },
		fetchTimeout: defaultFetchTimeout,
		listeners:    make(map[int]Listener),
		ctx:          context.Background(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start mounts the machine: it moves to loading, subscribes to session
// changes and probes the current session. Calling it twice is a no-op.
func (m *Machine) Start(ctx context.Context) {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return
	}
	m.started = true
	m.ctx, m.cancel = context.WithCancel(ctx)
	m.mu.Unlock()

	m.dispatch(Event{Kind: EventMount})

	// The probe is ordered before any notification that arrives after subscribing.
	probeSeq := m.seq.Add(1)
	m.initialSeq.Store(probeSeq)
	unsubscribe := m.provider.OnSessionChange(m.handleChange)
	m.mu.Lock()
	m.unsubscribe = unsubscribe
	m.mu.Unlock()

	m.spawn(func() { m.probe(probeSeq) })
}

// Stop unsubscribes from the provider and cancels outstanding fetches.
func (m *Machine) Stop() {
	m.mu.Lock()
	unsubscribe, cancel := m.unsubscribe, m.cancel
	m.unsubscribe, m.cancel = nil, nil
	m.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	if cancel != nil {
		cancel()
	}
}

// State returns a snapshot of the current state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Subscribe registers l for future changes and returns its removal function.
func (m *Machine) Subscribe(l Listener) func() {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.listeners[id] = l
	m.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.listeners, id)
			m.mu.Unlock()
		})
	}
}

// SignIn delegates to the provider. The state moves only when the provider
// reports the new session.
func (m *Machine) SignIn(ctx context.Context, email, password string) error {
	if err := m.provider.SignInWithPassword(ctx, email, password); err != nil {
		return AsAuthError(err)
	}
	return nil
}

// SignOut clears the local state before asking the provider to end the
// session, so the change is visible even if the provider never answers.
func (m *Machine) SignOut(ctx context.Context) error {
	m.dispatch(Event{Kind: EventSignedOut, Seq: m.seq.Add(1)})
	if err := m.provider.SignOut(ctx); err != nil {
		m.logger.Warn("provider sign-out failed", "error", err)
		return AsAuthError(err)
	}
	return nil
}

// RefreshProfile fetches the profile of the current identity again.
func (m *Machine) RefreshProfile() {
	m.dispatch(Event{Kind: EventRefreshRequested})
}

func (m *Machine) probe(seq uint64) {
	sess, err := m.provider.GetSession(m.context())
	if err != nil {
		m.logger.Warn("session probe failed", "error", err)
		sess = nil
	}
	m.dispatch(Event{Kind: EventSessionResolved, Seq: seq, Identity: identityOf(sess)})
}

func (m *Machine) handleChange(ch Change) {
	var seq uint64
	if ch.Kind == ChangeInitialSession {
		seq = m.initialSeq.Load()
	} else {
		seq = m.seq.Add(1)
	}
	switch ch.Kind {
	case ChangeSignedOut:
		m.dispatch(Event{Kind: EventSessionResolved, Seq: seq})
	case ChangeUserUpdated:
		m.dispatch(Event{Kind: EventSessionResolved, Seq: seq, Identity: identityOf(ch.Session)})
		m.dispatch(Event{Kind: EventRefreshRequested})
	default:
		m.dispatch(Event{Kind: EventSessionResolved, Seq: seq, Identity: identityOf(ch.Session)})
	}
}

func (m *Machine) dispatch(e Event) {
	m.emitMu.Lock()

	m.mu.Lock()
	prev := m.state
	next, effects := Reduce(prev, e)
	m.state = next
	var listeners []Listener
	if next.Rev != prev.Rev {
		listeners = make([]Listener, 0, len(m.listeners))
		for id := 0; id < m.nextID; id++ {
			if l, ok := m.listeners[id]; ok {
				listeners = append(listeners, l)
			}
		}
	}
	m.mu.Unlock()

	for _, l := range listeners {
		l(next)
	}
	m.emitMu.Unlock()

	for _, effect := range effects {
		m.run(effect)
	}
}

func (m *Machine) run(effect Effect) {
	switch effect.Kind {
	case EffectFetchProfile:
		m.spawn(func() { m.fetch(effect) })
	}
}

func (m *Machine) fetch(effect Effect) {
	ctx, cancel := context.WithTimeout(m.context(), m.fetchTimeout)
	defer cancel()

	profile, err := m.fetchProfile(ctx, effect.IdentityID)
	if err != nil || profile == nil {
		m.logger.Warn("profile fetch failed",
			"identity_id", effect.IdentityID,
			"generation", effect.Gen,
			"error", err,
		)
		m.dispatch(Event{Kind: EventProfileFailed, Gen: effect.Gen, Err: err})
		return
	}
	m.dispatch(Event{Kind: EventProfileLoaded, Gen: effect.Gen, Profile: profile})
}

func (m *Machine) fetchProfile(ctx context.Context, identityID string) (profile *model.Profile, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("profile fetcher panicked: %v", r)
		}
	}()
	return m.profiles.FetchProfile(ctx, identityID)
}

func (m *Machine) context() context.Context {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ctx
}

func identityOf(sess *Session) *Identity {
	if sess == nil || sess.Identity.ID == "" {
		return nil
	}
	id := sess.Identity
	return &id
}
