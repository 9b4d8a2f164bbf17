// Package client talks to the console API on behalf of a session.Machine.
// It implements session.IdentityProvider and session.ProfileFetcher.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"showroom/internal/errors"
	"showroom/internal/model"
	"showroom/internal/session"
)

const defaultTimeout = 10 * time.Second

// Client keeps the current session in memory, refreshes it on an interval
// and follows the server's session-change stream while signed in.
type Client struct {
	baseURL         string
	http            *http.Client
	logger          *slog.Logger
	refreshInterval time.Duration
	followEvents    bool

	// emitMu orders session mutations with the notifications they produce.
	emitMu sync.Mutex

	mu        sync.Mutex
	session   *session.Session
	listeners map[int]func(session.Change)
	nextID    int
	stop      context.CancelFunc
	wg        sync.WaitGroup
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithRefreshInterval sets how often the refresh token is rotated. Zero disables it.
func WithRefreshInterval(d time.Duration) Option {
	return func(c *Client) { c.refreshInterval = d }
}

// WithoutEvents disables the session-change stream.
func WithoutEvents() Option {
	return func(c *Client) { c.followEvents = false }
}

// New creates a client for the API at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:         strings.TrimRight(baseURL, "/"),
		http:            &http.Client{Timeout: defaultTimeout},
		logger:          slog.Default(),
		refreshInterval: 10 * time.Minute,
		followEvents:    true,
		listeners:       make(map[int]func(session.Change)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetSession returns the current session or nil when signed out.
func (c *Client) GetSession(ctx context.Context) (*session.Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return copySession(c.session), nil
}

// OnSessionChange registers fn. It receives INITIAL_SESSION asynchronously
// right after registration, carrying the session held when it is delivered.
func (c *Client) OnSessionChange(fn func(session.Change)) func() {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = fn
	c.mu.Unlock()

	go func() {
		c.emitMu.Lock()
		defer c.emitMu.Unlock()
		c.mu.Lock()
		_, ok := c.listeners[id]
		initial := copySession(c.session)
		c.mu.Unlock()
		if ok {
			fn(session.Change{Kind: session.ChangeInitialSession, Session: initial})
		}
	}()

	return func() {
		c.mu.Lock()
		delete(c.listeners, id)
		c.mu.Unlock()
	}
}

// SignUp creates an account. The server mails a confirmation link.
func (c *Client) SignUp(ctx context.Context, email, password string) error {
	body := map[string]string{"email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "/api/auth/sign-up", "", body, nil); err != nil {
		return authError(err)
	}
	return nil
}

// SignInWithPassword exchanges credentials for a session and emits SIGNED_IN.
func (c *Client) SignInWithPassword(ctx context.Context, email, password string) error {
	var sess session.Session
	body := map[string]string{"email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "/api/auth/sign-in", "", body, &sess); err != nil {
		return authError(err)
	}
	c.install(&sess, session.ChangeSignedIn)
	return nil
}

// SignOut revokes the session on the server and emits SIGNED_OUT. A network
// failure keeps the local session; any server answer clears it.
func (c *Client) SignOut(ctx context.Context) error {
	c.mu.Lock()
	sess := copySession(c.session)
	c.mu.Unlock()
	if sess == nil {
		return nil
	}

	body := map[string]string{"refresh_token": sess.RefreshToken}
	err := c.do(ctx, http.MethodPost, "/api/auth/sign-out", sess.AccessToken, body, nil)
	if err != nil {
		if _, ok := err.(*errors.HTTPError); !ok {
			return authError(err)
		}
		c.logger.Warn("sign-out rejected by server, clearing local session", "error", err)
	}
	c.clear()
	return nil
}

// Refresh rotates the refresh token and emits TOKEN_REFRESHED. A rejected
// refresh token ends the session. A rotation that completes after the session
// was signed out or replaced is discarded.
func (c *Client) Refresh(ctx context.Context) error {
	c.mu.Lock()
	sess := copySession(c.session)
	c.mu.Unlock()
	if sess == nil {
		return nil
	}

	var next session.Session
	body := map[string]string{"refresh_token": sess.RefreshToken}
	err := c.do(ctx, http.MethodPost, "/api/auth/refresh", "", body, &next)
	if err != nil {
		if httpErr, ok := err.(*errors.HTTPError); ok && httpErr.StatusCode == http.StatusUnauthorized {
			c.clearIf(sess.RefreshToken)
		}
		return authError(err)
	}
	if current, ok := c.replace(sess.RefreshToken, &next); !ok {
		c.discard(ctx, &next, current)
	}
	return nil
}

// FetchProfile loads the caller's profile. A missing row yields nil, nil.
func (c *Client) FetchProfile(ctx context.Context, identityID string) (*model.Profile, error) {
	c.mu.Lock()
	sess := copySession(c.session)
	c.mu.Unlock()
	if sess == nil {
		return nil, session.NewAuthError(session.CodeUnknown, "no active session", nil)
	}
	if sess.Identity.ID != identityID {
		return nil, fmt.Errorf("fetch profile: session belongs to %s, not %s", sess.Identity.ID, identityID)
	}

	var profile model.Profile
	err := c.do(ctx, http.MethodGet, "/api/profiles/me", sess.AccessToken, nil, &profile)
	if err != nil {
		if httpErr, ok := err.(*errors.HTTPError); ok && httpErr.StatusCode == http.StatusNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &profile, nil
}

// Capabilities asks the server how it sees the current session.
func (c *Client) Capabilities(ctx context.Context) (*session.Capabilities, error) {
	c.mu.Lock()
	token := ""
	if c.session != nil {
		token = c.session.AccessToken
	}
	c.mu.Unlock()

	var caps session.Capabilities
	if err := c.do(ctx, http.MethodGet, "/api/auth/session", token, nil, &caps); err != nil {
		return nil, err
	}
	return &caps, nil
}

// Close stops background work. The session stays in memory.
func (c *Client) Close() {
	c.mu.Lock()
	stop := c.stop
	c.stop = nil
	c.mu.Unlock()
	if stop != nil {
		stop()
	}
	c.wg.Wait()
}

// install stores a fresh session, restarts background work and notifies.
func (c *Client) install(sess *session.Session, kind session.ChangeKind) {
	c.Close()

	c.emitMu.Lock()
	defer c.emitMu.Unlock()

	c.mu.Lock()
	c.session = copySession(sess)
	ctx, cancel := context.WithCancel(context.Background())
	c.stop = cancel
	c.mu.Unlock()

	if c.refreshInterval > 0 {
		c.wg.Add(1)
		go c.refreshLoop(ctx)
	}
	if c.followEvents {
		c.wg.Add(1)
		go c.followLoop(ctx)
	}
	c.emitLocked(session.Change{Kind: kind, Session: copySession(sess)})
}

// replace swaps in rotated tokens and emits TOKEN_REFRESHED, but only while
// the held session still carries refreshToken. Otherwise it returns the held
// session unchanged.
func (c *Client) replace(refreshToken string, sess *session.Session) (*session.Session, bool) {
	c.emitMu.Lock()
	defer c.emitMu.Unlock()

	c.mu.Lock()
	current := copySession(c.session)
	ok := current != nil && current.RefreshToken == refreshToken
	if ok {
		c.session = copySession(sess)
	}
	c.mu.Unlock()

	if ok {
		c.emitLocked(session.Change{Kind: session.ChangeTokenRefreshed, Session: copySession(sess)})
	}
	return current, ok
}

// discard revokes tokens from a rotation that lost the race with sign-out.
// Revoking signs out every client of the identity, so it is skipped while
// this client holds a newer session for the same identity.
func (c *Client) discard(ctx context.Context, stale, current *session.Session) {
	if current != nil && current.Identity.ID == stale.Identity.ID {
		c.logger.Debug("dropped refreshed tokens for a replaced session")
		return
	}
	timeout := c.http.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()
	body := map[string]string{"refresh_token": stale.RefreshToken}
	if err := c.do(ctx, http.MethodPost, "/api/auth/sign-out", stale.AccessToken, body, nil); err != nil {
		c.logger.Warn("failed to revoke refreshed tokens after sign-out", "error", err)
	}
}

// clear drops the session, stops background work and emits SIGNED_OUT.
// It may run on a background goroutine, so it never waits for them.
func (c *Client) clear() {
	c.clearIf("")
}

// clearIf is clear restricted to a session holding refreshToken. An empty
// refreshToken matches any session.
func (c *Client) clearIf(refreshToken string) {
	c.emitMu.Lock()
	defer c.emitMu.Unlock()

	c.mu.Lock()
	had := c.session != nil
	if had && refreshToken != "" && c.session.RefreshToken != refreshToken {
		c.mu.Unlock()
		return
	}
	c.session = nil
	stop := c.stop
	c.stop = nil
	c.mu.Unlock()
	if stop != nil {
		stop()
	}
	if had {
		c.emitLocked(session.Change{Kind: session.ChangeSignedOut})
	}
}

// emitLocked notifies listeners in registration order. The caller holds emitMu.
func (c *Client) emitLocked(ch session.Change) {
	c.mu.Lock()
	fns := make([]func(session.Change), 0, len(c.listeners))
	for id := 0; id < c.nextID; id++ {
		if fn, ok := c.listeners[id]; ok {
			fns = append(fns, fn)
		}
	}
	c.mu.Unlock()
	for _, fn := range fns {
		fn(ch)
	}
}

func (c *Client) refreshLoop(ctx context.Context) {
	defer c.wg.Done()
	ticker := time.NewTicker(c.refreshInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.Refresh(ctx); err != nil {
				c.logger.Warn("session refresh failed", "error", err)
			}
		}
	}
}

// do sends a JSON request. Non-2xx answers come back as *errors.HTTPError.
func (c *Client) do(ctx context.Context, method, path, token string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return session.NewAuthError(session.CodeNetwork, "network error", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return decodeError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	var body errors.ErrorResponse
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err := json.Unmarshal(raw, &body); err != nil || body.Error == "" {
		body.Error = strings.TrimSpace(string(raw))
		if body.Error == "" {
			body.Error = http.StatusText(resp.StatusCode)
		}
	}
	return errors.NewHTTPError(resp.StatusCode, body.Error, body.Code)
}

// authError maps an API failure onto the codes the sign-in form displays.
func authError(err error) error {
	httpErr, ok := err.(*errors.HTTPError)
	if !ok {
		return session.AsAuthError(err)
	}
	switch session.AuthErrorCode(httpErr.Code) {
	case session.CodeInvalidCredentials, session.CodeEmailNotConfirmed, session.CodeAccountExists:
		return session.NewAuthError(session.AuthErrorCode(httpErr.Code), httpErr.Message, httpErr)
	}
	return session.NewAuthError(session.CodeUnknown, httpErr.Message, httpErr)
}

func copySession(s *session.Session) *session.Session {
	if s == nil {
		return nil
	}
	cp := *s
	return &cp
}
