package client

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"showroom/internal/errors"
	"showroom/internal/events"
	"showroom/internal/session"
)

const (
	minBackoff = time.Second
	maxBackoff = 30 * time.Second
)

// followLoop keeps the session-change stream open until ctx ends,
// reconnecting with capped exponential backoff.
func (c *Client) followLoop(ctx context.Context) {
	defer c.wg.Done()
	backoff := minBackoff
	for {
		started := time.Now()
		err := c.follow(ctx)
		if ctx.Err() != nil {
			return
		}
		if httpErr, ok := err.(*errors.HTTPError); ok && httpErr.StatusCode == http.StatusUnauthorized {
			c.logger.Debug("event stream rejected the access token", "error", err)
		} else if err != nil {
			c.logger.Warn("event stream interrupted", "error", err)
		}
		if time.Since(started) > maxBackoff {
			backoff = minBackoff
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, maxBackoff)
	}
}

// follow reads one connection of the stream.
func (c *Client) follow(ctx context.Context) error {
	c.mu.Lock()
	if c.session == nil {
		c.mu.Unlock()
		return nil
	}
	token := c.session.AccessToken
	c.mu.Unlock()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/auth/events", nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Authorization", "Bearer "+token)

	// The stream outlives any request timeout on the shared client.
	stream := *c.http
	stream.Timeout = 0
	resp, err := stream.Do(req)
	if err != nil {
		return session.NewAuthError(session.CodeNetwork, "network error", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return decodeError(resp)
	}

	return readEvents(resp, c.handleNotification)
}

// readEvents parses server-sent events and hands each data payload to fn.
// Comment lines are heartbeats.
func readEvents(resp *http.Response, fn func(events.Notification)) error {
	scanner := bufio.NewScanner(resp.Body)
	var data strings.Builder
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if data.Len() > 0 {
				var n events.Notification
				if err := json.Unmarshal([]byte(data.String()), &n); err == nil && n.Kind != "" {
					fn(n)
				}
				data.Reset()
			}
		case strings.HasPrefix(line, ":"):
		case strings.HasPrefix(line, "data:"):
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.WriteString(strings.TrimSpace(strings.TrimPrefix(line, "data:")))
		}
	}
	return scanner.Err()
}

// handleNotification turns a server notification into a local change.
// SIGNED_IN and TOKEN_REFRESHED from other clients of the same identity are
// ignored; this client tracks its own tokens.
func (c *Client) handleNotification(n events.Notification) {
	switch n.Kind {
	case session.ChangeUserUpdated:
		c.emitMu.Lock()
		defer c.emitMu.Unlock()
		c.mu.Lock()
		sess := copySession(c.session)
		c.mu.Unlock()
		if sess != nil && sess.Identity.ID == n.IdentityID {
			c.emitLocked(session.Change{Kind: session.ChangeUserUpdated, Session: sess})
		}
	case session.ChangeSignedOut:
		c.clear()
	}
}
