// Package middleware resolves the caller's session state at the HTTP edge
// and enforces the route guard for console pages and API routes.
package middleware

import (
	"context"
	"log/slog"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"

	"showroom/internal/auth"
	"showroom/internal/errors"
	"showroom/internal/model"
	"showroom/internal/session"
)

const (
	tokenKey  = "user"
	stateKey  = "session_state"
	claimsKey = "session_claims"
)

// TokenLookup finds the access token in the bearer header first, then in the console cookie.
const TokenLookup = "header:Authorization:Bearer ,cookie:" + auth.AccessCookieName

// ProfileLoader loads the profile row of an identity.
type ProfileLoader interface {
	Get(ctx context.Context, id uuid.UUID) (*model.Profile, error)
}

// Blacklist reports revoked access tokens.
type Blacklist interface {
	IsAccessTokenBlacklisted(ctx context.Context, tokenID string) (bool, error)
}

// JWT parses an access token when one is present. It never rejects a request;
// the guards decide what an anonymous caller may reach.
func JWT(secret []byte) echo.MiddlewareFunc {
	return echojwt.WithConfig(echojwt.Config{
		SigningKey:  secret,
		TokenLookup: TokenLookup,
		ContextKey:  tokenKey,
		NewClaimsFunc: func(c echo.Context) jwt.Claims {
			return new(auth.Claims)
		},
		ContinueOnIgnoredError: true,
		ErrorHandler: func(c echo.Context, err error) error {
			return nil
		},
	})
}

// Session turns the parsed token into a session.State for the request.
// Blacklisted tokens resolve anonymous. A missing profile row resolves an
// authenticated state without a profile, which the guard sends to the
// pending-approval page.
func Session(tokens Blacklist, profiles ProfileLoader, logger *slog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			state := session.Anonymous()

			if claims := claimsOf(c); claims != nil {
				ctx := c.Request().Context()
				revoked, _ := tokens.IsAccessTokenBlacklisted(ctx, claims.ID)
				id, err := claims.IdentityID()
				if !revoked && err == nil {
					profile, err := profiles.Get(ctx, id)
					if err != nil && err != errors.ErrNotFound {
						logger.Warn("profile lookup failed", "identity_id", id, "error", err)
					}
					state = session.Resolved(session.Identity{ID: claims.Subject, Email: claims.Email}, profile)
					c.Set(claimsKey, claims)
				}
			}

			SetState(c, state)
			return next(c)
		}
	}
}

func claimsOf(c echo.Context) *auth.Claims {
	token, ok := c.Get(tokenKey).(*jwt.Token)
	if !ok || token == nil || !token.Valid {
		return nil
	}
	claims, ok := token.Claims.(*auth.Claims)
	if !ok {
		return nil
	}
	return claims
}

// StateFrom returns the session state resolved for the request, or an
// anonymous state when Session did not run.
func StateFrom(c echo.Context) session.State {
	if s, ok := c.Get(stateKey).(session.State); ok {
		return s
	}
	return session.Anonymous()
}

// ClaimsFrom returns the access token claims of an authenticated request.
func ClaimsFrom(c echo.Context) *auth.Claims {
	claims, _ := c.Get(claimsKey).(*auth.Claims)
	return claims
}

// SetState stores s as the request's session state.
func SetState(c echo.Context, s session.State) {
	c.Set(stateKey, s)
}
