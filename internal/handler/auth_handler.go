package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/labstack/echo/v4"

	"showroom/internal/auth"
	"showroom/internal/errors"
	"showroom/internal/events"
	"showroom/internal/guard"
	"showroom/internal/middleware"
	"showroom/internal/service"
)

const heartbeatInterval = 25 * time.Second

// Subscriber streams an identity's session changes.
type Subscriber interface {
	Subscribe(ctx context.Context, identityID string) (<-chan events.Notification, func(), error)
}

// AuthHandler handles authentication endpoints.
type AuthHandler struct {
	authService   service.AuthService
	subscriber    Subscriber
	logger        *slog.Logger
	secureCookies bool
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(authService service.AuthService, subscriber Subscriber, logger *slog.Logger, secureCookies bool) *AuthHandler {
	return &AuthHandler{
		authService:   authService,
		subscriber:    subscriber,
		logger:        logger,
		secureCookies: secureCookies,
	}
}

// CredentialsRequest carries an email and password.
type CredentialsRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

// SignInRequest represents a sign-in request. Password length is not
// checked so old accounts can still sign in.
type SignInRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// RefreshRequest represents a token refresh request.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// SignOutRequest represents a sign-out request.
type SignOutRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// SignUpResponse is returned after a successful sign-up.
type SignUpResponse struct {
	Message string `json:"message"`
	Email   string `json:"email"`
}

// SignUp godoc
// @Summary Create an account
// @Description Creates an identity with a pending profile and mails a confirmation link.
// @Tags auth
// @Accept json
// @Produce json
// @Param request body CredentialsRequest true "Sign-up data"
// @Success 201 {object} SignUpResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 409 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /auth/sign-up [post]
func (h *AuthHandler) SignUp(c echo.Context) error {
	var req CredentialsRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	identity, err := h.authService.SignUp(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return fail(err)
	}

	return c.JSON(http.StatusCreated, SignUpResponse{
		Message: "check your inbox to confirm your email address",
		Email:   identity.Email,
	})
}

// SignIn godoc
// @Summary Sign in with email and password
// @Description Returns the session and sets the access token cookie used by console pages.
// @Tags auth
// @Accept json
// @Produce json
// @Param request body SignInRequest true "Credentials"
// @Success 200 {object} session.Session
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /auth/sign-in [post]
func (h *AuthHandler) SignIn(c echo.Context) error {
	var req SignInRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	sess, err := h.authService.SignIn(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return fail(err)
	}

	auth.SetAccessCookie(c, sess.AccessToken, sess.ExpiresAt, h.secureCookies)
	return c.JSON(http.StatusOK, sess)
}

// Refresh godoc
// @Summary Refresh the session
// @Description Exchanges a refresh token for a new session. Refresh tokens are single use.
// @Tags auth
// @Accept json
// @Produce json
// @Param request body RefreshRequest true "Refresh token"
// @Success 200 {object} session.Session
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /auth/refresh [post]
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req RefreshRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	sess, err := h.authService.Refresh(c.Request().Context(), req.RefreshToken)
	if err != nil {
		return fail(err)
	}

	auth.SetAccessCookie(c, sess.AccessToken, sess.ExpiresAt, h.secureCookies)
	return c.JSON(http.StatusOK, sess)
}

// SignOut godoc
// @Summary Sign out
// @Description Revokes the access token and the given refresh token and clears the cookie.
// @Tags auth
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body SignOutRequest false "Refresh token to revoke"
// @Success 200 {object} map[string]string
// @Failure 500 {object} errors.ErrorResponse
// @Router /auth/sign-out [post]
func (h *AuthHandler) SignOut(c echo.Context) error {
	var req SignOutRequest
	if c.Request().ContentLength > 0 {
		if err := c.Bind(&req); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, errors.ErrorResponse{
				Error: "invalid request body",
				Code:  "invalid_body",
			})
		}
	}

	if err := h.authService.SignOut(c.Request().Context(), middleware.ClaimsFrom(c), req.RefreshToken); err != nil {
		return fail(err)
	}

	auth.ClearAccessCookie(c, h.secureCookies)
	return c.JSON(http.StatusOK, map[string]string{
		"message": "signed out",
	})
}

// Session godoc
// @Summary Current session
// @Description Returns the caller's session state and derived capabilities. Anonymous callers get phase "anonymous".
// @Tags auth
// @Produce json
// @Success 200 {object} session.Capabilities
// @Router /auth/session [get]
func (h *AuthHandler) Session(c echo.Context) error {
	return c.JSON(http.StatusOK, middleware.StateFrom(c).Capabilities())
}

// Confirm godoc
// @Summary Confirm an email address
// @Description Consumes the emailed token, approves the pending profile and redirects to the sign-in page.
// @Tags auth
// @Param token query string true "Confirmation token"
// @Success 302
// @Router /auth/confirm [get]
func (h *AuthHandler) Confirm(c echo.Context) error {
	signIn := guard.DefaultPaths().SignIn
	if _, err := h.authService.ConfirmEmail(c.Request().Context(), c.QueryParam("token")); err != nil {
		httpErr := errors.MapErrorToHTTP(err)
		if httpErr.StatusCode >= http.StatusInternalServerError {
			h.logger.Error("email confirmation failed", "error", err)
		}
		return c.Redirect(http.StatusFound, signIn+"?"+url.Values{guard.ParamError: {httpErr.Code}}.Encode())
	}
	return c.Redirect(http.StatusFound, signIn+"?confirmed=1")
}

// Events godoc
// @Summary Session change stream
// @Description Server-Sent Events carrying SIGNED_IN, SIGNED_OUT and USER_UPDATED changes for the caller's identity.
// @Tags auth
// @Produce text/event-stream
// @Security BearerAuth
// @Success 200
// @Failure 401 {object} errors.ErrorResponse
// @Router /auth/events [get]
func (h *AuthHandler) Events(c echo.Context) error {
	state := middleware.StateFrom(c)
	ctx := c.Request().Context()

	stream, cancel, err := h.subscriber.Subscribe(ctx, state.IdentityID())
	if err != nil {
		h.logger.Error("failed to subscribe to session events", "identity_id", state.IdentityID(), "error", err)
		return echo.NewHTTPError(http.StatusServiceUnavailable, errors.ErrorResponse{
			Error: "event stream unavailable",
			Code:  "stream_unavailable",
		})
	}
	defer cancel()

	res := c.Response()
	res.Header().Set(echo.HeaderContentType, "text/event-stream")
	res.Header().Set(echo.HeaderCacheControl, "no-cache")
	res.Header().Set(echo.HeaderConnection, "keep-alive")
	res.Header().Set("X-Accel-Buffering", "no")
	res.WriteHeader(http.StatusOK)
	fmt.Fprint(res, ": connected\n\n")
	res.Flush()

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-heartbeat.C:
			fmt.Fprint(res, ": ping\n\n")
			res.Flush()
		case n, ok := <-stream:
			if !ok {
				return nil
			}
			if err := writeEvent(res, n); err != nil {
				return nil
			}
			res.Flush()
		}
	}
}

func writeEvent(res *echo.Response, n events.Notification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(res, "event: %s\ndata: %s\n\n", n.Kind, payload)
	return err
}
