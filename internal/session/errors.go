package session

import (
	"errors"
	"fmt"
)

// AuthErrorCode classifies sign-in and sign-out failures for display.
type AuthErrorCode string

const (
	CodeInvalidCredentials AuthErrorCode = "invalid_credentials"
	CodeEmailNotConfirmed  AuthErrorCode = "email_not_confirmed"
	CodeAccountExists      AuthErrorCode = "user_already_exists"
	CodeNetwork            AuthErrorCode = "network_error"
	CodeUnknown            AuthErrorCode = "unknown_error"
)

// AuthError is surfaced verbatim to the form layer. It is never retried.
type AuthError struct {
	Code    AuthErrorCode
	Message string
	Err     error
}

func (e *AuthError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return string(e.Code)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// Is matches any AuthError with the same code.
func (e *AuthError) Is(target error) bool {
	t, ok := target.(*AuthError)
	return ok && t.Code == e.Code
}

var (
	ErrInvalidCredentials = &AuthError{Code: CodeInvalidCredentials, Message: "invalid email or password"}
	ErrEmailNotConfirmed  = &AuthError{Code: CodeEmailNotConfirmed, Message: "email not confirmed"}
	ErrNetwork            = &AuthError{Code: CodeNetwork, Message: "network error"}
)

// NewAuthError builds an AuthError with a custom message.
func NewAuthError(code AuthErrorCode, message string, cause error) *AuthError {
	return &AuthError{Code: code, Message: message, Err: cause}
}

// AsAuthError returns err as an *AuthError, wrapping unknown errors with CodeUnknown.
func AsAuthError(err error) error {
	if err == nil {
		return nil
	}
	var authErr *AuthError
	if errors.As(err, &authErr) {
		return authErr
	}
	return &AuthError{Code: CodeUnknown, Message: err.Error(), Err: err}
}

// ErrProfileMissing is recorded when the profile store has no row for an identity.
var ErrProfileMissing = errors.New("profile not found")

// ProfileFetchError is the swallowed failure of a profile fetch. It never
// leaves the machine other than through State.ProfileErr.
type ProfileFetchError struct {
	IdentityID string
	Err        error
}

func (e *ProfileFetchError) Error() string {
	return fmt.Sprintf("fetch profile %s: %v", e.IdentityID, e.Err)
}

func (e *ProfileFetchError) Unwrap() error {
	return e.Err
}

func asProfileFetchError(identityID string, err error) error {
	if err == nil {
		err = ErrProfileMissing
	}
	var pfe *ProfileFetchError
	if errors.As(err, &pfe) {
		return pfe
	}
	return &ProfileFetchError{IdentityID: identityID, Err: err}
}
