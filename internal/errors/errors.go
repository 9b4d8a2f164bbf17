package errors

import (
	"errors"
	"net/http"

	"showroom/internal/session"
)

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrForbidden is returned when the actor lacks the capability for an operation.
	ErrForbidden = errors.New("forbidden")
	// ErrUnauthenticated is returned when an operation needs a signed-in identity.
	ErrUnauthenticated = errors.New("authentication required")
	// ErrApprovalPending is returned when the actor's profile is not approved yet.
	ErrApprovalPending = errors.New("account approval pending")
	// ErrInvalidTransition is returned when a profile status change is not allowed.
	ErrInvalidTransition = errors.New("invalid profile status transition")
	// ErrSelfModification is returned when a master tries to change their own role or status.
	ErrSelfModification = errors.New("cannot change own role or status")
	// ErrInvalidRole is returned when a role value is unknown.
	ErrInvalidRole = errors.New("invalid role")
	// ErrInvalidStatus is returned when a status value is unknown.
	ErrInvalidStatus = errors.New("invalid status")
	// ErrConflict is returned when a unique value is already taken.
	ErrConflict = errors.New("resource already exists")
	// ErrInvalidReference is returned when a related id does not resolve.
	ErrInvalidReference = errors.New("referenced record does not exist")
	// ErrInvalidToken is returned for unknown, expired or revoked refresh and confirmation tokens.
	ErrInvalidToken = errors.New("invalid or expired token")
	// ErrValidation is returned when a request body fails validation.
	ErrValidation = errors.New("validation failed")
)

// ErrorResponse represents a standardized error response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// HTTPError represents an HTTP error with status code.
type HTTPError struct {
	StatusCode int
	Message    string
	Code       string
}

func (e *HTTPError) Error() string {
	return e.Message
}

// NewHTTPError creates a new HTTP error.
func NewHTTPError(statusCode int, message, code string) *HTTPError {
	return &HTTPError{
		StatusCode: statusCode,
		Message:    message,
		Code:       code,
	}
}

// ToErrorResponse converts an HTTPError to ErrorResponse.
func (e *HTTPError) ToErrorResponse() ErrorResponse {
	return ErrorResponse{
		Error: e.Message,
		Code:  e.Code,
	}
}

// MapErrorToHTTP maps domain errors to HTTP errors.
func MapErrorToHTTP(err error) *HTTPError {
	var authErr *session.AuthError
	if errors.As(err, &authErr) {
		return authErrorToHTTP(authErr)
	}

	switch {
	case errors.Is(err, ErrNotFound):
		return NewHTTPError(http.StatusNotFound, ErrNotFound.Error(), "not_found")
	case errors.Is(err, ErrUnauthenticated):
		return NewHTTPError(http.StatusUnauthorized, ErrUnauthenticated.Error(), "unauthorized")
	case errors.Is(err, ErrApprovalPending):
		return NewHTTPError(http.StatusForbidden, ErrApprovalPending.Error(), "approval_pending")
	case errors.Is(err, ErrForbidden):
		return NewHTTPError(http.StatusForbidden, ErrForbidden.Error(), "forbidden")
	case errors.Is(err, ErrInvalidTransition):
		return NewHTTPError(http.StatusConflict, err.Error(), "invalid_transition")
	case errors.Is(err, ErrSelfModification):
		return NewHTTPError(http.StatusForbidden, ErrSelfModification.Error(), "self_modification")
	case errors.Is(err, ErrInvalidRole):
		return NewHTTPError(http.StatusBadRequest, ErrInvalidRole.Error(), "invalid_role")
	case errors.Is(err, ErrInvalidStatus):
		return NewHTTPError(http.StatusBadRequest, ErrInvalidStatus.Error(), "invalid_status")
	case errors.Is(err, ErrConflict):
		return NewHTTPError(http.StatusConflict, ErrConflict.Error(), "conflict")
	case errors.Is(err, ErrInvalidReference):
		return NewHTTPError(http.StatusBadRequest, err.Error(), "invalid_reference")
	case errors.Is(err, ErrInvalidToken):
		return NewHTTPError(http.StatusUnauthorized, ErrInvalidToken.Error(), "invalid_token")
	case errors.Is(err, ErrValidation):
		return NewHTTPError(http.StatusBadRequest, err.Error(), "validation_error")
	default:
		return NewHTTPError(http.StatusInternalServerError, "internal server error", "internal_error")
	}
}

func authErrorToHTTP(err *session.AuthError) *HTTPError {
	switch err.Code {
	case session.CodeInvalidCredentials:
		return NewHTTPError(http.StatusUnauthorized, err.Error(), string(err.Code))
	case session.CodeEmailNotConfirmed:
		return NewHTTPError(http.StatusForbidden, err.Error(), string(err.Code))
	case session.CodeAccountExists:
		return NewHTTPError(http.StatusConflict, err.Error(), string(err.Code))
	case session.CodeNetwork:
		return NewHTTPError(http.StatusBadGateway, err.Error(), string(err.Code))
	default:
		return NewHTTPError(http.StatusInternalServerError, "internal server error", "internal_error")
	}
}
