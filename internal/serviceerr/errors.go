package serviceerr

import (
	"errors"
	"net/http"
)

// Code is a machine readable error code. The RFC6749 codes are reused where
// the gateway relays an authorization server failure.
type Code string

const (
	// RFC6749
	CodeInvalidRequest         Code = "invalid_request"
	CodeAccessDenied           Code = "access_denied"
	CodeInvalidGrant           Code = "invalid_grant"
	CodeServerError            Code = "server_error"
	CodeTemporarilyUnavailable Code = "temporarily_unavailable"

	// Custom
	CodeUnknown             Code = "unknown"
	CodeNotFound            Code = "not_found"
	CodeConfiguration       Code = "configuration_error"
	CodeTokenExchangeFailed Code = "token_exchange_failed"
	CodeUpstreamFailed      Code = "upstream_failed"
	CodeUpstreamTimeout     Code = "upstream_timeout"
	CodeMalformedState      Code = "malformed_state"
	CodeUnauthorized        Code = "unauthorized"
)

// Error is the error type surfaced by the gateway handlers.
type Error struct {
	Err         Code
	Description string
}

func (e *Error) Error() string {
	if e.Description == "" {
		return string(e.Err)
	}

	return string(e.Err) + ": " + e.Description
}

// HTTPStatus maps the error code onto the status of the response.
func (e *Error) HTTPStatus() int {
	switch e.Err {
	case CodeInvalidRequest, CodeMalformedState:
		return http.StatusBadRequest
	case CodeAccessDenied:
		return http.StatusForbidden
	case CodeInvalidGrant, CodeTokenExchangeFailed, CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeNotFound:
		return http.StatusNotFound
	case CodeTemporarilyUnavailable, CodeUpstreamFailed:
		return http.StatusBadGateway
	case CodeUpstreamTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// Is matches any *Error carrying the same code.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}

	return t.Err == e.Err
}

var (
	ErrUnknown                = &Error{Err: CodeUnknown, Description: "unknown error"}
	ErrNotFound               = &Error{Err: CodeNotFound, Description: "not found"}
	ErrInvalidRequest         = &Error{Err: CodeInvalidRequest}
	ErrConfiguration          = &Error{Err: CodeConfiguration, Description: "Could not store access token for user because no session manager is configured."}
	ErrTokenExchange          = &Error{Err: CodeTokenExchangeFailed, Description: "token exchange failed"}
	ErrTemporarilyUnavailable = &Error{Err: CodeTemporarilyUnavailable, Description: "authorization server unavailable"}
	ErrUpstream               = &Error{Err: CodeUpstreamFailed, Description: "backend request failed"}
	ErrUpstreamTimeout        = &Error{Err: CodeUpstreamTimeout, Description: "backend request timed out"}
	ErrMalformedState         = &Error{Err: CodeMalformedState, Description: "malformed state parameter"}
	ErrUnauthorized           = &Error{Err: CodeUnauthorized, Description: "no access token in session"}
	ErrSessionStore           = &Error{Err: CodeServerError, Description: "could not store the session"}
)

// Wrap returns a copy of base whose description is the message of cause.
// The cause is kept reachable through errors.Unwrap.
func Wrap(base *Error, cause error) error {
	if cause == nil {
		return base
	}

	return &wrapped{
		err:   &Error{Err: base.Err, Description: cause.Error()},
		cause: cause,
	}
}

type wrapped struct {
	err   *Error
	cause error
}

func (w *wrapped) Error() string {
	return w.err.Error()
}

func (w *wrapped) Unwrap() []error {
	return []error{w.err, w.cause}
}

// From extracts the service error from err, falling back to ErrUnknown.
func From(err error) *Error {
	var serviceErr *Error
	if errors.As(err, &serviceErr) {
		return serviceErr
	}

	return ErrUnknown
}
