package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/stemsi/exstem-player/internal/response"
)

// Kind classifies API failures for the player's recovery policy.
type Kind int

const (
	// KindTransient covers network failures, timeouts, and server errors.
	// Background callers drop these; foreground callers notify the user.
	KindTransient Kind = iota
	// KindNotFound means the session or question does not exist. Fatal.
	KindNotFound
	// KindForbidden means the caller does not own the session. Fatal.
	KindForbidden
)

// Error is a classified API failure carrying the backend's error code when
// one was returned.
type Error struct {
	Kind       Kind
	HTTPStatus int
	Code       response.ErrCode
	Message    string
	cause      error
}

func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api: %s (%s)", e.Message, e.Code)
	}
	if e.cause != nil {
		return fmt.Sprintf("api: %v", e.cause)
	}
	return "api: request failed"
}

func (e *Error) Unwrap() error {
	return e.cause
}

// classify maps an HTTP status + envelope error body onto an Error.
func classify(status int, body *response.ErrorBody) *Error {
	e := &Error{Kind: KindTransient, HTTPStatus: status}
	if body != nil {
		e.Code = body.Code
		e.Message = body.Message
	}
	switch status {
	case http.StatusNotFound:
		e.Kind = KindNotFound
	case http.StatusUnauthorized, http.StatusForbidden:
		e.Kind = KindForbidden
	}
	return e
}

// transportError wraps a failed round trip (connection refused, timeout, ...).
func transportError(err error) *Error {
	return &Error{Kind: KindTransient, cause: err}
}

func isKind(err error, k Kind) bool {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind == k
	}
	return false
}

// IsNotFound reports whether err is a not-found API failure.
func IsNotFound(err error) bool { return isKind(err, KindNotFound) }

// IsForbidden reports whether err is an ownership/authorization failure.
func IsForbidden(err error) bool { return isKind(err, KindForbidden) }

// IsTransient reports whether err is recoverable (retry or drop is safe).
func IsTransient(err error) bool { return isKind(err, KindTransient) }
