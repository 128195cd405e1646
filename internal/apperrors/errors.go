// Package apperrors defines the structured error kinds used across claudex,
// mirroring the HTTP-status mapping in spec §7.
package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind identifies the class of failure that occurred while handling a
// proxied request. Kinds drive both the HTTP status returned to the child
// CLI and whether the dispatcher should try a backup profile.
type Kind string

const (
	KindProfileNotFound     Kind = "profile_not_found"
	KindProfileDisabled     Kind = "profile_disabled"
	KindCircuitBreakerOpen  Kind = "circuit_breaker_open"
	KindUpstreamError       Kind = "upstream_error"
	KindTranslation         Kind = "translation"
	KindOAuthError          Kind = "oauth_error"
	KindRequest             Kind = "request"
	KindBadRequest          Kind = "bad_request"
)

// AppError is the structured error returned from every claudex subsystem.
type AppError struct {
	Kind           Kind
	HTTPStatusCode int
	Message        string
	// UpstreamBody carries the verbatim upstream error body for
	// passthrough adapters (§4.3 DirectAnthropic) and UpstreamError.
	UpstreamBody []byte
	Err          error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error { return e.Err }

// Retryable reports whether the dispatcher should attempt a backup profile
// after this error, per the §7 "Recovery" column.
func (e *AppError) Retryable() bool {
	switch e.Kind {
	case KindCircuitBreakerOpen, KindUpstreamError, KindRequest:
		return true
	default:
		return false
	}
}

func new_(status int, kind Kind, message string, err error) *AppError {
	return &AppError{HTTPStatusCode: status, Kind: kind, Message: message, Err: err}
}

func ProfileNotFound(name string) *AppError {
	return new_(http.StatusNotFound, KindProfileNotFound, fmt.Sprintf("profile %q not found", name), nil)
}

func ProfileDisabled(name string) *AppError {
	return new_(http.StatusServiceUnavailable, KindProfileDisabled, fmt.Sprintf("profile %q is disabled", name), nil)
}

func CircuitBreakerOpen(profile string) *AppError {
	return new_(http.StatusServiceUnavailable, KindCircuitBreakerOpen, fmt.Sprintf("circuit breaker open for profile %q", profile), nil)
}

// UpstreamErr wraps a non-2xx upstream response. status defaults to 502
// when the caller did not capture a real upstream status.
func UpstreamErr(status int, body []byte, err error) *AppError {
	if status == 0 {
		status = http.StatusBadGateway
	}
	return &AppError{
		Kind:           KindUpstreamError,
		HTTPStatusCode: status,
		Message:        fmt.Sprintf("upstream returned status %d", status),
		UpstreamBody:   body,
		Err:            err,
	}
}

func Translation(message string, err error) *AppError {
	return new_(http.StatusInternalServerError, KindTranslation, message, err)
}

func OAuth(message string, err error) *AppError {
	return new_(http.StatusUnauthorized, KindOAuthError, message, err)
}

func Request(message string, err error) *AppError {
	return new_(http.StatusBadGateway, KindRequest, message, err)
}

func BadRequest(message string, err error) *AppError {
	return new_(http.StatusBadRequest, KindBadRequest, message, err)
}

// As is a convenience wrapper over errors.As for *AppError.
func As(err error) (*AppError, bool) {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}
