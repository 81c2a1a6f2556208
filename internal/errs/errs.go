// Package errs defines the structured error taxonomy shared across the
// indexing pipeline so callers can branch on failure class without
// string-matching messages.
package errs

import (
	"errors"
	"fmt"
)

// Kind classifies a failure so callers can decide whether to retry,
// skip, or abort.
type Kind string

const (
	KindParse        Kind = "parse"
	KindAnalyzer     Kind = "analyzer"
	KindStore        Kind = "store"
	KindIndex        Kind = "index"
	KindConfig       Kind = "config"
	KindNotFound     Kind = "not_found"
	KindInvalidInput Kind = "invalid_input"
	KindTimeout      Kind = "timeout"
	KindInternal     Kind = "internal"
	// KindNotReady marks a query against a snapshot that has not finished
	// publishing to every adapter yet (§5's ordering guarantee).
	KindNotReady Kind = "not_ready"
)

// Error is the structured error type returned by pipeline components.
type Error struct {
	Kind      Kind
	Message   string
	Retryable bool
	Details   map[string]any
	Cause     error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds an Error with no cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap attaches kind/message to an existing error, preserving it as the
// cause for errors.Is/errors.As.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// WithDetail attaches a structured detail field and returns the receiver
// for chaining.
func (e *Error) WithDetail(key string, value any) *Error {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// WithRetryable marks whether a retry of the originating operation is
// expected to succeed and returns the receiver for chaining.
func (e *Error) WithRetryable(retryable bool) *Error {
	e.Retryable = retryable
	return e
}

// Is reports whether target has the same Kind, satisfying errors.Is for
// sentinel-style comparisons against a bare &Error{Kind: ...}.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Kind == t.Kind
}

// IsRetryable reports whether err (or any error it wraps) is a
// structured Error marked retryable.
func IsRetryable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Retryable
	}
	return false
}

// KindOf extracts the Kind from err if it is (or wraps) a structured
// Error, defaulting to KindInternal otherwise.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}
