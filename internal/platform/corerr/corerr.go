// Package corerr defines the typed error-kind taxonomy shared across the
// screening engine, EMR sync pipeline, and job runtime. A Kind lets a
// caller branch on what went wrong (retry, surface to the user, disable a
// provider) without string-matching error messages.
package corerr

import (
	"errors"
	"fmt"
)

// Kind classifies an Error for programmatic handling. Values are grouped by
// the component that raises them; see spec §7.
type Kind string

const (
	// Token/auth lifecycle.
	KindAuthRequired   Kind = "auth_required"
	KindReauthRequired Kind = "reauth_required"

	// Rate limiting.
	KindRateLimitExceeded    Kind = "rate_limit_exceeded"
	KindRateLimitWouldExceed Kind = "rate_limit_would_exceed"

	// HTTP failure classes.
	KindTransient Kind = "transient"
	KindPermanent Kind = "permanent"

	// Submission-time back-pressure.
	KindBatchTooLarge Kind = "batch_too_large"

	// Authorization/tenancy.
	KindSecurityViolation Kind = "security_violation"

	// PHI handling.
	KindPHIFilterFailed Kind = "phi_filter_failed"

	// Not found / validation, used throughout internal/domain services.
	KindNotFound   Kind = "not_found"
	KindValidation Kind = "validation"
)

// Error is a Kind-tagged error that wraps an underlying cause.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// New creates an Error of the given kind with no wrapped cause.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// Wrap creates an Error of the given kind wrapping err.
func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// Is reports whether err is a corerr.Error of the given kind, unwrapping
// as needed.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// KindOf returns the Kind of err if it is a corerr.Error, or "" otherwise.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Retryable reports whether an error of this kind should be retried by the
// caller (transient HTTP failures and a reached rate limit, which clears on
// its own at the next hour boundary).
func Retryable(err error) bool {
	switch KindOf(err) {
	case KindTransient, KindRateLimitExceeded:
		return true
	default:
		return false
	}
}
