package models

import "errors"

// Outcome taxonomy of a registration processing pass. NetworkError and
// ServerUnavailable are retryable; the rest are terminal for the work item.
var (
	ErrNetwork            = errors.New("network error")
	ErrServerUnavailable  = errors.New("server unavailable")
	ErrInvalidEnrollment  = errors.New("invalid enrollment")
	ErrParsing            = errors.New("parsing error")
	ErrPrivacyRejected    = errors.New("privacy rejected")
	ErrTransactionFailure = errors.New("transaction failure")
)

// FetchError carries the taxonomy kind and the underlying cause of a failed
// fetch.
type FetchError struct {
	Kind error
	Err  error
}

func (e *FetchError) Error() string {
	if e.Err == nil {
		return e.Kind.Error()
	}
	return e.Kind.Error() + ": " + e.Err.Error()
}

// Is matches the taxonomy kind.
func (e *FetchError) Is(target error) bool { return target == e.Kind }

func (e *FetchError) Unwrap() error { return e.Err }

// NewFetchError wraps cause under kind.
func NewFetchError(kind, cause error) error {
	return &FetchError{Kind: kind, Err: cause}
}

// IsRetryable reports whether err leaves the work item queued for a later
// pass with its retry count bumped.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrNetwork) || errors.Is(err, ErrServerUnavailable)
}
