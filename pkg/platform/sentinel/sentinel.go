package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores and adapters return these,
// optionally wrapped, so callers can classify failures without knowing the
// backend:
//   - ErrNotFound: the row or key does not exist
//   - ErrConflict: a uniqueness constraint rejected the write
//   - ErrUnavailable: the backend cannot serve requests right now
var (
	ErrNotFound    = errors.New("not found")
	ErrConflict    = errors.New("conflict")
	ErrUnavailable = errors.New("unavailable")
)
