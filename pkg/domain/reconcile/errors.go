package reconcile

import (
	"errors"
	"fmt"
)

// Reconciliation domain errors.
var (
	// ErrBaselineIncomplete indicates the target system's task listing could
	// not be paged exhaustively. Reconciliation must never act on a partial
	// baseline.
	ErrBaselineIncomplete = errors.New("baseline incomplete")
	// ErrBaselineConflict indicates two target tasks carry the same node id
	// marker.
	ErrBaselineConflict = errors.New("baseline conflict")
)

// APIError is a failure returned by the target system for a single
// operation. Transient failures (rate limits, timeouts, connection resets)
// are eligible for retry; terminal ones (validation rejections) are not.
type APIError struct {
	// Op is the operation kind that failed: "list", "create", "update" or
	// "archive".
	Op string
	// NodeID identifies the affected node when known.
	NodeID string
	// Transient marks the failure as retryable.
	Transient bool
	// Err is the underlying cause.
	Err error
}

func (e *APIError) Error() string {
	if e.NodeID != "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.NodeID, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// IsTransient reports whether err is (or wraps) a transient API failure.
func IsTransient(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Transient
}
