package cli

import (
	"errors"
	"fmt"

	"treesync/internal/application"
	"treesync/pkg/domain/reconcile"
	"treesync/pkg/domain/tree"
)

// CLIError wraps domain errors with user-facing messages and actionable hints.
type CLIError struct {
	Message string
	Hint    string
	Err     error
}

func (e *CLIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *CLIError) Unwrap() error {
	return e.Err
}

// NewCLIError creates a CLIError.
func NewCLIError(msg, hint string, err error) *CLIError {
	return &CLIError{Message: msg, Hint: hint, Err: err}
}

// MapError converts known domain errors into CLIErrors with actionable hints.
// Unmapped errors are returned as-is.
func MapError(err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, application.ErrSourceFetch):
		return NewCLIError("fetch failed", "Check the source credentials and URL in the config, then retry", err)
	case errors.Is(err, reconcile.ErrBaselineIncomplete):
		return NewCLIError("could not list existing tasks", "No write was issued. Check the target token and retry", err)
	case errors.Is(err, tree.ErrStructural):
		return NewCLIError("fetched hierarchy is inconsistent", "A work item references a parent the fetch did not return; re-run the fetch", err)
	case errors.Is(err, tree.ErrDuplicateNode):
		return NewCLIError("duplicate work item in fetch", "Two records share an id; check for overlapping source configs", err)
	}

	return err
}
