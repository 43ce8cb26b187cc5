// Package shared provides common utility functions used across multiple
// packages in the quarry-packages codebase.
package shared

import (
	"errors"
	"fmt"
	"strings"
)

// HTTPStatusError creates a formatted error for non-2xx HTTP responses.
func HTTPStatusError(status int, url string) error {
	return fmt.Errorf("status=%d url=%s", status, url)
}

// CommandError wraps a command execution error with its trimmed output
// for cleaner error messages.
func CommandError(output []byte, err error) error {
	return fmt.Errorf("%s: %w", strings.TrimSpace(string(output)), err)
}

// ConnectionError marks a failure as connection-level. The download
// retry loop re-attempts only failures carrying this marker; anything
// else propagates immediately.
type ConnectionError struct {
	Cause error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection failure: %v", e.Cause)
}

func (e *ConnectionError) Unwrap() error { return e.Cause }

// MarkConnection wraps err as a ConnectionError. Nil stays nil.
func MarkConnection(err error) error {
	if err == nil {
		return nil
	}
	return &ConnectionError{Cause: err}
}

// IsConnection reports whether err carries a ConnectionError anywhere
// in its chain.
func IsConnection(err error) bool {
	var connErr *ConnectionError
	return errors.As(err, &connErr)
}
