package conn

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrNotConnected is returned by Emit when no channel is open.
var ErrNotConnected = errors.New("not connected")

// ErrClosed is returned after the manager has been torn down.
var ErrClosed = errors.New("connection manager closed")

// DialError describes a failed connection attempt.
type DialError struct {
	URL    string
	Status int // HTTP status of a rejected upgrade, 0 if none
	Err    error
}

func (e *DialError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("dial %s: status %d: %v", e.URL, e.Status, e.Err)
	}
	return fmt.Sprintf("dial %s: %v", e.URL, e.Err)
}

func (e *DialError) Unwrap() error {
	return e.Err
}

// Unauthorized reports whether the server rejected the credential.
func (e *DialError) Unauthorized() bool {
	return e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden
}
