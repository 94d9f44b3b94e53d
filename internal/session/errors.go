package session

import "errors"

// Reasons a user action is rejected locally. Rejections never reach the
// wire; they are exposed as State.LastRejection.
var (
	ErrInvalidRating = errors.New("rating must be between 1 and 5")
	ErrEmptyText     = errors.New("text must not be empty")
	ErrNotAllowed    = errors.New("action not allowed in the current phase")
	ErrSessionOver   = errors.New("session is over; start a new session")
	ErrNotConnected  = errors.New("not connected to the survey server")
)

// ErrStopped is returned by Flush once the machine no longer runs.
var ErrStopped = errors.New("session machine stopped")

// ProtocolError is an error reported by the peer.
type ProtocolError struct {
	Message string
}

func (e *ProtocolError) Error() string {
	return "peer error: " + e.Message
}
