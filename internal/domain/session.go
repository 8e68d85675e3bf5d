package domain

import "errors"

// ErrSessionNotFound is returned when looking up a non-existent session.
var ErrSessionNotFound = errors.New("session not found")

// Session is a signed-in browsing context referenced by an opaque token
// carried in a cookie. A session whose account no longer resolves, or whose
// expiry has passed, is invalid regardless of whether the row still exists.
type Session struct {
	ID        string // Opaque unguessable token
	AccountID int64  // Owning account; 0 while the session is anonymous
	ExpiresAt int64  // Unix timestamp after which the session is invalid
	CreatedAt int64  // Unix timestamp of session creation
}

// Flash is a one-shot notice attached to a session. Reading a flash clears
// it, so at most one request observes a given flash.
type Flash struct {
	Kind string // "success" or "error"
	Text string
}
