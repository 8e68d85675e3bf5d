package session

import (
	"context"

	"github.com/mkrupp/webauth/internal/domain"
)

// Repository defines the interface for session persistence. Expiry is
// enforced by callers reading ExpiresAt; DeleteExpired only reclaims rows.
type Repository interface {
	// CreateSession adds a new session row.
	// Returns an error if the operation fails.
	CreateSession(ctx context.Context, sess *domain.Session) error

	// GetSession retrieves a session by its id.
	// Returns the session and true if found, or nil and false if not found.
	// Returns an error if the operation fails.
	GetSession(ctx context.Context, id string) (*domain.Session, bool, error)

	// DeleteSession removes a session. Deleting an absent session is not an
	// error.
	DeleteSession(ctx context.Context, id string) error

	// SetFlash attaches a one-shot flash message to a session.
	// Returns ErrSessionNotFound if no such session exists.
	SetFlash(ctx context.Context, id, kind, text string) error

	// TakeFlash reads and clears the flash message of a session. Returns the
	// flash and true if one was stored, or nil and false otherwise. At most
	// one caller observes a given flash.
	TakeFlash(ctx context.Context, id string) (*domain.Flash, bool, error)

	// DeleteExpired removes all sessions whose expiry is at or before now.
	DeleteExpired(ctx context.Context, now int64) error

	// Close releases any resources held by the repository.
	// Returns an error if cleanup fails.
	Close() error
}

// RepositoryFactory is a function that creates a new Repository instance.
// Returns an error if initialization fails.
type RepositoryFactory func() (Repository, error)
