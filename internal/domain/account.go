package domain

import "errors"

var (
	// ErrEmailTaken is returned when trying to create an account with an email
	// that is already registered.
	ErrEmailTaken = errors.New("email already registered")
	// ErrAccountNotFound is returned when looking up a non-existent account.
	ErrAccountNotFound = errors.New("account not found")
	// ErrInvalidCredentials is returned when the email/password combination is
	// incorrect. Unknown email and wrong password produce this same error so
	// callers cannot enumerate accounts.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrMissingFields is returned when a required registration or sign-in
	// field is empty.
	ErrMissingFields = errors.New("missing fields")
	// ErrPasswordMismatch is returned when password and confirmation differ.
	ErrPasswordMismatch = errors.New("password mismatch")
)

// Account represents a registered user account. Accounts are append-only:
// they are created through registration and never mutated or deleted.
type Account struct {
	ID           int64  // Unique identifier, assigned by the store
	Email        string // Normalized (trimmed, lowercased) unique email
	PasswordHash string // bcrypt hash; never plaintext, never compared directly
	CreatedAt    int64  // Unix timestamp of account creation
}
