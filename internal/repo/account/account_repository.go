package account

import (
	"context"

	"github.com/mkrupp/webauth/internal/domain"
)

// Repository defines the interface for account persistence. Accounts are
// append-only: there is no update or delete operation.
type Repository interface {
	// CreateAccount adds a new account to the repository.
	// Returns ErrEmailTaken if the email is already registered; the
	// uniqueness check and insert are atomic with respect to concurrent
	// calls for the same email.
	CreateAccount(ctx context.Context, email, passwordHash string) error

	// GetAccountByEmail retrieves an account by its normalized email.
	// Returns the account and true if found, or nil and false if not found.
	// Returns an error if the operation fails.
	GetAccountByEmail(ctx context.Context, email string) (*domain.Account, bool, error)

	// GetAccountByID retrieves an account by its id.
	// Returns the account and true if found, or nil and false if not found.
	// Returns an error if the operation fails.
	GetAccountByID(ctx context.Context, id int64) (*domain.Account, bool, error)

	// Close releases any resources held by the repository.
	// Returns an error if cleanup fails.
	Close() error
}

// RepositoryFactory is a function that creates a new Repository instance.
// Returns an error if initialization fails.
type RepositoryFactory func() (Repository, error)
