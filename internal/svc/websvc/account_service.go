package websvc

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mkrupp/webauth/internal/domain"
	"github.com/mkrupp/webauth/internal/infra/logging"
	"github.com/mkrupp/webauth/internal/repo/account"
)

// AccountConfig contains configuration parameters for the account service.
type AccountConfig struct {
	// BcryptCost is the bcrypt work factor applied to new password hashes
	BcryptCost int `env:"BCRYPT_COST" default:"12"`
}

// AccountService orchestrates registration and sign-in. It validates input,
// enforces email uniqueness, delegates hashing to a PasswordHasher, and
// returns an authenticated account or a typed failure.
type AccountService struct {
	Config   AccountConfig
	Accounts account.Repository
	Hasher   PasswordHasher
	Log      logging.Logger
}

// NewAccountService creates a new AccountService with the given account
// repository factory, password hasher, and configuration.
// Returns an error if the account repository cannot be created.
func NewAccountService(
	repoFactory account.RepositoryFactory,
	hasher PasswordHasher,
	cfg AccountConfig,
) (*AccountService, error) {
	log := logging.GetLogger("svc.websvc.account_service")

	accountRepo, err := repoFactory()
	if err != nil {
		return nil, fmt.Errorf("new account repo: %w", err)
	}

	if hasher == nil {
		hasher = NewBcryptHasher(cfg.BcryptCost)
	}

	return &AccountService{
		Config:   cfg,
		Accounts: accountRepo,
		Hasher:   hasher,
		Log:      log,
	}, nil
}

// NormalizeEmail trims surrounding whitespace and lowercases an email
// address. All lookups and inserts operate on the normalized form.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates a new account for the given email and password.
// The email is normalized first; the password is hashed before storage.
// Returns ErrMissingFields or ErrPasswordMismatch on invalid input and
// ErrEmailTaken if the email is already registered. Under concurrent
// registrations for the same email at most one call succeeds; the storage
// uniqueness constraint decides the winner.
func (s *AccountService) Register(ctx context.Context, email, password, confirm string) (_ *domain.Account, err error) {
	email = NormalizeEmail(email)

	log := s.Log.With(logging.Group("account", "email", email))

	defer func() {
		if err != nil {
			log.ErrorContext(ctx, "register failed", "error", err)
		} else {
			log.DebugContext(ctx, "account registered")
		}
	}()

	if email == "" || password == "" || confirm == "" {
		return nil, domain.ErrMissingFields
	}

	if password != confirm {
		return nil, domain.ErrPasswordMismatch
	}

	// Fast-path duplicate check; the insert below still catches races.
	if _, exists, err := s.Accounts.GetAccountByEmail(ctx, email); err != nil {
		if !errors.Is(err, domain.ErrAccountNotFound) {
			return nil, fmt.Errorf("get account: %w", err)
		}
	} else if exists {
		return nil, domain.ErrEmailTaken
	}

	passwordHash, err := s.Hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	if err := s.Accounts.CreateAccount(ctx, email, passwordHash); err != nil {
		return nil, fmt.Errorf("create account: %w", err)
	}

	// Re-read the created row to obtain its assigned id.
	created, ok, err := s.Accounts.GetAccountByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("get created account: %w", err)
	} else if !ok {
		return nil, fmt.Errorf("get created account: %w", domain.ErrAccountNotFound)
	}

	return created, nil
}

// Authenticate verifies an email/password pair and returns the matching
// account. Unknown email and wrong password both yield ErrInvalidCredentials
// so callers cannot tell registered emails apart from unregistered ones.
func (s *AccountService) Authenticate(ctx context.Context, email, password string) (_ *domain.Account, err error) {
	email = NormalizeEmail(email)

	log := s.Log.With(logging.Group("account", "email", email))

	defer func() {
		if err != nil {
			log.ErrorContext(ctx, "authenticate failed", "error", err)
		} else {
			log.DebugContext(ctx, "account authenticated")
		}
	}()

	if email == "" || password == "" {
		return nil, domain.ErrMissingFields
	}

	acct, ok, err := s.Accounts.GetAccountByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			return nil, errors.Join(domain.ErrInvalidCredentials, err)
		}

		return nil, fmt.Errorf("get account: %w", err)
	} else if !ok {
		return nil, domain.ErrInvalidCredentials
	}

	match, err := s.Hasher.Verify(password, acct.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("verify password: %w", err)
	}

	if !match {
		return nil, domain.ErrInvalidCredentials
	}

	return acct, nil
}

// Close releases resources held by the service, such as database connections.
// Returns an error if cleanup fails.
func (s *AccountService) Close() error {
	if err := s.Accounts.Close(); err != nil {
		return fmt.Errorf("close account repo: %w", err)
	}

	return nil
}
