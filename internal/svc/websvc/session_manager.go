package websvc

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"github.com/mkrupp/webauth/internal/domain"
	"github.com/mkrupp/webauth/internal/infra/logging"
	"github.com/mkrupp/webauth/internal/repo/account"
	"github.com/mkrupp/webauth/internal/repo/session"
	"github.com/mkrupp/webauth/internal/util/encoding"
)

// sessionTokenBytes is the entropy of a session token before encoding.
const sessionTokenBytes = 32

// SessionConfig contains configuration parameters for the session manager.
type SessionConfig struct {
	// TTLSeconds is the fixed session lifetime in seconds
	TTLSeconds int64 `env:"SESSION_TTL" default:"604800"` // 7d

	// SweepIntervalSeconds is the interval between expired-session sweeps
	SweepIntervalSeconds int64 `env:"SWEEP_INTERVAL" default:"3600"`
}

// SessionManager issues, validates, and destroys sessions, and carries
// one-shot flash messages on them. Session state lives in the session
// repository; validation never trusts a row past its expiry or one whose
// account no longer resolves.
type SessionManager struct {
	Config   SessionConfig
	Sessions session.Repository
	Accounts account.Repository
	Log      logging.Logger
}

// NewSessionManager creates a new SessionManager with the given repository
// factories and configuration.
// Returns an error if either repository cannot be created.
func NewSessionManager(
	sessionFactory session.RepositoryFactory,
	accountFactory account.RepositoryFactory,
	cfg SessionConfig,
) (*SessionManager, error) {
	log := logging.GetLogger("svc.websvc.session_manager")

	sessionRepo, err := sessionFactory()
	if err != nil {
		return nil, fmt.Errorf("new session repo: %w", err)
	}

	accountRepo, err := accountFactory()
	if err != nil {
		return nil, fmt.Errorf("new account repo: %w", err)
	}

	return &SessionManager{
		Config:   cfg,
		Sessions: sessionRepo,
		Accounts: accountRepo,
		Log:      log,
	}, nil
}

func newSessionID() (string, error) {
	token := make([]byte, sessionTokenBytes)
	if _, err := rand.Read(token); err != nil {
		return "", fmt.Errorf("read random: %w", err)
	}

	return encoding.EncodeCrockfordB32LC(token), nil
}

// Create issues a fresh session bound to the given account id, expiring a
// fixed TTL from now. Returns the session id.
func (m *SessionManager) Create(ctx context.Context, accountID int64) (_ string, err error) {
	log := m.Log.With(logging.Group("session", "accountId", accountID))

	defer func() {
		if err != nil {
			log.ErrorContext(ctx, "create session failed", "error", err)
		} else {
			log.DebugContext(ctx, "session created")
		}
	}()

	sessionID, err := newSessionID()
	if err != nil {
		return "", fmt.Errorf("new session id: %w", err)
	}

	now := time.Now().Unix()
	sess := &domain.Session{
		ID:        sessionID,
		AccountID: accountID,
		ExpiresAt: now + m.Config.TTLSeconds,
		CreatedAt: now,
	}

	if err := m.Sessions.CreateSession(ctx, sess); err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}

	return sessionID, nil
}

// CreateAnonymous issues a session bound to no account. Anonymous sessions
// never validate; they exist to carry a flash across a redirect.
func (m *SessionManager) CreateAnonymous(ctx context.Context) (string, error) {
	return m.Create(ctx, 0)
}

// Validate resolves a session id to its owning account. Returns the account
// and true only if the session exists, has not expired, and its account still
// resolves; expired or orphaned rows are evicted on sight. An absent, empty,
// or anonymous session id yields nil and false without error.
func (m *SessionManager) Validate(ctx context.Context, sessionID string) (*domain.Account, bool, error) {
	if sessionID == "" {
		return nil, false, nil
	}

	sess, ok, err := m.Sessions.GetSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			return nil, false, nil
		}

		return nil, false, fmt.Errorf("get session: %w", err)
	} else if !ok {
		return nil, false, nil
	}

	if sess.ExpiresAt <= time.Now().Unix() {
		if err := m.Sessions.DeleteSession(ctx, sessionID); err != nil {
			m.Log.WarnContext(ctx, "evict expired session failed", "error", err)
		}

		return nil, false, nil
	}

	if sess.AccountID == 0 {
		return nil, false, nil
	}

	acct, ok, err := m.Accounts.GetAccountByID(ctx, sess.AccountID)
	if err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			// Session references an account that no longer resolves.
			if err := m.Sessions.DeleteSession(ctx, sessionID); err != nil {
				m.Log.WarnContext(ctx, "evict orphaned session failed", "error", err)
			}

			return nil, false, nil
		}

		return nil, false, fmt.Errorf("get account: %w", err)
	} else if !ok {
		return nil, false, nil
	}

	return acct, true, nil
}

// Destroy removes a session. Destroying an absent or empty session id is not
// an error.
func (m *SessionManager) Destroy(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}

	if err := m.Sessions.DeleteSession(ctx, sessionID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}

	return nil
}

// SetFlash attaches a one-shot flash message to a session.
// Returns ErrSessionNotFound if the session does not exist.
func (m *SessionManager) SetFlash(ctx context.Context, sessionID, kind, text string) error {
	if sessionID == "" {
		return domain.ErrSessionNotFound
	}

	if err := m.Sessions.SetFlash(ctx, sessionID, kind, text); err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			return domain.ErrSessionNotFound
		}

		return fmt.Errorf("set flash: %w", err)
	}

	return nil
}

// TakeFlash reads and clears the flash message of a session. At most one
// caller observes a given flash.
func (m *SessionManager) TakeFlash(ctx context.Context, sessionID string) (*domain.Flash, bool, error) {
	if sessionID == "" {
		return nil, false, nil
	}

	flash, ok, err := m.Sessions.TakeFlash(ctx, sessionID)
	if err != nil {
		return nil, false, fmt.Errorf("take flash: %w", err)
	}

	return flash, ok, nil
}

// Sweep periodically evicts expired session rows until the context is
// cancelled. Validation does not depend on the sweep; it only reclaims
// storage.
func (m *SessionManager) Sweep(ctx context.Context) {
	interval := time.Duration(m.Config.SweepIntervalSeconds * int64(time.Second))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := m.Sessions.DeleteExpired(ctx, time.Now().Unix()); err != nil {
				m.Log.WarnContext(ctx, "sweep expired sessions failed", "error", err)
			}
		}
	}
}

// Close releases resources held by the manager, such as database connections.
// Returns an error if cleanup fails.
func (m *SessionManager) Close() error {
	if err := m.Sessions.Close(); err != nil {
		return fmt.Errorf("close session repo: %w", err)
	}

	if err := m.Accounts.Close(); err != nil {
		return fmt.Errorf("close account repo: %w", err)
	}

	return nil
}
