package websvc_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/mkrupp/webauth/internal/domain"
	"github.com/mkrupp/webauth/internal/infra/logging"
	"github.com/mkrupp/webauth/internal/repo/account"
	"github.com/mkrupp/webauth/internal/repo/session"
	"github.com/mkrupp/webauth/internal/svc/websvc"
)

func setupTestSessionManager(t *testing.T) (*websvc.SessionManager, session.Repository, account.Repository) {
	t.Helper()

	dir := t.TempDir()

	sessionRepo, err := session.NewSQLiteSessionRepository(session.SQLiteSessionRepositoryConfig{
		DatabasePath: filepath.Join(dir, "sessions.db"),
	})
	if err != nil {
		t.Fatalf("new session repo: %v", err)
	}
	t.Cleanup(func() { sessionRepo.Close() })

	accountRepo, err := account.NewSQLiteAccountRepository(account.SQLiteAccountRepositoryConfig{
		DatabasePath: filepath.Join(dir, "accounts.db"),
	})
	if err != nil {
		t.Fatalf("new account repo: %v", err)
	}
	t.Cleanup(func() { accountRepo.Close() })

	mgr := &websvc.SessionManager{
		Config: websvc.SessionConfig{
			TTLSeconds:           3600,
			SweepIntervalSeconds: 3600,
		},
		Sessions: sessionRepo,
		Accounts: accountRepo,
		Log:      logging.NewNopLogger(),
	}

	return mgr, sessionRepo, accountRepo
}

func createTestAccount(t *testing.T, repo account.Repository, email string) *domain.Account {
	t.Helper()

	ctx := context.Background()

	if err := repo.CreateAccount(ctx, email, "hash"); err != nil {
		t.Fatalf("create account: %v", err)
	}

	acct, _, err := repo.GetAccountByEmail(ctx, email)
	if err != nil {
		t.Fatalf("get account: %v", err)
	}

	return acct
}

func TestSessionManager_CreateAndValidate(t *testing.T) {
	t.Parallel()

	mgr, _, accountRepo := setupTestSessionManager(t)
	ctx := context.Background()

	acct := createTestAccount(t, accountRepo, "a@b.com")

	sessionID, err := mgr.Create(ctx, acct.ID)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if sessionID == "" {
		t.Fatal("Create() returned empty session id")
	}

	resolved, ok, err := mgr.Validate(ctx, sessionID)
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if !ok {
		t.Fatal("Validate() = false for fresh session")
	}
	if resolved.ID != acct.ID || resolved.Email != acct.Email {
		t.Errorf("Validate() account = %+v, want %+v", resolved, acct)
	}
}

func TestSessionManager_TokensAreUnique(t *testing.T) {
	t.Parallel()

	mgr, _, accountRepo := setupTestSessionManager(t)
	ctx := context.Background()

	acct := createTestAccount(t, accountRepo, "a@b.com")

	seen := make(map[string]bool)
	for i := 0; i < 16; i++ {
		sessionID, err := mgr.Create(ctx, acct.ID)
		if err != nil {
			t.Fatalf("Create() error = %v", err)
		}
		if seen[sessionID] {
			t.Fatalf("Create() returned duplicate token %q", sessionID)
		}
		seen[sessionID] = true
	}
}

func TestSessionManager_DestroyedSessionNeverValidates(t *testing.T) {
	t.Parallel()

	mgr, _, accountRepo := setupTestSessionManager(t)
	ctx := context.Background()

	acct := createTestAccount(t, accountRepo, "a@b.com")

	sessionID, err := mgr.Create(ctx, acct.ID)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if err := mgr.Destroy(ctx, sessionID); err != nil {
		t.Fatalf("Destroy() error = %v", err)
	}

	if _, ok, err := mgr.Validate(ctx, sessionID); err != nil || ok {
		t.Errorf("Validate() after destroy = (%v, %v), want (false, nil)", ok, err)
	}

	// Destroy is idempotent
	if err := mgr.Destroy(ctx, sessionID); err != nil {
		t.Errorf("Destroy() of absent session error = %v, want nil", err)
	}

	if err := mgr.Destroy(ctx, ""); err != nil {
		t.Errorf("Destroy() of empty session id error = %v, want nil", err)
	}
}

func TestSessionManager_ExpiredSessionInvalid(t *testing.T) {
	t.Parallel()

	mgr, sessionRepo, accountRepo := setupTestSessionManager(t)
	ctx := context.Background()

	acct := createTestAccount(t, accountRepo, "a@b.com")

	// Insert a session whose expiry has already passed
	expired := &domain.Session{
		ID:        "expired-session",
		AccountID: acct.ID,
		ExpiresAt: time.Now().Unix() - 60,
		CreatedAt: time.Now().Unix() - 120,
	}
	if err := sessionRepo.CreateSession(ctx, expired); err != nil {
		t.Fatalf("create session: %v", err)
	}

	if _, ok, err := mgr.Validate(ctx, expired.ID); err != nil || ok {
		t.Errorf("Validate() of expired session = (%v, %v), want (false, nil)", ok, err)
	}

	// Validation evicts the expired row
	if _, ok, _ := sessionRepo.GetSession(ctx, expired.ID); ok {
		t.Error("expired session row still present after validation")
	}
}

func TestSessionManager_OrphanedSessionInvalid(t *testing.T) {
	t.Parallel()

	mgr, sessionRepo, _ := setupTestSessionManager(t)
	ctx := context.Background()

	// Session referencing an account id that does not resolve
	orphan := &domain.Session{
		ID:        "orphan-session",
		AccountID: 999,
		ExpiresAt: time.Now().Unix() + 3600,
		CreatedAt: time.Now().Unix(),
	}
	if err := sessionRepo.CreateSession(ctx, orphan); err != nil {
		t.Fatalf("create session: %v", err)
	}

	if _, ok, err := mgr.Validate(ctx, orphan.ID); err != nil || ok {
		t.Errorf("Validate() of orphaned session = (%v, %v), want (false, nil)", ok, err)
	}

	if _, ok, _ := sessionRepo.GetSession(ctx, orphan.ID); ok {
		t.Error("orphaned session row still present after validation")
	}
}

func TestSessionManager_AnonymousSessionNeverAuthenticates(t *testing.T) {
	t.Parallel()

	mgr, _, _ := setupTestSessionManager(t)
	ctx := context.Background()

	sessionID, err := mgr.CreateAnonymous(ctx)
	if err != nil {
		t.Fatalf("CreateAnonymous() error = %v", err)
	}

	if _, ok, err := mgr.Validate(ctx, sessionID); err != nil || ok {
		t.Errorf("Validate() of anonymous session = (%v, %v), want (false, nil)", ok, err)
	}

	// But it still carries a flash
	if err := mgr.SetFlash(ctx, sessionID, "error", "Please sign in first."); err != nil {
		t.Fatalf("SetFlash() error = %v", err)
	}

	flash, ok, err := mgr.TakeFlash(ctx, sessionID)
	if err != nil || !ok {
		t.Fatalf("TakeFlash() = (%v, %v), want flash", ok, err)
	}
	if flash.Kind != "error" || flash.Text != "Please sign in first." {
		t.Errorf("TakeFlash() = %+v, want error flash", flash)
	}
}

func TestSessionManager_FlashConsumedAtMostOnce(t *testing.T) {
	t.Parallel()

	mgr, _, accountRepo := setupTestSessionManager(t)
	ctx := context.Background()

	acct := createTestAccount(t, accountRepo, "a@b.com")

	sessionID, err := mgr.Create(ctx, acct.ID)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if err := mgr.SetFlash(ctx, sessionID, "success", "Welcome!"); err != nil {
		t.Fatalf("SetFlash() error = %v", err)
	}

	flash, ok, err := mgr.TakeFlash(ctx, sessionID)
	if err != nil || !ok {
		t.Fatalf("first TakeFlash() = (%v, %v), want flash", ok, err)
	}
	if flash.Kind != "success" || flash.Text != "Welcome!" {
		t.Errorf("TakeFlash() = %+v, want success flash", flash)
	}

	if _, ok, err := mgr.TakeFlash(ctx, sessionID); err != nil || ok {
		t.Errorf("second TakeFlash() = (%v, %v), want (false, nil)", ok, err)
	}
}

func TestSessionManager_SetFlashOnAbsentSession(t *testing.T) {
	t.Parallel()

	mgr, _, _ := setupTestSessionManager(t)
	ctx := context.Background()

	if err := mgr.SetFlash(ctx, "no-such-session", "error", "nope"); err == nil {
		t.Error("SetFlash() on absent session error = nil, want ErrSessionNotFound")
	}

	if err := mgr.SetFlash(ctx, "", "error", "nope"); err == nil {
		t.Error("SetFlash() on empty session id error = nil, want ErrSessionNotFound")
	}
}

func TestSessionManager_ValidateEmptyID(t *testing.T) {
	t.Parallel()

	mgr, _, _ := setupTestSessionManager(t)

	if _, ok, err := mgr.Validate(context.Background(), ""); err != nil || ok {
		t.Errorf("Validate(\"\") = (%v, %v), want (false, nil)", ok, err)
	}
}
