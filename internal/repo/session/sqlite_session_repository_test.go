package session_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/mkrupp/webauth/internal/domain"
	"github.com/mkrupp/webauth/internal/repo/session"
)

func setupTestRepo(t *testing.T) *session.SQLiteSessionRepository {
	t.Helper()

	repo, err := session.NewSQLiteSessionRepository(session.SQLiteSessionRepositoryConfig{
		DatabasePath: filepath.Join(t.TempDir(), "sessions.db"),
	})
	if err != nil {
		t.Fatalf("new session repo: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	return repo
}

func newTestSession(id string, accountID int64) *domain.Session {
	now := time.Now().Unix()

	return &domain.Session{
		ID:        id,
		AccountID: accountID,
		ExpiresAt: now + 3600,
		CreatedAt: now,
	}
}

func TestSQLiteSessionRepository_CreateAndGet(t *testing.T) {
	t.Parallel()

	repo := setupTestRepo(t)
	ctx := context.Background()

	sess := newTestSession("sess-1", 7)
	if err := repo.CreateSession(ctx, sess); err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}

	got, ok, err := repo.GetSession(ctx, "sess-1")
	if err != nil || !ok {
		t.Fatalf("GetSession() = (%v, %v)", ok, err)
	}
	if got.AccountID != 7 || got.ExpiresAt != sess.ExpiresAt {
		t.Errorf("GetSession() = %+v, want %+v", got, sess)
	}
}

func TestSQLiteSessionRepository_GetMissing(t *testing.T) {
	t.Parallel()

	repo := setupTestRepo(t)

	if _, _, err := repo.GetSession(context.Background(), "nope"); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Errorf("GetSession() error = %v, want ErrSessionNotFound", err)
	}
}

func TestSQLiteSessionRepository_DeleteIdempotent(t *testing.T) {
	t.Parallel()

	repo := setupTestRepo(t)
	ctx := context.Background()

	if err := repo.CreateSession(ctx, newTestSession("sess-1", 7)); err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}

	if err := repo.DeleteSession(ctx, "sess-1"); err != nil {
		t.Fatalf("DeleteSession() error = %v", err)
	}

	if err := repo.DeleteSession(ctx, "sess-1"); err != nil {
		t.Errorf("DeleteSession() of absent row error = %v, want nil", err)
	}

	if _, ok, _ := repo.GetSession(ctx, "sess-1"); ok {
		t.Error("GetSession() = true after delete")
	}
}

func TestSQLiteSessionRepository_Flash(t *testing.T) {
	t.Parallel()

	repo := setupTestRepo(t)
	ctx := context.Background()

	if err := repo.CreateSession(ctx, newTestSession("sess-1", 7)); err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}

	// Fresh session has no flash
	if _, ok, err := repo.TakeFlash(ctx, "sess-1"); err != nil || ok {
		t.Errorf("TakeFlash() on fresh session = (%v, %v), want (false, nil)", ok, err)
	}

	if err := repo.SetFlash(ctx, "sess-1", "success", "Welcome!"); err != nil {
		t.Fatalf("SetFlash() error = %v", err)
	}

	flash, ok, err := repo.TakeFlash(ctx, "sess-1")
	if err != nil || !ok {
		t.Fatalf("TakeFlash() = (%v, %v), want flash", ok, err)
	}
	if flash.Kind != "success" || flash.Text != "Welcome!" {
		t.Errorf("TakeFlash() = %+v", flash)
	}

	// The read cleared it
	if _, ok, err := repo.TakeFlash(ctx, "sess-1"); err != nil || ok {
		t.Errorf("second TakeFlash() = (%v, %v), want (false, nil)", ok, err)
	}
}

func TestSQLiteSessionRepository_SetFlashMissingSession(t *testing.T) {
	t.Parallel()

	repo := setupTestRepo(t)

	err := repo.SetFlash(context.Background(), "nope", "error", "text")
	if !errors.Is(err, domain.ErrSessionNotFound) {
		t.Errorf("SetFlash() error = %v, want ErrSessionNotFound", err)
	}
}

func TestSQLiteSessionRepository_TakeFlashMissingSession(t *testing.T) {
	t.Parallel()

	repo := setupTestRepo(t)

	if _, ok, err := repo.TakeFlash(context.Background(), "nope"); err != nil || ok {
		t.Errorf("TakeFlash() on absent session = (%v, %v), want (false, nil)", ok, err)
	}
}

func TestSQLiteSessionRepository_DeleteExpired(t *testing.T) {
	t.Parallel()

	repo := setupTestRepo(t)
	ctx := context.Background()

	now := time.Now().Unix()

	stale := &domain.Session{ID: "stale", AccountID: 1, ExpiresAt: now - 60, CreatedAt: now - 120}
	live := &domain.Session{ID: "live", AccountID: 1, ExpiresAt: now + 3600, CreatedAt: now}

	for _, sess := range []*domain.Session{stale, live} {
		if err := repo.CreateSession(ctx, sess); err != nil {
			t.Fatalf("CreateSession(%s) error = %v", sess.ID, err)
		}
	}

	if err := repo.DeleteExpired(ctx, now); err != nil {
		t.Fatalf("DeleteExpired() error = %v", err)
	}

	if _, ok, _ := repo.GetSession(ctx, "stale"); ok {
		t.Error("DeleteExpired() left the expired row in place")
	}

	if _, ok, err := repo.GetSession(ctx, "live"); err != nil || !ok {
		t.Errorf("DeleteExpired() removed the live row: (%v, %v)", ok, err)
	}
}
