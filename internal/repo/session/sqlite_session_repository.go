package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/mkrupp/webauth/internal/domain"
	"github.com/mkrupp/webauth/internal/infra/logging"
)

// SQLiteSessionRepositoryConfig holds configuration for the SQLite session repository.
type SQLiteSessionRepositoryConfig struct {
	// DatabasePath is the filesystem path to the SQLite database file
	DatabasePath string `env:"DATABASE_PATH" default:"var/storage/websvc_sessions.db"`
}

// SQLiteSessionRepository implements Repository using SQLite as the storage
// backend. Flash take is a read-then-clear under the write lock so that at
// most one reader observes a stored flash.
type SQLiteSessionRepository struct {
	db        *sql.DB
	log       logging.Logger
	writeLock *sync.Mutex // go-sqlite does not support concurrent writes
}

var _ Repository = (*SQLiteSessionRepository)(nil)

// SQLiteSessionRepositoryFactory creates a factory function that returns a new
// SQLiteSessionRepository. The factory function implements the RepositoryFactory type.
func SQLiteSessionRepositoryFactory(cfg SQLiteSessionRepositoryConfig) RepositoryFactory {
	return func() (Repository, error) {
		return NewSQLiteSessionRepository(cfg)
	}
}

// NewSQLiteSessionRepository creates a new SQLiteSessionRepository with the given
// configuration. It initializes the database connection and creates the schema if needed.
// Returns an error if database connection or initialization fails.
func NewSQLiteSessionRepository(cfg SQLiteSessionRepositoryConfig) (*SQLiteSessionRepository, error) {
	log := logging.GetLogger("repo.session.sqlite_session_repository").With(
		logging.Group("db", "path", cfg.DatabasePath),
	)

	db, err := sql.Open("sqlite", cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping db: %w", err)
	}

	if err := initializeDB(db); err != nil {
		return nil, fmt.Errorf("initialize db: %w", err)
	}

	db.SetConnMaxLifetime(5 * time.Minute)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	return &SQLiteSessionRepository{
		db:        db,
		log:       log,
		writeLock: new(sync.Mutex),
	}, nil
}

func initializeDB(db *sql.DB) (err error) {
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS sessions (
			id         TEXT    PRIMARY KEY,
			account_id INTEGER NOT NULL,
			expires_at INTEGER NOT NULL,
			flash_kind TEXT    NOT NULL DEFAULT '',
			flash_text TEXT    NOT NULL DEFAULT '',
			created_at INTEGER NOT NULL
		)
	`); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}

	return nil
}

// CreateSession implements Repository.CreateSession using SQLite.
func (r *SQLiteSessionRepository) CreateSession(ctx context.Context, sess *domain.Session) (err error) {
	r.writeLock.Lock()
	defer r.writeLock.Unlock()

	_, err = r.db.ExecContext(ctx,
		"INSERT INTO sessions (id, account_id, expires_at, created_at) VALUES (?, ?, ?, ?)",
		sess.ID,
		sess.AccountID,
		sess.ExpiresAt,
		sess.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}

	return nil
}

// GetSession implements Repository.GetSession using SQLite.
func (r *SQLiteSessionRepository) GetSession(ctx context.Context, id string) (*domain.Session, bool, error) {
	var sess domain.Session

	err := r.db.QueryRowContext(ctx,
		"SELECT id, account_id, expires_at, created_at FROM sessions WHERE id = ?",
		id,
	).Scan(&sess.ID, &sess.AccountID, &sess.ExpiresAt, &sess.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = errors.Join(domain.ErrSessionNotFound, err)
		}

		return nil, false, fmt.Errorf("query session: %w", err)
	}

	return &sess, true, nil
}

// DeleteSession implements Repository.DeleteSession using SQLite. Deleting a
// row that does not exist is a no-op, which makes session destruction
// idempotent.
func (r *SQLiteSessionRepository) DeleteSession(ctx context.Context, id string) error {
	r.writeLock.Lock()
	defer r.writeLock.Unlock()

	if _, err := r.db.ExecContext(ctx, "DELETE FROM sessions WHERE id = ?", id); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}

	return nil
}

// SetFlash implements Repository.SetFlash using SQLite.
func (r *SQLiteSessionRepository) SetFlash(ctx context.Context, id, kind, text string) error {
	r.writeLock.Lock()
	defer r.writeLock.Unlock()

	res, err := r.db.ExecContext(ctx,
		"UPDATE sessions SET flash_kind = ?, flash_text = ? WHERE id = ?",
		kind, text, id,
	)
	if err != nil {
		return fmt.Errorf("update flash: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}

	if affected == 0 {
		return domain.ErrSessionNotFound
	}

	return nil
}

// TakeFlash implements Repository.TakeFlash using SQLite. The read and the
// clearing update run under the repository write lock, so concurrent takers
// cannot both observe the same flash.
func (r *SQLiteSessionRepository) TakeFlash(ctx context.Context, id string) (*domain.Flash, bool, error) {
	r.writeLock.Lock()
	defer r.writeLock.Unlock()

	var flash domain.Flash

	err := r.db.QueryRowContext(ctx,
		"SELECT flash_kind, flash_text FROM sessions WHERE id = ?",
		id,
	).Scan(&flash.Kind, &flash.Text)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}

		return nil, false, fmt.Errorf("query flash: %w", err)
	}

	if flash.Kind == "" && flash.Text == "" {
		return nil, false, nil
	}

	if _, err := r.db.ExecContext(ctx,
		"UPDATE sessions SET flash_kind = '', flash_text = '' WHERE id = ?",
		id,
	); err != nil {
		return nil, false, fmt.Errorf("clear flash: %w", err)
	}

	return &flash, true, nil
}

// DeleteExpired implements Repository.DeleteExpired using SQLite.
func (r *SQLiteSessionRepository) DeleteExpired(ctx context.Context, now int64) error {
	r.writeLock.Lock()
	defer r.writeLock.Unlock()

	if _, err := r.db.ExecContext(ctx, "DELETE FROM sessions WHERE expires_at <= ?", now); err != nil {
		return fmt.Errorf("delete expired sessions: %w", err)
	}

	return nil
}

// Close implements Repository.Close by closing the database connection.
func (r *SQLiteSessionRepository) Close() error {
	if err := r.db.Close(); err != nil {
		return fmt.Errorf("close db: %w", err)
	}

	return nil
}
