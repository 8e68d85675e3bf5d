package account

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/mkrupp/webauth/internal/domain"
	"github.com/mkrupp/webauth/internal/infra/logging"
)

// SQLiteAccountRepositoryConfig holds configuration for the SQLite account repository.
type SQLiteAccountRepositoryConfig struct {
	// DatabasePath is the filesystem path to the SQLite database file
	DatabasePath string `env:"DATABASE_PATH" default:"var/storage/websvc.db"`
}

// SQLiteAccountRepository implements Repository using SQLite as the storage
// backend. Email uniqueness is enforced by a UNIQUE constraint on the
// accounts table, so a duplicate insert fails in the database rather than
// racing an application-level check.
type SQLiteAccountRepository struct {
	db        *sql.DB
	log       logging.Logger
	writeLock *sync.Mutex // go-sqlite does not support concurrent writes
}

var _ Repository = (*SQLiteAccountRepository)(nil)

// SQLiteAccountRepositoryFactory creates a factory function that returns a new
// SQLiteAccountRepository. The factory function implements the RepositoryFactory type.
func SQLiteAccountRepositoryFactory(cfg SQLiteAccountRepositoryConfig) RepositoryFactory {
	return func() (Repository, error) {
		return NewSQLiteAccountRepository(cfg)
	}
}

// NewSQLiteAccountRepository creates a new SQLiteAccountRepository with the given
// configuration. It initializes the database connection and creates the schema if needed.
// Returns an error if database connection or initialization fails.
func NewSQLiteAccountRepository(cfg SQLiteAccountRepositoryConfig) (*SQLiteAccountRepository, error) {
	log := logging.GetLogger("repo.account.sqlite_account_repository").With(
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

	return &SQLiteAccountRepository{
		db:        db,
		log:       log,
		writeLock: new(sync.Mutex),
	}, nil
}

func initializeDB(db *sql.DB) (err error) {
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS accounts (
			id            INTEGER PRIMARY KEY AUTOINCREMENT,
			email         TEXT    UNIQUE NOT NULL,
			password_hash TEXT    NOT NULL,
			created_at    INTEGER NOT NULL
		)
	`); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}

	return nil
}

// CreateAccount implements Repository.CreateAccount using SQLite.
func (r *SQLiteAccountRepository) CreateAccount(ctx context.Context, email, passwordHash string) (err error) {
	r.writeLock.Lock()
	defer r.writeLock.Unlock()

	_, err = r.db.ExecContext(ctx,
		"INSERT INTO accounts (email, password_hash, created_at) VALUES (?, ?, ?)",
		email,
		passwordHash,
		time.Now().Unix(),
	)
	if err != nil {
		var liteErr *sqlite.Error
		if errors.As(err, &liteErr) {
			switch liteErr.Code() {
			case sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
				fallthrough
			case sqlite3.SQLITE_CONSTRAINT_UNIQUE:
				err = errors.Join(domain.ErrEmailTaken, err)
			default:
				break
			}
		}

		return fmt.Errorf("insert account: %w", err)
	}

	return nil
}

// GetAccountByEmail implements Repository.GetAccountByEmail using SQLite.
func (r *SQLiteAccountRepository) GetAccountByEmail(ctx context.Context, email string) (*domain.Account, bool, error) {
	return r.getAccount(ctx,
		"SELECT id, email, password_hash, created_at FROM accounts WHERE email = ?",
		email,
	)
}

// GetAccountByID implements Repository.GetAccountByID using SQLite.
func (r *SQLiteAccountRepository) GetAccountByID(ctx context.Context, id int64) (*domain.Account, bool, error) {
	return r.getAccount(ctx,
		"SELECT id, email, password_hash, created_at FROM accounts WHERE id = ?",
		id,
	)
}

func (r *SQLiteAccountRepository) getAccount(ctx context.Context, query string, arg any) (*domain.Account, bool, error) {
	var account domain.Account

	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&account.ID, &account.Email, &account.PasswordHash, &account.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = errors.Join(domain.ErrAccountNotFound, err)
		}

		return nil, false, fmt.Errorf("query account: %w", err)
	}

	return &account, true, nil
}

// Close implements Repository.Close by closing the database connection.
func (r *SQLiteAccountRepository) Close() error {
	if err := r.db.Close(); err != nil {
		return fmt.Errorf("close db: %w", err)
	}

	return nil
}
