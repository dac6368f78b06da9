// Package sqlite is the local credential fallback. It lives in a single file next to
// the service so sign-in keeps working while the primary store is down.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"storefront/internal/domain"
	"storefront/internal/repository"
)

// IdentityStore keeps identities in a SQLite database.
type IdentityStore struct {
	db *sql.DB
}

var _ repository.IdentityRepository = (*IdentityStore)(nil)

// Open opens (creating if needed) the database at path and applies the schema.
// Use ":memory:" for a throwaway store.
func Open(ctx context.Context, path string) (*IdentityStore, error) {
	dsn := path
	if path != ":memory:" {
		dsn = "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// one connection: SQLite serialises writers anyway and :memory: is per connection
	db.SetMaxOpenConns(1)

	_, err = db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			email TEXT NOT NULL COLLATE NOCASE UNIQUE,
			password_hash TEXT NOT NULL,
			role TEXT NOT NULL DEFAULT 'user',
			address TEXT NOT NULL DEFAULT '',
			phone TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL
		)
	`)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return &IdentityStore{db: db}, nil
}

func (s *IdentityStore) Close() error { return s.db.Close() }

// Initialize inserts accounts when the store is empty. A store that already holds
// any identity is left untouched, so repeated starts do not duplicate accounts.
func (s *IdentityStore) Initialize(ctx context.Context, accounts []domain.Identity) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var n int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	for i := range accounts {
		if err := insert(ctx, tx, &accounts[i]); err != nil {
			return fmt.Errorf("failed to seed %s: %w", accounts[i].Email, err)
		}
	}
	return tx.Commit()
}

// Count returns the number of stored identities.
func (s *IdentityStore) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n)
	return n, err
}

const columns = `id, name, email, password_hash, role, address, phone, created_at`

type scanner interface {
	Scan(dest ...any) error
}

func scan(row scanner) (*domain.Identity, error) {
	var (
		i       domain.Identity
		role    string
		created string
	)
	err := row.Scan(&i.ID, &i.Name, &i.Email, &i.PasswordHash, &role, &i.Address, &i.Phone, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	i.Role = domain.Role(role)
	if i.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
		return nil, fmt.Errorf("bad created_at for %s: %w", i.ID, err)
	}
	return &i, nil
}

func (s *IdentityStore) FindByEmail(ctx context.Context, email string) (*domain.Identity, error) {
	return scan(s.db.QueryRowContext(ctx, `SELECT `+columns+` FROM users WHERE email = ?`, strings.TrimSpace(email)))
}

func (s *IdentityStore) FindByID(ctx context.Context, id string) (*domain.Identity, error) {
	return scan(s.db.QueryRowContext(ctx, `SELECT `+columns+` FROM users WHERE id = ?`, id))
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insert(ctx context.Context, db execer, i *domain.Identity) error {
	if i.ID == "" {
		i.ID = uuid.NewString()
	}
	if i.CreatedAt.IsZero() {
		i.CreatedAt = time.Now().UTC()
	}
	if i.Role == "" {
		i.Role = domain.RoleUser
	}
	_, err := db.ExecContext(ctx, `INSERT INTO users (`+columns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		i.ID, i.Name, i.Email, i.PasswordHash, string(i.Role), i.Address, i.Phone,
		i.CreatedAt.UTC().Format(time.RFC3339Nano))
	if isUniqueViolation(err) {
		return domain.ErrUserExists
	}
	return err
}

func (s *IdentityStore) Create(ctx context.Context, i *domain.Identity) error {
	return insert(ctx, s.db, i)
}

func (s *IdentityStore) Update(ctx context.Context, i *domain.Identity) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE users SET name = ?, email = ?, password_hash = ?, role = ?, address = ?, phone = ?
		WHERE id = ?`,
		i.Name, i.Email, i.PasswordHash, string(i.Role), i.Address, i.Phone, i.ID)
	if isUniqueViolation(err) {
		return domain.ErrUserExists
	}
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	return se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE || se.Code() == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
}
