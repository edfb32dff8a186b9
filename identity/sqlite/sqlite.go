// Package sqlite implements identity.Directory on SQLite using the pure-Go
// modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/MrEthical07/goIssuer/identity"
)

const schema = `
CREATE TABLE IF NOT EXISTS issuer_identity (
	id            TEXT PRIMARY KEY,
	email         TEXT NOT NULL UNIQUE,
	password_hash TEXT,
	created_at    INTEGER NOT NULL,
	updated_at    INTEGER NOT NULL
)`

type Store struct {
	sqlDB *sql.DB
}

// Open opens path and applies the schema. ":memory:" opens a private
// in-memory database restricted to one connection.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	dsn := path
	if path != ":memory:" {
		dsn = path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if path == ":memory:" {
		sqlDB.SetMaxOpenConns(1)
	}

	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := sqlDB.Exec(schema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Store{sqlDB: sqlDB}, nil
}

func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func (s *Store) ResolveOrCreateSubject(ctx context.Context, email string) (string, error) {
	now := time.Now().UTC().UnixMilli()
	var id string
	err := s.sqlDB.QueryRowContext(ctx, `
		INSERT INTO issuer_identity (id, email, created_at, updated_at)
		VALUES (?1, ?2, ?3, ?3)
		ON CONFLICT (email) DO UPDATE SET updated_at = excluded.updated_at
		RETURNING id`,
		uuid.NewString(), identity.NormalizeEmail(email), now,
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("resolve identity: %w", err)
	}
	return id, nil
}

func (s *Store) PasswordHash(ctx context.Context, email string) (string, error) {
	var hash sql.NullString
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT password_hash FROM issuer_identity WHERE email = ?1`,
		identity.NormalizeEmail(email),
	).Scan(&hash)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", identity.ErrNotFound
		}
		return "", fmt.Errorf("load password hash: %w", err)
	}
	if !hash.Valid || hash.String == "" {
		return "", identity.ErrNotFound
	}
	return hash.String, nil
}

func (s *Store) SetPasswordHash(ctx context.Context, email, hash string) error {
	now := time.Now().UTC().UnixMilli()
	_, err := s.sqlDB.ExecContext(ctx, `
		INSERT INTO issuer_identity (id, email, password_hash, created_at, updated_at)
		VALUES (?1, ?2, ?3, ?4, ?4)
		ON CONFLICT (email) DO UPDATE SET password_hash = excluded.password_hash, updated_at = excluded.updated_at`,
		uuid.NewString(), identity.NormalizeEmail(email), hash, now,
	)
	if err != nil {
		return fmt.Errorf("store password hash: %w", err)
	}
	return nil
}

var _ identity.Directory = (*Store)(nil)
