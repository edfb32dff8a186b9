// Package postgres implements identity.Directory on PostgreSQL through a
// pgx connection pool.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MrEthical07/goIssuer/identity"
)

// Schema creates the single table the adapter needs.
const Schema = `
CREATE TABLE IF NOT EXISTS issuer_identity (
	id            UUID PRIMARY KEY,
	email         TEXT NOT NULL UNIQUE,
	password_hash TEXT,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
)`

const (
	resolveQuery = `
	INSERT INTO issuer_identity (id, email)
	VALUES ($1, $2)
	ON CONFLICT (email)
	DO UPDATE SET updated_at = now()
	RETURNING id::text`

	passwordHashQuery = `SELECT password_hash FROM issuer_identity WHERE email = $1`

	setPasswordHashQuery = `
	INSERT INTO issuer_identity (id, email, password_hash)
	VALUES ($1, $2, $3)
	ON CONFLICT (email)
	DO UPDATE SET password_hash = EXCLUDED.password_hash, updated_at = now()`
)

type Store struct{ pool *pgxpool.Pool }

// New wraps an existing pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Open parses dsn, connects, and verifies the connection.
func Open(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Migrate applies Schema. It is safe to call on every start.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, Schema)
	return err
}

func (s *Store) Close() {
	if s != nil && s.pool != nil {
		s.pool.Close()
	}
}

func (s *Store) ResolveOrCreateSubject(ctx context.Context, email string) (string, error) {
	var id string
	err := s.pool.QueryRow(ctx, resolveQuery, uuid.NewString(), identity.NormalizeEmail(email)).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("resolve identity: %w", err)
	}
	return id, nil
}

func (s *Store) PasswordHash(ctx context.Context, email string) (string, error) {
	var hash *string
	err := s.pool.QueryRow(ctx, passwordHashQuery, identity.NormalizeEmail(email)).Scan(&hash)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", identity.ErrNotFound
		}
		return "", fmt.Errorf("load password hash: %w", err)
	}
	if hash == nil || *hash == "" {
		return "", identity.ErrNotFound
	}
	return *hash, nil
}

func (s *Store) SetPasswordHash(ctx context.Context, email, hash string) error {
	_, err := s.pool.Exec(ctx, setPasswordHashQuery, uuid.NewString(), identity.NormalizeEmail(email), hash)
	if err != nil {
		return fmt.Errorf("store password hash: %w", err)
	}
	return nil
}

var _ identity.Directory = (*Store)(nil)
