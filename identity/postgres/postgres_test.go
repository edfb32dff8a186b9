package postgres

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/MrEthical07/goIssuer/identity"
)

// Runs against a real database when GOISSUER_TEST_POSTGRES_DSN is set.
func openTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("GOISSUER_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("GOISSUER_TEST_POSTGRES_DSN not set")
	}

	ctx := context.Background()
	s, err := Open(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(s.Close)

	require.NoError(t, s.Migrate(ctx))
	_, err = s.pool.Exec(ctx, `DELETE FROM issuer_identity WHERE email LIKE '%@goissuer.test'`)
	require.NoError(t, err)
	return s
}

func TestPostgresResolveUpsert(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	id1, err := s.ResolveOrCreateSubject(ctx, "a@goissuer.test")
	require.NoError(t, err)
	id2, err := s.ResolveOrCreateSubject(ctx, "A@goissuer.test")
	require.NoError(t, err)
	require.Equal(t, id1, id2)
}

func TestPostgresPasswordHash(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.PasswordHash(ctx, "b@goissuer.test")
	require.True(t, errors.Is(err, identity.ErrNotFound))

	require.NoError(t, s.SetPasswordHash(ctx, "b@goissuer.test", "$argon2id$x"))
	hash, err := s.PasswordHash(ctx, "b@goissuer.test")
	require.NoError(t, err)
	require.Equal(t, "$argon2id$x", hash)
}
