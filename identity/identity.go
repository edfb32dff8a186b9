// Package identity defines the collaborators the issuer uses to turn a
// verified email into a subject id and to look up password hashes, plus
// adapters for memory, PostgreSQL, and SQLite.
//
// Resolution is an idempotent upsert: resolving the same email twice yields
// the same id.
package identity

import (
	"context"
	"errors"
	"strings"
)

// ErrNotFound is returned by PasswordStore lookups for unknown identities
// and identities without a password.
var ErrNotFound = errors.New("identity: not found")

// SubjectResolver maps a verified email to a stable subject id, creating
// the identity on first use.
type SubjectResolver interface {
	ResolveOrCreateSubject(ctx context.Context, email string) (string, error)
}

// PasswordStore holds password hashes keyed by email.
type PasswordStore interface {
	PasswordHash(ctx context.Context, email string) (string, error)
	// SetPasswordHash stores hash for email, creating the identity if needed.
	SetPasswordHash(ctx context.Context, email, hash string) error
}

// Directory is implemented by every adapter in this module.
type Directory interface {
	SubjectResolver
	PasswordStore
}

// NormalizeEmail lowercases and trims an address. Adapters store emails in
// this form.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
