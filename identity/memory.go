package identity

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

type memoryEntry struct {
	id   string
	hash string
}

// Memory is an in-process Directory for tests and development.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]*memoryEntry
}

func NewMemory() *Memory {
	return &Memory{entries: make(map[string]*memoryEntry)}
}

func (m *Memory) ResolveOrCreateSubject(ctx context.Context, email string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	email = NormalizeEmail(email)

	m.mu.Lock()
	defer m.mu.Unlock()
	return m.entryLocked(email).id, nil
}

func (m *Memory) PasswordHash(ctx context.Context, email string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[NormalizeEmail(email)]
	if !ok || e.hash == "" {
		return "", ErrNotFound
	}
	return e.hash, nil
}

func (m *Memory) SetPasswordHash(ctx context.Context, email, hash string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.entryLocked(NormalizeEmail(email)).hash = hash
	return nil
}

func (m *Memory) entryLocked(email string) *memoryEntry {
	e, ok := m.entries[email]
	if !ok {
		e = &memoryEntry{id: uuid.NewString()}
		m.entries[email] = e
	}
	return e
}
