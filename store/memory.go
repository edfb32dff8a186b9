package store

import (
	"bytes"
	"context"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// DefaultSweepInterval is the janitor interval used when NewMemory gets a
// non-positive value.
const DefaultSweepInterval = time.Minute

// Memory is an in-process Store. Reads go straight to the cache; every
// mutation is serialised by mu so CAS and CAD are atomic with respect to
// Put and Delete.
type Memory struct {
	mu    sync.Mutex
	cache *gocache.Cache
}

// NewMemory returns an empty in-memory store whose janitor evicts expired
// entries every sweepInterval.
func NewMemory(sweepInterval time.Duration) *Memory {
	if sweepInterval <= 0 {
		sweepInterval = DefaultSweepInterval
	}
	return &Memory{
		cache: gocache.New(gocache.NoExpiration, sweepInterval),
	}
}

func (m *Memory) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	m.cache.Set(key, clone(value), cacheTTL(ttl))
	m.mu.Unlock()
	return nil
}

func (m *Memory) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	raw, ok := m.cache.Get(key)
	if !ok {
		return nil, ErrNotFound
	}
	return clone(raw.([]byte)), nil
}

func (m *Memory) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	m.cache.Delete(key)
	m.mu.Unlock()
	return nil
}

func (m *Memory) CompareAndSwap(ctx context.Context, key string, old, next []byte, ttl time.Duration) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	raw, ok := m.cache.Get(key)
	if !ok || !bytes.Equal(raw.([]byte), old) {
		return false, nil
	}
	m.cache.Set(key, clone(next), cacheTTL(ttl))
	return true, nil
}

func (m *Memory) CompareAndDelete(ctx context.Context, key string, expected []byte) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	raw, ok := m.cache.Get(key)
	if !ok || !bytes.Equal(raw.([]byte), expected) {
		return false, nil
	}
	m.cache.Delete(key)
	return true, nil
}

// Len reports the number of entries still physically held, expired or not.
func (m *Memory) Len() int {
	return m.cache.ItemCount()
}

func cacheTTL(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return gocache.NoExpiration
	}
	return ttl
}

func clone(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
