package store

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned by Get when the key is absent or physically expired.
	ErrNotFound = errors.New("store: key not found")
	// ErrUnavailable wraps transient backend failures.
	ErrUnavailable = errors.New("store: backend unavailable")
)

// Store is a key-value store with per-key atomic operations.
//
// A ttl <= 0 means the entry never expires physically.
type Store interface {
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
	// CompareAndSwap replaces the value at key with next only when the current
	// value equals old byte for byte. It reports whether the swap happened.
	CompareAndSwap(ctx context.Context, key string, old, next []byte, ttl time.Duration) (bool, error)
	// CompareAndDelete removes key only when its current value equals
	// expected. Among concurrent callers with the same expected value at most
	// one observes true.
	CompareAndDelete(ctx context.Context, key string, expected []byte) (bool, error)
}
