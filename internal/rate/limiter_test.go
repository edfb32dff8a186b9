package rate

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLimiter(t *testing.T, cfg Config) (*Limiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return New(rdb, cfg), mr
}

func TestLimiterEmailBudget(t *testing.T) {
	l, _ := newLimiter(t, Config{Prefix: "t:", MaxAttempts: 3, Cooldown: time.Minute})
	ctx := context.Background()

	require.NoError(t, l.Check(ctx, "a@example.com", ""))
	require.NoError(t, l.Fail(ctx, "a@example.com", ""))
	require.NoError(t, l.Fail(ctx, "a@example.com", ""))
	assert.ErrorIs(t, l.Fail(ctx, "a@example.com", ""), ErrRateLimited)
	assert.ErrorIs(t, l.Check(ctx, "a@example.com", ""), ErrRateLimited)

	n, err := l.Attempts(ctx, "a@example.com")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	// Other emails are unaffected.
	assert.NoError(t, l.Check(ctx, "b@example.com", ""))
}

func TestLimiterWindowExpires(t *testing.T) {
	l, mr := newLimiter(t, Config{MaxAttempts: 1, Cooldown: time.Minute})
	ctx := context.Background()

	assert.ErrorIs(t, l.Fail(ctx, "a@example.com", ""), ErrRateLimited)
	mr.FastForward(time.Minute + time.Second)
	assert.NoError(t, l.Check(ctx, "a@example.com", ""))
}

func TestLimiterIPThrottle(t *testing.T) {
	l, _ := newLimiter(t, Config{MaxAttempts: 2, Cooldown: time.Minute, EnableIPThrottle: true})
	ctx := context.Background()

	require.NoError(t, l.Fail(ctx, "a@example.com", "10.0.0.1"))
	assert.ErrorIs(t, l.Fail(ctx, "b@example.com", "10.0.0.1"), ErrRateLimited)
	assert.ErrorIs(t, l.Check(ctx, "c@example.com", "10.0.0.1"), ErrRateLimited)
	assert.NoError(t, l.Check(ctx, "c@example.com", "10.0.0.2"))
}

func TestLimiterResetKeepsIPCounter(t *testing.T) {
	l, _ := newLimiter(t, Config{MaxAttempts: 2, Cooldown: time.Minute, EnableIPThrottle: true})
	ctx := context.Background()

	require.NoError(t, l.Fail(ctx, "a@example.com", "10.0.0.1"))
	require.NoError(t, l.Reset(ctx, "a@example.com"))

	n, err := l.Attempts(ctx, "a@example.com")
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.ErrorIs(t, l.Fail(ctx, "z@example.com", "10.0.0.1"), ErrRateLimited)
}

func TestLimiterDisabled(t *testing.T) {
	var nilLimiter *Limiter
	assert.False(t, nilLimiter.Enabled())
	assert.NoError(t, nilLimiter.Fail(context.Background(), "a", "b"))

	l := New(nil, Config{MaxAttempts: 5})
	assert.False(t, l.Enabled())
	assert.NoError(t, l.Check(context.Background(), "a", "b"))
}

func TestLimiterRedisDown(t *testing.T) {
	l, mr := newLimiter(t, Config{MaxAttempts: 2, Cooldown: time.Minute})
	mr.Close()
	assert.ErrorIs(t, l.Check(context.Background(), "a@example.com", ""), ErrRedisUnavailable)
}
