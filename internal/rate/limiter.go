package rate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config holds limiter tuning parameters. MaxAttempts of zero disables the
// limiter.
type Config struct {
	Prefix           string
	EnableIPThrottle bool
	MaxAttempts      int
	Cooldown         time.Duration
}

// Limiter enforces per-email and per-IP budgets for failed credential
// attempts.
type Limiter struct {
	redis  redis.UniversalClient
	config Config
}

// New creates a [Limiter] backed by the given Redis client.
func New(redisClient redis.UniversalClient, cfg Config) *Limiter {
	return &Limiter{
		redis:  redisClient,
		config: cfg,
	}
}

// Enabled reports whether the limiter does anything.
func (l *Limiter) Enabled() bool {
	return l != nil && l.redis != nil && l.config.MaxAttempts > 0
}

// Check returns ErrRateLimited when either the email or the IP budget is
// spent. Empty keys are skipped.
func (l *Limiter) Check(ctx context.Context, email, ip string) error {
	if !l.Enabled() {
		return nil
	}
	if email != "" {
		if err := l.checkCounter(ctx, l.emailKey(email)); err != nil {
			return err
		}
	}
	if l.config.EnableIPThrottle && ip != "" {
		if err := l.checkCounter(ctx, l.ipKey(ip)); err != nil {
			return err
		}
	}
	return nil
}

// Fail records one failed attempt. It returns ErrRateLimited when this
// attempt exhausted a budget.
func (l *Limiter) Fail(ctx context.Context, email, ip string) error {
	if !l.Enabled() {
		return nil
	}
	limited := false
	if email != "" {
		count, err := l.incrementWithTTL(ctx, l.emailKey(email))
		if err != nil {
			return err
		}
		limited = count >= int64(l.config.MaxAttempts)
	}
	if l.config.EnableIPThrottle && ip != "" {
		count, err := l.incrementWithTTL(ctx, l.ipKey(ip))
		if err != nil {
			return err
		}
		limited = limited || count >= int64(l.config.MaxAttempts)
	}
	if limited {
		return ErrRateLimited
	}
	return nil
}

// Reset clears the email counter after a successful verification. The IP
// counter is left to expire so one good account cannot launder a spraying
// client.
func (l *Limiter) Reset(ctx context.Context, email string) error {
	if !l.Enabled() || email == "" {
		return nil
	}
	if err := l.redis.Del(ctx, l.emailKey(email)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Attempts returns the current failure count for an email. Missing keys
// read as zero.
func (l *Limiter) Attempts(ctx context.Context, email string) (int, error) {
	if !l.Enabled() {
		return 0, nil
	}
	count, err := l.redis.Get(ctx, l.emailKey(email)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if count < 0 {
		return 0, nil
	}
	return int(count), nil
}

func (l *Limiter) checkCounter(ctx context.Context, key string) error {
	count, err := l.redis.Get(ctx, key).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if count >= int64(l.config.MaxAttempts) {
		return ErrRateLimited
	}
	return nil
}

func (l *Limiter) incrementWithTTL(ctx context.Context, key string) (int64, error) {
	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if count == 1 {
		if err := l.redis.Expire(ctx, key, l.config.Cooldown).Err(); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}
	return count, nil
}

func (l *Limiter) emailKey(email string) string { return l.config.Prefix + "rc:e:" + email }
func (l *Limiter) ipKey(ip string) string       { return l.config.Prefix + "rc:i:" + ip }
