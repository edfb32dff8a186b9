package rate

import "errors"

var (
	// ErrRateLimited means the email or client IP spent its failed-credential
	// budget for the current cooldown window.
	ErrRateLimited = errors.New("credential attempts over budget")
	// ErrRedisUnavailable wraps limiter transport failures. The issuer fails
	// open on it.
	ErrRedisUnavailable = errors.New("rate limiter backend unavailable")
)
