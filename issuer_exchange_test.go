package goIssuer

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MrEthical07/goIssuer/store"
)

func TestExchangeSingleWinner(t *testing.T) {
	env := newTestEnv(t, nil)
	env.seedPassword(t, "alice@example.com", "correct-password-123")
	code := env.loginCode(t, "alice@example.com", "correct-password-123")

	const n = 32
	start := make(chan struct{})
	results := make(chan error, n)

	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			<-start
			_, err := env.iss.ExchangeCode(context.Background(), ExchangeRequest{
				Code:        code,
				ClientID:    testClientID,
				RedirectURI: testRedirectURI,
			})
			results <- err
		}()
	}
	close(start)
	wg.Wait()
	close(results)

	success, fail := 0, 0
	for err := range results {
		switch {
		case err == nil:
			success++
		case errors.Is(err, ErrInvalidGrant):
			fail++
		default:
			t.Fatalf("unexpected exchange error: %v", err)
		}
	}
	if success != 1 || fail != n-1 {
		t.Fatalf("expected 1 success and %d failures, got %d and %d", n-1, success, fail)
	}
}

func TestExchangeMismatchConsumesCode(t *testing.T) {
	tests := []struct {
		name string
		req  func(code string) ExchangeRequest
	}{
		{"client mismatch", func(code string) ExchangeRequest {
			return ExchangeRequest{Code: code, ClientID: "other", RedirectURI: testRedirectURI}
		}},
		{"redirect mismatch", func(code string) ExchangeRequest {
			return ExchangeRequest{Code: code, ClientID: testClientID, RedirectURI: testRedirectURI + "/evil"}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, nil)
			env.seedPassword(t, "alice@example.com", "correct-password-123")
			code := env.loginCode(t, "alice@example.com", "correct-password-123")
			ctx := context.Background()

			_, err := env.iss.ExchangeCode(ctx, tt.req(code))
			mustErr(t, err, ErrInvalidGrant)

			_, err = env.iss.ExchangeCode(ctx, ExchangeRequest{Code: code, ClientID: testClientID, RedirectURI: testRedirectURI})
			mustErr(t, err, ErrInvalidGrant)
		})
	}
}

func TestExchangeMalformedCode(t *testing.T) {
	env := newTestEnv(t, nil)
	for _, code := range []string{"", "abc", "!!!!", "aGVsbG8"} {
		_, err := env.iss.ExchangeCode(context.Background(), ExchangeRequest{Code: code, ClientID: testClientID, RedirectURI: testRedirectURI})
		mustErr(t, err, ErrInvalidGrant)
	}
}

func TestRecordsUnreachableAfterTTL(t *testing.T) {
	env := newTestEnv(t, nil)
	env.seedPassword(t, "alice@example.com", "correct-password-123")
	ctx := context.Background()

	// The memory store evicts on wall-clock time, so these records are
	// still physically present when the issuer clock moves past them.
	code := env.loginCode(t, "alice@example.com", "correct-password-123")
	env.clock.Advance(env.cfg.Authorization.CodeTTL)
	_, err := env.iss.ExchangeCode(ctx, ExchangeRequest{Code: code, ClientID: testClientID, RedirectURI: testRedirectURI})
	mustErr(t, err, ErrInvalidGrant)

	id := env.authorize(t, "password")
	env.clock.Advance(env.cfg.Authorization.RequestTTL)
	_, err = env.iss.SubmitCredential(ctx, id, CredentialInput{Email: "alice@example.com", Password: "correct-password-123"})
	mustErr(t, err, ErrRequestNotFound)
	_, err = env.iss.Inspect(ctx, id)
	mustErr(t, err, ErrRequestNotFound)
}

func TestRefreshRotation(t *testing.T) {
	env := newTestEnv(t, nil)
	env.seedPassword(t, "alice@example.com", "correct-password-123")
	ctx := context.Background()

	code := env.loginCode(t, "alice@example.com", "correct-password-123")
	first, err := env.iss.ExchangeCode(ctx, ExchangeRequest{Code: code, ClientID: testClientID, RedirectURI: testRedirectURI})
	if err != nil {
		t.Fatalf("exchange: %v", err)
	}

	second, err := env.iss.Refresh(ctx, first.RefreshToken, testClientID)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if second.RefreshToken == first.RefreshToken {
		t.Fatal("refresh token was not rotated")
	}
	if second.Subject.Properties["id"] != first.Subject.Properties["id"] {
		t.Fatalf("subject changed across refresh: %v vs %v", first.Subject, second.Subject)
	}

	_, err = env.iss.Refresh(ctx, first.RefreshToken, testClientID)
	mustErr(t, err, ErrInvalidGrant)

	// A wrong client burns the token.
	_, err = env.iss.Refresh(ctx, second.RefreshToken, "other")
	mustErr(t, err, ErrInvalidGrant)
	_, err = env.iss.Refresh(ctx, second.RefreshToken, testClientID)
	mustErr(t, err, ErrInvalidGrant)
}

func TestRefreshWrongSecretKeepsRecord(t *testing.T) {
	env := newTestEnv(t, nil)
	env.seedPassword(t, "alice@example.com", "correct-password-123")
	ctx := context.Background()

	code := env.loginCode(t, "alice@example.com", "correct-password-123")
	ts, err := env.iss.ExchangeCode(ctx, ExchangeRequest{Code: code, ClientID: testClientID, RedirectURI: testRedirectURI})
	if err != nil {
		t.Fatal(err)
	}

	forged := []byte(ts.RefreshToken)
	last := len(forged) - 2
	if forged[last] == 'A' {
		forged[last] = 'B'
	} else {
		forged[last] = 'A'
	}
	_, err = env.iss.Refresh(ctx, string(forged), testClientID)
	mustErr(t, err, ErrInvalidGrant)

	if _, err := env.iss.Refresh(ctx, ts.RefreshToken, testClientID); err != nil {
		t.Fatalf("genuine token rejected after forgery attempt: %v", err)
	}
}

func TestRefreshDisabled(t *testing.T) {
	env := newTestEnv(t, func(c *Config) { c.JWT.RefreshTTL = 0 })
	env.seedPassword(t, "alice@example.com", "correct-password-123")

	code := env.loginCode(t, "alice@example.com", "correct-password-123")
	ts, err := env.iss.ExchangeCode(context.Background(), ExchangeRequest{Code: code, ClientID: testClientID, RedirectURI: testRedirectURI})
	if err != nil {
		t.Fatal(err)
	}
	if ts.RefreshToken != "" {
		t.Fatal("refresh token issued while disabled")
	}
}

func TestVerifyAccessRejectsForeignTokens(t *testing.T) {
	env := newTestEnv(t, nil)
	other := newTestEnv(t, nil)
	other.seedPassword(t, "alice@example.com", "correct-password-123")
	ctx := context.Background()

	code := other.loginCode(t, "alice@example.com", "correct-password-123")
	ts, err := other.iss.ExchangeCode(ctx, ExchangeRequest{Code: code, ClientID: testClientID, RedirectURI: testRedirectURI})
	if err != nil {
		t.Fatal(err)
	}

	for _, token := range []string{"", "not-a-jwt", ts.AccessToken} {
		_, err := env.iss.VerifyAccess(ctx, token)
		mustErr(t, err, ErrInvalidToken)
	}
	if _, err := other.iss.VerifyAccess(ctx, ts.AccessToken); err != nil {
		t.Fatalf("own token rejected: %v", err)
	}
	if got := env.iss.metrics.Value(MetricVerifyAccessFailure); got != 3 {
		t.Fatalf("expected 3 verify failures, got %d", got)
	}
}

// refreshOutageStore fails every refresh record write while down is set.
type refreshOutageStore struct {
	*store.Memory
	down atomic.Bool
}

func (s *refreshOutageStore) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if s.down.Load() && strings.HasPrefix(key, refreshKeyPrefix) {
		return store.ErrUnavailable
	}
	return s.Memory.Put(ctx, key, value, ttl)
}

func newOutageEnv(t *testing.T) (*testEnv, *refreshOutageStore) {
	t.Helper()
	st := &refreshOutageStore{Memory: store.NewMemory(time.Minute)}
	env := newTestEnv(t, nil, func(b *Builder) { b.WithStore(st) })
	env.seedPassword(t, "alice@example.com", "correct-password-123")
	return env, st
}

func TestExchangeStorageFailureKeepsCode(t *testing.T) {
	env, st := newOutageEnv(t)
	ctx := context.Background()
	code := env.loginCode(t, "alice@example.com", "correct-password-123")
	req := ExchangeRequest{Code: code, ClientID: testClientID, RedirectURI: testRedirectURI}

	st.down.Store(true)
	_, err := env.iss.ExchangeCode(ctx, req)
	mustErr(t, err, ErrStorageUnavailable)

	st.down.Store(false)
	ts, err := env.iss.ExchangeCode(ctx, req)
	if err != nil {
		t.Fatalf("retry after storage recovered: %v", err)
	}
	if ts.RefreshToken == "" {
		t.Fatal("retry issued no refresh token")
	}

	_, err = env.iss.ExchangeCode(ctx, req)
	mustErr(t, err, ErrInvalidGrant)
}

func TestRefreshStorageFailureKeepsToken(t *testing.T) {
	env, st := newOutageEnv(t)
	ctx := context.Background()
	code := env.loginCode(t, "alice@example.com", "correct-password-123")
	first, err := env.iss.ExchangeCode(ctx, ExchangeRequest{Code: code, ClientID: testClientID, RedirectURI: testRedirectURI})
	if err != nil {
		t.Fatalf("exchange: %v", err)
	}

	st.down.Store(true)
	_, err = env.iss.Refresh(ctx, first.RefreshToken, testClientID)
	mustErr(t, err, ErrStorageUnavailable)

	st.down.Store(false)
	second, err := env.iss.Refresh(ctx, first.RefreshToken, testClientID)
	if err != nil {
		t.Fatalf("retry after storage recovered: %v", err)
	}
	if second.RefreshToken == first.RefreshToken {
		t.Fatal("refresh token was not rotated")
	}
	_, err = env.iss.Refresh(ctx, first.RefreshToken, testClientID)
	mustErr(t, err, ErrInvalidGrant)
}
