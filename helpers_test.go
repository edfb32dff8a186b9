package goIssuer

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/goIssuer/identity"
	"github.com/MrEthical07/goIssuer/sender"
)

const (
	testClientID    = "web"
	testRedirectURI = "https://app.example.com/callback"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Now()}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type captureSender struct {
	mu   sync.Mutex
	sent []sender.Delivery
	fail error
}

func (s *captureSender) SendCode(_ context.Context, d sender.Delivery) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return s.fail
	}
	s.sent = append(s.sent, d)
	return nil
}

func (s *captureSender) setFail(err error) {
	s.mu.Lock()
	s.fail = err
	s.mu.Unlock()
}

func (s *captureSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

func (s *captureSender) last(t testing.TB) sender.Delivery {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.sent) == 0 {
		t.Fatal("no code was delivered")
	}
	return s.sent[len(s.sent)-1]
}

type testEnv struct {
	iss    *Issuer
	sender *captureSender
	dir    *identity.Memory
	clock  *testClock
	cfg    Config
}

// testConfig returns a valid config with cheap password hashing.
func testConfig(t testing.TB) Config {
	t.Helper()
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	cfg := DefaultConfig()
	cfg.Issuer.URL = "https://issuer.example.com"
	cfg.JWT.PrivateKey = priv
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.Password.ScryptLogN = 10
	cfg.Metrics.Enabled = true
	return cfg
}

func newTestEnv(t testing.TB, mutate func(*Config), opts ...func(*Builder)) *testEnv {
	t.Helper()

	cfg := testConfig(t)
	if mutate != nil {
		mutate(&cfg)
	}

	env := &testEnv{
		sender: &captureSender{},
		dir:    identity.NewMemory(),
		clock:  newTestClock(),
		cfg:    cfg,
	}

	b := New().
		WithConfig(cfg).
		WithIdentity(env.dir).
		WithSender(env.sender).
		WithPasswordProvider("password").
		WithEmailCodeProvider("code")
	for _, opt := range opts {
		opt(b)
	}

	iss, err := b.Build()
	if err != nil {
		t.Fatalf("build issuer: %v", err)
	}
	iss.now = env.clock.Now
	t.Cleanup(iss.Close)

	env.iss = iss
	return env
}

func (e *testEnv) authorize(t testing.TB, provider string) string {
	t.Helper()
	res, err := e.iss.Authorize(context.Background(), AuthorizeRequest{
		ClientID:     testClientID,
		RedirectURI:  testRedirectURI,
		ResponseType: "code",
		State:        "xyz",
		ProviderID:   provider,
	})
	if err != nil {
		t.Fatalf("authorize: %v", err)
	}
	return res.RequestID
}

func (e *testEnv) seedPassword(t testing.TB, email, pw string) {
	t.Helper()
	h, err := newHasher(e.cfg.Password)
	if err != nil {
		t.Fatalf("hasher: %v", err)
	}
	hash, err := h.Hash(pw)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if err := e.dir.SetPasswordHash(context.Background(), email, hash); err != nil {
		t.Fatalf("seed password: %v", err)
	}
}

// loginCode runs a successful password login and returns the issued code.
func (e *testEnv) loginCode(t testing.TB, email, pw string) string {
	t.Helper()
	id := e.authorize(t, "password")
	res, err := e.iss.SubmitCredential(context.Background(), id, CredentialInput{Email: email, Password: pw})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if res.Status != SubmitCodeIssued {
		t.Fatalf("expected code, got status %q", res.Status)
	}
	return res.Code
}

func wrongCode(code string) string {
	b := []byte(code)
	b[len(b)-1] = '0' + (b[len(b)-1]-'0'+1)%10
	return string(b)
}

func mustErr(t testing.TB, err, want error) {
	t.Helper()
	if !errors.Is(err, want) {
		t.Fatalf("expected %v, got %v", want, err)
	}
}
