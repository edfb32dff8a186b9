package goIssuer

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/MrEthical07/goIssuer/store"
)

func TestAuthorizeValidation(t *testing.T) {
	env := newTestEnv(t, nil, func(b *Builder) {
		b.WithClientPolicy(StaticClients{testClientID: {testRedirectURI}})
	})

	valid := AuthorizeRequest{ClientID: testClientID, RedirectURI: testRedirectURI, ResponseType: "code", ProviderID: "password"}
	tests := []struct {
		name   string
		mutate func(*AuthorizeRequest)
		want   error
	}{
		{"token response type", func(r *AuthorizeRequest) { r.ResponseType = "token" }, ErrUnsupportedResponseType},
		{"missing client", func(r *AuthorizeRequest) { r.ClientID = "" }, ErrInvalidRequest},
		{"missing redirect", func(r *AuthorizeRequest) { r.RedirectURI = "" }, ErrInvalidRequest},
		{"unknown provider", func(r *AuthorizeRequest) { r.ProviderID = "github" }, ErrUnknownProvider},
		{"ambiguous provider", func(r *AuthorizeRequest) { r.ProviderID = "" }, ErrUnknownProvider},
		{"unknown client", func(r *AuthorizeRequest) { r.ClientID = "mobile" }, ErrInvalidClient},
		{"unregistered redirect", func(r *AuthorizeRequest) { r.RedirectURI = "https://evil.example.com/cb" }, ErrInvalidClient},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := valid
			tt.mutate(&req)
			_, err := env.iss.Authorize(context.Background(), req)
			mustErr(t, err, tt.want)
		})
	}

	res, err := env.iss.Authorize(context.Background(), valid)
	if err != nil {
		t.Fatalf("valid request rejected: %v", err)
	}
	if res.Kind != KindPassword || !res.ExpiresAt.After(env.clock.Now()) {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestAuthorizeRequestIDsUnique(t *testing.T) {
	env := newTestEnv(t, nil)
	seen := make(map[string]struct{})
	for i := 0; i < 200; i++ {
		id := env.authorize(t, "code")
		if _, dup := seen[id]; dup {
			t.Fatalf("duplicate request id %q", id)
		}
		seen[id] = struct{}{}
	}
}

func TestAuthorizeSingleProviderIsDefault(t *testing.T) {
	cfg := testConfig(t)
	iss, err := New().WithConfig(cfg).WithEmailCodeProvider("code").WithSender(&captureSender{}).Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	defer iss.Close()

	res, err := iss.Authorize(context.Background(), AuthorizeRequest{ClientID: "c", RedirectURI: "https://c.example.com/cb", ResponseType: "code"})
	if err != nil {
		t.Fatalf("authorize: %v", err)
	}
	if res.ProviderID != "code" || res.Kind != KindEmailCode {
		t.Fatalf("unexpected provider %+v", res)
	}
}

func TestSubmitUnknownRequest(t *testing.T) {
	env := newTestEnv(t, nil)
	for _, id := range []string{"", "garbage", "AAAAAAAAAAAAAAAAAAAAAA"} {
		_, err := env.iss.SubmitCredential(context.Background(), id, CredentialInput{Email: "a@b.c"})
		mustErr(t, err, ErrRequestNotFound)
	}
}

// conflictStore loses every compare-and-swap.
type conflictStore struct {
	store.Store
}

func (conflictStore) CompareAndSwap(context.Context, string, []byte, []byte, time.Duration) (bool, error) {
	return false, nil
}

func TestSubmitStateContentionGivesUp(t *testing.T) {
	snd := &captureSender{}
	iss, err := New().
		WithConfig(testConfig(t)).
		WithStore(conflictStore{Store: store.NewMemory(time.Minute)}).
		WithSender(snd).
		WithEmailCodeProvider("code").
		Build()
	if err != nil {
		t.Fatal(err)
	}
	defer iss.Close()

	res, err := iss.Authorize(context.Background(), AuthorizeRequest{ClientID: "c", RedirectURI: "https://c.example.com/cb", ResponseType: "code"})
	if err != nil {
		t.Fatal(err)
	}

	_, err = iss.SubmitCredential(context.Background(), res.RequestID, CredentialInput{Email: "user@x.com"})
	mustErr(t, err, ErrStorageUnavailable)
	if snd.count() != 0 {
		t.Fatal("code delivered although state was never committed")
	}
	if got := iss.metrics.Value(MetricStateConflict); got != uint64(DefaultConfig().Authorization.StateRetries) {
		t.Fatalf("expected %d conflicts, got %d", DefaultConfig().Authorization.StateRetries, got)
	}
}

// codePutFailStore rejects writes of authorization codes.
type codePutFailStore struct {
	store.Store
}

func (s codePutFailStore) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if strings.HasPrefix(key, codeKeyPrefix) {
		return store.ErrUnavailable
	}
	return s.Store.Put(ctx, key, value, ttl)
}

func TestCodeStoreFailureRestoresRequest(t *testing.T) {
	env := newTestEnv(t, nil, func(b *Builder) {
		b.WithStore(codePutFailStore{Store: store.NewMemory(time.Minute)})
	})
	env.seedPassword(t, "alice@example.com", "correct-password-123")
	ctx := context.Background()
	id := env.authorize(t, "password")

	_, err := env.iss.SubmitCredential(ctx, id, CredentialInput{Email: "alice@example.com", Password: "correct-password-123"})
	mustErr(t, err, ErrStorageUnavailable)

	if _, err := env.iss.Inspect(ctx, id); err != nil {
		t.Fatalf("pending request not restored: %v", err)
	}
}

type accountSubject struct {
	ID        string `json:"id"`
	Workspace string `json:"workspace"`
}

func TestCustomSuccessHandlerAndSubjects(t *testing.T) {
	subjects := Subjects{
		"account": ObjectSchema[accountSubject]{Check: func(a accountSubject) error {
			if a.Workspace == "" {
				return errors.New("workspace is required")
			}
			return nil
		}},
	}
	workspace := ""
	env := newTestEnv(t, nil, func(b *Builder) {
		b.WithSubjects(subjects).WithSuccess(func(ctx context.Context, cred VerifiedCredential) (Subject, error) {
			return Subject{Type: "account", Properties: map[string]any{"id": cred.Email, "workspace": workspace}}, nil
		})
	})
	env.seedPassword(t, "alice@example.com", "correct-password-123")
	ctx := context.Background()
	id := env.authorize(t, "password")

	_, err := env.iss.SubmitCredential(ctx, id, CredentialInput{Email: "alice@example.com", Password: "correct-password-123"})
	mustErr(t, err, ErrInvalidSubject)
	if _, err := env.iss.Inspect(ctx, id); err != nil {
		t.Fatalf("request consumed by invalid subject: %v", err)
	}

	workspace = "acme"
	res, err := env.iss.SubmitCredential(ctx, id, CredentialInput{Email: "alice@example.com", Password: "correct-password-123"})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	ts, err := env.iss.ExchangeCode(ctx, ExchangeRequest{Code: res.Code, ClientID: testClientID, RedirectURI: testRedirectURI})
	if err != nil {
		t.Fatalf("exchange: %v", err)
	}
	claims, err := env.iss.VerifyAccess(ctx, ts.AccessToken)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.Type != "account" || claims.Properties["workspace"] != "acme" || claims.Subject != "account:alice@example.com" {
		t.Fatalf("unexpected claims %+v", claims)
	}
}

func TestAuditEvents(t *testing.T) {
	sink := NewChannelSink(64)
	env := newTestEnv(t, func(c *Config) { c.Audit.Enabled = true }, func(b *Builder) {
		b.WithAuditSink(sink)
	})
	env.seedPassword(t, "alice@example.com", "correct-password-123")
	ctx := WithClientIP(context.Background(), "203.0.113.7")

	id := env.authorize(t, "password")
	if _, err := env.iss.SubmitCredential(ctx, id, CredentialInput{Email: "alice@example.com", Password: "wrong-password"}); err == nil {
		t.Fatal("expected failure")
	}
	res, err := env.iss.SubmitCredential(ctx, id, CredentialInput{Email: "alice@example.com", Password: "correct-password-123"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := env.iss.ExchangeCode(ctx, ExchangeRequest{Code: res.Code, ClientID: testClientID, RedirectURI: testRedirectURI}); err != nil {
		t.Fatal(err)
	}
	env.iss.Close()

	var got []AuditEvent
	for len(sink.Events()) > 0 {
		got = append(got, <-sink.Events())
	}

	want := []struct {
		eventType string
		success   bool
	}{
		{auditEventAuthorize, true},
		{auditEventCredentialFailure, false},
		{auditEventCodeIssued, true},
		{auditEventExchange, true},
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d events, got %d: %+v", len(want), len(got), got)
	}
	for i, w := range want {
		if got[i].EventType != w.eventType || got[i].Success != w.success {
			t.Fatalf("event %d: expected %s/%v, got %s/%v", i, w.eventType, w.success, got[i].EventType, got[i].Success)
		}
	}
	if got[1].IP != "203.0.113.7" || got[1].Error != string(auditErrInvalidCredential) {
		t.Fatalf("unexpected failure event %+v", got[1])
	}
	if got[2].Subject == "" || got[2].RequestID != id {
		t.Fatalf("unexpected code event %+v", got[2])
	}
}

func TestBuildErrors(t *testing.T) {
	tests := []struct {
		name  string
		build func(cfg Config) *Builder
	}{
		{"no providers", func(cfg Config) *Builder { return New().WithConfig(cfg) }},
		{"duplicate provider", func(cfg Config) *Builder {
			return New().WithConfig(cfg).WithPasswordProvider("p").WithEmailCodeProvider("p")
		}},
		{"no signing key", func(cfg Config) *Builder {
			cfg.JWT.PrivateKey = nil
			return New().WithConfig(cfg).WithEmailCodeProvider("code")
		}},
		{"production defaults", func(cfg Config) *Builder {
			cfg.Security.ProductionMode = true
			cfg.Password.Memory = 64 * 1024
			return New().WithConfig(cfg).WithEmailCodeProvider("code")
		}},
		{"empty subjects", func(cfg Config) *Builder {
			return New().WithConfig(cfg).WithEmailCodeProvider("code").WithSubjects(Subjects{})
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.build(testConfig(t)).Build(); err == nil {
				t.Fatal("expected build error")
			}
		})
	}

	b := New().WithConfig(testConfig(t)).WithEmailCodeProvider("code")
	iss, err := b.Build()
	if err != nil {
		t.Fatal(err)
	}
	iss.Close()
	if _, err := b.Build(); err == nil {
		t.Fatal("builder reuse must fail")
	}
}

func TestSecurityReport(t *testing.T) {
	env := newTestEnv(t, nil)
	r := env.iss.SecurityReport()
	if r.SigningAlgorithm != "ed25519" || r.PasswordAlgorithm != "argon2id" {
		t.Fatalf("unexpected algorithms %+v", r)
	}
	if r.RateLimitingActive {
		t.Fatal("rate limiting reported without redis")
	}
	if len(r.Providers) != 2 || r.Providers[0] != "code" || r.Providers[1] != "password" {
		t.Fatalf("unexpected providers %v", r.Providers)
	}
}
