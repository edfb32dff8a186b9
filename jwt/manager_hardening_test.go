package jwt

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"testing"
	"time"

	gjwt "github.com/golang-jwt/jwt/v5"
)

func newEdKeys(t *testing.T) (ed25519.PublicKey, ed25519.PrivateKey) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate ed25519 key: %v", err)
	}
	return pub, priv
}

func signClaims(t *testing.T, method gjwt.SigningMethod, key any, kid string, claims AccessClaims) string {
	t.Helper()
	tok := gjwt.NewWithClaims(method, claims)
	if kid != "" {
		tok.Header["kid"] = kid
	}
	s, err := tok.SignedString(key)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return s
}

func TestParseAccessRejectsForgedTokens(t *testing.T) {
	pub, priv := newEdKeys(t)
	_, stranger := newEdKeys(t)
	m, err := NewManager(Config{
		AccessTTL:     time.Minute,
		SigningMethod: MethodEd25519,
		PrivateKey:    priv,
		Issuer:        "https://issuer.test",
		Audience:      "web",
		Leeway:        30 * time.Second,
		RequireIAT:    true,
		KeyID:         "k1",
		VerifyKeys:    map[string][]byte{"k1": pub},
	})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	now := time.Now()
	base := func() AccessClaims {
		return AccessClaims{
			Mode: ModeAccess,
			Type: "user",
			RegisteredClaims: gjwt.RegisteredClaims{
				Issuer:    "https://issuer.test",
				Audience:  gjwt.ClaimStrings{"web"},
				IssuedAt:  gjwt.NewNumericDate(now),
				ExpiresAt: gjwt.NewNumericDate(now.Add(time.Minute)),
			},
		}
	}

	if _, err := m.ParseAccess(signClaims(t, gjwt.SigningMethodEdDSA, priv, "k1", base())); err != nil {
		t.Fatalf("baseline token rejected: %v", err)
	}

	withinLeeway := base()
	withinLeeway.ExpiresAt = gjwt.NewNumericDate(now.Add(-15 * time.Second))
	if _, err := m.ParseAccess(signClaims(t, gjwt.SigningMethodEdDSA, priv, "k1", withinLeeway)); err != nil {
		t.Fatalf("token within leeway rejected: %v", err)
	}

	tests := []struct {
		name   string
		method gjwt.SigningMethod
		key    any
		kid    string
		mutate func(*AccessClaims)
	}{
		{name: "hs256 confusion", method: gjwt.SigningMethodHS256, key: []byte("secret-secret-secret-secret-secret"), kid: "k1"},
		{name: "foreign key", method: gjwt.SigningMethodEdDSA, key: stranger, kid: "k1"},
		{name: "unknown kid", method: gjwt.SigningMethodEdDSA, key: priv, kid: "k2"},
		{name: "missing kid", method: gjwt.SigningMethodEdDSA, key: priv},
		{name: "wrong issuer", method: gjwt.SigningMethodEdDSA, key: priv, kid: "k1", mutate: func(c *AccessClaims) { c.Issuer = "https://evil.test" }},
		{name: "wrong audience", method: gjwt.SigningMethodEdDSA, key: priv, kid: "k1", mutate: func(c *AccessClaims) { c.Audience = gjwt.ClaimStrings{"api"} }},
		{name: "expired", method: gjwt.SigningMethodEdDSA, key: priv, kid: "k1", mutate: func(c *AccessClaims) {
			c.ExpiresAt = gjwt.NewNumericDate(now.Add(-2 * time.Minute))
		}},
		{name: "no expiry", method: gjwt.SigningMethodEdDSA, key: priv, kid: "k1", mutate: func(c *AccessClaims) { c.ExpiresAt = nil }},
		{name: "refresh mode", method: gjwt.SigningMethodEdDSA, key: priv, kid: "k1", mutate: func(c *AccessClaims) { c.Mode = "refresh" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims := base()
			if tt.mutate != nil {
				tt.mutate(&claims)
			}
			if _, err := m.ParseAccess(signClaims(t, tt.method, tt.key, tt.kid, claims)); err == nil {
				t.Fatal("forged token accepted")
			}
		})
	}
}

func TestKeyRotationKeepsOldTokensValid(t *testing.T) {
	oldPub, oldPriv := newEdKeys(t)
	newPub, newPriv := newEdKeys(t)

	before, err := NewManager(Config{AccessTTL: time.Minute, SigningMethod: MethodEd25519, PrivateKey: oldPriv, KeyID: "2026-01"})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	oldToken, err := before.CreateAccess(AccessInput{Type: "user", Properties: map[string]any{"id": "u1"}})
	if err != nil {
		t.Fatalf("create access: %v", err)
	}

	after, err := NewManager(Config{
		AccessTTL:     time.Minute,
		SigningMethod: MethodEd25519,
		PrivateKey:    newPriv,
		KeyID:         "2026-02",
		VerifyKeys:    map[string][]byte{"2026-01": oldPub, "2026-02": newPub},
	})
	if err != nil {
		t.Fatalf("new manager after rotation: %v", err)
	}
	if _, err := after.ParseAccess(oldToken); err != nil {
		t.Fatalf("token signed before rotation rejected: %v", err)
	}
	newToken, err := after.CreateAccess(AccessInput{Type: "user"})
	if err != nil {
		t.Fatalf("create access after rotation: %v", err)
	}
	if _, err := before.ParseAccess(newToken); err == nil {
		t.Fatal("pre-rotation manager accepted a token signed by the new key")
	}

	set := after.JWKS()
	if len(set.Keys) != 2 || set.Keys[0].Kid != "2026-02" || set.Keys[1].Kid != "2026-01" {
		t.Fatalf("unexpected JWKS after rotation: %+v", set.Keys)
	}
}

func TestCreateAccessClaims(t *testing.T) {
	_, priv := newEdKeys(t)
	m, err := NewManager(Config{
		AccessTTL:     5 * time.Minute,
		SigningMethod: MethodEd25519,
		PrivateKey:    priv,
		Issuer:        "https://auth.example",
	})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	token, err := m.CreateAccess(AccessInput{
		Type:       "user",
		Properties: map[string]any{"id": "u-1"},
		Subject:    "user:u-1",
		ClientID:   "web",
		Scope:      "openid",
	})
	if err != nil {
		t.Fatalf("create access: %v", err)
	}

	claims, err := m.ParseAccess(token)
	if err != nil {
		t.Fatalf("parse access: %v", err)
	}
	if claims.Mode != ModeAccess || claims.Type != "user" || claims.ClientID != "web" || claims.Scope != "openid" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
	if claims.Properties["id"] != "u-1" {
		t.Fatalf("expected id property, got %v", claims.Properties)
	}
	if claims.Subject != "user:u-1" || claims.Issuer != "https://auth.example" {
		t.Fatalf("unexpected registered claims: sub=%q iss=%q", claims.Subject, claims.Issuer)
	}
	if len(claims.Audience) != 1 || claims.Audience[0] != "web" {
		t.Fatalf("expected audience [web], got %v", claims.Audience)
	}
	if ttl := claims.ExpiresAt.Sub(claims.IssuedAt.Time); ttl != 5*time.Minute {
		t.Fatalf("expected 5m lifetime, got %v", ttl)
	}

	other, _ := m.CreateAccess(AccessInput{Type: "user", ClientID: "web"})
	otherClaims, err := m.ParseAccess(other)
	if err != nil {
		t.Fatalf("parse second token: %v", err)
	}
	if claims.ID == "" || otherClaims.ID == claims.ID {
		t.Fatalf("jti must be set and unique, got %q and %q", claims.ID, otherClaims.ID)
	}
}

func TestVerifyOnlyManagerCannotSign(t *testing.T) {
	pub, _ := newEdKeys(t)
	m, err := NewManager(Config{AccessTTL: time.Minute, SigningMethod: MethodEd25519, PublicKey: pub})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	if m.CanSign() {
		t.Fatal("verify-only manager reports it can sign")
	}
	if _, err := m.CreateAccess(AccessInput{Type: "user"}); !errors.Is(err, ErrNoSigningKey) {
		t.Fatalf("expected ErrNoSigningKey, got %v", err)
	}
}

func TestHS256PublishesNoKeys(t *testing.T) {
	m, err := NewManager(Config{AccessTTL: time.Minute, SigningMethod: MethodHS256, PrivateKey: []byte("0123456789abcdef0123456789abcdef")})
	if err != nil {
		t.Fatalf("new hs256 manager: %v", err)
	}
	token, err := m.CreateAccess(AccessInput{Type: "service"})
	if err != nil {
		t.Fatalf("create access: %v", err)
	}
	if _, err := m.ParseAccess(token); err != nil {
		t.Fatalf("hs256 round trip: %v", err)
	}
	if keys := m.JWKS().Keys; len(keys) != 0 {
		t.Fatalf("hs256 must not publish keys, got %d", len(keys))
	}
}

func TestNewManagerRejectsBadConfig(t *testing.T) {
	pub, priv := newEdKeys(t)
	tests := map[string]Config{
		"zero ttl":         {SigningMethod: MethodEd25519, PrivateKey: priv},
		"short hmac":       {AccessTTL: time.Minute, SigningMethod: MethodHS256, PrivateKey: []byte("short")},
		"no ed25519 keys":  {AccessTTL: time.Minute, SigningMethod: MethodEd25519},
		"bad private key":  {AccessTTL: time.Minute, SigningMethod: MethodEd25519, PrivateKey: []byte("nope")},
		"bad verify key":   {AccessTTL: time.Minute, SigningMethod: MethodEd25519, VerifyKeys: map[string][]byte{"k": []byte("nope")}},
		"empty kid":        {AccessTTL: time.Minute, SigningMethod: MethodEd25519, VerifyKeys: map[string][]byte{" ": pub}},
		"kid not verified": {AccessTTL: time.Minute, SigningMethod: MethodEd25519, PrivateKey: priv, KeyID: "k9", VerifyKeys: map[string][]byte{"k1": pub}},
		"leeway too large": {AccessTTL: time.Minute, SigningMethod: MethodEd25519, PrivateKey: priv, Leeway: time.Hour},
		"unknown method":   {AccessTTL: time.Minute, SigningMethod: "rs256", PrivateKey: priv},
	}
	for name, cfg := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := NewManager(cfg); err == nil {
				t.Fatal("expected NewManager to fail")
			}
		})
	}
}
