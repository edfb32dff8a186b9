package jwt

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"strings"
	"testing"
	"time"
)

func fuzzManager(f *testing.F) *Manager {
	f.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		f.Fatal(err)
	}
	mgr, err := NewManager(Config{
		AccessTTL:     5 * time.Minute,
		SigningMethod: MethodEd25519,
		PrivateKey:    priv,
		PublicKey:     pub,
		Issuer:        "https://issuer.fuzz",
		Leeway:        30 * time.Second,
		RequireIAT:    true,
		KeyID:         "k1",
		VerifyKeys:    map[string][]byte{"k1": pub},
	})
	if err != nil {
		f.Fatal(err)
	}
	return mgr
}

// FuzzParseAccess feeds arbitrary strings to the verifier: no panics, and
// anything accepted must be a well-formed access token.
func FuzzParseAccess(f *testing.F) {
	mgr := fuzzManager(f)
	valid, err := mgr.CreateAccess(AccessInput{Type: "user", Properties: map[string]any{"id": "u1"}, ClientID: "web"})
	if err != nil {
		f.Fatal(err)
	}

	f.Add(valid)
	f.Add("")
	f.Add("a.b.c")
	f.Add("eyJhbGciOiJub25lIn0.eyJtb2RlIjoiYWNjZXNzIn0.")
	f.Add("eyJhbGciOiJIUzI1NiJ9.eyJtb2RlIjoiYWNjZXNzIiwidHlwZSI6InVzZXIifQ.c2ln")

	f.Fuzz(func(t *testing.T, input string) {
		claims, err := mgr.ParseAccess(input)
		if err != nil {
			return
		}
		if claims == nil {
			t.Fatal("ParseAccess returned nil claims without error")
		}
		if claims.Mode != "access" || claims.Type == "" {
			t.Fatalf("accepted token with mode=%q type=%q", claims.Mode, claims.Type)
		}
	})
}

// FuzzForgedPayload keeps a genuine header and signature and swaps in an
// arbitrary payload. Only the original payload may verify.
func FuzzForgedPayload(f *testing.F) {
	mgr := fuzzManager(f)
	valid, err := mgr.CreateAccess(AccessInput{Type: "user", Properties: map[string]any{"id": "u1"}, ClientID: "web"})
	if err != nil {
		f.Fatal(err)
	}
	parts := strings.Split(valid, ".")
	if len(parts) != 3 {
		f.Fatalf("token has %d segments", len(parts))
	}

	f.Add([]byte(`{"mode":"access","type":"admin","properties":{"id":"root"}}`))
	f.Add([]byte(`{}`))
	f.Add([]byte{0xff, 0x00})

	f.Fuzz(func(t *testing.T, payload []byte) {
		segment := base64.RawURLEncoding.EncodeToString(payload)
		if segment == parts[1] {
			return
		}
		forged := parts[0] + "." + segment + "." + parts[2]
		if _, err := mgr.ParseAccess(forged); err == nil {
			t.Fatalf("forged payload %q verified", payload)
		}
	})
}
