package internal

import (
	"encoding/base64"
	"testing"
)

// FuzzOpaqueTokens feeds one arbitrary string to every opaque token parser.
// Whatever a parser accepts must re-encode to the same string, so no two
// spellings name the same record.
func FuzzOpaqueTokens(f *testing.F) {
	if id, err := NewRequestID(); err == nil {
		f.Add(id.String())
	}
	if code, err := NewAuthorizationCode(); err == nil {
		f.Add(code)
	}
	if id, err := NewRefreshID(); err == nil {
		if secret, err := NewRefreshSecret(); err == nil {
			if tok, err := EncodeRefreshToken(id, secret); err == nil {
				f.Add(tok)
			}
		}
	}
	f.Add("")
	f.Add("AAAAAAAAAAAAAAAAAAAAAA==")
	f.Add("!!!not-base64!!!")

	f.Fuzz(func(t *testing.T, input string) {
		if id, err := ParseRequestID(input); err == nil && id.String() != input {
			t.Fatalf("request id %q re-encodes as %q", input, id.String())
		}

		if ValidAuthorizationCode(input) {
			raw, _ := base64.RawURLEncoding.DecodeString(input)
			if base64.RawURLEncoding.EncodeToString(raw) != input {
				t.Fatalf("authorization code %q is not canonical", input)
			}
		}

		refreshID, secret, err := DecodeRefreshToken(input)
		if err != nil {
			return
		}
		again, err := EncodeRefreshToken(refreshID, secret)
		if err != nil {
			t.Fatalf("re-encode of decoded refresh token failed: %v", err)
		}
		if again != input {
			t.Fatalf("refresh token %q re-encodes as %q", input, again)
		}
	})
}
