package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	goIssuer "github.com/MrEthical07/goIssuer"
)

type fakeVerifier map[string]*goIssuer.AccessClaims

func (f fakeVerifier) VerifyAccess(_ context.Context, token string) (*goIssuer.AccessClaims, error) {
	if c, ok := f[token]; ok {
		return c, nil
	}
	return nil, goIssuer.ErrInvalidToken
}

func protected(t *testing.T, v Verifier, mw ...func(http.Handler) http.Handler) http.Handler {
	t.Helper()
	var h http.Handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := ClaimsFromContext(r.Context())
		require.True(t, ok)
		_, _ = w.Write([]byte(claims.Type))
	})
	for i := len(mw) - 1; i >= 0; i-- {
		h = mw[i](h)
	}
	return Guard(v)(h)
}

func TestGuard(t *testing.T) {
	v := fakeVerifier{
		"good":  {Type: "user"},
		"robot": {Type: "service"},
	}

	tests := []struct {
		name   string
		header string
		status int
		body   string
	}{
		{"missing header", "", http.StatusUnauthorized, ""},
		{"basic scheme", "Basic Zm9vOmJhcg==", http.StatusUnauthorized, ""},
		{"empty token", "Bearer ", http.StatusUnauthorized, ""},
		{"unknown token", "Bearer nope", http.StatusUnauthorized, ""},
		{"valid", "Bearer good", http.StatusOK, "user"},
		{"lower case scheme", "bearer good", http.StatusOK, "user"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			protected(t, v).ServeHTTP(rec, req)

			assert.Equal(t, tt.status, rec.Code)
			if tt.status == http.StatusOK {
				assert.Equal(t, tt.body, rec.Body.String())
			} else {
				assert.Contains(t, rec.Header().Get("WWW-Authenticate"), "Bearer")
			}
		})
	}
}

func TestGuardNilVerifier(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer good")
	rec := httptest.NewRecorder()
	Guard(nil)(http.NotFoundHandler()).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireSubjectType(t *testing.T) {
	v := fakeVerifier{
		"good":  {Type: "user"},
		"robot": {Type: "service"},
	}
	h := protected(t, v, RequireSubjectType("service"))

	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("Authorization", "Bearer good")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	req.Header.Set("Authorization", "Bearer robot")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequireSubjectTypeWithoutGuard(t *testing.T) {
	rec := httptest.NewRecorder()
	RequireSubjectType("user")(http.NotFoundHandler()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
