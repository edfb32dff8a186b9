package middleware

import (
	"context"
	"net/http"
	"strings"

	goIssuer "github.com/MrEthical07/goIssuer"
)

// Verifier is satisfied by *goIssuer.Issuer.
type Verifier interface {
	VerifyAccess(ctx context.Context, token string) (*goIssuer.AccessClaims, error)
}

type claimsContextKey struct{}

// ClaimsFromContext returns the claims stored by Guard.
func ClaimsFromContext(ctx context.Context) (*goIssuer.AccessClaims, bool) {
	claims, ok := ctx.Value(claimsContextKey{}).(*goIssuer.AccessClaims)
	return claims, ok
}

// Guard rejects requests without a valid bearer access token and stores the
// verified claims in the request context.
func Guard(verifier Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if verifier == nil {
				unauthorized(w, "")
				return
			}

			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				unauthorized(w, "")
				return
			}

			claims, err := verifier.VerifyAccess(r.Context(), token)
			if err != nil {
				unauthorized(w, "invalid_token")
				return
			}

			ctx := context.WithValue(r.Context(), claimsContextKey{}, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func unauthorized(w http.ResponseWriter, code string) {
	challenge := "Bearer"
	if code != "" {
		challenge += ` error="` + code + `"`
	}
	w.Header().Set("WWW-Authenticate", challenge)
	http.Error(w, "unauthorized", http.StatusUnauthorized)
}

func bearerToken(value string) (string, bool) {
	const bearer = "bearer "
	if len(value) < len(bearer) || !strings.EqualFold(value[:len(bearer)], bearer) {
		return "", false
	}

	token := strings.TrimSpace(value[len(bearer):])
	if token == "" {
		return "", false
	}

	return token, true
}
