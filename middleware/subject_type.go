package middleware

import (
	"net/http"
)

// RequireSubjectType allows only subjects of the listed types. It must run
// after Guard; requests without claims are rejected with 401.
func RequireSubjectType(types ...string) func(http.Handler) http.Handler {
	allowed := make(map[string]struct{}, len(types))
	for _, t := range types {
		allowed[t] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := ClaimsFromContext(r.Context())
			if !ok {
				unauthorized(w, "")
				return
			}
			if _, ok := allowed[claims.Type]; !ok {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
