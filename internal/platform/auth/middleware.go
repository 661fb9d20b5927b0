package auth

import (
	"net/http"
	"strings"

	"github.com/baechuer/crm-platform/internal/platform/httpx"
)

// Require rejects requests without a valid bearer token and attaches the
// verified principal to the request context.
func Require(v *Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				httpx.Fail(w, http.StatusUnauthorized, "unauthorized", "missing bearer token", nil, httpx.RequestIDFromRequest(r))
				return
			}

			principal, err := v.Verify(token)
			if err != nil {
				code := "unauthorized"
				if err == ErrTokenExpired {
					code = "token_expired"
				}
				httpx.Fail(w, http.StatusUnauthorized, code, "invalid or expired token", nil, httpx.RequestIDFromRequest(r))
				return
			}

			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), principal)))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	h := strings.TrimSpace(r.Header.Get("Authorization"))
	if !strings.HasPrefix(h, "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	return token, token != ""
}
