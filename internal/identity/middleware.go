package identity

import (
	"net/http"
	"strings"

	apperrors "slotbook/pkg/errors"
	httputil "slotbook/pkg/http"
)

// AccessTokenParam carries the token for clients that cannot set headers,
// such as browser EventSource streams.
const AccessTokenParam = "access_token"

// Authenticate attaches the identity from a bearer token to the request
// context. Requests without a token pass through anonymous; requests with
// a bad token are rejected.
func Authenticate(tokens *TokenIssuer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := bearerToken(r)
			if raw == "" {
				next.ServeHTTP(w, r)
				return
			}

			id, err := tokens.Parse(raw)
			if err != nil {
				_ = httputil.WriteError(w, apperrors.Unauthorized("Invalid or expired session token"))
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

func bearerToken(r *http.Request) string {
	if authz := r.Header.Get("Authorization"); strings.HasPrefix(authz, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(authz, "Bearer "))
	}
	return r.URL.Query().Get(AccessTokenParam)
}
