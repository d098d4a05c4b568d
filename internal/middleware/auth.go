package middleware

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/zkid-sh/zkauth/internal/token"
)

type contextKey string

const usernameContextKey contextKey = "zkauth_username"

// BearerAuth authenticates a request with a session token issued by
// the verify endpoint, the same credential an ordinary logged-in user
// holds. It does not gate the admin audit stream — that surface is
// operator-only and has no relationship to any one user's session, so
// it is protected by StaticAdminAuth instead.
func BearerAuth(issuer *token.Issuer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if !strings.HasPrefix(authHeader, "Bearer ") {
				unauthorized(w)
				return
			}
			tok := strings.TrimPrefix(authHeader, "Bearer ")
			if tok == "" {
				unauthorized(w)
				return
			}

			username, err := issuer.Validate(tok)
			if err != nil {
				unauthorized(w)
				return
			}

			ctx := context.WithValue(r.Context(), usernameContextKey, username)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// StaticAdminAuth protects the admin audit stream with a single
// operator-configured token (ZKAUTH_ADMIN_TOKEN), compared in constant
// time so the check does not leak timing information about how much
// of the token matched. It is independent of the user session token
// issuer entirely: a regular user's bearer token, however valid, never
// satisfies this check.
func StaticAdminAuth(adminToken string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			const prefix = "Bearer "
			if !strings.HasPrefix(authHeader, prefix) {
				unauthorized(w)
				return
			}
			presented := strings.TrimPrefix(authHeader, prefix)
			if presented == "" || adminToken == "" {
				unauthorized(w)
				return
			}
			if subtle.ConstantTimeCompare([]byte(presented), []byte(adminToken)) != 1 {
				unauthorized(w)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// UsernameFromContext returns the username a BearerAuth middleware
// attached to the request context, if any.
func UsernameFromContext(ctx context.Context) (string, bool) {
	username, ok := ctx.Value(usernameContextKey).(string)
	return username, ok
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write([]byte(`{"error":"authentication required"}`))
}
