package identity

import (
	"context"
	"net/http"
	"strings"

	"github.com/lumina-platform/lumina/internal/api"
)

type contextKey string

const claimsKey contextKey = "identity_claims"

// Middleware resolves the caller's identity when a bearer token is present.
// A missing header is not an error and the request continues anonymously, but
// a malformed or invalid token is rejected rather than silently downgraded.
func Middleware(v *Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				next.ServeHTTP(w, r)
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
				api.HandleError(w, api.ErrUnauthorized)
				return
			}

			claims, err := v.Verify(parts[1])
			if err != nil {
				api.HandleError(w, api.ErrInvalidToken)
				return
			}

			ctx := context.WithValue(r.Context(), claimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireIdentity rejects anonymous requests. Mount inside Middleware.
func RequireIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if GetClaims(r.Context()) == nil {
			api.HandleError(w, api.ErrUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// GetClaims returns the verified claims from the context, or nil when the
// caller is anonymous.
func GetClaims(ctx context.Context) *Claims {
	claims, _ := ctx.Value(claimsKey).(*Claims)
	return claims
}
