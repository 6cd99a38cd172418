package middleware

import (
	"context"
	"net/http"
	"strings"

	jwtutil "github.com/Dias221467/savings-goals/pkg/jwt"
	"github.com/Dias221467/savings-goals/pkg/logger"
)

type contextKey string

const userContextKey contextKey = "user"

// AuthMiddleware resolves the session from a Bearer token and stores its claims in the request context.
func AuthMiddleware(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || token == "" {
				http.Error(w, "Missing or malformed Authorization header", http.StatusUnauthorized)
				return
			}

			claims, err := jwtutil.ValidateToken(token, secret)
			if err != nil {
				logger.Log.WithError(err).Warn("Rejected bearer token")
				http.Error(w, "Invalid token", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), claims)))
		})
	}
}

// WithUser returns a copy of ctx carrying claims.
func WithUser(ctx context.Context, claims *jwtutil.Claims) context.Context {
	return context.WithValue(ctx, userContextKey, claims)
}

// GetUserFromContext returns the claims stored by AuthMiddleware, or nil.
func GetUserFromContext(ctx context.Context) *jwtutil.Claims {
	claims, _ := ctx.Value(userContextKey).(*jwtutil.Claims)
	return claims
}
