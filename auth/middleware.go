package auth

import (
	"context"
	"net/http"
	"strings"
)

type contextKey string

const UsernameKey contextKey = "username"

// RequireBearer validates the "Authorization: Bearer <jwt>" header and injects
// the username into the request context before calling next.
func RequireBearer(secret []byte, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			w.Header().Set("WWW-Authenticate", "Bearer")
			http.Error(w, "authorization token is missing", http.StatusUnauthorized)
			return
		}

		tokenStr, ok := strings.CutPrefix(header, "Bearer ")
		if !ok {
			w.Header().Set("WWW-Authenticate", "Bearer")
			http.Error(w, "authorization scheme must be Bearer", http.StatusUnauthorized)
			return
		}

		claims, err := ValidateToken(secret, tokenStr)
		if err != nil {
			w.Header().Set("WWW-Authenticate", "Bearer")
			http.Error(w, "invalid or expired token", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), UsernameKey, claims.Subject)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// UsernameFromContext returns the identity injected by RequireBearer.
func UsernameFromContext(ctx context.Context) (string, bool) {
	username, ok := ctx.Value(UsernameKey).(string)
	return username, ok && username != ""
}
