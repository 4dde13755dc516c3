package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"civicroute/auth"
)

// AuthMiddleware validates dashboard bearer tokens
type AuthMiddleware struct {
	credentials auth.CredentialStore
}

// NewAuthMiddleware creates a new auth middleware
func NewAuthMiddleware(credentials auth.CredentialStore) *AuthMiddleware {
	return &AuthMiddleware{credentials: credentials}
}

// RequireDashboardAuth validates the bearer token and stores the operator
// username in the request context.
func (m *AuthMiddleware) RequireDashboardAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			respondWithError(w, http.StatusUnauthorized, "Unauthorized", "Authorization header required")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			respondWithError(w, http.StatusUnauthorized, "Unauthorized", "Invalid authorization format. Expected: Bearer <token>")
			return
		}

		username, err := auth.ParseDashboardToken(parts[1], m.credentials.TokenSecret())
		if err != nil {
			respondWithError(w, http.StatusUnauthorized, "Unauthorized", "Invalid or expired token")
			return
		}

		ctx := context.WithValue(r.Context(), ctxKeyUsername, username)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetUsername returns the authenticated operator, or "" outside the
// authenticated chain
func GetUsername(r *http.Request) string {
	if username, ok := r.Context().Value(ctxKeyUsername).(string); ok {
		return username
	}
	return ""
}

// respondWithError writes the uniform JSON error body without importing the
// handler package
func respondWithError(w http.ResponseWriter, statusCode int, errorType, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	body := fmt.Sprintf(`{"error":%q,"message":%q,"code":%d}`, errorType, message, statusCode)
	_, _ = w.Write([]byte(body))
}
