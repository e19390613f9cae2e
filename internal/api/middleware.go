/**
 * @description
 * This file contains custom middleware for the HTTP router: session authentication
 * for customer routes and API-key authentication for the admin surface.
 *
 * @dependencies
 * - github.com/golang-jwt/jwt/v5 (through SessionIssuer): HS256 session tokens.
 * - crypto/subtle: Constant-time admin key comparison.
 */

package api

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"
)

// AccountContextKey is a custom type for the context key to avoid collisions.
type AccountContextKey string

const accountNumberKey AccountContextKey = "accountNumber"

// AdminAPIKeyHeader carries the shared admin secret.
const AdminAPIKeyHeader = "X-Admin-API-Key"

// SessionAuthMiddleware requires a valid `Authorization: Bearer <jwt>` header and
// stores the session's account number on the request context.
func SessionAuthMiddleware(sessions *SessionIssuer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeError(w, http.StatusUnauthorized, "Authorization header required")
				return
			}

			tokenString := strings.TrimPrefix(authHeader, "Bearer ")
			if tokenString == authHeader {
				writeError(w, http.StatusUnauthorized, "Invalid Authorization header format")
				return
			}

			accountNumber, err := sessions.Parse(tokenString)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "Invalid or expired session")
				return
			}

			ctx := context.WithValue(r.Context(), accountNumberKey, accountNumber)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// AdminAPIKeyMiddleware rejects requests whose X-Admin-API-Key does not match apiKey.
func AdminAPIKeyMiddleware(apiKey string) func(http.Handler) http.Handler {
	expected := []byte(strings.TrimSpace(apiKey))
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			provided := []byte(strings.TrimSpace(r.Header.Get(AdminAPIKeyHeader)))
			if len(expected) == 0 || subtle.ConstantTimeCompare(provided, expected) != 1 {
				writeError(w, http.StatusUnauthorized, "Invalid admin API key")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// GetAccountNumber retrieves the authenticated account number from the request context.
func GetAccountNumber(ctx context.Context) (string, bool) {
	accountNumber, ok := ctx.Value(accountNumberKey).(string)
	return accountNumber, ok && accountNumber != ""
}
