// Package middleware provides the HTTP middleware chain: authentication,
// request logging and metrics.
package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/mmynk/splitsync/internal/auth"
	"github.com/mmynk/splitsync/internal/session"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const (
	userIDKey    contextKey = "user_id"
	sessionIDKey contextKey = "session_id"
	deviceIDKey  contextKey = "device_id"
)

// GetUserID extracts the authenticated user id from the context.
// Returns 0 if not found.
func GetUserID(ctx context.Context) int64 {
	userID, _ := ctx.Value(userIDKey).(int64)
	return userID
}

// GetSessionID extracts the current session id from the context.
func GetSessionID(ctx context.Context) string {
	sessionID, _ := ctx.Value(sessionIDKey).(string)
	return sessionID
}

// GetDeviceID extracts the current device id from the context.
func GetDeviceID(ctx context.Context) string {
	deviceID, _ := ctx.Value(deviceIDKey).(string)
	return deviceID
}

// RequireAuth validates the bearer token, checks the backing session still
// exists (tokens of invalidated sessions are rejected) and refreshes the
// session's rolling expiry, then puts the identity on the request context.
func RequireAuth(jwtManager *auth.JWTManager, sessions session.Store, sessionTTL time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				http.Error(w, auth.ErrMissingToken.Error(), http.StatusUnauthorized)
				return
			}
			tokenString, ok := strings.CutPrefix(authHeader, "Bearer ")
			if !ok {
				http.Error(w, auth.ErrInvalidToken.Error(), http.StatusUnauthorized)
				return
			}

			claims, err := jwtManager.Validate(tokenString)
			if err != nil {
				http.Error(w, auth.ErrInvalidToken.Error(), http.StatusUnauthorized)
				return
			}

			rec, err := sessions.Get(r.Context(), claims.SessionID)
			if err != nil {
				// Deleted, evicted or expired session: the token is dead.
				http.Error(w, auth.ErrInvalidToken.Error(), http.StatusUnauthorized)
				return
			}

			// Rolling expiry: every authenticated request pushes the
			// session's expiry forward. Best-effort.
			if err := sessions.Touch(r.Context(), rec, sessionTTL); err != nil {
				slog.Warn("Failed to refresh session expiry",
					"user_id", rec.UserID, "error", err)
			}

			ctx := context.WithValue(r.Context(), userIDKey, claims.UserID)
			ctx = context.WithValue(ctx, sessionIDKey, claims.SessionID)
			ctx = context.WithValue(ctx, deviceIDKey, claims.DeviceID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
