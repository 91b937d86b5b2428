package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/finora-labs/chat-sync/pkg/auth"
	"github.com/finora-labs/chat-sync/pkg/storage"
)

// ContextKey is the type for context keys
type ContextKey string

const (
	// ContextKeyUserID is the context key for user ID
	ContextKeyUserID ContextKey = "userID"
	// ContextKeyBearerToken is the context key for bearer token
	ContextKeyBearerToken ContextKey = "bearerToken"
)

// AuthMiddleware verifies the bearer token and adds the user ID to the
// request context. The token is read from the Authorization header, with
// a query parameter fallback for WebSocket clients that cannot set
// headers.
func AuthMiddleware(store *storage.Store, validator auth.TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				respondError(w, r, http.StatusUnauthorized, "Missing authorization token")
				return
			}

			userID, err := auth.UserIDFromToken(validator, token)
			if err != nil {
				respondError(w, r, http.StatusUnauthorized, "Invalid or expired token")
				return
			}

			if _, err := store.FindUserByID(userID); err != nil {
				if err == storage.ErrNotFound {
					respondError(w, r, http.StatusUnauthorized, "User not found - please log in again")
					return
				}
				respondError(w, r, http.StatusInternalServerError, "Failed to validate user")
				return
			}

			ctx := context.WithValue(r.Context(), ContextKeyUserID, userID)
			ctx = context.WithValue(ctx, ContextKeyBearerToken, token)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		parts := strings.Split(header, " ")
		if len(parts) == 2 && parts[0] == "Bearer" {
			return parts[1]
		}
		return ""
	}
	return r.URL.Query().Get("token")
}

// GetUserIDFromContext retrieves the user ID from the request context
func GetUserIDFromContext(ctx context.Context) uuid.UUID {
	userID, ok := ctx.Value(ContextKeyUserID).(uuid.UUID)
	if !ok {
		return uuid.Nil
	}
	return userID
}

// GetBearerTokenFromContext retrieves the bearer token from the request context
func GetBearerTokenFromContext(ctx context.Context) string {
	token, ok := ctx.Value(ContextKeyBearerToken).(string)
	if !ok {
		return ""
	}
	return token
}
