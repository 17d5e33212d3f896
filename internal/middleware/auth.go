package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/actuallyakshat/chrona/internal/services"
)

type contextKey string

const userIDKey contextKey = "user_id"

// AuthMiddleware validates the bearer token issued by the identity provider
// and resolves the local user, storing their id in the request context.
func AuthMiddleware(userService *services.UserService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				respondError(w, "Authorization header required", http.StatusUnauthorized)
				return
			}

			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				respondError(w, "Invalid authorization header format", http.StatusUnauthorized)
				return
			}

			externalID, err := userService.ValidateJWT(parts[1])
			if err != nil {
				respondError(w, "Invalid token", http.StatusUnauthorized)
				return
			}

			user, err := userService.GetByExternalID(r.Context(), externalID)
			if err != nil {
				respondError(w, "Identity not provisioned", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), userIDKey, user.ID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetUserID extracts the authenticated user's id from context
func GetUserID(ctx context.Context) string {
	userID, ok := ctx.Value(userIDKey).(string)
	if !ok {
		return ""
	}
	return userID
}

// respondError sends an error response
func respondError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]string{
		"error": message,
		"code":  "NOT_AUTHENTICATED",
	})
}

// ValidateWebSocketToken validates a JWT from the WebSocket query parameter
// and resolves the local user id.
func ValidateWebSocketToken(ctx context.Context, token string, userService *services.UserService) (string, error) {
	externalID, err := userService.ValidateJWT(token)
	if err != nil {
		return "", err
	}
	user, err := userService.GetByExternalID(ctx, externalID)
	if err != nil {
		return "", err
	}
	return user.ID, nil
}
