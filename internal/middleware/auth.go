package middleware

import (
	"encoding/json"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/lacs-cc/auth-gateway/internal/identity"
	"github.com/lacs-cc/auth-gateway/internal/request"
)

// Auth validates the bearer access token against the identity provider and
// attaches the resolved user to the request context. The first-party invite
// endpoints sit behind this; the cross-domain handshake does not, since its
// tokens are carried in the request body.
func Auth(provider identity.Provider, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				respondError(w, http.StatusUnauthorized, "missing Authorization header")
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || parts[0] != "Bearer" {
				respondError(w, http.StatusUnauthorized, "invalid Authorization header format")
				return
			}

			user, err := provider.GetUser(r.Context(), parts[1])
			if err != nil {
				logger.Debug("bearer_token_rejected", zap.Error(err))
				respondError(w, http.StatusUnauthorized, "invalid or expired token")
				return
			}

			ctx := request.WithUser(r.Context(), user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"success": false,
		"error":   message,
	})
}
