package server

import (
	"context"
	"net/http"

	"github.com/tjfontaine/interview-conductor/internal/auth"
)

// apiKeyContextKey identifies the validated API key entry in context.
type apiKeyContextKey struct{}

// AuthMiddleware validates the Bearer API key on every request.
func AuthMiddleware(authenticator *auth.Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			apiKey, err := auth.ExtractAPIKey(r)
			if err != nil {
				http.Error(w, "Missing or malformed Authorization header", http.StatusUnauthorized)
				return
			}

			key, err := authenticator.ValidateAPIKey(apiKey)
			if err != nil {
				http.Error(w, "Invalid API key", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), apiKeyContextKey{}, key)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetAPIKey retrieves the validated API key entry from context.
func GetAPIKey(ctx context.Context) (auth.Key, bool) {
	key, ok := ctx.Value(apiKeyContextKey{}).(auth.Key)
	return key, ok
}
