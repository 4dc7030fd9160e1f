package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	apperrors "github.com/sightlinehq/sightline/internal/pkg/errors"
)

// APIKeyAuth returns middleware that requires a matching API key on every
// request. The key is read from the Authorization header ("Bearer <key>")
// or the X-API-Key header. An empty configured key disables the check.
func APIKeyAuth(apiKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if apiKey == "" {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			provided := r.Header.Get("X-API-Key")
			if provided == "" {
				auth := r.Header.Get("Authorization")
				if strings.HasPrefix(auth, "Bearer ") {
					provided = strings.TrimPrefix(auth, "Bearer ")
				}
			}

			if subtle.ConstantTimeCompare([]byte(provided), []byte(apiKey)) != 1 {
				apperrors.WriteError(w, apperrors.UnauthorizedError())
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
