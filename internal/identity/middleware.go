package identity

import (
	"net/http"
	"strings"

	apperrors "roombook/pkg/errors"
	httputil "roombook/pkg/http"
	"roombook/pkg/logger"
)

const bearerPrefix = "Bearer "

// Authenticate resolves the caller from the Authorization header and stores
// it in the request context. Requests without a valid bearer token are
// rejected with 401.
func Authenticate(verifier *TokenVerifier, log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				_ = httputil.WriteError(w, apperrors.Unauthorized("Missing authorization header"))
				return
			}

			tokenString := strings.TrimPrefix(authHeader, bearerPrefix)
			if tokenString == authHeader || strings.TrimSpace(tokenString) == "" {
				_ = httputil.WriteError(w, apperrors.Unauthorized("Invalid authorization header format"))
				return
			}

			principal, err := verifier.Verify(tokenString)
			if err != nil {
				log.Warn("Rejected bearer token",
					"method", r.Method,
					"path", r.URL.Path,
					"error", err,
				)
				_ = httputil.WriteError(w, apperrors.Unauthorized("Invalid or expired token"))
				return
			}

			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), principal)))
		})
	}
}

// CallerKey returns a stable per caller key for rate limiting and
// idempotency scoping. Anonymous requests fall back to the remote address.
func CallerKey(r *http.Request) string {
	if p, ok := FromContext(r.Context()); ok && p.Email != "" {
		return p.Email
	}
	return r.RemoteAddr
}
