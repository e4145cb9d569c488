package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/phrazzld/sentinel/internal/api/shared"
	"github.com/phrazzld/sentinel/internal/auth"
)

// APIKeyHeader carries the static shared-secret key.
const APIKeyHeader = "X-API-Key"

// AuthMiddleware rejects requests without valid credentials.
type AuthMiddleware struct {
	authenticator auth.Authenticator
}

// NewAuthMiddleware creates a new AuthMiddleware with the given dependencies.
func NewAuthMiddleware(authenticator auth.Authenticator) *AuthMiddleware {
	return &AuthMiddleware{authenticator: authenticator}
}

// Credentials extracts the static key and bearer token from r. A malformed
// Authorization header yields no token.
func Credentials(r *http.Request) auth.Credentials {
	creds := auth.Credentials{APIKey: r.Header.Get(APIKeyHeader)}
	if scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " "); ok &&
		strings.EqualFold(scheme, "Bearer") {
		creds.BearerToken = strings.TrimSpace(token)
	}
	return creds
}

// Authenticate verifies the request's credentials and stores the principal
// in the request context.
func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal, err := m.authenticator.Authenticate(r.Context(), Credentials(r))
		if err != nil {
			RespondUnauthorized(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(shared.WithPrincipal(r.Context(), principal)))
	})
}

// RespondUnauthorized writes the 401 response for an authentication error.
func RespondUnauthorized(w http.ResponseWriter, r *http.Request, err error) {
	if !errors.Is(err, auth.ErrUnauthorized) {
		shared.RespondWithErrorAndLog(w, r, http.StatusInternalServerError, "Authentication error", err)
		return
	}

	message := "Missing credentials"
	switch {
	case errors.Is(err, auth.ErrExpiredToken):
		message = "Token expired"
	case errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrTokenNotYetValid):
		message = "Invalid token"
	case errors.Is(err, auth.ErrInvalidAPIKey):
		message = "Invalid API key"
	}
	shared.RespondWithErrorAndLog(w, r, http.StatusUnauthorized, message, err, shared.WithElevatedLogLevel())
}
