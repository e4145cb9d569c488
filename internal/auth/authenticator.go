package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/phrazzld/sentinel/internal/config"
	"github.com/phrazzld/sentinel/internal/platform/logger"
)

// Credentials are the values a caller presented.
type Credentials struct {
	APIKey      string
	BearerToken string
}

// Authentication methods recorded on a Principal.
const (
	MethodAPIKey = "api_key"
	MethodToken  = "token"
)

// Principal identifies an authenticated caller.
type Principal struct {
	Subject string
	Method  string
}

// Authenticator verifies caller credentials.
type Authenticator interface {
	// Authenticate returns the caller's principal or an error wrapping ErrUnauthorized.
	Authenticate(ctx context.Context, creds Credentials) (*Principal, error)
}

// Service checks the static key first and then the bearer token.
type Service struct {
	keys   *KeyVerifier
	tokens TokenService
}

// Ensure Service implements Authenticator
var _ Authenticator = (*Service)(nil)

// NewService creates a Service. tokens may be nil when no signing secret is configured.
func NewService(keys *KeyVerifier, tokens TokenService) *Service {
	if keys == nil {
		keys = NewKeyVerifier("", "")
	}
	return &Service{keys: keys, tokens: tokens}
}

// NewServiceFromConfig builds a Service from the auth configuration section.
func NewServiceFromConfig(cfg config.AuthConfig) (*Service, error) {
	var tokens TokenService
	if cfg.JWTSecret != "" {
		var err error
		tokens, err = NewTokenService(cfg.JWTSecret, time.Duration(cfg.TokenLifetimeMinutes)*time.Minute)
		if err != nil {
			return nil, fmt.Errorf("failed to create token service: %w", err)
		}
	}
	return NewService(NewKeyVerifier(cfg.APIKey, cfg.APIKeyHash), tokens), nil
}

// Tokens returns the token service, or nil when tokens are not configured.
func (s *Service) Tokens() TokenService {
	return s.tokens
}

// Authenticate accepts a matching static key regardless of any token. Otherwise
// a presented token must verify; a token that fails is a hard failure.
func (s *Service) Authenticate(ctx context.Context, creds Credentials) (*Principal, error) {
	log := logger.FromContext(ctx)

	if s.keys.Configured() && s.keys.Verify(creds.APIKey) {
		return &Principal{Subject: "api-key", Method: MethodAPIKey}, nil
	}

	if creds.BearerToken != "" && s.tokens != nil {
		claims, err := s.tokens.ValidateToken(ctx, creds.BearerToken)
		if err != nil {
			log.Debug("bearer token rejected", "error", err)
			return nil, err
		}
		return &Principal{Subject: claims.Subject, Method: MethodToken}, nil
	}

	if creds.APIKey != "" {
		return nil, ErrInvalidAPIKey
	}
	return nil, ErrUnauthorized
}
