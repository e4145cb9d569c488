package auth

import (
	"context"
	"testing"
	"time"

	"github.com/phrazzld/sentinel/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestKeyVerifier(t *testing.T) {
	t.Parallel()

	hash, err := HashKey("s3cret", bcrypt.MinCost)
	require.NoError(t, err)

	_, err = HashKey("", bcrypt.MinCost)
	assert.Error(t, err)

	tests := []struct {
		name       string
		verifier   *KeyVerifier
		key        string
		configured bool
		want       bool
	}{
		{name: "plain match", verifier: NewKeyVerifier("s3cret", ""), key: "s3cret", configured: true, want: true},
		{name: "plain mismatch", verifier: NewKeyVerifier("s3cret", ""), key: "guess", configured: true},
		{name: "hash match", verifier: NewKeyVerifier("", hash), key: "s3cret", configured: true, want: true},
		{name: "hash mismatch", verifier: NewKeyVerifier("", hash), key: "guess", configured: true},
		{name: "hash wins over plain", verifier: NewKeyVerifier("other", hash), key: "other", configured: true},
		{name: "empty key never matches", verifier: NewKeyVerifier("s3cret", ""), key: "", configured: true},
		{name: "nothing configured", verifier: NewKeyVerifier("", ""), key: "", configured: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.configured, tt.verifier.Configured())
			assert.Equal(t, tt.want, tt.verifier.Verify(tt.key))
		})
	}
}

func TestService_Authenticate(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	tokens, err := NewTokenService(testSecret, time.Hour)
	require.NoError(t, err)
	valid, err := tokens.GenerateToken(ctx, "ci-bot")
	require.NoError(t, err)

	svc := NewService(NewKeyVerifier("s3cret", ""), tokens)

	tests := []struct {
		name        string
		creds       Credentials
		wantErr     error
		wantMethod  string
		wantSubject string
	}{
		{name: "no credentials", creds: Credentials{}, wantErr: ErrUnauthorized},
		{name: "invalid token", creds: Credentials{BearerToken: "garbage"}, wantErr: ErrInvalidToken},
		{name: "wrong key", creds: Credentials{APIKey: "guess"}, wantErr: ErrInvalidAPIKey},
		{
			name:       "valid key",
			creds:      Credentials{APIKey: "s3cret"},
			wantMethod: MethodAPIKey,
		},
		{
			name:       "valid key ignores bad token",
			creds:      Credentials{APIKey: "s3cret", BearerToken: "garbage"},
			wantMethod: MethodAPIKey,
		},
		{
			name:        "valid token",
			creds:       Credentials{BearerToken: valid},
			wantMethod:  MethodToken,
			wantSubject: "ci-bot",
		},
		{
			name:        "wrong key falls through to valid token",
			creds:       Credentials{APIKey: "guess", BearerToken: valid},
			wantMethod:  MethodToken,
			wantSubject: "ci-bot",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			principal, err := svc.Authenticate(ctx, tt.creds)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.ErrorIs(t, err, ErrUnauthorized)
				assert.Nil(t, principal)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantMethod, principal.Method)
			if tt.wantSubject != "" {
				assert.Equal(t, tt.wantSubject, principal.Subject)
			}
		})
	}
}

func TestService_TokenWithoutSecretIsUnauthorized(t *testing.T) {
	t.Parallel()
	svc := NewService(NewKeyVerifier("s3cret", ""), nil)

	_, err := svc.Authenticate(context.Background(), Credentials{BearerToken: "anything"})
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestNewServiceFromConfig(t *testing.T) {
	t.Parallel()

	svc, err := NewServiceFromConfig(config.AuthConfig{
		APIKey:               "s3cret",
		JWTSecret:            testSecret,
		TokenLifetimeMinutes: 5,
	})
	require.NoError(t, err)
	require.NotNil(t, svc.Tokens())

	_, err = NewServiceFromConfig(config.AuthConfig{JWTSecret: "short", TokenLifetimeMinutes: 5})
	assert.Error(t, err)

	keyOnly, err := NewServiceFromConfig(config.AuthConfig{APIKey: "s3cret"})
	require.NoError(t, err)
	assert.Nil(t, keyOnly.Tokens())
}
