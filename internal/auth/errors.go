package auth

import (
	"errors"
	"fmt"
)

// Common authentication errors. Every error returned by Authenticate wraps
// ErrUnauthorized.
var (
	// ErrUnauthorized indicates the caller supplied no usable credentials.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrInvalidToken indicates the token format is invalid or signature doesn't match
	ErrInvalidToken = fmt.Errorf("%w: invalid authentication token", ErrUnauthorized)

	// ErrExpiredToken indicates the token has expired
	ErrExpiredToken = fmt.Errorf("%w: authentication token has expired", ErrUnauthorized)

	// ErrTokenNotYetValid indicates the token is not yet valid (nbf claim in the future)
	ErrTokenNotYetValid = fmt.Errorf("%w: authentication token not yet valid", ErrUnauthorized)

	// ErrInvalidAPIKey indicates a static key was sent but does not match.
	ErrInvalidAPIKey = fmt.Errorf("%w: invalid API key", ErrUnauthorized)
)
