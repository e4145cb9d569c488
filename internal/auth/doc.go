// Package auth authenticates API callers.
//
// Two credential kinds are accepted: a static shared key sent in the
// X-API-Key header (configured in plain text or as a bcrypt hash) and an
// HS256-signed bearer token. The static key is checked first; a bearer token
// that fails verification is rejected outright rather than treated as absent.
package auth
