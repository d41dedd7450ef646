// Package common defines shared constants and sentinel errors used across
// the PaperClip server layers. Callers should use errors.Is to match these
// values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound      = errors.New("not found")
	ErrorAlreadyExists = errors.New("already exists")

	// Service-level errors.
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")
	ErrorValidation   = errors.New("validation error")
	ErrEmptyQuery     = errors.New("empty query")
	ErrRateLimited    = errors.New("rate limited")

	// Session resolution errors. Every one of them is a terminal rejection
	// that the transport layer reports as unauthenticated.
	ErrMissingAuthorization = errors.New("missing authorization")
	ErrMalformedCredential  = errors.New("malformed credential")
	// Bad signature, expiry and undecodable tokens share this value.
	ErrInvalidOrExpiredToken = errors.New("invalid or expired token")
	ErrIdentityNotFound      = errors.New("identity not found")
)

// IsAuthRejection reports whether err is one of the session resolution
// rejections.
func IsAuthRejection(err error) bool {
	return errors.Is(err, ErrMissingAuthorization) ||
		errors.Is(err, ErrMalformedCredential) ||
		errors.Is(err, ErrInvalidOrExpiredToken) ||
		errors.Is(err, ErrIdentityNotFound)
}
