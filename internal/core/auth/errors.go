package auth

import "errors"

// Authentication errors all map to UNAUTHENTICATED; none confirms whether
// a secret id exists beyond ErrUnknownKey.
var (
	ErrMissingKey       = errors.New("API key required in x-api-key metadata")
	ErrInvalidKeyFormat = errors.New("invalid API key format")
	ErrUnknownKey       = errors.New("unknown secret ID")
	ErrInvalidKey       = errors.New("invalid API key")
)
