package auth

import "errors"

var (
	ErrMissingToken     = errors.New("missing bearer token")
	ErrInvalidToken     = errors.New("invalid or expired token")
	ErrMissingSubject   = errors.New("token has no subject")
	ErrSecretNotSet     = errors.New("jwt secret is not configured")
	ErrUnexpectedMethod = errors.New("unexpected signing method")
)
