package interfaces

import "errors"

// Common interface errors used across components
var (
	ErrNotFound      = errors.New("record not found")
	ErrUnauthorized  = errors.New("unauthorized access")
	ErrConflict      = errors.New("record was modified by another operation")
	ErrAlreadyLinked = errors.New("request already linked to a meeting")
)
