package types

import "errors"

// Specific error types enable proper error handling
// and user-friendly error messages throughout the system
var (
	ErrInvalidUserID       = errors.New("user ID must be 1-64 characters, alphanumeric + underscore/hyphen only")
	ErrInvalidRequestType  = errors.New("request type must be 'paid' or 'exchange'")
	ErrInvalidClassCount   = errors.New("class count must be 4 or 6")
	ErrNoProposedSlots     = errors.New("at least one proposed slot is required")
	ErrInvalidProposedSlot = errors.New("proposed slots must be valid timestamps")
	ErrSelfRequest         = errors.New("cannot request yourself")
	ErrInvalidUserName     = errors.New("user name must be 1-200 characters")
	ErrInvalidPrice        = errors.New("prices cannot be negative")
	ErrInvalidPayload      = errors.New("invalid message payload")
	ErrInvalidRoomName     = errors.New("room name must be 1-128 characters without whitespace")
	ErrSignalTooLarge      = errors.New("signal payload exceeds 64KB limit")
)
