package router

import "errors"

// Router-specific error types
var (
	ErrInvalidMessageType     = errors.New("invalid message type")
	ErrRateLimitExceeded      = errors.New("rate limit exceeded")
	ErrSenderNotAuthenticated = errors.New("sender not authenticated")
	ErrMissingRoomName        = errors.New("roomName required")
	ErrRoomAccessDenied       = errors.New("not allowed to join this room")
	ErrTargetNotConnected     = errors.New("signal target not connected")
	ErrTargetNotInRoom        = errors.New("signal target shares no room with sender")
)
