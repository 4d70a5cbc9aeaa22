package callclient

import "errors"

// Call client error types
var (
	ErrMediaUnavailable  = errors.New("camera or microphone unavailable")
	ErrSignalingFailed   = errors.New("signaling channel failed")
	ErrJoinRejected      = errors.New("room join rejected")
	ErrAlreadyRunning    = errors.New("call already started")
	ErrInvalidTransition = errors.New("invalid call state transition")
	ErrInvalidSession    = errors.New("room name and class duration are required")
	ErrUnexpectedMedia   = errors.New("media was not produced by this peer factory")
	ErrReportFailed      = errors.New("completion report failed")
	ErrAlreadyCompleted  = errors.New("class already completed")
	ErrClassCancelled    = errors.New("class was cancelled")
)
