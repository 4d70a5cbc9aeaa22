package hub

import "errors"

// Hub-specific error types
var (
	ErrHubAlreadyRunning  = errors.New("hub is already running")
	ErrHubNotRunning      = errors.New("hub is not running")
	ErrNilConnection      = errors.New("connection cannot be nil")
	ErrNilEnvelope        = errors.New("envelope cannot be nil")
	ErrMessageChannelFull = errors.New("message channel is full")
)
