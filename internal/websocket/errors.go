package websocket

import "errors"

var (
	ErrConnectionClosed = errors.New("connection closed")
	ErrSlowConsumer     = errors.New("send queue full, connection dropped")
	ErrInvalidJSON      = errors.New("invalid JSON data")

	ErrNilConnection              = errors.New("connection cannot be nil")
	ErrConnectionNotAuthenticated = errors.New("connection must be authenticated before registration")

	ErrMissingCredential = errors.New("missing bearer credential")
)
