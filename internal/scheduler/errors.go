package scheduler

import "errors"

var (
	ErrInvalidBaseTime    = errors.New("request has no valid base time for scheduling")
	ErrClassDatesMismatch = errors.New("class dates count must equal the number of classes")
	ErrInvalidClassDate   = errors.New("class dates must be valid timestamps")
	ErrRequestNotReady    = errors.New("request is not ready for scheduling")
	ErrRoomIDGeneration   = errors.New("failed to generate room id")
)
