package rooms

import "errors"

var (
	ErrRoomNotFound  = errors.New("room not found")
	ErrNotMember     = errors.New("connection is not a member of the room")
	ErrInvalidRoomID = errors.New("room id cannot be empty")
	ErrInvalidConnID = errors.New("connection id cannot be empty")
)
