package interfaces

import (
	"context"
	"time"

	"skillswap/pkg/types"
)

// MeetingService is the application surface the HTTP API serves.
// Every method takes the verified caller id and enforces its own authorization.
type MeetingService interface {
	UpsertUser(ctx context.Context, callerID string, user *types.User) (*types.User, error)
	GetUser(ctx context.Context, userID string) (*types.User, error)

	CreateRequest(ctx context.Context, callerID string, req *types.Request) (*types.Request, error)
	GetRequest(ctx context.Context, callerID, requestID string) (*types.Request, error)
	ListIncoming(ctx context.Context, callerID string) ([]*types.Request, error)
	ListSent(ctx context.Context, callerID string) ([]*types.Request, error)
	SelectSlot(ctx context.Context, callerID, requestID string, slot time.Time) (*types.Request, error)
	RejectRequest(ctx context.Context, callerID, requestID string) (*types.Request, error)
	Pay(ctx context.Context, callerID, requestID string, opts types.ScheduleOptions) (*types.Request, *types.Meeting, error)

	GetMeeting(ctx context.Context, callerID, meetingID string) (*types.Meeting, error)
	ListMeetingsForUser(ctx context.Context, callerID, userID string) ([]*types.Meeting, error)
	RevealRoom(ctx context.Context, callerID, meetingID string, index int) (*types.RoomReveal, error)
	RoomInfo(ctx context.Context, callerID, roomID string) (*types.RoomInfo, error)
	CompleteClass(ctx context.Context, callerID, meetingID string, index int, report types.CompletionReport) (*types.ClassSlot, error)

	ListNotifications(ctx context.Context, callerID string) ([]*types.Notification, error)
	MarkNotificationRead(ctx context.Context, callerID, notificationID string) (*types.Notification, error)
}

// RoomAuthorizer checks whether a user may join a room id
type RoomAuthorizer interface {
	AuthorizeRoom(ctx context.Context, userID, roomID string) error
}
