package interfaces

import (
	"context"
	"time"

	"skillswap/pkg/types"
)

// DatabaseManager handles all database operations
// ARCHITECTURAL DISCOVERY: Single interface for all persistence operations
// enables consistent transaction handling and connection management
type DatabaseManager interface {
	// User operations
	UpsertUser(ctx context.Context, user *types.User) error
	GetUser(ctx context.Context, userID string) (*types.User, error)

	// Request operations

	// CreateRequest persists a new pending request
	CreateRequest(ctx context.Context, req *types.Request) error
	GetRequest(ctx context.Context, requestID string) (*types.Request, error)
	ListRequestsTo(ctx context.Context, userID string) ([]*types.Request, error)
	ListRequestsFrom(ctx context.Context, userID string) ([]*types.Request, error)

	// DecideRequest moves a pending request addressed to recipientID to status.
	// FUNCTIONAL DISCOVERY: Conditional update on status='pending' so two
	// concurrent decisions cannot both win; the loser gets ErrConflict
	DecideRequest(ctx context.Context, requestID, recipientID string, status types.RequestStatus, slot *time.Time) error

	// MarkRequestPaid captures payment for an accepted, unpaid, paid-type request.
	// Returns ErrConflict when the request is not in that state.
	MarkRequestPaid(ctx context.Context, requestID, requesterID string, paidAt time.Time) error

	// Meeting operations

	// CreateMeeting inserts the meeting, its slots, the request back-link and
	// notes in one transaction. Returns ErrAlreadyLinked and writes nothing
	// when the request gained a meeting concurrently.
	CreateMeeting(ctx context.Context, meeting *types.Meeting, notes []*types.Notification) error
	GetMeeting(ctx context.Context, meetingID string) (*types.Meeting, error)
	ListMeetingsForUser(ctx context.Context, userID string) ([]*types.Meeting, error)

	// FindClassByRoom resolves a room id to its meeting and class index
	FindClassByRoom(ctx context.Context, roomID string) (*types.Meeting, int, error)

	// CompleteClass flips an upcoming slot to completed, increments the request
	// counter and inserts notes atomically. Returns ErrConflict when the slot
	// is no longer upcoming.
	CompleteClass(ctx context.Context, completion *types.ClassCompletion, notes []*types.Notification) error

	// Notification operations
	InsertNotifications(ctx context.Context, notes []*types.Notification) error
	GetNotification(ctx context.Context, notificationID string) (*types.Notification, error)
	ListNotifications(ctx context.Context, userID string) ([]*types.Notification, error)
	MarkNotificationRead(ctx context.Context, notificationID string) error

	// Health and lifecycle operations
	HealthCheck(ctx context.Context) error
	Close() error
}
