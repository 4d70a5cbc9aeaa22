// Package meeting is the application service behind the HTTP API: requests,
// payment, meetings, room reveal and class completion.
package meeting

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"skillswap/internal/joinwindow"
	"skillswap/internal/notify"
	"skillswap/pkg/interfaces"
	"skillswap/pkg/types"
)

// Scheduler creates the meeting for an accepted or paid request
type Scheduler interface {
	CreateMeetingForRequest(ctx context.Context, requestID string, opts types.ScheduleOptions) (*types.Meeting, error)
}

// Service implements interfaces.MeetingService and interfaces.RoomAuthorizer
type Service struct {
	db        interfaces.DatabaseManager
	scheduler Scheduler
	publisher notify.Publisher
	builder   *notify.Builder
	policy    joinwindow.Policy
	newID     func() string
	now       func() time.Time
	logger    *zap.Logger
}

// NewService wires the service. publisher and builder may be nil.
func NewService(db interfaces.DatabaseManager, scheduler Scheduler, publisher notify.Publisher, builder *notify.Builder, policy joinwindow.Policy, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if builder == nil {
		builder = notify.NewBuilder()
	}
	if publisher == nil {
		publisher = notify.NewStorePublisher(db, builder, logger)
	}
	return &Service{
		db:        db,
		scheduler: scheduler,
		publisher: publisher,
		builder:   builder,
		policy:    policy,
		newID:     uuid.NewString,
		now:       time.Now,
		logger:    logger.Named("meeting"),
	}
}

// Policy returns the join window in force
func (s *Service) Policy() joinwindow.Policy {
	return s.policy
}

// UpsertUser stores the caller's own profile
func (s *Service) UpsertUser(ctx context.Context, callerID string, user *types.User) (*types.User, error) {
	if user.ID == "" {
		user.ID = callerID
	}
	if user.ID != callerID {
		return nil, ErrForbidden
	}
	if err := user.Validate(); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	user.UpdatedAt = now
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	if err := s.db.UpsertUser(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to save user: %w", err)
	}
	return s.db.GetUser(ctx, user.ID)
}

// GetUser reads a profile
func (s *Service) GetUser(ctx context.Context, userID string) (*types.User, error) {
	if !types.IsValidUserID(userID) {
		return nil, types.ErrInvalidUserID
	}
	return s.db.GetUser(ctx, userID)
}

// publish emits a standalone notification event. Failures are logged, the
// transition has already committed.
func (s *Service) publish(ctx context.Context, ev notify.Event) {
	if err := s.publisher.Publish(ctx, ev); err != nil {
		s.logger.Error("failed to publish notification", zap.String("type", ev.Type), zap.Error(err))
	}
}
