// Package scheduler turns an accepted or paid request into a meeting with one
// class slot per purchased class.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"skillswap/internal/notify"
	"skillswap/pkg/interfaces"
	"skillswap/pkg/types"
)

// DefaultIntervalDays is the spacing between classes when no dates are given
const DefaultIntervalDays = 2

// Store is the persistence the scheduler needs
type Store interface {
	GetRequest(ctx context.Context, requestID string) (*types.Request, error)
	CreateMeeting(ctx context.Context, meeting *types.Meeting, notes []*types.Notification) error
}

// Config tunes slot generation
type Config struct {
	IntervalDays     int
	ClassDurationMin int
}

// Scheduler creates meetings for requests
type Scheduler struct {
	store   Store
	builder *notify.Builder
	roomIDs *RoomIDGenerator
	newID   func() string
	now     func() time.Time
	config  Config
	logger  *zap.Logger
}

// New creates a scheduler. Zero config values fall back to the defaults.
func New(store Store, builder *notify.Builder, config Config, logger *zap.Logger) *Scheduler {
	if builder == nil {
		builder = notify.NewBuilder()
	}
	if config.IntervalDays <= 0 {
		config.IntervalDays = DefaultIntervalDays
	}
	if config.ClassDurationMin <= 0 {
		config.ClassDurationMin = types.DefaultClassDurationMin
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		store:   store,
		builder: builder,
		roomIDs: NewRoomIDGenerator(),
		newID:   uuid.NewString,
		now:     time.Now,
		config:  config,
		logger:  logger.Named("scheduler"),
	}
}

// CreateMeetingForRequest builds and persists the meeting for requestID.
// It returns (nil, nil) when the request is already linked to a meeting,
// including when a concurrent call won the race.
func (s *Scheduler) CreateMeetingForRequest(ctx context.Context, requestID string, opts types.ScheduleOptions) (*types.Meeting, error) {
	req, err := s.store.GetRequest(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("load request: %w", err)
	}

	// FUNCTIONAL DISCOVERY: Explicit guard before any write; the conditional
	// link inside the transaction re-checks it after the suspension
	if req.MeetingID != nil {
		s.logger.Debug("request already linked", zap.String("request", requestID), zap.String("meeting", *req.MeetingID))
		return nil, nil
	}
	if err := ValidateOptions(req, opts); err != nil {
		return nil, err
	}

	dates, err := s.classDates(req, opts)
	if err != nil {
		return nil, err
	}

	meeting := &types.Meeting{
		ID:           s.newID(),
		RequestID:    req.ID,
		Participants: []string{req.FromUser, req.ToUser},
		CreatedAt:    s.now().UTC(),
	}
	for i, at := range dates {
		roomID, err := s.roomIDs.Generate(meeting.ID, i)
		if err != nil {
			return nil, err
		}
		meeting.Classes = append(meeting.Classes, types.ClassSlot{
			Index:       i,
			DateTime:    at.UTC(),
			TeacherID:   TeacherFor(req, i),
			Status:      types.SlotStatusUpcoming,
			RoomID:      roomID,
			DurationMin: s.config.ClassDurationMin,
		})
	}

	notes, err := s.builder.Build(notify.Event{
		Type:    types.NotificationMeetingCreated,
		Request: req,
		Meeting: meeting,
		At:      meeting.CreatedAt,
	})
	if err != nil {
		return nil, err
	}

	if err := s.store.CreateMeeting(ctx, meeting, notes); err != nil {
		if errors.Is(err, interfaces.ErrAlreadyLinked) {
			s.logger.Info("meeting creation lost race, treating as no-op", zap.String("request", requestID))
			return nil, nil
		}
		return nil, fmt.Errorf("create meeting: %w", err)
	}

	s.logger.Info("meeting created",
		zap.String("meeting", meeting.ID),
		zap.String("request", req.ID),
		zap.Int("classes", len(meeting.Classes)))
	return meeting, nil
}

// ValidateOptions checks req and opts without touching storage. Callers that
// write before scheduling run it first so a bad schedule leaves nothing behind.
func ValidateOptions(req *types.Request, opts types.ScheduleOptions) error {
	if !types.IsValidClassCount(req.Classes) || !types.IsValidRequestType(req.Type) {
		return ErrRequestNotReady
	}
	if len(opts.ClassDates) == 0 {
		return nil
	}
	if len(opts.ClassDates) != req.Classes {
		return ErrClassDatesMismatch
	}
	for _, d := range opts.ClassDates {
		if d.IsZero() {
			return ErrInvalidClassDate
		}
	}
	return nil
}

// classDates resolves the schedule: explicit dates, else a regular cadence.
// opts must have passed ValidateOptions.
func (s *Scheduler) classDates(req *types.Request, opts types.ScheduleOptions) ([]time.Time, error) {
	n := req.Classes

	if len(opts.ClassDates) > 0 {
		dates := make([]time.Time, n)
		copy(dates, opts.ClassDates)
		return dates, nil
	}

	base, err := s.baseTime(req)
	if err != nil {
		return nil, err
	}

	interval := opts.IntervalDays
	if interval <= 0 {
		interval = s.config.IntervalDays
	}

	dates := make([]time.Time, n)
	for i := range dates {
		dates[i] = base.AddDate(0, 0, i*interval)
	}
	return dates, nil
}

// baseTime resolution: selected slot, first proposed slot, now
func (s *Scheduler) baseTime(req *types.Request) (time.Time, error) {
	var base time.Time
	switch {
	case req.SelectedSlot != nil:
		base = *req.SelectedSlot
	case len(req.ProposedSlots) > 0:
		base = req.ProposedSlots[0]
	default:
		base = s.now()
	}
	if base.IsZero() {
		return time.Time{}, ErrInvalidBaseTime
	}
	return base.UTC(), nil
}

// TeacherFor returns the teacher of slot i: the recipient for paid requests,
// alternating recipient/requester by index parity for exchanges
func TeacherFor(req *types.Request, i int) string {
	if req.Type == types.RequestTypeExchange && i%2 == 1 {
		return req.FromUser
	}
	return req.ToUser
}
