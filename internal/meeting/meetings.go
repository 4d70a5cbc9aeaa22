package meeting

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"skillswap/internal/joinwindow"
	"skillswap/internal/notify"
	"skillswap/pkg/interfaces"
	"skillswap/pkg/types"
)

// GetMeeting returns a meeting to one of its participants
func (s *Service) GetMeeting(ctx context.Context, callerID, meetingID string) (*types.Meeting, error) {
	m, err := s.db.GetMeeting(ctx, meetingID)
	if err != nil {
		return nil, err
	}
	if !m.IsParticipant(callerID) {
		return nil, ErrForbidden
	}
	return m, nil
}

// ListMeetingsForUser lists the caller's own meetings
func (s *Service) ListMeetingsForUser(ctx context.Context, callerID, userID string) ([]*types.Meeting, error) {
	if callerID != userID {
		return nil, ErrForbidden
	}
	return s.db.ListMeetingsForUser(ctx, userID)
}

// RevealRoom hands a participant the room id of an open class inside its join window
func (s *Service) RevealRoom(ctx context.Context, callerID, meetingID string, index int) (*types.RoomReveal, error) {
	_, cls, err := s.participantClass(ctx, callerID, meetingID, index)
	if err != nil {
		return nil, err
	}

	// FUNCTIONAL DISCOVERY: Terminal status is checked before the clock so a
	// completed class never reports a window message
	switch s.policy.Classify(cls.DateTime, cls.Status, s.now()) {
	case joinwindow.StateCompleted, joinwindow.StateCancelled:
		return nil, ErrClassNotOpen
	case joinwindow.StateUpcoming, joinwindow.StateWindowClosed:
		return nil, &JoinWindowError{Message: s.policy.Message()}
	}

	s.logger.Debug("room revealed", zap.String("meeting", meetingID), zap.Int("index", index), zap.String("user", callerID))
	return &types.RoomReveal{
		RoomName:    cls.RoomID,
		DurationMin: cls.DurationMin,
		DateTime:    cls.DateTime,
		Teacher:     cls.TeacherID,
	}, nil
}

// RoomInfo resolves a room id for a participant. canJoin is advisory; it is
// computed with the same policy RevealRoom enforces.
func (s *Service) RoomInfo(ctx context.Context, callerID, roomID string) (*types.RoomInfo, error) {
	if !types.IsValidRoomName(roomID) {
		return nil, types.ErrInvalidRoomName
	}
	m, idx, err := s.db.FindClassByRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if !m.IsParticipant(callerID) {
		return nil, ErrForbidden
	}
	cls, ok := m.Class(idx)
	if !ok {
		return nil, ErrClassNotFound
	}

	return &types.RoomInfo{
		MeetingID:   m.ID,
		ClassIndex:  idx,
		DurationMin: cls.DurationMin,
		DateTime:    cls.DateTime,
		Teacher:     cls.TeacherID,
		CanJoin:     s.policy.Classify(cls.DateTime, cls.Status, s.now()).Joinable(),
	}, nil
}

// AuthorizeRoom lets only meeting participants into a room whose class is still open
func (s *Service) AuthorizeRoom(ctx context.Context, userID, roomID string) error {
	m, idx, err := s.db.FindClassByRoom(ctx, roomID)
	if err != nil {
		return err
	}
	if !m.IsParticipant(userID) {
		return ErrForbidden
	}
	cls, ok := m.Class(idx)
	if !ok {
		return ErrClassNotFound
	}
	if cls.Status != types.SlotStatusUpcoming {
		return ErrClassNotOpen
	}
	return nil
}

// CompleteClass marks an upcoming class completed with its elapsed duration.
// start falls back to the stored start, then now; end falls back to now.
func (s *Service) CompleteClass(ctx context.Context, callerID, meetingID string, index int, report types.CompletionReport) (*types.ClassSlot, error) {
	m, cls, err := s.participantClass(ctx, callerID, meetingID, index)
	if err != nil {
		return nil, err
	}
	if cls.Status != types.SlotStatusUpcoming {
		return nil, ErrClassNotOpen
	}

	now := s.now().UTC()
	start := now
	switch {
	case report.StartAt != nil && !report.StartAt.IsZero():
		start = report.StartAt.UTC()
	case cls.StartAt != nil:
		start = cls.StartAt.UTC()
	}
	end := now
	if report.EndAt != nil {
		if report.EndAt.IsZero() {
			return nil, ErrInvalidTimes
		}
		end = report.EndAt.UTC()
	}

	completion := &types.ClassCompletion{
		MeetingID:   m.ID,
		RequestID:   m.RequestID,
		Index:       index,
		StartAt:     start,
		EndAt:       end,
		DurationSec: ElapsedSeconds(start, end),
	}

	notes, err := s.builder.Build(notify.Event{
		Type:       types.NotificationClassCompleted,
		Meeting:    m,
		ClassIndex: index,
		At:         now,
	})
	if err != nil {
		return nil, err
	}

	if err := s.db.CompleteClass(ctx, completion, notes); err != nil {
		// FUNCTIONAL DISCOVERY: The conditional update re-checks status after
		// the read above; a concurrent completion lands here
		if errors.Is(err, interfaces.ErrConflict) {
			return nil, ErrClassNotOpen
		}
		return nil, fmt.Errorf("failed to complete class: %w", err)
	}

	s.logger.Info("class completed",
		zap.String("meeting", m.ID),
		zap.Int("index", index),
		zap.Int("duration_sec", completion.DurationSec))

	done := *cls
	done.Status = types.SlotStatusCompleted
	done.StartAt = &completion.StartAt
	done.EndAt = &completion.EndAt
	done.DurationSec = &completion.DurationSec
	return &done, nil
}

// ElapsedSeconds is max(0, floor(end-start)) in whole seconds
func ElapsedSeconds(start, end time.Time) int {
	d := end.Sub(start)
	if d <= 0 {
		return 0
	}
	return int(d / time.Second)
}

func (s *Service) participantClass(ctx context.Context, callerID, meetingID string, index int) (*types.Meeting, *types.ClassSlot, error) {
	m, err := s.db.GetMeeting(ctx, meetingID)
	if err != nil {
		return nil, nil, err
	}
	if !m.IsParticipant(callerID) {
		return nil, nil, ErrForbidden
	}
	cls, ok := m.Class(index)
	if !ok {
		return nil, nil, ErrClassNotFound
	}
	return m, cls, nil
}
