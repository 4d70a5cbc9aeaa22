package meeting

import (
	"context"
	"fmt"

	"skillswap/pkg/types"
)

// ListNotifications returns the caller's notifications, newest first
func (s *Service) ListNotifications(ctx context.Context, callerID string) ([]*types.Notification, error) {
	return s.db.ListNotifications(ctx, callerID)
}

// MarkNotificationRead marks one of the caller's notifications read. Repeating it is harmless.
func (s *Service) MarkNotificationRead(ctx context.Context, callerID, notificationID string) (*types.Notification, error) {
	note, err := s.db.GetNotification(ctx, notificationID)
	if err != nil {
		return nil, err
	}
	if note.UserID != callerID {
		return nil, ErrForbidden
	}
	if note.Read {
		return note, nil
	}
	if err := s.db.MarkNotificationRead(ctx, notificationID); err != nil {
		return nil, fmt.Errorf("failed to mark notification read: %w", err)
	}
	note.Read = true
	return note, nil
}
