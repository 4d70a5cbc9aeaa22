package database

import (
	"context"
	"database/sql"
	"fmt"

	"skillswap/pkg/types"
)

// InsertNotifications appends notification records
func (m *Manager) InsertNotifications(ctx context.Context, notes []*types.Notification) error {
	if len(notes) == 0 {
		return nil
	}
	return m.withTx(ctx, func(tx *sql.Tx) error {
		return m.insertNotificationsTx(ctx, tx, notes)
	})
}

func (m *Manager) insertNotificationsTx(ctx context.Context, tx *sql.Tx, notes []*types.Notification) error {
	query := m.q(`
		INSERT INTO notifications (id, user_id, type, message, related_request, is_read, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	for _, n := range notes {
		_, err := tx.ExecContext(ctx, query,
			n.ID,
			n.UserID,
			n.Type,
			n.Message,
			n.RelatedRequest,
			n.Read,
			n.CreatedAt.UTC(),
		)
		if err != nil {
			return fmt.Errorf("failed to insert notification: %w", err)
		}
	}
	return nil
}

// GetNotification retrieves a notification by id
func (m *Manager) GetNotification(ctx context.Context, notificationID string) (*types.Notification, error) {
	row := m.db.QueryRowContext(ctx, m.q(`
		SELECT id, user_id, type, message, related_request, is_read, created_at
		FROM notifications WHERE id = ?
	`), notificationID)

	n, err := scanNotification(row)
	if err != nil {
		return nil, notFound(err, "notification")
	}
	return n, nil
}

// ListNotifications returns a user's notifications, newest first
func (m *Manager) ListNotifications(ctx context.Context, userID string) ([]*types.Notification, error) {
	rows, err := m.db.QueryContext(ctx, m.q(`
		SELECT id, user_id, type, message, related_request, is_read, created_at
		FROM notifications WHERE user_id = ?
		ORDER BY created_at DESC
	`), userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query notifications: %w", err)
	}
	defer func() { _ = rows.Close() }()

	notes := []*types.Notification{}
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan notification row: %w", err)
		}
		notes = append(notes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating notification rows: %w", err)
	}
	return notes, nil
}

// MarkNotificationRead sets the read flag. Marking twice is harmless.
func (m *Manager) MarkNotificationRead(ctx context.Context, notificationID string) error {
	return m.executeWrite(ctx, func(db *sql.DB) error {
		_, err := db.ExecContext(ctx, m.q(`UPDATE notifications SET is_read = ? WHERE id = ?`), true, notificationID)
		if err != nil {
			return fmt.Errorf("failed to mark notification read: %w", err)
		}
		return nil
	})
}

func scanNotification(row rowScanner) (*types.Notification, error) {
	var n types.Notification
	var related sql.NullString
	if err := row.Scan(&n.ID, &n.UserID, &n.Type, &n.Message, &related, &n.Read, &n.CreatedAt); err != nil {
		return nil, err
	}
	if related.Valid {
		r := related.String
		n.RelatedRequest = &r
	}
	n.CreatedAt = n.CreatedAt.UTC()
	return &n, nil
}
