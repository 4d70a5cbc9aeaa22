package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"skillswap/pkg/interfaces"
	"skillswap/pkg/types"
)

const slotColumns = `idx, date_time, teacher_id, status, meeting_link, room_id,
	duration_min, start_at, end_at, duration_sec`

// CreateMeeting writes the meeting, its slots, the request back-link and the
// given notifications as one transaction
func (m *Manager) CreateMeeting(ctx context.Context, meeting *types.Meeting, notes []*types.Notification) error {
	participantsJSON, err := json.Marshal(meeting.Participants)
	if err != nil {
		return fmt.Errorf("failed to marshal participants: %w", err)
	}

	return m.withTx(ctx, func(tx *sql.Tx) error {
		// ARCHITECTURAL DISCOVERY: The back-link is claimed first with a
		// conditional update; losing the race rolls back before anything else lands
		res, err := tx.ExecContext(ctx, m.q(`
			UPDATE requests SET meeting_id = ?, updated_at = ?
			WHERE id = ? AND meeting_id IS NULL
		`), meeting.ID, time.Now().UTC(), meeting.RequestID)
		if err != nil {
			return fmt.Errorf("failed to link request: %w", err)
		}
		if err := expectOneRow(res, interfaces.ErrAlreadyLinked); err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, m.q(`
			INSERT INTO meetings (id, request_id, participants, created_at)
			VALUES (?, ?, ?, ?)
		`), meeting.ID, meeting.RequestID, string(participantsJSON), meeting.CreatedAt.UTC())
		if err != nil {
			return fmt.Errorf("failed to insert meeting: %w", err)
		}

		insertSlot := m.q(`
			INSERT INTO class_slots (meeting_id, ` + slotColumns + `)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`)
		for _, slot := range meeting.Classes {
			_, err = tx.ExecContext(ctx, insertSlot,
				meeting.ID,
				slot.Index,
				slot.DateTime.UTC(),
				slot.TeacherID,
				string(slot.Status),
				slot.MeetingLink,
				slot.RoomID,
				slot.DurationMin,
				utcPtr(slot.StartAt),
				utcPtr(slot.EndAt),
				slot.DurationSec,
			)
			if err != nil {
				return fmt.Errorf("failed to insert class slot %d: %w", slot.Index, err)
			}
		}

		return m.insertNotificationsTx(ctx, tx, notes)
	})
}

// GetMeeting retrieves a meeting with its slots ordered by index
func (m *Manager) GetMeeting(ctx context.Context, meetingID string) (*types.Meeting, error) {
	row := m.db.QueryRowContext(ctx, m.q(`
		SELECT id, request_id, participants, created_at FROM meetings WHERE id = ?
	`), meetingID)

	meeting, err := scanMeeting(row)
	if err != nil {
		return nil, notFound(err, "meeting")
	}
	if meeting.Classes, err = m.loadSlots(ctx, meeting.ID); err != nil {
		return nil, err
	}
	return meeting, nil
}

// ListMeetingsForUser returns meetings whose request involves userID, newest first
func (m *Manager) ListMeetingsForUser(ctx context.Context, userID string) ([]*types.Meeting, error) {
	rows, err := m.db.QueryContext(ctx, m.q(`
		SELECT mt.id, mt.request_id, mt.participants, mt.created_at
		FROM meetings mt
		JOIN requests r ON r.id = mt.request_id
		WHERE r.from_user = ? OR r.to_user = ?
		ORDER BY mt.created_at DESC
	`), userID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query meetings: %w", err)
	}

	meetings := []*types.Meeting{}
	for rows.Next() {
		meeting, err := scanMeeting(rows)
		if err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("failed to scan meeting row: %w", err)
		}
		meetings = append(meetings, meeting)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("error iterating meeting rows: %w", err)
	}
	_ = rows.Close()

	// TECHNICAL DISCOVERY: Slots load after the meeting cursor is closed so a
	// single-connection pool never holds two cursors
	for _, meeting := range meetings {
		if meeting.Classes, err = m.loadSlots(ctx, meeting.ID); err != nil {
			return nil, err
		}
	}
	return meetings, nil
}

// FindClassByRoom resolves a room id to its meeting and class index
func (m *Manager) FindClassByRoom(ctx context.Context, roomID string) (*types.Meeting, int, error) {
	var meetingID string
	var idx int
	err := m.db.QueryRowContext(ctx, m.q(`
		SELECT meeting_id, idx FROM class_slots WHERE room_id = ?
	`), roomID).Scan(&meetingID, &idx)
	if err != nil {
		return nil, 0, notFound(err, "room")
	}

	meeting, err := m.GetMeeting(ctx, meetingID)
	if err != nil {
		return nil, 0, err
	}
	return meeting, idx, nil
}

// CompleteClass flips an upcoming slot to completed and bumps the request counter
func (m *Manager) CompleteClass(ctx context.Context, c *types.ClassCompletion, notes []*types.Notification) error {
	return m.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, m.q(`
			UPDATE class_slots
			SET status = 'completed', start_at = ?, end_at = ?, duration_sec = ?
			WHERE meeting_id = ? AND idx = ? AND status = 'upcoming'
		`), c.StartAt.UTC(), c.EndAt.UTC(), c.DurationSec, c.MeetingID, c.Index)
		if err != nil {
			return fmt.Errorf("failed to complete class slot: %w", err)
		}
		if err := expectOneRow(res, interfaces.ErrConflict); err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, m.q(`
			UPDATE requests
			SET classes_completed = classes_completed + 1, updated_at = ?
			WHERE id = ?
		`), time.Now().UTC(), c.RequestID)
		if err != nil {
			return fmt.Errorf("failed to increment completed classes: %w", err)
		}

		return m.insertNotificationsTx(ctx, tx, notes)
	})
}

func (m *Manager) loadSlots(ctx context.Context, meetingID string) ([]types.ClassSlot, error) {
	rows, err := m.db.QueryContext(ctx, m.q(`
		SELECT `+slotColumns+` FROM class_slots WHERE meeting_id = ? ORDER BY idx ASC
	`), meetingID)
	if err != nil {
		return nil, fmt.Errorf("failed to query class slots: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var slots []types.ClassSlot
	for rows.Next() {
		var (
			slot        types.ClassSlot
			status      string
			startAt     sql.NullTime
			endAt       sql.NullTime
			durationSec sql.NullInt64
		)
		err := rows.Scan(
			&slot.Index,
			&slot.DateTime,
			&slot.TeacherID,
			&status,
			&slot.MeetingLink,
			&slot.RoomID,
			&slot.DurationMin,
			&startAt,
			&endAt,
			&durationSec,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan class slot: %w", err)
		}
		slot.DateTime = slot.DateTime.UTC()
		slot.Status = types.SlotStatus(status)
		slot.StartAt = nullTimePtr(startAt)
		slot.EndAt = nullTimePtr(endAt)
		if durationSec.Valid {
			d := int(durationSec.Int64)
			slot.DurationSec = &d
		}
		slots = append(slots, slot)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating class slots: %w", err)
	}
	return slots, nil
}

func scanMeeting(row rowScanner) (*types.Meeting, error) {
	var meeting types.Meeting
	var participantsJSON string
	if err := row.Scan(&meeting.ID, &meeting.RequestID, &participantsJSON, &meeting.CreatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(participantsJSON), &meeting.Participants); err != nil {
		return nil, fmt.Errorf("failed to unmarshal participants: %w", err)
	}
	meeting.CreatedAt = meeting.CreatedAt.UTC()
	return &meeting, nil
}
