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

const requestColumns = `id, from_user, to_user, type, classes, proposed_slots, selected_slot,
	status, payment_status, total_amount, per_class_amount, classes_completed,
	meeting_id, paid_at, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

// CreateRequest persists a new request
func (m *Manager) CreateRequest(ctx context.Context, req *types.Request) error {
	slotsJSON, err := encodeSlots(req.ProposedSlots)
	if err != nil {
		return err
	}

	return m.executeWrite(ctx, func(db *sql.DB) error {
		query := m.q(`
			INSERT INTO requests (` + requestColumns + `)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`)
		_, err := db.ExecContext(ctx, query,
			req.ID,
			req.FromUser,
			req.ToUser,
			string(req.Type),
			req.Classes,
			slotsJSON,
			utcPtr(req.SelectedSlot),
			string(req.Status),
			string(req.PaymentStatus),
			req.TotalAmount,
			req.PerClassAmount,
			req.ClassesCompleted,
			req.MeetingID,
			utcPtr(req.PaidAt),
			req.CreatedAt.UTC(),
			req.UpdatedAt.UTC(),
		)
		if err != nil {
			return fmt.Errorf("failed to insert request: %w", err)
		}
		return nil
	})
}

// GetRequest retrieves a request by id
func (m *Manager) GetRequest(ctx context.Context, requestID string) (*types.Request, error) {
	query := m.q(`SELECT ` + requestColumns + ` FROM requests WHERE id = ?`)
	req, err := scanRequest(m.db.QueryRowContext(ctx, query, requestID))
	if err != nil {
		return nil, notFound(err, "request")
	}
	return req, nil
}

// ListRequestsTo returns requests addressed to userID, newest first
func (m *Manager) ListRequestsTo(ctx context.Context, userID string) ([]*types.Request, error) {
	return m.listRequests(ctx, `SELECT `+requestColumns+` FROM requests WHERE to_user = ? ORDER BY created_at DESC`, userID)
}

// ListRequestsFrom returns requests sent by userID, newest first
func (m *Manager) ListRequestsFrom(ctx context.Context, userID string) ([]*types.Request, error) {
	return m.listRequests(ctx, `SELECT `+requestColumns+` FROM requests WHERE from_user = ? ORDER BY created_at DESC`, userID)
}

func (m *Manager) listRequests(ctx context.Context, query string, args ...interface{}) ([]*types.Request, error) {
	rows, err := m.db.QueryContext(ctx, m.q(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query requests: %w", err)
	}
	defer func() { _ = rows.Close() }()

	requests := []*types.Request{}
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan request row: %w", err)
		}
		requests = append(requests, req)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating request rows: %w", err)
	}
	return requests, nil
}

// DecideRequest moves a pending request to accepted or rejected
func (m *Manager) DecideRequest(ctx context.Context, requestID, recipientID string, status types.RequestStatus, slot *time.Time) error {
	return m.executeWrite(ctx, func(db *sql.DB) error {
		// FUNCTIONAL DISCOVERY: status='pending' in the WHERE clause is the
		// check-and-set; a second decision matches zero rows
		query := m.q(`
			UPDATE requests
			SET status = ?, selected_slot = ?, updated_at = ?
			WHERE id = ? AND to_user = ? AND status = 'pending'
		`)
		res, err := db.ExecContext(ctx, query,
			string(status),
			utcPtr(slot),
			time.Now().UTC(),
			requestID,
			recipientID,
		)
		if err != nil {
			return fmt.Errorf("failed to update request status: %w", err)
		}
		return expectOneRow(res, interfaces.ErrConflict)
	})
}

// MarkRequestPaid captures payment for an accepted paid request
func (m *Manager) MarkRequestPaid(ctx context.Context, requestID, requesterID string, paidAt time.Time) error {
	return m.executeWrite(ctx, func(db *sql.DB) error {
		query := m.q(`
			UPDATE requests
			SET payment_status = 'paid', paid_at = ?, updated_at = ?
			WHERE id = ? AND from_user = ? AND type = 'paid'
				AND status = 'accepted' AND payment_status <> 'paid'
		`)
		res, err := db.ExecContext(ctx, query,
			paidAt.UTC(),
			time.Now().UTC(),
			requestID,
			requesterID,
		)
		if err != nil {
			return fmt.Errorf("failed to mark request paid: %w", err)
		}
		return expectOneRow(res, interfaces.ErrConflict)
	})
}

func expectOneRow(res sql.Result, missErr error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return missErr
	}
	return nil
}

func scanRequest(row rowScanner) (*types.Request, error) {
	var (
		req          types.Request
		reqType      string
		status       string
		payment      string
		slotsJSON    string
		selectedSlot sql.NullTime
		meetingID    sql.NullString
		paidAt       sql.NullTime
	)
	err := row.Scan(
		&req.ID,
		&req.FromUser,
		&req.ToUser,
		&reqType,
		&req.Classes,
		&slotsJSON,
		&selectedSlot,
		&status,
		&payment,
		&req.TotalAmount,
		&req.PerClassAmount,
		&req.ClassesCompleted,
		&meetingID,
		&paidAt,
		&req.CreatedAt,
		&req.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	req.Type = types.RequestType(reqType)
	req.Status = types.RequestStatus(status)
	req.PaymentStatus = types.PaymentStatus(payment)
	req.SelectedSlot = nullTimePtr(selectedSlot)
	req.PaidAt = nullTimePtr(paidAt)
	req.CreatedAt = req.CreatedAt.UTC()
	req.UpdatedAt = req.UpdatedAt.UTC()
	if meetingID.Valid {
		id := meetingID.String
		req.MeetingID = &id
	}
	if req.ProposedSlots, err = decodeSlots(slotsJSON); err != nil {
		return nil, err
	}
	return &req, nil
}

// TECHNICAL DISCOVERY: Slot lists are stored as JSON text so the same column
// type works on SQLite and PostgreSQL
func encodeSlots(slots []time.Time) (string, error) {
	utc := make([]time.Time, len(slots))
	for i, s := range slots {
		utc[i] = s.UTC()
	}
	raw, err := json.Marshal(utc)
	if err != nil {
		return "", fmt.Errorf("failed to marshal proposed slots: %w", err)
	}
	return string(raw), nil
}

func decodeSlots(raw string) ([]time.Time, error) {
	var slots []time.Time
	if err := json.Unmarshal([]byte(raw), &slots); err != nil {
		return nil, fmt.Errorf("failed to unmarshal proposed slots: %w", err)
	}
	for i := range slots {
		slots[i] = slots[i].UTC()
	}
	return slots, nil
}
