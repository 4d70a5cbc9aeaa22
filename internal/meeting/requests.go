package meeting

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"skillswap/internal/notify"
	"skillswap/internal/scheduler"
	"skillswap/pkg/interfaces"
	"skillswap/pkg/types"
)

// CreateRequest validates and prices a new request from the caller
func (s *Service) CreateRequest(ctx context.Context, callerID string, req *types.Request) (*types.Request, error) {
	req.FromUser = callerID
	if err := req.Validate(); err != nil {
		return nil, err
	}

	teacher, err := s.db.GetUser(ctx, req.ToUser)
	if err != nil {
		return nil, fmt.Errorf("teacher: %w", err)
	}

	now := s.now().UTC()
	req.ID = s.newID()
	req.SelectedSlot = nil
	req.Status = types.RequestStatusPending
	req.ClassesCompleted = 0
	req.MeetingID = nil
	req.PaidAt = nil
	req.TotalAmount = 0
	req.PerClassAmount = 0
	req.CreatedAt = now
	req.UpdatedAt = now
	for i := range req.ProposedSlots {
		req.ProposedSlots[i] = req.ProposedSlots[i].UTC()
	}

	if req.Type == types.RequestTypePaid {
		req.PaymentStatus = types.PaymentStatusNotPaid
		req.TotalAmount = teacher.PriceFor(req.Classes)
		req.PerClassAmount = req.TotalAmount / float64(req.Classes)
	} else {
		req.PaymentStatus = types.PaymentStatusNotApplicable
	}

	if err := s.db.CreateRequest(ctx, req); err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	s.publish(ctx, notify.Event{Type: types.NotificationNewRequest, Request: req, At: now})

	s.logger.Info("request created",
		zap.String("request", req.ID),
		zap.String("type", string(req.Type)),
		zap.Int("classes", req.Classes))
	return req, nil
}

// GetRequest returns a request to one of its two parties
func (s *Service) GetRequest(ctx context.Context, callerID, requestID string) (*types.Request, error) {
	req, err := s.db.GetRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if !req.IsParticipant(callerID) {
		return nil, ErrForbidden
	}
	return req, nil
}

// ListIncoming returns requests addressed to the caller
func (s *Service) ListIncoming(ctx context.Context, callerID string) ([]*types.Request, error) {
	return s.db.ListRequestsTo(ctx, callerID)
}

// ListSent returns requests the caller made
func (s *Service) ListSent(ctx context.Context, callerID string) ([]*types.Request, error) {
	return s.db.ListRequestsFrom(ctx, callerID)
}

// SelectSlot accepts a pending request with one of its proposed slots.
// Exchange requests get their meeting immediately; scheduling errors are
// logged and do not undo the acceptance.
func (s *Service) SelectSlot(ctx context.Context, callerID, requestID string, slot time.Time) (*types.Request, error) {
	if slot.IsZero() {
		return nil, ErrSlotNotProposed
	}
	req, err := s.db.GetRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.ToUser != callerID {
		return nil, ErrForbidden
	}
	if req.Status != types.RequestStatusPending {
		return nil, ErrAlreadyDecided
	}
	if !req.HasProposedSlot(slot) {
		return nil, ErrSlotNotProposed
	}

	slot = slot.UTC()
	if err := s.db.DecideRequest(ctx, requestID, callerID, types.RequestStatusAccepted, &slot); err != nil {
		if errors.Is(err, interfaces.ErrConflict) {
			return nil, ErrAlreadyDecided
		}
		return nil, fmt.Errorf("failed to accept request: %w", err)
	}

	req.Status = types.RequestStatusAccepted
	req.SelectedSlot = &slot
	s.publish(ctx, notify.Event{Type: types.NotificationRequestAccepted, Request: req, At: s.now()})

	if req.Type == types.RequestTypeExchange && s.scheduler != nil {
		if _, err := s.scheduler.CreateMeetingForRequest(ctx, req.ID, types.ScheduleOptions{}); err != nil {
			s.logger.Error("auto-create meeting for exchange failed", zap.String("request", req.ID), zap.Error(err))
		}
	}

	return s.db.GetRequest(ctx, requestID)
}

// RejectRequest rejects a pending request addressed to the caller
func (s *Service) RejectRequest(ctx context.Context, callerID, requestID string) (*types.Request, error) {
	req, err := s.db.GetRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.ToUser != callerID {
		return nil, ErrForbidden
	}
	if err := s.db.DecideRequest(ctx, requestID, callerID, types.RequestStatusRejected, nil); err != nil {
		if errors.Is(err, interfaces.ErrConflict) {
			return nil, ErrAlreadyDecided
		}
		return nil, fmt.Errorf("failed to reject request: %w", err)
	}

	req.Status = types.RequestStatusRejected
	s.publish(ctx, notify.Event{Type: types.NotificationRequestRejected, Request: req, At: s.now()})
	return req, nil
}

// Pay captures the fake payment for an accepted paid request and schedules
// its meeting. Invalid schedule options are rejected before anything is
// written. A scheduling failure leaves the payment in place and returns a nil
// meeting; paying again retries the scheduling only.
func (s *Service) Pay(ctx context.Context, callerID, requestID string, opts types.ScheduleOptions) (*types.Request, *types.Meeting, error) {
	req, err := s.db.GetRequest(ctx, requestID)
	if err != nil {
		return nil, nil, err
	}
	if req.FromUser != callerID {
		return nil, nil, ErrForbidden
	}
	if req.Type != types.RequestTypePaid {
		return nil, nil, ErrPaymentNotRequired
	}
	if req.Status != types.RequestStatusAccepted {
		return nil, nil, ErrNotAccepted
	}
	// FUNCTIONAL DISCOVERY: The schedule is checked before the payment is
	// recorded; a rejected schedule must not leave a paid, unlinked request
	if err := scheduler.ValidateOptions(req, opts); err != nil {
		return nil, nil, err
	}

	if req.PaymentStatus == types.PaymentStatusPaid {
		if req.MeetingID != nil {
			return nil, nil, ErrAlreadyPaid
		}
		// Paid earlier but scheduling never finished: retry it without charging again
		s.logger.Info("retrying schedule for paid request", zap.String("request", req.ID))
	} else {
		paidAt := s.now().UTC()
		if err := s.db.MarkRequestPaid(ctx, requestID, callerID, paidAt); err != nil {
			if errors.Is(err, interfaces.ErrConflict) {
				return nil, nil, ErrAlreadyPaid
			}
			return nil, nil, fmt.Errorf("failed to record payment: %w", err)
		}
		req.PaymentStatus = types.PaymentStatusPaid
		req.PaidAt = &paidAt
		s.publish(ctx, notify.Event{Type: types.NotificationPaymentDone, Request: req, At: paidAt})
	}

	var meeting *types.Meeting
	if s.scheduler != nil {
		meeting, err = s.scheduler.CreateMeetingForRequest(ctx, req.ID, opts)
		if err != nil {
			s.logger.Error("create meeting after payment failed", zap.String("request", req.ID), zap.Error(err))
			meeting = nil
		}
	}

	updated, err := s.db.GetRequest(ctx, requestID)
	if err != nil {
		return nil, nil, err
	}
	return updated, meeting, nil
}
