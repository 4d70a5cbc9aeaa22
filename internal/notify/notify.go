// Package notify turns state transitions into notification records.
//
// Build is pure so callers that need the records inside a larger transaction
// (meeting creation, class completion) can derive them and hand them to the
// store. Publisher persists them for transitions that stand alone.
package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"skillswap/pkg/types"
)

var ErrUnknownEvent = errors.New("unknown notification event")

// Event describes one state transition
type Event struct {
	Type       string
	Request    *types.Request
	Meeting    *types.Meeting
	ClassIndex int
	At         time.Time
}

// Builder derives notification records from events
type Builder struct {
	NewID func() string
}

// NewBuilder returns a builder that assigns UUIDs
func NewBuilder() *Builder {
	return &Builder{NewID: uuid.NewString}
}

// Build returns the notifications an event produces, one per recipient
func (b *Builder) Build(ev Event) ([]*types.Notification, error) {
	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}
	at = at.UTC()

	var related *string
	if ev.Request != nil {
		id := ev.Request.ID
		related = &id
	}

	note := func(user, message string) *types.Notification {
		return &types.Notification{
			ID:             b.NewID(),
			UserID:         user,
			Type:           ev.Type,
			Message:        message,
			RelatedRequest: related,
			CreatedAt:      at,
		}
	}

	switch ev.Type {
	case types.NotificationNewRequest:
		if ev.Request == nil {
			break
		}
		return []*types.Notification{
			note(ev.Request.ToUser, fmt.Sprintf("You have a new %s request from a learner.", ev.Request.Type)),
		}, nil

	case types.NotificationRequestAccepted:
		if ev.Request == nil {
			break
		}
		msg := "Your request was accepted."
		if ev.Request.SelectedSlot != nil {
			msg = fmt.Sprintf("Your request was accepted. Selected slot: %s", ev.Request.SelectedSlot.UTC().Format(time.RFC3339))
		}
		return []*types.Notification{note(ev.Request.FromUser, msg)}, nil

	case types.NotificationRequestRejected:
		if ev.Request == nil {
			break
		}
		return []*types.Notification{
			note(ev.Request.FromUser, "Your request was rejected by the instructor."),
		}, nil

	case types.NotificationPaymentDone:
		if ev.Request == nil {
			break
		}
		return []*types.Notification{
			note(ev.Request.ToUser, "Learner has completed payment for the request."),
		}, nil

	case types.NotificationMeetingCreated:
		if ev.Meeting == nil {
			break
		}
		if related == nil {
			id := ev.Meeting.RequestID
			related = &id
		}
		notes := make([]*types.Notification, 0, len(ev.Meeting.Participants))
		for _, p := range ev.Meeting.Participants {
			notes = append(notes, note(p, "Meeting has been scheduled for your request."))
		}
		return notes, nil

	case types.NotificationClassCompleted:
		if ev.Meeting == nil {
			break
		}
		if related == nil {
			id := ev.Meeting.RequestID
			related = &id
		}
		msg := fmt.Sprintf("Class #%d for meeting %s was marked completed.", ev.ClassIndex+1, ShortID(ev.Meeting.ID))
		notes := make([]*types.Notification, 0, len(ev.Meeting.Participants))
		for _, p := range ev.Meeting.Participants {
			notes = append(notes, note(p, msg))
		}
		return notes, nil
	}

	return nil, fmt.Errorf("%w: %s", ErrUnknownEvent, ev.Type)
}

// ShortID returns the last six characters of an id
func ShortID(id string) string {
	if len(id) <= 6 {
		return id
	}
	return id[len(id)-6:]
}

// Store is the persistence the publisher needs
type Store interface {
	InsertNotifications(ctx context.Context, notes []*types.Notification) error
}

// Publisher is the explicit event-emission step at the end of a state transition
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// StorePublisher builds and persists notifications
type StorePublisher struct {
	store   Store
	builder *Builder
	logger  *zap.Logger
}

// NewStorePublisher creates a publisher writing to store
func NewStorePublisher(store Store, builder *Builder, logger *zap.Logger) *StorePublisher {
	if builder == nil {
		builder = NewBuilder()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StorePublisher{store: store, builder: builder, logger: logger.Named("notify")}
}

// Publish persists the notifications for ev
func (p *StorePublisher) Publish(ctx context.Context, ev Event) error {
	notes, err := p.builder.Build(ev)
	if err != nil {
		return err
	}
	if err := p.store.InsertNotifications(ctx, notes); err != nil {
		return fmt.Errorf("failed to store %s notifications: %w", ev.Type, err)
	}
	p.logger.Debug("notifications published", zap.String("type", ev.Type), zap.Int("count", len(notes)))
	return nil
}
