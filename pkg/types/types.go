package types

import (
	"time"
)

// RequestType distinguishes paid packages from skill exchanges
type RequestType string

const (
	RequestTypePaid     RequestType = "paid"
	RequestTypeExchange RequestType = "exchange"
)

// RequestStatus is the lifecycle of a teaching request.
// pending moves exactly once to accepted or rejected.
type RequestStatus string

const (
	RequestStatusPending  RequestStatus = "pending"
	RequestStatusAccepted RequestStatus = "accepted"
	RequestStatusRejected RequestStatus = "rejected"
)

// PaymentStatus tracks the fake payment capture for paid requests
type PaymentStatus string

const (
	PaymentStatusNotApplicable PaymentStatus = "not_applicable"
	PaymentStatusNotPaid       PaymentStatus = "not_paid"
	PaymentStatusPaid          PaymentStatus = "paid"
)

// SlotStatus is the state of one class slot. completed and cancelled are terminal.
type SlotStatus string

const (
	SlotStatusUpcoming  SlotStatus = "upcoming"
	SlotStatusCompleted SlotStatus = "completed"
	SlotStatusCancelled SlotStatus = "cancelled"
)

// Notification type tags
const (
	NotificationNewRequest      = "new_request"
	NotificationRequestAccepted = "request_accepted"
	NotificationRequestRejected = "request_rejected"
	NotificationPaymentDone     = "payment_done"
	NotificationMeetingCreated  = "meeting_created"
	NotificationClassCompleted  = "class_completed"
)

// DefaultClassDurationMin is the class length assigned to new slots
const DefaultClassDurationMin = 60

// User is the minimal profile record needed to price paid requests.
// ID is the subject of the bearer credential.
type User struct {
	ID        string    `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Price4    float64   `json:"price4" db:"price4"`
	Price6    float64   `json:"price6" db:"price6"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Request represents a proposed teaching engagement between two users.
// SelectedSlot, when set, is always one of ProposedSlots.
type Request struct {
	ID               string        `json:"id" db:"id"`
	FromUser         string        `json:"fromUser" db:"from_user"`
	ToUser           string        `json:"toUser" db:"to_user"`
	Type             RequestType   `json:"type" db:"type"`
	Classes          int           `json:"classes" db:"classes"`
	ProposedSlots    []time.Time   `json:"proposedSlots" db:"proposed_slots"`
	SelectedSlot     *time.Time    `json:"selectedSlot,omitempty" db:"selected_slot"`
	Status           RequestStatus `json:"status" db:"status"`
	PaymentStatus    PaymentStatus `json:"paymentStatus" db:"payment_status"`
	TotalAmount      float64       `json:"totalAmount" db:"total_amount"`
	PerClassAmount   float64       `json:"perClassAmount" db:"per_class_amount"`
	ClassesCompleted int           `json:"classesCompleted" db:"classes_completed"`
	MeetingID        *string       `json:"meetingId,omitempty" db:"meeting_id"`
	PaidAt           *time.Time    `json:"paidAt,omitempty" db:"paid_at"`
	CreatedAt        time.Time     `json:"createdAt" db:"created_at"`
	UpdatedAt        time.Time     `json:"updatedAt" db:"updated_at"`
}

// IsParticipant reports whether userID is the requester or the recipient
func (r *Request) IsParticipant(userID string) bool {
	return userID != "" && (r.FromUser == userID || r.ToUser == userID)
}

// HasProposedSlot reports whether t matches one of the proposed slots
func (r *Request) HasProposedSlot(t time.Time) bool {
	for _, slot := range r.ProposedSlots {
		if slot.Equal(t) {
			return true
		}
	}
	return false
}

// Meeting is the realized schedule of class slots for one accepted or paid request
type Meeting struct {
	ID           string      `json:"id" db:"id"`
	RequestID    string      `json:"requestId" db:"request_id"`
	Participants []string    `json:"participants" db:"participants"`
	Classes      []ClassSlot `json:"classes"`
	CreatedAt    time.Time   `json:"createdAt" db:"created_at"`
}

// IsParticipant reports whether userID belongs to the meeting
func (m *Meeting) IsParticipant(userID string) bool {
	for _, p := range m.Participants {
		if p == userID {
			return true
		}
	}
	return false
}

// Class returns the slot at index, or false when out of range
func (m *Meeting) Class(index int) (*ClassSlot, bool) {
	if index < 0 || index >= len(m.Classes) {
		return nil, false
	}
	return &m.Classes[index], true
}

// ClassSlot is one scheduled session within a meeting, with its own room id
type ClassSlot struct {
	Index       int        `json:"index" db:"idx"`
	DateTime    time.Time  `json:"dateTime" db:"date_time"`
	TeacherID   string     `json:"teacher" db:"teacher_id"`
	Status      SlotStatus `json:"status" db:"status"`
	MeetingLink string     `json:"meetingLink" db:"meeting_link"`
	RoomID      string     `json:"roomName" db:"room_id"`
	DurationMin int        `json:"durationMin" db:"duration_min"`
	StartAt     *time.Time `json:"startAt,omitempty" db:"start_at"`
	EndAt       *time.Time `json:"endAt,omitempty" db:"end_at"`
	DurationSec *int       `json:"durationSec,omitempty" db:"duration_sec"`
}

// Notification is an append-only event record addressed to one user
type Notification struct {
	ID             string    `json:"id" db:"id"`
	UserID         string    `json:"user" db:"user_id"`
	Type           string    `json:"type" db:"type"`
	Message        string    `json:"message" db:"message"`
	RelatedRequest *string   `json:"relatedRequest,omitempty" db:"related_request"`
	Read           bool      `json:"read" db:"is_read"`
	CreatedAt      time.Time `json:"createdAt" db:"created_at"`
}

// ScheduleOptions overrides the default class cadence when a meeting is created.
// ClassDates, when non-empty, must hold exactly one timestamp per class.
type ScheduleOptions struct {
	ClassDates   []time.Time `json:"classDates,omitempty"`
	IntervalDays int         `json:"intervalDays,omitempty"`
}

// RoomReveal is returned to a participant once the join window is open
type RoomReveal struct {
	RoomName    string    `json:"roomName"`
	DurationMin int       `json:"durationMin"`
	DateTime    time.Time `json:"dateTime"`
	Teacher     string    `json:"teacher"`
}

// RoomInfo resolves a room id back to its meeting and class
type RoomInfo struct {
	MeetingID   string    `json:"meetingId"`
	ClassIndex  int       `json:"classIndex"`
	DurationMin int       `json:"durationMin"`
	DateTime    time.Time `json:"dateTime"`
	Teacher     string    `json:"teacher"`
	CanJoin     bool      `json:"canJoin"`
}

// CompletionReport carries the optional timestamps a client observed for a call
type CompletionReport struct {
	StartAt *time.Time `json:"startAt,omitempty"`
	EndAt   *time.Time `json:"endAt,omitempty"`
}

// ClassCompletion is the resolved record written when a class is marked completed
type ClassCompletion struct {
	MeetingID   string
	RequestID   string
	Index       int
	StartAt     time.Time
	EndAt       time.Time
	DurationSec int
}
