package meeting

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"skillswap/internal/database"
	"skillswap/internal/joinwindow"
	"skillswap/internal/scheduler"
	dbconfig "skillswap/pkg/database"
	"skillswap/pkg/interfaces"
	"skillswap/pkg/types"
)

var slotTime = time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)

type testEnv struct {
	svc *Service
	db  *database.Manager
	now time.Time
}

func setupService(t *testing.T) *testEnv {
	t.Helper()

	config := dbconfig.DefaultConfig()
	config.DatabasePath = filepath.Join(t.TempDir(), "meeting.db")

	db, err := database.NewManager(config, nil)
	if err != nil {
		t.Fatalf("Failed to create database manager: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	migrator, err := dbconfig.NewMigrator(db.GetDB(), config.Driver, nil)
	if err != nil {
		t.Fatalf("Failed to create migrator: %v", err)
	}
	if err := migrator.Up(context.Background()); err != nil {
		t.Fatalf("Failed to migrate: %v", err)
	}

	env := &testEnv{db: db, now: slotTime.Add(-48 * time.Hour)}
	sched := scheduler.New(db, nil, scheduler.Config{}, nil)
	env.svc = NewService(db, sched, nil, nil, joinwindow.DefaultPolicy(), nil)
	env.svc.now = func() time.Time { return env.now }

	ctx := context.Background()
	for _, u := range []*types.User{
		{ID: "teacher", Name: "Teacher", Price4: 100, Price6: 150},
		{ID: "learner", Name: "Learner"},
		{ID: "stranger", Name: "Stranger"},
	} {
		if _, err := env.svc.UpsertUser(ctx, u.ID, u); err != nil {
			t.Fatalf("Failed to upsert user %s: %v", u.ID, err)
		}
	}
	return env
}

func (e *testEnv) createRequest(t *testing.T, reqType types.RequestType, classes int) *types.Request {
	t.Helper()
	req, err := e.svc.CreateRequest(context.Background(), "learner", &types.Request{
		ToUser:        "teacher",
		Type:          reqType,
		Classes:       classes,
		ProposedSlots: []time.Time{slotTime, slotTime.Add(24 * time.Hour)},
	})
	if err != nil {
		t.Fatalf("CreateRequest failed: %v", err)
	}
	return req
}

// scheduledMeeting creates an accepted exchange request and returns its meeting
func (e *testEnv) scheduledMeeting(t *testing.T) *types.Meeting {
	t.Helper()
	ctx := context.Background()
	req := e.createRequest(t, types.RequestTypeExchange, 4)
	accepted, err := e.svc.SelectSlot(ctx, "teacher", req.ID, slotTime)
	if err != nil {
		t.Fatalf("SelectSlot failed: %v", err)
	}
	if accepted.MeetingID == nil {
		t.Fatal("Exchange request should be linked to a meeting after acceptance")
	}
	m, err := e.svc.GetMeeting(ctx, "learner", *accepted.MeetingID)
	if err != nil {
		t.Fatalf("GetMeeting failed: %v", err)
	}
	return m
}

func countNotes(t *testing.T, e *testEnv, user, noteType string) int {
	t.Helper()
	notes, err := e.svc.ListNotifications(context.Background(), user)
	if err != nil {
		t.Fatalf("ListNotifications failed: %v", err)
	}
	n := 0
	for _, note := range notes {
		if note.Type == noteType {
			n++
		}
	}
	return n
}

func TestService_InterfaceCompliance(t *testing.T) {
	var _ interfaces.MeetingService = (*Service)(nil)
	var _ interfaces.RoomAuthorizer = (*Service)(nil)
}

func TestService_UpsertUserOwnerOnly(t *testing.T) {
	env := setupService(t)
	_, err := env.svc.UpsertUser(context.Background(), "learner", &types.User{ID: "teacher", Name: "x"})
	if !errors.Is(err, ErrForbidden) {
		t.Errorf("Expected ErrForbidden, got %v", err)
	}
}

func TestService_CreateRequestPricing(t *testing.T) {
	env := setupService(t)
	ctx := context.Background()

	tests := []struct {
		name        string
		reqType     types.RequestType
		classes     int
		wantTotal   float64
		wantPer     float64
		wantPayment types.PaymentStatus
	}{
		{"paid 4", types.RequestTypePaid, 4, 100, 25, types.PaymentStatusNotPaid},
		{"paid 6", types.RequestTypePaid, 6, 150, 25, types.PaymentStatusNotPaid},
		{"exchange", types.RequestTypeExchange, 4, 0, 0, types.PaymentStatusNotApplicable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := env.createRequest(t, tt.reqType, tt.classes)
			if req.TotalAmount != tt.wantTotal || req.PerClassAmount != tt.wantPer {
				t.Errorf("amounts = %v/%v, want %v/%v", req.TotalAmount, req.PerClassAmount, tt.wantTotal, tt.wantPer)
			}
			if req.PaymentStatus != tt.wantPayment {
				t.Errorf("payment = %s, want %s", req.PaymentStatus, tt.wantPayment)
			}
			if req.Status != types.RequestStatusPending || req.FromUser != "learner" {
				t.Errorf("Unexpected request state %+v", req)
			}
			stored, err := env.svc.GetRequest(ctx, "teacher", req.ID)
			if err != nil {
				t.Fatalf("GetRequest failed: %v", err)
			}
			if stored.TotalAmount != tt.wantTotal {
				t.Errorf("stored total = %v", stored.TotalAmount)
			}
		})
	}

	if got := countNotes(t, env, "teacher", types.NotificationNewRequest); got != 3 {
		t.Errorf("Expected 3 new_request notifications, got %d", got)
	}
}

func TestService_CreateRequestValidation(t *testing.T) {
	env := setupService(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		req     *types.Request
		wantErr error
	}{
		{"self", &types.Request{ToUser: "learner", Type: types.RequestTypePaid, Classes: 4, ProposedSlots: []time.Time{slotTime}}, types.ErrSelfRequest},
		{"bad classes", &types.Request{ToUser: "teacher", Type: types.RequestTypePaid, Classes: 5, ProposedSlots: []time.Time{slotTime}}, types.ErrInvalidClassCount},
		{"no slots", &types.Request{ToUser: "teacher", Type: types.RequestTypePaid, Classes: 4}, types.ErrNoProposedSlots},
		{"unknown teacher", &types.Request{ToUser: "ghost", Type: types.RequestTypePaid, Classes: 4, ProposedSlots: []time.Time{slotTime}}, interfaces.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := env.svc.CreateRequest(ctx, "learner", tt.req); !errors.Is(err, tt.wantErr) {
				t.Errorf("Expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestService_GetRequestParticipantsOnly(t *testing.T) {
	env := setupService(t)
	req := env.createRequest(t, types.RequestTypePaid, 4)

	if _, err := env.svc.GetRequest(context.Background(), "stranger", req.ID); !errors.Is(err, ErrForbidden) {
		t.Errorf("Expected ErrForbidden, got %v", err)
	}
	incoming, err := env.svc.ListIncoming(context.Background(), "teacher")
	if err != nil || len(incoming) != 1 {
		t.Errorf("ListIncoming = %d, %v", len(incoming), err)
	}
	sent, err := env.svc.ListSent(context.Background(), "learner")
	if err != nil || len(sent) != 1 {
		t.Errorf("ListSent = %d, %v", len(sent), err)
	}
}

func TestService_SelectSlotExchange(t *testing.T) {
	env := setupService(t)
	ctx := context.Background()
	req := env.createRequest(t, types.RequestTypeExchange, 4)

	if _, err := env.svc.SelectSlot(ctx, "learner", req.ID, slotTime); !errors.Is(err, ErrForbidden) {
		t.Errorf("Requester must not select: %v", err)
	}
	if _, err := env.svc.SelectSlot(ctx, "teacher", req.ID, slotTime.Add(time.Hour)); !errors.Is(err, ErrSlotNotProposed) {
		t.Errorf("Expected ErrSlotNotProposed, got %v", err)
	}

	accepted, err := env.svc.SelectSlot(ctx, "teacher", req.ID, slotTime)
	if err != nil {
		t.Fatalf("SelectSlot failed: %v", err)
	}
	if accepted.Status != types.RequestStatusAccepted || accepted.SelectedSlot == nil || !accepted.SelectedSlot.Equal(slotTime) {
		t.Errorf("Unexpected accepted request %+v", accepted)
	}
	if accepted.MeetingID == nil {
		t.Fatal("Exchange acceptance should create a meeting")
	}

	m, err := env.svc.GetMeeting(ctx, "teacher", *accepted.MeetingID)
	if err != nil {
		t.Fatalf("GetMeeting failed: %v", err)
	}
	if len(m.Classes) != 4 || m.Classes[1].TeacherID != "learner" {
		t.Errorf("Unexpected meeting classes %+v", m.Classes)
	}

	if _, err := env.svc.SelectSlot(ctx, "teacher", req.ID, slotTime); !errors.Is(err, ErrAlreadyDecided) {
		t.Errorf("Second selection should conflict, got %v", err)
	}
	if _, err := env.svc.RejectRequest(ctx, "teacher", req.ID); !errors.Is(err, ErrAlreadyDecided) {
		t.Errorf("Reject after accept should conflict, got %v", err)
	}

	if got := countNotes(t, env, "learner", types.NotificationRequestAccepted); got != 1 {
		t.Errorf("Expected 1 request_accepted, got %d", got)
	}
	if got := countNotes(t, env, "learner", types.NotificationMeetingCreated); got != 1 {
		t.Errorf("Expected 1 meeting_created for learner, got %d", got)
	}
}

func TestService_RejectRequest(t *testing.T) {
	env := setupService(t)
	ctx := context.Background()
	req := env.createRequest(t, types.RequestTypePaid, 4)

	if _, err := env.svc.RejectRequest(ctx, "stranger", req.ID); !errors.Is(err, ErrForbidden) {
		t.Errorf("Expected ErrForbidden, got %v", err)
	}
	rejected, err := env.svc.RejectRequest(ctx, "teacher", req.ID)
	if err != nil {
		t.Fatalf("RejectRequest failed: %v", err)
	}
	if rejected.Status != types.RequestStatusRejected {
		t.Errorf("status = %s", rejected.Status)
	}
	if got := countNotes(t, env, "learner", types.NotificationRequestRejected); got != 1 {
		t.Errorf("Expected 1 request_rejected, got %d", got)
	}
}

func TestService_PayFlow(t *testing.T) {
	env := setupService(t)
	ctx := context.Background()
	req := env.createRequest(t, types.RequestTypePaid, 4)

	if _, _, err := env.svc.Pay(ctx, "learner", req.ID, types.ScheduleOptions{}); !errors.Is(err, ErrNotAccepted) {
		t.Errorf("Expected ErrNotAccepted, got %v", err)
	}

	accepted, err := env.svc.SelectSlot(ctx, "teacher", req.ID, slotTime)
	if err != nil {
		t.Fatalf("SelectSlot failed: %v", err)
	}
	if accepted.MeetingID != nil {
		t.Fatal("Paid request must not be scheduled before payment")
	}

	if _, _, err := env.svc.Pay(ctx, "teacher", req.ID, types.ScheduleOptions{}); !errors.Is(err, ErrForbidden) {
		t.Errorf("Only the requester may pay, got %v", err)
	}

	paid, m, err := env.svc.Pay(ctx, "learner", req.ID, types.ScheduleOptions{IntervalDays: 7})
	if err != nil {
		t.Fatalf("Pay failed: %v", err)
	}
	if paid.PaymentStatus != types.PaymentStatusPaid || paid.PaidAt == nil {
		t.Errorf("Unexpected payment state %+v", paid)
	}
	if m == nil || paid.MeetingID == nil || *paid.MeetingID != m.ID {
		t.Fatalf("Expected linked meeting, got %+v / %+v", m, paid.MeetingID)
	}
	for i, c := range m.Classes {
		if c.TeacherID != "teacher" {
			t.Errorf("class %d teacher = %s", i, c.TeacherID)
		}
		if !c.DateTime.Equal(slotTime.AddDate(0, 0, 7*i)) {
			t.Errorf("class %d at %v", i, c.DateTime)
		}
	}

	if _, _, err := env.svc.Pay(ctx, "learner", req.ID, types.ScheduleOptions{}); !errors.Is(err, ErrAlreadyPaid) {
		t.Errorf("Expected ErrAlreadyPaid, got %v", err)
	}
	if got := countNotes(t, env, "teacher", types.NotificationPaymentDone); got != 1 {
		t.Errorf("Expected 1 payment_done, got %d", got)
	}

	exchange := env.createRequest(t, types.RequestTypeExchange, 4)
	if _, _, err := env.svc.Pay(ctx, "learner", exchange.ID, types.ScheduleOptions{}); !errors.Is(err, ErrPaymentNotRequired) {
		t.Errorf("Expected ErrPaymentNotRequired, got %v", err)
	}
}

type failingScheduler struct{}

func (failingScheduler) CreateMeetingForRequest(ctx context.Context, requestID string, opts types.ScheduleOptions) (*types.Meeting, error) {
	return nil, errors.New("database is locked")
}

// FUNCTIONAL VALIDATION TEST: A schedule that cannot be built is rejected
// before the payment is recorded
func TestService_PayRejectsInvalidSchedule(t *testing.T) {
	tests := []struct {
		name    string
		opts    types.ScheduleOptions
		wantErr error
	}{
		{"too few dates", types.ScheduleOptions{ClassDates: []time.Time{slotTime}}, scheduler.ErrClassDatesMismatch},
		{"zero date", types.ScheduleOptions{ClassDates: []time.Time{slotTime, {}, slotTime, slotTime}}, scheduler.ErrInvalidClassDate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := setupService(t)
			ctx := context.Background()
			req := env.createRequest(t, types.RequestTypePaid, 4)
			if _, err := env.svc.SelectSlot(ctx, "teacher", req.ID, slotTime); err != nil {
				t.Fatalf("SelectSlot failed: %v", err)
			}

			if _, _, err := env.svc.Pay(ctx, "learner", req.ID, tt.opts); !errors.Is(err, tt.wantErr) {
				t.Fatalf("Expected %v, got %v", tt.wantErr, err)
			}

			stored, err := env.svc.GetRequest(ctx, "learner", req.ID)
			if err != nil {
				t.Fatalf("GetRequest failed: %v", err)
			}
			if stored.PaymentStatus != types.PaymentStatusNotPaid || stored.PaidAt != nil || stored.MeetingID != nil {
				t.Errorf("Expected no partial state, got %+v", stored)
			}
			if got := countNotes(t, env, "teacher", types.NotificationPaymentDone); got != 0 {
				t.Errorf("Expected no payment_done, got %d", got)
			}

			// The caller can fix the schedule and pay normally
			_, m, err := env.svc.Pay(ctx, "learner", req.ID, types.ScheduleOptions{})
			if err != nil || m == nil {
				t.Fatalf("Pay with valid options failed: %v (meeting %v)", err, m)
			}
		})
	}
}

// FUNCTIONAL VALIDATION TEST: A transient scheduling failure keeps the
// payment, and paying again only retries the scheduling
func TestService_PayRetriesSchedulingAfterFailure(t *testing.T) {
	env := setupService(t)
	ctx := context.Background()
	req := env.createRequest(t, types.RequestTypePaid, 4)
	if _, err := env.svc.SelectSlot(ctx, "teacher", req.ID, slotTime); err != nil {
		t.Fatalf("SelectSlot failed: %v", err)
	}

	working := env.svc.scheduler
	env.svc.scheduler = failingScheduler{}
	paid, m, err := env.svc.Pay(ctx, "learner", req.ID, types.ScheduleOptions{})
	if err != nil {
		t.Fatalf("Pay should succeed when scheduling fails: %v", err)
	}
	if m != nil || paid.MeetingID != nil {
		t.Error("No meeting expected")
	}
	if paid.PaymentStatus != types.PaymentStatusPaid || paid.PaidAt == nil {
		t.Fatalf("Payment must stay captured, got %+v", paid)
	}
	paidAt := *paid.PaidAt

	env.now = env.now.Add(time.Hour)
	env.svc.scheduler = working
	retried, m, err := env.svc.Pay(ctx, "learner", req.ID, types.ScheduleOptions{})
	if err != nil {
		t.Fatalf("Retry failed: %v", err)
	}
	if m == nil || retried.MeetingID == nil || *retried.MeetingID != m.ID {
		t.Fatalf("Expected the retry to link a meeting, got %+v / %+v", m, retried.MeetingID)
	}
	if retried.PaidAt == nil || !retried.PaidAt.Equal(paidAt) {
		t.Errorf("Retry must not record a second payment, paidAt %v -> %v", paidAt, retried.PaidAt)
	}
	if got := countNotes(t, env, "teacher", types.NotificationPaymentDone); got != 1 {
		t.Errorf("Expected 1 payment_done, got %d", got)
	}

	if _, _, err := env.svc.Pay(ctx, "learner", req.ID, types.ScheduleOptions{}); !errors.Is(err, ErrAlreadyPaid) {
		t.Errorf("Expected ErrAlreadyPaid once linked, got %v", err)
	}
}

func TestService_RevealRoomWindow(t *testing.T) {
	env := setupService(t)
	ctx := context.Background()
	m := env.scheduledMeeting(t)
	start := m.Classes[0].DateTime

	tests := []struct {
		name    string
		offset  time.Duration
		wantErr error
	}{
		{"11 minutes before", -11 * time.Minute, ErrOutsideJoinWindow},
		{"9 minutes before", -9 * time.Minute, nil},
		{"at start", 0, nil},
		{"90 minutes after", 90 * time.Minute, nil},
		{"91 minutes after", 91 * time.Minute, ErrOutsideJoinWindow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env.now = start.Add(tt.offset)
			reveal, err := env.svc.RevealRoom(ctx, "learner", m.ID, 0)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Expected %v, got %v", tt.wantErr, err)
			}
			if tt.wantErr != nil {
				var windowErr *JoinWindowError
				if !errors.As(err, &windowErr) || !strings.Contains(windowErr.Message, "10 minutes before start") {
					t.Errorf("Expected actionable window message, got %v", err)
				}
				return
			}
			if reveal.RoomName != m.Classes[0].RoomID || reveal.DurationMin != 60 || reveal.Teacher != "teacher" {
				t.Errorf("Unexpected reveal %+v", reveal)
			}
		})
	}

	env.now = start
	if _, err := env.svc.RevealRoom(ctx, "stranger", m.ID, 0); !errors.Is(err, ErrForbidden) {
		t.Errorf("Expected ErrForbidden, got %v", err)
	}
	if _, err := env.svc.RevealRoom(ctx, "learner", m.ID, 9); !errors.Is(err, ErrClassNotFound) {
		t.Errorf("Expected ErrClassNotFound, got %v", err)
	}
	if _, err := env.svc.RevealRoom(ctx, "learner", "missing", 0); !errors.Is(err, interfaces.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestService_RoomInfo(t *testing.T) {
	env := setupService(t)
	ctx := context.Background()
	m := env.scheduledMeeting(t)
	cls := m.Classes[2]

	env.now = cls.DateTime.Add(-time.Hour)
	info, err := env.svc.RoomInfo(ctx, "teacher", cls.RoomID)
	if err != nil {
		t.Fatalf("RoomInfo failed: %v", err)
	}
	if info.MeetingID != m.ID || info.ClassIndex != 2 || info.CanJoin {
		t.Errorf("Unexpected info %+v", info)
	}

	env.now = cls.DateTime.Add(5 * time.Minute)
	info, err = env.svc.RoomInfo(ctx, "teacher", cls.RoomID)
	if err != nil || !info.CanJoin {
		t.Errorf("Expected canJoin inside window, got %+v, %v", info, err)
	}

	if _, err := env.svc.RoomInfo(ctx, "stranger", cls.RoomID); !errors.Is(err, ErrForbidden) {
		t.Errorf("Expected ErrForbidden, got %v", err)
	}
	if _, err := env.svc.RoomInfo(ctx, "teacher", "no-such-room"); !errors.Is(err, interfaces.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestService_CompleteClass(t *testing.T) {
	env := setupService(t)
	ctx := context.Background()
	m := env.scheduledMeeting(t)

	start := m.Classes[0].DateTime
	end := start.Add(59*time.Minute + 30*time.Second + 700*time.Millisecond)
	env.now = end.Add(time.Minute)

	done, err := env.svc.CompleteClass(ctx, "learner", m.ID, 0, types.CompletionReport{StartAt: &start, EndAt: &end})
	if err != nil {
		t.Fatalf("CompleteClass failed: %v", err)
	}
	if done.Status != types.SlotStatusCompleted || done.DurationSec == nil || *done.DurationSec != 3570 {
		t.Errorf("Unexpected completion %+v", done)
	}

	if _, err := env.svc.CompleteClass(ctx, "teacher", m.ID, 0, types.CompletionReport{}); !errors.Is(err, ErrClassNotOpen) {
		t.Errorf("Second completion should fail with ErrClassNotOpen, got %v", err)
	}
	if _, err := env.svc.RevealRoom(ctx, "learner", m.ID, 0); !errors.Is(err, ErrClassNotOpen) {
		t.Errorf("Completed class must not be revealed, got %v", err)
	}

	req, err := env.svc.GetRequest(ctx, "learner", m.RequestID)
	if err != nil {
		t.Fatalf("GetRequest failed: %v", err)
	}
	if req.ClassesCompleted != 1 {
		t.Errorf("classesCompleted = %d, want 1", req.ClassesCompleted)
	}

	for _, user := range []string{"learner", "teacher"} {
		if got := countNotes(t, env, user, types.NotificationClassCompleted); got != 1 {
			t.Errorf("%s: expected 1 class_completed, got %d", user, got)
		}
	}

	if _, err := env.svc.CompleteClass(ctx, "stranger", m.ID, 1, types.CompletionReport{}); !errors.Is(err, ErrForbidden) {
		t.Errorf("Expected ErrForbidden, got %v", err)
	}
}

func TestService_CompleteClassDefaults(t *testing.T) {
	env := setupService(t)
	ctx := context.Background()
	m := env.scheduledMeeting(t)

	env.now = m.Classes[1].DateTime.Add(30 * time.Minute)
	later := env.now.Add(time.Hour)

	// start after end clamps to zero
	done, err := env.svc.CompleteClass(ctx, "teacher", m.ID, 1, types.CompletionReport{StartAt: &later})
	if err != nil {
		t.Fatalf("CompleteClass failed: %v", err)
	}
	if *done.DurationSec != 0 {
		t.Errorf("durationSec = %d, want 0", *done.DurationSec)
	}
	if !done.EndAt.Equal(env.now) {
		t.Errorf("endAt = %v, want now", done.EndAt)
	}

	done, err = env.svc.CompleteClass(ctx, "teacher", m.ID, 2, types.CompletionReport{})
	if err != nil {
		t.Fatalf("CompleteClass failed: %v", err)
	}
	if *done.DurationSec != 0 || !done.StartAt.Equal(env.now) {
		t.Errorf("Expected start=end=now, got %+v", done)
	}
}

func TestService_AuthorizeRoom(t *testing.T) {
	env := setupService(t)
	ctx := context.Background()
	m := env.scheduledMeeting(t)
	room := m.Classes[0].RoomID

	if err := env.svc.AuthorizeRoom(ctx, "learner", room); err != nil {
		t.Errorf("Participant should be authorized: %v", err)
	}
	if err := env.svc.AuthorizeRoom(ctx, "stranger", room); !errors.Is(err, ErrForbidden) {
		t.Errorf("Expected ErrForbidden, got %v", err)
	}
	if err := env.svc.AuthorizeRoom(ctx, "learner", "unknown"); !errors.Is(err, interfaces.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestService_Meetings(t *testing.T) {
	env := setupService(t)
	ctx := context.Background()
	m := env.scheduledMeeting(t)

	if _, err := env.svc.GetMeeting(ctx, "stranger", m.ID); !errors.Is(err, ErrForbidden) {
		t.Errorf("Expected ErrForbidden, got %v", err)
	}
	if _, err := env.svc.ListMeetingsForUser(ctx, "learner", "teacher"); !errors.Is(err, ErrForbidden) {
		t.Errorf("Expected ErrForbidden for other user's list, got %v", err)
	}
	list, err := env.svc.ListMeetingsForUser(ctx, "teacher", "teacher")
	if err != nil || len(list) != 1 || list[0].ID != m.ID {
		t.Errorf("Unexpected list %v, %v", list, err)
	}
}

func TestService_MarkNotificationRead(t *testing.T) {
	env := setupService(t)
	ctx := context.Background()
	env.createRequest(t, types.RequestTypePaid, 4)

	notes, err := env.svc.ListNotifications(ctx, "teacher")
	if err != nil || len(notes) != 1 {
		t.Fatalf("Expected one notification, got %d, %v", len(notes), err)
	}
	id := notes[0].ID

	if _, err := env.svc.MarkNotificationRead(ctx, "learner", id); !errors.Is(err, ErrForbidden) {
		t.Errorf("Expected ErrForbidden, got %v", err)
	}
	for i := 0; i < 2; i++ {
		note, err := env.svc.MarkNotificationRead(ctx, "teacher", id)
		if err != nil {
			t.Fatalf("MarkNotificationRead #%d failed: %v", i+1, err)
		}
		if !note.Read {
			t.Error("Expected read notification")
		}
	}
}

func TestElapsedSeconds(t *testing.T) {
	base := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	tests := []struct {
		end  time.Time
		want int
	}{
		{base, 0},
		{base.Add(-time.Minute), 0},
		{base.Add(999 * time.Millisecond), 0},
		{base.Add(61500 * time.Millisecond), 61},
		{base.Add(time.Hour), 3600},
	}
	for _, tt := range tests {
		if got := ElapsedSeconds(base, tt.end); got != tt.want {
			t.Errorf("ElapsedSeconds(+%v) = %d, want %d", tt.end.Sub(base), got, tt.want)
		}
	}
}
