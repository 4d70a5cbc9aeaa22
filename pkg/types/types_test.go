package types

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

// Functional Validation Tests - Request

func TestRequest_Validate(t *testing.T) {
	slot := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	valid := func() Request {
		return Request{
			FromUser:      "learner_1",
			ToUser:        "teacher_1",
			Type:          RequestTypeExchange,
			Classes:       4,
			ProposedSlots: []time.Time{slot},
		}
	}

	tests := []struct {
		name    string
		mutate  func(r *Request)
		wantErr error
	}{
		{name: "valid request", mutate: func(r *Request) {}, wantErr: nil},
		{name: "paid six classes", mutate: func(r *Request) { r.Type = RequestTypePaid; r.Classes = 6 }, wantErr: nil},
		{name: "invalid from user", mutate: func(r *Request) { r.FromUser = "bad user!" }, wantErr: ErrInvalidUserID},
		{name: "empty to user", mutate: func(r *Request) { r.ToUser = "" }, wantErr: ErrInvalidUserID},
		{name: "self request", mutate: func(r *Request) { r.ToUser = r.FromUser }, wantErr: ErrSelfRequest},
		{name: "unknown type", mutate: func(r *Request) { r.Type = "barter" }, wantErr: ErrInvalidRequestType},
		{name: "five classes", mutate: func(r *Request) { r.Classes = 5 }, wantErr: ErrInvalidClassCount},
		{name: "no slots", mutate: func(r *Request) { r.ProposedSlots = nil }, wantErr: ErrNoProposedSlots},
		{name: "zero slot", mutate: func(r *Request) { r.ProposedSlots = []time.Time{slot, {}} }, wantErr: ErrInvalidProposedSlot},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := valid()
			tt.mutate(&req)
			if err := req.Validate(); err != tt.wantErr {
				t.Errorf("Validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestRequest_HasProposedSlot(t *testing.T) {
	slot := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	req := Request{ProposedSlots: []time.Time{slot}}

	// Same instant in another zone still matches
	if !req.HasProposedSlot(slot.In(time.FixedZone("UTC+3", 3*3600))) {
		t.Error("Expected slot in another zone to match")
	}
	if req.HasProposedSlot(slot.Add(time.Minute)) {
		t.Error("Expected different instant not to match")
	}
}

func TestRequest_IsParticipant(t *testing.T) {
	req := Request{FromUser: "a", ToUser: "b"}
	if !req.IsParticipant("a") || !req.IsParticipant("b") {
		t.Error("Expected both sides to be participants")
	}
	if req.IsParticipant("c") || req.IsParticipant("") {
		t.Error("Expected outsiders and empty ids to be rejected")
	}
}

// Functional Validation Tests - User

func TestUser_Validate(t *testing.T) {
	tests := []struct {
		name    string
		user    User
		wantErr error
	}{
		{"valid", User{ID: "u1", Name: "Ada", Price4: 40, Price6: 55}, nil},
		{"bad id", User{ID: "u 1", Name: "Ada"}, ErrInvalidUserID},
		{"empty name", User{ID: "u1"}, ErrInvalidUserName},
		{"long name", User{ID: "u1", Name: strings.Repeat("a", 201)}, ErrInvalidUserName},
		{"negative price", User{ID: "u1", Name: "Ada", Price6: -1}, ErrInvalidPrice},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.user.Validate(); err != tt.wantErr {
				t.Errorf("Validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestUser_PriceFor(t *testing.T) {
	u := User{Price4: 40, Price6: 55}
	if u.PriceFor(4) != 40 || u.PriceFor(6) != 55 || u.PriceFor(5) != 0 {
		t.Errorf("Unexpected prices: %v %v %v", u.PriceFor(4), u.PriceFor(6), u.PriceFor(5))
	}
}

// Functional Validation Tests - Meeting

func TestMeeting_Class(t *testing.T) {
	m := Meeting{Participants: []string{"a", "b"}, Classes: []ClassSlot{{Index: 0}, {Index: 1}}}

	if c, ok := m.Class(1); !ok || c.Index != 1 {
		t.Errorf("Expected class 1, got %v %v", c, ok)
	}
	if _, ok := m.Class(2); ok {
		t.Error("Expected out of range index to fail")
	}
	if _, ok := m.Class(-1); ok {
		t.Error("Expected negative index to fail")
	}
	if !m.IsParticipant("b") || m.IsParticipant("c") {
		t.Error("IsParticipant returned unexpected result")
	}
}

// Functional Validation Tests - Wire messages

func TestSignalPayload_Validate(t *testing.T) {
	tests := []struct {
		name    string
		payload SignalPayload
		wantErr error
	}{
		{"valid", SignalPayload{To: "c2", Signal: json.RawMessage(`{"type":"offer"}`)}, nil},
		{"missing target", SignalPayload{Signal: json.RawMessage(`{}`)}, ErrInvalidPayload},
		{"missing blob", SignalPayload{To: "c2"}, ErrInvalidPayload},
		{"oversized", SignalPayload{To: "c2", Signal: json.RawMessage(`"` + strings.Repeat("x", MaxSignalBytes) + `"`)}, ErrSignalTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.payload.Validate(); err != tt.wantErr {
				t.Errorf("Validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestEnvelope_SignalBlobIsOpaque(t *testing.T) {
	blob := json.RawMessage(`{"sdp":"v=0\r\n","type":"offer","extra":[1,2,3]}`)
	env, err := NewEnvelope(EventSignal, SignalPayload{From: "c1", Signal: blob})
	if err != nil {
		t.Fatalf("NewEnvelope failed: %v", err)
	}

	var decoded SignalPayload
	if err := env.Decode(&decoded); err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if string(decoded.Signal) != string(blob) {
		t.Errorf("Signal blob changed in transit: %s", decoded.Signal)
	}
}

func TestEnvelope_DecodeEmpty(t *testing.T) {
	env := &Envelope{Type: EventJoinRoom}
	var p JoinRoomPayload
	if err := env.Decode(&p); err != ErrInvalidPayload {
		t.Errorf("Expected ErrInvalidPayload, got %v", err)
	}
}

func TestIsValidRoomName(t *testing.T) {
	tests := map[string]bool{
		"ab12cd-0-KZXW6YTBOI2GK3DP": true,
		"":                          false,
		"has space":                 false,
		strings.Repeat("r", 129):    false,
	}
	for name, want := range tests {
		if got := IsValidRoomName(name); got != want {
			t.Errorf("IsValidRoomName(%q) = %v, want %v", name, got, want)
		}
	}
}
