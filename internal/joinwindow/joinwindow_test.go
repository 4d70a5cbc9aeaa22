package joinwindow

import (
	"testing"
	"time"

	"skillswap/pkg/types"
)

func TestClassify_ReferencePoints(t *testing.T) {
	T := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		now    time.Time
		status types.SlotStatus
		want   State
	}{
		{"eleven minutes early", T.Add(-11 * time.Minute), types.SlotStatusUpcoming, StateUpcoming},
		{"nine minutes early", T.Add(-9 * time.Minute), types.SlotStatusUpcoming, StateJoinablePending},
		{"window opens exactly", T.Add(-10 * time.Minute), types.SlotStatusUpcoming, StateJoinablePending},
		{"at nominal start", T, types.SlotStatusUpcoming, StateJoinableStarted},
		{"one minute in", T.Add(time.Minute), types.SlotStatusUpcoming, StateJoinableStarted},
		{"window closes exactly", T.Add(90 * time.Minute), types.SlotStatusUpcoming, StateJoinableStarted},
		{"ninety one minutes in", T.Add(91 * time.Minute), types.SlotStatusUpcoming, StateWindowClosed},
		{"completed inside window", T.Add(time.Minute), types.SlotStatusCompleted, StateCompleted},
		{"completed long before", T.Add(-48 * time.Hour), types.SlotStatusCompleted, StateCompleted},
		{"cancelled after window", T.Add(5 * time.Hour), types.SlotStatusCancelled, StateCancelled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(T, tt.status, tt.now); got != tt.want {
				t.Errorf("Classify() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestPolicy_CustomBounds(t *testing.T) {
	T := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	p := Policy{Before: 5 * time.Minute, After: 30 * time.Minute}

	if got := p.Classify(T, types.SlotStatusUpcoming, T.Add(-6*time.Minute)); got != StateUpcoming {
		t.Errorf("Expected upcoming, got %s", got)
	}
	if got := p.Classify(T, types.SlotStatusUpcoming, T.Add(31*time.Minute)); got != StateWindowClosed {
		t.Errorf("Expected window-closed, got %s", got)
	}
	if !p.InWindow(T, T.Add(30*time.Minute)) {
		t.Error("Expected the closing instant to be inside the window")
	}
}

func TestPolicy_ZeroValueUsesDefaults(t *testing.T) {
	T := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	var p Policy
	if got := p.Classify(T, types.SlotStatusUpcoming, T.Add(-9*time.Minute)); got != StateJoinablePending {
		t.Errorf("Expected joinable-pending, got %s", got)
	}
}

func TestPolicy_Opens(t *testing.T) {
	T := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)

	if got := (Policy{}).Opens(T); !got.Equal(T.Add(-10 * time.Minute)) {
		t.Errorf("default Opens = %v", got)
	}
	p := Policy{Before: 5 * time.Minute, After: time.Hour}
	opens := p.Opens(T)
	if !opens.Equal(T.Add(-5 * time.Minute)) {
		t.Errorf("custom Opens = %v", opens)
	}
	if !p.Classify(T, types.SlotStatusUpcoming, opens).Joinable() {
		t.Error("slot should be joinable at the instant the window opens")
	}
	if p.Classify(T, types.SlotStatusUpcoming, opens.Add(-time.Second)).Joinable() {
		t.Error("slot should not be joinable before the window opens")
	}
}

func TestPolicy_Message(t *testing.T) {
	want := "You can join 10 minutes before start until 90 minutes after start."
	if got := DefaultPolicy().Message(); got != want {
		t.Errorf("Message() = %q, want %q", got, want)
	}
}

func TestState_Predicates(t *testing.T) {
	if !StateJoinablePending.Joinable() || !StateJoinableStarted.Joinable() {
		t.Error("Expected joinable states to be joinable")
	}
	if StateUpcoming.Joinable() || StateWindowClosed.Joinable() || StateCompleted.Joinable() {
		t.Error("Expected non-window states not to be joinable")
	}
	if !StateCompleted.Terminal() || !StateCancelled.Terminal() || StateWindowClosed.Terminal() {
		t.Error("Terminal() returned unexpected result")
	}
}
