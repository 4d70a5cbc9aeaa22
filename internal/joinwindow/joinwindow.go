// Package joinwindow classifies a class slot against its permitted join interval.
//
// The server check in the meeting service is authoritative. The call command
// uses the same package only to decide whether to try joining, or how long to
// wait first; its answer is advisory and never a security boundary.
package joinwindow

import (
	"fmt"
	"time"

	"skillswap/pkg/types"
)

// State is the join classification of one class slot at a point in time
type State string

const (
	StateUpcoming        State = "upcoming"
	StateJoinablePending State = "joinable-pending"
	StateJoinableStarted State = "joinable-started"
	StateWindowClosed    State = "window-closed"
	StateCompleted       State = "completed"
	StateCancelled       State = "cancelled"
)

// Default window bounds relative to the scheduled start
const (
	DefaultBefore = 10 * time.Minute
	DefaultAfter  = 90 * time.Minute
)

// Policy holds the window bounds. The zero value uses the defaults.
type Policy struct {
	Before time.Duration
	After  time.Duration
}

// DefaultPolicy returns the 10 minute / 90 minute window
func DefaultPolicy() Policy {
	return Policy{Before: DefaultBefore, After: DefaultAfter}
}

func (p Policy) bounds() (time.Duration, time.Duration) {
	before, after := p.Before, p.After
	if before <= 0 {
		before = DefaultBefore
	}
	if after <= 0 {
		after = DefaultAfter
	}
	return before, after
}

// Classify returns the state of a slot scheduled at scheduled with status at now.
// Terminal statuses win over time.
func (p Policy) Classify(scheduled time.Time, status types.SlotStatus, now time.Time) State {
	switch status {
	case types.SlotStatusCompleted:
		return StateCompleted
	case types.SlotStatusCancelled:
		return StateCancelled
	}

	before, after := p.bounds()
	switch {
	case now.Before(scheduled.Add(-before)):
		return StateUpcoming
	case now.After(scheduled.Add(after)):
		return StateWindowClosed
	case now.Before(scheduled):
		return StateJoinablePending
	default:
		return StateJoinableStarted
	}
}

// InWindow reports whether now is inside the join window, ignoring status
func (p Policy) InWindow(scheduled, now time.Time) bool {
	before, after := p.bounds()
	return !now.Before(scheduled.Add(-before)) && !now.After(scheduled.Add(after))
}

// Opens returns the earliest time a slot scheduled at scheduled can be joined
func (p Policy) Opens(scheduled time.Time) time.Time {
	before, _ := p.bounds()
	return scheduled.Add(-before)
}

// Message is the user-facing explanation for a rejected join
func (p Policy) Message() string {
	before, after := p.bounds()
	return fmt.Sprintf("You can join %s before start until %s after start.", minutes(before), minutes(after))
}

// Classify uses the default policy
func Classify(scheduled time.Time, status types.SlotStatus, now time.Time) State {
	return DefaultPolicy().Classify(scheduled, status, now)
}

// Joinable reports whether a state permits joining
func (s State) Joinable() bool {
	return s == StateJoinablePending || s == StateJoinableStarted
}

// Terminal reports whether the slot can no longer be joined for any time
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateCancelled
}

func minutes(d time.Duration) string {
	m := int(d / time.Minute)
	if m == 1 {
		return "1 minute"
	}
	return fmt.Sprintf("%d minutes", m)
}
