// Package rooms keeps the process-local state of signaling rooms: which
// connections are in a room and when its call started.
package rooms

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultGrace is how long an empty or ended room survives before deletion
const DefaultGrace = 5 * time.Minute

// Hint is the meeting/class reference a client reported with call-started.
// It is advisory; the persisted meeting stays authoritative.
type Hint struct {
	MeetingID  string
	ClassIndex *int
}

// Departure lists who is left in a room after a connection went away
type Departure struct {
	RoomID    string
	Remaining []string
}

// Snapshot is a copy of one room's state
type Snapshot struct {
	RoomID  string
	Members []string
	StartAt *time.Time
	Hint    Hint
}

type room struct {
	members []string // join order
	startAt *time.Time
	hint    Hint
	ended   bool // call-ended seen for the current occupancy

	timer *time.Timer
	gen   uint64 // bumped on every schedule/cancel so stale timer callbacks are ignored
}

func (rm *room) indexOf(connID string) int {
	for i, m := range rm.members {
		if m == connID {
			return i
		}
	}
	return -1
}

func (rm *room) others(connID string) []string {
	out := make([]string, 0, len(rm.members))
	for _, m := range rm.members {
		if m != connID {
			out = append(out, m)
		}
	}
	return out
}

// Registry maps room ids to their members and call start.
// TECHNICAL DISCOVERY: Grace timers fire on their own goroutines, so every
// access goes through the mutex even though the hub serializes relay events.
type Registry struct {
	mu       sync.Mutex
	rooms    map[string]*room
	memberOf map[string]map[string]struct{} // connID -> roomIDs
	grace    time.Duration
	logger   *zap.Logger
	closed   bool
}

// NewRegistry creates an empty registry. A non-positive grace uses DefaultGrace.
func NewRegistry(grace time.Duration, logger *zap.Logger) *Registry {
	if grace <= 0 {
		grace = DefaultGrace
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		rooms:    make(map[string]*room),
		memberOf: make(map[string]map[string]struct{}),
		grace:    grace,
		logger:   logger,
	}
}

// Join adds connID to roomID, creating the room on first join, and returns
// the other members in join order. Joining again is a no-op. The first new
// member after call-ended starts a fresh occupancy with no recorded start.
func (r *Registry) Join(roomID, connID string) ([]string, error) {
	if roomID == "" {
		return nil, ErrInvalidRoomID
	}
	if connID == "" {
		return nil, ErrInvalidConnID
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	rm, ok := r.rooms[roomID]
	if !ok {
		rm = &room{}
		r.rooms[roomID] = rm
		r.logger.Debug("room created", zap.String("room", roomID))
	}
	if rm.indexOf(connID) >= 0 {
		return rm.others(connID), nil
	}
	r.cancelDeletionLocked(rm)

	if rm.ended {
		rm.startAt = nil
		rm.hint = Hint{}
		rm.ended = false
		r.logger.Debug("new occupancy after call ended", zap.String("room", roomID))
	}
	rm.members = append(rm.members, connID)
	if r.memberOf[connID] == nil {
		r.memberOf[connID] = make(map[string]struct{})
	}
	r.memberOf[connID][roomID] = struct{}{}

	return rm.others(connID), nil
}

// Leave removes connID from every room it joined. Rooms left empty are
// deleted after the grace delay unless someone joins in between.
func (r *Registry) Leave(connID string) []Departure {
	r.mu.Lock()
	defer r.mu.Unlock()

	joined := r.memberOf[connID]
	delete(r.memberOf, connID)

	var departures []Departure
	for roomID := range joined {
		rm, ok := r.rooms[roomID]
		if !ok {
			continue
		}
		idx := rm.indexOf(connID)
		if idx < 0 {
			continue
		}
		rm.members = append(rm.members[:idx], rm.members[idx+1:]...)

		departures = append(departures, Departure{
			RoomID:    roomID,
			Remaining: append([]string(nil), rm.members...),
		})

		if len(rm.members) == 0 {
			r.scheduleDeletionLocked(roomID, rm)
		}
	}
	return departures
}

// MarkCallStarted records the call start for the current occupancy.
// The first call wins; later calls return the stored start with first=false.
func (r *Registry) MarkCallStarted(roomID, connID string, hint Hint, now time.Time) (time.Time, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rm, ok := r.rooms[roomID]
	if !ok {
		return time.Time{}, false, ErrRoomNotFound
	}
	if rm.indexOf(connID) < 0 {
		return time.Time{}, false, ErrNotMember
	}
	if rm.startAt != nil {
		return *rm.startAt, false, nil
	}

	start := now.UTC()
	rm.startAt = &start
	if hint.MeetingID != "" {
		rm.hint = hint
	}
	return start, true, nil
}

// MarkCallEnded schedules cleanup of roomID after the grace delay.
// Members still present when the delay elapses keep the room but lose the
// recorded start, so a later call-started opens a new occupancy.
func (r *Registry) MarkCallEnded(roomID, connID string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rm, ok := r.rooms[roomID]
	if !ok {
		return nil, ErrRoomNotFound
	}
	if rm.indexOf(connID) < 0 {
		return nil, ErrNotMember
	}
	rm.ended = true
	r.scheduleDeletionLocked(roomID, rm)
	return append([]string(nil), rm.members...), nil
}

// Members returns a copy of the room's members in join order
func (r *Registry) Members(roomID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	rm, ok := r.rooms[roomID]
	if !ok {
		return nil
	}
	return append([]string(nil), rm.members...)
}

// Snapshot returns a copy of a room's state
func (r *Registry) Snapshot(roomID string) (Snapshot, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rm, ok := r.rooms[roomID]
	if !ok {
		return Snapshot{}, false
	}
	snap := Snapshot{
		RoomID:  roomID,
		Members: append([]string(nil), rm.members...),
		Hint:    rm.hint,
	}
	if rm.startAt != nil {
		start := *rm.startAt
		snap.StartAt = &start
	}
	return snap, true
}

// RoomsOf returns the rooms a connection currently belongs to
func (r *Registry) RoomsOf(connID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]string, 0, len(r.memberOf[connID]))
	for roomID := range r.memberOf[connID] {
		out = append(out, roomID)
	}
	return out
}

// GetStats returns registry statistics for monitoring
func (r *Registry) GetStats() map[string]int {
	r.mu.Lock()
	defer r.mu.Unlock()

	members, active := 0, 0
	for _, rm := range r.rooms {
		members += len(rm.members)
		if rm.startAt != nil {
			active++
		}
	}
	return map[string]int{
		"rooms":        len(r.rooms),
		"members":      members,
		"active_calls": active,
	}
}

// Close stops all pending deletion timers. The registry keeps working but
// nothing is scheduled anymore.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.closed = true
	for _, rm := range r.rooms {
		r.cancelDeletionLocked(rm)
	}
}

func (r *Registry) scheduleDeletionLocked(roomID string, rm *room) {
	r.cancelDeletionLocked(rm)
	if r.closed {
		return
	}
	gen := rm.gen
	rm.timer = time.AfterFunc(r.grace, func() {
		r.expire(roomID, rm, gen)
	})
}

func (r *Registry) cancelDeletionLocked(rm *room) {
	rm.gen++
	if rm.timer != nil {
		rm.timer.Stop()
		rm.timer = nil
	}
}

func (r *Registry) expire(roomID string, rm *room, gen uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Re-check: the room may have been replaced, rejoined or rescheduled
	if r.rooms[roomID] != rm || rm.gen != gen {
		return
	}
	rm.timer = nil

	if len(rm.members) == 0 {
		delete(r.rooms, roomID)
		r.logger.Debug("room deleted after grace", zap.String("room", roomID))
		return
	}

	rm.startAt = nil
	rm.hint = Hint{}
	rm.ended = false
	r.logger.Debug("call state cleared after grace", zap.String("room", roomID), zap.Int("members", len(rm.members)))
}
