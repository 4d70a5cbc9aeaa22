// Package callclient drives one participant through a class call: capture
// local media, join the signaling room, negotiate with every peer, count
// down the class and report the completion.
package callclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"skillswap/pkg/types"
)

// DefaultReportTimeout bounds the completion report made while ending
const DefaultReportTimeout = 10 * time.Second

// Media is the local capture held for the lifetime of a call
type Media interface {
	Release()
}

// MediaSource acquires camera and microphone
type MediaSource interface {
	Acquire(ctx context.Context) (Media, error)
}

// PeerEvents are the callbacks a Peer uses to report back to the controller.
// They may be invoked from any goroutine.
type PeerEvents struct {
	Signal      func(blob json.RawMessage)
	RemoteTrack func()
	Closed      func()
}

// Peer is one negotiated connection to a remote participant
type Peer interface {
	Signal(blob json.RawMessage) error
	Close() error
}

// PeerFactory creates peers carrying the local media
type PeerFactory interface {
	NewPeer(remoteID string, initiator bool, media Media, events PeerEvents) (Peer, error)
}

// Signaler is an open relay connection
type Signaler interface {
	Join(ctx context.Context, roomName string) ([]string, error)
	Send(eventType string, payload interface{}) error
	Events() <-chan *types.Envelope
	Close() error
}

// Dialer opens the relay connection
type Dialer interface {
	Dial(ctx context.Context) (Signaler, error)
}

// Reporter persists a finished class
type Reporter interface {
	ReportCompletion(ctx context.Context, meetingID string, index int, report types.CompletionReport) (*types.ClassSlot, error)
}

// Session identifies the class being joined.
// MeetingID and ClassIndex are optional; without both nothing is reported.
type Session struct {
	RoomName   string
	MeetingID  string
	ClassIndex *int
	Duration   time.Duration
}

// Deps are the controller collaborators. OnState, when set, observes every transition.
type Deps struct {
	Media    MediaSource
	Dialer   Dialer
	Peers    PeerFactory
	Reporter Reporter
	OnState  func(from, to State)
}

// Outcome summarizes a finished call. AlreadyCompleted is set when the other
// participant's report landed first; the class still counts as reported.
type Outcome struct {
	Reason           EndReason
	StartAt          time.Time
	EndAt            time.Time
	DurationSec      int
	Reported         bool
	AlreadyCompleted bool
	ReportErr        error
}

type peerEventKind int

const (
	peerSignal peerEventKind = iota
	peerTrack
	peerClosed
)

type peerEvent struct {
	kind   peerEventKind
	peerID string
	gen    uint64
	blob   json.RawMessage
}

type peerEntry struct {
	peer Peer
	gen  uint64
}

// Controller runs a single call. It is not reusable.
type Controller struct {
	session       Session
	deps          Deps
	logger        *zap.Logger
	now           func() time.Time
	reportTimeout time.Duration

	mu      sync.Mutex
	state   State
	started bool

	endOnce sync.Once
	endCh   chan struct{}
	inbox   chan peerEvent
	done    chan struct{}

	// Owned by the Run goroutine
	local    Media
	signaler Signaler
	conns    map[string]*peerEntry
	nextGen  uint64
	timer    *time.Timer
	startAt  *time.Time
	tornDown bool
}

// NewController validates the session and wires the collaborators
func NewController(session Session, deps Deps, logger *zap.Logger) (*Controller, error) {
	if session.RoomName == "" || session.Duration <= 0 {
		return nil, ErrInvalidSession
	}
	if deps.Media == nil || deps.Dialer == nil || deps.Peers == nil {
		return nil, fmt.Errorf("media, dialer and peer factory are required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{
		session:       session,
		deps:          deps,
		logger:        logger.Named("call").With(zap.String("room", session.RoomName)),
		now:           time.Now,
		reportTimeout: DefaultReportTimeout,
		state:         StateIdle,
		endCh:         make(chan struct{}),
		inbox:         make(chan peerEvent, 256),
		done:          make(chan struct{}),
		conns:         make(map[string]*peerEntry),
	}, nil
}

// State returns the current phase
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// End asks a running call to finish now. Safe to call repeatedly and from any goroutine.
func (c *Controller) End() {
	c.endOnce.Do(func() { close(c.endCh) })
}

// Done is closed once Run has returned
func (c *Controller) Done() <-chan struct{} {
	return c.done
}

// Run blocks until the call ends. Cancelling ctx tears the call down without
// reporting a completion.
func (c *Controller) Run(ctx context.Context) (*Outcome, error) {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return nil, ErrAlreadyRunning
	}
	c.started = true
	c.mu.Unlock()
	defer close(c.done)

	c.transition(StateAcquiringMedia)
	local, err := c.deps.Media.Acquire(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return c.abort(ReasonCancelled, ctx.Err())
		}
		// FUNCTIONAL DISCOVERY: Media failure is final; the user retries by
		// opening the call again, never automatically
		return c.abort(ReasonMediaFailure, fmt.Errorf("%w: %v", ErrMediaUnavailable, err))
	}
	c.local = local

	c.transition(StateConnecting)
	sig, err := c.deps.Dialer.Dial(ctx)
	if err != nil {
		return c.abortSetup(ctx, fmt.Errorf("%w: %v", ErrSignalingFailed, err))
	}
	c.signaler = sig

	existing, err := sig.Join(ctx, c.session.RoomName)
	if err != nil {
		return c.abortSetup(ctx, err)
	}

	c.transition(StateWaitingForPeer)
	c.logger.Info("joined room", zap.Int("peers", len(existing)))

	// The newcomer initiates towards everyone already present
	for _, id := range existing {
		c.addPeer(id, true)
	}

	return c.loop(ctx)
}

func (c *Controller) loop(ctx context.Context) (*Outcome, error) {
	events := c.signaler.Events()
	for {
		var expired <-chan time.Time
		if c.timer != nil {
			expired = c.timer.C
		}

		select {
		case <-ctx.Done():
			return c.abort(ReasonCancelled, ctx.Err())

		case <-c.endCh:
			return c.finish(ctx, ReasonEndedByUser), nil

		case <-expired:
			return c.finish(ctx, ReasonExpired), nil

		case env, ok := <-events:
			if !ok {
				// Established peers keep flowing without the relay
				c.logger.Warn("signaling channel closed")
				events = nil
				continue
			}
			c.handleEnvelope(env)

		case ev := <-c.inbox:
			c.handlePeerEvent(ev)
		}
	}
}

func (c *Controller) handleEnvelope(env *types.Envelope) {
	switch env.Type {
	case types.EventPeerJoined:
		var ev types.PeerEvent
		if err := env.Decode(&ev); err != nil || ev.SocketID == "" {
			c.logger.Warn("malformed peer-joined event")
			return
		}
		c.addPeer(ev.SocketID, false)

	case types.EventPeerLeft:
		var ev types.PeerEvent
		if err := env.Decode(&ev); err != nil {
			c.logger.Warn("malformed peer-left event")
			return
		}
		c.removePeer(ev.SocketID)

	case types.EventSignal:
		var sig types.SignalPayload
		if err := env.Decode(&sig); err != nil || sig.From == "" {
			c.logger.Warn("malformed signal event")
			return
		}
		entry, ok := c.conns[sig.From]
		if !ok {
			// Signal from a peer we have not met yet: answer it
			if entry = c.addPeer(sig.From, false); entry == nil {
				return
			}
		}
		if err := entry.peer.Signal(sig.Signal); err != nil {
			c.logger.Warn("failed to apply remote signal", zap.String("peer", sig.From), zap.Error(err))
		}

	case types.EventCallStarted:
		var ev types.CallStartedEvent
		if err := env.Decode(&ev); err == nil {
			c.logger.Debug("call-started broadcast", zap.Time("start_at", ev.StartAt))
		}

	case types.EventCallEnded:
		c.logger.Debug("call-ended broadcast", zap.ByteString("payload", env.Data))

	case types.EventError:
		var ev types.ErrorEvent
		if err := env.Decode(&ev); err == nil {
			c.logger.Warn("relay reported an error", zap.String("event", ev.Event), zap.String("message", ev.Message))
		}

	case types.EventPeers:
		// Already delivered through the join ack
	}
}

func (c *Controller) handlePeerEvent(ev peerEvent) {
	entry, ok := c.conns[ev.peerID]
	if !ok || entry.gen != ev.gen {
		return
	}

	switch ev.kind {
	case peerSignal:
		out := types.SignalPayload{To: ev.peerID, Signal: ev.blob}
		if err := c.signaler.Send(types.EventSignal, out); err != nil {
			c.logger.Warn("failed to send signal", zap.String("peer", ev.peerID), zap.Error(err))
		}

	case peerTrack:
		if c.State() == StateWaitingForPeer {
			c.activate()
		}

	case peerClosed:
		delete(c.conns, ev.peerID)
		c.logger.Debug("peer closed", zap.String("peer", ev.peerID))
	}
}

// activate starts the countdown on the first remote stream
func (c *Controller) activate() {
	c.transition(StateActive)
	start := c.now().UTC()
	c.startAt = &start
	c.timer = time.NewTimer(c.session.Duration)

	payload := types.CallStartedPayload{
		RoomName:   c.session.RoomName,
		MeetingID:  c.session.MeetingID,
		ClassIndex: c.session.ClassIndex,
	}
	if err := c.signaler.Send(types.EventCallStarted, payload); err != nil {
		c.logger.Warn("failed to announce call start", zap.Error(err))
	}
	c.logger.Info("call active", zap.Duration("duration", c.session.Duration))
}

func (c *Controller) addPeer(id string, initiator bool) *peerEntry {
	if old, ok := c.conns[id]; ok {
		_ = old.peer.Close()
	}

	c.nextGen++
	gen := c.nextGen
	events := PeerEvents{
		Signal: func(blob json.RawMessage) {
			c.post(peerEvent{kind: peerSignal, peerID: id, gen: gen, blob: blob})
		},
		RemoteTrack: func() {
			c.post(peerEvent{kind: peerTrack, peerID: id, gen: gen})
		},
		Closed: func() {
			c.post(peerEvent{kind: peerClosed, peerID: id, gen: gen})
		},
	}

	peer, err := c.deps.Peers.NewPeer(id, initiator, c.local, events)
	if err != nil {
		delete(c.conns, id)
		c.logger.Warn("failed to create peer", zap.String("peer", id), zap.Error(err))
		return nil
	}

	entry := &peerEntry{peer: peer, gen: gen}
	c.conns[id] = entry
	c.logger.Debug("peer created", zap.String("peer", id), zap.Bool("initiator", initiator))
	return entry
}

func (c *Controller) removePeer(id string) {
	entry, ok := c.conns[id]
	if !ok {
		return
	}
	delete(c.conns, id)
	if err := entry.peer.Close(); err != nil {
		c.logger.Debug("peer close failed", zap.String("peer", id), zap.Error(err))
	}
}

func (c *Controller) post(ev peerEvent) {
	select {
	case c.inbox <- ev:
	case <-c.done:
	}
}

// completedElsewhere reports whether a completion error only means the slot
// was already closed as completed. A bare conflict from a Reporter that does
// not resolve it is treated the same way.
func completedElsewhere(err error) bool {
	if errors.Is(err, ErrAlreadyCompleted) {
		return true
	}
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusConflict
}

// finish reports the class and tears everything down. Teardown runs whatever
// the report outcome.
func (c *Controller) finish(ctx context.Context, reason EndReason) *Outcome {
	c.transition(StateEnding)

	end := c.now().UTC()
	start := end
	if c.startAt != nil {
		start = *c.startAt
	}
	out := &Outcome{
		Reason:      reason,
		StartAt:     start,
		EndAt:       end,
		DurationSec: int(end.Sub(start) / time.Second),
	}

	if c.deps.Reporter != nil && c.session.MeetingID != "" && c.session.ClassIndex != nil {
		rctx, cancel := context.WithTimeout(ctx, c.reportTimeout)
		slot, err := c.deps.Reporter.ReportCompletion(rctx, c.session.MeetingID, *c.session.ClassIndex,
			types.CompletionReport{StartAt: &start, EndAt: &end})
		cancel()

		switch {
		case err == nil:
			out.Reported = true
		case completedElsewhere(err):
			// FUNCTIONAL DISCOVERY: The other participant reported first; the
			// class is recorded, so this is not a failure
			out.Reported = true
			out.AlreadyCompleted = true
			c.logger.Debug("class already completed by peer", zap.Error(err))
		default:
			// FUNCTIONAL DISCOVERY: A failed report still closes the call; the
			// local summary falls back to the scheduled class length
			out.ReportErr = fmt.Errorf("%w: %v", ErrReportFailed, err)
			out.DurationSec = int(c.session.Duration / time.Second)
			c.logger.Warn("completion report failed", zap.Error(err))
		}
		if out.Reported && slot != nil && slot.DurationSec != nil {
			out.DurationSec = *slot.DurationSec
		}
	}

	c.teardown(&types.CallEndedPayload{
		RoomName:   c.session.RoomName,
		MeetingID:  c.session.MeetingID,
		ClassIndex: c.session.ClassIndex,
		StartAt:    &start,
		EndAt:      &end,
	})
	c.transition(StateEnded)
	c.logger.Info("call ended", zap.String("reason", string(reason)), zap.Int("duration_sec", out.DurationSec))
	return out
}

func (c *Controller) abortSetup(ctx context.Context, err error) (*Outcome, error) {
	if ctx.Err() != nil {
		return c.abort(ReasonCancelled, ctx.Err())
	}
	return c.abort(ReasonSetupFailure, err)
}

func (c *Controller) abort(reason EndReason, err error) (*Outcome, error) {
	c.teardown(nil)
	c.transition(StateEnded)
	c.logger.Info("call aborted", zap.String("reason", string(reason)), zap.Error(err))

	out := &Outcome{Reason: reason}
	if c.startAt != nil {
		out.StartAt = *c.startAt
		out.EndAt = c.now().UTC()
	}
	return out, err
}

// teardown stops the countdown, closes peers, releases media, announces the
// end when given a payload and closes signaling, in that order. Only the
// first invocation does anything.
func (c *Controller) teardown(ended *types.CallEndedPayload) {
	if c.tornDown {
		return
	}
	c.tornDown = true

	if c.timer != nil {
		c.timer.Stop()
	}
	for id := range c.conns {
		c.removePeer(id)
	}
	if c.local != nil {
		c.local.Release()
	}
	if c.signaler != nil {
		if ended != nil {
			if err := c.signaler.Send(types.EventCallEnded, ended); err != nil {
				c.logger.Warn("failed to announce call end", zap.Error(err))
			}
		}
		if err := c.signaler.Close(); err != nil {
			c.logger.Debug("signaling close failed", zap.Error(err))
		}
	}
}

func (c *Controller) transition(to State) {
	c.mu.Lock()
	from := c.state
	if !canTransition(from, to) {
		c.mu.Unlock()
		c.logger.Error("rejected state transition", zap.Stringer("from", from), zap.Stringer("to", to),
			zap.Error(ErrInvalidTransition))
		return
	}
	c.state = to
	observer := c.deps.OnState
	c.mu.Unlock()

	if observer != nil {
		observer(from, to)
	}
}
