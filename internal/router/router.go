package router

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"skillswap/internal/rooms"
	"skillswap/pkg/interfaces"
	"skillswap/pkg/types"
)

// DefaultAuthorizeTimeout bounds the participant lookup done on join
const DefaultAuthorizeTimeout = 2 * time.Second

// ConnectionLookup resolves transient connection ids to live sockets
type ConnectionLookup interface {
	GetConnection(connID string) (interfaces.Connection, bool)
}

// Router implements the MessageRouter interface
// ARCHITECTURAL DISCOVERY: Pure relay logic without connection handling;
// room membership lives in rooms.Registry, sockets in the connection registry
type Router struct {
	connections ConnectionLookup
	rooms       *rooms.Registry
	authorizer  interfaces.RoomAuthorizer // nil disables participant checks at join
	rateLimiter *RateLimiter
	logger      *zap.Logger
	now         func() time.Time

	authorizeTimeout time.Duration
}

// NewRouter creates a new relay router
func NewRouter(connections ConnectionLookup, roomRegistry *rooms.Registry, authorizer interfaces.RoomAuthorizer, rateLimit int, logger *zap.Logger) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{
		connections: connections,
		rooms:       roomRegistry,
		authorizer:  authorizer,
		rateLimiter: NewRateLimiter(rateLimit),
		logger:      logger.Named("router"),
		now:         time.Now,

		authorizeTimeout: DefaultAuthorizeTimeout,
	}
}

// RouteMessage handles one inbound envelope from sender
func (r *Router) RouteMessage(ctx context.Context, sender interfaces.Connection, envelope *types.Envelope) error {
	if !sender.IsAuthenticated() {
		return ErrSenderNotAuthenticated
	}

	// TECHNICAL DISCOVERY: Rate limiting applied per socket before any room work
	if !r.rateLimiter.Allow(sender.GetConnectionID()) {
		return ErrRateLimitExceeded
	}

	switch envelope.Type {
	case types.EventJoinRoom:
		return r.handleJoin(ctx, sender, envelope)
	case types.EventSignal:
		return r.handleSignal(sender, envelope)
	case types.EventCallStarted:
		return r.handleCallStarted(sender, envelope)
	case types.EventCallEnded:
		return r.handleCallEnded(sender, envelope)
	default:
		return ErrInvalidMessageType
	}
}

// HandleDisconnect removes the socket from every room and tells the remaining members
func (r *Router) HandleDisconnect(ctx context.Context, conn interfaces.Connection) {
	connID := conn.GetConnectionID()
	r.rateLimiter.Forget(connID)

	for _, departure := range r.rooms.Leave(connID) {
		r.deliver(departure.Remaining, types.EventPeerLeft, types.PeerEvent{SocketID: connID})
		r.logger.Debug("peer left",
			zap.String("room", departure.RoomID),
			zap.String("socket", connID),
			zap.Int("remaining", len(departure.Remaining)))
	}
}

func (r *Router) handleJoin(ctx context.Context, sender interfaces.Connection, envelope *types.Envelope) error {
	var payload types.JoinRoomPayload
	if err := envelope.Decode(&payload); err != nil {
		return err
	}
	if payload.RoomName == "" {
		return ErrMissingRoomName
	}
	if !types.IsValidRoomName(payload.RoomName) {
		return types.ErrInvalidRoomName
	}

	if r.authorizer != nil {
		// TECHNICAL DISCOVERY: Routing runs on the hub goroutine; a slow
		// participant lookup stalls relay for every room until it returns
		authCtx, cancel := context.WithTimeout(ctx, r.authorizeTimeout)
		err := r.authorizer.AuthorizeRoom(authCtx, sender.GetUserID(), payload.RoomName)
		cancel()
		if err != nil {
			r.logger.Info("join denied",
				zap.String("room", payload.RoomName),
				zap.String("user", sender.GetUserID()),
				zap.Error(err))
			return fmt.Errorf("%w: %w", ErrRoomAccessDenied, err)
		}
	}

	connID := sender.GetConnectionID()
	peers, err := r.rooms.Join(payload.RoomName, connID)
	if err != nil {
		return err
	}

	r.deliver([]string{connID}, types.EventPeers, types.PeersEvent{Peers: peers})
	r.deliver(peers, types.EventPeerJoined, types.PeerEvent{SocketID: connID, UserID: sender.GetUserID()})
	r.ack(sender, envelope.ID, types.JoinAck{OK: true, Peers: peers})

	r.logger.Debug("peer joined",
		zap.String("room", payload.RoomName),
		zap.String("socket", connID),
		zap.Int("peers", len(peers)))
	return nil
}

// handleSignal forwards the opaque blob to exactly one target, stamped with the sender
func (r *Router) handleSignal(sender interfaces.Connection, envelope *types.Envelope) error {
	var payload types.SignalPayload
	if err := envelope.Decode(&payload); err != nil {
		return err
	}
	if err := payload.Validate(); err != nil {
		return err
	}

	target, ok := r.connections.GetConnection(payload.To)
	if !ok {
		return ErrTargetNotConnected
	}
	if !r.shareRoom(sender.GetConnectionID(), payload.To) {
		return ErrTargetNotInRoom
	}

	out, err := types.NewEnvelope(types.EventSignal, types.SignalPayload{
		From:   sender.GetConnectionID(),
		Signal: payload.Signal,
	})
	if err != nil {
		return err
	}
	return target.WriteJSON(out)
}

func (r *Router) handleCallStarted(sender interfaces.Connection, envelope *types.Envelope) error {
	var payload types.CallStartedPayload
	if err := envelope.Decode(&payload); err != nil {
		return err
	}
	if payload.RoomName == "" {
		return ErrMissingRoomName
	}

	hint := rooms.Hint{MeetingID: payload.MeetingID, ClassIndex: payload.ClassIndex}
	startAt, first, err := r.rooms.MarkCallStarted(payload.RoomName, sender.GetConnectionID(), hint, r.now().UTC())
	if err != nil {
		return err
	}
	if !first {
		return nil
	}

	r.deliver(r.rooms.Members(payload.RoomName), types.EventCallStarted, types.CallStartedEvent{StartAt: startAt})
	r.logger.Info("call started", zap.String("room", payload.RoomName), zap.Time("start_at", startAt))
	return nil
}

// handleCallEnded schedules cleanup and rebroadcasts the client's payload unchanged
func (r *Router) handleCallEnded(sender interfaces.Connection, envelope *types.Envelope) error {
	var payload types.CallEndedPayload
	if err := envelope.Decode(&payload); err != nil {
		return err
	}
	if payload.RoomName == "" {
		return ErrMissingRoomName
	}

	members, err := r.rooms.MarkCallEnded(payload.RoomName, sender.GetConnectionID())
	if err != nil {
		return err
	}

	out := &types.Envelope{Type: types.EventCallEnded, Data: envelope.Data}
	for _, connID := range members {
		r.write(connID, out)
	}
	r.logger.Info("call ended", zap.String("room", payload.RoomName), zap.String("socket", sender.GetConnectionID()))
	return nil
}

func (r *Router) shareRoom(a, b string) bool {
	for _, roomID := range r.rooms.RoomsOf(a) {
		for _, member := range r.rooms.Members(roomID) {
			if member == b {
				return true
			}
		}
	}
	return false
}

// ack answers a request that carried an id
func (r *Router) ack(sender interfaces.Connection, id string, data interface{}) {
	if id == "" {
		return
	}
	env, err := types.NewEnvelope(types.EventAck, data)
	if err != nil {
		return
	}
	env.ID = id
	if err := sender.WriteJSON(env); err != nil {
		r.logger.Debug("failed to send ack", zap.String("socket", sender.GetConnectionID()), zap.Error(err))
	}
}

// deliver sends one event to each connection id.
// FUNCTIONAL DISCOVERY: Continue delivery to other recipients even if one fails
func (r *Router) deliver(connIDs []string, eventType string, data interface{}) {
	if len(connIDs) == 0 {
		return
	}
	env, err := types.NewEnvelope(eventType, data)
	if err != nil {
		r.logger.Error("failed to encode event", zap.String("type", eventType), zap.Error(err))
		return
	}
	for _, connID := range connIDs {
		r.write(connID, env)
	}
}

func (r *Router) write(connID string, env *types.Envelope) {
	conn, ok := r.connections.GetConnection(connID)
	if !ok {
		return
	}
	if err := conn.WriteJSON(env); err != nil {
		r.logger.Debug("failed to deliver event",
			zap.String("type", env.Type),
			zap.String("socket", connID),
			zap.Error(err))
	}
}

// GetStats exposes relay counters for the health endpoint
func (r *Router) GetStats() map[string]int {
	stats := r.rooms.GetStats()
	stats["rate_limited_clients"] = r.rateLimiter.Size()
	return stats
}

// CleanupRateLimits drops idle rate limiter entries
func (r *Router) CleanupRateLimits() {
	r.rateLimiter.Cleanup()
}
