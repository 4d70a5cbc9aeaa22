package websocket

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"skillswap/pkg/interfaces"
	"skillswap/pkg/types"
)

// maxFrameBytes bounds one inbound frame: a max-size signal plus envelope overhead
const maxFrameBytes = types.MaxSignalBytes + 4096

// WebSocket upgrader with production-ready settings
var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// FUNCTIONAL DISCOVERY: Browsers connect from the SPA origin; the bearer
		// credential, not the origin, gates access
		return true
	},
	HandshakeTimeout: 10 * time.Second,
}

// Authenticator verifies the bearer credential of an upgrade request and returns its subject
type Authenticator interface {
	Authenticate(r *http.Request) (string, error)
}

// EventSink receives relay events in arrival order
type EventSink interface {
	Submit(conn interfaces.Connection, envelope *types.Envelope) error
	Disconnect(conn interfaces.Connection) error
}

// Handler upgrades authenticated requests and pumps frames into the sink
// ARCHITECTURAL DISCOVERY: Clean separation of WebSocket handling from relay logic
type Handler struct {
	registry *Registry
	auth     Authenticator
	sink     EventSink
	logger   *zap.Logger
}

// NewHandler creates a new WebSocket handler with dependency injection
func NewHandler(registry *Registry, auth Authenticator, sink EventSink, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		registry: registry,
		auth:     auth,
		sink:     sink,
		logger:   logger.Named("websocket"),
	}
}

// HandleWebSocket authenticates, upgrades, registers and starts the read pump
// ARCHITECTURAL DISCOVERY: Multi-stage validation (credential -> WebSocket -> registration)
// rejects bad credentials with a plain HTTP status before any socket exists
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	userID, err := h.auth.Authenticate(r)
	if err != nil {
		h.logger.Debug("websocket authentication failed", zap.Error(err))
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	conn.SetReadLimit(maxFrameBytes)

	wsConn := NewConnection(conn, uuid.NewString())
	if err := wsConn.SetCredentials(userID); err != nil {
		h.logger.Error("failed to set credentials", zap.Error(err))
		_ = wsConn.Close()
		return
	}

	if err := h.registry.RegisterConnection(wsConn); err != nil {
		h.logger.Error("failed to register connection", zap.Error(err))
		_ = wsConn.Close()
		return
	}

	if err := wsConn.SendEvent(types.EventConnected, types.ConnectedEvent{
		SocketID: wsConn.GetConnectionID(),
		UserID:   userID,
	}); err != nil {
		h.logger.Warn("failed to send connected event", zap.Error(err))
	}

	h.logger.Info("socket connected",
		zap.String("socket", wsConn.GetConnectionID()),
		zap.String("user", userID))

	go h.handleConnection(wsConn)
}

// handleConnection runs the read pump and heartbeat for one socket
// ARCHITECTURAL DISCOVERY: One goroutine per connection reads; the hub
// goroutine processes; the connection's writer goroutine sends
func (h *Handler) handleConnection(conn *Connection) {
	defer func() {
		// FUNCTIONAL DISCOVERY: Deferred cleanup ensures the disconnect event
		// reaches the relay on every exit path
		h.registry.UnregisterConnection(conn)
		if err := h.sink.Disconnect(conn); err != nil {
			h.logger.Warn("failed to queue disconnect", zap.String("socket", conn.GetConnectionID()), zap.Error(err))
		}
		_ = conn.Close()
		h.logger.Info("socket disconnected", zap.String("socket", conn.GetConnectionID()))
	}()

	if err := conn.armHeartbeat(); err != nil {
		return
	}

	for {
		envelope, err := conn.ReadEnvelope()
		if errors.Is(err, ErrInvalidJSON) {
			h.reject(conn, "", err)
			continue
		}
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				h.logger.Debug("websocket read error", zap.Error(err))
			}
			return
		}

		if err := h.sink.Submit(conn, envelope); err != nil {
			h.reject(conn, envelope.Type, err)
		}
	}
}

// reject reports a frame the relay could not accept
func (h *Handler) reject(conn *Connection, event string, cause error) {
	msg := cause.Error()
	if errors.Is(cause, ErrInvalidJSON) {
		msg = "malformed frame"
	}
	if err := conn.SendEvent(types.EventError, types.ErrorEvent{Event: event, Message: msg}); err != nil {
		h.logger.Debug("failed to send error event", zap.Error(err))
	}
}
