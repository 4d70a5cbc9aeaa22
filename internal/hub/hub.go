package hub

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"skillswap/pkg/interfaces"
	"skillswap/pkg/types"
)

// DefaultBufferSize handles bursts of candidates during call setup
const DefaultBufferSize = 1000

type eventKind int

const (
	eventMessage eventKind = iota
	eventDisconnect
)

// event is one relay occurrence in arrival order
type event struct {
	kind     eventKind
	conn     interfaces.Connection
	envelope *types.Envelope
}

// Hub serializes relay events from every socket onto one goroutine
// ARCHITECTURAL DISCOVERY: Messages and disconnects share a single channel so a
// socket's frames are always routed before its own departure
type Hub struct {
	events   chan event
	shutdown chan struct{}
	done     chan struct{}

	router interfaces.MessageRouter
	logger *zap.Logger

	// TECHNICAL DISCOVERY: RWMutex allows concurrent reads of running state
	running bool
	mu      sync.RWMutex
}

// NewHub creates a new hub around a router
func NewHub(router interfaces.MessageRouter, logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		events:   make(chan event, DefaultBufferSize),
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
		router:   router,
		logger:   logger.Named("hub"),
	}
}

// Start begins hub processing
func (h *Hub) Start(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.running {
		return ErrHubAlreadyRunning
	}
	select {
	case <-h.shutdown:
		// a stopped hub cannot be restarted
		return ErrHubNotRunning
	default:
	}
	h.running = true

	h.logger.Info("starting relay hub")
	go h.run(ctx)
	return nil
}

// Stop shuts the hub down and waits for the loop to exit.
// Events still queued are dropped.
func (h *Hub) Stop() error {
	h.mu.Lock()
	if !h.running {
		h.mu.Unlock()
		return ErrHubNotRunning
	}
	h.running = false
	close(h.shutdown)
	h.mu.Unlock()

	<-h.done
	h.logger.Info("relay hub stopped")
	return nil
}

// Submit queues an inbound envelope without blocking the read pump
func (h *Hub) Submit(conn interfaces.Connection, envelope *types.Envelope) error {
	if conn == nil {
		return ErrNilConnection
	}
	if envelope == nil {
		return ErrNilEnvelope
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	if !h.running {
		return ErrHubNotRunning
	}

	// TECHNICAL DISCOVERY: Non-blocking send with error handling prevents hub lockup
	select {
	case h.events <- event{kind: eventMessage, conn: conn, envelope: envelope}:
		return nil
	default:
		return ErrMessageChannelFull
	}
}

// Disconnect queues the departure of a socket. It blocks until queued because
// dropping it would leave a ghost member in its rooms.
func (h *Hub) Disconnect(conn interfaces.Connection) error {
	if conn == nil {
		return ErrNilConnection
	}

	h.mu.RLock()
	if !h.running {
		h.mu.RUnlock()
		return ErrHubNotRunning
	}
	h.mu.RUnlock()

	select {
	case h.events <- event{kind: eventDisconnect, conn: conn}:
		return nil
	case <-h.shutdown:
		return ErrHubNotRunning
	}
}

// run is the main hub processing loop
func (h *Hub) run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case ev := <-h.events:
			h.handle(ctx, ev)

		case <-h.shutdown:
			return

		case <-ctx.Done():
			h.logger.Info("relay hub context cancelled")
			h.mu.Lock()
			if h.running {
				h.running = false
				close(h.shutdown)
			}
			h.mu.Unlock()
			return
		}
	}
}

func (h *Hub) handle(ctx context.Context, ev event) {
	switch ev.kind {
	case eventDisconnect:
		h.router.HandleDisconnect(ctx, ev.conn)
		h.logger.Debug("connection departed", zap.String("socket", ev.conn.GetConnectionID()))

	case eventMessage:
		// FUNCTIONAL DISCOVERY: Router errors are reported to the sender, never fatal to the loop
		if err := h.router.RouteMessage(ctx, ev.conn, ev.envelope); err != nil {
			h.logger.Debug("relay event rejected",
				zap.String("type", ev.envelope.Type),
				zap.String("socket", ev.conn.GetConnectionID()),
				zap.Error(err))
			h.sendErrorToSender(ev.conn, ev.envelope, err)
		}
	}
}

// sendErrorToSender answers a failed request with an error ack when the
// request carried an id, and with an error event otherwise
func (h *Hub) sendErrorToSender(sender interfaces.Connection, envelope *types.Envelope, routingErr error) {
	var (
		reply *types.Envelope
		err   error
	)
	if envelope.ID != "" {
		reply, err = types.NewEnvelope(types.EventAck, types.JoinAck{Error: routingErr.Error()})
		if err == nil {
			reply.ID = envelope.ID
		}
	} else {
		reply, err = types.NewEnvelope(types.EventError, types.ErrorEvent{
			Event:   envelope.Type,
			Message: routingErr.Error(),
		})
	}
	if err != nil {
		return
	}

	if err := sender.WriteJSON(reply); err != nil {
		h.logger.Debug("failed to report relay error",
			zap.String("socket", sender.GetConnectionID()),
			zap.Error(err))
	}
}
