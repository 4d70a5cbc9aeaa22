package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"skillswap/pkg/types"
)

// Socket timing and buffering
const (
	sendQueueSize = 256
	writeWait     = 5 * time.Second
	readTimeout   = 60 * time.Second
	pingInterval  = 30 * time.Second
)

// Connection is one relay socket
// ARCHITECTURAL DISCOVERY: The hub never blocks on a peer. Frames go to a
// bounded queue drained by one writer goroutine; a peer that lets the queue
// fill is dropped so it cannot stall signaling for the rest of its room.
type Connection struct {
	conn   *websocket.Conn
	sendCh chan []byte // FUNCTIONAL DISCOVERY: sized for candidate bursts during negotiation
	connID string

	mu            sync.RWMutex
	userID        string
	authenticated bool

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
}

// NewConnection wraps conn under the transient id peers use to address it.
// A nil conn gives a detached connection, useful for registry bookkeeping.
func NewConnection(conn *websocket.Conn, connID string) *Connection {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Connection{
		conn:   conn,
		sendCh: make(chan []byte, sendQueueSize),
		connID: connID,
		ctx:    ctx,
		cancel: cancel,
	}

	if conn != nil {
		go c.writeLoop()
	}
	return c
}

// writeLoop is the only goroutine writing data frames; it also sends pings
func (c *Connection) writeLoop() {
	ping := time.NewTicker(pingInterval)
	defer ping.Stop()

	for {
		select {
		case frame := <-c.sendCh:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				_ = c.Close()
				return
			}
		case <-ping.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				_ = c.Close()
				return
			}
		case <-c.ctx.Done():
			return
		}
	}
}

// WriteJSON queues v without blocking. A full queue closes the connection.
func (c *Connection) WriteJSON(v interface{}) error {
	select {
	case <-c.ctx.Done():
		return ErrConnectionClosed
	default:
	}

	frame, err := json.Marshal(v)
	if err != nil {
		return ErrInvalidJSON
	}

	select {
	case c.sendCh <- frame:
		return nil
	case <-c.ctx.Done():
		return ErrConnectionClosed
	default:
		_ = c.Close()
		return ErrSlowConsumer
	}
}

// SendEvent wraps payload in an envelope and queues it
func (c *Connection) SendEvent(eventType string, payload interface{}) error {
	env, err := types.NewEnvelope(eventType, payload)
	if err != nil {
		return ErrInvalidJSON
	}
	return c.WriteJSON(env)
}

// armHeartbeat makes every pong extend the read deadline
func (c *Connection) armHeartbeat() error {
	if err := c.conn.SetReadDeadline(time.Now().Add(readTimeout)); err != nil {
		return err
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(readTimeout))
	})
	return nil
}

// ReadEnvelope blocks for the next text frame. Binary frames are skipped.
// A frame that is not an envelope yields ErrInvalidJSON and the socket stays
// usable; any other error means the socket is gone.
func (c *Connection) ReadEnvelope() (*types.Envelope, error) {
	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			return nil, err
		}
		if messageType != websocket.TextMessage {
			continue
		}

		var env types.Envelope
		if err := json.Unmarshal(data, &env); err != nil || env.Type == "" {
			return nil, ErrInvalidJSON
		}
		return &env, nil
	}
}

// Close stops the writer and closes the socket. Safe to call repeatedly.
func (c *Connection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.cancel()
		if c.conn != nil {
			err = c.conn.Close()
		}
	})
	return err
}

// Done is closed once the connection is closed
func (c *Connection) Done() <-chan struct{} {
	return c.ctx.Done()
}

// SetCredentials attaches the verified subject
func (c *Connection) SetCredentials(userID string) error {
	if userID == "" {
		return ErrMissingCredential
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.userID = userID
	c.authenticated = true
	return nil
}

func (c *Connection) IsAuthenticated() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.authenticated
}

func (c *Connection) GetUserID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.userID
}

// GetConnectionID is immutable after construction
func (c *Connection) GetConnectionID() string {
	return c.connID
}
