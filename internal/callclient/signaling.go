package callclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"skillswap/pkg/types"
)

const (
	writeTimeout     = 10 * time.Second
	eventBufferSize  = 64
	handshakeTimeout = 10 * time.Second
)

// WSDialer connects to the relay endpoint with a bearer credential
type WSDialer struct {
	URL    string // ws:// or wss:// address of the relay endpoint
	Token  string
	Logger *zap.Logger
}

// Dial opens the socket and waits for the connected greeting
func (d *WSDialer) Dial(ctx context.Context) (Signaler, error) {
	target, err := url.Parse(d.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid relay url: %w", err)
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+d.Token)

	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	conn, resp, err := dialer.DialContext(ctx, target.String(), header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("relay handshake failed with status %d: %w", resp.StatusCode, err)
		}
		return nil, err
	}

	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &wsSignaler{
		conn:    conn,
		events:  make(chan *types.Envelope, eventBufferSize),
		pending: make(map[string]chan *types.Envelope),
		closed:  make(chan struct{}),
		logger:  logger.Named("signaling"),
	}

	var greeting types.Envelope
	_ = conn.SetReadDeadline(time.Now().Add(handshakeTimeout))
	if err := conn.ReadJSON(&greeting); err != nil || greeting.Type != types.EventConnected {
		_ = conn.Close()
		return nil, fmt.Errorf("relay did not greet the connection: %v", err)
	}
	_ = conn.SetReadDeadline(time.Time{})

	var hello types.ConnectedEvent
	if err := greeting.Decode(&hello); err == nil {
		s.socketID = hello.SocketID
	}

	go s.readLoop()
	return s, nil
}

type wsSignaler struct {
	conn     *websocket.Conn
	socketID string
	logger   *zap.Logger

	writeMu sync.Mutex // TECHNICAL: gorilla allows one concurrent writer

	mu      sync.Mutex
	nextID  int
	pending map[string]chan *types.Envelope

	events    chan *types.Envelope
	closed    chan struct{}
	closeOnce sync.Once
}

// SocketID is the connection id the relay assigned
func (s *wsSignaler) SocketID() string {
	return s.socketID
}

// Join sends join-room and waits for its ack
func (s *wsSignaler) Join(ctx context.Context, roomName string) ([]string, error) {
	env, err := types.NewEnvelope(types.EventJoinRoom, types.JoinRoomPayload{RoomName: roomName})
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.nextID++
	env.ID = strconv.Itoa(s.nextID)
	reply := make(chan *types.Envelope, 1)
	s.pending[env.ID] = reply
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.pending, env.ID)
		s.mu.Unlock()
	}()

	if err := s.write(env); err != nil {
		return nil, err
	}

	select {
	case ack := <-reply:
		var body types.JoinAck
		if err := ack.Decode(&body); err != nil {
			return nil, fmt.Errorf("%w: malformed ack", ErrJoinRejected)
		}
		if body.Error != "" {
			return nil, fmt.Errorf("%w: %s", ErrJoinRejected, body.Error)
		}
		return body.Peers, nil
	case <-s.closed:
		return nil, ErrSignalingFailed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Send emits one event without waiting for an ack
func (s *wsSignaler) Send(eventType string, payload interface{}) error {
	env, err := types.NewEnvelope(eventType, payload)
	if err != nil {
		return err
	}
	return s.write(env)
}

func (s *wsSignaler) write(env *types.Envelope) error {
	select {
	case <-s.closed:
		return ErrSignalingFailed
	default:
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := s.conn.WriteJSON(env); err != nil {
		return fmt.Errorf("%w: %v", ErrSignalingFailed, err)
	}
	return nil
}

// Events delivers everything except acks. Closed when the socket goes away.
func (s *wsSignaler) Events() <-chan *types.Envelope {
	return s.events
}

func (s *wsSignaler) readLoop() {
	defer close(s.events)
	defer s.shutdown()

	for {
		var env types.Envelope
		if err := s.conn.ReadJSON(&env); err != nil {
			if !errors.Is(err, websocket.ErrCloseSent) && !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				select {
				case <-s.closed:
				default:
					s.logger.Warn("relay read failed", zap.Error(err))
				}
			}
			return
		}

		if env.Type == types.EventAck {
			s.mu.Lock()
			reply, ok := s.pending[env.ID]
			s.mu.Unlock()
			if ok {
				reply <- &env
			}
			continue
		}

		select {
		case s.events <- &env:
		case <-s.closed:
			return
		}
	}
}

func (s *wsSignaler) shutdown() {
	s.closeOnce.Do(func() { close(s.closed) })
}

// Close sends a close frame and drops the socket
func (s *wsSignaler) Close() error {
	s.shutdown()

	s.writeMu.Lock()
	_ = s.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	s.writeMu.Unlock()

	return s.conn.Close()
}
