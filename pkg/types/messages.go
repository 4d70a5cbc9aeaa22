package types

import (
	"encoding/json"
	"time"
)

// Relay event names exchanged over the signaling socket
const (
	EventConnected   = "connected"
	EventJoinRoom    = "join-room"
	EventAck         = "ack"
	EventPeers       = "peers"
	EventPeerJoined  = "peer-joined"
	EventPeerLeft    = "peer-left"
	EventSignal      = "signal"
	EventCallStarted = "call-started"
	EventCallEnded   = "call-ended"
	EventError       = "error"
)

// Envelope is the frame carried by every socket message.
// ID is only set on requests that expect an ack and is echoed back in the ack.
type Envelope struct {
	Type string          `json:"type"`
	ID   string          `json:"id,omitempty"`
	Data json.RawMessage `json:"data,omitempty"`
}

// NewEnvelope marshals data into an envelope of the given type
func NewEnvelope(eventType string, data interface{}) (*Envelope, error) {
	env := &Envelope{Type: eventType}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return nil, ErrInvalidPayload
		}
		env.Data = raw
	}
	return env, nil
}

// Decode unmarshals the envelope data into v
func (e *Envelope) Decode(v interface{}) error {
	if len(e.Data) == 0 {
		return ErrInvalidPayload
	}
	if err := json.Unmarshal(e.Data, v); err != nil {
		return ErrInvalidPayload
	}
	return nil
}

// ConnectedEvent tells a socket its transient connection id
type ConnectedEvent struct {
	SocketID string `json:"socketId"`
	UserID   string `json:"userId"`
}

// JoinRoomPayload is sent by a client to enter a room
type JoinRoomPayload struct {
	RoomName string `json:"roomName"`
}

// JoinAck acknowledges join-room with the other members already present
type JoinAck struct {
	OK    bool     `json:"ok,omitempty"`
	Peers []string `json:"peers,omitempty"`
	Error string   `json:"error,omitempty"`
}

// PeersEvent lists the members present when a socket joined
type PeersEvent struct {
	Peers []string `json:"peers"`
}

// PeerEvent announces a member entering or leaving a room
type PeerEvent struct {
	SocketID string `json:"socketId"`
	UserID   string `json:"userId,omitempty"`
}

// SignalPayload carries an opaque negotiation blob. Clients set To; the relay sets From.
type SignalPayload struct {
	To     string          `json:"to,omitempty"`
	From   string          `json:"from,omitempty"`
	Signal json.RawMessage `json:"signal"`
}

// CallStartedPayload is emitted by a client once its first remote stream arrives
type CallStartedPayload struct {
	RoomName   string `json:"roomName"`
	MeetingID  string `json:"meetingId,omitempty"`
	ClassIndex *int   `json:"classIndex,omitempty"`
}

// CallStartedEvent is broadcast once per room occupancy
type CallStartedEvent struct {
	StartAt time.Time `json:"startAt"`
}

// CallEndedPayload is emitted by a client when its call ends. The relay
// rebroadcasts the original bytes, so extra fields survive.
type CallEndedPayload struct {
	RoomName   string     `json:"roomName"`
	MeetingID  string     `json:"meetingId,omitempty"`
	ClassIndex *int       `json:"classIndex,omitempty"`
	StartAt    *time.Time `json:"startAt,omitempty"`
	EndAt      *time.Time `json:"endAt,omitempty"`
}

// ErrorEvent reports a relay failure to the sender
type ErrorEvent struct {
	Event   string `json:"event"`
	Message string `json:"message"`
}
