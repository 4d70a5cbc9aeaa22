package interfaces

// Connection represents a signaling socket as seen by the relay
// ARCHITECTURAL DISCOVERY: Pure abstraction without implementation details
// keeps the hub and router testable without a real WebSocket
type Connection interface {
	// WriteJSON sends a JSON message to the client (thread-safe)
	// FUNCTIONAL DISCOVERY: Implementations queue writes on a single writer
	// so concurrent broadcasts never interleave frames
	WriteJSON(v interface{}) error

	// Close closes the connection and cleans up resources
	Close() error

	// GetConnectionID returns the transient id peers use to address this socket
	GetConnectionID() string

	// GetUserID returns the verified subject attached at handshake
	GetUserID() string

	// IsAuthenticated returns true once a verified subject is attached
	IsAuthenticated() bool
}
