package websocket

import (
	"sync"

	"skillswap/pkg/interfaces"
)

// Registry tracks live signaling sockets by transient connection id
// ARCHITECTURAL DISCOVERY: Pure connection management without relay logic
// maintains clean separation between connection tracking and room membership
type Registry struct {
	mu          sync.RWMutex                      // TECHNICAL DISCOVERY: RWMutex optimizes for read-heavy lookup patterns
	connections map[string]*Connection            // connID -> Connection for O(1) relay lookup
	byUser      map[string]map[string]*Connection // userID -> connID -> Connection
}

// NewRegistry creates a new connection registry
func NewRegistry() *Registry {
	return &Registry{
		connections: make(map[string]*Connection),
		byUser:      make(map[string]map[string]*Connection),
	}
}

// RegisterConnection adds an authenticated connection.
// A user may hold several sockets (two tabs, reconnect before the old socket
// times out); each is addressed by its own connection id.
func (r *Registry) RegisterConnection(conn *Connection) error {
	if conn == nil {
		return ErrNilConnection
	}
	if !conn.IsAuthenticated() {
		return ErrConnectionNotAuthenticated
	}

	connID := conn.GetConnectionID()
	userID := conn.GetUserID()

	r.mu.Lock()
	defer r.mu.Unlock()

	r.connections[connID] = conn
	if r.byUser[userID] == nil {
		r.byUser[userID] = make(map[string]*Connection)
	}
	r.byUser[userID][connID] = conn
	return nil
}

// UnregisterConnection removes a connection. Idempotent.
// RACE CONDITION FIX: Only removes the entry if it is this exact instance
func (r *Registry) UnregisterConnection(conn *Connection) {
	if conn == nil {
		return
	}

	connID := conn.GetConnectionID()
	r.mu.Lock()
	defer r.mu.Unlock()

	registered, exists := r.connections[connID]
	if !exists || registered != conn {
		return
	}
	delete(r.connections, connID)

	userID := conn.GetUserID()
	if conns, ok := r.byUser[userID]; ok {
		delete(conns, connID)
		// TECHNICAL DISCOVERY: Clean up empty maps to prevent memory leaks
		if len(conns) == 0 {
			delete(r.byUser, userID)
		}
	}
}

// GetConnection returns the live connection for connID
func (r *Registry) GetConnection(connID string) (interfaces.Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conn, exists := r.connections[connID]
	if !exists {
		return nil, false
	}
	return conn, true
}

// GetUserConnections returns every socket a user currently holds
func (r *Registry) GetUserConnections(userID string) []*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conns := make([]*Connection, 0, len(r.byUser[userID]))
	for _, conn := range r.byUser[userID] {
		conns = append(conns, conn)
	}
	return conns
}

// CloseAll closes every registered socket, used on shutdown
func (r *Registry) CloseAll() {
	r.mu.RLock()
	conns := make([]*Connection, 0, len(r.connections))
	for _, conn := range r.connections {
		conns = append(conns, conn)
	}
	r.mu.RUnlock()

	for _, conn := range conns {
		_ = conn.Close()
	}
}

// GetStats returns registry statistics for monitoring and debugging
func (r *Registry) GetStats() map[string]int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return map[string]int{
		"total_connections": len(r.connections),
		"unique_users":      len(r.byUser),
	}
}
