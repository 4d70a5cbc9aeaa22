package websocket

import (
	"fmt"
	"sync"
	"testing"
)

func newAuthenticatedConnection(connID, userID string) *Connection {
	conn := NewConnection(nil, connID)
	_ = conn.SetCredentials(userID)
	return conn
}

func TestRegistry_NewRegistryInitialization(t *testing.T) {
	registry := NewRegistry()

	stats := registry.GetStats()
	if stats["total_connections"] != 0 || stats["unique_users"] != 0 {
		t.Errorf("Expected empty registry, got %v", stats)
	}
}

func TestRegistry_RegisterConnectionValidation(t *testing.T) {
	registry := NewRegistry()

	if err := registry.RegisterConnection(nil); err != ErrNilConnection {
		t.Errorf("Expected ErrNilConnection, got %v", err)
	}

	unauthenticated := NewConnection(nil, "conn-1")
	if err := registry.RegisterConnection(unauthenticated); err != ErrConnectionNotAuthenticated {
		t.Errorf("Expected ErrConnectionNotAuthenticated, got %v", err)
	}
}

func TestRegistry_RegisterAndLookup(t *testing.T) {
	registry := NewRegistry()
	conn := newAuthenticatedConnection("conn-1", "alice")

	if err := registry.RegisterConnection(conn); err != nil {
		t.Fatalf("RegisterConnection failed: %v", err)
	}

	got, ok := registry.GetConnection("conn-1")
	if !ok {
		t.Fatal("Expected connection to be found")
	}
	if got.GetUserID() != "alice" {
		t.Errorf("Expected user alice, got %s", got.GetUserID())
	}

	if _, ok := registry.GetConnection("missing"); ok {
		t.Error("Unknown connection id should not be found")
	}
}

func TestRegistry_MultipleSocketsPerUser(t *testing.T) {
	registry := NewRegistry()
	first := newAuthenticatedConnection("conn-1", "alice")
	second := newAuthenticatedConnection("conn-2", "alice")

	for _, c := range []*Connection{first, second} {
		if err := registry.RegisterConnection(c); err != nil {
			t.Fatalf("RegisterConnection failed: %v", err)
		}
	}

	if got := len(registry.GetUserConnections("alice")); got != 2 {
		t.Errorf("Expected 2 sockets for alice, got %d", got)
	}
	stats := registry.GetStats()
	if stats["total_connections"] != 2 || stats["unique_users"] != 1 {
		t.Errorf("Unexpected stats %v", stats)
	}

	registry.UnregisterConnection(first)
	if _, ok := registry.GetConnection("conn-2"); !ok {
		t.Error("Second socket must survive removal of the first")
	}
}

func TestRegistry_UnregisterIdempotentAndIdentityChecked(t *testing.T) {
	registry := NewRegistry()
	conn := newAuthenticatedConnection("conn-1", "alice")
	impostor := newAuthenticatedConnection("conn-1", "alice")

	if err := registry.RegisterConnection(conn); err != nil {
		t.Fatalf("RegisterConnection failed: %v", err)
	}

	registry.UnregisterConnection(impostor)
	if _, ok := registry.GetConnection("conn-1"); !ok {
		t.Error("A different instance with the same id must not unregister the live one")
	}

	registry.UnregisterConnection(conn)
	registry.UnregisterConnection(conn)
	registry.UnregisterConnection(nil)

	stats := registry.GetStats()
	if stats["total_connections"] != 0 || stats["unique_users"] != 0 {
		t.Errorf("Expected empty registry, got %v", stats)
	}
}

func TestRegistry_CloseAll(t *testing.T) {
	registry := NewRegistry()
	conns := []*Connection{
		newAuthenticatedConnection("conn-1", "alice"),
		newAuthenticatedConnection("conn-2", "bob"),
	}
	for _, c := range conns {
		_ = registry.RegisterConnection(c)
	}

	registry.CloseAll()

	for _, c := range conns {
		select {
		case <-c.Done():
		default:
			t.Errorf("connection %s not closed", c.GetConnectionID())
		}
	}
}

// Technical Validation Tests (Race Detection)
func TestRegistry_ConcurrentOperations(t *testing.T) {
	registry := NewRegistry()
	const workers = 20

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			conn := newAuthenticatedConnection(fmt.Sprintf("conn-%d", id), fmt.Sprintf("user-%d", id%5))
			if err := registry.RegisterConnection(conn); err != nil {
				t.Errorf("RegisterConnection failed: %v", err)
				return
			}
			registry.GetConnection(conn.GetConnectionID())
			registry.GetUserConnections(conn.GetUserID())
			registry.GetStats()
			if id%2 == 0 {
				registry.UnregisterConnection(conn)
			}
		}(i)
	}
	wg.Wait()

	if got := registry.GetStats()["total_connections"]; got != workers/2 {
		t.Errorf("Expected %d connections, got %d", workers/2, got)
	}
}
