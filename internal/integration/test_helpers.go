// Package integration drives the full application over real sockets.
package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"skillswap/internal/api"
	"skillswap/internal/app"
	"skillswap/internal/auth"
	"skillswap/internal/config"
	"skillswap/pkg/types"
)

const testSecret = "integration-secret"

// stack is a running application bound to a loopback port
type stack struct {
	app      *app.Application
	baseURL  string
	wsURL    string
	verifier *auth.Verifier
}

// startStack boots the application against a temporary SQLite file.
// mutate, when set, adjusts the configuration before construction.
func startStack(t *testing.T, mutate func(*config.Config)) *stack {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := config.DefaultConfig()
	cfg.Database.Path = filepath.Join(t.TempDir(), "integration.db")
	cfg.HTTP.Host = "127.0.0.1"
	cfg.HTTP.Port = 0
	cfg.Auth.JWTSecret = testSecret
	if mutate != nil {
		mutate(cfg)
	}

	application, err := app.NewApplication(cfg, nil)
	if err != nil {
		t.Fatalf("Failed to create application: %v", err)
	}
	if err := application.Start(context.Background()); err != nil {
		t.Fatalf("Failed to start application: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = application.Stop(ctx)
	})

	verifier, err := auth.NewVerifier(testSecret)
	if err != nil {
		t.Fatalf("NewVerifier failed: %v", err)
	}

	addr := application.GetAddr()
	return &stack{
		app:      application,
		baseURL:  "http://" + addr,
		wsURL:    "ws://" + addr + "/ws",
		verifier: verifier,
	}
}

func (s *stack) token(t *testing.T, userID string) string {
	t.Helper()
	token, err := s.verifier.Sign(userID, time.Hour)
	if err != nil {
		t.Fatalf("Sign failed: %v", err)
	}
	return token
}

// api performs one JSON request and decodes the response into out
func (s *stack) api(t *testing.T, userID, method, path string, body interface{}, wantCode int, out interface{}) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, s.baseURL+path, reader)
	if err != nil {
		t.Fatalf("failed to build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.token(t, userID))

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s failed: %v", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != wantCode {
		var e api.ErrorResponse
		_ = json.NewDecoder(resp.Body).Decode(&e)
		t.Fatalf("%s %s as %s: expected %d, got %d (%s)", method, path, userID, wantCode, resp.StatusCode, e.Message)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("failed to decode %s %s: %v", method, path, err)
		}
	}
}

// scheduleExchange creates an accepted exchange whose first class starts in five minutes
func (s *stack) scheduleExchange(t *testing.T, teacher, learner string) *types.Meeting {
	t.Helper()
	s.api(t, teacher, http.MethodPut, "/api/users/me", api.UpsertUserRequest{Name: "Teacher"}, http.StatusOK, nil)
	s.api(t, learner, http.MethodPut, "/api/users/me", api.UpsertUserRequest{Name: "Learner"}, http.StatusOK, nil)

	first := time.Now().Add(5 * time.Minute).UTC().Truncate(time.Second)
	var req types.Request
	s.api(t, learner, http.MethodPost, "/api/requests", api.CreateRequestBody{
		ToUser:        teacher,
		Type:          types.RequestTypeExchange,
		Classes:       4,
		ProposedSlots: []time.Time{first},
	}, http.StatusCreated, &req)

	var accepted types.Request
	s.api(t, teacher, http.MethodPut, "/api/requests/"+req.ID+"/select-slot", api.SelectSlotBody{SelectedSlot: first}, http.StatusOK, &accepted)
	if accepted.MeetingID == nil {
		t.Fatal("Expected a meeting after slot selection")
	}

	var m types.Meeting
	s.api(t, teacher, http.MethodGet, "/api/meetings/"+*accepted.MeetingID, nil, http.StatusOK, &m)
	return &m
}

// wsClient is a raw relay connection for protocol-level assertions
type wsClient struct {
	conn     *websocket.Conn
	socketID string
	nextID   int
}

func (s *stack) dial(t *testing.T, userID string) *wsClient {
	t.Helper()
	header := http.Header{}
	header.Set("Authorization", "Bearer "+s.token(t, userID))
	conn, _, err := websocket.DefaultDialer.Dial(s.wsURL, header)
	if err != nil {
		t.Fatalf("Dial as %s failed: %v", userID, err)
	}
	t.Cleanup(func() { _ = conn.Close() })

	c := &wsClient{conn: conn}
	env := c.expect(t, types.EventConnected)
	var hello types.ConnectedEvent
	if err := env.Decode(&hello); err != nil {
		t.Fatalf("Invalid connected event: %v", err)
	}
	if hello.UserID != userID || hello.SocketID == "" {
		t.Fatalf("Unexpected greeting %+v", hello)
	}
	c.socketID = hello.SocketID
	return c
}

// send writes an event; ack=true attaches an id and returns it
func (c *wsClient) send(t *testing.T, eventType string, data interface{}, ack bool) string {
	t.Helper()
	env, err := types.NewEnvelope(eventType, data)
	if err != nil {
		t.Fatalf("NewEnvelope failed: %v", err)
	}
	if ack {
		c.nextID++
		env.ID = fmt.Sprintf("%d", c.nextID)
	}
	if err := c.conn.WriteJSON(env); err != nil {
		t.Fatalf("WriteJSON failed: %v", err)
	}
	return env.ID
}

// expect reads until an event of eventType arrives, skipping others
func (c *wsClient) expect(t *testing.T, eventType string) *types.Envelope {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for {
		_ = c.conn.SetReadDeadline(deadline)
		var env types.Envelope
		if err := c.conn.ReadJSON(&env); err != nil {
			t.Fatalf("waiting for %s: %v", eventType, err)
		}
		if env.Type == eventType {
			return &env
		}
	}
}

// join sends join-room and returns the ack body
func (c *wsClient) join(t *testing.T, room string) types.JoinAck {
	t.Helper()
	id := c.send(t, types.EventJoinRoom, types.JoinRoomPayload{RoomName: room}, true)
	env := c.expect(t, types.EventAck)
	if env.ID != id {
		t.Fatalf("Expected ack %s, got %s", id, env.ID)
	}
	var ack types.JoinAck
	if err := env.Decode(&ack); err != nil {
		t.Fatalf("Invalid ack: %v", err)
	}
	return ack
}

// next reads exactly one event
func (c *wsClient) next(t *testing.T) *types.Envelope {
	t.Helper()
	_ = c.conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	var env types.Envelope
	if err := c.conn.ReadJSON(&env); err != nil {
		t.Fatalf("read failed: %v", err)
	}
	return &env
}
