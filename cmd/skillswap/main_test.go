package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"skillswap/internal/auth"
	"skillswap/internal/config"
	"skillswap/internal/joinwindow"
	"skillswap/pkg/types"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"--env-file", filepath.Join(t.TempDir(), "missing.env")}, args...))
	err := root.Execute()
	return out.String(), err
}

// ARCHITECTURAL VALIDATION TEST: Command tree
func TestRootCommand_Subcommands(t *testing.T) {
	root := newRootCmd()
	want := map[string]bool{"serve": false, "migrate": false, "token": false, "call": false}
	for _, c := range root.Commands() {
		if _, ok := want[c.Name()]; ok {
			want[c.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("Expected subcommand %q", name)
		}
	}
}

// FUNCTIONAL VALIDATION TEST: Migrations through the CLI
func TestMigrateCommand(t *testing.T) {
	t.Setenv(config.EnvPrefix+"DATABASE_PATH", filepath.Join(t.TempDir(), "cli.db"))

	out, err := execute(t, "migrate", "up")
	if err != nil {
		t.Fatalf("migrate up failed: %v", err)
	}
	if !strings.Contains(out, "schema version 1") {
		t.Errorf("Expected schema version 1, got %q", out)
	}

	out, err = execute(t, "migrate", "status")
	if err != nil {
		t.Fatalf("migrate status failed: %v", err)
	}
	if !strings.Contains(out, "schema version 1") || !strings.Contains(out, "schema check ok") {
		t.Errorf("Expected status to report version 1 and a passing check, got %q", out)
	}

	out, err = execute(t, "migrate", "down")
	if err != nil {
		t.Fatalf("migrate down failed: %v", err)
	}
	if !strings.Contains(out, "schema version 0") {
		t.Errorf("Expected schema version 0 after rollback, got %q", out)
	}
}

func TestMigrateCommand_UnknownAction(t *testing.T) {
	t.Setenv(config.EnvPrefix+"DATABASE_PATH", filepath.Join(t.TempDir(), "cli.db"))

	if _, err := execute(t, "migrate", "sideways"); err == nil {
		t.Error("Expected error for unknown action")
	}
}

// FUNCTIONAL VALIDATION TEST: Token minting round trip
func TestTokenCommand(t *testing.T) {
	t.Setenv(config.EnvPrefix+"JWT_SECRET", "cli-secret")

	out, err := execute(t, "token", "--user", "user-1")
	if err != nil {
		t.Fatalf("token failed: %v", err)
	}

	verifier, err := auth.NewVerifier("cli-secret")
	if err != nil {
		t.Fatalf("NewVerifier failed: %v", err)
	}
	subject, err := verifier.Verify(strings.TrimSpace(out))
	if err != nil {
		t.Fatalf("Minted token did not verify: %v", err)
	}
	if subject != "user-1" {
		t.Errorf("Expected subject user-1, got %q", subject)
	}
}

func TestTokenCommand_Validation(t *testing.T) {
	t.Setenv(config.EnvPrefix+"JWT_SECRET", "cli-secret")
	if _, err := execute(t, "token"); err == nil {
		t.Error("Expected error without --user")
	}

	t.Setenv(config.EnvPrefix+"JWT_SECRET", "")
	if _, err := execute(t, "token", "--user", "user-1"); err == nil {
		t.Error("Expected error without a secret")
	}
}

func TestCallCommand_RequiresFlags(t *testing.T) {
	t.Setenv(config.EnvPrefix+"TOKEN", "")
	if _, err := execute(t, "call", "--token", ""); err == nil {
		t.Error("Expected error without token and meeting")
	}
}

// FUNCTIONAL VALIDATION TEST: Local join-window advice for the call command
func TestAdviseJoin(t *testing.T) {
	policy := joinwindow.DefaultPolicy()
	start := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		status   types.SlotStatus
		now      time.Time
		wantWait time.Duration
		wantErr  error
		wantMsg  string
	}{
		{"joinable before start", types.SlotStatusUpcoming, start.Add(-5 * time.Minute), 0, nil, ""},
		{"joinable after start", types.SlotStatusUpcoming, start.Add(30 * time.Minute), 0, nil, ""},
		{"too early", types.SlotStatusUpcoming, start.Add(-time.Hour), 50 * time.Minute, errWindowNotOpen, ""},
		{"too late", types.SlotStatusUpcoming, start.Add(2 * time.Hour), 0, nil, "window closed"},
		{"completed", types.SlotStatusCompleted, start, 0, nil, "is completed"},
		{"cancelled", types.SlotStatusCancelled, start, 0, nil, "is cancelled"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wait, err := adviseJoin(policy, types.ClassSlot{DateTime: start, Status: tt.status}, tt.now)
			if wait != tt.wantWait {
				t.Errorf("wait = %v, want %v", wait, tt.wantWait)
			}
			switch {
			case tt.wantErr != nil:
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("err = %v, want %v", err, tt.wantErr)
				}
			case tt.wantMsg != "":
				if err == nil || !strings.Contains(err.Error(), tt.wantMsg) {
					t.Errorf("err = %v, want message containing %q", err, tt.wantMsg)
				}
			case err != nil:
				t.Errorf("unexpected error %v", err)
			}
		})
	}
}

// FUNCTIONAL VALIDATION TEST: The call command consults the join window
// before asking the server for the room
func TestCallCommand_ChecksJoinWindowBeforeReveal(t *testing.T) {
	tests := []struct {
		name    string
		slot    types.ClassSlot
		wantMsg string
	}{
		{"not open yet", types.ClassSlot{DateTime: time.Now().Add(3 * time.Hour), Status: types.SlotStatusUpcoming}, "join window not open yet"},
		{"cancelled", types.ClassSlot{DateTime: time.Now(), Status: types.SlotStatusCancelled}, "is cancelled"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var reveals int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				switch {
				case r.URL.Path == "/api/meetings/m-1":
					_ = json.NewEncoder(w).Encode(types.Meeting{ID: "m-1", Classes: []types.ClassSlot{tt.slot}})
				case strings.HasPrefix(r.URL.Path, "/api/meetings/m-1/room/"):
					atomic.AddInt32(&reveals, 1)
					w.WriteHeader(http.StatusBadRequest)
				default:
					http.NotFound(w, r)
				}
			}))
			defer srv.Close()

			_, err := execute(t, "call", "--server", srv.URL, "--token", "tok", "--meeting", "m-1")
			if err == nil || !strings.Contains(err.Error(), tt.wantMsg) {
				t.Fatalf("err = %v, want message containing %q", err, tt.wantMsg)
			}
			if n := atomic.LoadInt32(&reveals); n != 0 {
				t.Errorf("Expected no room reveal, got %d", n)
			}
		})
	}
}

func TestServeCommand_RejectsInvalidConfig(t *testing.T) {
	t.Setenv(config.EnvPrefix+"JWT_SECRET", "")
	if _, err := execute(t, "serve"); err == nil {
		t.Error("Expected serve to fail without a JWT secret")
	}
}
