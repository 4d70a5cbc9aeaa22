package turnserver

import (
	"bytes"
	"net"
	"testing"

	"github.com/pion/turn/v3"
)

func TestStart_Validation(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr error
	}{
		{"bad ip", Config{ListenAddr: "127.0.0.1:0", PublicIP: "nope", Username: "u", Password: "p"}, ErrInvalidPublicIP},
		{"no credentials", Config{ListenAddr: "127.0.0.1:0", PublicIP: "127.0.0.1"}, ErrMissingCredential},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Start(tt.config, nil); err != tt.wantErr {
				t.Errorf("Expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestStart_ListensAndCloses(t *testing.T) {
	server, err := Start(Config{
		ListenAddr: "127.0.0.1:0",
		PublicIP:   "127.0.0.1",
		Realm:      "skillswap",
		Username:   "relay",
		Password:   "secret",
	}, nil)
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if server.Addr().(*net.UDPAddr).Port == 0 {
		t.Error("Expected a bound port")
	}
	if err := server.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
}

func TestAuthHandler(t *testing.T) {
	config := Config{Realm: "skillswap", Username: "relay", Password: "secret"}
	handler := authHandler(config)
	src := &net.UDPAddr{IP: net.ParseIP("198.51.100.1"), Port: 5000}

	key, ok := handler("relay", "skillswap", src)
	if !ok || !bytes.Equal(key, turn.GenerateAuthKey("relay", "skillswap", "secret")) {
		t.Error("Configured user should get the long-term key")
	}
	if _, ok := handler("intruder", "skillswap", src); ok {
		t.Error("Unknown user must be refused")
	}
}

func TestICEServers(t *testing.T) {
	stun := []string{"stun:stun.l.google.com:19302"}

	servers := ICEServers(stun, nil)
	if len(servers) != 1 || servers[0].URLs[0] != stun[0] || servers[0].Username != "" {
		t.Errorf("Expected STUN only, got %+v", servers)
	}

	servers = ICEServers(stun, &Config{ListenAddr: "0.0.0.0:3479", PublicIP: "203.0.113.7", Username: "relay", Password: "secret"})
	if len(servers) != 2 {
		t.Fatalf("Expected STUN and TURN, got %+v", servers)
	}
	turnEntry := servers[1]
	if turnEntry.URLs[0] != "turn:203.0.113.7:3479?transport=udp" {
		t.Errorf("Unexpected TURN url %s", turnEntry.URLs[0])
	}
	if turnEntry.Username != "relay" || turnEntry.Credential != "secret" {
		t.Errorf("Unexpected TURN credentials %+v", turnEntry)
	}

	if got := ICEServers(nil, nil); len(got) != 0 {
		t.Errorf("Expected empty list, got %+v", got)
	}
}
