// Package turnserver runs an optional embedded TURN relay for peers behind
// symmetric NATs and builds the ICE server list handed to call clients.
package turnserver

import (
	"errors"
	"fmt"
	"net"

	"github.com/pion/turn/v3"
	"go.uber.org/zap"
)

var (
	ErrInvalidPublicIP   = errors.New("TURN public IP is not a valid address")
	ErrMissingCredential = errors.New("TURN username and password are required")
)

// Config describes a single-user long-term-credential relay
type Config struct {
	ListenAddr string
	PublicIP   string
	Realm      string
	Username   string
	Password   string
}

// ICEServer is the browser/pion shaped entry of an ICE server list
type ICEServer struct {
	URLs       []string `json:"urls"`
	Username   string   `json:"username,omitempty"`
	Credential string   `json:"credential,omitempty"`
}

// Server wraps a running pion TURN server
type Server struct {
	server *turn.Server
	conn   net.PacketConn
	logger *zap.Logger
}

// Start listens on UDP and relays through PublicIP
func Start(config Config, logger *zap.Logger) (*Server, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	relayIP := net.ParseIP(config.PublicIP)
	if relayIP == nil {
		return nil, ErrInvalidPublicIP
	}
	if config.Username == "" || config.Password == "" {
		return nil, ErrMissingCredential
	}

	conn, err := net.ListenPacket("udp4", config.ListenAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen for TURN on %s: %w", config.ListenAddr, err)
	}

	server, err := turn.NewServer(turn.ServerConfig{
		Realm:       config.Realm,
		AuthHandler: authHandler(config),
		PacketConnConfigs: []turn.PacketConnConfig{
			{
				PacketConn: conn,
				RelayAddressGenerator: &turn.RelayAddressGeneratorStatic{
					RelayAddress: relayIP,
					Address:      "0.0.0.0",
				},
			},
		},
	})
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to start TURN server: %w", err)
	}

	logger.Named("turn").Info("TURN relay listening",
		zap.String("addr", conn.LocalAddr().String()),
		zap.String("relay_ip", relayIP.String()),
		zap.String("realm", config.Realm))

	return &Server{server: server, conn: conn, logger: logger.Named("turn")}, nil
}

// Addr is the bound UDP address
func (s *Server) Addr() net.Addr {
	return s.conn.LocalAddr()
}

// Close stops the relay and releases its allocations
func (s *Server) Close() error {
	if err := s.server.Close(); err != nil {
		return fmt.Errorf("failed to close TURN server: %w", err)
	}
	s.logger.Info("TURN relay stopped")
	return nil
}

func authHandler(config Config) func(username, realm string, src net.Addr) ([]byte, bool) {
	key := turn.GenerateAuthKey(config.Username, config.Realm, config.Password)
	return func(username, realm string, src net.Addr) ([]byte, bool) {
		if username != config.Username {
			return nil, false
		}
		return key, true
	}
}

// ICEServers lists the STUN urls and, when a relay is configured, the TURN
// entry with its credentials
func ICEServers(stunURLs []string, relay *Config) []ICEServer {
	servers := make([]ICEServer, 0, 2)
	if len(stunURLs) > 0 {
		servers = append(servers, ICEServer{URLs: append([]string(nil), stunURLs...)})
	}
	if relay != nil && relay.PublicIP != "" {
		port := "3478"
		if _, p, err := net.SplitHostPort(relay.ListenAddr); err == nil && p != "0" {
			port = p
		}
		host := net.JoinHostPort(relay.PublicIP, port)
		servers = append(servers, ICEServer{
			URLs:       []string{"turn:" + host + "?transport=udp"},
			Username:   relay.Username,
			Credential: relay.Password,
		})
	}
	return servers
}
