package callclient

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"
	"go.uber.org/zap"

	"skillswap/internal/turnserver"
)

// signalBlob is the negotiation payload exchanged through the relay. It
// carries either a session description or one trickled ICE candidate.
type signalBlob struct {
	Type      string                   `json:"type"`
	SDP       string                   `json:"sdp,omitempty"`
	Candidate *webrtc.ICECandidateInit `json:"candidate,omitempty"`
}

const candidateType = "candidate"

// PionPeerFactory builds peers on pion/webrtc
type PionPeerFactory struct {
	api    *webrtc.API
	config webrtc.Configuration
	logger *zap.Logger
}

// NewPionPeerFactory registers the default codecs and configures ICE with servers
func NewPionPeerFactory(servers []turnserver.ICEServer, logger *zap.Logger) (*PionPeerFactory, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	mediaEngine := &webrtc.MediaEngine{}
	if err := mediaEngine.RegisterDefaultCodecs(); err != nil {
		return nil, fmt.Errorf("failed to register codecs: %w", err)
	}

	config := webrtc.Configuration{}
	for _, s := range servers {
		server := webrtc.ICEServer{URLs: s.URLs, Username: s.Username}
		if s.Credential != "" {
			server.Credential = s.Credential
		}
		config.ICEServers = append(config.ICEServers, server)
	}

	return &PionPeerFactory{
		api:    webrtc.NewAPI(webrtc.WithMediaEngine(mediaEngine)),
		config: config,
		logger: logger.Named("peer"),
	}, nil
}

// NewPeer opens a peer connection carrying the tracks of local. The
// initiator sends its offer immediately.
func (f *PionPeerFactory) NewPeer(remoteID string, initiator bool, local Media, events PeerEvents) (Peer, error) {
	var tracks []webrtc.TrackLocal
	if local != nil {
		lm, ok := local.(*LocalMedia)
		if !ok {
			return nil, ErrUnexpectedMedia
		}
		tracks = lm.tracks
	}

	pc, err := f.api.NewPeerConnection(f.config)
	if err != nil {
		return nil, fmt.Errorf("failed to create peer connection: %w", err)
	}

	p := &pionPeer{
		pc:     pc,
		events: events,
		logger: f.logger.With(zap.String("peer", remoteID)),
	}

	for _, track := range tracks {
		sender, err := pc.AddTrack(track)
		if err != nil {
			_ = pc.Close()
			return nil, fmt.Errorf("failed to add %s track: %w", track.Kind(), err)
		}
		go drainRTCP(sender)
	}

	pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			return
		}
		init := c.ToJSON()
		p.emit(signalBlob{Type: candidateType, Candidate: &init})
	})

	pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		p.logger.Debug("remote track", zap.String("kind", track.Kind().String()))
		if events.RemoteTrack != nil {
			events.RemoteTrack()
		}
		buf := make([]byte, 1500)
		for {
			if _, _, err := track.Read(buf); err != nil {
				return
			}
		}
	})

	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		p.logger.Debug("connection state", zap.String("state", state.String()))
		if state == webrtc.PeerConnectionStateFailed || state == webrtc.PeerConnectionStateClosed {
			p.closedOnce.Do(func() {
				if events.Closed != nil {
					events.Closed()
				}
			})
		}
	})

	if initiator {
		offer, err := pc.CreateOffer(nil)
		if err != nil {
			_ = pc.Close()
			return nil, fmt.Errorf("failed to create offer: %w", err)
		}
		if err := pc.SetLocalDescription(offer); err != nil {
			_ = pc.Close()
			return nil, fmt.Errorf("failed to set local description: %w", err)
		}
		p.emit(signalBlob{Type: offer.Type.String(), SDP: offer.SDP})
	}

	return p, nil
}

type pionPeer struct {
	pc         *webrtc.PeerConnection
	events     PeerEvents
	logger     *zap.Logger
	closedOnce sync.Once

	mu      sync.Mutex
	pending []webrtc.ICECandidateInit // candidates that arrived before the remote description
}

// Signal applies a remote description or candidate
func (p *pionPeer) Signal(raw json.RawMessage) error {
	var blob signalBlob
	if err := json.Unmarshal(raw, &blob); err != nil {
		return fmt.Errorf("invalid signal: %w", err)
	}

	switch blob.Type {
	case candidateType:
		if blob.Candidate == nil {
			return fmt.Errorf("candidate signal without candidate")
		}
		p.mu.Lock()
		if p.pc.RemoteDescription() == nil {
			p.pending = append(p.pending, *blob.Candidate)
			p.mu.Unlock()
			return nil
		}
		p.mu.Unlock()
		return p.pc.AddICECandidate(*blob.Candidate)

	case "offer", "answer":
		desc := webrtc.SessionDescription{Type: webrtc.NewSDPType(blob.Type), SDP: blob.SDP}
		if err := p.pc.SetRemoteDescription(desc); err != nil {
			return fmt.Errorf("failed to set remote description: %w", err)
		}
		p.flushPending()

		if desc.Type != webrtc.SDPTypeOffer {
			return nil
		}
		answer, err := p.pc.CreateAnswer(nil)
		if err != nil {
			return fmt.Errorf("failed to create answer: %w", err)
		}
		if err := p.pc.SetLocalDescription(answer); err != nil {
			return fmt.Errorf("failed to set local description: %w", err)
		}
		p.emit(signalBlob{Type: answer.Type.String(), SDP: answer.SDP})
		return nil

	default:
		// Browser peers also send renegotiation hints; nothing to apply
		p.logger.Debug("ignoring signal", zap.String("type", blob.Type))
		return nil
	}
}

func (p *pionPeer) flushPending() {
	p.mu.Lock()
	pending := p.pending
	p.pending = nil
	p.mu.Unlock()

	for _, c := range pending {
		if err := p.pc.AddICECandidate(c); err != nil {
			p.logger.Debug("failed to add queued candidate", zap.Error(err))
		}
	}
}

func (p *pionPeer) emit(blob signalBlob) {
	if p.events.Signal == nil {
		return
	}
	raw, err := json.Marshal(blob)
	if err != nil {
		p.logger.Warn("failed to encode signal", zap.Error(err))
		return
	}
	p.events.Signal(raw)
}

// Close shuts the peer connection
func (p *pionPeer) Close() error {
	return p.pc.Close()
}

func drainRTCP(sender *webrtc.RTPSender) {
	buf := make([]byte, 1500)
	for {
		if _, _, err := sender.Read(buf); err != nil {
			return
		}
	}
}

// opusSilence is a single 20ms Opus frame of silence
var opusSilence = []byte{0xf8, 0xff, 0xfe}

const frameInterval = 20 * time.Millisecond

// SyntheticMediaSource produces a silent audio track. Headless participants
// use it so the remote side still receives a stream.
type SyntheticMediaSource struct {
	StreamID string
}

// Acquire starts the silent track
func (s SyntheticMediaSource) Acquire(ctx context.Context) (Media, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	streamID := s.StreamID
	if streamID == "" {
		streamID = "skillswap"
	}

	audio, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus, ClockRate: 48000, Channels: 2},
		"audio", streamID,
	)
	if err != nil {
		return nil, err
	}

	lm := &LocalMedia{
		tracks: []webrtc.TrackLocal{audio},
		stop:   make(chan struct{}),
	}
	go lm.pump(audio)
	return lm, nil
}

// LocalMedia holds the local tracks shared by every peer of a call
type LocalMedia struct {
	tracks   []webrtc.TrackLocal
	stop     chan struct{}
	stopOnce sync.Once
}

func (m *LocalMedia) pump(track *webrtc.TrackLocalStaticSample) {
	ticker := time.NewTicker(frameInterval)
	defer ticker.Stop()
	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			// Errors only mean no peer is bound yet
			_ = track.WriteSample(media.Sample{Data: opusSilence, Duration: frameInterval})
		}
	}
}

// Release stops the tracks
func (m *LocalMedia) Release() {
	m.stopOnce.Do(func() { close(m.stop) })
}
