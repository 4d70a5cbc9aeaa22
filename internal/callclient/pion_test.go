package callclient

import (
	"context"
	"encoding/json"
	"testing"
	"time"
)

type captured struct {
	blobs chan json.RawMessage
}

func newCaptured() *captured {
	return &captured{blobs: make(chan json.RawMessage, 128)}
}

func (c *captured) events() PeerEvents {
	return PeerEvents{Signal: func(b json.RawMessage) { c.blobs <- b }}
}

// next returns the first blob of the given type, skipping trickled candidates
func (c *captured) next(t *testing.T, blobType string) json.RawMessage {
	t.Helper()
	timeout := time.After(3 * time.Second)
	for {
		select {
		case raw := <-c.blobs:
			var b signalBlob
			if err := json.Unmarshal(raw, &b); err != nil {
				t.Fatalf("Invalid blob %s: %v", raw, err)
			}
			if b.Type == blobType {
				return raw
			}
		case <-timeout:
			t.Fatalf("No %s blob emitted", blobType)
			return nil
		}
	}
}

func TestPionPeer_OfferAnswer(t *testing.T) {
	factory, err := NewPionPeerFactory(nil, nil)
	if err != nil {
		t.Fatalf("NewPionPeerFactory failed: %v", err)
	}

	local, err := SyntheticMediaSource{}.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	defer local.Release()

	offerSide := newCaptured()
	initiator, err := factory.NewPeer("B", true, local, offerSide.events())
	if err != nil {
		t.Fatalf("NewPeer(initiator) failed: %v", err)
	}
	defer initiator.Close()

	answerSide := newCaptured()
	responder, err := factory.NewPeer("A", false, local, answerSide.events())
	if err != nil {
		t.Fatalf("NewPeer(responder) failed: %v", err)
	}
	defer responder.Close()

	// A candidate ahead of the offer is queued rather than rejected
	early := json.RawMessage(`{"type":"candidate","candidate":{"candidate":"candidate:1 1 udp 2130706431 127.0.0.1 50000 typ host","sdpMid":"0","sdpMLineIndex":0}}`)
	if err := responder.Signal(early); err != nil {
		t.Errorf("Expected early candidate to be queued, got %v", err)
	}

	offer := offerSide.next(t, "offer")
	if err := responder.Signal(offer); err != nil {
		t.Fatalf("Responder failed to apply offer: %v", err)
	}

	answer := answerSide.next(t, "answer")
	if err := initiator.Signal(answer); err != nil {
		t.Fatalf("Initiator failed to apply answer: %v", err)
	}
}

func TestPionPeer_RejectsMalformedSignal(t *testing.T) {
	factory, err := NewPionPeerFactory(nil, nil)
	if err != nil {
		t.Fatalf("NewPionPeerFactory failed: %v", err)
	}
	peer, err := factory.NewPeer("X", false, nil, PeerEvents{})
	if err != nil {
		t.Fatalf("NewPeer failed: %v", err)
	}
	defer peer.Close()

	if err := peer.Signal(json.RawMessage(`not json`)); err == nil {
		t.Error("Expected error for malformed signal")
	}
	if err := peer.Signal(json.RawMessage(`{"type":"candidate"}`)); err == nil {
		t.Error("Expected error for candidate without body")
	}
	if err := peer.Signal(json.RawMessage(`{"renegotiate":true}`)); err != nil {
		t.Errorf("Expected unknown hints to be ignored, got %v", err)
	}
}

func TestPionPeerFactory_RejectsForeignMedia(t *testing.T) {
	factory, err := NewPionPeerFactory(nil, nil)
	if err != nil {
		t.Fatalf("NewPionPeerFactory failed: %v", err)
	}
	if _, err := factory.NewPeer("X", true, &mockMedia{}, PeerEvents{}); err != ErrUnexpectedMedia {
		t.Errorf("Expected ErrUnexpectedMedia, got %v", err)
	}
}

func TestLocalMedia_ReleaseIdempotent(t *testing.T) {
	local, err := SyntheticMediaSource{StreamID: "s"}.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	local.Release()
	local.Release()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := (SyntheticMediaSource{}).Acquire(ctx); err == nil {
		t.Error("Expected Acquire to honor a cancelled context")
	}
}
