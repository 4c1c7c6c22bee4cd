// Copyright (c) 2023-2026 VoiceGateway Authors
//
// Licensed under GPL-2.0 with VoiceGateway Additional Terms.
// See LICENSE.md for usage terms.

package session

import (
	"testing"

	"github.com/rapidaai/voicegateway/internal/protocol"
)

func TestDecodeInboundAudioV2Frame(t *testing.T) {
	s := newTestSession(newFakeConn(), &fakeProviderResolver{})
	wire, err := protocol.Encode(protocol.Frame{
		Version:     protocol.VersionV2,
		Type:        protocol.FrameTypeAudio,
		TimestampMs: 4242,
		Payload:     []byte{1, 2, 3},
	})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	pcm, ts := s.decodeInboundAudio(wire)
	if ts != 4242 {
		t.Fatalf("timestamp = %d, want wire timestamp 4242", ts)
	}
	if len(pcm) != 3 {
		t.Fatalf("pcm len = %d, want 3", len(pcm))
	}
}

func TestDecodeInboundAudioV3Frame(t *testing.T) {
	s := newTestSession(newFakeConn(), &fakeProviderResolver{})
	wire, err := protocol.Encode(protocol.Frame{
		Version: protocol.VersionV3,
		Type:    protocol.FrameTypeAudio,
		Payload: []byte{9, 8, 7, 6},
	})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	pcm, ts := s.decodeInboundAudio(wire)
	if len(pcm) != 4 {
		t.Fatalf("pcm len = %d, want 4", len(pcm))
	}
	// V3 carries no wire timestamp; decodeInboundAudio must synthesize one
	// via the session's clock, same as the raw-Opus fallback path.
	if ts != 0 {
		t.Fatalf("timestamp = %d, want first synthesized clock value 0", ts)
	}

	_, ts2 := s.decodeInboundAudio(wire)
	if ts2 <= ts {
		t.Fatalf("second V3 frame's timestamp %d did not advance past %d", ts2, ts)
	}
}

func TestDecodeInboundAudioRawOpusFallback(t *testing.T) {
	s := newTestSession(newFakeConn(), &fakeProviderResolver{})
	raw := []byte{10, 20, 30, 40, 50}

	pcm, ts := s.decodeInboundAudio(raw)
	if len(pcm) != len(raw) {
		t.Fatalf("pcm len = %d, want %d", len(pcm), len(raw))
	}
	if ts != 0 {
		t.Fatalf("timestamp = %d, want first synthesized clock value 0", ts)
	}
}

func TestLooksLikeV3RejectsRawOpusOfCoincidentalShape(t *testing.T) {
	// frame_type byte out of range for FrameType{0,1}: must not be
	// misidentified as V3.
	if looksLikeV3([]byte{7, 0, 0, 0}) {
		t.Fatal("looksLikeV3 accepted an out-of-range frame_type byte")
	}
	// reserved byte nonzero: must not be misidentified as V3.
	if looksLikeV3([]byte{0, 1, 0, 0}) {
		t.Fatal("looksLikeV3 accepted a nonzero reserved byte")
	}
	// declared payload_len longer than the remaining buffer.
	if looksLikeV3([]byte{0, 0, 0, 5, 1, 2}) {
		t.Fatal("looksLikeV3 accepted a payload_len that doesn't consume the buffer")
	}
}
