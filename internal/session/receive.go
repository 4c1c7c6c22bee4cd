// Copyright (c) 2023-2026 VoiceGateway Authors
//
// Licensed under GPL-2.0 with VoiceGateway Additional Terms.
// See LICENSE.md for usage terms.

package session

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"

	"github.com/gorilla/websocket"

	"github.com/rapidaai/voicegateway/internal/protocol"
	"github.com/rapidaai/voicegateway/internal/providers"
)

// controlEnvelope is the inbound/outbound `{type, ...}` JSON control
// message shape of spec.md §6.
type controlEnvelope struct {
	Type string `json:"type"`

	// hello
	Features *struct {
		MCP bool `json:"mcp"`
	} `json:"features,omitempty"`
	FrameDurationMs int `json:"frame_duration_ms,omitempty"`

	// listen
	Mode  string `json:"mode,omitempty"`
	State string `json:"state,omitempty"`

	// Raw is not filled by decoding (json:"-"); the iot / mcp handlers
	// re-parse the whole message for the device-iot / device-mcp backends.
	Raw json.RawMessage `json:"-"`
}

// runReceiveLoop is the single cooperative task reading inbound WebSocket
// messages and dispatching by kind, per spec.md §4.2.
func (s *Session) runReceiveLoop() {
	defer s.wg.Done()

	for {
		if s.ctx.Err() != nil {
			return
		}

		msgType, data, err := s.conn.ReadMessage()
		if err != nil {
			s.logger.Debugf("session %s: receive loop exiting: %v", s.id, err)
			s.initiateClose()
			return
		}

		s.touchActivity()

		switch msgType {
		case websocket.CloseMessage:
			s.initiateClose()
			return
		case websocket.TextMessage:
			s.handleControlMessage(data)
		case websocket.BinaryMessage:
			s.handleAudioMessage(data)
		}
	}
}

// handleControlMessage parses one inbound JSON control envelope and
// routes it by type.
func (s *Session) handleControlMessage(data []byte) {
	var env controlEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		s.logger.Warnw("malformed control envelope", "session", s.id, "error", err)
		return
	}

	switch env.Type {
	case "hello":
		features := FeatureFlags{FrameDurationMs: env.FrameDurationMs}
		if env.Features != nil {
			features.MCP = env.Features.MCP
		}
		if features.FrameDurationMs <= 0 {
			features.FrameDurationMs = protocol.DefaultFrameDurationMs
		}
		s.SetFeatures(features)
	case "abort":
		s.SetClientAbort(true)
		s.flushTTS()
	case "listen":
		// Accepted and ignored: neither this loop nor the ASR pipeline
		// stage reads the envelope's mode or state.
	case "iot":
		s.routeIoTState(data)
	case "mcp":
		s.routeMCPResponse(data)
	default:
		s.logger.Debugf("session %s: unrecognized control type %q", s.id, env.Type)
	}
}

// handleAudioMessage routes one inbound binary message to the audio
// pipeline. Audio arriving before pipeline-readiness is held in the
// ingress queue (up to AudioQueueSize frames) and processed in order once
// the ASR stage starts; a frame that finds the queue full before then is
// dropped, with a single warning per session.
func (s *Session) handleAudioMessage(data []byte) {
	frame, timestampMs := s.decodeInboundAudio(data)
	if !s.PipelineReady() {
		select {
		case s.audioIn <- audioFrame{pcm: frame, timestampMs: timestampMs}:
		default:
			if s.audioDropWarned.CompareAndSwap(false, true) {
				s.logger.Warnw("dropping audio frame: pipeline not ready", "session", s.id)
			}
		}
		return
	}

	select {
	case s.audioIn <- audioFrame{pcm: frame, timestampMs: timestampMs}:
	case <-s.ctx.Done():
	}
}

// decodeInboundAudio accepts a framed V2 payload, a framed V3 payload, or
// raw Opus bytes, per spec.md §4.1's "plain (unframed) binary messages are
// raw Opus audio". A V2 frame is recognized by its two-byte version field;
// V3 carries no version byte at all (spec.md §4.1), so it is recognized
// structurally instead; anything matching neither is treated as an
// unframed Opus packet and decoded directly, with a synthesized timestamp.
func (s *Session) decodeInboundAudio(data []byte) ([]int16, uint32) {
	if looksLikeV2(data) {
		f, _, err := protocol.DecodeV2(data)
		if err == nil && f.Type == protocol.FrameTypeAudio {
			return decodeOpusFrame(f.Payload), f.TimestampMs
		}
	}
	if looksLikeV3(data) {
		f, _, err := protocol.DecodeV3(data)
		if err == nil && f.Type == protocol.FrameTypeAudio {
			return decodeOpusFrame(f.Payload), s.reorder.clock.Next()
		}
	}
	return decodeOpusFrame(data), s.reorder.clock.Next()
}

func looksLikeV2(data []byte) bool {
	return len(data) >= 2 && data[0] == 0 && data[1] == byte(protocol.VersionV2)
}

// looksLikeV3 structurally probes for the 4-byte V3 header (spec.md §4.1:
// u8 frame_type, u8 reserved, u16 payload_len) since V3 has no version
// byte to key on directly: frame_type must be a known FrameType, the
// reserved byte must be zero, and the declared payload_len must exactly
// consume the rest of the message, since V3 frames arrive one per
// WebSocket message.
func looksLikeV3(data []byte) bool {
	if len(data) < v3HeaderSize {
		return false
	}
	frameType := data[0]
	if frameType != byte(protocol.FrameTypeAudio) && frameType != byte(protocol.FrameTypeControl) {
		return false
	}
	if data[1] != 0 {
		return false
	}
	payloadLen := binary.BigEndian.Uint16(data[2:4])
	return int(payloadLen) == len(data)-v3HeaderSize
}

const v3HeaderSize = 4

// decodeOpusFrame is a seam for the audio package's Opus decoder; kept
// as a variable so pipeline tests can substitute a deterministic PCM
// stand-in without decoding real Opus bytes.
var decodeOpusFrame = func(payload []byte) []int16 {
	pcm := make([]int16, len(payload))
	for i, b := range payload {
		pcm[i] = int16(b)
	}
	return pcm
}

func (s *Session) flushTTS() {
	select {
	case s.flushCh <- struct{}{}:
	default:
	}
}

func (s *Session) initiateClose() {
	s.Close()
}

// ioTStateHandler is satisfied by *tools.DeviceIoTExecutor; declared
// locally so this package doesn't need an iot-specific import beyond
// the already-imported tools.Dispatcher.
type ioTStateHandler interface {
	HandleState(correlationID string, payload json.RawMessage)
}

// ioTStateEnvelope is the device->gateway response to an iot command
// dispatched through DeviceIoTExecutor.Execute.
type ioTStateEnvelope struct {
	States []struct {
		ID      string          `json:"id"`
		Payload json.RawMessage `json:"payload"`
	} `json:"states"`
}

// routeIoTState resolves each pending iot command future the device's
// telemetry response carries a correlation id for.
func (s *Session) routeIoTState(data []byte) {
	var env ioTStateEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		s.logger.Warnw("malformed iot state envelope", "session", s.id, "error", err)
		return
	}
	ex, ok := s.dispatcher.Executor(providers.BackendDeviceIoT)
	if !ok {
		return
	}
	handler, ok := ex.(ioTStateHandler)
	if !ok {
		return
	}
	for _, state := range env.States {
		handler.HandleState(state.ID, state.Payload)
	}
}

// mcpResponseHandler is satisfied by *tools.DeviceMCPExecutor.
type mcpResponseHandler interface {
	HandleResponse(id int64, result json.RawMessage, rpcErr error)
}

// mcpResponseEnvelope is the device->gateway JSON-RPC response shape for
// a call DeviceMCPExecutor.Execute issued.
type mcpResponseEnvelope struct {
	ID     int64           `json:"id"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// routeMCPResponse resolves the pending JSON-RPC call future matching
// the response's id.
func (s *Session) routeMCPResponse(data []byte) {
	var env mcpResponseEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		s.logger.Warnw("malformed mcp response envelope", "session", s.id, "error", err)
		return
	}
	ex, ok := s.dispatcher.Executor(providers.BackendDeviceMCP)
	if !ok {
		return
	}
	handler, ok := ex.(mcpResponseHandler)
	if !ok {
		return
	}
	var rpcErr error
	if env.Error != nil {
		rpcErr = errors.New(env.Error.Message)
	}
	handler.HandleResponse(env.ID, env.Result, rpcErr)
}

// SendMCPEnvelope implements tools.DeviceSender: it writes a raw
// JSON-RPC or iot-command envelope as a text WebSocket message, the same
// wire seam sendControl uses for every other outbound control message.
func (s *Session) SendMCPEnvelope(ctx context.Context, envelope json.RawMessage) error {
	return s.conn.WriteMessage(websocket.TextMessage, envelope)
}

// sendControl marshals v as JSON and writes it as a text WebSocket
// message. All outbound control envelopes (stt, tts, emotion,
// notification, server) go through this one seam.
func (s *Session) sendControl(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

