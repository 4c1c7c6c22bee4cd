// Copyright (c) 2023-2026 VoiceGateway Authors
//
// Licensed under GPL-2.0 with VoiceGateway Additional Terms.
// See LICENSE.md for usage terms.

package session

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/rapidaai/voicegateway/internal/logging"
	"github.com/rapidaai/voicegateway/internal/providers"
	"github.com/rapidaai/voicegateway/internal/tools"
)

// fakeConn is an in-memory Conn double: inbound messages are fed through
// a channel, outbound writes are captured for assertions.
type fakeConn struct {
	mu      sync.Mutex
	inbound chan wireMessage
	written [][]byte
	closed  bool
}

type wireMessage struct {
	msgType int
	data    []byte
}

func newFakeConn() *fakeConn {
	return &fakeConn{inbound: make(chan wireMessage, 32)}
}

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	m, ok := <-c.inbound
	if !ok {
		return 0, nil, errors.New("fakeConn: closed")
	}
	return m.msgType, m.data, nil
}

func (c *fakeConn) WriteMessage(msgType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errors.New("fakeConn: write on closed conn")
	}
	cp := append([]byte(nil), data...)
	c.written = append(c.written, cp)
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.inbound)
	}
	return nil
}

func (c *fakeConn) pushText(data []byte) {
	c.inbound <- wireMessage{msgType: websocket.TextMessage, data: data}
}

func (c *fakeConn) pushBinary(data []byte) {
	c.inbound <- wireMessage{msgType: websocket.BinaryMessage, data: data}
}

func (c *fakeConn) writtenCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.written)
}

func (c *fakeConn) writtenAt(i int) []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.written[i]
}

// fakeBindingResolver always resolves to a fixed binding.
type fakeBindingResolver struct {
	binding providers.AgentBinding
	err     error
}

func (r *fakeBindingResolver) Resolve(ctx context.Context, agentID uuid.UUID) (providers.AgentBinding, error) {
	if r.err != nil {
		return providers.AgentBinding{}, r.err
	}
	b := r.binding
	b.AgentID = agentID
	return b, nil
}

// fakeProviderResolver returns pre-built fakes regardless of binding.
type fakeProviderResolver struct {
	vad        providers.VAD
	asr        providers.ASR
	llm        providers.LLM
	tts        providers.TTS
	memory     providers.Memory
	intent     providers.Intent
	voiceprint providers.Voiceprint
	err        error
}

func (r *fakeProviderResolver) ResolveVAD(ctx context.Context, binding providers.AgentBinding) (providers.VAD, error) {
	return r.vad, r.err
}

func (r *fakeProviderResolver) ResolveASR(ctx context.Context, binding providers.AgentBinding) (providers.ASR, error) {
	return r.asr, r.err
}

func (r *fakeProviderResolver) ResolveLLM(ctx context.Context, binding providers.AgentBinding) (providers.LLM, error) {
	return r.llm, r.err
}

func (r *fakeProviderResolver) ResolveTTS(ctx context.Context, binding providers.AgentBinding) (providers.TTS, error) {
	return r.tts, r.err
}

func (r *fakeProviderResolver) ResolveMemory(ctx context.Context, binding providers.AgentBinding) (providers.Memory, error) {
	return r.memory, r.err
}

func (r *fakeProviderResolver) ResolveIntent(ctx context.Context, binding providers.AgentBinding) (providers.Intent, error) {
	return r.intent, r.err
}

func (r *fakeProviderResolver) ResolveVoiceprint(ctx context.Context, binding providers.AgentBinding) (providers.Voiceprint, error) {
	return r.voiceprint, r.err
}

func newTestSession(conn *fakeConn, resolver *fakeProviderResolver) *Session {
	dispatcher := tools.NewDispatcher(logging.NewNop())
	br := &fakeBindingResolver{binding: providers.AgentBinding{PromptTemplate: "you are a helpful voice assistant"}}
	return NewSession("AA:BB:CC:DD:EE:FF", conn, dispatcher, br, resolver, logging.NewNop())
}

func TestNewSessionAssignsIdentities(t *testing.T) {
	conn := newFakeConn()
	s := newTestSession(conn, &fakeProviderResolver{})

	if s.MAC() != "AA:BB:CC:DD:EE:FF" {
		t.Fatalf("unexpected mac: %s", s.MAC())
	}
	if s.ID() == uuid.Nil {
		t.Fatal("session id not assigned")
	}
	if s.DeviceID() == uuid.Nil {
		t.Fatal("device id not assigned")
	}
	if s.ID() == s.DeviceID() {
		t.Fatal("session id and device id must be distinct identities")
	}
}

func TestAgentIDReflectsInstalledBinding(t *testing.T) {
	conn := newFakeConn()
	s := newTestSession(conn, &fakeProviderResolver{})

	agentID := uuid.New()
	s.mu.Lock()
	s.binding.AgentID = agentID
	s.mu.Unlock()

	if s.AgentID() != agentID {
		t.Fatalf("AgentID() = %s, want %s", s.AgentID(), agentID)
	}
}

func TestPipelineReadyAfterBringUp(t *testing.T) {
	conn := newFakeConn()
	s := newTestSession(conn, &fakeProviderResolver{})
	t.Cleanup(s.cancel)

	if s.PipelineReady() {
		t.Fatal("pipeline must not be ready before bring-up")
	}

	s.wg.Add(1)
	s.bringUpPipeline(uuid.New())

	if !s.PipelineReady() {
		t.Fatal("pipeline must be ready after bring-up completes")
	}
}
