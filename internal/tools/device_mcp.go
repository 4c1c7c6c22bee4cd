// Copyright (c) 2023-2026 VoiceGateway Authors
//
// Licensed under GPL-2.0 with VoiceGateway Additional Terms.
// See LICENSE.md for usage terms.

package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rapidaai/voicegateway/internal/providers"
)

// DeviceSender delivers a raw JSON-RPC envelope over the session's
// WebSocket back to the device. internal/session implements this over
// its live connection.
type DeviceSender interface {
	SendMCPEnvelope(ctx context.Context, envelope json.RawMessage) error
}

var nonAlphanumeric = regexp.MustCompile(`[^a-zA-Z0-9]`)

// sanitizeToolName replaces every non-alphanumeric rune with '_', the
// wire name may contain characters an LLM function-name schema rejects.
func sanitizeToolName(raw string) string {
	return nonAlphanumeric.ReplaceAllString(raw, "_")
}

type pendingCall struct {
	resultCh chan json.RawMessage
	errCh    chan error
}

// DeviceMCPExecutor speaks MCP to the device over the same WebSocket used
// for audio: it issues JSON-RPC tools/call requests with monotonic message
// IDs and per-ID response futures. Its tool table comes from tools/list
// results handed to HandleListResult; it sends no initialize or tools/list
// request itself.
type DeviceMCPExecutor struct {
	mu          sync.RWMutex
	sender      DeviceSender
	nextID      int64
	pending     map[int64]pendingCall
	tools       map[string]providers.ToolDefinition
	sanitizedTo map[string]string // sanitized name -> original wire name
	callTimeout time.Duration
}

// NewDeviceMCPExecutor returns an executor bound to one session's sender.
func NewDeviceMCPExecutor(sender DeviceSender) *DeviceMCPExecutor {
	return &DeviceMCPExecutor{
		sender:      sender,
		pending:     make(map[int64]pendingCall),
		tools:       make(map[string]providers.ToolDefinition),
		sanitizedTo: make(map[string]string),
		callTimeout: 10 * time.Second,
	}
}

// HandleListResult installs tools discovered via a device `tools/list`
// response, sanitizing each name and recording the reverse mapping.
func (e *DeviceMCPExecutor) HandleListResult(rawTools []struct {
	Name        string
	Description string
	SchemaJSON  string
}) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, t := range rawTools {
		sanitized := sanitizeToolName(t.Name)
		e.sanitizedTo[sanitized] = t.Name
		e.tools[sanitized] = providers.ToolDefinition{
			Name:        sanitized,
			Description: t.Description,
			JSONSchema:  t.SchemaJSON,
			Backend:     providers.BackendDeviceMCP,
		}
	}
}

// HandleResponse resolves the pending call matching the envelope's id,
// called by the session's receive loop when a `mcp` control message with
// a JSON-RPC response arrives.
func (e *DeviceMCPExecutor) HandleResponse(id int64, result json.RawMessage, rpcErr error) {
	e.mu.Lock()
	p, ok := e.pending[id]
	if ok {
		delete(e.pending, id)
	}
	e.mu.Unlock()
	if !ok {
		return
	}
	if rpcErr != nil {
		p.errCh <- rpcErr
		return
	}
	p.resultCh <- result
}

func (e *DeviceMCPExecutor) GetTools() map[string]providers.ToolDefinition {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make(map[string]providers.ToolDefinition, len(e.tools))
	for k, v := range e.tools {
		out[k] = v
	}
	return out
}

func (e *DeviceMCPExecutor) HasTool(name string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	_, ok := e.tools[name]
	return ok
}

func (e *DeviceMCPExecutor) Execute(ctx context.Context, _ interface{}, name string, args map[string]interface{}) (ActionResponse, error) {
	e.mu.RLock()
	originalName, ok := e.sanitizedTo[name]
	e.mu.RUnlock()
	if !ok {
		return ActionResponse{Action: ActionNotFound, Response: fmt.Sprintf("device mcp tool %q not found", name)}, nil
	}

	id := atomic.AddInt64(&e.nextID, 1)
	resultCh := make(chan json.RawMessage, 1)
	errCh := make(chan error, 1)

	e.mu.Lock()
	e.pending[id] = pendingCall{resultCh: resultCh, errCh: errCh}
	e.mu.Unlock()

	envelope, err := json.Marshal(map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      id,
		"method":  "tools/call",
		"params": map[string]interface{}{
			"name":      originalName,
			"arguments": args,
		},
	})
	if err != nil {
		e.cancelPending(id)
		return ActionResponse{}, fmt.Errorf("tools: marshal device mcp call: %w", err)
	}

	if err := e.sender.SendMCPEnvelope(ctx, envelope); err != nil {
		e.cancelPending(id)
		return ActionResponse{Action: ActionError, Response: err.Error()}, nil
	}

	select {
	case result := <-resultCh:
		return ActionResponse{Action: ActionReqLLM, Response: string(result)}, nil
	case err := <-errCh:
		return ActionResponse{Action: ActionError, Response: err.Error()}, nil
	case <-time.After(e.callTimeout):
		e.cancelPending(id)
		return ActionResponse{Action: ActionError, Response: fmt.Sprintf("device mcp call %q timed out", name)}, nil
	case <-ctx.Done():
		e.cancelPending(id)
		return ActionResponse{}, ctx.Err()
	}
}

func (e *DeviceMCPExecutor) cancelPending(id int64) {
	e.mu.Lock()
	delete(e.pending, id)
	e.mu.Unlock()
}
