// Copyright (c) 2023-2026 VoiceGateway Authors
//
// Licensed under GPL-2.0 with VoiceGateway Additional Terms.
// See LICENSE.md for usage terms.

package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rapidaai/voicegateway/internal/providers"
)

// IoTDescriptor describes one device-exposed entity, published by the
// device at start-up over the `iot` control envelope.
type IoTDescriptor struct {
	Device     string
	Properties []string // each synthesizes a get_<device>_<property> tool
	Methods    []string // each synthesizes a <device>_<method> tool
}

// DeviceIoTExecutor is a flat command plane whose tools are synthesized
// from device-published descriptors rather than pre-registered, and whose
// calls and responses travel the same WebSocket as audio.
type DeviceIoTExecutor struct {
	mu      sync.RWMutex
	sender  DeviceSender
	tools   map[string]providers.ToolDefinition
	pending map[string]chan json.RawMessage // correlation-id -> response future
	timeout time.Duration
}

// NewDeviceIoTExecutor returns an executor with no synthesized tools
// until RegisterDescriptors is called.
func NewDeviceIoTExecutor(sender DeviceSender) *DeviceIoTExecutor {
	return &DeviceIoTExecutor{
		sender:  sender,
		tools:   make(map[string]providers.ToolDefinition),
		pending: make(map[string]chan json.RawMessage),
		timeout: 10 * time.Second,
	}
}

// RegisterDescriptors synthesizes tools from device descriptors. The
// session's `iot` envelope routing handles only `states`, so the receive
// loop does not call it.
func (e *DeviceIoTExecutor) RegisterDescriptors(descriptors []IoTDescriptor) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, d := range descriptors {
		for _, prop := range d.Properties {
			name := fmt.Sprintf("get_%s_%s", d.Device, prop)
			e.tools[name] = providers.ToolDefinition{
				Name:        name,
				Description: fmt.Sprintf("Read the %s property of %s", prop, d.Device),
				Backend:     providers.BackendDeviceIoT,
			}
		}
		for _, method := range d.Methods {
			name := fmt.Sprintf("%s_%s", d.Device, method)
			e.tools[name] = providers.ToolDefinition{
				Name:        name,
				Description: fmt.Sprintf("Invoke %s on %s", method, d.Device),
				Backend:     providers.BackendDeviceIoT,
			}
		}
	}
}

// HandleState resolves the pending future for a telemetry response
// carrying the given correlation id, called from the session's receive
// loop on an `iot` control envelope carrying `states`.
func (e *DeviceIoTExecutor) HandleState(correlationID string, payload json.RawMessage) {
	e.mu.Lock()
	ch, ok := e.pending[correlationID]
	if ok {
		delete(e.pending, correlationID)
	}
	e.mu.Unlock()
	if ok {
		ch <- payload
	}
}

func (e *DeviceIoTExecutor) GetTools() map[string]providers.ToolDefinition {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make(map[string]providers.ToolDefinition, len(e.tools))
	for k, v := range e.tools {
		out[k] = v
	}
	return out
}

func (e *DeviceIoTExecutor) HasTool(name string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	_, ok := e.tools[name]
	return ok
}

func (e *DeviceIoTExecutor) Execute(ctx context.Context, _ interface{}, name string, args map[string]interface{}) (ActionResponse, error) {
	e.mu.RLock()
	_, ok := e.tools[name]
	e.mu.RUnlock()
	if !ok {
		return ActionResponse{Action: ActionNotFound, Response: fmt.Sprintf("iot tool %q not found", name)}, nil
	}

	correlationID := fmt.Sprintf("%s-%d", name, time.Now().UnixNano())
	ch := make(chan json.RawMessage, 1)
	e.mu.Lock()
	e.pending[correlationID] = ch
	e.mu.Unlock()

	envelope, err := json.Marshal(map[string]interface{}{
		"type":    "iot",
		"command": name,
		"id":      correlationID,
		"args":    args,
	})
	if err != nil {
		return ActionResponse{}, fmt.Errorf("tools: marshal iot command: %w", err)
	}
	if err := e.sender.SendMCPEnvelope(ctx, envelope); err != nil {
		return ActionResponse{Action: ActionError, Response: err.Error()}, nil
	}

	select {
	case payload := <-ch:
		return ActionResponse{Action: ActionReqLLM, Response: string(payload)}, nil
	case <-time.After(e.timeout):
		e.mu.Lock()
		delete(e.pending, correlationID)
		e.mu.Unlock()
		return ActionResponse{Action: ActionError, Response: fmt.Sprintf("iot command %q timed out", name)}, nil
	case <-ctx.Done():
		return ActionResponse{}, ctx.Err()
	}
}
