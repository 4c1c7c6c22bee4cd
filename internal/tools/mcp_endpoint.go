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

	"github.com/go-resty/resty/v2"
	"github.com/gorilla/websocket"

	"github.com/rapidaai/voicegateway/internal/logging"
	"github.com/rapidaai/voicegateway/internal/providers"
)

// MCPEndpointExecutor connects to a remote MCP service over WebSocket,
// auto-injecting the device MAC into every outgoing tools/call so the
// remote service can address per-device state without the LLM having to
// pass it explicitly.
type MCPEndpointExecutor struct {
	mu         sync.Mutex
	conn       *websocket.Conn
	deviceMAC  string
	nextID     int64
	tools      map[string]providers.ToolDefinition
	logger     logging.Logger
	httpClient *resty.Client
	healthURL  string
}

// NewMCPEndpointExecutor dials the remote MCP WebSocket endpoint and
// returns an executor bound to the connection, tagging every call with
// deviceMAC.
func NewMCPEndpointExecutor(ctx context.Context, wsURL, healthURL, deviceMAC string, logger logging.Logger) (*MCPEndpointExecutor, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("tools: dial mcp endpoint %q: %w", wsURL, err)
	}

	e := &MCPEndpointExecutor{
		conn:       conn,
		deviceMAC:  deviceMAC,
		tools:      make(map[string]providers.ToolDefinition),
		logger:     logger,
		httpClient: resty.New().SetTimeout(5 * time.Second),
		healthURL:  healthURL,
	}
	return e, nil
}

// Healthy probes the endpoint's health URL, reporting true when no health
// URL is configured.
func (e *MCPEndpointExecutor) Healthy(ctx context.Context) bool {
	if e.healthURL == "" {
		return true
	}
	resp, err := e.httpClient.R().SetContext(ctx).Get(e.healthURL)
	return err == nil && resp.IsSuccess()
}

// Discover runs the list handshake and populates the tool table.
func (e *MCPEndpointExecutor) Discover() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	id := e.nextID
	e.nextID++
	req := map[string]interface{}{"jsonrpc": "2.0", "id": id, "method": "tools/list"}
	if err := e.conn.WriteJSON(req); err != nil {
		return fmt.Errorf("tools: mcp endpoint list request: %w", err)
	}

	var resp struct {
		Result struct {
			Tools []struct {
				Name        string          `json:"name"`
				Description string          `json:"description"`
				InputSchema json.RawMessage `json:"inputSchema"`
			} `json:"tools"`
		} `json:"result"`
	}
	if err := e.conn.ReadJSON(&resp); err != nil {
		return fmt.Errorf("tools: mcp endpoint list response: %w", err)
	}

	for _, t := range resp.Result.Tools {
		e.tools[t.Name] = providers.ToolDefinition{
			Name:        t.Name,
			Description: t.Description,
			JSONSchema:  string(t.InputSchema),
			Backend:     providers.BackendMCPEndpoint,
		}
	}
	return nil
}

func (e *MCPEndpointExecutor) GetTools() map[string]providers.ToolDefinition {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make(map[string]providers.ToolDefinition, len(e.tools))
	for k, v := range e.tools {
		out[k] = v
	}
	return out
}

func (e *MCPEndpointExecutor) HasTool(name string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.tools[name]
	return ok
}

func (e *MCPEndpointExecutor) Execute(_ context.Context, _ interface{}, name string, args map[string]interface{}) (ActionResponse, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.tools[name]; !ok {
		return ActionResponse{Action: ActionNotFound, Response: fmt.Sprintf("mcp endpoint tool %q not found", name)}, nil
	}

	taggedArgs := make(map[string]interface{}, len(args)+1)
	for k, v := range args {
		taggedArgs[k] = v
	}
	taggedArgs["device_mac"] = e.deviceMAC

	id := e.nextID
	e.nextID++
	req := map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      id,
		"method":  "tools/call",
		"params":  map[string]interface{}{"name": name, "arguments": taggedArgs},
	}
	if err := e.conn.WriteJSON(req); err != nil {
		return ActionResponse{Action: ActionError, Response: err.Error()}, nil
	}

	var resp struct {
		Result json.RawMessage `json:"result"`
		Error  *struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := e.conn.ReadJSON(&resp); err != nil {
		return ActionResponse{Action: ActionError, Response: err.Error()}, nil
	}
	if resp.Error != nil {
		return ActionResponse{Action: ActionError, Response: resp.Error.Message}, nil
	}
	return ActionResponse{Action: ActionReqLLM, Response: string(resp.Result)}, nil
}

// Close releases the underlying WebSocket connection.
func (e *MCPEndpointExecutor) Close() error {
	return e.conn.Close()
}
