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

	mcpclient "github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/rapidaai/voicegateway/internal/logging"
	"github.com/rapidaai/voicegateway/internal/providers"
)

const (
	serverMCPMaxAttempts = 3
	serverMCPBackoff     = 2 * time.Second
)

// ServerMCPManager multiplexes one or more out-of-process MCP servers
// launched per session, presenting their union tool table through a
// single Executor with a reconnect-and-retry policy per call.
type ServerMCPManager struct {
	mu      sync.RWMutex
	clients map[string]*mcpclient.Client // keyed by server name
	tools   map[string]providers.ToolDefinition
	owner   map[string]string // tool name -> server name
	logger  logging.Logger
}

// NewServerMCPManager returns an empty manager; call Connect for each
// configured MCP server.
func NewServerMCPManager(logger logging.Logger) *ServerMCPManager {
	return &ServerMCPManager{
		clients: make(map[string]*mcpclient.Client),
		tools:   make(map[string]providers.ToolDefinition),
		owner:   make(map[string]string),
		logger:  logger,
	}
}

// Connect launches (or attaches to) the named MCP server via the given
// already-constructed client, runs the initialize/list handshake, and
// merges its tools into the union table.
func (m *ServerMCPManager) Connect(ctx context.Context, serverName string, client *mcpclient.Client) error {
	if _, err := client.Initialize(ctx, mcp.InitializeRequest{
		Params: mcp.InitializeParams{
			ProtocolVersion: mcp.LATEST_PROTOCOL_VERSION,
			ClientInfo: mcp.Implementation{
				Name:    "voicegateway",
				Version: "1.0.0",
			},
		},
	}); err != nil {
		return fmt.Errorf("tools: mcp initialize %q: %w", serverName, err)
	}

	listed, err := client.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		return fmt.Errorf("tools: mcp list_tools %q: %w", serverName, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.clients[serverName] = client
	for _, t := range listed.Tools {
		schema, _ := json.Marshal(t.InputSchema)
		m.tools[t.Name] = providers.ToolDefinition{
			Name:        t.Name,
			Description: t.Description,
			JSONSchema:  string(schema),
			Backend:     providers.BackendServerMCP,
		}
		m.owner[t.Name] = serverName
	}
	return nil
}

func (m *ServerMCPManager) GetTools() map[string]providers.ToolDefinition {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]providers.ToolDefinition, len(m.tools))
	for k, v := range m.tools {
		out[k] = v
	}
	return out
}

func (m *ServerMCPManager) HasTool(name string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.tools[name]
	return ok
}

// Execute calls name on its owning MCP server, retrying up to
// serverMCPMaxAttempts times with serverMCPBackoff between attempts on
// transport failure.
func (m *ServerMCPManager) Execute(ctx context.Context, _ interface{}, name string, args map[string]interface{}) (ActionResponse, error) {
	m.mu.RLock()
	serverName, ok := m.owner[name]
	client := m.clients[serverName]
	m.mu.RUnlock()
	if !ok || client == nil {
		return ActionResponse{Action: ActionNotFound, Response: fmt.Sprintf("mcp tool %q not found", name)}, nil
	}

	var lastErr error
	for attempt := 1; attempt <= serverMCPMaxAttempts; attempt++ {
		result, err := client.CallTool(ctx, mcp.CallToolRequest{
			Params: mcp.CallToolParams{Name: name, Arguments: args},
		})
		if err == nil {
			return ActionResponse{Action: ActionReqLLM, Response: renderMCPResult(result)}, nil
		}
		lastErr = err
		m.logger.Warnw("server mcp call failed, retrying", "tool", name, "server", serverName, "attempt", attempt, "error", err)

		if attempt < serverMCPMaxAttempts {
			select {
			case <-ctx.Done():
				return ActionResponse{}, ctx.Err()
			case <-time.After(serverMCPBackoff):
			}
		}
	}
	return ActionResponse{Action: ActionError, Response: lastErr.Error()}, nil
}

func renderMCPResult(result *mcp.CallToolResult) string {
	if result == nil {
		return ""
	}
	var out string
	for _, c := range result.Content {
		if tc, ok := c.(mcp.TextContent); ok {
			out += tc.Text
		}
	}
	return out
}
