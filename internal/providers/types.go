// Copyright (c) 2023-2026 VoiceGateway Authors
//
// Licensed under GPL-2.0 with VoiceGateway Additional Terms.
// See LICENSE.md for usage terms.

package providers

import "github.com/google/uuid"

// MCPServerMode selects which MCP servers an Agent Binding exposes to the
// tool dispatcher.
type MCPServerMode string

const (
	MCPServerModeAll      MCPServerMode = "all"
	MCPServerModeSelected MCPServerMode = "selected"
)

// ChatHistoryRetention controls how much of a turn is persisted after the
// fact.
type ChatHistoryRetention int

const (
	ChatHistoryOff       ChatHistoryRetention = 0
	ChatHistoryText      ChatHistoryRetention = 1
	ChatHistoryTextAudio ChatHistoryRetention = 2
)

// ToolReference is either a system function name or a UUID resolving to a
// user-owned tool configuration; which it is is determined once, at
// binding-validation time, not re-checked on every dispatch.
type ToolReference struct {
	Raw      string
	IsSystem bool
	UserToolID uuid.UUID // zero value when IsSystem
}

// AgentBinding is an immutable snapshot describing which providers a
// session should use, constructed from either a database record or a
// static configuration file — the runtime cannot tell which.
type AgentBinding struct {
	AgentID uuid.UUID

	PromptTemplate   string
	ChatHistoryLevel ChatHistoryRetention
	ToolReferences   []ToolReference
	MCPServerMode    MCPServerMode
	SelectedMCPIDs   []uuid.UUID // only meaningful when MCPServerMode == selected

	// UserProfile, LocationContext, and WeatherContext feed the enhanced
	// system prompt (base template + profile + ambient context) a session
	// installs at bind/reload time; each substitutes into PromptTemplate's
	// {{user_profile}}/{{location}}/{{weather_info}} placeholders when
	// present, left blank otherwise.
	UserProfile     string
	LocationContext string
	WeatherContext  string

	VADProviderName    string
	ASRProviderName    string
	LLMProviderName    string
	TTSProviderName    string
	MemoryProviderName string
	IntentProviderName string
}

// ToolDefinition describes one callable tool: its name, its JSON-schema
// description for the LLM, and which backend executes it.
type ToolDefinition struct {
	Name        string
	Description string
	JSONSchema  string // raw JSON Schema document, kept as text like the rest of the tool surface
	Backend     BackendTag
}

// BackendTag tells the dispatcher which executor handles a tool name.
type BackendTag string

const (
	BackendServerPlugin BackendTag = "SERVER_PLUGIN"
	BackendServerMCP    BackendTag = "SERVER_MCP"
	BackendDeviceMCP    BackendTag = "DEVICE_MCP"
	BackendDeviceIoT    BackendTag = "DEVICE_IOT"
	BackendMCPEndpoint  BackendTag = "MCP_ENDPOINT"
)

// ToolCall is a normalized tool invocation request the LLM stream parser
// emits, regardless of whether the source driver spoke OpenAI-shape
// structured calls or inline `<tool_call>{...}</tool_call>` JSON.
type ToolCall struct {
	ID        string
	Name      string
	ArgsJSON  string
}
