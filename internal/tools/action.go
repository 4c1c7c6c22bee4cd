// Copyright (c) 2023-2026 VoiceGateway Authors
//
// Licensed under GPL-2.0 with VoiceGateway Additional Terms.
// See LICENSE.md for usage terms.

// Package tools implements the unified tool registry and its five
// executor backends (server plugin, server MCP, device MCP, device IoT,
// remote MCP endpoint).
package tools

import (
	"context"

	"github.com/rapidaai/voicegateway/internal/providers"
)

// Action is the tagged kind of an ActionResponse.
type Action int

const (
	ActionNone Action = iota
	ActionResponseText
	ActionReqLLM
	ActionError
	ActionNotFound
)

func (a Action) String() string {
	switch a {
	case ActionResponseText:
		return "RESPONSE"
	case ActionReqLLM:
		return "REQLLM"
	case ActionError:
		return "ERROR"
	case ActionNotFound:
		return "NOTFOUND"
	default:
		return "NONE"
	}
}

// ActionResponse is the result of one tool execution.
type ActionResponse struct {
	Action   Action
	Response string
}

// Combine folds several ActionResponses from one LLM turn into one,
// following the rule: if any result is ERROR, surface that error;
// otherwise concatenate response text; if any result is REQLLM the
// combined action is REQLLM.
func Combine(responses []ActionResponse) ActionResponse {
	var combined ActionResponse
	var texts []string
	sawReqLLM := false

	for _, r := range responses {
		if r.Action == ActionError {
			return r
		}
		if r.Action == ActionReqLLM {
			sawReqLLM = true
		}
		if r.Response != "" {
			texts = append(texts, r.Response)
		}
	}

	combined.Action = ActionNone
	if sawReqLLM {
		combined.Action = ActionReqLLM
	} else if len(texts) > 0 {
		combined.Action = ActionResponseText
	}

	joined := ""
	for i, t := range texts {
		if i > 0 {
			joined += "\n"
		}
		joined += t
	}
	combined.Response = joined
	return combined
}

// Executor is implemented by each backend. Execute receives the session
// handle as an opaque interface{} so backends needing to inspect/modify
// session state (e.g. a role-change plugin) can type-assert it, without
// this package importing internal/session and creating a cycle.
type Executor interface {
	GetTools() map[string]providers.ToolDefinition
	HasTool(name string) bool
	Execute(ctx context.Context, session interface{}, name string, args map[string]interface{}) (ActionResponse, error)
}
