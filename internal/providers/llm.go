// Copyright (c) 2023-2026 VoiceGateway Authors
//
// Licensed under GPL-2.0 with VoiceGateway Additional Terms.
// See LICENSE.md for usage terms.

package providers

import (
	"context"

	"github.com/rapidaai/voicegateway/internal/dialogue"
)

// CompletionRequest carries everything an LLM adapter needs to produce a
// streamed response for one turn.
type CompletionRequest struct {
	View  dialogue.View
	Tools []ToolDefinition

	// Depth is the tool re-invocation depth of this call (0 for the
	// user-initiated turn, N+1 for each subsequent REQLLM round).
	Depth int
}

// LLMChunk is one unit from a streamed completion. A chunk may carry text,
// a batch of tool calls, or both; FinishReason is set only on the terminal
// chunk.
type LLMChunk struct {
	Text         string
	ToolCalls    []ToolCall
	FinishReason string // "", "stop", "tool_calls", "length"
}

// LLM streams token completions for the dialogue view, optionally
// surfacing tool calls the dispatcher must execute.
type LLM interface {
	// StreamCompletion begins a streamed completion. The returned channel
	// is closed when the stream ends (naturally, on error, or when ctx is
	// cancelled — cancellation is how client-abort propagates).
	StreamCompletion(ctx context.Context, req CompletionRequest) (<-chan LLMChunk, error)
}
