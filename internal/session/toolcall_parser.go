// Copyright (c) 2023-2026 VoiceGateway Authors
//
// Licensed under GPL-2.0 with VoiceGateway Additional Terms.
// See LICENSE.md for usage terms.

package session

import (
	"encoding/json"
	"strings"

	"github.com/google/uuid"

	"github.com/rapidaai/voicegateway/internal/providers"
)

// ToolCallParser is the single normalized parser the REDESIGN FLAG in
// spec.md §9 calls for: it consumes an LLM token stream regardless of
// whether the driver surfaces OpenAI-shape structured tool_calls chunks
// or inline `<tool_call>{...}</tool_call>` JSON embedded in the text,
// and emits one normalized event shape either way.
type ToolCallParser struct {
	buf string
}

// NewToolCallParser returns a fresh parser for one LLM turn.
func NewToolCallParser() *ToolCallParser {
	return &ToolCallParser{}
}

// ParseResult is what one Feed call yields: prose text with any inline
// tool-call tags stripped, plus every tool call recognized so far
// (structured or inline).
type ParseResult struct {
	Text      string
	ToolCalls []providers.ToolCall
}

const (
	toolCallOpenTag  = "<tool_call>"
	toolCallCloseTag = "</tool_call>"
)

// Feed processes one streamed chunk. Structured tool calls pass through
// unchanged; inline tags are extracted as they complete, and a trailing
// partial open-tag prefix is held back until a later Feed or Flush
// resolves it, the same incremental-boundary approach internal/segmenter
// uses for sentence punctuation.
func (p *ToolCallParser) Feed(chunk providers.LLMChunk) ParseResult {
	result := ParseResult{}
	if len(chunk.ToolCalls) > 0 {
		result.ToolCalls = append(result.ToolCalls, chunk.ToolCalls...)
	}

	p.buf += chunk.Text

	var textOut strings.Builder
	for {
		openIdx := strings.Index(p.buf, toolCallOpenTag)
		if openIdx < 0 {
			break
		}
		closeIdx := strings.Index(p.buf[openIdx:], toolCallCloseTag)
		if closeIdx < 0 {
			// Tag opened but not yet closed: emit everything before it and
			// hold the rest back, including the open tag itself, until a
			// later Feed completes it or Flush releases it verbatim.
			textOut.WriteString(p.buf[:openIdx])
			p.buf = p.buf[openIdx:]
			result.Text = textOut.String()
			return result
		}
		closeIdx += openIdx

		textOut.WriteString(p.buf[:openIdx])
		inner := p.buf[openIdx+len(toolCallOpenTag) : closeIdx]
		if call, ok := parseInlineToolCall(inner); ok {
			result.ToolCalls = append(result.ToolCalls, call)
		}
		p.buf = p.buf[closeIdx+len(toolCallCloseTag):]
	}

	safeLen := len(p.buf)
	for i := 1; i <= len(toolCallOpenTag) && i <= len(p.buf); i++ {
		if strings.HasSuffix(p.buf, toolCallOpenTag[:i]) {
			safeLen = len(p.buf) - i
		}
	}
	textOut.WriteString(p.buf[:safeLen])
	p.buf = p.buf[safeLen:]

	result.Text = textOut.String()
	return result
}

// Flush releases any text still held back at end-of-stream (an
// incomplete tag is emitted verbatim rather than silently dropped).
func (p *ToolCallParser) Flush() string {
	remainder := p.buf
	p.buf = ""
	return remainder
}

type inlineToolCallPayload struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// parseInlineToolCall decodes the JSON body of one `<tool_call>...</tool_call>`
// tag into a normalized providers.ToolCall, minting an id when the
// payload omits one (inline calls rarely carry one; structured calls
// always do).
func parseInlineToolCall(raw string) (providers.ToolCall, bool) {
	var payload inlineToolCallPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return providers.ToolCall{}, false
	}
	if payload.Name == "" {
		return providers.ToolCall{}, false
	}

	id := payload.ID
	if id == "" {
		id = uuid.New().String()
	}
	args := string(payload.Arguments)
	if args == "" {
		args = "{}"
	}
	return providers.ToolCall{ID: id, Name: payload.Name, ArgsJSON: args}, true
}
