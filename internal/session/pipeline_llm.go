// Copyright (c) 2023-2026 VoiceGateway Authors
//
// Licensed under GPL-2.0 with VoiceGateway Additional Terms.
// See LICENSE.md for usage terms.

package session

import (
	"encoding/json"
	"strings"

	"github.com/google/uuid"

	"github.com/rapidaai/voicegateway/internal/dialogue"
	"github.com/rapidaai/voicegateway/internal/providers"
	"github.com/rapidaai/voicegateway/internal/segmenter"
	"github.com/rapidaai/voicegateway/internal/tools"
)

// turnState threads the sentence-id and first-sentence bookkeeping for
// one assistant turn through however many LLM re-invocations a chain of
// tool calls triggers (spec.md §4.3's "re-invoked with depth+1").
type turnState struct {
	id           uuid.UUID
	query        string
	firstEmitted bool
}

// handleTranscript is the transcript→LLM entry point. An empty ASR
// result must not invoke the LLM, per spec.md §8's boundary behavior.
func (s *Session) handleTranscript(text string) {
	if text == "" {
		return
	}
	if err := s.dialogue.Append(dialogue.NewUserMessage(text)); err != nil {
		s.logger.Warnw("append user message failed", "session", s.id, "error", err)
		return
	}
	s.runLLMTurn(0, &turnState{id: uuid.New(), query: text})
}

// runLLMTurn streams one LLM completion, segments its prose into TTS
// sentences as it arrives, and — on detecting a tool call — flushes the
// partial prose, dispatches every call, records the round in the
// dialogue, and either re-invokes itself at depth+1 (REQLLM) or speaks
// the combined tool response directly.
func (s *Session) runLLMTurn(depth int, turn *turnState) {
	if s.ClientAbort() {
		return
	}

	s.mu.Lock()
	llm := s.adapters.llm
	memory := s.adapters.memory
	binding := s.binding
	s.mu.Unlock()

	memoryText := ""
	if memory != nil && turn.query != "" {
		if m, err := memory.Retrieve(s.ctx, binding.AgentID.String(), turn.query); err == nil {
			memoryText = m
		}
	}

	view := s.dialogue.BuildView(memoryText)
	stream, err := llm.StreamCompletion(s.ctx, providers.CompletionRequest{
		View:  view,
		Tools: toolDefinitionSlice(s.dispatcher.AllTools()),
		Depth: depth,
	})
	if err != nil {
		s.logger.Warnw("llm stream start failed", "session", s.id, "error", err)
		return
	}

	parser := NewToolCallParser()
	seg := segmenter.New()
	var assistantText strings.Builder
	var calls []providers.ToolCall

loop:
	for {
		select {
		case chunk, ok := <-stream:
			if !ok {
				break loop
			}
			parsed := parser.Feed(chunk)
			if parsed.Text != "" {
				assistantText.WriteString(parsed.Text)
				for _, sentence := range seg.Feed(parsed.Text) {
					s.enqueueSentence(turn, sentence, false)
				}
			}
			calls = append(calls, parsed.ToolCalls...)

			// Checkpoint between tokens: client-abort propagates by
			// simply stopping further consumption of the stream; the
			// provider adapter observes ctx cancellation separately.
			if s.ClientAbort() {
				break loop
			}
		case <-s.ctx.Done():
			break loop
		}
	}

	if tail := parser.Flush(); tail != "" {
		assistantText.WriteString(tail)
		for _, sentence := range seg.Feed(tail) {
			s.enqueueSentence(turn, sentence, false)
		}
	}
	finalSentences := seg.Flush()

	if len(calls) == 0 {
		for i, sentence := range finalSentences {
			s.enqueueSentence(turn, sentence, i == len(finalSentences)-1)
		}
		if err := s.dialogue.Append(dialogue.NewAssistantMessage(assistantText.String())); err != nil {
			s.logger.Warnw("append assistant message failed", "session", s.id, "error", err)
		}
		return
	}

	for _, sentence := range finalSentences {
		s.enqueueSentence(turn, sentence, false)
	}
	if err := s.dialogue.Append(dialogue.NewAssistantMessage(assistantText.String())); err != nil {
		s.logger.Warnw("append assistant message failed", "session", s.id, "error", err)
	}

	responses := make([]tools.ActionResponse, 0, len(calls))
	for _, call := range calls {
		if err := s.dialogue.Append(dialogue.NewToolCallMessage(call.ID, call.Name, call.ArgsJSON)); err != nil {
			s.logger.Warnw("append tool call message failed", "session", s.id, "error", err)
		}

		var args map[string]interface{}
		_ = json.Unmarshal([]byte(call.ArgsJSON), &args)

		resp, err := s.dispatcher.Execute(s.ctx, s, call.Name, args)
		if err != nil {
			resp = tools.ActionResponse{Action: tools.ActionError, Response: err.Error()}
		}
		if err := s.dialogue.Append(dialogue.NewToolResponseMessage(call.ID, resp.Response)); err != nil {
			s.logger.Warnw("append tool response message failed", "session", s.id, "error", err)
		}
		responses = append(responses, resp)
	}

	combined := tools.Combine(responses)
	switch combined.Action {
	case tools.ActionReqLLM:
		s.runLLMTurn(depth+1, turn)
	case tools.ActionResponseText, tools.ActionNotFound, tools.ActionError:
		if combined.Response == "" {
			return
		}
		if err := s.dialogue.Append(dialogue.NewAssistantMessage(combined.Response)); err != nil {
			s.logger.Warnw("append assistant message failed", "session", s.id, "error", err)
		}
		spoken := segmenter.SplitAll(combined.Response)
		for i, sentence := range spoken {
			s.enqueueSentence(turn, sentence, i == len(spoken)-1)
		}
	}
}

// enqueueSentence tags text with the turn's shared sentence-id and the
// appropriate FIRST/MIDDLE/LAST ordinal and hands it to the TTS
// text-pipeline worker.
func (s *Session) enqueueSentence(turn *turnState, text string, last bool) {
	isFirst := !turn.firstEmitted
	ordinal := OrdinalMiddle
	switch {
	case last:
		ordinal = OrdinalLast
	case isFirst:
		ordinal = OrdinalFirst
	}
	turn.firstEmitted = true

	job := ttsTextJob{
		sentence: Sentence{ID: turn.id, Ordinal: ordinal, Kind: ContentText, Text: text},
		isFirst:  isFirst,
		isLast:   last,
	}
	select {
	case s.ttsTextIn <- job:
	case <-s.ctx.Done():
	}
}

func toolDefinitionSlice(defs map[string]providers.ToolDefinition) []providers.ToolDefinition {
	out := make([]providers.ToolDefinition, 0, len(defs))
	for _, d := range defs {
		out = append(out, d)
	}
	return out
}
