// Copyright (c) 2023-2026 VoiceGateway Authors
//
// Licensed under GPL-2.0 with VoiceGateway Additional Terms.
// See LICENSE.md for usage terms.

package providers

import (
	"context"
	"fmt"
)

// Factory constructs one named adapter instance. Concrete vendor SDKs
// (OpenAI, Deepgram, ElevenLabs, ...) are deliberately not wired into this
// package — spec.md treats ASR/LLM/TTS drivers as external, pluggable
// adapters behind the fixed interfaces in this package, so Factory
// closures are registered by cmd/gateway's process wiring instead.
type Factory[T any] func(ctx context.Context, binding AgentBinding) (T, error)

// Registry resolves an AgentBinding's named provider references into live
// adapter instances. It implements internal/session's ProviderResolver by
// structural typing, without internal/providers importing internal/session.
type Registry struct {
	vad        map[string]Factory[VAD]
	asr        map[string]Factory[ASR]
	llm        map[string]Factory[LLM]
	tts        map[string]Factory[TTS]
	memory     map[string]Factory[Memory]
	intent     map[string]Factory[Intent]
	voiceprint map[string]Factory[Voiceprint]
}

// NewRegistry returns an empty Registry; call the Register* methods to
// install factories before serving traffic.
func NewRegistry() *Registry {
	return &Registry{
		vad:        make(map[string]Factory[VAD]),
		asr:        make(map[string]Factory[ASR]),
		llm:        make(map[string]Factory[LLM]),
		tts:        make(map[string]Factory[TTS]),
		memory:     make(map[string]Factory[Memory]),
		intent:     make(map[string]Factory[Intent]),
		voiceprint: make(map[string]Factory[Voiceprint]),
	}
}

func (r *Registry) RegisterVAD(name string, f Factory[VAD])               { r.vad[name] = f }
func (r *Registry) RegisterASR(name string, f Factory[ASR])               { r.asr[name] = f }
func (r *Registry) RegisterLLM(name string, f Factory[LLM])               { r.llm[name] = f }
func (r *Registry) RegisterTTS(name string, f Factory[TTS])               { r.tts[name] = f }
func (r *Registry) RegisterMemory(name string, f Factory[Memory])         { r.memory[name] = f }
func (r *Registry) RegisterIntent(name string, f Factory[Intent])         { r.intent[name] = f }
func (r *Registry) RegisterVoiceprint(name string, f Factory[Voiceprint]) { r.voiceprint[name] = f }

func (r *Registry) ResolveVAD(ctx context.Context, binding AgentBinding) (VAD, error) {
	return lookup(r.vad, binding.VADProviderName, ctx, binding)
}

func (r *Registry) ResolveASR(ctx context.Context, binding AgentBinding) (ASR, error) {
	return lookup(r.asr, binding.ASRProviderName, ctx, binding)
}

func (r *Registry) ResolveLLM(ctx context.Context, binding AgentBinding) (LLM, error) {
	return lookup(r.llm, binding.LLMProviderName, ctx, binding)
}

func (r *Registry) ResolveTTS(ctx context.Context, binding AgentBinding) (TTS, error) {
	return lookup(r.tts, binding.TTSProviderName, ctx, binding)
}

func (r *Registry) ResolveMemory(ctx context.Context, binding AgentBinding) (Memory, error) {
	if binding.MemoryProviderName == "" {
		return nil, nil
	}
	return lookup(r.memory, binding.MemoryProviderName, ctx, binding)
}

func (r *Registry) ResolveIntent(ctx context.Context, binding AgentBinding) (Intent, error) {
	if binding.IntentProviderName == "" {
		return nil, nil
	}
	return lookup(r.intent, binding.IntentProviderName, ctx, binding)
}

func (r *Registry) ResolveVoiceprint(ctx context.Context, binding AgentBinding) (Voiceprint, error) {
	// Voiceprint has no binding field of its own (spec.md doesn't name one);
	// a deployment either registers exactly one default or leaves it unset.
	if len(r.voiceprint) == 0 {
		return nil, nil
	}
	for _, f := range r.voiceprint {
		return f(ctx, binding)
	}
	return nil, nil
}

func lookup[T any](m map[string]Factory[T], name string, ctx context.Context, binding AgentBinding) (T, error) {
	var zero T
	f, ok := m[name]
	if !ok {
		return zero, fmt.Errorf("providers: no factory registered for %q", name)
	}
	return f(ctx, binding)
}
