// Copyright (c) 2023-2026 VoiceGateway Authors
//
// Licensed under GPL-2.0 with VoiceGateway Additional Terms.
// See LICENSE.md for usage terms.

package providers

import (
	"context"
	"testing"
)

type fakeLLMAdapter struct{ name string }

func (f *fakeLLMAdapter) StreamCompletion(ctx context.Context, req CompletionRequest) (<-chan LLMChunk, error) {
	return nil, nil
}

func TestRegistryResolvesRegisteredFactory(t *testing.T) {
	r := NewRegistry()
	r.RegisterLLM("gpt", func(ctx context.Context, binding AgentBinding) (LLM, error) {
		return &fakeLLMAdapter{name: "gpt"}, nil
	})

	binding := AgentBinding{LLMProviderName: "gpt"}
	llm, err := r.ResolveLLM(context.Background(), binding)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	adapter, ok := llm.(*fakeLLMAdapter)
	if !ok || adapter.name != "gpt" {
		t.Fatalf("expected the registered gpt factory's adapter, got %+v", llm)
	}
}

func TestRegistryErrorsOnUnregisteredName(t *testing.T) {
	r := NewRegistry()
	binding := AgentBinding{LLMProviderName: "unknown"}

	if _, err := r.ResolveLLM(context.Background(), binding); err == nil {
		t.Fatal("expected an error resolving an unregistered provider name")
	}
}

func TestRegistryMemoryIsOptional(t *testing.T) {
	r := NewRegistry()
	binding := AgentBinding{} // no MemoryProviderName set

	memory, err := r.ResolveMemory(context.Background(), binding)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if memory != nil {
		t.Fatal("expected a nil Memory adapter when no provider name is configured")
	}
}
