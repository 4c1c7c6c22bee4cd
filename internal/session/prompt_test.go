// Copyright (c) 2023-2026 VoiceGateway Authors
//
// Licensed under GPL-2.0 with VoiceGateway Additional Terms.
// See LICENSE.md for usage terms.

package session

import (
	"testing"

	"github.com/rapidaai/voicegateway/internal/providers"
)

func TestComposeSystemPromptSubstitutesAllPlaceholders(t *testing.T) {
	binding := providers.AgentBinding{
		PromptTemplate:  "You are {{user_profile}}'s assistant. Location: {{location}}. Weather: {{weather_info}}.",
		UserProfile:     "Alex",
		LocationContext: "Austin",
		WeatherContext:  "sunny, 29C",
	}

	got := composeSystemPrompt(binding)
	want := "You are Alex's assistant. Location: Austin. Weather: sunny, 29C."
	if got != want {
		t.Fatalf("composeSystemPrompt() = %q, want %q", got, want)
	}
}

func TestComposeSystemPromptBlankContextSubstitutesEmpty(t *testing.T) {
	binding := providers.AgentBinding{
		PromptTemplate: "You are a helpful voice assistant. Location: {{location}}.",
	}

	got := composeSystemPrompt(binding)
	want := "You are a helpful voice assistant. Location: ."
	if got != want {
		t.Fatalf("composeSystemPrompt() = %q, want %q", got, want)
	}
}

func TestComposeSystemPromptNoPlaceholdersPassesThrough(t *testing.T) {
	binding := providers.AgentBinding{PromptTemplate: "you are a helpful voice assistant"}

	got := composeSystemPrompt(binding)
	if got != binding.PromptTemplate {
		t.Fatalf("composeSystemPrompt() = %q, want template verbatim %q", got, binding.PromptTemplate)
	}
}
