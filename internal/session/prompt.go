// Copyright (c) 2023-2026 VoiceGateway Authors
//
// Licensed under GPL-2.0 with VoiceGateway Additional Terms.
// See LICENSE.md for usage terms.

package session

import (
	"strings"

	"github.com/rapidaai/voicegateway/internal/providers"
)

// composeSystemPrompt builds the enhanced system prompt per spec.md §4.6
// step 5: base template + user profile + ambient location/weather
// context. Placeholders absent from the template are simply never
// substituted; a binding field left empty substitutes as "", so an agent
// with no profile or context data still gets a valid prompt (the base
// template verbatim, if it carries no placeholders at all).
func composeSystemPrompt(binding providers.AgentBinding) string {
	replacer := strings.NewReplacer(
		"{{user_profile}}", binding.UserProfile,
		"{{location}}", binding.LocationContext,
		"{{weather_info}}", binding.WeatherContext,
	)
	return replacer.Replace(binding.PromptTemplate)
}
