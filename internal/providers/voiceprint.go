// Copyright (c) 2023-2026 VoiceGateway Authors
//
// Licensed under GPL-2.0 with VoiceGateway Additional Terms.
// See LICENSE.md for usage terms.

package providers

import "context"

// Voiceprint identifies a speaker from a short audio sample, used to
// personalize the dialogue view (e.g. greet a recognized household
// member by name) without requiring the device to assert identity.
type Voiceprint interface {
	// Identify returns a speaker identifier, or "" if the sample does not
	// match a known voiceprint with sufficient confidence.
	Identify(ctx context.Context, pcm []int16) (speakerID string, err error)
}
