// Copyright (c) 2023-2026 VoiceGateway Authors
//
// Licensed under GPL-2.0 with VoiceGateway Additional Terms.
// See LICENSE.md for usage terms.

package providers

import (
	"context"

	"github.com/rapidaai/voicegateway/internal/dialogue"
)

// Memory retrieves long-term context for a dialogue turn and persists new
// facts from it. Persistence is invoked from a detached task on close so
// it never blocks the close path on a slow embedding call.
type Memory interface {
	// Retrieve returns a block of memory context relevant to query,
	// suitable for inclusion in dialogue.View.Memory.
	Retrieve(ctx context.Context, agentID string, query string) (string, error)

	// Persist stores the turn's messages for future retrieval. Callers
	// invoke this from a detached goroutine at session close.
	Persist(ctx context.Context, agentID string, messages []dialogue.Message) error
}
