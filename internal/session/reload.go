// Copyright (c) 2023-2026 VoiceGateway Authors
//
// Licensed under GPL-2.0 with VoiceGateway Additional Terms.
// See LICENSE.md for usage terms.

package session

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Reload re-resolves the session's AgentBinding and provider adapters in
// place, per spec.md §4.6. It must not interleave with an in-flight LLM
// turn: reload sets client-abort first (aborting any turn currently
// streaming) before swapping adapters, then clears it once the new set is
// live. On resolution failure the previous adapter set is left installed
// — reload never leaves a session with no adapters at all.
func (s *Session) Reload(ctx context.Context, agentID uuid.UUID) error {
	if !s.reloading.CompareAndSwap(false, true) {
		return fmt.Errorf("session %s: reload already in progress", s.id)
	}
	defer s.reloading.Store(false)

	wasAborted := s.ClientAbort()
	s.SetClientAbort(true)
	defer func() {
		if !wasAborted {
			s.SetClientAbort(false)
		}
	}()

	binding, err := s.bindingResolver.Resolve(ctx, agentID)
	if err != nil {
		return fmt.Errorf("session %s: reload: resolve binding: %w", s.id, err)
	}

	var adapters adapterSet
	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() (err error) { adapters.vad, err = s.providerResolver.ResolveVAD(gCtx, binding); return })
	g.Go(func() (err error) { adapters.asr, err = s.providerResolver.ResolveASR(gCtx, binding); return })
	g.Go(func() (err error) { adapters.llm, err = s.providerResolver.ResolveLLM(gCtx, binding); return })
	g.Go(func() (err error) { adapters.tts, err = s.providerResolver.ResolveTTS(gCtx, binding); return })
	g.Go(func() (err error) { adapters.memory, err = s.providerResolver.ResolveMemory(gCtx, binding); return })
	g.Go(func() (err error) { adapters.intent, err = s.providerResolver.ResolveIntent(gCtx, binding); return })
	g.Go(func() (err error) { adapters.voiceprint, err = s.providerResolver.ResolveVoiceprint(gCtx, binding); return })

	if err := g.Wait(); err != nil {
		return fmt.Errorf("session %s: reload: resolve adapters: %w", s.id, err)
	}

	s.mu.Lock()
	s.binding = binding
	s.adapters = adapters
	s.dialogue.SetSystem(composeSystemPrompt(binding))
	s.mu.Unlock()

	s.logger.Infof("session %s: adapters reloaded for agent %s", s.id, binding.AgentID)
	return nil
}
