// Copyright (c) 2023-2026 VoiceGateway Authors
//
// Licensed under GPL-2.0 with VoiceGateway Additional Terms.
// See LICENSE.md for usage terms.

package session

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/rapidaai/voicegateway/internal/providers"
)

// memoryPersistTimeout bounds the detached persistence call triggered by
// Close so a slow embedding backend never holds the process open.
const memoryPersistTimeout = 10 * time.Second

// Close is idempotent: per spec.md §4.2 it sets client-abort, tears down
// the adapter set, drains the pipeline queues, closes the socket if still
// open, and persists dialogue memory in a detached task. It must be safe
// to call from any of the session's own goroutines (the receive loop
// calls it on read error, the timeout monitor calls it on idle expiry),
// so it never waits on s.wg itself — callers who need full shutdown to
// have completed call Done separately.
func (s *Session) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}

	s.SetClientAbort(true)

	s.mu.Lock()
	memory := s.adapters.memory
	agentID := s.binding.AgentID
	s.adapters = adapterSet{}
	s.mu.Unlock()

	s.cancel() // unblocks every select watching s.ctx.Done()
	s.flushTTS()
	s.drainQueues()

	err := s.conn.Close()

	if memory != nil {
		go s.persistMemory(memory, agentID)
	}

	return err
}

// drainQueues empties the pipeline channels so a goroutine blocked on a
// full buffer (rather than a ctx.Done alternative) cannot wedge Close.
func (s *Session) drainQueues() {
	for {
		select {
		case <-s.audioIn:
		default:
			goto drainedAudio
		}
	}
drainedAudio:
	for {
		select {
		case <-s.ttsTextIn:
		default:
			goto drainedText
		}
	}
drainedText:
	for {
		select {
		case <-s.ttsAudioOut:
		default:
			return
		}
	}
}

// persistMemory runs detached from the closing session's (already
// cancelled) context so a slow embedding write never blocks Close.
func (s *Session) persistMemory(memory providers.Memory, agentID uuid.UUID) {
	ctx, cancel := context.WithTimeout(context.Background(), memoryPersistTimeout)
	defer cancel()

	if err := memory.Persist(ctx, agentID.String(), s.dialogue.Messages()); err != nil {
		s.logger.Warnw("memory persistence failed on close", "session", s.id, "error", err)
	}
}
