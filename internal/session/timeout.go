// Copyright (c) 2023-2026 VoiceGateway Authors
//
// Licensed under GPL-2.0 with VoiceGateway Additional Terms.
// See LICENSE.md for usage terms.

package session

import "time"

// runTimeoutMonitor is the background task of spec.md §4.2: every 10s it
// checks whether the session has been idle past its ceiling (default
// 180s) and, if so, sets the stop-signal and initiates close.
func (s *Session) runTimeoutMonitor() {
	defer s.wg.Done()

	ticker := time.NewTicker(TimeoutCheckInterval)
	defer ticker.Stop()

	ceiling := time.Duration(s.timeoutSeconds) * time.Second

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			if s.idleFor() > ceiling {
				s.logger.Warnw("session idle timeout, closing", "session", s.id, "idle_for", s.idleFor())
				s.Close()
				return
			}
		}
	}
}

// SetTimeout overrides the default 180s idle ceiling; must be called
// before Start.
func (s *Session) SetTimeout(seconds int) {
	if seconds > 0 {
		s.timeoutSeconds = seconds
	}
}
