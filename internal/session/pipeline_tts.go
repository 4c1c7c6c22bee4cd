// Copyright (c) 2023-2026 VoiceGateway Authors
//
// Licensed under GPL-2.0 with VoiceGateway Additional Terms.
// See LICENSE.md for usage terms.

package session

import (
	"time"

	"github.com/gorilla/websocket"

	"github.com/rapidaai/voicegateway/internal/protocol"
)

// ttsEnvelope is the outbound `tts` control envelope of spec.md §6.
type ttsEnvelope struct {
	Type       string `json:"type"`
	State      string `json:"state"`
	Text       string `json:"text,omitempty"`
	SentenceID string `json:"sentence_id,omitempty"`
}

// runTTSSynthesis is the TTS text-pipeline worker: it drains ttsTextIn in
// order, one sentence at a time, so that the FIRST work unit's audio is
// always generated (and therefore queued for egress) before any MIDDLE
// or LAST unit sharing its sentence-id, per spec.md §5's ordering
// guarantee.
func (s *Session) runTTSSynthesis() {
	defer s.wg.Done()

	for {
		select {
		case <-s.ctx.Done():
			return
		case job, ok := <-s.ttsTextIn:
			if !ok {
				return
			}
			s.synthesizeSentence(job)
		}
	}
}

// synthesizeSentence converts one text sentence to Opus frames and
// queues them for egress, sandwiched between the `sentence_start` /
// `sentence_end` control messages and — for the turn's first and last
// work units — the `tts.start` / `tts.stop` sentinels. If client-abort
// fires mid-stream, the remaining frames are dropped and neither
// `sentence_end` nor `tts.stop` is sent — abort pre-empts them, per
// spec.md's barge-in scenario.
func (s *Session) synthesizeSentence(job ttsTextJob) {
	s.mu.Lock()
	tts := s.adapters.tts
	s.mu.Unlock()
	if tts == nil || s.ClientAbort() {
		return
	}

	if job.isFirst {
		_ = s.sendControl(ttsEnvelope{Type: "tts", State: "start"})
		s.isSpeaking.Store(true)
	}
	_ = s.sendControl(ttsEnvelope{Type: "tts", State: "sentence_start", Text: job.sentence.Text, SentenceID: job.sentence.ID.String()})

	frames, err := tts.Synthesize(s.ctx, job.sentence.Text)
	if err != nil {
		s.logger.Warnw("tts synthesis failed", "session", s.id, "error", err)
	} else {
		for frame := range frames {
			if s.ClientAbort() {
				s.flushTTS()
				s.isSpeaking.Store(false)
				return
			}
			select {
			case s.ttsAudioOut <- ttsAudioJob{sentenceID: job.sentence.ID, frame: frame, isFirst: job.isFirst, isLast: job.isLast}:
			case <-s.ctx.Done():
				return
			}
		}
	}

	if s.ClientAbort() {
		return
	}
	_ = s.sendControl(ttsEnvelope{Type: "tts", State: "sentence_end", SentenceID: job.sentence.ID.String()})
	if job.isLast {
		_ = s.sendControl(ttsEnvelope{Type: "tts", State: "stop"})
		s.isSpeaking.Store(false)
	}
}

// runTTSEgress is the TTS audio-egress worker: it paces queued Opus
// frames out over the wire at protocol.DefaultFrameDurationMs (60 ms) and
// discards everything queued the instant a flush signal arrives, so a
// barge-in silences the device within one frame-duration. A frame duration
// negotiated in `hello` does not change this pacing.
func (s *Session) runTTSEgress() {
	defer s.wg.Done()

	interval := time.Duration(protocol.DefaultFrameDurationMs) * time.Millisecond
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var pending []ttsAudioJob

	for {
		select {
		case <-s.ctx.Done():
			return

		case <-s.flushCh:
			pending = pending[:0]

		case <-ticker.C:
			if len(pending) == 0 {
				continue
			}
			job := pending[0]
			pending = pending[1:]
			if err := s.conn.WriteMessage(websocket.BinaryMessage, job.frame.Opus); err != nil {
				s.logger.Warnw("failed to write audio frame", "session", s.id, "error", err)
			}

		case job := <-s.ttsAudioOut:
			pending = append(pending, job)
		}
	}
}
