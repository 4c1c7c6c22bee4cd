// Copyright (c) 2023-2026 VoiceGateway Authors
//
// Licensed under GPL-2.0 with VoiceGateway Additional Terms.
// See LICENSE.md for usage terms.

package session

import (
	"sync"

	"github.com/rapidaai/voicegateway/internal/protocol"
	"github.com/rapidaai/voicegateway/internal/providers"
)

// VoiceStopHangoverWindows is how many consecutive silent voting windows
// end an utterance. Empirical, per the open question in spec.md §9; kept
// as a named constant rather than inlined so it can be tuned.
const VoiceStopHangoverWindows = 8

// vadVotingWindow decides have_voice by majority vote over a rolling
// window of per-frame VAD classifications.
type vadVotingWindow struct {
	votes []bool
	size  int
}

func newVadVotingWindow(size int) *vadVotingWindow {
	return &vadVotingWindow{size: size}
}

// Push records one frame's classification and returns the window's
// current majority verdict.
func (w *vadVotingWindow) Push(v bool) bool {
	w.votes = append(w.votes, v)
	if len(w.votes) > w.size {
		w.votes = w.votes[1:]
	}
	return w.majority()
}

func (w *vadVotingWindow) majority() bool {
	trueCount := 0
	for _, v := range w.votes {
		if v {
			trueCount++
		}
	}
	return trueCount*2 > len(w.votes)
}

// reorderBuffer holds out-of-order ingress audio frames up to a bounded
// size, releasing frames in ascending timestamp order once the buffer is
// full. Frames older than the last released timestamp are dropped,
// matching spec.md §5's ordering guarantee.
type reorderBuffer struct {
	mu            sync.Mutex
	capacity      int
	buf           []audioFrame
	lastProcessed uint32
	started       bool
	clock         *protocol.Clock
}

func newReorderBuffer(capacity int) *reorderBuffer {
	return &reorderBuffer{capacity: capacity, clock: protocol.NewClock(protocol.DefaultFrameDurationMs)}
}

// Push inserts f in timestamp order, returning every frame now safe to
// release (only once the buffer exceeds capacity, since an earlier frame
// may still arrive until then).
func (b *reorderBuffer) Push(f audioFrame) []audioFrame {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.started && f.timestampMs < b.lastProcessed {
		return nil
	}

	inserted := false
	for i, existing := range b.buf {
		if f.timestampMs < existing.timestampMs {
			b.buf = append(b.buf, audioFrame{})
			copy(b.buf[i+1:], b.buf[i:])
			b.buf[i] = f
			inserted = true
			break
		}
	}
	if !inserted {
		b.buf = append(b.buf, f)
	}

	var released []audioFrame
	for len(b.buf) > b.capacity {
		released = append(released, b.pop())
	}
	return released
}

// Drain releases every remaining buffered frame in order, used when an
// utterance ends and any tail frames must be flushed immediately.
func (b *reorderBuffer) Drain() []audioFrame {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []audioFrame
	for len(b.buf) > 0 {
		out = append(out, b.pop())
	}
	return out
}

func (b *reorderBuffer) pop() audioFrame {
	f := b.buf[0]
	b.buf = b.buf[1:]
	b.lastProcessed = f.timestampMs
	b.started = true
	return f
}

// runASRPipeline is the ingress→ASR stage: every decoded frame goes
// through VAD, a 5-frame majority vote decides have_voice, and frames
// after voice-start feed an open ASR stream until voice-stop closes it
// and hands the final transcript to the LLM stage.
func (s *Session) runASRPipeline() {
	defer s.wg.Done()

	s.mu.Lock()
	vad := s.adapters.vad
	asr := s.adapters.asr
	s.mu.Unlock()

	voting := newVadVotingWindow(VADVotingWindow)
	var (
		voiceActive   bool
		silenceFrames int
		stream        providers.ASRStream
	)

	closeStream := func() {
		if stream == nil {
			return
		}
		if err := stream.Close(s.ctx); err != nil {
			s.logger.Warnw("asr stream close failed", "session", s.id, "error", err)
		}
		s.drainTranscript(stream)
		stream = nil
		vad.Reset()
	}

	process := func(frame audioFrame) {
		hasVoice, err := vad.HasVoice(s.ctx, frame.pcm)
		if err != nil {
			s.logger.Warnw("vad classification failed", "session", s.id, "error", err)
			return
		}
		active := voting.Push(hasVoice)

		switch {
		case active && !voiceActive:
			voiceActive = true
			silenceFrames = 0
			opened, err := asr.OpenStream(s.ctx)
			if err != nil {
				s.logger.Warnw("asr stream open failed", "session", s.id, "error", err)
				voiceActive = false
				return
			}
			stream = opened
		case active && voiceActive:
			silenceFrames = 0
		case !active && voiceActive:
			silenceFrames++
		}

		if voiceActive && stream != nil {
			if err := stream.Feed(s.ctx, frame.pcm); err != nil {
				s.logger.Warnw("asr feed failed", "session", s.id, "error", err)
			}
		}

		if voiceActive && silenceFrames >= VoiceStopHangoverWindows {
			voiceActive = false
			closeStream()
		}
	}

	for {
		select {
		case <-s.ctx.Done():
			closeStream()
			return
		case frame, ok := <-s.audioIn:
			if !ok {
				closeStream()
				return
			}
			for _, released := range s.reorder.Push(frame) {
				process(released)
			}
		}
	}
}

// drainTranscript reads every update off an ASR stream's Results channel
// (interim updates are discarded; only the terminal Final result is
// used), echoes it to the device as an `stt` control message, and hands
// a non-empty transcript to the LLM pipeline stage.
func (s *Session) drainTranscript(stream providers.ASRStream) {
	var final string
	for res := range stream.Results() {
		if res.Final {
			final = res.Text
		}
	}
	if final == "" {
		return
	}

	_ = s.sendControl(sttEnvelope{Type: "stt", Text: final})
	s.handleTranscript(final)
}

type sttEnvelope struct {
	Type string `json:"type"`
	Text string `json:"text"`
}
