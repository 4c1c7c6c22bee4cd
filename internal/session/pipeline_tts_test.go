// Copyright (c) 2023-2026 VoiceGateway Authors
//
// Licensed under GPL-2.0 with VoiceGateway Additional Terms.
// See LICENSE.md for usage terms.

package session

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/rapidaai/voicegateway/internal/providers"
)

// fakeTTS yields one frame per call to Synthesize, optionally blocking
// until a release channel is closed so a test can interleave an abort.
type fakeTTS struct {
	release chan struct{}
}

func (f *fakeTTS) Synthesize(ctx context.Context, text string) (<-chan providers.TTSFrame, error) {
	out := make(chan providers.TTSFrame, 1)
	go func() {
		defer close(out)
		if f.release != nil {
			select {
			case <-f.release:
			case <-ctx.Done():
				return
			}
		}
		out <- providers.TTSFrame{Opus: []byte(text)}
	}()
	return out, nil
}

func newSessionWithTTS(t *testing.T, conn *fakeConn, tts providers.TTS) *Session {
	t.Helper()
	s := newTestSession(conn, &fakeProviderResolver{tts: tts})
	t.Cleanup(s.cancel)

	s.mu.Lock()
	s.adapters.tts = tts
	s.mu.Unlock()

	s.wg.Add(1)
	go s.runTTSSynthesis()
	s.wg.Add(1)
	go s.runTTSEgress()

	return s
}

func ttsEnvelopesFrom(conn *fakeConn) []ttsEnvelope {
	var out []ttsEnvelope
	for i := 0; i < conn.writtenCount(); i++ {
		var env ttsEnvelope
		if err := json.Unmarshal(conn.writtenAt(i), &env); err == nil && env.Type == "tts" {
			out = append(out, env)
		}
	}
	return out
}

// TestSingleSentenceTurnEmitsStartAndStop verifies that a lone sentence,
// whose Ordinal is tagged LAST, still produces both a tts.start (from
// isFirst) and a tts.stop (from isLast) control message.
func TestSingleSentenceTurnEmitsStartAndStop(t *testing.T) {
	conn := newFakeConn()
	s := newSessionWithTTS(t, conn, &fakeTTS{})

	turn := &turnState{id: uuid.New()}
	s.enqueueSentence(turn, "Hi there!", true)

	deadline := time.After(time.Second)
	for {
		envs := ttsEnvelopesFrom(conn)
		states := make([]string, len(envs))
		for i, e := range envs {
			states[i] = e.State
		}
		hasStart, hasStop := false, false
		for _, st := range states {
			if st == "start" {
				hasStart = true
			}
			if st == "stop" {
				hasStop = true
			}
		}
		if hasStart && hasStop {
			return
		}
		select {
		case <-deadline:
			t.Fatalf("expected both tts.start and tts.stop, got states %v", states)
		case <-time.After(5 * time.Millisecond):
		}
	}
}

// TestAbortDuringSynthesisSuppressesSentenceEndAndStop verifies that a
// client-abort firing mid-synthesis prevents sentence_end and tts.stop
// from ever being sent.
func TestAbortDuringSynthesisSuppressesSentenceEndAndStop(t *testing.T) {
	release := make(chan struct{})
	conn := newFakeConn()
	s := newSessionWithTTS(t, conn, &fakeTTS{release: release})

	turn := &turnState{id: uuid.New()}
	s.enqueueSentence(turn, "a long sentence that will be interrupted", true)

	// Give synthesizeSentence time to send tts.start and sentence_start,
	// then abort before the fake TTS releases its frame.
	time.Sleep(20 * time.Millisecond)
	s.SetClientAbort(true)
	close(release)

	time.Sleep(50 * time.Millisecond)

	for _, env := range ttsEnvelopesFrom(conn) {
		if env.State == "sentence_end" || env.State == "stop" {
			t.Fatalf("abort must suppress sentence_end/stop, got state %q", env.State)
		}
	}
}
