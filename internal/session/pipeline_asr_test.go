// Copyright (c) 2023-2026 VoiceGateway Authors
//
// Licensed under GPL-2.0 with VoiceGateway Additional Terms.
// See LICENSE.md for usage terms.

package session

import (
	"context"
	"testing"

	"github.com/rapidaai/voicegateway/internal/providers"
)

func TestVadVotingWindowMajority(t *testing.T) {
	w := newVadVotingWindow(5)

	if w.Push(true) != true {
		t.Fatal("single true vote in an empty window must be a majority")
	}
	w.Push(true)
	w.Push(false)
	w.Push(false)
	if got := w.Push(false); got != false {
		t.Fatalf("3 false votes out of 5 must not be a majority, got %v", got)
	}
}

func TestReorderBufferReleasesInTimestampOrder(t *testing.T) {
	b := newReorderBuffer(3)

	var released []audioFrame
	released = append(released, b.Push(audioFrame{timestampMs: 60})...)
	released = append(released, b.Push(audioFrame{timestampMs: 0})...)
	released = append(released, b.Push(audioFrame{timestampMs: 120})...)
	released = append(released, b.Push(audioFrame{timestampMs: 180})...)

	if len(released) != 1 || released[0].timestampMs != 0 {
		t.Fatalf("expected the oldest timestamp released first once capacity is exceeded, got %+v", released)
	}

	released = append(released, b.Drain()...)
	for i := 1; i < len(released); i++ {
		if released[i].timestampMs < released[i-1].timestampMs {
			t.Fatalf("frames released out of order: %+v", released)
		}
	}
}

func TestReorderBufferDropsStaleFrame(t *testing.T) {
	b := newReorderBuffer(1)

	if got := b.Push(audioFrame{timestampMs: 100}); len(got) != 0 {
		t.Fatalf("expected the frame held while the buffer is at capacity 1, got %+v", got)
	}
	if got := b.Push(audioFrame{timestampMs: 160}); len(got) != 1 || got[0].timestampMs != 100 {
		t.Fatalf("expected timestamp 100 released once capacity 1 is exceeded, got %+v", got)
	}
	if got := b.Push(audioFrame{timestampMs: 40}); len(got) != 0 {
		t.Fatalf("a frame older than the last released timestamp must be dropped, got %+v", got)
	}
}

// fakeASRStream captures fed frames and yields a single canned result set
// on Close.
type fakeASRStream struct {
	fed     [][]int16
	results chan providers.ASRResult
	final   string
}

func (f *fakeASRStream) Feed(ctx context.Context, pcm []int16) error {
	f.fed = append(f.fed, pcm)
	return nil
}

func (f *fakeASRStream) Results() <-chan providers.ASRResult { return f.results }

func (f *fakeASRStream) Close(ctx context.Context) error {
	f.results <- providers.ASRResult{Text: f.final, Final: true}
	close(f.results)
	return nil
}

func TestDrainTranscriptSkipsLLMOnEmptyFinalText(t *testing.T) {
	conn := newFakeConn()
	s := newTestSession(conn, &fakeProviderResolver{})
	t.Cleanup(s.cancel)

	stream := &fakeASRStream{results: make(chan providers.ASRResult, 1), final: ""}
	stream.Close(context.Background())

	s.drainTranscript(stream)

	if s.dialogue.Len() != 0 {
		t.Fatalf("empty ASR result must not append a user message or invoke the LLM, dialogue has %d messages", s.dialogue.Len())
	}
}

func TestDrainTranscriptInvokesLLMOnNonEmptyFinalText(t *testing.T) {
	conn := newFakeConn()
	s := newTestSession(conn, &fakeProviderResolver{})
	t.Cleanup(s.cancel)

	s.mu.Lock()
	s.adapters.llm = &fakeLLM{chunks: nil}
	s.mu.Unlock()

	stream := &fakeASRStream{results: make(chan providers.ASRResult, 1), final: "turn the lights on"}
	stream.Close(context.Background())

	s.drainTranscript(stream)

	if s.dialogue.Len() == 0 {
		t.Fatal("a non-empty final transcript must append a user message")
	}
}

// fakeLLM streams a fixed set of chunks then closes.
type fakeLLM struct {
	chunks []providers.LLMChunk
}

func (f *fakeLLM) StreamCompletion(ctx context.Context, req providers.CompletionRequest) (<-chan providers.LLMChunk, error) {
	out := make(chan providers.LLMChunk, len(f.chunks))
	for _, c := range f.chunks {
		out <- c
	}
	close(out)
	return out, nil
}
