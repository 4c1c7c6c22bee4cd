// Copyright (c) 2023-2026 VoiceGateway Authors
//
// Licensed under GPL-2.0 with VoiceGateway Additional Terms.
// See LICENSE.md for usage terms.

package providers

import "context"

// ASRResult is one update from a streaming transcription session. Interim
// results may arrive repeatedly with Final=false before the terminal
// Final=true result closes the utterance.
type ASRResult struct {
	Text  string
	Final bool
}

// ASRStream is an open streaming transcription session bound to one
// utterance. Implementations that are natively batch (not streaming)
// adapt by buffering frames and emitting a single Final result on Close.
type ASRStream interface {
	// Feed pushes one decoded PCM frame into the stream.
	Feed(ctx context.Context, pcm []int16) error

	// Results returns a channel of incremental transcription updates. It
	// is closed after the Final result or when the stream errors.
	Results() <-chan ASRResult

	// Close flushes any buffered audio and finalizes the transcript. It
	// is safe to call Close without having fed any frames (empty
	// utterance), in which case Results yields a single empty Final
	// result or none at all.
	Close(ctx context.Context) error
}

// ASR opens streaming transcription sessions. One ASR adapter instance is
// constructed per session and reused across the session's utterances.
type ASR interface {
	// OpenStream begins a new utterance. Callers must Close the returned
	// stream before opening another on the same ASR.
	OpenStream(ctx context.Context) (ASRStream, error)
}
