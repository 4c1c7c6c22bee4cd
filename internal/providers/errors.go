// Copyright (c) 2023-2026 VoiceGateway Authors
//
// Licensed under GPL-2.0 with VoiceGateway Additional Terms.
// See LICENSE.md for usage terms.

// Package providers defines the adapter interfaces a Session depends on
// for VAD, ASR, LLM, TTS, Memory, Intent, and Voiceprint work, plus the
// typed error variants adapters must surface instead of embedding status
// codes in error strings.
package providers

import "fmt"

// ErrorKind classifies a provider failure so callers can branch on it
// without inspecting the error message.
type ErrorKind int

const (
	// KindOther covers provider failures that don't fit a more specific
	// kind below.
	KindOther ErrorKind = iota
	KindTransport
	KindAuth
	KindRateLimited
	KindTimeout
)

func (k ErrorKind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindAuth:
		return "auth"
	case KindRateLimited:
		return "rate_limited"
	case KindTimeout:
		return "timeout"
	default:
		return "other"
	}
}

// Error is the single error type every provider adapter returns for
// operational failures, replacing the source's string-matching on HTTP
// status codes embedded in error messages.
type Error struct {
	Kind     ErrorKind
	Provider string // e.g. "asr", "llm", "tts" — the adapter concern, not a vendor name
	Op       string // e.g. "StreamTranscript", "Synthesize"
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("providers: %s.%s: %s: %v", e.Provider, e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewTransportError wraps err as a transport-level provider failure
// (connection reset, 5xx, DNS, etc).
func NewTransportError(provider, op string, err error) *Error {
	return &Error{Kind: KindTransport, Provider: provider, Op: op, Err: err}
}

// NewAuthError wraps err as an authentication/authorization failure
// (401/403, expired credential).
func NewAuthError(provider, op string, err error) *Error {
	return &Error{Kind: KindAuth, Provider: provider, Op: op, Err: err}
}

// NewRateLimitedError wraps err as a rate-limit rejection (429).
func NewRateLimitedError(provider, op string, err error) *Error {
	return &Error{Kind: KindRateLimited, Provider: provider, Op: op, Err: err}
}

// NewTimeoutError wraps err as a deadline/timeout failure.
func NewTimeoutError(provider, op string, err error) *Error {
	return &Error{Kind: KindTimeout, Provider: provider, Op: op, Err: err}
}

// NewOtherError wraps err when no more specific kind applies.
func NewOtherError(provider, op string, err error) *Error {
	return &Error{Kind: KindOther, Provider: provider, Op: op, Err: err}
}

// IsKind reports whether err is a *Error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	pe, ok := err.(*Error)
	return ok && pe.Kind == kind
}
