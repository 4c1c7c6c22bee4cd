// Copyright (c) 2023-2026 VoiceGateway Authors
//
// Licensed under GPL-2.0 with VoiceGateway Additional Terms.
// See LICENSE.md for usage terms.

package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Round-trip law
// =============================================================================

func TestRoundTripV2(t *testing.T) {
	cases := []Frame{
		{Version: VersionV2, Type: FrameTypeAudio, TimestampMs: 0, Payload: []byte{}},
		{Version: VersionV2, Type: FrameTypeAudio, TimestampMs: 60, Payload: []byte{1, 2, 3, 4}},
		{Version: VersionV2, Type: FrameTypeControl, TimestampMs: 120, Payload: []byte(`{"type":"hello"}`)},
	}
	for _, f := range cases {
		encoded, err := Encode(f)
		require.NoError(t, err)

		decoded, n, err := DecodeV2(encoded)
		require.NoError(t, err)
		assert.Equal(t, len(encoded), n)
		assert.Equal(t, f.Version, decoded.Version)
		assert.Equal(t, f.Type, decoded.Type)
		assert.Equal(t, f.TimestampMs, decoded.TimestampMs)
		assert.Equal(t, f.Payload, decoded.Payload)
	}
}

func TestRoundTripV3(t *testing.T) {
	cases := []Frame{
		{Version: VersionV3, Type: FrameTypeAudio, Payload: []byte{}},
		{Version: VersionV3, Type: FrameTypeAudio, Payload: []byte{9, 8, 7}},
		{Version: VersionV3, Type: FrameTypeControl, Payload: []byte(`{"type":"ping"}`)},
	}
	for _, f := range cases {
		encoded, err := Encode(f)
		require.NoError(t, err)

		decoded, n, err := DecodeV3(encoded)
		require.NoError(t, err)
		assert.Equal(t, len(encoded), n)
		assert.Equal(t, f.Type, decoded.Type)
		assert.Equal(t, f.Payload, decoded.Payload)
	}
}

// TestV3EmptyPayloadAccepted covers the boundary case called out alongside
// the framing rules: a V3 frame with payload_len = 0 is valid and decodes
// to an empty, non-nil audio payload rather than being rejected.
func TestV3EmptyPayloadAccepted(t *testing.T) {
	encoded, err := Encode(Frame{Version: VersionV3, Type: FrameTypeAudio, Payload: nil})
	require.NoError(t, err)
	assert.Equal(t, v3HeaderSize, len(encoded))

	decoded, n, err := DecodeV3(encoded)
	require.NoError(t, err)
	assert.Equal(t, v3HeaderSize, n)
	assert.Equal(t, FrameTypeAudio, decoded.Type)
	assert.Len(t, decoded.Payload, 0)
}

// =============================================================================
// Concatenated stream decoding
// =============================================================================

func TestDecodeV2ConcatenatedStream(t *testing.T) {
	f1 := Frame{Version: VersionV2, Type: FrameTypeAudio, TimestampMs: 0, Payload: []byte{1, 2, 3}}
	f2 := Frame{Version: VersionV2, Type: FrameTypeAudio, TimestampMs: 60, Payload: []byte{4, 5}}

	e1, err := Encode(f1)
	require.NoError(t, err)
	e2, err := Encode(f2)
	require.NoError(t, err)

	stream := append(append([]byte{}, e1...), e2...)

	d1, n1, err := DecodeV2(stream)
	require.NoError(t, err)
	assert.Equal(t, f1.Payload, d1.Payload)

	d2, n2, err := DecodeV2(stream[n1:])
	require.NoError(t, err)
	assert.Equal(t, f2.Payload, d2.Payload)
	assert.Equal(t, len(stream), n1+n2)
}

// =============================================================================
// Malformed input
// =============================================================================

func TestDecodeV2RejectsOversizedPayloadLen(t *testing.T) {
	buf := make([]byte, v2HeaderSize)
	buf[12], buf[13], buf[14], buf[15] = 0, 0, 0xFF, 0xFF // declares a payload far larger than buffer
	_, _, err := DecodeV2(buf)
	assert.ErrorIs(t, err, ErrPayloadTooLarge)
}

func TestDecodeV3RejectsOversizedPayloadLen(t *testing.T) {
	buf := make([]byte, v3HeaderSize)
	buf[2], buf[3] = 0xFF, 0xFF
	_, _, err := DecodeV3(buf)
	assert.ErrorIs(t, err, ErrPayloadTooLarge)
}

func TestDecodeRejectsBufferShorterThanHeader(t *testing.T) {
	_, _, err := DecodeV2([]byte{1, 2, 3})
	assert.ErrorIs(t, err, ErrBufferTooShort)

	_, _, err = DecodeV3([]byte{1})
	assert.ErrorIs(t, err, ErrBufferTooShort)
}

// =============================================================================
// Clock
// =============================================================================

func TestClockAdvancesByFrameDuration(t *testing.T) {
	c := NewClock(20)
	assert.Equal(t, uint32(0), c.Next())
	assert.Equal(t, uint32(20), c.Next())
	assert.Equal(t, uint32(40), c.Next())
}

func TestClockDefaultsWhenNonPositive(t *testing.T) {
	c := NewClock(0)
	assert.Equal(t, uint32(0), c.Next())
	assert.Equal(t, uint32(DefaultFrameDurationMs), c.Next())
}

func TestClockWrapsAtUint32Boundary(t *testing.T) {
	c := &Clock{frameDurationMs: 100}
	c.current = 1<<32 - 50
	first := c.Next()
	assert.Equal(t, uint32(1<<32-50), first)
	second := c.Next()
	assert.Equal(t, uint32(50), second) // wraps via uint32 overflow
}
