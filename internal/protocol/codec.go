// Copyright (c) 2023-2026 VoiceGateway Authors
//
// Licensed under GPL-2.0 with VoiceGateway Additional Terms.
// See LICENSE.md for usage terms.

// Package protocol implements the framed binary protocol shared with the
// device (spec §4.1). It is pure and deterministic: no I/O, no logging,
// just encode/decode of the two framing variants the device may speak.
package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// FrameType identifies the payload carried by a frame.
type FrameType uint8

const (
	// FrameTypeAudio carries an Opus audio payload.
	FrameTypeAudio FrameType = 0
	// FrameTypeControl carries a JSON control envelope.
	FrameTypeControl FrameType = 1
)

// Version identifies which framing variant a frame was encoded with.
type Version uint8

const (
	VersionV2 Version = 2
	VersionV3 Version = 3
)

const (
	v2HeaderSize = 16
	v3HeaderSize = 4

	// DefaultFrameDurationMs is the negotiated Opus frame duration used to
	// synthesize timestamps for V3 frames, which carry none on the wire.
	DefaultFrameDurationMs = 60
)

// ErrPayloadTooLarge is returned when a frame header declares a payload
// length that does not fit in the remaining buffer.
var ErrPayloadTooLarge = errors.New("protocol: payload_len exceeds remaining buffer")

// ErrBufferTooShort is returned when a buffer is too small to contain even
// a header of the requested version.
var ErrBufferTooShort = errors.New("protocol: buffer shorter than frame header")

// Frame is the decoded representation of one wire frame, regardless of
// which version encoded it.
type Frame struct {
	Version     Version
	Type        FrameType
	TimestampMs uint32 // for V3, synthesized by the caller (see Clock)
	Payload     []byte
}

// Encode serializes f using the framing variant named by f.Version.
func Encode(f Frame) ([]byte, error) {
	switch f.Version {
	case VersionV2:
		return encodeV2(f)
	case VersionV3:
		return encodeV3(f)
	default:
		return nil, fmt.Errorf("protocol: unsupported version %d", f.Version)
	}
}

func encodeV2(f Frame) ([]byte, error) {
	buf := make([]byte, v2HeaderSize+len(f.Payload))
	binary.BigEndian.PutUint16(buf[0:2], uint16(VersionV2))
	binary.BigEndian.PutUint16(buf[2:4], uint16(f.Type))
	// bytes [4:8] reserved, left zero.
	binary.BigEndian.PutUint32(buf[8:12], f.TimestampMs)
	binary.BigEndian.PutUint32(buf[12:16], uint32(len(f.Payload)))
	copy(buf[16:], f.Payload)
	return buf, nil
}

func encodeV3(f Frame) ([]byte, error) {
	if len(f.Payload) > 0xFFFF {
		return nil, fmt.Errorf("protocol: V3 payload too large for u16 length: %d bytes", len(f.Payload))
	}
	buf := make([]byte, v3HeaderSize+len(f.Payload))
	buf[0] = byte(f.Type)
	buf[1] = 0 // reserved
	binary.BigEndian.PutUint16(buf[2:4], uint16(len(f.Payload)))
	copy(buf[4:], f.Payload)
	return buf, nil
}

// DecodeV2 parses a V2 (16-byte header) frame from buf. It returns the
// number of bytes consumed so callers can advance past the frame when
// decoding a stream of concatenated frames.
func DecodeV2(buf []byte) (Frame, int, error) {
	if len(buf) < v2HeaderSize {
		return Frame{}, 0, ErrBufferTooShort
	}
	version := binary.BigEndian.Uint16(buf[0:2])
	frameType := binary.BigEndian.Uint16(buf[2:4])
	timestamp := binary.BigEndian.Uint32(buf[8:12])
	payloadLen := binary.BigEndian.Uint32(buf[12:16])

	total := v2HeaderSize + int(payloadLen)
	if payloadLen > uint32(len(buf)-v2HeaderSize) {
		return Frame{}, 0, ErrPayloadTooLarge
	}

	payload := make([]byte, payloadLen)
	copy(payload, buf[v2HeaderSize:total])

	return Frame{
		Version:     Version(version),
		Type:        FrameType(frameType),
		TimestampMs: timestamp,
		Payload:     payload,
	}, total, nil
}

// DecodeV3 parses a V3 (4-byte header) frame from buf. V3 carries no
// timestamp on the wire; the caller must synthesize one (see Clock).
func DecodeV3(buf []byte) (Frame, int, error) {
	if len(buf) < v3HeaderSize {
		return Frame{}, 0, ErrBufferTooShort
	}
	frameType := buf[0]
	payloadLen := binary.BigEndian.Uint16(buf[2:4])

	total := v3HeaderSize + int(payloadLen)
	if int(payloadLen) > len(buf)-v3HeaderSize {
		return Frame{}, 0, ErrPayloadTooLarge
	}

	payload := make([]byte, payloadLen)
	copy(payload, buf[v3HeaderSize:total])

	return Frame{
		Version: VersionV3,
		Type:    FrameType(frameType),
		Payload: payload,
	}, total, nil
}

// Clock synthesizes V3 timestamps by advancing a per-session counter by the
// negotiated frame duration modulo 2^32, per spec §4.1.
type Clock struct {
	frameDurationMs uint32
	current         uint32
}

// NewClock creates a Clock with the given frame duration (defaults to
// DefaultFrameDurationMs if zero or negative).
func NewClock(frameDurationMs int) *Clock {
	d := uint32(frameDurationMs)
	if frameDurationMs <= 0 {
		d = DefaultFrameDurationMs
	}
	return &Clock{frameDurationMs: d}
}

// Next returns the next synthesized timestamp and advances the counter.
func (c *Clock) Next() uint32 {
	ts := c.current
	c.current += c.frameDurationMs // wraps naturally at 2^32 via uint32 arithmetic
	return ts
}
