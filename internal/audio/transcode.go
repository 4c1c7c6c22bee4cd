// Copyright (c) 2023-2026 VoiceGateway Authors
//
// Licensed under GPL-2.0 with VoiceGateway Additional Terms.
// See LICENSE.md for usage terms.

package audio

import (
	"fmt"

	"gopkg.in/hraban/opus.v2"
)

// Encoder wraps an Opus encoder configured for the device leg's sample
// rate and channel count.
type Encoder struct {
	enc *opus.Encoder
}

// NewEncoder builds an Encoder for 16kHz mono VoIP-application audio.
func NewEncoder() (*Encoder, error) {
	enc, err := opus.NewEncoder(SampleRate, Channels, opus.AppVoIP)
	if err != nil {
		return nil, fmt.Errorf("audio: new opus encoder: %w", err)
	}
	return &Encoder{enc: enc}, nil
}

// EncodePCM encodes one frame of signed 16-bit PCM samples into an Opus
// packet. pcm must contain exactly FrameDuration milliseconds of audio at
// SampleRate.
func (e *Encoder) EncodePCM(pcm []int16) ([]byte, error) {
	out := make([]byte, 4000) // generous upper bound for a single Opus frame
	n, err := e.enc.Encode(pcm, out)
	if err != nil {
		return nil, fmt.Errorf("audio: opus encode: %w", err)
	}
	return out[:n], nil
}

// Decoder wraps an Opus decoder configured for the device leg.
type Decoder struct {
	dec *opus.Decoder
}

// NewDecoder builds a Decoder for 16kHz mono audio.
func NewDecoder() (*Decoder, error) {
	dec, err := opus.NewDecoder(SampleRate, Channels)
	if err != nil {
		return nil, fmt.Errorf("audio: new opus decoder: %w", err)
	}
	return &Decoder{dec: dec}, nil
}

// SamplesPerFrame returns how many PCM samples one frame of FrameDuration
// milliseconds contains.
func SamplesPerFrame() int {
	return SampleRate * FrameDuration / 1000
}

// DecodePacket decodes one Opus packet into PCM samples.
func (d *Decoder) DecodePacket(packet []byte) ([]int16, error) {
	pcm := make([]int16, SamplesPerFrame())
	n, err := d.dec.Decode(packet, pcm)
	if err != nil {
		return nil, fmt.Errorf("audio: opus decode: %w", err)
	}
	return pcm[:n], nil
}

// DecodePacketLost synthesizes a concealment frame for a packet the
// network dropped, so the ASR pipeline's reorder buffer (see
// internal/session) sees a continuous stream even under loss.
func (d *Decoder) DecodePacketLost() ([]int16, error) {
	pcm := make([]int16, SamplesPerFrame())
	n, err := d.dec.DecodePLC(pcm)
	if err != nil {
		return nil, fmt.Errorf("audio: opus plc: %w", err)
	}
	return pcm[:n], nil
}
