// Copyright (c) 2023-2026 VoiceGateway Authors
//
// Licensed under GPL-2.0 with VoiceGateway Additional Terms.
// See LICENSE.md for usage terms.

// Package audio provides the Ogg/Opus framing utility the TTS pipeline uses
// to split a provider's Ogg container stream into individually playable
// Opus packets, and the PCM<->Opus transcoding hooks the ASR pipeline uses
// on the way in.
package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

// Opus audio constants for the device leg of the pipeline (16kHz mono,
// matching the device's microphone/speaker capability rather than the
// 48kHz/stereo WebRTC convention).
const (
	SampleRate    = 16000
	Channels      = 1
	FrameDuration = 60 // milliseconds, matches config.FrameDurationMs default
)

const oggCapturePattern = "OggS"

// ErrNotOggStream is returned when a buffer does not begin with a valid
// Ogg capture pattern.
var ErrNotOggStream = errors.New("audio: not an Ogg stream")

// Packet is one decoded Opus packet extracted from an Ogg page, tagged
// with the granule position of the page it came from.
type Packet struct {
	Data           []byte
	GranulePos     uint64
	IsFirstInPage  bool
	PageSequenceNo uint32
}

// OggDemuxer incrementally extracts Opus packets from a byte stream that
// may be split across arbitrary chunk boundaries (as provider HTTP
// streaming responses are). It satisfies the concatenation law:
// demux(chunk1) ++ demux(chunk2) == demux(chunk1 ++ chunk2), by buffering
// any trailing partial page until more bytes arrive.
type OggDemuxer struct {
	pending []byte
}

// NewOggDemuxer returns a fresh, empty demuxer.
func NewOggDemuxer() *OggDemuxer {
	return &OggDemuxer{}
}

// Write appends chunk to the internal buffer and returns every complete
// Opus packet that can now be extracted. Bytes belonging to an incomplete
// trailing page are retained for the next call.
func (d *OggDemuxer) Write(chunk []byte) ([]Packet, error) {
	d.pending = append(d.pending, chunk...)

	var packets []Packet
	for {
		page, consumed, ok, err := parseOggPage(d.pending)
		if err != nil {
			return packets, err
		}
		if !ok {
			break
		}
		packets = append(packets, page.packets...)
		d.pending = d.pending[consumed:]
	}
	return packets, nil
}

type oggPage struct {
	packets []Packet
}

// parseOggPage attempts to parse one Ogg page from the front of buf. It
// returns ok=false (without error) when buf does not yet contain a full
// page, so the caller can wait for more bytes.
func parseOggPage(buf []byte) (oggPage, int, bool, error) {
	const headerFixedSize = 27
	if len(buf) < headerFixedSize {
		return oggPage{}, 0, false, nil
	}
	if !bytes.Equal(buf[0:4], []byte(oggCapturePattern)) {
		return oggPage{}, 0, false, fmt.Errorf("%w: bad capture pattern", ErrNotOggStream)
	}

	granulePos := binary.LittleEndian.Uint64(buf[6:14])
	pageSeq := binary.LittleEndian.Uint32(buf[18:22])
	segCount := int(buf[26])

	if len(buf) < headerFixedSize+segCount {
		return oggPage{}, 0, false, nil
	}
	segTable := buf[headerFixedSize : headerFixedSize+segCount]

	bodyStart := headerFixedSize + segCount
	bodyLen := 0
	for _, s := range segTable {
		bodyLen += int(s)
	}
	if len(buf) < bodyStart+bodyLen {
		return oggPage{}, 0, false, nil
	}

	packets := splitSegmentsIntoPackets(buf[bodyStart:bodyStart+bodyLen], segTable)
	result := make([]Packet, 0, len(packets))
	for i, p := range packets {
		result = append(result, Packet{
			Data:           p,
			GranulePos:     granulePos,
			IsFirstInPage:  i == 0,
			PageSequenceNo: pageSeq,
		})
	}

	return oggPage{packets: result}, bodyStart + bodyLen, true, nil
}

// splitSegmentsIntoPackets reassembles lacing-table segments into packets.
// A packet continues across segments until a segment shorter than 255
// bytes terminates it (standard Ogg lacing rule).
func splitSegmentsIntoPackets(body []byte, segTable []byte) [][]byte {
	var packets [][]byte
	var current []byte
	offset := 0
	for _, seg := range segTable {
		n := int(seg)
		current = append(current, body[offset:offset+n]...)
		offset += n
		if n < 255 {
			packets = append(packets, current)
			current = nil
		}
	}
	if len(current) > 0 {
		packets = append(packets, current)
	}
	return packets
}
