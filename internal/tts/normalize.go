// Copyright (c) 2023-2026 VoiceGateway Authors
//
// Licensed under GPL-2.0 with VoiceGateway Additional Terms.
// See LICENSE.md for usage terms.

// Package tts prepares assistant text for speech synthesis: a pipeline of
// normalizers runs ahead of the provider TTS adapter, each handling one
// concern (numbers, currency, dates) the way the teacher's normalizer
// pipeline composes per-TTS-backend passes.
package tts

import (
	"regexp"
	"strconv"

	ntw "moul.io/number-to-words"
)

// Normalizer is one pass over assistant text before it reaches a TTS
// adapter.
type Normalizer interface {
	Normalize(text string) string
}

// NormalizerFunc adapts a plain function to Normalizer.
type NormalizerFunc func(string) string

func (f NormalizerFunc) Normalize(text string) string { return f(text) }

// Pipeline runs a sequence of normalizers in order, mirroring the
// teacher's pluggable normalizer-pipeline pattern.
type Pipeline struct {
	stages []Normalizer
}

// NewPipeline builds a Pipeline from the given stages, applied in order.
func NewPipeline(stages ...Normalizer) *Pipeline {
	return &Pipeline{stages: stages}
}

// Run applies every stage in order and returns the final text.
func (p *Pipeline) Run(text string) string {
	for _, stage := range p.stages {
		text = stage.Normalize(text)
	}
	return text
}

var integerPattern = regexp.MustCompile(`-?\d+`)

// NumberNormalizer spells out integers so a TTS voice reads "forty two"
// instead of stumbling over digit-by-digit pronunciation. Every run of
// digits (with an optional leading minus) that fits an int64 is converted
// wherever it appears, including the digit runs of decimals, phone
// numbers, and alphanumeric tokens.
type NumberNormalizer struct{}

// NewNumberNormalizer returns the spoken-number normalizer stage.
func NewNumberNormalizer() *NumberNormalizer {
	return &NumberNormalizer{}
}

func (n *NumberNormalizer) Normalize(text string) string {
	return integerPattern.ReplaceAllStringFunc(text, func(match string) string {
		value, err := strconv.ParseInt(match, 10, 64)
		if err != nil {
			return match
		}
		words, err := ntw.Convert(value)
		if err != nil {
			return match
		}
		return words
	})
}

// DefaultPipeline returns the normalizer pipeline applied ahead of every
// TTS synthesis call, unless the agent binding overrides it.
func DefaultPipeline() *Pipeline {
	return NewPipeline(NewNumberNormalizer())
}
