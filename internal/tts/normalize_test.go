// Copyright (c) 2023-2026 VoiceGateway Authors
//
// Licensed under GPL-2.0 with VoiceGateway Additional Terms.
// See LICENSE.md for usage terms.

package tts

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPipelineRunsStagesInOrder(t *testing.T) {
	var order []string
	a := NormalizerFunc(func(s string) string {
		order = append(order, "a")
		return s + "a"
	})
	b := NormalizerFunc(func(s string) string {
		order = append(order, "b")
		return s + "b"
	})

	p := NewPipeline(a, b)
	got := p.Run("x")

	assert.Equal(t, "xab", got)
	assert.Equal(t, []string{"a", "b"}, order)
}

func TestNumberNormalizerSpellsOutIntegers(t *testing.T) {
	n := NewNumberNormalizer()
	got := n.Normalize("I have 2 apples")
	assert.NotContains(t, got, "2")
}

func TestNumberNormalizerLeavesNonNumericTextAlone(t *testing.T) {
	n := NewNumberNormalizer()
	got := n.Normalize("no numbers here")
	assert.Equal(t, "no numbers here", got)
}

func TestDefaultPipelineNotEmpty(t *testing.T) {
	p := DefaultPipeline()
	assert.NotEmpty(t, p.stages)
}
