// Copyright (c) 2023-2026 VoiceGateway Authors
//
// Licensed under GPL-2.0 with VoiceGateway Additional Terms.
// See LICENSE.md for usage terms.

package segmenter

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestDecimalPreservingSplit is the contract called out explicitly: the
// decimal dot in "2.5" must never be treated as a sentence boundary.
func TestDecimalPreservingSplit(t *testing.T) {
	got := SplitAll("2.5 km? Yes.")
	assert.Equal(t, []string{"2.5 km?", " Yes."}, got)
}

func TestSingleDecimalSentence(t *testing.T) {
	got := SplitAll("Pi is 3.14.")
	assert.Len(t, got, 1)
	assert.Equal(t, "Pi is 3.14.", got[0])
}

func TestFirstSentenceSoftBreak(t *testing.T) {
	got := SplitAll("Well, that is one way to put it. And another sentence.")
	assert.Equal(t, "Well,", got[0])
	assert.True(t, len(got) >= 2)
}

func TestSoftBreakOnlyAppliesToFirstSentence(t *testing.T) {
	got := SplitAll("First sentence. Second, with a comma, continues.")
	// after the first sentence is emitted, commas in later sentences must
	// not trigger a split.
	assert.Equal(t, "First sentence.", got[0])
	assert.Equal(t, " Second, with a comma, continues.", got[1])
}

// TestRoundTripUpToWhitespace is the idempotence law: concatenating the
// segmenter's output reconstructs the original input exactly (this
// segmenter never drops or rewrites characters, so no whitespace trim is
// even needed, but the test still normalizes to document the law's
// intent).
func TestRoundTripUpToWhitespace(t *testing.T) {
	inputs := []string{
		"2.5 km? Yes.",
		"Pi is 3.14.",
		"Hello! How are you? I am fine.",
		"No terminal punctuation at all",
	}
	for _, in := range inputs {
		out := SplitAll(in)
		assert.Equal(t, in, strings.Join(out, ""), "input: %q", in)
	}
}

func TestEmptyInputYieldsNoSentences(t *testing.T) {
	assert.Empty(t, SplitAll(""))
}

func TestFeedAcrossMultipleChunks(t *testing.T) {
	s := New()
	var got []string
	got = append(got, s.Feed("2.5 ")...)
	got = append(got, s.Feed("km? Ye")...)
	got = append(got, s.Feed("s.")...)
	got = append(got, s.Flush()...)

	assert.Equal(t, []string{"2.5 km?", " Yes."}, got)
}

func TestCJKTerminalPunctuation(t *testing.T) {
	got := SplitAll("你好。再见！")
	assert.Equal(t, []string{"你好。", "再见！"}, got)
}
