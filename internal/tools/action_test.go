// Copyright (c) 2023-2026 VoiceGateway Authors
//
// Licensed under GPL-2.0 with VoiceGateway Additional Terms.
// See LICENSE.md for usage terms.

package tools

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCombineErrorWins(t *testing.T) {
	got := Combine([]ActionResponse{
		{Action: ActionResponseText, Response: "ok so far"},
		{Action: ActionError, Response: "boom"},
		{Action: ActionReqLLM, Response: "should not matter"},
	})
	assert.Equal(t, ActionError, got.Action)
	assert.Equal(t, "boom", got.Response)
}

func TestCombineConcatenatesResponses(t *testing.T) {
	got := Combine([]ActionResponse{
		{Action: ActionResponseText, Response: "first"},
		{Action: ActionResponseText, Response: "second"},
	})
	assert.Equal(t, ActionResponseText, got.Action)
	assert.Equal(t, "first\nsecond", got.Response)
}

func TestCombineReqLLMPropagates(t *testing.T) {
	got := Combine([]ActionResponse{
		{Action: ActionResponseText, Response: "text"},
		{Action: ActionReqLLM, Response: "need another round"},
	})
	assert.Equal(t, ActionReqLLM, got.Action)
}

func TestCombineEmptyIsNone(t *testing.T) {
	got := Combine(nil)
	assert.Equal(t, ActionNone, got.Action)
	assert.Empty(t, got.Response)
}

func TestActionString(t *testing.T) {
	assert.Equal(t, "RESPONSE", ActionResponseText.String())
	assert.Equal(t, "REQLLM", ActionReqLLM.String())
	assert.Equal(t, "ERROR", ActionError.String())
	assert.Equal(t, "NOTFOUND", ActionNotFound.String())
	assert.Equal(t, "NONE", ActionNone.String())
}
