// Copyright (c) 2023-2026 VoiceGateway Authors
//
// Licensed under GPL-2.0 with VoiceGateway Additional Terms.
// See LICENSE.md for usage terms.

// Package dialogue holds the per-session conversation log and the view a
// language model adapter consumes from it.
package dialogue

import "fmt"

// Role distinguishes the tagged variants a Message may carry.
type Role int

const (
	RoleSystem Role = iota
	RoleUser
	RoleAssistant
	RoleToolCall
	RoleToolResponse
)

// Message is the tagged variant making up a Dialogue's ordered log. Only
// the fields relevant to Role are populated; callers must switch on Role
// before reading the rest.
type Message struct {
	Role Role

	// Text carries the content for RoleUser, RoleAssistant, and the
	// rendered arguments for RoleToolCall; for RoleToolResponse it is the
	// tool's returned content.
	Text string

	// ToolCallID, ToolName, ToolArgs are set only on RoleToolCall.
	ToolCallID string
	ToolName   string
	ToolArgs   string // JSON-encoded arguments, kept as text to avoid a second schema

	// ToolResponseID on RoleToolResponse must match the ToolCallID of the
	// ToolCall it answers.
	ToolResponseID string

	// AudioRef holds reference audio bytes alongside the transcript when
	// the owning agent binding's chat-history retention level is 2
	// (text+audio). Needs operational confirmation of exact retention
	// semantics; see open question in the design ledger.
	AudioRef []byte
}

// NewUserMessage builds a RoleUser message.
func NewUserMessage(text string) Message {
	return Message{Role: RoleUser, Text: text}
}

// NewAssistantMessage builds a RoleAssistant message.
func NewAssistantMessage(text string) Message {
	return Message{Role: RoleAssistant, Text: text}
}

// NewToolCallMessage builds a RoleToolCall message.
func NewToolCallMessage(id, name, argsJSON string) Message {
	return Message{Role: RoleToolCall, ToolCallID: id, ToolName: name, ToolArgs: argsJSON}
}

// NewToolResponseMessage builds a RoleToolResponse message matching the
// given tool-call id.
func NewToolResponseMessage(toolCallID, content string) Message {
	return Message{Role: RoleToolResponse, ToolResponseID: toolCallID, Text: content}
}

// Dialogue is the ordered message log for one session. Insertion order is
// significant; the single system message is addressable by replacement
// rather than append.
type Dialogue struct {
	system   *Message
	messages []Message
}

// New returns an empty Dialogue.
func New() *Dialogue {
	return &Dialogue{}
}

// SetSystem replaces the single system message, installing it if absent.
func (d *Dialogue) SetSystem(text string) {
	msg := Message{Role: RoleSystem, Text: text}
	d.system = &msg
}

// Append adds a message to the trail. Appending a RoleSystem message is a
// programming error; use SetSystem instead.
func (d *Dialogue) Append(msg Message) error {
	if msg.Role == RoleSystem {
		return fmt.Errorf("dialogue: system message must go through SetSystem")
	}
	d.messages = append(d.messages, msg)
	return nil
}

// Messages returns the trail in insertion order, excluding the system
// message.
func (d *Dialogue) Messages() []Message {
	out := make([]Message, len(d.messages))
	copy(out, d.messages)
	return out
}

// View is what an LLM adapter consumes: the system prompt, the retrieved
// memory context, and the message trail, interleaved in the order a
// language model expects.
type View struct {
	System string
	Memory string
	Trail  []Message
}

// BuildView interleaves the system message, a memory-retrieval hook
// result, and the trail into the shape an LLM adapter expects.
func (d *Dialogue) BuildView(memory string) View {
	system := ""
	if d.system != nil {
		system = d.system.Text
	}
	return View{
		System: system,
		Memory: memory,
		Trail:  d.Messages(),
	}
}

// Len returns the number of trail messages (excluding the system slot).
func (d *Dialogue) Len() int {
	return len(d.messages)
}
