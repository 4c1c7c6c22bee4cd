// Copyright (c) 2023-2026 VoiceGateway Authors
//
// Licensed under GPL-2.0 with VoiceGateway Additional Terms.
// See LICENSE.md for usage terms.

package session

import (
	"github.com/google/uuid"

	"github.com/rapidaai/voicegateway/internal/segmenter"
)

// notificationEnvelope is the outbound `notification` control envelope of
// spec.md §6, pushed by the scheduler's delivery router.
type notificationEnvelope struct {
	Type    string `json:"type"`
	UseLLM  bool   `json:"useLLM"`
	Title   string `json:"title,omitempty"`
	Content string `json:"content"`
}

// DeliverNotification satisfies scheduler.NotificationHandler: it pushes
// the notification envelope to the device and, when useLLM is set,
// speaks the content through the TTS pipeline without routing it through
// the LLM or appending it to the dialogue log.
func (s *Session) DeliverNotification(useLLM bool, title, content string) error {
	err := s.sendControl(notificationEnvelope{Type: "notification", UseLLM: useLLM, Title: title, Content: content})
	if useLLM {
		s.speakDirectly(content)
	}
	return err
}

// speakDirectly segments text and queues it on the TTS text-pipeline
// worker directly, bypassing the LLM and dialogue log entirely — used for
// reminder/push delivery, which is not part of the conversational turn.
func (s *Session) speakDirectly(text string) {
	if text == "" || s.ClientAbort() {
		return
	}
	turn := &turnState{id: uuid.New()}
	sentences := segmenter.SplitAll(text)
	for i, sentence := range sentences {
		s.enqueueSentence(turn, sentence, i == len(sentences)-1)
	}
}
