// Copyright (c) 2023-2026 VoiceGateway Authors
//
// Licensed under GPL-2.0 with VoiceGateway Additional Terms.
// See LICENSE.md for usage terms.

// Package reminder owns the persistent Reminder entity, its GORM
// repository, and the LLM-facing tool surface the dispatcher's
// server-plugin backend exposes for creating and managing reminders.
package reminder

import (
	"time"

	"github.com/google/uuid"
)

// Status is a reminder's delivery state. Transitions are monotonic except
// that any non-terminal state may become Failed.
type Status string

const (
	StatusPending   Status = "pending"
	StatusDelivered Status = "delivered"
	StatusReceived  Status = "received"
	StatusFailed    Status = "failed"
)

// Reminder is the one persistent entity this runtime owns directly.
type Reminder struct {
	ID       uuid.UUID `gorm:"type:uuid;primaryKey"`
	PublicID string    `gorm:"uniqueIndex;size:255;not null"`
	AgentID  uuid.UUID `gorm:"type:uuid;index;not null"`

	Content string  `gorm:"type:text;not null"`
	Title   *string `gorm:"size:255"`

	RemindAtUTC   time.Time `gorm:"not null;index"`
	RemindAtLocal time.Time `gorm:"not null"`
	CreatedAt     time.Time `gorm:"not null;index"`

	Status     Status `gorm:"size:32;not null;index"`
	ReceivedAt *time.Time
	RetryCount int  `gorm:"not null;default:0"`
	IsDeleted  bool `gorm:"not null;index;default:false"`

	Metadata string `gorm:"type:text"` // JSON-encoded, kept as text like the rest of the tool surface
}

// TableName pins the GORM table name so it doesn't depend on struct-name
// pluralization rules.
func (Reminder) TableName() string {
	return "reminders"
}

// NewReminder builds a Reminder in StatusPending, generating its ID and
// public-id. remindAtUTC must be strictly after creation time; callers
// validate this before calling (see tools.go's CreateReminder).
func NewReminder(agentID uuid.UUID, content string, title *string, remindAtUTC, remindAtLocal time.Time, metadataJSON string) Reminder {
	now := time.Now().UTC()
	return Reminder{
		ID:            uuid.New(),
		PublicID:      uuid.New().String(),
		AgentID:       agentID,
		Content:       content,
		Title:         title,
		RemindAtUTC:   remindAtUTC,
		RemindAtLocal: remindAtLocal,
		CreatedAt:     now,
		Status:        StatusPending,
		Metadata:      metadataJSON,
	}
}

// CanTransitionTo reports whether moving from the receiver's status to
// next is allowed: forward-only, except Failed which is reachable from
// any non-terminal status.
func (r Reminder) CanTransitionTo(next Status) bool {
	if next == StatusFailed {
		return r.Status != StatusReceived && r.Status != StatusFailed
	}
	order := map[Status]int{
		StatusPending:   0,
		StatusDelivered: 1,
		StatusReceived:  2,
	}
	cur, curOK := order[r.Status]
	want, wantOK := order[next]
	return curOK && wantOK && want > cur
}
