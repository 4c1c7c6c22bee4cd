// Copyright (c) 2023-2026 VoiceGateway Authors
//
// Licensed under GPL-2.0 with VoiceGateway Additional Terms.
// See LICENSE.md for usage terms.

// Package directory owns the two durable lookups a device needs before it
// has a live session: which agent its MAC is bound to, and which provider
// names and prompt that agent resolves to. Both provisioning's
// DeviceRegistry and internal/session's BindingResolver are satisfied by
// this package's GORM-backed Directory, the same "runtime cannot tell DB
// vs. static config" shape AgentBinding's doc comment describes.
package directory

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/rapidaai/voicegateway/internal/logging"
	"github.com/rapidaai/voicegateway/internal/providers"
)

// Device binds one MAC address to the agent it should run.
type Device struct {
	MAC     string    `gorm:"primaryKey;size:32"`
	AgentID uuid.UUID `gorm:"type:uuid;index;not null"`
}

func (Device) TableName() string { return "devices" }

// Agent is the persisted form of providers.AgentBinding. Slice-valued
// fields are kept JSON-encoded as text, the same pattern reminder.Reminder
// uses for its metadata column, rather than a separate join table — this
// runtime only ever reads a binding whole, never queries inside it.
type Agent struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey"`

	PromptTemplate   string `gorm:"type:text"`
	ChatHistoryLevel int    `gorm:"not null;default:0"`
	ToolReferences   string `gorm:"type:text"` // JSON []providers.ToolReference
	MCPServerMode    string `gorm:"size:16;not null;default:'all'"`
	SelectedMCPIDs   string `gorm:"type:text"` // JSON []uuid.UUID

	// UserProfile, LocationContext, WeatherContext feed the enhanced
	// system prompt a session composes at bind/reload time (see
	// internal/session's composeSystemPrompt); all three are optional and
	// substitute as empty strings when unset.
	UserProfile     string `gorm:"type:text"`
	LocationContext string `gorm:"type:text"`
	WeatherContext  string `gorm:"type:text"`

	VADProviderName    string `gorm:"size:64"`
	ASRProviderName    string `gorm:"size:64"`
	LLMProviderName    string `gorm:"size:64"`
	TTSProviderName    string `gorm:"size:64"`
	MemoryProviderName string `gorm:"size:64"`
	IntentProviderName string `gorm:"size:64"`
}

func (Agent) TableName() string { return "agents" }

// Migrate runs GORM's AutoMigrate for both tables.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&Device{}, &Agent{})
}

// Directory resolves devices and agent bindings out of a *gorm.DB. It
// implements provisioning.DeviceRegistry and internal/session's
// BindingResolver by structural typing.
type Directory struct {
	db     *gorm.DB
	logger logging.Logger
}

// New wraps an already-connected *gorm.DB.
func New(db *gorm.DB, logger logging.Logger) *Directory {
	return &Directory{db: db, logger: logger}
}

// Exists implements provisioning.DeviceRegistry.
func (d *Directory) Exists(ctx context.Context, mac string) (bool, error) {
	var count int64
	if err := d.db.WithContext(ctx).Model(&Device{}).Where("mac = ?", mac).Count(&count).Error; err != nil {
		return false, fmt.Errorf("directory: device lookup for %s: %w", mac, err)
	}
	return count > 0, nil
}

// AgentIDForMAC is the lookup the WebSocket upgrade handler uses once a
// device's auth token has been validated: which agent does this MAC run.
func (d *Directory) AgentIDForMAC(ctx context.Context, mac string) (uuid.UUID, error) {
	var device Device
	if err := d.db.WithContext(ctx).Where("mac = ?", mac).First(&device).Error; err != nil {
		return uuid.Nil, fmt.Errorf("directory: agent for mac %s: %w", mac, err)
	}
	return device.AgentID, nil
}

// Bind upserts the MAC -> agent claim, called once the out-of-scope
// user-facing activation-code flow decides which agent a newly
// activated device belongs to.
func (d *Directory) Bind(ctx context.Context, mac string, agentID uuid.UUID) error {
	device := Device{MAC: mac, AgentID: agentID}
	if err := d.db.WithContext(ctx).Save(&device).Error; err != nil {
		return fmt.Errorf("directory: bind mac %s to agent %s: %w", mac, agentID, err)
	}
	return nil
}

// Resolve implements internal/session's BindingResolver.
func (d *Directory) Resolve(ctx context.Context, agentID uuid.UUID) (providers.AgentBinding, error) {
	var agent Agent
	if err := d.db.WithContext(ctx).Where("id = ?", agentID).First(&agent).Error; err != nil {
		return providers.AgentBinding{}, fmt.Errorf("directory: resolve agent %s: %w", agentID, err)
	}

	var toolRefs []providers.ToolReference
	if agent.ToolReferences != "" {
		if err := json.Unmarshal([]byte(agent.ToolReferences), &toolRefs); err != nil {
			return providers.AgentBinding{}, fmt.Errorf("directory: decode tool references for agent %s: %w", agentID, err)
		}
	}
	var selectedMCP []uuid.UUID
	if agent.SelectedMCPIDs != "" {
		if err := json.Unmarshal([]byte(agent.SelectedMCPIDs), &selectedMCP); err != nil {
			return providers.AgentBinding{}, fmt.Errorf("directory: decode selected mcp ids for agent %s: %w", agentID, err)
		}
	}

	mode := providers.MCPServerModeAll
	if agent.MCPServerMode == string(providers.MCPServerModeSelected) {
		mode = providers.MCPServerModeSelected
	}

	return providers.AgentBinding{
		AgentID:            agent.ID,
		PromptTemplate:     agent.PromptTemplate,
		ChatHistoryLevel:   providers.ChatHistoryRetention(agent.ChatHistoryLevel),
		ToolReferences:     toolRefs,
		MCPServerMode:      mode,
		SelectedMCPIDs:     selectedMCP,
		UserProfile:        agent.UserProfile,
		LocationContext:    agent.LocationContext,
		WeatherContext:     agent.WeatherContext,
		VADProviderName:    agent.VADProviderName,
		ASRProviderName:    agent.ASRProviderName,
		LLMProviderName:    agent.LLMProviderName,
		TTSProviderName:    agent.TTSProviderName,
		MemoryProviderName: agent.MemoryProviderName,
		IntentProviderName: agent.IntentProviderName,
	}, nil
}
