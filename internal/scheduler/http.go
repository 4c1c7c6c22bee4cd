// Copyright (c) 2023-2026 VoiceGateway Authors
//
// Licensed under GPL-2.0 with VoiceGateway Additional Terms.
// See LICENSE.md for usage terms.

package scheduler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/rapidaai/voicegateway/internal/logging"
)

// WebhookRequest is the body POST /agents/:id/webhook accepts. It funnels
// through the same DeliverAgentNotification path an internally-fired
// reminder uses.
type WebhookRequest struct {
	DeviceID string `json:"device_id" binding:"required"`
	MAC      string `json:"mac" binding:"required"`
	UseLLM   bool   `json:"use_llm"`
	Title    string `json:"title"`
	Content  string `json:"content" binding:"required"`
}

// Handler exposes the webhook endpoint as a gin route handler.
type Handler struct {
	registry  *Registry
	publisher Publisher
	logger    logging.Logger
}

// NewHandler builds the webhook HTTP handler.
func NewHandler(registry *Registry, publisher Publisher, logger logging.Logger) *Handler {
	return &Handler{registry: registry, publisher: publisher, logger: logger}
}

// Webhook handles POST /agents/:id/webhook: agent-id in the path is
// accepted for routing/auth but the delivery itself is addressed by
// device-id and MAC carried in the body.
func (h *Handler) Webhook(c *gin.Context) {
	agentIDRaw := c.Param("id")
	if _, err := uuid.Parse(agentIDRaw); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid agent id"})
		return
	}

	var req WebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	outcome, err := DeliverAgentNotification(h.registry, h.publisher, req.DeviceID, req.MAC, Payload{
		UseLLM:  req.UseLLM,
		Title:   req.Title,
		Content: req.Content,
	}, h.logger)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	switch outcome {
	case OutcomeDeliveredLive, OutcomeDeliveredBroker:
		c.JSON(http.StatusOK, gin.H{"status": "delivered"})
	default:
		c.JSON(http.StatusAccepted, gin.H{"status": "queued_for_retry"})
	}
}
