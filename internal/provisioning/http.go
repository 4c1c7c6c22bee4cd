// Copyright (c) 2023-2026 VoiceGateway Authors
//
// Licensed under GPL-2.0 with VoiceGateway Additional Terms.
// See LICENSE.md for usage terms.

package provisioning

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/rapidaai/voicegateway/internal/logging"
)

// OTARequest is the device-descriptor body POST /ota accepts.
type OTARequest struct {
	Device DeviceDescriptor `json:"device"`
}

// Server exposes the handshake as gin routes.
type Server struct {
	handshake    *Handshake
	websocketURL string
	logger       logging.Logger
}

// NewServer builds the provisioning HTTP surface. websocketURL is the
// base WebSocket endpoint minted into an already-claimed device's
// config response.
func NewServer(handshake *Handshake, websocketURL string, logger logging.Logger) *Server {
	return &Server{handshake: handshake, websocketURL: websocketURL, logger: logger}
}

// RegisterRoutes wires this server's handlers onto a gin router group.
func (s *Server) RegisterRoutes(router gin.IRouter) {
	router.POST("/ota", s.OTA)
	router.POST("/ota/activate", s.Activate)
}

func deviceIDFromHeader(c *gin.Context) (string, bool) {
	mac := c.GetHeader("device-id")
	return mac, mac != ""
}

// OTA handles POST /ota: negotiate either a normal config response for
// an already-claimed device, or an activation challenge for a new one.
func (s *Server) OTA(c *gin.Context) {
	mac, ok := deviceIDFromHeader(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing device-id header"})
		return
	}

	var req OTARequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	config, challenge, err := s.handshake.Negotiate(c.Request.Context(), mac, s.websocketURL, req.Device)
	if err != nil {
		if s.logger != nil {
			s.logger.Warnw("ota negotiation failed", "mac", mac, "error", err)
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "ota negotiation failed"})
		return
	}

	body := gin.H{}
	if config != nil {
		body["websocket"] = config
	}
	if challenge != nil {
		body["activation"] = challenge
	}
	c.JSON(http.StatusOK, body)
}

// Activate handles POST /ota/activate, the polling endpoint a device
// hits while waiting for the user-facing binding flow to complete.
func (s *Server) Activate(c *gin.Context) {
	mac, ok := deviceIDFromHeader(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing device-id header"})
		return
	}

	status, err := s.handshake.Poll(c.Request.Context(), mac)
	if err != nil {
		if s.logger != nil {
			s.logger.Warnw("ota activation poll failed", "mac", mac, "error", err)
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "activation check failed"})
		return
	}

	switch status {
	case ActivationBound:
		c.JSON(http.StatusOK, gin.H{"status": "success"})
	case ActivationPending:
		c.JSON(http.StatusAccepted, gin.H{"status": "pending"})
	default:
		c.JSON(http.StatusNotFound, gin.H{"error": "device not found and no activation data available"})
	}
}
