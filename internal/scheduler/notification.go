// Copyright (c) 2023-2026 VoiceGateway Authors
//
// Licensed under GPL-2.0 with VoiceGateway Additional Terms.
// See LICENSE.md for usage terms.

package scheduler

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/rapidaai/voicegateway/internal/logging"
)

// Payload is the push-notification envelope delivered either over the
// live WebSocket or the MQTT fallback topic.
type Payload struct {
	UseLLM  bool   `json:"useLLM"`
	Title   string `json:"title"`
	Content string `json:"content"`
}

// Publisher abstracts the MQTT broker connection so the router can be
// tested without a live broker.
type Publisher interface {
	Publish(topic string, payload []byte) error
}

// MQTTPublisher wraps a connected paho client, publishing to the
// device/<MAC> fallback topic.
type MQTTPublisher struct {
	client mqtt.Client
	qos    byte
}

// NewMQTTPublisher builds a Publisher from connection options. The
// caller is responsible for calling Connect and waiting on the returned
// token before first use.
func NewMQTTPublisher(opts *mqtt.ClientOptions, qos byte) (*MQTTPublisher, mqtt.Client) {
	client := mqtt.NewClient(opts)
	return &MQTTPublisher{client: client, qos: qos}, client
}

func (p *MQTTPublisher) Publish(topic string, payload []byte) error {
	token := p.client.Publish(topic, p.qos, false, payload)
	token.Wait()
	return token.Error()
}

// DeviceTopic is the fallback publish topic for a device's MAC address.
func DeviceTopic(mac string) string {
	return fmt.Sprintf("device/%s", sanitizeMAC(mac))
}

// SubscribeFilter is the wildcard filter a device-facing MQTT bridge
// subscribes to for one MAC.
func SubscribeFilter(mac string) string {
	return fmt.Sprintf("device/%s/#", sanitizeMAC(mac))
}

func sanitizeMAC(mac string) string {
	return strings.ToUpper(strings.TrimSpace(mac))
}

// ClientID builds the MQTT client-id convention: <group>@@@<mac>@@@<mac>,
// group derived from the device model.
func ClientID(group, mac string) string {
	sanitised := strings.ReplaceAll(sanitizeMAC(mac), ":", "")
	return fmt.Sprintf("%s@@@%s@@@%s", group, sanitised, sanitised)
}

// BrokerPassword derives the per-connection MQTT password:
// base64(HMAC-SHA256(signingKey, clientID + "|" + username)).
func BrokerPassword(signingKey, clientID, username string) string {
	mac := hmac.New(sha256.New, []byte(signingKey))
	mac.Write([]byte(clientID + "|" + username))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// DeliverAgentNotification is the single funnel both an internally-fired
// reminder and an external webhook call go through: look up the live
// session, fall back to the broker, or leave the caller to retry.
//
// deviceID addresses the connection registry; mac addresses the broker
// topic — the two device-identity forms spec.md keeps distinct.
func DeliverAgentNotification(registry *Registry, publisher Publisher, deviceID, mac string, payload Payload, logger logging.Logger) (DeliveryOutcome, error) {
	if handler, ok := registry.Lookup(deviceID); ok {
		if err := handler.DeliverNotification(payload.UseLLM, payload.Title, payload.Content); err == nil {
			return OutcomeDeliveredLive, nil
		} else if logger != nil {
			logger.Warnw("live notification delivery failed, falling back to broker", "device_id", deviceID, "error", err)
		}
	}

	if publisher != nil {
		body, err := json.Marshal(payload)
		if err != nil {
			return OutcomeFailed, fmt.Errorf("scheduler: marshal notification payload: %w", err)
		}
		if err := publisher.Publish(DeviceTopic(mac), body); err != nil {
			return OutcomeRetry, fmt.Errorf("scheduler: broker publish failed: %w", err)
		}
		return OutcomeDeliveredBroker, nil
	}

	return OutcomeRetry, nil
}

// DeliveryOutcome classifies what DeliverAgentNotification managed to do,
// driving the reminder's next status transition.
type DeliveryOutcome int

const (
	OutcomeDeliveredLive DeliveryOutcome = iota
	OutcomeDeliveredBroker
	OutcomeRetry
	OutcomeFailed
)

// Backoff computes the delay before the next retry attempt, doubling
// each attempt starting at 5s, used by the job queue's reschedule step.
func Backoff(attempt int) time.Duration {
	base := 5 * time.Second
	for i := 0; i < attempt; i++ {
		base *= 2
	}
	return base
}

const MaxRetries = 5
