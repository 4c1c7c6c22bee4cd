// Copyright (c) 2023-2026 VoiceGateway Authors
//
// Licensed under GPL-2.0 with VoiceGateway Additional Terms.
// See LICENSE.md for usage terms.

// Package provisioning implements the first-contact activation handshake
// unclaimed devices go through before they have a WebSocket session:
// POST /ota negotiates either a normal config response (already-claimed
// device) or a six-digit activation code (unclaimed device); POST
// /ota/activate lets the device poll for binding completion.
package provisioning

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/big"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/rapidaai/voicegateway/internal/cache"
)

const (
	activationCodeLength = 6
	activationTTL        = 24 * time.Hour
	deviceValidationTTL  = 5 * time.Minute

	activationKeyPrefix      = "activation:device:" // mac -> ActivationRecord
	activationCodeKeyPrefix  = "activation:code:"    // code -> mac (reverse lookup)
	deviceValidatedKeyPrefix = "device_validated:"
)

// DeviceDescriptor is the firmware-reported device payload carried in the
// /ota request body (application version, model, board, etc.) — kept
// opaque here since its shape is a device-firmware concern, not this
// runtime's.
type DeviceDescriptor map[string]interface{}

// ActivationRecord is what gets cached under the device's MAC address
// while it waits to be claimed by the user-facing binding flow.
type ActivationRecord struct {
	Code       string           `json:"code"`
	Descriptor DeviceDescriptor `json:"device_data"`
}

// DeviceRegistry is the durable lookup this package needs: whether a MAC
// is already a bound device. The concrete store (Postgres, etc.) lives
// outside this CORE's scope.
type DeviceRegistry interface {
	Exists(ctx context.Context, mac string) (bool, error)
}

// Handshake implements the /ota and /ota/activate business logic against
// a cache.Store and a DeviceRegistry.
type Handshake struct {
	store     cache.Store
	devices   DeviceRegistry
	jwtSecret string
}

// NewHandshake builds the handshake service. jwtSecret signs the
// WebSocket auth token minted into an already-claimed device's config
// response.
func NewHandshake(store cache.Store, devices DeviceRegistry, jwtSecret string) *Handshake {
	return &Handshake{store: store, devices: devices, jwtSecret: jwtSecret}
}

// ConfigResponse is returned from /ota for an already-claimed device.
type ConfigResponse struct {
	WebSocketURL string `json:"url"`
	AuthToken    string `json:"token"`
}

// ActivationChallenge is returned from /ota for an unclaimed device.
type ActivationChallenge struct {
	Code      string `json:"code"`
	Challenge string `json:"challenge"`
	TimeoutMs int    `json:"timeout_ms"`
}

// Negotiate runs the /ota logic: if mac is already bound, mint a config
// response; otherwise generate and cache a new activation code.
func (h *Handshake) Negotiate(ctx context.Context, mac, websocketURL string, descriptor DeviceDescriptor) (*ConfigResponse, *ActivationChallenge, error) {
	exists, err := h.devices.Exists(ctx, mac)
	if err != nil {
		return nil, nil, fmt.Errorf("provisioning: device lookup for %s: %w", mac, err)
	}
	if exists {
		token, err := h.mintToken(mac)
		if err != nil {
			return nil, nil, err
		}
		return &ConfigResponse{WebSocketURL: websocketURL, AuthToken: token}, nil, nil
	}

	code, err := generateActivationCode()
	if err != nil {
		return nil, nil, fmt.Errorf("provisioning: generate activation code: %w", err)
	}

	record := ActivationRecord{Code: code, Descriptor: descriptor}
	recordJSON, err := json.Marshal(record)
	if err != nil {
		return nil, nil, fmt.Errorf("provisioning: encode activation record: %w", err)
	}
	if err := h.store.Set(ctx, activationKeyPrefix+mac, string(recordJSON), activationTTL); err != nil {
		return nil, nil, fmt.Errorf("provisioning: store activation record: %w", err)
	}
	if err := h.store.Set(ctx, activationCodeKeyPrefix+code, mac, activationTTL); err != nil {
		return nil, nil, fmt.Errorf("provisioning: store reverse code mapping: %w", err)
	}

	return nil, &ActivationChallenge{
		Code:      code,
		Challenge: challengeFor(code),
		TimeoutMs: 30000,
	}, nil
}

// ActivationStatus is the outcome /ota/activate reports.
type ActivationStatus int

const (
	ActivationBound ActivationStatus = iota
	ActivationPending
	ActivationUnknown
)

// Poll implements /ota/activate: bound devices report ActivationBound,
// devices with a live cache entry report ActivationPending, everything
// else is ActivationUnknown.
func (h *Handshake) Poll(ctx context.Context, mac string) (ActivationStatus, error) {
	exists, err := h.devices.Exists(ctx, mac)
	if err != nil {
		return ActivationUnknown, fmt.Errorf("provisioning: device lookup for %s: %w", mac, err)
	}
	if exists {
		return ActivationBound, nil
	}

	if _, err := h.store.Get(ctx, activationKeyPrefix+mac); err != nil {
		if err == cache.ErrNotFound {
			return ActivationUnknown, nil
		}
		return ActivationUnknown, fmt.Errorf("provisioning: activation lookup for %s: %w", mac, err)
	}
	return ActivationPending, nil
}

// ResolveCode is the reverse lookup the binding flow uses: given a code
// a user typed in, find the MAC it was issued for.
func (h *Handshake) ResolveCode(ctx context.Context, code string) (string, error) {
	return h.store.Get(ctx, activationCodeKeyPrefix+code)
}

// CompleteBinding deletes the activation cache entries once the
// user-facing flow (out of scope here) has created the DB record.
func (h *Handshake) CompleteBinding(ctx context.Context, mac, code string) error {
	if err := h.store.Delete(ctx, activationKeyPrefix+mac); err != nil {
		return err
	}
	return h.store.Delete(ctx, activationCodeKeyPrefix+code)
}

// ValidateDevice checks a MAC against the device registry with a 5
// minute fail-open cache, mirroring the original's cache-then-DB
// pattern: a cache read error falls through to the DB instead of
// denying the request.
func (h *Handshake) ValidateDevice(ctx context.Context, mac string) (bool, error) {
	cacheKey := deviceValidatedKeyPrefix + mac
	if cached, err := h.store.Get(ctx, cacheKey); err == nil {
		return cached == "true", nil
	}

	exists, err := h.devices.Exists(ctx, mac)
	if err != nil {
		return false, fmt.Errorf("provisioning: device validation for %s: %w", mac, err)
	}

	value := "false"
	if exists {
		value = "true"
	}
	_ = h.store.Set(ctx, cacheKey, value, deviceValidationTTL)
	return exists, nil
}

func (h *Handshake) mintToken(mac string) (string, error) {
	if h.jwtSecret == "" {
		return "", nil
	}
	claims := jwt.RegisteredClaims{
		Subject:   mac,
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(30 * 24 * time.Hour)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(h.jwtSecret))
}

// generateActivationCode produces a uniformly random 6-digit decimal
// code using crypto/rand, not math/rand — this value authenticates a
// device-claim flow.
func generateActivationCode() (string, error) {
	digits := make([]byte, activationCodeLength)
	for i := range digits {
		n, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", err
		}
		digits[i] = byte('0') + byte(n.Int64())
	}
	return string(digits), nil
}

// challengeFor computes the first 32 base64 characters of
// SHA-256(code), the activation challenge the spec's handshake returns
// alongside the code.
func challengeFor(code string) string {
	sum := sha256.Sum256([]byte(code))
	encoded := base64.StdEncoding.EncodeToString(sum[:])
	if len(encoded) > 32 {
		return encoded[:32]
	}
	return encoded
}
