// Copyright (c) 2023-2026 VoiceGateway Authors
//
// Licensed under GPL-2.0 with VoiceGateway Additional Terms.
// See LICENSE.md for usage terms.

package provisioning

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rapidaai/voicegateway/internal/cache"
)

type fakeDeviceRegistry struct {
	mu    sync.Mutex
	bound map[string]bool
}

func newFakeDeviceRegistry() *fakeDeviceRegistry {
	return &fakeDeviceRegistry{bound: make(map[string]bool)}
}

func (f *fakeDeviceRegistry) Exists(_ context.Context, mac string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.bound[mac], nil
}

func (f *fakeDeviceRegistry) bind(mac string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bound[mac] = true
}

func TestNegotiateReturnsConfigForBoundDevice(t *testing.T) {
	devices := newFakeDeviceRegistry()
	devices.bind("AA:BB:CC:DD:EE:FF")
	h := NewHandshake(cache.NewMemoryStore(), devices, "")

	config, challenge, err := h.Negotiate(context.Background(), "AA:BB:CC:DD:EE:FF", "ws://gateway/v1", nil)
	require.NoError(t, err)
	require.Nil(t, challenge)
	require.NotNil(t, config)
	require.Equal(t, "ws://gateway/v1", config.WebSocketURL)
}

func TestNegotiateReturnsChallengeForUnclaimedDevice(t *testing.T) {
	h := NewHandshake(cache.NewMemoryStore(), newFakeDeviceRegistry(), "")

	config, challenge, err := h.Negotiate(context.Background(), "AA:BB:CC:DD:EE:FF", "ws://gateway/v1", nil)
	require.NoError(t, err)
	require.Nil(t, config)
	require.NotNil(t, challenge)
	require.Len(t, challenge.Code, 6)

	sum := sha256.Sum256([]byte(challenge.Code))
	want := base64.StdEncoding.EncodeToString(sum[:])[:32]
	require.Equal(t, want, challenge.Challenge)
}

func TestResolveCodeFindsMAC(t *testing.T) {
	h := NewHandshake(cache.NewMemoryStore(), newFakeDeviceRegistry(), "")
	ctx := context.Background()

	_, challenge, err := h.Negotiate(ctx, "AA:BB:CC:DD:EE:FF", "ws://gateway/v1", nil)
	require.NoError(t, err)

	mac, err := h.ResolveCode(ctx, challenge.Code)
	require.NoError(t, err)
	require.Equal(t, "AA:BB:CC:DD:EE:FF", mac)
}

func TestPollReportsBoundPendingAndUnknown(t *testing.T) {
	devices := newFakeDeviceRegistry()
	h := NewHandshake(cache.NewMemoryStore(), devices, "")
	ctx := context.Background()

	status, err := h.Poll(ctx, "AA:BB:CC:DD:EE:FF")
	require.NoError(t, err)
	require.Equal(t, ActivationUnknown, status)

	_, _, err = h.Negotiate(ctx, "AA:BB:CC:DD:EE:FF", "ws://gateway/v1", nil)
	require.NoError(t, err)

	status, err = h.Poll(ctx, "AA:BB:CC:DD:EE:FF")
	require.NoError(t, err)
	require.Equal(t, ActivationPending, status)

	devices.bind("AA:BB:CC:DD:EE:FF")
	status, err = h.Poll(ctx, "AA:BB:CC:DD:EE:FF")
	require.NoError(t, err)
	require.Equal(t, ActivationBound, status)
}

func TestCompleteBindingDeletesCacheEntries(t *testing.T) {
	store := cache.NewMemoryStore()
	devices := newFakeDeviceRegistry()
	h := NewHandshake(store, devices, "")
	ctx := context.Background()

	_, challenge, err := h.Negotiate(ctx, "AA:BB:CC:DD:EE:FF", "ws://gateway/v1", nil)
	require.NoError(t, err)

	require.NoError(t, h.CompleteBinding(ctx, "AA:BB:CC:DD:EE:FF", challenge.Code))

	status, err := h.Poll(ctx, "AA:BB:CC:DD:EE:FF")
	require.NoError(t, err)
	require.Equal(t, ActivationUnknown, status)
}

func TestValidateDeviceCachesResult(t *testing.T) {
	devices := newFakeDeviceRegistry()
	devices.bind("AA:BB:CC:DD:EE:FF")
	h := NewHandshake(cache.NewMemoryStore(), devices, "")
	ctx := context.Background()

	ok, err := h.ValidateDevice(ctx, "AA:BB:CC:DD:EE:FF")
	require.NoError(t, err)
	require.True(t, ok)

	// unbind in the backing registry; cached result should still say true
	devices.mu.Lock()
	devices.bound["AA:BB:CC:DD:EE:FF"] = false
	devices.mu.Unlock()

	ok, err = h.ValidateDevice(ctx, "AA:BB:CC:DD:EE:FF")
	require.NoError(t, err)
	require.True(t, ok, "cached validation result should be served without re-querying the registry")
}

func TestMintTokenEmptyWhenNoSecret(t *testing.T) {
	devices := newFakeDeviceRegistry()
	devices.bind("AA:BB:CC:DD:EE:FF")
	h := NewHandshake(cache.NewMemoryStore(), devices, "")

	config, _, err := h.Negotiate(context.Background(), "AA:BB:CC:DD:EE:FF", "ws://gateway/v1", nil)
	require.NoError(t, err)
	require.Empty(t, config.AuthToken)
}

func TestMintTokenSignsWithSecret(t *testing.T) {
	devices := newFakeDeviceRegistry()
	devices.bind("AA:BB:CC:DD:EE:FF")
	h := NewHandshake(cache.NewMemoryStore(), devices, "test-secret")

	config, _, err := h.Negotiate(context.Background(), "AA:BB:CC:DD:EE:FF", "ws://gateway/v1", nil)
	require.NoError(t, err)
	require.NotEmpty(t, config.AuthToken)
}
