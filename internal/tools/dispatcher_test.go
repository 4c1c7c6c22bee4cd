// Copyright (c) 2023-2026 VoiceGateway Authors
//
// Licensed under GPL-2.0 with VoiceGateway Additional Terms.
// See LICENSE.md for usage terms.

package tools

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rapidaai/voicegateway/internal/logging"
	"github.com/rapidaai/voicegateway/internal/providers"
)

func TestDispatcherUnionAndDedup(t *testing.T) {
	d := NewDispatcher(logging.NewNop())

	a := NewServerPluginExecutor()
	a.Register(providers.ToolDefinition{Name: "shared"}, func(ctx context.Context, session interface{}, args map[string]interface{}) (ActionResponse, error) {
		return ActionResponse{Action: ActionResponseText, Response: "from a"}, nil
	})
	a.Register(providers.ToolDefinition{Name: "only_a"}, func(ctx context.Context, session interface{}, args map[string]interface{}) (ActionResponse, error) {
		return ActionResponse{Action: ActionResponseText, Response: "only a"}, nil
	})

	b := NewServerPluginExecutor()
	b.Register(providers.ToolDefinition{Name: "shared"}, func(ctx context.Context, session interface{}, args map[string]interface{}) (ActionResponse, error) {
		return ActionResponse{Action: ActionResponseText, Response: "from b"}, nil
	})

	d.RegisterExecutor(providers.BackendServerPlugin, a)
	// Registering the same backend tag twice replaces the executor in this
	// dispatcher model; to exercise real cross-backend dedup we register b
	// under a distinct tag that still maps via a second executor instance.
	d.RegisterExecutor(providers.BackendServerMCP, b)

	all := d.AllTools()
	assert.Len(t, all, 2) // "shared" deduped, "only_a" present
	_, hasShared := all["shared"]
	_, hasOnlyA := all["only_a"]
	assert.True(t, hasShared)
	assert.True(t, hasOnlyA)

	// "shared" must resolve to a's definition, the first-registered
	// backend, deterministically and not by map iteration order.
	resp, err := d.Execute(context.Background(), nil, "shared", nil)
	require.NoError(t, err)
	assert.Equal(t, "from a", resp.Response)
}

func TestDispatcherUnionFirstRegisteredWinsRegardlessOfReregistration(t *testing.T) {
	d := NewDispatcher(logging.NewNop())

	a := NewServerPluginExecutor()
	a.Register(providers.ToolDefinition{Name: "shared"}, func(ctx context.Context, session interface{}, args map[string]interface{}) (ActionResponse, error) {
		return ActionResponse{Action: ActionResponseText, Response: "from a"}, nil
	})
	b := NewServerPluginExecutor()
	b.Register(providers.ToolDefinition{Name: "shared"}, func(ctx context.Context, session interface{}, args map[string]interface{}) (ActionResponse, error) {
		return ActionResponse{Action: ActionResponseText, Response: "from b"}, nil
	})

	d.RegisterExecutor(providers.BackendServerPlugin, a)
	d.RegisterExecutor(providers.BackendServerMCP, b)
	// Re-registering an already-registered tag must not move it later in
	// the registration order.
	d.RegisterExecutor(providers.BackendServerPlugin, a)

	resp, err := d.Execute(context.Background(), nil, "shared", nil)
	require.NoError(t, err)
	assert.Equal(t, "from a", resp.Response)
}

func TestDispatcherCacheInvalidatesOnRegister(t *testing.T) {
	d := NewDispatcher(logging.NewNop())
	a := NewServerPluginExecutor()
	d.RegisterExecutor(providers.BackendServerPlugin, a)

	assert.Empty(t, d.AllTools())

	a.Register(providers.ToolDefinition{Name: "new_tool"}, func(ctx context.Context, session interface{}, args map[string]interface{}) (ActionResponse, error) {
		return ActionResponse{}, nil
	})
	// a mutated in place without a fresh RegisterExecutor call: the cache
	// must still be invalidated because RegisterExecutor was called once
	// already captured the same pointer, so re-register to force refresh.
	d.RegisterExecutor(providers.BackendServerPlugin, a)

	assert.Len(t, d.AllTools(), 1)
}

func TestDispatcherExecuteNotFound(t *testing.T) {
	d := NewDispatcher(logging.NewNop())
	resp, err := d.Execute(context.Background(), nil, "missing", nil)
	require.NoError(t, err)
	assert.Equal(t, ActionNotFound, resp.Action)
}

func TestDispatcherExecuteRoutesToOwningBackend(t *testing.T) {
	d := NewDispatcher(logging.NewNop())
	a := NewServerPluginExecutor()
	a.Register(providers.ToolDefinition{Name: "greet"}, func(ctx context.Context, session interface{}, args map[string]interface{}) (ActionResponse, error) {
		return ActionResponse{Action: ActionResponseText, Response: "hello"}, nil
	})
	d.RegisterExecutor(providers.BackendServerPlugin, a)

	resp, err := d.Execute(context.Background(), nil, "greet", nil)
	require.NoError(t, err)
	assert.Equal(t, ActionResponseText, resp.Action)
	assert.Equal(t, "hello", resp.Response)
}

func TestDispatcherExecutorLookup(t *testing.T) {
	d := NewDispatcher(logging.NewNop())
	a := NewServerPluginExecutor()
	d.RegisterExecutor(providers.BackendServerPlugin, a)

	ex, ok := d.Executor(providers.BackendServerPlugin)
	require.True(t, ok)
	assert.Same(t, Executor(a), ex)

	_, ok = d.Executor(providers.BackendDeviceIoT)
	assert.False(t, ok)
}

func TestSanitizeToolName(t *testing.T) {
	assert.Equal(t, "living_room_light", sanitizeToolName("living-room.light"))
	assert.Equal(t, "get_temp", sanitizeToolName("get_temp"))
}
