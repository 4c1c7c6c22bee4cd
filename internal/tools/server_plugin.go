// Copyright (c) 2023-2026 VoiceGateway Authors
//
// Licensed under GPL-2.0 with VoiceGateway Additional Terms.
// See LICENSE.md for usage terms.

package tools

import (
	"context"
	"fmt"

	"github.com/rapidaai/voicegateway/internal/providers"
)

// PluginFunc is a statically registered server-side tool implementation.
// It receives the session handle as an opaque interface{} so plugins that
// need to inspect or mutate session state (e.g. a role-change tool) can
// type-assert it at their call site.
type PluginFunc func(ctx context.Context, session interface{}, args map[string]interface{}) (ActionResponse, error)

// ServerPluginExecutor hosts statically registered functions, composed at
// build time rather than discovered dynamically — this replaces the
// decorator-based import-time registry with an explicit registration
// phase.
type ServerPluginExecutor struct {
	defs  map[string]providers.ToolDefinition
	funcs map[string]PluginFunc
}

// NewServerPluginExecutor returns an empty executor; callers call
// Register for each built-in tool at startup.
func NewServerPluginExecutor() *ServerPluginExecutor {
	return &ServerPluginExecutor{
		defs:  make(map[string]providers.ToolDefinition),
		funcs: make(map[string]PluginFunc),
	}
}

// Register installs one plugin tool. Intended to be called once per tool
// during process startup, not concurrently with dispatch.
func (e *ServerPluginExecutor) Register(def providers.ToolDefinition, fn PluginFunc) {
	def.Backend = providers.BackendServerPlugin
	e.defs[def.Name] = def
	e.funcs[def.Name] = fn
}

func (e *ServerPluginExecutor) GetTools() map[string]providers.ToolDefinition {
	out := make(map[string]providers.ToolDefinition, len(e.defs))
	for k, v := range e.defs {
		out[k] = v
	}
	return out
}

func (e *ServerPluginExecutor) HasTool(name string) bool {
	_, ok := e.defs[name]
	return ok
}

func (e *ServerPluginExecutor) Execute(ctx context.Context, session interface{}, name string, args map[string]interface{}) (ActionResponse, error) {
	fn, ok := e.funcs[name]
	if !ok {
		return ActionResponse{Action: ActionNotFound, Response: fmt.Sprintf("tool %q not registered", name)}, nil
	}
	return fn(ctx, session, args)
}
