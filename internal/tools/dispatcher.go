// Copyright (c) 2023-2026 VoiceGateway Authors
//
// Licensed under GPL-2.0 with VoiceGateway Additional Terms.
// See LICENSE.md for usage terms.

package tools

import (
	"context"
	"fmt"
	"sync"

	"github.com/rapidaai/voicegateway/internal/logging"
	"github.com/rapidaai/voicegateway/internal/providers"
)

// Dispatcher is the single registry the session consults for tool
// discovery and execution. It composes one Executor per backend tag and
// caches the union tool list until the next registration.
type Dispatcher struct {
	mu        sync.RWMutex
	executors map[providers.BackendTag]Executor
	order     []providers.BackendTag // registration order, first-seen per tag
	logger    logging.Logger

	cachedTools map[string]providers.ToolDefinition // name -> definition, includes backend ownership
	cachedOwner map[string]providers.BackendTag      // name -> first-registered backend
}

// NewDispatcher returns an empty Dispatcher.
func NewDispatcher(logger logging.Logger) *Dispatcher {
	return &Dispatcher{
		executors: make(map[providers.BackendTag]Executor),
		logger:    logger,
	}
}

// RegisterExecutor installs (or replaces) the Executor for a backend and
// invalidates the cached union tool list. A tag's position in the
// registration order is fixed the first time it's registered; replacing
// an already-registered tag's executor does not move it.
func (d *Dispatcher) RegisterExecutor(tag providers.BackendTag, ex Executor) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.executors[tag]; !exists {
		d.order = append(d.order, tag)
	}
	d.executors[tag] = ex
	d.cachedTools = nil
	d.cachedOwner = nil
}

// UnregisterExecutor removes a backend entirely (used on hot-reload
// teardown) and invalidates the cache.
func (d *Dispatcher) UnregisterExecutor(tag providers.BackendTag) {
	d.mu.Lock()
	defer d.mu.Unlock()

	delete(d.executors, tag)
	for i, t := range d.order {
		if t == tag {
			d.order = append(d.order[:i], d.order[i+1:]...)
			break
		}
	}
	d.cachedTools = nil
	d.cachedOwner = nil
}

// AllTools returns the union of every backend's tool table, keyed by
// name. When two backends register the same name, the first-registered
// backend wins, per spec.md §4.4 — iteration follows d.order, the actual
// RegisterExecutor call sequence, not Go's randomized map range order.
func (d *Dispatcher) AllTools() map[string]providers.ToolDefinition {
	d.mu.RLock()
	if d.cachedTools != nil {
		defer d.mu.RUnlock()
		return d.cachedTools
	}
	d.mu.RUnlock()

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cachedTools != nil {
		return d.cachedTools
	}

	all := make(map[string]providers.ToolDefinition)
	owner := make(map[string]providers.BackendTag)
	for _, tag := range d.order {
		ex, ok := d.executors[tag]
		if !ok {
			continue
		}
		for name, def := range ex.GetTools() {
			if existingTag, ok := owner[name]; ok {
				d.logger.Warnw("duplicate tool name across backends, first-registered wins",
					"tool", name, "kept_backend", existingTag, "ignored_backend", tag)
				continue
			}
			all[name] = def
			owner[name] = tag
		}
	}

	d.cachedTools = all
	d.cachedOwner = owner
	return all
}

// HasTool reports whether name is registered by any backend.
func (d *Dispatcher) HasTool(name string) bool {
	_, ok := d.AllTools()[name]
	return ok
}

// Executor returns the backend registered for tag, so callers that need
// a concrete executor's extra methods (e.g. the device-iot/device-mcp
// response-routing callbacks) can type-assert past the Executor
// interface.
func (d *Dispatcher) Executor(tag providers.BackendTag) (Executor, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	ex, ok := d.executors[tag]
	return ex, ok
}

// Execute dispatches one tool call to its owning backend.
func (d *Dispatcher) Execute(ctx context.Context, session interface{}, name string, args map[string]interface{}) (ActionResponse, error) {
	tools := d.AllTools()
	def, ok := tools[name]
	if !ok {
		return ActionResponse{Action: ActionNotFound, Response: fmt.Sprintf("tool %q not found", name)}, nil
	}

	d.mu.RLock()
	ex, ok := d.executors[def.Backend]
	d.mu.RUnlock()
	if !ok {
		return ActionResponse{Action: ActionError, Response: fmt.Sprintf("no executor registered for backend %s", def.Backend)}, nil
	}

	resp, err := ex.Execute(ctx, session, name, args)
	if err != nil {
		d.logger.Warnw("tool execution error", "tool", name, "error", err)
		return ActionResponse{Action: ActionError, Response: err.Error()}, nil
	}
	return resp, nil
}
