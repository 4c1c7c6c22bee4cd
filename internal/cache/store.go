// Copyright (c) 2023-2026 VoiceGateway Authors
//
// Licensed under GPL-2.0 with VoiceGateway Additional Terms.
// See LICENSE.md for usage terms.

// Package cache provides the typed TTL key/value store used by
// provisioning (activation records, device-validation cache). The tool
// dispatcher keeps its cached union tool list in its own maps, not here.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Get when the key does not exist or has
// expired.
var ErrNotFound = errors.New("cache: key not found")

// Store is the narrow key/value contract components depend on, so tests
// can swap a Redis-backed Store for an in-memory one without touching
// call sites.
type Store interface {
	// Set writes value under key with the given time-to-live. A ttl of
	// zero means no expiration.
	Set(ctx context.Context, key string, value string, ttl time.Duration) error

	// Get returns the value stored under key, or ErrNotFound.
	Get(ctx context.Context, key string) (string, error)

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Exists reports whether key is present and unexpired.
	Exists(ctx context.Context, key string) (bool, error)
}
