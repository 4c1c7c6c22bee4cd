// Copyright (c) 2023-2026 VoiceGateway Authors
//
// Licensed under GPL-2.0 with VoiceGateway Additional Terms.
// See LICENSE.md for usage terms.

package reminder

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/rapidaai/voicegateway/internal/logging"
)

// Repository is the persistence contract the scheduler and tool surface
// depend on.
type Repository interface {
	Create(ctx context.Context, r Reminder) error
	Get(ctx context.Context, publicID string) (*Reminder, error)
	ListByAgent(ctx context.Context, agentID uuid.UUID, from, to time.Time, status *Status) ([]Reminder, error)
	SoftDelete(ctx context.Context, publicIDs []string) error

	// UpdateStatus atomically transitions a reminder to next, honoring
	// CanTransitionTo, the same "UPDATE ... WHERE" claim pattern used for
	// call-context status transitions. Returns false (no error) if the
	// reminder was not in a state that permits the transition.
	UpdateStatus(ctx context.Context, publicID string, next Status) (bool, error)

	// IncrementRetry bumps retry_count, used by the scheduler's backoff
	// loop.
	IncrementRetry(ctx context.Context, publicID string) error
}

type gormRepository struct {
	db     *gorm.DB
	logger logging.Logger
}

// NewGORMRepository wraps an already-connected *gorm.DB (Postgres in
// production, SQLite in tests).
func NewGORMRepository(db *gorm.DB, logger logging.Logger) Repository {
	return &gormRepository{db: db, logger: logger}
}

// Migrate runs GORM's AutoMigrate for the Reminder table. Schema
// migrations beyond this are a deployment concern outside this runtime.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&Reminder{})
}

func (r *gormRepository) Create(ctx context.Context, rem Reminder) error {
	if err := r.db.WithContext(ctx).Create(&rem).Error; err != nil {
		return fmt.Errorf("reminder: create %s: %w", rem.PublicID, err)
	}
	return nil
}

func (r *gormRepository) Get(ctx context.Context, publicID string) (*Reminder, error) {
	var rem Reminder
	err := r.db.WithContext(ctx).
		Where("public_id = ? AND is_deleted = ?", publicID, false).
		First(&rem).Error
	if err != nil {
		return nil, fmt.Errorf("reminder: get %s: %w", publicID, err)
	}
	return &rem, nil
}

func (r *gormRepository) ListByAgent(ctx context.Context, agentID uuid.UUID, from, to time.Time, status *Status) ([]Reminder, error) {
	q := r.db.WithContext(ctx).
		Where("agent_id = ? AND is_deleted = ? AND remind_at_utc BETWEEN ? AND ?", agentID, false, from, to)
	if status != nil {
		q = q.Where("status = ?", *status)
	}

	var out []Reminder
	if err := q.Order("remind_at_utc ASC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("reminder: list by agent %s: %w", agentID, err)
	}
	return out, nil
}

func (r *gormRepository) SoftDelete(ctx context.Context, publicIDs []string) error {
	if len(publicIDs) == 0 {
		return nil
	}
	if err := r.db.WithContext(ctx).
		Model(&Reminder{}).
		Where("public_id IN ?", publicIDs).
		Update("is_deleted", true).Error; err != nil {
		return fmt.Errorf("reminder: soft delete %v: %w", publicIDs, err)
	}
	return nil
}

func (r *gormRepository) UpdateStatus(ctx context.Context, publicID string, next Status) (bool, error) {
	var current Reminder
	if err := r.db.WithContext(ctx).Where("public_id = ?", publicID).First(&current).Error; err != nil {
		return false, fmt.Errorf("reminder: load %s for status update: %w", publicID, err)
	}
	if !current.CanTransitionTo(next) {
		return false, nil
	}

	updates := map[string]interface{}{"status": next}
	if next == StatusReceived {
		updates["received_at"] = time.Now().UTC()
	}

	// Atomic update guarded by the same status predicate just checked,
	// so a concurrent writer losing the race leaves RowsAffected == 0.
	result := r.db.WithContext(ctx).
		Model(&Reminder{}).
		Where("public_id = ? AND status = ?", publicID, current.Status).
		Updates(updates)
	if result.Error != nil {
		return false, fmt.Errorf("reminder: update status %s: %w", publicID, result.Error)
	}
	return result.RowsAffected > 0, nil
}

func (r *gormRepository) IncrementRetry(ctx context.Context, publicID string) error {
	if err := r.db.WithContext(ctx).
		Model(&Reminder{}).
		Where("public_id = ?", publicID).
		UpdateColumn("retry_count", gorm.Expr("retry_count + 1")).Error; err != nil {
		return fmt.Errorf("reminder: increment retry %s: %w", publicID, err)
	}
	return nil
}
