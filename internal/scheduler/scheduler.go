// Copyright (c) 2023-2026 VoiceGateway Authors
//
// Licensed under GPL-2.0 with VoiceGateway Additional Terms.
// See LICENSE.md for usage terms.

package scheduler

import (
	"container/heap"
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rapidaai/voicegateway/internal/logging"
	"github.com/rapidaai/voicegateway/internal/reminder"
)

// ReminderJob is one pending fire-time entry in the scheduler's queue.
type ReminderJob struct {
	PublicID string
	AgentID  uuid.UUID
	DeviceID string
	MAC      string
	Content  string
	Title    string
	UseLLM   bool
	FireAt   time.Time
	Attempt  int
}

// jobQueue is a container/heap min-heap ordered by FireAt, the same
// ticker-driven worker shape the teacher uses for its output pacer, here
// keyed by time instead of a fixed interval.
type jobQueue []*ReminderJob

func (q jobQueue) Len() int            { return len(q) }
func (q jobQueue) Less(i, j int) bool  { return q[i].FireAt.Before(q[j].FireAt) }
func (q jobQueue) Swap(i, j int)       { q[i], q[j] = q[j], q[i] }
func (q *jobQueue) Push(x interface{}) { *q = append(*q, x.(*ReminderJob)) }
func (q *jobQueue) Pop() interface{} {
	old := *q
	n := len(old)
	item := old[n-1]
	*q = old[:n-1]
	return item
}

// Scheduler is the process-wide, time-ordered reminder job queue. One
// instance runs per process; it is safe for concurrent use.
type Scheduler struct {
	mu    sync.Mutex
	queue jobQueue

	repo      reminder.Repository
	registry  *Registry
	publisher Publisher
	logger    logging.Logger

	wake chan struct{}
}

// New builds a Scheduler. Call Run in its own goroutine to start firing
// jobs; call Schedule to enqueue a reminder (typically right after
// create_reminder persists it).
func New(repo reminder.Repository, registry *Registry, publisher Publisher, logger logging.Logger) *Scheduler {
	return &Scheduler{
		repo:      repo,
		registry:  registry,
		publisher: publisher,
		logger:    logger,
		wake:      make(chan struct{}, 1),
	}
}

// Schedule enqueues a job, waking the run loop if this job now sits at
// the head of the queue.
func (s *Scheduler) Schedule(job ReminderJob) {
	s.mu.Lock()
	heap.Push(&s.queue, &job)
	isHead := s.queue[0] == &job
	s.mu.Unlock()

	if isHead {
		s.nudge()
	}
}

func (s *Scheduler) nudge() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Run drives the fire loop until ctx is cancelled. Intended to be the
// body of a single long-lived goroutine started at process boot.
func (s *Scheduler) Run(ctx context.Context) {
	for {
		wait := s.nextWait()

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-s.wake:
			timer.Stop()
			continue
		case <-timer.C:
		}

		s.fireDue(ctx)
	}
}

// nextWait returns how long Run should sleep before re-checking the
// queue head: the delay until the next fire-time, or an hour if the
// queue is empty (so Run still wakes periodically and isn't purely
// signal-driven).
func (s *Scheduler) nextWait() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) == 0 {
		return time.Hour
	}
	delay := time.Until(s.queue[0].FireAt)
	if delay < 0 {
		return 0
	}
	return delay
}

func (s *Scheduler) fireDue(ctx context.Context) {
	now := time.Now().UTC()
	for {
		s.mu.Lock()
		if len(s.queue) == 0 || s.queue[0].FireAt.After(now) {
			s.mu.Unlock()
			return
		}
		job := heap.Pop(&s.queue).(*ReminderJob)
		s.mu.Unlock()

		s.fire(ctx, job)
	}
}

func (s *Scheduler) fire(ctx context.Context, job *ReminderJob) {
	payload := Payload{UseLLM: job.UseLLM, Title: job.Title, Content: job.Content}
	outcome, err := DeliverAgentNotification(s.registry, s.publisher, job.DeviceID, job.MAC, payload, s.logger)
	if err != nil && s.logger != nil {
		s.logger.Warnw("notification delivery error", "reminder_id", job.PublicID, "outcome", int(outcome), "error", err)
	}

	switch outcome {
	case OutcomeDeliveredLive, OutcomeDeliveredBroker:
		if _, err := s.repo.UpdateStatus(ctx, job.PublicID, reminder.StatusDelivered); err != nil && s.logger != nil {
			s.logger.Warnw("failed to mark reminder delivered", "reminder_id", job.PublicID, "error", err)
		}
	default:
		s.retryOrFail(ctx, job)
	}
}

func (s *Scheduler) retryOrFail(ctx context.Context, job *ReminderJob) {
	job.Attempt++
	if job.Attempt > MaxRetries {
		if _, err := s.repo.UpdateStatus(ctx, job.PublicID, reminder.StatusFailed); err != nil && s.logger != nil {
			s.logger.Warnw("failed to mark reminder failed", "reminder_id", job.PublicID, "error", err)
		}
		return
	}

	if err := s.repo.IncrementRetry(ctx, job.PublicID); err != nil && s.logger != nil {
		s.logger.Warnw("failed to increment reminder retry count", "reminder_id", job.PublicID, "error", err)
	}

	job.FireAt = time.Now().UTC().Add(Backoff(job.Attempt))
	s.Schedule(*job)
}
