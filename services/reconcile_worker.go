package services

import (
	"context"
	"log/slog"
	"time"

	"rsvp-server/models"
	"rsvp-server/utils/errors"
)

const (
	reconcileBatch       = 50
	reconcileMaxAttempts = 8
	reconcileMaxBackoff  = time.Hour
)

// ReconcileQueue is the store of pairs the worker drains.
type ReconcileQueue interface {
	Enqueuer
	Due(ctx context.Context, limit int) ([]ReconcileJob, error)
	Retry(ctx context.Context, job ReconcileJob, at time.Time) error
	Done(ctx context.Context, job ReconcileJob) error
	Len(ctx context.Context) (int64, error)
}

type Reconciler interface {
	Reconcile(ctx context.Context, userID, eventID string) (*models.User, error)
}

// ReconcileWorker repairs pairs left behind by partial rsvp updates.
type ReconcileWorker struct {
	queue    ReconcileQueue
	engine   Reconciler
	interval time.Duration
	logger   *slog.Logger
	now      func() time.Time
}

func NewReconcileWorker(queue ReconcileQueue, engine Reconciler, interval time.Duration, logger *slog.Logger) *ReconcileWorker {
	return &ReconcileWorker{
		queue:    queue,
		engine:   engine,
		interval: interval,
		logger:   logger,
		now:      time.Now,
	}
}

// Run polls the queue every interval until ctx is cancelled.
func (w *ReconcileWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		resolved, err := w.RunOnce(ctx)
		if err != nil && ctx.Err() == nil {
			w.logger.Error("reconcile pass failed", "error", err)
		}
		if ctx.Err() == nil {
			w.logPending(ctx, resolved)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// RunOnce drains every job that is currently due and returns how many were
// resolved.
func (w *ReconcileWorker) RunOnce(ctx context.Context) (int, error) {
	resolved := 0
	seen := map[string]bool{}
	for {
		jobs, err := w.queue.Due(ctx, reconcileBatch)
		if err != nil {
			return resolved, err
		}
		progress := false
		for _, job := range jobs {
			if seen[job.member()] {
				continue
			}
			seen[job.member()] = true
			progress = true
			done, err := w.process(ctx, job)
			if err != nil {
				return resolved, err
			}
			if done {
				resolved++
			}
		}
		if !progress || ctx.Err() != nil {
			return resolved, ctx.Err()
		}
	}
}

func (w *ReconcileWorker) logPending(ctx context.Context, resolved int) {
	pending, err := w.queue.Len(ctx)
	if err != nil {
		w.logger.Error("failed to read reconcile queue length", "error", err)
		return
	}
	if resolved > 0 || pending > 0 {
		w.logger.Info("reconcile pass finished", "resolved", resolved, "pending", pending)
	}
}

func (w *ReconcileWorker) process(ctx context.Context, job ReconcileJob) (bool, error) {
	log := w.logger.With("user_id", job.UserID, "event_id", job.EventID, "attempt", job.Attempts+1)

	_, err := w.engine.Reconcile(ctx, job.UserID, job.EventID)
	switch {
	case err == nil:
		log.Info("pair reconciled")
		return true, w.queue.Done(ctx, job)
	case errors.IsPartial(err):
		// Retried below.
	case errors.IsNotFound(err), errors.IsState(err), errors.IsValidation(err):
		log.Warn("dropping reconcile job", "error", err)
		return true, w.queue.Done(ctx, job)
	}

	if job.Attempts+1 >= reconcileMaxAttempts {
		log.Error("giving up on reconcile job", "error", err)
		return false, w.queue.Done(ctx, job)
	}
	next := w.now().Add(backoff(w.interval, job.Attempts))
	log.Warn("reconcile failed, retrying", "error", err, "next", next)
	return false, w.queue.Retry(ctx, job, next)
}

func backoff(base time.Duration, attempts int) time.Duration {
	d := base
	for i := 0; i < attempts && d < reconcileMaxBackoff; i++ {
		d *= 2
	}
	if d > reconcileMaxBackoff {
		d = reconcileMaxBackoff
	}
	return d
}
