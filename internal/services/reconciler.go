package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/go-co-op/gocron"
)

// MaxReplayTries is how many failed replays a parked write gets before it
// is discarded.
const MaxReplayTries = 10

// Reconciler replays parked progress writes through the ordered writer, on
// a schedule and whenever a learner opens a module.
type Reconciler struct {
	pending   PendingStore
	writer    writeSubmitter
	interval  time.Duration
	maxTries  int
	scheduler *gocron.Scheduler
}

func NewReconciler(pending PendingStore, writer writeSubmitter, interval time.Duration) *Reconciler {
	return &Reconciler{
		pending:   pending,
		writer:    writer,
		interval:  interval,
		maxTries:  MaxReplayTries,
		scheduler: gocron.NewScheduler(time.UTC),
	}
}

func (r *Reconciler) Start() error {
	if r.interval <= 0 {
		return fmt.Errorf("invalid reconcile interval: %s", r.interval)
	}
	if _, err := r.scheduler.Every(r.interval).Do(r.runScheduled); err != nil {
		return fmt.Errorf("failed to schedule reconciliation: %w", err)
	}
	r.scheduler.StartAsync()
	log.Printf("[RECONCILER] Started, interval %s", r.interval)
	return nil
}

func (r *Reconciler) Stop() {
	r.scheduler.Stop()
}

func (r *Reconciler) runScheduled() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	n, err := r.ReconcileAll(ctx)
	if err != nil {
		log.Printf("[RECONCILER] Scheduled run failed: %v", err)
		return
	}
	if n > 0 {
		log.Printf("[RECONCILER] Resubmitted %d parked writes", n)
	}
}

func (r *Reconciler) ReconcileAll(ctx context.Context) (int, error) {
	return r.ReconcileUser(ctx, 0)
}

// ReconcileUser resubmits the learner's parked writes in issue order and
// returns how many were handed to the writer. userID 0 covers everyone.
// Writes that already failed MaxReplayTries replays are deleted instead.
func (r *Reconciler) ReconcileUser(ctx context.Context, userID int64) (int, error) {
	writes, err := r.pending.ListPending(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to list pending writes: %w", err)
	}
	submitted := 0
	for _, w := range writes {
		if w.Tries >= r.maxTries {
			log.Printf("[RECONCILER] Discarding %s write %d for user=%d module=%s after %d failed replays",
				w.Kind, w.ID, w.UserID, w.ModuleID, w.Tries)
			if err := r.pending.Delete(ctx, w.ID); err != nil {
				log.Printf("[RECONCILER] Failed to discard write %d: %v", w.ID, err)
			}
			continue
		}
		r.writer.Submit(w)
		submitted++
	}
	return submitted, nil
}
