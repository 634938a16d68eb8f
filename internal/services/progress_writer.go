package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/ad/go-rescue-academy/internal/models"
)

// ProgressStore is the durable home of progress records. Implementations
// recompute aggregate fields from the submitted intents.
type ProgressStore interface {
	GetProgress(ctx context.Context, userID int64, moduleID string) (models.ProgressRecord, error)
	ListProgress(ctx context.Context, userID int64) ([]models.ProgressRecord, error)
	UpsertProgress(ctx context.Context, userID int64, moduleID string, patch models.ProgressPatch) (models.ProgressRecord, error)
	AppendAttempt(ctx context.Context, userID int64, moduleID string, attempt models.Attempt) (models.ProgressRecord, error)
	ListChecklistMarks(ctx context.Context, userID int64, moduleID string) (map[string]bool, error)
}

// PendingStore keeps writes that could not be applied.
type PendingStore interface {
	Park(ctx context.Context, w models.PendingWrite) (int64, error)
	ListPending(ctx context.Context, userID int64) ([]models.PendingWrite, error)
	Delete(ctx context.Context, id int64) error
	MarkFailed(ctx context.Context, id int64) error
}

type writeSubmitter interface {
	Submit(w models.PendingWrite)
}

type writeKey struct {
	userID   int64
	moduleID string
}

type keyQueue struct {
	writes  []models.PendingWrite
	running bool
	idle    chan struct{}
	failed  int
}

// ProgressWriter applies best-effort store writes off the caller's path.
// Writes for one (user, module) pair are applied one at a time in the order
// they were submitted; different pairs proceed independently.
type ProgressWriter struct {
	store   ProgressStore
	pending PendingStore
	timeout time.Duration

	mu       sync.Mutex
	queues   map[writeKey]*keyQueue
	inflight map[int64]bool
	lastSeq  int64
	closed   bool
	wg       sync.WaitGroup
}

func NewProgressWriter(store ProgressStore, pending PendingStore, timeout time.Duration) *ProgressWriter {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ProgressWriter{
		store:    store,
		pending:  pending,
		timeout:  timeout,
		queues:   make(map[writeKey]*keyQueue),
		inflight: make(map[int64]bool),
	}
}

// nextSeq is time based so sequences keep growing across restarts.
func (w *ProgressWriter) nextSeq() int64 {
	seq := time.Now().UnixNano()
	if seq <= w.lastSeq {
		seq = w.lastSeq + 1
	}
	w.lastSeq = seq
	return seq
}

// Submit queues a write and returns immediately. A write without a sequence
// gets the next one; parked writes keep the sequence they were issued with.
func (w *ProgressWriter) Submit(pw models.PendingWrite) {
	w.mu.Lock()
	if pw.Seq == 0 {
		pw.Seq = w.nextSeq()
	}
	if w.closed {
		w.mu.Unlock()
		if pw.ID == 0 {
			w.park(pw)
		}
		return
	}
	defer w.mu.Unlock()
	if pw.ID != 0 {
		if w.inflight[pw.ID] {
			return
		}
		w.inflight[pw.ID] = true
	}

	key := writeKey{userID: pw.UserID, moduleID: pw.ModuleID}
	q, ok := w.queues[key]
	if !ok {
		q = &keyQueue{}
		w.queues[key] = q
	}
	q.writes = append(q.writes, pw)
	if q.running {
		return
	}
	q.running = true
	q.idle = make(chan struct{})
	w.wg.Add(1)
	go w.drain(key, q)
}

func (w *ProgressWriter) drain(key writeKey, q *keyQueue) {
	defer w.wg.Done()
	for {
		w.mu.Lock()
		if len(q.writes) == 0 {
			q.running = false
			close(q.idle)
			w.mu.Unlock()
			return
		}
		next := q.writes[0]
		q.writes = q.writes[1:]
		w.mu.Unlock()

		err := w.apply(next)

		w.mu.Lock()
		if next.ID != 0 {
			delete(w.inflight, next.ID)
		}
		switch {
		case err != nil && next.ID == 0:
			q.failed++
		case err == nil && next.ID != 0 && q.failed > 0:
			q.failed--
		}
		w.mu.Unlock()
	}
}

func (w *ProgressWriter) apply(pw models.PendingWrite) error {
	ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
	err := w.write(ctx, pw)
	cancel()

	ctx, cancel = context.WithTimeout(context.Background(), w.timeout)
	defer cancel()
	if err != nil {
		log.Printf("[PROGRESS_WRITER] %s write failed for user=%d module=%s seq=%d: %v",
			pw.Kind, pw.UserID, pw.ModuleID, pw.Seq, err)
		if pw.ID == 0 {
			w.park(pw)
		} else if markErr := w.pending.MarkFailed(ctx, pw.ID); markErr != nil {
			log.Printf("[PROGRESS_WRITER] Failed to mark pending write %d: %v", pw.ID, markErr)
		}
		return err
	}

	if pw.ID != 0 {
		if err := w.pending.Delete(ctx, pw.ID); err != nil {
			log.Printf("[PROGRESS_WRITER] Failed to delete replayed write %d: %v", pw.ID, err)
		} else {
			log.Printf("[PROGRESS_WRITER] Replayed %s write %d for user=%d module=%s", pw.Kind, pw.ID, pw.UserID, pw.ModuleID)
		}
	}
	return nil
}

func (w *ProgressWriter) write(ctx context.Context, pw models.PendingWrite) error {
	switch pw.Kind {
	case models.WriteContentRead, models.WriteChecklistMark:
		if pw.Patch == nil {
			return fmt.Errorf("%s write without patch", pw.Kind)
		}
		patch := *pw.Patch
		patch.Seq = pw.Seq
		_, err := w.store.UpsertProgress(ctx, pw.UserID, pw.ModuleID, patch)
		return err
	case models.WriteAttempt:
		if pw.Attempt == nil {
			return errors.New("attempt write without attempt")
		}
		_, err := w.store.AppendAttempt(ctx, pw.UserID, pw.ModuleID, *pw.Attempt)
		return err
	default:
		return fmt.Errorf("unknown write kind: %s", pw.Kind)
	}
}

func (w *ProgressWriter) park(pw models.PendingWrite) {
	if w.pending == nil {
		log.Printf("[PROGRESS_WRITER] No pending store, dropping %s write for user=%d module=%s", pw.Kind, pw.UserID, pw.ModuleID)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
	defer cancel()

	id, err := w.pending.Park(ctx, pw)
	if err != nil {
		log.Printf("[PROGRESS_WRITER] Failed to park %s write for user=%d module=%s: %v", pw.Kind, pw.UserID, pw.ModuleID, err)
		return
	}
	log.Printf("[PROGRESS_WRITER] Parked %s write %d for user=%d module=%s", pw.Kind, id, pw.UserID, pw.ModuleID)
}

// Wait blocks until every write queued so far for the pair has been handled.
func (w *ProgressWriter) Wait(ctx context.Context, userID int64, moduleID string) error {
	w.mu.Lock()
	q, ok := w.queues[writeKey{userID: userID, moduleID: moduleID}]
	if !ok || !q.running {
		w.mu.Unlock()
		return nil
	}
	idle := q.idle
	w.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// HasFailures reports whether a write for the pair failed in this process
// and has not been replayed successfully since.
func (w *ProgressWriter) HasFailures(userID int64, moduleID string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	q, ok := w.queues[writeKey{userID: userID, moduleID: moduleID}]
	return ok && q.failed > 0
}

// Close waits for queued writes. Writes submitted afterwards are parked
// directly.
func (w *ProgressWriter) Close() {
	w.mu.Lock()
	w.closed = true
	w.mu.Unlock()
	w.wg.Wait()
}
