package db

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"time"
)

type task struct {
	ctx  context.Context
	exec func(context.Context, *sql.DB) (interface{}, error)
	resp chan result
}

type result struct {
	data interface{}
	err  error
}

var ErrQueueClosed = errors.New("db queue closed")

// DBQueue runs every statement on a single worker so SQLite never sees
// concurrent writers. Transient failures are retried with a growing delay.
type DBQueue struct {
	tasks      chan task
	db         *sql.DB
	maxRetry   int
	retryDelay time.Duration
	testMode   bool

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

func NewDBQueue(db *sql.DB) *DBQueue {
	q := &DBQueue{
		tasks:      make(chan task, 100),
		db:         db,
		maxRetry:   3,
		retryDelay: 100 * time.Millisecond,
		done:       make(chan struct{}),
	}
	go q.worker()
	return q
}

func NewDBQueueForTest(db *sql.DB) *DBQueue {
	q := &DBQueue{
		tasks:      make(chan task, 100),
		db:         db,
		maxRetry:   3,
		retryDelay: time.Millisecond,
		testMode:   true,
		done:       make(chan struct{}),
	}
	go q.worker()
	return q
}

// Execute queues fn and waits for its result.
func Execute[T any](ctx context.Context, q *DBQueue, fn func(context.Context, *sql.DB) (T, error)) (T, error) {
	var zero T

	q.mu.RLock()
	if q.closed {
		q.mu.RUnlock()
		return zero, ErrQueueClosed
	}
	resp := make(chan result, 1)
	t := task{
		ctx: ctx,
		exec: func(ctx context.Context, db *sql.DB) (interface{}, error) {
			return fn(ctx, db)
		},
		resp: resp,
	}
	select {
	case q.tasks <- t:
	case <-ctx.Done():
		q.mu.RUnlock()
		return zero, ctx.Err()
	}
	q.mu.RUnlock()

	select {
	case r := <-resp:
		if r.err != nil {
			return zero, r.err
		}
		data, _ := r.data.(T)
		return data, nil
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

func (q *DBQueue) worker() {
	defer close(q.done)
	for t := range q.tasks {
		t.resp <- q.executeWithRetry(t)
	}
}

func (q *DBQueue) executeWithRetry(t task) result {
	var lastErr error
	for attempt := 0; attempt < q.maxRetry; attempt++ {
		if err := t.ctx.Err(); err != nil {
			return result{err: err}
		}
		data, err := t.exec(t.ctx, q.db)
		if err == nil {
			return result{data: data}
		}
		lastErr = err
		if !retryable(err) {
			break
		}
		if attempt < q.maxRetry-1 {
			if q.testMode {
				time.Sleep(q.retryDelay)
			} else {
				time.Sleep(time.Duration(attempt+1) * q.retryDelay)
			}
		}
	}
	return result{err: lastErr}
}

func retryable(err error) bool {
	return !errors.Is(err, sql.ErrNoRows) &&
		!errors.Is(err, ErrProgressNotFound) &&
		!errors.Is(err, context.Canceled) &&
		!errors.Is(err, context.DeadlineExceeded)
}

// Close stops accepting tasks and waits for queued ones to finish.
func (q *DBQueue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.tasks)
	q.mu.Unlock()
	<-q.done
}

func (q *DBQueue) DB() *sql.DB {
	return q.db
}
