// Package writequeue runs writes one at a time per key, in submission order.
// Different keys drain concurrently and never wait on each other.
package writequeue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// Op is one queued write. It runs with the queue's base context, not the
// submitter's, so a caller going away does not abort a write already queued.
type Op func(ctx context.Context) error

// Metrics records op outcomes. *metrics.Metrics satisfies it.
type Metrics interface {
	QueueOp(outcome string)
}

type task struct {
	op   Op
	done chan error
}

// Queue holds one FIFO per key. A key's drain goroutine is started on the
// first enqueue and exits, removing the key, once its FIFO is empty.
type Queue struct {
	base      context.Context
	logger    *slog.Logger
	metrics   Metrics
	onSuccess func(key string)
	onError   func(key string, err error)

	mu     sync.Mutex
	queues map[string][]task
	wg     sync.WaitGroup
}

// Option configures a Queue.
type Option func(*Queue)

// WithBaseContext sets the context ops run with.
func WithBaseContext(ctx context.Context) Option {
	return func(q *Queue) { q.base = ctx }
}

// WithCallbacks sets the global success and error callbacks. Either may be nil.
func WithCallbacks(onSuccess func(key string), onError func(key string, err error)) Option {
	return func(q *Queue) {
		q.onSuccess = onSuccess
		q.onError = onError
	}
}

// WithLogger sets the queue logger.
func WithLogger(l *slog.Logger) Option {
	return func(q *Queue) { q.logger = l }
}

// WithMetrics records op outcomes.
func WithMetrics(m Metrics) Option {
	return func(q *Queue) { q.metrics = m }
}

// New creates an empty queue.
func New(opts ...Option) *Queue {
	q := &Queue{
		base:   context.Background(),
		logger: slog.Default(),
		queues: make(map[string][]task),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Enqueue submits op for key and returns immediately. Failures go to the
// error callback.
func (q *Queue) Enqueue(key string, op Op) {
	q.push(key, task{op: op})
}

// EnqueueAndWait submits op for key and waits for it to finish. If ctx ends
// first the op still runs; only the wait is abandoned.
func (q *Queue) EnqueueAndWait(ctx context.Context, key string, op Op) error {
	done := make(chan error, 1)
	q.push(key, task{op: op, done: done})
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Pending returns the number of ops queued for key that have not started.
func (q *Queue) Pending(key string) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.queues[key])
}

// Active reports whether key currently has a drain goroutine.
func (q *Queue) Active(key string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	_, ok := q.queues[key]
	return ok
}

// Wait blocks until every queued op has finished.
func (q *Queue) Wait() {
	q.wg.Wait()
}

func (q *Queue) push(key string, t task) {
	q.mu.Lock()
	pending, running := q.queues[key]
	q.queues[key] = append(pending, t)
	if !running {
		q.wg.Add(1)
	}
	q.mu.Unlock()

	if !running {
		go q.drain(key)
	}
}

func (q *Queue) drain(key string) {
	defer q.wg.Done()
	for {
		q.mu.Lock()
		pending := q.queues[key]
		if len(pending) == 0 {
			delete(q.queues, key)
			q.mu.Unlock()
			return
		}
		t := pending[0]
		pending[0] = task{}
		q.queues[key] = pending[1:]
		q.mu.Unlock()

		err := q.run(t.op)
		q.report(key, err)
		if t.done != nil {
			t.done <- err
		}
	}
}

func (q *Queue) run(op Op) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("writequeue: op panicked: %v", r)
		}
	}()
	return op(q.base)
}

func (q *Queue) report(key string, err error) {
	switch {
	case err == nil:
		q.record("ok")
		if q.onSuccess != nil {
			q.onSuccess(key)
		}
	case errors.Is(err, context.Canceled):
		// A cancelled update is not a failure.
		q.record("canceled")
		q.logger.Debug("queued write canceled", slog.String("key", key))
	default:
		q.record("error")
		q.logger.Warn("queued write failed",
			slog.String("key", key),
			slog.String("error", err.Error()))
		if q.onError != nil {
			q.onError(key, err)
		}
	}
}

func (q *Queue) record(outcome string) {
	if q.metrics != nil {
		q.metrics.QueueOp(outcome)
	}
}
