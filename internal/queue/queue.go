// Package queue serializes read-modify-write cycles against the collection store.
package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/starford/munchie/internal/collectionstore"
	"github.com/starford/munchie/internal/models"
)

// ErrClosed is returned for tasks submitted to, or still pending in, a closed queue.
var ErrClosed = errors.New("queue: closed")

// Transform receives a freshly loaded copy of the store and returns the list
// to persist. Returning an error leaves the persisted store untouched.
type Transform func(cols []models.Collection) ([]models.Collection, error)

// CommitHook observes the store after each successful save.
type CommitHook func(cols []models.Collection)

// Task is the pending result of an enqueued transform.
type Task struct {
	transform Transform
	done      chan struct{}
	cols      []models.Collection
	err       error
}

// Done is closed once the task has finished.
func (t *Task) Done() <-chan struct{} { return t.done }

// Wait blocks until the task finishes or ctx is cancelled. Cancelling ctx
// abandons the wait only; the task still runs in its turn.
func (t *Task) Wait(ctx context.Context) ([]models.Collection, error) {
	select {
	case <-t.done:
		return t.cols, t.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (t *Task) finish(cols []models.Collection, err error) {
	t.cols, t.err = cols, err
	close(t.done)
}

// Option configures a Queue.
type Option func(*Queue)

// WithLogger sets the logger used for task failures.
func WithLogger(l *slog.Logger) Option {
	return func(q *Queue) { q.logger = l }
}

// WithCommitHook registers a hook called after every successful save.
func WithCommitHook(h CommitHook) Option {
	return func(q *Queue) { q.onCommit = h }
}

// Queue runs transforms one at a time in submission order.
//
// Concurrency model: a single worker goroutine owns the load → transform →
// save cycle. Enqueue only appends to the pending list and never blocks, so
// submitting from a task continuation (or even from inside a transform) is
// safe. One Queue must be shared by every caller that writes the store.
type Queue struct {
	store    collectionstore.Store
	logger   *slog.Logger
	onCommit CommitHook

	mu      sync.Mutex
	pending []*Task

	wake    chan struct{}
	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// New starts a queue over store.
func New(store collectionstore.Store, opts ...Option) *Queue {
	q := &Queue{
		store:   store,
		logger:  slog.Default(),
		wake:    make(chan struct{}, 1),
		stopCh:  make(chan struct{}),
		stopped: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(q)
	}
	go q.run()
	return q
}

// Enqueue schedules transform and returns its Task.
func (q *Queue) Enqueue(transform Transform) *Task {
	t := &Task{transform: transform, done: make(chan struct{})}
	q.mu.Lock()
	if q.closed.Load() {
		q.mu.Unlock()
		t.finish(nil, ErrClosed)
		return t
	}
	q.pending = append(q.pending, t)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
	return t
}

// Do enqueues transform and waits for its result.
func (q *Queue) Do(ctx context.Context, transform Transform) ([]models.Collection, error) {
	return q.Enqueue(transform).Wait(ctx)
}

// Close stops the worker after the task in flight, failing anything still pending.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed.CompareAndSwap(false, true) {
		close(q.stopCh)
	}
	q.mu.Unlock()
	<-q.stopped
}

func (q *Queue) run() {
	defer close(q.stopped)
	for {
		select {
		case <-q.stopCh:
			q.failPending()
			return
		default:
		}

		if t := q.next(); t != nil {
			q.execute(t)
			continue
		}

		select {
		case <-q.stopCh:
			q.failPending()
			return
		case <-q.wake:
		}
	}
}

func (q *Queue) next() *Task {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.pending) == 0 {
		return nil
	}
	t := q.pending[0]
	q.pending[0] = nil
	q.pending = q.pending[1:]
	return t
}

func (q *Queue) failPending() {
	q.mu.Lock()
	rest := q.pending
	q.pending = nil
	q.mu.Unlock()
	for _, t := range rest {
		t.finish(nil, ErrClosed)
	}
}

func (q *Queue) execute(t *Task) {
	cols, err := q.apply(t.transform)
	if err != nil {
		q.logger.Debug("queue: task failed", slog.String("error", err.Error()))
		t.finish(nil, err)
		return
	}
	if q.onCommit != nil {
		q.onCommit(models.CloneAll(cols))
	}
	t.finish(cols, nil)
}

// apply runs one load → transform → save cycle. A panicking transform is
// reported as that task's error.
func (q *Queue) apply(transform Transform) (cols []models.Collection, err error) {
	current, err := q.store.Load()
	if err != nil {
		return nil, err
	}

	defer func() {
		if r := recover(); r != nil {
			cols, err = nil, fmt.Errorf("queue: transform panicked: %v", r)
		}
	}()

	next, err := transform(current)
	if err != nil {
		return nil, err
	}
	if next == nil {
		next = []models.Collection{}
	}
	if err := q.store.Save(next); err != nil {
		return nil, err
	}
	return next, nil
}
