// Package tasks runs fire-and-forget background work with a bounded number of
// concurrent workers.
//
// Work submitted to a Queue never reports back to the submitter: errors and
// panics are logged and kept in the failure list for inspection. Closing the
// queue cancels the context handed to every task.
package tasks

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/dmitrijs2005/lotkeeper/internal/logging"
)

// maxFailures bounds the retained failure history.
const maxFailures = 100

// Failure describes a task that returned an error or panicked.
type Failure struct {
	Name string
	Err  error
	At   time.Time
}

type Queue struct {
	ctx    context.Context
	cancel context.CancelFunc
	sem    *semaphore.Weighted
	wg     sync.WaitGroup
	logger logging.Logger

	pending atomic.Int64
	closed  atomic.Bool

	mu     sync.Mutex
	failed []Failure
}

func NewQueue(workers int, logger logging.Logger) *Queue {
	if workers < 1 {
		workers = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Queue{
		ctx:    ctx,
		cancel: cancel,
		sem:    semaphore.NewWeighted(int64(workers)),
		logger: logger.With("component", "tasks"),
	}
}

// Submit schedules fn and returns immediately. It reports false when the
// queue is closed.
func (q *Queue) Submit(name string, fn func(ctx context.Context) error) bool {
	if q.closed.Load() {
		return false
	}

	q.pending.Add(1)
	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		defer q.pending.Add(-1)

		if err := q.sem.Acquire(q.ctx, 1); err != nil {
			q.logger.Debug(q.ctx, "task dropped", "task", name, "error", err)
			return
		}
		defer q.sem.Release(1)

		q.run(name, fn)
	}()
	return true
}

func (q *Queue) run(name string, fn func(ctx context.Context) error) {
	defer func() {
		if r := recover(); r != nil {
			q.fail(name, fmt.Errorf("panic: %v", r))
		}
	}()

	ctx := logging.ContextWith(q.ctx, "task", name)
	start := time.Now()
	if err := fn(ctx); err != nil {
		q.fail(name, err)
		return
	}
	q.logger.Debug(q.ctx, "task finished", "task", name, "took", time.Since(start))
}

func (q *Queue) fail(name string, err error) {
	q.logger.Error(q.ctx, "background task failed", "task", name, "error", err)

	q.mu.Lock()
	defer q.mu.Unlock()
	q.failed = append(q.failed, Failure{Name: name, Err: err, At: time.Now()})
	if len(q.failed) > maxFailures {
		q.failed = q.failed[len(q.failed)-maxFailures:]
	}
}

// Pending returns the number of submitted tasks that have not finished.
func (q *Queue) Pending() int {
	return int(q.pending.Load())
}

// Failed returns a copy of the recorded failures, oldest first.
func (q *Queue) Failed() []Failure {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]Failure, len(q.failed))
	copy(out, q.failed)
	return out
}

// Wait blocks until every submitted task, including tasks submitted by
// running tasks, has finished.
func (q *Queue) Wait() {
	q.wg.Wait()
}

// Close stops accepting work, cancels running tasks and waits for them.
func (q *Queue) Close() {
	q.closed.Store(true)
	q.cancel()
	q.wg.Wait()
}
