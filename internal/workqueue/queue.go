package workqueue

import (
	"context"
	"fmt"
	"sync"

	"gopkg.in/tomb.v2"

	logpkg "github.com/tommyorndorff/icinga2/pkg/log"
)

// Task is a deferred unit of work. The context is the queue's lifetime
// context; it is cancelled when the queue stops.
type Task func(ctx context.Context)

// Queue executes submitted tasks one at a time, in FIFO order, on a single
// worker goroutine.
type Queue struct {
	logger logpkg.Logger
	tomb   tomb.Tomb

	mu      sync.Mutex
	pending []Task
	notify  chan struct{}
	stopped bool
}

// New creates a started queue.
func New(logger logpkg.Logger) *Queue {
	q := &Queue{
		logger: logger.WithComponent("workqueue"),
		notify: make(chan struct{}, 1),
	}
	q.tomb.Go(q.worker)
	return q
}

// Submit enqueues task for later execution. It never blocks; the backlog is
// unbounded. Submitting to a stopped queue drops the task.
func (q *Queue) Submit(task Task) {
	q.mu.Lock()
	if q.stopped {
		q.mu.Unlock()
		return
	}
	q.pending = append(q.pending, task)
	q.mu.Unlock()
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// Len reports the current backlog size.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Stop prevents further submissions, cancels the lifetime context handed to
// tasks, and waits for the worker to exit. Tasks still queued are discarded;
// the task in flight runs to completion unless it honors the context.
func (q *Queue) Stop() error {
	q.mu.Lock()
	q.stopped = true
	q.mu.Unlock()
	q.tomb.Kill(nil)
	return q.tomb.Wait()
}

func (q *Queue) worker() error {
	ctx := q.tomb.Context(nil)
	for {
		select {
		case <-q.tomb.Dying():
			return tomb.ErrDying
		default:
		}
		task, ok := q.next()
		if ok {
			q.run(ctx, task)
			continue
		}
		select {
		case <-q.notify:
		case <-q.tomb.Dying():
			return tomb.ErrDying
		}
	}
}

func (q *Queue) next() (Task, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.pending) == 0 {
		return nil, false
	}
	task := q.pending[0]
	q.pending[0] = nil
	q.pending = q.pending[1:]
	return task, true
}

// run isolates task panics so one bad task cannot take the worker down.
func (q *Queue) run(ctx context.Context, task Task) {
	defer func() {
		if r := recover(); r != nil {
			q.logger.Error("task panicked", logpkg.Str("panic", fmt.Sprint(r)))
		}
	}()
	task(ctx)
}
