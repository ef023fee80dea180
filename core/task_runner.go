package core

import (
	"fmt"
	"sync"

	"github.com/eapache/queue"
)

// TaskRunner is a lane on top of the worker pool that runs at most MaxConcurrency of its
// tasks at a time, in submission order. With MaxConcurrency 1 it is a sequence: each task
// observes every side effect of the one before it.
//
// Tasks still carry their own priority once dispatched, and still report to the port they
// were submitted with.
type TaskRunner struct {
	name           string
	scheduler      *TaskScheduler
	maxConcurrency int

	mu      sync.Mutex
	pending *queue.Queue
	running int
	closed  bool
}

// NewSequencedTaskRunner creates a runner that executes one task at a time.
func NewSequencedTaskRunner(s *TaskScheduler, name string) *TaskRunner {
	return NewParallelTaskRunner(s, name, 1)
}

// NewParallelTaskRunner creates a runner that executes up to maxConcurrency tasks at a
// time. maxConcurrency below one is treated as one.
func NewParallelTaskRunner(s *TaskScheduler, name string, maxConcurrency int) *TaskRunner {
	if maxConcurrency < 1 {
		maxConcurrency = 1
	}
	if name == "" {
		name = fmt.Sprintf("%s-runner", s.name)
	}
	return &TaskRunner{
		name:           name,
		scheduler:      s,
		maxConcurrency: maxConcurrency,
		pending:        queue.New(),
	}
}

func (r *TaskRunner) Name() string        { return r.name }
func (r *TaskRunner) MaxConcurrency() int { return r.maxConcurrency }

func (r *TaskRunner) PendingTaskCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pending.Length()
}

func (r *TaskRunner) RunningTaskCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

// IsClosed reports whether the runner or its scheduler has shut down.
func (r *TaskRunner) IsClosed() bool {
	r.mu.Lock()
	closed := r.closed
	r.mu.Unlock()
	return closed || r.scheduler.IsClosed()
}

// Submit registers tasks on port (which may be nil) and appends them to the runner.
func (r *TaskRunner) Submit(port *CompletionPort, tasks ...Task) error {
	if len(tasks) == 0 {
		return fmt.Errorf("%w: no tasks submitted", ErrInvalidArgument)
	}
	for _, t := range tasks {
		if err := validateTask(t); err != nil {
			return err
		}
	}
	if r.scheduler.IsClosed() {
		r.Shutdown()
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		r.scheduler.rejectedTaskHandler.HandleRejectedTask(r.name, "runner closed")
		r.scheduler.metrics.RecordTaskRejected(r.scheduler.name, "runner closed")
		return ErrShutdown
	}
	if port != nil {
		if err := port.Register(len(tasks)); err != nil {
			r.mu.Unlock()
			return err
		}
	}
	for _, t := range tasks {
		r.pending.Add(TaskItem{ID: GenerateTaskID(), Task: t, Port: port, onDone: r.onTaskDone})
	}
	r.mu.Unlock()

	r.dispatch()
	return nil
}

// SubmitBatch is Submit on a fresh port, returned for joining.
func (r *TaskRunner) SubmitBatch(tasks ...Task) (*CompletionPort, error) {
	port := NewCompletionPort()
	if err := r.Submit(port, tasks...); err != nil {
		return nil, err
	}
	return port, nil
}

// dispatch hands pending tasks to the scheduler while the concurrency limit allows.
func (r *TaskRunner) dispatch() {
	if r.scheduler.IsClosed() {
		r.Shutdown()
		return
	}

	r.mu.Lock()
	var ready []TaskItem
	for r.running < r.maxConcurrency && r.pending.Length() > 0 {
		ready = append(ready, r.pending.Remove().(TaskItem))
		r.running++
	}
	r.mu.Unlock()

	if len(ready) > 0 {
		r.scheduler.pushRegistered(ready)
	}
}

func (r *TaskRunner) onTaskDone() {
	r.mu.Lock()
	r.running--
	r.mu.Unlock()
	r.dispatch()
}

// Shutdown rejects further submissions and discards tasks not yet handed to the pool.
// Tasks already dispatched run to completion. Calling it again is a no-op.
func (r *TaskRunner) Shutdown() {
	r.mu.Lock()
	r.closed = true
	var dropped []TaskItem
	for r.pending.Length() > 0 {
		item := r.pending.Remove().(TaskItem)
		item.onDone = nil
		dropped = append(dropped, item)
	}
	r.mu.Unlock()

	r.scheduler.discard(dropped)
}
