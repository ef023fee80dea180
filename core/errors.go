package core

import (
	"errors"
	"fmt"
)

var (
	// ErrInitialization is returned by Start when the manager is already running or the
	// worker count is zero.
	ErrInitialization = errors.New("taskmanager: initialization error")

	// ErrInvalidArgument reports a malformed request: an empty batch, a nil body, a reserved
	// priority or a reused completion port.
	ErrInvalidArgument = errors.New("taskmanager: invalid argument")

	// ErrPortCompleted is returned when tasks are registered on a port that already
	// reached zero. Ports are single use.
	ErrPortCompleted = fmt.Errorf("%w: completion port already completed", ErrInvalidArgument)

	// ErrShutdown is returned for submissions made after Shutdown.
	ErrShutdown = errors.New("taskmanager: shut down")

	// ErrWaitOnWorker is returned when Wait is called from one of the manager's own worker
	// goroutines. Blocking a worker on a port whose tasks may be queued behind it can
	// starve the pool; fork and return instead.
	ErrWaitOnWorker = errors.New("taskmanager: wait called from a worker goroutine")

	// ErrTaskDiscarded is recorded on a port for every task dropped from the queues by
	// Shutdown before it ran.
	ErrTaskDiscarded = errors.New("taskmanager: task discarded by shutdown")

	// ErrTaskPanic wraps the value recovered from a panicking task body.
	ErrTaskPanic = errors.New("taskmanager: task panicked")
)

// TaskError describes one failed task. It is recorded on the task's completion port and
// never propagated to the worker loop.
type TaskError struct {
	TaskID   TaskID
	Task     string
	Priority Priority
	PortID   string
	WorkerID int // -1 when the task never reached a worker
	Err      error
	Panic    any
	Stack    []byte
}

func (e *TaskError) Error() string {
	name := e.Task
	if name == "" {
		name = e.TaskID.String()
	}
	return fmt.Sprintf("task %s (%s) failed: %v", name, e.Priority, e.Err)
}

func (e *TaskError) Unwrap() error {
	return e.Err
}

func newPanicError(rec any) error {
	if err, ok := rec.(error); ok {
		return fmt.Errorf("%w: %w", ErrTaskPanic, err)
	}
	return fmt.Errorf("%w: %v", ErrTaskPanic, rec)
}
